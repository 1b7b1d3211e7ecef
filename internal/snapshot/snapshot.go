// Copyright (c) 2019 Jonas R. <joroec@gmx.net>
// Licensed under the MIT License. You have obtained a copy of the License at
// the "LICENSE" file in this repository.

// Package snapshot is the Snapshot Controller (C3): it creates, reverts,
// and deletes external disk-only snapshots, generating snapshot XML from a
// domain's disk topology and managing permission repair and stale-file
// cleanup around them.
package snapshot

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io/ioutil"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/kennygrant/sanitize"
	"github.com/libvirt/libvirt-go"
	"github.com/libvirt/libvirt-go-xml"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/joroec/pvmctl/internal/agent"
	"github.com/joroec/pvmctl/internal/config"
	"github.com/joroec/pvmctl/internal/errs"
	"github.com/joroec/pvmctl/internal/hypervisor"
)

// Logger is a per-component verbose trace logger, in the teacher's
// virt.Logger style.
var Logger = logrus.New()

func init() {
	Logger.SetLevel(logrus.WarnLevel)
}

// Snapshot wraps a libvirt.DomainSnapshot with its unmarshalled XML
// descriptor, mirroring pkg/virt/snapshot.go's Snapshot type.
type Snapshot struct {
	Instance   libvirt.DomainSnapshot
	Descriptor libvirtxml.DomainSnapshot
}

// Free releases the underlying libvirt.DomainSnapshot buffer.
func (s *Snapshot) Free() error {
	return s.Instance.Free()
}

// Descriptor as required by §3 "Snapshot descriptor": name, created_epoch,
// snapshot_kind, has_memory, description.
type Descriptor struct {
	Name         string
	CreatedEpoch int64
	SnapshotKind string // "Internal" | "External", with "+Mem" appended when memory was captured
	HasMemory    bool
	Description  string
}

// Controller performs create/revert/delete/list against one domain's
// snapshots. It is constructed per-run by the challenge engine.
type Controller struct {
	cfg *config.Config
}

// New builds a Controller bound to cfg.
func New(cfg *config.Config) *Controller {
	return &Controller{cfg: cfg}
}

// eligibleDisk is one disk this controller will snapshot: file-backed,
// device type "disk".
type eligibleDisk struct {
	targetDev  string
	sourceFile string
	driverType string
}

func eligibleDisks(d *hypervisor.Domain) []eligibleDisk {
	var out []eligibleDisk
	for _, disk := range d.Descriptor.Devices.Disks {
		if disk.Device != "disk" {
			continue
		}
		if disk.Source == nil || disk.Source.File == nil {
			continue
		}
		driverType := "qcow2"
		if disk.Driver != nil && disk.Driver.Type != "" {
			driverType = disk.Driver.Type
		}
		target := ""
		if disk.Target != nil {
			target = disk.Target.Dev
		}
		out = append(out, eligibleDisk{
			targetDev:  target,
			sourceFile: disk.Source.File.File,
			driverType: driverType,
		})
	}
	return out
}

// overlayPath builds the sibling overlay file path for base, deterministically
// named from the base-disk stem plus a short unique suffix: a hash of
// name+time, per spec.md §4.3. A caller that hits a name collision on disk
// must call this again with a fresh nowNano to get a new hash.
func overlayPath(base, snapshotName string, nowNano int64) string {
	dir := filepath.Dir(base)
	stem := strings.TrimSuffix(filepath.Base(base), filepath.Ext(base))
	stem = sanitize.BaseName(stem)

	h := sha1.Sum([]byte(fmt.Sprintf("%s-%d", snapshotName, nowNano)))
	suffix := hex.EncodeToString(h[:])[:8]

	return filepath.Join(dir, fmt.Sprintf("%s.%s.overlay.qcow2", stem, suffix))
}

// buildSnapshotXML synthesizes a <domainsnapshot> for the given disks,
// mapping each eligible disk to an external overlay. Returns an error if no
// eligible disk exists.
func buildSnapshotXML(name, description string, disks []eligibleDisk, overlays map[string]string) (string, error) {
	if len(disks) == 0 {
		return "", errs.NewSnapshotOperationError("no eligible disk found for snapshot", nil, nil)
	}

	snap := libvirtxml.DomainSnapshot{
		Name:        name,
		Description: description,
		Disks:       &libvirtxml.DomainSnapshotDisks{},
	}
	for _, disk := range disks {
		snap.Disks.Disks = append(snap.Disks.Disks, libvirtxml.DomainSnapshotDisk{
			Name:     disk.targetDev,
			Snapshot: "external",
			Source: &libvirtxml.DomainDiskSource{
				File: &libvirtxml.DomainDiskSourceFile{File: overlays[disk.targetDev]},
			},
			Driver: &libvirtxml.DomainDiskDriver{Type: disk.driverType},
		})
	}

	xml, err := snap.Marshal()
	if err != nil {
		return "", errs.NewSnapshotOperationError("could not marshal snapshot XML", err, nil)
	}
	return xml, nil
}

// Create takes a fresh external, disk-only snapshot named name against
// domain, following §4.3's algorithm: stale-overlay GC, optional agent
// freeze, XML synthesis with hash-collision retry, flag selection, create,
// unconditional thaw-if-frozen.
func (c *Controller) Create(d *hypervisor.Domain, name, description string, now time.Time) (*Snapshot, error) {
	disks := eligibleDisks(d)
	if len(disks) == 0 {
		return nil, errs.NewSnapshotOperationError(
			fmt.Sprintf("domain %q has no eligible file-backed disk to snapshot", d.Descriptor.Name),
			nil, errs.Context{"vm_name": d.Descriptor.Name})
	}

	c.garbageCollectStale(disks)

	for _, report := range c.repairPermissions(disks) {
		Logger.Warn(report)
	}

	state, _, err := d.Instance.GetState()
	running := err == nil && state == libvirt.DOMAIN_RUNNING

	froze := false
	if running {
		ok, ferr := agent.FsFreeze(d, 10)
		if ferr != nil {
			Logger.Warnf("fs-freeze call failed for %q (continuing without quiesce): %v", d.Descriptor.Name, ferr)
		}
		froze = ok
	}

	defer func() {
		if froze {
			thawed, terr := agent.FsThaw(d, 10)
			if terr != nil || !thawed {
				Logger.Errorf("CRITICAL: fs-thaw did not confirm for domain %q after a successful freeze; "+
					"guest filesystems may remain frozen (err=%v)", d.Descriptor.Name, terr)
			}
		}
	}()

	var xmlDoc string
	var overlays map[string]string
	var lastErr error
	for attempt := 0; attempt <= c.cfg.SnapshotHashCollisionRetries; attempt++ {
		overlays = map[string]string{}
		for _, disk := range disks {
			overlays[disk.targetDev] = overlayPath(disk.sourceFile, name, now.UnixNano()+int64(attempt))
		}
		collided := false
		for _, p := range overlays {
			if _, statErr := os.Stat(p); statErr == nil {
				collided = true
				break
			}
		}
		if collided {
			lastErr = fmt.Errorf("overlay path collision on attempt %d", attempt)
			continue
		}
		xmlDoc, err = buildSnapshotXML(name, description, disks, overlays)
		if err != nil {
			return nil, err
		}
		lastErr = nil
		break
	}
	if lastErr != nil {
		return nil, errs.NewSnapshotOperationError(
			fmt.Sprintf("could not allocate a unique overlay path for domain %q after %d attempts",
				d.Descriptor.Name, c.cfg.SnapshotHashCollisionRetries+1), lastErr,
			errs.Context{"vm_name": d.Descriptor.Name})
	}

	flags := libvirt.DOMAIN_SNAPSHOT_CREATE_DISK_ONLY | libvirt.DOMAIN_SNAPSHOT_CREATE_ATOMIC
	if running && !froze {
		flags |= libvirt.DOMAIN_SNAPSHOT_CREATE_QUIESCE
	}

	instance, err := d.Instance.CreateSnapshotXML(xmlDoc, flags)
	if err != nil {
		return nil, classifyCreateError(d.Descriptor.Name, name, err)
	}

	descXML, err := instance.GetXMLDesc(0)
	if err != nil {
		instance.Free()
		return nil, errs.NewSnapshotOperationError("could not read back created snapshot XML", err, nil)
	}
	descriptor := libvirtxml.DomainSnapshot{}
	if err := descriptor.Unmarshal(descXML); err != nil {
		instance.Free()
		return nil, errs.NewSnapshotOperationError("could not unmarshal created snapshot XML", err, nil)
	}

	return &Snapshot{Instance: instance, Descriptor: descriptor}, nil
}

// classifyCreateError distinguishes the three failure classes named in
// §4.3 step 5: already-exists, agent-unresponsive-with-quiesce, and other
// operation-invalid faults.
func classifyCreateError(vmName, snapName string, err error) error {
	lverr, ok := err.(libvirt.Error)
	if !ok {
		return errs.NewSnapshotOperationError(
			fmt.Sprintf("could not create snapshot %q for domain %q", snapName, vmName), err, nil)
	}

	ctx := errs.Context{"vm_name": vmName, "snapshot_name": snapName, "hypervisor_code": int(lverr.Code)}
	switch lverr.Code {
	case libvirt.ERR_CONFIG_EXIST:
		return errs.NewSnapshotOperationError(
			fmt.Sprintf("a snapshot named %q already exists for domain %q", snapName, vmName), err, ctx)
	case libvirt.ERR_AGENT_UNRESPONSIVE:
		return errs.NewSnapshotOperationError(
			fmt.Sprintf("guest agent did not respond to the quiesce request for domain %q", vmName), err, ctx)
	case libvirt.ERR_OPERATION_INVALID:
		return errs.NewSnapshotOperationError(
			fmt.Sprintf("hypervisor rejected snapshot operation for domain %q", vmName), err, ctx)
	default:
		return errs.NewSnapshotOperationError(
			fmt.Sprintf("could not create snapshot %q for domain %q", snapName, vmName), err, ctx)
	}
}

// garbageCollectStale removes overlay files for this VM's base disks beyond
// the configured keep-count, per §4.3 step 1. Best-effort: failures are
// logged, not surfaced, since GC is a housekeeping convenience.
func (c *Controller) garbageCollectStale(disks []eligibleDisk) {
	for _, disk := range disks {
		dir := filepath.Dir(disk.sourceFile)
		stem := sanitize.BaseName(strings.TrimSuffix(filepath.Base(disk.sourceFile), filepath.Ext(disk.sourceFile)))

		entries, err := ioutil.ReadDir(dir)
		if err != nil {
			Logger.Warnf("could not list %s for stale overlay GC: %v", dir, err)
			continue
		}

		var candidates []os.FileInfo
		prefix := stem + "."
		suffix := ".overlay.qcow2"
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			if strings.HasPrefix(entry.Name(), prefix) && strings.HasSuffix(entry.Name(), suffix) {
				candidates = append(candidates, entry)
			}
		}
		if len(candidates) <= c.cfg.SnapshotKeepCount {
			continue
		}

		sort.Slice(candidates, func(i, j int) bool {
			return candidates[i].ModTime().Before(candidates[j].ModTime())
		})

		toRemove := candidates[:len(candidates)-c.cfg.SnapshotKeepCount]
		for _, f := range toRemove {
			full := filepath.Join(dir, f.Name())
			if err := os.Remove(full); err != nil {
				Logger.Warnf("could not remove stale overlay %s: %v", full, err)
			} else {
				Logger.Infof("removed stale overlay %s (keep-count=%d)", full, c.cfg.SnapshotKeepCount)
			}
		}
	}
}

// repairPermissions checks whether this process can read and write each
// eligible disk's backing file and, if PermissionRepairEnabled, attempts a
// chown-to-hypervisor-identity plus chmod 0660 repair of the files it
// cannot, then restarts the hypervisor daemon once so it picks up the
// change, mirroring snapshot_manager.py's check_and_fix_vm_permissions. The
// access of the hypervisor identity itself is not checked. Every change and
// failure is returned as one report line, which Create and Delete log at
// warning level; no event is emitted.
func (c *Controller) repairPermissions(disks []eligibleDisk) []string {
	var report []string
	if !c.cfg.PermissionRepairEnabled {
		return report
	}

	fixed := 0
	for _, disk := range disks {
		if unix.Access(disk.sourceFile, unix.R_OK|unix.W_OK) == nil {
			continue
		}
		// best-effort: the process must already run with privilege to chown;
		// failures here are reported, not fatal.
		chownCmd := exec.Command("sudo", "chown", c.cfg.HypervisorOwner, disk.sourceFile)
		if out, err := chownCmd.CombinedOutput(); err != nil {
			report = append(report, fmt.Sprintf("chown %s %s failed: %v: %s",
				c.cfg.HypervisorOwner, disk.sourceFile, err, strings.TrimSpace(string(out))))
			continue
		}

		chmodCmd := exec.Command("sudo", "chmod", "0660", disk.sourceFile)
		if out, err := chmodCmd.CombinedOutput(); err != nil {
			report = append(report, fmt.Sprintf("chmod 0660 %s failed: %v: %s",
				disk.sourceFile, err, strings.TrimSpace(string(out))))
			continue
		}

		report = append(report, fmt.Sprintf("chown %s + chmod 0660 %s succeeded", c.cfg.HypervisorOwner, disk.sourceFile))
		fixed++
	}

	if fixed > 0 {
		restartCmd := exec.Command("sudo", "systemctl", "restart", c.cfg.LibvirtdServiceName)
		if out, err := restartCmd.CombinedOutput(); err != nil {
			report = append(report, fmt.Sprintf("restart %s failed: %v: %s",
				c.cfg.LibvirtdServiceName, err, strings.TrimSpace(string(out))))
		} else {
			report = append(report, fmt.Sprintf("restarted %s to apply permission repair", c.cfg.LibvirtdServiceName))
		}
	}

	return report
}
