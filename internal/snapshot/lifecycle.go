// Copyright (c) 2019 Jonas R. <joroec@gmx.net>
// Licensed under the MIT License. You have obtained a copy of the License at
// the "LICENSE" file in this repository.

package snapshot

import (
	"fmt"
	"strings"

	"github.com/libvirt/libvirt-go"
	"github.com/libvirt/libvirt-go-xml"

	"github.com/joroec/pvmctl/internal/errs"
	"github.com/joroec/pvmctl/internal/hypervisor"
)

// Find looks up a snapshot by name. A missing snapshot surfaces as
// errs.SnapshotOperationError wrapping NO_DOMAIN_SNAPSHOT so callers can
// distinguish "not found" (often treated as idempotent success) from other
// faults.
func Find(d *hypervisor.Domain, name string) (*Snapshot, error) {
	instance, err := d.Instance.SnapshotLookupByName(name, 0)
	if err != nil {
		return nil, wrapLookupErr(d.Descriptor.Name, name, err)
	}
	xml, err := instance.GetXMLDesc(0)
	if err != nil {
		instance.Free()
		return nil, errs.NewSnapshotOperationError("could not read snapshot XML", err, nil)
	}
	descriptor := libvirtxml.DomainSnapshot{}
	if err := descriptor.Unmarshal(xml); err != nil {
		instance.Free()
		return nil, errs.NewSnapshotOperationError("could not unmarshal snapshot XML", err, nil)
	}
	return &Snapshot{Instance: instance, Descriptor: descriptor}, nil
}

func wrapLookupErr(vmName, snapName string, err error) error {
	ctx := errs.Context{"vm_name": vmName, "snapshot_name": snapName}
	if lverr, ok := err.(libvirt.Error); ok {
		ctx["hypervisor_code"] = int(lverr.Code)
		if lverr.Code == libvirt.ERR_NO_DOMAIN_SNAPSHOT {
			return errs.NewSnapshotOperationError(
				fmt.Sprintf("no snapshot named %q for domain %q", snapName, vmName), err, ctx)
		}
	}
	return errs.NewSnapshotOperationError(
		fmt.Sprintf("could not look up snapshot %q for domain %q", snapName, vmName), err, ctx)
}

// isNoDomainSnapshot reports whether err is NO_DOMAIN_SNAPSHOT, wrapped or
// not, by checking the message the errs taxonomy preserved.
func isNoDomainSnapshot(err error) bool {
	if lverr, ok := err.(libvirt.Error); ok {
		return lverr.Code == libvirt.ERR_NO_DOMAIN_SNAPSHOT
	}
	return strings.Contains(err.Error(), "no snapshot named")
}

// Revert reverts domain to the snapshot named name, per §4.3's revert
// algorithm: lookup, shutdown-if-running, revert with FORCE when available.
// A running VM after revert is a logged warning, not an error - unexpected
// but tolerated for disk-only external snapshots.
func (c *Controller) Revert(d *hypervisor.Domain, name string) error {
	snap, err := Find(d, name)
	if err != nil {
		return err
	}
	defer snap.Free()

	state, _, err := d.Instance.GetState()
	if err == nil && state == libvirt.DOMAIN_RUNNING {
		if _, err := d.Shutdown(c.cfg.ShutdownTimeout, c.cfg.ShutdownPollInterval); err != nil {
			return errs.NewSnapshotOperationError(
				fmt.Sprintf("could not shut down domain %q before revert", d.Descriptor.Name), err,
				errs.Context{"vm_name": d.Descriptor.Name, "snapshot_name": name})
		}
	}

	if err := d.Instance.RevertToSnapshot(snap.Instance, libvirt.DOMAIN_SNAPSHOT_REVERT_FORCE); err != nil {
		if lverr, ok := err.(libvirt.Error); ok && lverr.Code == libvirt.ERR_ARGUMENT_UNSUPPORTED {
			if err := d.Instance.RevertToSnapshot(snap.Instance, 0); err != nil {
				return errs.NewSnapshotOperationError(
					fmt.Sprintf("could not revert domain %q to snapshot %q", d.Descriptor.Name, name), err,
					errs.Context{"vm_name": d.Descriptor.Name, "snapshot_name": name})
			}
		} else {
			return errs.NewSnapshotOperationError(
				fmt.Sprintf("could not revert domain %q to snapshot %q", d.Descriptor.Name, name), err,
				errs.Context{"vm_name": d.Descriptor.Name, "snapshot_name": name})
		}
	}

	postState, _, err := d.Instance.GetState()
	if err == nil && postState == libvirt.DOMAIN_RUNNING {
		Logger.Warnf("domain %q is running after revert to disk-only snapshot %q; expected shut off",
			d.Descriptor.Name, name)
	}

	return nil
}

// Delete removes the snapshot named name, per §4.3's delete algorithm:
// shutdown-if-running, optional permission repair, METADATA_ONLY first,
// retry with flags=0 after a repair attempt on permission denied. A
// not-found snapshot is treated as idempotent success.
func (c *Controller) Delete(d *hypervisor.Domain, name string) error {
	snap, err := Find(d, name)
	if err != nil {
		if isNoDomainSnapshot(err) {
			return nil
		}
		return err
	}
	defer snap.Free()

	state, _, err := d.Instance.GetState()
	if err == nil && state == libvirt.DOMAIN_RUNNING {
		if _, err := d.Shutdown(c.cfg.ShutdownTimeout, c.cfg.ShutdownPollInterval); err != nil {
			return errs.NewSnapshotOperationError(
				fmt.Sprintf("could not shut down domain %q before deleting snapshot %q",
					d.Descriptor.Name, name), err,
				errs.Context{"vm_name": d.Descriptor.Name, "snapshot_name": name})
		}
	}

	disks := eligibleDisks(d)
	for _, report := range c.repairPermissions(disks) {
		Logger.Warn(report)
	}

	err = snap.Instance.Delete(libvirt.DOMAIN_SNAPSHOT_DELETE_METADATA_ONLY)
	if err != nil {
		if isPermissionDenied(err) {
			for _, report := range c.repairPermissions(disks) {
				Logger.Warn(report)
			}
			if err2 := snap.Instance.Delete(0); err2 != nil {
				return errs.NewSnapshotOperationError(
					fmt.Sprintf("could not delete snapshot %q for domain %q after permission repair retry",
						name, d.Descriptor.Name), err2,
					errs.Context{"vm_name": d.Descriptor.Name, "snapshot_name": name})
			}
			return nil
		}
		return errs.NewSnapshotOperationError(
			fmt.Sprintf("could not delete snapshot %q for domain %q", name, d.Descriptor.Name), err,
			errs.Context{"vm_name": d.Descriptor.Name, "snapshot_name": name})
	}

	return nil
}

func isPermissionDenied(err error) bool {
	if lverr, ok := err.(libvirt.Error); ok {
		return lverr.Code == libvirt.ERR_OPERATION_DENIED || strings.Contains(lverr.Message, "Permission denied")
	}
	return strings.Contains(err.Error(), "Permission denied")
}

// List returns a Descriptor per existing snapshot, in the shape required by
// §4.3's List: name, created, state, kind, description. Per-row errors are
// reported without failing the whole listing.
func (c *Controller) List(d *hypervisor.Domain) ([]Descriptor, []string) {
	names, err := d.Instance.SnapshotListNames(0)
	if err != nil {
		return nil, []string{fmt.Sprintf("could not list snapshots for domain %q: %v", d.Descriptor.Name, err)}
	}

	var descriptors []Descriptor
	var warnings []string
	for _, name := range names {
		snap, err := Find(d, name)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("snapshot %q: %v", name, err))
			continue
		}

		hasMemory := snap.Descriptor.Memory != nil && snap.Descriptor.Memory.Snapshot == "internal"
		isExternal := true
		if snap.Descriptor.Disks != nil {
			for _, disk := range snap.Descriptor.Disks.Disks {
				if disk.Snapshot != "external" {
					isExternal = false
					break
				}
			}
		}

		kind := "Internal"
		if isExternal {
			kind = "External"
		}
		if hasMemory {
			kind += "+Mem"
		}

		var epoch int64
		fmt.Sscanf(snap.Descriptor.CreationTime, "%d", &epoch)

		descriptors = append(descriptors, Descriptor{
			Name:         snap.Descriptor.Name,
			CreatedEpoch: epoch,
			SnapshotKind: kind,
			HasMemory:    hasMemory,
			Description:  snap.Descriptor.Description,
		})
		snap.Free()
	}

	return descriptors, warnings
}
