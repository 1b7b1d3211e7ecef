// Copyright (c) 2019 Jonas R. <joroec@gmx.net>
// Licensed under the MIT License. You have obtained a copy of the License at
// the "LICENSE" file in this repository.

// Package hypervisor is the Hypervisor Gateway (C1): it opens and closes a
// connection to the local libvirt daemon, looks up domains by name, lists
// them, and reports liveness. Every hypervisor fault is wrapped into the
// engine's error taxonomy before it leaves this package.
package hypervisor

import (
	"fmt"

	"github.com/libvirt/libvirt-go"
	"github.com/libvirt/libvirt-go-xml"
	"github.com/sirupsen/logrus"

	"github.com/joroec/pvmctl/internal/errs"
)

// Logger is a per-component verbose trace logger, in the teacher's
// virt.Logger style: user-overridable, defaults to warnings on stderr. Set
// Logger.Out = ioutil.Discard to silence it entirely.
var Logger = logrus.New()

func init() {
	Logger.SetLevel(logrus.WarnLevel)
}

// Domain is a handle to a libvirt-managed VM: the live libvirt.Domain plus
// its unmarshalled XML descriptor.
type Domain struct {
	Instance   libvirt.Domain
	Descriptor libvirtxml.Domain
}

// Free releases the underlying libvirt.Domain buffer. Callers must call this
// once they are done with a Domain returned by Find.
func (d *Domain) Free() error {
	return d.Instance.Free()
}

// Info summarizes a domain for listing purposes.
type Info struct {
	Name      string
	State     string
	CPUCount  uint
	MemoryMB  uint64
	RuntimeID uint
}

// Gateway owns one libvirt connection for the lifetime of a run. A single
// invocation owns its connection exclusively; there is no pooling or shared
// mutable state between concurrent gateways.
type Gateway struct {
	conn *libvirt.Connect
	uri  string
}

// Connect opens a libvirt connection to uri. An empty uri defaults to the
// system-wide QEMU instance.
func Connect(uri string) (*Gateway, error) {
	if uri == "" {
		uri = "qemu:///system"
	}
	conn, err := libvirt.NewConnect(uri)
	if err != nil {
		return nil, errs.NewHypervisorConnectError(
			fmt.Sprintf("could not connect to hypervisor at %s", uri), err,
			errs.Context{"uri": uri},
		)
	}
	return &Gateway{conn: conn, uri: uri}, nil
}

// Close closes the connection. It is idempotent: a double close is logged,
// never raised.
func (g *Gateway) Close() {
	if g.conn == nil {
		return
	}
	if _, err := g.conn.Close(); err != nil {
		Logger.Warnf("close on hypervisor connection %s returned an error (ignored): %v", g.uri, err)
	}
	g.conn = nil
}

// Find looks up a single domain by name.
func (g *Gateway) Find(name string) (*Domain, error) {
	instance, err := g.conn.LookupDomainByName(name)
	if err != nil {
		if isNoDomain(err) {
			return nil, errs.NewVMNotFound(name, err)
		}
		return nil, errs.NewVMAccessError(
			fmt.Sprintf("could not look up domain %q", name), err,
			errs.Context{"vm_name": name, "hypervisor_code": libvirtErrorCode(err)},
		)
	}

	xml, err := instance.GetXMLDesc(0)
	if err != nil {
		instance.Free()
		return nil, errs.NewVMAccessError(
			fmt.Sprintf("could not get XML descriptor of domain %q", name), err,
			errs.Context{"vm_name": name},
		)
	}
	descriptor := libvirtxml.Domain{}
	if err := descriptor.Unmarshal(xml); err != nil {
		instance.Free()
		return nil, errs.NewVMAccessError(
			fmt.Sprintf("could not unmarshal XML descriptor of domain %q", name), err,
			errs.Context{"vm_name": name},
		)
	}

	return &Domain{Instance: instance, Descriptor: descriptor}, nil
}

// List combines running and defined-but-off domains, mapping hypervisor
// state codes to the vocabulary §4.1 names.
func (g *Gateway) List() ([]Info, error) {
	instances, err := g.conn.ListAllDomains(0)
	if err != nil {
		return nil, errs.NewVMAccessError("could not list domains", err, nil)
	}

	infos := make([]Info, 0, len(instances))
	for _, instance := range instances {
		name, err := instance.GetName()
		if err != nil {
			Logger.Warnf("could not get the name of a domain, skipping: %v", err)
			instance.Free()
			continue
		}

		state, _, err := instance.GetState()
		if err != nil {
			Logger.Warnf("could not get the state of domain %s, skipping: %v", name, err)
			instance.Free()
			continue
		}

		cpuCount, memoryKB, _, _, _, err := instance.GetInfo()
		var cpu uint
		var memMB uint64
		if err == nil {
			cpu = uint(cpuCount)
			memMB = memoryKB / 1024
		} else {
			Logger.Warnf("could not get resource info for domain %s: %v", name, err)
		}

		id, err := instance.GetID()
		if err != nil {
			id = 0
		}

		infos = append(infos, Info{
			Name:      name,
			State:     stateString(state),
			CPUCount:  cpu,
			MemoryMB:  memMB,
			RuntimeID: uint(id),
		})

		if err := instance.Free(); err != nil {
			Logger.Warnf("could not free domain %s: %v", name, err)
		}
	}

	return infos, nil
}

// IsValid probes a domain handle cheaply; it returns false on any
// hypervisor fault rather than propagating one.
func IsValid(d *Domain) bool {
	_, _, err := d.Instance.GetState()
	return err == nil
}

// stateString maps a libvirt.DomainState to the human vocabulary required
// by §4.1: running | shut off | paused | crashed | suspended | no state |
// blocked | shutting down.
func stateString(state libvirt.DomainState) string {
	switch state {
	case libvirt.DOMAIN_RUNNING:
		return "running"
	case libvirt.DOMAIN_BLOCKED:
		return "blocked"
	case libvirt.DOMAIN_PAUSED:
		return "paused"
	case libvirt.DOMAIN_SHUTDOWN:
		return "shutting down"
	case libvirt.DOMAIN_SHUTOFF:
		return "shut off"
	case libvirt.DOMAIN_CRASHED:
		return "crashed"
	case libvirt.DOMAIN_PMSUSPENDED:
		return "suspended"
	default:
		return "no state"
	}
}

// isNoDomain reports whether err is libvirt's "no such domain" fault.
func isNoDomain(err error) bool {
	lverr, ok := err.(libvirt.Error)
	if !ok {
		return false
	}
	return lverr.Code == libvirt.ERR_NO_DOMAIN
}

// libvirtErrorCode extracts the defensive hypervisor error code mentioned in
// §4.1's failure policy, returning -1 when err is not a libvirt.Error.
func libvirtErrorCode(err error) int {
	lverr, ok := err.(libvirt.Error)
	if !ok {
		return -1
	}
	return int(lverr.Code)
}
