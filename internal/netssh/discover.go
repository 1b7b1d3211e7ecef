// Copyright (c) 2019 Jonas R. <joroec@gmx.net>
// Licensed under the MIT License. You have obtained a copy of the License at
// the "LICENSE" file in this repository.

package netssh

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/libvirt/libvirt-go"

	"github.com/joroec/pvmctl/internal/errs"
	"github.com/joroec/pvmctl/internal/hypervisor"
)

// DiscoverIP finds a domain's first eligible IPv4 address, in the priority
// order required by §4.4: agent interface query, hypervisor DHCP lease
// table, then the ARP table. Loopback and link-local addresses are
// excluded at every source.
func DiscoverIP(d *hypervisor.Domain) (string, error) {
	if ip := firstEligible(queryAddresses(d, libvirt.DOMAIN_INTERFACE_ADDRESSES_SRC_AGENT)); ip != "" {
		return ip, nil
	}
	if ip := firstEligible(queryAddresses(d, libvirt.DOMAIN_INTERFACE_ADDRESSES_SRC_LEASE)); ip != "" {
		return ip, nil
	}
	if ip := firstEligibleFromARP(d); ip != "" {
		return ip, nil
	}

	return "", errs.NewNetworkError(
		fmt.Sprintf("could not discover an IPv4 address for domain %q via agent, lease, or ARP",
			d.Descriptor.Name), nil, errs.Context{"vm_name": d.Descriptor.Name})
}

func queryAddresses(d *hypervisor.Domain, source libvirt.DomainInterfaceAddressesSource) []string {
	ifaces, err := d.Instance.ListAllInterfaceAddresses(source)
	if err != nil {
		return nil
	}
	var addrs []string
	for _, iface := range ifaces {
		for _, a := range iface.Addrs {
			addrs = append(addrs, a.Addr)
		}
	}
	return addrs
}

func firstEligible(addrs []string) string {
	for _, a := range addrs {
		if isEligibleIPv4(a) {
			return a
		}
	}
	return ""
}

func isEligibleIPv4(addr string) bool {
	if strings.Contains(addr, ":") {
		return false // skip IPv6
	}
	if strings.HasPrefix(addr, "127.") || strings.HasPrefix(addr, "169.254.") {
		return false
	}
	parts := strings.Split(addr, ".")
	return len(parts) == 4
}

// firstEligibleFromARP reads the kernel ARP table (/proc/net/arp) looking
// for the domain's MAC address, matching the first network-type
// interface's MAC in its XML descriptor.
func firstEligibleFromARP(d *hypervisor.Domain) string {
	mac := firstInterfaceMAC(d)
	if mac == "" {
		return ""
	}

	f, err := os.Open("/proc/net/arp")
	if err != nil {
		return ""
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Scan() // header line
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 4 {
			continue
		}
		ip, hwAddr := fields[0], fields[3]
		if strings.EqualFold(hwAddr, mac) && isEligibleIPv4(ip) {
			return ip
		}
	}
	return ""
}

func firstInterfaceMAC(d *hypervisor.Domain) string {
	for _, iface := range d.Descriptor.Devices.Interfaces {
		if iface.Source != nil && iface.Source.Network != nil && iface.MAC != nil {
			return iface.MAC.Address
		}
	}
	return ""
}
