// Copyright (c) 2019 Jonas R. <joroec@gmx.net>
// Licensed under the MIT License. You have obtained a copy of the License at
// the "LICENSE" file in this repository.

// Package agent is the Guest Agent Client (C2): it sends JSON-framed
// commands to the in-guest agent over libvirt's side channel, used for
// filesystem freeze/thaw and network-interface inventory. Agent absence is
// a normal, expected condition - it degrades snapshot consistency but never
// aborts a run on its own.
package agent

import (
	"encoding/json"
	"fmt"

	"github.com/libvirt/libvirt-go"

	"github.com/joroec/pvmctl/internal/hypervisor"
)

// response mirrors the guest agent's two possible JSON shapes:
// {"return": <value>} or {"error": {"class": ..., "desc": ...}}.
type response struct {
	Return json.RawMessage `json:"return"`
	Error  *agentError     `json:"error"`
}

type agentError struct {
	Class string `json:"class"`
	Desc  string `json:"desc"`
}

// Send issues jsonCommand against domain's guest agent and returns the
// parsed "return" payload. It returns (nil, nil) when the agent is missing
// or unresponsive - an expected condition in many environments, not an
// error. A structured error reply from the agent is logged and also
// returns (nil, nil): the caller degrades rather than aborts.
func Send(d *hypervisor.Domain, jsonCommand string, timeoutSeconds int) (map[string]interface{}, error) {
	raw, err := d.Instance.QemuAgentCommand(jsonCommand, libvirt.DomainQemuAgentCommandTimeout(timeoutSeconds), 0)
	if err != nil {
		hypervisor.Logger.Debugf("guest agent unreachable for domain %q: %v", d.Descriptor.Name, err)
		return nil, nil
	}

	var resp response
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		hypervisor.Logger.Warnf("could not parse guest agent response for %q: %v", d.Descriptor.Name, err)
		return nil, nil
	}

	if resp.Error != nil {
		hypervisor.Logger.Warnf("guest agent reported an error for %q: %s: %s",
			d.Descriptor.Name, resp.Error.Class, resp.Error.Desc)
		return nil, nil
	}

	if len(resp.Return) == 0 {
		return map[string]interface{}{}, nil
	}

	var payload interface{}
	if err := json.Unmarshal(resp.Return, &payload); err != nil {
		hypervisor.Logger.Warnf("could not parse guest agent return payload for %q: %v", d.Descriptor.Name, err)
		return nil, nil
	}

	if m, ok := payload.(map[string]interface{}); ok {
		return m, nil
	}
	// Non-object payloads (e.g. an array from guest-network-get-interfaces)
	// are wrapped so the signature stays uniform for simple commands; array
	// responses are unmarshalled directly by Interfaces below instead.
	return map[string]interface{}{"value": payload}, nil
}

// FsFreeze issues guest-fsfreeze-freeze and reports whether the guest
// replied with a frozen-filesystem count of zero or more.
func FsFreeze(d *hypervisor.Domain, timeoutSeconds int) (bool, error) {
	resp, err := Send(d, `{"execute":"guest-fsfreeze-freeze"}`, timeoutSeconds)
	if err != nil || resp == nil {
		return false, err
	}
	frozen, ok := resp["value"]
	if !ok {
		// the agent returns {"return": <int>} directly for this command
		return false, nil
	}
	n, ok := frozen.(float64)
	return ok && n >= 0, nil
}

// FsThaw issues guest-fsfreeze-thaw. Must always be called if FsFreeze
// returned true; a failed thaw is a critical, operator-visible condition
// because guest filesystems may be left stuck frozen.
func FsThaw(d *hypervisor.Domain, timeoutSeconds int) (bool, error) {
	resp, err := Send(d, `{"execute":"guest-fsfreeze-thaw"}`, timeoutSeconds)
	if err != nil {
		return false, err
	}
	return resp != nil, nil
}

// Interface describes one guest network interface as reported by either
// libvirt's interfaceAddresses API or the guest-network-get-interfaces
// fallback.
type Interface struct {
	Name      string
	Addresses []string
}

// Interfaces inventories guest network interfaces, preferring libvirt's
// interfaceAddresses with the agent source and falling back to a direct
// guest-network-get-interfaces JSON command.
func Interfaces(d *hypervisor.Domain, timeoutSeconds int) ([]Interface, error) {
	ifaces, err := d.Instance.ListAllInterfaceAddresses(libvirt.DOMAIN_INTERFACE_ADDRESSES_SRC_AGENT)
	if err == nil && len(ifaces) > 0 {
		result := make([]Interface, 0, len(ifaces))
		for _, iface := range ifaces {
			addrs := make([]string, 0, len(iface.Addrs))
			for _, a := range iface.Addrs {
				addrs = append(addrs, a.Addr)
			}
			result = append(result, Interface{Name: iface.Name, Addresses: addrs})
		}
		return result, nil
	}

	raw, err := d.Instance.QemuAgentCommand(`{"execute":"guest-network-get-interfaces"}`,
		libvirt.DomainQemuAgentCommandTimeout(timeoutSeconds), 0)
	if err != nil {
		// agent unreachable; degrade to "no interfaces found this way"
		return nil, nil
	}

	var resp struct {
		Return []struct {
			Name        string `json:"name"`
			IPAddresses []struct {
				Address string `json:"ip-address"`
			} `json:"ip-addresses"`
		} `json:"return"`
		Error *agentError `json:"error"`
	}
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, fmt.Errorf("could not parse guest-network-get-interfaces response: %w", err)
	}
	if resp.Error != nil {
		hypervisor.Logger.Warnf("guest-network-get-interfaces error for %q: %s: %s",
			d.Descriptor.Name, resp.Error.Class, resp.Error.Desc)
		return nil, nil
	}

	result := make([]Interface, 0, len(resp.Return))
	for _, r := range resp.Return {
		addrs := make([]string, 0, len(r.IPAddresses))
		for _, a := range r.IPAddresses {
			addrs = append(addrs, a.Address)
		}
		result = append(result, Interface{Name: r.Name, Addresses: addrs})
	}
	return result, nil
}
