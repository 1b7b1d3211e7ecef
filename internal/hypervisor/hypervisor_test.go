// Copyright (c) 2019 Jonas R. <joroec@gmx.net>
// Licensed under the MIT License. You have obtained a copy of the License at
// the "LICENSE" file in this repository.

package hypervisor

import (
	"errors"
	"testing"

	"github.com/libvirt/libvirt-go"
	"github.com/stretchr/testify/require"
)

func TestStateString(t *testing.T) {
	cases := map[libvirt.DomainState]string{
		libvirt.DOMAIN_RUNNING:     "running",
		libvirt.DOMAIN_BLOCKED:     "blocked",
		libvirt.DOMAIN_PAUSED:      "paused",
		libvirt.DOMAIN_SHUTDOWN:    "shutting down",
		libvirt.DOMAIN_SHUTOFF:     "shut off",
		libvirt.DOMAIN_CRASHED:     "crashed",
		libvirt.DOMAIN_PMSUSPENDED: "suspended",
		libvirt.DOMAIN_NOSTATE:     "no state",
	}
	for state, want := range cases {
		require.Equal(t, want, stateString(state))
	}
}

func TestIsNoDomain(t *testing.T) {
	require.True(t, isNoDomain(libvirt.Error{Code: libvirt.ERR_NO_DOMAIN}))
	require.False(t, isNoDomain(libvirt.Error{Code: libvirt.ERR_OPERATION_INVALID}))
	require.False(t, isNoDomain(errors.New("not a libvirt error")))
}

func TestLibvirtErrorCode(t *testing.T) {
	require.Equal(t, int(libvirt.ERR_NO_DOMAIN), libvirtErrorCode(libvirt.Error{Code: libvirt.ERR_NO_DOMAIN}))
	require.Equal(t, -1, libvirtErrorCode(errors.New("not a libvirt error")))
}
