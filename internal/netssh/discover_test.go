// Copyright (c) 2019 Jonas R. <joroec@gmx.net>
// Licensed under the MIT License. You have obtained a copy of the License at
// the "LICENSE" file in this repository.

package netssh

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsEligibleIPv4(t *testing.T) {
	require.True(t, isEligibleIPv4("192.168.122.45"))
	require.False(t, isEligibleIPv4("127.0.0.1"), "loopback must be excluded")
	require.False(t, isEligibleIPv4("169.254.1.5"), "link-local must be excluded")
	require.False(t, isEligibleIPv4("fe80::1"), "IPv6 must be excluded")
	require.False(t, isEligibleIPv4("not-an-address"))
}

func TestFirstEligiblePicksFirstMatch(t *testing.T) {
	addrs := []string{"127.0.0.1", "169.254.3.4", "10.0.0.9", "10.0.0.10"}
	require.Equal(t, "10.0.0.9", firstEligible(addrs))
}

func TestFirstEligibleNoneMatch(t *testing.T) {
	addrs := []string{"127.0.0.1", "169.254.3.4"}
	require.Equal(t, "", firstEligible(addrs))
}
