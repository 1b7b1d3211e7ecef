// Copyright (c) 2019 Jonas R. <joroec@gmx.net>
// Licensed under the MIT License. You have obtained a copy of the License at
// the "LICENSE" file in this repository.

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	require.Equal(t, "qemu:///system", cfg.HypervisorURI)
	require.Equal(t, 10*time.Second, cfg.SSHConnectTimeout)
	require.Equal(t, 5, cfg.SnapshotKeepCount)
	require.Equal(t, 3, cfg.SnapshotHashCollisionRetries)
	require.Equal(t, 100, cfg.DefaultChallengeScore)
	require.True(t, cfg.PermissionRepairEnabled)
	require.Equal(t, "libvirt-qemu:libvirt", cfg.HypervisorOwner)
	require.Equal(t, "libvirtd", cfg.LibvirtdServiceName)
	require.False(t, cfg.StrictHostKeyChecking)
}

func TestDefaultReturnsIndependentValues(t *testing.T) {
	a := Default()
	b := Default()

	a.HypervisorURI = "test:///session"
	require.Equal(t, "qemu:///system", b.HypervisorURI, "Default() must not share state across callers")
}
