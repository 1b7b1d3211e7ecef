// Copyright (c) 2019 Jonas R. <joroec@gmx.net>
// Licensed under the MIT License. You have obtained a copy of the License at
// the "LICENSE" file in this repository.

package snapshot

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOverlayPathSiblingOfBase(t *testing.T) {
	path := overlayPath("/var/lib/libvirt/images/lab01.qcow2", "snap1", 1)
	require.Equal(t, filepath.Dir(path), "/var/lib/libvirt/images")
	require.True(t, strings.HasPrefix(filepath.Base(path), "lab01."))
	require.True(t, strings.HasSuffix(path, ".overlay.qcow2"))
}

func TestOverlayPathDeterministicPerInput(t *testing.T) {
	a := overlayPath("/images/lab01.qcow2", "snap1", 42)
	b := overlayPath("/images/lab01.qcow2", "snap1", 42)
	require.Equal(t, a, b, "same base/name/nonce must produce the same overlay path")
}

func TestOverlayPathChangesWithNonce(t *testing.T) {
	a := overlayPath("/images/lab01.qcow2", "snap1", 1)
	b := overlayPath("/images/lab01.qcow2", "snap1", 2)
	require.NotEqual(t, a, b, "a fresh nonce must produce a different overlay path for collision retry")
}
