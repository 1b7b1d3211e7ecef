// Copyright (c) 2019 Jonas R. <joroec@gmx.net>
// Licensed under the MIT License. You have obtained a copy of the License at
// the "LICENSE" file in this repository.

package errs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVMNotFound(t *testing.T) {
	cause := errors.New("no domain")
	err := NewVMNotFound("testing-vm", cause)

	require.Error(t, err)
	require.Contains(t, err.Error(), "testing-vm")

	var vmErr *VMNotFound
	require.True(t, errors.As(err, &vmErr))
	require.Equal(t, "testing-vm", vmErr.Context()["vm_name"])
}

func TestValidationFailureReasons(t *testing.T) {
	err := NewValidationFailure("reason one", "reason two")

	require.Error(t, err)
	require.Equal(t, []string{"reason one", "reason two"}, err.Reasons)
}

func TestContextPropagation(t *testing.T) {
	ctx := Context{"vm": "testing-vm", "snapshot": "snap1"}
	err := NewSnapshotOperationError("could not create snapshot", nil, ctx)

	require.Equal(t, "testing-vm", err.Context()["vm"])
	require.Equal(t, "snap1", err.Context()["snapshot"])
}

func TestConfigurationErrorHasNoCause(t *testing.T) {
	err := NewConfigurationError("bad key path", nil)
	require.Error(t, err)
	require.Nil(t, err.Unwrap())
}
