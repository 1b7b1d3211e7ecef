// Copyright (c) 2019 Jonas R. <joroec@gmx.net>
// Licensed under the MIT License. You have obtained a copy of the License at
// the "LICENSE" file in this repository.

package netssh

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsAuthFailure(t *testing.T) {
	require.True(t, isAuthFailure(errors.New("ssh: handshake failed: unable to authenticate")))
	require.False(t, isAuthFailure(errors.New("dial tcp 10.0.0.5:22: connect: connection refused")))
	require.False(t, isAuthFailure(errors.New("dial tcp: i/o timeout")))
}
