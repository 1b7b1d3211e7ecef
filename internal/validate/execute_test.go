// Copyright (c) 2019 Jonas R. <joroec@gmx.net>
// Licensed under the MIT License. You have obtained a copy of the License at
// the "LICENSE" file in this repository.

package validate

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/joroec/pvmctl/internal/errs"
	"github.com/joroec/pvmctl/internal/netssh"
)

// stubRunner answers RunCommand with a scripted result, by exact command
// match, for driving Execute without a real SSH target.
type stubRunner struct {
	byCommand map[string]netssh.Result
	err       error
}

func (s *stubRunner) RunCommand(host, user, keyPath, command string, stdin []byte, timeout time.Duration) (netssh.Result, error) {
	if s.err != nil {
		return netssh.Result{}, s.err
	}
	if res, ok := s.byCommand[command]; ok {
		return res, nil
	}
	return netssh.Result{ExitStatus: 1}, nil
}

var target = Target{Host: "10.0.0.5", User: "learner", KeyPath: "/tmp/key"}

func TestExecuteUnsupportedProbeType(t *testing.T) {
	err := Execute(&stubRunner{}, target, Probe{Type: "check_nonsense"}, time.Second)
	require.Error(t, err)

	var vf *errs.ValidationFailure
	require.True(t, errors.As(err, &vf))
}

func TestExecuteRunCommandPassesOnMatchingExitStatus(t *testing.T) {
	runner := &stubRunner{byCommand: map[string]netssh.Result{
		"true": {ExitStatus: 0},
	}}
	err := Execute(runner, target, Probe{Type: "run_command", Command: "true"}, time.Second)
	require.NoError(t, err)
}

func TestExecuteRunCommandFailsWithReasons(t *testing.T) {
	runner := &stubRunner{byCommand: map[string]netssh.Result{
		"false": {ExitStatus: 1},
	}}
	err := Execute(runner, target, Probe{Type: "run_command", Command: "false"}, time.Second)
	require.Error(t, err)

	var vf *errs.ValidationFailure
	require.True(t, errors.As(err, &vf))
	require.Len(t, vf.Reasons, 1)
	require.Contains(t, vf.Reasons[0], "Expected exit status 0")
}

func TestExecuteCheckServiceStatusActive(t *testing.T) {
	runner := &stubRunner{byCommand: map[string]netssh.Result{
		"systemctl is-active 'sshd'": {ExitStatus: 0},
	}}
	err := Execute(runner, target, Probe{
		Type: "check_service_status", Service: "sshd", ExpectedStatus: "active",
	}, time.Second)
	require.NoError(t, err)
}

func TestExecuteCheckServiceStatusMismatch(t *testing.T) {
	runner := &stubRunner{byCommand: map[string]netssh.Result{
		"systemctl is-active 'sshd'": {ExitStatus: 3},
	}}
	err := Execute(runner, target, Probe{
		Type: "check_service_status", Service: "sshd", ExpectedStatus: "active",
	}, time.Second)
	require.Error(t, err)

	var vf *errs.ValidationFailure
	require.True(t, errors.As(err, &vf))
	require.Contains(t, vf.Reasons[0], "inactive")
}

func TestExecutePropagatesTransportError(t *testing.T) {
	runner := &stubRunner{err: errs.NewSSHCommandError("dial failed", nil, nil)}
	err := Execute(runner, target, Probe{Type: "run_command", Command: "true"}, time.Second)
	require.Error(t, err)

	var vf *errs.ValidationFailure
	require.False(t, errors.As(err, &vf), "a transport fault must not be reported as a ValidationFailure")
}

func TestShQuoteEscapesSingleQuotes(t *testing.T) {
	require.Equal(t, `'it'\''s'`, shQuote("it's"))
	require.Equal(t, `'plain'`, shQuote("plain"))
}

func TestPermsMatchComparesLastThreeDigits(t *testing.T) {
	require.True(t, permsMatch("0644", "644"))
	require.True(t, permsMatch("644", "0644"))
	require.False(t, permsMatch("755", "644"))
}

func TestLineMatchesPort(t *testing.T) {
	// real `ss -nltp`/`ss -nlup` columns: State Recv-Q Send-Q Local-Address:Port Peer-Address:Port ...
	require.True(t, lineMatchesPort("LISTEN 0   128   0.0.0.0:22   0.0.0.0:*", 22, ""))
	require.True(t, lineMatchesPort("LISTEN 0   128   127.0.0.1:8080   0.0.0.0:*", 8080, "127.0.0.1"))
	require.False(t, lineMatchesPort("LISTEN 0   128   127.0.0.1:8080   0.0.0.0:*", 8080, "10.0.0.1"))
	require.False(t, lineMatchesPort("too short", 22, ""))
}
