// Copyright (c) 2019 Jonas R. <joroec@gmx.net>
// Licensed under the MIT License. You have obtained a copy of the License at
// the "LICENSE" file in this repository.

// Package validate is the Validator Kernel (C5): it executes one typed
// validation step - a probe, drawn from a fixed, closed family - against a
// remote SSH target and reports pass or a list of failure reasons. The
// probe family is a closed tagged union; dispatch is a lookup table, never
// dynamic subclassing, and the validator never calls back into the engine.
package validate

import (
	"time"

	"github.com/joroec/pvmctl/internal/netssh"
)

// Probe is the tagged record described in §3 "Probe" and enumerated fully
// in §4.5. Type discriminates which fields are meaningful; unused fields
// for a given Type are simply left zero.
type Probe struct {
	Type string

	// run_command
	Command         string
	SuccessCriteria SuccessCriteria

	// check_service_status
	Service        string
	ExpectedStatus string
	CheckEnabled   *bool

	// check_port_listening
	Port          int
	Protocol      string
	ExpectedState *bool
	Address       string

	// check_file_exists / check_file_contains
	Path        string
	FileType    string
	Owner       string
	Group       string
	Permissions string
	Text        string
	MatchesRe   string

	// check_lvm_state
	CheckType   string
	Device      string
	VGName      string
	LVName      string
	MinSizeMB   *float64
	MaxSizeMB   *float64
	ExactSizeMB *float64

	// check_process
	ProcessName string
	PIDFile     string

	// check_history
	CommandPattern     string
	DisallowedCommands []string
	ExpectedCount      string
	HistoryCommand     string

	// check_journalctl
	SyslogIdentifier string
	CommandName      string
	MessagePattern   string
	Since            string

	// check_audit_log
	RuleKey string
}

// SuccessCriteria is run_command's optional criteria bag; a nil field means
// "not checked", except ExitStatus: when it is nil the exit status must be 0,
// whether or not other criteria are set.
type SuccessCriteria struct {
	ExitStatus      *int
	StdoutEquals    *string
	StdoutContains  *string
	StdoutMatchesRe *string
	StderrEmpty     *bool
	StderrContains  *string
	StdoutEmpty     *bool
}

// Target names the remote machine + credentials a probe runs against.
type Target struct {
	Host    string
	User    string
	KeyPath string
	Verbose bool
}

// Runner is anything that can execute a remote shell command. netssh.Driver
// satisfies it; tests supply a stub.
type Runner interface {
	RunCommand(host, user, keyPath, command string, stdin []byte, timeout time.Duration) (netssh.Result, error)
}
