// Copyright (c) 2019 Jonas R. <joroec@gmx.net>
// Licensed under the MIT License. You have obtained a copy of the License at
// the "LICENSE" file in this repository.

// Package errs defines the error taxonomy shared across every component of
// the practice-environment engine. Every exported type implements error and
// carries a short message plus a structured context map so callers can
// switch on the underlying hypervisor/transport fault without string
// matching.
package errs

import (
	"fmt"

	"github.com/pkg/errors"
)

// Context is a free-form bag of structured fields attached to an engine
// error, e.g. {"vm_name": ..., "snapshot_name": ..., "hypervisor_code": ...}.
type Context map[string]interface{}

// taxonomyError is the shared shape behind every exported error type below.
// Kind distinguishes the taxonomy member for callers doing errors.As style
// dispatch without needing ten near-identical structs.
type taxonomyError struct {
	Kind    string
	Message string
	Ctx     Context
	cause   error
}

func (e *taxonomyError) Error() string {
	if e.Ctx == nil || len(e.Ctx) == 0 {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s %v", e.Kind, e.Message, e.Ctx)
}

func (e *taxonomyError) Unwrap() error {
	return e.cause
}

// Context returns the structured fields attached to the error.
func (e *taxonomyError) Context() Context {
	return e.Ctx
}

func newErr(kind, message string, cause error, ctx Context) *taxonomyError {
	if ctx == nil {
		ctx = Context{}
	}
	wrapped := cause
	if cause != nil {
		wrapped = errors.WithMessage(cause, message)
	}
	return &taxonomyError{Kind: kind, Message: message, Ctx: ctx, cause: wrapped}
}

// HypervisorConnectError indicates the hypervisor daemon was unreachable or
// the caller lacked permission to connect.
type HypervisorConnectError struct{ *taxonomyError }

// NewHypervisorConnectError builds a HypervisorConnectError.
func NewHypervisorConnectError(message string, cause error, ctx Context) *HypervisorConnectError {
	return &HypervisorConnectError{newErr("HypervisorConnectError", message, cause, ctx)}
}

// VMNotFound indicates a domain name was not known to the hypervisor.
type VMNotFound struct{ *taxonomyError }

// NewVMNotFound builds a VMNotFound.
func NewVMNotFound(name string, cause error) *VMNotFound {
	return &VMNotFound{newErr("VMNotFound", fmt.Sprintf("no such domain %q", name), cause, Context{"vm_name": name})}
}

// VMAccessError indicates a hypervisor fault other than "not found" while
// operating on a domain handle.
type VMAccessError struct{ *taxonomyError }

// NewVMAccessError builds a VMAccessError.
func NewVMAccessError(message string, cause error, ctx Context) *VMAccessError {
	return &VMAccessError{newErr("VMAccessError", message, cause, ctx)}
}

// SnapshotOperationError indicates a create/revert/delete snapshot operation
// failed in a way that was not locally recoverable.
type SnapshotOperationError struct{ *taxonomyError }

// NewSnapshotOperationError builds a SnapshotOperationError.
func NewSnapshotOperationError(message string, cause error, ctx Context) *SnapshotOperationError {
	return &SnapshotOperationError{newErr("SnapshotOperationError", message, cause, ctx)}
}

// AgentCommandError indicates a guest-agent JSON command failed.
type AgentCommandError struct{ *taxonomyError }

// NewAgentCommandError builds an AgentCommandError.
func NewAgentCommandError(message string, cause error, ctx Context) *AgentCommandError {
	return &AgentCommandError{newErr("AgentCommandError", message, cause, ctx)}
}

// NetworkError indicates address discovery or readiness waiting failed.
type NetworkError struct{ *taxonomyError }

// NewNetworkError builds a NetworkError.
func NewNetworkError(message string, cause error, ctx Context) *NetworkError {
	return &NetworkError{newErr("NetworkError", message, cause, ctx)}
}

// SSHCommandError indicates an SSH transport, auth, or serialization fault
// (never a remote non-zero exit, which is reported in the SSH result shape).
type SSHCommandError struct{ *taxonomyError }

// NewSSHCommandError builds an SSHCommandError.
func NewSSHCommandError(message string, cause error, ctx Context) *SSHCommandError {
	return &SSHCommandError{newErr("SSHCommandError", message, cause, ctx)}
}

// ChallengeLoadError indicates a challenge document or directory could not
// be read or parsed at all (schema violations are reported as diagnostics,
// not this error - see challenge.LoadDir).
type ChallengeLoadError struct{ *taxonomyError }

// NewChallengeLoadError builds a ChallengeLoadError.
func NewChallengeLoadError(message string, cause error, ctx Context) *ChallengeLoadError {
	return &ChallengeLoadError{newErr("ChallengeLoadError", message, cause, ctx)}
}

// ValidationFailure carries every reason a single probe failed. C6 halts the
// run on the first ValidationFailure it receives from C5.
type ValidationFailure struct {
	*taxonomyError
	Reasons []string
}

// NewValidationFailure builds a ValidationFailure from one or more reasons.
func NewValidationFailure(reasons ...string) *ValidationFailure {
	msg := "validation failed"
	if len(reasons) > 0 {
		msg = reasons[0]
	}
	return &ValidationFailure{
		taxonomyError: newErr("ValidationFailure", msg, nil, Context{"reasons": reasons}),
		Reasons:       reasons,
	}
}

// ConfigurationError indicates a construction-time misconfiguration (bad
// timeout, missing key path, etc.) rather than a runtime fault.
type ConfigurationError struct{ *taxonomyError }

// NewConfigurationError builds a ConfigurationError.
func NewConfigurationError(message string, ctx Context) *ConfigurationError {
	return &ConfigurationError{newErr("ConfigurationError", message, nil, ctx)}
}
