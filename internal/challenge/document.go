// Copyright (c) 2019 Jonas R. <joroec@gmx.net>
// Licensed under the MIT License. You have obtained a copy of the License at
// the "LICENSE" file in this repository.

// Package challenge is the Challenge Engine (C6): it loads and
// schema-validates challenge documents and orchestrates a run: snapshot ->
// start -> setup -> user phase -> validation -> scoring -> cleanup.
package challenge

import "github.com/joroec/pvmctl/internal/validate"

// SetupStep is either run_command{command, user_context?} or
// ensure_package_installed{package, manager_type?, update_cache?}, per §3.
type SetupStep struct {
	Type string

	Command     string
	UserContext string

	Package     string
	ManagerType string
	UpdateCache bool
}

// Hint is a pre-authored text shown on user request; its cost reduces the
// achievable score once viewed.
type Hint struct {
	Text string
	Cost int
}

// Document is the in-memory shape of a loaded, schema-valid challenge, per
// §3 "Challenge document".
type Document struct {
	ID          string
	Name        string
	Description string
	Category    string
	Difficulty  string
	Score       int
	Concepts    []string

	Setup                   []SetupStep
	UserActionSimulation    string
	Validation              []validate.Probe
	FinalStateChecks        []validate.Probe
	ProcessValidationChecks []validate.Probe
	UsesSplitValidation     bool

	Hints []Hint
	Flag  string

	ObjectiveRefs       []string
	EstimatedTimeMins   int
	DistroCompatibility []string
	SolutionFile        string
}

// Probes returns the ordered probe list a run should execute, per §4.6
// step 8: validation if present, else final_state_checks followed by
// process_validation_checks.
func (d *Document) Probes() []validate.Probe {
	if !d.UsesSplitValidation {
		return d.Validation
	}
	out := make([]validate.Probe, 0, len(d.FinalStateChecks)+len(d.ProcessValidationChecks))
	out = append(out, d.FinalStateChecks...)
	out = append(out, d.ProcessValidationChecks...)
	return out
}
