// Copyright (c) 2019 Jonas R. <joroec@gmx.net>
// Licensed under the MIT License. You have obtained a copy of the License at
// the "LICENSE" file in this repository.

package challenge

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joroec/pvmctl/internal/validate"
)

func TestProbesUnsplitValidation(t *testing.T) {
	doc := &Document{
		UsesSplitValidation: false,
		Validation:          []validate.Probe{{Type: "run_command"}},
		FinalStateChecks:    []validate.Probe{{Type: "check_file_exists"}},
	}

	probes := doc.Probes()
	require.Len(t, probes, 1)
	require.Equal(t, "run_command", probes[0].Type)
}

func TestProbesSplitValidationOrder(t *testing.T) {
	doc := &Document{
		UsesSplitValidation:     true,
		FinalStateChecks:        []validate.Probe{{Type: "check_file_exists"}},
		ProcessValidationChecks: []validate.Probe{{Type: "check_process"}},
	}

	probes := doc.Probes()
	require.Len(t, probes, 2)
	require.Equal(t, "check_file_exists", probes[0].Type)
	require.Equal(t, "check_process", probes[1].Type)
}
