// Copyright (c) 2019 Jonas R. <joroec@gmx.net>
// Licensed under the MIT License. You have obtained a copy of the License at
// the "LICENSE" file in this repository.

package challenge

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joroec/pvmctl/internal/config"
)

func TestBuildDocumentAppliesDefaults(t *testing.T) {
	data := rawDoc{
		"id":          "foo",
		"name":        "Foo",
		"description": "Foo challenge.",
		"validation": []interface{}{
			map[interface{}]interface{}{"type": "run_command", "command": "true"},
		},
	}

	doc := buildDocument(data, config.Default())

	require.Equal(t, "foo", doc.ID)
	require.Equal(t, config.Default().DefaultChallengeScore, doc.Score)
	require.Equal(t, []string{"Any"}, doc.DistroCompatibility)
	require.False(t, doc.UsesSplitValidation)
	require.Len(t, doc.Validation, 1)
	require.Equal(t, "run_command", doc.Validation[0].Type)
}

func TestBuildDocumentHonorsExplicitScoreAndDistro(t *testing.T) {
	data := rawDoc{
		"id":                   "foo",
		"name":                 "Foo",
		"description":          "Foo challenge.",
		"score":                50,
		"distro_compatibility": []interface{}{"RHEL", "Fedora"},
		"final_state_checks": []interface{}{
			map[interface{}]interface{}{"type": "check_file_exists", "path": "/tmp/x"},
		},
	}

	doc := buildDocument(data, config.Default())

	require.Equal(t, 50, doc.Score)
	require.Equal(t, []string{"RHEL", "Fedora"}, doc.DistroCompatibility)
	require.True(t, doc.UsesSplitValidation)
	require.Len(t, doc.FinalStateChecks, 1)
}

func TestBuildDocumentNormalizesNegativeHintCost(t *testing.T) {
	data := rawDoc{
		"id":          "foo",
		"name":        "Foo",
		"description": "Foo challenge.",
		"validation": []interface{}{
			map[interface{}]interface{}{"type": "run_command", "command": "true"},
		},
		"hints": []interface{}{
			map[interface{}]interface{}{"text": "look closer", "cost": -10},
		},
	}

	doc := buildDocument(data, config.Default())

	require.Len(t, doc.Hints, 1)
	require.Equal(t, "look closer", doc.Hints[0].Text)
	require.Equal(t, 0, doc.Hints[0].Cost)
}

func TestBuildProbesMapsOptionalPointerFields(t *testing.T) {
	steps := []map[interface{}]interface{}{
		{"type": "check_port_listening", "port": 22, "protocol": "tcp", "expected_state": true},
	}

	probes := buildProbes(steps)
	require.Len(t, probes, 1)
	require.NotNil(t, probes[0].ExpectedState)
	require.True(t, *probes[0].ExpectedState)
}

func TestToIntFallback(t *testing.T) {
	require.Equal(t, 5, toInt("not a number", 5))
	require.Equal(t, 3, toInt(3, 5))
	require.Equal(t, 4, toInt(4.0, 5))
}
