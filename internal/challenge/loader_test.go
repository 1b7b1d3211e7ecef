// Copyright (c) 2019 Jonas R. <joroec@gmx.net>
// Licensed under the MIT License. You have obtained a copy of the License at
// the "LICENSE" file in this repository.

package challenge

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func validStep(stepType string, extra map[interface{}]interface{}) map[interface{}]interface{} {
	step := map[interface{}]interface{}{"type": stepType}
	for k, v := range extra {
		step[k] = v
	}
	return step
}

func TestValidateStructureAcceptsMinimalDocument(t *testing.T) {
	data := rawDoc{
		"id":          "break-the-firewall",
		"name":        "Break the Firewall",
		"description": "Disable the host firewall.",
		"validation": []interface{}{
			validStep("check_service_status", map[interface{}]interface{}{
				"service": "firewalld", "expected_status": "inactive",
			}),
		},
	}

	errors := validateStructure(data, "break-the-firewall.yaml")
	require.Empty(t, errors)
}

func TestValidateStructureRejectsUnknownTopLevelKey(t *testing.T) {
	data := rawDoc{
		"id":          "foo",
		"name":        "Foo",
		"description": "Foo challenge.",
		"bogus_field": true,
		"validation": []interface{}{
			validStep("run_command", map[interface{}]interface{}{"command": "true"}),
		},
	}

	errors := validateStructure(data, "foo.yaml")
	require.NotEmpty(t, errors)
	require.Contains(t, errors[0], "unknown top-level key")
}

func TestValidateStructureRejectsInvalidID(t *testing.T) {
	data := rawDoc{
		"id":          "not a valid id!",
		"name":        "Foo",
		"description": "Foo challenge.",
		"validation": []interface{}{
			validStep("run_command", map[interface{}]interface{}{"command": "true"}),
		},
	}

	errors := validateStructure(data, "foo.yaml")
	require.NotEmpty(t, errors)
	found := false
	for _, e := range errors {
		if e == `foo.yaml: 'id' field "not a valid id!" contains invalid characters; use only letters, numbers, hyphens, underscores, periods` {
			found = true
		}
	}
	require.True(t, found, "expected an invalid-id diagnostic, got %v", errors)
}

func TestValidateStructureRejectsValidationAndFinalStateTogether(t *testing.T) {
	data := rawDoc{
		"id":          "foo",
		"name":        "Foo",
		"description": "Foo challenge.",
		"validation": []interface{}{
			validStep("run_command", map[interface{}]interface{}{"command": "true"}),
		},
		"final_state_checks": []interface{}{
			validStep("check_file_exists", map[interface{}]interface{}{"path": "/tmp/x"}),
		},
	}

	errors := validateStructure(data, "foo.yaml")
	require.NotEmpty(t, errors)
	require.Contains(t, errors[0], "cannot use 'validation' together with")
}

func TestValidateStructureAcceptsSplitValidation(t *testing.T) {
	data := rawDoc{
		"id":          "foo",
		"name":        "Foo",
		"description": "Foo challenge.",
		"final_state_checks": []interface{}{
			validStep("check_file_exists", map[interface{}]interface{}{"path": "/tmp/x"}),
		},
		"process_validation_checks": []interface{}{
			validStep("check_process", map[interface{}]interface{}{"process_name": "sshd"}),
		},
	}

	errors := validateStructure(data, "foo.yaml")
	require.Empty(t, errors)
}

func TestValidateStructureRejectsProcessChecksWithoutFinalState(t *testing.T) {
	data := rawDoc{
		"id":          "foo",
		"name":        "Foo",
		"description": "Foo challenge.",
		"process_validation_checks": []interface{}{
			validStep("check_process", map[interface{}]interface{}{"process_name": "sshd"}),
		},
	}

	errors := validateStructure(data, "foo.yaml")
	require.NotEmpty(t, errors)
	require.Contains(t, errors[0], "requires 'final_state_checks'")
}

func TestValidateStructureAcceptsPortListeningWithoutProtocol(t *testing.T) {
	data := rawDoc{
		"id":          "foo",
		"name":        "Foo",
		"description": "Foo challenge.",
		"validation": []interface{}{
			validStep("check_port_listening", map[interface{}]interface{}{
				"port": 22, "expected_state": true,
			}),
		},
	}

	errors := validateStructure(data, "foo.yaml")
	require.Empty(t, errors, "protocol must be optional with a tcp default")
}

func TestValidateStructureRequiresExpectedStateForPortListening(t *testing.T) {
	data := rawDoc{
		"id":          "foo",
		"name":        "Foo",
		"description": "Foo challenge.",
		"validation": []interface{}{
			validStep("check_port_listening", map[interface{}]interface{}{"port": 22}),
		},
	}

	errors := validateStructure(data, "foo.yaml")
	require.NotEmpty(t, errors)
	found := false
	for _, e := range errors {
		if strings.Contains(e, "missing required key \"expected_state\"") {
			found = true
		}
	}
	require.True(t, found, "expected a missing expected_state diagnostic, got %v", errors)
}

func TestValidateStructureRejectsOutOfRangePort(t *testing.T) {
	for _, port := range []int{0, 65536} {
		data := rawDoc{
			"id":          "foo",
			"name":        "Foo",
			"description": "Foo challenge.",
			"validation": []interface{}{
				validStep("check_port_listening", map[interface{}]interface{}{
					"port": port, "expected_state": true,
				}),
			},
		}
		errors := validateStructure(data, "foo.yaml")
		require.NotEmpty(t, errors, "port %d must be rejected", port)
	}
}

func TestValidateStructureAcceptsBoundaryPorts(t *testing.T) {
	for _, port := range []int{1, 65535} {
		data := rawDoc{
			"id":          "foo",
			"name":        "Foo",
			"description": "Foo challenge.",
			"validation": []interface{}{
				validStep("check_port_listening", map[interface{}]interface{}{
					"port": port, "expected_state": true,
				}),
			},
		}
		errors := validateStructure(data, "foo.yaml")
		require.Empty(t, errors, "port %d must be accepted", port)
	}
}

func TestValidateStructureRejectsUnsupportedStepType(t *testing.T) {
	data := rawDoc{
		"id":          "foo",
		"name":        "Foo",
		"description": "Foo challenge.",
		"validation": []interface{}{
			validStep("check_nonsense", nil),
		},
	}

	errors := validateStructure(data, "foo.yaml")
	require.NotEmpty(t, errors)
	found := false
	for _, e := range errors {
		if e == `foo.yaml validation step 1: unsupported type "check_nonsense"` {
			found = true
		}
	}
	require.True(t, found, "expected an unsupported-type diagnostic, got %v", errors)
}
