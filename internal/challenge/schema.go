// Copyright (c) 2019 Jonas R. <joroec@gmx.net>
// Licensed under the MIT License. You have obtained a copy of the License at
// the "LICENSE" file in this repository.

package challenge

import "fmt"

// validateStepFields checks the per-type required/allowed parameter keys for
// a single setup or validation step, grounded on challenge.py's
// _validate_steps_list per-type branches.
func validateStepFields(step map[interface{}]interface{}, stepType, listKind, label string) []string {
	var errors []string

	require := func(key string) {
		if _, ok := step[key]; !ok {
			errors = append(errors, fmt.Sprintf("%s (type=%s): missing required key %q", label, stepType, key))
		}
	}

	switch stepType {
	case "run_command":
		require("command")
		if listKind != "setup" {
			if sc, ok := step["success_criteria"]; ok {
				if _, isMap := sc.(map[interface{}]interface{}); !isMap {
					errors = append(errors, fmt.Sprintf("%s: 'success_criteria' must be a mapping", label))
				}
			}
		}

	case "ensure_package_installed":
		require("package")

	case "check_service_status":
		require("service")
		require("expected_status")

	case "check_port_listening":
		require("port")
		require("expected_state")
		if v, ok := step["port"]; ok {
			port := toInt(v, -1)
			if port <= 0 || port >= 65536 {
				errors = append(errors, fmt.Sprintf("%s: 'port' must be between 1 and 65535, was %v", label, v))
			}
		}

	case "check_file_exists":
		require("path")

	case "check_file_contains":
		require("path")
		if _, hasText := step["text"]; !hasText {
			if _, hasRe := step["matches_regex"]; !hasRe {
				errors = append(errors, fmt.Sprintf("%s: requires 'text' or 'matches_regex'", label))
			}
		}

	case "check_lvm_state":
		require("check_type")
		ct, _ := step["check_type"].(string)
		switch ct {
		case "pv_exists":
			require("device")
		case "vg_exists", "lv_exists", "lv_size":
			require("vg_name")
			if ct == "lv_exists" || ct == "lv_size" {
				require("lv_name")
			}
		case "":
			// already reported missing check_type
		default:
			errors = append(errors, fmt.Sprintf("%s: unsupported check_type %q", label, ct))
		}

	case "check_process":
		require("process_name")

	case "check_history":
		_, hasDisallowed := step["disallowed_commands"]
		_, hasPattern := step["command_pattern"]
		if !hasDisallowed && !hasPattern {
			errors = append(errors, fmt.Sprintf("%s: requires 'disallowed_commands' or 'command_pattern'", label))
		}

	case "check_journalctl":
		// since/service/syslog_identifier/command_name/message_pattern are all optional.

	case "check_audit_log":
		require("rule_key")
	}

	return errors
}
