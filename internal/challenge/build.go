// Copyright (c) 2019 Jonas R. <joroec@gmx.net>
// Licensed under the MIT License. You have obtained a copy of the License at
// the "LICENSE" file in this repository.

package challenge

import (
	"github.com/joroec/pvmctl/internal/config"
	"github.com/joroec/pvmctl/internal/validate"
)

// buildDocument converts a structurally-valid rawDoc into a typed Document,
// applying the defaulting pass challenge.py performs on load: score 100,
// distro_compatibility ["Any"], and hint cost normalized to max(0, cost).
func buildDocument(data rawDoc, cfg *config.Config) *Document {
	d := &Document{
		ID:           str(data["id"]),
		Name:         str(data["name"]),
		Description:  str(data["description"]),
		Category:     str(data["category"]),
		Difficulty:   str(data["difficulty"]),
		Score:        cfg.DefaultChallengeScore,
		Flag:         str(data["flag"]),
		SolutionFile: str(data["solution_file"]),
	}

	if v, ok := data["score"]; ok {
		d.Score = toInt(v, cfg.DefaultChallengeScore)
	}
	if v, ok := data["estimated_time_mins"]; ok {
		d.EstimatedTimeMins = toInt(v, 0)
	}
	if v, ok := data["concepts"]; ok {
		d.Concepts = strList(v)
	}
	if v, ok := data["objective_refs"]; ok {
		d.ObjectiveRefs = strList(v)
	}
	if v, ok := data["distro_compatibility"]; ok {
		d.DistroCompatibility = strList(v)
	}
	if len(d.DistroCompatibility) == 0 {
		d.DistroCompatibility = []string{"Any"}
	}
	if v, ok := data["user_action_simulation"]; ok {
		d.UserActionSimulation = str(v)
	}

	if v, ok := data["setup"]; ok {
		d.Setup = buildSetupSteps(toMapList(v))
	}

	if v, ok := data["validation"]; ok {
		d.Validation = buildProbes(toMapList(v))
		d.UsesSplitValidation = false
	} else {
		d.UsesSplitValidation = true
		if v, ok := data["final_state_checks"]; ok {
			d.FinalStateChecks = buildProbes(toMapList(v))
		}
		if v, ok := data["process_validation_checks"]; ok {
			d.ProcessValidationChecks = buildProbes(toMapList(v))
		}
	}

	if v, ok := data["hints"]; ok {
		for _, hv := range toMapList(v) {
			cost := toInt(hv["cost"], 0)
			if cost < 0 {
				cost = 0
			}
			d.Hints = append(d.Hints, Hint{Text: str(hv["text"]), Cost: cost})
		}
	}

	return d
}

func buildSetupSteps(steps []map[interface{}]interface{}) []SetupStep {
	out := make([]SetupStep, 0, len(steps))
	for _, s := range steps {
		out = append(out, SetupStep{
			Type:        str(s["type"]),
			Command:     str(s["command"]),
			UserContext: str(s["user_context"]),
			Package:     str(s["package"]),
			ManagerType: str(s["manager_type"]),
			UpdateCache: toBool(s["update_cache"]),
		})
	}
	return out
}

func buildProbes(steps []map[interface{}]interface{}) []validate.Probe {
	out := make([]validate.Probe, 0, len(steps))
	for _, s := range steps {
		p := validate.Probe{
			Type:             str(s["type"]),
			Command:          str(s["command"]),
			Service:          str(s["service"]),
			ExpectedStatus:   str(s["expected_status"]),
			Port:             toInt(s["port"], 0),
			Protocol:         str(s["protocol"]),
			Address:          str(s["address"]),
			Path:             str(s["path"]),
			FileType:         str(s["file_type"]),
			Owner:            str(s["owner"]),
			Group:            str(s["group"]),
			Permissions:      str(s["permissions"]),
			Text:             str(s["text"]),
			MatchesRe:        str(s["matches_regex"]),
			CheckType:        str(s["check_type"]),
			Device:           str(s["device"]),
			VGName:           str(s["vg_name"]),
			LVName:           str(s["lv_name"]),
			ProcessName:      str(s["process_name"]),
			PIDFile:          str(s["pid_file"]),
			CommandPattern:   str(s["command_pattern"]),
			ExpectedCount:    str(s["expected_count"]),
			HistoryCommand:   str(s["history_command"]),
			SyslogIdentifier: str(s["syslog_identifier"]),
			CommandName:      str(s["command_name"]),
			MessagePattern:   str(s["message_pattern"]),
			Since:            str(s["since"]),
			RuleKey:          str(s["rule_key"]),
		}
		if v, ok := s["disallowed_commands"]; ok {
			p.DisallowedCommands = strList(v)
		}
		if v, ok := s["check_enabled"]; ok {
			b := toBool(v)
			p.CheckEnabled = &b
		}
		if v, ok := s["expected_state"]; ok {
			b := toBool(v)
			p.ExpectedState = &b
		}
		if v, ok := s["min_size_mb"]; ok {
			f := toFloat(v)
			p.MinSizeMB = &f
		}
		if v, ok := s["max_size_mb"]; ok {
			f := toFloat(v)
			p.MaxSizeMB = &f
		}
		if v, ok := s["exact_size_mb"]; ok {
			f := toFloat(v)
			p.ExactSizeMB = &f
		}
		if sc, ok := s["success_criteria"].(map[interface{}]interface{}); ok {
			p.SuccessCriteria = buildSuccessCriteria(sc)
		}
		out = append(out, p)
	}
	return out
}

func buildSuccessCriteria(sc map[interface{}]interface{}) validate.SuccessCriteria {
	var c validate.SuccessCriteria
	if v, ok := sc["exit_status"]; ok {
		n := toInt(v, 0)
		c.ExitStatus = &n
	}
	if v, ok := sc["stdout_equals"]; ok {
		s := str(v)
		c.StdoutEquals = &s
	}
	if v, ok := sc["stdout_contains"]; ok {
		s := str(v)
		c.StdoutContains = &s
	}
	if v, ok := sc["stdout_matches_regex"]; ok {
		s := str(v)
		c.StdoutMatchesRe = &s
	}
	if v, ok := sc["stderr_empty"]; ok {
		b := toBool(v)
		c.StderrEmpty = &b
	}
	if v, ok := sc["stderr_contains"]; ok {
		s := str(v)
		c.StderrContains = &s
	}
	if v, ok := sc["stdout_empty"]; ok {
		b := toBool(v)
		c.StdoutEmpty = &b
	}
	return c
}

// --- loose YAML scalar coercion helpers -------------------------------------

func str(v interface{}) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func toInt(v interface{}, fallback int) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return fallback
	}
}

func toFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}

func toBool(v interface{}) bool {
	b, _ := v.(bool)
	return b
}

func strList(v interface{}) []string {
	items, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func toMapList(v interface{}) []map[interface{}]interface{} {
	items, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]map[interface{}]interface{}, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[interface{}]interface{}); ok {
			out = append(out, m)
		}
	}
	return out
}
