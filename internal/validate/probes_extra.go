// Copyright (c) 2019 Jonas R. <joroec@gmx.net>
// Licensed under the MIT License. You have obtained a copy of the License at
// the "LICENSE" file in this repository.

package validate

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// --- check_lvm_state ------------------------------------------------------

func checkLVMState(runner Runner, target Target, p Probe, timeout time.Duration) ([]string, error) {
	expected := true
	if p.ExpectedState != nil {
		expected = *p.ExpectedState
	}

	switch p.CheckType {
	case "pv_exists":
		cmd := fmt.Sprintf("pvs --noheadings -o pv_name | grep -Fq %s", shQuote(p.Device))
		res, err := run(runner, target, cmd, timeout)
		if err != nil {
			return nil, err
		}
		found := res.ExitStatus == 0
		if found != expected {
			return []string{fmt.Sprintf("Expected physical volume '%s' exists=%t, but was %t.", p.Device, expected, found)}, nil
		}
		return nil, nil

	case "vg_exists":
		cmd := fmt.Sprintf("vgs --noheadings -o vg_name | grep -Fq %s", shQuote(p.VGName))
		res, err := run(runner, target, cmd, timeout)
		if err != nil {
			return nil, err
		}
		found := res.ExitStatus == 0
		if found != expected {
			return []string{fmt.Sprintf("Expected volume group '%s' exists=%t, but was %t.", p.VGName, expected, found)}, nil
		}
		return nil, nil

	case "lv_exists":
		cmd := fmt.Sprintf("lvs --noheadings -o lv_name %s | grep -Fq %s",
			shQuote(p.VGName), shQuote(p.LVName))
		res, err := run(runner, target, cmd, timeout)
		if err != nil {
			return nil, err
		}
		found := res.ExitStatus == 0
		if found != expected {
			return []string{fmt.Sprintf(
				"Expected logical volume '%s/%s' exists=%t, but was %t.", p.VGName, p.LVName, expected, found)}, nil
		}
		return nil, nil

	case "lv_size":
		cmd := fmt.Sprintf("lvs --noheadings --units m -o lv_size %s/%s",
			shQuote(p.VGName), shQuote(p.LVName))
		res, err := run(runner, target, cmd, timeout)
		if err != nil {
			return nil, err
		}
		if res.ExitStatus != 0 {
			return []string{fmt.Sprintf("Could not read size of logical volume '%s/%s'.", p.VGName, p.LVName)}, nil
		}
		sizeStr := strings.TrimSpace(res.Stdout)
		sizeStr = strings.TrimSuffix(sizeStr, "m")
		size, err := strconv.ParseFloat(sizeStr, 64)
		if err != nil {
			return []string{fmt.Sprintf("Could not parse size output '%s' for '%s/%s'.", sizeStr, p.VGName, p.LVName)}, nil
		}

		var reasons []string
		const tolerance = 0.1
		if p.ExactSizeMB != nil {
			if diff := size - *p.ExactSizeMB; diff > tolerance || diff < -tolerance {
				reasons = append(reasons, fmt.Sprintf(
					"Expected logical volume '%s/%s' size %.1f MB (+/-%.1f), but was %.1f MB.",
					p.VGName, p.LVName, *p.ExactSizeMB, tolerance, size))
			}
		}
		if p.MinSizeMB != nil && size < *p.MinSizeMB {
			reasons = append(reasons, fmt.Sprintf(
				"Expected logical volume '%s/%s' size >= %.1f MB, but was %.1f MB.",
				p.VGName, p.LVName, *p.MinSizeMB, size))
		}
		if p.MaxSizeMB != nil && size > *p.MaxSizeMB {
			reasons = append(reasons, fmt.Sprintf(
				"Expected logical volume '%s/%s' size <= %.1f MB, but was %.1f MB.",
				p.VGName, p.LVName, *p.MaxSizeMB, size))
		}
		return reasons, nil

	default:
		return []string{fmt.Sprintf("Unsupported LVM check_type '%s'.", p.CheckType)}, nil
	}
}

// --- check_history (advisory only, hard-failed per the spec's resolution
// of the source's soft/hard ambiguity - see DESIGN.md Open Questions) ------

func checkHistory(runner Runner, target Target, p Probe, timeout time.Duration) ([]string, error) {
	historyCmd := p.HistoryCommand
	if historyCmd == "" {
		historyCmd = "cat ~/.bash_history 2>/dev/null || history"
	}
	res, err := run(runner, target, historyCmd, timeout)
	if err != nil {
		return nil, err
	}
	lines := strings.Split(res.Stdout, "\n")

	if len(p.DisallowedCommands) > 0 {
		for _, pattern := range p.DisallowedCommands {
			re, reErr := regexp.Compile(pattern)
			if reErr != nil {
				return []string{fmt.Sprintf("(history is indicative only) invalid disallowed pattern '%s': %v", pattern, reErr)}, nil
			}
			for _, line := range lines {
				if re.MatchString(line) {
					return []string{fmt.Sprintf(
						"(history is indicative only) disallowed command pattern '%s' found in history.", pattern)}, nil
				}
			}
		}
		return nil, nil
	}

	if p.CommandPattern != "" {
		re, reErr := regexp.Compile(p.CommandPattern)
		if reErr != nil {
			return []string{fmt.Sprintf("(history is indicative only) invalid command_pattern '%s': %v", p.CommandPattern, reErr)}, nil
		}
		count := 0
		for _, line := range lines {
			if re.MatchString(line) {
				count++
			}
		}
		if !compareCount(count, p.ExpectedCount) {
			return []string{fmt.Sprintf(
				"(history is indicative only) expected command_pattern '%s' count %s, but was %d.",
				p.CommandPattern, p.ExpectedCount, count)}, nil
		}
	}

	return nil, nil
}

// --- check_journalctl ------------------------------------------------------

func checkJournalctl(runner Runner, target Target, p Probe, timeout time.Duration) ([]string, error) {
	since := p.Since
	if since == "" {
		since = "10 minutes ago"
	}

	var parts []string
	parts = append(parts, "journalctl", "--quiet", "--since", shQuote(since))
	if p.Service != "" {
		parts = append(parts, "-u", shQuote(p.Service))
	}
	if p.SyslogIdentifier != "" {
		parts = append(parts, "-t", shQuote(p.SyslogIdentifier))
	}
	if p.CommandName != "" {
		parts = append(parts, "_COMM="+shQuote(p.CommandName))
	}

	cmd := strings.Join(parts, " ")
	if p.MessagePattern != "" {
		cmd += " | grep -Eq " + shQuote(p.MessagePattern)
	}

	res, err := run(runner, target, cmd, timeout)
	if err != nil {
		return nil, err
	}
	found := res.ExitStatus == 0

	want := p.expectedStateOrDefaultTrue()
	if found != want {
		return []string{fmt.Sprintf("Expected journalctl match found=%t, but was %t.", want, found)}, nil
	}
	return nil, nil
}

func checkAuditLog(runner Runner, target Target, p Probe, timeout time.Duration) ([]string, error) {
	since := p.Since
	if since == "" {
		since = "recent"
	}
	cmd := fmt.Sprintf("ausearch --input-logs -k %s --start %s -c", shQuote(p.RuleKey), shQuote(since))
	res, err := run(runner, target, cmd, timeout)
	if err != nil {
		return nil, err
	}

	count := 0
	fields := strings.Fields(res.Stdout)
	if len(fields) > 0 {
		count, _ = strconv.Atoi(fields[len(fields)-1])
	}
	found := count > 0

	want := p.expectedStateOrDefaultTrue()
	if found != want {
		return []string{fmt.Sprintf(
			"Expected audit log matches for rule_key '%s' found=%t, but was %t (count=%d).",
			p.RuleKey, want, found, count)}, nil
	}
	return nil, nil
}

// expectedStateOrDefaultTrue implements the "expected_state?:bool=true"
// default shared by check_journalctl, check_audit_log and check_process.
func (p Probe) expectedStateOrDefaultTrue() bool {
	if p.ExpectedState != nil {
		return *p.ExpectedState
	}
	return true
}

// compareCount parses comparators of the form ">N|>=N|==N|N|<N|<=N|!=N"
// against count.
func compareCount(count int, comparator string) bool {
	if comparator == "" {
		return count > 0
	}
	ops := []string{">=", "<=", "==", "!=", ">", "<"}
	for _, op := range ops {
		if strings.HasPrefix(comparator, op) {
			n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(comparator, op)))
			if err != nil {
				return false
			}
			switch op {
			case ">=":
				return count >= n
			case "<=":
				return count <= n
			case "==":
				return count == n
			case "!=":
				return count != n
			case ">":
				return count > n
			case "<":
				return count < n
			}
		}
	}
	n, err := strconv.Atoi(strings.TrimSpace(comparator))
	if err != nil {
		return false
	}
	return count == n
}
