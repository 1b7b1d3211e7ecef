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

	"github.com/joroec/pvmctl/internal/errs"
	"github.com/joroec/pvmctl/internal/netssh"
)

// handler runs one probe type and returns the failure reasons found, or nil
// on pass. Handlers never return a Go error for a probe failure - only for
// a transport fault, which Execute returns unchanged from the Runner.
type handler func(runner Runner, target Target, p Probe, timeout time.Duration) ([]string, error)

var dispatch = map[string]handler{
	"run_command":          runCommand,
	"check_service_status": checkServiceStatus,
	"check_port_listening": checkPortListening,
	"check_file_exists":    checkFileExists,
	"check_file_contains":  checkFileContains,
	"check_lvm_state":      checkLVMState,
	"check_process":        checkProcess,
	"check_history":        checkHistory,
	"check_journalctl":     checkJournalctl,
	"check_audit_log":      checkAuditLog,
}

// Execute runs one probe and returns nil on success or
// *errs.ValidationFailure on failure, per §4.5's contract.
func Execute(runner Runner, target Target, p Probe, timeout time.Duration) error {
	h, ok := dispatch[p.Type]
	if !ok {
		return errs.NewValidationFailure(fmt.Sprintf("unsupported probe type %q", p.Type))
	}

	reasons, err := h(runner, target, p, timeout)
	if err != nil {
		return err
	}
	if len(reasons) > 0 {
		return errs.NewValidationFailure(reasons...)
	}
	return nil
}

// shQuote single-quotes s for safe interpolation into a remote shell
// command line, per §4.5's "all shell arguments derived from probe fields
// MUST be shell-quoted" requirement.
func shQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func run(runner Runner, target Target, command string, timeout time.Duration) (netssh.Result, error) {
	res, err := runner.RunCommand(target.Host, target.User, target.KeyPath, command, nil, timeout)
	if err != nil {
		return res, err
	}
	return res, nil
}

// --- run_command ------------------------------------------------------

func runCommand(runner Runner, target Target, p Probe, timeout time.Duration) ([]string, error) {
	res, err := run(runner, target, p.Command, timeout)
	if err != nil {
		return nil, err
	}

	var reasons []string
	sc := p.SuccessCriteria

	wantExit := 0
	if sc.ExitStatus != nil {
		wantExit = *sc.ExitStatus
	}
	if res.ExitStatus != wantExit {
		reasons = append(reasons, fmt.Sprintf(
			"Expected exit status %d, but was %d.", wantExit, res.ExitStatus))
	}

	if sc.StdoutEquals != nil && res.Stdout != *sc.StdoutEquals {
		reasons = append(reasons, fmt.Sprintf(
			"Expected stdout to equal %q, but was %q.", *sc.StdoutEquals, res.Stdout))
	}
	if sc.StdoutContains != nil && !strings.Contains(res.Stdout, *sc.StdoutContains) {
		reasons = append(reasons, fmt.Sprintf(
			"Expected stdout to contain %q, but it did not.", *sc.StdoutContains))
	}
	if sc.StdoutMatchesRe != nil {
		re, reErr := regexp.Compile(*sc.StdoutMatchesRe)
		if reErr != nil {
			reasons = append(reasons, fmt.Sprintf("Invalid regex %q: %v", *sc.StdoutMatchesRe, reErr))
		} else if !re.MatchString(res.Stdout) {
			reasons = append(reasons, fmt.Sprintf(
				"Expected stdout to match regex %q, but it did not.", *sc.StdoutMatchesRe))
		}
	}
	if sc.StdoutEmpty != nil {
		if *sc.StdoutEmpty && res.Stdout != "" {
			reasons = append(reasons, "Expected stdout to be empty, but it was not.")
		} else if !*sc.StdoutEmpty && res.Stdout == "" {
			reasons = append(reasons, "Expected stdout to be non-empty, but it was empty.")
		}
	}
	if sc.StderrEmpty != nil {
		if *sc.StderrEmpty && res.Stderr != "" {
			reasons = append(reasons, "Expected stderr to be empty, but it was not.")
		} else if !*sc.StderrEmpty && res.Stderr == "" {
			reasons = append(reasons, "Expected stderr to be non-empty, but it was empty.")
		}
	}
	if sc.StderrContains != nil && !strings.Contains(res.Stderr, *sc.StderrContains) {
		reasons = append(reasons, fmt.Sprintf(
			"Expected stderr to contain %q, but it did not.", *sc.StderrContains))
	}

	return reasons, nil
}

// --- check_service_status ----------------------------------------------

func checkServiceStatus(runner Runner, target Target, p Probe, timeout time.Duration) ([]string, error) {
	cmd := fmt.Sprintf("systemctl is-active %s", shQuote(p.Service))
	res, err := run(runner, target, cmd, timeout)
	if err != nil {
		return nil, err
	}

	var actual string
	switch res.ExitStatus {
	case 0:
		actual = "active"
	case 3:
		actual = "inactive"
	default:
		actual = "failed"
	}

	var reasons []string
	if actual != p.ExpectedStatus {
		reasons = append(reasons, fmt.Sprintf(
			"Expected service status '%s', but was '%s' (is-active exit code: %d).",
			p.ExpectedStatus, actual, res.ExitStatus))
	}

	if p.CheckEnabled != nil {
		enCmd := fmt.Sprintf("systemctl is-enabled %s", shQuote(p.Service))
		enRes, err := run(runner, target, enCmd, timeout)
		if err != nil {
			return nil, err
		}
		enabled := enRes.ExitStatus == 0
		if enabled != *p.CheckEnabled {
			reasons = append(reasons, fmt.Sprintf(
				"Expected service enabled=%t, but was %t (is-enabled exit code: %d).",
				*p.CheckEnabled, enabled, enRes.ExitStatus))
		}
	}

	return reasons, nil
}

// --- check_port_listening -----------------------------------------------

func checkPortListening(runner Runner, target Target, p Probe, timeout time.Duration) ([]string, error) {
	protocol := p.Protocol
	if protocol == "" {
		protocol = "tcp"
	}
	flag := "t"
	if protocol == "udp" {
		flag = "u"
	}

	cmd := fmt.Sprintf("ss -nl%sp | awk '$1==\"LISTEN\" || $1==\"UNCONN\"'", flag)
	res, err := run(runner, target, cmd, timeout)
	if err != nil {
		return nil, err
	}

	found := false
	for _, line := range strings.Split(res.Stdout, "\n") {
		if lineMatchesPort(line, p.Port, p.Address) {
			found = true
			break
		}
	}

	expected := true
	if p.ExpectedState != nil {
		expected = *p.ExpectedState
	}

	if found != expected {
		return []string{fmt.Sprintf(
			"Expected port %d/%s listening=%t, but was %t.", p.Port, protocol, expected, found)}, nil
	}
	return nil, nil
}

func lineMatchesPort(line string, port int, address string) bool {
	fields := strings.Fields(line)
	if len(fields) < 4 {
		return false
	}
	localAddr := fields[3]
	idx := strings.LastIndex(localAddr, ":")
	if idx < 0 {
		return false
	}
	host, portStr := localAddr[:idx], localAddr[idx+1:]
	p, err := strconv.Atoi(portStr)
	if err != nil || p != port {
		return false
	}
	if address == "" {
		return true
	}
	if host == "*" || host == "0.0.0.0" || host == "::" {
		return true
	}
	return host == address
}

// --- check_file_exists ---------------------------------------------------

func checkFileExists(runner Runner, target Target, p Probe, timeout time.Duration) ([]string, error) {
	flag := "-e"
	switch p.FileType {
	case "file":
		flag = "-f"
	case "directory":
		flag = "-d"
	}

	cmd := fmt.Sprintf("test %s %s", flag, shQuote(p.Path))
	res, err := run(runner, target, cmd, timeout)
	if err != nil {
		return nil, err
	}
	exists := res.ExitStatus == 0

	expected := true
	if p.ExpectedState != nil {
		expected = *p.ExpectedState
	}

	if exists != expected {
		return []string{fmt.Sprintf(
			"Expected path '%s' existence=%t, but was %t.", p.Path, expected, exists)}, nil
	}
	if !exists {
		return nil, nil
	}

	var reasons []string
	if p.Owner != "" || p.Group != "" || p.Permissions != "" {
		statCmd := fmt.Sprintf("stat --format='%%U %%G %%a' %s", shQuote(p.Path))
		statRes, err := run(runner, target, statCmd, timeout)
		if err != nil {
			return nil, err
		}
		fields := strings.Fields(strings.TrimSpace(statRes.Stdout))
		if len(fields) != 3 {
			reasons = append(reasons, fmt.Sprintf("Could not stat '%s' to verify owner/group/permissions.", p.Path))
			return reasons, nil
		}
		owner, group, perms := fields[0], fields[1], fields[2]

		if p.Owner != "" && owner != p.Owner {
			reasons = append(reasons, fmt.Sprintf("Expected owner '%s' for '%s', but was '%s'.", p.Owner, p.Path, owner))
		}
		if p.Group != "" && group != p.Group {
			reasons = append(reasons, fmt.Sprintf("Expected group '%s' for '%s', but was '%s'.", p.Group, p.Path, group))
		}
		if p.Permissions != "" && !permsMatch(p.Permissions, perms) {
			reasons = append(reasons, fmt.Sprintf("Expected permissions '%s' for '%s', but was '%s'.", p.Permissions, p.Path, perms))
		}
	}

	return reasons, nil
}

func permsMatch(expected, actual string) bool {
	trim := func(s string) string {
		if len(s) > 3 {
			return s[len(s)-3:]
		}
		return s
	}
	return trim(expected) == trim(actual)
}

// --- check_file_contains --------------------------------------------------

func checkFileContains(runner Runner, target Target, p Probe, timeout time.Duration) ([]string, error) {
	readable, err := run(runner, target, fmt.Sprintf("test -r %s", shQuote(p.Path)), timeout)
	if err != nil {
		return nil, err
	}

	expected := true
	if p.ExpectedState != nil {
		expected = *p.ExpectedState
	}

	if readable.ExitStatus != 0 {
		// unreadable/missing file: expected_state=false passes per §8
		// boundary behavior; expected_state=true fails.
		if !expected {
			return nil, nil
		}
		return []string{fmt.Sprintf("File '%s' is not readable or does not exist.", p.Path)}, nil
	}

	var cmd string
	if p.MatchesRe != "" {
		cmd = fmt.Sprintf("grep -Eq %s %s", shQuote(p.MatchesRe), shQuote(p.Path))
	} else {
		cmd = fmt.Sprintf("grep -F %s %s", shQuote(p.Text), shQuote(p.Path))
	}

	res, err := run(runner, target, cmd, timeout)
	if err != nil {
		return nil, err
	}
	found := res.ExitStatus == 0

	if found != expected {
		if p.MatchesRe != "" {
			return []string{fmt.Sprintf(
				"Expected file '%s' to match regex '%s': %t, but was %t.", p.Path, p.MatchesRe, expected, found)}, nil
		}
		return []string{fmt.Sprintf(
			"Expected file '%s' to contain '%s': %t, but was %t.", p.Path, p.Text, expected, found)}, nil
	}
	return nil, nil
}

// --- check_process ---------------------------------------------------------

func checkProcess(runner Runner, target Target, p Probe, timeout time.Duration) ([]string, error) {
	cmd := fmt.Sprintf("pgrep -x %s", shQuote(p.ProcessName))
	res, err := run(runner, target, cmd, timeout)
	if err != nil {
		return nil, err
	}
	running := res.ExitStatus == 0
	expected := p.expectedStateOrDefaultTrue()

	var reasons []string
	if running != expected {
		reasons = append(reasons, fmt.Sprintf(
			"Expected process '%s' running=%t, but was %t.", p.ProcessName, expected, running))
	}

	if p.PIDFile != "" {
		pidRes, err := run(runner, target, fmt.Sprintf("test -e %s", shQuote(p.PIDFile)), timeout)
		if err != nil {
			return nil, err
		}
		exists := pidRes.ExitStatus == 0
		if exists != expected {
			reasons = append(reasons, fmt.Sprintf(
				"Expected PID file '%s' existence=%t, but was %t.", p.PIDFile, expected, exists))
		}
	}

	return reasons, nil
}
