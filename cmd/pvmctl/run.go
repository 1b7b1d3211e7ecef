// Copyright (c) 2019 Jonas R. <joroec@gmx.net>
// Licensed under the MIT License. You have obtained a copy of the License at
// the "LICENSE" file in this repository.

package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/joroec/pvmctl/internal/challenge"
	"github.com/joroec/pvmctl/internal/eventlog"
	"github.com/joroec/pvmctl/internal/hypervisor"
	"github.com/joroec/pvmctl/internal/netssh"
	instrumentlog "github.com/joroec/pvmctl/pkg/instrument/log"
)

var (
	sshUser      string
	sshKeyPath   string
	keepSnapshot bool
	hintsFlag    string
)

// runCmd is a global variable defining the corresponding cobra command.
var runCmd = &cobra.Command{
	Use:   "run <challenge-id> <vm-name>",
	Short: "Run a challenge against a virtual machine: snapshot, boot, setup, validate, score, revert.",
	Long: "Run snapshots the named virtual machine, boots it, applies the " +
		"challenge's setup steps over SSH, waits for the learner to act, " +
		"runs the challenge's validation probes, prints the score, and " +
		"reverts the machine to its pre-run snapshot.",
	Args: cobra.ExactArgs(2),
	Run:  runRun,
}

func init() {
	runCmd.Flags().StringVarP(&sshUser, "user", "u", "learner", "SSH user to connect as.")
	runCmd.Flags().StringVarP(&sshKeyPath, "key", "i", "~/.ssh/id_rsa", "SSH private key path.")
	runCmd.Flags().BoolVar(&keepSnapshot, "keep-snapshot", false,
		"do not delete the run's snapshot on cleanup")
	runCmd.Flags().StringVar(&hintsFlag, "hints", "",
		"comma-separated zero-based hint indexes viewed before validation")

	RootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) {
	log.Trace("Start execution of runRun function.")

	challengeID, vmName := args[0], args[1]

	docs, diagnostics, err := challenge.LoadDir(challengesDir, Cfg)
	if err != nil {
		log.WithError(err).Fatal("could not load challenges directory")
	}
	for _, d := range diagnostics {
		log.Warn(d)
	}
	doc, ok := docs[challengeID]
	if !ok {
		log.Fatalf("no challenge with id %q found in %q", challengeID, challengesDir)
	}

	keyPath, err := netssh.ValidateKey(sshKeyPath)
	if err != nil {
		log.WithError(err).Fatal("invalid SSH key")
	}

	gw, err := hypervisor.Connect(Cfg.HypervisorURI)
	if err != nil {
		log.WithError(err).Fatal("could not connect to the hypervisor")
	}
	defer gw.Close()

	events := eventlog.New(32)
	eventLogger, err := instrumentlog.Configuration{Level: "info", Encoding: "json"}.NewLogger()
	if err != nil {
		log.WithError(err).Fatal("could not build event logger")
	}
	go eventlog.WriteJSONLines(events, eventLogger.Sugar())

	eng := challenge.NewEngine(Cfg, gw, events)

	opts := challenge.RunOptions{
		VMName:            vmName,
		SnapshotName:      fmt.Sprintf("pvmctl_%s_%d", challengeID, time.Now().Unix()),
		Description:       fmt.Sprintf("pvmctl run of challenge %q", challengeID),
		SSHUser:           sshUser,
		SSHKeyPath:        keyPath,
		KeepSnapshot:      keepSnapshot,
		HintIndexesViewed: parseHintIndexes(hintsFlag),
		AwaitUser:         awaitUserEnter,
	}

	result, err := eng.Run(doc, opts)
	if err != nil {
		log.WithError(err).Fatal("run failed")
	}

	for _, cleanupErr := range result.CleanupErrors {
		log.Warn(cleanupErr)
	}

	fmt.Printf("\nresult: %s (%d/%d points)\n", passFail(result.Passed), result.Score, result.MaxScore)
	for i, outcome := range result.ProbeOutcomes {
		status := "PASS"
		if !outcome.Passed {
			status = "FAIL"
		}
		fmt.Printf("  [%d] %-24s %s\n", i+1, outcome.Probe.Type, status)
		for _, reason := range outcome.Reasons {
			fmt.Printf("        - %s\n", reason)
		}
	}

	log.Trace("Returning from runRun function.")
	if !result.Passed {
		os.Exit(1)
	}
}

func passFail(passed bool) string {
	if passed {
		return "PASSED"
	}
	return "FAILED"
}

func parseHintIndexes(flag string) []int {
	if flag == "" {
		return nil
	}
	var out []int
	for _, part := range strings.Split(flag, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			log.Warnf("ignoring malformed hint index %q", part)
			continue
		}
		out = append(out, n)
	}
	return out
}

// awaitUserEnter blocks until the learner presses Enter in the terminal
// pvmctl is running in, giving them time to work inside the VM before
// validation begins.
func awaitUserEnter() error {
	fmt.Println("VM is ready. Complete the task, then press Enter to validate...")
	reader := bufio.NewReader(os.Stdin)
	_, err := reader.ReadString('\n')
	return err
}
