// Copyright (c) 2019 Jonas R. <joroec@gmx.net>
// Licensed under the MIT License. You have obtained a copy of the License at
// the "LICENSE" file in this repository.

// Package cmd implements the handlers for the different command line
// arguments of pvmctl, the practice-VM control CLI.
package cmd

import (
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/joroec/pvmctl/internal/config"
)

// Verbose is a persistent flag that can be issued for any command.
var Verbose bool

// hypervisorURI is the libvirt connection URI, overriding config.Default().
var hypervisorURI string

// Cfg is the engine-wide configuration built from flags in
// PersistentPreRun and consumed by every subcommand.
var Cfg = config.Default()

// RootCmd is a global variable defining the corresponding cobra command.
var RootCmd = &cobra.Command{
	Use: "pvmctl",
	Short: "pvmctl drives libvirt/QEMU practice VMs through declarative, " +
		"YAML-authored Linux certification challenges.",
	Long: "pvmctl snapshots a practice VM, boots it, applies scripted setup " +
		"steps, waits for a learner to act, then validates the resulting " +
		"state against a closed family of probes before scoring the attempt " +
		"and reverting the VM back to its pre-run snapshot.",
	PersistentPreRun: initializeLogger,
}

// init is a special golang function that is called exactly once regardless
// how often the package is imported.
func init() {
	RootCmd.PersistentFlags().BoolVarP(&Verbose, "verbose", "v", false,
		"verbose output")
	RootCmd.PersistentFlags().StringVar(&hypervisorURI, "connect", "",
		"libvirt connection URI (default \"qemu:///system\")")
}

// initializeLogger enables tracing and applies flag overrides onto Cfg
// before any subcommand runs.
func initializeLogger(cmd *cobra.Command, args []string) {
	if Verbose {
		log.SetLevel(log.TraceLevel)
	}
	if hypervisorURI != "" {
		Cfg.HypervisorURI = hypervisorURI
	}
}
