// Copyright (c) 2019 Jonas R. <joroec@gmx.net>
// Licensed under the MIT License. You have obtained a copy of the License at
// the "LICENSE" file in this repository.

package cmd

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/joroec/pvmctl/internal/hypervisor"
	"github.com/joroec/pvmctl/internal/snapshot"
)

// listCmd is a global variable defining the corresponding cobra command.
var listCmd = &cobra.Command{
	Use:   "list <vm-name>",
	Short: "List the snapshots of a virtual machine.",
	Long: "List the snapshots currently held by the named virtual machine, " +
		"one per line: name, kind (External or Internal, with +Mem when " +
		"memory was captured), and description.",
	Args: cobra.ExactArgs(1),
	Run:  listRun,
}

func init() {
	RootCmd.AddCommand(listCmd)
}

func listRun(cmd *cobra.Command, args []string) {
	log.Trace("Start execution of listRun function.")

	gw, err := hypervisor.Connect(Cfg.HypervisorURI)
	if err != nil {
		log.WithError(err).Fatal("could not connect to the hypervisor")
	}
	defer gw.Close()

	d, err := gw.Find(args[0])
	if err != nil {
		log.WithError(err).Fatalf("could not find virtual machine %q", args[0])
	}
	defer d.Free()

	ctl := snapshot.New(Cfg)
	descriptors, warnings := ctl.List(d)
	for _, w := range warnings {
		log.Warn(w)
	}

	for _, desc := range descriptors {
		fmt.Printf("%s\t%s\t%s\n", desc.Name, desc.SnapshotKind, desc.Description)
	}

	log.Trace("Returning from listRun function.")
}
