// Copyright (c) 2019 Jonas R. <joroec@gmx.net>
// Licensed under the MIT License. You have obtained a copy of the License at
// the "LICENSE" file in this repository.

package cmd

import (
	"sort"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/joroec/pvmctl/internal/hypervisor"
	"github.com/joroec/pvmctl/internal/snapshot"
)

var keepVersions int

// cleanCmd is a global variable defining the corresponding cobra command.
var cleanCmd = &cobra.Command{
	Use:   "clean -k <keep> <vm-name>",
	Short: "Removes the oldest snapshots of a virtual machine beyond a keep count.",
	Long:  `Removes the oldest snapshots of a virtual machine beyond a keep count.`,
	Args:  cobra.ExactArgs(1),
	Run:   cleanRun,
}

func init() {
	cleanCmd.Flags().IntVarP(&keepVersions, "keep", "k", 10,
		"Number of snapshots to keep, newest first.")
	cleanCmd.MarkFlagRequired("keep")

	RootCmd.AddCommand(cleanCmd)
}

func cleanRun(cmd *cobra.Command, args []string) {
	log.Trace("Start execution of cleanRun function.")

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

	sort.Slice(descriptors, func(i, j int) bool {
		return descriptors[i].CreatedEpoch > descriptors[j].CreatedEpoch
	})

	if len(descriptors) <= keepVersions {
		log.Infof("nothing to clean: %d snapshot(s) <= keep count %d", len(descriptors), keepVersions)
		return
	}

	failed := false
	for _, desc := range descriptors[keepVersions:] {
		log.Infof("removing snapshot %q of VM %q", desc.Name, args[0])
		if err := ctl.Delete(d, desc.Name); err != nil {
			log.WithError(err).Errorf("could not remove snapshot %q", desc.Name)
			failed = true
		}
	}

	if failed {
		log.Fatal("there were errors during snapshot cleanup")
	}

	log.Trace("Returning from cleanRun function.")
}
