// Copyright (c) 2019 Jonas R. <joroec@gmx.net>
// Licensed under the MIT License. You have obtained a copy of the License at
// the "LICENSE" file in this repository.

package cmd

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// versionCmd is a global variable defining the corresponding cobra command.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Prints the version of the software.",
	Long:  `Prints the version of the software.`,
	Run:   versionRun,
}

func init() {
	RootCmd.AddCommand(versionCmd)
}

func versionRun(cmd *cobra.Command, args []string) {
	log.Trace("Start execution of versionRun function.")
	fmt.Println("pvmctl, version 0.1.0")
	log.Trace("Returning from versionRun function.")
}
