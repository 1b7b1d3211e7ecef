// Copyright (c) 2019 Jonas R. <joroec@gmx.net>
// Licensed under the MIT License. You have obtained a copy of the License at
// the "LICENSE" file in this repository.

package cmd

import (
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/joroec/pvmctl/internal/hypervisor"
)

// listvmsCmd is a global variable defining the corresponding cobra command.
var listvmsCmd = &cobra.Command{
	Use:   "listvms",
	Short: "List the virtual machines that can be detected via libvirt.",
	Long: "List the virtual machines that can be detected via libvirt, " +
		"along with their current state. This is a simple way of testing " +
		"the connection to the libvirt daemon before running a challenge.",
	Run: listvmsRun,
}

func init() {
	RootCmd.AddCommand(listvmsCmd)
}

func listvmsRun(cmd *cobra.Command, args []string) {
	log.Trace("Start execution of listvmsRun function.")

	gw, err := hypervisor.Connect(Cfg.HypervisorURI)
	if err != nil {
		log.WithError(err).Fatal("could not connect to the hypervisor")
	}
	defer gw.Close()

	infos, err := gw.List()
	if err != nil {
		log.WithError(err).Fatal("could not list virtual machines")
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Name", "State", "vCPUs", "Memory (MB)"})
	for _, info := range infos {
		table.Append([]string{
			info.Name, info.State,
			strconv.FormatUint(uint64(info.CPUCount), 10),
			strconv.FormatUint(info.MemoryMB, 10),
		})
	}
	table.Render()

	log.Trace("Returning from listvmsRun function.")
}
