// Copyright (c) 2019 Jonas R. <joroec@gmx.net>
// Licensed under the MIT License. You have obtained a copy of the License at
// the "LICENSE" file in this repository.

package cmd

import (
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/joroec/pvmctl/internal/hypervisor"
	"github.com/joroec/pvmctl/pkg/fs"
)

var exportOutputDir string

// exportCmd is a global variable defining the corresponding cobra command.
var exportCmd = &cobra.Command{
	Use:   "export --output-dir <dir> <vm-name>",
	Short: "Copy a virtual machine's disk images to an export directory.",
	Long: "Copy the disk images backing a virtual machine to an export " +
		"directory via rsync, for archiving a challenge VM's golden image.",
	Args: cobra.ExactArgs(1),
	Run:  exportRun,
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutputDir, "output-dir", "o", "",
		"directory to copy the VM's disk images into")
	exportCmd.MarkFlagRequired("output-dir")

	RootCmd.AddCommand(exportCmd)
}

func exportRun(cmd *cobra.Command, args []string) {
	log.Trace("Start execution of exportRun function.")

	absOutputDir, err := filepath.Abs(exportOutputDir)
	if err != nil {
		log.WithError(err).Fatal("could not resolve output directory")
	}
	if err := fs.EnsureDirectory(absOutputDir); err != nil {
		log.WithError(err).Fatal("output directory is not usable")
	}

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

	failed := false
	for _, disk := range d.Descriptor.Devices.Disks {
		if disk.Source == nil || disk.Source.File == nil || disk.Source.File.File == "" {
			continue
		}
		src := disk.Source.File.File
		log.Debugf("syncing disk image %q for VM %q", src, args[0])
		if err := fs.Sync(src, absOutputDir, log.StandardLogger()); err != nil {
			log.WithError(err).Errorf("could not export disk image %q", src)
			failed = true
		}
	}

	if failed {
		log.Fatal("export process failed due to errors")
	}

	log.Trace("Returning from exportRun function.")
}
