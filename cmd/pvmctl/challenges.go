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

	"github.com/joroec/pvmctl/internal/challenge"
)

var challengesDir string

// challengesCmd groups challenge-document subcommands.
var challengesCmd = &cobra.Command{
	Use:   "challenges",
	Short: "Inspect the challenge documents available to pvmctl.",
}

var challengesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every schema-valid challenge document found in the challenges directory.",
	Run:   challengesListRun,
}

func init() {
	challengesCmd.PersistentFlags().StringVarP(&challengesDir, "dir", "d",
		"./challenges", "Directory to load *.yaml/*.yml challenge documents from.")
	challengesCmd.AddCommand(challengesListCmd)
	RootCmd.AddCommand(challengesCmd)
}

func challengesListRun(cmd *cobra.Command, args []string) {
	log.Trace("Start execution of challengesListRun function.")

	docs, diagnostics, err := challenge.LoadDir(challengesDir, Cfg)
	if err != nil {
		log.WithError(err).Fatal("could not load challenges directory")
	}
	for _, d := range diagnostics {
		log.Warn(d)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"ID", "Name", "Category", "Difficulty", "Score"})
	for _, doc := range docs {
		table.Append([]string{
			doc.ID, doc.Name, doc.Category, doc.Difficulty, strconv.Itoa(doc.Score),
		})
	}
	table.Render()

	log.Trace("Returning from challengesListRun function.")
}
