package commands

import (
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/lalmajed/citysh/lib/serviceutil"
	"github.com/lalmajed/citysh/lib/timezone"
	"github.com/spf13/cobra"
)

var runsLimit *int64

func init() {
	runsLimit = runsCmd.Flags().Int64("limit", 20, "How many runs to show.")
	rootCmd.AddCommand(runsCmd)
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Prints the journaled harvest runs, newest first.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		journal, closeJournal := openJournal(cfg)
		defer closeJournal()

		runs, err := journal.List(cmd.Context(), *runsLimit)
		if err != nil {
			serviceutil.Fatal("failed to list runs", err)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Run", "State", "Started", "Fetched", "Kept", "Offset", "Error"})
		for _, run := range runs {
			started := time.Unix(run.StartedAt, 0).In(timezone.Location).Format(time.DateTime)
			t.AppendRow(table.Row{run.ID, run.State, started, run.Fetched, run.Kept, run.LastOffset, run.Error})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}
