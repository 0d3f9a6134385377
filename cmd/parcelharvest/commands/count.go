package commands

import (
	"fmt"

	"github.com/lalmajed/citysh/lib/serviceutil"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(countCmd)
}

var countCmd = &cobra.Command{
	Use:   "count",
	Short: "Prints how many records the configured layer and filter match, without fetching them.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		client := newPortalClient(cfg)

		if err := client.Bootstrap(cmd.Context()); err != nil {
			serviceutil.Fatal("failed to bootstrap portal session", err)
		}
		total, err := client.Count(cmd.Context(), cfg.Harvest.Where)
		if err != nil {
			serviceutil.Fatal("failed to count records", err)
		}
		fmt.Println(total)
	},
}
