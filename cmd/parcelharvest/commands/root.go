package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/lalmajed/citysh/lib/telemetry"
	"github.com/spf13/cobra"
)

var configName *string
var verbose *bool

func init() {
	configName = rootCmd.PersistentFlags().String("config", "config.json5", "Path to the config file.")
	verbose = rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging.")
}

var rootCmd = &cobra.Command{
	Use:   "parcelharvest",
	Short: "parcelharvest pulls parcels from the Balady map portal and classifies apartment buildings.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		telemetry.InitSlog(*verbose)
	},
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
