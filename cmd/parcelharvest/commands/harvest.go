package commands

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lalmajed/citysh/internal/districts"
	"github.com/lalmajed/citysh/internal/export"
	"github.com/lalmajed/citysh/internal/harvest"
	"github.com/lalmajed/citysh/internal/parcel"
	"github.com/lalmajed/citysh/internal/report"
	"github.com/lalmajed/citysh/lib/serviceutil"
	"github.com/lalmajed/citysh/lib/telemetry"
	"github.com/spf13/cobra"
)

var harvestLimit *int64
var harvestOutput *string
var harvestOffset *int64
var harvestResume *bool

func init() {
	harvestLimit = harvestCmd.Flags().Int64("limit", 0, "Stop after fetching this many records. 0 fetches everything.")
	harvestOutput = harvestCmd.Flags().String("output", "", "Path prefix for the export files.")
	harvestOffset = harvestCmd.Flags().Int64("offset", 0, "Start fetching at this record offset.")
	harvestResume = harvestCmd.Flags().Bool("resume", false, "Continue from the last failed or stopped run.")
	rootCmd.AddCommand(harvestCmd)
}

var harvestCmd = &cobra.Command{
	Use:   "harvest [--limit <n>] [--output <prefix>]",
	Short: "Fetches the parcel layer, classifies apartments and writes the CSV/JSON/GeoJSON exports.",
	Run: func(cmd *cobra.Command, args []string) {
		// full-city runs take hours, sample runtime stats like the
		// long-lived services do
		telemetry.InstrumentPerfStats(cmd.Context())

		cfg := loadConfig()

		output := cfg.Export.Output
		if *harvestOutput != "" {
			output = *harvestOutput
		}

		journal, closeJournal := openJournal(cfg)
		defer closeJournal()

		offset := *harvestOffset
		if *harvestResume {
			if offset != 0 {
				serviceutil.Fatal("invalid flags", errors.New("--offset and --resume cannot be combined"))
			}
			prev, ok, err := journal.LatestResumable(cmd.Context(), cfg.source())
			if err != nil {
				serviceutil.Fatal("failed to query run journal", err)
			}
			if ok {
				offset = prev.LastOffset
				slog.Info("resuming previous run", "run_id", prev.ID, "state", prev.State, "offset", offset)
			} else {
				slog.Info("no resumable run in journal, starting from the beginning")
			}
		}

		client := newPortalClient(cfg)
		writer := export.NewWriter(output, export.Options{
			Source: cfg.source(),
			City:   cfg.Export.City,
			CityID: cfg.Harvest.CityID,
		})

		runner := harvest.NewRunner(client, writer, journal, harvest.Options{
			Source:      cfg.source(),
			Where:       cfg.Harvest.Where,
			OutFields:   cfg.Harvest.OutFields,
			OrderBy:     cfg.Harvest.OrderBy,
			PageSize:    cfg.Harvest.PageSize,
			Limit:       *harvestLimit,
			StartOffset: offset,
			Rules:       cfg.rules(),
			Normalize: parcel.NormalizerOptions{
				BBox:      cfg.bounds(),
				Districts: districts.NewDirectory(cfg.Districts),
			},
			MinInterval: time.Duration(cfg.Harvest.MinIntervalSeconds) * time.Second,
			Burst:       cfg.Harvest.Burst,
			Backoff: harvest.BackoffOptions{
				BaseDelay:   time.Duration(cfg.Harvest.RetryBaseSeconds) * time.Second,
				MaxDelay:    time.Duration(cfg.Harvest.RetryMaxSeconds) * time.Second,
				MaxAttempts: cfg.Harvest.RetryAttempts,
			},
		})

		result, runErr := runner.Run(cmd.Context())

		sum := report.Summarize(result.Records)
		report.Render(os.Stdout, result, sum)

		notifier := report.NewNotifier(cfg.Smtp)
		if notifier.Enabled() {
			var buf strings.Builder
			report.Render(&buf, result, sum)
			err := notifier.SendRunReport(context.Background(), result, buf.String())
			if err != nil {
				slog.Error("failed to email run report", "err", err)
			}
		}

		if runErr != nil {
			serviceutil.Fatal("harvest failed", runErr)
		}
	},
}
