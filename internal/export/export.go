// Package export writes a harvest result to disk in the three formats
// downstream tooling consumes: a spreadsheet-friendly CSV, a JSON
// document with run metadata, and a GeoJSON point layer for map
// viewers. All three are derived from the same record slice, so row,
// parcel and feature counts always agree (GeoJSON drops records without
// coordinates).
package export

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/lalmajed/citysh/internal/harvest"
	"github.com/lalmajed/citysh/lib/telemetry"
	"go.opentelemetry.io/otel/codes"
)

var tracer = telemetry.Tracer("citysh.internal.export")

// Options describes the dataset for the JSON metadata envelope.
type Options struct {
	Source string
	City   string
	CityID string
}

// Writer exports results under a shared path prefix:
// <prefix>.csv, <prefix>.json and <prefix>_geo.json.
type Writer struct {
	prefix string
	opts   Options
}

func NewWriter(prefix string, opts Options) Writer {
	if prefix == "" {
		prefix = "riyadh_parcels"
	}
	return Writer{prefix: prefix, opts: opts}
}

// Export writes all three formats and returns the paths it managed to
// write. On error the returned paths cover the files completed before
// the failure.
func (w Writer) Export(ctx context.Context, result *harvest.Result) ([]string, error) {
	ctx, span := tracer.Start(ctx, "Export")
	defer span.End()

	if dir := filepath.Dir(w.prefix); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to create output directory")
			return nil, fmt.Errorf("create output directory: %w", err)
		}
	}

	var paths []string

	csvPath := w.prefix + ".csv"
	if err := writeCSV(csvPath, result.Records); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to write csv")
		return paths, fmt.Errorf("write %s: %w", csvPath, err)
	}
	paths = append(paths, csvPath)
	slog.InfoContext(ctx, "wrote csv export", "path", csvPath, "rows", len(result.Records))

	jsonPath := w.prefix + ".json"
	if err := w.writeJSON(jsonPath, result); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to write json")
		return paths, fmt.Errorf("write %s: %w", jsonPath, err)
	}
	paths = append(paths, jsonPath)
	slog.InfoContext(ctx, "wrote json export", "path", jsonPath, "parcels", len(result.Records))

	geoPath := w.prefix + "_geo.json"
	features, err := writeGeoJSON(geoPath, result.Records)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to write geojson")
		return paths, fmt.Errorf("write %s: %w", geoPath, err)
	}
	paths = append(paths, geoPath)
	slog.InfoContext(ctx, "wrote geojson export", "path", geoPath, "features", features)

	return paths, nil
}
