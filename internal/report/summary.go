// Package report turns a harvest result into the human-facing
// artifacts: terminal summary tables and the optional email sent after
// scheduled runs.
package report

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/lalmajed/citysh/internal/harvest"
	"github.com/lalmajed/citysh/internal/parcel"
)

const topSubtypes = 15

// CodeCount is one aggregation bucket, keyed by a land use or subtype
// code.
type CodeCount struct {
	Code  int64
	Name  string
	Count int
}

// BinCount is one residential unit histogram bucket.
type BinCount struct {
	Label string
	Count int
}

// Summary aggregates a record slice for reporting. It is derived
// purely from the records, run-level numbers stay on harvest.Result.
type Summary struct {
	Total         int
	Apartments    int
	NonApartments int
	WithCoords    int
	OutOfBounds   int
	LandUse       []CodeCount
	Subtypes      []CodeCount
	UnitBins      []BinCount
}

// unitBins groups apartment records by residential unit count. Singles
// and unknowns are left out, they say nothing about building size.
var unitBins = []struct {
	label    string
	min, max int64
}{
	{"2-5", 2, 5},
	{"6-10", 6, 10},
	{"11-20", 11, 20},
	{"20+", 21, 1 << 30},
}

func Summarize(records []*parcel.Record) Summary {
	sum := Summary{Total: len(records)}

	landUse := map[int64]int{}
	subtypes := map[int64]int{}
	bins := make([]int, len(unitBins))

	for _, rec := range records {
		landUse[rec.MainLandUseCode]++
		subtypes[rec.SubtypeCode]++
		if rec.HasCoordinates() {
			sum.WithCoords++
		}
		if rec.OutOfBounds {
			sum.OutOfBounds++
		}
		if !rec.IsApartment {
			continue
		}
		sum.Apartments++
		for i, bin := range unitBins {
			if rec.ResidentialUnits >= bin.min && rec.ResidentialUnits <= bin.max {
				bins[i]++
				break
			}
		}
	}
	sum.NonApartments = sum.Total - sum.Apartments

	sum.LandUse = sortedCounts(landUse, parcel.LandUseName, 0)
	sum.Subtypes = sortedCounts(subtypes, parcel.SubtypeName, topSubtypes)
	for i, bin := range unitBins {
		sum.UnitBins = append(sum.UnitBins, BinCount{Label: bin.label, Count: bins[i]})
	}
	return sum
}

// sortedCounts orders buckets by count descending, code ascending on
// ties so output is stable run to run. top of 0 keeps everything.
func sortedCounts(counts map[int64]int, name func(int64) string, top int) []CodeCount {
	out := make([]CodeCount, 0, len(counts))
	for code, count := range counts {
		out = append(out, CodeCount{Code: code, Name: name(code), Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Code < out[j].Code
	})
	if top > 0 && len(out) > top {
		out = out[:top]
	}
	return out
}

// Render writes the run overview and aggregation tables.
func Render(w io.Writer, result *harvest.Result, sum Summary) {
	overview := table.NewWriter()
	overview.SetOutputMirror(w)
	overview.AppendHeader(table.Row{"Harvest", ""})
	overview.AppendRow(table.Row{"Run", result.RunID})
	overview.AppendRow(table.Row{"State", result.State.String()})
	overview.AppendRow(table.Row{"Pages", result.Pages})
	overview.AppendRow(table.Row{"Fetched", result.Fetched})
	overview.AppendRow(table.Row{"Kept", sum.Total})
	overview.AppendRow(table.Row{"Duplicates", result.Duplicates})
	overview.AppendRow(table.Row{"Skipped", result.Skipped})
	overview.AppendRow(table.Row{"Apartments", withShare(sum.Apartments, sum.Total)})
	overview.AppendRow(table.Row{"Non-apartments", withShare(sum.NonApartments, sum.Total)})
	overview.AppendRow(table.Row{"With coordinates", sum.WithCoords})
	overview.AppendRow(table.Row{"Out of bounds", sum.OutOfBounds})
	if !result.Finished.IsZero() && !result.Started.IsZero() {
		overview.AppendRow(table.Row{"Elapsed", result.Finished.Sub(result.Started).Round(time.Second)})
	}
	overview.SetStyle(table.StyleRounded)
	overview.Render()

	renderCounts(w, "Main Land Use", sum.LandUse)
	renderCounts(w, fmt.Sprintf("Top %d Subtypes", topSubtypes), sum.Subtypes)

	units := table.NewWriter()
	units.SetOutputMirror(w)
	units.AppendHeader(table.Row{"Units", "Apartments"})
	for _, bin := range sum.UnitBins {
		units.AppendRow(table.Row{bin.Label, bin.Count})
	}
	units.SetStyle(table.StyleRounded)
	units.Render()
}

func renderCounts(w io.Writer, title string, counts []CodeCount) {
	if len(counts) == 0 {
		return
	}
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{title, "Code", "Count"})
	for _, c := range counts {
		t.AppendRow(table.Row{c.Name, c.Code, c.Count})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
}

func withShare(part, total int) string {
	if total == 0 {
		return "0"
	}
	return fmt.Sprintf("%d (%.1f%%)", part, float64(part)/float64(total)*100)
}
