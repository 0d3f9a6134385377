package export

import (
	"encoding/json"
	"os"
	"time"

	"github.com/lalmajed/citysh/internal/harvest"
	"github.com/lalmajed/citysh/internal/parcel"
	"github.com/lalmajed/citysh/lib/timezone"
)

// Metadata heads the JSON export so consumers can sanity-check a file
// before touching the parcel array.
type Metadata struct {
	Source        string `json:"source"`
	City          string `json:"city"`
	CityID        string `json:"city_id"`
	RunID         string `json:"run_id,omitempty"`
	HarvestedAt   string `json:"harvested_at"`
	TotalParcels  int    `json:"total_parcels"`
	Apartments    int    `json:"apartments"`
	NonApartments int    `json:"non_apartments"`
}

type jsonDocument struct {
	Metadata Metadata         `json:"metadata"`
	Parcels  []*parcel.Record `json:"parcels"`
}

func (w Writer) writeJSON(path string, result *harvest.Result) error {
	apartments := 0
	for _, rec := range result.Records {
		if rec.IsApartment {
			apartments++
		}
	}

	doc := jsonDocument{
		Metadata: Metadata{
			Source:        w.opts.Source,
			City:          w.opts.City,
			CityID:        w.opts.CityID,
			RunID:         result.RunID,
			HarvestedAt:   timezone.Now().Format(time.RFC3339),
			TotalParcels:  len(result.Records),
			Apartments:    apartments,
			NonApartments: len(result.Records) - apartments,
		},
		Parcels: result.Records,
	}
	if doc.Parcels == nil {
		doc.Parcels = []*parcel.Record{}
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
