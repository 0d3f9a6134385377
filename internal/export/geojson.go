package export

import (
	"encoding/json"
	"os"

	"github.com/lalmajed/citysh/internal/parcel"
)

// GeoJSON shapes per RFC 7946. Coordinates are [longitude, latitude].
type featureCollection struct {
	Type     string       `json:"type"`
	Features []geoFeature `json:"features"`
}

type geoFeature struct {
	Type       string         `json:"type"`
	Geometry   pointGeometry  `json:"geometry"`
	Properties map[string]any `json:"properties"`
}

type pointGeometry struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
}

// writeGeoJSON emits one Point feature per record with coordinates.
// Records without coordinates are left out entirely, a null island
// point would be worse than no point.
func writeGeoJSON(path string, records []*parcel.Record) (int, error) {
	features := make([]geoFeature, 0, len(records))
	for _, rec := range records {
		if !rec.HasCoordinates() {
			continue
		}
		props, err := geoProperties(rec)
		if err != nil {
			return 0, err
		}
		features = append(features, geoFeature{
			Type: "Feature",
			Geometry: pointGeometry{
				Type:        "Point",
				Coordinates: [2]float64{*rec.Longitude, *rec.Latitude},
			},
			Properties: props,
		})
	}

	file, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(featureCollection{Type: "FeatureCollection", Features: features}); err != nil {
		return 0, err
	}
	return len(features), nil
}

// geoProperties carries every record field except the coordinate pair,
// which already lives in the geometry.
func geoProperties(rec *parcel.Record) (map[string]any, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	var props map[string]any
	if err := json.Unmarshal(raw, &props); err != nil {
		return nil, err
	}
	delete(props, "latitude")
	delete(props, "longitude")
	return props, nil
}
