package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/lalmajed/citysh/internal/harvest"
	"github.com/lalmajed/citysh/internal/parcel"
	"github.com/stretchr/testify/require"
)

func f64(v float64) *float64 { return &v }

func testResult() *harvest.Result {
	records := []*parcel.Record{
		{
			ParcelID:         "1010001",
			Name:             "قطعة 1",
			MainLandUseCode:  1000000,
			MainLandUseName:  parcel.LandUseName(1000000),
			SubtypeCode:      1001000,
			SubtypeName:      parcel.SubtypeName(1001000),
			ResidentialUnits: 12,
			Floors:           4,
			AreaSQM:          f64(612.25),
			DistrictID:       "10100003001",
			Latitude:         f64(24.701234),
			Longitude:        f64(46.651234),
			IsApartment:      true,
			CategoryLabel:    parcel.LabelApartment,
		},
		{
			ParcelID:        "1010002",
			MainLandUseCode: 100000,
			MainLandUseName: parcel.LandUseName(100000),
			SubtypeCode:     101000,
			SubtypeName:     parcel.SubtypeName(101000),
			Latitude:        f64(24.72),
			Longitude:       f64(46.66),
			CategoryLabel:   parcel.LabelNonApartment,
		},
		{
			// no coordinates, must be absent from the geojson
			ParcelID:        "1010003",
			MainLandUseCode: 200000,
			MainLandUseName: parcel.LandUseName(200000),
			CategoryLabel:   parcel.LabelNonApartment,
		},
	}
	return &harvest.Result{RunID: "testrun", Records: records}
}

func export(t *testing.T, result *harvest.Result) (string, []string) {
	t.Helper()

	prefix := filepath.Join(t.TempDir(), "riyadh_parcels")
	w := NewWriter(prefix, Options{
		Source: "https://example.com/MapServer/28",
		City:   "Riyadh",
		CityID: "00100001",
	})
	paths, err := w.Export(context.Background(), result)
	require.NoError(t, err)
	return prefix, paths
}

func TestExportWritesAllThreeFormats(t *testing.T) {
	prefix, paths := export(t, testResult())

	require.Equal(t, []string{
		prefix + ".csv",
		prefix + ".json",
		prefix + "_geo.json",
	}, paths)
	for _, path := range paths {
		info, err := os.Stat(path)
		require.NoError(t, err)
		require.Greater(t, info.Size(), int64(0))
	}
}

func TestExportCSV(t *testing.T) {
	prefix, _ := export(t, testResult())

	content, err := os.ReadFile(prefix + ".csv")
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(content, utf8BOM), "csv must start with a utf-8 BOM")

	rows, err := csv.NewReader(bytes.NewReader(content[len(utf8BOM):])).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	require.Equal(t, csvColumns, rows[0])

	first := rows[1]
	require.Equal(t, "1010001", first[0])
	require.Equal(t, "1000000", first[2])
	require.Equal(t, "612.25", first[9])
	require.Equal(t, "24.701234", first[12])
	require.Equal(t, "46.651234", first[13])
	require.Equal(t, "true", first[14])
	require.Equal(t, parcel.LabelApartment, first[15])

	// absent values are empty cells, not zeros
	third := rows[3]
	require.Equal(t, "", third[9])
	require.Equal(t, "", third[12])
	require.Equal(t, "", third[13])
}

func TestExportJSON(t *testing.T) {
	prefix, _ := export(t, testResult())

	content, err := os.ReadFile(prefix + ".json")
	require.NoError(t, err)

	var doc struct {
		Metadata Metadata        `json:"metadata"`
		Parcels  []parcel.Record `json:"parcels"`
	}
	require.NoError(t, json.Unmarshal(content, &doc))

	require.Equal(t, "Riyadh", doc.Metadata.City)
	require.Equal(t, "00100001", doc.Metadata.CityID)
	require.Equal(t, "testrun", doc.Metadata.RunID)
	require.NotEmpty(t, doc.Metadata.HarvestedAt)
	require.Equal(t, 3, doc.Metadata.TotalParcels)
	require.Equal(t, 1, doc.Metadata.Apartments)
	require.Equal(t, 2, doc.Metadata.NonApartments)

	require.Len(t, doc.Parcels, 3)
	require.Equal(t, "1010001", doc.Parcels[0].ParcelID)
	require.True(t, doc.Parcels[0].IsApartment)

	// Arabic must be stored raw, not escaped
	require.Contains(t, string(content), "قطعة 1")
}

func TestExportGeoJSON(t *testing.T) {
	prefix, _ := export(t, testResult())

	content, err := os.ReadFile(prefix + "_geo.json")
	require.NoError(t, err)

	var geo struct {
		Type     string `json:"type"`
		Features []struct {
			Type     string `json:"type"`
			Geometry struct {
				Type        string    `json:"type"`
				Coordinates []float64 `json:"coordinates"`
			} `json:"geometry"`
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(content, &geo))

	require.Equal(t, "FeatureCollection", geo.Type)
	// the record without coordinates is excluded
	require.Len(t, geo.Features, 2)

	first := geo.Features[0]
	require.Equal(t, "Feature", first.Type)
	require.Equal(t, "Point", first.Geometry.Type)
	// GeoJSON order is longitude, latitude
	require.Equal(t, []float64{46.651234, 24.701234}, first.Geometry.Coordinates)

	require.Equal(t, "1010001", first.Properties["parcel_id"])
	require.NotContains(t, first.Properties, "latitude")
	require.NotContains(t, first.Properties, "longitude")
}

func TestExportEmptyResult(t *testing.T) {
	prefix, _ := export(t, &harvest.Result{})

	content, err := os.ReadFile(prefix + ".csv")
	require.NoError(t, err)
	rows, err := csv.NewReader(bytes.NewReader(content[len(utf8BOM):])).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 1)

	content, err = os.ReadFile(prefix + ".json")
	require.NoError(t, err)
	// an empty harvest still produces a parcels array, not null
	require.Contains(t, string(content), `"parcels": []`)

	content, err = os.ReadFile(prefix + "_geo.json")
	require.NoError(t, err)
	require.Contains(t, string(content), `"features":[]`)
}

func TestExportDeterministic(t *testing.T) {
	result := testResult()
	prefixA, _ := export(t, result)
	prefixB, _ := export(t, result)

	for _, suffix := range []string{".csv", "_geo.json"} {
		a, err := os.ReadFile(prefixA + suffix)
		require.NoError(t, err)
		b, err := os.ReadFile(prefixB + suffix)
		require.NoError(t, err)
		require.Equal(t, a, b, "%s must be byte identical across exports", suffix)
	}
}
