package export

import (
	"encoding/csv"
	"os"
	"strconv"

	"github.com/lalmajed/citysh/internal/parcel"
)

// utf8BOM makes Excel detect the encoding, without it Arabic names
// render as mojibake.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// csvColumns is the fixed export order. Append new columns at the end,
// downstream sheets reference these by position.
var csvColumns = []string{
	"parcel_id",
	"name",
	"main_land_use_code",
	"main_land_use_name",
	"subtype_code",
	"subtype_name",
	"residential_units",
	"commercial_units",
	"floors",
	"area_sqm",
	"district_id",
	"street_name",
	"latitude",
	"longitude",
	"is_apartment",
	"parcel_category_label",
	"object_id",
	"details_land_use",
	"postal_code",
	"is_built",
	"is_licensed",
	"building_status",
	"out_of_bounds",
}

func writeCSV(path string, records []*parcel.Record) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if _, err := file.Write(utf8BOM); err != nil {
		return err
	}

	w := csv.NewWriter(file)
	if err := w.Write(csvColumns); err != nil {
		return err
	}
	for _, rec := range records {
		if err := w.Write(csvRow(rec)); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func csvRow(rec *parcel.Record) []string {
	return []string{
		rec.ParcelID,
		rec.Name,
		strconv.FormatInt(rec.MainLandUseCode, 10),
		rec.MainLandUseName,
		strconv.FormatInt(rec.SubtypeCode, 10),
		rec.SubtypeName,
		strconv.FormatInt(rec.ResidentialUnits, 10),
		strconv.FormatInt(rec.CommercialUnits, 10),
		strconv.FormatInt(rec.Floors, 10),
		formatFloat(rec.AreaSQM),
		rec.DistrictID,
		rec.StreetName,
		formatFloat(rec.Latitude),
		formatFloat(rec.Longitude),
		strconv.FormatBool(rec.IsApartment),
		rec.CategoryLabel,
		strconv.FormatInt(rec.ObjectID, 10),
		rec.DetailsLandUse,
		rec.PostalCode,
		formatInt(rec.IsBuilt),
		formatInt(rec.IsLicensed),
		rec.BuildingStatus,
		strconv.FormatBool(rec.OutOfBounds),
	}
}

// Empty cell for absent values, never a zero that looks measured.
func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func formatInt(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}
