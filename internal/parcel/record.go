package parcel

// Category labels mirror the portal's own wording so exports sort the
// same way as the official map tooling.
const (
	LabelApartment    = "شقق (Apartment)"
	LabelNonApartment = "غير شقق (Non-Apartment)"
)

func Label(isApartment bool) string {
	if isApartment {
		return LabelApartment
	}
	return LabelNonApartment
}

// Record is the canonical parcel, every source schema quirk resolved.
// Counts are never negative, absent counts are 0, absent area and
// coordinates stay nil. Immutable once classified.
type Record struct {
	ParcelID         string   `json:"parcel_id"`
	Name             string   `json:"name"`
	MainLandUseCode  int64    `json:"main_land_use_code"`
	MainLandUseName  string   `json:"main_land_use_name"`
	SubtypeCode      int64    `json:"subtype_code"`
	SubtypeName      string   `json:"subtype_name"`
	ResidentialUnits int64    `json:"residential_units"`
	CommercialUnits  int64    `json:"commercial_units"`
	Floors           int64    `json:"floors"`
	AreaSQM          *float64 `json:"area_sqm"`
	DistrictID       string   `json:"district_id"`
	StreetName       string   `json:"street_name"`
	Latitude         *float64 `json:"latitude"`
	Longitude        *float64 `json:"longitude"`
	IsApartment      bool     `json:"is_apartment"`
	CategoryLabel    string   `json:"parcel_category_label"`

	ObjectID       int64  `json:"object_id"`
	DetailsLandUse string `json:"details_land_use"`
	PostalCode     string `json:"postal_code"`
	IsBuilt        *int64 `json:"is_built"`
	IsLicensed     *int64 `json:"is_licensed"`
	BuildingStatus string `json:"building_status"`
	// set when coordinates fall outside the configured city bounding
	// box, values are kept as-is rather than clamped
	OutOfBounds bool `json:"out_of_bounds"`
}

func (r *Record) HasCoordinates() bool {
	return r.Latitude != nil && r.Longitude != nil
}
