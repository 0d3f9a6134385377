package parcel

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/lalmajed/citysh/internal/districts"
	"github.com/lalmajed/citysh/internal/umaps"
)

// MissingParcelID marks features that cannot become records. They are
// skipped and counted, never given a synthetic id.
var MissingParcelID = fmt.Errorf("feature has no parcel id")

// canonical field -> accepted source keys, matched case-insensitively.
// The portals disagree on separators and abbreviations, everything else
// in the attribute bag is dropped.
var fieldAliases = map[string][]string{
	"object_id":         {"objectid", "object_id", "oid"},
	"parcel_id":         {"parcel_id", "parcelid", "parcelno", "parcel_no"},
	"name":              {"parcelname", "parcel_name"},
	"main_land_use":     {"mainlanduse", "main_land_use"},
	"subtype":           {"subtype", "sub_type"},
	"details_land_use":  {"detailslanduse", "details_land_use", "landuseadetailed"},
	"residential_units": {"residentialunits", "residential_units"},
	"commercial_units":  {"commercialunits", "commercial_units"},
	"floors":            {"nooffloors", "no_of_floors", "floors"},
	"area_sqm":          {"measuredarea", "shape_area", "shape__area"},
	"district_id":       {"district_id", "districtid"},
	"district_name":     {"districtname", "districtname_ar", "district_name"},
	"street_name":       {"streetname", "street_name"},
	"postal_code":       {"postalcode", "postal_code"},
	"is_built":          {"isbuilt", "is_built"},
	"is_licensed":       {"islicensed", "is_licensed"},
	"building_status":   {"buildingstatus", "building_status"},
	"latitude":          {"latitude", "lat"},
	"longitude":         {"longitude", "lon", "long"},
}

// BoundingBox is the plausible coordinate range for the target city.
type BoundingBox struct {
	MinLat float64 `json:"min_lat"`
	MaxLat float64 `json:"max_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLon float64 `json:"max_lon"`
}

func (b BoundingBox) IsZero() bool {
	return b == BoundingBox{}
}

func (b BoundingBox) Contains(lat, lon float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lon >= b.MinLon && lon <= b.MaxLon
}

// RiyadhBoundingBox covers the city with a comfortable margin.
func RiyadhBoundingBox() BoundingBox {
	return BoundingBox{MinLat: 24.2, MaxLat: 25.2, MinLon: 46.2, MaxLon: 47.3}
}

type NormalizerOptions struct {
	// flags coordinates outside this box, zero value disables the check
	BBox BoundingBox
	// resolves district names on layers that omit the id, optional
	Districts *districts.Directory
}

type Normalizer struct {
	opts NormalizerOptions
}

func NewNormalizer(opts NormalizerOptions) Normalizer {
	return Normalizer{opts: opts}
}

// Normalize maps a raw feature onto the canonical record. Data-level
// anomalies are handled here: missing counts default to zero, negatives
// clamp to zero with a warning, unparseable coordinates stay nil. Only
// a missing parcel id rejects the feature.
func (n Normalizer) Normalize(ctx context.Context, feature umaps.Feature) (*Record, error) {
	attrs := lowerKeys(feature.Attributes)

	parcelID := asString(lookup(attrs, "parcel_id"))
	if parcelID == "" {
		return nil, MissingParcelID
	}

	rec := &Record{
		ParcelID:       parcelID,
		Name:           asString(lookup(attrs, "name")),
		DetailsLandUse: asString(lookup(attrs, "details_land_use")),
		StreetName:     asString(lookup(attrs, "street_name")),
		PostalCode:     asString(lookup(attrs, "postal_code")),
		BuildingStatus: asString(lookup(attrs, "building_status")),
	}
	rec.ObjectID, _ = asInt(lookup(attrs, "object_id"))
	rec.MainLandUseCode, _ = asInt(lookup(attrs, "main_land_use"))
	rec.SubtypeCode, _ = asInt(lookup(attrs, "subtype"))
	rec.MainLandUseName = LandUseName(rec.MainLandUseCode)
	rec.SubtypeName = SubtypeName(rec.SubtypeCode)

	rec.ResidentialUnits = n.count(ctx, attrs, "residential_units", parcelID)
	rec.CommercialUnits = n.count(ctx, attrs, "commercial_units", parcelID)
	rec.Floors = n.count(ctx, attrs, "floors", parcelID)

	if area, ok := asFloat(lookup(attrs, "area_sqm")); ok {
		if area < 0 {
			slog.WarnContext(ctx, "negative area on parcel", "parcel_id", parcelID, "area", area)
		} else {
			rec.AreaSQM = &area
		}
	}

	if flag, ok := asInt(lookup(attrs, "is_built")); ok {
		rec.IsBuilt = &flag
	}
	if flag, ok := asInt(lookup(attrs, "is_licensed")); ok {
		rec.IsLicensed = &flag
	}

	rec.DistrictID = asString(lookup(attrs, "district_id"))
	if rec.DistrictID == "" && n.opts.Districts != nil {
		if name := asString(lookup(attrs, "district_name")); name != "" {
			if id, ok := n.opts.Districts.Resolve(name); ok {
				rec.DistrictID = id
			}
		}
	}

	n.coordinates(ctx, rec, feature.Geometry, attrs)
	return rec, nil
}

func (n Normalizer) count(ctx context.Context, attrs map[string]any, field, parcelID string) int64 {
	value, ok := asInt(lookup(attrs, field))
	if !ok {
		return 0
	}
	if value < 0 {
		slog.WarnContext(ctx, "negative count on parcel",
			"parcel_id", parcelID,
			"field", field,
			"value", value,
		)
		return 0
	}
	return value
}

func (n Normalizer) coordinates(ctx context.Context, rec *Record, geometry *umaps.Geometry, attrs map[string]any) {
	var lat, lon float64
	var ok bool

	switch {
	case geometry != nil && len(geometry.Rings) > 0:
		lat, lon, ok = centroid(geometry.Rings[0])
	case geometry != nil && (geometry.X != 0 || geometry.Y != 0):
		lat, lon, ok = geometry.Y, geometry.X, true
	default:
		var latOk, lonOk bool
		lat, latOk = asFloat(lookup(attrs, "latitude"))
		lon, lonOk = asFloat(lookup(attrs, "longitude"))
		ok = latOk && lonOk
	}
	if !ok {
		return
	}

	// Six decimal places is about 10cm, plenty for a parcel marker and
	// it keeps the exports diffable.
	lat = round6(lat)
	lon = round6(lon)
	rec.Latitude = &lat
	rec.Longitude = &lon
	if !n.opts.BBox.IsZero() && !n.opts.BBox.Contains(lat, lon) {
		rec.OutOfBounds = true
		slog.WarnContext(ctx, "parcel coordinates outside city bounding box",
			"parcel_id", rec.ParcelID,
			"lat", lat,
			"lon", lon,
		)
	}
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

// centroid averages the vertices of the outer ring. Good enough for a
// point marker, no area weighting.
func centroid(ring [][]float64) (lat, lon float64, ok bool) {
	count := 0
	for _, vertex := range ring {
		if len(vertex) < 2 {
			continue
		}
		lon += vertex[0]
		lat += vertex[1]
		count++
	}
	if count == 0 {
		return 0, 0, false
	}
	return lat / float64(count), lon / float64(count), true
}

func lowerKeys(attrs map[string]any) map[string]any {
	out := make(map[string]any, len(attrs))
	for key, value := range attrs {
		out[strings.ToLower(key)] = value
	}
	return out
}

func lookup(attrs map[string]any, canonical string) any {
	for _, alias := range fieldAliases[canonical] {
		value, ok := attrs[alias]
		if ok && value != nil {
			return value
		}
	}
	return nil
}

func asString(value any) string {
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return ""
	}
}

func asInt(value any) (int64, bool) {
	switch v := value.(type) {
	case float64:
		return int64(v), true
	case int64:
		return v, true
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		return int64(parsed), true
	default:
		return 0, false
	}
}

func asFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}
