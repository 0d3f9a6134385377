package parcel

// Rules holds the classification constants. They are configuration
// data, not literals inside the engine, so the rule set can be checked
// against the portal's documented code table without a rebuild.
type Rules struct {
	// rule 1: main land use equals this code
	MultiUnitResidentialCode int64 `json:"multi_unit_residential_code"`
	// rule 2: subtype is any of these codes
	ApartmentSubtypeCodes []int64 `json:"apartment_subtype_codes"`
	// rule 3: subtype equals this code
	MixedCommercialResidentialCode int64 `json:"mixed_commercial_residential_code"`
	// rule 4: residential units strictly above this, regardless of use
	StandaloneUnitThreshold int64 `json:"standalone_unit_threshold"`
	// rule 5: residential land use, floors at or above MinFloors and
	// units strictly above MultiUnitThreshold
	ResidentialCode    int64 `json:"residential_code"`
	MinFloors          int64 `json:"min_floors"`
	MultiUnitThreshold int64 `json:"multi_unit_threshold"`
}

func DefaultRules() Rules {
	return Rules{
		MultiUnitResidentialCode:       1000000,
		ApartmentSubtypeCodes:          []int64{102000, 1001000, 1002000, 1006000},
		MixedCommercialResidentialCode: 207000,
		StandaloneUnitThreshold:        2,
		ResidentialCode:                100000,
		MinFloors:                      3,
		MultiUnitThreshold:             1,
	}
}

// Classifier decides is-apartment as a pure disjunction over the
// record's land-use, subtype, unit-count and floor fields. Evaluation
// order does not matter and re-evaluation never changes the result.
type Classifier struct {
	rules            Rules
	apartmentSubtype map[int64]bool
}

func NewClassifier(rules Rules) Classifier {
	subtypes := make(map[int64]bool, len(rules.ApartmentSubtypeCodes))
	for _, code := range rules.ApartmentSubtypeCodes {
		subtypes[code] = true
	}
	return Classifier{rules: rules, apartmentSubtype: subtypes}
}

func (c Classifier) Classify(r *Record) bool {
	if r.MainLandUseCode == c.rules.MultiUnitResidentialCode {
		return true
	}
	if c.apartmentSubtype[r.SubtypeCode] {
		return true
	}
	if r.SubtypeCode == c.rules.MixedCommercialResidentialCode {
		return true
	}
	if r.ResidentialUnits > c.rules.StandaloneUnitThreshold {
		return true
	}
	if r.MainLandUseCode == c.rules.ResidentialCode &&
		r.Floors >= c.rules.MinFloors &&
		r.ResidentialUnits > c.rules.MultiUnitThreshold {
		return true
	}
	return false
}

// Explain names each rule the record satisfies, for auditing a
// classification after the fact. Empty means non-apartment.
func (c Classifier) Explain(r *Record) []string {
	var matched []string
	if r.MainLandUseCode == c.rules.MultiUnitResidentialCode {
		matched = append(matched, "multi_unit_residential_land_use")
	}
	if c.apartmentSubtype[r.SubtypeCode] {
		matched = append(matched, "apartment_subtype")
	}
	if r.SubtypeCode == c.rules.MixedCommercialResidentialCode {
		matched = append(matched, "mixed_commercial_residential_subtype")
	}
	if r.ResidentialUnits > c.rules.StandaloneUnitThreshold {
		matched = append(matched, "unit_count")
	}
	if r.MainLandUseCode == c.rules.ResidentialCode &&
		r.Floors >= c.rules.MinFloors &&
		r.ResidentialUnits > c.rules.MultiUnitThreshold {
		matched = append(matched, "residential_multi_floor")
	}
	return matched
}
