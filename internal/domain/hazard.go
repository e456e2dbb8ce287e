package domain

// HazardType identifies one of the 18 hazard types carried by the county
// dataset. The string form is the key used in profile artifacts.
type HazardType string

const (
	Avalanche        HazardType = "avalanche"
	CoastalFlooding  HazardType = "coastal_flooding"
	ColdWave         HazardType = "cold_wave"
	Drought          HazardType = "drought"
	Earthquake       HazardType = "earthquake"
	Hail             HazardType = "hail"
	HeatWave         HazardType = "heat_wave"
	Hurricane        HazardType = "hurricane"
	IceStorm         HazardType = "ice_storm"
	Landslide        HazardType = "landslide"
	Lightning        HazardType = "lightning"
	RiverineFlooding HazardType = "riverine_flooding"
	StrongWind       HazardType = "strong_wind"
	Tornado          HazardType = "tornado"
	Tsunami          HazardType = "tsunami"
	VolcanicActivity HazardType = "volcanic_activity"
	Wildfire         HazardType = "wildfire"
	WinterWeather    HazardType = "winter_weather"
)

// hazardOrder is the canonical ordering, matching the column order of the
// source dataset. Ranking tie-breaks and artifact output follow this order.
var hazardOrder = []HazardType{
	Avalanche, CoastalFlooding, ColdWave, Drought, Earthquake, Hail,
	HeatWave, Hurricane, IceStorm, Landslide, Lightning, RiverineFlooding,
	StrongWind, Tornado, Tsunami, VolcanicActivity, Wildfire, WinterWeather,
}

// columnPrefixes maps each hazard type to its column prefix in the county
// dataset, e.g. wildfire → WFIR (WFIR_RISKS, WFIR_EALT, WFIR_RISKR).
var columnPrefixes = map[HazardType]string{
	Avalanche:        "AVLN",
	CoastalFlooding:  "CFLD",
	ColdWave:         "CWAV",
	Drought:          "DRGT",
	Earthquake:       "ERQK",
	Hail:             "HAIL",
	HeatWave:         "HWAV",
	Hurricane:        "HRCN",
	IceStorm:         "ISTM",
	Landslide:        "LNDS",
	Lightning:        "LTNG",
	RiverineFlooding: "RFLD",
	StrongWind:       "SWND",
	Tornado:          "TRND",
	Tsunami:          "TSUN",
	VolcanicActivity: "VLCN",
	Wildfire:         "WFIR",
	WinterWeather:    "WNTW",
}

// HazardTypes returns all 18 hazard types in canonical order. The returned
// slice is a copy; callers may reorder it freely.
func HazardTypes() []HazardType {
	out := make([]HazardType, len(hazardOrder))
	copy(out, hazardOrder)
	return out
}

// ColumnPrefix returns the county-dataset column prefix for h, or "" if h is
// not one of the 18 known types.
func (h HazardType) ColumnPrefix() string {
	return columnPrefixes[h]
}

// Valid reports whether h is one of the 18 known hazard types.
func (h HazardType) Valid() bool {
	_, ok := columnPrefixes[h]
	return ok
}

// canonicalIndex returns h's position in the canonical order, or
// len(hazardOrder) for unknown types so they sort last.
func canonicalIndex(h HazardType) int {
	for i, t := range hazardOrder {
		if t == h {
			return i
		}
	}
	return len(hazardOrder)
}

// AggKind says how one metric kind combines across a jurisdiction's counties.
// The operator per slot field is fixed by fieldOps.
type AggKind int

const (
	// AggWeightedMean: Σ(weight × value) with weights summing to 1,
	// a weighted average. Applies to percentile and index scores.
	AggWeightedMean AggKind = iota

	// AggProportionalSum: Σ(weight × value) where each term is the
	// jurisdiction's geographic share of that county's dollar exposure.
	// Numerically the same loop as the mean, but semantically a partial sum:
	// summing full county values would double-count exposure shared with
	// neighboring jurisdictions.
	AggProportionalSum

	// AggDerived: ordinal categories cannot be averaged; the value is
	// re-derived from the jurisdiction's own aggregated score.
	AggDerived
)

// MetricField identifies one field of a hazard slot.
type MetricField int

const (
	FieldRiskScore MetricField = iota
	FieldEAL
	FieldRating
)

// fieldOps is the closed operator table: which AggKind applies to which
// slot field, fixed for the whole schema.
var fieldOps = map[MetricField]AggKind{
	FieldRiskScore: AggWeightedMean,
	FieldEAL:       AggProportionalSum,
	FieldRating:    AggDerived,
}

// OpFor returns the aggregation operator for a slot field.
func OpFor(f MetricField) AggKind {
	return fieldOps[f]
}
