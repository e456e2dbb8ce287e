// Package domain models county-level multi-hazard risk data and the
// per-jurisdiction profiles derived from it.
//
// # Data Source
//
// County risk metrics follow the FEMA National Risk Index (NRI) county table
// layout, available at https://hazards.fema.gov/nri/data-resources. One row
// per county, keyed by the 5-digit STCOFIPS code, with a fixed column block
// per hazard type plus composite indices. The table is fetched and staged by
// an upstream collector; this pipeline consumes the staged CSV read-only.
//
// # NRI Data Conventions
//
// Hazard column blocks:
//
//	Each of the 18 hazard types has a 4-letter column prefix
//	(e.g. WFIR for wildfire, RFLD for riverine flooding). The columns this
//	pipeline reads per block are:
//	  <PREFIX>_RISKS  risk score, a percentile in [0, 100]
//	  <PREFIX>_EALT   expected annual loss, dollars
//	  <PREFIX>_RISKR  rating, one of five ordinal bands
//
// Composite indices:
//
//	RISK_SCORE / RISK_RATNG / EAL_VALT   overall risk and its dollar EAL.
//	SOVI_SCORE / SOVI_RATNG              social vulnerability (index only).
//	RESL_SCORE / RESL_RATNG              community resilience (index only).
//	Index-only composites carry no dollar EAL; the slot's EAL stays zero.
//
// Rating bands:
//
//	"Very Low", "Relatively Low", "Relatively Moderate", "Relatively High",
//	"Very High". Ratings are ordinal categories: they are never averaged
//	across counties. A jurisdiction's rating is re-derived from its own
//	aggregated score through [RatingFromScore], with boundary values assigned
//	to the higher band.
//
// Zero scores:
//
//	A risk score of exactly 0 means the dataset measured no risk of that
//	type for the county (a mountain county has no coastal flooding). It is
//	meaningful data, not a missing-value sentinel, so all 18 slots are always
//	emitted in profiles and zero never ranks in [RankTopHazards].
//
// # Aggregation Operators
//
// Which operator combines a metric across a jurisdiction's counties depends
// only on the metric kind, resolved once for the whole schema (see [OpFor]):
//
//	percentile/index scores → weighted mean (crosswalk weights sum to 1)
//	dollar EAL              → proportional weighted sum; the jurisdiction
//	                          receives its geographic share of each county's
//	                          exposure, never the full county dollar value
//	ordinal ratings         → derived from the aggregated score, never
//	                          averaged from county ratings
//
// # Secondary-Source Overrides
//
// For override-eligible hazard types (wildfire today), a more specific
// per-location score from an independent secondary dataset replaces the
// area-weighted primary score when present and positive. The displaced
// primary value is preserved in the slot for audit; the hazard ranking is
// recomputed after substitution. See [ApplyOverrides].
package domain
