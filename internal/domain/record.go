package domain

import (
	"fmt"
	"math"
)

// Rating is one of the five ordinal risk bands used by the county dataset.
type Rating string

const (
	RatingVeryLow            Rating = "Very Low"
	RatingRelativelyLow      Rating = "Relatively Low"
	RatingRelativelyModerate Rating = "Relatively Moderate"
	RatingRelativelyHigh     Rating = "Relatively High"
	RatingVeryHigh           Rating = "Very High"

	// RatingNone marks a slot with no derivable rating (no data).
	RatingNone Rating = ""
)

// RatingBreakpoints are the four ascending score cutoffs separating the five
// bands. A score at or above a cutoff lands in the higher band.
type RatingBreakpoints [4]float64

// DefaultBreakpoints returns the standard quintile cutoffs.
func DefaultBreakpoints() RatingBreakpoints {
	return RatingBreakpoints{20, 40, 60, 80}
}

// Validate checks that breakpoints are strictly ascending within (0, 100).
func (b RatingBreakpoints) Validate() error {
	prev := 0.0
	for i, v := range b {
		if v <= prev || v >= 100 {
			return fmt.Errorf("rating breakpoint %d: %g must be ascending within (0, 100)", i, v)
		}
		prev = v
	}
	return nil
}

// RatingFromScore maps a [0,100] score onto the five bands. Boundary values
// belong to the higher band: with default cutoffs, 80.0 is Very High while
// 79.999 is Relatively High.
func RatingFromScore(score float64, b RatingBreakpoints) Rating {
	switch {
	case score >= b[3]:
		return RatingVeryHigh
	case score >= b[2]:
		return RatingRelativelyHigh
	case score >= b[1]:
		return RatingRelativelyModerate
	case score >= b[0]:
		return RatingRelativelyLow
	default:
		return RatingVeryLow
	}
}

// HazardMetrics is one hazard slot of a county record: a [0,100] percentile
// risk score, an expected annual loss in dollars, and the ordinal rating
// assigned by the dataset.
type HazardMetrics struct {
	RiskScore  float64 `json:"risk_score"`
	EALDollars float64 `json:"eal_dollars"`
	Rating     Rating  `json:"rating"`
}

// CountyRecord is one county row of the national multi-hazard dataset.
// Records are read-only inputs; the pipeline never mutates them.
type CountyRecord struct {
	// FIPS is the fixed-width 5-digit county identifier (state 2 + county 3).
	FIPS  string
	Name  string
	State string // two-letter postal abbreviation

	// Hazards holds all 18 hazard-type slots. A zero score means the dataset
	// measured no risk of that type here; it is not a missing-data marker.
	Hazards map[HazardType]HazardMetrics

	// Composite indices, same slot shape. Social vulnerability and community
	// resilience are index-only: their EAL is always zero.
	OverallRisk         HazardMetrics
	SocialVulnerability HazardMetrics
	CommunityResilience HazardMetrics
}

// StateFIPS returns the 2-digit state prefix of the county FIPS, or "" when
// the FIPS is malformed.
func (r CountyRecord) StateFIPS() string {
	if len(r.FIPS) != 5 {
		return ""
	}
	return r.FIPS[:2]
}

// Validate rejects records that would poison downstream aggregation:
// malformed FIPS, scores outside [0,100], negative or non-finite dollars.
func (r CountyRecord) Validate() error {
	if len(r.FIPS) != 5 {
		return fmt.Errorf("county FIPS %q: want 5 digits", r.FIPS)
	}
	for _, c := range r.FIPS {
		if c < '0' || c > '9' {
			return fmt.Errorf("county FIPS %q: non-digit character", r.FIPS)
		}
	}
	check := func(name string, m HazardMetrics) error {
		if math.IsNaN(m.RiskScore) || math.IsInf(m.RiskScore, 0) || m.RiskScore < 0 || m.RiskScore > 100 {
			return fmt.Errorf("county %s: %s risk score %g outside [0,100]", r.FIPS, name, m.RiskScore)
		}
		if math.IsNaN(m.EALDollars) || math.IsInf(m.EALDollars, 0) || m.EALDollars < 0 {
			return fmt.Errorf("county %s: %s EAL %g negative or non-finite", r.FIPS, name, m.EALDollars)
		}
		return nil
	}
	for _, h := range hazardOrder {
		if err := check(string(h), r.Hazards[h]); err != nil {
			return err
		}
	}
	if err := check("overall_risk", r.OverallRisk); err != nil {
		return err
	}
	if err := check("social_vulnerability", r.SocialVulnerability); err != nil {
		return err
	}
	return check("community_resilience", r.CommunityResilience)
}
