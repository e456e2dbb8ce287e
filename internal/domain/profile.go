package domain

import (
	"log/slog"
	"sort"
)

// ProfileStatus says how a jurisdiction's profile was produced.
type ProfileStatus string

const (
	// StatusOK: aggregated from the jurisdiction's own crosswalk weights.
	StatusOK ProfileStatus = "ok"
	// StatusFallback: no surviving overlaps; aggregated from a coarser
	// state-level county match instead.
	StatusFallback ProfileStatus = "fallback"
	// StatusNoData: no overlaps and no fallback match. The profile is a
	// well-formed placeholder, distinguishable from a real all-zero profile.
	StatusNoData ProfileStatus = "no_data"
)

// ScoreSource says where a slot's risk score came from.
type ScoreSource string

const (
	SourcePrimary  ScoreSource = "primary"
	SourceOverride ScoreSource = "override"
)

// ProfileSlot is one hazard type's aggregated metrics for a jurisdiction.
type ProfileSlot struct {
	WeightedRiskScore float64     `json:"weighted_risk_score"`
	WeightedEAL       float64     `json:"weighted_eal"`
	Rating            Rating      `json:"rating"`
	Source            ScoreSource `json:"source"`

	// OriginalPrimaryScore preserves the displaced primary score when an
	// override was applied, for audit and comparison. Nil otherwise.
	OriginalPrimaryScore *float64 `json:"original_primary_score,omitempty"`
}

// TopHazard is one entry of a profile's descending hazard ranking.
type TopHazard struct {
	Type  HazardType `json:"type"`
	Score float64    `json:"score"`
}

// Provenance records where a profile's numbers came from.
type Provenance struct {
	// Edition is the county dataset edition the scores were read from.
	Edition string `json:"edition"`
	// CrosswalkChecksum ties the profile to the boundary snapshot it used.
	CrosswalkChecksum string `json:"crosswalk_checksum,omitempty"`
	// CountiesUsed lists the FIPS codes whose metrics contributed.
	CountiesUsed []string `json:"counties_used,omitempty"`
	// CountiesSkipped lists crosswalk counties with no usable dataset row.
	// Their weight is deliberately not redistributed (see aggregator).
	CountiesSkipped []string `json:"counties_skipped,omitempty"`
}

// HazardProfile is the per-jurisdiction output record. All 18 hazard slots
// are always present (a zero score is data, not absence), so downstream
// consumers can rely on schema completeness.
type HazardProfile struct {
	JurisdictionID string        `json:"jurisdiction_id"`
	Name           string        `json:"name,omitempty"`
	Region         string        `json:"region,omitempty"`
	Status         ProfileStatus `json:"status"`

	Hazards map[HazardType]ProfileSlot `json:"hazards"`

	OverallRisk         ProfileSlot `json:"overall_risk"`
	SocialVulnerability ProfileSlot `json:"social_vulnerability"`
	CommunityResilience ProfileSlot `json:"community_resilience"`

	// TopHazards ranks hazard types with a positive score, descending,
	// truncated to the configured length. Empty for all-zero profiles.
	TopHazards []TopHazard `json:"top_hazards"`

	Provenance Provenance `json:"provenance"`
}

// NewPlaceholderProfile returns a complete no_data profile: every slot
// present and zeroed, no ranking. Emitted when neither crosswalk nor
// fallback produced a county match, so downstream artifacts stay complete.
func NewPlaceholderProfile(id, name, region, edition string) HazardProfile {
	hazards := make(map[HazardType]ProfileSlot, len(hazardOrder))
	for _, h := range hazardOrder {
		hazards[h] = ProfileSlot{Source: SourcePrimary, Rating: RatingNone}
	}
	empty := ProfileSlot{Source: SourcePrimary, Rating: RatingNone}
	return HazardProfile{
		JurisdictionID:      id,
		Name:                name,
		Region:              region,
		Status:              StatusNoData,
		Hazards:             hazards,
		OverallRisk:         empty,
		SocialVulnerability: empty,
		CommunityResilience: empty,
		TopHazards:          []TopHazard{},
		Provenance:          Provenance{Edition: edition},
	}
}

// RankTopHazards returns the up-to-n highest-scoring hazard types.
// Zero-score types never rank; score ties break on canonical hazard order so
// repeated runs produce identical output.
func RankTopHazards(slots map[HazardType]ProfileSlot, n int) []TopHazard {
	ranked := make([]TopHazard, 0, len(slots))
	for _, h := range hazardOrder {
		if slot, ok := slots[h]; ok && slot.WeightedRiskScore > 0 {
			ranked = append(ranked, TopHazard{Type: h, Score: slot.WeightedRiskScore})
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return canonicalIndex(ranked[i].Type) < canonicalIndex(ranked[j].Type)
	})
	if n >= 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// OverrideSource supplies a secondary, independently sourced score for one
// hazard type, keyed by jurisdiction id. Implementations return ok=false
// when no secondary record exists for the location.
type OverrideSource interface {
	Lookup(jurisdictionID string) (score float64, ok bool)
}

// OverrideRegistry maps override-eligible hazard types to their secondary
// source. Only wildfire is wired today; adding another type is a map entry,
// not a structural change.
type OverrideRegistry map[HazardType]OverrideSource

// ApplyOverrides substitutes secondary scores into eligible slots of p.
// The displaced primary score is preserved in OriginalPrimaryScore, the
// slot's rating is re-derived from the substituted score, and TopHazards is
// re-ranked from scratch since the substitution may change ordering.
// Jurisdictions without a secondary record are left untouched.
func ApplyOverrides(p *HazardProfile, reg OverrideRegistry, breakpoints RatingBreakpoints, topN int, logger *slog.Logger) {
	if len(reg) == 0 || p.Status == StatusNoData {
		return
	}

	applied := false
	for _, h := range hazardOrder {
		src, ok := reg[h]
		if !ok {
			continue
		}
		secondary, ok := src.Lookup(p.JurisdictionID)
		if !ok || secondary <= 0 {
			logger.Debug("no secondary score, primary stands",
				"jurisdiction", p.JurisdictionID, "hazard", h)
			continue
		}

		slot := p.Hazards[h]
		original := slot.WeightedRiskScore
		slot.OriginalPrimaryScore = &original
		slot.WeightedRiskScore = secondary
		slot.Rating = RatingFromScore(secondary, breakpoints)
		slot.Source = SourceOverride
		p.Hazards[h] = slot
		applied = true

		logger.Info("secondary source override applied",
			"jurisdiction", p.JurisdictionID,
			"hazard", h,
			"primary_score", original,
			"override_score", secondary,
		)
	}

	if applied {
		p.TopHazards = RankTopHazards(p.Hazards, topN)
	}
}
