// Package profile combines crosswalk weights with county hazard records into
// per-jurisdiction hazard profiles. Aggregation is pure per jurisdiction:
// one mapping in, one profile out, no shared state between jurisdictions.
package profile

import (
	"log/slog"
	"sort"

	"github.com/duskmoth/hazard-profile-etl/internal/crosswalk"
	"github.com/duskmoth/hazard-profile-etl/internal/domain"
)

// RecordSource hands out county hazard records and the per-state county
// index used by the coarse fallback match.
type RecordSource interface {
	Get(fips string) (domain.CountyRecord, bool)
	StateCounties(stateFIPS string) []string
}

// Aggregator computes hazard profiles from crosswalk mappings.
type Aggregator struct {
	records  RecordSource
	policy   domain.Policy
	edition  string
	checksum string
	logger   *slog.Logger
}

// NewAggregator creates an Aggregator. The edition and crosswalk checksum are
// stamped into every profile's provenance.
func NewAggregator(records RecordSource, policy domain.Policy, edition, checksum string, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		records:  records,
		policy:   policy,
		edition:  edition,
		checksum: checksum,
		logger:   logger,
	}
}

// Aggregate builds the profile for one jurisdiction. An empty mapping falls
// back to equal weights over the jurisdiction's state counties; if that too
// yields nothing, the result is a placeholder profile with status no_data.
// Counties referenced by the mapping but absent from the record table are
// excluded without renormalizing the surviving weights, which understates
// rather than fabricates risk.
func (a *Aggregator) Aggregate(m crosswalk.Mapping) domain.HazardProfile {
	entries := m.Entries
	status := domain.StatusOK
	if len(entries) == 0 {
		entries = a.fallbackEntries(m)
		if len(entries) == 0 {
			a.logger.Warn("no county match for jurisdiction, emitting placeholder",
				"jurisdiction_id", m.JurisdictionID)
			p := domain.NewPlaceholderProfile(m.JurisdictionID, m.Name, string(m.Region), a.edition)
			p.Provenance.CrosswalkChecksum = a.checksum
			return p
		}
		status = domain.StatusFallback
		a.logger.Info("state-level fallback match",
			"jurisdiction_id", m.JurisdictionID,
			"state_fips", m.StateFIPS,
			"counties", len(entries))
	}

	slots := make(map[domain.HazardType]domain.ProfileSlot, len(domain.HazardTypes()))
	var overall, sovi, resilience domain.ProfileSlot
	var used, skipped []string

	for _, e := range entries {
		rec, ok := a.records.Get(e.CountyID)
		if !ok {
			a.logger.Warn("county record missing, excluding its term",
				"jurisdiction_id", m.JurisdictionID,
				"county_id", e.CountyID,
				"weight", e.Weight)
			skipped = append(skipped, e.CountyID)
			continue
		}
		used = append(used, e.CountyID)

		for _, h := range domain.HazardTypes() {
			slot := slots[h]
			accumulate(&slot, e.Weight, rec.Hazards[h])
			slots[h] = slot
		}
		accumulate(&overall, e.Weight, rec.OverallRisk)
		accumulate(&sovi, e.Weight, rec.SocialVulnerability)
		accumulate(&resilience, e.Weight, rec.CommunityResilience)
	}

	for _, h := range domain.HazardTypes() {
		slot := slots[h]
		finalize(&slot, a.policy.Breakpoints)
		slots[h] = slot
	}
	finalize(&overall, a.policy.Breakpoints)
	finalize(&sovi, a.policy.Breakpoints)
	finalize(&resilience, a.policy.Breakpoints)

	sort.Strings(used)
	sort.Strings(skipped)

	return domain.HazardProfile{
		JurisdictionID:      m.JurisdictionID,
		Name:                m.Name,
		Region:              string(m.Region),
		Status:              status,
		Hazards:             slots,
		OverallRisk:         overall,
		SocialVulnerability: sovi,
		CommunityResilience: resilience,
		TopHazards:          domain.RankTopHazards(slots, a.policy.TopHazards),
		Provenance: domain.Provenance{
			Edition:           a.edition,
			CrosswalkChecksum: a.checksum,
			CountiesUsed:      used,
			CountiesSkipped:   skipped,
		},
	}
}

// fallbackEntries builds an equal-weight entry per county of the
// jurisdiction's state, matched on the 2-digit FIPS prefix.
func (a *Aggregator) fallbackEntries(m crosswalk.Mapping) []crosswalk.Entry {
	if m.StateFIPS == "" {
		return nil
	}
	fips := a.records.StateCounties(m.StateFIPS)
	if len(fips) == 0 {
		return nil
	}
	w := 1.0 / float64(len(fips))
	entries := make([]crosswalk.Entry, 0, len(fips))
	for _, f := range fips {
		entries = append(entries, crosswalk.Entry{CountyID: f, Weight: w})
	}
	return entries
}

// accumulate folds one county's metrics into a slot under the operator
// registered for each field.
func accumulate(slot *domain.ProfileSlot, weight float64, m domain.HazardMetrics) {
	slot.WeightedRiskScore = applyOp(domain.FieldRiskScore, slot.WeightedRiskScore, weight, m.RiskScore)
	slot.WeightedEAL = applyOp(domain.FieldEAL, slot.WeightedEAL, weight, m.EALDollars)
}

// applyOp advances a running aggregate by one weighted term. Weighted mean
// and proportional sum share the Σ(weight×value) form: the mean emerges
// because crosswalk weights sum to 1. Derived fields fold nothing; they are
// computed in finalize.
func applyOp(f domain.MetricField, acc, weight, value float64) float64 {
	switch domain.OpFor(f) {
	case domain.AggWeightedMean, domain.AggProportionalSum:
		return acc + weight*value
	default:
		return acc
	}
}

// finalize derives the slot's rating from its own weighted score. County
// ratings are ordinal and never averaged.
func finalize(slot *domain.ProfileSlot, breakpoints domain.RatingBreakpoints) {
	if domain.OpFor(domain.FieldRating) == domain.AggDerived {
		slot.Rating = domain.RatingFromScore(slot.WeightedRiskScore, breakpoints)
	}
	slot.Source = domain.SourcePrimary
}
