// Command validate performs integrity checks across the persisted artifacts
// of a pipeline run: the crosswalk snapshot, per-jurisdiction profiles, the
// coverage report, and the run report. It verifies weight sums, schema
// completeness, rating consistency, override audit fields, and cross-artifact
// counts.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -artifacts out \
//	  -policy policy.yaml
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"sort"

	"github.com/duskmoth/hazard-profile-etl/internal/config"
	"github.com/duskmoth/hazard-profile-etl/internal/coverage"
	"github.com/duskmoth/hazard-profile-etl/internal/crosswalk"
	"github.com/duskmoth/hazard-profile-etl/internal/domain"
	"github.com/duskmoth/hazard-profile-etl/internal/store"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	artifacts := flag.String("artifacts", "", "run output directory to validate")
	policyPath := flag.String("policy", "", "aggregation policy file the run used (defaults apply when empty)")
	flag.Parse()

	if *artifacts == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*artifacts, *policyPath); code != 0 {
		os.Exit(code)
	}
}

func run(dir, policyPath string) int {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	policy, err := config.LoadPolicy(policyPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load policy: %v\n", err)
		return 1
	}

	// ── Load all artifacts ──
	fmt.Println("=== Hazard Profile Artifact Validation ===")
	fmt.Println()

	st := store.New(dir, logger)

	snap, err := st.LoadCrosswalk()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load crosswalk: %v\n", err)
		return 1
	}
	profiles, err := st.LoadProfiles()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load profiles: %v\n", err)
		return 1
	}
	cov, err := st.LoadCoverage()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load coverage: %v\n", err)
		return 1
	}
	runReport, err := st.LoadRunReport()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load run report: %v\n", err)
		return 1
	}

	// ── Run validation phases ──
	phases := []*phase{
		validateCrosswalk(snap),
		validateProfiles(profiles),
		validateScores(profiles, policy),
		validateOverrides(profiles),
		validateCoverage(cov, profiles, runReport, snap),
	}

	// ── Report results ──
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Artifacts: %d mappings, %d profiles, coverage total %d\n",
		len(snap.Mappings), len(profiles), cov.Total)

	// Print detailed errors.
	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Phase 1: Crosswalk Integrity ──
// Re-derives the snapshot's structural guarantees: sorted mappings, ordered
// entries, sliver-free weights summing to one.

func validateCrosswalk(snap crosswalk.Snapshot) *phase {
	p := &phase{name: "Phase 1: Crosswalk Integrity"}

	if snap.GeometryChecksum == "" {
		p.errorf("snapshot missing geometry checksum")
	}
	if snap.SliverThreshold < 0 || snap.SliverThreshold >= 1 {
		p.errorf("sliver threshold %g outside [0, 1)", snap.SliverThreshold)
	}

	for i := 1; i < len(snap.Mappings); i++ {
		if snap.Mappings[i-1].JurisdictionID >= snap.Mappings[i].JurisdictionID {
			p.errorf("mappings out of order at %d: %q then %q",
				i, snap.Mappings[i-1].JurisdictionID, snap.Mappings[i].JurisdictionID)
		}
	}

	zero := make(map[string]bool, len(snap.ZeroOverlap))
	for _, id := range snap.ZeroOverlap {
		zero[id] = true
	}

	for _, m := range snap.Mappings {
		if len(m.Entries) == 0 {
			if !zero[m.JurisdictionID] {
				p.errorf("%s: no entries but not listed in zero_overlap", m.JurisdictionID)
			}
			continue
		}
		if zero[m.JurisdictionID] {
			p.errorf("%s: has entries yet listed in zero_overlap", m.JurisdictionID)
		}

		sum := 0.0
		seen := make(map[string]bool, len(m.Entries))
		for i, e := range m.Entries {
			if len(e.CountyID) != 5 {
				p.errorf("%s: county id %q is not a 5-digit FIPS", m.JurisdictionID, e.CountyID)
			}
			if seen[e.CountyID] {
				p.errorf("%s: county %s appears twice", m.JurisdictionID, e.CountyID)
			}
			seen[e.CountyID] = true

			if math.IsNaN(e.Weight) || math.IsInf(e.Weight, 0) || e.Weight <= 0 {
				p.errorf("%s: county %s weight %g not positive finite", m.JurisdictionID, e.CountyID, e.Weight)
				continue
			}
			if e.Weight < snap.SliverThreshold-1e-12 {
				p.errorf("%s: county %s weight %.6f below sliver threshold %g",
					m.JurisdictionID, e.CountyID, e.Weight, snap.SliverThreshold)
			}
			if e.Weight > 1+1e-6 {
				p.errorf("%s: county %s weight %.6f exceeds 1", m.JurisdictionID, e.CountyID, e.Weight)
			}
			sum += e.Weight

			if i == 0 {
				continue
			}
			prev := m.Entries[i-1]
			if e.Weight > prev.Weight {
				p.errorf("%s: entries not weight-descending at %d (%.6f after %.6f)",
					m.JurisdictionID, i, e.Weight, prev.Weight)
			} else if e.Weight == prev.Weight && e.CountyID < prev.CountyID {
				p.errorf("%s: equal-weight entries out of county order at %d", m.JurisdictionID, i)
			}
		}
		if math.Abs(sum-1) > 1e-4 {
			p.errorf("%s: weights sum to %.6f, want 1 within 1e-4", m.JurisdictionID, sum)
		}
	}

	byID := make(map[string]bool, len(snap.Mappings))
	for _, m := range snap.Mappings {
		byID[m.JurisdictionID] = true
	}
	for _, id := range snap.ZeroOverlap {
		if !byID[id] {
			p.errorf("zero_overlap lists unknown jurisdiction %q", id)
		}
	}
	return p
}

// ── Phase 2: Profile Completeness ──
// Every profile carries all 18 hazard slots and a known status; placeholders
// are fully zeroed.

func validateProfiles(profiles []domain.HazardProfile) *phase {
	p := &phase{name: "Phase 2: Profile Completeness"}

	validStatus := map[domain.ProfileStatus]bool{
		domain.StatusOK:       true,
		domain.StatusFallback: true,
		domain.StatusNoData:   true,
	}

	seen := make(map[string]bool, len(profiles))
	for i := range profiles {
		prof := &profiles[i]
		id := prof.JurisdictionID
		if id == "" {
			p.errorf("profile %d: missing jurisdiction id", i)
			continue
		}
		if seen[id] {
			p.errorf("%s: duplicate profile", id)
		}
		seen[id] = true

		if !validStatus[prof.Status] {
			p.errorf("%s: unknown status %q", id, prof.Status)
		}

		if got, want := len(prof.Hazards), len(domain.HazardTypes()); got != want {
			p.errorf("%s: %d hazard slots, want %d", id, got, want)
		}
		for _, h := range domain.HazardTypes() {
			if _, ok := prof.Hazards[h]; !ok {
				p.errorf("%s: missing hazard slot %s", id, h)
			}
		}

		if prof.Status != domain.StatusNoData {
			continue
		}
		for _, h := range domain.HazardTypes() {
			slot := prof.Hazards[h]
			if slot.WeightedRiskScore != 0 || slot.WeightedEAL != 0 {
				p.errorf("%s: no_data profile carries nonzero %s slot", id, h)
			}
			if slot.Rating != domain.RatingNone {
				p.errorf("%s: no_data profile rates %s as %q", id, h, slot.Rating)
			}
		}
		if len(prof.TopHazards) != 0 {
			p.errorf("%s: no_data profile ranks top hazards", id)
		}
		if len(prof.Provenance.CountiesUsed) != 0 {
			p.errorf("%s: no_data profile lists contributing counties", id)
		}
	}
	return p
}

// ── Phase 3: Score and Rating Consistency ──
// Slot ratings must re-derive from their scores, and the top-hazard ranking
// must be positive, descending, and agree with the slots it ranks.

func validateScores(profiles []domain.HazardProfile, policy domain.Policy) *phase {
	p := &phase{name: "Phase 3: Score and Rating Consistency"}

	for i := range profiles {
		prof := &profiles[i]
		if prof.Status == domain.StatusNoData {
			continue
		}
		id := prof.JurisdictionID

		for _, h := range domain.HazardTypes() {
			checkSlot(p, id, string(h), prof.Hazards[h], policy.Breakpoints)
		}
		checkSlot(p, id, "overall_risk", prof.OverallRisk, policy.Breakpoints)
		checkSlot(p, id, "social_vulnerability", prof.SocialVulnerability, policy.Breakpoints)
		checkSlot(p, id, "community_resilience", prof.CommunityResilience, policy.Breakpoints)

		checkTopHazards(p, prof, policy.TopHazards)
	}
	return p
}

func checkSlot(p *phase, id, name string, slot domain.ProfileSlot, breaks domain.RatingBreakpoints) {
	if math.IsNaN(slot.WeightedRiskScore) || slot.WeightedRiskScore < 0 || slot.WeightedRiskScore > 100 {
		p.errorf("%s: %s score %g outside [0,100]", id, name, slot.WeightedRiskScore)
		return
	}
	if math.IsNaN(slot.WeightedEAL) || slot.WeightedEAL < 0 {
		p.errorf("%s: %s EAL %g negative or NaN", id, name, slot.WeightedEAL)
	}
	if want := domain.RatingFromScore(slot.WeightedRiskScore, breaks); slot.Rating != want {
		p.errorf("%s: %s rating %q does not match score %.2f (want %q)",
			id, name, slot.Rating, slot.WeightedRiskScore, want)
	}
}

func checkTopHazards(p *phase, prof *domain.HazardProfile, topN int) {
	id := prof.JurisdictionID
	if len(prof.TopHazards) > topN {
		p.errorf("%s: %d top hazards, policy caps at %d", id, len(prof.TopHazards), topN)
	}

	prev := math.Inf(1)
	for i, th := range prof.TopHazards {
		if !th.Type.Valid() {
			p.errorf("%s: top hazard %d has unknown type %q", id, i, th.Type)
			continue
		}
		if th.Score <= 0 {
			p.errorf("%s: top hazard %s has non-positive score %g", id, th.Type, th.Score)
		}
		if th.Score > prev {
			p.errorf("%s: top hazards out of order at %d (%g after %g)", id, i, th.Score, prev)
		}
		prev = th.Score

		slot, ok := prof.Hazards[th.Type]
		if !ok {
			p.errorf("%s: top hazard %s has no slot", id, th.Type)
			continue
		}
		if !floatEq(slot.WeightedRiskScore, th.Score) {
			p.errorf("%s: top hazard %s score %g disagrees with slot score %g",
				id, th.Type, th.Score, slot.WeightedRiskScore)
		}
	}
}

// ── Phase 4: Override Audit ──
// Override slots must preserve the displaced primary score; primary slots
// must not carry one. Composite slots are never overridden.

func validateOverrides(profiles []domain.HazardProfile) *phase {
	p := &phase{name: "Phase 4: Override Audit"}

	for i := range profiles {
		prof := &profiles[i]
		id := prof.JurisdictionID

		for _, h := range domain.HazardTypes() {
			slot := prof.Hazards[h]
			switch slot.Source {
			case domain.SourcePrimary:
				if slot.OriginalPrimaryScore != nil {
					p.errorf("%s: %s: primary slot carries original_primary_score", id, h)
				}
			case domain.SourceOverride:
				if prof.Status == domain.StatusNoData {
					p.errorf("%s: %s: no_data profile carries an override", id, h)
				}
				if slot.OriginalPrimaryScore == nil {
					p.errorf("%s: %s: override slot missing original_primary_score", id, h)
				}
				if slot.WeightedRiskScore <= 0 {
					p.errorf("%s: %s: override slot score %g not positive", id, h, slot.WeightedRiskScore)
				}
			default:
				p.errorf("%s: %s: unknown score source %q", id, h, slot.Source)
			}
		}

		for _, c := range []struct {
			name string
			slot domain.ProfileSlot
		}{
			{"overall_risk", prof.OverallRisk},
			{"social_vulnerability", prof.SocialVulnerability},
			{"community_resilience", prof.CommunityResilience},
		} {
			if c.slot.Source != domain.SourcePrimary {
				p.errorf("%s: composite %s has source %q, composites are never overridden",
					id, c.name, c.slot.Source)
			}
		}
	}
	return p
}

// ── Phase 5: Coverage Reconciliation ──
// The coverage report and run report must agree with a recount over the
// profile files and with the snapshot they were produced from.

func validateCoverage(cov coverage.Report, profiles []domain.HazardProfile, run store.RunReport, snap crosswalk.Snapshot) *phase {
	p := &phase{name: "Phase 5: Coverage Reconciliation"}

	var counts coverage.StatusCounts
	overrideCounts := map[string]int{}
	for i := range profiles {
		switch profiles[i].Status {
		case domain.StatusOK:
			counts.OK++
		case domain.StatusFallback:
			counts.Fallback++
		case domain.StatusNoData:
			counts.NoData++
		}
		for _, h := range domain.HazardTypes() {
			if profiles[i].Hazards[h].Source == domain.SourceOverride {
				overrideCounts[string(h)]++
			}
		}
	}

	if cov.Total != len(profiles) {
		p.errorf("coverage total %d, %d profile files on disk", cov.Total, len(profiles))
	}
	if cov.Overall != counts {
		p.errorf("coverage overall %+v, profile recount %+v", cov.Overall, counts)
	}
	if cov.Overall.Total() != cov.Total {
		p.errorf("coverage status counts sum to %d, total says %d", cov.Overall.Total(), cov.Total)
	}
	regionTotal := 0
	for _, c := range cov.ByRegion {
		regionTotal += c.Total()
	}
	if len(cov.ByRegion) > 0 && regionTotal != cov.Total {
		p.errorf("coverage regions sum to %d, total says %d", regionTotal, cov.Total)
	}
	if cov.GeneratedAt.IsZero() {
		p.errorf("coverage missing generated_at")
	}

	for _, h := range domain.HazardTypes() {
		want := overrideCounts[string(h)]
		if got := cov.Overrides[string(h)]; got != want {
			p.errorf("coverage counts %d %s overrides, profiles carry %d", got, h, want)
		}
	}
	extra := make([]string, 0)
	for h := range cov.Overrides {
		if !domain.HazardType(h).Valid() {
			extra = append(extra, h)
		}
	}
	sort.Strings(extra)
	for _, h := range extra {
		p.errorf("coverage lists overrides for unknown hazard %q", h)
	}

	overridesTotal := 0
	for _, n := range overrideCounts {
		overridesTotal += n
	}

	if run.RunID == "" {
		p.errorf("run report missing run_id")
	}
	if run.FinishedAt.Before(run.StartedAt) {
		p.errorf("run finished_at %s precedes started_at %s", run.FinishedAt, run.StartedAt)
	}
	if run.GeometryChecksum != snap.GeometryChecksum {
		p.errorf("run geometry checksum %q, snapshot carries %q", run.GeometryChecksum, snap.GeometryChecksum)
	}
	if run.Jurisdictions != len(snap.Mappings) {
		p.errorf("run counted %d jurisdictions, snapshot has %d mappings", run.Jurisdictions, len(snap.Mappings))
	}
	if run.ProfilesWritten != len(profiles) {
		p.errorf("run wrote %d profiles, %d files on disk", run.ProfilesWritten, len(profiles))
	}
	if run.OverridesApplied != overridesTotal {
		p.errorf("run applied %d overrides, profiles carry %d", run.OverridesApplied, overridesTotal)
	}
	if run.Edition != cov.Edition {
		p.errorf("run edition %q, coverage edition %q", run.Edition, cov.Edition)
	}
	return p
}

// ── Helpers ──

func floatEq(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}
