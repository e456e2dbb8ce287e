// Package coverage summarizes data completeness across a run's hazard
// profiles: how many jurisdictions resolved cleanly, how many needed the
// coarse fallback, how many have no data at all, and where overrides fired.
package coverage

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/duskmoth/hazard-profile-etl/internal/domain"
)

// StatusCounts tallies profiles by status.
type StatusCounts struct {
	OK       int `json:"ok"`
	Fallback int `json:"fallback"`
	NoData   int `json:"no_data"`
}

// Total is the number of profiles behind the tally.
func (c StatusCounts) Total() int {
	return c.OK + c.Fallback + c.NoData
}

func (c *StatusCounts) add(s domain.ProfileStatus) {
	switch s {
	case domain.StatusFallback:
		c.Fallback++
	case domain.StatusNoData:
		c.NoData++
	default:
		c.OK++
	}
}

// Report is the structured coverage artifact. An empty profile set yields a
// valid zero report.
type Report struct {
	GeneratedAt time.Time               `json:"generated_at"`
	Edition     string                  `json:"edition"`
	Total       int                     `json:"total"`
	Overall     StatusCounts            `json:"overall"`
	ByRegion    map[string]StatusCounts `json:"by_region"`
	Overrides   map[string]int          `json:"overrides,omitempty"`
}

// Build computes the coverage report over a set of profiles.
func Build(profiles []domain.HazardProfile, edition string) Report {
	r := Report{
		GeneratedAt: domain.Now().UTC(),
		Edition:     edition,
		Total:       len(profiles),
		ByRegion:    make(map[string]StatusCounts),
		Overrides:   make(map[string]int),
	}
	for _, p := range profiles {
		r.Overall.add(p.Status)

		region := p.Region
		if region == "" {
			region = "unknown"
		}
		counts := r.ByRegion[region]
		counts.add(p.Status)
		r.ByRegion[region] = counts

		for h, slot := range p.Hazards {
			if slot.Source == domain.SourceOverride {
				r.Overrides[string(h)]++
			}
		}
	}
	return r
}

// Narrative renders the report as operator-readable text.
func (r Report) Narrative() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hazard profile coverage (edition %s)\n", r.Edition)
	fmt.Fprintf(&b, "Generated %s\n\n", r.GeneratedAt.Format(time.RFC3339))

	fmt.Fprintf(&b, "Jurisdictions: %d\n", r.Total)
	if r.Total == 0 {
		b.WriteString("  (no profiles)\n")
		return b.String()
	}
	fmt.Fprintf(&b, "  ok:       %4d (%s)\n", r.Overall.OK, percent(r.Overall.OK, r.Total))
	fmt.Fprintf(&b, "  fallback: %4d (%s)\n", r.Overall.Fallback, percent(r.Overall.Fallback, r.Total))
	fmt.Fprintf(&b, "  no_data:  %4d (%s)\n", r.Overall.NoData, percent(r.Overall.NoData, r.Total))

	if len(r.ByRegion) > 0 {
		b.WriteString("\nBy region:\n")
		regions := make([]string, 0, len(r.ByRegion))
		for region := range r.ByRegion {
			regions = append(regions, region)
		}
		sort.Strings(regions)
		for _, region := range regions {
			c := r.ByRegion[region]
			fmt.Fprintf(&b, "  %-8s %4d total (ok %d, fallback %d, no_data %d)\n",
				region+":", c.Total(), c.OK, c.Fallback, c.NoData)
		}
	}

	if len(r.Overrides) > 0 {
		b.WriteString("\nOverrides applied:\n")
		types := make([]string, 0, len(r.Overrides))
		for h := range r.Overrides {
			types = append(types, h)
		}
		sort.Strings(types)
		for _, h := range types {
			fmt.Fprintf(&b, "  %-18s %d\n", h+":", r.Overrides[h])
		}
	}
	return b.String()
}

func percent(n, total int) string {
	if total == 0 {
		return "0.0%"
	}
	return fmt.Sprintf("%.1f%%", 100*float64(n)/float64(total))
}
