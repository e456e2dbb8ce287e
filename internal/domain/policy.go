package domain

import "fmt"

// Policy carries the tunable aggregation parameters. The sliver threshold
// and rating breakpoints are policy decisions, not physical constants, so
// they load from configuration instead of living as embedded literals.
type Policy struct {
	// SliverThreshold is the minimum fraction of a jurisdiction's total
	// overlap area an overlap must reach to survive weighting.
	SliverThreshold float64

	// Breakpoints are the score cutoffs between the five rating bands.
	Breakpoints RatingBreakpoints

	// TopHazards caps the length of a profile's hazard ranking.
	TopHazards int
}

// DefaultPolicy returns the standard parameters: 1% sliver cutoff, quintile
// rating bands, top-5 ranking.
func DefaultPolicy() Policy {
	return Policy{
		SliverThreshold: 0.01,
		Breakpoints:     DefaultBreakpoints(),
		TopHazards:      5,
	}
}

// Validate rejects parameter combinations the aggregator cannot honor.
func (p Policy) Validate() error {
	if p.SliverThreshold < 0 || p.SliverThreshold >= 1 {
		return fmt.Errorf("sliver threshold %g outside [0, 1)", p.SliverThreshold)
	}
	if err := p.Breakpoints.Validate(); err != nil {
		return err
	}
	if p.TopHazards < 1 || p.TopHazards > len(hazardOrder) {
		return fmt.Errorf("top hazards %d outside 1..%d", p.TopHazards, len(hazardOrder))
	}
	return nil
}
