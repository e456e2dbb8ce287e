// Package crosswalk builds the geographic crosswalk between jurisdiction
// boundaries and county boundaries: for every jurisdiction, the set of
// counties it overlaps and the area-derived weight of each county. The
// snapshot is a standalone artifact so profile runs can reuse it whenever
// the boundary sources have not changed.
package crosswalk

import (
	"fmt"
	"math"
	"sort"

	"github.com/duskmoth/hazard-profile-etl/internal/geo"
)

// WeightTolerance is the allowed deviation of a mapping's weight sum from 1.
const WeightTolerance = 1e-4

// Entry is one (jurisdiction, county) pair that survived the sliver filter.
type Entry struct {
	CountyID    string  `json:"county_id"`
	OverlapArea float64 `json:"overlap_area"` // square meters, projected plane
	Weight      float64 `json:"weight"`
}

// Mapping is the full crosswalk row for one jurisdiction. Entries are sorted
// by weight descending, county id ascending on ties. A jurisdiction with no
// surviving overlap keeps an empty (never nil) entry list.
type Mapping struct {
	JurisdictionID  string           `json:"jurisdiction_id"`
	Name            string           `json:"name,omitempty"`
	Region          geo.RegionBucket `json:"region"`
	StateFIPS       string           `json:"state_fips,omitempty"`
	TotalOverlap    float64          `json:"total_overlap"`
	SliversDropped  int              `json:"slivers_dropped,omitempty"`
	OverlayFailures int              `json:"overlay_failures,omitempty"`
	Entries         []Entry          `json:"entries"`
}

// Snapshot is the persisted crosswalk artifact. It carries no wall-clock
// fields: rebuilding from identical boundary files yields identical bytes.
type Snapshot struct {
	GeometryChecksum string    `json:"geometry_checksum"`
	SliverThreshold  float64   `json:"sliver_threshold"`
	Mappings         []Mapping `json:"mappings"` // sorted by jurisdiction id
	ZeroOverlap      []string  `json:"zero_overlap,omitempty"`
}

// Reusable reports whether this snapshot can serve a run against the given
// boundary checksum and sliver threshold. Either changing forces a rebuild.
func (s *Snapshot) Reusable(checksum string, threshold float64) bool {
	return s.GeometryChecksum == checksum && s.SliverThreshold == threshold
}

// ByID returns the mapping for a jurisdiction id.
func (s *Snapshot) ByID(id string) (Mapping, bool) {
	i := sort.Search(len(s.Mappings), func(i int) bool {
		return s.Mappings[i].JurisdictionID >= id
	})
	if i < len(s.Mappings) && s.Mappings[i].JurisdictionID == id {
		return s.Mappings[i], true
	}
	return Mapping{}, false
}

// Validate checks the structural invariants of a snapshot: unique sorted
// jurisdiction ids, weight sums within WeightTolerance of 1, no entry below
// the sliver threshold, and entries in canonical order.
func (s *Snapshot) Validate() error {
	for i, m := range s.Mappings {
		if i > 0 && s.Mappings[i-1].JurisdictionID >= m.JurisdictionID {
			return fmt.Errorf("mappings out of order at %q", m.JurisdictionID)
		}
		if len(m.Entries) == 0 {
			continue
		}
		var sum float64
		for j, e := range m.Entries {
			if e.Weight <= 0 || math.IsNaN(e.Weight) || math.IsInf(e.Weight, 0) {
				return fmt.Errorf("jurisdiction %q: bad weight %v for county %s",
					m.JurisdictionID, e.Weight, e.CountyID)
			}
			if e.Weight+1e-12 < s.SliverThreshold {
				return fmt.Errorf("jurisdiction %q: county %s weight %v below sliver threshold %v",
					m.JurisdictionID, e.CountyID, e.Weight, s.SliverThreshold)
			}
			if j > 0 && !entryLess(m.Entries[j-1], e) {
				return fmt.Errorf("jurisdiction %q: entries out of order at county %s",
					m.JurisdictionID, e.CountyID)
			}
			sum += e.Weight
		}
		if math.Abs(sum-1) > WeightTolerance {
			return fmt.Errorf("jurisdiction %q: weights sum to %v, want 1 within %v",
				m.JurisdictionID, sum, WeightTolerance)
		}
	}
	return nil
}

func entryLess(a, b Entry) bool {
	if a.Weight != b.Weight {
		return a.Weight > b.Weight
	}
	return a.CountyID < b.CountyID
}
