// Command genmock generates a synthetic boundary and hazard dataset for the
// pipeline test suites: a county grid, jurisdiction polygons overlapping it,
// a county hazard CSV, and a wildfire override CSV. The generated files are
// fed back through the real loaders and the crosswalk builder, so the printed
// stats match actual pipeline behavior.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -out data \
//	  -grid 3 -districts 5 -seed 42
package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/duskmoth/hazard-profile-etl/internal/adapter/wildfire"
	"github.com/duskmoth/hazard-profile-etl/internal/crosswalk"
	"github.com/duskmoth/hazard-profile-etl/internal/domain"
	"github.com/duskmoth/hazard-profile-etl/internal/geo"
	"github.com/duskmoth/hazard-profile-etl/internal/nri"
	"github.com/duskmoth/hazard-profile-etl/internal/profile"
)

// Grid origin in degrees. Counties are 1x1 degree cells marching east along
// each row.
const (
	originLon = -100.0
	originLat = 30.0
)

// countyNames are Texas county names in FIPS order, so synthetic GEOIDs
// 48001, 48003, ... carry plausible names.
var countyNames = []string{
	"Anderson", "Andrews", "Angelina", "Aransas", "Archer", "Armstrong",
	"Atascosa", "Austin", "Bailey", "Bandera", "Bastrop", "Baylor",
	"Bee", "Bell", "Bexar", "Blanco", "Borden", "Bosque", "Bowie",
	"Brazoria", "Brazos", "Brewster", "Briscoe", "Brooks", "Brown",
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output directory for the generated dataset")
	grid := flag.Int("grid", 3, "counties per grid side")
	districts := flag.Int("districts", 5, "number of jurisdictions")
	seed := flag.Int64("seed", 42, "PRNG seed")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}
	if *grid < 1 || *districts < 2 {
		return fmt.Errorf("need at least a 1x1 grid and 2 districts")
	}

	rng := rand.New(rand.NewSource(*seed))

	countyFC, fips := countyGrid(*grid)
	districtFC, ids := districtSet(*grid, *districts)

	countiesPath := filepath.Join(*out, "counties.geojson")
	districtsPath := filepath.Join(*out, "jurisdictions.geojson")
	nriPath := filepath.Join(*out, "nri_counties.csv")
	wildfirePath := filepath.Join(*out, "wildfire_overrides.csv")

	if err := writeJSON(countiesPath, countyFC); err != nil {
		return fmt.Errorf("writing county boundaries: %w", err)
	}
	log.Printf("counties: %d (%s)", len(fips), countiesPath)

	if err := writeJSON(districtsPath, districtFC); err != nil {
		return fmt.Errorf("writing jurisdiction boundaries: %w", err)
	}
	log.Printf("jurisdictions: %d (%s)", len(ids), districtsPath)

	if err := writeCSV(nriPath, hazardRows(fips, rng)); err != nil {
		return fmt.Errorf("writing county records: %w", err)
	}
	log.Printf("county records: %s", nriPath)

	if err := writeCSV(wildfirePath, overrideRows(ids, rng)); err != nil {
		return fmt.Errorf("writing wildfire overrides: %w", err)
	}
	log.Printf("wildfire overrides: %s", wildfirePath)

	return printStats(districtsPath, countiesPath, nriPath, wildfirePath)
}

func countyFIPS(i int) string {
	return fmt.Sprintf("48%03d", 2*i+1)
}

func countyName(i int) string {
	if i < len(countyNames) {
		return countyNames[i]
	}
	return fmt.Sprintf("County %03d", i+1)
}

func countyCell(grid, i int) orb.MultiPolygon {
	lon := originLon + float64(i%grid)
	lat := originLat + float64(i/grid)
	return cell(lon, lat, lon+1, lat+1)
}

func countyGrid(grid int) (*geojson.FeatureCollection, []string) {
	fc := geojson.NewFeatureCollection()
	fips := make([]string, 0, grid*grid)
	for i := 0; i < grid*grid; i++ {
		id := countyFIPS(i)
		fc.Append(feature(countyCell(grid, i), map[string]interface{}{
			"GEOID": id,
			"NAME":  countyName(i),
		}))
		fips = append(fips, id)
	}
	return fc, fips
}

func districtSet(grid, n int) (*geojson.FeatureCollection, []string) {
	fc := geojson.NewFeatureCollection()
	ids := make([]string, 0, n)
	for j := 0; j < n; j++ {
		id := fmt.Sprintf("district-%02d", j+1)
		var mp orb.MultiPolygon
		switch {
		case j == 0:
			// Coincides with the first county, a clean single-county match.
			mp = countyCell(grid, 0)
		case j == n-1:
			// Far from the grid, exercises the zero-overlap fallback path.
			mp = cell(10, 40, 11, 41)
		default:
			// Straddles two horizontally adjacent counties.
			span := grid - 1
			if span < 1 {
				span = 1
			}
			idx := j - 1
			lon := originLon + float64(idx%span) + 0.5
			lat := originLat + float64((idx/span)%grid) + 0.25
			mp = cell(lon, lat, lon+1, lat+0.5)
		}
		fc.Append(feature(mp, map[string]interface{}{
			"id":         id,
			"name":       fmt.Sprintf("District %02d", j+1),
			"region":     "conus",
			"state_fips": "48",
		}))
		ids = append(ids, id)
	}
	return fc, ids
}

func hazardRows(fips []string, rng *rand.Rand) [][]string {
	header := []string{"STCOFIPS", "COUNTY", "STATEABBRV"}
	for _, h := range domain.HazardTypes() {
		p := h.ColumnPrefix()
		header = append(header, p+"_RISKS", p+"_EALT", p+"_RISKR")
	}
	header = append(header,
		"RISK_SCORE", "RISK_RATNG", "EAL_VALT",
		"SOVI_SCORE", "SOVI_RATNG", "RESL_SCORE", "RESL_RATNG")

	rows := [][]string{header}
	breaks := domain.DefaultBreakpoints()
	for i, f := range fips {
		row := []string{f, countyName(i), "TX"}
		var scoreSum, ealSum float64
		for range domain.HazardTypes() {
			// Roughly a fifth of the slots read as not applicable; empty
			// cells load as zero scores.
			if rng.Float64() < 0.2 {
				row = append(row, "", "", "")
				continue
			}
			score := round1(rng.Float64() * 100)
			eal := float64(rng.Intn(5_000_000))
			scoreSum += score
			ealSum += eal
			row = append(row,
				formatScore(score),
				strconv.Itoa(int(eal)),
				string(domain.RatingFromScore(score, breaks)))
		}
		overall := round1(scoreSum / float64(len(domain.HazardTypes())))
		sovi := round1(rng.Float64() * 100)
		resl := round1(rng.Float64() * 100)
		row = append(row,
			formatScore(overall), string(domain.RatingFromScore(overall, breaks)),
			strconv.Itoa(int(ealSum)),
			formatScore(sovi), string(domain.RatingFromScore(sovi, breaks)),
			formatScore(resl), string(domain.RatingFromScore(resl, breaks)))
		rows = append(rows, row)
	}
	return rows
}

// overrideRows gives every other district a secondary wildfire score,
// starting with the first, so the fixture exercises override audit fields on
// profiles whose primary aggregation succeeded.
func overrideRows(districts []string, rng *rand.Rand) [][]string {
	rows := [][]string{{"jurisdiction_id", "risk_to_homes"}}
	for i, id := range districts {
		if i%2 != 0 {
			continue
		}
		rows = append(rows, []string{id, formatScore(round1(40 + rng.Float64()*60))})
	}
	return rows
}

func printStats(districtsPath, countiesPath, nriPath, wildfirePath string) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	jurisdictions, err := geo.LoadJurisdictions(districtsPath, logger)
	if err != nil {
		return err
	}
	counties, err := geo.LoadCounties(countiesPath, logger)
	if err != nil {
		return err
	}
	table, err := nri.Load(nriPath, logger)
	if err != nil {
		return err
	}
	provider, err := wildfire.Load(wildfirePath, logger)
	if err != nil {
		return err
	}
	reg := wildfire.NewRegistry(provider)

	checksum, err := geo.ChecksumFiles(districtsPath, countiesPath)
	if err != nil {
		return err
	}

	policy := domain.DefaultPolicy()
	snap, err := crosswalk.NewBuilder(logger, 4).Build(
		context.Background(), jurisdictions, counties, policy.SliverThreshold, checksum)
	if err != nil {
		return err
	}

	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Counties: %d, jurisdictions: %d, zero-overlap: %d\n",
		table.Len(), len(snap.Mappings), len(snap.ZeroOverlap))

	ratingCounts := map[domain.Rating]int{}
	for _, c := range counties {
		if rec, ok := table.Get(c.FIPS); ok {
			ratingCounts[rec.OverallRisk.Rating]++
		}
	}
	fmt.Printf("Overall ratings: very_low=%d low=%d moderate=%d high=%d very_high=%d\n",
		ratingCounts[domain.RatingVeryLow], ratingCounts[domain.RatingRelativelyLow],
		ratingCounts[domain.RatingRelativelyModerate], ratingCounts[domain.RatingRelativelyHigh],
		ratingCounts[domain.RatingVeryHigh])

	fmt.Println("\nCrosswalk weights:")
	for _, m := range snap.Mappings {
		fmt.Printf("  %s:", m.JurisdictionID)
		for _, e := range m.Entries {
			fmt.Printf(" %s=%.3f", e.CountyID, e.Weight)
		}
		fmt.Println()
	}

	agg := profile.NewAggregator(table, policy, "mock", checksum, logger)
	fmt.Println("\nProfiles:")
	for _, m := range snap.Mappings {
		prof := agg.Aggregate(m)
		domain.ApplyOverrides(&prof, reg, policy.Breakpoints, policy.TopHazards, logger)
		top := "-"
		if len(prof.TopHazards) > 0 {
			top = string(prof.TopHazards[0].Type)
		}
		wildfireSlot := prof.Hazards[domain.Wildfire]
		fmt.Printf("  %-13s status=%-8s overall=%5.1f wildfire=%5.1f source=%-8s top=%s\n",
			prof.JurisdictionID, prof.Status,
			prof.OverallRisk.WeightedRiskScore,
			wildfireSlot.WeightedRiskScore, wildfireSlot.Source, top)
	}
	return nil
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }

func formatScore(v float64) string { return strconv.FormatFloat(v, 'f', 1, 64) }

func feature(mp orb.MultiPolygon, props map[string]interface{}) *geojson.Feature {
	f := geojson.NewFeature(mp)
	for k, v := range props {
		f.Properties[k] = v
	}
	return f
}

// cell builds a lon/lat rectangle with densified edges so projected overlap
// ratios track spherical area ratios.
func cell(lonMin, latMin, lonMax, latMax float64) orb.MultiPolygon {
	const step = 0.1
	var ring orb.Ring
	for lon := lonMin; lon < lonMax; lon += step {
		ring = append(ring, orb.Point{lon, latMin})
	}
	for lat := latMin; lat < latMax; lat += step {
		ring = append(ring, orb.Point{lonMax, lat})
	}
	for lon := lonMax; lon > lonMin; lon -= step {
		ring = append(ring, orb.Point{lon, latMax})
	}
	for lat := latMax; lat > latMin; lat -= step {
		ring = append(ring, orb.Point{lonMin, lat})
	}
	ring = append(ring, ring[0])
	return orb.MultiPolygon{orb.Polygon{ring}}
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}

func writeCSV(path string, rows [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o600)
}
