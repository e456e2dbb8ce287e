// Package nri reads the county hazard dataset: one CSV row per county with
// per-hazard score/EAL/rating columns and the overall composites. Malformed
// rows are skipped and counted, never fatal; one bad county cannot sink a
// national run.
package nri

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/duskmoth/hazard-profile-etl/internal/domain"
)

// Column names shared with the upstream dataset.
const (
	colFIPS   = "STCOFIPS"
	colCounty = "COUNTY"
	colState  = "STATEABBRV"

	colRiskScore  = "RISK_SCORE"
	colRiskRating = "RISK_RATNG"
	colEALTotal   = "EAL_VALT"
	colSoviScore  = "SOVI_SCORE"
	colSoviRating = "SOVI_RATNG"
	colReslScore  = "RESL_SCORE"
	colReslRating = "RESL_RATNG"
)

// Table is the loaded county dataset, keyed by 5-digit FIPS.
type Table struct {
	records map[string]domain.CountyRecord
	byState map[string][]string
	skipped int
}

// Load reads the county CSV at path. The header must carry STCOFIPS; every
// other column is optional and absent values read as zero. Rows with a bad
// FIPS, unparsable numerics, or invalid metric ranges are skipped with a
// warning.
func Load(path string, logger *slog.Logger) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load county records: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header of %s: %w", path, err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.TrimSpace(h)] = i
	}
	if _, ok := cols[colFIPS]; !ok {
		return nil, fmt.Errorf("%s: missing required column %s", path, colFIPS)
	}

	t := &Table{
		records: make(map[string]domain.CountyRecord),
		byState: make(map[string][]string),
	}
	for line := 2; ; line++ {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			logger.Warn("unreadable row, skipping", "line", line, "error", err)
			t.skipped++
			continue
		}
		rec, err := parseRow(row, cols)
		if err != nil {
			logger.Warn("malformed row, skipping", "line", line, "error", err)
			t.skipped++
			continue
		}
		if _, dup := t.records[rec.FIPS]; dup {
			logger.Warn("duplicate county row, keeping first", "line", line, "fips", rec.FIPS)
			t.skipped++
			continue
		}
		t.records[rec.FIPS] = rec
		state := rec.StateFIPS()
		t.byState[state] = append(t.byState[state], rec.FIPS)
	}
	for _, fips := range t.byState {
		sort.Strings(fips)
	}

	logger.Info("county records loaded",
		"path", path, "counties", len(t.records), "skipped", t.skipped)
	if len(t.records) == 0 {
		return nil, fmt.Errorf("%s: no usable county rows", path)
	}
	return t, nil
}

func parseRow(row []string, cols map[string]int) (domain.CountyRecord, error) {
	cell := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	rec := domain.CountyRecord{
		FIPS:    cell(colFIPS),
		Name:    cell(colCounty),
		State:   cell(colState),
		Hazards: make(map[domain.HazardType]domain.HazardMetrics, len(domain.HazardTypes())),
	}

	var err error
	for _, h := range domain.HazardTypes() {
		prefix := h.ColumnPrefix()
		var m domain.HazardMetrics
		if m.RiskScore, err = parseFloat(cell(prefix + "_RISKS")); err != nil {
			return rec, fmt.Errorf("%s_RISKS: %w", prefix, err)
		}
		if m.EALDollars, err = parseFloat(cell(prefix + "_EALT")); err != nil {
			return rec, fmt.Errorf("%s_EALT: %w", prefix, err)
		}
		m.Rating = domain.Rating(cell(prefix + "_RISKR"))
		rec.Hazards[h] = m
	}

	if rec.OverallRisk.RiskScore, err = parseFloat(cell(colRiskScore)); err != nil {
		return rec, fmt.Errorf("%s: %w", colRiskScore, err)
	}
	if rec.OverallRisk.EALDollars, err = parseFloat(cell(colEALTotal)); err != nil {
		return rec, fmt.Errorf("%s: %w", colEALTotal, err)
	}
	rec.OverallRisk.Rating = domain.Rating(cell(colRiskRating))

	if rec.SocialVulnerability.RiskScore, err = parseFloat(cell(colSoviScore)); err != nil {
		return rec, fmt.Errorf("%s: %w", colSoviScore, err)
	}
	rec.SocialVulnerability.Rating = domain.Rating(cell(colSoviRating))

	if rec.CommunityResilience.RiskScore, err = parseFloat(cell(colReslScore)); err != nil {
		return rec, fmt.Errorf("%s: %w", colReslScore, err)
	}
	rec.CommunityResilience.Rating = domain.Rating(cell(colReslRating))

	if err := rec.Validate(); err != nil {
		return rec, err
	}
	return rec, nil
}

// parseFloat reads a numeric cell. Empty means the hazard does not apply to
// the county and reads as zero.
func parseFloat(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("bad numeric %q", s)
	}
	return v, nil
}

// Get returns the record for a county FIPS.
func (t *Table) Get(fips string) (domain.CountyRecord, bool) {
	rec, ok := t.records[fips]
	return rec, ok
}

// StateCounties returns the sorted FIPS codes of every county in a state,
// identified by its 2-digit FIPS prefix. Used by the coarse fallback match.
func (t *Table) StateCounties(stateFIPS string) []string {
	return t.byState[stateFIPS]
}

// Len is the number of usable county records.
func (t *Table) Len() int { return len(t.records) }

// Skipped is the number of rows dropped during load.
func (t *Table) Skipped() int { return t.skipped }
