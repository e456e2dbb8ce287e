// Package wildfire implements the secondary-source override for the wildfire
// hazard: a file-backed community risk dataset keyed by jurisdiction id. Its
// scores substitute the area-weighted wildfire score wherever a jurisdiction
// has a record, which captures WUI exposure the county rollup smooths away.
package wildfire

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/duskmoth/hazard-profile-etl/internal/domain"
)

const (
	colJurisdiction = "jurisdiction_id"
	colRiskToHomes  = "risk_to_homes"
)

// Provider implements domain.OverrideSource from a community risk CSV.
type Provider struct {
	scores  map[string]float64
	skipped int
}

// Load reads the community risk CSV at path. Rows with a missing id, a
// nonpositive score, or a score above 100 carry no usable signal and are
// dropped with a log line; the provider keeps going.
func Load(path string, logger *slog.Logger) (*Provider, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load wildfire overrides: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header of %s: %w", path, err)
	}
	idCol, scoreCol := -1, -1
	for i, h := range header {
		switch strings.TrimSpace(h) {
		case colJurisdiction:
			idCol = i
		case colRiskToHomes:
			scoreCol = i
		}
	}
	if idCol < 0 || scoreCol < 0 {
		return nil, fmt.Errorf("%s: header must carry %s and %s", path, colJurisdiction, colRiskToHomes)
	}

	p := &Provider{scores: make(map[string]float64)}
	for line := 2; ; line++ {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			logger.Warn("unreadable override row, skipping", "line", line, "error", err)
			p.skipped++
			continue
		}
		id := strings.TrimSpace(row[idCol])
		if id == "" {
			logger.Warn("override row missing jurisdiction id, skipping", "line", line)
			p.skipped++
			continue
		}
		score, err := strconv.ParseFloat(strings.TrimSpace(row[scoreCol]), 64)
		if err != nil || math.IsNaN(score) {
			logger.Warn("override row has bad score, skipping", "line", line, "jurisdiction_id", id)
			p.skipped++
			continue
		}
		if score <= 0 || score > 100 {
			logger.Debug("override score out of range, treating as absent",
				"jurisdiction_id", id, "score", score)
			p.skipped++
			continue
		}
		if _, dup := p.scores[id]; dup {
			logger.Warn("duplicate override row, keeping first", "line", line, "jurisdiction_id", id)
			p.skipped++
			continue
		}
		p.scores[id] = score
	}

	logger.Info("wildfire overrides loaded",
		"path", path, "jurisdictions", len(p.scores), "skipped", p.skipped)
	return p, nil
}

// Lookup returns the community risk score for a jurisdiction.
func (p *Provider) Lookup(jurisdictionID string) (float64, bool) {
	score, ok := p.scores[jurisdictionID]
	return score, ok
}

// Len is the number of jurisdictions with a usable override.
func (p *Provider) Len() int { return len(p.scores) }

// Skipped is the number of rows dropped during load.
func (p *Provider) Skipped() int { return p.skipped }

// NewRegistry wires the provider into an override registry. A nil provider
// yields an empty registry, which makes overrides a no-op.
func NewRegistry(p *Provider) domain.OverrideRegistry {
	if p == nil {
		return domain.OverrideRegistry{}
	}
	return domain.OverrideRegistry{domain.Wildfire: p}
}
