// Package config loads pipeline settings from environment variables and the
// optional aggregation policy file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/duskmoth/hazard-profile-etl/internal/domain"
)

// Config holds all pipeline settings, populated from environment variables.
type Config struct {
	JurisdictionGeoJSON string `env:"JURISDICTION_GEOJSON" envDefault:"data/jurisdictions.geojson"`
	CountyGeoJSON       string `env:"COUNTY_GEOJSON"       envDefault:"data/counties.geojson"`
	NRICSV              string `env:"NRI_CSV"              envDefault:"data/nri_counties.csv"`
	NRIEdition          string `env:"NRI_EDITION"          envDefault:"2023.1"`
	WildfireCSV         string `env:"WILDFIRE_CSV"`
	OutputDir           string `env:"OUTPUT_DIR"           envDefault:"out"`
	Workers             int    `env:"WORKERS"              envDefault:"4"`
	LogLevel            string `env:"LOG_LEVEL"            envDefault:"info"`
	LogFormat           string `env:"LOG_FORMAT"           envDefault:"json"`
	PolicyFile          string `env:"POLICY_FILE"`
}

// Load reads configuration from environment variables, applying defaults
// where unset.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if cfg.Workers < 1 || cfg.Workers > 128 {
		return nil, fmt.Errorf("WORKERS must be between 1 and 128, got %d", cfg.Workers)
	}
	switch cfg.LogFormat {
	case "json", "text":
	default:
		return nil, fmt.Errorf("LOG_FORMAT must be json or text, got %q", cfg.LogFormat)
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("LOG_LEVEL must be debug, info, warn or error, got %q", cfg.LogLevel)
	}

	return cfg, nil
}

// policyFile mirrors the YAML policy document. Absent fields keep their
// defaults so a partial file only overrides what it names.
type policyFile struct {
	SliverThreshold   *float64  `yaml:"sliver_threshold"`
	RatingBreakpoints []float64 `yaml:"rating_breakpoints"`
	TopHazards        *int      `yaml:"top_hazards"`
}

// LoadPolicy reads aggregation parameters from path, or returns the default
// policy when no path is configured.
func LoadPolicy(path string) (domain.Policy, error) {
	policy := domain.DefaultPolicy()
	if path == "" {
		return policy, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Policy{}, fmt.Errorf("read policy: %w", err)
	}

	var f policyFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return domain.Policy{}, fmt.Errorf("parse policy %s: %w", path, err)
	}

	if f.SliverThreshold != nil {
		policy.SliverThreshold = *f.SliverThreshold
	}
	if f.RatingBreakpoints != nil {
		if len(f.RatingBreakpoints) != len(policy.Breakpoints) {
			return domain.Policy{}, fmt.Errorf("policy %s: rating_breakpoints needs %d values, got %d",
				path, len(policy.Breakpoints), len(f.RatingBreakpoints))
		}
		copy(policy.Breakpoints[:], f.RatingBreakpoints)
	}
	if f.TopHazards != nil {
		policy.TopHazards = *f.TopHazards
	}

	if err := policy.Validate(); err != nil {
		return domain.Policy{}, fmt.Errorf("policy %s: %w", path, err)
	}
	return policy, nil
}
