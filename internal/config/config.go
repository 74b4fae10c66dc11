// Package config loads and validates the analysis session
// configuration: normalization view, time window, bucket granularity,
// group assignments, covariates and processing limits. Values come from
// an optional YAML file overridden by CLAMSER_* environment variables.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	apperrors "clamser/internal/errors"
	"clamser/pkg/contracts/domain"
)

// Config represents the complete application configuration.
type Config struct {
	Logging  LoggingConfig  `yaml:"logging"`
	Limits   LimitsConfig   `yaml:"limits"`
	Analysis AnalysisConfig `yaml:"analysis"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level    string `yaml:"level" validate:"oneof=debug info warn error"`
	Format   string `yaml:"format" validate:"oneof=json text"`
	Output   string `yaml:"output" validate:"oneof=console file both"`
	FilePath string `yaml:"file_path"`
}

// LimitsConfig bounds worst-case processing on malformed input.
type LimitsConfig struct {
	MaxFileBytes int64 `yaml:"max_file_bytes" validate:"min=1"`
	MaxRows      int   `yaml:"max_rows" validate:"min=1"`
}

// WindowConfig selects the analysis time window: a trailing preset or
// an explicit start/end pair. PresetHours wins when both are given.
type WindowConfig struct {
	PresetHours int    `yaml:"preset_hours" validate:"omitempty,oneof=24 48 72"`
	Start       string `yaml:"start"`
	End         string `yaml:"end"`
}

// CovariateConfig carries the externally measured per-subject scalars.
type CovariateConfig struct {
	BodyWeight *float64 `yaml:"body_weight" validate:"omitempty,gt=0"`
	LeanMass   *float64 `yaml:"lean_mass" validate:"omitempty,gt=0"`
}

// AnalysisConfig describes one processing session.
type AnalysisConfig struct {
	View                string                     `yaml:"view" validate:"oneof=absolute bodyweight leanmass"`
	Window              WindowConfig               `yaml:"window"`
	Bucket              string                     `yaml:"bucket"`
	LightStart          int                        `yaml:"light_start" validate:"min=0,max=23"`
	LightEnd            int                        `yaml:"light_end" validate:"min=0,max=23"`
	OutlierSD           float64                    `yaml:"outlier_sd" validate:"min=0"`
	ConvertAccumulative bool                       `yaml:"convert_accumulative"`
	AllowUnassigned     bool                       `yaml:"allow_unassigned"`
	Groups              map[string][]string        `yaml:"groups"`
	Covariates          map[string]CovariateConfig `yaml:"covariates"`
}

// Default returns the built-in configuration: absolute view over the
// entire last 24 hours at native sampling, a 07:00-19:00 light cycle,
// no outlier screen.
func Default() Config {
	return Config{
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "text",
			Output:   "console",
			FilePath: "logs/clamser.log",
		},
		Limits: LimitsConfig{
			MaxFileBytes: 32 << 20,
			MaxRows:      500000,
		},
		Analysis: AnalysisConfig{
			View:       "absolute",
			Window:     WindowConfig{PresetHours: 24},
			Bucket:     "native",
			LightStart: 7,
			LightEnd:   19,
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file
// and CLAMSER_* environment variables, in increasing precedence, then
// validates the result. An empty path skips the file step.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := envconfig.Process("CLAMSER", &cfg); err != nil {
		return nil, fmt.Errorf("load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks struct tags plus the cross-field rules the tags
// cannot express. Failures surface as CONFIG AppErrors.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return apperrors.NewAppError(apperrors.ErrTypeConfig, "config validation failed", err)
	}
	if c.Analysis.Window.PresetHours == 0 {
		if c.Analysis.Window.Start == "" || c.Analysis.Window.End == "" {
			return apperrors.NewAppError(apperrors.ErrTypeConfig,
				"window requires either preset_hours or both start and end", nil)
		}
	}
	if _, err := domain.ParseBucket(c.Analysis.Bucket); err != nil {
		return apperrors.NewAppError(apperrors.ErrTypeConfig, "invalid bucket granularity", err)
	}
	if c.Analysis.LightStart == c.Analysis.LightEnd {
		return apperrors.NewAppError(apperrors.ErrTypeConfig,
			fmt.Sprintf("light_start and light_end are both %d; cycle is ambiguous", c.Analysis.LightStart), nil)
	}
	return nil
}

// Session holds the domain-level objects materialized from one
// AnalysisConfig, ready to thread through the pipeline stages.
type Session struct {
	View                domain.NormalizationView
	Window              domain.TimeWindow
	Bucket              domain.BucketGranularity
	Groups              *domain.GroupMap
	Covariates          domain.Covariates
	LightStart          int
	LightEnd            int
	OutlierSD           float64
	ConvertAccumulative bool
	AllowUnassigned     bool
}

// windowLayouts are the accepted spellings for custom window bounds.
var windowLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// Session materializes the domain objects for the configured analysis.
func (a AnalysisConfig) Session() (*Session, error) {
	view, err := domain.ParseView(a.View)
	if err != nil {
		return nil, err
	}

	var window domain.TimeWindow
	if a.Window.PresetHours > 0 {
		window = domain.LastHours(a.Window.PresetHours)
	} else {
		start, err := parseWindowBound(a.Window.Start)
		if err != nil {
			return nil, fmt.Errorf("window start: %w", err)
		}
		end, err := parseWindowBound(a.Window.End)
		if err != nil {
			return nil, fmt.Errorf("window end: %w", err)
		}
		window = domain.Between(start, end)
	}
	if err := window.Validate(); err != nil {
		return nil, err
	}

	bucket, err := domain.ParseBucket(a.Bucket)
	if err != nil {
		return nil, err
	}

	groups, err := domain.NewGroupMapFromAssignments(a.Groups)
	if err != nil {
		return nil, err
	}

	covariates := make(domain.Covariates, len(a.Covariates))
	for subject, cov := range a.Covariates {
		covariates[subject] = domain.Covariate{BodyWeight: cov.BodyWeight, LeanMass: cov.LeanMass}
	}

	return &Session{
		View:                view,
		Window:              window,
		Bucket:              bucket,
		Groups:              groups,
		Covariates:          covariates,
		LightStart:          a.LightStart,
		LightEnd:            a.LightEnd,
		OutlierSD:           a.OutlierSD,
		ConvertAccumulative: a.ConvertAccumulative,
		AllowUnassigned:     a.AllowUnassigned,
	}, nil
}

func parseWindowBound(s string) (time.Time, error) {
	for _, layout := range windowLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
