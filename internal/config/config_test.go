package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "clamser/internal/errors"
	"clamser/pkg/contracts/domain"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, int64(32<<20), cfg.Limits.MaxFileBytes)
	assert.Equal(t, "absolute", cfg.Analysis.View)
	assert.Equal(t, 24, cfg.Analysis.Window.PresetHours)
}

func TestLoad_FromFile(t *testing.T) {
	content := `
analysis:
  view: bodyweight
  window:
    preset_hours: 48
  bucket: hourly
  outlier_sd: 3
  groups:
    Control: [M101, M102]
    Treated: [M103]
  covariates:
    M101: {body_weight: 27.4}
    M102: {body_weight: 24.9}
    M103: {body_weight: 26.1}
`
	path := filepath.Join(t.TempDir(), "clamser.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "bodyweight", cfg.Analysis.View)
	assert.Equal(t, 48, cfg.Analysis.Window.PresetHours)
	assert.Equal(t, 3.0, cfg.Analysis.OutlierSD)
	// Defaults survive a partial file.
	assert.Equal(t, "info", cfg.Logging.Level)

	sess, err := cfg.Analysis.Session()
	require.NoError(t, err)
	assert.Equal(t, domain.ViewBodyWeight, sess.View)
	assert.Equal(t, domain.BucketHourly, sess.Bucket)
	assert.Equal(t, 3, sess.Groups.Len())

	bw, ok := sess.Covariates.For(domain.ViewBodyWeight, "M101")
	require.True(t, ok)
	assert.Equal(t, 27.4, bw)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("CLAMSER_ANALYSIS_VIEW", "leanmass")
	t.Setenv("CLAMSER_LOGGING_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "leanmass", cfg.Analysis.View)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:    "unknown view",
			mutate:  func(c *Config) { c.Analysis.View = "relative" },
			wantErr: "validation failed",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.Level = "loud" },
			wantErr: "validation failed",
		},
		{
			name:    "unsupported preset",
			mutate:  func(c *Config) { c.Analysis.Window.PresetHours = 36 },
			wantErr: "validation failed",
		},
		{
			name: "custom window missing end",
			mutate: func(c *Config) {
				c.Analysis.Window = WindowConfig{Start: "2024-01-01"}
			},
			wantErr: "preset_hours or both start and end",
		},
		{
			name:    "bad bucket",
			mutate:  func(c *Config) { c.Analysis.Bucket = "sometimes" },
			wantErr: "bucket",
		},
		{
			name: "ambiguous light cycle",
			mutate: func(c *Config) {
				c.Analysis.LightStart = 7
				c.Analysis.LightEnd = 7
			},
			wantErr: "ambiguous",
		},
		{
			name:    "zero row limit",
			mutate:  func(c *Config) { c.Limits.MaxRows = 0 },
			wantErr: "validation failed",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)

			var appErr *apperrors.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, apperrors.ErrTypeConfig, appErr.Type)
		})
	}
}

func TestAnalysisConfig_SessionCustomWindow(t *testing.T) {
	a := Default().Analysis
	a.Window = WindowConfig{Start: "2024-01-01 00:00:00", End: "2024-01-02 00:00:00"}

	sess, err := a.Session()
	require.NoError(t, err)
	assert.Equal(t, domain.WindowCustom, sess.Window.Kind)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), sess.Window.Start)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), sess.Window.End)
}

func TestAnalysisConfig_SessionRejectsConflictingGroups(t *testing.T) {
	a := Default().Analysis
	a.Groups = map[string][]string{
		"Control": {"M1"},
		"Treated": {"M1"},
	}
	_, err := a.Session()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "M1")
}
