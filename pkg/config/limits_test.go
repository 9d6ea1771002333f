package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimitsValidate(t *testing.T) {
	tests := []struct {
		name    string
		limits  Limits
		wantErr bool
	}{
		{"Valid", Limits{Queries: 3, Results: 10, TokensPerSource: 1000}, false},
		{"Zero queries", Limits{Queries: 0, Results: 10, TokensPerSource: 1000}, true},
		{"Negative results", Limits{Queries: 3, Results: -1, TokensPerSource: 1000}, true},
		{"Zero tokens", Limits{Queries: 3, Results: 10, TokensPerSource: 0}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.limits.Validate("stats")
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidLimit)
				assert.Contains(t, err.Error(), "stats")
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestLimitsMerge(t *testing.T) {
	base := Limits{Queries: 3, Results: 10, TokensPerSource: 1000}
	got := base.Merge(Limits{Results: 4})
	assert.Equal(t, Limits{Queries: 3, Results: 4, TokensPerSource: 1000}, got)

	// non-positive overrides never clobber the base
	got = base.Merge(Limits{Queries: -2})
	assert.Equal(t, base, got)
}

func TestLimitsValidateOverride(t *testing.T) {
	tests := []struct {
		name    string
		limits  Limits
		wantErr bool
	}{
		{"Empty", Limits{}, false},
		{"Partial", Limits{Results: 4}, false},
		{"Negative queries", Limits{Queries: -5}, true},
		{"Negative tokens", Limits{Queries: 1, TokensPerSource: -100}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.limits.ValidateOverride("plan")
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidLimit)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("NUM_STAT_QUERIES", "")
	t.Setenv("NUM_PRODUCT_RESULTS", "7")
	t.Setenv("SCRAPE_CONCURRENCY", "not-a-number")

	cfg := Load()
	assert.Equal(t, 2, cfg.Limits.Stats.Queries)
	assert.Equal(t, 7, cfg.Limits.Products.Results)
	assert.Equal(t, 3, cfg.ScrapeConcurrency)
	assert.NoError(t, cfg.Limits.Validate())
}

func TestRunLimitsValidateReportsPhase(t *testing.T) {
	cfg := Load()
	cfg.Limits.Products.TokensPerSource = 0
	err := cfg.Limits.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "products")
}
