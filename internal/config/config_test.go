package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "tpower/domain/power"
	"tpower/internal/errors"
)

func TestFromEnvDefaultsMatchClassicScenarios(t *testing.T) {
	cfg, err := FromEnv()
	require.NoError(t, err)

	one, err := cfg.OneSampleTest()
	require.NoError(t, err)
	assert.Equal(t, domain.TestConfiguration{
		Alpha: 0.05, PowerTarget: 0.8, EffectSize: 0.5, Tail: domain.TwoTailed, MaxSampleSize: domain.DefaultMaxSampleSize,
	}, one)

	two := cfg.TwoSampleTest()
	assert.Equal(t, 0.8, two.EffectSize)
	assert.Equal(t, 1.0, two.Ratio)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "png", cfg.Output.PlotFormat)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("TPOWER_ALPHA", "0.01")
	t.Setenv("TPOWER_TAIL", "lower")
	t.Setenv("TPOWER_RATIO", "2")
	t.Setenv("TPOWER_PLOT_FORMAT", "SVG")
	t.Setenv("PORT", "9090")

	cfg, err := FromEnv()
	require.NoError(t, err)

	one, err := cfg.OneSampleTest()
	require.NoError(t, err)
	assert.Equal(t, 0.01, one.Alpha)
	assert.Equal(t, domain.LowerOneTailed, one.Tail)
	assert.Equal(t, 2.0, cfg.TwoSampleTest().Ratio)
	assert.Equal(t, "svg", cfg.Output.PlotFormat)
	assert.Equal(t, "9090", cfg.Server.Port)
}

func TestFromEnvRejectsInvalidValues(t *testing.T) {
	tests := map[string]string{
		"TPOWER_ALPHA":       "1.5",
		"TPOWER_POWER":       "0",
		"TPOWER_TAIL":        "sideways",
		"TPOWER_RATIO":       "-1",
		"TPOWER_PLOT_FORMAT": "gif",
		"GIN_MODE":           "chaos",
		"LOG_LEVEL":          "LOUD",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := FromEnv()
			require.Error(t, err)
			assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
		})
	}
}
