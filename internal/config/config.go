package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	domain "tpower/domain/power"
	"tpower/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	OneSample OneSampleConfig
	TwoSample TwoSampleConfig
	Search    SearchConfig
	Output    OutputConfig
	Server    ServerConfig
	LogLevel  string `validate:"omitempty,oneof=ERROR WARN INFO DEBUG TRACE"`
}

// OneSampleConfig holds the default one-sample scenario
type OneSampleConfig struct {
	Alpha      float64 `validate:"gt=0,lt=1"`
	Power      float64 `validate:"gt=0,lt=1"`
	EffectSize float64
	Tail       string `validate:"required"`
}

// TwoSampleConfig holds the default two-sample scenario
type TwoSampleConfig struct {
	Alpha      float64 `validate:"gt=0,lt=1"`
	Power      float64 `validate:"gt=0,lt=1"`
	EffectSize float64
	Ratio      float64 `validate:"gt=0"`
}

// SearchConfig holds search limits
type SearchConfig struct {
	MaxSampleSize int `validate:"gte=0"`
	Workers       int `validate:"gte=1"`
}

// OutputConfig holds where generated artifacts go
type OutputConfig struct {
	PlotDir    string
	PlotFormat string `validate:"oneof=png svg pdf"`
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port           string  `validate:"required"`
	GinMode        string  `validate:"oneof=debug release test"`
	RateLimitRPS   float64 `validate:"gt=0"`
	RateLimitBurst int     `validate:"gte=1"`
}

// Load reads an optional .env file, then configuration from environment variables, and validates it
func Load() (*Config, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds the configuration from the current environment only
func FromEnv() (*Config, error) {
	config := &Config{
		OneSample: OneSampleConfig{
			Alpha:      getEnvFloatOrDefault("TPOWER_ALPHA", 0.05),
			Power:      getEnvFloatOrDefault("TPOWER_POWER", 0.8),
			EffectSize: getEnvFloatOrDefault("TPOWER_EFFECT_SIZE", 0.5),
			Tail:       getEnvOrDefault("TPOWER_TAIL", string(domain.TwoTailed)),
		},
		TwoSample: TwoSampleConfig{
			Alpha:      getEnvFloatOrDefault("TPOWER_ALPHA", 0.05),
			Power:      getEnvFloatOrDefault("TPOWER_POWER", 0.8),
			EffectSize: getEnvFloatOrDefault("TPOWER_TWO_SAMPLE_EFFECT_SIZE", 0.8),
			Ratio:      getEnvFloatOrDefault("TPOWER_RATIO", 1),
		},
		Search: SearchConfig{
			MaxSampleSize: getEnvIntOrDefault("TPOWER_MAX_N", domain.DefaultMaxSampleSize),
			Workers:       getEnvIntOrDefault("TPOWER_WORKERS", 4),
		},
		Output: OutputConfig{
			PlotDir:    getEnvOrDefault("TPOWER_PLOT_DIR", "."),
			PlotFormat: strings.ToLower(getEnvOrDefault("TPOWER_PLOT_FORMAT", "png")),
		},
		Server: ServerConfig{
			Port:           getEnvOrDefault("PORT", "8080"),
			GinMode:        getEnvOrDefault("GIN_MODE", "release"),
			RateLimitRPS:   getEnvFloatOrDefault("RATE_LIMIT_RPS", 50),
			RateLimitBurst: getEnvIntOrDefault("RATE_LIMIT_BURST", 100),
		},
		LogLevel: strings.ToUpper(getEnvOrDefault("LOG_LEVEL", "INFO")),
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return config, nil
}

// OneSampleTest converts the default one-sample scenario to a search configuration
func (c *Config) OneSampleTest() (domain.TestConfiguration, error) {
	tail, err := domain.ParseTailMode(c.OneSample.Tail)
	if err != nil {
		return domain.TestConfiguration{}, errors.InvalidEnum(err.Error())
	}
	return domain.TestConfiguration{
		Alpha:         c.OneSample.Alpha,
		PowerTarget:   c.OneSample.Power,
		EffectSize:    c.OneSample.EffectSize,
		Tail:          tail,
		MaxSampleSize: c.Search.MaxSampleSize,
	}, nil
}

// TwoSampleTest converts the default two-sample scenario to a search configuration
func (c *Config) TwoSampleTest() domain.TwoSampleConfiguration {
	return domain.TwoSampleConfiguration{
		Alpha:         c.TwoSample.Alpha,
		PowerTarget:   c.TwoSample.Power,
		EffectSize:    c.TwoSample.EffectSize,
		Ratio:         c.TwoSample.Ratio,
		Tail:          domain.TwoTailed,
		MaxSampleSize: c.Search.MaxSampleSize,
	}
}

var validate = validator.New()

func validateConfig(config *Config) error {
	if err := validate.Struct(config); err != nil {
		return errors.ConfigInvalid(err.Error())
	}
	if _, err := domain.ParseTailMode(config.OneSample.Tail); err != nil {
		return errors.ConfigInvalid(err.Error())
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
