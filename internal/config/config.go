package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"screenlm/domain/mlm"
	"screenlm/internal"
	"screenlm/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Perm  PermConfig
	Fit   FitConfig
	Score ScoreConfig
	Log   LogConfig
}

// PermConfig holds permutation run settings
type PermConfig struct {
	// Count is the number of permuted trials per run.
	Count int
	// Workers bounds the trial goroutines; zero means one per CPU.
	Workers int
	// Seed anchors every trial stream, so runs are reproducible.
	Seed int64
	// Timeout cancels a run that exceeds it; zero disables the deadline.
	Timeout time.Duration
}

// FitConfig holds model fitting settings
type FitConfig struct {
	Target mlm.ShrinkageTarget
}

// ScoreConfig holds S-score settings
type ScoreConfig struct {
	// Span is the loess neighborhood fraction behind the variance floor;
	// zero means the smoother default.
	Span float64
}

// LogConfig holds logging settings
type LogConfig struct {
	Level internal.LogLevel
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{}

	permConfig, err := loadPermConfig()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load permutation configuration")
	}
	config.Perm = *permConfig

	fitConfig, err := loadFitConfig()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load fit configuration")
	}
	config.Fit = *fitConfig

	scoreConfig, err := loadScoreConfig()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load s-score configuration")
	}
	config.Score = *scoreConfig

	config.Log = LogConfig{
		Level: internal.ParseLogLevel(getEnvOrDefault("LOG_LEVEL", "INFO")),
	}

	return config, nil
}

func loadPermConfig() (*PermConfig, error) {
	count := getEnvIntOrDefault("PERM_COUNT", 250)
	if count < 0 {
		return nil, errors.ConfigInvalid("PERM_COUNT must be non-negative")
	}

	workers := getEnvIntOrDefault("PERM_WORKERS", 0)
	if workers < 0 {
		return nil, errors.ConfigInvalid("PERM_WORKERS must be non-negative, zero means one per CPU")
	}

	timeout := getEnvDurationOrDefault("PERM_TIMEOUT", 0)
	if timeout < 0 {
		return nil, errors.ConfigInvalid("PERM_TIMEOUT must be non-negative")
	}

	return &PermConfig{
		Count:   count,
		Workers: workers,
		Seed:    getEnvInt64OrDefault("SEED", 1),
		Timeout: timeout,
	}, nil
}

func loadFitConfig() (*FitConfig, error) {
	raw := getEnvOrDefault("SHRINKAGE_TARGET", "identity")
	target, err := mlm.ParseShrinkageTarget(raw)
	if err != nil {
		return nil, &errors.AppError{
			Code:    errors.CodeConfigInvalid,
			Message: fmt.Sprintf("SHRINKAGE_TARGET %q is not a known target", raw),
			Cause:   err,
		}
	}
	return &FitConfig{Target: target}, nil
}

func loadScoreConfig() (*ScoreConfig, error) {
	span := getEnvFloatOrDefault("SSCORE_SPAN", 0)
	if span < 0 || span > 1 {
		return nil, errors.ConfigInvalid("SSCORE_SPAN must be in [0, 1]")
	}
	return &ScoreConfig{Span: span}, nil
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

func getEnvInt64OrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
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

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
