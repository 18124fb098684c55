// Package commands implements the newprstack CLI command handlers.
package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/Sumatoshi-tech/newpr-stack/pkg/engine"
)

// ErrInvalidMaxGroupSize is returned when the configured group size ceiling is not positive.
var ErrInvalidMaxGroupSize = errors.New("max_group_size must be positive")

// TuningConfig mirrors engine.Config for file/env/flag binding; the engine
// itself takes a plain struct and never reads files or the environment.
type TuningConfig struct {
	MaxGroupSize      int     `mapstructure:"max_group_size"`
	ReassignThreshold float64 `mapstructure:"reassign_threshold"`
	MinAdvantage      float64 `mapstructure:"min_advantage"`
	CochangeFloor     int     `mapstructure:"cochange_floor"`

	// BlobCacheBudget is a humanize-format memory budget (e.g. "32MiB") for
	// the symbol analyzer's blob content cache; empty keeps engine.Config's
	// fixed entry-count default.
	BlobCacheBudget string `mapstructure:"blob_cache_budget"`
}

// loadTuningConfig reads engine tuning from an optional config file, then
// NEWPRSTACK_-prefixed environment variables, layered over the engine's own
// defaults.
func loadTuningConfig(configPath string) (engine.Config, error) {
	v := viper.New()

	defaults := engine.DefaultConfig()
	v.SetDefault("max_group_size", defaults.MaxGroupSize)
	v.SetDefault("reassign_threshold", defaults.ReassignThreshold)
	v.SetDefault("min_advantage", defaults.MinAdvantage)
	v.SetDefault("cochange_floor", defaults.CochangeFloor)
	v.SetDefault("blob_cache_budget", defaults.BlobCacheBudget)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("newprstack")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("NEWPRSTACK")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	readErr := v.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return engine.Config{}, fmt.Errorf("read config file: %w", readErr)
		}
	}

	var tuning TuningConfig

	if err := v.Unmarshal(&tuning); err != nil {
		return engine.Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if tuning.MaxGroupSize <= 0 {
		return engine.Config{}, fmt.Errorf("%w: %d", ErrInvalidMaxGroupSize, tuning.MaxGroupSize)
	}

	return engine.Config{
		MaxGroupSize:      tuning.MaxGroupSize,
		ReassignThreshold: tuning.ReassignThreshold,
		MinAdvantage:      tuning.MinAdvantage,
		CochangeFloor:     tuning.CochangeFloor,
		BlobCacheBudget:   tuning.BlobCacheBudget,
	}, nil
}
