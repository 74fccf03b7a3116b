// Copyright (C) 2025 l3montree GmbH
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package config

import (
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/l3montree-dev/sbomgraph/services"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type Config struct {
	LogLevel string `json:"logLevel" mapstructure:"logLevel" validate:"omitempty,oneof=debug info warn error"`

	// CheckpointInterval is the number of processed nodes between two
	// cancellation checks.
	CheckpointInterval int                    `json:"checkpointInterval" mapstructure:"checkpointInterval" validate:"min=1"`
	Scoring            services.ScoringConfig `json:"scoring" mapstructure:"scoring"`

	Output string `json:"output" mapstructure:"output" validate:"oneof=table json yaml"`
	// Timeout in seconds, 0 disables it.
	Timeout int `json:"timeout" mapstructure:"timeout" validate:"min=0"`
	// Trace is empty, "stdout", an OTLP/HTTP endpoint or grpc://host:port.
	Trace string `json:"trace" mapstructure:"trace" validate:"omitempty,oneof=stdout|http_url|startswith=grpc://"`

	Listen    string   `json:"listen" mapstructure:"listen" validate:"required"`
	BodyLimit string   `json:"bodyLimit" mapstructure:"bodyLimit"`
	Origins   []string `json:"origins" mapstructure:"origins"`

	SentryDSN   string `json:"sentryDsn" mapstructure:"sentryDsn" validate:"omitempty,url"`
	Environment string `json:"environment" mapstructure:"environment"`
}

var validate = validator.New()

var RuntimeConfig Config

func init() {
	setDefaults()
}

func setDefaults() {
	defaults := services.DefaultScoringConfig()
	viper.SetDefault("checkpointInterval", services.DefaultCheckpointInterval)
	viper.SetDefault("output", "table")
	viper.SetDefault("timeout", 0)
	viper.SetDefault("listen", ":8080")
	viper.SetDefault("bodyLimit", "100M")
	viper.SetDefault("environment", "dev")
	// keys without a flag need a default, otherwise Unmarshal never asks the env for them
	viper.SetDefault("sentryDsn", "")

	viper.SetDefault("scoring.weights.version", defaults.Weights.Version)
	viper.SetDefault("scoring.weights.license", defaults.Weights.License)
	viper.SetDefault("scoring.weights.purl", defaults.Weights.Purl)
	viper.SetDefault("scoring.weights.hash", defaults.Weights.Hash)
	viper.SetDefault("scoring.weights.timestamp", defaults.Weights.Timestamp)
	viper.SetDefault("scoring.weights.tool", defaults.Weights.Tool)
	viper.SetDefault("scoring.thresholds.a", defaults.Thresholds.A)
	viper.SetDefault("scoring.thresholds.b", defaults.Thresholds.B)
	viper.SetDefault("scoring.thresholds.c", defaults.Thresholds.C)
}

// ParseConfig reads the merged flag, env and file configuration into
// RuntimeConfig.
func ParseConfig() error {
	var cfg Config
	// env values arrive as plain strings, e.g. SBOMGRAPH_ORIGINS=https://a,https://b
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToSliceHookFunc(","),
		mapstructure.StringToTimeDurationHookFunc(),
	))
	if err := viper.Unmarshal(&cfg, hook); err != nil {
		return errors.Wrap(err, "could not read config")
	}
	if err := validate.Struct(cfg); err != nil {
		return errors.Wrap(err, "invalid config")
	}
	if cfg.Scoring.Weights == (services.ScoringWeights{}) {
		slog.Warn("all scoring weights are zero, every source will be graded F")
	}

	RuntimeConfig = cfg
	return nil
}
