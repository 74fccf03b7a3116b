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

package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/l3montree-dev/sbomgraph/cmd/sbomgraph/config"
	"github.com/l3montree-dev/sbomgraph/monitoring"
	"github.com/lmittmann/tint"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var cfgFile string

// Version information - set via ldflags during build
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
	builtBy = "unknown"
)

const (
	defaultConfigFilename = ".sbomgraph"
)

// flushes the tracer installed in PersistentPreRunE
var shutdownTracer = func(context.Context) error { return nil }

var RootCmd = &cobra.Command{
	SilenceUsage:      true,
	Use:               "sbomgraph",
	Short:             "Dependency graph and vulnerability propagation for SBOMs",
	Version:           version,
	DisableAutoGenTag: true,
	Long: `Dependency graph and vulnerability propagation for SBOMs

sbomgraph reads CycloneDX documents, reconciles the output of several tools into
one canonical document and propagates every vulnerability along the dependency
graph. Configuration can be provided via a ./.sbomgraph config file or
environment variables (prefix SBOMGRAPH_).`,
	Example: `  # Analyze a single SBOM
  sbomgraph analyze sbom.json

  # Reconcile the output of several scanners and analyze the result
  sbomgraph analyze trivy.json grype.json syft.json

  # Write the reconciled document
  sbomgraph merge trivy.json grype.json > merged.json

  # Serve the HTTP API
  sbomgraph serve --listen :8080`,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// init the logger - get the level
		level, err := cmd.Flags().GetString("logLevel")
		if err != nil {
			return err
		}

		switch level {
		case "debug":
			initLogger(slog.LevelDebug)
		case "info":
			initLogger(slog.LevelInfo)
		case "warn":
			initLogger(slog.LevelWarn)
		case "error":
			initLogger(slog.LevelError)
		default:
			initLogger(slog.LevelInfo)
		}

		if err := godotenv.Load(); err != nil {
			slog.Debug("no .env file loaded", "err", err)
		}

		err = initializeConfig(cmd)
		if err != nil {
			return err
		}

		if err := monitoring.InitSentry(config.RuntimeConfig.SentryDSN, config.RuntimeConfig.Environment, version); err != nil {
			slog.Warn("could not initialize sentry", "err", err)
		}

		shutdown, err := monitoring.InitTracer(cmd.Context(), config.RuntimeConfig.Trace, os.Stderr, version)
		if err != nil {
			return err
		}
		shutdownTracer = shutdown
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return shutdownTracer(ctx)
	},
}

func Execute() {
	err := RootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	// Add version details command
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("sbomgraph\n")
			fmt.Printf("Version:    %s\n", version)
			fmt.Printf("Commit:     %s\n", commit)
			fmt.Printf("Built:      %s\n", date)
			fmt.Printf("Built by:   %s\n", builtBy)
		},
	}

	RootCmd.AddCommand(
		versionCmd,
		NewAnalyzeCommand(),
		NewMergeCommand(),
		NewBlastRadiusCommand(),
		NewServeCommand(),
	)

	RootCmd.PersistentFlags().StringP("logLevel", "l", "info", "Set the log level. Options: debug, info, warn, error")
	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to a config file (default is ./.sbomgraph)")
	RootCmd.PersistentFlags().StringP("output", "o", "table", "Output format. Options: table, json, yaml")
	RootCmd.PersistentFlags().Int("checkpointInterval", 500, "Number of processed components between two cancellation checks")
	RootCmd.PersistentFlags().Int("timeout", 0, "Abort a pass after this many seconds (0 disables the timeout)")
	RootCmd.PersistentFlags().String("trace", "", "Export traces. Options: stdout or an OTLP/HTTP endpoint url")
}

// InitLogger initializes the logger with a tint handler.
// tint is a simple logging library that allows to add colors to the log output.
// this is obviously not required, but it makes the logs easier to read.
func initLogger(level slog.Leveler) {
	// slog.HandlerOptions
	w := os.Stderr

	// set global logger with custom options
	slog.SetDefault(slog.New(
		tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
			AddSource:  true,
		}),
	))
}

func initializeConfig(cmd *cobra.Command) error {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName(defaultConfigFilename)
	}

	viper.AddConfigPath(".")
	viper.AddConfigPath("/etc/sbomgraph/")
	// a missing config file is fine, a broken one is not
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		} else {
			slog.Debug("no config file found")
		}
	}

	viper.SetEnvPrefix("SBOMGRAPH")
	// Environment variables can't have dashes or dots in them, so bind them to their equivalent
	// keys with underscores, e.g. scoring.weights.hash to SBOMGRAPH_SCORING_WEIGHTS_HASH
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	// Bind the current command's flags to viper
	bindFlags(cmd)

	return config.ParseConfig()
}

// Bind each cobra flag to its associated viper configuration (config file and environment variable)
func bindFlags(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		configName := f.Name

		// Apply the viper config value to the flag when the flag is not set and viper has a value
		if !f.Changed && viper.IsSet(configName) {
			val := viper.Get(configName)
			cmd.Flags().Set(f.Name, fmt.Sprintf("%v", val)) // nolint: errcheck
		}

		// Bind the flag to viper
		if err := viper.BindPFlag(configName, f); err != nil {
			slog.Error("could not bind flag to viper", "err", err)
		}
	})
}
