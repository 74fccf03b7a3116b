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
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/l3montree-dev/sbomgraph/cmd/sbomgraph/config"
	"github.com/l3montree-dev/sbomgraph/controllers"
	"github.com/l3montree-dev/sbomgraph/internal/echohttp"
	"github.com/l3montree-dev/sbomgraph/router"
	"github.com/l3montree-dev/sbomgraph/services"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:               "serve",
		Short:             "Serve the analysis over HTTP",
		DisableAutoGenTag: true,
		Long: `Serve the analysis over HTTP.

POST /api/v1/analyze  analyze one CycloneDX json body or several multipart "sbom" files
POST /api/v1/merge    reconcile the uploaded files into one CycloneDX document
GET  /api/v1/health/  liveness
GET  /api/v1/info/    build and runtime information
GET  /api/v1/metrics/ prometheus metrics

A request that is cancelled by the client or exceeds --timeout aborts its pass.`,
		Example: `  sbomgraph serve --listen :8080 --timeout 120`,
		Args:    cobra.NoArgs,
		RunE:    runServe,
	}

	cmd.Flags().String("listen", ":8080", "Address to listen on")
	cmd.Flags().String("bodyLimit", "100M", "Maximum size of an upload")
	cmd.Flags().StringSlice("origins", nil, "Allowed CORS origins (default *)")
	return cmd
}

func newServer(startedAt time.Time) *echo.Echo {
	cfg := config.RuntimeConfig
	timeout := time.Duration(cfg.Timeout) * time.Second

	e := echohttp.Server(echohttp.ServerConfig{
		AllowOrigins: cfg.Origins,
		Timeout:      timeout,
		BodyLimit:    cfg.BodyLimit,
		Debug:        cfg.LogLevel == "debug",
	})

	analysis := newAnalysisService()
	analysisController := controllers.NewAnalysisController(
		services.NewWorker(analysis),
		services.NewMergeService(cfg.Scoring, cfg.CheckpointInterval),
	)

	info := router.AnalysisInfo{CheckpointInterval: cfg.CheckpointInterval}
	if timeout > 0 {
		info.Timeout = timeout.String()
	}
	router.NewAPIV1Router(e, analysisController, router.BuildInfo{
		Version:   version,
		Commit:    commit,
		BuildDate: date,
	}, info, startedAt)
	return e
}

func runServe(cmd *cobra.Command, args []string) error {
	e := newServer(time.Now())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errs := make(chan error, 1)
	go func() {
		slog.Info("starting server", "listen", config.RuntimeConfig.Listen)
		errs <- e.Start(config.RuntimeConfig.Listen)
	}()

	select {
	case err := <-errs:
		if !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server stopped")
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "could not shut down server")
	}
	return nil
}
