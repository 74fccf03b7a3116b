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
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/l3montree-dev/sbomgraph/cmd/sbomgraph/config"
	"github.com/l3montree-dev/sbomgraph/dtos"
	"github.com/l3montree-dev/sbomgraph/normalize"
	"github.com/l3montree-dev/sbomgraph/services"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

// readDocuments decodes every file. The source name of a document is derived
// from its file name.
func readDocuments(paths []string) ([]dtos.Document, error) {
	docs := make([]dtos.Document, 0, len(paths))
	for _, path := range paths {
		doc, err := readDocument(path)
		if err != nil {
			return nil, err
		}
		slog.Debug("read sbom", "path", path, "source", doc.SourceName, "components", len(doc.Components), "vulnerabilities", len(doc.Vulnerabilities))
		docs = append(docs, doc)
	}
	return docs, nil
}

func readDocument(path string) (dtos.Document, error) {
	var r io.Reader
	if path == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return dtos.Document{}, errors.Wrap(err, "could not open sbom")
		}
		defer f.Close()
		r = f
	}
	doc, err := normalize.DecodeDocument(r, normalize.SourceName(path))
	if err != nil {
		return dtos.Document{}, errors.Wrapf(err, "could not read %s", path)
	}
	return doc, nil
}

// commandContext is cancelled on SIGINT/SIGTERM and after the configured timeout.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	if config.RuntimeConfig.Timeout <= 0 {
		return ctx, stop
	}
	ctx, cancel := context.WithTimeout(ctx, time.Duration(config.RuntimeConfig.Timeout)*time.Second)
	return ctx, func() {
		cancel()
		stop()
	}
}

func newAnalysisService() *services.AnalysisService {
	return services.NewAnalysisService(config.RuntimeConfig.CheckpointInterval, config.RuntimeConfig.Scoring)
}

// runJob runs a pass in the worker and renders its progress events on w.
// A nil writer disables the progress bar.
func runJob(ctx context.Context, worker *services.Worker, docs []dtos.Document, w io.Writer) (*dtos.AnalysisResult, error) {
	job := worker.Start(ctx, docs...)

	var bar *progressbar.ProgressBar
	if w != nil {
		bar = progressbar.NewOptions(100,
			progressbar.OptionSetWriter(w),
			progressbar.OptionSetDescription("analyzing"),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionClearOnFinish(),
			progressbar.OptionSetWidth(30),
		)
	}

	for ev := range job.Events() {
		if bar == nil {
			continue
		}
		switch ev.Kind {
		case dtos.ProgressEventProgress:
			bar.Describe(ev.Message)
			bar.Set(ev.Percent) // nolint:errcheck
		case dtos.ProgressEventComplete:
			bar.Finish() // nolint:errcheck
		default:
			bar.Exit() // nolint:errcheck
		}
	}

	result, err := job.Wait()
	if err != nil {
		return nil, describeError(ctx, err)
	}
	return result, nil
}

func describeError(ctx context.Context, err error) error {
	if services.IsAborted(err) && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("analysis did not finish within %d seconds: %w", config.RuntimeConfig.Timeout, err)
	}
	return err
}

func progressWriter(cmd *cobra.Command) io.Writer {
	quiet, _ := cmd.Flags().GetBool("quiet")
	if quiet {
		return nil
	}
	return cmd.ErrOrStderr()
}
