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

package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/l3montree-dev/sbomgraph/dtos"
	"github.com/l3montree-dev/sbomgraph/monitoring"
	"github.com/l3montree-dev/sbomgraph/vulndb"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer(monitoring.TracerName)

// AnalysisService runs the whole pipeline. It holds configuration only, every
// call builds its own graph and index.
type AnalysisService struct {
	checkpointInterval int
	merger             *MergeService
}

func NewAnalysisService(checkpointInterval int, scoring ScoringConfig) *AnalysisService {
	if checkpointInterval <= 0 {
		checkpointInterval = DefaultCheckpointInterval
	}
	return &AnalysisService{
		checkpointInterval: checkpointInterval,
		merger:             NewMergeService(scoring, checkpointInterval),
	}
}

// Analyze merges the documents (if more than one) and derives the graph,
// the vulnerability views and the blast radius. Either the complete result
// or an error is returned, never both.
func (s *AnalysisService) Analyze(ctx context.Context, docs []dtos.Document, onProgress ProgressFunc) (*dtos.AnalysisResult, error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "analyze", trace.WithAttributes(attribute.Int("sbomgraph.documents", len(docs))))
	defer span.End()

	result, err := s.analyze(ctx, docs, newProgressTracker(onProgress))
	switch {
	case err == nil:
		monitoring.AnalysisDuration.Observe(time.Since(start).Seconds())
		monitoring.AnalysisComponentAmount.Observe(float64(len(result.Document.Components)))
	case IsAborted(err):
		monitoring.AnalysisAbortedAmount.Inc()
		span.SetStatus(codes.Error, "aborted")
	default:
		monitoring.AnalysisFailedAmount.Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return result, err
}

func (s *AnalysisService) analyze(ctx context.Context, docs []dtos.Document, progress *progressTracker) (*dtos.AnalysisResult, error) {
	progress.Report(0, "starting analysis")

	var doc dtos.Document
	err := s.stage(ctx, "merge", func(ctx context.Context) error {
		var err error
		doc, err = s.merger.merge(ctx, docs, progress)
		if len(docs) > 1 {
			monitoring.MergedSourcesAmount.Add(float64(len(docs)))
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	progress.Report(20, "documents merged")

	// both only read the document
	var graph DependencyGraph
	var index vulndb.VulnIndex
	err = s.stage(ctx, "index", func(ctx context.Context) error {
		var g errgroup.Group
		g.Go(func() error {
			return runStage("graph builder", func() error {
				graph = BuildDependencyGraph(doc)
				return nil
			})
		})
		g.Go(func() error {
			return runStage("vulnerability indexer", func() error {
				index = vulndb.IndexVulnerabilities(doc.Vulnerabilities)
				return nil
			})
		})
		if err := g.Wait(); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ErrAborted
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	progress.Report(30, "graph built")

	var views map[string]dtos.VulnerabilityView
	err = s.stage(ctx, "vulnerability propagator", func(ctx context.Context) error {
		var err error
		cp := newCheckpointer(ctx, s.checkpointInterval, len(graph.Order), progress, 30, 80, "propagating vulnerabilities")
		views, err = propagate(cp, graph, index)
		return err
	})
	if err != nil {
		return nil, err
	}

	var dependents map[string][]string
	var radius map[string]int
	err = s.stage(ctx, "blast radius", func(ctx context.Context) error {
		var err error
		dependents = BuildDependentsGraph(graph.Forward, graph.Order)
		cp := newCheckpointer(ctx, s.checkpointInterval, len(graph.Order), progress, 80, 95, "calculating blast radius")
		radius, err = blastRadius(cp, dependents, graph.Order)
		return err
	})
	if err != nil {
		return nil, err
	}

	var stats dtos.Statistics
	err = s.stage(ctx, "statistics", func(ctx context.Context) error {
		stats = ComputeStatistics(doc)
		return nil
	})
	if err != nil {
		return nil, err
	}

	enhanced := make(map[string]dtos.EnhancedComponent, len(graph.Order))
	for _, ref := range graph.Order {
		enhanced[ref] = dtos.EnhancedComponent{
			Component:       graph.ComponentIndex[ref],
			Vulnerabilities: views[ref],
			DependentsCount: radius[ref],
		}
	}

	// last chance to honor a cancellation, nothing is published after this
	if ctx.Err() != nil {
		return nil, ErrAborted
	}
	progress.Report(100, "analysis complete")
	slog.Debug("analysis complete", "components", len(graph.Order), "vulnerabilities", len(doc.Vulnerabilities), "roots", len(graph.TopLevelRefs))

	return &dtos.AnalysisResult{
		Document:             doc,
		EnhancedComponentMap: enhanced,
		DependencyGraph:      graph.Forward,
		DependentsGraph:      dependents,
		BlastRadius:          radius,
		TopLevelRefs:         graph.TopLevelRefs,
		Statistics:           stats,
		MultiSourceStats:     doc.MultiSourceStats,
	}, nil
}

// stage runs one step of the pipeline inside its own span and turns
// unexpected failures into a PassError.
func (s *AnalysisService) stage(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	if ctx.Err() != nil {
		return ErrAborted
	}
	start := time.Now()
	ctx, span := tracer.Start(ctx, name)
	defer span.End()

	err := runStage(name, func() error { return fn(ctx) })
	monitoring.AnalysisStageDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if err != nil && !IsAborted(err) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
