// Copyright 2025 l3montree UG (haftungsbeschraenkt).
// SPDX-License-Identifier: 	AGPL-3.0-or-later
package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var AnalysisDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "sbomgraph_analysis_duration_seconds",
	Help:    "Duration of complete analysis passes in seconds",
	Buckets: prometheus.DefBuckets,
})

var AnalysisStageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "sbomgraph_analysis_stage_duration_seconds",
	Help:    "Duration of the single stages of an analysis pass in seconds",
	Buckets: prometheus.DefBuckets,
}, []string{"stage"})

var AnalysisComponentAmount = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "sbomgraph_analysis_component_amount",
	Help:    "Number of components per analyzed document",
	Buckets: prometheus.ExponentialBuckets(10, 4, 8),
})

var AnalysisAbortedAmount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "sbomgraph_analysis_aborted_amount",
	Help: "The total number of cancelled analysis passes",
})

var AnalysisFailedAmount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "sbomgraph_analysis_failed_amount",
	Help: "The total number of analysis passes which failed unexpectedly",
})

var MergedSourcesAmount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "sbomgraph_merged_sources_amount",
	Help: "The total number of documents folded into a multi source merge",
})
