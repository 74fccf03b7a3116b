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
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/l3montree-dev/sbomgraph/dtos"
	"github.com/l3montree-dev/sbomgraph/monitoring"
)

const defaultEventBuffer = 64

// Worker runs analysis passes in their own goroutine. Inputs are cloned
// before they cross into the job, the caller may keep mutating its copies.
type Worker struct {
	analysis    *AnalysisService
	eventBuffer int
}

func NewWorker(analysis *AnalysisService) *Worker {
	return &Worker{analysis: analysis, eventBuffer: defaultEventBuffer}
}

// Job is one running pass.
type Job struct {
	ID string

	events chan dtos.ProgressEvent
	cancel context.CancelFunc
	done   chan struct{}

	// written once before done is closed
	result *dtos.AnalysisResult
	err    error
}

// Start launches a pass over the documents. The returned job emits ordered
// progress events and exactly one terminal event, then closes Events.
func (w *Worker) Start(ctx context.Context, docs ...dtos.Document) *Job {
	ctx, cancel := context.WithCancel(ctx)
	job := &Job{
		ID:     uuid.New().String(),
		events: make(chan dtos.ProgressEvent, w.eventBuffer),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	input := make([]dtos.Document, len(docs))
	for i, doc := range docs {
		input[i] = doc.Clone()
	}

	go job.run(ctx, w.analysis, input)
	return job
}

func (j *Job) run(ctx context.Context, analysis *AnalysisService, docs []dtos.Document) {
	defer j.cancel()

	result, err := func() (result *dtos.AnalysisResult, err error) {
		defer func() {
			if r := recover(); r != nil {
				monitoring.RecoverAndAlert("panic in analysis job", fmt.Errorf("%v", r))
				result, err = nil, &PassError{Stage: "worker", Err: fmt.Errorf("panic: %v", r)}
			}
		}()
		return analysis.Analyze(ctx, docs, func(percent int, message string) {
			j.progress(ctx, percent, message)
		})
	}()

	var terminal dtos.ProgressEvent
	switch {
	case err == nil:
		terminal = dtos.ProgressEvent{JobID: j.ID, Kind: dtos.ProgressEventComplete, Percent: 100, Message: "analysis complete", Result: result}
	case IsAborted(err):
		slog.Info("analysis aborted", "job", j.ID)
		terminal = dtos.ProgressEvent{JobID: j.ID, Kind: dtos.ProgressEventAborted, Message: "analysis aborted", Error: err.Error()}
	default:
		monitoring.Alert("analysis failed", err)
		terminal = dtos.ProgressEvent{JobID: j.ID, Kind: dtos.ProgressEventError, Message: "analysis failed", Error: err.Error()}
	}

	// publish before anyone can observe the terminal event
	j.result, j.err = result, err
	close(j.done)

	// the progress sender always leaves one slot free, this never blocks
	j.events <- terminal
	close(j.events)
}

// progress is lossy: if nobody drains the events, intermediate ones are
// dropped. Once cancelled nothing but the terminal event is sent.
func (j *Job) progress(ctx context.Context, percent int, message string) {
	if ctx.Err() != nil {
		return
	}
	if len(j.events) >= cap(j.events)-1 {
		return
	}
	j.events <- dtos.ProgressEvent{JobID: j.ID, Kind: dtos.ProgressEventProgress, Percent: percent, Message: message}
}

func (j *Job) Events() <-chan dtos.ProgressEvent {
	return j.events
}

// Cancel requests an abort. The pass stops at its next checkpoint.
func (j *Job) Cancel() {
	j.cancel()
}

// Wait blocks until the pass terminated and returns its outcome.
func (j *Job) Wait() (*dtos.AnalysisResult, error) {
	<-j.done
	return j.result, j.err
}

// Done is closed once the outcome is available.
func (j *Job) Done() <-chan struct{} {
	return j.done
}
