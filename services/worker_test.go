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
	"testing"

	"github.com/l3montree-dev/sbomgraph/dtos"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(job *Job) []dtos.ProgressEvent {
	var events []dtos.ProgressEvent
	for ev := range job.Events() {
		events = append(events, ev)
	}
	return events
}

func TestWorker(t *testing.T) {
	worker := NewWorker(NewAnalysisService(10, DefaultScoringConfig()))

	t.Run("should end with exactly one complete event", func(t *testing.T) {
		job := worker.Start(context.Background(), syntheticDocument(300))
		events := drain(job)

		require.NotEmpty(t, events)
		last := events[len(events)-1]
		assert.Equal(t, dtos.ProgressEventComplete, last.Kind)
		require.NotNil(t, last.Result)
		for _, ev := range events[:len(events)-1] {
			assert.Equal(t, dtos.ProgressEventProgress, ev.Kind)
			assert.Equal(t, job.ID, ev.JobID)
		}
		for i := 1; i < len(events); i++ {
			assert.GreaterOrEqual(t, events[i].Percent, events[i-1].Percent)
		}

		result, err := job.Wait()
		require.NoError(t, err)
		assert.Same(t, last.Result, result)
	})

	t.Run("should only emit the abort outcome once cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		job := worker.Start(ctx, syntheticDocument(300))
		events := drain(job)

		require.Len(t, events, 1)
		assert.Equal(t, dtos.ProgressEventAborted, events[0].Kind)
		result, err := job.Wait()
		assert.Nil(t, result)
		assert.True(t, IsAborted(err))
	})

	t.Run("should abort a running job on cancel", func(t *testing.T) {
		job := worker.Start(context.Background(), syntheticDocument(5000))
		job.Cancel()
		result, err := job.Wait()
		// the job may have finished before the cancel arrived
		if err != nil {
			assert.ErrorIs(t, err, ErrAborted)
			assert.Nil(t, result)
		} else {
			assert.NotNil(t, result)
		}
		events := drain(job)
		require.NotEmpty(t, events)
		assert.True(t, events[len(events)-1].Terminal())
	})

	t.Run("should not see changes made to the input after start", func(t *testing.T) {
		d := doc(comp("a"))
		job := worker.Start(context.Background(), d)
		d.Components[0].Name = "changed"

		result, err := job.Wait()
		require.NoError(t, err)
		assert.Equal(t, "a", result.EnhancedComponentMap["a"].Name)
	})

	t.Run("should not block without a consumer", func(t *testing.T) {
		job := worker.Start(context.Background(), syntheticDocument(2000))
		_, err := job.Wait()
		require.NoError(t, err)
		<-job.Done()
	})
}
