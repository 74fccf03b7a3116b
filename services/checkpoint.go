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
	"runtime"
	"sync"
)

const DefaultCheckpointInterval = 500

// ProgressFunc receives progress in percent (0-100) with a short message.
type ProgressFunc func(percent int, message string)

// progressTracker keeps reported progress monotonic. It is shared by stages
// running in parallel, so it locks.
type progressTracker struct {
	mu      sync.Mutex
	percent int
	report  ProgressFunc
}

func newProgressTracker(report ProgressFunc) *progressTracker {
	return &progressTracker{report: report, percent: -1}
}

func (p *progressTracker) Report(percent int, message string) {
	if p == nil || p.report == nil {
		return
	}
	percent = max(0, min(100, percent))

	p.mu.Lock()
	defer p.mu.Unlock()
	if percent < p.percent {
		// never go backwards
		percent = p.percent
	}
	p.percent = percent
	p.report(percent, message)
}

// checkpointer is ticked once per processed node. Every interval ticks it
// checks for cancellation, reports progress and yields the processor.
type checkpointer struct {
	ctx      context.Context
	interval int
	ticks    int
	total    int

	progress *progressTracker
	// the stage reports in [from, to]
	from, to int
	message  string
}

func newCheckpointer(ctx context.Context, interval, total int, progress *progressTracker, from, to int, message string) *checkpointer {
	if interval <= 0 {
		interval = DefaultCheckpointInterval
	}
	return &checkpointer{
		ctx:      ctx,
		interval: interval,
		total:    total,
		progress: progress,
		from:     from,
		to:       to,
		message:  message,
	}
}

func (c *checkpointer) Tick() error {
	c.ticks++
	if c.ticks%c.interval != 0 {
		return nil
	}
	return c.checkpoint()
}

func (c *checkpointer) checkpoint() error {
	if c.ctx.Err() != nil {
		return ErrAborted
	}
	if c.total > 0 {
		done := min(c.ticks, c.total)
		c.progress.Report(c.from+(c.to-c.from)*done/c.total, c.message)
	}
	runtime.Gosched()
	return nil
}

// Done marks the stage as finished, still honoring a pending cancellation.
func (c *checkpointer) Done() error {
	if c.ctx.Err() != nil {
		return ErrAborted
	}
	c.progress.Report(c.to, c.message)
	return nil
}
