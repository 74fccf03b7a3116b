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

package dtos

type ProgressEventKind string

const (
	ProgressEventProgress ProgressEventKind = "progress"
	ProgressEventComplete ProgressEventKind = "complete"
	ProgressEventError    ProgressEventKind = "error"
	ProgressEventAborted  ProgressEventKind = "aborted"
)

type ProgressEvent struct {
	JobID   string            `json:"jobId"`
	Kind    ProgressEventKind `json:"kind"`
	Percent int               `json:"percent"`
	Message string            `json:"message"`
	// Result is only set on the complete event.
	Result *AnalysisResult `json:"result,omitempty"`
	// Error is the human readable failure of an error event.
	Error string `json:"error,omitempty"`
}

func (e ProgressEvent) Terminal() bool {
	return e.Kind != ProgressEventProgress
}
