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
	"testing"

	"github.com/l3montree-dev/sbomgraph/dtos"
	"github.com/stretchr/testify/assert"
)

func TestMetadataScore(t *testing.T) {
	config := DefaultScoringConfig()

	t.Run("a fully described document scores 100", func(t *testing.T) {
		d := dtos.Document{
			Timestamp: "2025-01-01T00:00:00Z",
			Tools:     []string{"trivy"},
			Components: []dtos.Component{{
				Ref: "a", Version: "1.0.0", PackageURL: "pkg:npm/a@1.0.0",
				Licenses: []string{"MIT"}, Hashes: []dtos.Hash{{Algorithm: "SHA-256", Value: "abc"}},
			}},
		}
		assert.Equal(t, 100, MetadataScore(d, config))
	})

	t.Run("component fields count by share", func(t *testing.T) {
		// half of the components carry a version: 15 of 100
		d := dtos.Document{Components: []dtos.Component{{Ref: "a", Version: "1.0.0"}, {Ref: "b"}}}
		assert.Equal(t, 15, MetadataScore(d, config))
	})

	t.Run("document fields are all or nothing", func(t *testing.T) {
		d := dtos.Document{Timestamp: "2025-01-01T00:00:00Z", Tools: []string{"syft"}}
		assert.Equal(t, 20, MetadataScore(d, config))
	})

	t.Run("custom weights are normalized", func(t *testing.T) {
		custom := config
		custom.Weights = ScoringWeights{Version: 1, License: 1}
		d := dtos.Document{Components: []dtos.Component{{Ref: "a", Version: "1.0.0"}}}
		assert.Equal(t, 50, MetadataScore(d, custom))
	})

	t.Run("zero weights score zero", func(t *testing.T) {
		custom := config
		custom.Weights = ScoringWeights{}
		assert.Equal(t, 0, MetadataScore(dtos.Document{Timestamp: "now"}, custom))
	})
}

func TestMetadataGrade(t *testing.T) {
	thresholds := DefaultScoringConfig().Thresholds
	tests := []struct {
		score    int
		expected string
	}{
		{100, "A"},
		{80, "A"},
		{79, "B"},
		{60, "B"},
		{40, "C"},
		{20, "D"},
		{19, "F"},
		{0, "F"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, MetadataGrade(tt.score, thresholds), "score %d", tt.score)
	}
}
