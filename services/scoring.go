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
	"math"

	"github.com/l3montree-dev/sbomgraph/dtos"
)

type ScoringWeights struct {
	Version   int `mapstructure:"version" json:"version" validate:"gte=0"`
	License   int `mapstructure:"license" json:"license" validate:"gte=0"`
	Purl      int `mapstructure:"purl" json:"purl" validate:"gte=0"`
	Hash      int `mapstructure:"hash" json:"hash" validate:"gte=0"`
	Timestamp int `mapstructure:"timestamp" json:"timestamp" validate:"gte=0"`
	Tool      int `mapstructure:"tool" json:"tool" validate:"gte=0"`
}

func (w ScoringWeights) total() int {
	return w.Version + w.License + w.Purl + w.Hash + w.Timestamp + w.Tool
}

// ScoringThresholds are the lower bounds of the grades A, B and C. D starts
// at half of C.
type ScoringThresholds struct {
	A int `mapstructure:"a" json:"a" validate:"gte=0,lte=100,gtefield=B"`
	B int `mapstructure:"b" json:"b" validate:"gte=0,lte=100,gtefield=C"`
	C int `mapstructure:"c" json:"c" validate:"gte=0,lte=100"`
}

type ScoringConfig struct {
	Weights    ScoringWeights    `mapstructure:"weights" json:"weights"`
	Thresholds ScoringThresholds `mapstructure:"thresholds" json:"thresholds"`
}

func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		Weights: ScoringWeights{
			Version:   30,
			License:   20,
			Purl:      20,
			Hash:      10,
			Timestamp: 10,
			Tool:      10,
		},
		Thresholds: ScoringThresholds{A: 80, B: 60, C: 40},
	}
}

// MetadataScore rates how well a document describes its components, 0-100.
// Component fields count by the share of components carrying them, document
// fields are all or nothing.
func MetadataScore(doc dtos.Document, config ScoringConfig) int {
	w := config.Weights
	total := w.total()
	if total == 0 {
		return 0
	}

	score := 0.0
	if n := len(doc.Components); n > 0 {
		var version, license, purl, hash int
		for _, comp := range doc.Components {
			if comp.Version != "" {
				version++
			}
			if len(comp.Licenses) > 0 {
				license++
			}
			if comp.PackageURL != "" {
				purl++
			}
			if len(comp.Hashes) > 0 {
				hash++
			}
		}
		score += float64(w.Version) * float64(version) / float64(n)
		score += float64(w.License) * float64(license) / float64(n)
		score += float64(w.Purl) * float64(purl) / float64(n)
		score += float64(w.Hash) * float64(hash) / float64(n)
	}
	if doc.Timestamp != "" {
		score += float64(w.Timestamp)
	}
	if len(doc.Tools) > 0 {
		score += float64(w.Tool)
	}

	return int(math.Round(score * 100 / float64(total)))
}

func MetadataGrade(score int, thresholds ScoringThresholds) string {
	switch {
	case score >= thresholds.A:
		return "A"
	case score >= thresholds.B:
		return "B"
	case score >= thresholds.C:
		return "C"
	case score >= thresholds.C/2:
		return "D"
	default:
		return "F"
	}
}
