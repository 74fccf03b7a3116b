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
	"slices"
	"testing"
	"time"

	"github.com/l3montree-dev/sbomgraph/dtos"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syntheticDocument builds a binary tree of n components with forward cross
// links, a few small cycles between leaves and a finding on every 50th node.
func syntheticDocument(n int) dtos.Document {
	ref := func(i int) string { return fmt.Sprintf("pkg:npm/c%d@1.0.0", i) }
	d := dtos.Document{
		Components:      make([]dtos.Component, 0, n),
		Vulnerabilities: []dtos.Vulnerability{},
	}
	for i := 0; i < n; i++ {
		c := dtos.Component{Ref: ref(i), Name: fmt.Sprintf("c%d", i), Version: "1.0.0", PackageURL: ref(i)}
		for _, child := range []int{2*i + 1, 2*i + 2} {
			if child < n {
				c.Dependencies = append(c.Dependencies, ref(child))
			}
		}
		if i%10 == 3 && i+101 < n {
			c.Dependencies = append(c.Dependencies, ref(i+101))
		}
		if i >= n/2 && i%1000 == 0 && i+1 < n {
			c.Dependencies = append(c.Dependencies, ref(i+1))
		}
		if i > n/2 && i%1000 == 1 {
			c.Dependencies = append(c.Dependencies, ref(i-1))
		}
		d.Components = append(d.Components, c)
		if i%50 == 0 {
			d.Vulnerabilities = append(d.Vulnerabilities, vuln(fmt.Sprintf("CVE-%d", i), "high", ref(i)))
		}
	}
	return d
}

func TestAnalyze(t *testing.T) {
	t.Run("should analyze a single document", func(t *testing.T) {
		d := doc(comp("app", "lib"), comp("lib", "core"), comp("core"))
		d.Vulnerabilities = []dtos.Vulnerability{vuln("CVE-1", "critical", "core")}

		result, err := NewAnalysisService(0, DefaultScoringConfig()).Analyze(context.Background(), []dtos.Document{d}, nil)
		require.NoError(t, err)

		assert.Equal(t, []string{"app"}, result.TopLevelRefs)
		assert.Equal(t, map[string]int{"app": 0, "lib": 1, "core": 2}, result.BlastRadius)
		assert.Equal(t, []string{"lib"}, result.DependentsGraph["core"])
		assert.Len(t, result.EnhancedComponentMap["app"].Vulnerabilities.Transitive[dtos.SeverityCritical], 1)
		assert.Equal(t, 2, result.EnhancedComponentMap["core"].DependentsCount)
		assert.Nil(t, result.MultiSourceStats)
		assert.Len(t, result.Statistics.UniqueVulnerabilities[dtos.SeverityCritical], 1)
	})

	t.Run("should merge several documents first", func(t *testing.T) {
		first := doc(purlComp("app", "pkg:npm/app@1.0.0", "lib"), purlComp("lib", "pkg:npm/lib@1.0.0"))
		first.SourceName = "trivy"
		second := doc(purlComp("LIB", "pkg:npm/lib@1.0.0", "extra"), purlComp("extra", "pkg:npm/extra@1.0.0"))
		second.SourceName = "grype"
		second.Vulnerabilities = []dtos.Vulnerability{vuln("CVE-1", "high", "extra")}

		result, err := NewAnalysisService(0, DefaultScoringConfig()).Analyze(context.Background(), []dtos.Document{first, second}, nil)
		require.NoError(t, err)
		require.NotNil(t, result.MultiSourceStats)
		assert.Equal(t, []string{"extra"}, result.DependencyGraph["lib"])
		assert.Len(t, result.EnhancedComponentMap["app"].Vulnerabilities.Transitive[dtos.SeverityHigh], 1)
		assert.Equal(t, 2, result.BlastRadius["extra"])
	})

	t.Run("should analyze an empty document", func(t *testing.T) {
		result, err := NewAnalysisService(0, DefaultScoringConfig()).Analyze(context.Background(), []dtos.Document{{}}, nil)
		require.NoError(t, err)
		assert.Empty(t, result.EnhancedComponentMap)
		assert.Empty(t, result.TopLevelRefs)
	})

	t.Run("should report monotonic progress", func(t *testing.T) {
		var percents []int
		_, err := NewAnalysisService(10, DefaultScoringConfig()).Analyze(context.Background(), []dtos.Document{syntheticDocument(500)}, func(percent int, message string) {
			percents = append(percents, percent)
		})
		require.NoError(t, err)
		require.NotEmpty(t, percents)
		assert.True(t, slices.IsSorted(percents))
		assert.Equal(t, 100, percents[len(percents)-1])
	})

	t.Run("should return no result once aborted", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		calls := 0
		result, err := NewAnalysisService(10, DefaultScoringConfig()).Analyze(ctx, []dtos.Document{syntheticDocument(1000)}, func(percent int, message string) {
			calls++
			if percent >= 30 {
				cancel()
			}
		})
		assert.ErrorIs(t, err, ErrAborted)
		assert.Nil(t, result)
		assert.Positive(t, calls)
	})

	t.Run("should handle 20000 components", func(t *testing.T) {
		const n = 20000
		d := syntheticDocument(n)

		start := time.Now()
		result, err := NewAnalysisService(0, DefaultScoringConfig()).Analyze(context.Background(), []dtos.Document{d}, nil)
		elapsed := time.Since(start)
		require.NoError(t, err)

		assert.Len(t, result.EnhancedComponentMap, n)
		assert.Equal(t, []string{"pkg:npm/c0@1.0.0"}, result.TopLevelRefs)
		assert.Equal(t, 0, result.BlastRadius["pkg:npm/c0@1.0.0"])
		// every finding but the root's own is reachable from the root
		assert.Equal(t, n/50-1, result.EnhancedComponentMap["pkg:npm/c0@1.0.0"].Vulnerabilities.Transitive.Count())
		assert.Less(t, elapsed, 30*time.Second)
	})
}
