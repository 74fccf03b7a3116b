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

func comp(ref string, deps ...string) dtos.Component {
	return dtos.Component{Ref: ref, Name: ref, Version: "1.0.0", Dependencies: deps}
}

func vuln(id string, severity string, affects ...string) dtos.Vulnerability {
	return dtos.Vulnerability{ID: id, Ratings: []dtos.Rating{{Severity: severity}}, Affects: affects}
}

func doc(components ...dtos.Component) dtos.Document {
	return dtos.Document{Components: components, Vulnerabilities: []dtos.Vulnerability{}}
}

func TestBuildDependencyGraph(t *testing.T) {
	t.Run("should build an empty graph for an empty document", func(t *testing.T) {
		graph := BuildDependencyGraph(dtos.Document{})
		assert.Empty(t, graph.Order)
		assert.Empty(t, graph.TopLevelRefs)
		assert.NotNil(t, graph.TopLevelRefs)
	})

	t.Run("should deduplicate edges and drop dangling ones", func(t *testing.T) {
		graph := BuildDependencyGraph(doc(
			comp("a", "b", "b", "missing"),
			comp("b"),
		))
		assert.Equal(t, []string{"b"}, graph.Forward["a"])
		assert.Equal(t, []string{}, graph.Forward["b"])
	})

	t.Run("should detect roots as components which are never a child", func(t *testing.T) {
		graph := BuildDependencyGraph(doc(
			comp("a", "c"),
			comp("b", "c"),
			comp("c"),
		))
		assert.Equal(t, []string{"a", "b"}, graph.TopLevelRefs)
	})

	t.Run("should fall back to the declared root in a fully cyclic document", func(t *testing.T) {
		d := doc(comp("a", "b"), comp("b", "a"))
		d.Metadata = &dtos.Component{Ref: "b"}
		graph := BuildDependencyGraph(d)
		assert.Equal(t, []string{"b"}, graph.TopLevelRefs)
	})

	t.Run("should fall back to the first component without a declared root", func(t *testing.T) {
		graph := BuildDependencyGraph(doc(comp("a", "b"), comp("b", "a")))
		assert.Equal(t, []string{"a"}, graph.TopLevelRefs)
	})

	t.Run("should skip components without ref", func(t *testing.T) {
		graph := BuildDependencyGraph(doc(comp(""), comp("a")))
		assert.Equal(t, []string{"a"}, graph.Order)
	})

	t.Run("should let the last duplicate win but keep the first position", func(t *testing.T) {
		first := comp("a")
		first.Version = "1.0.0"
		second := comp("a", "b")
		second.Version = "2.0.0"
		graph := BuildDependencyGraph(doc(first, comp("b"), second))
		assert.Equal(t, []string{"a", "b"}, graph.Order)
		assert.Equal(t, "2.0.0", graph.ComponentIndex["a"].Version)
		assert.Equal(t, []string{"b"}, graph.Forward["a"])
	})
}
