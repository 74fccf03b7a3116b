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
	"log/slog"

	"github.com/l3montree-dev/sbomgraph/dtos"
)

// DependencyGraph is the forward view of one document.
type DependencyGraph struct {
	ComponentIndex map[string]dtos.Component
	// Order holds every ref once, in source order.
	Order []string
	// Forward maps every ref to its (deduplicated, resolvable) dependencies.
	Forward      map[string][]string
	TopLevelRefs []string
}

// BuildDependencyGraph indexes the components of a document and collects
// its dependency edges. Edges to unknown refs are dropped. Duplicate refs
// overwrite earlier ones.
func BuildDependencyGraph(doc dtos.Document) DependencyGraph {
	graph := DependencyGraph{
		ComponentIndex: make(map[string]dtos.Component, len(doc.Components)),
		Order:          make([]string, 0, len(doc.Components)),
		Forward:        make(map[string][]string, len(doc.Components)),
		TopLevelRefs:   []string{},
	}

	skipped := 0
	for _, comp := range doc.Components {
		if comp.Ref == "" {
			skipped++
			continue
		}
		if _, exists := graph.ComponentIndex[comp.Ref]; !exists {
			graph.Order = append(graph.Order, comp.Ref)
		}
		graph.ComponentIndex[comp.Ref] = comp
	}
	if skipped > 0 {
		slog.Debug("skipped components without ref", "amount", skipped)
	}

	isChild := make(map[string]bool, len(graph.Order))
	dangling := 0
	for _, ref := range graph.Order {
		comp := graph.ComponentIndex[ref]
		deps := make([]string, 0, len(comp.Dependencies))
		seen := make(map[string]struct{}, len(comp.Dependencies))
		for _, dep := range comp.Dependencies {
			if _, ok := graph.ComponentIndex[dep]; !ok {
				dangling++
				continue
			}
			if _, ok := seen[dep]; ok {
				continue
			}
			seen[dep] = struct{}{}
			deps = append(deps, dep)
			isChild[dep] = true
		}
		graph.Forward[ref] = deps
	}
	if dangling > 0 {
		slog.Debug("dropped dangling dependency edges", "amount", dangling)
	}

	// roots are components which are never a child
	for _, ref := range graph.Order {
		if !isChild[ref] {
			graph.TopLevelRefs = append(graph.TopLevelRefs, ref)
		}
	}

	if len(graph.TopLevelRefs) == 0 && len(graph.Order) > 0 {
		if doc.Metadata != nil {
			if _, ok := graph.ComponentIndex[doc.Metadata.Ref]; ok {
				graph.TopLevelRefs = append(graph.TopLevelRefs, doc.Metadata.Ref)
				return graph
			}
		}
		graph.TopLevelRefs = append(graph.TopLevelRefs, graph.Order[0])
	}

	return graph
}
