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
	"slices"
)

// BuildDependentsGraph inverts the forward graph. Every node of the forward
// graph gets an entry, isolated ones an empty list. order fixes the order of
// the dependents lists; refs missing from it are appended sorted.
func BuildDependentsGraph(forward map[string][]string, order []string) map[string][]string {
	order = completeOrder(forward, order)

	dependents := make(map[string][]string, len(forward))
	for _, ref := range order {
		dependents[ref] = []string{}
	}
	for _, ref := range order {
		for _, dep := range forward[ref] {
			if _, ok := dependents[dep]; !ok {
				// target without an entry of its own
				dependents[dep] = []string{}
			}
			dependents[dep] = append(dependents[dep], ref)
		}
	}
	return dependents
}

// CalculateBlastRadius counts, per node, every node transitively depending
// on it. The node itself is never counted, even if a cycle leads back to it.
func CalculateBlastRadius(ctx context.Context, dependents map[string][]string) (map[string]int, error) {
	cp := newCheckpointer(ctx, DefaultCheckpointInterval, len(dependents), nil, 0, 0, "")
	return blastRadius(cp, dependents, nil)
}

func blastRadius(cp *checkpointer, dependents map[string][]string, order []string) (map[string]int, error) {
	order = completeOrder(dependents, order)
	result := make(map[string]int, len(dependents))

	// reused between the traversals, reset by generation
	visited := make(map[string]int, len(dependents))
	queue := make([]string, 0, 64)

	for i, start := range order {
		generation := i + 1
		// the start node is visited up front so a cycle never counts it
		visited[start] = generation
		queue = queue[:0]
		for _, ref := range dependents[start] {
			if visited[ref] == generation {
				continue
			}
			visited[ref] = generation
			queue = append(queue, ref)
		}
		for head := 0; head < len(queue); head++ {
			for _, next := range dependents[queue[head]] {
				if visited[next] == generation {
					continue
				}
				visited[next] = generation
				queue = append(queue, next)
			}
		}
		result[start] = len(queue)

		if err := cp.Tick(); err != nil {
			return nil, err
		}
	}

	if err := cp.Done(); err != nil {
		return nil, err
	}
	return result, nil
}

func completeOrder(graph map[string][]string, order []string) []string {
	if len(order) >= len(graph) {
		return order
	}
	known := make(map[string]struct{}, len(order))
	for _, ref := range order {
		known[ref] = struct{}{}
	}
	missing := make([]string, 0, len(graph)-len(order))
	for ref := range graph {
		if _, ok := known[ref]; !ok {
			missing = append(missing, ref)
		}
	}
	slices.Sort(missing)
	return append(slices.Clone(order), missing...)
}
