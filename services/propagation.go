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
	"math"

	"github.com/l3montree-dev/sbomgraph/dtos"
	"github.com/l3montree-dev/sbomgraph/vulndb"
)

// bucketSet collects findings keyed by their (vulnerability, component) pair.
type bucketSet struct {
	buckets dtos.SeverityBuckets
	seen    map[string]struct{}
}

func newBucketSet() bucketSet {
	return bucketSet{buckets: dtos.NewSeverityBuckets(), seen: make(map[string]struct{})}
}

func (b *bucketSet) add(entries []dtos.AffectedVulnerability, self string) {
	for _, entry := range entries {
		if entry.AffectedRef == self {
			continue
		}
		if _, ok := b.seen[entry.Key]; ok {
			continue
		}
		b.seen[entry.Key] = struct{}{}
		b.buckets[entry.Severity] = append(b.buckets[entry.Severity], entry)
	}
}

func (b *bucketSet) addView(view dtos.VulnerabilityView, self string) {
	for _, severity := range dtos.Severities {
		b.add(view.Inherent[severity], self)
		b.add(view.Transitive[severity], self)
	}
}

type propagationFrame struct {
	ref   string
	depth int
	next  int
	acc   bucketSet
	// lowest depth of an on-path node an edge of this subtree pointed to
	minSkip int
}

// PropagateVulnerabilities computes the inherent and transitive findings of
// every component in the graph.
func PropagateVulnerabilities(ctx context.Context, graph DependencyGraph, index vulndb.VulnIndex) (map[string]dtos.VulnerabilityView, error) {
	cp := newCheckpointer(ctx, DefaultCheckpointInterval, len(graph.Order), nil, 0, 0, "")
	return propagate(cp, graph, index)
}

// propagate walks depth first from every root with a current path set. An
// edge back onto the path is skipped, anything else is walked, so a node
// reachable on two paths contributes through both. The result of a node
// whose subtree never skipped an edge to one of its ancestors does not depend
// on the path it was reached on and is reused. Any other node reports the
// union of the findings its visits collected. Components no root reaches
// are walked afterwards as roots of their own.
func propagate(cp *checkpointer, graph DependencyGraph, index vulndb.VulnIndex) (map[string]dtos.VulnerabilityView, error) {
	views := make(map[string]dtos.VulnerabilityView, len(graph.Order))
	collected := make(map[string]*bucketSet, len(graph.Order))
	memo := make(map[string]dtos.VulnerabilityView, len(graph.Order))
	inherent := make(map[string]dtos.SeverityBuckets, len(graph.Order))
	onPath := make(map[string]int)

	inherentOf := func(ref string) dtos.SeverityBuckets {
		if b, ok := inherent[ref]; ok {
			return b
		}
		b := dtos.NewSeverityBuckets()
		for _, entry := range index[ref] {
			b[entry.Severity] = append(b[entry.Severity], entry)
		}
		inherent[ref] = b
		return b
	}

	var stack []propagationFrame
	push := func(ref string) {
		onPath[ref] = len(stack)
		stack = append(stack, propagationFrame{
			ref:     ref,
			depth:   len(stack),
			acc:     newBucketSet(),
			minSkip: math.MaxInt,
		})
	}

	walk := func(root string) error {
		if _, ok := memo[root]; ok {
			return nil
		}
		push(root)
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			deps := graph.Forward[top.ref]
			if top.next < len(deps) {
				dep := deps[top.next]
				top.next++
				if depth, ok := onPath[dep]; ok {
					// cycle
					top.minSkip = min(top.minSkip, depth)
					continue
				}
				if view, ok := memo[dep]; ok {
					top.acc.addView(view, top.ref)
					continue
				}
				push(dep)
				continue
			}

			// all dependencies done
			view := dtos.VulnerabilityView{
				Inherent:   inherentOf(top.ref),
				Transitive: top.acc.buckets,
			}
			finished := *top
			stack = stack[:len(stack)-1]
			delete(onPath, finished.ref)

			if finished.minSkip >= finished.depth {
				memo[finished.ref] = view
			}
			if set, ok := collected[finished.ref]; ok {
				// a later path may reach what an earlier one skipped as cyclic.
				// set shares its buckets with views[finished.ref]
				for _, severity := range dtos.Severities {
					set.add(view.Transitive[severity], finished.ref)
				}
			} else {
				collected[finished.ref] = &finished.acc
				views[finished.ref] = view
			}
			if len(stack) > 0 {
				parent := &stack[len(stack)-1]
				parent.acc.addView(view, parent.ref)
				parent.minSkip = min(parent.minSkip, finished.minSkip)
			}

			if err := cp.Tick(); err != nil {
				stack = stack[:0]
				clear(onPath)
				return err
			}
		}
		return nil
	}

	for _, root := range graph.TopLevelRefs {
		if err := walk(root); err != nil {
			return nil, err
		}
	}
	for _, ref := range graph.Order {
		if _, ok := views[ref]; ok {
			continue
		}
		if err := walk(ref); err != nil {
			return nil, err
		}
	}

	if err := cp.Done(); err != nil {
		return nil, err
	}
	return views, nil
}
