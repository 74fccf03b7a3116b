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
	"log/slog"
	"slices"
	"sort"

	"github.com/l3montree-dev/sbomgraph/dtos"
	"github.com/l3montree-dev/sbomgraph/normalize"
	"github.com/l3montree-dev/sbomgraph/utils"
	"github.com/l3montree-dev/sbomgraph/vulndb"
)

const MergedSourceName = "merged"

type MergeService struct {
	scoring            ScoringConfig
	checkpointInterval int
}

func NewMergeService(scoring ScoringConfig, checkpointInterval int) *MergeService {
	return &MergeService{
		scoring:            scoring,
		checkpointInterval: checkpointInterval,
	}
}

// Merge reconciles the documents into one canonical document. The first
// document is the base, every further one is folded into it in order.
// A single document is returned unchanged.
func (s *MergeService) Merge(ctx context.Context, docs []dtos.Document) (dtos.Document, error) {
	return s.merge(ctx, docs, nil)
}

func (s *MergeService) merge(ctx context.Context, docs []dtos.Document, progress *progressTracker) (dtos.Document, error) {
	switch len(docs) {
	case 0:
		return dtos.Document{Components: []dtos.Component{}, Vulnerabilities: []dtos.Vulnerability{}}, nil
	case 1:
		return docs[0], nil
	}

	total := 0
	for _, doc := range docs[1:] {
		total += len(doc.Components) + len(doc.Vulnerabilities)
	}
	cp := newCheckpointer(ctx, s.checkpointInterval, total, progress, 0, 20, "merging documents")

	names := sourceNames(docs)
	m := newMergeState(docs[0], names[0], len(docs[0].Components))

	for i, doc := range docs[1:] {
		slog.Debug("merging document", "source", names[i+1], "components", len(doc.Components), "vulnerabilities", len(doc.Vulnerabilities))
		if err := m.fold(cp, doc, names[i+1]); err != nil {
			return dtos.Document{}, err
		}
	}
	if err := cp.Done(); err != nil {
		return dtos.Document{}, err
	}

	merged := m.document()
	stats := m.stats(docs, names, s.scoring)
	merged.MultiSourceStats = &stats
	return merged, nil
}

// sourceNames makes the names of the sources unique, provenance is keyed by them.
func sourceNames(docs []dtos.Document) []string {
	names := make([]string, len(docs))
	used := make(map[string]struct{}, len(docs))
	for i, doc := range docs {
		name := doc.SourceName
		if name == "" {
			name = fmt.Sprintf("source-%d", i+1)
		}
		if _, ok := used[name]; ok {
			name = fmt.Sprintf("%s-%d", name, i+1)
		}
		used[name] = struct{}{}
		names[i] = name
	}
	return names
}

type mergeState struct {
	base dtos.Document

	normalizer    *normalize.PurlNormalizer
	byPurl        map[string]string
	byNameVersion map[string]string

	componentPos map[string]int
	edges        map[string]map[string]struct{}

	vulnPos map[string]int
	// sources which reported a (vulnerability, component) pair
	pairSources map[string][]string
	shared      map[string]struct{}
	// component ref -> source -> number of findings
	findings map[string]map[string]int
}

func newMergeState(first dtos.Document, sourceName string, size int) *mergeState {
	m := &mergeState{
		base:          first.Clone(),
		normalizer:    normalize.NewPurlNormalizer(size + 1),
		byPurl:        make(map[string]string, size),
		byNameVersion: make(map[string]string, size),
		componentPos:  make(map[string]int, size),
		edges:         make(map[string]map[string]struct{}, size),
		vulnPos:       make(map[string]int),
		pairSources:   make(map[string][]string),
		shared:        make(map[string]struct{}),
		findings:      make(map[string]map[string]int),
	}
	m.base.SourceName = MergedSourceName

	// duplicate refs collapse like in BuildDependencyGraph: first position, last value
	components := make([]dtos.Component, 0, len(m.base.Components))
	for _, comp := range m.base.Components {
		if pos, exists := m.componentPos[comp.Ref]; exists {
			components[pos] = comp
			continue
		}
		m.componentPos[comp.Ref] = len(components)
		components = append(components, comp)
	}
	m.base.Components = components

	for i := range m.base.Components {
		comp := &m.base.Components[i]
		m.register(*comp)
		comp.Provenance = appendProvenance(comp.Provenance, sourceName, rawOf(comp.Raw, *comp))
		deps := make(map[string]struct{}, len(comp.Dependencies))
		for _, dep := range comp.Dependencies {
			deps[dep] = struct{}{}
		}
		m.edges[comp.Ref] = deps
	}

	for i := range m.base.Vulnerabilities {
		vuln := &m.base.Vulnerabilities[i]
		if vuln.ID == "" {
			continue
		}
		if _, exists := m.vulnPos[vuln.ID]; !exists {
			m.vulnPos[vuln.ID] = i
		}
		vuln.Provenance = appendProvenance(vuln.Provenance, sourceName, rawOf(vuln.Raw, *vuln))
		affects := vuln.Affects[:0:0]
		for _, ref := range vuln.Affects {
			if m.recordPair(vuln.ID, ref, sourceName) {
				affects = append(affects, ref)
			}
		}
		vuln.Affects = affects
	}
	return m
}

// register makes the identity keys of a base component known.
// The first component claiming a key keeps it.
func (m *mergeState) register(comp dtos.Component) {
	if comp.PackageURL != "" {
		key := m.normalizer.Normalize(comp.PackageURL)
		if _, ok := m.byPurl[key]; !ok {
			m.byPurl[key] = comp.Ref
		}
	}
	if key := normalize.NameVersionKey(comp.Name, comp.Version); key != "" {
		if _, ok := m.byNameVersion[key]; !ok {
			m.byNameVersion[key] = comp.Ref
		}
	}
}

func (m *mergeState) lookup(comp dtos.Component) (string, bool) {
	if comp.PackageURL != "" {
		if ref, ok := m.byPurl[m.normalizer.Normalize(comp.PackageURL)]; ok {
			return ref, true
		}
	}
	if key := normalize.NameVersionKey(comp.Name, comp.Version); key != "" {
		if ref, ok := m.byNameVersion[key]; ok {
			// two different package urls never denote the same component
			if comp.PackageURL == "" || m.base.Components[m.componentPos[ref]].PackageURL == "" {
				return ref, true
			}
		}
	}
	return "", false
}

// recordPair notes that source reported vulnID for ref. It returns true if
// the pair is new to the merged document.
func (m *mergeState) recordPair(vulnID, ref, source string) bool {
	key := vulndb.PairKey(vulnID, ref)
	sources, exists := m.pairSources[key]
	if slices.Contains(sources, source) {
		return false
	}
	m.pairSources[key] = append(sources, source)
	if m.findings[ref] == nil {
		m.findings[ref] = make(map[string]int)
	}
	m.findings[ref][source]++
	if exists {
		m.shared[vulnID] = struct{}{}
	}
	return !exists
}

func (m *mergeState) fold(cp *checkpointer, doc dtos.Document, source string) error {
	refMap := make(map[string]string, len(doc.Components))

	for _, tool := range doc.Tools {
		if !slices.Contains(m.base.Tools, tool) {
			m.base.Tools = append(m.base.Tools, tool)
		}
	}

	for _, comp := range doc.Components {
		if comp.Ref == "" {
			continue
		}
		if _, done := refMap[comp.Ref]; done {
			continue
		}
		if baseRef, ok := m.lookup(comp); ok {
			refMap[comp.Ref] = baseRef
			target := &m.base.Components[m.componentPos[baseRef]]
			if !hasProvenance(target.Provenance, source) {
				target.Provenance = appendProvenance(target.Provenance, source, rawOf(comp.Raw, comp))
			}
		} else {
			added := comp.Clone()
			if _, collision := m.componentPos[added.Ref]; collision {
				added.Ref = source + ":" + added.Ref
			}
			added.Dependencies = nil
			added.Provenance = appendProvenance(nil, source, rawOf(comp.Raw, comp))

			refMap[comp.Ref] = added.Ref
			m.componentPos[added.Ref] = len(m.base.Components)
			m.edges[added.Ref] = make(map[string]struct{})
			m.base.Components = append(m.base.Components, added)
			m.register(added)
		}
		if err := cp.Tick(); err != nil {
			return err
		}
	}

	// edges are a set, a secondary document only adds the ones still missing
	for _, comp := range doc.Components {
		from, ok := refMap[comp.Ref]
		if !ok {
			continue
		}
		target := &m.base.Components[m.componentPos[from]]
		for _, dep := range comp.Dependencies {
			to, ok := refMap[dep]
			if !ok {
				continue
			}
			if _, exists := m.edges[from][to]; exists {
				continue
			}
			m.edges[from][to] = struct{}{}
			target.Dependencies = append(target.Dependencies, to)
		}
	}

	for _, vuln := range doc.Vulnerabilities {
		if err := cp.Tick(); err != nil {
			return err
		}

		targets := make([]string, 0, len(vuln.Affects))
		for _, ref := range vuln.Affects {
			if to, ok := refMap[ref]; ok && !slices.Contains(targets, to) {
				targets = append(targets, to)
			}
		}

		if vuln.ID == "" {
			// without identity there is nothing to merge with
			anonymous := vuln.Clone()
			anonymous.Affects = targets
			m.base.Vulnerabilities = append(m.base.Vulnerabilities, anonymous)
			continue
		}

		pos, exists := m.vulnPos[vuln.ID]
		if !exists {
			created := vuln.Clone()
			created.Affects = []string{}
			created.Provenance = nil
			pos = len(m.base.Vulnerabilities)
			m.vulnPos[vuln.ID] = pos
			m.base.Vulnerabilities = append(m.base.Vulnerabilities, created)
		}
		target := &m.base.Vulnerabilities[pos]
		if !hasProvenance(target.Provenance, source) {
			target.Provenance = appendProvenance(target.Provenance, source, rawOf(vuln.Raw, vuln))
		}
		for _, ref := range targets {
			if m.recordPair(vuln.ID, ref, source) {
				target.Affects = append(target.Affects, ref)
			}
		}
	}
	return nil
}

func (m *mergeState) document() dtos.Document {
	return m.base
}

func (m *mergeState) stats(docs []dtos.Document, names []string, scoring ScoringConfig) dtos.MultiSourceStats {
	stats := dtos.MultiSourceStats{
		Sources:    make([]dtos.SourceStats, 0, len(docs)),
		Gaps:       make([]dtos.GapReport, 0, len(docs)),
		Comparison: make([]dtos.ComparisonRow, 0, len(m.base.Components)),
	}

	for i, doc := range docs {
		breakdown := make(map[dtos.Severity]int, len(dtos.Severities))
		for _, severity := range dtos.Severities {
			breakdown[severity] = 0
		}
		for _, vuln := range doc.Vulnerabilities {
			breakdown[vulndb.SeverityFromRatings(vuln.Ratings)]++
		}
		score := MetadataScore(doc, scoring)
		stats.Sources = append(stats.Sources, dtos.SourceStats{
			SourceName:           names[i],
			ComponentsFound:      len(doc.Components),
			VulnerabilitiesFound: len(doc.Vulnerabilities),
			SeverityBreakdown:    breakdown,
			MetadataScore:        score,
			MetadataGrade:        MetadataGrade(score, scoring.Thresholds),
		})
	}
	// stable keeps the input order on ties
	sort.SliceStable(stats.Sources, func(i, j int) bool {
		a, b := stats.Sources[i], stats.Sources[j]
		if a.MetadataScore != b.MetadataScore {
			return a.MetadataScore > b.MetadataScore
		}
		if a.VulnerabilitiesFound != b.VulnerabilitiesFound {
			return a.VulnerabilitiesFound > b.VulnerabilitiesFound
		}
		return a.ComponentsFound > b.ComponentsFound
	})
	for i := range stats.Sources {
		stats.Sources[i].Rank = i + 1
	}

	gaps := make(map[string]*dtos.GapReport, len(names))
	for _, name := range names {
		stats.Gaps = append(stats.Gaps, dtos.GapReport{SourceName: name, UniqueComponents: []string{}, UniqueVulnerabilities: []string{}})
	}
	for i := range stats.Gaps {
		gaps[stats.Gaps[i].SourceName] = &stats.Gaps[i]
	}

	stats.Overlap.TotalComponents = len(m.base.Components)
	for _, comp := range m.base.Components {
		foundBy := utils.Map(comp.Provenance, func(p dtos.Provenance) string { return p.SourceName })
		switch len(foundBy) {
		case 0:
		case 1:
			if gap, ok := gaps[foundBy[0]]; ok {
				gap.UniqueComponents = append(gap.UniqueComponents, comp.Ref)
			}
		default:
			stats.Overlap.SharedComponents++
		}

		counts := make(map[string]int, len(names))
		for _, name := range names {
			counts[name] = m.findings[comp.Ref][name]
		}
		stats.Comparison = append(stats.Comparison, dtos.ComparisonRow{
			ComponentRef:        comp.Ref,
			Name:                comp.Name,
			Version:             comp.Version,
			FoundBy:             foundBy,
			VulnerabilityCounts: counts,
		})
	}

	stats.Overlap.TotalVulnerabilities = len(m.base.Vulnerabilities)
	stats.Overlap.SharedVulnerabilities = len(m.shared)
	for _, vuln := range m.base.Vulnerabilities {
		if len(vuln.Provenance) != 1 {
			continue
		}
		if gap, ok := gaps[vuln.Provenance[0].SourceName]; ok {
			gap.UniqueVulnerabilities = append(gap.UniqueVulnerabilities, vuln.ID)
		}
	}

	return stats
}

func hasProvenance(provenance []dtos.Provenance, source string) bool {
	return slices.ContainsFunc(provenance, func(p dtos.Provenance) bool { return p.SourceName == source })
}

func appendProvenance(provenance []dtos.Provenance, source string, raw []byte) []dtos.Provenance {
	return append(provenance, dtos.Provenance{SourceName: source, RawJSON: raw})
}

// rawOf encodes the record as it appeared in its source. Records built in
// code carry no raw map and are encoded as they are.
func rawOf(raw map[string]any, fallback any) []byte {
	var v any = raw
	if raw == nil {
		v = fallback
	}
	encoded, err := normalize.CanonicalJSON(v)
	if err != nil {
		slog.Debug("could not encode provenance", "err", err)
		return nil
	}
	return encoded
}
