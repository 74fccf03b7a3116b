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

package printer

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/l3montree-dev/sbomgraph/dtos"
	"github.com/l3montree-dev/sbomgraph/normalize"
	"github.com/l3montree-dev/sbomgraph/utils"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Structured writes v as json or yaml. The yaml keys are the json field names.
func Structured(w io.Writer, format string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, "could not encode result")
	}
	switch format {
	case "json":
		_, err = fmt.Fprintln(w, string(b))
		return err
	case "yaml":
		var generic any
		if err := json.Unmarshal(b, &generic); err != nil {
			return err
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(generic); err != nil {
			return errors.Wrap(err, "could not encode result as yaml")
		}
		return enc.Close()
	}
	return errors.Errorf("unknown output format %q", format)
}

func severityColor(s dtos.Severity) text.Colors {
	switch s {
	case dtos.SeverityCritical:
		return text.Colors{text.FgHiRed, text.Bold}
	case dtos.SeverityHigh:
		return text.Colors{text.FgRed}
	case dtos.SeverityMedium:
		return text.Colors{text.FgYellow}
	case dtos.SeverityLow:
		return text.Colors{text.FgBlue}
	default:
		return text.Colors{text.FgHiBlack}
	}
}

func displayName(c dtos.Component) string {
	if c.PackageURL != "" {
		if pretty, err := normalize.BeautifyPURL(c.PackageURL); err == nil {
			return pretty
		}
	}
	if c.Name != "" {
		return c.Name
	}
	return c.Ref
}

// PrintAnalysis renders the summary of a pass.
func PrintAnalysis(w io.Writer, result *dtos.AnalysisResult, top int) {
	stats := result.Statistics

	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendRows([]table.Row{
		{"Components", stats.TotalComponents},
		{"Vulnerabilities", stats.TotalVulnerabilities},
		{"Licenses", len(stats.Licenses)},
		{"Top level", strings.Join(utils.Map(result.TopLevelRefs, func(ref string) string {
			return displayName(result.EnhancedComponentMap[ref].Component)
		}), "\n")},
	})
	tw.Render()

	tw = table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"Severity", "Unique vulnerabilities"})
	for _, s := range dtos.Severities {
		tw.AppendRow(table.Row{severityColor(s).Sprint(string(s)), len(stats.UniqueVulnerabilities[s])})
	}
	tw.Render()

	exposed := RankExposure(result, top)
	if len(exposed) == 0 {
		return
	}
	tw = table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetTitle("Most exposed components")
	tw.AppendHeader(table.Row{"Component", "Inherent", "Transitive", "Critical", "High"})
	for _, c := range exposed {
		transitive := c.Vulnerabilities.Transitive
		tw.AppendRow(table.Row{
			displayName(c.Component),
			c.Vulnerabilities.Inherent.Count(),
			transitive.Count(),
			len(transitive[dtos.SeverityCritical]),
			len(transitive[dtos.SeverityHigh]),
		})
	}
	tw.Render()
}

// RankExposure orders the components by the amount of findings they pull in,
// components without any are left out.
func RankExposure(result *dtos.AnalysisResult, top int) []dtos.EnhancedComponent {
	exposed := utils.Filter(utils.Values(result.EnhancedComponentMap), func(c dtos.EnhancedComponent) bool {
		return c.Vulnerabilities.Transitive.Count()+c.Vulnerabilities.Inherent.Count() > 0
	})
	slices.SortFunc(exposed, func(a, b dtos.EnhancedComponent) int {
		for _, s := range dtos.Severities {
			if d := len(b.Vulnerabilities.Transitive[s]) - len(a.Vulnerabilities.Transitive[s]); d != 0 {
				return d
			}
		}
		if d := b.Vulnerabilities.Inherent.Count() - a.Vulnerabilities.Inherent.Count(); d != 0 {
			return d
		}
		return strings.Compare(a.Ref, b.Ref)
	})
	if top > 0 && len(exposed) > top {
		exposed = exposed[:top]
	}
	return exposed
}

type BlastRadiusEntry struct {
	Rank       int    `json:"rank"`
	Ref        string `json:"ref"`
	Name       string `json:"name"`
	Dependents int    `json:"dependents"`
	Findings   int    `json:"findings"`
}

// RankBlastRadius lists the components with the most (transitive) dependents
// first. Ties are ordered by ref.
func RankBlastRadius(result *dtos.AnalysisResult, top int) []BlastRadiusEntry {
	entries := make([]BlastRadiusEntry, 0, len(result.BlastRadius))
	for ref, radius := range result.BlastRadius {
		c := result.EnhancedComponentMap[ref]
		entries = append(entries, BlastRadiusEntry{
			Ref:        ref,
			Name:       displayName(c.Component),
			Dependents: radius,
			Findings:   c.Vulnerabilities.Inherent.Count(),
		})
	}
	slices.SortFunc(entries, func(a, b BlastRadiusEntry) int {
		if a.Dependents != b.Dependents {
			return b.Dependents - a.Dependents
		}
		return strings.Compare(a.Ref, b.Ref)
	})
	if top > 0 && len(entries) > top {
		entries = entries[:top]
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}

func PrintBlastRadius(w io.Writer, entries []BlastRadiusEntry) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"#", "Component", "Dependents", "Own findings"})
	for _, e := range entries {
		findings := fmt.Sprint(e.Findings)
		if e.Findings > 0 {
			findings = text.FgRed.Sprint(findings)
		}
		tw.AppendRow(table.Row{e.Rank, e.Name, e.Dependents, findings})
	}
	tw.Render()
}

// PrintSourceStats renders the ranking and the overlap of a multi source merge.
func PrintSourceStats(w io.Writer, stats *dtos.MultiSourceStats) {
	if stats == nil {
		return
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetTitle("Sources")
	tw.AppendHeader(table.Row{"#", "Source", "Components", "Vulnerabilities", "Critical", "High", "Score", "Grade", "Only found here"})
	gaps := make(map[string]dtos.GapReport, len(stats.Gaps))
	for _, g := range stats.Gaps {
		gaps[g.SourceName] = g
	}
	for _, s := range stats.Sources {
		gap := gaps[s.SourceName]
		tw.AppendRow(table.Row{
			s.Rank,
			s.SourceName,
			s.ComponentsFound,
			s.VulnerabilitiesFound,
			s.SeverityBreakdown[dtos.SeverityCritical],
			s.SeverityBreakdown[dtos.SeverityHigh],
			s.MetadataScore,
			s.MetadataGrade,
			fmt.Sprintf("%d components, %d vulnerabilities", len(gap.UniqueComponents), len(gap.UniqueVulnerabilities)),
		})
	}
	tw.Render()

	tw = table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"", "Total", "Shared"})
	tw.AppendRows([]table.Row{
		{"Components", stats.Overlap.TotalComponents, stats.Overlap.SharedComponents},
		{"Vulnerabilities", stats.Overlap.TotalVulnerabilities, stats.Overlap.SharedVulnerabilities},
	})
	tw.Render()
}
