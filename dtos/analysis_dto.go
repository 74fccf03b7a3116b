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

type Severity string

const (
	SeverityCritical      Severity = "Critical"
	SeverityHigh          Severity = "High"
	SeverityMedium        Severity = "Medium"
	SeverityLow           Severity = "Low"
	SeverityInformational Severity = "Informational"
)

// Severities lists all buckets, most severe first.
var Severities = []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityInformational}

func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// AffectedVulnerability is one countable finding: a vulnerability paired with
// the single component it affects.
type AffectedVulnerability struct {
	ID          string   `json:"id"`
	AffectedRef string   `json:"affectedRef"`
	Severity    Severity `json:"severity"`
	Description string   `json:"description,omitempty"`
	// Key identifies the (vulnerability, affected component) pair.
	Key string `json:"-"`
}

type SeverityBuckets map[Severity][]AffectedVulnerability

func NewSeverityBuckets() SeverityBuckets {
	b := make(SeverityBuckets, len(Severities))
	for _, s := range Severities {
		b[s] = []AffectedVulnerability{}
	}
	return b
}

func (b SeverityBuckets) Count() int {
	n := 0
	for _, entries := range b {
		n += len(entries)
	}
	return n
}

type VulnerabilityView struct {
	Inherent   SeverityBuckets `json:"inherent"`
	Transitive SeverityBuckets `json:"transitive"`
}

type EnhancedComponent struct {
	Component
	Vulnerabilities VulnerabilityView `json:"vulnerabilities"`
	DependentsCount int               `json:"dependentsCount"`
}

type Statistics struct {
	TotalComponents       int                          `json:"totalComponents"`
	TotalVulnerabilities  int                          `json:"totalVulnerabilities"`
	Licenses              []string                     `json:"licenses"`
	UniqueVulnerabilities map[Severity][]Vulnerability `json:"uniqueVulnerabilities"`
}

type AnalysisResult struct {
	Document             Document                     `json:"document"`
	EnhancedComponentMap map[string]EnhancedComponent `json:"enhancedComponentMap"`
	DependencyGraph      map[string][]string          `json:"dependencyGraph"`
	DependentsGraph      map[string][]string          `json:"dependentsGraph"`
	BlastRadius          map[string]int               `json:"blastRadius"`
	TopLevelRefs         []string                     `json:"topLevelRefs"`
	Statistics           Statistics                   `json:"statistics"`
	MultiSourceStats     *MultiSourceStats            `json:"multiSourceStats,omitempty"`
}
