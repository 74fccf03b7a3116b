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

type SourceStats struct {
	SourceName           string           `json:"sourceName"`
	Rank                 int              `json:"rank"`
	ComponentsFound      int              `json:"componentsFound"`
	VulnerabilitiesFound int              `json:"vulnerabilitiesFound"`
	SeverityBreakdown    map[Severity]int `json:"severityBreakdown"`
	MetadataScore        int              `json:"metadataScore"`
	MetadataGrade        string           `json:"metadataGrade"`
}

type OverlapStats struct {
	TotalComponents       int `json:"totalComponents"`
	SharedComponents      int `json:"sharedComponents"`
	TotalVulnerabilities  int `json:"totalVulnerabilities"`
	SharedVulnerabilities int `json:"sharedVulnerabilities"`
}

// GapReport lists what only a single source found.
type GapReport struct {
	SourceName            string   `json:"sourceName"`
	UniqueComponents      []string `json:"uniqueComponents"`
	UniqueVulnerabilities []string `json:"uniqueVulnerabilities"`
}

type ComparisonRow struct {
	ComponentRef        string         `json:"componentRef"`
	Name                string         `json:"name"`
	Version             string         `json:"version,omitempty"`
	FoundBy             []string       `json:"foundBy"`
	VulnerabilityCounts map[string]int `json:"vulnerabilityCounts"`
}

type MultiSourceStats struct {
	// Sources is ordered by rank.
	Sources    []SourceStats   `json:"sources"`
	Overlap    OverlapStats    `json:"overlap"`
	Gaps       []GapReport     `json:"gaps"`
	Comparison []ComparisonRow `json:"comparison"`
}
