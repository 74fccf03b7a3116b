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
	"slices"

	"github.com/l3montree-dev/sbomgraph/dtos"
	"github.com/l3montree-dev/sbomgraph/vulndb"
)

// ComputeStatistics summarizes a document independent of the graph.
// Vulnerabilities are deduplicated by id alone, the first occurrence wins.
// Vulnerabilities without an id cannot be deduplicated and are all kept.
func ComputeStatistics(doc dtos.Document) dtos.Statistics {
	stats := dtos.Statistics{
		TotalComponents:       len(doc.Components),
		TotalVulnerabilities:  len(doc.Vulnerabilities),
		Licenses:              []string{},
		UniqueVulnerabilities: make(map[dtos.Severity][]dtos.Vulnerability, len(dtos.Severities)),
	}
	for _, severity := range dtos.Severities {
		stats.UniqueVulnerabilities[severity] = []dtos.Vulnerability{}
	}

	licenses := make(map[string]struct{})
	for _, comp := range doc.Components {
		for _, license := range comp.Licenses {
			if license == "" {
				continue
			}
			licenses[license] = struct{}{}
		}
	}
	for license := range licenses {
		stats.Licenses = append(stats.Licenses, license)
	}
	slices.Sort(stats.Licenses)

	seen := make(map[string]struct{}, len(doc.Vulnerabilities))
	for _, vuln := range doc.Vulnerabilities {
		if vuln.ID != "" {
			if _, ok := seen[vuln.ID]; ok {
				continue
			}
			seen[vuln.ID] = struct{}{}
		}
		severity := vulndb.SeverityFromRatings(vuln.Ratings)
		stats.UniqueVulnerabilities[severity] = append(stats.UniqueVulnerabilities[severity], vuln)
	}

	return stats
}
