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

package vulndb

import (
	"fmt"
	"log/slog"

	"github.com/l3montree-dev/sbomgraph/dtos"
)

// VulnIndex maps a component ref to the findings directly affecting it.
type VulnIndex map[string][]dtos.AffectedVulnerability

// PairKey identifies one vulnerability affecting one component.
func PairKey(vulnID, affectedRef string) string {
	return vulnID + "@" + affectedRef
}

// IndexVulnerabilities indexes every vulnerability under each of its affected
// refs. A vulnerability listed twice for the same ref is indexed once.
// Vulnerabilities without an id get a key of their own per instance, so they
// are still counted but never collapse with anything else.
func IndexVulnerabilities(vulns []dtos.Vulnerability) VulnIndex {
	index := make(VulnIndex)
	seen := make(map[string]struct{})
	anonymous := 0

	for i, vuln := range vulns {
		severity := SeverityFromRatings(vuln.Ratings)
		id := vuln.ID
		if id == "" {
			anonymous++
			id = fmt.Sprintf("#%d", i)
		}
		for _, ref := range vuln.Affects {
			if ref == "" {
				continue
			}
			key := PairKey(id, ref)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			index[ref] = append(index[ref], dtos.AffectedVulnerability{
				ID:          vuln.ID,
				AffectedRef: ref,
				Severity:    severity,
				Description: vuln.Description,
				Key:         key,
			})
		}
	}

	if anonymous > 0 {
		slog.Debug("indexed vulnerabilities without id", "amount", anonymous)
	}
	return index
}
