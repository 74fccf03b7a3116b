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
	"testing"

	"github.com/l3montree-dev/sbomgraph/dtos"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexVulnerabilities(t *testing.T) {
	t.Run("should index a vulnerability under every affected ref", func(t *testing.T) {
		index := IndexVulnerabilities([]dtos.Vulnerability{
			{ID: "CVE-2024-0001", Affects: []string{"x", "y"}, Ratings: []dtos.Rating{{Severity: "high"}}},
		})

		require.Len(t, index["x"], 1)
		require.Len(t, index["y"], 1)
		assert.Equal(t, "CVE-2024-0001@x", index["x"][0].Key)
		assert.Equal(t, "CVE-2024-0001@y", index["y"][0].Key)
		assert.Equal(t, dtos.SeverityHigh, index["x"][0].Severity)
	})

	t.Run("should index the same pair only once", func(t *testing.T) {
		index := IndexVulnerabilities([]dtos.Vulnerability{
			{ID: "CVE-2024-0001", Affects: []string{"x", "x"}},
			{ID: "CVE-2024-0001", Affects: []string{"x"}},
		})
		assert.Len(t, index["x"], 1)
	})

	t.Run("should keep vulnerabilities without id apart", func(t *testing.T) {
		index := IndexVulnerabilities([]dtos.Vulnerability{
			{Affects: []string{"x"}},
			{Affects: []string{"x"}},
		})
		require.Len(t, index["x"], 2)
		assert.NotEqual(t, index["x"][0].Key, index["x"][1].Key)
		assert.Equal(t, "", index["x"][0].ID)
	})

	t.Run("should ignore empty refs and missing affects", func(t *testing.T) {
		index := IndexVulnerabilities([]dtos.Vulnerability{
			{ID: "CVE-2024-0001", Affects: []string{""}},
			{ID: "CVE-2024-0002"},
		})
		assert.Empty(t, index)
	})
}
