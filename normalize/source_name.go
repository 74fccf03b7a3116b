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

package normalize

import (
	"path/filepath"
	"strings"

	"github.com/gosimple/slug"
)

// SourceName derives a provenance source name from a file name:
// "reports/Trivy Output.cdx.json" becomes "trivy-output".
func SourceName(path string) string {
	name := filepath.Base(path)
	for _, ext := range []string{".json", ".cdx", ".bom", ".sbom"} {
		name = strings.TrimSuffix(strings.ToLower(name), ext)
	}
	name = slug.Make(name)
	if name == "" || name == "." {
		return ""
	}
	return name
}
