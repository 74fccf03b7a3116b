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
	"encoding/json"

	"github.com/secure-systems-lab/go-securesystemslib/cjson"
)

// CanonicalJSON encodes v with sorted keys and no insignificant whitespace,
// so equal entities from different tools produce byte equal provenance.
func CanonicalJSON(v any) (json.RawMessage, error) {
	// cjson only understands the low level json types
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := json.Unmarshal(b, &generic); err != nil {
		return nil, err
	}
	canonical, err := cjson.EncodeCanonical(generic)
	if err != nil {
		// canonical json has no fractional numbers (cvss scores). encoding/json
		// sorts map keys as well, which is stable enough for those records.
		return json.Marshal(generic)
	}
	return canonical, nil
}
