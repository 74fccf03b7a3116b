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

package utils

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sameMap(a, b any) bool {
	return reflect.ValueOf(a).UnsafePointer() == reflect.ValueOf(b).UnsafePointer()
}

func TestStructuredClone(t *testing.T) {
	t.Run("should copy scalars and nested containers", func(t *testing.T) {
		var original map[string]any
		require.NoError(t, json.Unmarshal([]byte(`{"name":"lodash","version":"4.17.21","hashes":[{"alg":"SHA-256","content":"abc"}],"nested":{"a":1,"b":true,"c":null}}`), &original))

		cloned, err := StructuredClone(original)
		require.NoError(t, err)

		assert.Equal(t, original, cloned)
		assert.False(t, sameMap(original, cloned))

		// mutating the clone must not touch the original
		cloned.(map[string]any)["nested"].(map[string]any)["a"] = 2.0
		assert.Equal(t, 1.0, original["nested"].(map[string]any)["a"])
	})

	t.Run("should preserve a shared sub object", func(t *testing.T) {
		shared := map[string]any{"id": "CVE-2024-0001"}
		original := map[string]any{"a": shared, "b": shared}

		cloned, err := StructuredClone(original)
		require.NoError(t, err)

		c := cloned.(map[string]any)
		assert.True(t, sameMap(c["a"], c["b"]))
		assert.False(t, sameMap(c["a"], shared))
	})

	t.Run("should preserve a shared slice", func(t *testing.T) {
		affects := []any{"pkg:npm/a@1.0.0", "pkg:npm/b@1.0.0"}
		original := map[string]any{"x": affects, "y": affects}

		cloned, err := StructuredClone(original)
		require.NoError(t, err)

		c := cloned.(map[string]any)
		x := c["x"].([]any)
		y := c["y"].([]any)
		x[0] = "changed"
		assert.Equal(t, "changed", y[0])
		assert.Equal(t, "pkg:npm/a@1.0.0", affects[0])
	})

	t.Run("should handle cycles", func(t *testing.T) {
		a := map[string]any{"name": "a"}
		b := map[string]any{"name": "b", "next": a}
		a["next"] = b
		a["self"] = a

		cloned, err := StructuredClone(a)
		require.NoError(t, err)

		c := cloned.(map[string]any)
		assert.True(t, sameMap(c, c["self"]))
		assert.True(t, sameMap(c, c["next"].(map[string]any)["next"]))
		assert.Equal(t, "b", c["next"].(map[string]any)["name"])
	})

	t.Run("should clone a 20000 links deep structure without recursion", func(t *testing.T) {
		const depth = 20000
		root := map[string]any{"depth": 0}
		current := root
		for i := 1; i <= depth; i++ {
			next := map[string]any{"depth": i}
			current["next"] = next
			current = next
		}

		cloned, err := StructuredClone(root)
		require.NoError(t, err)

		links := 0
		node := cloned.(map[string]any)
		for {
			next, ok := node["next"].(map[string]any)
			if !ok {
				break
			}
			links++
			node = next
		}
		assert.Equal(t, depth, links)
		assert.Equal(t, depth, node["depth"])
	})

	t.Run("should keep nil containers nil", func(t *testing.T) {
		cloned, err := StructuredClone(map[string]any{"m": map[string]any(nil), "s": []any(nil)})
		require.NoError(t, err)
		c := cloned.(map[string]any)
		assert.Nil(t, c["m"])
		assert.Nil(t, c["s"])
	})

	t.Run("should refuse values which cannot cross a boundary", func(t *testing.T) {
		_, err := StructuredClone(map[string]any{"fn": func() {}})
		assert.True(t, errors.Is(err, ErrNotCloneable))
	})
}
