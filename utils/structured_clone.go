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
	"fmt"
	"reflect"
	"slices"
	"time"
	"unsafe"

	"github.com/pkg/errors"
)

var ErrNotCloneable = errors.New("value cannot be cloned")

type containerKind uint8

const (
	kindMap containerKind = iota
	kindSlice
)

// identity of a reference value. Slices are identified by their backing array
// and length, so two headers viewing the same elements map to one clone.
type identity struct {
	kind containerKind
	ptr  unsafe.Pointer
	n    int
}

type pendingContainer struct {
	src any
	dst any
}

type cloner struct {
	seen    map[identity]any
	pending []pendingContainer
}

// StructuredClone deep copies JSON-like data (map[string]any, []any and scalar
// leaves). Shared and cyclic references are preserved: every source container
// maps to exactly one clone. The traversal uses an explicit worklist, so the
// depth of the input is only bounded by memory.
func StructuredClone(v any) (any, error) {
	c := cloner{seen: make(map[identity]any)}

	root, err := c.shallow(v)
	if err != nil {
		return nil, err
	}

	for len(c.pending) > 0 {
		next := c.pending[len(c.pending)-1]
		c.pending = c.pending[:len(c.pending)-1]

		switch src := next.src.(type) {
		case map[string]any:
			dst := next.dst.(map[string]any)
			for key, child := range src {
				cloned, err := c.shallow(child)
				if err != nil {
					return nil, errors.Wrapf(err, "could not clone key %q", key)
				}
				dst[key] = cloned
			}
		case []any:
			dst := next.dst.([]any)
			for i, child := range src {
				cloned, err := c.shallow(child)
				if err != nil {
					return nil, errors.Wrapf(err, "could not clone index %d", i)
				}
				dst[i] = cloned
			}
		}
	}

	return root, nil
}

// shallow returns the clone of v. Containers are allocated empty, registered
// and queued so their children get filled in by the worklist loop.
func (c *cloner) shallow(v any) (any, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case string, bool, json.Number,
		float64, float32,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return val, nil
	case time.Time:
		return val, nil
	case []byte:
		return slices.Clone(val), nil
	case map[string]any:
		if val == nil {
			return map[string]any(nil), nil
		}
		id := identity{kind: kindMap, ptr: reflect.ValueOf(val).UnsafePointer()}
		if existing, ok := c.seen[id]; ok {
			return existing, nil
		}
		dst := make(map[string]any, len(val))
		c.seen[id] = dst
		c.pending = append(c.pending, pendingContainer{src: val, dst: dst})
		return dst, nil
	case []any:
		if val == nil {
			return []any(nil), nil
		}
		if len(val) == 0 {
			return []any{}, nil
		}
		id := identity{kind: kindSlice, ptr: unsafe.Pointer(unsafe.SliceData(val)), n: len(val)}
		if existing, ok := c.seen[id]; ok {
			return existing, nil
		}
		dst := make([]any, len(val))
		c.seen[id] = dst
		c.pending = append(c.pending, pendingContainer{src: val, dst: dst})
		return dst, nil
	default:
		return nil, errors.Wrap(ErrNotCloneable, fmt.Sprintf("unsupported type %T", v))
	}
}
