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

import (
	"encoding/json"
	"slices"

	"github.com/l3montree-dev/sbomgraph/utils"
)

type ComponentType string

const (
	ComponentTypeLibrary     ComponentType = "library"
	ComponentTypeApplication ComponentType = "application"
	ComponentTypeFramework   ComponentType = "framework"
	ComponentTypeContainer   ComponentType = "container"
	ComponentTypeOS          ComponentType = "operating-system"
	ComponentTypeFirmware    ComponentType = "firmware"
	ComponentTypeFile        ComponentType = "file"
)

type Hash struct {
	Algorithm string `json:"alg"`
	Value     string `json:"content"`
}

// Provenance names one source document an equivalent entity was found in.
type Provenance struct {
	SourceName string          `json:"sourceName"`
	RawJSON    json.RawMessage `json:"rawJson"`
}

// Component is a node of the dependency graph. Ref is the node key.
type Component struct {
	Ref          string        `json:"ref"`
	Name         string        `json:"name"`
	Version      string        `json:"version,omitempty"`
	Group        string        `json:"group,omitempty"`
	PackageURL   string        `json:"purl,omitempty"`
	Type         ComponentType `json:"type,omitempty"`
	Licenses     []string      `json:"licenses,omitempty"`
	Hashes       []Hash        `json:"hashes,omitempty"`
	Dependencies []string      `json:"dependencies,omitempty"`

	Provenance []Provenance `json:"provenance,omitempty"`

	// Raw is the component as it appeared in its source document.
	Raw map[string]any `json:"-"`
}

type Rating struct {
	Severity string   `json:"severity,omitempty"`
	Score    *float64 `json:"score,omitempty"`
	Method   string   `json:"method,omitempty"`
	Vector   string   `json:"vector,omitempty"`
}

type Vulnerability struct {
	ID          string   `json:"id"`
	Description string   `json:"description,omitempty"`
	Ratings     []Rating `json:"ratings,omitempty"`
	// Affects holds the refs of the components this finding applies to.
	Affects []string `json:"affects"`

	Provenance []Provenance `json:"provenance,omitempty"`

	Raw map[string]any `json:"-"`
}

// Document is one flat SBOM as produced by a single tool, or the canonical
// result of merging several of them.
type Document struct {
	SourceName string `json:"sourceName,omitempty"`
	// Metadata is the declared root component of the document, if any.
	Metadata  *Component `json:"metadata,omitempty"`
	Timestamp string     `json:"timestamp,omitempty"`
	Tools     []string   `json:"tools,omitempty"`

	Components      []Component     `json:"components"`
	Vulnerabilities []Vulnerability `json:"vulnerabilities"`

	MultiSourceStats *MultiSourceStats `json:"multiSourceStats,omitempty"`
}

func (c Component) Clone() Component {
	clone := Component{
		Ref:          c.Ref,
		Name:         c.Name,
		Version:      c.Version,
		Group:        c.Group,
		PackageURL:   c.PackageURL,
		Type:         c.Type,
		Licenses:     slices.Clone(c.Licenses),
		Hashes:       slices.Clone(c.Hashes),
		Dependencies: slices.Clone(c.Dependencies),
		Provenance:   cloneProvenance(c.Provenance),
	}
	if c.Raw != nil {
		clone.Raw = cloneRaw(c.Raw)
	}
	return clone
}

func (v Vulnerability) Clone() Vulnerability {
	clone := Vulnerability{
		ID:          v.ID,
		Description: v.Description,
		Affects:     slices.Clone(v.Affects),
		Provenance:  cloneProvenance(v.Provenance),
	}
	if v.Ratings != nil {
		clone.Ratings = make([]Rating, len(v.Ratings))
		for i, r := range v.Ratings {
			clone.Ratings[i] = Rating{Severity: r.Severity, Method: r.Method, Vector: r.Vector}
			if r.Score != nil {
				clone.Ratings[i].Score = utils.Ptr(*r.Score)
			}
		}
	}
	if v.Raw != nil {
		clone.Raw = cloneRaw(v.Raw)
	}
	return clone
}

// Clone returns a copy of the document that shares no mutable state with d.
func (d Document) Clone() Document {
	clone := Document{
		SourceName:      d.SourceName,
		Timestamp:       d.Timestamp,
		Tools:           slices.Clone(d.Tools),
		Components:      make([]Component, len(d.Components)),
		Vulnerabilities: make([]Vulnerability, len(d.Vulnerabilities)),
	}
	if d.Metadata != nil {
		clone.Metadata = utils.Ptr(d.Metadata.Clone())
	}
	for i, c := range d.Components {
		clone.Components[i] = c.Clone()
	}
	for i, v := range d.Vulnerabilities {
		clone.Vulnerabilities[i] = v.Clone()
	}
	if d.MultiSourceStats != nil {
		// stats are never mutated after the merge, sharing them is fine
		clone.MultiSourceStats = d.MultiSourceStats
	}
	return clone
}

func cloneProvenance(p []Provenance) []Provenance {
	if p == nil {
		return nil
	}
	res := make([]Provenance, len(p))
	for i, entry := range p {
		res[i] = Provenance{SourceName: entry.SourceName, RawJSON: slices.Clone(entry.RawJSON)}
	}
	return res
}

func cloneRaw(raw map[string]any) map[string]any {
	cloned, err := utils.StructuredClone(raw)
	if err != nil {
		// raw values only ever come out of encoding/json, which is always cloneable
		panic(err)
	}
	return cloned.(map[string]any)
}
