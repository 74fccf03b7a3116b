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
	"io"
	"log/slog"
	"strings"

	cdx "github.com/CycloneDX/cyclonedx-go"
	"github.com/l3montree-dev/sbomgraph/dtos"
	"github.com/pkg/errors"
)

const ProvenancePropertyName = "sbomgraph:provenance"

// DecodeDocument reads a CycloneDX JSON document.
func DecodeDocument(r io.Reader, sourceName string) (dtos.Document, error) {
	var bom cdx.BOM
	if err := cdx.NewBOMDecoder(r, cdx.BOMFileFormatJSON).Decode(&bom); err != nil {
		return dtos.Document{}, errors.Wrap(err, "could not decode bom")
	}
	return FromCdxBom(&bom, sourceName), nil
}

// FromCdxBom flattens a CycloneDX BOM into a document. Field access is best
// effort: missing arrays are treated as empty and components without any
// usable identifier are skipped.
func FromCdxBom(bom *cdx.BOM, sourceName string) dtos.Document {
	doc := dtos.Document{
		SourceName:      sourceName,
		Components:      []dtos.Component{},
		Vulnerabilities: []dtos.Vulnerability{},
	}
	if bom == nil {
		return doc
	}

	// Build dependency map
	depMap := make(map[string][]string)
	if bom.Dependencies != nil {
		for _, dep := range *bom.Dependencies {
			if dep.Dependencies != nil {
				depMap[dep.Ref] = append(depMap[dep.Ref], *dep.Dependencies...)
			}
		}
	}

	flat := flattenComponents(bom.Components)

	// bom-refs and raw purls both resolve to the component id
	aliases := make(map[string]string, len(flat)*2)
	skipped := 0
	for _, comp := range flat {
		id := GetComponentID(comp)
		if id == "" {
			skipped++
			continue
		}
		aliases[id] = id
		if comp.BOMRef != "" {
			aliases[comp.BOMRef] = id
		}
		if comp.PackageURL != "" {
			aliases[comp.PackageURL] = id
		}
	}
	if skipped > 0 {
		slog.Debug("skipped components without identifier", "source", sourceName, "amount", skipped)
	}

	resolve := func(ref string) string {
		if id, ok := aliases[ref]; ok {
			return id
		}
		return ref
	}

	if bom.Metadata != nil {
		doc.Timestamp = bom.Metadata.Timestamp
		doc.Tools = toolNames(bom.Metadata.Tools)
		if bom.Metadata.Component != nil {
			if id := GetComponentID(*bom.Metadata.Component); id != "" {
				root := toComponent(*bom.Metadata.Component, id, depMap, resolve)
				doc.Metadata = &root
				// the declared root only becomes a graph node when it declares dependencies
				if _, listed := aliases[id]; !listed && len(root.Dependencies) > 0 {
					aliases[id] = id
					doc.Components = append(doc.Components, root.Clone())
				}
			}
		}
	}

	for _, comp := range flat {
		id := GetComponentID(comp)
		if id == "" {
			continue
		}
		doc.Components = append(doc.Components, toComponent(comp, id, depMap, resolve))
	}

	if bom.Vulnerabilities != nil {
		for _, vuln := range *bom.Vulnerabilities {
			doc.Vulnerabilities = append(doc.Vulnerabilities, toVulnerability(vuln, resolve))
		}
	}

	return doc
}

// flattenComponents walks nested components iteratively, parents first.
func flattenComponents(components *[]cdx.Component) []cdx.Component {
	if components == nil {
		return nil
	}
	result := make([]cdx.Component, 0, len(*components))
	stack := make([]cdx.Component, 0, len(*components))
	for i := len(*components) - 1; i >= 0; i-- {
		stack = append(stack, (*components)[i])
	}
	for len(stack) > 0 {
		comp := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		result = append(result, comp)
		if comp.Components != nil {
			for i := len(*comp.Components) - 1; i >= 0; i-- {
				stack = append(stack, (*comp.Components)[i])
			}
		}
	}
	return result
}

func toComponent(comp cdx.Component, id string, depMap map[string][]string, resolve func(string) string) dtos.Component {
	res := dtos.Component{
		Ref:        id,
		Name:       comp.Name,
		Version:    comp.Version,
		Group:      comp.Group,
		PackageURL: comp.PackageURL,
		Type:       dtos.ComponentType(comp.Type),
		Raw:        rawJSON(comp),
	}

	if comp.Licenses != nil {
		for _, lic := range *comp.Licenses {
			switch {
			case lic.License != nil && lic.License.ID != "":
				res.Licenses = append(res.Licenses, lic.License.ID)
			case lic.License != nil && lic.License.Name != "":
				res.Licenses = append(res.Licenses, lic.License.Name)
			case lic.Expression != "":
				res.Licenses = append(res.Licenses, lic.Expression)
			}
		}
	}

	if comp.Hashes != nil {
		for _, h := range *comp.Hashes {
			res.Hashes = append(res.Hashes, dtos.Hash{Algorithm: string(h.Algorithm), Value: h.Value})
		}
	}

	deps := depMap[comp.BOMRef]
	if comp.BOMRef == "" {
		deps = depMap[comp.PackageURL]
	}
	for _, dep := range deps {
		res.Dependencies = append(res.Dependencies, resolve(dep))
	}

	return res
}

func toVulnerability(vuln cdx.Vulnerability, resolve func(string) string) dtos.Vulnerability {
	res := dtos.Vulnerability{
		ID:          vuln.ID,
		Description: vuln.Description,
		Affects:     []string{},
		Raw:         rawJSON(vuln),
	}
	if vuln.Ratings != nil {
		for _, r := range *vuln.Ratings {
			res.Ratings = append(res.Ratings, dtos.Rating{
				Severity: string(r.Severity),
				Score:    r.Score,
				Method:   string(r.Method),
				Vector:   r.Vector,
			})
		}
	}
	if vuln.Affects != nil {
		for _, aff := range *vuln.Affects {
			if aff.Ref == "" {
				continue
			}
			res.Affects = append(res.Affects, resolve(aff.Ref))
		}
	}
	return res
}

func toolNames(tools *cdx.ToolsChoice) []string {
	if tools == nil {
		return nil
	}
	var names []string
	if tools.Tools != nil {
		for _, t := range *tools.Tools {
			names = append(names, strings.TrimSpace(t.Vendor+" "+t.Name+" "+t.Version))
		}
	}
	if tools.Components != nil {
		for _, c := range *tools.Components {
			names = append(names, strings.TrimSpace(c.Group+" "+c.Name+" "+c.Version))
		}
	}
	if tools.Services != nil {
		for _, s := range *tools.Services {
			names = append(names, strings.TrimSpace(s.Name+" "+s.Version))
		}
	}
	return names
}

func rawJSON(v any) map[string]any {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil
	}
	return raw
}

// EncodeCdxBom writes the bom as indented CycloneDX JSON.
func EncodeCdxBom(w io.Writer, bom *cdx.BOM) error {
	if err := cdx.NewBOMEncoder(w, cdx.BOMFileFormatJSON).SetPretty(true).Encode(bom); err != nil {
		return errors.Wrap(err, "could not encode bom")
	}
	return nil
}

// ToCdxBom exports a (canonical) document as CycloneDX.
func ToCdxBom(doc dtos.Document) *cdx.BOM {
	bom := cdx.NewBOM()
	bom.SpecVersion = cdx.SpecVersion1_6

	bom.Metadata = &cdx.Metadata{Timestamp: doc.Timestamp}
	if doc.Metadata != nil {
		root := fromComponent(*doc.Metadata)
		bom.Metadata.Component = &root
	}
	if len(doc.Tools) > 0 {
		tools := make([]cdx.Component, 0, len(doc.Tools))
		for _, name := range doc.Tools {
			tools = append(tools, cdx.Component{Type: cdx.ComponentTypeApplication, Name: name})
		}
		bom.Metadata.Tools = &cdx.ToolsChoice{Components: &tools}
	}

	components := make([]cdx.Component, 0, len(doc.Components))
	dependencies := make([]cdx.Dependency, 0, len(doc.Components))
	for _, c := range doc.Components {
		if doc.Metadata != nil && c.Ref == doc.Metadata.Ref {
			// the root lives in the metadata, only its edges are exported
			deps := append([]string{}, c.Dependencies...)
			dependencies = append(dependencies, cdx.Dependency{Ref: c.Ref, Dependencies: &deps})
			continue
		}
		components = append(components, fromComponent(c))
		deps := append([]string{}, c.Dependencies...)
		dependencies = append(dependencies, cdx.Dependency{Ref: c.Ref, Dependencies: &deps})
	}
	bom.Components = &components
	bom.Dependencies = &dependencies

	vulns := make([]cdx.Vulnerability, 0, len(doc.Vulnerabilities))
	for _, v := range doc.Vulnerabilities {
		vulns = append(vulns, fromVulnerability(v))
	}
	bom.Vulnerabilities = &vulns

	return bom
}

func fromComponent(c dtos.Component) cdx.Component {
	comp := cdx.Component{
		BOMRef:     c.Ref,
		Type:       cdx.ComponentType(c.Type),
		Name:       c.Name,
		Version:    c.Version,
		Group:      c.Group,
		PackageURL: c.PackageURL,
	}
	if comp.Type == "" {
		comp.Type = cdx.ComponentTypeLibrary
	}
	if len(c.Licenses) > 0 {
		licenses := make(cdx.Licenses, 0, len(c.Licenses))
		for _, l := range c.Licenses {
			licenses = append(licenses, cdx.LicenseChoice{License: &cdx.License{Name: l}})
		}
		comp.Licenses = &licenses
	}
	if len(c.Hashes) > 0 {
		hashes := make([]cdx.Hash, 0, len(c.Hashes))
		for _, h := range c.Hashes {
			hashes = append(hashes, cdx.Hash{Algorithm: cdx.HashAlgorithm(h.Algorithm), Value: h.Value})
		}
		comp.Hashes = &hashes
	}
	if props := provenanceProperties(c.Provenance); props != nil {
		comp.Properties = props
	}
	return comp
}

func fromVulnerability(v dtos.Vulnerability) cdx.Vulnerability {
	vuln := cdx.Vulnerability{
		ID:          v.ID,
		Description: v.Description,
	}
	if len(v.Ratings) > 0 {
		ratings := make([]cdx.VulnerabilityRating, 0, len(v.Ratings))
		for _, r := range v.Ratings {
			ratings = append(ratings, cdx.VulnerabilityRating{
				Score:    r.Score,
				Severity: cdx.Severity(strings.ToLower(r.Severity)),
				Method:   cdx.ScoringMethod(r.Method),
				Vector:   r.Vector,
			})
		}
		vuln.Ratings = &ratings
	}
	affects := make([]cdx.Affects, 0, len(v.Affects))
	for _, ref := range v.Affects {
		affects = append(affects, cdx.Affects{Ref: ref})
	}
	vuln.Affects = &affects
	if props := provenanceProperties(v.Provenance); props != nil {
		vuln.Properties = props
	}
	return vuln
}

func provenanceProperties(provenance []dtos.Provenance) *[]cdx.Property {
	if len(provenance) == 0 {
		return nil
	}
	props := make([]cdx.Property, 0, len(provenance))
	for _, p := range provenance {
		props = append(props, cdx.Property{Name: ProvenancePropertyName, Value: p.SourceName})
	}
	return &props
}
