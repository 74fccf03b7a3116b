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
	"strings"
	"testing"

	cdx "github.com/CycloneDX/cyclonedx-go"
	"github.com/l3montree-dev/sbomgraph/dtos"
	"github.com/l3montree-dev/sbomgraph/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func refs(components []dtos.Component) []string {
	res := make([]string, 0, len(components))
	for _, c := range components {
		res = append(res, c.Ref)
	}
	return res
}

func TestFromCdxBom(t *testing.T) {
	t.Run("should return an empty document for a nil bom", func(t *testing.T) {
		doc := FromCdxBom(nil, "trivy")
		assert.Equal(t, "trivy", doc.SourceName)
		assert.Empty(t, doc.Components)
		assert.Empty(t, doc.Vulnerabilities)
		assert.NotNil(t, doc.Components)
	})

	t.Run("should treat missing arrays as empty", func(t *testing.T) {
		doc := FromCdxBom(&cdx.BOM{}, "trivy")
		assert.Empty(t, doc.Components)
		assert.Empty(t, doc.Vulnerabilities)
		assert.Nil(t, doc.Metadata)
	})

	t.Run("should flatten nested components parents first", func(t *testing.T) {
		bom := &cdx.BOM{
			Components: &[]cdx.Component{
				{
					BOMRef: "pkg:npm/parent@1.0.0",
					Name:   "parent",
					Components: &[]cdx.Component{
						{BOMRef: "pkg:npm/child@1.0.0", Name: "child"},
					},
				},
				{BOMRef: "pkg:npm/sibling@1.0.0", Name: "sibling"},
			},
		}
		doc := FromCdxBom(bom, "trivy")
		assert.Equal(t, []string{"pkg:npm/parent@1.0.0", "pkg:npm/child@1.0.0", "pkg:npm/sibling@1.0.0"}, refs(doc.Components))
	})

	t.Run("should attach dependencies and resolve purl aliases", func(t *testing.T) {
		bom := &cdx.BOM{
			Components: &[]cdx.Component{
				{BOMRef: "a", Name: "a", PackageURL: "pkg:npm/a@1.0.0"},
				{BOMRef: "b", Name: "b", PackageURL: "pkg:npm/b@1.0.0"},
			},
			Dependencies: &[]cdx.Dependency{
				{Ref: "a", Dependencies: &[]string{"pkg:npm/b@1.0.0"}},
				{Ref: "b"},
			},
		}
		doc := FromCdxBom(bom, "trivy")
		require.Len(t, doc.Components, 2)
		assert.Equal(t, []string{"b"}, doc.Components[0].Dependencies)
		assert.Empty(t, doc.Components[1].Dependencies)
	})

	t.Run("should skip components without any identifier", func(t *testing.T) {
		bom := &cdx.BOM{
			Components: &[]cdx.Component{
				{Version: "1.0.0"},
				{Name: "openssl", Version: "3.0.1"},
			},
		}
		doc := FromCdxBom(bom, "trivy")
		assert.Equal(t, []string{"openssl@3.0.1"}, refs(doc.Components))
	})

	t.Run("should map licenses and hashes", func(t *testing.T) {
		bom := &cdx.BOM{
			Components: &[]cdx.Component{
				{
					BOMRef: "a",
					Name:   "a",
					Licenses: &cdx.Licenses{
						{License: &cdx.License{ID: "MIT"}},
						{License: &cdx.License{Name: "Custom"}},
						{Expression: "Apache-2.0 OR MIT"},
					},
					Hashes: &[]cdx.Hash{{Algorithm: cdx.HashAlgoSHA256, Value: "abc"}},
				},
			},
		}
		doc := FromCdxBom(bom, "trivy")
		require.Len(t, doc.Components, 1)
		assert.Equal(t, []string{"MIT", "Custom", "Apache-2.0 OR MIT"}, doc.Components[0].Licenses)
		assert.Equal(t, []dtos.Hash{{Algorithm: "SHA-256", Value: "abc"}}, doc.Components[0].Hashes)
		assert.Equal(t, "a", doc.Components[0].Raw["bom-ref"])
	})

	t.Run("should add the metadata component as node only if it declares dependencies", func(t *testing.T) {
		bom := &cdx.BOM{
			Metadata: &cdx.Metadata{
				Timestamp: "2025-01-01T00:00:00Z",
				Component: &cdx.Component{BOMRef: "root", Name: "app", Type: cdx.ComponentTypeApplication},
				Tools: &cdx.ToolsChoice{
					Components: &[]cdx.Component{{Name: "trivy", Version: "0.58.0"}},
				},
			},
			Components:   &[]cdx.Component{{BOMRef: "a", Name: "a"}},
			Dependencies: &[]cdx.Dependency{{Ref: "root", Dependencies: &[]string{"a"}}},
		}
		doc := FromCdxBom(bom, "trivy")
		require.NotNil(t, doc.Metadata)
		assert.Equal(t, "root", doc.Metadata.Ref)
		assert.Equal(t, []string{"root", "a"}, refs(doc.Components))
		assert.Equal(t, "2025-01-01T00:00:00Z", doc.Timestamp)
		assert.Equal(t, []string{"trivy 0.58.0"}, doc.Tools)

		bom.Dependencies = nil
		doc = FromCdxBom(bom, "trivy")
		require.NotNil(t, doc.Metadata)
		assert.Equal(t, []string{"a"}, refs(doc.Components))
	})

	t.Run("should map vulnerabilities and drop empty affects", func(t *testing.T) {
		score := 9.8
		bom := &cdx.BOM{
			Components: &[]cdx.Component{{BOMRef: "a", Name: "a", PackageURL: "pkg:npm/a@1.0.0"}},
			Vulnerabilities: &[]cdx.Vulnerability{
				{
					ID:      "CVE-2024-0001",
					Ratings: &[]cdx.VulnerabilityRating{{Severity: cdx.SeverityCritical, Score: &score, Method: cdx.ScoringMethodCVSSv31}},
					Affects: &[]cdx.Affects{{Ref: "pkg:npm/a@1.0.0"}, {Ref: ""}},
				},
				{ID: "CVE-2024-0002"},
			},
		}
		doc := FromCdxBom(bom, "trivy")
		require.Len(t, doc.Vulnerabilities, 2)
		assert.Equal(t, []string{"a"}, doc.Vulnerabilities[0].Affects)
		require.Len(t, doc.Vulnerabilities[0].Ratings, 1)
		assert.Equal(t, "critical", doc.Vulnerabilities[0].Ratings[0].Severity)
		assert.Equal(t, 9.8, *doc.Vulnerabilities[0].Ratings[0].Score)
		assert.Empty(t, doc.Vulnerabilities[1].Affects)
	})
}

func TestDecodeDocument(t *testing.T) {
	t.Run("should decode a cyclonedx json document", func(t *testing.T) {
		input := `{
			"bomFormat": "CycloneDX",
			"specVersion": "1.6",
			"components": [
				{"bom-ref": "pkg:npm/a@1.0.0", "type": "library", "name": "a", "version": "1.0.0", "purl": "pkg:npm/a@1.0.0"}
			],
			"vulnerabilities": [
				{"id": "CVE-2024-0001", "affects": [{"ref": "pkg:npm/a@1.0.0"}]}
			]
		}`
		doc, err := DecodeDocument(strings.NewReader(input), "grype")
		require.NoError(t, err)
		assert.Equal(t, "grype", doc.SourceName)
		assert.Equal(t, []string{"pkg:npm/a@1.0.0"}, refs(doc.Components))
		assert.Equal(t, dtos.ComponentTypeLibrary, doc.Components[0].Type)
		assert.Equal(t, []string{"pkg:npm/a@1.0.0"}, doc.Vulnerabilities[0].Affects)
	})

	t.Run("should return an error for invalid json", func(t *testing.T) {
		_, err := DecodeDocument(strings.NewReader("{not json"), "grype")
		assert.Error(t, err)
	})
}

func TestToCdxBom(t *testing.T) {
	doc := dtos.Document{
		Metadata:  &dtos.Component{Ref: "root", Name: "app", Type: dtos.ComponentTypeApplication},
		Timestamp: "2025-01-01T00:00:00Z",
		Tools:     []string{"trivy 0.58.0"},
		Components: []dtos.Component{
			{Ref: "root", Name: "app", Dependencies: []string{"a"}},
			{
				Ref: "a", Name: "a", Version: "1.0.0", PackageURL: "pkg:npm/a@1.0.0",
				Licenses:   []string{"MIT"},
				Provenance: []dtos.Provenance{{SourceName: "trivy"}, {SourceName: "grype"}},
			},
		},
		Vulnerabilities: []dtos.Vulnerability{
			{ID: "CVE-2024-0001", Affects: []string{"a"}, Ratings: []dtos.Rating{{Severity: "High", Score: utils.Ptr(7.5)}}},
		},
	}

	bom := ToCdxBom(doc)
	require.NotNil(t, bom.Metadata.Component)
	assert.Equal(t, "root", bom.Metadata.Component.BOMRef)
	require.Len(t, *bom.Components, 1)
	assert.Equal(t, "a", (*bom.Components)[0].BOMRef)
	assert.Len(t, *(*bom.Components)[0].Properties, 2)
	assert.Equal(t, cdx.SeverityHigh, (*(*bom.Vulnerabilities)[0].Ratings)[0].Severity)

	t.Run("should survive a round trip", func(t *testing.T) {
		back := FromCdxBom(bom, "merged")
		assert.Equal(t, []string{"root", "a"}, refs(back.Components))
		assert.Equal(t, []string{"a"}, back.Components[0].Dependencies)
		assert.Equal(t, []string{"MIT"}, back.Components[1].Licenses)
		assert.Equal(t, []string{"a"}, back.Vulnerabilities[0].Affects)
		assert.Equal(t, []string{"trivy 0.58.0"}, back.Tools)
	})
}

func TestCanonicalJSON(t *testing.T) {
	t.Run("should sort keys", func(t *testing.T) {
		raw, err := CanonicalJSON(map[string]any{"b": "2", "a": "1"})
		require.NoError(t, err)
		assert.Equal(t, `{"a":"1","b":"2"}`, string(raw))
	})
	t.Run("should still encode fractional scores", func(t *testing.T) {
		raw, err := CanonicalJSON(map[string]any{"score": 9.8, "id": "CVE-2024-0001"})
		require.NoError(t, err)
		assert.Equal(t, `{"id":"CVE-2024-0001","score":9.8}`, string(raw))
	})
}
