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
	"testing"

	cdx "github.com/CycloneDX/cyclonedx-go"
	"github.com/stretchr/testify/assert"
)

func TestBeautifyPURL(t *testing.T) {
	t.Run("empty String should also return an empty string back", func(t *testing.T) {
		inputString := ""
		result, _ := BeautifyPURL(inputString)
		assert.Equal(t, "", result)
	})
	t.Run("invalid purl format should also be returned unchanged", func(t *testing.T) {
		inputString := "this is definitely not a valid purl"
		result, _ := BeautifyPURL(inputString)
		assert.Equal(t, inputString, result)
	})
	t.Run("should return only the namespace and the name of a valid purl and cut the rest", func(t *testing.T) {
		inputString := "pkg:npm/@ory/integrations@v0.0.1"
		result, _ := BeautifyPURL(inputString)
		assert.Equal(t, "@ory/integrations", result)
	})
	t.Run("should return no leading slash if the namespace is empty", func(t *testing.T) {
		inputString := "pkg:npm/integrations@v0.0.1"
		result, _ := BeautifyPURL(inputString)
		assert.Equal(t, "integrations", result)
	})
}

func TestNormalizePurl(t *testing.T) {
	t.Run("should unescape an encoded namespace", func(t *testing.T) {
		assert.Equal(t, "pkg:npm/@ory/integrations@0.0.1", NormalizePurl("pkg:npm/%40ory/integrations@0.0.1"))
	})
	t.Run("should sort qualifiers", func(t *testing.T) {
		a := NormalizePurl("pkg:deb/debian/git@2.47.3?epoch=1&arch=amd64")
		b := NormalizePurl("pkg:deb/debian/git@2.47.3?arch=amd64&epoch=1")
		assert.Equal(t, a, b)
	})
	t.Run("should leave invalid purls alone", func(t *testing.T) {
		assert.Equal(t, "not a purl", NormalizePurl("not a purl"))
	})
}

func TestGetComponentID(t *testing.T) {
	t.Run("should prefer the bom ref", func(t *testing.T) {
		assert.Equal(t, "ref-1", GetComponentID(cdx.Component{BOMRef: "ref-1", PackageURL: "pkg:npm/a@1.0.0"}))
	})
	t.Run("should fall back to the purl", func(t *testing.T) {
		assert.Equal(t, "pkg:npm/a@1.0.0", GetComponentID(cdx.Component{PackageURL: "pkg:npm/a@1.0.0"}))
	})
	t.Run("should fall back to name and version", func(t *testing.T) {
		assert.Equal(t, "openssl@3.0.1", GetComponentID(cdx.Component{Name: "openssl", Version: "3.0.1"}))
	})
	t.Run("should return an empty id if nothing identifies the component", func(t *testing.T) {
		assert.Equal(t, "", GetComponentID(cdx.Component{Version: "1.0.0"}))
	})
}

func TestPurlNormalizer(t *testing.T) {
	n := NewPurlNormalizer(2)
	assert.Equal(t, NormalizePurl("pkg:npm/%40ory/integrations@0.0.1"), n.Normalize("pkg:npm/%40ory/integrations@0.0.1"))
	// served from the cache the second time
	assert.Equal(t, "pkg:npm/@ory/integrations@0.0.1", n.Normalize("pkg:npm/%40ory/integrations@0.0.1"))
	assert.Equal(t, "", n.Normalize(""))
	assert.Equal(t, "lodash@4.17.21", NameVersionKey("Lodash", "4.17.21"))
	assert.Equal(t, "", NameVersionKey("", "1.0.0"))
}
