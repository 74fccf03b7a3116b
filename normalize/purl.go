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
	"net/url"
	"strings"

	cdx "github.com/CycloneDX/cyclonedx-go"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/package-url/packageurl-go"
)

// function to make purl look more visually appealing
func BeautifyPURL(pURL string) (string, error) {
	p, err := packageurl.FromString(pURL)
	if err != nil {
		return pURL, err
	}
	//if the namespace is empty we don't want any leading slashes
	if p.Namespace == "" {
		return p.Name, nil
	} else {
		return p.Namespace + "/" + p.Name, nil
	}
}

// NormalizePurl returns the canonical string form of a package url.
// Invalid purls are only unescaped.
func NormalizePurl(purl string) string {
	parsedPurl, err := packageurl.FromString(purl)
	if err != nil {
		unescaped, err := url.PathUnescape(purl)
		if err != nil {
			return purl
		}
		return unescaped
	}

	unescaped, err := url.PathUnescape(parsedPurl.ToString())
	if err != nil {
		return parsedPurl.ToString()
	}
	return unescaped
}

// NameVersionKey is the fallback identity of a component without a purl.
func NameVersionKey(name, version string) string {
	if name == "" {
		return ""
	}
	return strings.ToLower(name) + "@" + version
}

// GetComponentID resolves the node key of a CycloneDX component:
// bom-ref, then normalized purl, then name@version.
func GetComponentID(component cdx.Component) string {
	if component.BOMRef != "" {
		return component.BOMRef
	} else if component.PackageURL != "" {
		return NormalizePurl(component.PackageURL)
	} else if component.Name != "" {
		return component.Name + "@" + component.Version
	}
	return ""
}

// PurlNormalizer memoizes NormalizePurl for the lifetime of one run.
// Scanner outputs repeat the same purls a lot and parsing is not free.
type PurlNormalizer struct {
	cache *lru.Cache[string, string]
}

func NewPurlNormalizer(size int) *PurlNormalizer {
	if size <= 0 {
		size = 1024
	}
	cache, err := lru.New[string, string](size)
	if err != nil {
		// only fails for a non positive size
		panic(err)
	}
	return &PurlNormalizer{cache: cache}
}

func (n *PurlNormalizer) Normalize(purl string) string {
	if purl == "" {
		return ""
	}
	if cached, ok := n.cache.Get(purl); ok {
		return cached
	}
	normalized := NormalizePurl(purl)
	n.cache.Add(purl, normalized)
	return normalized
}
