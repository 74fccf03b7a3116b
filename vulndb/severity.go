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
	"log/slog"
	"strings"

	"github.com/l3montree-dev/sbomgraph/dtos"
	gocvss20 "github.com/pandatix/go-cvss/20"
	gocvss30 "github.com/pandatix/go-cvss/30"
	gocvss31 "github.com/pandatix/go-cvss/31"
	gocvss40 "github.com/pandatix/go-cvss/40"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.English)

// ParseSeverity normalizes a free form severity string. Unknown values
// are Informational.
func ParseSeverity(raw string) dtos.Severity {
	switch s := dtos.Severity(titleCaser.String(strings.TrimSpace(raw))); s {
	case dtos.SeverityCritical, dtos.SeverityHigh, dtos.SeverityMedium, dtos.SeverityLow, dtos.SeverityInformational:
		return s
	case "Moderate":
		return dtos.SeverityMedium
	default:
		// info, none, unknown and everything else
		return dtos.SeverityInformational
	}
}

// SeverityFromScore maps a cvss base score to the qualitative rating scale.
func SeverityFromScore(score float64) dtos.Severity {
	switch {
	case score <= 0:
		return dtos.SeverityInformational
	case score < 4:
		return dtos.SeverityLow
	case score < 7:
		return dtos.SeverityMedium
	case score < 9:
		return dtos.SeverityHigh
	default:
		return dtos.SeverityCritical
	}
}

// SeverityFromRatings classifies a vulnerability by its first rating only.
// A rating without a severity falls back to its vector, then to its score.
func SeverityFromRatings(ratings []dtos.Rating) dtos.Severity {
	if len(ratings) == 0 {
		return dtos.SeverityInformational
	}
	first := ratings[0]
	if strings.TrimSpace(first.Severity) != "" {
		return ParseSeverity(first.Severity)
	}
	if first.Vector != "" {
		if score, ok := BaseScore(first.Vector); ok {
			return SeverityFromScore(score)
		}
	}
	if first.Score != nil {
		return SeverityFromScore(*first.Score)
	}
	return dtos.SeverityInformational
}

// BaseScore parses a CVSS vector of any supported version and returns its base score.
func BaseScore(vector string) (float64, bool) {
	switch {
	case strings.HasPrefix(vector, "CVSS:4.0"):
		cvss, err := gocvss40.ParseVector(vector)
		if err != nil {
			slog.Debug("could not parse cvss vector", "vector", vector, "err", err)
			return 0, false
		}
		return cvss.Score(), true
	case strings.HasPrefix(vector, "CVSS:3.1"):
		cvss, err := gocvss31.ParseVector(vector)
		if err != nil {
			slog.Debug("could not parse cvss vector", "vector", vector, "err", err)
			return 0, false
		}
		return cvss.BaseScore(), true
	case strings.HasPrefix(vector, "CVSS:3.0"):
		cvss, err := gocvss30.ParseVector(vector)
		if err != nil {
			slog.Debug("could not parse cvss vector", "vector", vector, "err", err)
			return 0, false
		}
		return cvss.BaseScore(), true
	default:
		// Should be CVSS v2.0 or is invalid
		cvss, err := gocvss20.ParseVector(vector)
		if err != nil {
			slog.Debug("could not parse cvss vector", "vector", vector, "err", err)
			return 0, false
		}
		return cvss.BaseScore(), true
	}
}
