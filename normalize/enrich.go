// Copyright 2024
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package normalize

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/penny-vault/pvfinancials/data"
)

var (
	foundedRegex      = regexp.MustCompile(`(?i)\bfounded in (\d{4})\b`)
	formerNameRegex   = regexp.MustCompile(`(?i)\bformerly known as ([^.,;]+)`)
	headquartersRegex = regexp.MustCompile(`(?i)\bheadquartered in ([^.]+?)(?:\.|$)`)
)

// Enrichment holds the profile attributes that could be read out of a
// company's business summary
type Enrichment struct {
	FoundedYear *int32
	FormerName  *string
	City        *string
	State       *string
	Country     *string
}

// Enrich scans a cleaned business summary for a founding year, a former name
// and a headquarters location. Patterns that do not match leave the
// corresponding field nil.
func Enrich(summary string) Enrichment {
	var enrichment Enrichment

	if summary == "" {
		return enrichment
	}

	if match := foundedRegex.FindStringSubmatch(summary); match != nil {
		if year, err := strconv.ParseInt(match[1], 10, 32); err == nil {
			founded := int32(year)
			enrichment.FoundedYear = &founded
		}
	}

	if match := formerNameRegex.FindStringSubmatch(summary); match != nil {
		enrichment.FormerName = CleanText(match[1])
	}

	if match := headquartersRegex.FindStringSubmatch(summary); match != nil {
		parts := strings.Split(strings.TrimSpace(match[1]), ",")
		for idx := range parts {
			parts[idx] = strings.TrimSpace(parts[idx])
		}

		enrichment.City = CleanText(parts[0])
		if len(parts) > 1 {
			enrichment.State = CleanText(parts[1])
		}
		if len(parts) > 2 {
			enrichment.Country = CleanText(strings.Join(parts[2:], ", "))
		}
	}

	return enrichment
}

// MergeInto copies enriched attributes onto profile fields that are still
// nil. Values that came from structured data are never replaced.
func (enrichment Enrichment) MergeInto(profile *data.Profile) {
	if profile.FoundedYear == nil {
		profile.FoundedYear = enrichment.FoundedYear
	}
	if profile.FormerName == nil {
		profile.FormerName = enrichment.FormerName
	}
	if profile.City == nil {
		profile.City = enrichment.City
	}
	if profile.State == nil {
		profile.State = enrichment.State
	}
	if profile.Country == nil {
		profile.Country = enrichment.Country
	}
}
