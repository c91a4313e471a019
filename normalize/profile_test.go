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
package normalize_test

import (
	"math"
	"strings"
	"time"

	"github.com/goccy/go-json"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/penny-vault/pvfinancials/data"
	"github.com/penny-vault/pvfinancials/normalize"
)

func strPtr(s string) *string {
	return &s
}

var _ = Describe("Profile", func() {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	It("reads structured attributes from the info section", func() {
		payload := map[string]any{
			"info": map[string]any{
				"symbol":              "ACME",
				"shortName":           "Acme",
				"longName":            "  Acme   Corporation ",
				"sectorDisp":          "Industrials",
				"industry":            "Machinery",
				"irWebsite":           "https://ir.acme.example",
				"fullTimeEmployees":   12000.0,
				"city":                "Springfield",
				"province":            "Ontario",
				"country":             "Canada",
				"financialCurrency":   "CAD",
				"longBusinessSummary": "Acme makes anvils.\n\nIt ships worldwide.",
			},
		}

		profile, err := normalize.Profile("", payload, now)
		Expect(err).NotTo(HaveOccurred())

		Expect(profile.Ticker).To(Equal("ACME"))
		Expect(profile.Name).To(Equal(strPtr("Acme Corporation")))
		Expect(profile.Sector).To(Equal(strPtr("Industrials")))
		Expect(profile.Industry).To(Equal(strPtr("Machinery")))
		Expect(profile.Website).To(Equal(strPtr("https://ir.acme.example")))
		Expect(*profile.Employees).To(Equal(int32(12000)))
		Expect(profile.City).To(Equal(strPtr("Springfield")))
		Expect(profile.State).To(Equal(strPtr("Ontario")))
		Expect(profile.Country).To(Equal(strPtr("Canada")))
		Expect(profile.Currency).To(Equal(strPtr("CAD")))
		Expect(profile.LongSummary).To(Equal(strPtr("Acme makes anvils. It ships worldwide.")))
		Expect(profile.FoundedYear).To(BeNil())
		Expect(profile.UpdatedAt).To(Equal(now))
	})

	It("prefers the ticker hint over the payload symbol", func() {
		profile, err := normalize.Profile(" XYZ ", map[string]any{"symbol": "ACME"}, now)
		Expect(err).NotTo(HaveOccurred())
		Expect(profile.Ticker).To(Equal("XYZ"))
	})

	It("accepts the info mapping without a wrapper", func() {
		profile, err := normalize.Profile("", map[string]any{"ticker": "ACME", "name": "Acme"}, now)
		Expect(err).NotTo(HaveOccurred())
		Expect(profile.Ticker).To(Equal("ACME"))
		Expect(profile.Name).To(Equal(strPtr("Acme")))
	})

	It("fails with ErrMissingIdentifier when no ticker can be found", func() {
		_, err := normalize.Profile("", map[string]any{"info": map[string]any{"longName": "Nobody"}}, now)
		Expect(err).To(MatchError(normalize.ErrMissingIdentifier))

		_, err = normalize.Profile("  ", nil, now)
		Expect(err).To(MatchError(normalize.ErrMissingIdentifier))
	})

	It("falls back to the top level and nested summaries", func() {
		profile, err := normalize.Profile("ACME", map[string]any{"summary": "Top level."}, now)
		Expect(err).NotTo(HaveOccurred())
		Expect(profile.LongSummary).To(Equal(strPtr("Top level.")))

		profile, err = normalize.Profile("ACME", map[string]any{
			"info":    map[string]any{"symbol": "ACME"},
			"profile": map[string]any{"longBusinessSummary": "Nested."},
		}, now)
		Expect(err).NotTo(HaveOccurred())
		Expect(profile.LongSummary).To(Equal(strPtr("Nested.")))
	})

	It("enriches missing location fields from the business summary", func() {
		payload := map[string]any{
			"info": map[string]any{
				"longBusinessSummary": "Acme, formerly known as Road Runner Supplies, Inc., was founded in 1949 and is headquartered in Austin, Texas.",
			},
		}

		profile, err := normalize.Profile("ACME", payload, now)
		Expect(err).NotTo(HaveOccurred())
		Expect(profile.City).To(Equal(strPtr("Austin")))
		Expect(profile.State).To(Equal(strPtr("Texas")))
		Expect(profile.Country).To(BeNil())
		Expect(*profile.FoundedYear).To(Equal(int32(1949)))
		Expect(profile.FormerName).To(Equal(strPtr("Road Runner Supplies")))
	})

	It("never overwrites a structured city", func() {
		payload := map[string]any{
			"info": map[string]any{
				"city":                "Round Rock",
				"longBusinessSummary": "The company is headquartered in Austin, Texas.",
			},
		}

		profile, err := normalize.Profile("ACME", payload, now)
		Expect(err).NotTo(HaveOccurred())
		Expect(profile.City).To(Equal(strPtr("Round Rock")))
		Expect(profile.State).To(Equal(strPtr("Texas")))
	})

	It("is deterministic for a fixed clock", func() {
		payload := map[string]any{"info": map[string]any{"symbol": "ACME", "longBusinessSummary": "Founded in 1901."}}

		first, err := normalize.Profile("", payload, now)
		Expect(err).NotTo(HaveOccurred())
		second, err := normalize.Profile("", payload, now)
		Expect(err).NotTo(HaveOccurred())
		Expect(first).To(Equal(second))
	})
})

var _ = Describe("Enrich", func() {
	It("splits the headquarters into city, state and country", func() {
		enrichment := normalize.Enrich("Headquartered in Cupertino, California, United States, North America")
		Expect(enrichment.City).To(Equal(strPtr("Cupertino")))
		Expect(enrichment.State).To(Equal(strPtr("California")))
		Expect(enrichment.Country).To(Equal(strPtr("United States, North America")))
	})

	It("uses a single location as the city", func() {
		enrichment := normalize.Enrich("The firm is headquartered in Singapore.")
		Expect(enrichment.City).To(Equal(strPtr("Singapore")))
		Expect(enrichment.State).To(BeNil())
	})

	It("returns an empty fragment when nothing matches", func() {
		Expect(normalize.Enrich("Acme sells anvils.")).To(Equal(normalize.Enrichment{}))
		Expect(normalize.Enrich("")).To(Equal(normalize.Enrichment{}))
	})

	It("ignores years that are not four digits", func() {
		Expect(normalize.Enrich("It was founded in 19999.").FoundedYear).To(BeNil())
	})

	It("merges only into empty fields", func() {
		profile := &data.Profile{City: strPtr("Dallas")}
		normalize.Enrich("Headquartered in Austin, Texas.").MergeInto(profile)
		Expect(profile.City).To(Equal(strPtr("Dallas")))
		Expect(profile.State).To(Equal(strPtr("Texas")))
	})
})

var _ = DescribeTable("EmployeeCount",
	func(in any, expected *int32) {
		Expect(normalize.EmployeeCount(in)).To(Equal(expected))
	},
	Entry("formatted string", "12,000 employees", int32Ptr(12000)),
	Entry("string without digits", "unknown", nil),
	Entry("float", 154000.0, int32Ptr(154000)),
	Entry("fractional float", 10.9, int32Ptr(10)),
	Entry("NaN", math.NaN(), nil),
	Entry("infinity", math.Inf(1), nil),
	Entry("json.Number", json.Number("42"), int32Ptr(42)),
	Entry("boolean", true, nil),
	Entry("nil", nil, nil),
	Entry("overflow", "99999999999", nil),
)

func int32Ptr(v int32) *int32 {
	return &v
}

var _ = Describe("CleanText", func() {
	It("collapses whitespace and trims", func() {
		Expect(normalize.CleanText("  a \t b\n\nc  ")).To(Equal(strPtr("a b c")))
	})

	It("maps blank text to nil", func() {
		Expect(normalize.CleanText(" \n\t ")).To(BeNil())
	})

	It("truncates to the maximum length", func() {
		long := strings.Repeat("é", normalize.MaxTextLength+10)
		cleaned := normalize.CleanText(long)
		Expect([]rune(*cleaned)).To(HaveLen(normalize.MaxTextLength))
	})
})
