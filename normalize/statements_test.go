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
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/penny-vault/pvfinancials/data"
	"github.com/penny-vault/pvfinancials/normalize"
)

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

var _ = Describe("Statements", func() {
	var payload map[string]any

	BeforeEach(func() {
		payload = map[string]any{
			"info": map[string]any{
				"longName":          "Acme Corp",
				"shortName":         "Acme",
				"currency":          "USD",
				"financialcurrency": "EUR",
			},
			"cashflow": map[string]any{
				"yearly": map[string]any{
					"2023-12-31 00:00:00": map[string]any{
						"FreeCashFlow": 100.0,
						"CapEx":        math.NaN(),
					},
				},
			},
		}
	})

	It("emits one line item per metric with NaN values as null", func() {
		items := normalize.Statements("ACME", payload)
		Expect(items).To(HaveLen(2))

		capex, fcf := items[0], items[1]
		Expect(capex.Metric).To(Equal("CapEx"))
		Expect(capex.Value).To(BeNil())

		Expect(fcf.Ticker).To(Equal("ACME"))
		Expect(*fcf.Name).To(Equal("Acme Corp"))
		Expect(fcf.StatementType).To(Equal(data.CashFlow))
		Expect(fcf.Metric).To(Equal("FreeCashFlow"))
		Expect(*fcf.StockCurrency).To(Equal("USD"))
		Expect(*fcf.FinancialCurrency).To(Equal("EUR"))
		Expect(fcf.CalendarYear).To(Equal(int32(2023)))
		Expect(fcf.Period).To(Equal(int32(4)))
		Expect(*fcf.Value).To(Equal(100.0))
		Expect(fcf.StatementDate).To(Equal(date(2023, 12, 31)))
	})

	It("maps every section to its statement type", func() {
		payload["incomestatement"] = map[string]any{
			"quarterly": map[string]any{"2024-03-31": map[string]any{"TotalRevenue": 10.0}},
		}
		payload["balancesheet"] = map[string]any{
			"quarterly": map[string]any{"2024-06-30": map[string]any{"TotalAssets": 20.0}},
		}

		types := map[data.StatementType]int{}
		for _, item := range normalize.Statements("ACME", payload) {
			types[item.StatementType]++
		}

		Expect(types).To(Equal(map[data.StatementType]int{
			data.CashFlow:        2,
			data.IncomeStatement: 1,
			data.BalanceSheet:    1,
		}))
	})

	It("returns nothing when every statement section is missing", func() {
		Expect(normalize.Statements("ACME", map[string]any{"info": map[string]any{}})).To(BeEmpty())
		Expect(normalize.Statements("ACME", nil)).To(BeEmpty())
	})

	It("processes statements when info is missing", func() {
		delete(payload, "info")

		items := normalize.Statements("ACME", payload)
		Expect(items).To(HaveLen(2))
		Expect(items[0].Name).To(BeNil())
		Expect(items[0].StockCurrency).To(BeNil())
		Expect(items[0].FinancialCurrency).To(BeNil())
	})

	It("prefers financialCurrency over the lower case spelling", func() {
		payload["info"].(map[string]any)["financialCurrency"] = "JPY"

		items := normalize.Statements("ACME", payload)
		Expect(*items[0].FinancialCurrency).To(Equal("JPY"))
	})

	It("skips malformed dates, nested values and empty metric names", func() {
		payload["cashflow"] = map[string]any{
			"yearly": map[string]any{
				"not a date": map[string]any{"FreeCashFlow": 1.0},
				"":           map[string]any{"FreeCashFlow": 2.0},
				"2022-12-31": map[string]any{
					"":           3.0,
					"Nested":     map[string]any{"a": 1.0},
					"List":       []any{1.0, 2.0},
					"Missing":    nil,
					"AsText":     "12.5",
					"NotANumber": "n/a",
					"NetIncome":  4.0,
				},
				"2021-12-31": "not a mapping",
			},
		}

		items := normalize.Statements("ACME", payload)
		metrics := map[string]*float64{}
		for _, item := range items {
			metrics[item.Metric] = item.Value
		}

		Expect(metrics).To(HaveLen(4))
		Expect(metrics).To(HaveKey("Missing"))
		Expect(metrics["Missing"]).To(BeNil())
		Expect(*metrics["AsText"]).To(Equal(12.5))
		Expect(metrics["NotANumber"]).To(BeNil())
		Expect(*metrics["NetIncome"]).To(Equal(4.0))
	})

	It("never emits two items with the same natural key", func() {
		payload["cashflow"] = map[string]any{
			"yearly": map[string]any{
				"2023-12-31":          map[string]any{"FreeCashFlow": 1.0},
				"2023-12-31 00:00:00": map[string]any{"FreeCashFlow": 2.0},
			},
			"quarterly": map[string]any{
				"2023-12-31": map[string]any{"FreeCashFlow": 3.0},
				"2023-09-30": map[string]any{"FreeCashFlow": 4.0},
			},
		}

		items := normalize.Statements("ACME", payload)
		keys := map[string]bool{}
		for _, item := range items {
			Expect(keys).NotTo(HaveKey(item.Key()))
			keys[item.Key()] = true
		}

		Expect(items).To(HaveLen(2))

		byDate := map[time.Time]*data.LineItem{}
		for _, item := range items {
			byDate[item.StatementDate] = item
		}
		Expect(*byDate[date(2023, 12, 31)].Value).To(Equal(3.0))
		Expect(*byDate[date(2023, 9, 30)].Value).To(Equal(4.0))
	})

	It("is deterministic", func() {
		payload["balancesheet"] = map[string]any{
			"yearly": map[string]any{
				"2023-12-31": map[string]any{"A": 1.0, "B": 2.0, "C": 3.0},
				"2022-12-31": map[string]any{"A": 4.0, "B": 5.0, "C": 6.0},
			},
		}

		Expect(normalize.Statements("ACME", payload)).To(Equal(normalize.Statements("ACME", payload)))
	})
})

var _ = DescribeTable("Period",
	func(periodicity string, month time.Month, expected int32) {
		Expect(normalize.Period(periodicity, date(2023, month, 28))).To(Equal(expected))
	},
	Entry("annual is always 4", normalize.Yearly, time.June, int32(4)),
	Entry("annual in March is still 4", normalize.Yearly, time.March, int32(4)),
	Entry("quarterly January", normalize.Quarterly, time.January, int32(1)),
	Entry("quarterly March", normalize.Quarterly, time.March, int32(1)),
	Entry("quarterly April", normalize.Quarterly, time.April, int32(2)),
	Entry("quarterly September", normalize.Quarterly, time.September, int32(3)),
	Entry("quarterly December", normalize.Quarterly, time.December, int32(4)),
)

var _ = DescribeTable("ParseStatementDate",
	func(in string, expected time.Time, ok bool) {
		parsed, parsedOK := normalize.ParseStatementDate(in)
		Expect(parsedOK).To(Equal(ok))
		if ok {
			Expect(parsed).To(Equal(expected))
		}
	},
	Entry("plain date", "2023-12-31", date(2023, 12, 31), true),
	Entry("date with time", "2023-12-31 00:00:00", date(2023, 12, 31), true),
	Entry("RFC 3339", "2023-06-30T00:00:00Z", date(2023, 6, 30), true),
	Entry("compact date", "20230630 extra", date(2023, 6, 30), true),
	Entry("single digit month", "2023-6-30", date(2023, 6, 30), true),
	Entry("garbage", "yesterday", time.Time{}, false),
	Entry("blank", "   ", time.Time{}, false),
	Entry("impossible date", "2023-02-30", time.Time{}, false),
)
