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
	"strings"
	"time"

	"github.com/penny-vault/pvfinancials/data"
	"github.com/rs/zerolog/log"
)

const (
	Yearly    = "yearly"
	Quarterly = "quarterly"
)

var statementSections = []struct {
	Key  string
	Type data.StatementType
}{
	{Key: "cashflow", Type: data.CashFlow},
	{Key: "incomestatement", Type: data.IncomeStatement},
	{Key: "balancesheet", Type: data.BalanceSheet},
}

var periodicities = []string{Yearly, Quarterly}

// layouts tried on the first whitespace separated token of a statement date
// when it does not start with YYYY-MM-DD
var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"20060102",
	"2006-1-2",
}

// Statements flattens the cash flow, income statement and balance sheet
// sections of payload into line items. Sections, date groups and metrics that
// are missing or malformed contribute nothing. Output order is deterministic
// and no two items share a natural key; when a key repeats the item processed
// last (quarterly after yearly) is kept.
func Statements(ticker string, payload map[string]any) []*data.LineItem {
	info := child(payload, "info")
	name := firstString(info, "longName", "shortName", "displayName")
	stockCurrency := firstString(info, "currency")
	financialCurrency := firstString(info, "financialCurrency", "financialcurrency")

	items := make([]*data.LineItem, 0)
	seen := make(map[string]int)

	for _, section := range statementSections {
		statement := child(payload, section.Key)
		if statement == nil {
			continue
		}

		for _, periodicity := range periodicities {
			groups := child(statement, periodicity)

			for _, dateKey := range sortedKeys(groups) {
				statementDate, ok := ParseStatementDate(dateKey)
				if !ok {
					log.Debug().Str("Ticker", ticker).Str("StatementType", string(section.Type)).
						Str("DateKey", dateKey).Msg("skipping date group with unparseable date")
					continue
				}

				metrics, ok := groups[dateKey].(map[string]any)
				if !ok {
					continue
				}

				period := Period(periodicity, statementDate)

				for _, metric := range sortedKeys(metrics) {
					if metric == "" {
						continue
					}

					raw := metrics[metric]
					switch raw.(type) {
					case map[string]any, []any:
						continue
					}

					item := &data.LineItem{
						Ticker:            ticker,
						Name:              name,
						StatementType:     section.Type,
						Metric:            metric,
						StockCurrency:     stockCurrency,
						FinancialCurrency: financialCurrency,
						CalendarYear:      int32(statementDate.Year()),
						Period:            period,
						Value:             numericValue(raw),
						StatementDate:     statementDate,
					}

					key := item.Key()
					if idx, dup := seen[key]; dup {
						items[idx] = item
						continue
					}

					seen[key] = len(items)
					items = append(items, item)
				}
			}
		}
	}

	return items
}

// Period returns the value of the period column for a statement. Annual
// statements use data.AnnualPeriod; other periodicities use the quarter of the
// statement month.
func Period(periodicity string, statementDate time.Time) int32 {
	if periodicity == Yearly {
		return data.AnnualPeriod
	}

	return int32(1 + (int(statementDate.Month())-1)/3)
}

// ParseStatementDate extracts the calendar date from a statement date key
// such as "2023-12-31 00:00:00". The first ten characters are tried as
// YYYY-MM-DD, then the token before the first space is tried as an ISO-8601
// date or timestamp.
func ParseStatementDate(s string) (time.Time, bool) {
	head := s
	if len(head) > 10 {
		head = head[:10]
	}

	if dt, err := time.Parse(time.DateOnly, head); err == nil {
		return dt, true
	}

	fields := strings.Fields(s)
	if len(fields) == 0 {
		return time.Time{}, false
	}

	for _, layout := range isoLayouts {
		if dt, err := time.Parse(layout, fields[0]); err == nil {
			return time.Date(dt.Year(), dt.Month(), dt.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}

	return time.Time{}, false
}
