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
package data

import (
	"time"

	"github.com/rs/zerolog"
)

type StatementType string

const (
	CashFlow        StatementType = "CF"
	IncomeStatement StatementType = "IS"
	BalanceSheet    StatementType = "BS"
)

// AnnualPeriod is stored in the period column of full-year line items
const AnnualPeriod = 4

// LineItem is a single financial statement fact for a company on a statement
// date. The tuple (Ticker, StatementType, Metric, StatementDate) is the
// natural key of the financials table.
type LineItem struct {
	Ticker            string        `db:"ticker"`
	Name              *string       `db:"name"`
	StatementType     StatementType `db:"statement_type"`
	Metric            string        `db:"metric"`
	StockCurrency     *string       `db:"stock_currency"`
	FinancialCurrency *string       `db:"financial_currency"`
	CalendarYear      int32         `db:"calendar_year"`
	Period            int32         `db:"period"`
	Value             *float64      `db:"value"`
	StatementDate     time.Time     `db:"statement_date"`
}

// Key returns the natural key of the line item
func (item *LineItem) Key() string {
	return item.Ticker + "|" + string(item.StatementType) + "|" + item.Metric + "|" + item.StatementDate.Format(time.DateOnly)
}

func (item *LineItem) MarshalZerologObject(e *zerolog.Event) {
	e.Str("Ticker", item.Ticker)
	e.Str("StatementType", string(item.StatementType))
	e.Str("Metric", item.Metric)
	e.Str("StatementDate", item.StatementDate.Format(time.DateOnly))
	e.Int32("Period", item.Period)
}

// Profile is the descriptive record kept for each company
type Profile struct {
	Ticker      string    `db:"ticker"`
	Name        *string   `db:"name"`
	LongSummary *string   `db:"long_summary"`
	Sector      *string   `db:"sector"`
	Industry    *string   `db:"industry"`
	Website     *string   `db:"website"`
	Employees   *int32    `db:"employees"`
	City        *string   `db:"city"`
	State       *string   `db:"state"`
	Country     *string   `db:"country"`
	Currency    *string   `db:"currency"`
	FoundedYear *int32    `db:"founded_year"`
	FormerName  *string   `db:"former_name"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (profile *Profile) MarshalZerologObject(e *zerolog.Event) {
	e.Str("Ticker", profile.Ticker)
	if profile.Name != nil {
		e.Str("Name", *profile.Name)
	}
	e.Time("UpdatedAt", profile.UpdatedAt)
}
