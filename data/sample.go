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
	"context"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"
)

const lineItemColumns = `ticker, name, statement_type, metric, stock_currency, financial_currency,
calendar_year, period, value, statement_date`

// SampleLineItems returns the most recent line items stored for ticker
func SampleLineItems(ctx context.Context, db pgxscan.Querier, tbl, ticker string, limit int) ([]*LineItem, error) {
	var items []*LineItem
	sql := fmt.Sprintf(`SELECT %s FROM %s WHERE ticker = $1
ORDER BY statement_date DESC, statement_type, metric LIMIT $2`, lineItemColumns, tbl)

	if err := pgxscan.Select(ctx, db, &items, sql, ticker, limit); err != nil {
		return nil, fmt.Errorf("select sample line items: %w", err)
	}

	return items, nil
}

// SampleProfile returns the stored profile of ticker with the long summary
// shortened to 200 characters. Nil is returned when no profile exists.
func SampleProfile(ctx context.Context, db pgxscan.Querier, tbl, ticker string) (*Profile, error) {
	var profiles []*Profile
	sql := fmt.Sprintf(`SELECT ticker, name, LEFT(long_summary, 200) AS long_summary, sector, industry,
website, employees, city, state, country, currency, founded_year, former_name, updated_at
FROM %s WHERE ticker = $1`, tbl)

	if err := pgxscan.Select(ctx, db, &profiles, sql, ticker); err != nil {
		return nil, fmt.Errorf("select sample profile: %w", err)
	}

	if len(profiles) == 0 {
		return nil, nil
	}

	return profiles[0], nil
}

// LineItems returns every line item for ticker, or for all tickers when
// ticker is empty, in key order
func LineItems(ctx context.Context, db pgxscan.Querier, tbl, ticker string) ([]*LineItem, error) {
	var items []*LineItem
	var err error

	if ticker == "" {
		sql := fmt.Sprintf(`SELECT %s FROM %s ORDER BY ticker, statement_type, metric, statement_date`, lineItemColumns, tbl)
		err = pgxscan.Select(ctx, db, &items, sql)
	} else {
		sql := fmt.Sprintf(`SELECT %s FROM %s WHERE ticker = $1 ORDER BY statement_type, metric, statement_date`, lineItemColumns, tbl)
		err = pgxscan.Select(ctx, db, &items, sql, ticker)
	}

	if err != nil {
		return nil, fmt.Errorf("select line items: %w", err)
	}

	return items, nil
}
