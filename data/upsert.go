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

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

// Batcher sends a queued batch of statements in a single round trip
type Batcher interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// UpsertLineItems writes items to tbl. Rows that already exist are updated
// in place with every non-key column taken from the new item. The number of
// rows written is returned.
func UpsertLineItems(ctx context.Context, db Batcher, tbl string, items []*LineItem) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}

	sql := fmt.Sprintf(`INSERT INTO %[1]s (
		"ticker",
		"name",
		"statement_type",
		"metric",
		"stock_currency",
		"financial_currency",
		"calendar_year",
		"period",
		"value",
		"statement_date"
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
	) ON CONFLICT ON CONSTRAINT %[1]s_pkey DO UPDATE SET
		name = EXCLUDED.name,
		stock_currency = EXCLUDED.stock_currency,
		financial_currency = EXCLUDED.financial_currency,
		calendar_year = EXCLUDED.calendar_year,
		period = EXCLUDED.period,
		value = EXCLUDED.value`, tbl)

	batch := &pgx.Batch{}
	for _, item := range items {
		batch.Queue(sql,
			item.Ticker,
			item.Name,
			string(item.StatementType),
			item.Metric,
			item.StockCurrency,
			item.FinancialCurrency,
			item.CalendarYear,
			item.Period,
			item.Value,
			item.StatementDate,
		)
	}

	return sendBatch(ctx, db, batch, tbl, items[0].Ticker, func(idx int) {
		log.Error().Str("SQL", sql).Object("LineItem", items[idx]).Msg("save line item to DB failed")
	})
}

// UpsertProfiles writes profiles to tbl, replacing every non-key column of
// an existing row
func UpsertProfiles(ctx context.Context, db Batcher, tbl string, profiles []*Profile) (int, error) {
	if len(profiles) == 0 {
		return 0, nil
	}

	sql := fmt.Sprintf(`INSERT INTO %[1]s (
		"ticker",
		"name",
		"long_summary",
		"sector",
		"industry",
		"website",
		"employees",
		"city",
		"state",
		"country",
		"currency",
		"founded_year",
		"former_name",
		"updated_at"
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14
	) ON CONFLICT ON CONSTRAINT %[1]s_pkey DO UPDATE SET
		name = EXCLUDED.name,
		long_summary = EXCLUDED.long_summary,
		sector = EXCLUDED.sector,
		industry = EXCLUDED.industry,
		website = EXCLUDED.website,
		employees = EXCLUDED.employees,
		city = EXCLUDED.city,
		state = EXCLUDED.state,
		country = EXCLUDED.country,
		currency = EXCLUDED.currency,
		founded_year = EXCLUDED.founded_year,
		former_name = EXCLUDED.former_name,
		updated_at = EXCLUDED.updated_at`, tbl)

	batch := &pgx.Batch{}
	for _, profile := range profiles {
		batch.Queue(sql,
			profile.Ticker,
			profile.Name,
			profile.LongSummary,
			profile.Sector,
			profile.Industry,
			profile.Website,
			profile.Employees,
			profile.City,
			profile.State,
			profile.Country,
			profile.Currency,
			profile.FoundedYear,
			profile.FormerName,
			profile.UpdatedAt,
		)
	}

	return sendBatch(ctx, db, batch, tbl, profiles[0].Ticker, func(idx int) {
		log.Error().Str("SQL", sql).Object("Profile", profiles[idx]).Msg("save profile to DB failed")
	})
}

func sendBatch(ctx context.Context, db Batcher, batch *pgx.Batch, tbl, ticker string, logFailure func(idx int)) (int, error) {
	results := db.SendBatch(ctx, batch)

	for idx := 0; idx < batch.Len(); idx++ {
		if _, err := results.Exec(); err != nil {
			logFailure(idx)
			if closeErr := results.Close(); closeErr != nil {
				log.Debug().Err(closeErr).Msg("close batch results after failure")
			}
			return 0, newWriteError(tbl, ticker, err)
		}
	}

	if err := results.Close(); err != nil {
		return 0, newWriteError(tbl, ticker, err)
	}

	return batch.Len(), nil
}
