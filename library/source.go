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
package library

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"
)

var (
	ErrConfiguration   = errors.New("invalid source configuration")
	ErrPayloadNotFound = errors.New("no payload stored for ticker")
)

var (
	TickerColumnCandidates  = []string{"stock", "symbol", "ticker"}
	PayloadColumnCandidates = []string{"json", "payload", "data", "info", "yf_info"}
)

// ConfigError describes a source setting that does not match the database
type ConfigError struct {
	Table   string
	Setting string
	Reason  string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s %s", ErrConfiguration, e.Setting, e.Reason)
}

func (e *ConfigError) Unwrap() error {
	return ErrConfiguration
}

// SourceConfig locates raw payloads in the staging table. Blank column names
// are filled by probing the candidate lists when the source is resolved.
type SourceConfig struct {
	Table         string `toml:"table"`
	TickerColumn  string `toml:"ticker_column"`
	PayloadColumn string `toml:"payload_column"`
	OrderColumn   string `toml:"order_column"`
}

func DefaultSourceConfig() SourceConfig {
	return SourceConfig{
		Table:         "raw_payloads",
		TickerColumn:  "symbol",
		PayloadColumn: "payload",
		OrderColumn:   "loaded_at",
	}
}

// Querier is satisfied by pgx connections, pools and transactions
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Source reads raw payloads from the staging table
type Source struct {
	Config SourceConfig
}

// NewSource checks cfg against the columns of the staging table and returns a
// Source with every column name resolved. An error wrapping ErrConfiguration
// is returned when the table or a required column cannot be found.
func NewSource(ctx context.Context, db Querier, cfg SourceConfig) (*Source, error) {
	if cfg.Table == "" {
		return nil, &ConfigError{Setting: "source.table", Reason: "is empty"}
	}

	var columns []string
	err := pgxscan.Select(ctx, db, &columns, `SELECT column_name FROM information_schema.columns
WHERE table_schema = current_schema() AND table_name = $1 ORDER BY ordinal_position`, cfg.Table)
	if err != nil {
		return nil, fmt.Errorf("inspect source table %s: %w", cfg.Table, err)
	}

	if len(columns) == 0 {
		return nil, &ConfigError{Table: cfg.Table, Setting: "source.table", Reason: fmt.Sprintf("%q does not exist", cfg.Table)}
	}

	resolved := cfg

	if resolved.TickerColumn, err = resolveColumn(columns, cfg.TickerColumn, TickerColumnCandidates, "source.ticker_column", cfg.Table); err != nil {
		return nil, err
	}

	if resolved.PayloadColumn, err = resolveColumn(columns, cfg.PayloadColumn, PayloadColumnCandidates, "source.payload_column", cfg.Table); err != nil {
		return nil, err
	}

	if cfg.OrderColumn != "" {
		resolved.OrderColumn = matchColumn(columns, cfg.OrderColumn)
		if resolved.OrderColumn == "" {
			log.Debug().Str("Table", cfg.Table).Str("OrderColumn", cfg.OrderColumn).Msg("order column not present; payload order is unspecified")
		}
	}

	log.Debug().Str("Table", resolved.Table).Str("TickerColumn", resolved.TickerColumn).
		Str("PayloadColumn", resolved.PayloadColumn).Msg("resolved payload source")

	return &Source{Config: resolved}, nil
}

func matchColumn(columns []string, name string) string {
	for _, col := range columns {
		if strings.EqualFold(col, name) {
			return col
		}
	}
	return ""
}

func resolveColumn(columns []string, configured string, candidates []string, setting, table string) (string, error) {
	if configured != "" {
		if col := matchColumn(columns, configured); col != "" {
			return col, nil
		}
		return "", &ConfigError{Table: table, Setting: setting, Reason: fmt.Sprintf("%q is not a column of %s", configured, table)}
	}

	for _, candidate := range candidates {
		if col := matchColumn(columns, candidate); col != "" {
			return col, nil
		}
	}

	return "", &ConfigError{Table: table, Setting: setting, Reason: fmt.Sprintf("is not set and none of %s exist in %s", strings.Join(candidates, ", "), table)}
}

func (source *Source) table() string {
	return pgx.Identifier{source.Config.Table}.Sanitize()
}

func (source *Source) tickerColumn() string {
	return pgx.Identifier{source.Config.TickerColumn}.Sanitize()
}

func (source *Source) payloadColumn() string {
	return pgx.Identifier{source.Config.PayloadColumn}.Sanitize()
}

// Tickers returns every ticker in the staging table, deduplicated and in
// ascending order
func (source *Source) Tickers(ctx context.Context, db Querier) ([]string, error) {
	var tickers []string
	sql := fmt.Sprintf("SELECT DISTINCT %[1]s FROM %[2]s WHERE %[1]s IS NOT NULL ORDER BY %[1]s ASC", source.tickerColumn(), source.table())

	if err := pgxscan.Select(ctx, db, &tickers, sql); err != nil {
		return nil, fmt.Errorf("list tickers in %s: %w", source.Config.Table, err)
	}

	return tickers, nil
}

// Load returns the raw payload stored for ticker. When the ticker was staged
// more than once the most recent payload is returned.
func (source *Source) Load(ctx context.Context, db Querier, ticker string) ([]byte, error) {
	sql := fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1", source.payloadColumn(), source.table(), source.tickerColumn())
	if source.Config.OrderColumn != "" {
		sql += fmt.Sprintf(" ORDER BY %s DESC", pgx.Identifier{source.Config.OrderColumn}.Sanitize())
	}
	sql += " LIMIT 1"

	var raw []byte
	if err := db.QueryRow(ctx, sql, ticker).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPayloadNotFound
		}
		return nil, fmt.Errorf("load payload for %s: %w", ticker, err)
	}

	return raw, nil
}

// Existing returns the set of tickers that already have a staged payload
func (source *Source) Existing(ctx context.Context, db Querier) (map[string]bool, error) {
	tickers, err := source.Tickers(ctx, db)
	if err != nil {
		return nil, err
	}

	existing := make(map[string]bool, len(tickers))
	for _, ticker := range tickers {
		existing[ticker] = true
	}

	return existing, nil
}

// Save stages a JSON document for ticker
func (source *Source) Save(ctx context.Context, db Querier, ticker string, doc []byte, loadedAt time.Time) error {
	var err error

	if source.Config.OrderColumn != "" {
		sql := fmt.Sprintf("INSERT INTO %s (%s, %s, %s) VALUES ($1, $2, $3)", source.table(), source.tickerColumn(),
			source.payloadColumn(), pgx.Identifier{source.Config.OrderColumn}.Sanitize())
		_, err = db.Exec(ctx, sql, ticker, string(doc), loadedAt)
	} else {
		sql := fmt.Sprintf("INSERT INTO %s (%s, %s) VALUES ($1, $2)", source.table(), source.tickerColumn(), source.payloadColumn())
		_, err = db.Exec(ctx, sql, ticker, string(doc))
	}

	if err != nil {
		return fmt.Errorf("stage payload for %s: %w", ticker, err)
	}

	return nil
}
