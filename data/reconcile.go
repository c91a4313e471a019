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
	"errors"
	"fmt"
	"strings"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"
)

// DB is the subset of pgx shared by *pgxpool.Pool, *pgxpool.Conn, *pgx.Conn
// and pgx.Tx. Calling Begin on a pgx.Tx creates a savepoint.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

type columnInfo struct {
	Name      string `db:"column_name"`
	DataType  string `db:"data_type"`
	MaxLength *int32 `db:"character_maximum_length"`
}

// EnsureTable creates the table for kind if it does not exist. When the
// table exists with a primary key column that is wider than the schema
// allows the oversized key repair is applied. Every other failure is
// returned unchanged.
func EnsureTable(ctx context.Context, db DB, kind Kind, tbl string) error {
	dt, err := DataTypeFor(kind)
	if err != nil {
		return err
	}

	err = createTable(ctx, db, dt, tbl)
	if errors.Is(err, ErrOversizedKey) {
		log.Warn().Err(err).Str("Table", tbl).Msg("table has an oversized key column; repairing primary key")
		return RepairOversizedKey(ctx, db, kind, tbl)
	}

	return err
}

func createTable(ctx context.Context, db DB, dt *DataType, tbl string) error {
	if err := execStep(ctx, db, dt.ExpandedSchema(tbl)); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ProgramLimitExceeded {
			return fmt.Errorf("%w: %s", ErrOversizedKey, pgErr.Message)
		}
		return err
	}

	return checkKeyColumns(ctx, db, dt, tbl)
}

// checkKeyColumns compares the declared width of each key column in the live
// table against the width in the schema
func checkKeyColumns(ctx context.Context, db DB, dt *DataType, tbl string) error {
	var columns []*columnInfo
	err := pgxscan.Select(ctx, db, &columns, `SELECT column_name, data_type, character_maximum_length
FROM information_schema.columns
WHERE table_schema = current_schema() AND table_name = $1`, tbl)
	if err != nil {
		return fmt.Errorf("inspect columns of %s: %w", tbl, err)
	}

	live := make(map[string]*columnInfo, len(columns))
	for _, col := range columns {
		live[col.Name] = col
	}

	for _, keyCol := range dt.KeyColumns {
		col, ok := live[keyCol.Name]
		if !ok {
			continue
		}

		if oversized(col, keyCol.MaxLength) {
			return fmt.Errorf("%w: %s.%s is %s", ErrOversizedKey, tbl, col.Name, describeColumn(col))
		}
	}

	return nil
}

func oversized(col *columnInfo, maxLength int) bool {
	switch col.DataType {
	case "text":
		return true
	case "character varying", "character":
		return col.MaxLength == nil || int(*col.MaxLength) > maxLength
	default:
		return false
	}
}

func describeColumn(col *columnInfo) string {
	if col.MaxLength == nil {
		return col.DataType
	}
	return fmt.Sprintf("%s(%d)", col.DataType, *col.MaxLength)
}

// RepairOversizedKey rebuilds the primary key of tbl after narrowing its key
// columns to the widths in the schema. Dropping the old key and narrowing
// columns are best-effort; failing to add the new key is returned.
func RepairOversizedKey(ctx context.Context, db DB, kind Kind, tbl string) error {
	dt, err := DataTypeFor(kind)
	if err != nil {
		return err
	}

	steps := []string{
		fmt.Sprintf("ALTER TABLE %[1]s DROP CONSTRAINT IF EXISTS %[1]s_pkey", tbl),
	}

	for _, keyCol := range dt.KeyColumns {
		steps = append(steps, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s TYPE VARCHAR(%d)", tbl, keyCol.Name, keyCol.MaxLength))
	}

	for _, sql := range steps {
		if err := execStep(ctx, db, sql); err != nil {
			log.Warn().Err(err).Str("SQL", sql).Msg("schema repair step failed; continuing")
		}
	}

	addKey := fmt.Sprintf("ALTER TABLE %[1]s ADD CONSTRAINT %[1]s_pkey PRIMARY KEY (%[2]s)", tbl, strings.Join(dt.PrimaryKey, ", "))
	if err := execStep(ctx, db, addKey); err != nil {
		log.Error().Err(err).Str("SQL", addKey).Msg("could not add primary key")
		return fmt.Errorf("add primary key to %s: %w", tbl, err)
	}

	log.Info().Str("Table", tbl).Strs("PrimaryKey", dt.PrimaryKey).Msg("primary key repaired")
	return nil
}

// execStep runs sql in its own (sub)transaction so a failure does not abort
// an enclosing transaction
func execStep(ctx context.Context, db DB, sql string) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			log.Error().Err(err).Msg("error rolling back schema step")
		}
	}()

	if _, err := tx.Exec(ctx, sql); err != nil {
		return err
	}

	return tx.Commit(ctx)
}
