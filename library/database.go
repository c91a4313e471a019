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
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Tables names the normalized output tables of a library
type Tables struct {
	Financials string `toml:"financials"`
	Summary    string `toml:"summary"`
}

func DefaultTables() Tables {
	return Tables{
		Financials: "financials",
		Summary:    "summary",
	}
}

type Library struct {
	DBUrl string `toml:"url"`
	Name  string `toml:"-"`
	Owner string `toml:"-"`

	Pool *pgxpool.Pool `toml:"-"`
}

// Connect to the database configured for the library
func (myLibrary *Library) Connect(ctx context.Context) error {
	if myLibrary.Pool != nil {
		return nil
	}

	pool, err := pgxpool.New(ctx, myLibrary.DBUrl)
	if err != nil {
		return err
	}
	myLibrary.Pool = pool

	return nil
}

// Close the database pool
func (myLibrary *Library) Close() {
	if myLibrary.Pool != nil {
		myLibrary.Pool.Close()
	}
}

// NewFromDB connects to dbURL and loads the library name and owner. A
// database that was never initialized with a name is not an error.
func NewFromDB(ctx context.Context, dbURL string) (*Library, error) {
	myLibrary := &Library{
		DBUrl: dbURL,
	}

	if err := myLibrary.Connect(ctx); err != nil {
		return nil, err
	}

	err := myLibrary.Pool.QueryRow(ctx, "SELECT name, owner FROM library LIMIT 1").Scan(&myLibrary.Name, &myLibrary.Owner)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		myLibrary.Close()
		return nil, fmt.Errorf("read library details: %w", err)
	}

	return myLibrary, nil
}

// SaveDB replaces the library name and owner stored in the database
func (myLibrary *Library) SaveDB(ctx context.Context) error {
	tx, err := myLibrary.Pool.Begin(ctx)
	if err != nil {
		return err
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, `DELETE FROM library`); err != nil {
		return err
	}

	if _, err = tx.Exec(ctx, `INSERT INTO library ("name", "owner") VALUES ($1, $2)`, myLibrary.Name, myLibrary.Owner); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (myLibrary *Library) count(ctx context.Context, sql string) (int, error) {
	count := 0
	err := myLibrary.Pool.QueryRow(ctx, sql).Scan(&count)
	return count, err
}

// NumStagedPayloads returns the number of raw payloads in the staging table
func (myLibrary *Library) NumStagedPayloads(ctx context.Context, source SourceConfig) (int, error) {
	return myLibrary.count(ctx, fmt.Sprintf("SELECT count(*) FROM %s", pgx.Identifier{source.Table}.Sanitize()))
}

// NumStagedTickers returns the number of distinct companies in the staging table
func (myLibrary *Library) NumStagedTickers(ctx context.Context, source SourceConfig) (int, error) {
	return myLibrary.count(ctx, fmt.Sprintf("SELECT count(DISTINCT %s) FROM %s",
		pgx.Identifier{source.TickerColumn}.Sanitize(), pgx.Identifier{source.Table}.Sanitize()))
}

// NumLineItems returns the number of rows in the financials table
func (myLibrary *Library) NumLineItems(ctx context.Context, tables Tables) (int, error) {
	return myLibrary.count(ctx, fmt.Sprintf("SELECT count(*) FROM %s", tables.Financials))
}

// NumProfiles returns the number of rows in the summary table
func (myLibrary *Library) NumProfiles(ctx context.Context, tables Tables) (int, error) {
	return myLibrary.count(ctx, fmt.Sprintf("SELECT count(*) FROM %s", tables.Summary))
}

// LastUpdated returns the time a profile was most recently written
func (myLibrary *Library) LastUpdated(ctx context.Context, tables Tables) (time.Time, error) {
	var lastUpdated time.Time
	err := myLibrary.Pool.QueryRow(ctx, fmt.Sprintf("SELECT coalesce(max(updated_at), '0001-01-01'::timestamp) FROM %s", tables.Summary)).Scan(&lastUpdated)
	if err != nil {
		return time.Time{}, err
	}

	return lastUpdated, nil
}
