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

// Package pgtest starts a throwaway PostgreSQL server for integration specs
package pgtest

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/penny-vault/pvfinancials/db"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Database is a migrated PostgreSQL container and a pool connected to it
type Database struct {
	Pool *pgxpool.Pool
	URL  string

	container testcontainers.Container
}

// Start runs a postgres:15-alpine container and applies the staging
// migrations. An error usually means Docker is not available.
func Start(ctx context.Context) (*Database, error) {
	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:15-alpine",
		tcpostgres.WithDatabase("testdb"),
		tcpostgres.WithUsername("testuser"),
		tcpostgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("start postgres container: %w", err)
	}

	database := &Database{container: pgContainer}

	database.URL, err = pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = database.Stop(ctx)
		return nil, fmt.Errorf("get connection string: %w", err)
	}

	if err := db.Migrate(database.URL); err != nil {
		_ = database.Stop(ctx)
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	database.Pool, err = pgxpool.New(ctx, database.URL)
	if err != nil {
		_ = database.Stop(ctx)
		return nil, fmt.Errorf("connect to test database: %w", err)
	}

	return database, nil
}

// Drop removes tables so each test starts from an empty schema
func (database *Database) Drop(ctx context.Context, tables ...string) error {
	for _, tbl := range tables {
		if _, err := database.Pool.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE", pgx.Identifier{tbl}.Sanitize())); err != nil {
			return fmt.Errorf("drop table %s: %w", tbl, err)
		}
	}
	return nil
}

// Truncate empties tables created by the migrations
func (database *Database) Truncate(ctx context.Context, tables ...string) error {
	for _, tbl := range tables {
		if _, err := database.Pool.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s", pgx.Identifier{tbl}.Sanitize())); err != nil {
			return fmt.Errorf("truncate table %s: %w", tbl, err)
		}
	}
	return nil
}

// Stop closes the pool and terminates the container
func (database *Database) Stop(ctx context.Context) error {
	if database.Pool != nil {
		database.Pool.Close()
	}

	if database.container != nil {
		return database.container.Terminate(ctx)
	}

	return nil
}
