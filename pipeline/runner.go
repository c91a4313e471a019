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
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/penny-vault/pvfinancials/data"
	"github.com/penny-vault/pvfinancials/library"
	"github.com/penny-vault/pvfinancials/payload"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Runner processes every staged company sequentially on one connection
type Runner struct {
	Pool   *pgxpool.Pool
	Source *library.Source
	Config Config
}

func NewRunner(pool *pgxpool.Pool, source *library.Source, cfg Config) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if source == nil {
		return nil, fmt.Errorf("%w: no payload source", ErrInvalidConfig)
	}

	return &Runner{
		Pool:   pool,
		Source: source,
		Config: cfg,
	}, nil
}

// StatementsJob returns the job that writes line items to the configured table
func (runner *Runner) StatementsJob() *StatementsJob {
	return &StatementsJob{Tbl: runner.Config.FinancialsTable}
}

// ProfilesJob returns the job that writes profiles to the configured table
func (runner *Runner) ProfilesJob() *ProfilesJob {
	return &ProfilesJob{Tbl: runner.Config.SummaryTable}
}

// Run applies job to every ticker in the source. Each company is written
// inside a savepoint so a failing company is rolled back on its own and the
// run continues. The transaction is committed every CommitEvery companies
// and once more at the end. The returned summary is valid even when an error
// is returned; it then covers the companies handled before the error.
func (runner *Runner) Run(ctx context.Context, job Job) (*RunSummary, error) {
	summary := &RunSummary{
		RunID:     uuid.New(),
		Job:       job.Name(),
		Table:     job.Table(),
		StartTime: time.Now(),
		Failures:  make(map[string]string),
	}

	defer func() {
		summary.EndTime = time.Now()
	}()

	subLog := log.With().Str("RunID", summary.RunID.String()).Str("Job", job.Name()).Logger()

	conn, err := runner.Pool.Acquire(ctx)
	if err != nil {
		subLog.Error().Err(err).Msg("could not acquire database connection")
		return summary, err
	}
	defer conn.Release()

	if err := data.EnsureTable(ctx, conn, job.Kind(), job.Table()); err != nil {
		subLog.Error().Err(err).Str("Table", job.Table()).Msg("could not ensure target table")
		return summary, err
	}

	tickers, err := runner.Source.Tickers(ctx, conn)
	if err != nil {
		subLog.Error().Err(err).Msg("could not list tickers")
		return summary, err
	}

	summary.NumTickers = len(tickers)
	subLog.Info().Int("NumTickers", len(tickers)).Str("Table", job.Table()).Msg("starting run")

	tx, err := conn.Begin(ctx)
	if err != nil {
		return summary, err
	}

	defer func() {
		if err := tx.Rollback(context.Background()); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			subLog.Error().Err(err).Msg("error rolling back run transaction")
		}
	}()

	pending := 0
	for _, ticker := range tickers {
		if err := ctx.Err(); err != nil {
			subLog.Warn().Int("Uncommitted", pending).Msg("run cancelled; uncommitted companies are discarded")
			return summary, err
		}

		numRows, err := runner.processCompany(ctx, tx, job, ticker, subLog)
		switch {
		case err == nil:
			summary.NumProcessed++
			summary.RowsWritten += numRows
			summary.LastTicker = ticker
		case errors.Is(err, ErrSkipped), errors.Is(err, library.ErrPayloadNotFound):
			summary.NumSkipped++
			subLog.Warn().Err(err).Str("Ticker", ticker).Msg("skipping company")
		case ctx.Err() != nil:
			return summary, ctx.Err()
		default:
			var txErr *savepointError
			if errors.As(err, &txErr) {
				subLog.Error().Err(err).Str("Ticker", ticker).Msg("run transaction is unusable")
				return summary, err
			}

			summary.NumErrored++
			summary.Failures[ticker] = err.Error()
			subLog.Error().Err(err).Str("Ticker", ticker).Msg("company failed; rolled back to savepoint")
		}

		pending++
		if pending >= runner.Config.CommitEvery {
			if err := tx.Commit(ctx); err != nil {
				subLog.Error().Err(err).Msg("commit failed")
				return summary, err
			}

			subLog.Debug().Int("NumCompanies", pending).Str("Ticker", ticker).Msg("committed")
			summary.NumCommits++
			pending = 0

			if tx, err = conn.Begin(ctx); err != nil {
				return summary, err
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		subLog.Error().Err(err).Msg("final commit failed")
		return summary, err
	}
	summary.NumCommits++

	if summary.LastTicker != "" && runner.Config.SampleSize > 0 {
		sample, err := job.Sample(ctx, conn, summary.LastTicker, runner.Config.SampleSize)
		if err != nil {
			subLog.Warn().Err(err).Str("Ticker", summary.LastTicker).Msg("could not read sample rows")
		} else {
			summary.Sample = sample
		}
	}

	subLog.Info().Object("Summary", summary).Msg("run complete")

	return summary, nil
}

type savepointError struct {
	err error
}

func (e *savepointError) Error() string {
	return fmt.Sprintf("savepoint: %s", e.err)
}

func (e *savepointError) Unwrap() error {
	return e.err
}

// processCompany loads, decodes, normalizes and writes one company inside a
// savepoint of tx
func (runner *Runner) processCompany(ctx context.Context, tx pgx.Tx, job Job, ticker string, subLog zerolog.Logger) (int, error) {
	savepoint, err := tx.Begin(ctx)
	if err != nil {
		return 0, &savepointError{err: err}
	}

	raw, err := runner.Source.Load(ctx, savepoint, ticker)
	if err != nil {
		return 0, rollbackSavepoint(ctx, savepoint, err)
	}

	doc, method := payload.Decode(raw)
	switch method {
	case payload.MethodJSON:
	case payload.MethodEmpty:
		subLog.Warn().Str("Ticker", ticker).Int("NumBytes", len(raw)).Msg("payload could not be decoded; treating as empty")
	default:
		subLog.Warn().Str("Ticker", ticker).Str("Method", string(method)).Msg("payload recovered by fallback decoder")
	}

	numRows, err := job.Process(ctx, savepoint, ticker, doc)
	if err != nil {
		return 0, rollbackSavepoint(ctx, savepoint, err)
	}

	if err := savepoint.Commit(ctx); err != nil {
		return 0, &savepointError{err: err}
	}

	subLog.Debug().Str("Ticker", ticker).Int("NumRows", numRows).Msg("company written")

	return numRows, nil
}

func rollbackSavepoint(ctx context.Context, savepoint pgx.Tx, cause error) error {
	if err := savepoint.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return &savepointError{err: errors.Join(cause, err)}
	}
	return cause
}
