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
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrUnknownKind  = errors.New("unknown table kind")
	ErrOversizedKey = errors.New("primary key column is wider than the table schema allows")
)

// WriteError is returned when the database rejects an upsert. Code and
// Message are filled from the server error when one is available.
type WriteError struct {
	Table   string
	Ticker  string
	Code    string
	Message string
	Err     error
}

func newWriteError(tbl, ticker string, err error) *WriteError {
	writeErr := &WriteError{
		Table:  tbl,
		Ticker: ticker,
		Err:    err,
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		writeErr.Code = pgErr.Code
		writeErr.Message = pgErr.Message
	} else {
		writeErr.Message = err.Error()
	}

	return writeErr
}

func (e *WriteError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("write to %s failed for %s: %s (SQLSTATE %s)", e.Table, e.Ticker, e.Message, e.Code)
	}
	return fmt.Sprintf("write to %s failed for %s: %s", e.Table, e.Ticker, e.Message)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// Class returns a short label for the failure suitable for grouping errors
// in run summaries
func (e *WriteError) Class() string {
	switch {
	case e.Code == "":
		return "driver"
	case e.Code == pgerrcode.StringDataRightTruncationDataException:
		return "value too long"
	case e.Code == pgerrcode.UniqueViolation:
		return "duplicate key"
	case e.Code == pgerrcode.ProgramLimitExceeded:
		return "oversized key"
	case pgerrcode.IsIntegrityConstraintViolation(e.Code):
		return "constraint"
	case pgerrcode.IsDataException(e.Code):
		return "bad data"
	default:
		return "database"
	}
}
