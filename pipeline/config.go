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

// Package pipeline drives normalization jobs over every company in the
// staging table and writes the results with upserts.
package pipeline

import (
	"errors"
	"fmt"
	"regexp"
)

var (
	ErrInvalidConfig = errors.New("invalid pipeline configuration")
)

// table names are bare identifiers; constraint and index names are derived
// from them and the search_path selects the schema
var tableNameRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

const (
	DefaultCommitEvery = 20
	DefaultSampleSize  = 10
)

type Config struct {
	CommitEvery     int
	SampleSize      int
	FinancialsTable string
	SummaryTable    string
}

func DefaultConfig() Config {
	return Config{
		CommitEvery:     DefaultCommitEvery,
		SampleSize:      DefaultSampleSize,
		FinancialsTable: "financials",
		SummaryTable:    "summary",
	}
}

// Validate reports the first setting that would make a run fail part way
// through. Errors wrap ErrInvalidConfig.
func (cfg Config) Validate() error {
	if cfg.CommitEvery <= 0 {
		return fmt.Errorf("%w: commit_every must be positive, got %d", ErrInvalidConfig, cfg.CommitEvery)
	}

	if cfg.SampleSize < 0 {
		return fmt.Errorf("%w: sample size must not be negative, got %d", ErrInvalidConfig, cfg.SampleSize)
	}

	tables := []struct {
		setting string
		name    string
	}{
		{"tables.financials", cfg.FinancialsTable},
		{"tables.summary", cfg.SummaryTable},
	}

	for _, tbl := range tables {
		if tbl.name == "" {
			return fmt.Errorf("%w: %s is empty", ErrInvalidConfig, tbl.setting)
		}
		if !tableNameRegex.MatchString(tbl.name) {
			return fmt.Errorf("%w: %s %q is not a valid table name", ErrInvalidConfig, tbl.setting, tbl.name)
		}
	}

	if cfg.FinancialsTable == cfg.SummaryTable {
		return fmt.Errorf("%w: financials and summary tables must differ", ErrInvalidConfig)
	}

	return nil
}
