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
	"strings"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/penny-vault/pvfinancials/data"
	"github.com/penny-vault/pvfinancials/normalize"
)

var (
	ErrSkipped = errors.New("company skipped")
)

// Job normalizes one company's payload and writes the result inside the
// transaction it is given
type Job interface {
	Name() string
	Kind() data.Kind
	Table() string
	Process(ctx context.Context, db data.Batcher, ticker string, doc map[string]any) (int, error)
	Sample(ctx context.Context, db pgxscan.Querier, ticker string, limit int) (string, error)
}

// StatementsJob writes financial statement line items
type StatementsJob struct {
	Tbl string
}

func (job *StatementsJob) Name() string    { return "statements" }
func (job *StatementsJob) Kind() data.Kind { return data.FinancialsKind }
func (job *StatementsJob) Table() string   { return job.Tbl }

func (job *StatementsJob) Process(ctx context.Context, db data.Batcher, ticker string, doc map[string]any) (int, error) {
	items := normalize.Statements(ticker, doc)
	return data.UpsertLineItems(ctx, db, job.Tbl, items)
}

func (job *StatementsJob) Sample(ctx context.Context, db pgxscan.Querier, ticker string, limit int) (string, error) {
	items, err := data.SampleLineItems(ctx, db, job.Tbl, ticker, limit)
	if err != nil {
		return "", err
	}

	builder := strings.Builder{}
	builder.WriteString(fmt.Sprintf("## Sample of %s for %s\n\n", job.Tbl, ticker))

	if len(items) == 0 {
		builder.WriteString("No line items stored.\n")
		return builder.String(), nil
	}

	builder.WriteString("| Date | Type | Metric | Year | Period | Value |\n")
	builder.WriteString("|---|---|---|---|---|---|\n")

	for _, item := range items {
		value := "null"
		if item.Value != nil {
			value = fmt.Sprintf("%g", *item.Value)
		}
		builder.WriteString(fmt.Sprintf("| %s | %s | %s | %d | %d | %s |\n", item.StatementDate.Format("2006-01-02"),
			item.StatementType, item.Metric, item.CalendarYear, item.Period, value))
	}

	return builder.String(), nil
}

// ProfilesJob writes one descriptive record per company
type ProfilesJob struct {
	Tbl string

	// Now is the clock used for updated_at; time.Now when nil
	Now func() time.Time
}

func (job *ProfilesJob) Name() string    { return "profiles" }
func (job *ProfilesJob) Kind() data.Kind { return data.SummaryKind }
func (job *ProfilesJob) Table() string   { return job.Tbl }

func (job *ProfilesJob) now() time.Time {
	if job.Now != nil {
		return job.Now().UTC()
	}
	return time.Now().UTC()
}

func (job *ProfilesJob) Process(ctx context.Context, db data.Batcher, ticker string, doc map[string]any) (int, error) {
	profile, err := normalize.Profile(ticker, doc, job.now())
	if err != nil {
		if errors.Is(err, normalize.ErrMissingIdentifier) {
			return 0, fmt.Errorf("%w: %w", ErrSkipped, err)
		}
		return 0, err
	}

	return data.UpsertProfiles(ctx, db, job.Tbl, []*data.Profile{profile})
}

func (job *ProfilesJob) Sample(ctx context.Context, db pgxscan.Querier, ticker string, _ int) (string, error) {
	profile, err := data.SampleProfile(ctx, db, job.Tbl, ticker)
	if err != nil {
		return "", err
	}

	builder := strings.Builder{}
	builder.WriteString(fmt.Sprintf("## Sample of %s for %s\n\n", job.Tbl, ticker))

	if profile == nil {
		builder.WriteString("No profile stored.\n")
		return builder.String(), nil
	}

	rows := []struct {
		label string
		value *string
	}{
		{"Name", profile.Name},
		{"Sector", profile.Sector},
		{"Industry", profile.Industry},
		{"Website", profile.Website},
		{"City", profile.City},
		{"State", profile.State},
		{"Country", profile.Country},
		{"Currency", profile.Currency},
		{"Former Name", profile.FormerName},
		{"Summary", profile.LongSummary},
	}

	for _, row := range rows {
		builder.WriteString(fmt.Sprintf("  * %s: %s\n", row.label, deref(row.value)))
	}

	if profile.Employees != nil {
		builder.WriteString(fmt.Sprintf("  * Employees: %d\n", *profile.Employees))
	}

	if profile.FoundedYear != nil {
		builder.WriteString(fmt.Sprintf("  * Founded: %d\n", *profile.FoundedYear))
	}

	builder.WriteString(fmt.Sprintf("  * Updated: %s\n", profile.UpdatedAt.Format(time.RFC3339)))

	return builder.String(), nil
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}
