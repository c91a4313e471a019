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
package data_test

import (
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/penny-vault/pvfinancials/data"
)

var _ = Describe("DataTypeFor", func() {
	It("returns the schema for every known kind", func() {
		for _, kind := range []data.Kind{data.FinancialsKind, data.SummaryKind} {
			dt, err := data.DataTypeFor(kind)
			Expect(err).NotTo(HaveOccurred())
			Expect(dt.Name).To(Equal(kind))
			Expect(dt.PrimaryKey).NotTo(BeEmpty())
		}
	})

	It("rejects unknown kinds", func() {
		_, err := data.DataTypeFor("prices")
		Expect(err).To(MatchError(data.ErrUnknownKind))
	})

	It("names the table and its primary key constraint", func() {
		dt, err := data.DataTypeFor(data.FinancialsKind)
		Expect(err).NotTo(HaveOccurred())

		schema := dt.ExpandedSchema("fin_test")
		Expect(schema).To(ContainSubstring("CREATE TABLE IF NOT EXISTS fin_test ("))
		Expect(schema).To(ContainSubstring("CONSTRAINT fin_test_pkey PRIMARY KEY (ticker, statement_type, metric, statement_date)"))
		Expect(schema).To(ContainSubstring("metric             VARCHAR(191)"))
	})
})

var _ = Describe("LineItem", func() {
	It("builds its natural key from ticker, type, metric and date", func() {
		item := &data.LineItem{
			Ticker:        "ACME",
			StatementType: data.BalanceSheet,
			Metric:        "TotalAssets",
			StatementDate: time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC),
		}

		Expect(item.Key()).To(Equal("ACME|BS|TotalAssets|2023-12-31"))
	})
})

var _ = Describe("WriteError", func() {
	It("carries the SQLSTATE of the server error", func() {
		pgErr := &pgconn.PgError{Code: pgerrcode.StringDataRightTruncationDataException, Message: "value too long for type character varying(191)"}
		writeErr := &data.WriteError{Table: "financials", Ticker: "ACME", Code: pgErr.Code, Message: pgErr.Message, Err: pgErr}

		Expect(writeErr.Error()).To(ContainSubstring("SQLSTATE 22001"))
		Expect(writeErr.Class()).To(Equal("value too long"))

		var unwrapped *pgconn.PgError
		Expect(errors.As(writeErr, &unwrapped)).To(BeTrue())
	})

	DescribeTable("classifies failures",
		func(code, class string) {
			Expect((&data.WriteError{Code: code}).Class()).To(Equal(class))
		},
		Entry("no server error", "", "driver"),
		Entry("unique violation", pgerrcode.UniqueViolation, "duplicate key"),
		Entry("index row too large", pgerrcode.ProgramLimitExceeded, "oversized key"),
		Entry("not null violation", pgerrcode.NotNullViolation, "constraint"),
		Entry("numeric overflow", pgerrcode.NumericValueOutOfRange, "bad data"),
		Entry("undefined table", pgerrcode.UndefinedTable, "database"),
	)
})

var _ = Describe("Upserts without records", func() {
	It("return zero without touching the database", func(ctx SpecContext) {
		n, err := data.UpsertLineItems(ctx, nil, "financials", nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(0))

		n, err = data.UpsertProfiles(ctx, nil, "summary", []*data.Profile{})
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(0))
	})
})
