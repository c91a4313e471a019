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
	"fmt"
)

type Kind string

const (
	FinancialsKind Kind = "financials"
	SummaryKind    Kind = "summary"
)

// KeyColumn describes a column whose declared width must not exceed a bound
// because it participates in the primary key
type KeyColumn struct {
	Name      string
	MaxLength int
}

type DataType struct {
	Name       Kind
	Schema     string
	PrimaryKey []string
	KeyColumns []KeyColumn
}

var DataTypes = map[Kind]*DataType{
	FinancialsKind: {
		Name: FinancialsKind,
		Schema: `CREATE TABLE IF NOT EXISTS %[1]s (
ticker             VARCHAR(32)  NOT NULL,
name               VARCHAR(255),
statement_type     VARCHAR(4)   NOT NULL,
metric             VARCHAR(191) NOT NULL,
stock_currency     VARCHAR(16),
financial_currency VARCHAR(16),
calendar_year      INT,
period             INT,
value              DOUBLE PRECISION,
statement_date     DATE         NOT NULL,
CONSTRAINT %[1]s_pkey PRIMARY KEY (ticker, statement_type, metric, statement_date)
);

CREATE INDEX IF NOT EXISTS %[1]s_statement_date_idx ON %[1]s(statement_date);`,
		PrimaryKey: []string{"ticker", "statement_type", "metric", "statement_date"},
		KeyColumns: []KeyColumn{
			{Name: "metric", MaxLength: 191},
			{Name: "ticker", MaxLength: 32},
		},
	},
	SummaryKind: {
		Name: SummaryKind,
		Schema: `CREATE TABLE IF NOT EXISTS %[1]s (
ticker       VARCHAR(32) NOT NULL,
name         VARCHAR(255),
long_summary TEXT,
sector       VARCHAR(128),
industry     VARCHAR(128),
website      VARCHAR(255),
employees    INT,
city         VARCHAR(128),
state        VARCHAR(128),
country      VARCHAR(128),
currency     VARCHAR(16),
founded_year INT,
former_name  VARCHAR(255),
updated_at   TIMESTAMP,
CONSTRAINT %[1]s_pkey PRIMARY KEY (ticker)
);`,
		PrimaryKey: []string{"ticker"},
		KeyColumns: []KeyColumn{
			{Name: "ticker", MaxLength: 32},
		},
	},
}

// ExpandedSchema returns the schema of the data type for the given table name
func (dt *DataType) ExpandedSchema(tableName string) string {
	return fmt.Sprintf(dt.Schema, tableName)
}

// DataTypeFor returns the data type registered for kind
func DataTypeFor(kind Kind) (*DataType, error) {
	dt, ok := DataTypes[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}

	return dt, nil
}
