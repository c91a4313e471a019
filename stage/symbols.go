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
package stage

import (
	"fmt"
	"os"
	"strings"

	"github.com/gocarina/gocsv"
)

type symbolRow struct {
	Symbol string `csv:"symbol"`
}

// ReadSymbols returns the tickers listed in a CSV file. The column named
// symbol or ticker, in any case, is used; otherwise the first column is.
// Tickers are upper cased and blank rows dropped.
func ReadSymbols(fn string) ([]string, error) {
	fh, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	records, err := gocsv.LazyCSVReader(fh).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse symbols file %s: %w", fn, err)
	}

	if len(records) == 0 {
		return []string{}, nil
	}

	col := symbolColumn(records[0])
	symbols := make([]string, 0, len(records)-1)
	seen := make(map[string]bool, len(records)-1)

	for _, record := range records[1:] {
		if col >= len(record) {
			continue
		}

		symbol := strings.ToUpper(strings.TrimSpace(record[col]))
		if symbol == "" || seen[symbol] {
			continue
		}

		seen[symbol] = true
		symbols = append(symbols, symbol)
	}

	return symbols, nil
}

// symbolColumn returns the index of the ticker column in header
func symbolColumn(header []string) int {
	for _, name := range []string{"symbol", "ticker"} {
		for idx, column := range header {
			if strings.EqualFold(strings.TrimSpace(column), name) {
				return idx
			}
		}
	}

	return 0
}

// WriteSymbols saves tickers to fn as a single symbol column
func WriteSymbols(fn string, tickers []string) error {
	rows := make([]*symbolRow, 0, len(tickers))
	for _, ticker := range tickers {
		rows = append(rows, &symbolRow{Symbol: ticker})
	}

	fh, err := os.Create(fn)
	if err != nil {
		return err
	}
	defer fh.Close()

	if err := gocsv.MarshalFile(&rows, fh); err != nil {
		return fmt.Errorf("write symbols file %s: %w", fn, err)
	}

	return nil
}
