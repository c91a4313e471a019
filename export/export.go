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
package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/gosimple/slug"
	"github.com/penny-vault/pvfinancials/data"
	"github.com/rs/zerolog/log"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
)

var (
	ErrUnknownFormat = errors.New("unknown export format")
)

type Format string

const (
	FormatCSV     Format = "csv"
	FormatParquet Format = "parquet"
)

func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatCSV:
		return FormatCSV, nil
	case FormatParquet:
		return FormatParquet, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// Row is the flat representation of a line item written to export files
type Row struct {
	Ticker            string   `csv:"ticker" parquet:"name=ticker, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Name              string   `csv:"name" parquet:"name=name, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	StatementType     string   `csv:"statement_type" parquet:"name=statement_type, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Metric            string   `csv:"metric" parquet:"name=metric, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	StockCurrency     string   `csv:"stock_currency" parquet:"name=stock_currency, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	FinancialCurrency string   `csv:"financial_currency" parquet:"name=financial_currency, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	CalendarYear      int32    `csv:"calendar_year" parquet:"name=calendar_year, type=INT32"`
	Period            int32    `csv:"period" parquet:"name=period, type=INT32"`
	Value             *float64 `csv:"value" parquet:"name=value, type=DOUBLE, repetitiontype=OPTIONAL"`
	StatementDate     string   `csv:"statement_date" parquet:"name=statement_date, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
}

func value(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Rows flattens line items for export. Null text columns become empty strings.
func Rows(items []*data.LineItem) []*Row {
	rows := make([]*Row, 0, len(items))
	for _, item := range items {
		rows = append(rows, &Row{
			Ticker:            item.Ticker,
			Name:              value(item.Name),
			StatementType:     string(item.StatementType),
			Metric:            item.Metric,
			StockCurrency:     value(item.StockCurrency),
			FinancialCurrency: value(item.FinancialCurrency),
			CalendarYear:      item.CalendarYear,
			Period:            item.Period,
			Value:             item.Value,
			StatementDate:     item.StatementDate.Format("2006-01-02"),
		})
	}
	return rows
}

// FileName returns the path of the export file for ticker in dir. An empty
// ticker names an export of every company.
func FileName(dir, ticker string, format Format, asOf time.Time) string {
	subject := "all"
	if ticker != "" {
		subject = ticker
	}

	base := slug.Make(fmt.Sprintf("financials %s %s", subject, asOf.Format("2006-01-02")))
	return filepath.Join(dir, fmt.Sprintf("%s.%s", base, format))
}

// Write saves rows to fn in the requested format
func Write(rows []*Row, fn string, format Format) error {
	switch format {
	case FormatCSV:
		return WriteCSV(rows, fn)
	case FormatParquet:
		return WriteParquet(rows, fn)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

func WriteCSV(rows []*Row, fn string) error {
	fh, err := os.Create(fn)
	if err != nil {
		log.Error().Err(err).Str("FileName", fn).Msg("cannot create local file")
		return err
	}
	defer fh.Close()

	if err := gocsv.MarshalFile(&rows, fh); err != nil {
		log.Error().Err(err).Str("FileName", fn).Msg("CSV write failed")
		return err
	}

	log.Info().Int("NumRecords", len(rows)).Str("FileName", fn).Msg("CSV write finished")
	return nil
}

func WriteParquet(rows []*Row, fn string) error {
	fh, err := local.NewLocalFileWriter(fn)
	if err != nil {
		log.Error().Err(err).Str("FileName", fn).Msg("cannot create local file")
		return err
	}
	defer fh.Close()

	pw, err := writer.NewParquetWriter(fh, new(Row), 4)
	if err != nil {
		log.Error().Err(err).Msg("parquet writer could not be created")
		return err
	}

	pw.RowGroupSize = 128 * 1024 * 1024 // 128M
	pw.PageSize = 8 * 1024              // 8k
	pw.CompressionType = parquet.CompressionCodec_ZSTD

	for _, r := range rows {
		if err = pw.Write(r); err != nil {
			log.Error().Err(err).Str("Ticker", r.Ticker).Str("Metric", r.Metric).
				Str("StatementDate", r.StatementDate).Msg("parquet write failed for record")
			return err
		}
	}

	if err = pw.WriteStop(); err != nil {
		log.Error().Err(err).Msg("parquet write failed")
		return err
	}

	log.Info().Int("NumRecords", len(rows)).Str("FileName", fn).Msg("parquet write finished")
	return nil
}
