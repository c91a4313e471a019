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
package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/penny-vault/pvfinancials/backblaze"
	"github.com/penny-vault/pvfinancials/data"
	"github.com/penny-vault/pvfinancials/export"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	exportFormat string
	exportDir    string
	exportBucket string
	exportPrefix string
)

var exportCmd = &cobra.Command{
	Use:   "export [ticker]",
	Short: "Write line items to a CSV or Parquet file",
	Long: `export writes the line items of one company, or of every company when no
ticker is given, to a file in the output directory. When --bucket is set the
file is also uploaded to Backblaze B2.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signalContext()
		defer stop()

		format, err := export.ParseFormat(exportFormat)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid export format")
		}

		ticker := ""
		if len(args) == 1 {
			ticker = strings.ToUpper(strings.TrimSpace(args[0]))
		}

		myLibrary := connectLibrary(ctx)
		defer myLibrary.Close()

		items, err := data.LineItems(ctx, myLibrary.Pool, tables().Financials, ticker)
		if err != nil {
			log.Fatal().Err(err).Str("Ticker", ticker).Msg("could not read line items")
		}

		fn := export.FileName(exportDir, ticker, format, time.Now())
		if err := export.Write(export.Rows(items), fn, format); err != nil {
			log.Fatal().Err(err).Str("FileName", fn).Msg("export failed")
		}

		if exportBucket != "" {
			if err := backblaze.Upload(backblazeCredentials(), fn, exportBucket, exportPrefix); err != nil {
				log.Fatal().Err(err).Str("Bucket", exportBucket).Msg("upload failed")
			}
		}

		fmt.Println(okStyle.Render(fmt.Sprintf("exported %d line items to %s", len(items), fn)))
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", string(export.FormatParquet), "output format (csv or parquet)")
	exportCmd.Flags().StringVarP(&exportDir, "dir", "d", ".", "directory the export file is written to")
	exportCmd.Flags().StringVar(&exportBucket, "bucket", "", "Backblaze B2 bucket to upload the export to")
	exportCmd.Flags().StringVar(&exportPrefix, "prefix", "financials", "directory within the bucket")
}
