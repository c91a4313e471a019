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
	"time"

	"github.com/penny-vault/pvfinancials/library"
	"github.com/penny-vault/pvfinancials/stage"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var (
	stageSymbols string
	stageOutput  string
)

var stageCmd = &cobra.Command{
	Use:   "stage <dir>",
	Short: "Load payload files into the staging table",
	Long: `stage reads every <TICKER>.json file in dir, sanitizes it into strict JSON
and inserts it into the staging table. Tickers that are already staged are
left alone. The tickers loaded by the run are written to a CSV file.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signalContext()
		defer stop()

		myLibrary := connectLibrary(ctx)
		defer myLibrary.Close()

		source, err := library.NewSource(ctx, myLibrary.Pool, sourceConfig())
		if err != nil {
			log.Fatal().Err(err).Msg("could not resolve payload source")
		}

		result, err := stage.Run(ctx, myLibrary.Pool, source, stage.Options{
			Dir:         args[0],
			SymbolsFile: stageSymbols,
			OutputFile:  stageOutput,
		}, time.Now().UTC())
		if err != nil {
			log.Fatal().Err(err).Str("Dir", args[0]).Msg("staging failed")
		}

		for name, msg := range result.Failed {
			log.Error().Str("Name", name).Str("Error", msg).Msg("payload was not staged")
		}

		p := message.NewPrinter(language.English)
		fmt.Println(okStyle.Render(p.Sprintf("staged %d payloads (%d already staged, %d filtered, %d failed)",
			len(result.Staged), result.Existing, result.Filtered, len(result.Failed))))
	},
}

func init() {
	rootCmd.AddCommand(stageCmd)

	stageCmd.Flags().StringVar(&stageSymbols, "symbols", "", "CSV file listing the tickers to stage")
	stageCmd.Flags().StringVarP(&stageOutput, "output", "o", stage.DefaultOutputFile, "CSV file receiving the staged tickers")
}
