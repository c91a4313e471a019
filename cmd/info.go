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
	"context"

	"github.com/penny-vault/pvfinancials/library"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// infoCmd represents the info command
var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Display information about the financials library",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signalContext()
		defer stop()

		myLibrary := connectLibrary(ctx)
		defer myLibrary.Close()

		summary, err := librarySummary(ctx, myLibrary)
		if err != nil {
			log.Fatal().Err(err).Msg("could not create library summary document")
		}

		renderMarkdown(summary)
	},
}

// librarySummary resolves the configured staging table before counting it
func librarySummary(ctx context.Context, myLibrary *library.Library) (string, error) {
	if err := pipelineConfig().Validate(); err != nil {
		return "", err
	}

	source, err := library.NewSource(ctx, myLibrary.Pool, sourceConfig())
	if err != nil {
		return "", err
	}

	return myLibrary.Summary(ctx, source, tables())
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
