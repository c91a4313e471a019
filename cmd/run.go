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
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/penny-vault/pvfinancials/healthcheck"
	"github.com/penny-vault/pvfinancials/library"
	"github.com/penny-vault/pvfinancials/pipeline"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	okStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	warnStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
)

var statementsCmd = &cobra.Command{
	Use:   "statements",
	Short: "Normalize cash flow, income and balance sheet line items",
	Long: `statements reads every staged payload, flattens the cashflow,
incomestatement and balancesheet sections at yearly and quarterly
periodicity and upserts the line items into the financials table.`,
	Run: func(cmd *cobra.Command, args []string) {
		runJobs(func(runner *pipeline.Runner) []pipeline.Job {
			return []pipeline.Job{runner.StatementsJob()}
		})
	},
}

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "Normalize company profiles",
	Long: `profiles reads every staged payload and upserts one descriptive row per
company into the summary table. Founding year, former name and headquarters
are recovered from the business summary when the structured fields are
missing.`,
	Run: func(cmd *cobra.Command, args []string) {
		runJobs(func(runner *pipeline.Runner) []pipeline.Job {
			return []pipeline.Job{runner.ProfilesJob()}
		})
	},
}

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Normalize statements and then profiles",
	Run: func(cmd *cobra.Command, args []string) {
		runJobs(func(runner *pipeline.Runner) []pipeline.Job {
			return []pipeline.Job{runner.StatementsJob(), runner.ProfilesJob()}
		})
	},
}

func runJobs(jobs func(*pipeline.Runner) []pipeline.Job) {
	ctx, stop := signalContext()
	defer stop()

	cfg := pipelineConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	myLibrary := connectLibrary(ctx)
	defer myLibrary.Close()

	source, err := library.NewSource(ctx, myLibrary.Pool, sourceConfig())
	if err != nil {
		log.Fatal().Err(err).Msg("could not resolve payload source")
	}

	runner, err := pipeline.NewRunner(myLibrary.Pool, source, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	hc := healthcheck.New(viper.GetString("healthchecks.apikey"))
	checkID := viper.GetString("healthchecks.check_id")
	ping(ctx, hc, checkID, healthcheck.SignalStart, "")

	var reports []string
	for _, job := range jobs(runner) {
		summary, err := runner.Run(ctx, job)
		if summary != nil {
			renderMarkdown(summary.Markdown())
			reports = append(reports, fmt.Sprintf("%s: processed=%d errored=%d skipped=%d rows=%d",
				summary.Job, summary.NumProcessed, summary.NumErrored, summary.NumSkipped, summary.RowsWritten))
		}

		if err != nil {
			ping(context.Background(), hc, checkID, healthcheck.SignalFail, err.Error())
			log.Fatal().Err(err).Str("Job", job.Name()).Msg("run aborted")
		}

		if summary.NumErrored > 0 {
			fmt.Println(warnStyle.Render(fmt.Sprintf("%s finished with %d failed companies", job.Name(), summary.NumErrored)))
		} else {
			fmt.Println(okStyle.Render(fmt.Sprintf("%s finished", job.Name())))
		}
	}

	ping(ctx, hc, checkID, healthcheck.SignalSuccess, strings.Join(reports, "\n"))
}

func ping(ctx context.Context, hc *healthcheck.Client, checkID string, signal healthcheck.Signal, body string) {
	if err := hc.Ping(ctx, checkID, signal, body); err != nil {
		log.Warn().Err(err).Str("CheckID", checkID).Msg("could not report run status")
	}
}

func init() {
	rootCmd.AddCommand(statementsCmd)
	rootCmd.AddCommand(profilesCmd)
	rootCmd.AddCommand(runCmd)

	rootCmd.PersistentFlags().Int("commit-every", 0, "number of companies written per transaction")
	if err := viper.BindPFlag("run.commit_every", rootCmd.PersistentFlags().Lookup("commit-every")); err != nil {
		log.Panic().Err(err).Msg("BindPFlag for commit-every failed")
	}
}
