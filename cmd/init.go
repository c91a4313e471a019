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
	"os"
	"path/filepath"

	"github.com/charmbracelet/huh"
	"github.com/jackc/pgx/v5"
	"github.com/pelletier/go-toml/v2"
	"github.com/penny-vault/pvfinancials/data"
	"github.com/penny-vault/pvfinancials/db"
	"github.com/penny-vault/pvfinancials/healthcheck"
	"github.com/penny-vault/pvfinancials/library"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type dbSettings struct {
	URL string `toml:"url"`
}

type runSettings struct {
	CommitEvery int `toml:"commit_every"`
	SampleSize  int `toml:"sample_size"`
}

type healthcheckSettings struct {
	CheckID string `toml:"check_id,omitempty"`
}

// configFile is the layout of $HOME/.pvfinancials.toml
type configFile struct {
	DB           dbSettings           `toml:"db"`
	Run          runSettings          `toml:"run"`
	Source       library.SourceConfig `toml:"source"`
	Tables       library.Tables       `toml:"tables"`
	Healthchecks healthcheckSettings  `toml:"healthchecks"`
}

var (
	initNonInteractive bool
	initSchedule       string
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Gather database configuration and setup schema",
	Long: `init creates the staging and output tables in the configured database and
saves the connection settings to the config file. Without --yes the settings
are gathered with an interactive form.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signalContext()
		defer stop()

		myLibrary := &library.Library{
			DBUrl: databaseURL(),
			Name:  "pvfinancials",
		}

		if !initNonInteractive {
			form := huh.NewForm(
				// Gather details about the library and who owns it
				huh.NewGroup(
					huh.NewInput().
						Title("Give the library a name:").
						Value(&myLibrary.Name),

					huh.NewInput().
						Title("Who owns the library?").
						Value(&myLibrary.Owner),
				),

				// Get details about the database
				huh.NewGroup(
					huh.NewInput().
						Title("Provide the DSN for connecting to your PostgreSQL database (postgres://[user[:password]@][netloc][:port][/dbname][?param1=value1&...])").
						Value(&myLibrary.DBUrl).
						Validate(func(dsn string) error {
							_, err := pgx.ParseConfig(dsn)
							return err
						}),
				),
			)

			if err := form.Run(); err != nil {
				log.Fatal().Err(err).Msg("error gathering database settings")
			}
		} else if _, err := pgx.ParseConfig(myLibrary.DBUrl); err != nil {
			log.Fatal().Err(err).Msg("database connection string is invalid")
		}

		log.Info().Msg("creating staging tables")
		if err := db.Migrate(myLibrary.DBUrl); err != nil {
			log.Fatal().Err(err).Msg("error running database migration")
		}

		if err := myLibrary.Connect(ctx); err != nil {
			log.Fatal().Err(err).Msg("could not connect to database")
		}
		defer myLibrary.Close()

		if err := myLibrary.SaveDB(ctx); err != nil {
			log.Fatal().Err(err).Msg("error saving library settings to database")
		}

		tbls := tables()
		for kind, tbl := range map[data.Kind]string{data.FinancialsKind: tbls.Financials, data.SummaryKind: tbls.Summary} {
			log.Info().Str("Table", tbl).Str("Kind", string(kind)).Msg("ensuring output table")
			if err := data.EnsureTable(ctx, myLibrary.Pool, kind, tbl); err != nil {
				log.Fatal().Err(err).Str("Table", tbl).Msg("could not create output table")
			}
		}

		settings := configFile{
			DB:     dbSettings{URL: myLibrary.DBUrl},
			Run:    runSettings{CommitEvery: viper.GetInt("run.commit_every"), SampleSize: viper.GetInt("run.sample_size")},
			Source: sourceConfig(),
			Tables: tbls,
			Healthchecks: healthcheckSettings{
				CheckID: viper.GetString("healthchecks.check_id"),
			},
		}

		if apiKey := viper.GetString("healthchecks.apikey"); apiKey != "" && settings.Healthchecks.CheckID == "" {
			checkID, err := healthcheck.New(apiKey).Create(ctx, "pvfinancials "+myLibrary.Name, "pvfinancials", []string{"pvfinancials"}, initSchedule)
			if err != nil {
				log.Error().Err(err).Msg("could not create healthcheck; continuing without one")
			} else {
				settings.Healthchecks.CheckID = checkID
			}
		}

		configFN := cfgFile
		if configFN == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				log.Fatal().Err(err).Msg("could not determine user home directory")
			}
			configFN = filepath.Join(home, ".pvfinancials.toml")
		}

		log.Info().Str("ConfigFile", configFN).Msg("saving database connection info to config file")
		configData, err := toml.Marshal(settings)
		if err != nil {
			log.Fatal().Err(err).Msg("could not marshal configuration data")
		}

		if err := os.WriteFile(configFN, configData, 0600); err != nil {
			log.Fatal().Err(err).Str("FileName", configFN).Msg("could not save configuration to file")
		}

		log.Info().Msg("your financials library has been initialized")
	},
}

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().BoolVarP(&initNonInteractive, "yes", "y", false, "use the configured settings without prompting")
	initCmd.Flags().StringVar(&initSchedule, "schedule", "0 6 * * *", "cron schedule registered with healthchecks.io")
}
