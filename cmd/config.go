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
	"net"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/charmbracelet/glamour"
	"github.com/penny-vault/pvfinancials/backblaze"
	"github.com/penny-vault/pvfinancials/library"
	"github.com/penny-vault/pvfinancials/pipeline"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

func setDefaults() {
	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", 5432)
	viper.SetDefault("db.name", "marketdata")
	viper.SetDefault("db.user", "postgres")
	viper.SetDefault("db.pass", "")

	viper.SetDefault("run.commit_every", pipeline.DefaultCommitEvery)
	viper.SetDefault("run.sample_size", pipeline.DefaultSampleSize)

	source := library.DefaultSourceConfig()
	viper.SetDefault("source.table", source.Table)
	viper.SetDefault("source.order_column", source.OrderColumn)

	tables := library.DefaultTables()
	viper.SetDefault("tables.financials", tables.Financials)
	viper.SetDefault("tables.summary", tables.Summary)
}

// bindEnv maps the environment variable names used by existing deployments
func bindEnv() {
	bindings := map[string]string{
		"db.url":                    "DB_URL",
		"db.host":                   "DB_HOST",
		"db.port":                   "DB_PORT",
		"db.name":                   "DB_NAME",
		"db.user":                   "DB_USER",
		"db.pass":                   "DB_PASS",
		"run.commit_every":          "COMMIT_EVERY_SYMBOLS",
		"source.table":              "SOURCE_TABLE",
		"healthchecks.apikey":       "HEALTHCHECKS_APIKEY",
		"healthchecks.check_id":     "HEALTHCHECKS_CHECK_ID",
		"backblaze.application_id":  "B2_APPLICATION_ID",
		"backblaze.application_key": "B2_APPLICATION_KEY",
	}

	for key, env := range bindings {
		if err := viper.BindEnv(key, env); err != nil {
			log.Panic().Err(err).Str("Key", key).Msg("BindEnv failed")
		}
	}
}

// databaseURL returns db.url when it is set and otherwise assembles a
// connection string from the individual db settings
func databaseURL() string {
	if dbURL := viper.GetString("db.url"); dbURL != "" {
		return dbURL
	}

	dsn := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(viper.GetString("db.host"), strconv.Itoa(viper.GetInt("db.port"))),
		Path:   "/" + viper.GetString("db.name"),
	}

	if pass := viper.GetString("db.pass"); pass != "" {
		dsn.User = url.UserPassword(viper.GetString("db.user"), pass)
	} else {
		dsn.User = url.User(viper.GetString("db.user"))
	}

	return dsn.String()
}

func sourceConfig() library.SourceConfig {
	return library.SourceConfig{
		Table:         viper.GetString("source.table"),
		TickerColumn:  viper.GetString("source.ticker_column"),
		PayloadColumn: viper.GetString("source.payload_column"),
		OrderColumn:   viper.GetString("source.order_column"),
	}
}

func tables() library.Tables {
	return library.Tables{
		Financials: viper.GetString("tables.financials"),
		Summary:    viper.GetString("tables.summary"),
	}
}

func pipelineConfig() pipeline.Config {
	tbls := tables()
	return pipeline.Config{
		CommitEvery:     viper.GetInt("run.commit_every"),
		SampleSize:      viper.GetInt("run.sample_size"),
		FinancialsTable: tbls.Financials,
		SummaryTable:    tbls.Summary,
	}
}

func backblazeCredentials() backblaze.Credentials {
	return backblaze.Credentials{
		KeyID:          viper.GetString("backblaze.application_id"),
		ApplicationKey: viper.GetString("backblaze.application_key"),
	}
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// connectLibrary opens the configured database or exits
func connectLibrary(ctx context.Context) *library.Library {
	myLibrary, err := library.NewFromDB(ctx, databaseURL())
	if err != nil {
		log.Fatal().Err(err).Str("DatabaseURL", library.RedactURL(databaseURL())).Msg("could not connect to library")
	}

	return myLibrary
}

func renderMarkdown(doc string) {
	r, _ := glamour.NewTermRenderer(
		// detect background color and pick either the default dark or light theme
		glamour.WithAutoStyle(),
		// wrap output at specific width (default is 80)
		glamour.WithWordWrap(100),
	)

	out, err := r.Render(doc)
	if err != nil {
		log.Error().Err(err).Msg("could not render markdown; printing plain text")
		fmt.Print(doc)
		return
	}

	fmt.Print(out)
}
