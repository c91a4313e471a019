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
package library

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/xeonx/timeago"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// RedactURL hides the password of a database connection string
func RedactURL(dbURL string) string {
	parsed, err := url.Parse(dbURL)
	if err != nil || parsed.User == nil {
		return dbURL
	}

	if _, hasPass := parsed.User.Password(); hasPass {
		parsed.User = url.UserPassword(parsed.User.Username(), "xxxxx")
	}

	return parsed.String()
}

// Summary returns a description of the library in markdown. The source must
// come from NewSource so its ticker column is resolved.
func (myLibrary *Library) Summary(ctx context.Context, resolved *Source, tables Tables) (string, error) {
	source := resolved.Config
	p := message.NewPrinter(language.English)
	builder := strings.Builder{}

	name := myLibrary.Name
	if name == "" {
		name = "pvfinancials"
	}

	builder.WriteString(fmt.Sprintf("# %s\n", name))
	if myLibrary.Owner != "" {
		builder.WriteString(fmt.Sprintf("Owner: %s\n\n", myLibrary.Owner))
	}

	builder.WriteString("## Details\n\n")
	builder.WriteString(fmt.Sprintf("Database: %s\n\n", RedactURL(myLibrary.DBUrl)))

	// Staging table
	numPayloads, err := myLibrary.NumStagedPayloads(ctx, source)
	if err != nil {
		return "", err
	}

	numTickers, err := myLibrary.NumStagedTickers(ctx, source)
	if err != nil {
		return "", err
	}

	builder.WriteString(p.Sprintf("  * Staged Payloads (%s): %d\n", source.Table, numPayloads))
	builder.WriteString(p.Sprintf("  * Staged Companies: %d\n", numTickers))

	// Normalized tables
	numLineItems, err := myLibrary.NumLineItems(ctx, tables)
	if err != nil {
		return "", err
	}

	numProfiles, err := myLibrary.NumProfiles(ctx, tables)
	if err != nil {
		return "", err
	}

	builder.WriteString(p.Sprintf("  * Line Items (%s): %d\n", tables.Financials, numLineItems))
	builder.WriteString(p.Sprintf("  * Company Profiles (%s): %d\n\n", tables.Summary, numProfiles))

	lastUpdated, err := myLibrary.LastUpdated(ctx, tables)
	if err != nil {
		return "", err
	}

	if lastUpdated.Equal(time.Time{}) {
		builder.WriteString("Last Updated: Never\n\n")
	} else {
		age := timeago.English.Format(lastUpdated)
		builder.WriteString(fmt.Sprintf("Last Updated: %s (%s)\n\n", age, lastUpdated.Local().Format("01/02/2006")))
	}

	return builder.String(), nil
}
