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
package pipeline

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hako/durafmt"
	"github.com/rs/zerolog"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// RunSummary counts what happened to each company in a run
type RunSummary struct {
	RunID     uuid.UUID
	Job       string
	Table     string
	StartTime time.Time
	EndTime   time.Time

	NumTickers   int
	NumProcessed int
	NumErrored   int
	NumSkipped   int
	NumCommits   int
	RowsWritten  int

	// Failures maps ticker to the error that rolled it back
	Failures map[string]string

	LastTicker string
	Sample     string
}

func (summary *RunSummary) RunTime() time.Duration {
	if summary.EndTime.IsZero() {
		return time.Since(summary.StartTime)
	}
	return summary.EndTime.Sub(summary.StartTime)
}

func (summary *RunSummary) MarshalZerologObject(e *zerolog.Event) {
	e.Str("RunID", summary.RunID.String())
	e.Str("Job", summary.Job)
	e.Str("Table", summary.Table)
	e.Int("NumTickers", summary.NumTickers)
	e.Int("NumProcessed", summary.NumProcessed)
	e.Int("NumErrored", summary.NumErrored)
	e.Int("NumSkipped", summary.NumSkipped)
	e.Int("RowsWritten", summary.RowsWritten)
	e.Str("RunTime", durafmt.Parse(summary.RunTime()).LimitFirstN(2).String())
}

// Markdown renders the summary for display in the terminal
func (summary *RunSummary) Markdown() string {
	p := message.NewPrinter(language.English)
	builder := strings.Builder{}

	builder.WriteString(fmt.Sprintf("# %s → %s\n\n", summary.Job, summary.Table))
	builder.WriteString(p.Sprintf("  * Companies: %d\n", summary.NumTickers))
	builder.WriteString(p.Sprintf("  * Processed: %d\n", summary.NumProcessed))
	builder.WriteString(p.Sprintf("  * Errored: %d\n", summary.NumErrored))
	builder.WriteString(p.Sprintf("  * Skipped: %d\n", summary.NumSkipped))
	builder.WriteString(p.Sprintf("  * Rows Written: %d\n", summary.RowsWritten))
	builder.WriteString(fmt.Sprintf("  * Run Time: %s\n", durafmt.Parse(summary.RunTime().Round(time.Millisecond)).String()))
	builder.WriteString(fmt.Sprintf("  * Run ID: `%s`\n\n", summary.RunID))

	if len(summary.Failures) > 0 {
		builder.WriteString("## Failures\n\n")

		tickers := make([]string, 0, len(summary.Failures))
		for ticker := range summary.Failures {
			tickers = append(tickers, ticker)
		}
		sort.Strings(tickers)

		for _, ticker := range tickers {
			builder.WriteString(fmt.Sprintf("  * **%s**: %s\n", ticker, summary.Failures[ticker]))
		}
		builder.WriteString("\n")
	}

	if summary.Sample != "" {
		builder.WriteString(summary.Sample)
	}

	return builder.String()
}
