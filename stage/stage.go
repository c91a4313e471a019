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

// Package stage loads provider payload files into the staging table. Every
// payload is sanitized before it is stored so that the staging table only
// holds strict JSON.
package stage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/alphadose/haxmap"
	"github.com/goccy/go-json"
	"github.com/penny-vault/pvfinancials/library"
	"github.com/penny-vault/pvfinancials/payload"
	"github.com/penny-vault/pvfinancials/sanitize"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
)

var (
	ErrNoTicker    = errors.New("payload file has no ticker")
	ErrUnreadable  = errors.New("payload is not a JSON object")
	tickerFromFile = regexp.MustCompile(`^[A-Z0-9][A-Z0-9.\-^=]{0,31}$`)
)

const (
	DefaultOutputFile = "symbols_loaded.csv"

	// files are read and sanitized this many at a time
	prepareBatchSize = 64
)

type Options struct {
	// Dir holds one <TICKER>.json file per company
	Dir string

	// SymbolsFile optionally restricts staging to the tickers it lists
	SymbolsFile string

	// OutputFile receives the tickers staged by this run
	OutputFile string
}

type Result struct {
	Staged   []string
	Existing int
	Filtered int
	Failed   map[string]string
}

// PayloadFile is a raw payload read from disk
type PayloadFile struct {
	Path   string
	Ticker string
	Doc    []byte
}

// ReadPayloadFile reads fn and works out the ticker it belongs to. The file
// name is used when it looks like a ticker; otherwise info.symbol is read
// from the document.
func ReadPayloadFile(fn string) (*PayloadFile, error) {
	raw, err := os.ReadFile(fn)
	if err != nil {
		return nil, err
	}

	stem := strings.ToUpper(strings.TrimSuffix(filepath.Base(fn), filepath.Ext(fn)))
	ticker := ""
	if tickerFromFile.MatchString(stem) {
		ticker = stem
	} else if symbol := gjson.GetBytes(raw, "info.symbol"); symbol.Exists() {
		ticker = strings.ToUpper(strings.TrimSpace(symbol.String()))
	}

	if ticker == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoTicker, fn)
	}

	return &PayloadFile{
		Path:   fn,
		Ticker: ticker,
		Doc:    raw,
	}, nil
}

// Sanitize decodes a raw payload and re-encodes it as strict JSON
func Sanitize(raw []byte) ([]byte, error) {
	doc, method := payload.Decode(raw)
	if method == payload.MethodEmpty && len(doc) == 0 {
		return nil, ErrUnreadable
	}

	return json.Marshal(sanitize.Value(doc))
}

// PayloadFiles lists the *.json files in dir sorted by name
func PayloadFiles(dir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}

// preparedFile is a payload file that has been read and, unless it is
// filtered or already staged, sanitized
type preparedFile struct {
	ticker   string
	doc      []byte
	filtered bool
	existing bool
	err      error
}

func prepareFile(fn string, wanted, existing map[string]bool) *preparedFile {
	file, err := ReadPayloadFile(fn)
	if err != nil {
		return &preparedFile{err: err}
	}

	prepared := &preparedFile{ticker: file.Ticker}
	switch {
	case wanted != nil && !wanted[file.Ticker]:
		prepared.filtered = true
	case existing[file.Ticker]:
		prepared.existing = true
	default:
		prepared.doc, prepared.err = Sanitize(file.Doc)
	}

	return prepared
}

// prepareFiles reads and sanitizes files on one goroutine per CPU. wanted
// and existing are only read.
func prepareFiles(files []string, wanted, existing map[string]bool) *haxmap.Map[string, *preparedFile] {
	ready := haxmap.New[string, *preparedFile](uintptr(len(files)))
	queue := make(chan string)

	var wg sync.WaitGroup
	for i := 0; i < min(runtime.NumCPU(), len(files)); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for fn := range queue {
				ready.Set(fn, prepareFile(fn, wanted, existing))
			}
		}()
	}

	for _, fn := range files {
		queue <- fn
	}
	close(queue)
	wg.Wait()

	return ready
}

// Run stages every payload file in opts.Dir that is not already in the
// staging table
func Run(ctx context.Context, db library.Querier, source *library.Source, opts Options, now time.Time) (*Result, error) {
	result := &Result{
		Failed: make(map[string]string),
	}

	var wanted map[string]bool
	if opts.SymbolsFile != "" {
		symbols, err := ReadSymbols(opts.SymbolsFile)
		if err != nil {
			return nil, err
		}

		wanted = make(map[string]bool, len(symbols))
		for _, symbol := range symbols {
			wanted[symbol] = true
		}

		log.Info().Int("NumSymbols", len(symbols)).Str("FileName", opts.SymbolsFile).Msg("restricting stage to symbols file")
	}

	existing, err := source.Existing(ctx, db)
	if err != nil {
		return nil, err
	}

	files, err := PayloadFiles(opts.Dir)
	if err != nil {
		return nil, err
	}

	log.Info().Int("NumFiles", len(files)).Int("NumStaged", len(existing)).Str("Dir", opts.Dir).Msg("staging payload files")

	staged := make(map[string]bool)
	for start := 0; start < len(files); start += prepareBatchSize {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		batch := files[start:min(start+prepareBatchSize, len(files))]
		ready := prepareFiles(batch, wanted, existing)

		for _, fn := range batch {
			if err := ctx.Err(); err != nil {
				return result, err
			}

			file, _ := ready.Get(fn)
			switch {
			case file.ticker == "":
				log.Warn().Err(file.err).Str("FileName", fn).Msg("could not read payload file")
				result.Failed[filepath.Base(fn)] = file.err.Error()
			case file.filtered:
				result.Filtered++
			case file.existing || staged[file.ticker]:
				result.Existing++
			case file.err != nil:
				log.Warn().Err(file.err).Str("Ticker", file.ticker).Str("FileName", fn).Msg("could not sanitize payload")
				result.Failed[file.ticker] = file.err.Error()
			default:
				if err := source.Save(ctx, db, file.ticker, file.doc, now); err != nil {
					log.Error().Err(err).Str("Ticker", file.ticker).Msg("could not stage payload")
					result.Failed[file.ticker] = err.Error()
					continue
				}

				staged[file.ticker] = true
				result.Staged = append(result.Staged, file.ticker)
				log.Debug().Str("Ticker", file.ticker).Int("NumBytes", len(file.doc)).Msg("staged payload")
			}
		}
	}

	if opts.OutputFile != "" {
		if err := WriteSymbols(opts.OutputFile, result.Staged); err != nil {
			return result, err
		}
	}

	return result, nil
}
