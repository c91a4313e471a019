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
package normalize

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/goccy/go-json"
	"github.com/penny-vault/pvfinancials/data"
)

var (
	ErrMissingIdentifier = errors.New("payload has no usable ticker")
)

// Profile builds the descriptive record of a company. The payload may be the
// full document with an info section or the info mapping itself. When
// tickerHint is blank the ticker is read from info.symbol or info.ticker;
// ErrMissingIdentifier is returned if neither is present.
func Profile(tickerHint string, payload map[string]any, now time.Time) (*data.Profile, error) {
	info := child(payload, "info")
	if len(info) == 0 {
		info = payload
	}

	ticker := strings.TrimSpace(tickerHint)
	if ticker == "" {
		if symbol := firstString(info, "symbol", "ticker"); symbol != nil {
			ticker = strings.TrimSpace(*symbol)
		}
	}

	if ticker == "" {
		return nil, ErrMissingIdentifier
	}

	summary := firstText(info, "longBusinessSummary")
	if summary == nil {
		summary = firstText(payload, "summary")
	}
	if summary == nil {
		summary = firstText(child(payload, "profile"), "longBusinessSummary")
	}

	profile := &data.Profile{
		Ticker:      ticker,
		Name:        firstText(info, "longName", "shortName", "displayName", "name"),
		LongSummary: summary,
		Sector:      firstText(info, "sector", "sectorDisp"),
		Industry:    firstText(info, "industry", "industryDisp"),
		Website:     firstText(info, "website", "irWebsite"),
		Employees:   EmployeeCount(info["fullTimeEmployees"]),
		City:        firstText(info, "city"),
		State:       firstText(info, "state", "province"),
		Country:     firstText(info, "country"),
		Currency:    firstText(info, "currency", "financialCurrency"),
		UpdatedAt:   now,
	}

	if summary != nil {
		Enrich(*summary).MergeInto(profile)
	}

	return profile, nil
}

// EmployeeCount converts a raw headcount to an integer. Strings keep only
// their digits ("12,000 employees" is 12000), floats are truncated, and
// anything else, including NaN and values that do not fit, is nil.
func EmployeeCount(v any) *int32 {
	var count int64

	switch val := v.(type) {
	case string:
		digits := strings.Map(func(r rune) rune {
			if r < unicode.MaxASCII && unicode.IsDigit(r) {
				return r
			}
			return -1
		}, val)

		parsed, err := strconv.ParseInt(digits, 10, 64)
		if err != nil {
			return nil
		}
		count = parsed
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return nil
		}
		if val > math.MaxInt32 || val < math.MinInt32 {
			return nil
		}
		count = int64(val)
	case int:
		count = int64(val)
	case int64:
		count = val
	case json.Number:
		if parsed, err := val.Int64(); err == nil {
			count = parsed
		} else if f, err := val.Float64(); err == nil {
			return EmployeeCount(f)
		} else {
			return nil
		}
	default:
		return nil
	}

	if count > math.MaxInt32 || count < math.MinInt32 {
		return nil
	}

	employees := int32(count)
	return &employees
}
