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
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// child returns m[key] when it is a mapping, otherwise nil
func child(m map[string]any, key string) map[string]any {
	if m == nil {
		return nil
	}

	if v, ok := m[key].(map[string]any); ok {
		return v
	}

	return nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// scalarText renders a scalar payload value as text. Mappings, sequences and
// booleans are not text.
func scalarText(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case json.Number:
		return val.String(), true
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return "", false
		}
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case int:
		return strconv.Itoa(val), true
	case int64:
		return strconv.FormatInt(val, 10), true
	default:
		return "", false
	}
}

// firstString returns the first non-empty scalar stored under keys, as is
func firstString(m map[string]any, keys ...string) *string {
	for _, key := range keys {
		if s, ok := scalarText(m[key]); ok && s != "" {
			return &s
		}
	}
	return nil
}

// firstText returns the first value stored under keys that is non-empty
// after CleanText
func firstText(m map[string]any, keys ...string) *string {
	for _, key := range keys {
		if s, ok := scalarText(m[key]); ok {
			if cleaned := CleanText(s); cleaned != nil {
				return cleaned
			}
		}
	}
	return nil
}

// numericValue converts a metric value to a float. NaN, infinities and
// anything that is not a number become nil.
func numericValue(v any) *float64 {
	var f float64

	switch val := v.(type) {
	case float64:
		f = val
	case float32:
		f = float64(val)
	case int:
		f = float64(val)
	case int32:
		f = float64(val)
	case int64:
		f = float64(val)
	case uint64:
		f = float64(val)
	case json.Number:
		parsed, err := val.Float64()
		if err != nil {
			return nil
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}

	return &f
}
