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

// Package payload decodes raw provider documents read back from the staging
// table. Decoding never fails: damaged documents are repaired when possible
// and replaced by an empty mapping otherwise.
package payload

import (
	"bytes"
	"strconv"
	"strings"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	"github.com/goccy/go-json"
	hjson "github.com/hjson/hjson-go/v4"
)

// Method records which decoding strategy produced a document
type Method string

const (
	MethodJSON          Method = "json"
	MethodDoubleEncoded Method = "double-encoded"
	MethodUnescaped     Method = "unescaped"
	MethodNonFinite     Method = "non-finite"
	MethodRepaired      Method = "repaired"
	MethodHjson         Method = "hjson"
	MethodEmpty         Method = "empty"
)

// Decode parses raw into a mapping. Strategies are tried in order: strict
// JSON, a JSON string holding JSON, a quoted and backslash-escaped document,
// JSON with bare NaN and Infinity literals, json-repair and finally Hjson. When all of them fail, or the document is
// not a mapping, an empty mapping is returned with MethodEmpty.
func Decode(raw []byte) (map[string]any, Method) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return map[string]any{}, MethodEmpty
	}

	text := strings.ToValidUTF8(string(raw), "�")

	var doc any
	if err := json.Unmarshal([]byte(text), &doc); err == nil {
		switch val := doc.(type) {
		case map[string]any:
			return val, MethodJSON
		case string:
			if m, ok := decodeMapping(val); ok {
				return m, MethodDoubleEncoded
			}
		}
	}

	if unescaped, ok := unescape(text); ok {
		if m, ok := decodeMapping(unescaped); ok {
			return m, MethodUnescaped
		}
	}

	if replaced, ok := nullNonFinite(text); ok {
		if m, ok := decodeMapping(replaced); ok {
			return m, MethodNonFinite
		}
	}

	if repaired, err := jsonrepair.RepairJSON(text); err == nil {
		if m, ok := decodeMapping(repaired); ok {
			return m, MethodRepaired
		}
	}

	var lenient any
	if err := hjson.Unmarshal([]byte(text), &lenient); err == nil {
		if m, ok := lenient.(map[string]any); ok {
			return m, MethodHjson
		}
	}

	return map[string]any{}, MethodEmpty
}

func decodeMapping(text string) (map[string]any, bool) {
	var m map[string]any
	if err := json.Unmarshal([]byte(text), &m); err != nil || m == nil {
		return nil, false
	}
	return m, true
}

// unescape strips surrounding double quotes and resolves backslash escapes
// such as \" and \u00e9
func unescape(text string) (string, bool) {
	inner := strings.Trim(text, `"`)
	if !strings.Contains(inner, `\`) {
		return "", false
	}

	unquoted, err := strconv.Unquote(`"` + inner + `"`)
	if err != nil {
		return "", false
	}

	return unquoted, true
}

var nonFiniteLiterals = []string{"-Infinity", "Infinity", "NaN"}

// nullNonFinite replaces the NaN, Infinity and -Infinity literals written by
// Python's json module with null. Text inside strings is left alone.
func nullNonFinite(text string) (string, bool) {
	var out strings.Builder
	out.Grow(len(text))

	inString := false
	escaped := false
	replaced := false

	for idx := 0; idx < len(text); idx++ {
		ch := text[idx]

		if inString {
			out.WriteByte(ch)
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}

		if ch == '"' {
			inString = true
			out.WriteByte(ch)
			continue
		}

		matched := false
		for _, literal := range nonFiniteLiterals {
			if strings.HasPrefix(text[idx:], literal) {
				out.WriteString("null")
				idx += len(literal) - 1
				matched = true
				replaced = true
				break
			}
		}

		if !matched {
			out.WriteByte(ch)
		}
	}

	return out.String(), replaced
}
