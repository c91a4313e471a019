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
	"strings"
)

// MaxTextLength is the maximum number of characters kept by CleanText
const MaxTextLength = 200_000

// CleanText collapses whitespace runs to a single space, trims the ends and
// truncates the result to MaxTextLength characters. Nil is returned when
// nothing is left.
func CleanText(s string) *string {
	cleaned := strings.Join(strings.Fields(s), " ")
	if cleaned == "" {
		return nil
	}

	if len(cleaned) > MaxTextLength {
		runes := []rune(cleaned)
		if len(runes) > MaxTextLength {
			cleaned = string(runes[:MaxTextLength])
		}
	}

	return &cleaned
}
