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

// Package sanitize rewrites arbitrary Go values into values that encode as
// strict JSON: no NaN or Infinity, plain numeric types, and string keys.
package sanitize

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

var (
	timeType   = reflect.TypeOf(time.Time{})
	numberType = reflect.TypeOf(json.Number(""))
	bytesType  = reflect.TypeOf([]byte(nil))
)

// Cycle replaces a map, slice or pointer that contains itself
const Cycle = "<cycle>"

// visit identifies a reference value on the path from the root
type visit struct {
	ptr uintptr
	typ reflect.Type
	len int
}

type walker struct {
	path map[visit]bool
}

// enter reports false when rv is already being walked. Callers that get
// true must call leave.
func (w *walker) enter(rv reflect.Value) (visit, bool) {
	v := visit{ptr: rv.Pointer(), typ: rv.Type()}
	if rv.Kind() == reflect.Slice {
		v.len = rv.Len()
	}
	if w.path[v] {
		return v, false
	}
	if w.path == nil {
		w.path = make(map[visit]bool)
	}
	w.path[v] = true
	return v, true
}

func (w *walker) leave(v visit) {
	delete(w.path, v)
}

// Value returns a JSON-safe copy of v. It never panics and the result is a
// fixed point: Value(Value(x)) is deeply equal to Value(x). A map, slice or
// pointer that refers back to itself is replaced by Cycle at the point of
// recursion.
//
// The output is composed only of nil, bool, int64, uint64, float64, string,
// []any and map[string]any.
func Value(v any) any {
	if v == nil {
		return nil
	}

	w := &walker{}
	return w.value(reflect.ValueOf(v))
}

func (w *walker) value(rv reflect.Value) any {
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil
		}
		if rv.Kind() == reflect.Pointer {
			v, ok := w.enter(rv)
			if !ok {
				return Cycle
			}
			defer w.leave(v)
		}
		rv = rv.Elem()
	}

	switch rv.Type() {
	case timeType:
		return timeValue(rv.Interface().(time.Time))
	case numberType:
		return numberValue(json.Number(rv.String()))
	case bytesType:
		if rv.IsNil() {
			return nil
		}
		return strings.ToValidUTF8(string(rv.Bytes()), "�")
	}

	switch rv.Kind() {
	case reflect.Bool:
		return rv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return u
		}
		return int64(u)
	case reflect.Float32, reflect.Float64:
		return floatValue(rv.Float())
	case reflect.String:
		if s, ok := stringer(rv); ok {
			return s
		}
		return rv.String()
	case reflect.Map:
		return w.mapValue(rv)
	case reflect.Slice:
		if rv.IsNil() {
			return nil
		}
		v, ok := w.enter(rv)
		if !ok {
			return Cycle
		}
		defer w.leave(v)
		return w.sliceValue(rv)
	case reflect.Array:
		return w.sliceValue(rv)
	}

	if s, ok := stringer(rv); ok {
		return s
	}

	return fmt.Sprint(safeInterface(rv))
}

func floatValue(f float64) any {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return f
}

func numberValue(n json.Number) any {
	if i, err := strconv.ParseInt(string(n), 10, 64); err == nil {
		return i
	}
	if u, err := strconv.ParseUint(string(n), 10, 64); err == nil {
		return u
	}
	f, err := strconv.ParseFloat(string(n), 64)
	if err != nil {
		if string(n) == "" {
			return nil
		}
		return string(n)
	}
	return floatValue(f)
}

func timeValue(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	if t.Location() == time.Local {
		t = t.UTC()
	}
	return t.Format(time.RFC3339Nano)
}

func (w *walker) mapValue(rv reflect.Value) any {
	if rv.IsNil() {
		return nil
	}

	v, ok := w.enter(rv)
	if !ok {
		return Cycle
	}
	defer w.leave(v)

	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[w.key(iter.Key())] = w.value(iter.Value())
	}

	return out
}

func (w *walker) sliceValue(rv reflect.Value) any {
	out := make([]any, rv.Len())
	for idx := 0; idx < rv.Len(); idx++ {
		out[idx] = w.value(rv.Index(idx))
	}
	return out
}

func (w *walker) key(rv reflect.Value) string {
	switch k := w.value(rv).(type) {
	case nil:
		return "null"
	case string:
		return k
	case float64:
		return strconv.FormatFloat(k, 'g', -1, 64)
	default:
		return fmt.Sprint(k)
	}
}

func stringer(rv reflect.Value) (string, bool) {
	if !rv.CanInterface() {
		return "", false
	}
	if s, ok := rv.Interface().(fmt.Stringer); ok {
		return s.String(), true
	}
	return "", false
}

// safeInterface returns something fmt can print even for values reached
// through unexported struct fields.
func safeInterface(rv reflect.Value) any {
	if rv.CanInterface() {
		return rv.Interface()
	}
	return rv.String()
}
