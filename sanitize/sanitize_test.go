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
package sanitize_test

import (
	"math"
	"time"

	"github.com/goccy/go-json"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/penny-vault/pvfinancials/sanitize"
)

type tickerName string

type quarter struct {
	Year int
	Q    int
}

func (q quarter) String() string {
	return "Q" + string(rune('0'+q.Q))
}

var _ = Describe("Value", func() {
	DescribeTable("scalars",
		func(in any, expected any) {
			if expected == nil {
				Expect(sanitize.Value(in)).To(BeNil())
				return
			}
			Expect(sanitize.Value(in)).To(Equal(expected))
		},
		Entry("nil", nil, nil),
		Entry("NaN", math.NaN(), nil),
		Entry("positive infinity", math.Inf(1), nil),
		Entry("negative infinity", float32(math.Inf(-1)), nil),
		Entry("finite float", 1.5, 1.5),
		Entry("float32 widens", float32(0.25), 0.25),
		Entry("int8", int8(-3), int64(-3)),
		Entry("uint16", uint16(7), int64(7)),
		Entry("huge uint64", uint64(math.MaxUint64), uint64(math.MaxUint64)),
		Entry("bool", true, true),
		Entry("string", "AAPL", "AAPL"),
		Entry("named string", tickerName("MSFT"), "MSFT"),
		Entry("integer json.Number", json.Number("42"), int64(42)),
		Entry("fractional json.Number", json.Number("4.5"), 4.5),
		Entry("bytes", []byte("héllo"), "héllo"),
		Entry("invalid utf-8 bytes", []byte{'a', 0xff, 'b'}, "a�b"),
		Entry("stringer", quarter{Year: 2023, Q: 3}, "Q3"),
	)

	It("formats times as RFC 3339 and treats local times as UTC", func() {
		ts := time.Date(2023, 12, 31, 10, 30, 0, 0, time.UTC)
		Expect(sanitize.Value(ts)).To(Equal("2023-12-31T10:30:00Z"))

		est := time.FixedZone("EST", -5*3600)
		Expect(sanitize.Value(ts.In(est))).To(Equal("2023-12-31T05:30:00-05:00"))

		local := time.Date(2023, 12, 31, 10, 30, 0, 0, time.Local)
		Expect(sanitize.Value(local)).To(Equal(local.UTC().Format(time.RFC3339Nano)))

		Expect(sanitize.Value(time.Time{})).To(BeNil())
	})

	It("stringifies map keys and recurses into values", func() {
		in := map[any]any{
			2023:   math.NaN(),
			"name": []byte("Acme"),
			1.5:    []float64{1, math.Inf(1)},
		}

		Expect(sanitize.Value(in)).To(Equal(map[string]any{
			"2023": nil,
			"name": "Acme",
			"1.5":  []any{float64(1), nil},
		}))
	})

	It("turns sets and arrays into ordered slices", func() {
		Expect(sanitize.Value([2]int{1, 2})).To(Equal([]any{int64(1), int64(2)}))
		Expect(sanitize.Value(map[string]struct{}{"a": {}})).To(Equal(map[string]any{"a": "{}"}))
	})

	It("dereferences pointers and maps nil pointers to nil", func() {
		f := 3.25
		var missing *float64

		Expect(sanitize.Value(&f)).To(Equal(3.25))
		Expect(sanitize.Value(missing)).To(BeNil())
	})

	It("is idempotent", func() {
		in := map[string]any{
			"info": map[string]any{
				"longName":  "Acme Corp",
				"employees": uint32(1200),
				"listed":    time.Date(1999, 1, 2, 0, 0, 0, 0, time.UTC),
			},
			"cashflow": map[string]any{
				"yearly": map[string]any{
					"2023-12-31 00:00:00": map[string]any{
						"FreeCashFlow": 100.0,
						"CapEx":        math.NaN(),
					},
				},
			},
			"raw": []byte{0xfe, 'x'},
			"q":   quarter{Year: 2023, Q: 1},
		}

		once := sanitize.Value(in)
		Expect(sanitize.Value(once)).To(Equal(once))
	})

	It("produces values that round-trip through JSON", func() {
		in := map[string]any{
			"a": 1.25,
			"b": math.NaN(),
			"c": []any{"x", true, int64(3)},
		}

		out := sanitize.Value(in)
		encoded, err := json.Marshal(out)
		Expect(err).NotTo(HaveOccurred())

		var decoded map[string]any
		Expect(json.Unmarshal(encoded, &decoded)).To(Succeed())
		Expect(decoded).To(Equal(map[string]any{
			"a": 1.25,
			"b": nil,
			"c": []any{"x", true, float64(3)},
		}))
	})

	Context("self-referencing values", func() {
		It("replaces a map that contains itself", func() {
			m := map[string]any{"name": "ACME"}
			m["self"] = m

			Expect(sanitize.Value(m)).To(Equal(map[string]any{
				"name": "ACME",
				"self": sanitize.Cycle,
			}))
		})

		It("replaces a slice that contains itself", func() {
			s := make([]any, 2)
			s[0] = 1
			s[1] = s

			Expect(sanitize.Value(s)).To(Equal([]any{int64(1), sanitize.Cycle}))
		})

		It("replaces a pointer cycle", func() {
			type node struct {
				Next *node
			}
			var head any
			p := &head
			head = p

			Expect(sanitize.Value(p)).To(Equal(sanitize.Cycle))

			n := &node{}
			n.Next = n
			Expect(func() { sanitize.Value(n) }).NotTo(Panic())
			Expect(sanitize.Value(n)).To(BeAssignableToTypeOf(""))
		})

		It("expands a value shared by two branches", func() {
			shared := map[string]any{"v": 1.5}
			doc := map[string]any{"a": shared, "b": shared}

			Expect(sanitize.Value(doc)).To(Equal(map[string]any{
				"a": map[string]any{"v": 1.5},
				"b": map[string]any{"v": 1.5},
			}))
		})

		It("returns a cycle free result that round-trips through JSON", func() {
			m := map[string]any{}
			m["loop"] = []any{m}

			out := sanitize.Value(m)
			Expect(sanitize.Value(out)).To(Equal(out))
			_, err := json.Marshal(out)
			Expect(err).NotTo(HaveOccurred())
		})
	})
})
