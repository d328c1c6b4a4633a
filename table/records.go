// Copyright 2023 Stock Parfait

// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at

//     http://www.apache.org/licenses/LICENSE-2.0

// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package table

// Record is a field container with a stable field order.
type Record interface {
	Keys() []string
	Get(key string) (Value, bool)
}

// columnKind of the already typed column values. Integers mixed with floats
// are promoted to floats in place.
func columnKind(values []Value) Kind {
	kind := KindAny
	first := true
	for _, v := range values {
		if v == nil {
			continue
		}
		k := kindOf(v)
		switch {
		case first:
			kind = k
			first = false
		case kind == k:
		case kind == KindInt && k == KindFloat, kind == KindFloat && k == KindInt:
			kind = KindFloat
		default:
			return KindAny
		}
	}
	if kind == KindFloat {
		for i, v := range values {
			switch x := v.(type) {
			case int64:
				values[i] = float64(x)
			case int:
				values[i] = float64(x)
			}
		}
	}
	return kind
}

// FromRecords creates a table whose columns are the union of the record keys
// in the order of their first appearance. Absent fields are missing values.
func FromRecords[R Record](records []R) *Table {
	var header []string
	seen := make(map[string]bool)
	for _, r := range records {
		for _, k := range r.Keys() {
			if !seen[k] {
				seen[k] = true
				header = append(header, k)
			}
		}
	}
	t := NewTable(header...)
	for _, r := range records {
		row := make(Row, len(header))
		for i, k := range header {
			if v, ok := r.Get(k); ok {
				row[i] = v
			}
		}
		t.AddRow(row)
	}
	for _, name := range header {
		values, _ := t.Column(name)
		kind := columnKind(values)
		_ = t.SetColumn(name, kind, values) // same column and length
	}
	return t
}
