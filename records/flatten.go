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

package records

import (
	"strings"
	"unicode"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/jao/table"
	"golang.org/x/exp/slices"
)

// ErrMalformedNestedRecord is the data shape error of a record without its
// nested collection, or with an empty one.
var ErrMalformedNestedRecord = errors.Reason("nested record is missing or empty")

// FlattenSpec configures Flatten.
type FlattenSpec struct {
	Nested  string            // field with the nested collection
	Prefix  string            // prepended to the nested keys
	Keep    string            // columns containing it keep their casing
	Drop    []string          // output columns to remove
	Renames map[string]string // output column renames, applied last
}

// FinalDomain flattens the first contingency of the final flow-based domain
// records. "id" is renamed so it cannot be confused with the MTU column.
var FinalDomain = FlattenSpec{
	Nested:  "contingencies",
	Prefix:  "contingency_",
	Keep:    "ptdf",
	Drop:    []string{"contingency_number"},
	Renames: map[string]string{"id": "id_original"},
}

// ToSnakeCase converts camelCase to snake_case: an underscore is inserted
// before every upper case letter except the first one, and the result is lower
// cased.
func ToSnakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if i > 0 && unicode.IsUpper(r) {
			b.WriteByte('_')
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

func (s FlattenSpec) columnName(key string) string {
	if s.Keep != "" && strings.Contains(key, s.Keep) {
		return key
	}
	return ToSnakeCase(key)
}

func (s FlattenSpec) outputName(key string) string {
	name := s.columnName(key)
	if n, ok := s.Renames[name]; ok {
		return n
	}
	return name
}

// firstNested element of the nested collection of r.
func (s FlattenSpec) firstNested(r *Record) (*Record, error) {
	v, ok := r.Get(s.Nested)
	if !ok {
		return nil, errors.Annotate(ErrMalformedNestedRecord, "no field '%s'", s.Nested)
	}
	list, ok := v.([]any)
	if !ok || len(list) == 0 {
		return nil, errors.Annotate(ErrMalformedNestedRecord, "field '%s' is not a non-empty list", s.Nested)
	}
	first, ok := list[0].(*Record)
	if !ok {
		return nil, errors.Annotate(ErrMalformedNestedRecord,
			"field '%s' is not a list of objects", s.Nested)
	}
	return first, nil
}

// flat record of r: the fields of the first nested element replace the nested
// field at its position. Keys are not renamed.
func (s FlattenSpec) flat(r *Record) (*Record, error) {
	nested, err := s.firstNested(r)
	if err != nil {
		return nil, err
	}
	res := NewRecord()
	for _, k := range r.keys {
		if k != s.Nested {
			res.Set(k, r.values[k])
			continue
		}
		for _, nk := range nested.keys {
			res.Set(s.Prefix+nk, nested.values[nk])
		}
	}
	return res, nil
}

// Flatten records with one nested collection into a table. Only the first
// element of each collection is used, the rest are ignored as irrelevant.
//
// The columns come from the first record: the keys of its first nested
// element are spliced in at the nested field position, and fields missing
// from the first record are not included. Column names are converted to
// snake_case, except those containing fs.Keep.
func Flatten(recs []*Record, fs FlattenSpec) (*table.Table, error) {
	flats := make([]*Record, len(recs))
	for i, r := range recs {
		f, err := fs.flat(r)
		if err != nil {
			return nil, errors.Annotate(err, "record %d", i)
		}
		out := NewRecord()
		for _, k := range f.keys {
			name := fs.columnName(k)
			if slices.Contains(fs.Drop, name) {
				continue
			}
			out.Set(fs.outputName(k), f.values[k])
		}
		flats[i] = out
	}
	if len(flats) == 0 {
		return table.NewTable(), nil
	}
	t, err := table.FromRecords(flats).Select(flats[0].keys...)
	if err != nil {
		return nil, errors.Annotate(err, "failed to order columns")
	}
	return t, nil
}

// Unflatten nests the prefixed columns of a table created by Flatten back
// into a one element collection. The nested field takes the position of the
// first prefixed column. Key casing is not restored.
func Unflatten(t *table.Table, fs FlattenSpec) []*Record {
	original := make(map[string]string, len(fs.Renames))
	for k, v := range fs.Renames {
		original[v] = k
	}
	res := make([]*Record, len(t.Rows))
	for j, row := range t.Rows {
		r := NewRecord()
		var nested *Record
		for i, name := range t.Header {
			if k, ok := original[name]; ok {
				name = k
			}
			if !strings.HasPrefix(name, fs.Prefix) {
				r.Set(name, row[i])
				continue
			}
			if nested == nil {
				nested = NewRecord()
				r.Set(fs.Nested, []any{nested})
			}
			nested.Set(strings.TrimPrefix(name, fs.Prefix), row[i])
		}
		res[j] = r
	}
	return res
}
