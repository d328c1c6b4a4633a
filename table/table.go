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

// Package table implements a small row-oriented table with a shared column
// schema, used to normalize heterogeneous upstream payloads.
//
// A table cell is a Value: one of nil (missing), string, int64, float64, bool,
// time.Time, or any fmt.Stringer. Each column additionally carries a Kind,
// which records the type all of its non-missing values share.
package table

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/stockparfait/errors"
	"golang.org/x/exp/slices"
)

// Value is an arbitrary value of a table cell. nil means missing.
type Value = any

// Kind of the values in a column.
type Kind uint8

// Values of Kind. KindAny is used for columns of unknown or mixed type.
const (
	KindAny Kind = iota
	KindString
	KindInt
	KindFloat
	KindBool
	KindTime
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindTime:
		return "time"
	}
	return "any"
}

// Row of a Table. Its length must equal the number of columns.
type Row []Value

// FormatValue is the string representation of a cell.
func FormatValue(v Value) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.Format(time.RFC3339)
	}
	return fmt.Sprint(v)
}

// CSV is an encoding/csv compatible row representation.
func (r Row) CSV() []string {
	res := make([]string, len(r))
	for i, v := range r {
		res[i] = FormatValue(v)
	}
	return res
}

// Table container.
//
// All rows share the same columns in the same order. Index optionally names
// the column holding the market time unit (MTU) of each row.
type Table struct {
	Header []string
	Kinds  []Kind // same length as Header
	Rows   []Row
	Index  string // optional index column name
}

// NewTable creates a new empty Table with the given columns of KindAny.
func NewTable(header ...string) *Table {
	return &Table{Header: header, Kinds: make([]Kind, len(header))}
}

// AddRow adds one or more rows to the table. Rows must have the same length as
// the header.
func (t *Table) AddRow(rows ...Row) {
	t.Rows = append(t.Rows, rows...)
}

// Len is the number of rows.
func (t *Table) Len() int { return len(t.Rows) }

// Copy creates a copy of the table. Rows are copied shallowly, i.e. the cell
// values are shared, but modifying a row of the copy does not affect t.
func (t *Table) Copy() *Table {
	t2 := &Table{
		Header: slices.Clone(t.Header),
		Kinds:  slices.Clone(t.Kinds),
		Rows:   make([]Row, len(t.Rows)),
		Index:  t.Index,
	}
	for i, r := range t.Rows {
		t2.Rows[i] = slices.Clone(r)
	}
	return t2
}

// ColumnIndex returns the position of the column, or -1.
func (t *Table) ColumnIndex(name string) int {
	return slices.Index(t.Header, name)
}

// Has checks if the table has the column.
func (t *Table) Has(name string) bool {
	return t.ColumnIndex(name) >= 0
}

// Column returns a copy of the column values.
func (t *Table) Column(name string) ([]Value, error) {
	i := t.ColumnIndex(name)
	if i < 0 {
		return nil, errors.Reason("no such column: '%s'", name)
	}
	res := make([]Value, len(t.Rows))
	for j, r := range t.Rows {
		res[j] = r[i]
	}
	return res, nil
}

// SetColumn replaces the values and the kind of an existing column.
func (t *Table) SetColumn(name string, kind Kind, values []Value) error {
	i := t.ColumnIndex(name)
	if i < 0 {
		return errors.Reason("no such column: '%s'", name)
	}
	if len(values) != len(t.Rows) {
		return errors.Reason("column '%s' has %d values, table has %d rows",
			name, len(values), len(t.Rows))
	}
	for j, v := range values {
		t.Rows[j][i] = v
	}
	t.Kinds[i] = kind
	return nil
}

// AddColumn appends a new column. It replaces the column if it already exists,
// keeping its position.
func (t *Table) AddColumn(name string, kind Kind, values []Value) error {
	if t.Has(name) {
		return t.SetColumn(name, kind, values)
	}
	if len(values) != len(t.Rows) {
		return errors.Reason("column '%s' has %d values, table has %d rows",
			name, len(values), len(t.Rows))
	}
	t.Header = append(t.Header, name)
	t.Kinds = append(t.Kinds, kind)
	for j, v := range values {
		t.Rows[j] = append(t.Rows[j], v)
	}
	return nil
}

// Rename columns in place according to the {old -> new} map. Names that are not
// in the table are ignored.
func (t *Table) Rename(names map[string]string) {
	for i, h := range t.Header {
		if n, ok := names[h]; ok {
			t.Header[i] = n
		}
	}
	if n, ok := names[t.Index]; ok {
		t.Index = n
	}
}

// RenameFunc renames every column with f.
func (t *Table) RenameFunc(f func(string) string) {
	for i, h := range t.Header {
		t.Header[i] = f(h)
	}
	if t.Index != "" {
		t.Index = f(t.Index)
	}
}

// Select returns a new table with only the given columns in the given order.
func (t *Table) Select(columns ...string) (*Table, error) {
	idx := make([]int, len(columns))
	t2 := &Table{Header: slices.Clone(columns), Kinds: make([]Kind, len(columns))}
	for i, c := range columns {
		idx[i] = t.ColumnIndex(c)
		if idx[i] < 0 {
			return nil, errors.Reason("no such column: '%s'", c)
		}
		t2.Kinds[i] = t.Kinds[idx[i]]
		if c == t.Index {
			t2.Index = c
		}
	}
	t2.Rows = make([]Row, len(t.Rows))
	for j, r := range t.Rows {
		row := make(Row, len(idx))
		for i, k := range idx {
			row[i] = r[k]
		}
		t2.Rows[j] = row
	}
	return t2, nil
}

// Drop removes the columns in place. Missing columns are ignored.
func (t *Table) Drop(columns ...string) {
	keep := []string{}
	for _, h := range t.Header {
		if !slices.Contains(columns, h) {
			keep = append(keep, h)
		}
	}
	if len(keep) == len(t.Header) {
		return
	}
	t2, _ := t.Select(keep...) // cannot fail: all columns exist
	*t = *t2
}

// Filter keeps only the rows for which f returns true.
func (t *Table) Filter(f func(r Row) bool) {
	rows := t.Rows[:0]
	for _, r := range t.Rows {
		if f(r) {
			rows = append(rows, r)
		}
	}
	t.Rows = rows
}

// Concat appends the rows of the other tables, which must have the same
// header. Column kinds that disagree become KindAny, except that an empty
// table never changes the kinds.
func Concat(tables ...*Table) (*Table, error) {
	if len(tables) == 0 {
		return NewTable(), nil
	}
	res := tables[0].Copy()
	for n, t := range tables[1:] {
		if !slices.Equal(res.Header, t.Header) {
			return nil, errors.Reason("table %d header %v differs from %v",
				n+1, t.Header, res.Header)
		}
		for i, k := range t.Kinds {
			switch {
			case len(t.Rows) == 0:
			case len(res.Rows) == 0:
				res.Kinds[i] = k
			case res.Kinds[i] != k:
				res.Kinds[i] = KindAny
			}
		}
		for _, r := range t.Rows {
			res.Rows = append(res.Rows, slices.Clone(r))
		}
	}
	return res, nil
}

// SetIndex designates an existing column as the index of the table.
func (t *Table) SetIndex(name string) error {
	if !t.Has(name) {
		return errors.Reason("no such column: '%s'", name)
	}
	t.Index = name
	return nil
}

// SortByIndex stably sorts the rows by the index column. Only time.Time and
// numeric index values are supported; missing values go first.
func (t *Table) SortByIndex() error {
	i := t.ColumnIndex(t.Index)
	if i < 0 {
		return errors.Reason("table has no index")
	}
	var err error
	sort.SliceStable(t.Rows, func(a, b int) bool {
		less, e := lessValue(t.Rows[a][i], t.Rows[b][i])
		if e != nil && err == nil {
			err = e
		}
		return less
	})
	return err
}

func lessValue(a, b Value) (bool, error) {
	if a == nil {
		return b != nil, nil
	}
	if b == nil {
		return false, nil
	}
	switch x := a.(type) {
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Before(y), nil
		}
	case int64:
		if y, ok := b.(int64); ok {
			return x < y, nil
		}
	case float64:
		if y, ok := b.(float64); ok {
			return x < y, nil
		}
	case string:
		if y, ok := b.(string); ok {
			return x < y, nil
		}
	}
	return false, errors.Reason("cannot compare %T with %T", a, b)
}

// Params are parameters for pretty-printing or CSV export of Table data.
type Params struct {
	Rows        int  // max. number of rows to write; 0 = unlimited (default)
	NoHeader    bool // whether to print the header, default - yes
	MaxColWidth int  // for WriteText only; 0 = unlimited, otherwise must be >= 4
}

// WriteCSV writes the entire table to w in CSV format.
func (t *Table) WriteCSV(w io.Writer, p Params) error {
	cw := csv.NewWriter(w)
	if !p.NoHeader && len(t.Header) > 0 {
		if err := cw.Write(t.Header); err != nil {
			return errors.Annotate(err, "failed to write header")
		}
	}
	for i, r := range t.Rows {
		if p.Rows > 0 && i >= p.Rows {
			break
		}
		if err := cw.Write(r.CSV()); err != nil {
			return errors.Annotate(err, "failed to write row")
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return errors.Annotate(err, "failed to flush written rows")
	}
	return nil
}

// WriteText writes the table as a text formatted for ease of reading.
func (t *Table) WriteText(w io.Writer, p Params) error {
	if p.MaxColWidth != 0 && p.MaxColWidth < 4 {
		return errors.Reason("MaxColWidth [%d] must be 0 or >= 4", p.MaxColWidth)
	}
	widths := make([]int, len(t.Header))
	update := func(row []string) error {
		if len(row) != len(widths) {
			return errors.Reason("row size [%d] != expected size [%d]",
				len(row), len(widths))
		}
		for i := range widths {
			if l := len([]rune(row[i])); widths[i] < l {
				widths[i] = l
				if p.MaxColWidth > 0 && widths[i] > p.MaxColWidth {
					widths[i] = p.MaxColWidth
				}
			}
		}
		return nil
	}

	write := func(row []string) error {
		trimmed := make([]string, len(row))
		for i, s := range row {
			trimmed[i] = s
			if r := []rune(s); len(r) > widths[i] {
				trimmed[i] = string(r[:widths[i]-2]) + ".."
			}
			trimmed[i] = fmt.Sprintf("%[2]*[1]s", trimmed[i], widths[i])
		}
		_, err := fmt.Fprintf(w, "%s\n", strings.Join(trimmed, " | "))
		return err
	}

	dashedRow := func() []string {
		row := make([]string, len(widths))
		for i, w := range widths {
			row[i] = strings.Repeat("-", w)
		}
		return row
	}

	if !p.NoHeader {
		if err := update(t.Header); err != nil {
			return errors.Annotate(err, "failed to update header widths")
		}
	}
	for i, r := range t.Rows {
		if p.Rows > 0 && i >= p.Rows {
			break
		}
		if err := update(r.CSV()); err != nil {
			return errors.Annotate(err, "failed to update row widths")
		}
	}

	if !p.NoHeader && len(t.Header) > 0 {
		if err := write(t.Header); err != nil {
			return errors.Annotate(err, "failed to write header")
		}
		if err := write(dashedRow()); err != nil {
			return errors.Annotate(err, "failed to write header separator")
		}
	}
	for i, r := range t.Rows {
		if p.Rows > 0 && i >= p.Rows {
			break
		}
		if err := write(r.CSV()); err != nil {
			return errors.Annotate(err, "failed to write row")
		}
	}
	return nil
}
