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

import (
	"fmt"

	"github.com/stockparfait/errors"
)

// GroupName is the name of the i'th repeated column with the given base name,
// following the CSV header deduplication convention: "Name", "Name.1",
// "Name.2", etc.
func GroupName(base string, i int) string {
	if i == 0 {
		return base
	}
	return fmt.Sprintf("%s.%d", base, i)
}

// UniqueHeader renames repeated column names, so the second occurrence of
// "Name" becomes "Name.1", the third "Name.2", and so on.
func UniqueHeader(header []string) []string {
	res := make([]string, len(header))
	used := make(map[string]bool)
	counts := make(map[string]int)
	for i, h := range header {
		name := h
		if used[name] {
			n := counts[h]
			for used[name] {
				n++
				name = GroupName(h, n)
			}
			counts[h] = n
		}
		used[name] = true
		res[i] = name
	}
	return res
}

// ColumnGroups is the result of discovering repeated (value, label) column
// pairs.
type ColumnGroups struct {
	Renames map[string]string // value column -> prefixed label
	Labels  []string          // label columns to drop, in discovery order
	Values  []string          // value columns, in discovery order
}

// DiscoverColumnGroups scans the header for (value, label) pairs with the
// base names valueBase and labelBase, at suffix index 0, 1, 2, ... and stops
// at the first index where either column is absent, even if a later index
// would match. The new name of each value column is prefix + the label found
// in the first row.
//
// The label is assumed to be the same in every row; see
// VerifyColumnGroupLabels.
func DiscoverColumnGroups(t *Table, valueBase, labelBase, prefix string) ColumnGroups {
	g := ColumnGroups{Renames: make(map[string]string)}
	for i := 0; ; i++ {
		vc := GroupName(valueBase, i)
		lc := GroupName(labelBase, i)
		li := t.ColumnIndex(lc)
		if !t.Has(vc) || li < 0 {
			break
		}
		label := ""
		if len(t.Rows) > 0 {
			label = FormatValue(t.Rows[0][li])
		}
		g.Renames[vc] = prefix + label
		g.Labels = append(g.Labels, lc)
		g.Values = append(g.Values, vc)
	}
	return g
}

// VerifyColumnGroupLabels checks that each label column of the groups holds
// the same label in every row.
func VerifyColumnGroupLabels(t *Table, g ColumnGroups) error {
	for _, lc := range g.Labels {
		li := t.ColumnIndex(lc)
		if li < 0 {
			return errors.Reason("no such column: '%s'", lc)
		}
		for j, r := range t.Rows {
			if r[li] != t.Rows[0][li] {
				return errors.Reason("label column '%s' row %d: '%s' != '%s'",
					lc, j, FormatValue(r[li]), FormatValue(t.Rows[0][li]))
			}
		}
	}
	return nil
}

// RemapColumnGroups returns a copy of the table with the discovered value
// columns renamed and the label columns dropped.
func RemapColumnGroups(t *Table, valueBase, labelBase, prefix string) (*Table, ColumnGroups) {
	g := DiscoverColumnGroups(t, valueBase, labelBase, prefix)
	res := t.Copy()
	res.Drop(g.Labels...)
	res.Rename(g.Renames)
	return res, g
}
