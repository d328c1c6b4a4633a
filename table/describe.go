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
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Numbers extracts the non-missing numeric values of a column as float64.
// NaN values are skipped.
func Numbers(values []Value) []float64 {
	res := []float64{}
	for _, v := range values {
		switch x := v.(type) {
		case int64:
			res = append(res, float64(x))
		case int:
			res = append(res, float64(x))
		case float64:
			if !math.IsNaN(x) {
				res = append(res, x)
			}
		}
	}
	return res
}

// Describe summarizes the numeric columns of t: one row per column with the
// number of values, mean, standard deviation, min and max.
func Describe(t *Table) *Table {
	res := NewTable("column", "count", "mean", "std", "min", "max")
	res.Kinds = []Kind{KindString, KindInt, KindFloat, KindFloat, KindFloat, KindFloat}
	for i, h := range t.Header {
		if t.Kinds[i] != KindInt && t.Kinds[i] != KindFloat {
			continue
		}
		values, _ := t.Column(h) // h is always present
		xs := Numbers(values)
		row := Row{h, int64(len(xs)), nil, nil, nil, nil}
		if len(xs) > 0 {
			row[2] = stat.Mean(xs, nil)
			row[4] = floats.Min(xs)
			row[5] = floats.Max(xs)
		}
		if len(xs) > 1 {
			row[3] = stat.StdDev(xs, nil)
		}
		res.AddRow(row)
	}
	return res
}
