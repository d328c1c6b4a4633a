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
	"strconv"
	"strings"
	"time"

	"github.com/stockparfait/errors"
)

// ErrUncastableColumn is returned in the strict mode when a column looks
// boolean by its first value, but a later value is not "true" or "false".
var ErrUncastableColumn = errors.Reason("column cannot be cast to its inferred type")

// InferOptions configure type inference.
type InferOptions struct {
	// StrictBool makes a failed boolean cast an error. By default, such a column
	// falls back to strings, same as a failed numeric cast.
	StrictBool bool
}

func parseInt(s string) (int64, bool) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	return v, err == nil
}

func parseFloat(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return v, err == nil
}

// kindOf a non-string value which is already typed.
func kindOf(v Value) Kind {
	switch v.(type) {
	case int64, int:
		return KindInt
	case float64:
		return KindFloat
	case bool:
		return KindBool
	case time.Time:
		return KindTime
	case string:
		return KindString
	}
	return KindAny
}

// fillStrings is the fallback representation: missing values become "".
func fillStrings(values []Value) []Value {
	res := make([]Value, len(values))
	for i, v := range values {
		if v == nil {
			res[i] = ""
		} else {
			res[i] = v
		}
	}
	return res
}

// castAll applies cast to every value; the first failure rejects the whole
// column.
func castAll(values []Value, cast func(v Value) (Value, bool)) ([]Value, bool) {
	res := make([]Value, len(values))
	for i, v := range values {
		c, ok := cast(v)
		if !ok {
			return nil, false
		}
		res[i] = c
	}
	return res, true
}

func castInt(v Value) (Value, bool) {
	s, ok := v.(string)
	if !ok {
		return nil, false // includes missing values
	}
	i, ok := parseInt(s)
	return i, ok
}

func castFloat(v Value) (Value, bool) {
	if v == nil {
		return nil, true
	}
	s, ok := v.(string)
	if !ok {
		return nil, false
	}
	f, ok := parseFloat(s)
	return f, ok
}

func castBool(v Value) (Value, bool) {
	switch v {
	case "true":
		return true, true
	case "false":
		return false, true
	}
	return nil, false
}

// InferColumn infers the type of a column of strings from its first
// non-missing value and casts the whole column to it. The result is a new
// slice; values is not modified.
//
// An entirely missing column becomes a missing float column. A column whose
// first value is not a string is considered already typed and is returned
// as is. A failed cast leaves the values as strings with missing values set to
// "", which is also the result for columns that are neither numeric nor
// boolean.
func InferColumn(values []Value, opts InferOptions) ([]Value, Kind, error) {
	var first Value
	for _, v := range values {
		if v != nil {
			first = v
			break
		}
	}
	if first == nil {
		return make([]Value, len(values)), KindFloat, nil
	}
	s, ok := first.(string)
	if !ok {
		res := make([]Value, len(values))
		copy(res, values)
		return res, kindOf(first), nil
	}
	if _, ok := parseInt(s); ok {
		if res, ok := castAll(values, castInt); ok {
			return res, KindInt, nil
		}
		return fillStrings(values), KindString, nil
	}
	if _, ok := parseFloat(s); ok {
		if res, ok := castAll(values, castFloat); ok {
			return res, KindFloat, nil
		}
		return fillStrings(values), KindString, nil
	}
	if s == "true" || s == "false" {
		if res, ok := castAll(values, castBool); ok {
			return res, KindBool, nil
		}
		if opts.StrictBool {
			return nil, KindAny, ErrUncastableColumn
		}
	}
	return fillStrings(values), KindString, nil
}

// InferTypes returns a copy of the table with the given columns (default: all
// columns) converted by InferColumn.
func InferTypes(t *Table, opts InferOptions, columns ...string) (*Table, error) {
	if len(columns) == 0 {
		columns = t.Header
	}
	res := t.Copy()
	for _, c := range columns {
		values, err := res.Column(c)
		if err != nil {
			return nil, errors.Annotate(err, "failed to infer types")
		}
		typed, kind, err := InferColumn(values, opts)
		if err != nil {
			return nil, errors.Annotate(err, "failed to infer type of column '%s'", c)
		}
		if err := res.SetColumn(c, kind, typed); err != nil {
			return nil, errors.Annotate(err, "failed to set column '%s'", c)
		}
	}
	return res, nil
}
