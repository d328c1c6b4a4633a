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

package export

import (
	"io"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/stockparfait/errors"
	"github.com/stockparfait/jao/table"
)

// parquetNode is the optional leaf of the column kind. Times are stored as
// UTC milliseconds, and untyped columns as strings.
func parquetNode(k table.Kind) parquet.Node {
	switch k {
	case table.KindInt:
		return parquet.Optional(parquet.Int(64))
	case table.KindFloat:
		return parquet.Optional(parquet.Leaf(parquet.DoubleType))
	case table.KindBool:
		return parquet.Optional(parquet.Leaf(parquet.BooleanType))
	case table.KindTime:
		return parquet.Optional(parquet.Timestamp(parquet.Millisecond))
	}
	return parquet.Optional(parquet.String())
}

// parquetValue of a non-missing cell of the column kind.
func parquetValue(k table.Kind, v table.Value) parquet.Value {
	switch k {
	case table.KindInt:
		if x, ok := v.(int64); ok {
			return parquet.Int64Value(x)
		}
	case table.KindFloat:
		switch x := v.(type) {
		case float64:
			return parquet.DoubleValue(x)
		case int64:
			return parquet.DoubleValue(float64(x))
		}
	case table.KindBool:
		if x, ok := v.(bool); ok {
			return parquet.BooleanValue(x)
		}
	case table.KindTime:
		if x, ok := v.(time.Time); ok {
			return parquet.Int64Value(x.UnixMilli())
		}
	}
	return parquet.ByteArrayValue([]byte(table.FormatValue(v)))
}

// ParquetSchema of the table. Every column is optional.
func ParquetSchema(t *table.Table) *parquet.Schema {
	g := make(parquet.Group, len(t.Header))
	for i, h := range t.Header {
		g[h] = parquetNode(t.Kinds[i])
	}
	return parquet.NewSchema("table", g)
}

// WriteParquet writes the table as a single parquet file.
func WriteParquet(w io.Writer, t *table.Table) error {
	if len(t.Header) == 0 {
		return errors.Reason("cannot write a table without columns")
	}
	schema := ParquetSchema(t)
	// Leaf columns are ordered by name in the schema.
	leaf := make(map[string]int)
	for i, f := range schema.Fields() {
		leaf[f.Name()] = i
	}
	pw := parquet.NewWriter(w, schema)
	rows := make([]parquet.Row, len(t.Rows))
	for j, r := range t.Rows {
		row := make(parquet.Row, len(r))
		for i, v := range r {
			c := leaf[t.Header[i]]
			if v == nil {
				row[c] = parquet.NullValue().Level(0, 0, c)
			} else {
				row[c] = parquetValue(t.Kinds[i], v).Level(0, 1, c)
			}
		}
		rows[j] = row
	}
	if _, err := pw.WriteRows(rows); err != nil {
		return errors.Annotate(err, "failed to write parquet rows")
	}
	if err := pw.Close(); err != nil {
		return errors.Annotate(err, "failed to close parquet writer")
	}
	return nil
}
