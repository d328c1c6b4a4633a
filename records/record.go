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

// Package records decodes upstream JSON records preserving their field order
// and flattens nested records into tables.
package records

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/jao/table"
	"golang.org/x/exp/slices"
)

// Record is a JSON object which remembers the order of its fields.
//
// Values are nil, string, bool, int64, float64, *Record for nested objects,
// and []any for arrays of those.
type Record struct {
	keys   []string
	values map[string]any
}

var _ table.Record = &Record{}
var _ json.Marshaler = &Record{}
var _ json.Unmarshaler = &Record{}

// NewRecord creates an empty Record.
func NewRecord() *Record {
	return &Record{values: make(map[string]any)}
}

// Keys of the record in their original order.
func (r *Record) Keys() []string { return slices.Clone(r.keys) }

// Len is the number of fields.
func (r *Record) Len() int { return len(r.keys) }

// Get the value of a field.
func (r *Record) Get(key string) (any, bool) {
	v, ok := r.values[key]
	return v, ok
}

// Set the value of a field. A new field is appended at the end.
func (r *Record) Set(key string, value any) *Record {
	if r.values == nil {
		r.values = make(map[string]any)
	}
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = value
	return r
}

// Delete a field, if present.
func (r *Record) Delete(key string) {
	if _, ok := r.values[key]; !ok {
		return
	}
	delete(r.values, key)
	i := slices.Index(r.keys, key)
	r.keys = slices.Delete(r.keys, i, i+1)
}

func number(n json.Number) any {
	if i, err := strconv.ParseInt(string(n), 10, 64); err == nil {
		return i
	}
	f, _ := n.Float64() // the decoder validated the literal
	return f
}

func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, errors.Annotate(err, "failed to read JSON token")
	}
	switch x := tok.(type) {
	case json.Delim:
		switch x {
		case '{':
			return decodeObject(dec)
		case '[':
			return decodeArray(dec)
		}
		return nil, errors.Reason("unexpected delimiter '%s'", x)
	case json.Number:
		return number(x), nil
	}
	return tok, nil
}

// decodeObject after its opening brace.
func decodeObject(dec *json.Decoder) (*Record, error) {
	r := NewRecord()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, errors.Annotate(err, "failed to read object key")
		}
		key, ok := tok.(string)
		if !ok {
			return nil, errors.Reason("object key is not a string: %v", tok)
		}
		v, err := decodeValue(dec)
		if err != nil {
			return nil, errors.Annotate(err, "field '%s'", key)
		}
		r.Set(key, v)
	}
	if _, err := dec.Token(); err != nil {
		return nil, errors.Annotate(err, "failed to close object")
	}
	return r, nil
}

// decodeArray after its opening bracket.
func decodeArray(dec *json.Decoder) ([]any, error) {
	res := []any{}
	for dec.More() {
		v, err := decodeValue(dec)
		if err != nil {
			return nil, errors.Annotate(err, "element %d", len(res))
		}
		res = append(res, v)
	}
	if _, err := dec.Token(); err != nil {
		return nil, errors.Annotate(err, "failed to close array")
	}
	return res, nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Record) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return errors.Annotate(err, "failed to decode Record")
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return errors.Reason("Record JSON must be an object, got %v", tok)
	}
	res, err := decodeObject(dec)
	if err != nil {
		return errors.Annotate(err, "failed to decode Record")
	}
	*r = *res
	return nil
}

// MarshalJSON implements json.Marshaler.
func (r *Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, errors.Annotate(err, "failed to marshal key '%s'", k)
		}
		v, err := json.Marshal(r.values[k])
		if err != nil {
			return nil, errors.Annotate(err, "failed to marshal field '%s'", k)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ParseRecords decodes a JSON array of objects.
func ParseRecords(data []byte) ([]*Record, error) {
	var res []*Record
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, errors.Annotate(err, "failed to parse records")
	}
	return res, nil
}

// Table of the records with the union of their fields as columns.
func Table(recs []*Record) *table.Table {
	return table.FromRecords(recs)
}
