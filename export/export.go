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

// Package export writes tables in the formats supported by the CLI.
package export

import (
	"io"
	"os"
	"strings"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/jao/table"
	"golang.org/x/exp/slices"
)

// Format of the exported table.
type Format string

// Values of Format.
const (
	Text    = Format("text")
	CSV     = Format("csv")
	XLSX    = Format("xlsx")
	Parquet = Format("parquet")
)

// Formats lists all the supported formats.
var Formats = []Format{Text, CSV, XLSX, Parquet}

// ParseFormat validates the format name.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(s))
	if !slices.Contains(Formats, f) {
		return "", errors.Reason("unsupported format '%s', use one of %v", s, Formats)
	}
	return f, nil
}

// Binary formats are not meant for a terminal.
func (f Format) Binary() bool { return f == XLSX || f == Parquet }

// Options of Write.
type Options struct {
	Params table.Params // for Text and CSV only
	Sheet  string       // XLSX sheet name; default: "data"
}

// Write the table to w in the format.
func Write(w io.Writer, t *table.Table, f Format, opts Options) error {
	switch f {
	case Text:
		return t.WriteText(w, opts.Params)
	case CSV:
		return t.WriteCSV(w, opts.Params)
	case XLSX:
		return WriteXLSX(w, t, opts.Sheet)
	case Parquet:
		return WriteParquet(w, t)
	}
	return errors.Reason("unsupported format '%s'", f)
}

// WriteFile writes the table into a new file at path.
func WriteFile(path string, t *table.Table, f Format, opts Options) (err error) {
	out, err := os.Create(path)
	if err != nil {
		return errors.Annotate(err, "failed to create '%s'", path)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = errors.Annotate(cerr, "failed to close '%s'", path)
		}
	}()
	if err = Write(out, t, f, opts); err != nil {
		return errors.Annotate(err, "failed to write '%s'", path)
	}
	return nil
}
