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

	"github.com/stockparfait/errors"
	"github.com/stockparfait/jao/table"
	"github.com/xuri/excelize/v2"
)

// DefaultSheet is the XLSX sheet name used when none is given.
const DefaultSheet = "data"

// xlsxValue converts a cell to a value excelize stores natively. Times are
// written as RFC3339 strings to keep their UTC offset.
func xlsxValue(v table.Value) any {
	switch x := v.(type) {
	case nil:
		return nil
	case int64, float64, bool, string:
		return x
	case time.Time:
		return x.Format(time.RFC3339)
	}
	return table.FormatValue(v)
}

// WriteXLSX writes the table to a single sheet workbook, with the header in
// the first row.
func WriteXLSX(w io.Writer, t *table.Table, sheet string) error {
	if sheet == "" {
		sheet = DefaultSheet
	}
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return errors.Annotate(err, "failed to name the sheet '%s'", sheet)
	}
	header := make([]any, len(t.Header))
	for i, h := range t.Header {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return errors.Annotate(err, "failed to write header")
	}
	for j, r := range t.Rows {
		cell, err := excelize.CoordinatesToCellName(1, j+2)
		if err != nil {
			return errors.Annotate(err, "row %d", j)
		}
		row := make([]any, len(r))
		for i, v := range r {
			row[i] = xlsxValue(v)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return errors.Annotate(err, "failed to write row %d", j)
		}
	}
	if err := f.Write(w); err != nil {
		return errors.Annotate(err, "failed to write XLSX")
	}
	return nil
}
