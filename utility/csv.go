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

package utility

import (
	"context"
	"encoding/csv"
	"io"
	"strings"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/jao"
	"github.com/stockparfait/jao/mtu"
	"github.com/stockparfait/jao/table"
	"github.com/stockparfait/logging"
)

// Timestamp is the name of the MTU index column of the utility tool tables.
const Timestamp = "timestamp"

// DomainPeriods locate the business day and the hour period of a domain CSV.
var DomainPeriods = mtu.PeriodColumns{
	Date:   "DeliveryDate",
	Period: "Period",
	Output: Timestamp,
	Layout: "02/01/2006 15:04:05",
}

// DomainRenames are the short names of the network element columns.
var DomainRenames = map[string]string{
	"OutageName":               "CO",
	"OutageEIC":                "CO_EIC",
	"CriticalBranchName":       "CNE",
	"CriticalBranchEIC":        "CNE_EIC",
	"RemainingAvailableMargin": "RAM",
}

// normalizeCSV turns the mixed ';' and '|' separated text into '|' separated
// lines. Only the header uses ';' as a separator.
func normalizeCSV(text string) string {
	lines := strings.Split(strings.ReplaceAll(text, ";|", "|"), "\r\n")
	lines[0] = strings.ReplaceAll(lines[0], ";", "|")
	return strings.Join(lines, "\n")
}

// readCSV reads the normalized text into a table of strings with unique
// column names. Empty cells are missing values.
func readCSV(text string) (*table.Table, error) {
	r := csv.NewReader(strings.NewReader(text))
	r.Comma = '|'
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err == io.EOF {
		return table.NewTable(), nil
	}
	if err != nil {
		return nil, errors.Annotate(err, "failed to read CSV header")
	}
	t := table.NewTable(table.UniqueHeader(header)...)
	for {
		cells, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Annotate(err, "failed to read CSV row %d", t.Len()+1)
		}
		row := make(table.Row, len(t.Header))
		for i := range row {
			if i < len(cells) && cells[i] != "" {
				row[i] = cells[i]
			}
		}
		t.AddRow(row)
	}
	return t, nil
}

// ParseDomainCSV converts the flow-based domain CSV of the utility tool into a
// table indexed by the local MTU.
//
// The hour periods are resolved with DST in mind, dropping the repeated hour
// of the long day. The PTDF columns are renamed after their bidding zone
// found in the first row.
func ParseDomainCSV(ctx context.Context, text string) (*table.Table, error) {
	t, err := readCSV(normalizeCSV(text))
	if err != nil {
		return nil, err
	}
	if t.Len() == 0 {
		return nil, jao.ErrEmptyUpstreamData
	}
	if t, err = table.InferTypes(t, table.InferOptions{}); err != nil {
		return nil, errors.Annotate(err, "failed to infer types")
	}
	if t, err = mtu.ResolvePeriods(t, DomainPeriods, mtu.Location()); err != nil {
		return nil, errors.Annotate(err, "failed to resolve periods")
	}
	t.Drop("FileId", "Row")
	g := table.DiscoverColumnGroups(t, "Factor", "BiddingArea_Shortname", "PTDF_")
	if err := table.VerifyColumnGroupLabels(t, g); err != nil {
		logging.Warningf(ctx, "PTDF zones differ from the first row: %s", err.Error())
	}
	t, _ = table.RemapColumnGroups(t, "Factor", "BiddingArea_Shortname", "PTDF_")
	t.Rename(DomainRenames)
	return t, nil
}
