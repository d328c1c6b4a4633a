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
	"bytes"
	"encoding/xml"
	"strings"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/jao"
	"github.com/stockparfait/jao/mtu"
	"github.com/stockparfait/jao/table"
)

// node is a generic XML element. Namespaces are ignored.
type node struct {
	XMLName xml.Name
	Nodes   []node `xml:",any"`
	Text    string `xml:",chardata"`
}

func (n *node) children(name string) []node {
	var res []node
	for _, c := range n.Nodes {
		if c.XMLName.Local == name {
			res = append(res, c)
		}
	}
	return res
}

// XMLSpec locates a table in the utility tool XML.
type XMLSpec struct {
	Path []string // element names from the root to a record element
	Date string   // business day column
	Hour string   // 1-based hour period column
}

// SubjectSpec of a subject table such as "MaxExchanges" whose records are the
// elements with the singular name ("MaxExchange") nested in the subject.
func SubjectSpec(subject string) XMLSpec {
	return XMLSpec{
		Path: []string{subject, strings.TrimSuffix(subject, "s")},
		Date: "Date",
		Hour: "CalendarHour",
	}
}

// NetPositionSpec locates the net positions, which are not nested.
var NetPositionSpec = XMLSpec{
	Path: []string{"NetPositionData"},
	Date: "CalendarDate",
	Hour: "CalendarHour",
}

// xmlRecords finds the record elements along the path.
func xmlRecords(root *node, path []string) []node {
	level := []node{*root}
	for _, name := range path {
		var next []node
		for i := range level {
			next = append(next, level[i].children(name)...)
		}
		level = next
	}
	return level
}

// ParseXML extracts the table of records from the XML. The columns are the
// child elements of the first record, typed by inference, and the date and
// hour columns are resolved into the Timestamp index.
func ParseXML(data []byte, loc XMLSpec) (*table.Table, error) {
	var root node
	if err := xml.NewDecoder(bytes.NewReader(data)).Decode(&root); err != nil {
		return nil, errors.Annotate(err, "failed to parse XML")
	}
	recs := xmlRecords(&root, loc.Path)
	if len(recs) == 0 {
		return nil, errors.Annotate(jao.ErrEmptyUpstreamData, "no elements at %s",
			strings.Join(loc.Path, "/"))
	}
	header := make([]string, len(recs[0].Nodes))
	for i, c := range recs[0].Nodes {
		header[i] = c.XMLName.Local
	}
	t := table.NewTable(header...)
	for _, r := range recs {
		row := make(table.Row, len(header))
		for _, c := range r.Nodes {
			i := t.ColumnIndex(c.XMLName.Local)
			if i < 0 {
				continue
			}
			if s := strings.TrimSpace(c.Text); s != "" {
				row[i] = s
			}
		}
		t.AddRow(row)
	}
	var columns []string
	for _, h := range header {
		if h != loc.Date {
			columns = append(columns, h)
		}
	}
	t, err := table.InferTypes(t, table.InferOptions{}, columns...)
	if err != nil {
		return nil, errors.Annotate(err, "failed to infer types")
	}
	t, err = mtu.ResolvePeriods(t, mtu.PeriodColumns{
		Date:   loc.Date,
		Period: loc.Hour,
		Output: Timestamp,
	}, mtu.Location())
	if err != nil {
		return nil, errors.Annotate(err, "failed to resolve hours")
	}
	return t, nil
}
