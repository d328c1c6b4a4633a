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

package jao

import (
	"context"
	"strings"
	"time"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/fetch"
	"github.com/stockparfait/jao/metrics"
	"github.com/stockparfait/jao/mtu"
	"github.com/stockparfait/jao/records"
	"github.com/stockparfait/jao/table"
	"github.com/stockparfait/logging"
)

// MTU is the name of the market time unit index column.
const MTU = "mtu"

// response is the JSON format of every data API page.
type response struct {
	Total int               `json:"totalRowsWithFilter"`
	Data  []*records.Record `json:"data"`
}

// readPage executes the query using the Client from the context.
func readPage(ctx context.Context, q *Query) (*response, error) {
	client, err := getClient(ctx)
	if err != nil {
		return nil, err
	}
	req := client.Request(q)
	var res response
	start := time.Now()
	err = fetch.FetchJSON(WithHeader(ctx, client.Header()), req.URL, &res, req.Query, nil)
	metrics.FetchDuration.WithLabelValues(string(q.endpoint)).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, errors.Annotate(err, "failed to fetch %s", q.endpoint)
	}
	return &res, nil
}

// Fetch executes a query which is not paged and returns its raw records.
func Fetch(ctx context.Context, q *Query) ([]*records.Record, error) {
	res, err := readPage(ctx, q)
	if err != nil {
		return nil, err
	}
	metrics.RowsFetched.WithLabelValues(string(q.endpoint)).Add(float64(len(res.Data)))
	return res.Data, nil
}

// Paged creates the probe and the page functions of a paged query.
func Paged(q *Query) (ProbeFunc, PageFunc) {
	probe := func(ctx context.Context) (int, error) {
		res, err := readPage(ctx, q.Page(PageRequest{Skip: 0, Take: 0}))
		if err != nil {
			return 0, err
		}
		return res.Total, nil
	}
	page := func(ctx context.Context, p PageRequest) ([]*records.Record, error) {
		res, err := readPage(ctx, q.Page(p))
		if err != nil {
			return nil, err
		}
		return res.Data, nil
	}
	return probe, page
}

// Requests probes the paged query and returns the page requests without
// executing them.
func Requests(ctx context.Context, q *Query, opts AggregateOptions) ([]Request, error) {
	client, err := getClient(ctx)
	if err != nil {
		return nil, err
	}
	probe, _ := Paged(q)
	opts.Endpoint = q.endpoint
	pages, err := Probe(ctx, probe, opts)
	if err != nil {
		return nil, err
	}
	res := make([]Request, len(pages))
	for i, p := range pages {
		res[i] = client.Request(q.Page(p))
	}
	return res, nil
}

func finalDomainQuery(from, to time.Time, filter DomainFilter) *Query {
	return NewQuery(FinalComputation).Range(from, to).Filter(filter)
}

// QueryFinalDomain downloads the final flow-based domain of the [from, to)
// interval, which may be very large and is fetched in pages.
func QueryFinalDomain(ctx context.Context, from, to time.Time, filter DomainFilter, opts AggregateOptions) (*table.Table, error) {
	q := finalDomainQuery(from, to, filter)
	probe, page := Paged(q)
	opts.Endpoint = q.endpoint
	opts.Assemble = ParseFinalDomain
	t, err := AggregatePages(ctx, probe, page, opts)
	if err != nil {
		return nil, errors.Annotate(err, "failed to query the final domain")
	}
	return t, nil
}

// FinalDomainRequests are the page requests of QueryFinalDomain.
func FinalDomainRequests(ctx context.Context, from, to time.Time, filter DomainFilter, opts AggregateOptions) ([]Request, error) {
	return Requests(ctx, finalDomainQuery(from, to, filter), opts)
}

// ParseFinalDomain flattens the first contingency of each record and indexes
// the table by the local MTU.
func ParseFinalDomain(recs []*records.Record) (*table.Table, error) {
	t, err := records.Flatten(recs, records.FinalDomain)
	if err != nil {
		return nil, errors.Annotate(err, "failed to flatten the final domain")
	}
	if err := mtu.LocalizeColumn(t, "date_time_utc", mtu.Location()); err != nil {
		return nil, errors.Annotate(err, "failed to parse MTU")
	}
	t.Rename(map[string]string{"date_time_utc": MTU})
	if err := t.SetIndex(MTU); err != nil {
		return nil, errors.Annotate(err, "failed to set index")
	}
	return t, nil
}

// QueryBase downloads a base output of the [from, to) interval.
func QueryBase(ctx context.Context, endpoint Endpoint, from, to time.Time) (*table.Table, error) {
	recs, err := Fetch(ctx, NewQuery(endpoint).Range(from, to))
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		metrics.EmptyResults.WithLabelValues(string(endpoint)).Inc()
		return nil, errors.Annotate(ErrEmptyUpstreamData, "%s", endpoint)
	}
	logging.Debugf(ctx, "%s: received %d rows", endpoint, len(recs))
	t, err := ParseBaseOutput(recs)
	if err != nil {
		return nil, errors.Annotate(err, "failed to parse %s", endpoint)
	}
	return t, nil
}

// QueryBaseDay downloads a base output of the business day.
func QueryBaseDay(ctx context.Context, endpoint Endpoint, day mtu.Date) (*table.Table, error) {
	from, to := day.DayRange(mtu.Location())
	return QueryBase(ctx, endpoint, from, to)
}

// ParseBaseOutput drops the row ID and indexes the table by the local MTU.
func ParseBaseOutput(recs []*records.Record) (*table.Table, error) {
	t := records.Table(recs)
	t.Drop("id")
	if err := mtu.LocalizeColumn(t, "dateTimeUtc", mtu.Location()); err != nil {
		return nil, errors.Annotate(err, "failed to parse MTU")
	}
	t.Rename(map[string]string{"dateTimeUtc": MTU})
	if err := t.SetIndex(MTU); err != nil {
		return nil, errors.Annotate(err, "failed to set index")
	}
	return t, nil
}

// BorderName converts a "border_A_B" column name into "A>B". Other names are
// returned unchanged with ok=false.
func BorderName(column string) (name string, ok bool) {
	if !strings.HasPrefix(column, "border_") {
		return column, false
	}
	return strings.ReplaceAll(strings.TrimPrefix(column, "border_"), "_", ">"), true
}

// Borders renames the border columns to "A>B" and keeps only those from the
// fromZone and to the toZone. Empty zones do not filter. The index column is
// always kept.
func Borders(t *table.Table, fromZone, toZone string) (*table.Table, error) {
	t = t.Copy()
	keep := []string{}
	renames := make(map[string]string)
	for _, c := range t.Header {
		name, ok := BorderName(c)
		if !ok {
			if c == t.Index {
				keep = append(keep, c)
			}
			continue
		}
		renames[c] = name
		zones := strings.SplitN(name, ">", 2)
		if fromZone != "" && zones[0] != fromZone {
			continue
		}
		if toZone != "" && (len(zones) < 2 || zones[1] != toZone) {
			continue
		}
		keep = append(keep, name)
	}
	t.Rename(renames)
	res, err := t.Select(keep...)
	if err != nil {
		return nil, errors.Annotate(err, "failed to select borders")
	}
	return res, nil
}

// QueryBorders downloads a border indexed output of the business day, such as
// MaxExchanges or IntradayATC, with "A>B" columns.
func QueryBorders(ctx context.Context, endpoint Endpoint, day mtu.Date, fromZone, toZone string) (*table.Table, error) {
	t, err := QueryBaseDay(ctx, endpoint, day)
	if err != nil {
		return nil, err
	}
	return Borders(t, fromZone, toZone)
}

// QueryMonitoring downloads the publication status of the business day.
func QueryMonitoring(ctx context.Context, day mtu.Date) (*table.Table, error) {
	from, to := day.DayRange(mtu.Location())
	recs, err := Fetch(ctx, NewQuery(Monitoring).Range(from, to))
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, errors.Annotate(ErrEmptyUpstreamData, "monitoring")
	}
	t, err := ParseMonitoring(recs)
	if err != nil {
		return nil, errors.Annotate(err, "failed to parse monitoring")
	}
	return t, nil
}

// ParseMonitoring converts the UTC business day into the local "businessDay"
// date, localizes the deadline and the modification time, and drops the ID.
func ParseMonitoring(recs []*records.Record) (*table.Table, error) {
	t := records.Table(recs)
	loc := mtu.Location()
	if t.Has("businessDayUtc") {
		if err := mtu.LocalDateColumn(t, "businessDayUtc", loc); err != nil {
			return nil, err
		}
		days, _ := t.Column("businessDayUtc") // the column exists
		if err := t.AddColumn("businessDay", table.KindAny, days); err != nil {
			return nil, err
		}
		t.Drop("businessDayUtc")
	}
	for _, c := range []string{"deadline", "lastModifiedOn"} {
		if !t.Has(c) {
			continue
		}
		if err := mtu.LocalizeColumn(t, c, loc); err != nil {
			return nil, err
		}
	}
	t.Drop("id")
	return t, nil
}
