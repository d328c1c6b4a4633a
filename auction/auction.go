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

// Package auction is a client of the JAO explicit auction web service: the
// long term transmission rights of the corridors, their auction results,
// bids and curtailments.
package auction

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/fetch"
	"github.com/stockparfait/jao"
	"github.com/stockparfait/jao/metrics"
	"github.com/stockparfait/jao/mtu"
	"github.com/stockparfait/jao/records"
	"github.com/stockparfait/jao/table"
	"github.com/stockparfait/logging"
)

type contextKey int

const (
	clientContextKey contextKey = iota
)

// URL of the auction web service. It may be overwritten in tests before
// creating a new client.
var URL = "https://api.jao.eu/OWSMP/"

// Yearly is the auction horizon whose details are queried by its start date
// only.
const Yearly = "Yearly"

// Client of the auction web service.
type Client struct {
	baseURL string
	apiKey  string
}

// GetClient extracts the Client from the context, if any.
func GetClient(ctx context.Context) *Client {
	c, ok := ctx.Value(clientContextKey).(*Client)
	if !ok {
		return nil
	}
	return c
}

// UseClient creates a new client with the API key and injects it into the
// context.
func UseClient(ctx context.Context, apiKey string) context.Context {
	return context.WithValue(ctx, clientContextKey, &Client{baseURL: URL, apiKey: apiKey})
}

// Header of every request.
func (c *Client) Header() http.Header {
	h := make(http.Header)
	h.Set("AUTH_API_KEY", c.apiKey)
	return h
}

// get decodes the JSON response of the method into v.
func get(ctx context.Context, method string, query url.Values, v any) error {
	c := GetClient(ctx)
	if c == nil {
		return errors.Reason("no auction client in context")
	}
	start := time.Now()
	err := fetch.FetchJSON(jao.WithHeader(ctx, c.Header()), c.baseURL+method, v, query, nil)
	metrics.FetchDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	if err != nil {
		return errors.Annotate(err, "failed to query %s", method)
	}
	return nil
}

func getRecords(ctx context.Context, method string, query url.Values) ([]*records.Record, error) {
	var recs []*records.Record
	if err := get(ctx, method, query, &recs); err != nil {
		return nil, err
	}
	metrics.RowsFetched.WithLabelValues(method).Add(float64(len(recs)))
	logging.Debugf(ctx, "%s: received %d records", method, len(recs))
	return recs, nil
}

type valueJSON struct {
	Value string `json:"value"`
}

func values(ctx context.Context, method string) ([]string, error) {
	var vs []valueJSON
	if err := get(ctx, method, nil, &vs); err != nil {
		return nil, err
	}
	res := make([]string, len(vs))
	for i, v := range vs {
		res[i] = v.Value
	}
	return res, nil
}

// Corridors lists the names of the auctioned corridors, such as "NL-DE".
func Corridors(ctx context.Context) ([]string, error) {
	return values(ctx, "getcorridors")
}

// Horizons lists the auction horizons, such as "Monthly" and "Yearly".
func Horizons(ctx context.Context) ([]string, error) {
	return values(ctx, "gethorizons")
}

// monthRange is the query range of a monthly auction: it starts the day
// before the month.
func monthRange(month mtu.Date) (from, to string) {
	return month.MonthStart().AddDays(-1).String(), month.MonthEnd().String()
}

func firstNested(r *records.Record, key string) (*records.Record, error) {
	v, ok := r.Get(key)
	if !ok {
		return nil, errors.Annotate(records.ErrMalformedNestedRecord, "no '%s'", key)
	}
	l, ok := v.([]any)
	if !ok || len(l) == 0 {
		return nil, errors.Annotate(records.ErrMalformedNestedRecord, "empty '%s'", key)
	}
	n, ok := l[0].(*records.Record)
	if !ok {
		return nil, errors.Annotate(records.ErrMalformedNestedRecord,
			"'%s' is not a list of objects", key)
	}
	return n, nil
}

// mergeAuction flattens the first result and the first product into the
// auction record. Their fields override those of the auction.
func mergeAuction(a *records.Record) (*records.Record, error) {
	result, err := firstNested(a, "results")
	if err != nil {
		return nil, err
	}
	product, err := firstNested(a, "products")
	if err != nil {
		return nil, err
	}
	res := records.NewRecord()
	for _, k := range a.Keys() {
		v, _ := a.Get(k)
		res.Set(k, v)
	}
	for _, n := range []*records.Record{result, product} {
		for _, k := range n.Keys() {
			v, _ := n.Get(k)
			res.Set(k, v)
		}
	}
	res.Delete("results")
	res.Delete("products")
	return res, nil
}

// AuctionDetails of the first auction of the corridor and horizon for the
// month: everything but the bids, with its first result and product merged
// in. Yearly auctions are looked up by the start date, which should be the
// first day of the year.
func AuctionDetails(ctx context.Context, corridor string, month mtu.Date, horizon string, shadow bool) (*records.Record, error) {
	query := url.Values{
		"corridor": []string{corridor},
		"horizon":  []string{horizon},
		"shadow":   []string{"0"},
	}
	if shadow {
		query.Set("shadow", "1")
	}
	if horizon == Yearly {
		query.Set("fromdate", month.String())
	} else {
		from, to := monthRange(month)
		query.Set("fromdate", from)
		query.Set("todate", to)
	}
	recs, err := getRecords(ctx, "getauctions", query)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, errors.Annotate(jao.ErrEmptyUpstreamData,
			"no %s auction of %s for %s", horizon, corridor, month)
	}
	res, err := mergeAuction(recs[0])
	if err != nil {
		return nil, errors.Annotate(err, "malformed auction of %s for %s", corridor, month)
	}
	return res, nil
}

// BidsID is the ID of the monthly base load auction of the corridor.
func BidsID(corridor string, month mtu.Date) string {
	return fmt.Sprintf("%s-M-BASE-------%02d%02d01-01", corridor, month.Year()%100, int(month.Month()))
}

// Bids of the auction.
func Bids(ctx context.Context, auctionID string) (*table.Table, error) {
	recs, err := getRecords(ctx, "getbids", url.Values{"auctionid": []string{auctionID}})
	if err != nil {
		return nil, err
	}
	return records.Table(recs), nil
}

// BidsByMonth are the bids of the monthly base load auction of the corridor.
func BidsByMonth(ctx context.Context, corridor string, month mtu.Date) (*table.Table, error) {
	return Bids(ctx, BidsID(corridor, month))
}

// Curtailments of the corridor's rights in the month, with local curtailment
// periods.
func Curtailments(ctx context.Context, corridor string, month mtu.Date) (*table.Table, error) {
	from, to := monthRange(month)
	recs, err := getRecords(ctx, "getcurtailment", url.Values{
		"corridor": []string{corridor},
		"fromdate": []string{from},
		"todate":   []string{to},
	})
	if err != nil {
		return nil, err
	}
	t := records.Table(recs)
	for _, c := range []string{"curtailmentPeriodStart", "curtailmentPeriodStop"} {
		if !t.Has(c) {
			continue
		}
		if err := mtu.LocalizeColumn(t, c, mtu.Location()); err != nil {
			return nil, errors.Annotate(err, "failed to parse %s", c)
		}
	}
	return t, nil
}

// StatsFields of the auction details reported by MonthlyStats.
var StatsFields = []string{
	"bidGateOpening", "bidGateClosure", "offeredCapacity", "atc",
	"allocatedCapacity", "resoldCapacity", "requestedCapacity", "auctionPrice",
}

func toFloat(v any) float64 {
	switch x := v.(type) {
	case int64:
		return float64(x)
	case float64:
		return x
	}
	return 0
}

// monthStats extracts the statistics from the auction details.
func monthStats(details *records.Record, corridor string, month mtu.Date) *records.Record {
	id, _ := details.Get("identification")
	r := records.NewRecord().
		Set("id", id).
		Set("corridor", corridor).
		Set("month", month.MonthStart())
	for _, f := range StatsFields {
		v, _ := details.Get(f)
		r.Set(f, v)
	}
	if v, _ := r.Get("resoldCapacity"); v == nil {
		r.Set("resoldCapacity", int64(0))
	}
	offered, _ := r.Get("offeredCapacity")
	allocated, _ := r.Get("allocatedCapacity")
	r.Set("nonAllocatedCapacity", toFloat(offered)-toFloat(allocated))
	return r
}

// MonthlyStats summarizes the auctions of the corridor for each month of
// [from, to]: ID, corridor, month, the StatsFields and the non-allocated
// capacity. A missing resold capacity is 0.
func MonthlyStats(ctx context.Context, from, to mtu.Date, corridor, horizon string) (*table.Table, error) {
	var rows []*records.Record
	for m := from; !m.After(to); m = m.AddMonths(1) {
		details, err := AuctionDetails(ctx, corridor, m, horizon, false)
		if err != nil {
			return nil, errors.Annotate(err, "failed to get stats for %s", m)
		}
		rows = append(rows, monthStats(details, corridor, m))
	}
	return records.Table(rows), nil
}
