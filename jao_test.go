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
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/fetch"
	"github.com/stockparfait/jao/mtu"
	"github.com/stockparfait/jao/records"
	"github.com/stockparfait/jao/table"
	"github.com/stockparfait/testutil"

	. "github.com/smartystreets/goconvey/convey"
)

var errServerDown = errors.Reason("server is down")

// testPages serves a result set of the given size, recording the requests.
type testPages struct {
	mu       sync.Mutex
	total    int
	requests []PageRequest
	probes   int
	failSkip int // fail the page at this offset, if positive
}

func (p *testPages) probe(ctx context.Context) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.probes++
	return p.total, nil
}

func (p *testPages) page(ctx context.Context, r PageRequest) ([]*records.Record, error) {
	p.mu.Lock()
	p.requests = append(p.requests, r)
	p.mu.Unlock()
	if p.failSkip > 0 && r.Skip == p.failSkip {
		return nil, errServerDown
	}
	var res []*records.Record
	for i := r.Skip; i < r.Skip+r.Take && i < p.total; i++ {
		res = append(res, records.NewRecord().Set("row", int64(i)))
	}
	// Let the later pages complete first.
	time.Sleep(time.Duration(p.total-r.Skip) * time.Microsecond / 10)
	return res, nil
}

func utc(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestJAO(t *testing.T) {
	t.Parallel()

	Convey("Query builds nondestructively", t, func() {
		q := NewQuery(FinalComputation)
		from := utc("2023-03-23T11:00:00Z")
		q2 := q.Range(from, from.Add(time.Hour))
		yes := true
		q3 := q2.Filter(DomainFilter{Presolved: &yes}).Page(PageRequest{Skip: 5000, Take: 5000})
		So(len(q.Values()), ShouldEqual, 0)
		So(q2.Values(), ShouldResemble, url.Values{
			"FromUtc": []string{"2023-03-23T11:00:00.000Z"},
			"ToUtc":   []string{"2023-03-23T12:00:00.000Z"},
		})
		So(q3.Values(), ShouldResemble, url.Values{
			"FromUtc": []string{"2023-03-23T11:00:00.000Z"},
			"ToUtc":   []string{"2023-03-23T12:00:00.000Z"},
			"Filter":  []string{`{"Presolved":true,"CneName":null,"Contingency":null}`},
			"Skip":    []string{"5000"},
			"Take":    []string{"5000"},
		})
		So(DomainFilter{CneName: "line"}.JSON(), ShouldEqual,
			`{"Presolved":null,"CneName":"line","Contingency":null}`)
	})

	Convey("Products", t, func() {
		p, err := ParseProduct("IDCCB")
		So(err, ShouldBeNil)
		So(p, ShouldEqual, IntradayB)
		So(p.Intraday(), ShouldBeTrue)
		_, err = ParseProduct("cwe")
		So(err, ShouldNotBeNil)

		c := newClient("https://x", "", IntradayA)
		So(c.EndpointURL(NetPositions), ShouldEqual, "https://x/coreID/api/data/IDCCA_netPos")
		So(c.EndpointURL(Monitoring), ShouldEqual, "https://x/coreID/api/data/monitoring")
		So(len(c.Header()), ShouldEqual, 0)
		c = newClient("https://x", "secret", Nordic)
		So(c.EndpointURL(NetPositions), ShouldEqual, "https://x/nordic/api/data/netPos")
		So(c.Header().Get("Authorization"), ShouldEqual, "Bearer secret")
	})

	Convey("PlanPages", t, func() {
		So(PlanPages(12000, 5000), ShouldResemble, []PageRequest{
			{Skip: 0, Take: 5000}, {Skip: 5000, Take: 5000}, {Skip: 10000, Take: 5000}})
		So(PlanPages(10000, 5000), ShouldResemble, []PageRequest{
			{Skip: 0, Take: 5000}, {Skip: 5000, Take: 5000}})
		So(PlanPages(1, 5000), ShouldResemble, []PageRequest{{Skip: 0, Take: 5000}})
		So(PlanPages(0, 5000), ShouldBeNil)
	})

	Convey("AggregatePages", t, func() {
		ctx := context.Background()

		Convey("fetches all pages concurrently in row order", func() {
			p := &testPages{total: 12000}
			tbl, err := AggregatePages(ctx, p.probe, p.page, AggregateOptions{
				PageSize: 5000, Workers: 3})
			So(err, ShouldBeNil)
			So(p.probes, ShouldEqual, 1)
			So(len(p.requests), ShouldEqual, 3)
			So(p.requests, ShouldContain, PageRequest{Skip: 0, Take: 5000})
			So(p.requests, ShouldContain, PageRequest{Skip: 5000, Take: 5000})
			So(p.requests, ShouldContain, PageRequest{Skip: 10000, Take: 5000})
			So(tbl.Len(), ShouldEqual, 12000)
			So(tbl.Header, ShouldResemble, []string{"row"})
			for i, r := range tbl.Rows {
				if r[0] != int64(i) {
					So(r[0], ShouldEqual, int64(i))
				}
			}
		})

		Convey("zero rows is an error without page requests", func() {
			p := &testPages{total: 0}
			_, err := AggregatePages(ctx, p.probe, p.page, AggregateOptions{})
			So(err, ShouldEqual, ErrEmptyUpstreamData)
			So(len(p.requests), ShouldEqual, 0)
		})

		Convey("a failed page fails the aggregate", func() {
			p := &testPages{total: 12000, failSkip: 5000}
			_, err := AggregatePages(ctx, p.probe, p.page, AggregateOptions{PageSize: 5000})
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, ErrChunkFetch.Error())
			So(err.Error(), ShouldContainSubstring, "server is down")
			So(err.Error(), ShouldContainSubstring, "skip=5000")
			So(errors.Is(err, ErrChunkFetch), ShouldBeTrue)
			So(errors.Is(err, errServerDown), ShouldBeTrue)
			var pe *PageError
			So(errors.As(err, &pe), ShouldBeTrue)
			So(pe.Page, ShouldEqual, 2)
			So(pe.Request, ShouldResemble, PageRequest{Skip: 5000, Take: 5000})
		})

		Convey("custom assembly", func() {
			p := &testPages{total: 3}
			tbl, err := AggregatePages(ctx, p.probe, p.page, AggregateOptions{
				Assemble: func(recs []*records.Record) (*table.Table, error) {
					return table.NewTable(fmt.Sprintf("n%d", len(recs))), nil
				}})
			So(err, ShouldBeNil)
			So(tbl.Header, ShouldResemble, []string{"n3"})
		})
	})

	Convey("API calls work correctly", t, func() {
		server := testutil.NewTestServer()
		defer server.Close()
		server.ResponseBody = []string{"{}"}

		ctx := fetch.UseClient(context.Background(), server.Client())
		URL = server.URL()
		ctx = UseClient(ctx, "testkey", Core)
		loc := mtu.Location()

		Convey("final domain", func() {
			server.ResponseBody = []string{
				`{"totalRowsWithFilter": 3, "data": []}`,
				`{"totalRowsWithFilter": 3, "data": [
{"id": 1, "dateTimeUtc": "2023-03-23T11:00:00Z", "cneName": "A",
 "contingencies": [{"number": 1, "branchName": "co1"}], "ram": 10, "ptdf_NL": 0.1},
{"id": 2, "dateTimeUtc": "2023-03-23T11:00:00Z", "cneName": "B",
 "contingencies": [{"number": 1, "branchName": "co2"}], "ram": 20, "ptdf_NL": 0.2}]}`,
				`{"totalRowsWithFilter": 3, "data": [
{"id": 3, "dateTimeUtc": "2023-03-23T11:00:00Z", "cneName": "C",
 "contingencies": [{"number": 1, "branchName": "co3"}], "ram": 30, "ptdf_NL": 0.3}]}`,
			}
			from := mtu.NewDate(2023, 3, 23).At(12, loc)
			tbl, err := QueryFinalDomain(ctx, from, from.Add(time.Hour), DomainFilter{},
				AggregateOptions{PageSize: 2, Workers: 1})
			So(err, ShouldBeNil)
			So(server.RequestPath, ShouldEqual, "/core/api/data/finalComputation")
			So(server.RequestQuery.Get("Skip"), ShouldEqual, "2")
			So(server.RequestQuery.Get("Take"), ShouldEqual, "2")
			So(server.RequestQuery.Get("FromUtc"), ShouldEqual, "2023-03-23T11:00:00.000Z")
			So(tbl.Header, ShouldResemble, []string{
				"id_original", MTU, "cne_name", "contingency_branch_name", "ram", "ptdf_NL"})
			So(tbl.Index, ShouldEqual, MTU)
			So(tbl.Len(), ShouldEqual, 3)
			ts := tbl.Rows[2][1].(time.Time)
			So(ts.Equal(from), ShouldBeTrue)
			So(ts.Hour(), ShouldEqual, 12)
			So(tbl.Rows[2][3], ShouldEqual, "co3")
		})

		Convey("final domain requests", func() {
			server.ResponseBody = []string{`{"totalRowsWithFilter": 12000, "data": []}`}
			from := utc("2023-03-23T11:00:00Z")
			reqs, err := FinalDomainRequests(ctx, from, from.Add(time.Hour), DomainFilter{}, AggregateOptions{})
			So(err, ShouldBeNil)
			So(len(reqs), ShouldEqual, 3)
			So(reqs[2].URL, ShouldEqual, server.URL()+"/core/api/data/finalComputation")
			So(reqs[2].Query.Get("Skip"), ShouldEqual, "10000")
			So(reqs[2].String(), ShouldContainSubstring, "Take=5000")
		})

		Convey("empty final domain", func() {
			server.ResponseBody = []string{`{"totalRowsWithFilter": 0, "data": []}`}
			from := utc("2023-03-23T11:00:00Z")
			_, err := QueryFinalDomain(ctx, from, from.Add(time.Hour), DomainFilter{}, AggregateOptions{})
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, ErrEmptyUpstreamData.Error())
		})

		Convey("border output", func() {
			server.ResponseBody = []string{`{"data": [
{"id": 1, "dateTimeUtc": "2023-03-22T23:00:00Z", "border_NL_DE": 100, "border_NL_BE": 200, "border_DE_NL": 300},
{"id": 2, "dateTimeUtc": "2023-03-23T00:00:00Z", "border_NL_DE": 110, "border_NL_BE": 210, "border_DE_NL": 310}]}`}
			tbl, err := QueryBorders(ctx, MaxExchanges, mtu.NewDate(2023, 3, 23), "NL", "DE")
			So(err, ShouldBeNil)
			So(server.RequestPath, ShouldEqual, "/core/api/data/maxExchanges")
			So(server.RequestQuery.Get("FromUtc"), ShouldEqual, "2023-03-22T23:00:00.000Z")
			So(server.RequestQuery.Get("ToUtc"), ShouldEqual, "2023-03-23T23:00:00.000Z")
			So(tbl.Header, ShouldResemble, []string{MTU, "NL>DE"})
			So(tbl.Rows[1][1], ShouldEqual, int64(110))
			So(tbl.Rows[0][0].(time.Time).Hour(), ShouldEqual, 0)
		})

		Convey("base output without rows", func() {
			server.ResponseBody = []string{`{"data": []}`}
			_, err := QueryBaseDay(ctx, NetPositions, mtu.NewDate(2023, 3, 23))
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, ErrEmptyUpstreamData.Error())
		})

		Convey("monitoring", func() {
			server.ResponseBody = []string{`{"data": [
{"id": 1, "businessDayUtc": "2023-03-22T23:00:00Z", "deadline": "2023-03-22T10:00:00Z",
 "lastModifiedOn": null, "status": "published"}]}`}
			tbl, err := QueryMonitoring(ctx, mtu.NewDate(2023, 3, 23))
			So(err, ShouldBeNil)
			So(server.RequestPath, ShouldEqual, "/core/api/data/monitoring")
			So(tbl.Header, ShouldResemble, []string{"deadline", "lastModifiedOn", "status", "businessDay"})
			So(tbl.Rows[0][3], ShouldResemble, mtu.NewDate(2023, 3, 23))
			So(tbl.Rows[0][0].(time.Time).Hour(), ShouldEqual, 11)
			So(tbl.Rows[0][1], ShouldBeNil)
		})

		Convey("no client", func() {
			_, err := Fetch(context.Background(), NewQuery(Status))
			So(err, ShouldNotBeNil)
		})
	})

	Convey("Borders keep the index and filter by zone", t, func() {
		tbl := table.NewTable(MTU, "border_AT_CZ", "border_CZ_AT", "other")
		tbl.Index = MTU
		tbl.AddRow(table.Row{nil, 1.0, 2.0, 3.0})
		res, err := Borders(tbl, "", "AT")
		So(err, ShouldBeNil)
		So(res.Header, ShouldResemble, []string{MTU, "CZ>AT"})
		res, err = Borders(tbl, "", "")
		So(err, ShouldBeNil)
		So(res.Header, ShouldResemble, []string{MTU, "AT>CZ", "CZ>AT"})
		So(tbl.Header[1], ShouldEqual, "border_AT_CZ")
	})

	Convey("Headers reach the server", t, func() {
		headers := make(chan http.Header, 1)
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case headers <- r.Header.Clone():
			default:
			}
			fmt.Fprint(w, `{"data": [{"id": 1}]}`)
		}))
		defer server.Close()
		URL = server.URL
		client := server.Client()
		ctx := fetch.UseClient(context.Background(), client)

		Convey("with the API key", func() {
			recs, err := Fetch(UseClient(ctx, "secret", Core), NewQuery(Monitoring))
			So(err, ShouldBeNil)
			So(len(recs), ShouldEqual, 1)
			So((<-headers).Get("Authorization"), ShouldEqual, "Bearer secret")
			So(fetch.GetClient(ctx), ShouldEqual, client)
		})

		Convey("without the API key", func() {
			_, err := Fetch(UseClient(ctx, "", Core), NewQuery(Monitoring))
			So(err, ShouldBeNil)
			So((<-headers).Get("Authorization"), ShouldEqual, "")
		})

		Convey("WithHeader keeps the context client intact", func() {
			h := make(http.Header)
			h.Set("X-Test", "1")
			hctx := WithHeader(ctx, h)
			So(fetch.GetClient(hctx), ShouldNotEqual, client)
			So(fetch.GetClient(hctx).Transport, ShouldNotEqual, client.Transport)
			So(WithHeader(ctx, nil), ShouldEqual, ctx)
		})
	})
}
