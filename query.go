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
	"encoding/json"
	"net/url"
	"strconv"
	"time"
)

// Endpoint of the publication tool data API.
type Endpoint string

// Values of Endpoint.
const (
	FinalComputation     = Endpoint("finalComputation")
	MaxExchanges         = Endpoint("maxExchanges")
	MaxNetPositions      = Endpoint("maxNetPos")
	NetPositions         = Endpoint("netPos")
	LTA                  = Endpoint("lta")
	AllocationConstraint = Endpoint("allocationConstraint")
	PriceSpread          = Endpoint("priceSpread")
	ScheduledExchanges   = Endpoint("scheduledExchanges")
	CongestionIncome     = Endpoint("congestionIncome")
	AlphaFactor          = Endpoint("alphaFactor")
	Refprog              = Endpoint("refprog")
	ValidationReductions = Endpoint("validationReductions")
	ValidationsATC       = Endpoint("validationReductionsATCs")
	D2CF                 = Endpoint("d2CF")
	Status               = Endpoint("status")
	Fallbacks            = Endpoint("fallbacks")
	IntradayATC          = Endpoint("intradayAtc")
	IntradayNTC          = Endpoint("intradayNtc")
	ShadowPrices         = Endpoint("shadowPrices")
	Monitoring           = Endpoint("monitoring")
)

// UTCFormat is the time format of the FromUtc and ToUtc parameters.
const UTCFormat = "2006-01-02T15:04:05.000Z"

// DomainFilter selects the network constraints of the final domain. Empty
// fields do not filter.
type DomainFilter struct {
	Presolved   *bool
	CneName     string
	Contingency string
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// JSON representation of the filter as the API expects it.
func (f DomainFilter) JSON() string {
	js, _ := json.Marshal(struct { // cannot fail for these types
		Presolved   *bool
		CneName     *string
		Contingency *string
	}{f.Presolved, nullable(f.CneName), nullable(f.Contingency)})
	return string(js)
}

// Query is a builder for a data API query.
type Query struct {
	endpoint Endpoint
	from, to time.Time
	filter   *DomainFilter
	page     *PageRequest
}

// NewQuery creates a new query for the endpoint.
func NewQuery(endpoint Endpoint) *Query {
	return &Query{endpoint: endpoint}
}

// Copy creates a copy of the query. It is primarily used in its builder
// methods.
func (q *Query) Copy() *Query {
	q2 := *q
	if q.filter != nil {
		f := *q.filter
		q2.filter = &f
	}
	if q.page != nil {
		p := *q.page
		q2.page = &p
	}
	return &q2
}

// Endpoint of the query.
func (q *Query) Endpoint() Endpoint { return q.endpoint }

// Range sets the [from, to) time interval. This and other builder methods
// always create a copy of the query, leaving the original intact.
func (q *Query) Range(from, to time.Time) *Query {
	q2 := q.Copy()
	q2.from = from
	q2.to = to
	return q2
}

// Filter sets the domain filter.
func (q *Query) Filter(f DomainFilter) *Query {
	q2 := q.Copy()
	q2.filter = &f
	return q2
}

// Page requests a single page of results.
func (q *Query) Page(p PageRequest) *Query {
	q2 := q.Copy()
	q2.page = &p
	return q2
}

// Values returns the query values for the query. Each call creates a new
// object, so the caller is free to modify it without affecting the query.
func (q *Query) Values() url.Values {
	v := make(url.Values)
	if q.filter != nil {
		v.Set("Filter", q.filter.JSON())
	}
	if q.page != nil {
		v.Set("Skip", strconv.Itoa(q.page.Skip))
		v.Set("Take", strconv.Itoa(q.page.Take))
	}
	if !q.from.IsZero() {
		v.Set("FromUtc", q.from.UTC().Format(UTCFormat))
	}
	if !q.to.IsZero() {
		v.Set("ToUtc", q.to.UTC().Format(UTCFormat))
	}
	return v
}

// Request is a fully specified HTTP GET request which an external batching
// layer may execute instead of this package.
type Request struct {
	URL   string
	Query url.Values
}

// String is the URL with the encoded query.
func (r Request) String() string {
	if len(r.Query) == 0 {
		return r.URL
	}
	return r.URL + "?" + r.Query.Encode()
}

// Request of the query for the client.
func (c *Client) Request(q *Query) Request {
	return Request{URL: c.EndpointURL(q.endpoint), Query: q.Values()}
}
