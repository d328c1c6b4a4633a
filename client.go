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
	"net/http"
	"strings"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/fetch"
	"golang.org/x/exp/slices"
)

type contextKey int

const (
	clientContextKey contextKey = iota
)

// URL is the default base URL of the publication tool. It may be overwritten
// in tests before creating a new client.
var URL = "https://publicationtool.jao.eu"

// ErrEmptyUpstreamData is returned when the upstream reports no matching rows.
var ErrEmptyUpstreamData = errors.Reason("upstream returned no data")

// ErrChunkFetch is the cause of an aggregate failure due to a single failed
// page request.
var ErrChunkFetch = errors.Reason("failed to fetch a page")

// Product is a flow-based market coupling process published by the tool.
type Product string

// Values of Product.
const (
	Core      = Product("core")
	Nordic    = Product("nordic")
	IntradayA = Product("idcca")
	IntradayB = Product("idccb")
	IntradayC = Product("idccc")
)

// Products lists all the supported products.
var Products = []Product{Core, Nordic, IntradayA, IntradayB, IntradayC}

// ParseProduct validates the product name.
func ParseProduct(s string) (Product, error) {
	p := Product(strings.ToLower(s))
	if !slices.Contains(Products, p) {
		return "", errors.Reason("unsupported product '%s', use one of %v", s, Products)
	}
	return p, nil
}

// Intraday is true for the intraday capacity calculation products.
func (p Product) Intraday() bool {
	return p == IntradayA || p == IntradayB || p == IntradayC
}

// path of the data API of the product, relative to the base URL. For the
// intraday products it is also the prefix of every endpoint name.
func (p Product) path() string {
	switch p {
	case Nordic:
		return "/nordic/api/data/"
	case IntradayA:
		return "/coreID/api/data/IDCCA_"
	case IntradayB:
		return "/coreID/api/data/IDCCB_"
	case IntradayC:
		return "/coreID/api/data/IDCCC_"
	}
	return "/core/api/data/"
}

// Client for querying the JAO publication tool.
type Client struct {
	baseURL string  // the base URL of the server
	apiKey  string  // optional; raises the rate limits
	product Product // which market the endpoints refer to
}

// newClient creates a new client.
func newClient(baseURL, apiKey string, product Product) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		product: product,
	}
}

// GetClient extracts the Client from the context, if any.
func GetClient(ctx context.Context) *Client {
	c, ok := ctx.Value(clientContextKey).(*Client)
	if !ok {
		return nil
	}
	return c
}

// UseClient creates a new client for the product and injects it into the
// context. The API key may be empty.
func UseClient(ctx context.Context, apiKey string, product Product) context.Context {
	return context.WithValue(ctx, clientContextKey, newClient(URL, apiKey, product))
}

// Product the client is configured for.
func (c *Client) Product() Product { return c.product }

// EndpointURL is the full URL of the endpoint of the client's product.
func (c *Client) EndpointURL(endpoint Endpoint) string {
	// Monitoring of the intraday products is shared and has no prefix.
	if endpoint == Monitoring && c.product.Intraday() {
		return c.baseURL + "/coreID/api/data/" + string(endpoint)
	}
	return c.baseURL + c.product.path() + string(endpoint)
}

// Header of every request.
func (c *Client) Header() http.Header {
	h := make(http.Header)
	if c.apiKey != "" {
		h.Set("Authorization", "Bearer "+c.apiKey)
	}
	return h
}

// headerTransport adds the header to every request.
type headerTransport struct {
	header http.Header
	base   http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	for k, vs := range t.header {
		for _, v := range vs {
			r.Header.Add(k, v)
		}
	}
	return t.base.RoundTrip(r)
}

// WithHeader returns a context whose HTTP client sends the header with every
// request. It wraps the client already in the context, or the default one.
func WithHeader(ctx context.Context, h http.Header) context.Context {
	if len(h) == 0 {
		return ctx
	}
	base := fetch.GetClient(ctx)
	if base == nil {
		base = http.DefaultClient
	}
	rt := base.Transport
	if rt == nil {
		rt = http.DefaultTransport
	}
	c := *base
	c.Transport = &headerTransport{header: h, base: rt}
	return fetch.UseClient(ctx, &c)
}

func getClient(ctx context.Context) (*Client, error) {
	c := GetClient(ctx)
	if c == nil {
		return nil, errors.Reason("no client in context")
	}
	return c, nil
}
