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

// Package utility downloads and parses the CSV and XML files of the JAO
// utility tool, which publishes the CWE flow-based results.
package utility

import (
	"context"
	"fmt"
	"io"
	"net/url"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/fetch"
	"github.com/stockparfait/jao/metrics"
	"github.com/stockparfait/jao/mtu"
	"github.com/stockparfait/jao/table"
	"golang.org/x/exp/maps"
)

// URL of the utility tool. It may be overwritten in tests.
var URL = "https://utilitytool.jao.eu"

// Domain is the computation stage of a flow-based domain CSV.
type Domain string

// Values of Domain.
const (
	FinalFlowBased      = Domain("GetAllCBCOFixedLabelDataForAPeriod")
	InitialVirginDomain = Domain("GetVirginDomainInitialComputationDataForAPeriod")
	FinalVirginDomain   = Domain("GetVirginDomainFinalComputationDataForAPeriod")
)

// dateParam is the date format of the utility tool query parameters.
func dateParam(d mtu.Date) string {
	return fmt.Sprintf("%02d-%02d-%04d", int(d.Month()), d.Day(), d.Year())
}

func download(ctx context.Context, kind, uri string, query url.Values) ([]byte, error) {
	resp, err := fetch.GetRetry(ctx, uri, query, nil)
	if err != nil {
		metrics.Downloads.WithLabelValues(kind, metrics.StatusError).Inc()
		return nil, errors.Annotate(err, "failed to download %s", uri)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.Downloads.WithLabelValues(kind, metrics.StatusError).Inc()
		return nil, errors.Annotate(err, "failed to read response body")
	}
	metrics.Downloads.WithLabelValues(kind, metrics.StatusOK).Inc()
	return data, nil
}

// FetchRawCSV downloads the domain CSV of a single business day. The endpoint
// is slow, and downloading more days at once is not recommended.
func FetchRawCSV(ctx context.Context, domain Domain, d mtu.Date) (string, error) {
	query := url.Values{
		"dateFrom": []string{dateParam(d)},
		"dateTo":   []string{dateParam(d)},
		"random":   []string{"1"},
	}
	data, err := download(ctx, "csv", URL+"/CSV/"+string(domain), query)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// QueryDomain downloads and parses the domain of a single business day.
func QueryDomain(ctx context.Context, domain Domain, d mtu.Date) (*table.Table, error) {
	text, err := FetchRawCSV(ctx, domain, d)
	if err != nil {
		return nil, err
	}
	t, err := ParseDomainCSV(ctx, text)
	if err != nil {
		return nil, errors.Annotate(err, "failed to parse %s for %s", domain, d)
	}
	return t, nil
}

// QueryMACZT computes the MACZT margins of the zone for a single business day
// from its final flow-based domain.
func QueryMACZT(ctx context.Context, d mtu.Date, zone string) (*table.Table, error) {
	if err := checkZone(zone); err != nil {
		return nil, err
	}
	t, err := QueryDomain(ctx, FinalFlowBased, d)
	if err != nil {
		return nil, err
	}
	return ExtractMACZT(t, zone)
}

// Method of the utility tool XML web service.
type Method string

// Values of Method.
const (
	TradingData     = Method("GetTradingDataForAPeriod")
	NetPositionData = Method("GetNetPositionDataForAPeriod")
)

// TradingDataOptions select the subjects of TradingData.
type TradingDataOptions struct {
	MaxExchange bool
	NetPosition bool
	PTDF        bool
}

// Values of the options as query parameters.
func (o TradingDataOptions) Values() url.Values {
	b := func(x bool) []string { return []string{fmt.Sprint(x)} }
	return url.Values{
		"maxExchange": b(o.MaxExchange),
		"netPosition": b(o.NetPosition),
		"ptdf":        b(o.PTDF),
	}
}

// FetchRawXML downloads the web service XML for the [from, to] business days.
// Extra query parameters are added as is.
func FetchRawXML(ctx context.Context, method Method, from, to mtu.Date, extra url.Values) ([]byte, error) {
	query := url.Values{
		"dateFrom": []string{dateParam(from)},
		"dateTo":   []string{dateParam(to)},
	}
	maps.Copy(query, extra)
	return download(ctx, "xml", URL+"/WebServiceV2.asmx/"+string(method), query)
}

// QueryNetPositions downloads the CWE net positions of [from, to].
func QueryNetPositions(ctx context.Context, from, to mtu.Date) (*table.Table, error) {
	data, err := FetchRawXML(ctx, NetPositionData, from, to, nil)
	if err != nil {
		return nil, err
	}
	return ParseXML(data, NetPositionSpec)
}

// QueryMinMaxNetPositions downloads the CWE min/max net positions of [from,
// to].
func QueryMinMaxNetPositions(ctx context.Context, from, to mtu.Date) (*table.Table, error) {
	data, err := FetchRawXML(ctx, TradingData, from, to,
		TradingDataOptions{NetPosition: true}.Values())
	if err != nil {
		return nil, err
	}
	return ParseXML(data, SubjectSpec("MaxNetPositions"))
}

// QueryMaxExchanges downloads the CWE max bilateral exchanges of [from, to].
func QueryMaxExchanges(ctx context.Context, from, to mtu.Date) (*table.Table, error) {
	data, err := FetchRawXML(ctx, TradingData, from, to,
		TradingDataOptions{MaxExchange: true}.Values())
	if err != nil {
		return nil, err
	}
	return ParseXML(data, SubjectSpec("MaxExchanges"))
}
