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
	"sort"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/iterator"
	"github.com/stockparfait/jao/metrics"
	"github.com/stockparfait/jao/records"
	"github.com/stockparfait/jao/table"
	"github.com/stockparfait/logging"
)

// PageError is the failure of a single page request. It matches both
// ErrChunkFetch and the cause of the failure.
type PageError struct {
	Page    int // 1-based page number
	Request PageRequest
	Err     error
}

func (e *PageError) Error() string {
	return fmt.Sprintf("%s: page %d (skip=%d, take=%d): %s",
		ErrChunkFetch.Error(), e.Page, e.Request.Skip, e.Request.Take, e.Err.Error())
}

// Unwrap the chain of both ErrChunkFetch and the cause.
func (e *PageError) Unwrap() []error {
	return []error{ErrChunkFetch, e.Err}
}

// DefaultPageSize is the number of rows per page the upstream tolerates.
const DefaultPageSize = 5000

// DefaultWorkers is the default number of concurrent page requests.
const DefaultWorkers = 4

// PageRequest addresses a contiguous range of rows of a result set.
type PageRequest struct {
	Skip int // offset of the first row
	Take int // maximum number of rows
}

// PlanPages partitions [0, total) into pages of the given size. Every page
// requests the full size, including the last one.
func PlanPages(total, size int) []PageRequest {
	if total <= 0 || size <= 0 {
		return nil
	}
	pages := make([]PageRequest, 0, (total+size-1)/size)
	for skip := 0; skip < total; skip += size {
		pages = append(pages, PageRequest{Skip: skip, Take: size})
	}
	return pages
}

// ProbeFunc reports the total number of rows matching a query.
type ProbeFunc func(ctx context.Context) (int, error)

// PageFunc fetches one page of raw records.
type PageFunc func(ctx context.Context, p PageRequest) ([]*records.Record, error)

// AssembleFunc converts the concatenated raw records into a table.
type AssembleFunc func(recs []*records.Record) (*table.Table, error)

// AggregateOptions configure AggregatePages.
type AggregateOptions struct {
	PageSize int          // default: DefaultPageSize
	Workers  int          // concurrent page requests; default: DefaultWorkers
	Endpoint Endpoint     // the metrics label
	Assemble AssembleFunc // default: records.Table
}

func (o AggregateOptions) pageSize() int {
	if o.PageSize <= 0 {
		return DefaultPageSize
	}
	return o.PageSize
}

func (o AggregateOptions) workers() int {
	if o.Workers <= 0 {
		return DefaultWorkers
	}
	return o.Workers
}

func (o AggregateOptions) assemble(recs []*records.Record) (*table.Table, error) {
	if o.Assemble == nil {
		return records.Table(recs), nil
	}
	return o.Assemble(recs)
}

// Probe the total number of rows, and plan the pages to fetch. Zero rows is
// ErrEmptyUpstreamData.
func Probe(ctx context.Context, probe ProbeFunc, opts AggregateOptions) ([]PageRequest, error) {
	total, err := probe(ctx)
	if err != nil {
		return nil, errors.Annotate(err, "failed to probe the total row count")
	}
	if total == 0 {
		metrics.EmptyResults.WithLabelValues(string(opts.Endpoint)).Inc()
		return nil, ErrEmptyUpstreamData
	}
	pages := PlanPages(total, opts.pageSize())
	logging.Infof(ctx, "%s: %d rows in %d pages", opts.Endpoint, total, len(pages))
	return pages, nil
}

type pageResult struct {
	index   int
	records []*records.Record
	err     error
}

// FetchPages fetches the pages, possibly concurrently, and concatenates their
// records in the page order regardless of the completion order. Any failed
// page fails the whole result.
func FetchPages(ctx context.Context, pages []PageRequest, fetch PageFunc, opts AggregateOptions) ([]*records.Record, error) {
	label := string(opts.Endpoint)
	indices := make([]int, len(pages))
	for i := range pages {
		indices[i] = i
	}
	f := func(i int) pageResult {
		recs, err := fetch(ctx, pages[i])
		if err != nil {
			metrics.PageFailures.WithLabelValues(label).Inc()
			return pageResult{index: i, err: err}
		}
		metrics.PagesFetched.WithLabelValues(label).Inc()
		metrics.RowsFetched.WithLabelValues(label).Add(float64(len(recs)))
		logging.Debugf(ctx, "%s: fetched page %d/%d with %d rows",
			label, i+1, len(pages), len(recs))
		return pageResult{index: i, records: recs}
	}
	pm := iterator.ParallelMap(ctx, opts.workers(), iterator.FromSlice(indices), f)

	results := iterator.Reduce[pageResult, []pageResult](pm, []pageResult{},
		func(r pageResult, rs []pageResult) []pageResult {
			return append(rs, r)
		})
	sort.Slice(results, func(i, j int) bool { return results[i].index < results[j].index })

	var res []*records.Record
	for _, r := range results {
		if r.err != nil {
			return nil, &PageError{Page: r.index + 1, Request: pages[r.index], Err: r.err}
		}
		res = append(res, r.records...)
	}
	return res, nil
}

// AggregatePages runs the probe, fetches all the pages and assembles the
// records into a single table.
func AggregatePages(ctx context.Context, probe ProbeFunc, fetch PageFunc, opts AggregateOptions) (*table.Table, error) {
	pages, err := Probe(ctx, probe, opts)
	if err != nil {
		return nil, err
	}
	recs, err := FetchPages(ctx, pages, fetch, opts)
	if err != nil {
		return nil, err
	}
	t, err := opts.assemble(recs)
	if err != nil {
		return nil, errors.Annotate(err, "failed to assemble %d rows", len(recs))
	}
	return t, nil
}
