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

// Package metrics counts upstream requests for batch runs. The counters live in
// the default Prometheus registry and are written out as a textfile when the
// run ends.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/stockparfait/errors"
)

var (
	PagesFetched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jao_pages_fetched_total",
		Help: "Total number of result pages fetched, labelled by endpoint.",
	}, []string{"endpoint"})

	PageFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jao_page_failures_total",
		Help: "Total number of failed page requests, labelled by endpoint.",
	}, []string{"endpoint"})

	RowsFetched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jao_rows_fetched_total",
		Help: "Total number of raw records received, labelled by endpoint.",
	}, []string{"endpoint"})

	EmptyResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jao_empty_results_total",
		Help: "Total number of queries with no matching upstream data.",
	}, []string{"endpoint"})

	Downloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jao_downloads_total",
		Help: "Total number of raw file downloads, labelled by kind and status.",
	}, []string{"kind", "status"})

	FetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "jao_fetch_duration_seconds",
		Help:    "Latency of a single upstream request in seconds.",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"endpoint"})
)

// Status label values of Downloads.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// WriteTextfile writes all the metrics of the default registry in the text
// exposition format, e.g. for the node exporter textfile collector.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return errors.Annotate(err, "failed to write metrics to '%s'", path)
	}
	return nil
}
