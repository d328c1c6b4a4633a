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

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stockparfait/fetch"
	"github.com/stockparfait/jao"
	"github.com/stockparfait/jao/auction"
	"github.com/stockparfait/jao/export"
	"github.com/stockparfait/jao/mtu"
	"github.com/stockparfait/logging"
	"github.com/stockparfait/testutil"

	. "github.com/smartystreets/goconvey/convey"
)

func TestMain(t *testing.T) {
	t.Parallel()

	tmpdir, tmpdirErr := os.MkdirTemp("", "test_jao_fetch")
	defer os.RemoveAll(tmpdir)

	Convey("Setup succeeded", t, func() {
		So(tmpdirErr, ShouldBeNil)
	})

	Convey("parseFlags", t, func() {
		Convey("all flags", func() {
			flags, err := parseFlags([]string{
				"-cache", "path/to/cache", "-log-level", "warning",
				"-query", "borders", "-from", "2023-03-01", "-to", "2023-03-02",
				"-endpoint", "intradayAtc", "-from-zone", "NL", "-format", "xlsx",
				"-out", "out.xlsx", "-describe", "-metrics", "metrics.prom"})
			So(err, ShouldBeNil)
			So(flags.Cache, ShouldEqual, "path/to/cache")
			So(flags.LogLevel, ShouldEqual, logging.Warning)
			So(flags.Query, ShouldEqual, Borders)
			So(flags.From, ShouldResemble, mtu.NewDate(2023, 3, 1))
			So(flags.To, ShouldResemble, mtu.NewDate(2023, 3, 2))
			So(flags.Endpoint, ShouldEqual, "intradayAtc")
			So(flags.FromZone, ShouldEqual, "NL")
			So(flags.Format, ShouldEqual, export.XLSX)
			So(flags.Describe, ShouldBeTrue)
			So(flags.Metrics, ShouldEqual, "metrics.prom")
		})

		Convey("defaults", func() {
			flags, err := parseFlags([]string{"-query", "base", "-from", "2023-03-01"})
			So(err, ShouldBeNil)
			So(flags.To, ShouldResemble, flags.From)
			So(flags.Format, ShouldEqual, export.Text)
			So(flags.Horizon, ShouldEqual, "Monthly")
			So(flags.Zone, ShouldEqual, "NL")
		})

		Convey("errors", func() {
			_, err := parseFlags([]string{"-from", "2023-03-01"})
			So(err, ShouldNotBeNil)
			_, err = parseFlags([]string{"-query", "base", "-format", "parquet"})
			So(err, ShouldNotBeNil)
			_, err = parseFlags([]string{"-query", "base", "-urls-only"})
			So(err, ShouldNotBeNil)
			_, err = parseFlags([]string{"-query", "base", "-from", "2023-03-02", "-to", "2023-03-01"})
			So(err, ShouldNotBeNil)
			_, err = parseFlags([]string{"-query", "base", "-from", "March"})
			So(err, ShouldNotBeNil)
		})
	})

	Convey("parseConfig", t, func() {
		Convey("missing file", func() {
			_, err := parseConfig(filepath.Join(tmpdir, "missing"))
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "does not exist")
		})

		Convey("defaults", func() {
			dir := filepath.Join(tmpdir, "defaults")
			So(os.MkdirAll(dir, 0700), ShouldBeNil)
			So(os.WriteFile(filepath.Join(dir, "config.toml"), []byte(`key = "k"
workers = 2
`), 0600), ShouldBeNil)
			c, err := parseConfig(dir)
			So(err, ShouldBeNil)
			So(c, ShouldResemble, &Config{
				Key:      "k",
				PageSize: jao.DefaultPageSize,
				Workers:  2,
				Product:  "core",
			})
		})
	})

	Convey("run", t, func() {
		server := testutil.NewTestServer()
		defer server.Close()
		jao.URL = server.URL()
		auction.URL = server.URL() + "/OWSMP/"
		ctx := fetch.UseClient(context.Background(), server.Client())

		So(os.WriteFile(filepath.Join(tmpdir, "config.toml"), []byte(`page_size = 5000
workers = 1
auction_key = "a"
`), 0600), ShouldBeNil)

		Convey("urls only", func() {
			server.ResponseBody = []string{`{"totalRowsWithFilter": 12000, "data": []}`}
			flags, err := parseFlags([]string{"-cache", tmpdir, "-query", "final-domain",
				"-from", "2023-03-23", "-urls-only", "-presolved", "true"})
			So(err, ShouldBeNil)
			var buf bytes.Buffer
			So(run(ctx, flags, &buf), ShouldBeNil)
			lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
			So(len(lines), ShouldEqual, 3)
			So(lines[0], ShouldStartWith, server.URL()+"/core/api/data/finalComputation?")
			So(lines[2], ShouldContainSubstring, "Skip=10000")
			So(lines[2], ShouldContainSubstring, "Take=5000")
			So(server.RequestQuery.Get("Take"), ShouldEqual, "0")
		})

		Convey("borders as CSV", func() {
			server.ResponseBody = []string{`{"data": [{"id": 1,
"dateTimeUtc": "2023-03-22T23:00:00Z", "border_NL_DE": 100, "border_DE_NL": 50}]}`}
			metricsPath := filepath.Join(tmpdir, "metrics.prom")
			flags, err := parseFlags([]string{"-cache", tmpdir, "-query", "borders",
				"-from", "2023-03-23", "-from-zone", "NL", "-format", "csv",
				"-metrics", metricsPath})
			So(err, ShouldBeNil)
			var buf bytes.Buffer
			So(run(ctx, flags, &buf), ShouldBeNil)
			So("\n"+buf.String(), ShouldEqual, `
mtu,NL>DE
2023-03-23T00:00:00+01:00,100
`)
			So(server.RequestPath, ShouldEqual, "/core/api/data/maxExchanges")
			_, err = os.Stat(metricsPath)
			So(err, ShouldBeNil)
		})

		Convey("corridors", func() {
			server.ResponseBody = []string{`[{"value": "NL-DE"}, {"value": "NL-BE"}]`}
			flags, err := parseFlags([]string{"-cache", tmpdir, "-query", "corridors",
				"-format", "csv"})
			So(err, ShouldBeNil)
			var buf bytes.Buffer
			So(run(ctx, flags, &buf), ShouldBeNil)
			So(buf.String(), ShouldEqual, "corridors\nNL-DE\nNL-BE\n")
		})

		Convey("missing dates", func() {
			flags, err := parseFlags([]string{"-cache", tmpdir, "-query", "monitoring"})
			So(err, ShouldBeNil)
			var buf bytes.Buffer
			So(run(ctx, flags, &buf), ShouldNotBeNil)
		})

		Convey("unsupported product", func() {
			flags, err := parseFlags([]string{"-cache", tmpdir, "-query", "base",
				"-from", "2023-03-23", "-product", "swiss"})
			So(err, ShouldBeNil)
			var buf bytes.Buffer
			So(run(ctx, flags, &buf), ShouldNotBeNil)
		})
	})
}
