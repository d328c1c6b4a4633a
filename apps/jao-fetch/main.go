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
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/jao"
	"github.com/stockparfait/jao/auction"
	"github.com/stockparfait/jao/export"
	"github.com/stockparfait/jao/metrics"
	"github.com/stockparfait/jao/mtu"
	"github.com/stockparfait/jao/table"
	"github.com/stockparfait/jao/utility"
	"github.com/stockparfait/logging"

	toml "github.com/pelletier/go-toml/v2"
)

// Kinds of data the app can download.
const (
	FinalDomain        = "final-domain"
	Base               = "base"
	Borders            = "borders"
	Monitoring         = "monitoring"
	UtilityDomain      = "utility-domain"
	MACZT              = "maczt"
	NetPositions       = "net-positions"
	MinMaxNetPositions = "min-max-net-positions"
	MaxExchanges       = "max-exchanges"
	AuctionStats       = "auction-stats"
	AuctionBids        = "auction-bids"
	Curtailments       = "curtailments"
	Corridors          = "corridors"
	Horizons           = "horizons"
)

type Flags struct {
	Cache    string // default: ~/.jao
	LogLevel logging.Level
	Query    string   // required, one of the kinds above
	From     mtu.Date // required for all but corridors and horizons
	To       mtu.Date // default: From
	Endpoint string   // for base and borders
	Product  string   // overrides the config
	Domain   string   // utility domain: final, initial-virgin, final-virgin
	FromZone string
	ToZone   string
	Zone     string // for maczt; default: NL
	// Final domain filter.
	Presolved   string // "true", "false" or "" for both
	CNE         string
	Contingency string
	// Auctions.
	Corridor string
	Horizon  string // default: Monthly
	// Output.
	Format   export.Format
	Out      string // file path; default: stdout for text and CSV
	Describe bool   // print the column statistics instead of the data
	URLsOnly bool   // print the page URLs of the final domain without fetching
	Metrics  string // write the prometheus metrics to this file
}

func parseDate(s string) (mtu.Date, error) {
	if s == "" {
		return mtu.Date{}, nil
	}
	return mtu.NewDateFromString(s)
}

func parseFlags(args []string) (*Flags, error) {
	var flags Flags
	var from, to, format string
	fs := flag.NewFlagSet("jao-fetch", flag.ExitOnError)
	fs.StringVar(&flags.Cache, "cache",
		filepath.Join(os.Getenv("HOME"), ".jao"), "configuration path")
	flags.LogLevel = logging.Info
	fs.Var(&flags.LogLevel, "log-level", "Log level: debug, info, warning, error")
	fs.StringVar(&flags.Query, "query", "", "data to download (required)")
	fs.StringVar(&from, "from", "", "first business day, YYYY-MM-DD")
	fs.StringVar(&to, "to", "", "last business day, YYYY-MM-DD; default: -from")
	fs.StringVar(&flags.Endpoint, "endpoint", string(jao.MaxExchanges),
		"publication tool endpoint for -query base and borders")
	fs.StringVar(&flags.Product, "product", "", "core, nordic, idcca, idccb or idccc")
	fs.StringVar(&flags.Domain, "domain", "final",
		"utility tool domain: final, initial-virgin, final-virgin")
	fs.StringVar(&flags.FromZone, "from-zone", "", "keep borders from this zone")
	fs.StringVar(&flags.ToZone, "to-zone", "", "keep borders to this zone")
	fs.StringVar(&flags.Zone, "zone", "NL", "bidding zone for -query maczt")
	fs.StringVar(&flags.Presolved, "presolved", "", "filter the domain by presolved: true or false")
	fs.StringVar(&flags.CNE, "cne", "", "filter the domain by CNE name")
	fs.StringVar(&flags.Contingency, "contingency", "", "filter the domain by contingency")
	fs.StringVar(&flags.Corridor, "corridor", "", "auction corridor, e.g. NL-DE")
	fs.StringVar(&flags.Horizon, "horizon", "Monthly", "auction horizon")
	fs.StringVar(&format, "format", "text", "output format: text, csv, xlsx, parquet")
	fs.StringVar(&flags.Out, "out", "", "output file; default: stdout")
	fs.BoolVar(&flags.Describe, "describe", false, "print the column statistics")
	fs.BoolVar(&flags.URLsOnly, "urls-only", false,
		"print the final domain page URLs without downloading them")
	fs.StringVar(&flags.Metrics, "metrics", "", "write prometheus metrics to this file")

	err := fs.Parse(args)
	if err != nil {
		return nil, err
	}
	if flags.Query == "" {
		return nil, errors.Reason("missing required -query argument")
	}
	if flags.From, err = parseDate(from); err != nil {
		return nil, errors.Annotate(err, "invalid -from")
	}
	if flags.To, err = parseDate(to); err != nil {
		return nil, errors.Annotate(err, "invalid -to")
	}
	if flags.To.IsZero() {
		flags.To = flags.From
	}
	if flags.To.Before(flags.From) {
		return nil, errors.Reason("-to %s is before -from %s", flags.To, flags.From)
	}
	if flags.Format, err = export.ParseFormat(format); err != nil {
		return nil, err
	}
	if flags.Format.Binary() && flags.Out == "" {
		return nil, errors.Reason("-format %s requires -out", flags.Format)
	}
	if flags.URLsOnly && flags.Query != FinalDomain {
		return nil, errors.Reason("-urls-only requires -query %s", FinalDomain)
	}
	return &flags, nil
}

type Config struct {
	Key        string `toml:"key"`         // optional publication tool API key
	AuctionKey string `toml:"auction_key"` // auction web service API key
	PageSize   int    `toml:"page_size"`   // default: jao.DefaultPageSize
	Workers    int    `toml:"workers"`     // default: jao.DefaultWorkers
	Product    string `toml:"product"`     // default: core
}

func parseConfig(dir string) (*Config, error) {
	filePath := filepath.Join(dir, "config.toml")
	if _, err := os.Stat(filePath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			sample := `key = "YourPublicationToolKey"
auction_key = "YourAuctionKey"
page_size = 5000
workers = 4
product = "core"
`
			err = errors.Annotate(err,
				"config file '%s' does not exist.\nPlease create config file containing:\n%s",
				filePath, sample)
			return nil, err
		} else {
			return nil, errors.Annotate(err,
				"cannot check config file for existence: '%s'", filePath)
		}
	}
	f, err := os.Open(filePath)
	if err != nil {
		return nil, errors.Annotate(err, "failed to open config file %s", filePath)
	}
	defer f.Close()

	d := toml.NewDecoder(f)
	c := Config{
		PageSize: jao.DefaultPageSize,
		Workers:  jao.DefaultWorkers,
		Product:  string(jao.Core),
	}
	if err := d.Decode(&c); err != nil {
		return nil, errors.Annotate(err, "failed to read config file %s", filePath)
	}
	return &c, nil
}

var domains = map[string]utility.Domain{
	"final":          utility.FinalFlowBased,
	"initial-virgin": utility.InitialVirginDomain,
	"final-virgin":   utility.FinalVirginDomain,
}

func (f *Flags) filter() (jao.DomainFilter, error) {
	res := jao.DomainFilter{CneName: f.CNE, Contingency: f.Contingency}
	if f.Presolved != "" {
		p, err := strconv.ParseBool(f.Presolved)
		if err != nil {
			return res, errors.Annotate(err, "invalid -presolved")
		}
		res.Presolved = &p
	}
	return res, nil
}

func (f *Flags) options(c *Config) jao.AggregateOptions {
	return jao.AggregateOptions{PageSize: c.PageSize, Workers: c.Workers}
}

func requireFrom(flags *Flags) error {
	if flags.From.IsZero() {
		return errors.Reason("-query %s requires -from", flags.Query)
	}
	return nil
}

func fetchTable(ctx context.Context, flags *Flags, config *Config) (*table.Table, error) {
	switch flags.Query {
	case Corridors, Horizons:
	default:
		if err := requireFrom(flags); err != nil {
			return nil, err
		}
	}
	loc := mtu.Location()
	start, _ := flags.From.DayRange(loc)
	_, end := flags.To.DayRange(loc)
	switch flags.Query {
	case FinalDomain:
		filter, err := flags.filter()
		if err != nil {
			return nil, err
		}
		return jao.QueryFinalDomain(ctx, start, end, filter, flags.options(config))
	case Base:
		return jao.QueryBase(ctx, jao.Endpoint(flags.Endpoint), start, end)
	case Borders:
		t, err := jao.QueryBase(ctx, jao.Endpoint(flags.Endpoint), start, end)
		if err != nil {
			return nil, err
		}
		return jao.Borders(t, flags.FromZone, flags.ToZone)
	case Monitoring:
		return jao.QueryMonitoring(ctx, flags.From)
	case UtilityDomain:
		d, ok := domains[flags.Domain]
		if !ok {
			return nil, errors.Reason("unsupported -domain '%s'", flags.Domain)
		}
		return utility.QueryDomain(ctx, d, flags.From)
	case MACZT:
		return utility.QueryMACZT(ctx, flags.From, flags.Zone)
	case NetPositions:
		return utility.QueryNetPositions(ctx, flags.From, flags.To)
	case MinMaxNetPositions:
		return utility.QueryMinMaxNetPositions(ctx, flags.From, flags.To)
	case MaxExchanges:
		return utility.QueryMaxExchanges(ctx, flags.From, flags.To)
	case AuctionStats:
		return auction.MonthlyStats(ctx, flags.From, flags.To, flags.Corridor, flags.Horizon)
	case AuctionBids:
		return auction.BidsByMonth(ctx, flags.Corridor, flags.From)
	case Curtailments:
		return auction.Curtailments(ctx, flags.Corridor, flags.From)
	case Corridors, Horizons:
		list := auction.Corridors
		if flags.Query == Horizons {
			list = auction.Horizons
		}
		values, err := list(ctx)
		if err != nil {
			return nil, err
		}
		t := table.NewTable(flags.Query)
		t.Kinds[0] = table.KindString
		for _, v := range values {
			t.AddRow(table.Row{v})
		}
		return t, nil
	}
	return nil, errors.Reason("unsupported -query '%s'", flags.Query)
}

func printURLs(ctx context.Context, flags *Flags, config *Config, w io.Writer) error {
	filter, err := flags.filter()
	if err != nil {
		return err
	}
	start, _ := flags.From.DayRange(mtu.Location())
	_, end := flags.To.DayRange(mtu.Location())
	reqs, err := jao.FinalDomainRequests(ctx, start, end, filter, flags.options(config))
	if err != nil {
		return errors.Annotate(err, "failed to plan the final domain pages")
	}
	for _, r := range reqs {
		if _, err := fmt.Fprintln(w, r.String()); err != nil {
			return errors.Annotate(err, "failed to print URL")
		}
	}
	return nil
}

func run(ctx context.Context, flags *Flags, w io.Writer) (err error) {
	if flags.Metrics != "" {
		defer func() {
			if merr := metrics.WriteTextfile(flags.Metrics); merr != nil && err == nil {
				err = merr
			}
		}()
	}
	config, err := parseConfig(flags.Cache)
	if err != nil {
		return errors.Annotate(err, "failed to parse config")
	}
	product := config.Product
	if flags.Product != "" {
		product = flags.Product
	}
	p, err := jao.ParseProduct(product)
	if err != nil {
		return err
	}
	ctx = jao.UseClient(ctx, config.Key, p)
	ctx = auction.UseClient(ctx, config.AuctionKey)

	if flags.URLsOnly {
		return printURLs(ctx, flags, config, w)
	}
	t, err := fetchTable(ctx, flags, config)
	if err != nil {
		return errors.Annotate(err, "failed to download %s", flags.Query)
	}
	logging.Infof(ctx, "downloaded %d rows of %s", t.Len(), flags.Query)
	if flags.Describe {
		t = table.Describe(t)
	}
	if flags.Out != "" {
		return export.WriteFile(flags.Out, t, flags.Format, export.Options{})
	}
	return export.Write(w, t, flags.Format, export.Options{})
}

func main() {
	ctx := context.Background()
	flags, err := parseFlags(os.Args[1:])
	if err != nil {
		ctx = logging.Use(ctx, logging.DefaultGoLogger(logging.Info))
		logging.Errorf(ctx, "failed to parse flags: %s", err.Error())
		os.Exit(1)
	}
	ctx = logging.Use(ctx, logging.DefaultGoLogger(flags.LogLevel))

	if err := run(ctx, flags, os.Stdout); err != nil {
		logging.Errorf(ctx, err.Error())
		os.Exit(1)
	}
}
