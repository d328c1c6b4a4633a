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

package mtu

import (
	"math"
	"strconv"
	"strings"
	"sync"
	"time"
	_ "time/tzdata" // the zone must resolve on hosts without zoneinfo

	"github.com/stockparfait/errors"
	"github.com/stockparfait/jao/table"
)

// Zone is the civil time zone of all the market data.
const Zone = "Europe/Amsterdam"

var (
	locationOnce sync.Once
	location     *time.Location
)

// Location of the market time zone.
func Location() *time.Location {
	locationOnce.Do(func() {
		var err error
		location, err = time.LoadLocation(Zone)
		if err != nil {
			panic(errors.Annotate(err, "failed to load timezone %s", Zone))
		}
	})
	return location
}

func sameWallClock(t, wall time.Time) bool {
	return t.Year() == wall.Year() && t.Month() == wall.Month() &&
		t.Day() == wall.Day() && t.Hour() == wall.Hour() && t.Minute() == wall.Minute()
}

// Localize returns the instant of the wall clock time at the full hour in the
// location. When the clock goes backwards and the wall clock time occurs twice,
// the earlier instant (still in daylight saving time) is returned. A wall clock
// time skipped by the clock going forward is normalized by time.Date.
func Localize(year int, month time.Month, day, hour int, loc *time.Location) time.Time {
	wall := time.Date(year, month, day, hour, 0, 0, 0, time.UTC)
	var best time.Time
	// Any transition is surrounded by the offsets a day before and after.
	for _, probe := range []time.Time{wall.Add(-24 * time.Hour), wall.Add(24 * time.Hour)} {
		_, offset := probe.In(loc).Zone()
		t := wall.Add(-time.Duration(offset) * time.Second).In(loc)
		if sameWallClock(t, wall) && (best.IsZero() || t.Before(best)) {
			best = t
		}
	}
	if best.IsZero() {
		return time.Date(year, month, day, hour, 0, 0, 0, loc)
	}
	return best
}

// PeriodHour maps a 1-based hour period of a business day to the local hour of
// the day. maxPeriod is the largest period reported for that day: 24 on a
// normal day, 25 when the clock goes backwards and 23 when it goes forward.
//
// On a long day period 4 is the repeated hour, which is dropped (ok=false). On
// a short day the skipped hour is never reported, and periods from 3 on shift
// by one hour.
func PeriodHour(period, maxPeriod int) (hour int, ok bool) {
	switch {
	case maxPeriod > 24:
		switch {
		case period < 4:
			return period - 1, true
		case period == 4:
			return 0, false
		default:
			return period - 2, true
		}
	case maxPeriod < 24:
		if period < 3 {
			return period - 1, true
		}
		return period, true
	}
	return period - 1, true
}

// ResolvePeriod converts a business day and its hour period into an instant in
// the location. See PeriodHour for the meaning of maxPeriod and ok.
func ResolvePeriod(d Date, period, maxPeriod int, loc *time.Location) (time.Time, bool) {
	hour, ok := PeriodHour(period, maxPeriod)
	if !ok {
		return time.Time{}, false
	}
	return d.At(hour, loc), true
}

// PeriodColumns configure ResolvePeriods.
type PeriodColumns struct {
	Date   string // business day column
	Period string // 1-based hour period column
	Output string // timestamp column replacing Date; default: Date
	Layout string // time.Parse layout of string dates; default: ParseTime
}

func toDate(v table.Value, layout string) (Date, error) {
	switch x := v.(type) {
	case Date:
		return x, nil
	case time.Time:
		return NewDateFromTime(x), nil
	case string:
		if layout == "" {
			return NewDateFromString(x)
		}
		t, err := time.Parse(layout, strings.TrimSpace(x))
		if err != nil {
			return Date{}, errors.Annotate(err, "failed to parse date '%s'", x)
		}
		return NewDateFromTime(t), nil
	}
	return Date{}, errors.Reason("unsupported date value %v of type %T", v, v)
}

func toInt(v table.Value) (int, error) {
	switch x := v.(type) {
	case int64:
		return int(x), nil
	case int:
		return x, nil
	case float64:
		if x != math.Trunc(x) {
			return 0, errors.Reason("not an integer: %g", x)
		}
		return int(x), nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(x))
		if err != nil {
			return 0, errors.Annotate(err, "not an integer: '%s'", x)
		}
		return i, nil
	}
	return 0, errors.Reason("unsupported integer value %v of type %T", v, v)
}

// ResolvePeriods replaces the business day and period columns of the table
// with a single timestamp column, which becomes the index. The number of
// periods of each business day is the largest period found for that day in
// the table. Rows of the repeated hour of a long day are removed.
func ResolvePeriods(t *table.Table, cols PeriodColumns, loc *time.Location) (*table.Table, error) {
	di := t.ColumnIndex(cols.Date)
	pi := t.ColumnIndex(cols.Period)
	if di < 0 || pi < 0 {
		return nil, errors.Reason("missing date column '%s' or period column '%s'",
			cols.Date, cols.Period)
	}
	output := cols.Output
	if output == "" {
		output = cols.Date
	}
	dates := make([]Date, len(t.Rows))
	periods := make([]int, len(t.Rows))
	maxPeriod := make(map[Date]int)
	for j, r := range t.Rows {
		d, err := toDate(r[di], cols.Layout)
		if err != nil {
			return nil, errors.Annotate(err, "row %d", j)
		}
		p, err := toInt(r[pi])
		if err != nil {
			return nil, errors.Annotate(err, "row %d", j)
		}
		dates[j] = d
		periods[j] = p
		if p > maxPeriod[d] {
			maxPeriod[d] = p
		}
	}
	res := t.Copy()
	res.Rows = res.Rows[:0]
	for j, r := range t.Rows {
		ts, ok := ResolvePeriod(dates[j], periods[j], maxPeriod[dates[j]], loc)
		if !ok {
			continue
		}
		row := make(table.Row, len(r))
		copy(row, r)
		row[di] = ts
		res.Rows = append(res.Rows, row)
	}
	res.Kinds[di] = table.KindTime
	res.Header[di] = output
	res.Drop(cols.Period)
	res.Index = output
	return res, nil
}

// LocalizeColumn parses a column of UTC time strings into instants in the
// location. Missing values stay missing.
func LocalizeColumn(t *table.Table, name string, loc *time.Location) error {
	values, err := t.Column(name)
	if err != nil {
		return errors.Annotate(err, "failed to localize")
	}
	for i, v := range values {
		switch x := v.(type) {
		case nil:
		case time.Time:
			values[i] = x.In(loc)
		case string:
			tm, err := ParseTime(x)
			if err != nil {
				return errors.Annotate(err, "column '%s' row %d", name, i)
			}
			values[i] = tm.In(loc)
		default:
			return errors.Reason("column '%s' row %d: unsupported time value %v", name, i, v)
		}
	}
	return t.SetColumn(name, table.KindTime, values)
}

// LocalDateColumn parses a column of UTC time strings into the calendar date in
// the location.
func LocalDateColumn(t *table.Table, name string, loc *time.Location) error {
	if err := LocalizeColumn(t, name, loc); err != nil {
		return err
	}
	values, _ := t.Column(name) // the column exists
	for i, v := range values {
		if tm, ok := v.(time.Time); ok {
			values[i] = NewDateFromTime(tm)
		}
	}
	return t.SetColumn(name, table.KindAny, values)
}
