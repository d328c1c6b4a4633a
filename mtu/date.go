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

// Package mtu resolves the business days and hour periods of the upstream
// data into market time units (MTU): instants in the market time zone.
package mtu

import (
	"encoding/json"
	"time"

	"github.com/stockparfait/errors"
)

// DateFormat is the text representation of Date.
const DateFormat = "2006-01-02"

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999", // upstream UTC times often lack the zone
	"2006-01-02 15:04:05.999",
	"02/01/2006 15:04:05",
	DateFormat,
}

// ParseTime parses an upstream time string. Times without a zone are UTC.
func ParseTime(s string) (time.Time, error) {
	for _, l := range timeLayouts {
		if tm, err := time.Parse(l, s); err == nil {
			return tm, nil
		}
	}
	return time.Time{}, errors.Reason("unsupported time format: '%s'", s)
}

// Date is a calendar day, such as a business day, without a time zone. The
// zero value is not a valid date.
type Date struct {
	year  int
	month time.Month
	day   int
}

var _ json.Marshaler = Date{}
var _ json.Unmarshaler = &Date{}

// NewDate normalizes the date like time.Date does, e.g. March 32 is April 1.
func NewDate(year int, month time.Month, day int) Date {
	return NewDateFromTime(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// NewDateFromTime takes the calendar date of t in its own location.
func NewDateFromTime(t time.Time) Date {
	y, m, d := t.Date()
	return Date{year: y, month: m, day: d}
}

// NewDateFromString parses a date, or the date part of an upstream time.
func NewDateFromString(s string) (Date, error) {
	t, err := ParseTime(s)
	if err != nil {
		return Date{}, errors.Annotate(err, "failed to parse date")
	}
	return NewDateFromTime(t), nil
}

// Year of the date.
func (d Date) Year() int { return d.year }

// Month of the date.
func (d Date) Month() time.Month { return d.month }

// Day of the month.
func (d Date) Day() int { return d.day }

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.midnight().Format(DateFormat)
}

// MarshalJSON implements json.Marshaler.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return errors.Annotate(err, "Date JSON must be a string")
	}
	date, err := NewDateFromString(s)
	if err != nil {
		return err
	}
	*d = date
	return nil
}

// IsZero is true for the zero value.
func (d Date) IsZero() bool { return d == Date{} }

// midnight UTC of the date, for calendar arithmetic.
func (d Date) midnight() time.Time {
	return time.Date(d.year, d.month, d.day, 0, 0, 0, 0, time.UTC)
}

// At is the instant of the local hour on this date. See Localize for the
// hours skipped or repeated by a clock change.
func (d Date) At(hour int, loc *time.Location) time.Time {
	return Localize(d.year, d.month, d.day, hour, loc)
}

// AddDays moves the date by n days; n may be negative.
func (d Date) AddDays(n int) Date {
	return NewDate(d.year, d.month, d.day+n)
}

// MonthStart is the first day of the month.
func (d Date) MonthStart() Date {
	return NewDate(d.year, d.month, 1)
}

// MonthEnd is the last day of the month.
func (d Date) MonthEnd() Date {
	return NewDate(d.year, d.month+1, 0)
}

// AddMonths is the first day of the month n months later.
func (d Date) AddMonths(n int) Date {
	return NewDate(d.year, d.month+time.Month(n), 1)
}

// Before is true if d is strictly earlier than d2.
func (d Date) Before(d2 Date) bool { return d.midnight().Before(d2.midnight()) }

// After is true if d is strictly later than d2.
func (d Date) After(d2 Date) bool { return d2.Before(d) }

// DayRange is the [start, end) interval of the business day in the location.
// It lasts 23, 24 or 25 hours.
func (d Date) DayRange(loc *time.Location) (time.Time, time.Time) {
	return d.At(0, loc), d.AddDays(1).At(0, loc)
}
