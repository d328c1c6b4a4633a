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

// Package jao implements the data API of the JAO publication tool for the
// flow-based market coupling results.
//
// Public documentation is at https://publicationtool.jao.eu/core/ .
//
// Every endpoint returns a JSON object with the list of records in "data".
// The timestamps are in UTC, and this package converts them into the market
// time unit (MTU) in the Europe/Amsterdam time zone.
//
// The final flow-based domain may have hundreds of thousands rows per day,
// and the API serves it in pages. A request with Take=0 reports the total
// number of matching rows, after which the pages are requested with explicit
// Skip and Take, possibly concurrently (see AggregatePages). The pages are
// concatenated in their row order regardless of the order of completion.
//
// Other utility tool and auction APIs are implemented in the subpackages.
package jao
