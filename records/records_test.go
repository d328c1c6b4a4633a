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

package records

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stockparfait/jao/table"

	. "github.com/smartystreets/goconvey/convey"
)

const finalDomainJSON = `[
{"id": 7, "dateTimeUtc": "2023-03-23T11:00:00Z", "cneName": "line A",
 "contingencies": [{"number": 1, "branchName": "co 1", "branchEic": "10T"},
                   {"number": 2, "branchName": "co 2", "branchEic": "11T"}],
 "ram": 120, "ptdf_AT": 0.25, "presolved": true},
{"id": 8, "dateTimeUtc": "2023-03-23T12:00:00Z", "cneName": "line B",
 "contingencies": [{"number": 1, "branchName": "co 3", "branchEic": "12T"}],
 "ram": 130.5, "ptdf_AT": null, "presolved": false}
]`

func TestRecords(t *testing.T) {
	t.Parallel()

	Convey("Record", t, func() {
		Convey("preserves field order", func() {
			var r Record
			So(json.Unmarshal([]byte(`{"z": 1, "a": "x", "m": [1, 2.5, {"b": null}]}`), &r), ShouldBeNil)
			So(r.Keys(), ShouldResemble, []string{"z", "a", "m"})
			z, ok := r.Get("z")
			So(ok, ShouldBeTrue)
			So(z, ShouldEqual, int64(1))
			m, _ := r.Get("m")
			list := m.([]any)
			So(list[:2], ShouldResemble, []any{int64(1), 2.5})
			So(list[2].(*Record).Keys(), ShouldResemble, []string{"b"})

			js, err := json.Marshal(&r)
			So(err, ShouldBeNil)
			So(string(js), ShouldEqual, `{"z":1,"a":"x","m":[1,2.5,{"b":null}]}`)
		})

		Convey("set and delete", func() {
			r := NewRecord().Set("a", 1).Set("b", 2).Set("a", 3)
			So(r.Keys(), ShouldResemble, []string{"a", "b"})
			r.Delete("a")
			r.Delete("nope")
			So(r.Keys(), ShouldResemble, []string{"b"})
			So(r.Len(), ShouldEqual, 1)
		})

		Convey("rejects non-objects", func() {
			var r Record
			So(json.Unmarshal([]byte(`[1]`), &r), ShouldNotBeNil)
			_, err := ParseRecords([]byte(`{"a": 1}`))
			So(err, ShouldNotBeNil)
		})

		Convey("Table takes the union of fields", func() {
			recs, err := ParseRecords([]byte(`[{"a": 1, "b": "x"}, {"c": true, "a": 2.5}]`))
			So(err, ShouldBeNil)
			tbl := Table(recs)
			So(tbl.Header, ShouldResemble, []string{"a", "b", "c"})
			So(tbl.Kinds, ShouldResemble, []table.Kind{table.KindFloat, table.KindString, table.KindBool})
			So(tbl.Rows, ShouldResemble, []table.Row{{1.0, "x", nil}, {2.5, nil, true}})
		})
	})

	Convey("ToSnakeCase", t, func() {
		So(ToSnakeCase("dateTimeUtc"), ShouldEqual, "date_time_utc")
		So(ToSnakeCase("RAM"), ShouldEqual, "r_a_m")
		So(ToSnakeCase("id"), ShouldEqual, "id")
		So(ToSnakeCase("BiddingArea"), ShouldEqual, "bidding_area")
	})

	Convey("Flatten", t, func() {
		recs, err := ParseRecords([]byte(finalDomainJSON))
		So(err, ShouldBeNil)

		Convey("splices the first nested element in place", func() {
			tbl, err := Flatten(recs, FinalDomain)
			So(err, ShouldBeNil)
			So(tbl.Header, ShouldResemble, []string{
				"id_original", "date_time_utc", "cne_name",
				"contingency_branch_name", "contingency_branch_eic",
				"ram", "ptdf_AT", "presolved",
			})
			So(tbl.Rows[0], ShouldResemble, table.Row{
				int64(7), "2023-03-23T11:00:00Z", "line A", "co 1", "10T", 120.0, 0.25, true})
			So(tbl.Rows[1][3], ShouldEqual, "co 3")
			So(tbl.Rows[1][6], ShouldBeNil)
			So(tbl.Kinds[5], ShouldEqual, table.KindFloat)
		})

		Convey("round trip keeps the top level fields", func() {
			tbl, err := Flatten(recs, FinalDomain)
			So(err, ShouldBeNil)
			back := Unflatten(tbl, FinalDomain)
			So(len(back), ShouldEqual, 2)
			So(back[0].Keys(), ShouldResemble, []string{
				"id", "date_time_utc", "cne_name", "contingencies", "ram", "ptdf_AT", "presolved"})
			for j, r := range back {
				for _, k := range []string{"id", "ram", "presolved"} {
					want, _ := recs[j].Get(k)
					got, _ := r.Get(k)
					if x, ok := want.(int64); ok && k == "ram" {
						want = float64(x)
					}
					So(got, ShouldEqual, want)
				}
			}
			c, _ := back[1].Get("contingencies")
			name, _ := c.([]any)[0].(*Record).Get("branch_name")
			So(name, ShouldEqual, "co 3")
		})

		Convey("missing nested collection", func() {
			recs[1].Delete("contingencies")
			_, err := Flatten(recs, FinalDomain)
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, ErrMalformedNestedRecord.Error())
			So(err.Error(), ShouldContainSubstring, "record 1")
		})

		Convey("empty nested collection", func() {
			recs[0].Set("contingencies", []any{})
			_, err := Flatten(recs, FinalDomain)
			So(err, ShouldNotBeNil)
			So(strings.Contains(err.Error(), ErrMalformedNestedRecord.Error()), ShouldBeTrue)
		})

		Convey("no records", func() {
			tbl, err := Flatten(nil, FinalDomain)
			So(err, ShouldBeNil)
			So(tbl.Len(), ShouldEqual, 0)
		})
	})
}
