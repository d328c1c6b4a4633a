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

package utility

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/jao/table"
	"gonum.org/v1/gonum/floats/scalar"
)

// MACZTColumns are the domain columns MACZT is computed from.
var MACZTColumns = []string{
	"CO", "CO_EIC", "CNE", "CNE_EIC", "Presolved", "RAM", "Fmax", "Fref", "AMR",
	"MinRAMFactor", "MinRAMFactorJustification",
}

var justificationRe = regexp.MustCompile(
	`MNCC = (.*)%;LFcalc = (.*)%;LFaccept = (.*)%;MACZTtarget = (.*)%`)

func checkZone(zone string) error {
	if zone != "NL" {
		return errors.Reason("MACZT is not supported for zone '%s', only NL", zone)
	}
	return nil
}

func toFloat(v table.Value) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int64:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	}
	return 0, false
}

func round2(x float64) table.Value { return scalar.Round(x, 2) }

// ExtractMACZT computes the margin available for cross-zonal trade (MACZT) of
// the network elements with a Dutch justification string in the final
// flow-based domain. LTA corners are excluded.
//
// The derived percentages are rounded to 2 decimals. Rows with an unparsable
// justification have missing derived values.
func ExtractMACZT(t *table.Table, zone string) (*table.Table, error) {
	if err := checkZone(zone); err != nil {
		return nil, err
	}
	columns := MACZTColumns
	if t.Index != "" {
		columns = append([]string{t.Index}, columns...)
	}
	res, err := t.Select(columns...)
	if err != nil {
		return nil, errors.Annotate(err, "not a final flow-based domain")
	}
	ji := res.ColumnIndex("MinRAMFactorJustification")
	ci := res.ColumnIndex("CNE")
	res.Filter(func(r table.Row) bool {
		j, _ := r[ji].(string)
		cne := table.FormatValue(r[ci])
		return strings.Contains(j, "MACZTtarget") && !strings.Contains(cne, "LTA_corner")
	})

	names := []string{
		"MCCC_PCT", "MNCC_PCT", "LF_CALC_PCT", "LF_ACCEPT_PCT", "MACZT_TARGET_PCT",
		"MACZT_PCT", "LF_SUB_PCT", "MACZT_MIN_PCT", "MACZT_MARGIN",
	}
	derived := make([][]table.Value, len(names))
	for i := range derived {
		derived[i] = make([]table.Value, res.Len())
	}
	rami := res.ColumnIndex("RAM")
	fmaxi := res.ColumnIndex("Fmax")
	for j, r := range res.Rows {
		ram, ok1 := toFloat(r[rami])
		fmax, ok2 := toFloat(r[fmaxi])
		if ok1 && ok2 {
			derived[0][j] = round2(100 * ram / fmax)
		}
		s, _ := r[ji].(string)
		m := justificationRe.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		var pct [4]float64
		parsed := true
		for k := range pct {
			f, ok := toFloat(m[k+1])
			pct[k] = f
			parsed = parsed && ok
		}
		if !parsed || !ok1 || !ok2 {
			continue
		}
		mncc, lfCalc, lfAccept, target := pct[0], pct[1], pct[2], pct[3]
		mccc := 100 * ram / fmax
		maczt := mccc + mncc
		lfSub := lfCalc - lfAccept
		if lfSub < 0 {
			lfSub = 0
		}
		minPct := target - lfSub
		derived[1][j] = mncc
		derived[2][j] = lfCalc
		derived[3][j] = lfAccept
		derived[4][j] = target
		derived[5][j] = round2(maczt)
		derived[6][j] = round2(lfSub)
		derived[7][j] = round2(minPct)
		derived[8][j] = round2(maczt - minPct)
	}
	res.Drop("MinRAMFactorJustification")
	for i, n := range names {
		if err := res.AddColumn(n, table.KindFloat, derived[i]); err != nil {
			return nil, errors.Annotate(err, "failed to add %s", n)
		}
	}
	return res, nil
}
