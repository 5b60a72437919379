// Package chart turns an untrusted extraction result into two fixed,
// render-ready series and renders them.
package chart

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/finreport/constants"
	"github.com/joseph-ayodele/finreport/internal/extract"
)

// Point is one metric slot of a series.
type Point struct {
	Metric constants.Metric `json:"metric"`
	Value  float64          `json:"value"`
	Amount decimal.Decimal  `json:"-"` // exact source value, zero when defaulted
}

// Series always holds one Point per constants.Metrics entry, in that order.
type Series []Point

// Values returns the series values in display order.
func (s Series) Values() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.Value
	}
	return out
}

// Charts is the normalized pair of periods.
type Charts struct {
	PeriodA Series `json:"periodA"`
	PeriodB Series `json:"periodB"`
}

// Series returns the series of p; any other value yields Period A.
func (c Charts) Series(p constants.Period) Series {
	if p == constants.PeriodB {
		return c.PeriodB
	}
	return c.PeriodA
}

// Normalizer matches periods by fixed source labels.
type Normalizer struct {
	PeriodALabel string
	PeriodBLabel string
}

// DefaultNormalizer reads the fiscal-quarter labels the extraction service emits.
var DefaultNormalizer = Normalizer{
	PeriodALabel: constants.PeriodALabelDefault,
	PeriodBLabel: constants.PeriodBLabelDefault,
}

// Normalize maps r onto the two fixed periods with DefaultNormalizer.
func Normalize(r extract.Result) Charts {
	return DefaultNormalizer.Normalize(r)
}

// Normalize is total: every input, nil included, produces two complete
// series. Missing periods and missing or non-numeric metrics become 0 and
// unknown keys are ignored.
func (n Normalizer) Normalize(r extract.Result) Charts {
	return Charts{
		PeriodA: series(r.Period(n.PeriodALabel)),
		PeriodB: series(r.Period(n.PeriodBLabel)),
	}
}

func series(src map[string]any) Series {
	out := make(Series, 0, len(constants.Metrics))
	for _, m := range constants.Metrics {
		amt, ok := numeric(src[m.SourceLabel()])
		if !ok {
			amt = decimal.Zero
		}
		out = append(out, Point{Metric: m, Value: amt.InexactFloat64(), Amount: amt})
	}
	return out
}

// numeric accepts JSON numbers and Go numeric types. Strings, booleans,
// containers, NaN and infinities are not numbers.
func numeric(v any) (decimal.Decimal, bool) {
	switch x := v.(type) {
	case json.Number:
		d, err := decimal.NewFromString(strings.TrimSpace(x.String()))
		if err != nil {
			return decimal.Zero, false
		}
		if f := d.InexactFloat64(); math.IsInf(f, 0) {
			return decimal.Zero, false
		}
		return d, true
	case float64:
		return fromFloat(x)
	case float32:
		return fromFloat(float64(x))
	case int:
		return decimal.NewFromInt(int64(x)), true
	case int8:
		return decimal.NewFromInt(int64(x)), true
	case int16:
		return decimal.NewFromInt(int64(x)), true
	case int32:
		return decimal.NewFromInt32(x), true
	case int64:
		return decimal.NewFromInt(x), true
	case uint:
		return decimal.NewFromUint64(uint64(x)), true
	case uint8:
		return decimal.NewFromInt(int64(x)), true
	case uint16:
		return decimal.NewFromInt(int64(x)), true
	case uint32:
		return decimal.NewFromInt(int64(x)), true
	case uint64:
		return decimal.NewFromUint64(x), true
	default:
		return decimal.Zero, false
	}
}

func fromFloat(f float64) (decimal.Decimal, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero, false
	}
	return decimal.NewFromFloat(f), true
}
