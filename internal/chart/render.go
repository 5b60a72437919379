package chart

import (
	"fmt"
	"io"
	"math"

	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/joseph-ayodele/finreport/constants"
)

const (
	pngWidth  = 640
	pngHeight = 400
)

// Bar fills per period.
var periodColors = map[constants.Period]drawing.Color{
	constants.PeriodA: drawing.ColorFromHex("2563eb"),
	constants.PeriodB: drawing.ColorFromHex("16a34a"),
}

// RenderPNG draws the bar chart of one period as a PNG.
func (f Formatter) RenderPNG(w io.Writer, c Charts, p constants.Period) error {
	v := f.Present(c, p)

	fill, ok := periodColors[p]
	if !ok {
		fill = periodColors[constants.PeriodA]
	}
	bars := make([]gochart.Value, 0, len(v.Points))
	values := make([]float64, 0, len(v.Points))
	for _, pt := range v.Points {
		bars = append(bars, gochart.Value{
			Label: pt.Tick,
			Value: pt.Value,
			Style: gochart.Style{FillColor: fill, StrokeColor: fill, StrokeWidth: 1},
		})
		values = append(values, pt.Value)
	}

	lo, hi := axisRange(values)
	bc := gochart.BarChart{
		Title:      v.Title,
		TitleStyle: gochart.Style{FontSize: 14},
		Width:      pngWidth,
		Height:     pngHeight,
		BarWidth:   80,
		Background: gochart.Style{Padding: gochart.Box{Top: 48, Left: 16, Right: 16, Bottom: 16}},
		XAxis:      gochart.Style{FontSize: 10},
		YAxis: gochart.YAxis{
			Name:  v.ValueLabel,
			Style: gochart.Style{FontSize: 9},
			Range: &gochart.ContinuousRange{Min: lo, Max: hi},
			ValueFormatter: func(x interface{}) string {
				if fv, ok := x.(float64); ok {
					return f.DisplayFloat(fv)
				}
				return fmt.Sprint(x)
			},
		},
		Bars: bars,
	}
	if err := bc.Render(gochart.PNG, w); err != nil {
		return fmt.Errorf("render %s chart: %w", p, err)
	}
	return nil
}

// axisRange spans 0 and every value with 10% headroom. The span is never
// empty; an all-zero series gets 0..1.
func axisRange(values []float64) (float64, float64) {
	lo, hi := 0.0, 0.0
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if hi == lo {
		return 0, 1
	}
	pad := (hi - lo) * 0.1
	if hi > 0 {
		hi += pad
	}
	if lo < 0 {
		lo -= pad
	}
	return lo, hi
}
