package chart

import (
	"fmt"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/finreport/constants"
)

// Formatter renders amounts in one currency.
type Formatter struct {
	code string
}

// NewFormatter returns a formatter for an ISO 4217 code; unknown codes fall
// back to the library's generic currency.
func NewFormatter(code string) Formatter {
	if code == "" {
		code = constants.CurrencyCodeDefault
	}
	return Formatter{code: code}
}

// Symbol is the currency grapheme, e.g. ₹.
func (f Formatter) Symbol() string {
	c := money.New(0, f.code).Currency()
	if c.Grapheme != "" {
		return c.Grapheme
	}
	return c.Code
}

// ValueLabel is the axis caption for amounts.
func (f Formatter) ValueLabel() string {
	return fmt.Sprintf("Amount (%s)", f.Symbol())
}

// Display formats an amount with symbol, grouping and minor units.
func (f Formatter) Display(d decimal.Decimal) string {
	m := money.New(0, f.code)
	minor := d.Shift(int32(m.Currency().Fraction)).Round(0).IntPart()
	return money.New(minor, f.code).Display()
}

// DisplayFloat formats a float amount; used for axis ticks.
func (f Formatter) DisplayFloat(v float64) string {
	return f.Display(decimal.NewFromFloat(v))
}

// PointView is the presentation of one bar.
type PointView struct {
	Metric  constants.Metric `json:"metric"`
	Tick    string           `json:"tick"`
	Value   float64          `json:"value"`
	Display string           `json:"display"`
}

// View is a render-ready chart card for one period.
type View struct {
	Period      constants.Period `json:"period"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Footer      string           `json:"footer"`
	ValueLabel  string           `json:"valueLabel"`
	Points      []PointView      `json:"points"`
}

// Title returns the card title of a period.
func Title(p constants.Period) string {
	if p == constants.PeriodB {
		return constants.ChartTitlePeriodB
	}
	return constants.ChartTitlePeriodA
}

// Present builds the view of period p.
func (f Formatter) Present(c Charts, p constants.Period) View {
	s := c.Series(p)
	pts := make([]PointView, 0, len(s))
	for _, pt := range s {
		pts = append(pts, PointView{
			Metric:  pt.Metric,
			Tick:    pt.Metric.Short(),
			Value:   pt.Value,
			Display: f.Display(pt.Amount),
		})
	}
	return View{
		Period:      p,
		Title:       Title(p),
		Description: constants.ChartDescription,
		Footer:      constants.ChartFooter,
		ValueLabel:  f.ValueLabel(),
		Points:      pts,
	}
}

// PresentAll returns the views of both periods in render order.
func (f Formatter) PresentAll(c Charts) []View {
	out := make([]View, 0, len(constants.Periods))
	for _, p := range constants.Periods {
		out = append(out, f.Present(c, p))
	}
	return out
}
