package constants

// Period identifies one of the two fixed reporting periods of a chart.
type Period string

const (
	PeriodA Period = "A"
	PeriodB Period = "B"
)

// Periods is the render order.
var Periods = []Period{PeriodA, PeriodB}

// Default source labels for the two periods, as produced by the extraction service.
const (
	PeriodALabelDefault = "Q1 FY2023-24"
	PeriodBLabelDefault = "Q2 FY2023-24"
)

// Metric is a displayed metric slot.
type Metric string

const (
	MetricRevenue Metric = "Revenue"
	MetricPAT     Metric = "PAT"
	MetricNet     Metric = "Net"
)

// Metrics is the fixed display order of a series.
var Metrics = []Metric{MetricRevenue, MetricPAT, MetricNet}

// MetricSourceLabels maps each displayed metric to the label it is read from.
var MetricSourceLabels = map[Metric]string{
	MetricRevenue: "Revenue",
	MetricPAT:     "PBT",
	MetricNet:     "Net Profit",
}

// SourceLabel returns the extraction label a metric is read from.
func (m Metric) SourceLabel() string {
	return MetricSourceLabels[m]
}

// Short returns the axis tick form of the metric (first three characters).
func (m Metric) Short() string {
	s := string(m)
	if len(s) > 3 {
		return s[:3]
	}
	return s
}

// Chart presentation texts.
const (
	ChartDescription    = "Revenue, PAT, and Net Profit"
	ChartFooter         = "Financial performance for this quarter"
	CurrencyCodeDefault = "INR"
	TransportParamData  = "data"
	ChartPathDefault    = "/chart"
	ChartTitlePeriodA   = "Q1 Financials"
	ChartTitlePeriodB   = "Q2 Financials"
)
