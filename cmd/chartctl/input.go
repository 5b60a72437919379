package main

import (
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"

	"github.com/joseph-ayodele/finreport/constants"
	"github.com/joseph-ayodele/finreport/internal/chart"
	"github.com/joseph-ayodele/finreport/internal/common"
	"github.com/joseph-ayodele/finreport/internal/extract"
	"github.com/joseph-ayodele/finreport/internal/transport"
)

// chartInput selects where a result comes from. Exactly one source is used;
// url wins over data, data over file.
type chartInput struct {
	transport string
	data      string
	url       string
	file      string
	currency  string
	labelA    string
	labelB    string
}

func (in *chartInput) setFlags(f *flag.FlagSet) {
	f.StringVar(&in.transport, "transport", "query", "payload codec: query or message")
	f.StringVar(&in.data, "data", "", "encoded payload, as found in the data parameter")
	f.StringVar(&in.url, "url", "", "full chart address carrying the payload")
	f.StringVar(&in.file, "json", "", "file holding a raw extraction result")
	f.StringVar(&in.currency, "currency", constants.CurrencyCodeDefault, "ISO 4217 currency for amounts")
	f.StringVar(&in.labelA, "period-a", constants.PeriodALabelDefault, "source label read into period A")
	f.StringVar(&in.labelB, "period-b", constants.PeriodBLabelDefault, "source label read into period B")
}

// result decodes the selected source. Transported payloads fail open like
// the chart view does; a JSON file must parse.
func (in *chartInput) result() (extract.Result, error) {
	if in.transport == "handoff" {
		return nil, errors.New("handoff tokens only resolve inside the server that issued them")
	}
	nav, err := transport.New(in.transport, 0, nil)
	if err != nil {
		return nil, err
	}
	switch {
	case in.url != "":
		u, err := url.Parse(in.url)
		if err != nil {
			return nil, fmt.Errorf("parse -url: %w", err)
		}
		return nav.FromURL(u), nil
	case in.data != "":
		return nav.Decode(in.data), nil
	case in.file != "":
		raw, err := os.ReadFile(in.file)
		if err != nil {
			return nil, err
		}
		return extract.ParseResult(raw)
	default:
		return nil, errors.New("one of -url, -data or -json is required")
	}
}

func (in *chartInput) charts() (chart.Charts, chart.Formatter, error) {
	f := chart.NewFormatter(in.currency)
	if v := common.NewValidator().Field("currency", in.currency, common.CurrencyCode); v.HasErrors() {
		return chart.Charts{}, f, v.Error()
	}
	r, err := in.result()
	if err != nil {
		return chart.Charts{}, f, err
	}
	n := chart.Normalizer{PeriodALabel: in.labelA, PeriodBLabel: in.labelB}
	return n.Normalize(r), f, nil
}
