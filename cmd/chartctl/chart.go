package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/google/subcommands"

	"github.com/joseph-ayodele/finreport/constants"
	"github.com/joseph-ayodele/finreport/internal/chart"
	"github.com/joseph-ayodele/finreport/internal/export"
)

type decodeCmd struct {
	in     chartInput
	asJSON bool
}

func (*decodeCmd) Name() string     { return "decode" }
func (*decodeCmd) Synopsis() string { return "print the normalized charts carried by a payload" }
func (*decodeCmd) Usage() string {
	return `chartctl decode (-url <chart address> | -data <payload> | -json <file>) [-transport query|message] [-json-out]

  Decodes a transported result and prints both period series.
`
}

func (c *decodeCmd) SetFlags(f *flag.FlagSet) {
	c.in.setFlags(f)
	f.BoolVar(&c.asJSON, "json-out", false, "print the chart views as JSON")
}

func (c *decodeCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	charts, fmtr, err := c.in.charts()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	views := fmtr.PresentAll(charts)
	if c.asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		if err := enc.Encode(views); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return subcommands.ExitFailure
		}
		return subcommands.ExitSuccess
	}
	if err := printViews(os.Stdout, views); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func printViews(w io.Writer, views []chart.View) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	for _, v := range views {
		fmt.Fprintf(tw, "%s\t\t\n", v.Title)
		for _, p := range v.Points {
			fmt.Fprintf(tw, "%s\t%s\t\n", p.Metric, p.Display)
		}
		fmt.Fprintln(tw, "\t\t")
	}
	return tw.Flush()
}

type pngCmd struct {
	in     chartInput
	period string
	out    string
}

func (*pngCmd) Name() string     { return "png" }
func (*pngCmd) Synopsis() string { return "render one period's bar chart as PNG" }
func (*pngCmd) Usage() string {
	return `chartctl png (-url <chart address> | -data <payload> | -json <file>) [-period A|B] -o <file.png>
`
}

func (c *pngCmd) SetFlags(f *flag.FlagSet) {
	c.in.setFlags(f)
	f.StringVar(&c.period, "period", string(constants.PeriodA), "period to render: A or B")
	f.StringVar(&c.out, "o", "", "output file (required)")
}

func (c *pngCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	p := constants.Period(strings.ToUpper(c.period))
	if c.out == "" || (p != constants.PeriodA && p != constants.PeriodB) {
		fmt.Fprint(os.Stderr, c.Usage())
		return subcommands.ExitUsageError
	}
	charts, fmtr, err := c.in.charts()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	if err := writeFile(c.out, func(w io.Writer) error { return fmtr.RenderPNG(w, charts, p) }); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

type xlsxCmd struct {
	in  chartInput
	out string
}

func (*xlsxCmd) Name() string     { return "xlsx" }
func (*xlsxCmd) Synopsis() string { return "export both periods to an XLSX workbook with charts" }
func (*xlsxCmd) Usage() string {
	return `chartctl xlsx (-url <chart address> | -data <payload> | -json <file>) -o <file.xlsx>
`
}

func (c *xlsxCmd) SetFlags(f *flag.FlagSet) {
	c.in.setFlags(f)
	f.StringVar(&c.out, "o", "", "output file (required)")
}

func (c *xlsxCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.out == "" {
		fmt.Fprint(os.Stderr, c.Usage())
		return subcommands.ExitUsageError
	}
	charts, fmtr, err := c.in.charts()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	data, err := export.NewService(nil, nil).ChartsXLSX(charts, fmtr)
	if err == nil {
		err = os.WriteFile(c.out, data, 0o644)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func writeFile(name string, fill func(io.Writer) error) error {
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	if err := fill(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
