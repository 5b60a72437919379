// Command chartctl decodes, renders and produces chart data from the
// command line.
package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"
)

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")

	for _, c := range []subcommands.Command{&decodeCmd{}, &pngCmd{}, &xlsxCmd{}} {
		commander.Register(c, "chart")
	}
	for _, c := range []subcommands.Command{&runCmd{}, &batchCmd{}, &watchCmd{}} {
		commander.Register(c, "extraction")
	}

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
