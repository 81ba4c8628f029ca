// Command orgfolioctl runs market snapshots and inspects stored prices and
// portfolio valuations without going through the HTTP API.
package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"
	"github.com/shopspring/decimal"

	"orgfolio/internal/logger"
)

var (
	jsonOutput = flag.Bool("json", false, "print results as JSON instead of a rendered report")
	plain      = flag.Bool("plain", false, "print the markdown report without terminal styling")
)

func main() {
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()
	// reports go to stdout; keep routine logs out of them unless LOG_LEVEL asks
	_ = logger.SetLevel("warn")

	decimal.MarshalJSONWithoutQuotes = true

	name := path.Base(os.Args[0])
	commander := subcommands.NewCommander(flag.CommandLine, name)
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")

	groups := []struct {
		name string
		cmds []subcommands.Command
	}{
		{"market data", []subcommands.Command{&snapshotCmd{}, &historyCmd{}, &latestCmd{}, &statusCmd{}}},
		{"portfolios", []subcommands.Command{&valueCmd{}}},
	}
	var all []subcommands.Command
	for _, g := range groups {
		for _, c := range g.cmds {
			commander.Register(c, g.name)
			all = append(all, c)
		}
	}

	// exits when invoked by the shell to complete a command line
	completionTree(flag.CommandLine, all).Complete(name)

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
