package main

import (
	"context"
	"flag"
	"os"

	"github.com/google/subcommands"

	"orgfolio/internal/date"
)

type valueCmd struct {
	portfolio string
	on        string
	stats     bool
}

func (*valueCmd) Name() string     { return "value" }
func (*valueCmd) Synopsis() string { return "value a portfolio on a given day" }
func (*valueCmd) Usage() string {
	return `value -p <portfolio-id> [-d <YYYY-MM-DD>] [-stats]

  Values every position at the price recorded on the given day, or the
  nearest earlier one. Symbols without any stored price fall back to the
  latest recorded price and then to a live fetch when enabled.
`
}

func (c *valueCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.portfolio, "p", "", "portfolio id")
	f.StringVar(&c.on, "d", "", "valuation day (defaults to today)")
	f.BoolVar(&c.stats, "stats", false, "print the summary counters instead of the positions")
}

func (c *valueCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.portfolio == "" {
		fail("-p is required")
		return subcommands.ExitUsageError
	}

	var on *date.Date
	if c.on != "" {
		d, err := date.Parse(c.on)
		if err != nil {
			fail("%v", err)
			return subcommands.ExitUsageError
		}
		on = &d
	}

	e, err := openEnv()
	if err != nil {
		fail("%v", err)
		return subcommands.ExitFailure
	}
	defer e.Close()

	valuations := e.valuation()

	if c.stats {
		stats, err := valuations.GetPortfolioStats(ctx, c.portfolio)
		if err != nil {
			fail("%v", err)
			return subcommands.ExitFailure
		}
		if err := render(os.Stdout, stats, statsReport(stats)); err != nil {
			fail("%v", err)
			return subcommands.ExitFailure
		}
		return subcommands.ExitSuccess
	}

	result, err := valuations.GetPortfolioValue(ctx, c.portfolio, on)
	if err != nil {
		fail("%v", err)
		return subcommands.ExitFailure
	}
	if err := render(os.Stdout, result, valuationReport(result)); err != nil {
		fail("%v", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
