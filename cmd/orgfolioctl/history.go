package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"orgfolio/internal/date"
	"orgfolio/internal/models"
	"orgfolio/internal/pagination"
	"orgfolio/internal/services"
)

type historyCmd struct {
	symbol string
	days   int
	from   string
	to     string
	page   int
	size   int
}

func (*historyCmd) Name() string     { return "history" }
func (*historyCmd) Synopsis() string { return "list stored prices" }
func (*historyCmd) Usage() string {
	return `history [-s <symbol> [-days N]] | [-from <YYYY-MM-DD>] [-to <YYYY-MM-DD>] [-page N] [-n N]

  With only -s, lists the last N days of prices for the symbol. Otherwise
  lists stored prices newest first, optionally filtered by symbol and day
  range, one page at a time.
`
}

func (c *historyCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.symbol, "s", "", "symbol")
	f.IntVar(&c.days, "days", 30, "days to look back for a single symbol")
	f.StringVar(&c.from, "from", "", "first day")
	f.StringVar(&c.to, "to", "", "last day")
	f.IntVar(&c.page, "page", 1, "page number")
	f.IntVar(&c.size, "n", 100, "page size")
}

func (c *historyCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	symbol := models.NormalizeSymbol(c.symbol)
	if symbol != "" && !models.ValidSymbol(symbol) {
		fail("invalid symbol %q", c.symbol)
		return subcommands.ExitUsageError
	}
	from, err := optionalDate(c.from)
	if err != nil {
		fail("%v", err)
		return subcommands.ExitUsageError
	}
	to, err := optionalDate(c.to)
	if err != nil {
		fail("%v", err)
		return subcommands.ExitUsageError
	}

	e, err := openEnv()
	if err != nil {
		fail("%v", err)
		return subcommands.ExitFailure
	}
	defer e.Close()

	if symbol != "" && from == nil && to == nil {
		points, err := e.prices.GetSymbolHistory(ctx, symbol, c.days)
		if err != nil {
			fail("%v", err)
			return subcommands.ExitFailure
		}
		title := fmt.Sprintf("%s, last %d days", symbol, c.days)
		if err := render(os.Stdout, points, pricesReport(title, points)); err != nil {
			fail("%v", err)
			return subcommands.ExitFailure
		}
		return subcommands.ExitSuccess
	}

	filter := services.MarketHistoryFilter{Symbol: symbol, From: from, To: to}
	resp, err := e.prices.GetMarketHistory(ctx, filter, pagination.PageRequest{Page: c.page, PageSize: c.size})
	if err != nil {
		fail("%v", err)
		return subcommands.ExitFailure
	}
	title := fmt.Sprintf("Price history, page %d of %d (%d rows)", resp.Page, resp.TotalPages, resp.TotalItems)
	if err := render(os.Stdout, resp, pricesReport(title, resp.Data)); err != nil {
		fail("%v", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

type latestCmd struct{}

func (*latestCmd) Name() string     { return "latest" }
func (*latestCmd) Synopsis() string { return "list the latest stored price of every symbol" }
func (*latestCmd) Usage() string {
	return `latest

  Lists the most recent stored row of every symbol.
`
}

func (*latestCmd) SetFlags(*flag.FlagSet) {}

func (*latestCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	e, err := openEnv()
	if err != nil {
		fail("%v", err)
		return subcommands.ExitFailure
	}
	defer e.Close()

	points, err := e.prices.GetLatestPrices(ctx)
	if err != nil {
		fail("%v", err)
		return subcommands.ExitFailure
	}
	if err := render(os.Stdout, points, pricesReport("Latest prices", points)); err != nil {
		fail("%v", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func optionalDate(s string) (*date.Date, error) {
	if s == "" {
		return nil, nil
	}
	d, err := date.Parse(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
