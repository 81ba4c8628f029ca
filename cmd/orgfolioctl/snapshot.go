package main

import (
	"context"
	"flag"
	"os"

	"github.com/google/subcommands"

	"orgfolio/internal/scheduler"
	"orgfolio/internal/services"
)

type snapshotCmd struct{}

func (*snapshotCmd) Name() string     { return "snapshot" }
func (*snapshotCmd) Synopsis() string { return "fetch the price source and store today's prices" }
func (*snapshotCmd) Usage() string {
	return `snapshot

  Runs the ingestion job once: fetches the configured price source and
  writes one price per symbol for today, replacing earlier captures of the
  same day. Exits non-zero when nothing could be stored.
`
}

func (*snapshotCmd) SetFlags(*flag.FlagSet) {}

func (*snapshotCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	e, err := openEnv()
	if err != nil {
		fail("%v", err)
		return subcommands.ExitFailure
	}
	defer e.Close()

	sched, err := scheduler.New(services.NewSnapshotService(e.source, e.prices, e.loc), e.cfg.Market)
	if err != nil {
		fail("%v", err)
		return subcommands.ExitFailure
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.Market.SnapshotTimeout)
	defer cancel()

	result, err := sched.RunNow(ctx)
	if result != nil {
		if rerr := render(os.Stdout, result, snapshotReport(result)); rerr != nil {
			fail("%v", rerr)
		}
	}
	if err != nil {
		fail("snapshot failed: %v", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
