package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/subcommands"

	"orgfolio/internal/config"
	"orgfolio/internal/scheduler"
)

type statusCmd struct {
	addr  string
	local bool
}

func (*statusCmd) Name() string     { return "status" }
func (*statusCmd) Synopsis() string { return "show the snapshot scheduler status" }
func (*statusCmd) Usage() string {
	return `status [-addr <url>] [-local]

  Asks a running API server for its scheduler status through the pipeline
  endpoint (PIPELINE_API_KEY). With -local, computes the next run from the
  configured schedule instead; the state is then always "stopped".
`
}

func (c *statusCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.addr, "addr", "", "API base URL (defaults to http://localhost:$PORT)")
	f.BoolVar(&c.local, "local", false, "use the local configuration instead of the server")
}

func (c *statusCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := config.Load()
	if err != nil {
		fail("%v", err)
		return subcommands.ExitFailure
	}

	var status scheduler.Status
	if c.local {
		sched, err := scheduler.New(nil, cfg.Market)
		if err != nil {
			fail("%v", err)
			return subcommands.ExitFailure
		}
		status = sched.Status()
	} else {
		addr := c.addr
		if addr == "" {
			addr = "http://localhost:" + cfg.Port
		}
		if status, err = fetchStatus(ctx, addr, cfg.PipelineAPIKey); err != nil {
			fail("%v", err)
			return subcommands.ExitFailure
		}
	}

	if err := render(os.Stdout, status, statusReport(status)); err != nil {
		fail("%v", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func fetchStatus(ctx context.Context, addr, apiKey string) (scheduler.Status, error) {
	var status scheduler.Status

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	url := strings.TrimRight(addr, "/") + "/api/v1/pipeline/market-data/scheduler-status"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return status, err
	}
	req.Header.Set("X-API-Key", apiKey)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return status, fmt.Errorf("failed to reach %s: %w", addr, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return status, fmt.Errorf("scheduler status returned %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return status, fmt.Errorf("failed to decode scheduler status: %w", err)
	}
	return status, nil
}
