// Command seed generates synthetic source batches over a range of dates and
// either writes them as snapshots or posts them to a running service.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/okian/hoopsrank/internal/adapters/acquire"
	"github.com/okian/hoopsrank/internal/domain/catalog"
	"github.com/okian/hoopsrank/internal/domain/model"
	"github.com/okian/hoopsrank/internal/synth"
	"github.com/okian/hoopsrank/pkg/logger"
)

// Default configuration constants.
const (
	defaultTeams   = 364
	defaultDays    = 7
	defaultTimeout = 30 * time.Second
	runTimeout     = 10 * time.Minute
)

func main() {
	var (
		dir       = flag.String("dir", "", "Write snapshots under this directory (<dir>/<date>/<source>.json)")
		baseURL   = flag.String("url", "", "Post batches to this service, e.g. http://localhost:9080")
		teams     = flag.Int("teams", defaultTeams, "Number of teams in the league")
		days      = flag.Int("days", defaultDays, "Number of consecutive dates to generate")
		start     = flag.String("start", time.Now().AddDate(0, 0, -defaultDays+1).Format(model.DateLayout), "First date, YYYY-MM-DD")
		seed      = flag.Int64("seed", 1, "Random seed")
		randomIDs = flag.Bool("random-ids", false, "Use opaque UUID team keys")
		timeout   = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
	)
	flag.Parse()

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	log := logger.Get().Named("seed")

	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	if *dir == "" && *baseURL == "" {
		log.Error(ctx, "nothing to do: set -dir or -url")
		os.Exit(2)
	}
	first, err := time.Parse(model.DateLayout, *start)
	if err != nil {
		log.Error(ctx, "invalid -start", logger.Error(err))
		os.Exit(2)
	}

	keys := synth.Teams(*teams)
	if *randomIDs {
		keys = synth.RandomTeams(*teams)
	}
	cat := catalog.Default()
	league := synth.NewLeague(keys, *seed)

	var client *synth.Client
	if *baseURL != "" {
		client = synth.NewClient(*baseURL, *timeout)
	}

	for d := 0; d < *days; d++ {
		date := first.AddDate(0, 0, d).Format(model.DateLayout)
		batches := league.Batches(cat)
		if *dir != "" {
			for source, rows := range batches {
				if err := acquire.WriteSnapshot(*dir, source, date, rows); err != nil {
					log.Error(ctx, "write snapshot failed", logger.String("date", date), logger.Error(err))
					os.Exit(1)
				}
			}
		}
		if client != nil {
			if err := client.Ingest(ctx, date, batches); err != nil {
				log.Error(ctx, "ingest failed", logger.String("date", date), logger.Error(err))
				os.Exit(1)
			}
		}
		log.Info(ctx, "generated date", logger.String("date", date), logger.Int("teams", len(keys)))
		league.Advance()
	}

	if client != nil {
		if err := client.Backfill(ctx); err != nil {
			log.Error(ctx, "backfill failed", logger.Error(err))
			os.Exit(1)
		}
		log.Info(ctx, "backfill triggered")
	}
}
