// cmd/ingest/main.go
// One-shot backfill of race results for a date range, without the API server.
//
// Usage:
//
//	go run ./cmd/ingest -start 2024-01-01 -end 2024-01-31 -venue 東京
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/padraicbc/keibadata/config"
	"github.com/padraicbc/keibadata/convert"
	bundb "github.com/padraicbc/keibadata/db"
	"github.com/padraicbc/keibadata/fetch"
	"github.com/padraicbc/keibadata/ingest"
	applog "github.com/padraicbc/keibadata/logger"
	"github.com/padraicbc/keibadata/scrape"
	"github.com/padraicbc/keibadata/store"
)

const dateLayout = "2006-01-02"

func main() {
	startFlag := flag.String("start", "", "first date to ingest, YYYY-MM-DD (required)")
	endFlag := flag.String("end", "", "last date to ingest, YYYY-MM-DD (defaults to -start)")
	venue := flag.String("venue", "", "restrict to one venue, e.g. 東京")
	skipExisting := flag.Bool("skip-existing", true, "skip races already in the database")
	cleanup := flag.Bool("cleanup", false, "delete races with no results before ingesting")
	flag.Parse()

	if *startFlag == "" {
		log.Fatal("-start is required")
	}
	if *endFlag == "" {
		*endFlag = *startFlag
	}

	start, err := time.Parse(dateLayout, *startFlag)
	if err != nil {
		log.Fatalf("bad -start: %v", err)
	}
	end, err := time.Parse(dateLayout, *endFlag)
	if err != nil {
		log.Fatalf("bad -end: %v", err)
	}

	cfg := config.Load()
	logger, err := applog.New(cfg.Debug)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	db := bundb.Setup(cfg)
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := bundb.CreateTables(ctx, db); err != nil {
		logger.Fatal("create tables failed", zap.Error(err))
	}

	fetcher := fetch.New(cfg.Scraping, logger)
	listings := scrape.NewListingScraper(fetcher, cfg.Scraping.BaseURL, logger)
	races := scrape.NewRaceScraper(fetcher, cfg.Scraping.BaseURL, logger)
	st := store.New(db)
	orch := ingest.New(listings, races, convert.New(logger), st, logger)

	if *cleanup {
		n, err := orch.CleanupIncomplete(ctx)
		if err != nil {
			logger.Fatal("cleanup failed", zap.Error(err))
		}
		logger.Info("cleanup done", zap.Int("deleted", n))
	}

	// Large backfills run month by month so progress survives in the log
	// and an interrupt loses at most the current chunk.
	total := ingest.RunStats{}
	for chunkStart := start; !chunkStart.After(end); {
		chunkEnd := chunkStart.AddDate(0, 1, -chunkStart.Day())
		if chunkEnd.After(end) {
			chunkEnd = end
		}

		stats, err := orch.Run(ctx, chunkStart, chunkEnd, *venue, *skipExisting)
		if stats != nil {
			total.Total += stats.Total
			total.Scraped += stats.Scraped
			total.Skipped += stats.Skipped
			total.Failed += stats.Failed
			total.DurationSeconds += stats.DurationSeconds
		}
		if err != nil {
			logger.Fatal("ingestion failed",
				zap.String("chunk_start", chunkStart.Format(dateLayout)),
				zap.Error(err))
		}
		logger.Info("chunk done",
			zap.String("from", chunkStart.Format(dateLayout)),
			zap.String("to", chunkEnd.Format(dateLayout)),
			zap.Int("scraped", stats.Scraped))

		chunkStart = chunkEnd.AddDate(0, 0, 1)
	}

	logger.Info("ingestion done",
		zap.Int("total", total.Total),
		zap.Int("scraped", total.Scraped),
		zap.Int("skipped", total.Skipped),
		zap.Int("failed", total.Failed),
		zap.Float64("seconds", total.DurationSeconds))
}
