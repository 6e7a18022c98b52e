// Package ingest drives the end-to-end acquisition run: enumerate race ids
// over a date range, then fetch, convert, validate and persist each race,
// one at a time, never letting a single race or day abort the run.
package ingest

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/padraicbc/keibadata/convert"
	"github.com/padraicbc/keibadata/scrape"
	"github.com/padraicbc/keibadata/store"
)

// RunStats summarizes one ingestion run.
type RunStats struct {
	Total           int     `json:"total"`
	Scraped         int     `json:"scraped"`
	Skipped         int     `json:"skipped"`
	Failed          int     `json:"failed"`
	DurationSeconds float64 `json:"durationSeconds"`
}

// Enumerator lists the race ids run on one date.
// Satisfied by *scrape.ListingScraper.
type Enumerator interface {
	EnumerateForDate(ctx context.Context, day time.Time, venue string) ([]string, error)
}

// candidate is one enumerated race id with the date the calendar put it on.
type candidate struct {
	id   string
	date time.Time
}

// Orchestrator wires the pipeline stages together. All collaborators are
// constructor arguments; it holds no global state.
type Orchestrator struct {
	listings Enumerator
	races    scrape.RaceSource
	conv     *convert.Converter
	store    *store.Store
	log      *zap.Logger
}

// New builds an Orchestrator from its collaborators.
func New(listings Enumerator, races scrape.RaceSource, conv *convert.Converter, st *store.Store, log *zap.Logger) *Orchestrator {
	return &Orchestrator{
		listings: listings,
		races:    races,
		conv:     conv,
		store:    st,
		log:      log,
	}
}

// Run ingests every race in [start, end], optionally filtered to one venue.
// With skipExisting, already-persisted ids are never re-fetched or rewritten.
// Per-race and per-day failures are counted, never fatal; the run only fails
// outright on a bad range or on context cancellation.
func (o *Orchestrator) Run(ctx context.Context, start, end time.Time, venue string, skipExisting bool) (*RunStats, error) {
	if start.After(end) {
		return nil, fmt.Errorf("start %s after end %s", start.Format("2006-01-02"), end.Format("2006-01-02"))
	}

	began := time.Now()
	o.log.Info("starting ingestion run",
		zap.String("start", start.Format("2006-01-02")),
		zap.String("end", end.Format("2006-01-02")),
		zap.String("venue", venue),
		zap.Bool("skip_existing", skipExisting))

	candidates := o.enumerate(ctx, start, end, venue)
	stats := &RunStats{Total: len(candidates)}
	o.log.Info("enumerated candidate races", zap.Int("count", stats.Total))

	for _, cand := range candidates {
		if err := ctx.Err(); err != nil {
			stats.DurationSeconds = time.Since(began).Seconds()
			return stats, err
		}

		o.processOne(ctx, cand, skipExisting, stats)
	}

	stats.DurationSeconds = time.Since(began).Seconds()
	o.log.Info("ingestion run finished",
		zap.Int("total", stats.Total),
		zap.Int("scraped", stats.Scraped),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.Failed),
		zap.Float64("duration_seconds", stats.DurationSeconds))
	return stats, nil
}

// enumerate walks the range day by day. A day whose calendar or listings
// cannot be read is logged and skipped.
func (o *Orchestrator) enumerate(ctx context.Context, start, end time.Time, venue string) []candidate {
	var candidates []candidate
	seen := make(map[string]bool)

	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		if ctx.Err() != nil {
			break
		}

		ids, err := o.listings.EnumerateForDate(ctx, day, venue)
		if err != nil {
			o.log.Warn("skipping date, enumeration failed",
				zap.String("date", day.Format("2006-01-02")),
				zap.Error(err))
			continue
		}

		for _, id := range ids {
			if !seen[id] {
				seen[id] = true
				candidates = append(candidates, candidate{id: id, date: day})
			}
		}
	}
	return candidates
}

func (o *Orchestrator) processOne(ctx context.Context, cand candidate, skipExisting bool, stats *RunStats) {
	if skipExisting {
		exists, err := o.store.RaceExists(ctx, cand.id)
		if err != nil {
			o.log.Error("existence check failed", zap.String("race_id", cand.id), zap.Error(err))
			stats.Failed++
			return
		}
		if exists {
			o.log.Debug("skipping existing race", zap.String("race_id", cand.id))
			stats.Skipped++
			return
		}
	}

	raw, err := o.races.Scrape(ctx, cand.id)
	if err != nil {
		o.log.Error("scrape failed", zap.String("race_id", cand.id), zap.Error(err))
		stats.Failed++
		return
	}

	// The calendar told us the real date; the id alone only encodes the year.
	if raw.Info.Date == "" {
		raw.Info.Date = cand.date.Format("2006-01-02")
	}

	race, results := o.conv.ToEntities(raw)
	if !o.conv.Validate(race, results) {
		o.log.Warn("race failed validation", zap.String("race_id", cand.id))
		stats.Failed++
		return
	}

	if err := o.store.SaveRace(ctx, race, results); err != nil {
		o.log.Error("persist failed", zap.String("race_id", cand.id), zap.Error(err))
		stats.Failed++
		return
	}

	stats.Scraped++
	o.log.Info("scraped race",
		zap.String("race_id", cand.id),
		zap.Int("results", len(results)),
		zap.Int("done", stats.Scraped+stats.Skipped+stats.Failed),
		zap.Int("total", stats.Total))
}

// CleanupIncomplete deletes every persisted race with zero result rows and
// returns the number removed.
func (o *Orchestrator) CleanupIncomplete(ctx context.Context) (int, error) {
	n, err := o.store.DeleteIncompleteRaces(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		o.log.Info("cleaned up incomplete races", zap.Int("count", n))
	}
	return n, nil
}
