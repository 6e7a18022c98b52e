// Package scrape walks the origin's calendar, listing and race detail pages
// and decomposes them into raw records for conversion.
package scrape

import (
	"context"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/semaphore"
)

// PageFetcher retrieves and parses one origin page.
// Satisfied by *fetch.Fetcher.
type PageFetcher interface {
	Fetch(ctx context.Context, pageURL string) (*goquery.Document, error)
}

// RaceSource fetches and decodes one race by id.
// Satisfied by *RaceScraper and by test doubles.
type RaceSource interface {
	Scrape(ctx context.Context, raceID string) (*RaceRaw, error)
}

// Outcome pairs one batched target with its record or error.
type Outcome struct {
	RaceID string
	Raw    *RaceRaw
	Err    error
}

// ScrapeMany fans one Scrape call per race id out under maxConcurrent slots.
// A failing id carries its error in the outcome; siblings are unaffected.
// Outcomes keep input order.
func ScrapeMany(ctx context.Context, src RaceSource, raceIDs []string, maxConcurrent int) []Outcome {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}

	outcomes := make([]Outcome, len(raceIDs))
	gate := semaphore.NewWeighted(int64(maxConcurrent))
	done := make(chan struct{})

	for i, id := range raceIDs {
		go func(i int, id string) {
			defer func() { done <- struct{}{} }()
			if err := gate.Acquire(ctx, 1); err != nil {
				outcomes[i] = Outcome{RaceID: id, Err: err}
				return
			}
			defer gate.Release(1)

			raw, err := src.Scrape(ctx, id)
			outcomes[i] = Outcome{RaceID: id, Raw: raw, Err: err}
		}(i, id)
	}
	for range raceIDs {
		<-done
	}
	return outcomes
}

// RaceRaw is one race detail page decomposed into header metadata and
// positional result rows, before any domain parsing.
type RaceRaw struct {
	ID        string
	Info      RaceInfo
	Rows      []ResultRow
	ScrapedAt time.Time
}

// RaceInfo is the header metadata of a race detail page. Date is filled by
// callers that enumerated the race via the calendar; the converter falls back
// to the id decode when it is empty.
type RaceInfo struct {
	Name           string
	Date           string
	Venue          string
	RaceNumber     int
	StartTime      string
	Weather        string
	TrackCondition string
	Distance       int
	Surface        string
	Grade          string
}

// ResultRow is one entrant row extracted by column position. Tokens that
// need domain parsing (weights, odds, margins) stay raw here.
type ResultRow struct {
	FinishPosition *int
	Status         string
	BracketNumber  *int
	PostPosition   *int

	HorseID   string
	HorseName string
	Sex       string
	Age       *int

	CarriedWeight string
	JockeyID      string
	JockeyName    string
	TrainerID     string
	TrainerName   string

	Time            string
	Margin          string
	CornerPositions string
	Final3F         string
	Odds            string
	Popularity      *int
	HorseWeight     string
}
