// Package store is the persistence layer over the races / race_results
// schema. Races are append-only: the pipeline inserts and the cleanup
// operation deletes, nothing updates.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/padraicbc/keibadata/models"
)

// Store wraps a bun connection with the queries the pipeline and its
// consumers need.
type Store struct {
	db *bun.DB
}

// New wraps an open bun connection.
func New(db *bun.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying connection for callers that manage their own
// queries (handlers, tools).
func (s *Store) DB() *bun.DB {
	return s.db
}

// RaceExists reports whether the race id is already persisted.
func (s *Store) RaceExists(ctx context.Context, raceID string) (bool, error) {
	return s.db.NewSelect().Model((*models.Race)(nil)).
		Where("race_id = ?", raceID).
		Exists(ctx)
}

// SaveRace inserts the race and all its results in one transaction.
// Any failure rolls the whole race back.
func (s *Store) SaveRace(ctx context.Context, race *models.Race, results []*models.RaceResult) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(race).Exec(ctx); err != nil {
			return fmt.Errorf("insert race %s: %w", race.ID, err)
		}
		if _, err := tx.NewInsert().Model(&results).Exec(ctx); err != nil {
			return fmt.Errorf("insert results for race %s: %w", race.ID, err)
		}
		return nil
	})
}

// DeleteIncompleteRaces removes every race with zero result rows and returns
// how many were removed.
func (s *Store) DeleteIncompleteRaces(ctx context.Context) (int, error) {
	res, err := s.db.NewDelete().Model((*models.Race)(nil)).
		Where(`race_id IN (
			SELECT rc.race_id FROM races AS rc
			LEFT JOIN race_results AS r ON r.race_id = rc.race_id
			WHERE r.id IS NULL)`).
		Exec(ctx)
	if err != nil {
		return 0, err
	}

	n, err := res.RowsAffected()
	return int(n), err
}

// RaceByID loads one race with its results, ordered by post position.
// Returns nil without error when the id is unknown.
func (s *Store) RaceByID(ctx context.Context, raceID string) (*models.Race, error) {
	race := &models.Race{}
	err := s.db.NewSelect().Model(race).
		Relation("Results", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("post_position")
		}).
		Where("rc.race_id = ?", raceID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return race, nil
}

// RacesByDateRange returns races run between two dates inclusive.
func (s *Store) RacesByDateRange(ctx context.Context, start, end string) ([]*models.Race, error) {
	var races []*models.Race
	err := s.db.NewSelect().Model(&races).
		Where("date >= ? AND date <= ?", start, end).
		Order("date", "race_number").
		Scan(ctx)
	return races, err
}

// RacesByDateVenue returns one day's races at one venue.
func (s *Store) RacesByDateVenue(ctx context.Context, date, venue string) ([]*models.Race, error) {
	var races []*models.Race
	err := s.db.NewSelect().Model(&races).
		Where("date = ? AND venue = ?", date, venue).
		Order("race_number").
		Scan(ctx)
	return races, err
}

// Summary is the store-level status exposed to operators.
type Summary struct {
	TotalRaces     int            `json:"totalRaces"`
	TotalResults   int            `json:"totalResults"`
	LatestRaceDate string         `json:"latestRaceDate,omitempty"`
	VenueCounts    map[string]int `json:"venueCounts"`
}

// Summarize counts persisted races/results and groups races per venue.
func (s *Store) Summarize(ctx context.Context) (*Summary, error) {
	summary := &Summary{VenueCounts: map[string]int{}}

	var err error
	if summary.TotalRaces, err = s.db.NewSelect().Model((*models.Race)(nil)).Count(ctx); err != nil {
		return nil, err
	}
	if summary.TotalResults, err = s.db.NewSelect().Model((*models.RaceResult)(nil)).Count(ctx); err != nil {
		return nil, err
	}

	if summary.TotalRaces > 0 {
		latest := &models.Race{}
		err = s.db.NewSelect().Model(latest).
			Column("date").
			Order("date DESC").
			Limit(1).
			Scan(ctx)
		if err != nil {
			return nil, err
		}
		summary.LatestRaceDate = latest.Date
	}

	var rows []struct {
		Venue string `bun:"venue"`
		N     int    `bun:"n"`
	}
	err = s.db.NewSelect().Model((*models.Race)(nil)).
		ColumnExpr("venue").
		ColumnExpr("count(*) AS n").
		GroupExpr("venue").
		Scan(ctx, &rows)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		summary.VenueCounts[row.Venue] = row.N
	}

	return summary, nil
}
