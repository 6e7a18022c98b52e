// Package convert maps raw scraped records into the persisted entities and
// checks the structural invariants a race must satisfy before persistence.
package convert

import (
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/padraicbc/keibadata/models"
	"github.com/padraicbc/keibadata/parse"
	"github.com/padraicbc/keibadata/scrape"
)

// Converter builds persisted entities out of raw scrapes.
type Converter struct {
	log *zap.Logger
}

// New returns a Converter logging drops and warnings to the given logger.
func New(log *zap.Logger) *Converter {
	return &Converter{log: log}
}

// ToEntities builds the race skeleton and one result per usable raw row.
// A row that cannot be keyed (no post position) is dropped with a warning
// rather than failing the race.
func (c *Converter) ToEntities(raw *scrape.RaceRaw) (*models.Race, []*models.RaceResult) {
	race := &models.Race{
		ID:             raw.ID,
		Date:           raw.Info.Date,
		Venue:          raw.Info.Venue,
		RaceNumber:     raw.Info.RaceNumber,
		Name:           strPtr(raw.Info.Name),
		Distance:       raw.Info.Distance,
		Surface:        raw.Info.Surface,
		Weather:        strPtr(raw.Info.Weather),
		TrackCondition: strPtr(raw.Info.TrackCondition),
	}

	if race.Date == "" {
		// The listing didn't supply a date; fall back to the coarse id decode.
		if d, ok := parse.DateFromRaceID(raw.ID); ok {
			race.Date = d.Format("2006-01-02")
		}
	}
	if g, ok := parse.Grade(raw.Info.Grade); ok {
		race.Grade = &g
	}

	results := make([]*models.RaceResult, 0, len(raw.Rows))
	for _, row := range raw.Rows {
		result, ok := c.toResult(raw.ID, row)
		if !ok {
			c.log.Warn("dropping unconvertible result row",
				zap.String("race_id", raw.ID),
				zap.String("horse", row.HorseName))
			continue
		}
		results = append(results, result)
	}

	return race, results
}

func (c *Converter) toResult(raceID string, row scrape.ResultRow) (*models.RaceResult, bool) {
	if row.PostPosition == nil {
		return nil, false
	}

	result := &models.RaceResult{
		RaceID:          raceID,
		PostPosition:    *row.PostPosition,
		BracketNumber:   row.BracketNumber,
		HorseID:         strPtr(row.HorseID),
		HorseName:       row.HorseName,
		Sex:             strPtr(row.Sex),
		Age:             row.Age,
		JockeyID:        strPtr(row.JockeyID),
		JockeyName:      strPtr(row.JockeyName),
		TrainerID:       strPtr(row.TrainerID),
		TrainerName:     strPtr(row.TrainerName),
		FinishPosition:  row.FinishPosition,
		Status:          strPtr(row.Status),
		Time:            strPtr(row.Time),
		Popularity:      row.Popularity,
		CornerPositions: strPtr(row.CornerPositions),
	}

	if d, err := decimal.NewFromString(row.CarriedWeight); err == nil {
		result.Weight = &d
	}
	if weight, diff, ok := parse.Weight(row.HorseWeight); ok {
		result.HorseWeight = &weight
		result.WeightDiff = &diff
	}
	if m, ok := parse.Margin(row.Margin); ok {
		result.Margin = &m
	}
	if d, err := decimal.NewFromString(row.Final3F); err == nil {
		result.Final3F = &d
	}
	if odds, ok := parse.Odds(row.Odds); ok {
		result.Odds = &odds
	}

	return result, true
}

// Validate rejects a race that cannot be persisted consistently: missing id,
// no results, or two entrants sharing a post position. A winner count other
// than one is tolerated with a warning (dead heats, timing gaps).
func (c *Converter) Validate(race *models.Race, results []*models.RaceResult) bool {
	if race == nil || race.ID == "" {
		c.log.Error("race has no id")
		return false
	}
	if len(results) == 0 {
		c.log.Warn("race has no results", zap.String("race_id", race.ID))
		return false
	}

	seen := make(map[int]bool, len(results))
	for _, r := range results {
		if seen[r.PostPosition] {
			c.log.Error("duplicate post position",
				zap.String("race_id", race.ID),
				zap.Int("post_position", r.PostPosition))
			return false
		}
		seen[r.PostPosition] = true
	}

	winners := 0
	for _, r := range results {
		if r.IsWinner() {
			winners++
		}
	}
	if winners != 1 {
		c.log.Warn("unexpected winner count",
			zap.String("race_id", race.ID),
			zap.Int("winners", winners))
	}

	return true
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
