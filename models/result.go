package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"

	"github.com/padraicbc/keibadata/parse"
)

// Non-finish status tokens as they appear in the origin's result table.
const (
	StatusWithdrawn    = "中止"
	StatusExcluded     = "除外"
	StatusDisqualified = "失格"
)

// RaceResult holds one entrant's result row within a race.
// Time is kept as the origin's raw token; seconds are derived downstream.
type RaceResult struct {
	bun.BaseModel `bun:"table:race_results,alias:r"`

	ID     int    `bun:"id,pk,autoincrement" json:"id"`
	RaceID string `bun:"race_id,notnull,type:varchar(12),unique:race_results_no_dupes" json:"raceID"`

	PostPosition  int     `bun:"post_position,notnull,unique:race_results_no_dupes" json:"postPosition"`
	BracketNumber *int    `bun:"bracket_number" json:"bracketNumber,omitempty"`
	HorseID       *string `bun:"horse_id" json:"horseID,omitempty"`
	HorseName     string  `bun:"horse_name,notnull" json:"horseName"`
	Sex           *string `bun:"sex" json:"sex,omitempty"`
	Age           *int    `bun:"age" json:"age,omitempty"`

	JockeyID    *string `bun:"jockey_id" json:"jockeyID,omitempty"`
	JockeyName  *string `bun:"jockey_name" json:"jockeyName,omitempty"`
	TrainerID   *string `bun:"trainer_id" json:"trainerID,omitempty"`
	TrainerName *string `bun:"trainer_name" json:"trainerName,omitempty"`

	Weight      *decimal.Decimal `bun:"weight,type:numeric(4,1)" json:"weight,omitempty"`
	HorseWeight *int             `bun:"horse_weight" json:"horseWeight,omitempty"`
	WeightDiff  *int             `bun:"weight_diff" json:"weightDiff,omitempty"`

	FinishPosition  *int             `bun:"finish_position" json:"finishPosition,omitempty"`
	Status          *string          `bun:"status" json:"status,omitempty"`
	Time            *string          `bun:"time" json:"time,omitempty"`
	Margin          *string          `bun:"margin" json:"margin,omitempty"`
	Final3F         *decimal.Decimal `bun:"final_3f,type:numeric(3,1)" json:"final3F,omitempty"`
	CornerPositions *string          `bun:"corner_positions" json:"cornerPositions,omitempty"`

	Odds       *decimal.Decimal `bun:"odds,type:numeric(6,1)" json:"odds,omitempty"`
	Popularity *int             `bun:"popularity" json:"popularity,omitempty"`

	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"createdAt"`

	Race *Race `bun:"rel:belongs-to,join:race_id=race_id" json:"-"`
}

// IsWinner reports whether the entrant finished first.
func (r *RaceResult) IsWinner() bool {
	return r.FinishPosition != nil && *r.FinishPosition == 1
}

// CornerMap decodes the raw corner token ("3-3-2-1") into corner index → position.
func (r *RaceResult) CornerMap() (map[int]int, bool) {
	if r.CornerPositions == nil {
		return nil, false
	}
	return parse.CornerPositions(*r.CornerPositions)
}

// TimeSeconds decodes the raw elapsed-time token into total seconds.
func (r *RaceResult) TimeSeconds() (float64, bool) {
	if r.Time == nil {
		return 0, false
	}
	return parse.Time(*r.Time)
}
