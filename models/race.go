package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Race is one race meeting entry keyed by the origin's 12-digit race id.
// The id encodes year (chars 0-4) and a 2-digit venue code (chars 4-6).
type Race struct {
	bun.BaseModel `bun:"table:races,alias:rc"`

	ID             string    `bun:"race_id,pk,type:varchar(12)" json:"raceID"`
	Date           string    `bun:"date,notnull,type:date" json:"date"`
	Venue          string    `bun:"venue,notnull" json:"venue"`
	RaceNumber     int       `bun:"race_number,notnull" json:"raceNumber"`
	Name           *string   `bun:"name" json:"name,omitempty"`
	Grade          *string   `bun:"grade" json:"grade,omitempty"`
	Distance       int       `bun:"distance,notnull" json:"distance"`
	Surface        string    `bun:"surface,notnull" json:"surface"`
	Weather        *string   `bun:"weather" json:"weather,omitempty"`
	TrackCondition *string   `bun:"track_condition" json:"trackCondition,omitempty"`
	CreatedAt      time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"createdAt"`

	Results []*RaceResult `bun:"rel:has-many,join:race_id=race_id" json:"results,omitempty"`
}
