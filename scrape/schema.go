package scrape

import "regexp"

// The origin's markup drifts over time. Selector sets live in schema values
// so a markup change means a new schema, not a rewrite of traversal code.

// CalendarSchema selects the pieces of the monthly calendar page and the
// per-meeting race listing page.
type CalendarSchema struct {
	// Calendar page
	Table       string
	DayLabel    string
	MeetingHref string

	// Listing page
	RaceIDPattern *regexp.Regexp
}

// RaceSchema selects the pieces of a race detail page.
type RaceSchema struct {
	RaceName    string
	RaceData    string
	RaceDataRow string
	RaceNum     string
	GradeIcon   string
	ResultTable string
	ResultRow   string
	ResultCell  string

	// MinCells drops truncated rows before positional extraction.
	MinCells int

	DistancePattern  *regexp.Regexp
	RaceNumPattern   *regexp.Regexp
	HorseIDPattern   *regexp.Regexp
	JockeyIDPattern  *regexp.Regexp
	TrainerIDPattern *regexp.Regexp
}

// DefaultCalendarSchema matches the origin's current calendar markup.
func DefaultCalendarSchema() CalendarSchema {
	return CalendarSchema{
		Table:         "table.Calendar",
		DayLabel:      "span.Day",
		MeetingHref:   "/top/race_list",
		RaceIDPattern: regexp.MustCompile(`/race/(\d{12})`),
	}
}

// DefaultRaceSchema matches the origin's current result-page markup.
func DefaultRaceSchema() RaceSchema {
	return RaceSchema{
		RaceName:    "h1.RaceName",
		RaceData:    "div.RaceData01",
		RaceDataRow: "span",
		RaceNum:     "dt.RaceNum",
		GradeIcon:   "span.Icon_GradeType",
		ResultTable: "table.RaceTable01",
		ResultRow:   "tr",
		ResultCell:  "td",

		MinCells: 15,

		DistancePattern:  regexp.MustCompile(`(\d+)m`),
		RaceNumPattern:   regexp.MustCompile(`(\d+)R`),
		HorseIDPattern:   regexp.MustCompile(`/horse/(\w+)`),
		JockeyIDPattern:  regexp.MustCompile(`/jockey/(\w+)`),
		TrainerIDPattern: regexp.MustCompile(`/trainer/(\w+)`),
	}
}
