package scrape

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

var agePattern = regexp.MustCompile(`\d+`)

// Non-finish tokens the result table shows in the finish column.
var nonFinishStatuses = map[string]bool{
	"中止": true, // withdrawn mid-race
	"除外": true, // excluded
	"失格": true, // disqualified
}

// Fixed column positions of the origin's result table.
const (
	colFinish = iota
	colBracket
	colPost
	colHorse
	colSexAge
	colCarried
	colJockey
	colTime
	colMargin
	_
	colCorners
	colFinal3F
	colOdds
	colPopularity
	colHorseWeight

	colTrainer = 18
)

// RaceScraper fetches one race's detail page and decomposes it into header
// metadata plus positional result rows.
type RaceScraper struct {
	fetcher PageFetcher
	baseURL string
	schema  RaceSchema
	log     *zap.Logger
}

// NewRaceScraper builds a RaceScraper against the given origin base URL.
func NewRaceScraper(fetcher PageFetcher, baseURL string, log *zap.Logger) *RaceScraper {
	return &RaceScraper{
		fetcher: fetcher,
		baseURL: strings.TrimRight(baseURL, "/"),
		schema:  DefaultRaceSchema(),
		log:     log,
	}
}

// WithSchema swaps the page schema, for markup versions or tests.
func (s *RaceScraper) WithSchema(schema RaceSchema) *RaceScraper {
	s.schema = schema
	return s
}

// Scrape fetches and decodes one race. Structural drift degrades to dropped
// rows and unset fields; only fetch failures surface as errors.
func (s *RaceScraper) Scrape(ctx context.Context, raceID string) (*RaceRaw, error) {
	pageURL := fmt.Sprintf("%s/race/%s/", s.baseURL, raceID)
	doc, err := s.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("race %s: %w", raceID, err)
	}

	return &RaceRaw{
		ID:        raceID,
		Info:      s.parseInfo(doc, raceID),
		Rows:      s.parseRows(doc),
		ScrapedAt: time.Now(),
	}, nil
}

func (s *RaceScraper) parseInfo(doc *goquery.Document, raceID string) RaceInfo {
	info := RaceInfo{
		Name:  strings.TrimSpace(doc.Find(s.schema.RaceName).First().Text()),
		Venue: VenueFromRaceID(raceID),
		Grade: strings.TrimSpace(doc.Find(s.schema.GradeIcon).First().Text()),
	}

	data := doc.Find(s.schema.RaceData).First()
	data.Find(s.schema.RaceDataRow).Each(func(_ int, span *goquery.Selection) {
		text := strings.TrimSpace(span.Text())
		switch {
		case strings.Contains(text, "発走"):
			info.StartTime = strings.TrimSpace(strings.ReplaceAll(text, "発走", ""))
		case strings.Contains(text, "天候"):
			info.Weather = strings.TrimSpace(strings.TrimPrefix(text, "天候:"))
		case strings.Contains(text, "馬場"):
			info.TrackCondition = strings.TrimSpace(strings.TrimPrefix(text, "馬場:"))
		}
	})

	raceText := data.Text()
	if m := s.schema.DistancePattern.FindStringSubmatch(raceText); m != nil {
		info.Distance, _ = strconv.Atoi(m[1])
	}
	switch {
	case strings.Contains(raceText, "芝"):
		info.Surface = "芝"
	case strings.Contains(raceText, "ダート"), strings.Contains(raceText, "ダ"):
		info.Surface = "ダート"
	}

	if m := s.schema.RaceNumPattern.FindStringSubmatch(doc.Find(s.schema.RaceNum).First().Text()); m != nil {
		info.RaceNumber, _ = strconv.Atoi(m[1])
	}

	return info
}

func (s *RaceScraper) parseRows(doc *goquery.Document) []ResultRow {
	table := doc.Find(s.schema.ResultTable).First()
	if table.Length() == 0 {
		s.log.Warn("result table not found")
		return nil
	}

	var rows []ResultRow
	table.Find(s.schema.ResultRow).Each(func(i int, tr *goquery.Selection) {
		if i == 0 {
			return // header row
		}

		cells := tr.Find(s.schema.ResultCell)
		if cells.Length() < s.schema.MinCells {
			return
		}

		if row, ok := s.parseRow(cells); ok {
			rows = append(rows, row)
		}
	})
	return rows
}

// parseRow extracts one entrant by column position. Missing or malformed
// tokens leave fields unset; only an unreadable finish column drops the row.
func (s *RaceScraper) parseRow(cells *goquery.Selection) (ResultRow, bool) {
	var row ResultRow

	finishText := cellText(cells, colFinish)
	switch {
	case isDigits(finishText):
		pos, _ := strconv.Atoi(finishText)
		row.FinishPosition = &pos
	case nonFinishStatuses[finishText]:
		row.Status = finishText
	default:
		return row, false
	}

	row.BracketNumber = intPtr(cellText(cells, colBracket))
	row.PostPosition = intPtr(cellText(cells, colPost))

	row.HorseName, row.HorseID = s.linkedEntity(cells, colHorse, s.schema.HorseIDPattern)

	sexAge := cellText(cells, colSexAge)
	if sexAge != "" {
		runes := []rune(sexAge)
		row.Sex = string(runes[0])
		if m := agePattern.FindString(sexAge); m != "" {
			row.Age = intPtr(m)
		}
	}

	row.CarriedWeight = cellText(cells, colCarried)
	row.JockeyName, row.JockeyID = s.linkedEntity(cells, colJockey, s.schema.JockeyIDPattern)

	row.Time = cellText(cells, colTime)
	row.Margin = cellText(cells, colMargin)
	row.CornerPositions = cellText(cells, colCorners)
	row.Final3F = cellText(cells, colFinal3F)
	row.Odds = cellText(cells, colOdds)
	row.Popularity = intPtr(cellText(cells, colPopularity))
	row.HorseWeight = cellText(cells, colHorseWeight)

	if cells.Length() > colTrainer {
		row.TrainerName, row.TrainerID = s.linkedEntity(cells, colTrainer, s.schema.TrainerIDPattern)
	}

	return row, true
}

// linkedEntity reads a name + id out of an anchored cell like
// <td><a href="/horse/2019104567">ホース</a></td>.
func (s *RaceScraper) linkedEntity(cells *goquery.Selection, col int, idPattern *regexp.Regexp) (name, id string) {
	link := cells.Eq(col).Find("a").First()
	if link.Length() == 0 {
		return "", ""
	}

	name = strings.TrimSpace(link.Text())
	if href, ok := link.Attr("href"); ok {
		if m := idPattern.FindStringSubmatch(href); m != nil {
			id = m[1]
		}
	}
	return name, id
}

func cellText(cells *goquery.Selection, col int) string {
	return strings.TrimSpace(cells.Eq(col).Text())
}

func intPtr(s string) *int {
	if !isDigits(s) {
		return nil
	}
	n, _ := strconv.Atoi(s)
	return &n
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
