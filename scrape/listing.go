package scrape

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// Meeting is one venue's card of races on one date.
type Meeting struct {
	Date  time.Time
	Venue string
	URL   string
}

// ListingScraper enumerates race ids for a date by walking the monthly
// calendar to its meetings and each meeting's race listing.
type ListingScraper struct {
	fetcher PageFetcher
	baseURL string
	schema  CalendarSchema
	log     *zap.Logger
}

// NewListingScraper builds a ListingScraper against the given origin base URL.
func NewListingScraper(fetcher PageFetcher, baseURL string, log *zap.Logger) *ListingScraper {
	return &ListingScraper{
		fetcher: fetcher,
		baseURL: strings.TrimRight(baseURL, "/"),
		schema:  DefaultCalendarSchema(),
		log:     log,
	}
}

// WithSchema swaps the page schema, for markup versions or tests.
func (s *ListingScraper) WithSchema(schema CalendarSchema) *ListingScraper {
	s.schema = schema
	return s
}

// EnumerateForDate returns the race ids run on one date, optionally filtered
// to a single venue (canonical name or calendar abbreviation). Ids are
// de-duplicated preserving first-seen order.
func (s *ListingScraper) EnumerateForDate(ctx context.Context, day time.Time, venue string) ([]string, error) {
	calendarURL := s.calendarURL(day)
	doc, err := s.fetcher.Fetch(ctx, calendarURL)
	if err != nil {
		return nil, fmt.Errorf("calendar %s: %w", calendarURL, err)
	}

	venue = NormalizeVenue(venue)

	var raceIDs []string
	seen := make(map[string]bool)
	for _, meeting := range s.meetings(doc, day) {
		if venue != "" && meeting.Venue != venue {
			continue
		}

		listing, err := s.fetcher.Fetch(ctx, meeting.URL)
		if err != nil {
			return nil, fmt.Errorf("race listing %s: %w", meeting.URL, err)
		}

		for _, id := range s.extractRaceIDs(listing) {
			if !seen[id] {
				seen[id] = true
				raceIDs = append(raceIDs, id)
			}
		}
	}

	return raceIDs, nil
}

// EnumerateForRange iterates day by day. A failed day is logged and skipped;
// later days are still processed.
func (s *ListingScraper) EnumerateForRange(ctx context.Context, start, end time.Time, venue string) []string {
	var all []string
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		if ctx.Err() != nil {
			break
		}

		ids, err := s.EnumerateForDate(ctx, day, venue)
		if err != nil {
			s.log.Warn("race list enumeration failed for date",
				zap.String("date", day.Format("2006-01-02")),
				zap.Error(err))
			continue
		}
		s.log.Info("enumerated race list",
			zap.String("date", day.Format("2006-01-02")),
			zap.Int("count", len(ids)))
		all = append(all, ids...)
	}
	return all
}

func (s *ListingScraper) calendarURL(day time.Time) string {
	return fmt.Sprintf("%s/top/calendar.html?year=%d&month=%d", s.baseURL, day.Year(), int(day.Month()))
}

// meetings scans calendar cells for the one matching the target day-of-month
// and collects that cell's meeting links.
func (s *ListingScraper) meetings(doc *goquery.Document, day time.Time) []Meeting {
	var meetings []Meeting

	dayStr := strconv.Itoa(day.Day())
	doc.Find(s.schema.Table).Find("td").Each(func(_ int, cell *goquery.Selection) {
		if strings.TrimSpace(cell.Find(s.schema.DayLabel).Text()) != dayStr {
			return
		}

		cell.Find("a").Each(func(_ int, link *goquery.Selection) {
			href, ok := link.Attr("href")
			if !ok || !strings.Contains(href, s.schema.MeetingHref) {
				return
			}

			meetings = append(meetings, Meeting{
				Date:  day,
				Venue: NormalizeVenue(strings.TrimSpace(link.Text())),
				URL:   s.resolve(href),
			})
		})
	})

	return meetings
}

// extractRaceIDs pulls every 12-digit race id out of the listing's anchors.
func (s *ListingScraper) extractRaceIDs(doc *goquery.Document) []string {
	var ids []string
	doc.Find("a").Each(func(_ int, link *goquery.Selection) {
		href, ok := link.Attr("href")
		if !ok {
			return
		}
		if m := s.schema.RaceIDPattern.FindStringSubmatch(href); m != nil {
			ids = append(ids, m[1])
		}
	})
	return ids
}

func (s *ListingScraper) resolve(href string) string {
	if strings.HasPrefix(href, "/") {
		return s.baseURL + href
	}
	return href
}
