// Package parse converts raw tokens scraped from race pages into typed values.
//
// Every function is pure and total: unparseable input yields ok=false, never
// an error and never a panic, so row processing can carry on around bad cells.
package parse

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	timeColonFrac = regexp.MustCompile(`^(\d+):(\d+)\.(\d+)`)
	timeDotFrac   = regexp.MustCompile(`^(\d+)\.(\d+)\.(\d+)`)
	timeColon     = regexp.MustCompile(`^(\d+):(\d+)`)

	weightWithDiff = regexp.MustCompile(`^(\d+)\(([+-]?\d+)\)`)
	weightBare     = regexp.MustCompile(`^(\d+)`)

	marginNumeric = regexp.MustCompile(`^\d+(\.\d+)?`)
)

// Time converts an elapsed-time token ("1:23.4", "1.23.4", "1:23") to total
// seconds. The tenths digit is the origin's finest resolution.
func Time(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" || s == "-" {
		return 0, false
	}

	if m := timeColonFrac.FindStringSubmatch(s); m != nil {
		return threePartSeconds(m[1], m[2], m[3])
	}
	if m := timeDotFrac.FindStringSubmatch(s); m != nil {
		return threePartSeconds(m[1], m[2], m[3])
	}
	if m := timeColon.FindStringSubmatch(s); m != nil {
		minutes, _ := strconv.Atoi(m[1])
		seconds, _ := strconv.Atoi(m[2])
		return float64(minutes*60 + seconds), true
	}
	return 0, false
}

func threePartSeconds(min, sec, frac string) (float64, bool) {
	minutes, _ := strconv.Atoi(min)
	seconds, _ := strconv.Atoi(sec)
	fraction, _ := strconv.Atoi(frac)
	return float64(minutes*60+seconds) + float64(fraction)/10, true
}

// Odds converts an odds token to a decimal, stripping thousands separators.
func Odds(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" || s == "-" {
		return decimal.Decimal{}, false
	}

	d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", ""))
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

// Weight splits a body-weight token ("486(+2)", "472(-4)", "480") into weight
// and delta. A bare weight means no recorded change.
func Weight(s string) (weight, diff int, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" || s == "-" {
		return 0, 0, false
	}

	if m := weightWithDiff.FindStringSubmatch(s); m != nil {
		weight, _ = strconv.Atoi(m[1])
		diff, _ = strconv.Atoi(strings.TrimPrefix(m[2], "+"))
		return weight, diff, true
	}
	if m := weightBare.FindStringSubmatch(s); m != nil {
		weight, _ = strconv.Atoi(m[1])
		return weight, 0, true
	}
	return 0, 0, false
}

// knownMargins are the canonical non-numeric winning-margin tokens.
var knownMargins = map[string]string{
	"アタマ": "アタマ", // head
	"ハナ":  "ハナ",  // nose
	"クビ":  "クビ",  // neck
	"1/2": "1/2",
	"3/4": "3/4",
	"大差":  "大差", // distanced
}

// Margin normalizes a winning-margin token. Known tokens map through the
// canonical table; numeric lengths and anything else pass through trimmed.
func Margin(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" || s == "-" {
		return "", false
	}

	if canonical, ok := knownMargins[s]; ok {
		return canonical, true
	}
	if marginNumeric.MatchString(s) {
		return s, true
	}
	return s, true
}

// gradeAliases maps roman-numeral and verbose grade spellings to the stored form.
var gradeAliases = map[string]string{
	"GIII":   "G3",
	"GII":    "G2",
	"GI":     "G1",
	"JPNI":   "JPN1",
	"JPNII":  "JPN2",
	"JPNIII": "JPN3",
	"LISTED": "L",
}

// Grade normalizes a grade token: upper-cased, trimmed, roman numerals folded
// to digits. Unknown tokens pass through unchanged apart from normalization.
func Grade(s string) (string, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return "", false
	}

	if alias, ok := gradeAliases[s]; ok {
		return alias, true
	}
	return s, true
}

// CornerPositions splits a corner-passage token ("3-3-2-1") into a map of
// 1-based corner index to position, dropping non-numeric parts.
func CornerPositions(s string) (map[int]int, bool) {
	s = strings.TrimSpace(s)
	if s == "" || s == "-" {
		return nil, false
	}

	positions := make(map[int]int)
	for i, part := range strings.Split(s, "-") {
		pos, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		positions[i+1] = pos
	}
	if len(positions) == 0 {
		return nil, false
	}
	return positions, true
}

// DateFromRaceID decodes the year embedded in a race id (YYYYPPNNDDRR).
// Only the year is recoverable from the id alone; the remaining digits index
// into the meeting calendar, so the date defaults to January 1. Callers that
// saw the listing page should prefer the listing's date.
func DateFromRaceID(raceID string) (time.Time, bool) {
	if len(raceID) < 8 {
		return time.Time{}, false
	}

	year, err := strconv.Atoi(raceID[:4])
	if err != nil || year < 1900 || year > 2200 {
		return time.Time{}, false
	}
	return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC), true
}
