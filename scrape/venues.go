package scrape

import "strings"

// venueByCode maps the 2-digit venue code embedded in a race id (chars 4-6)
// to the venue name. JRA tracks plus the NAR tracks the origin lists.
var venueByCode = map[string]string{
	"01": "札幌",
	"02": "函館",
	"03": "福島",
	"04": "新潟",
	"05": "東京",
	"06": "中山",
	"07": "中京",
	"08": "京都",
	"09": "阪神",
	"10": "小倉",
	"42": "大井",
	"43": "川崎",
	"44": "船橋",
	"45": "浦和",
}

// venueAliases expands the single-character abbreviations the calendar page
// uses for meeting links.
var venueAliases = map[string]string{
	"東": "東京",
	"中": "中山",
	"京": "京都",
	"阪": "阪神",
	"新": "新潟",
	"福": "福島",
	"札": "札幌",
	"函": "函館",
	"小": "小倉",
}

// VenueFromRaceID decodes the venue from a race id's fixed-offset code.
// Returns "" for short ids or unknown codes.
func VenueFromRaceID(raceID string) string {
	if len(raceID) < 6 {
		return ""
	}
	return venueByCode[raceID[4:6]]
}

// KnownVenue reports whether the name is in the fixed venue set.
func KnownVenue(name string) bool {
	for _, v := range venueByCode {
		if v == name {
			return true
		}
	}
	return false
}

// NormalizeVenue strips calendar-page decoration ("競馬", parentheses) and
// expands single-character abbreviations to the canonical venue name.
func NormalizeVenue(name string) string {
	name = strings.ReplaceAll(name, "競馬", "")
	name = strings.NewReplacer("(", "", ")", "", "（", "", "）", "").Replace(name)
	name = strings.TrimSpace(name)

	if full, ok := venueAliases[name]; ok {
		return full
	}
	return name
}
