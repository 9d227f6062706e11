package extraction

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/RehanTaneja/Nutricious4u-sub002/internal/types"
)

// TimeToken is one clock-time match inside a line, normalized to 24-hour
// form. Start and End are byte offsets into the line.
type TimeToken struct {
	Start  int
	End    int
	Hour   int
	Minute int
}

// DayHeader is a detected day-header line, e.g. "THURSDAY - 14th AUG".
type DayHeader struct {
	LineIndex int
	Day       types.Weekday
}

// timeMatcher is one tagged time-format variant. Matchers are tried in order
// so new formats can be appended without regressing existing ones.
type timeMatcher struct {
	name string
	re   *regexp.Regexp
	// parse converts submatches into a 24h (hour, minute); ok=false rejects
	// the candidate (e.g. out-of-range values).
	parse func(sub []string) (hour, minute int, ok bool)
}

// timeMatchers: H:MM with optional meridiem first, then bare H with a
// required meridiem (with or without a space, "8AM-" included via the
// extractor's separator stripping).
var timeMatchers = []timeMatcher{
	{
		name: "hour_colon_minute",
		re:   regexp.MustCompile(`(?i)\b(\d{1,2}):(\d{2})\s*(am|pm)?\b`),
		parse: func(sub []string) (int, int, bool) {
			h, _ := strconv.Atoi(sub[1])
			m, _ := strconv.Atoi(sub[2])
			if m > 59 {
				return 0, 0, false
			}
			if sub[3] == "" {
				if h > 23 {
					return 0, 0, false
				}
				return h, m, true
			}
			h, ok := to24Hour(h, sub[3])
			return h, m, ok
		},
	},
	{
		name: "hour_meridiem",
		re:   regexp.MustCompile(`(?i)\b(\d{1,2})\s*(am|pm)\b`),
		parse: func(sub []string) (int, int, bool) {
			h, _ := strconv.Atoi(sub[1])
			h, ok := to24Hour(h, sub[2])
			return h, 0, ok
		},
	},
}

// to24Hour normalizes a 12-hour clock hour: 12 AM -> 0, 12 PM -> 12, and PM
// adds 12 to hours 1-11.
func to24Hour(hour int, meridiem string) (int, bool) {
	if hour < 1 || hour > 12 {
		return 0, false
	}
	pm := strings.EqualFold(meridiem, "pm")
	switch {
	case hour == 12 && !pm:
		return 0, true
	case hour == 12 && pm:
		return 12, true
	case pm:
		return hour + 12, true
	default:
		return hour, true
	}
}

// FindTimeTokens returns all recognized time tokens in a line, ordered by
// position. Overlapping candidates are resolved in favor of the
// earliest-starting match, with matcher order breaking ties, so "6:30 PM"
// yields a single token rather than a second match on "30 PM".
func FindTimeTokens(line string) []TimeToken {
	type candidate struct {
		TimeToken
		matcherIdx int
	}

	var candidates []candidate
	for mi, m := range timeMatchers {
		for _, loc := range m.re.FindAllStringSubmatchIndex(line, -1) {
			sub := submatches(line, loc)
			h, min, ok := m.parse(sub)
			if !ok {
				continue
			}
			candidates = append(candidates, candidate{
				TimeToken:  TimeToken{Start: loc[0], End: loc[1], Hour: h, Minute: min},
				matcherIdx: mi,
			})
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	// Order by start offset, matcher priority breaking ties.
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Start != candidates[j].Start {
			return candidates[i].Start < candidates[j].Start
		}
		return candidates[i].matcherIdx < candidates[j].matcherIdx
	})

	var tokens []TimeToken
	lastEnd := -1
	for _, c := range candidates {
		if c.Start < lastEnd {
			continue // overlaps an accepted earlier token
		}
		tokens = append(tokens, c.TimeToken)
		lastEnd = c.End
	}
	return tokens
}

// submatches extracts submatch strings from FindAllStringSubmatchIndex
// locations, mapping absent groups to "".
func submatches(s string, loc []int) []string {
	out := make([]string, len(loc)/2)
	for i := 0; i < len(loc); i += 2 {
		if loc[i] >= 0 {
			out[i/2] = s[loc[i]:loc[i+1]]
		}
	}
	return out
}

// dayHeaderRe matches a weekday name at line start followed by a separator
// and a date-like suffix, e.g. "THURSDAY - 14th AUG" or "friday: 15 aug".
// Anchoring to line start avoids false positives on weekday names
// mid-sentence ("skip the monday snack").
var dayHeaderRe = regexp.MustCompile(`(?i)^(monday|tuesday|wednesday|thursday|friday|saturday|sunday)\s*[-:,]+\s*\d{1,2}`)

// FindDayHeaders scans lines for day headers, returning them in line order.
func FindDayHeaders(lines []string) []DayHeader {
	var headers []DayHeader
	for i, line := range lines {
		if day, ok := matchDayHeader(line); ok {
			headers = append(headers, DayHeader{LineIndex: i, Day: day})
		}
	}
	return headers
}

// matchDayHeader reports whether a single line is a day header and which
// weekday it names.
func matchDayHeader(line string) (types.Weekday, bool) {
	sub := dayHeaderRe.FindStringSubmatch(strings.TrimSpace(line))
	if sub == nil {
		return 0, false
	}
	day, err := types.ParseWeekday(sub[1])
	if err != nil {
		return 0, false
	}
	return day, true
}
