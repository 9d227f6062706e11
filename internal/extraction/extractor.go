package extraction

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/RehanTaneja/Nutricious4u-sub002/internal/types"
)

// Result is the outcome of one extraction pass. Warnings carry
// parse-degradation detail for the caller to surface; they never indicate a
// failure.
type Result struct {
	Activities []types.Activity
	Warnings   []string
}

var (
	leadingSepRe  = regexp.MustCompile(`^[\s\-–—:.,)]+`)
	trailingParenRe = regexp.MustCompile(`\s*\([^()]*\)\s*$`)
	trailingSepRe = regexp.MustCompile(`[\s\-–—:.,(]+$`)

	// looksTimed flags lines that appear to carry a clock time even though no
	// matcher recognized one, so the degradation is visible to the caller.
	looksTimedRe = regexp.MustCompile(`(?i)\d\s*(?:am|pm|o'?clock)|\d{1,2}\.\d{2}`)
)

// Extract walks normalized diet text line by line and produces one Activity
// per recognized time token. A day header updates the day context for the
// lines that follow it; each activity is tagged with the day in effect, or
// left untagged when no header has been seen.
//
// Only the first time token on a line becomes an activity; the activity text
// runs from the end of that token to the start of the next token (if any),
// so two reminders sharing a line are never merged into one message.
//
// Extract never fails: empty or malformed text yields an empty Result.
func Extract(clean string) Result {
	var res Result
	if strings.TrimSpace(clean) == "" {
		res.Warnings = append(res.Warnings, "no text to extract")
		return res
	}

	lines := strings.Split(clean, "\n")
	var currentDay *types.Weekday

	for i, line := range lines {
		if day, ok := matchDayHeader(line); ok {
			d := day
			currentDay = &d
			continue
		}

		tokens := FindTimeTokens(line)
		if len(tokens) == 0 {
			if looksTimedRe.MatchString(line) {
				res.Warnings = append(res.Warnings,
					fmt.Sprintf("line %d looks timed but no clock time was recognized: %q", i+1, truncate(line, 60)))
			}
			// Untimed lines are not an error; they are simply not
			// schedulable.
			continue
		}

		first := tokens[0]
		end := len(line)
		if len(tokens) > 1 {
			end = tokens[1].Start
		}

		text := cleanActivityText(line[first.End:end])
		if text == "" {
			res.Warnings = append(res.Warnings,
				fmt.Sprintf("line %d has a time token but no activity text", i+1))
			continue
		}

		res.Activities = append(res.Activities, types.Activity{
			RawText: text,
			Hour:    first.Hour,
			Minute:  first.Minute,
			Day:     currentDay,
		})
	}

	if len(res.Activities) == 0 {
		res.Warnings = append(res.Warnings, "no timed activities recognized")
	}
	return res
}

// cleanActivityText strips the separator residue around an activity slice:
// leading punctuation left by forms like "8AM- almonds", a trailing
// parenthetical note, and any trailing separators.
func cleanActivityText(s string) string {
	s = leadingSepRe.ReplaceAllString(s, "")
	s = trailingParenRe.ReplaceAllString(s, "")
	s = trailingSepRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
