// Package schedule implements the occurrence calculator: the pure function
// mapping a notification rule and a "now" instant to the next UTC instant the
// rule should fire.
//
// The calculator is deliberately timezone-agnostic. It operates only on UTC
// instants; any notion of a user's local day-of-week must be converted to a
// UTC weekday set before rules reach this package.
package schedule

import (
	"time"

	"github.com/RehanTaneja/Nutricious4u-sub002/internal/types"
)

// WeekdayFromTime converts Go's weekday numbering (Sunday = 0) to the
// Monday = 0 numbering used throughout the domain. This is the single
// conversion point between the two numberings.
func WeekdayFromTime(w time.Weekday) types.Weekday {
	return types.Weekday((int(w) + 6) % 7)
}

// NextOccurrence returns the next UTC instant strictly after now at which a
// rule with the given day set and time-of-day should fire.
//
// For the smallest day offset d in 0..7 such that now+d falls on a selected
// weekday, the candidate is the rule's time-of-day on that date. A candidate
// at or before now is skipped, which covers both "today, but the time already
// passed" and the exact-now case; the search then continues into the
// following week. The returned instant is always strictly greater than now.
//
// Callers that need a minimum lead (to absorb latency between computation and
// commit) pass now already advanced by that floor; the calculator itself has
// no notion of processing delay.
func NextOccurrence(days types.DaySet, tod types.TimeOfDay, now time.Time) (time.Time, error) {
	if days.IsEmpty() {
		return time.Time{}, types.NewAppError(types.ErrCodeInvariantEmptyDaySet,
			"cannot compute occurrence for an empty day set", nil)
	}
	if !tod.Valid() {
		return time.Time{}, types.NewAppError(types.ErrCodeValidationInvalidTime,
			"time of day out of range: "+tod.String(), nil)
	}

	nowUTC := now.UTC()

	// Offset 7 is reachable: a rule selected only for today's weekday whose
	// time already passed resolves to the same weekday next week.
	for d := 0; d <= 7; d++ {
		date := nowUTC.AddDate(0, 0, d)
		if !days.Contains(WeekdayFromTime(date.Weekday())) {
			continue
		}
		candidate := time.Date(date.Year(), date.Month(), date.Day(),
			tod.Hour, tod.Minute, 0, 0, time.UTC)
		if candidate.After(nowUTC) {
			return candidate, nil
		}
	}

	// Unreachable for a non-empty day set: within 8 consecutive days every
	// weekday occurs at least once strictly in the future.
	return time.Time{}, types.NewAppError(types.ErrCodeInternalUnexpected,
		"no occurrence found within eight days", nil)
}
