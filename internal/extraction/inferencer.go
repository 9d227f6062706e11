package extraction

import (
	"fmt"
	"strings"

	"github.com/RehanTaneja/Nutricious4u-sub002/internal/types"
)

// DayPolicy is the fallback day set applied to activities with no explicit
// or inferable day context. The default is deliberately the workweek rather
// than all seven days: surfacing reminders on days the plan demonstrably
// does not cover is worse than missing a weekend the dietician never wrote
// down. It is a deployment policy, not an invariant, so it is injected
// rather than hard-coded.
type DayPolicy struct {
	Fallback types.DaySet
}

// DefaultDayPolicy returns the workweek fallback policy.
func DefaultDayPolicy() DayPolicy {
	return DayPolicy{Fallback: types.Workweek()}
}

// ParseDayPolicy resolves a policy spec string from configuration:
// "mon-fri" (workweek), "all" (every day), or a comma-separated list of
// weekday names ("mon,wed,fri").
func ParseDayPolicy(spec string) (DayPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(spec)) {
	case "", "mon-fri", "workweek", "weekdays":
		return DefaultDayPolicy(), nil
	case "all", "daily":
		return DayPolicy{Fallback: types.AllDays()}, nil
	}

	var days []types.Weekday
	for _, part := range strings.Split(spec, ",") {
		d, err := types.ParseWeekday(part)
		if err != nil {
			return DayPolicy{}, fmt.Errorf("parsing day policy %q: %w", spec, err)
		}
		days = append(days, d)
	}
	set := types.NewDaySet(days...)
	if set.IsEmpty() {
		return DayPolicy{}, fmt.Errorf("day policy %q resolves to an empty set", spec)
	}
	return DayPolicy{Fallback: set}, nil
}

// InferDays determines the day set applied to activities whose Day is nil.
//
// Priority order:
//  1. If any activity carries an explicit day, the inferred set is the union
//     of all explicitly tagged days in the document — a day-labeled plan
//     applies only on its labeled days.
//  2. Otherwise the document is re-scanned for day headers that matched no
//     timed line (a header whose section had no parseable times still
//     signals which days the plan covers).
//  3. Otherwise the policy fallback applies.
func InferDays(activities []types.Activity, clean string, policy DayPolicy) types.DaySet {
	var explicit types.DaySet
	for _, a := range activities {
		if a.Day != nil {
			explicit = explicit.Add(*a.Day)
		}
	}
	if !explicit.IsEmpty() {
		return explicit
	}

	var headerDays types.DaySet
	for _, h := range FindDayHeaders(strings.Split(clean, "\n")) {
		headerDays = headerDays.Add(h.Day)
	}
	if !headerDays.IsEmpty() {
		return headerDays
	}

	return policy.Fallback
}
