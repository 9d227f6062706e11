package types

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Weekday is a day-of-week index with Monday = 0 through Sunday = 6.
// This differs from time.Weekday (Sunday = 0); conversion happens at the
// schedule package boundary, never ad hoc.
type Weekday int

const (
	Monday Weekday = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

var weekdayNames = [7]string{"mon", "tue", "wed", "thu", "fri", "sat", "sun"}

// String returns the short lowercase name ("mon".."sun"), or "invalid" for
// out-of-range values.
func (w Weekday) String() string {
	if w < Monday || w > Sunday {
		return "invalid"
	}
	return weekdayNames[w]
}

// Valid reports whether the weekday index is in range 0..6.
func (w Weekday) Valid() bool {
	return w >= Monday && w <= Sunday
}

var fullWeekdayNames = [7]string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

// ParseWeekday resolves a short ("mon") or full ("monday") weekday name,
// case-insensitively.
func ParseWeekday(s string) (Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i := range weekdayNames {
		if s == weekdayNames[i] || s == fullWeekdayNames[i] {
			return Weekday(i), nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", s)
}

// FullWeekdayName returns the full lowercase name for a weekday.
func FullWeekdayName(w Weekday) string {
	if !w.Valid() {
		return "invalid"
	}
	return fullWeekdayNames[w]
}

// DaySet is a set of weekdays stored as a sorted, deduplicated slice.
// The zero value is the empty set. A NotificationRule with an empty DaySet
// is invalid and must never be persisted.
type DaySet []Weekday

// NewDaySet builds a normalized DaySet from the given days. Out-of-range
// values are dropped.
func NewDaySet(days ...Weekday) DaySet {
	var s DaySet
	for _, d := range days {
		if d.Valid() {
			s = append(s, d)
		}
	}
	return s.normalize()
}

func (s DaySet) normalize() DaySet {
	if len(s) == 0 {
		return nil
	}
	out := make(DaySet, 0, len(s))
	seen := [7]bool{}
	for _, d := range s {
		if d.Valid() && !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Contains reports whether d is in the set.
func (s DaySet) Contains(d Weekday) bool {
	for _, v := range s {
		if v == d {
			return true
		}
	}
	return false
}

// Union returns a new normalized set containing all days of s and other.
func (s DaySet) Union(other DaySet) DaySet {
	return append(append(DaySet{}, s...), other...).normalize()
}

// Add returns a new normalized set with d included.
func (s DaySet) Add(d Weekday) DaySet {
	return append(append(DaySet{}, s...), d).normalize()
}

// Equal reports whether two sets contain exactly the same days.
// Both sides are compared in normalized form.
func (s DaySet) Equal(other DaySet) bool {
	a, b := s.normalize(), other.normalize()
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// IsEmpty reports whether the set has no days.
func (s DaySet) IsEmpty() bool {
	return len(s.normalize()) == 0
}

// String renders the set as comma-joined short names, e.g. "mon,thu,fri".
func (s DaySet) String() string {
	norm := s.normalize()
	parts := make([]string, len(norm))
	for i, d := range norm {
		parts[i] = d.String()
	}
	return strings.Join(parts, ",")
}

// Ints returns the set as a sorted slice of int day indices, suitable for
// database array columns.
func (s DaySet) Ints() []int {
	norm := s.normalize()
	out := make([]int, len(norm))
	for i, d := range norm {
		out[i] = int(d)
	}
	return out
}

// DaySetFromInts builds a DaySet from raw int indices, dropping out-of-range
// values.
func DaySetFromInts(ints []int) DaySet {
	days := make([]Weekday, 0, len(ints))
	for _, i := range ints {
		days = append(days, Weekday(i))
	}
	return NewDaySet(days...)
}

// Workweek returns the Monday..Friday set.
func Workweek() DaySet {
	return NewDaySet(Monday, Tuesday, Wednesday, Thursday, Friday)
}

// AllDays returns the full Monday..Sunday set.
func AllDays() DaySet {
	return NewDaySet(Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday)
}

// TimeOfDay is a canonical 24-hour wall-clock time.
type TimeOfDay struct {
	Hour   int `json:"hour" validate:"min=0,max=23"`
	Minute int `json:"minute" validate:"min=0,max=59"`
}

// Valid reports whether the time is a real 24h clock time.
func (t TimeOfDay) Valid() bool {
	return t.Hour >= 0 && t.Hour <= 23 && t.Minute >= 0 && t.Minute <= 59
}

// String renders the time as zero-padded "HH:MM".
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Activity is one timed entry extracted from a diet plan. Activities are
// ephemeral: they exist only between extraction and rule building.
type Activity struct {
	RawText string
	Hour    int
	Minute  int
	// Day is the weekday of the header the activity appeared under, or nil
	// when the source text carried no day context for it.
	Day *Weekday
}

// Time returns the activity's time-of-day.
func (a Activity) Time() TimeOfDay {
	return TimeOfDay{Hour: a.Hour, Minute: a.Minute}
}

// NotificationRule is a persistent reminder definition: a message fired at a
// given time on a set of weekdays.
type NotificationRule struct {
	ID      string `json:"id" db:"id"`
	OwnerID string `json:"owner_id" db:"owner_id"`

	Message      string    `json:"message" db:"message"`
	Time         TimeOfDay `json:"time" db:"-"`
	SelectedDays DaySet    `json:"selected_days" db:"selected_days"`

	IsActive    bool   `json:"is_active" db:"is_active"`
	Fingerprint string `json:"fingerprint" db:"fingerprint"`
	Source      string `json:"source,omitempty" db:"source"`

	// ConfigVersion increments on every mutation. Scheduled instances record
	// the version they were computed from so stale completions can be
	// detected.
	ConfigVersion int `json:"-" db:"config_version"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// RuleFingerprint derives the deterministic dedup key for a rule from its
// message and time-of-day. Repeated extractions of identical text produce
// identical fingerprints, which is what makes re-extraction idempotent.
func RuleFingerprint(message string, t TimeOfDay) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(message) + "|" + t.String()))
	return hex.EncodeToString(sum[:16])
}

// InstanceStatus is the lifecycle state of a ScheduledInstance.
type InstanceStatus string

const (
	InstanceScheduled InstanceStatus = "scheduled"
	InstanceSent      InstanceStatus = "sent"
	InstanceFailed    InstanceStatus = "failed"
	InstanceCancelled InstanceStatus = "cancelled"
)

// Terminal reports whether the status is a terminal state.
func (s InstanceStatus) Terminal() bool {
	return s == InstanceSent || s == InstanceFailed || s == InstanceCancelled
}

// ScheduledInstance is one concrete occurrence of a rule, scheduled for a
// specific UTC instant. At most one instance per rule may be in the
// "scheduled" state at any time.
type ScheduledInstance struct {
	ID      string `json:"id" db:"id"`
	RuleID  string `json:"rule_id" db:"rule_id"`
	OwnerID string `json:"owner_id" db:"owner_id"`

	// RuleVersion is the rule ConfigVersion this instance was computed from.
	RuleVersion int `json:"-" db:"rule_version"`

	ScheduledForUTC time.Time      `json:"scheduled_for_utc" db:"scheduled_for_utc"`
	Status          InstanceStatus `json:"status" db:"status"`
	AttemptCount    int            `json:"attempt_count" db:"attempt_count"`
	LastError       string         `json:"last_error,omitempty" db:"last_error"`

	SentAt    *time.Time `json:"sent_at,omitempty" db:"sent_at"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}

// ExtractionRecord is the audit record for one diet-text submission. The raw
// text is archived compressed; RawText is hydrated on read.
type ExtractionRecord struct {
	ID      string `json:"id" db:"id"`
	OwnerID string `json:"owner_id" db:"owner_id"`

	RawText       string   `json:"raw_text,omitempty" db:"-"`
	ActivityCount int      `json:"activity_count" db:"activity_count"`
	RuleCount     int      `json:"rule_count" db:"rule_count"`
	Warnings      []string `json:"warnings,omitempty" db:"warnings"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// PushMessage is the payload handed to the push transport for one dispatch.
type PushMessage struct {
	DestinationToken string            `json:"destination_token"`
	Title            string            `json:"title"`
	Body             string            `json:"body"`
	Metadata         map[string]string `json:"metadata,omitempty"`
}
