// Package schedule holds the calendar-facing value types of the scheduling
// core: a concrete session occurrence (Schedule), the sparse per-date slot
// selection a member builds up in the UI (DaySchedule), and the weekly
// recurrence template derived from it (WeekPattern).
package schedule

import (
	"sort"
	"time"

	"github.com/jihoonkang/ptbook/services/scheduling-service/internal/faults"
	"github.com/jihoonkang/ptbook/services/scheduling-service/internal/timeslot"
)

const dateLayout = "2006-01-02"

// DateKey renders t as the canonical YYYY-MM-DD map key. Dates are
// timezone-naive at day granularity throughout the service.
func DateKey(t time.Time) string { return t.Format(dateLayout) }

// ParseDateKey parses a YYYY-MM-DD key back into a UTC midnight date.
func ParseDateKey(key string) (time.Time, error) {
	t, err := time.ParseInLocation(dateLayout, key, time.UTC)
	if err != nil {
		return time.Time{}, faults.Invalid("invalid date %q (want YYYY-MM-DD)", key)
	}
	return t, nil
}

// Schedule is one concrete session occurrence: a date plus a half-open
// [Start, End) slot range.
type Schedule struct {
	Date  time.Time
	Start timeslot.Slot
	End   timeslot.Slot
}

func (s Schedule) Validate() error {
	if s.Date.IsZero() {
		return faults.Invalid("schedule date is required")
	}
	if !s.Start.Valid() {
		return faults.Invalid("start time %d is off the 30-minute grid", s.Start)
	}
	if !s.End.ValidEnd() {
		return faults.Invalid("end time %d is off the 30-minute grid", s.End)
	}
	if s.Start >= s.End {
		return faults.Invalid("start time %s must precede end time %s", s.Start, s.End)
	}
	return nil
}

func (s Schedule) DateKey() string { return DateKey(s.Date) }

// Slots expands the schedule into the discrete slots it occupies.
func (s Schedule) Slots() []timeslot.Slot { return timeslot.Span(s.Start, s.End) }

// StartsAt combines the date and start slot into a wall-clock instant,
// used for the 24-hour change-request cutoff.
func (s Schedule) StartsAt() time.Time {
	return time.Date(s.Date.Year(), s.Date.Month(), s.Date.Day(),
		s.Start.Hour(), s.Start.Minute(), 0, 0, time.UTC)
}

// Same reports whether two schedules denote the identical time slot.
func (s Schedule) Same(o Schedule) bool {
	return s.DateKey() == o.DateKey() && s.Start == o.Start && s.End == o.End
}

// SortByDate orders schedules ascending by date, then by start slot.
// Chronological order is always established explicitly; map iteration
// order is never relied on.
func SortByDate(ss []Schedule) {
	sort.Slice(ss, func(i, j int) bool {
		if !ss[i].Date.Equal(ss[j].Date) {
			return ss[i].Date.Before(ss[j].Date)
		}
		return ss[i].Start < ss[j].Start
	})
}

// DaySchedule maps a date key to the unordered start slots chosen on that
// date. It grows and shrinks as the member toggles slots in the picker.
type DaySchedule map[string][]timeslot.Slot

// Pick records a chosen start slot. Duplicate picks are tolerated and
// coalesced during canonicalization.
func (d DaySchedule) Pick(key string, s timeslot.Slot) {
	d[key] = append(d[key], s)
}

// Unpick removes one chosen slot, dropping the date entirely when it was
// the last one.
func (d DaySchedule) Unpick(key string, s timeslot.Slot) {
	slots := d[key]
	for i, v := range slots {
		if v == s {
			slots = append(slots[:i], slots[i+1:]...)
			break
		}
	}
	if len(slots) == 0 {
		delete(d, key)
		return
	}
	d[key] = slots
}

// Keys returns the date keys in ascending order.
func (d DaySchedule) Keys() []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Canonical collapses each date's chosen slots into one Schedule spanning
// min chosen slot through one slot past the max chosen slot. Overlapping
// or duplicate picks within a day coalesce here, before any conflict
// checking. The result is sorted ascending by date.
func (d DaySchedule) Canonical() ([]Schedule, error) {
	if len(d) == 0 {
		return nil, faults.Invalid("no time slots selected")
	}
	out := make([]Schedule, 0, len(d))
	for _, key := range d.Keys() {
		slots := d[key]
		if len(slots) == 0 {
			continue
		}
		date, err := ParseDateKey(key)
		if err != nil {
			return nil, err
		}
		min, max := slots[0], slots[0]
		for _, s := range slots[1:] {
			if s < min {
				min = s
			}
			if s > max {
				max = s
			}
		}
		sched := Schedule{Date: date, Start: min, End: max.Next()}
		if err := sched.Validate(); err != nil {
			return nil, err
		}
		out = append(out, sched)
	}
	if len(out) == 0 {
		return nil, faults.Invalid("no time slots selected")
	}
	SortByDate(out)
	return out, nil
}

// WeekPattern is the recurrence template of a regular booking: same
// weekday, same slot range, every week.
type WeekPattern struct {
	Weekday time.Weekday
	Start   timeslot.Slot
	End     timeslot.Slot
}

// Patterns derives the weekly templates from canonicalized anchor-week
// schedules, one per distinct weekday. Two anchor dates landing on the
// same weekday are rejected: the pattern would be ambiguous.
func Patterns(anchor []Schedule) ([]WeekPattern, error) {
	seen := make(map[time.Weekday]bool, len(anchor))
	out := make([]WeekPattern, 0, len(anchor))
	for _, s := range anchor {
		wd := s.Date.Weekday()
		if seen[wd] {
			return nil, faults.Invalid("two anchor dates fall on the same weekday (%s)", wd)
		}
		seen[wd] = true
		out = append(out, WeekPattern{Weekday: wd, Start: s.Start, End: s.End})
	}
	return out, nil
}
