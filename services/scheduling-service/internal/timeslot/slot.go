package timeslot

import "fmt"

// Slot encodes a time of day as an HHMM integer on a 30-minute grid
// (930 = 09:30, 1430 = 14:30). Plain integer comparison of valid slots
// coincides with chronological ordering because the minute component is
// restricted to 00 or 30; the rest of the service relies on that.
type Slot int

// StepMinutes is the grid width.
const StepMinutes = 30

// DayEnd is the exclusive upper bound for start slots. It is a legal
// *end* bound (a session may run up to midnight) but never a start.
const DayEnd Slot = 2400

func (s Slot) Hour() int   { return int(s) / 100 }
func (s Slot) Minute() int { return int(s) % 100 }

// Valid reports whether s is a usable start slot.
func (s Slot) Valid() bool {
	if s < 0 || s >= DayEnd {
		return false
	}
	m := s.Minute()
	return m == 0 || m == 30
}

// ValidEnd reports whether s is a usable exclusive end bound.
func (s Slot) ValidEnd() bool {
	return s.Valid() || s == DayEnd
}

// Next returns the slot 30 minutes after s, rolling :30 over to the next
// hour. The result may be DayEnd or beyond; callers treat anything that
// fails ValidEnd/Valid as "no slot" rather than wrapping around.
func (s Slot) Next() Slot {
	if s.Minute() == 30 {
		return Slot(s.Hour()+1) * 100
	}
	return s + StepMinutes
}

// Minutes returns the offset of s from midnight in minutes.
func (s Slot) Minutes() int { return s.Hour()*60 + s.Minute() }

func (s Slot) String() string {
	return fmt.Sprintf("%02d:%02d", s.Hour(), s.Minute())
}

// ForDuration returns the ordered slots [start, start+30, ...] covering
// durationMinutes, clipped to the [open, close) business window. When a
// slot would fall before open or at/after close the sequence stops early;
// a short (or empty) result means "does not fit" and is not an error.
func ForDuration(start Slot, durationMinutes int, open, close Slot) []Slot {
	if durationMinutes <= 0 || !start.Valid() {
		return nil
	}
	needed := (durationMinutes + StepMinutes - 1) / StepMinutes
	slots := make([]Slot, 0, needed)
	cur := start
	for i := 0; i < needed; i++ {
		if !cur.Valid() || cur < open || cur >= close {
			break
		}
		slots = append(slots, cur)
		cur = cur.Next()
	}
	return slots
}

// Range enumerates every valid start slot in [open, close).
func Range(open, close Slot) []Slot {
	var slots []Slot
	for cur := open; cur.Valid() && cur < close; cur = cur.Next() {
		slots = append(slots, cur)
	}
	return slots
}

// Span expands the half-open range [start, end) into the discrete slots it
// covers. A session 1000-1130 expands to {1000, 1030, 1100}.
func Span(start, end Slot) []Slot {
	if !start.Valid() || !end.ValidEnd() || start >= end {
		return nil
	}
	var slots []Slot
	for cur := start; cur < end; cur = cur.Next() {
		slots = append(slots, cur)
	}
	return slots
}

// Count returns the number of 30-minute slots in [start, end), or 0 when
// the range is empty or misaligned.
func Count(start, end Slot) int {
	return len(Span(start, end))
}
