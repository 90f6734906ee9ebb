// Package availability precomputes a trainer's occupied slots over a date
// window so that conflict resolution is a set-membership test instead of
// interval arithmetic per candidate.
package availability

import (
	"github.com/jihoonkang/ptbook/services/scheduling-service/internal/schedule"
	"github.com/jihoonkang/ptbook/services/scheduling-service/internal/timeslot"
)

// Index maps a date key to the set of occupied 30-minute slots. A session
// spanning 10:00-11:30 contributes {1000, 1030, 1100} to its date.
type Index map[string]map[timeslot.Slot]struct{}

func NewIndex() Index { return Index{} }

// FromSchedules builds the index from the booked session occurrences
// returned by one range query against the store.
func FromSchedules(booked []schedule.Schedule) Index {
	ix := NewIndex()
	for _, s := range booked {
		ix.AddSpan(s.DateKey(), s.Start, s.End)
	}
	return ix
}

// AddSpan marks every slot in [start, end) occupied on the given date.
func (ix Index) AddSpan(key string, start, end timeslot.Slot) {
	for _, s := range timeslot.Span(start, end) {
		ix.Add(key, s)
	}
}

func (ix Index) Add(key string, slots ...timeslot.Slot) {
	day := ix[key]
	if day == nil {
		day = make(map[timeslot.Slot]struct{})
		ix[key] = day
	}
	for _, s := range slots {
		day[s] = struct{}{}
	}
}

// Occupied reports whether the slot is taken on the given date.
func (ix Index) Occupied(key string, s timeslot.Slot) bool {
	_, ok := ix[key][s]
	return ok
}

// Blocked reports whether any slot in the candidate's span is occupied.
// One overlapping slot rejects the whole candidate.
func (ix Index) Blocked(cand schedule.Schedule) bool {
	key := cand.DateKey()
	for _, s := range cand.Slots() {
		if ix.Occupied(key, s) {
			return true
		}
	}
	return false
}

// FreeStarts lists the start slots in [open, close) that are not occupied
// on the given date; it backs the pickable start-time menu.
func (ix Index) FreeStarts(key string, open, close timeslot.Slot) []timeslot.Slot {
	var free []timeslot.Slot
	for _, s := range timeslot.Range(open, close) {
		if !ix.Occupied(key, s) {
			free = append(free, s)
		}
	}
	return free
}
