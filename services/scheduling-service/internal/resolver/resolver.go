// Package resolver turns a member's slot selections into a verified,
// conflict-free set of bookable session occurrences. The accepted/rejected
// split is the normal outcome of a check; it is never an error.
package resolver

import (
	"github.com/jihoonkang/ptbook/services/scheduling-service/internal/availability"
	"github.com/jihoonkang/ptbook/services/scheduling-service/internal/faults"
	"github.com/jihoonkang/ptbook/services/scheduling-service/internal/schedule"
)

// DefaultHorizonWeeks bounds how far regular-mode projection walks ahead
// per weekday pattern.
const DefaultHorizonWeeks = 52

// Config carries the projection bounds. Tests use a small horizon.
type Config struct {
	HorizonWeeks int
}

func (c Config) horizon() int {
	if c.HorizonWeeks <= 0 {
		return DefaultHorizonWeeks
	}
	return c.HorizonWeeks
}

// Result partitions candidate occurrences. Both slices are sorted
// ascending by date. Rejection is all-or-nothing per candidate: one
// occupied slot in a span rejects the whole occurrence.
type Result struct {
	Accepted []schedule.Schedule
	Rejected []schedule.Schedule
}

// Irregular checks each chosen date independently against the trainer's
// occupied slots. Self-overlapping picks within a day are coalesced by
// canonicalization before the index is ever consulted.
func Irregular(picked schedule.DaySchedule, ix availability.Index) (Result, error) {
	candidates, err := picked.Canonical()
	if err != nil {
		return Result{}, err
	}

	var res Result
	for _, cand := range candidates {
		if ix.Blocked(cand) {
			res.Rejected = append(res.Rejected, cand)
			continue
		}
		res.Accepted = append(res.Accepted, cand)
	}
	return res, nil
}

// RegularInput describes a weekly-recurring booking check: the anchor
// week's selections (one date per desired weekday), the number of sessions
// the product entitles, and the trainer's explicit off-days.
type RegularInput struct {
	Anchor     schedule.DaySchedule
	TotalCount int
	OffDays    map[string]struct{}
}

// Regular derives the weekly patterns from the anchor selections and
// projects them week by week, accepting candidates in ascending date order
// across all patterns combined until TotalCount is reached or the horizon
// is exhausted. Fewer accepted occurrences than TotalCount is a partial
// success the caller must surface, not an error.
//
// Candidates from different patterns never share a date (patterns have
// distinct weekdays), so the ascending-date walk is deterministic.
func Regular(in RegularInput, ix availability.Index, cfg Config) (Result, []schedule.WeekPattern, error) {
	if in.TotalCount <= 0 {
		return Result{}, nil, faults.Invalid("session count must be positive, got %d", in.TotalCount)
	}
	anchor, err := in.Anchor.Canonical()
	if err != nil {
		return Result{}, nil, err
	}
	patterns, err := schedule.Patterns(anchor)
	if err != nil {
		return Result{}, nil, err
	}

	candidates := project(anchor, cfg.horizon())

	var res Result
	for _, cand := range candidates {
		if len(res.Accepted) == in.TotalCount {
			break
		}
		if _, off := in.OffDays[cand.DateKey()]; off {
			res.Rejected = append(res.Rejected, cand)
			continue
		}
		if ix.Blocked(cand) {
			res.Rejected = append(res.Rejected, cand)
			continue
		}
		res.Accepted = append(res.Accepted, cand)
	}
	return res, patterns, nil
}

// project expands each anchor occurrence into its weekly repetitions and
// merges everything into one ascending-by-date candidate stream.
func project(anchor []schedule.Schedule, horizonWeeks int) []schedule.Schedule {
	candidates := make([]schedule.Schedule, 0, len(anchor)*horizonWeeks)
	for _, base := range anchor {
		for week := 0; week < horizonWeeks; week++ {
			candidates = append(candidates, schedule.Schedule{
				Date:  base.Date.AddDate(0, 0, 7*week),
				Start: base.Start,
				End:   base.End,
			})
		}
	}
	schedule.SortByDate(candidates)
	return candidates
}
