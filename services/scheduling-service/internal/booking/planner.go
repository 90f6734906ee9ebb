// Package booking implements the two halves of the checkout flow: the
// Planner answers the "check" call by resolving a member's selections
// against the trainer's availability, and the Writer answers the later
// "confirm" call by persisting an accepted plan atomically.
package booking

import (
	"context"
	"time"

	"github.com/jihoonkang/ptbook/services/scheduling-service/internal/availability"
	"github.com/jihoonkang/ptbook/services/scheduling-service/internal/faults"
	"github.com/jihoonkang/ptbook/services/scheduling-service/internal/model"
	"github.com/jihoonkang/ptbook/services/scheduling-service/internal/product"
	"github.com/jihoonkang/ptbook/services/scheduling-service/internal/resolver"
	"github.com/jihoonkang/ptbook/services/scheduling-service/internal/schedule"
	"github.com/jihoonkang/ptbook/services/scheduling-service/internal/timeslot"
)

// AvailabilityStore is the slice of the session store the planner reads.
type AvailabilityStore interface {
	ListTrainerSchedules(ctx context.Context, trainerID string, from, to time.Time) ([]schedule.Schedule, error)
	ListTrainerOffDays(ctx context.Context, trainerID string, from, to time.Time) (map[string]struct{}, error)
}

// PlanConfig carries the business-hour window and projection bounds.
type PlanConfig struct {
	OpenSlot     timeslot.Slot
	CloseSlot    timeslot.Slot
	HorizonWeeks int
	// WindowMonths bounds how far ahead irregular sessions may be chosen,
	// counted from the first day of the current month.
	WindowMonths int
}

func (c PlanConfig) withDefaults() PlanConfig {
	if c.OpenSlot == 0 && c.CloseSlot == 0 {
		c.OpenSlot, c.CloseSlot = 600, 2200
	}
	if c.HorizonWeeks <= 0 {
		c.HorizonWeeks = resolver.DefaultHorizonWeeks
	}
	if c.WindowMonths <= 0 {
		c.WindowMonths = 3
	}
	return c
}

type Planner struct {
	store    AvailabilityStore
	products product.Provider
	cfg      PlanConfig
	now      func() time.Time
}

func NewPlanner(store AvailabilityStore, products product.Provider, cfg PlanConfig) *Planner {
	return &Planner{store: store, products: products, cfg: cfg.withDefaults(), now: time.Now}
}

// WithClock overrides the time source; tests pin it.
func (p *Planner) WithClock(now func() time.Time) *Planner {
	p.now = now
	return p
}

// CheckInput is one member's booking request: which trainer, which product
// entitles the sessions, and the raw per-date slot selections.
type CheckInput struct {
	TrainerID  string
	ProductID  string
	IsRegular  bool
	Selections schedule.DaySchedule
}

// Plan is a verified, conflict-free candidate booking. It carries both the
// accepted and rejected occurrences so the caller can show the member what
// did not fit before confirming.
type Plan struct {
	TrainerID string
	ProductID string
	IsRegular bool
	Product   model.Product
	Requested int
	Accepted  []schedule.Schedule
	Rejected  []schedule.Schedule
	Patterns  []schedule.WeekPattern
}

// Check resolves the selections into a Plan. Rejected occurrences are a
// normal partial result; only structurally invalid input is an error.
func (p *Planner) Check(ctx context.Context, in CheckInput) (Plan, error) {
	if in.TrainerID == "" || in.ProductID == "" {
		return Plan{}, faults.Invalid("trainer and product are required")
	}
	prod, err := p.products.Lookup(ctx, in.ProductID)
	if err != nil {
		return Plan{}, err
	}

	canonical, err := in.Selections.Canonical()
	if err != nil {
		return Plan{}, err
	}
	if err := p.validateWindow(canonical, prod.DurationMinutes, in.IsRegular); err != nil {
		return Plan{}, err
	}

	plan := Plan{
		TrainerID: in.TrainerID,
		ProductID: in.ProductID,
		IsRegular: in.IsRegular,
		Product:   prod,
		Requested: prod.SessionCount,
	}

	from, to := p.indexWindow(in.IsRegular)
	if in.IsRegular && len(canonical) > 0 {
		// The projection walks week by week from the anchor, not from
		// today; an anchor late in the window pushes occurrences past the
		// default end, and the index must cover every one of them.
		latest := canonical[len(canonical)-1].Date.AddDate(0, 0, 7*p.cfg.HorizonWeeks)
		if latest.After(to) {
			to = latest
		}
	}
	booked, err := p.store.ListTrainerSchedules(ctx, in.TrainerID, from, to)
	if err != nil {
		return Plan{}, err
	}
	ix := availability.FromSchedules(booked)

	if !in.IsRegular {
		// Irregular: the member picks every occurrence by hand, and the
		// selection must exhaust the product's entitlement exactly.
		if len(canonical) != prod.SessionCount {
			return Plan{}, faults.Invalid("product %s entitles %d sessions, %d selected",
				prod.Name, prod.SessionCount, len(canonical))
		}
		res, err := resolver.Irregular(in.Selections, ix)
		if err != nil {
			return Plan{}, err
		}
		plan.Accepted, plan.Rejected = res.Accepted, res.Rejected
		return plan, nil
	}

	offDays, err := p.store.ListTrainerOffDays(ctx, in.TrainerID, from, to)
	if err != nil {
		return Plan{}, err
	}
	res, patterns, err := resolver.Regular(resolver.RegularInput{
		Anchor:     in.Selections,
		TotalCount: prod.SessionCount,
		OffDays:    offDays,
	}, ix, resolver.Config{HorizonWeeks: p.cfg.HorizonWeeks})
	if err != nil {
		return Plan{}, err
	}
	plan.Accepted, plan.Rejected, plan.Patterns = res.Accepted, res.Rejected, patterns
	return plan, nil
}

// FreeStarts lists the trainer's open start slots on one date, for the
// start-time picker.
func (p *Planner) FreeStarts(ctx context.Context, trainerID, dateKey string) ([]timeslot.Slot, error) {
	if trainerID == "" {
		return nil, faults.Invalid("trainer is required")
	}
	date, err := schedule.ParseDateKey(dateKey)
	if err != nil {
		return nil, err
	}
	booked, err := p.store.ListTrainerSchedules(ctx, trainerID, date, date.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}
	ix := availability.FromSchedules(booked)
	return ix.FreeStarts(dateKey, p.cfg.OpenSlot, p.cfg.CloseSlot), nil
}

// validateWindow keeps every selection inside business hours, in the
// future, inside the rolling booking window, and exactly as long as the
// product's session duration.
func (p *Planner) validateWindow(canonical []schedule.Schedule, durationMinutes int, isRegular bool) error {
	today := dateOnly(p.now())
	_, windowEnd := p.indexWindow(isRegular)
	for _, s := range canonical {
		if s.Start < p.cfg.OpenSlot || s.End > p.cfg.CloseSlot {
			return faults.Invalid("%s %s-%s is outside business hours %s-%s",
				s.DateKey(), s.Start, s.End, p.cfg.OpenSlot, p.cfg.CloseSlot)
		}
		if s.Date.Before(today) {
			return faults.Invalid("%s is in the past", s.DateKey())
		}
		if !s.Date.Before(windowEnd) {
			return faults.Invalid("%s is beyond the booking window", s.DateKey())
		}
		if mins := timeslot.Count(s.Start, s.End) * timeslot.StepMinutes; mins != durationMinutes {
			return faults.Invalid("%s %s-%s is %d minutes, product sessions are %d",
				s.DateKey(), s.Start, s.End, mins, durationMinutes)
		}
	}
	return nil
}

// indexWindow is the date range the availability index is built over:
// first day of the current month through the booking window (irregular)
// or through the projection horizon (regular).
func (p *Planner) indexWindow(isRegular bool) (time.Time, time.Time) {
	now := p.now()
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	if isRegular {
		return from, from.AddDate(0, 0, 7*(p.cfg.HorizonWeeks+1))
	}
	return from, from.AddDate(0, p.cfg.WindowMonths, 0)
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
