package booking

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jihoonkang/ptbook/libs/db"
	"github.com/jihoonkang/ptbook/services/scheduling-service/internal/faults"
	"github.com/jihoonkang/ptbook/services/scheduling-service/internal/model"
	"github.com/jihoonkang/ptbook/services/scheduling-service/internal/outbox"
	"github.com/jihoonkang/ptbook/services/scheduling-service/internal/schedule"
	"github.com/jihoonkang/ptbook/services/scheduling-service/internal/storage"
)

// Writer persists an accepted plan: the booking contract, its week-pattern
// templates, and one session per accepted occurrence, in one transaction.
type Writer struct {
	pool   *db.Pool
	repo   *storage.ScheduleRepository
	outbox *outbox.Repository
	logger *slog.Logger
}

func NewWriter(pool *db.Pool, repo *storage.ScheduleRepository, outboxRepo *outbox.Repository, logger *slog.Logger) *Writer {
	return &Writer{pool: pool, repo: repo, outbox: outboxRepo, logger: logger}
}

// Result reports what was actually created. Booked < Requested is the
// documented partial-success contract: occurrences rejected at check time
// or lost to a concurrent booking are counted out, not errored out.
type Result struct {
	BookingID string
	Requested int
	Booked    int
	Lost      []schedule.Schedule
	Message   string
}

// Write creates the booking and its sessions. Occurrences that lost the
// check-then-act race since the check call are skipped individually; if
// nothing survives, the whole transaction rolls back and the member is
// told the slots are gone. A booking never exists with zero sessions.
func (w *Writer) Write(ctx context.Context, memberID string, plan Plan) (Result, error) {
	if memberID == "" {
		return Result{}, faults.Invalid("member is required")
	}
	if len(plan.Accepted) == 0 {
		return Result{}, faults.Conflict("no bookable sessions in the request")
	}

	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return Result{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	b := &model.Booking{
		ID:        uuid.NewString(),
		MemberID:  memberID,
		TrainerID: plan.TrainerID,
		ProductID: plan.ProductID,
		StartDate: plan.Accepted[0].Date,
		IsRegular: plan.IsRegular,
		State:     model.BookingPending,
	}
	if err := w.repo.CreateBooking(ctx, tx, b); err != nil {
		return Result{}, err
	}

	for _, p := range plan.Patterns {
		patternID, err := w.repo.UpsertWeekPattern(ctx, tx, p)
		if err != nil {
			return Result{}, err
		}
		if err := w.repo.AttachPattern(ctx, tx, b.ID, patternID); err != nil {
			return Result{}, err
		}
	}

	res := Result{BookingID: b.ID, Requested: plan.Requested}
	var booked []schedule.Schedule
	for _, occ := range plan.Accepted {
		scheduleID, err := w.repo.UpsertSchedule(ctx, tx, occ)
		if err != nil {
			return Result{}, err
		}
		created, err := w.repo.CreateSession(ctx, tx, &model.Session{
			ID:         uuid.NewString(),
			BookingID:  b.ID,
			MemberID:   memberID,
			TrainerID:  plan.TrainerID,
			ScheduleID: scheduleID,
		})
		if err != nil {
			return Result{}, err
		}
		if !created {
			// Someone else booked this exact slot between check and confirm.
			res.Lost = append(res.Lost, occ)
			continue
		}
		booked = append(booked, occ)
	}
	res.Booked = len(booked)

	if res.Booked == 0 {
		return Result{}, faults.Conflict("the selected slots were booked by someone else in the meantime")
	}

	payload, err := bookingEventPayload(b, booked)
	if err != nil {
		return Result{}, err
	}
	if err := w.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "booking",
		AggregateID:   b.ID,
		EventType:     "scheduling.booking.confirmed.v1",
		Payload:       payload,
	}); err != nil {
		return Result{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Result{}, err
	}

	res.Message = resultMessage(res)
	if res.Booked < res.Requested {
		w.logger.Info("partial booking",
			"booking_id", b.ID, "requested", res.Requested, "booked", res.Booked)
	}
	return res, nil
}

// resultMessage distinguishes "everything you asked for" from "part of
// it": the member can act on the second case by re-checking other slots.
func resultMessage(res Result) string {
	if res.Booked == res.Requested {
		return fmt.Sprintf("all %d sessions booked", res.Booked)
	}
	return fmt.Sprintf("%d of %d requested sessions booked; the rest were unavailable", res.Booked, res.Requested)
}

func bookingEventPayload(b *model.Booking, booked []schedule.Schedule) ([]byte, error) {
	sessions := make([]map[string]any, 0, len(booked))
	for _, s := range booked {
		sessions = append(sessions, map[string]any{
			"date":       s.DateKey(),
			"start_time": int(s.Start),
			"end_time":   int(s.End),
		})
	}
	return json.Marshal(map[string]any{
		"booking_id": b.ID,
		"member_id":  b.MemberID,
		"trainer_id": b.TrainerID,
		"product_id": b.ProductID,
		"is_regular": b.IsRegular,
		"start_date": schedule.DateKey(b.StartDate),
		"sessions":   sessions,
	})
}
