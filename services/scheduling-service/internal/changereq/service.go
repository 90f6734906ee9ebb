package changereq

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jihoonkang/ptbook/libs/db"
	"github.com/jihoonkang/ptbook/services/scheduling-service/internal/availability"
	"github.com/jihoonkang/ptbook/services/scheduling-service/internal/faults"
	"github.com/jihoonkang/ptbook/services/scheduling-service/internal/model"
	"github.com/jihoonkang/ptbook/services/scheduling-service/internal/outbox"
	"github.com/jihoonkang/ptbook/services/scheduling-service/internal/schedule"
	"github.com/jihoonkang/ptbook/services/scheduling-service/internal/storage"
)

// Service orchestrates change-request transitions against the store. Every
// transition re-reads the request row-locked inside its transaction, so the
// first successful transition wins and later attempts fail cleanly.
type Service struct {
	pool     *db.Pool
	sessions *storage.ScheduleRepository
	requests *storage.ChangeRequestRepository
	outbox   *outbox.Repository
	logger   *slog.Logger
	now      func() time.Time
	cutoff   time.Duration
	window   time.Duration
}

type ServiceConfig struct {
	CreateCutoff   time.Duration
	ResponseWindow time.Duration
}

func NewService(pool *db.Pool, sessions *storage.ScheduleRepository, requests *storage.ChangeRequestRepository,
	outboxRepo *outbox.Repository, logger *slog.Logger, cfg ServiceConfig) *Service {
	if cfg.CreateCutoff <= 0 {
		cfg.CreateCutoff = DefaultCreateCutoff
	}
	if cfg.ResponseWindow <= 0 {
		cfg.ResponseWindow = DefaultResponseWindow
	}
	return &Service{
		pool:     pool,
		sessions: sessions,
		requests: requests,
		outbox:   outboxRepo,
		logger:   logger,
		now:      time.Now,
		cutoff:   cfg.CreateCutoff,
		window:   cfg.ResponseWindow,
	}
}

// WithClock overrides the time source; tests pin it.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Create opens a change request against a session. The actor must be a
// party on the session; the session must start at least the cutoff in the
// future; no other pending request may exist for it.
func (s *Service) Create(ctx context.Context, actor model.Actor, sessionID string, requested schedule.Schedule, reason string) (model.ChangeRequest, error) {
	if err := requested.Validate(); err != nil {
		return model.ChangeRequest{}, err
	}
	sess, err := s.loadSessionFor(ctx, actor, sessionID)
	if err != nil {
		return model.ChangeRequest{}, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return model.ChangeRequest{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	hasPending, err := s.requests.HasPending(ctx, tx, sessionID)
	if err != nil {
		return model.ChangeRequest{}, err
	}
	now := s.now()
	if err := ValidateCreate(now, sess.Slot.StartsAt(), hasPending, s.cutoff); err != nil {
		return model.ChangeRequest{}, err
	}
	if err := s.checkDestinationFree(ctx, tx, sess.TrainerID, sessionID, requested); err != nil {
		return model.ChangeRequest{}, err
	}

	req := model.ChangeRequest{
		ID:          uuid.NewString(),
		SessionID:   sessionID,
		Requested:   requested,
		Original:    sess.Slot,
		Reason:      reason,
		RequestorID: actor.ID,
		State:       model.ChangePending,
		ExpiresAt:   now.Add(s.window),
	}
	if err := s.requests.Insert(ctx, tx, &req); err != nil {
		if storage.IsUniqueViolation(err) {
			// Lost a race with a concurrent create; same outcome as HasPending.
			return model.ChangeRequest{}, faults.Conflict("a pending change request already exists for this session; cancel it first")
		}
		return model.ChangeRequest{}, err
	}

	if err := s.emit(ctx, tx, "scheduling.change_request.requested.v1", &req); err != nil {
		return model.ChangeRequest{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return model.ChangeRequest{}, err
	}
	return req, nil
}

// Approve applies the requested schedule: re-check the destination slot
// against the trainer's other sessions, upsert the schedule row, rebind
// the session to it, finalize the request. One transaction; a rebind is
// never observable without the matching request state.
func (s *Service) Approve(ctx context.Context, actor model.Actor, requestID string) (model.ChangeRequest, error) {
	return s.respond(ctx, actor, requestID, func(req *model.ChangeRequest, sess model.Session, tx pgx.Tx) error {
		if err := Approve(req, actor.ID, s.now()); err != nil {
			return err
		}
		// The slot was free at creation time; sessions booked since then
		// may have taken it.
		if err := s.checkDestinationFree(ctx, tx, sess.TrainerID, req.SessionID, req.Requested); err != nil {
			return err
		}
		scheduleID, err := s.sessions.UpsertSchedule(ctx, tx, req.Requested)
		if err != nil {
			return err
		}
		if err := s.sessions.RebindSession(ctx, tx, req.SessionID, scheduleID); err != nil {
			if storage.IsUniqueViolation(err) {
				return faults.Conflict("the requested slot is already booked for this trainer")
			}
			return err
		}
		return nil
	}, "scheduling.change_request.approved.v1")
}

// Reject declines the request; the session keeps its schedule.
func (s *Service) Reject(ctx context.Context, actor model.Actor, requestID, message string) (model.ChangeRequest, error) {
	return s.respond(ctx, actor, requestID, func(req *model.ChangeRequest, _ model.Session, _ pgx.Tx) error {
		return Reject(req, actor.ID, message, s.now())
	}, "scheduling.change_request.rejected.v1")
}

// Cancel withdraws the actor's own pending request.
func (s *Service) Cancel(ctx context.Context, actor model.Actor, requestID string) (model.ChangeRequest, error) {
	return s.respond(ctx, actor, requestID, func(req *model.ChangeRequest, _ model.Session, _ pgx.Tx) error {
		return Cancel(req, actor.ID, s.now())
	}, "scheduling.change_request.cancelled.v1")
}

// checkDestinationFree rejects a requested slot that overlaps any of the
// trainer's other booked occurrences. The moved session itself is excluded
// so a shift within its own span stays legal.
func (s *Service) checkDestinationFree(ctx context.Context, q storage.Querier, trainerID, sessionID string, requested schedule.Schedule) error {
	others, err := s.sessions.ListOtherTrainerSchedules(ctx, q, trainerID, sessionID,
		requested.Date, requested.Date.AddDate(0, 0, 1))
	if err != nil {
		return err
	}
	if slotTaken(requested, others) {
		return faults.Conflict("the requested slot overlaps another session of the trainer")
	}
	return nil
}

// slotTaken reports whether the requested occurrence overlaps any of the
// given booked occurrences.
func slotTaken(requested schedule.Schedule, booked []schedule.Schedule) bool {
	return availability.FromSchedules(booked).Blocked(requested)
}

// History lists the request history of a session visible to the actor.
func (s *Service) History(ctx context.Context, actor model.Actor, sessionID string, limit int) ([]model.ChangeRequest, error) {
	if _, err := s.loadSessionFor(ctx, actor, sessionID); err != nil {
		return nil, err
	}
	return s.requests.ListBySession(ctx, sessionID, limit)
}

// respond runs one transition transactionally: row-lock the request,
// verify the actor is a party on the session, apply the transition, and
// finalize with the PENDING state guard.
func (s *Service) respond(ctx context.Context, actor model.Actor, requestID string,
	transition func(*model.ChangeRequest, model.Session, pgx.Tx) error, eventType string) (model.ChangeRequest, error) {

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return model.ChangeRequest{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	req, err := s.requests.GetForUpdate(ctx, tx, requestID)
	if err != nil {
		if storage.IsNotFound(err) {
			return model.ChangeRequest{}, faults.NotFound("change request %s not found", requestID)
		}
		return model.ChangeRequest{}, err
	}
	sess, err := s.loadSessionFor(ctx, actor, req.SessionID)
	if err != nil {
		return model.ChangeRequest{}, err
	}

	if err := transition(&req, sess, tx); err != nil {
		return model.ChangeRequest{}, err
	}

	ok, err := s.requests.Respond(ctx, tx, &req)
	if err != nil {
		return model.ChangeRequest{}, err
	}
	if !ok {
		return model.ChangeRequest{}, faults.Conflict("change request was finalized by a concurrent operation")
	}

	if err := s.emit(ctx, tx, eventType, &req); err != nil {
		return model.ChangeRequest{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return model.ChangeRequest{}, err
	}
	return req, nil
}

// loadSessionFor fetches the session and hides it from non-parties: an
// outsider learns nothing beyond "not found".
func (s *Service) loadSessionFor(ctx context.Context, actor model.Actor, sessionID string) (model.Session, error) {
	sess, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		if storage.IsNotFound(err) {
			return model.Session{}, faults.NotFound("session %s not found", sessionID)
		}
		return model.Session{}, err
	}
	if actor.ID != sess.MemberID && actor.ID != sess.TrainerID {
		return model.Session{}, faults.NotFound("session %s not found", sessionID)
	}
	return sess, nil
}

func (s *Service) emit(ctx context.Context, tx pgx.Tx, eventType string, req *model.ChangeRequest) error {
	payload, err := json.Marshal(map[string]any{
		"request_id":   req.ID,
		"session_id":   req.SessionID,
		"state":        string(req.State),
		"requestor_id": req.RequestorID,
		"responder_id": req.ResponderID,
		"requested": map[string]any{
			"date":       req.Requested.DateKey(),
			"start_time": int(req.Requested.Start),
			"end_time":   int(req.Requested.End),
		},
		"original": map[string]any{
			"date":       req.Original.DateKey(),
			"start_time": int(req.Original.Start),
			"end_time":   int(req.Original.End),
		},
	})
	if err != nil {
		return err
	}
	return s.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "change_request",
		AggregateID:   req.ID,
		EventType:     eventType,
		Payload:       payload,
	})
}
