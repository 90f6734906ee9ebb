package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jihoonkang/ptbook/libs/db"
	"github.com/jihoonkang/ptbook/services/scheduling-service/internal/model"
)

// ChangeRequestRepository persists schedule-change requests. The requested
// and original schedules are stored as plain columns: the original is an
// immutable snapshot, and the requested value only becomes a schedule row
// at approval time. A partial unique index on (session_id) WHERE
// state = 'PENDING' backs the single-pending invariant.
type ChangeRequestRepository struct {
	pool *db.Pool
}

func NewChangeRequestRepository(pool *db.Pool) *ChangeRequestRepository {
	return &ChangeRequestRepository{pool: pool}
}

func (r *ChangeRequestRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

func (r *ChangeRequestRepository) Insert(ctx context.Context, tx pgx.Tx, req *model.ChangeRequest) error {
	return tx.QueryRow(ctx, `
		INSERT INTO change_requests
			(id, session_id,
			requested_date, requested_start, requested_end,
			original_date, original_start, original_end,
			reason, requestor_id, state, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at
	`, req.ID, req.SessionID,
		req.Requested.Date, int(req.Requested.Start), int(req.Requested.End),
		req.Original.Date, int(req.Original.Start), int(req.Original.End),
		req.Reason, req.RequestorID, string(req.State), req.ExpiresAt,
	).Scan(&req.CreatedAt)
}

// HasPending reports whether a pending request exists for the session.
// Called inside the creation transaction; the partial unique index still
// backstops concurrent inserts.
func (r *ChangeRequestRepository) HasPending(ctx context.Context, tx pgx.Tx, sessionID string) (bool, error) {
	var exists bool
	err := tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM change_requests
			WHERE session_id = $1 AND state = 'PENDING'
		)
	`, sessionID).Scan(&exists)
	return exists, err
}

// GetForUpdate loads and row-locks a request so that concurrent responders
// serialize; the state guard in Respond then lets only the first
// transition through.
func (r *ChangeRequestRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, requestID string) (model.ChangeRequest, error) {
	row := tx.QueryRow(ctx, `
		SELECT id, session_id,
			requested_date, requested_start, requested_end,
			original_date, original_start, original_end,
			reason, requestor_id, COALESCE(responder_id, ''),
			COALESCE(response_message, ''), state, created_at, responded_at, expires_at
		FROM change_requests
		WHERE id = $1
		FOR UPDATE
	`, requestID)
	return scanRequest(row)
}

// Respond finalizes a pending request. The state predicate makes the first
// successful transition win; a second responder sees zero rows updated.
func (r *ChangeRequestRepository) Respond(ctx context.Context, tx pgx.Tx, req *model.ChangeRequest) (bool, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE change_requests
		SET state = $2,
			responder_id = $3,
			response_message = $4,
			responded_at = $5
		WHERE id = $1 AND state = 'PENDING'
	`, req.ID, string(req.State), req.ResponderID, req.ResponseMessage, req.RespondedAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ListBySession returns the full request history for a session, newest
// first. Non-pending requests are immutable history.
func (r *ChangeRequestRepository) ListBySession(ctx context.Context, sessionID string, limit int) ([]model.ChangeRequest, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, session_id,
			requested_date, requested_start, requested_end,
			original_date, original_start, original_end,
			reason, requestor_id, COALESCE(responder_id, ''),
			COALESCE(response_message, ''), state, created_at, responded_at, expires_at
		FROM change_requests
		WHERE session_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ChangeRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (model.ChangeRequest, error) {
	var req model.ChangeRequest
	var reqStart, reqEnd, origStart, origEnd int
	var state string
	var respondedAt *time.Time
	err := row.Scan(
		&req.ID, &req.SessionID,
		&req.Requested.Date, &reqStart, &reqEnd,
		&req.Original.Date, &origStart, &origEnd,
		&req.Reason, &req.RequestorID, &req.ResponderID,
		&req.ResponseMessage, &state, &req.CreatedAt, &respondedAt, &req.ExpiresAt,
	)
	if err != nil {
		return model.ChangeRequest{}, err
	}
	req.Requested.Start, req.Requested.End = slot(reqStart), slot(reqEnd)
	req.Original.Start, req.Original.End = slot(origStart), slot(origEnd)
	req.State = model.ChangeState(state)
	req.RespondedAt = respondedAt
	return req, nil
}
