package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jihoonkang/ptbook/libs/db"
	"github.com/jihoonkang/ptbook/services/scheduling-service/internal/model"
	"github.com/jihoonkang/ptbook/services/scheduling-service/internal/schedule"
	"github.com/jihoonkang/ptbook/services/scheduling-service/internal/timeslot"
)

// ScheduleRepository owns bookings, sessions, schedule rows, week-pattern
// templates and trainer off-days. Schedule and week-pattern rows are
// deduplicated by natural key; concurrent find-or-create races resolve to
// the same row.
type ScheduleRepository struct {
	pool *db.Pool
}

func NewScheduleRepository(pool *db.Pool) *ScheduleRepository {
	return &ScheduleRepository{pool: pool}
}

func (r *ScheduleRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

// ListTrainerSchedules returns every session occurrence of the trainer in
// [from, to), excluding cancelled bookings. One range query; the caller
// expands the result into the availability index.
func (r *ScheduleRepository) ListTrainerSchedules(ctx context.Context, trainerID string, from, to time.Time) ([]schedule.Schedule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT sc.on_date, sc.start_slot, sc.end_slot
		FROM sessions s
		JOIN schedules sc ON sc.id = s.schedule_id
		JOIN bookings b ON b.id = s.booking_id
		WHERE s.trainer_id = $1
			AND b.state <> 'CANCELLED'
			AND sc.on_date >= $2
			AND sc.on_date < $3
		ORDER BY sc.on_date, sc.start_slot
	`, trainerID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []schedule.Schedule
	for rows.Next() {
		var s schedule.Schedule
		var startSlot, endSlot int
		if err := rows.Scan(&s.Date, &startSlot, &endSlot); err != nil {
			return nil, err
		}
		s.Start, s.End = slot(startSlot), slot(endSlot)
		out = append(out, s)
	}
	return out, rows.Err()
}

// Querier is satisfied by both the pool and a pgx.Tx; read helpers that
// must sometimes run inside a transaction take it.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// ListOtherTrainerSchedules is ListTrainerSchedules minus one session. A
// change request validates its destination against this: the session
// being moved must not block its own new slot.
func (r *ScheduleRepository) ListOtherTrainerSchedules(ctx context.Context, q Querier, trainerID, excludeSessionID string, from, to time.Time) ([]schedule.Schedule, error) {
	rows, err := q.Query(ctx, `
		SELECT sc.on_date, sc.start_slot, sc.end_slot
		FROM sessions s
		JOIN schedules sc ON sc.id = s.schedule_id
		JOIN bookings b ON b.id = s.booking_id
		WHERE s.trainer_id = $1
			AND s.id <> $2
			AND b.state <> 'CANCELLED'
			AND sc.on_date >= $3
			AND sc.on_date < $4
		ORDER BY sc.on_date, sc.start_slot
	`, trainerID, excludeSessionID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []schedule.Schedule
	for rows.Next() {
		var s schedule.Schedule
		var startSlot, endSlot int
		if err := rows.Scan(&s.Date, &startSlot, &endSlot); err != nil {
			return nil, err
		}
		s.Start, s.End = slot(startSlot), slot(endSlot)
		out = append(out, s)
	}
	return out, rows.Err()
}

// ListTrainerOffDays returns the trainer's explicit off-days in [from, to)
// as date keys.
func (r *ScheduleRepository) ListTrainerOffDays(ctx context.Context, trainerID string, from, to time.Time) (map[string]struct{}, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT off_date
		FROM trainer_off_days
		WHERE trainer_id = $1 AND off_date >= $2 AND off_date < $3
	`, trainerID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	offDays := make(map[string]struct{})
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		offDays[schedule.DateKey(d)] = struct{}{}
	}
	return offDays, rows.Err()
}

// UpsertSchedule finds or creates the schedule row for the given
// (date, start, end) value and returns its id. Identical time slots share
// one row storage-side.
func (r *ScheduleRepository) UpsertSchedule(ctx context.Context, tx pgx.Tx, s schedule.Schedule) (string, error) {
	var id string
	err := tx.QueryRow(ctx, `
		INSERT INTO schedules (id, on_date, start_slot, end_slot)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (on_date, start_slot, end_slot)
			DO UPDATE SET on_date = EXCLUDED.on_date
		RETURNING id
	`, uuid.NewString(), s.Date, int(s.Start), int(s.End)).Scan(&id)
	return id, err
}

// UpsertWeekPattern finds or creates the weekly template row shared across
// bookings with the same (weekday, start, end).
func (r *ScheduleRepository) UpsertWeekPattern(ctx context.Context, tx pgx.Tx, p schedule.WeekPattern) (string, error) {
	var id string
	err := tx.QueryRow(ctx, `
		INSERT INTO week_patterns (id, weekday, start_slot, end_slot)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (weekday, start_slot, end_slot)
			DO UPDATE SET weekday = EXCLUDED.weekday
		RETURNING id
	`, uuid.NewString(), int(p.Weekday), int(p.Start), int(p.End)).Scan(&id)
	return id, err
}

func (r *ScheduleRepository) CreateBooking(ctx context.Context, tx pgx.Tx, b *model.Booking) error {
	return tx.QueryRow(ctx, `
		INSERT INTO bookings (id, member_id, trainer_id, product_id, start_date, is_regular, state)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`, b.ID, b.MemberID, b.TrainerID, b.ProductID, b.StartDate, b.IsRegular, string(b.State)).Scan(&b.CreatedAt)
}

func (r *ScheduleRepository) AttachPattern(ctx context.Context, tx pgx.Tx, bookingID, patternID string) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO booking_patterns (booking_id, pattern_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, bookingID, patternID)
	return err
}

// CreateSession binds one session to a schedule row. The unique index on
// (trainer_id, schedule_id) is the write-time defence against the
// check-then-act race between a check call and a later confirm call:
// a lost race reports created=false instead of aborting the transaction,
// and the writer folds it into "slot no longer available".
func (r *ScheduleRepository) CreateSession(ctx context.Context, tx pgx.Tx, s *model.Session) (bool, error) {
	tag, err := tx.Exec(ctx, `
		INSERT INTO sessions (id, booking_id, member_id, trainer_id, schedule_id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (trainer_id, schedule_id) DO NOTHING
	`, s.ID, s.BookingID, s.MemberID, s.TrainerID, s.ScheduleID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *ScheduleRepository) GetSession(ctx context.Context, sessionID string) (model.Session, error) {
	var s model.Session
	var startSlot, endSlot int
	err := r.pool.QueryRow(ctx, `
		SELECT s.id, s.booking_id, s.member_id, s.trainer_id, s.schedule_id,
			sc.on_date, sc.start_slot, sc.end_slot, s.created_at
		FROM sessions s
		JOIN schedules sc ON sc.id = s.schedule_id
		WHERE s.id = $1
	`, sessionID).Scan(
		&s.ID, &s.BookingID, &s.MemberID, &s.TrainerID, &s.ScheduleID,
		&s.Slot.Date, &startSlot, &endSlot, &s.CreatedAt,
	)
	if err != nil {
		return model.Session{}, err
	}
	s.Slot.Start, s.Slot.End = slot(startSlot), slot(endSlot)
	return s, nil
}

// RebindSession re-points a session at a different schedule row. The
// previous schedule row is left untouched.
func (r *ScheduleRepository) RebindSession(ctx context.Context, tx pgx.Tx, sessionID, scheduleID string) error {
	tag, err := tx.Exec(ctx, `
		UPDATE sessions SET schedule_id = $2 WHERE id = $1
	`, sessionID, scheduleID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// ListBookings returns the caller's bookings newest first, with the number
// of sessions actually created under each.
func (r *ScheduleRepository) ListBookings(ctx context.Context, actor model.Actor, limit int) ([]model.Booking, error) {
	if limit <= 0 {
		limit = 50
	}
	column := "member_id"
	if actor.Role == model.RoleTrainer {
		column = "trainer_id"
	}
	rows, err := r.pool.Query(ctx, `
		SELECT b.id, b.member_id, b.trainer_id, b.product_id, b.start_date, b.is_regular, b.state,
			(SELECT count(*) FROM sessions s WHERE s.booking_id = b.id), b.created_at
		FROM bookings b
		WHERE b.`+column+` = $1
		ORDER BY b.created_at DESC
		LIMIT $2
	`, actor.ID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Booking
	for rows.Next() {
		var b model.Booking
		var state string
		if err := rows.Scan(&b.ID, &b.MemberID, &b.TrainerID, &b.ProductID, &b.StartDate,
			&b.IsRegular, &state, &b.SessionCount, &b.CreatedAt); err != nil {
			return nil, err
		}
		b.State = model.BookingState(state)
		out = append(out, b)
	}
	return out, rows.Err()
}

func slot(v int) timeslot.Slot { return timeslot.Slot(v) }

func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && (pgErr.Code == "23505" || pgErr.Code == "23P01")
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
