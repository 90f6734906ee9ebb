package model

import (
	"time"

	"github.com/jihoonkang/ptbook/services/scheduling-service/internal/schedule"
)

type Role string

const (
	RoleMember  Role = "MEMBER"
	RoleTrainer Role = "TRAINER"
)

// Actor is the authenticated caller resolved from the identity context.
type Actor struct {
	ID   string
	Role Role
}

// BookingState is owned by the trainer-approval workflow outside this
// core; the scheduling engine only reads it.
type BookingState string

const (
	BookingPending   BookingState = "PENDING"
	BookingConfirmed BookingState = "CONFIRMED"
	BookingCancelled BookingState = "CANCELLED"
)

// Booking is the parent PT contract a member holds with a trainer.
type Booking struct {
	ID           string
	MemberID     string
	TrainerID    string
	ProductID    string
	StartDate    time.Time
	IsRegular    bool
	State        BookingState
	SessionCount int
	CreatedAt    time.Time
}

// Session is one concrete occurrence of a booking, bound to exactly one
// schedule row at a time. An approved change request re-points the binding
// to a different schedule row; the old row is left untouched.
type Session struct {
	ID         string
	BookingID  string
	MemberID   string
	TrainerID  string
	ScheduleID string
	Slot       schedule.Schedule
	CreatedAt  time.Time
}

type ChangeState string

const (
	ChangePending   ChangeState = "PENDING"
	ChangeApproved  ChangeState = "APPROVED"
	ChangeRejected  ChangeState = "REJECTED"
	ChangeCancelled ChangeState = "CANCELLED"
)

// ChangeRequest proposes moving one session to a new time slot, subject to
// bilateral approval. At most one PENDING request exists per session.
type ChangeRequest struct {
	ID              string
	SessionID       string
	Requested       schedule.Schedule
	Original        schedule.Schedule
	Reason          string
	RequestorID     string
	ResponderID     string
	ResponseMessage string
	State           ChangeState
	CreatedAt       time.Time
	RespondedAt     *time.Time
	ExpiresAt       time.Time
}

// Product describes a PT package: how many sessions it entitles and how
// long each one runs. Sourced from the catalog cache or catalog service.
type Product struct {
	ID              string
	Name            string
	SessionCount    int
	DurationMinutes int
	UpdatedAt       time.Time
}
