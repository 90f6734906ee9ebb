// Package changereq owns the schedule-change request lifecycle:
// PENDING -> APPROVED | REJECTED | CANCELLED, with lazy 48-hour expiry.
// The transition guards live here as pure functions over the request value;
// Service wraps them in store transactions.
package changereq

import (
	"time"

	"github.com/jihoonkang/ptbook/services/scheduling-service/internal/faults"
	"github.com/jihoonkang/ptbook/services/scheduling-service/internal/model"
)

const (
	// DefaultCreateCutoff is how far in the future a session must start
	// for a change request against it to be created.
	DefaultCreateCutoff = 24 * time.Hour
	// DefaultResponseWindow is how long a pending request stays
	// actionable before it lapses. Expiry is evaluated at approve/reject
	// time; there is no background sweep.
	DefaultResponseWindow = 48 * time.Hour

	// CancelledMessage is the fixed system-authored response recorded on
	// a withdrawal.
	CancelledMessage = "withdrawn by requestor"
)

// ValidateCreate guards request creation: the session must start at least
// cutoff in the future, and no other pending request may exist for it.
func ValidateCreate(now, sessionStart time.Time, hasPending bool, cutoff time.Duration) error {
	if hasPending {
		return faults.Conflict("a pending change request already exists for this session; cancel it first")
	}
	if sessionStart.Before(now.Add(cutoff)) {
		return faults.Cutoff("session starts within %s; changes are no longer accepted", cutoff)
	}
	return nil
}

// Approve transitions req to APPROVED. The responder must be the
// non-requesting party; the request must still be pending and unexpired.
// The caller is responsible for the schedule rebind that accompanies it.
func Approve(req *model.ChangeRequest, responderID string, now time.Time) error {
	if err := respondable(req, responderID, now); err != nil {
		return err
	}
	finish(req, model.ChangeApproved, responderID, "approved", now)
	return nil
}

// Reject transitions req to REJECTED with the responder's message.
func Reject(req *model.ChangeRequest, responderID, message string, now time.Time) error {
	if err := respondable(req, responderID, now); err != nil {
		return err
	}
	if message == "" {
		message = "rejected"
	}
	finish(req, model.ChangeRejected, responderID, message, now)
	return nil
}

// Cancel withdraws a pending request. Only the original requestor may
// cancel; the other party responds via Approve or Reject instead.
func Cancel(req *model.ChangeRequest, actorID string, now time.Time) error {
	if req.State != model.ChangePending {
		return faults.Conflict("change request is %s and can no longer be cancelled", req.State)
	}
	if actorID != req.RequestorID {
		return faults.Denied("only the requestor may cancel a change request")
	}
	finish(req, model.ChangeCancelled, actorID, CancelledMessage, now)
	return nil
}

// respondable checks the shared approve/reject guards: pending state,
// unexpired, and responder distinct from the requestor.
func respondable(req *model.ChangeRequest, responderID string, now time.Time) error {
	if req.State != model.ChangePending {
		return faults.Conflict("change request is already %s", req.State)
	}
	if now.After(req.ExpiresAt) {
		return faults.Cutoff("change request expired at %s; ask for a fresh request", req.ExpiresAt.Format(time.RFC3339))
	}
	if responderID == req.RequestorID {
		return faults.Denied("the requestor cannot respond to their own change request")
	}
	return nil
}

func finish(req *model.ChangeRequest, state model.ChangeState, responderID, message string, now time.Time) {
	req.State = state
	req.ResponderID = responderID
	req.ResponseMessage = message
	at := now
	req.RespondedAt = &at
}
