package changereq

import (
	"testing"
	"time"

	"github.com/jihoonkang/ptbook/services/scheduling-service/internal/faults"
	"github.com/jihoonkang/ptbook/services/scheduling-service/internal/model"
)

var base = time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

func pendingRequest() *model.ChangeRequest {
	return &model.ChangeRequest{
		ID:          "req-1",
		SessionID:   "sess-1",
		RequestorID: "member-1",
		State:       model.ChangePending,
		CreatedAt:   base,
		ExpiresAt:   base.Add(DefaultResponseWindow),
	}
}

func TestValidateCreate_CutoffBoundary(t *testing.T) {
	// 20 hours out: too late. 25 hours out: fine.
	tooClose := base.Add(20 * time.Hour)
	if err := ValidateCreate(base, tooClose, false, DefaultCreateCutoff); !faults.Is(err, faults.KindCutoff) {
		t.Fatalf("expected cutoff fault at 20h, got %v", err)
	}
	farEnough := base.Add(25 * time.Hour)
	if err := ValidateCreate(base, farEnough, false, DefaultCreateCutoff); err != nil {
		t.Fatalf("expected create allowed at 25h, got %v", err)
	}
}

func TestValidateCreate_SinglePending(t *testing.T) {
	start := base.Add(72 * time.Hour)
	if err := ValidateCreate(base, start, true, DefaultCreateCutoff); !faults.Is(err, faults.KindConflict) {
		t.Fatalf("expected conflict fault when a pending request exists, got %v", err)
	}
}

func TestApprove_SelfApprovalForbidden(t *testing.T) {
	req := pendingRequest()
	err := Approve(req, "member-1", base.Add(time.Hour))
	if !faults.Is(err, faults.KindAuthorization) {
		t.Fatalf("expected authorization fault, got %v", err)
	}
	if req.State != model.ChangePending {
		t.Fatalf("failed approval must not change state, got %s", req.State)
	}
}

func TestApprove_ByOtherParty(t *testing.T) {
	req := pendingRequest()
	now := base.Add(time.Hour)
	if err := Approve(req, "trainer-1", now); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	if req.State != model.ChangeApproved {
		t.Fatalf("state = %s, want APPROVED", req.State)
	}
	if req.ResponderID != "trainer-1" || req.RespondedAt == nil || !req.RespondedAt.Equal(now) {
		t.Fatalf("responder bookkeeping wrong: %+v", req)
	}
}

func TestApprove_Expired(t *testing.T) {
	req := pendingRequest()
	err := Approve(req, "trainer-1", req.ExpiresAt.Add(time.Minute))
	if !faults.Is(err, faults.KindCutoff) {
		t.Fatalf("expected cutoff fault after expiry, got %v", err)
	}
}

func TestReject(t *testing.T) {
	req := pendingRequest()
	if err := Reject(req, "trainer-1", "schedule is full that day", base.Add(time.Hour)); err != nil {
		t.Fatalf("Reject failed: %v", err)
	}
	if req.State != model.ChangeRejected || req.ResponseMessage != "schedule is full that day" {
		t.Fatalf("unexpected request after reject: %+v", req)
	}

	expired := pendingRequest()
	if err := Reject(expired, "trainer-1", "", expired.ExpiresAt.Add(time.Hour)); !faults.Is(err, faults.KindCutoff) {
		t.Fatalf("expected cutoff fault rejecting after expiry, got %v", err)
	}
}

func TestCancel_RequestorOnly(t *testing.T) {
	req := pendingRequest()
	if err := Cancel(req, "trainer-1", base.Add(time.Hour)); !faults.Is(err, faults.KindAuthorization) {
		t.Fatalf("expected authorization fault for non-requestor cancel, got %v", err)
	}
	if err := Cancel(req, "member-1", base.Add(time.Hour)); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if req.State != model.ChangeCancelled || req.ResponseMessage != CancelledMessage {
		t.Fatalf("unexpected request after cancel: %+v", req)
	}
}

func TestTerminalStatesAreFinal(t *testing.T) {
	now := base.Add(time.Hour)
	for _, terminal := range []model.ChangeState{model.ChangeApproved, model.ChangeRejected, model.ChangeCancelled} {
		req := pendingRequest()
		req.State = terminal
		if err := Approve(req, "trainer-1", now); !faults.Is(err, faults.KindConflict) {
			t.Fatalf("approve on %s should be a conflict fault, got %v", terminal, err)
		}
		if err := Reject(req, "trainer-1", "", now); !faults.Is(err, faults.KindConflict) {
			t.Fatalf("reject on %s should be a conflict fault, got %v", terminal, err)
		}
		if err := Cancel(req, "member-1", now); !faults.Is(err, faults.KindConflict) {
			t.Fatalf("cancel on %s should be a conflict fault, got %v", terminal, err)
		}
	}
}

func TestSinglePendingAfterLifecycle(t *testing.T) {
	// create -> cancel -> create -> approve leaves no pending request.
	now := base
	first := pendingRequest()
	if err := Cancel(first, "member-1", now.Add(time.Hour)); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	second := pendingRequest()
	second.ID = "req-2"
	if err := Approve(second, "trainer-1", now.Add(2*time.Hour)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	pending := 0
	for _, r := range []*model.ChangeRequest{first, second} {
		if r.State == model.ChangePending {
			pending++
		}
	}
	if pending != 0 {
		t.Fatalf("expected no pending requests, got %d", pending)
	}
}
