package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jihoonkang/ptbook/libs/auth"
	"github.com/jihoonkang/ptbook/libs/httpx"
	"github.com/jihoonkang/ptbook/libs/runtime"
	"github.com/jihoonkang/ptbook/services/scheduling-service/internal/booking"
	"github.com/jihoonkang/ptbook/services/scheduling-service/internal/faults"
	"github.com/jihoonkang/ptbook/services/scheduling-service/internal/model"
	"github.com/jihoonkang/ptbook/services/scheduling-service/internal/schedule"
)

const testSecret = "test-secret"

func memberToken(t *testing.T, sub string) string {
	t.Helper()
	return signedToken(t, sub, string(model.RoleMember))
}

func signedToken(t *testing.T, sub, role string) string {
	t.Helper()
	now := time.Now().Unix()
	token, err := auth.SignHS256(auth.Claims{Sub: sub, Role: role, Iat: now, Exp: now + 3600}, testSecret)
	if err != nil {
		t.Fatalf("SignHS256 failed: %v", err)
	}
	return token
}

func TestRequireAuth_MissingToken(t *testing.T) {
	h := httpx.Chain(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}), RequireAuth(testSecret))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/bookings", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRequireAuth_InjectsActor(t *testing.T) {
	var got model.Actor
	h := httpx.Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = ActorFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}), RequireAuth(testSecret))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings", nil)
	req.Header.Set("Authorization", "Bearer "+signedToken(t, "trainer-1", string(model.RoleTrainer)))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got.ID != "trainer-1" || got.Role != model.RoleTrainer {
		t.Fatalf("unexpected actor %+v", got)
	}
}

type plannerStore struct {
	booked []schedule.Schedule
}

func (s *plannerStore) ListTrainerSchedules(_ context.Context, _ string, from, to time.Time) ([]schedule.Schedule, error) {
	var out []schedule.Schedule
	for _, b := range s.booked {
		if !b.Date.Before(from) && b.Date.Before(to) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *plannerStore) ListTrainerOffDays(context.Context, string, time.Time, time.Time) (map[string]struct{}, error) {
	return map[string]struct{}{}, nil
}

type plannerCatalog struct{}

func (plannerCatalog) Lookup(context.Context, string) (model.Product, error) {
	return model.Product{ID: "prod-1", Name: "PT 2", SessionCount: 2, DurationMinutes: 60}, nil
}

func newCheckServer(t *testing.T, store *plannerStore) http.Handler {
	t.Helper()
	planner := booking.NewPlanner(store, plannerCatalog{}, booking.PlanConfig{HorizonWeeks: 8}).
		WithClock(func() time.Time { return time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC) })
	h := NewSchedulingHandler(planner, runtime.NewLogger("test"))
	return httpx.Chain(http.HandlerFunc(h.Check), RequireAuth(testSecret))
}

func TestCheck_MemberOnly(t *testing.T) {
	srv := newCheckServer(t, &plannerStore{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/schedules/check", strings.NewReader(`{}`))
	req.Header.Set("Authorization", "Bearer "+signedToken(t, "trainer-1", string(model.RoleTrainer)))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for trainer caller, got %d", rec.Code)
	}
}

func TestCheck_ReportsRejectedSlots(t *testing.T) {
	wed, _ := schedule.ParseDateKey("2026-09-09")
	srv := newCheckServer(t, &plannerStore{booked: []schedule.Schedule{
		{Date: wed, Start: 1800, End: 1900},
	}})

	body := `{
		"trainer_id": "trainer-1",
		"product_id": "prod-1",
		"selections": [
			{"date": "2026-09-07", "times": [930, 1000]},
			{"date": "2026-09-09", "times": [1800, 1830]}
		]
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/schedules/check", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+memberToken(t, "member-1"))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp checkResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if len(resp.Accepted) != 1 || resp.Accepted[0].Date != "2026-09-07" {
		t.Fatalf("expected 2026-09-07 accepted, got %+v", resp.Accepted)
	}
	if len(resp.Rejected) != 1 || resp.Rejected[0].Date != "2026-09-09" {
		t.Fatalf("expected 2026-09-09 rejected, got %+v", resp.Rejected)
	}
}

type fakeChangeService struct {
	lastOp string
}

func (f *fakeChangeService) Create(_ context.Context, _ model.Actor, sessionID string, requested schedule.Schedule, _ string) (model.ChangeRequest, error) {
	f.lastOp = "create"
	return model.ChangeRequest{ID: "req-1", SessionID: sessionID, Requested: requested, State: model.ChangePending}, nil
}

func (f *fakeChangeService) Approve(context.Context, model.Actor, string) (model.ChangeRequest, error) {
	f.lastOp = "approve"
	return model.ChangeRequest{ID: "req-1", State: model.ChangeApproved}, nil
}

func (f *fakeChangeService) Reject(context.Context, model.Actor, string, string) (model.ChangeRequest, error) {
	f.lastOp = "reject"
	return model.ChangeRequest{ID: "req-1", State: model.ChangeRejected}, nil
}

func (f *fakeChangeService) Cancel(context.Context, model.Actor, string) (model.ChangeRequest, error) {
	f.lastOp = "cancel"
	return model.ChangeRequest{}, faults.Conflict("change request is CANCELLED, not pending")
}

func (f *fakeChangeService) History(context.Context, model.Actor, string, int) ([]model.ChangeRequest, error) {
	return nil, nil
}

func TestChangeRequest_ApproveRoutesAndRenders(t *testing.T) {
	svc := &fakeChangeService{}
	h := NewChangeRequestHandler(svc, runtime.NewLogger("test"))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/change-requests/approve",
		strings.NewReader(`{"request_id": "req-1"}`))
	rec := httptest.NewRecorder()
	h.Approve(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.lastOp != "approve" {
		t.Fatalf("expected approve call, got %q", svc.lastOp)
	}
	var item changeRequestItem
	if err := json.Unmarshal(rec.Body.Bytes(), &item); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if item.State != string(model.ChangeApproved) {
		t.Fatalf("expected APPROVED, got %s", item.State)
	}
}

func TestChangeRequest_ConflictMapsTo409(t *testing.T) {
	h := NewChangeRequestHandler(&fakeChangeService{}, runtime.NewLogger("test"))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/change-requests/cancel",
		strings.NewReader(`{"request_id": "req-1"}`))
	rec := httptest.NewRecorder()
	h.Cancel(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestCreateChangeRequest_BadDate(t *testing.T) {
	h := NewChangeRequestHandler(&fakeChangeService{}, runtime.NewLogger("test"))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/change-requests",
		strings.NewReader(`{"session_id":"s-1","requested":{"date":"next tuesday","start_time":930,"end_time":1030}}`))
	rec := httptest.NewRecorder()
	h.Create(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad date, got %d", rec.Code)
	}
}
