package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jihoonkang/ptbook/services/scheduling-service/internal/model"
	"github.com/jihoonkang/ptbook/services/scheduling-service/internal/schedule"
	"github.com/jihoonkang/ptbook/services/scheduling-service/internal/timeslot"
)

// ChangeService is the transition surface the change-request endpoints use.
type ChangeService interface {
	Create(ctx context.Context, actor model.Actor, sessionID string, requested schedule.Schedule, reason string) (model.ChangeRequest, error)
	Approve(ctx context.Context, actor model.Actor, requestID string) (model.ChangeRequest, error)
	Reject(ctx context.Context, actor model.Actor, requestID, message string) (model.ChangeRequest, error)
	Cancel(ctx context.Context, actor model.Actor, requestID string) (model.ChangeRequest, error)
	History(ctx context.Context, actor model.Actor, sessionID string, limit int) ([]model.ChangeRequest, error)
}

type ChangeRequestHandler struct {
	svc    ChangeService
	logger *slog.Logger
}

func NewChangeRequestHandler(svc ChangeService, logger *slog.Logger) *ChangeRequestHandler {
	return &ChangeRequestHandler{svc: svc, logger: logger}
}

type createChangeRequest struct {
	SessionID string   `json:"session_id"`
	Requested slotSpan `json:"requested"`
	Reason    string   `json:"reason"`
}

type respondChangeRequest struct {
	RequestID string `json:"request_id"`
	Message   string `json:"message"`
}

type changeRequestItem struct {
	RequestID       string   `json:"request_id"`
	SessionID       string   `json:"session_id"`
	State           string   `json:"state"`
	Requested       slotSpan `json:"requested"`
	Original        slotSpan `json:"original"`
	Reason          string   `json:"reason,omitempty"`
	RequestorID     string   `json:"requestor_id"`
	ResponderID     string   `json:"responder_id,omitempty"`
	ResponseMessage string   `json:"response_message,omitempty"`
	CreatedAt       string   `json:"created_at"`
	RespondedAt     string   `json:"responded_at,omitempty"`
	ExpiresAt       string   `json:"expires_at"`
}

func (h *ChangeRequestHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	actor := ActorFromContext(r.Context())

	var req createChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.SessionID = strings.TrimSpace(req.SessionID)
	if req.SessionID == "" {
		http.Error(w, "session_id required", http.StatusBadRequest)
		return
	}
	date, err := schedule.ParseDateKey(strings.TrimSpace(req.Requested.Date))
	if err != nil {
		writeFault(w, h.logger, err)
		return
	}
	requested := schedule.Schedule{
		Date:  date,
		Start: timeslot.Slot(req.Requested.StartTime),
		End:   timeslot.Slot(req.Requested.EndTime),
	}

	created, err := h.svc.Create(r.Context(), actor, req.SessionID, requested, strings.TrimSpace(req.Reason))
	if err != nil {
		writeFault(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, changeItem(created))
}

func (h *ChangeRequestHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, func(ctx context.Context, actor model.Actor, req respondChangeRequest) (model.ChangeRequest, error) {
		return h.svc.Approve(ctx, actor, req.RequestID)
	})
}

func (h *ChangeRequestHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, func(ctx context.Context, actor model.Actor, req respondChangeRequest) (model.ChangeRequest, error) {
		return h.svc.Reject(ctx, actor, req.RequestID, strings.TrimSpace(req.Message))
	})
}

func (h *ChangeRequestHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, func(ctx context.Context, actor model.Actor, req respondChangeRequest) (model.ChangeRequest, error) {
		return h.svc.Cancel(ctx, actor, req.RequestID)
	})
}

func (h *ChangeRequestHandler) respond(w http.ResponseWriter, r *http.Request,
	do func(context.Context, model.Actor, respondChangeRequest) (model.ChangeRequest, error)) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	actor := ActorFromContext(r.Context())

	var req respondChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.RequestID = strings.TrimSpace(req.RequestID)
	if req.RequestID == "" {
		http.Error(w, "request_id required", http.StatusBadRequest)
		return
	}

	out, err := do(r.Context(), actor, req)
	if err != nil {
		writeFault(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, changeItem(out))
}

// List returns the change-request history of one session, newest first.
func (h *ChangeRequestHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	actor := ActorFromContext(r.Context())

	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
	if sessionID == "" {
		http.Error(w, "session_id required", http.StatusBadRequest)
		return
	}
	limit := 50
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	reqs, err := h.svc.History(r.Context(), actor, sessionID, limit)
	if err != nil {
		writeFault(w, h.logger, err)
		return
	}
	items := make([]changeRequestItem, 0, len(reqs))
	for _, cr := range reqs {
		items = append(items, changeItem(cr))
	}
	writeJSON(w, http.StatusOK, items)
}

func changeItem(cr model.ChangeRequest) changeRequestItem {
	item := changeRequestItem{
		RequestID: cr.ID,
		SessionID: cr.SessionID,
		State:     string(cr.State),
		Requested: slotSpan{
			Date:      cr.Requested.DateKey(),
			StartTime: int(cr.Requested.Start),
			EndTime:   int(cr.Requested.End),
		},
		Original: slotSpan{
			Date:      cr.Original.DateKey(),
			StartTime: int(cr.Original.Start),
			EndTime:   int(cr.Original.End),
		},
		Reason:          cr.Reason,
		RequestorID:     cr.RequestorID,
		ResponderID:     cr.ResponderID,
		ResponseMessage: cr.ResponseMessage,
		CreatedAt:       cr.CreatedAt.UTC().Format(time.RFC3339),
		ExpiresAt:       cr.ExpiresAt.UTC().Format(time.RFC3339),
	}
	if cr.RespondedAt != nil {
		item.RespondedAt = cr.RespondedAt.UTC().Format(time.RFC3339)
	}
	return item
}
