package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jihoonkang/ptbook/services/scheduling-service/internal/booking"
	"github.com/jihoonkang/ptbook/services/scheduling-service/internal/model"
	"github.com/jihoonkang/ptbook/services/scheduling-service/internal/schedule"
	"github.com/jihoonkang/ptbook/services/scheduling-service/internal/timeslot"
)

// Checker is the planner surface the scheduling endpoints need.
type Checker interface {
	Check(ctx context.Context, in booking.CheckInput) (booking.Plan, error)
	FreeStarts(ctx context.Context, trainerID, dateKey string) ([]timeslot.Slot, error)
}

type SchedulingHandler struct {
	planner Checker
	logger  *slog.Logger
}

func NewSchedulingHandler(planner Checker, logger *slog.Logger) *SchedulingHandler {
	return &SchedulingHandler{planner: planner, logger: logger}
}

// daySelection is one date's picked start slots on the wire.
type daySelection struct {
	Date  string `json:"date"`
	Times []int  `json:"times"`
}

type checkRequest struct {
	TrainerID  string         `json:"trainer_id"`
	ProductID  string         `json:"product_id"`
	IsRegular  bool           `json:"is_regular"`
	Selections []daySelection `json:"selections"`
}

type slotSpan struct {
	Date      string `json:"date"`
	StartTime int    `json:"start_time"`
	EndTime   int    `json:"end_time"`
}

type patternItem struct {
	Weekday   int `json:"weekday"`
	StartTime int `json:"start_time"`
	EndTime   int `json:"end_time"`
}

type checkResponse struct {
	Requested int           `json:"requested"`
	Accepted  []slotSpan    `json:"accepted"`
	Rejected  []slotSpan    `json:"rejected"`
	Patterns  []patternItem `json:"patterns,omitempty"`
}

// Slots lists the free start slots of a trainer on one date.
func (h *SchedulingHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	trainerID := strings.TrimSpace(r.URL.Query().Get("trainer_id"))
	dateKey := strings.TrimSpace(r.URL.Query().Get("date"))
	if trainerID == "" || dateKey == "" {
		http.Error(w, "trainer_id and date are required", http.StatusBadRequest)
		return
	}

	free, err := h.planner.FreeStarts(r.Context(), trainerID, dateKey)
	if err != nil {
		writeFault(w, h.logger, err)
		return
	}

	times := make([]int, 0, len(free))
	for _, s := range free {
		times = append(times, int(s))
	}
	writeJSON(w, http.StatusOK, map[string]any{"date": dateKey, "times": times})
}

// Check resolves a member's selections without writing anything. The caller
// sees exactly which occurrences fit before confirming.
func (h *SchedulingHandler) Check(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if _, ok := requireRole(model.RoleMember, w, r); !ok {
		return
	}

	var req checkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	plan, err := h.planner.Check(r.Context(), checkInput(req))
	if err != nil {
		writeFault(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, planResponse(plan))
}

func checkInput(req checkRequest) booking.CheckInput {
	sel := schedule.DaySchedule{}
	for _, day := range req.Selections {
		for _, t := range day.Times {
			sel.Pick(strings.TrimSpace(day.Date), timeslot.Slot(t))
		}
	}
	return booking.CheckInput{
		TrainerID:  strings.TrimSpace(req.TrainerID),
		ProductID:  strings.TrimSpace(req.ProductID),
		IsRegular:  req.IsRegular,
		Selections: sel,
	}
}

func planResponse(plan booking.Plan) checkResponse {
	resp := checkResponse{
		Requested: plan.Requested,
		Accepted:  spans(plan.Accepted),
		Rejected:  spans(plan.Rejected),
	}
	for _, p := range plan.Patterns {
		resp.Patterns = append(resp.Patterns, patternItem{
			Weekday:   int(p.Weekday),
			StartTime: int(p.Start),
			EndTime:   int(p.End),
		})
	}
	return resp
}

func spans(in []schedule.Schedule) []slotSpan {
	out := make([]slotSpan, 0, len(in))
	for _, s := range in {
		out = append(out, slotSpan{
			Date:      s.DateKey(),
			StartTime: int(s.Start),
			EndTime:   int(s.End),
		})
	}
	return out
}
