package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jihoonkang/ptbook/services/scheduling-service/internal/booking"
	"github.com/jihoonkang/ptbook/services/scheduling-service/internal/model"
	"github.com/jihoonkang/ptbook/services/scheduling-service/internal/schedule"
)

// Confirmer persists a checked plan.
type Confirmer interface {
	Write(ctx context.Context, memberID string, plan booking.Plan) (booking.Result, error)
}

// BookingLister reads the caller's bookings.
type BookingLister interface {
	ListBookings(ctx context.Context, actor model.Actor, limit int) ([]model.Booking, error)
}

type BookingHandler struct {
	planner Checker
	writer  Confirmer
	store   BookingLister
	logger  *slog.Logger
}

func NewBookingHandler(planner Checker, writer Confirmer, store BookingLister, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{planner: planner, writer: writer, store: store, logger: logger}
}

type confirmResponse struct {
	BookingID string     `json:"booking_id"`
	Requested int        `json:"requested"`
	Booked    int        `json:"booked"`
	Lost      []slotSpan `json:"lost,omitempty"`
	Message   string     `json:"message"`
}

type bookingItem struct {
	BookingID    string `json:"booking_id"`
	MemberID     string `json:"member_id"`
	TrainerID    string `json:"trainer_id"`
	ProductID    string `json:"product_id"`
	StartDate    string `json:"start_date"`
	IsRegular    bool   `json:"is_regular"`
	State        string `json:"state"`
	SessionCount int    `json:"session_count"`
	CreatedAt    string `json:"created_at"`
}

// Create is the confirm call. The selections are resolved again inside the
// request, so a slot taken since the check call is dropped here rather than
// failing the write.
func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	actor, ok := requireRole(model.RoleMember, w, r)
	if !ok {
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

	res, err := h.writer.Write(r.Context(), actor.ID, plan)
	if err != nil {
		writeFault(w, h.logger, err)
		return
	}

	lost := append(spans(plan.Rejected), spans(res.Lost)...)
	writeJSON(w, http.StatusCreated, confirmResponse{
		BookingID: res.BookingID,
		Requested: res.Requested,
		Booked:    res.Booked,
		Lost:      lost,
		Message:   res.Message,
	})
}

// List returns the caller's bookings, newest first.
func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	actor := ActorFromContext(r.Context())

	limit := 50
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	bookings, err := h.store.ListBookings(r.Context(), actor, limit)
	if err != nil {
		writeFault(w, h.logger, err)
		return
	}

	items := make([]bookingItem, 0, len(bookings))
	for _, b := range bookings {
		items = append(items, bookingItem{
			BookingID:    b.ID,
			MemberID:     b.MemberID,
			TrainerID:    b.TrainerID,
			ProductID:    b.ProductID,
			StartDate:    schedule.DateKey(b.StartDate),
			IsRegular:    b.IsRegular,
			State:        string(b.State),
			SessionCount: b.SessionCount,
			CreatedAt:    b.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, items)
}
