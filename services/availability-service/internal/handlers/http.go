package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/md-rashed-zaman/consultbook/libs/httpx"
	"github.com/md-rashed-zaman/consultbook/services/availability-service/internal/availability"
	"github.com/md-rashed-zaman/consultbook/services/availability-service/internal/planning"
	"github.com/md-rashed-zaman/consultbook/services/availability-service/internal/storage"
)

// Planner is the read side used by the HTTP surface.
type Planner interface {
	DaySlots(ctx context.Context, professionalID, date string, duration time.Duration) ([]availability.Slot, error)
	Availability(ctx context.Context, professionalID string, duration time.Duration, horizonDays int) (planning.Probe, error)
	Calendar(ctx context.Context, professionalID, month string) ([]availability.CalendarDay, error)
	Professional(ctx context.Context, professionalID string) (storage.Professional, error)
	AllowDays(ctx context.Context, professionalID string, from, to time.Time) ([]availability.AllowDay, error)
	Blocks(ctx context.Context, professionalID string) ([]availability.BlockedDate, error)
	Appointments(ctx context.Context, professionalID string, gte time.Time) ([]availability.Appointment, error)
}

// Editor is the write side used by the HTTP surface.
type Editor interface {
	SaveProfessional(ctx context.Context, p storage.Professional) error
	CreateAllowDay(ctx context.Context, professionalID string, d availability.AllowDay) (availability.AllowDay, error)
	UpdateAllowDay(ctx context.Context, professionalID string, d availability.AllowDay) error
	DeleteAllowDay(ctx context.Context, professionalID, id string) error
	CreateBlock(ctx context.Context, professionalID, date string) (availability.BlockedDate, error)
	DeleteBlock(ctx context.Context, professionalID, id string) error
}

type Handler struct {
	planner Planner
	editor  Editor
	logger  *slog.Logger
}

func New(planner Planner, editor Editor, logger *slog.Logger) *Handler {
	return &Handler{planner: planner, editor: editor, logger: logger}
}

// Register mounts the availability routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/pros/{id}", h.GetProfile)
	mux.HandleFunc("PUT /api/v1/pros/{id}", h.PutProfile)
	mux.HandleFunc("GET /api/v1/pros/{id}/slots", h.GetSlots)
	mux.HandleFunc("GET /api/v1/pros/{id}/availability", h.GetAvailability)
	mux.HandleFunc("GET /api/v1/pros/{id}/calendar", h.GetCalendar)
	mux.HandleFunc("GET /api/v1/pros/{id}/allow-days", h.ListAllowDays)
	mux.HandleFunc("POST /api/v1/pros/{id}/allow-days", h.CreateAllowDay)
	mux.HandleFunc("PUT /api/v1/pros/{id}/allow-days/{allowDayID}", h.UpdateAllowDay)
	mux.HandleFunc("DELETE /api/v1/pros/{id}/allow-days/{allowDayID}", h.DeleteAllowDay)
	mux.HandleFunc("GET /api/v1/pros/{id}/blocks", h.ListBlocks)
	mux.HandleFunc("POST /api/v1/pros/{id}/blocks", h.CreateBlock)
	mux.HandleFunc("DELETE /api/v1/pros/{id}/blocks/{blockID}", h.DeleteBlock)
	mux.HandleFunc("GET /api/v1/pros/{id}/appointments", h.ListAppointments)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, planning.ErrInvalid):
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, storage.ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, "not found")
	case errors.Is(err, storage.ErrConflict):
		httpx.WriteError(w, http.StatusConflict, err.Error())
	case errors.Is(err, context.Canceled):
		// client went away; nothing useful to write
	default:
		h.logger.Error("request failed", "err", err,
			"path", r.URL.Path,
			"request_id", httpx.RequestIDFromContext(r.Context()),
		)
		httpx.WriteError(w, http.StatusInternalServerError, "internal error")
	}
}

func professionalID(r *http.Request) string {
	return strings.TrimSpace(r.PathValue("id"))
}

func queryInt(r *http.Request, key string) (int, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}

// maxDurationMinutes bounds the duration query before it becomes a
// time.Duration; one slot never spans more than a day.
const maxDurationMinutes = 24 * 60

// queryMinutes reads a minute count; absent means zero (the default duration).
func queryMinutes(r *http.Request, key string) (time.Duration, bool) {
	n, ok := queryInt(r, key)
	if !ok || n < 0 || n > maxDurationMinutes {
		return 0, false
	}
	return time.Duration(n) * time.Minute, true
}

// queryTime accepts YYYY-MM-DD or RFC3339; a missing value is the zero time.
func queryTime(r *http.Request, key string) (time.Time, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return time.Time{}, true
	}
	if t, err := time.Parse(availability.DateLayout, raw); err == nil {
		return t, true
	}
	t, err := time.Parse(time.RFC3339, raw)
	return t, err == nil
}

type profileBody struct {
	ID                    string                           `json:"id"`
	Timezone              string                           `json:"timezone"`
	AvailabilityStartDate *time.Time                       `json:"availability_start_date"`
	AvailabilityEndDate   *time.Time                       `json:"availability_end_date"`
	Schedules             []availability.RecurringSchedule `json:"schedules"`
}

func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := h.planner.Professional(r.Context(), professionalID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	schedules := p.Schedules
	if schedules == nil {
		schedules = []availability.RecurringSchedule{}
	}
	httpx.WriteJSON(w, http.StatusOK, profileBody{
		ID:                    p.ID,
		Timezone:              p.Timezone,
		AvailabilityStartDate: p.Range.Start,
		AvailabilityEndDate:   p.Range.End,
		Schedules:             schedules,
	})
}

func (h *Handler) PutProfile(w http.ResponseWriter, r *http.Request) {
	var req profileBody
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	p := storage.Professional{
		ID:        professionalID(r),
		Timezone:  strings.TrimSpace(req.Timezone),
		Range:     availability.DateRange{Start: req.AvailabilityStartDate, End: req.AvailabilityEndDate},
		Schedules: req.Schedules,
	}
	if err := h.editor.SaveProfessional(r.Context(), p); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GetSlots(w http.ResponseWriter, r *http.Request) {
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	if date == "" {
		httpx.WriteError(w, http.StatusBadRequest, "date is required (YYYY-MM-DD)")
		return
	}
	duration, ok := queryMinutes(r, "duration")
	if !ok {
		httpx.WriteError(w, http.StatusBadRequest, "duration must be a number of minutes between 1 and 1440")
		return
	}

	slots, err := h.planner.DaySlots(r.Context(), professionalID(r), date, duration)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"date":  date,
		"slots": slots,
	})
}

func (h *Handler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	duration, ok := queryMinutes(r, "duration")
	if !ok {
		httpx.WriteError(w, http.StatusBadRequest, "duration must be a number of minutes between 1 and 1440")
		return
	}
	horizon, ok := queryInt(r, "horizon_days")
	if !ok {
		httpx.WriteError(w, http.StatusBadRequest, "horizon_days must be a number")
		return
	}

	probe, err := h.planner.Availability(r.Context(), professionalID(r), duration, horizon)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, probe)
}

func (h *Handler) GetCalendar(w http.ResponseWriter, r *http.Request) {
	month := strings.TrimSpace(r.URL.Query().Get("month"))
	if month == "" {
		httpx.WriteError(w, http.StatusBadRequest, "month is required (YYYY-MM)")
		return
	}
	days, err := h.planner.Calendar(r.Context(), professionalID(r), month)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"month": month,
		"days":  days,
	})
}

func (h *Handler) ListAllowDays(w http.ResponseWriter, r *http.Request) {
	from, ok := queryTime(r, "from")
	if !ok {
		httpx.WriteError(w, http.StatusBadRequest, "invalid from")
		return
	}
	to, ok := queryTime(r, "to")
	if !ok {
		httpx.WriteError(w, http.StatusBadRequest, "invalid to")
		return
	}
	if !from.IsZero() && !to.IsZero() && !to.After(from) {
		httpx.WriteError(w, http.StatusBadRequest, "to must be after from")
		return
	}

	days, err := h.planner.AllowDays(r.Context(), professionalID(r), from, to)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if days == nil {
		days = []availability.AllowDay{}
	}
	httpx.WriteJSON(w, http.StatusOK, days)
}

type allowDayBody struct {
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

func (h *Handler) CreateAllowDay(w http.ResponseWriter, r *http.Request) {
	var req allowDayBody
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	created, err := h.editor.CreateAllowDay(r.Context(), professionalID(r), availability.AllowDay{
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, created)
}

func (h *Handler) UpdateAllowDay(w http.ResponseWriter, r *http.Request) {
	var req allowDayBody
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	err := h.editor.UpdateAllowDay(r.Context(), professionalID(r), availability.AllowDay{
		ID:        r.PathValue("allowDayID"),
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) DeleteAllowDay(w http.ResponseWriter, r *http.Request) {
	if err := h.editor.DeleteAllowDay(r.Context(), professionalID(r), r.PathValue("allowDayID")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListBlocks(w http.ResponseWriter, r *http.Request) {
	blocks, err := h.planner.Blocks(r.Context(), professionalID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if blocks == nil {
		blocks = []availability.BlockedDate{}
	}
	httpx.WriteJSON(w, http.StatusOK, blocks)
}

func (h *Handler) CreateBlock(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Date string `json:"date"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.Date = strings.TrimSpace(req.Date)
	if req.Date == "" {
		httpx.WriteError(w, http.StatusBadRequest, "date is required")
		return
	}
	created, err := h.editor.CreateBlock(r.Context(), professionalID(r), req.Date)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, created)
}

func (h *Handler) DeleteBlock(w http.ResponseWriter, r *http.Request) {
	if err := h.editor.DeleteBlock(r.Context(), professionalID(r), r.PathValue("blockID")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListAppointments(w http.ResponseWriter, r *http.Request) {
	gte, ok := queryTime(r, "gte")
	if !ok {
		httpx.WriteError(w, http.StatusBadRequest, "invalid gte")
		return
	}
	appts, err := h.planner.Appointments(r.Context(), professionalID(r), gte)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if appts == nil {
		appts = []availability.Appointment{}
	}
	httpx.WriteJSON(w, http.StatusOK, appts)
}
