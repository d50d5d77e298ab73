package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"charles-backend/internal/middleware"
	"charles-backend/internal/models"
	"charles-backend/internal/repository"
	"charles-backend/internal/services"
)

type EventHandler struct {
	timetable *services.TimetableService
	userRepo  *repository.UserRepo
	email     *services.EmailService
}

func NewEventHandler(timetable *services.TimetableService, userRepo *repository.UserRepo, email *services.EmailService) *EventHandler {
	return &EventHandler{
		timetable: timetable,
		userRepo:  userRepo,
		email:     email,
	}
}

func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.EventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	event, err := h.timetable.CreateEvent(r.Context(), middleware.GetUserID(r.Context()), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, event)
}

func (h *EventHandler) Get(w http.ResponseWriter, r *http.Request) {
	eventID, ok := h.eventID(w, r)
	if !ok {
		return
	}

	event, err := h.timetable.GetEvent(r.Context(), middleware.GetUserID(r.Context()), eventID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, event)
}

func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	events, err := h.timetable.ListEvents(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"events": events})
}

func (h *EventHandler) Update(w http.ResponseWriter, r *http.Request) {
	eventID, ok := h.eventID(w, r)
	if !ok {
		return
	}

	var req models.EventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	event, err := h.timetable.UpdateEvent(r.Context(), middleware.GetUserID(r.Context()), eventID, req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, event)
}

func (h *EventHandler) Delete(w http.ResponseWriter, r *http.Request) {
	eventID, ok := h.eventID(w, r)
	if !ok {
		return
	}

	if err := h.timetable.DeleteEvent(r.Context(), middleware.GetUserID(r.Context()), eventID); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Event deleted"})
}

// Calendar returns the month grid for ?month=YYYY-MM (default: current month).
func (h *EventHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	month := time.Now().UTC()
	if param := r.URL.Query().Get("month"); param != "" {
		parsed, err := time.Parse("2006-01", param)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Month must be in YYYY-MM format", r))
			return
		}
		month = parsed
	}

	grid, err := h.timetable.CalendarMonth(r.Context(), middleware.GetUserID(r.Context()), month.Year(), month.Month())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"month": month.Format("2006-01"),
		"days":  grid,
	})
}

// Day returns the events occurring on ?date=YYYY-MM-DD, sorted by time.
func (h *EventHandler) Day(w http.ResponseWriter, r *http.Request) {
	day, err := time.Parse("2006-01-02", r.URL.Query().Get("date"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Date must be in YYYY-MM-DD format", r))
		return
	}

	events, err := h.timetable.EventsOnDay(r.Context(), middleware.GetUserID(r.Context()), day)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"date":   day.Format("2006-01-02"),
		"events": events,
	})
}

func (h *EventHandler) ExportICS(w http.ResponseWriter, r *http.Request) {
	feed, err := h.timetable.ExportICS(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="timetable.ics"`)
	w.Write([]byte(feed))
}

// Remind sends the event's reminder email immediately, so the student can
// check that reminders reach their inbox.
func (h *EventHandler) Remind(w http.ResponseWriter, r *http.Request) {
	eventID, ok := h.eventID(w, r)
	if !ok {
		return
	}

	userID := middleware.GetUserID(r.Context())

	event, err := h.timetable.GetEvent(r.Context(), userID, eventID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	user, err := h.userRepo.GetByID(r.Context(), userID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load account", r))
		return
	}

	if !user.IsSubscribed() {
		writeJSON(w, http.StatusForbidden, errorResp("FORBIDDEN", "Email reminders require a premium subscription", r))
		return
	}

	if err := h.email.SendEventReminderEmail(user.Email, user.FullName, event.Title, event.Date, event.Time); err != nil {
		writeJSON(w, http.StatusBadGateway, errorResp("UPSTREAM_ERROR", "Failed to send reminder email", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Reminder sent"})
}

func (h *EventHandler) eventID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid event ID", r))
		return uuid.Nil, false
	}
	return id, true
}
