package models

import (
	"time"

	"github.com/google/uuid"

	"charles-backend/internal/recurrence"
)

// Event is one timetable entry. Date and Time are naive local values
// ("2006-01-02" / "15:04"); the timetable never deals in timezones.
// ResultText carries an attached AI result by value, so deleting the original
// task does not affect the scheduled copy.
type Event struct {
	ID            uuid.UUID       `json:"id"`
	UserID        uuid.UUID       `json:"user_id"`
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	Date          string          `json:"date"`
	Time          string          `json:"time"`
	Recurrence    recurrence.Rule `json:"recurrence"`
	NotifyByEmail bool            `json:"notify_by_email"`
	ResultText    *string         `json:"result_text"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// BaseDate parses the event's date field.
func (e *Event) BaseDate() (time.Time, error) {
	return time.Parse("2006-01-02", e.Date)
}

// EventRequest is the create/update payload. Updates are full replaces.
type EventRequest struct {
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	Date          string          `json:"date"`
	Time          string          `json:"time"`
	Recurrence    recurrence.Rule `json:"recurrence"`
	NotifyByEmail bool            `json:"notify_by_email"`
	ResultText    *string         `json:"result_text"`
}

// CalendarDay is one day of the month view: the date plus the events that
// occur on it.
type CalendarDay struct {
	Date   string      `json:"date"`
	Events []uuid.UUID `json:"event_ids"`
}
