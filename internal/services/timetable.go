package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	"charles-backend/internal/models"
	"charles-backend/internal/recurrence"
)

// eventStore and planSource are the slices of the repositories the timetable
// needs, kept small so tests can substitute fakes.
type eventStore interface {
	Create(ctx context.Context, e *models.Event) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Event, error)
	Update(ctx context.Context, e *models.Event) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type planSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// TimetableService owns the personal schedule: event CRUD, the month grid,
// and the ICS export. Premium-only features (recurrence, email reminders) are
// enforced here against the stored plan, never against anything the client
// sent.
type TimetableService struct {
	events eventStore
	users  planSource
}

func NewTimetableService(events eventStore, users planSource) *TimetableService {
	return &TimetableService{events: events, users: users}
}

func (s *TimetableService) CreateEvent(ctx context.Context, userID uuid.UUID, req models.EventRequest) (*models.Event, error) {
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}

	rule, notify, err := s.applyPlanLimits(ctx, userID, req)
	if err != nil {
		return nil, err
	}

	event := &models.Event{
		UserID:        userID,
		Title:         req.Title,
		Description:   req.Description,
		Date:          req.Date,
		Time:          req.Time,
		Recurrence:    rule,
		NotifyByEmail: notify,
		ResultText:    req.ResultText,
	}

	if err := s.events.Create(ctx, event); err != nil {
		return nil, err
	}

	return event, nil
}

func (s *TimetableService) GetEvent(ctx context.Context, userID, eventID uuid.UUID) (*models.Event, error) {
	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, &NotFoundError{Message: "Event not found"}
	}
	if event.UserID != userID {
		return nil, &NotFoundError{Message: "Event not found"}
	}
	return event, nil
}

func (s *TimetableService) ListEvents(ctx context.Context, userID uuid.UUID) ([]*models.Event, error) {
	return s.events.ListByUser(ctx, userID)
}

// UpdateEvent replaces every stored field with the request's values. Plan
// limits are re-applied, so an event created while premium degrades to a
// one-off on the next edit after a downgrade.
func (s *TimetableService) UpdateEvent(ctx context.Context, userID, eventID uuid.UUID, req models.EventRequest) (*models.Event, error) {
	event, err := s.GetEvent(ctx, userID, eventID)
	if err != nil {
		return nil, err
	}

	if err := s.validateRequest(req); err != nil {
		return nil, err
	}

	rule, notify, err := s.applyPlanLimits(ctx, userID, req)
	if err != nil {
		return nil, err
	}

	event.Title = req.Title
	event.Description = req.Description
	event.Date = req.Date
	event.Time = req.Time
	event.Recurrence = rule
	event.NotifyByEmail = notify
	event.ResultText = req.ResultText

	if err := s.events.Update(ctx, event); err != nil {
		return nil, err
	}

	return event, nil
}

func (s *TimetableService) DeleteEvent(ctx context.Context, userID, eventID uuid.UUID) error {
	if _, err := s.GetEvent(ctx, userID, eventID); err != nil {
		return err
	}
	return s.events.Delete(ctx, eventID)
}

// CalendarMonth builds the month grid: one entry per day of the given month,
// each listing the IDs of the events occurring on it.
func (s *TimetableService) CalendarMonth(ctx context.Context, userID uuid.UUID, year int, month time.Month) ([]models.CalendarDay, error) {
	events, err := s.events.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	target := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	byDay := make(map[string][]uuid.UUID)

	for _, ev := range events {
		base, err := ev.BaseDate()
		if err != nil {
			continue
		}
		for _, d := range recurrence.ExpandMonth(ev.Recurrence, base, target) {
			key := d.Format("2006-01-02")
			byDay[key] = append(byDay[key], ev.ID)
		}
	}

	daysInMonth := target.AddDate(0, 1, -1).Day()
	grid := make([]models.CalendarDay, 0, daysInMonth)
	for day := 1; day <= daysInMonth; day++ {
		key := time.Date(year, month, day, 0, 0, 0, 0, time.UTC).Format("2006-01-02")
		grid = append(grid, models.CalendarDay{Date: key, Events: byDay[key]})
	}

	return grid, nil
}

// EventsOnDay returns the user's events occurring on a single date, sorted by
// their time-of-day.
func (s *TimetableService) EventsOnDay(ctx context.Context, userID uuid.UUID, day time.Time) ([]*models.Event, error) {
	events, err := s.events.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	matching := make([]*models.Event, 0)
	for _, ev := range events {
		base, err := ev.BaseDate()
		if err != nil {
			continue
		}
		if recurrence.OccursOn(ev.Recurrence, base, day) {
			matching = append(matching, ev)
		}
	}

	sort.Slice(matching, func(i, j int) bool { return matching[i].Time < matching[j].Time })
	return matching, nil
}

// ExportICS renders the user's whole timetable as an iCalendar feed, with
// recurrence rules carried over as RRULEs.
func (s *TimetableService) ExportICS(ctx context.Context, userID uuid.UUID) (string, error) {
	events, err := s.events.ListByUser(ctx, userID)
	if err != nil {
		return "", err
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//Study with Charles//Timetable//EN")

	for _, ev := range events {
		start, err := eventStart(ev)
		if err != nil {
			continue
		}

		ve := cal.AddEvent(ev.ID.String())
		ve.SetDtStampTime(ev.UpdatedAt)
		ve.SetStartAt(start)
		ve.SetEndAt(start.Add(time.Hour))
		ve.SetSummary(ev.Title)
		if ev.Description != "" {
			ve.SetDescription(ev.Description)
		}
		if rr := rruleString(ev.Recurrence); rr != "" {
			ve.AddRrule(rr)
		}
	}

	return cal.Serialize(), nil
}

// applyPlanLimits reads the stored plan and coerces the request accordingly.
// Free users silently lose recurrence and email notification; premium users
// get their rule validated instead.
func (s *TimetableService) applyPlanLimits(ctx context.Context, userID uuid.UUID, req models.EventRequest) (recurrence.Rule, bool, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return recurrence.None(), false, err
	}

	if !user.IsSubscribed() {
		return recurrence.None(), false, nil
	}

	if err := req.Recurrence.Validate(); err != nil {
		return recurrence.None(), false, &ValidationError{Fields: map[string]string{"recurrence": err.Error()}}
	}

	rule := req.Recurrence
	if rule.Freq == "" {
		// An omitted recurrence field decodes to the zero rule; store it as
		// an explicit one-off.
		rule = recurrence.None()
	}

	return rule, req.NotifyByEmail, nil
}

func (s *TimetableService) validateRequest(req models.EventRequest) error {
	fieldErrors := make(map[string]string)

	if strings.TrimSpace(req.Title) == "" {
		fieldErrors["title"] = "Title is required"
	}
	if _, err := time.Parse("2006-01-02", req.Date); err != nil {
		fieldErrors["date"] = "Date must be in YYYY-MM-DD format"
	}
	if req.Time == "" {
		fieldErrors["time"] = "Time is required"
	} else if _, err := time.Parse("15:04", req.Time); err != nil {
		fieldErrors["time"] = "Time must be in HH:MM format"
	}

	if len(fieldErrors) > 0 {
		return &ValidationError{Fields: fieldErrors}
	}
	return nil
}

func eventStart(ev *models.Event) (time.Time, error) {
	if ev.Time != "" {
		return time.Parse("2006-01-02 15:04", fmt.Sprintf("%s %s", ev.Date, ev.Time))
	}
	return ev.BaseDate()
}

var icsWeekdays = map[time.Weekday]string{
	time.Sunday:    "SU",
	time.Monday:    "MO",
	time.Tuesday:   "TU",
	time.Wednesday: "WE",
	time.Thursday:  "TH",
	time.Friday:    "FR",
	time.Saturday:  "SA",
}

func rruleString(rule recurrence.Rule) string {
	if !rule.IsRecurring() {
		return ""
	}
	switch rule.Freq {
	case recurrence.FreqDaily:
		return "FREQ=DAILY"
	case recurrence.FreqWeekly:
		days := make([]string, 0, len(rule.Days))
		for _, d := range rule.Days {
			days = append(days, icsWeekdays[d])
		}
		return "FREQ=WEEKLY;BYDAY=" + strings.Join(days, ",")
	}
	return ""
}
