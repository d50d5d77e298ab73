package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"charles-backend/internal/models"
	"charles-backend/internal/recurrence"
)

type fakeEventStore struct {
	events map[uuid.UUID]*models.Event
}

func newFakeEventStore() *fakeEventStore {
	return &fakeEventStore{events: make(map[uuid.UUID]*models.Event)}
}

func (f *fakeEventStore) Create(_ context.Context, e *models.Event) error {
	e.ID = uuid.New()
	e.CreatedAt = time.Now()
	e.UpdatedAt = e.CreatedAt
	f.events[e.ID] = e
	return nil
}

func (f *fakeEventStore) GetByID(_ context.Context, id uuid.UUID) (*models.Event, error) {
	e, ok := f.events[id]
	if !ok {
		return nil, errors.New("no rows")
	}
	return e, nil
}

func (f *fakeEventStore) ListByUser(_ context.Context, userID uuid.UUID) ([]*models.Event, error) {
	out := make([]*models.Event, 0)
	for _, e := range f.events {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeEventStore) Update(_ context.Context, e *models.Event) error {
	f.events[e.ID] = e
	return nil
}

func (f *fakeEventStore) Delete(_ context.Context, id uuid.UUID) error {
	delete(f.events, id)
	return nil
}

type fakePlanSource struct {
	plans map[uuid.UUID]string
}

func (f *fakePlanSource) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	plan, ok := f.plans[id]
	if !ok {
		return nil, errors.New("no rows")
	}
	return &models.User{ID: id, Plan: plan}, nil
}

func timetableFixture(plan string) (*TimetableService, *fakeEventStore, uuid.UUID) {
	store := newFakeEventStore()
	userID := uuid.New()
	users := &fakePlanSource{plans: map[uuid.UUID]string{userID: plan}}
	return NewTimetableService(store, users), store, userID
}

func weeklyRule(days ...time.Weekday) recurrence.Rule {
	return recurrence.Rule{Freq: recurrence.FreqWeekly, Days: days}
}

func TestCreateEventFreeUserLosesRecurrenceAndNotification(t *testing.T) {
	svc, _, userID := timetableFixture(models.PlanFree)

	event, err := svc.CreateEvent(context.Background(), userID, models.EventRequest{
		Title:         "Physics revision",
		Date:          "2024-03-15",
		Time:          "17:00",
		Recurrence:    weeklyRule(time.Monday, time.Wednesday),
		NotifyByEmail: true,
	})
	if err != nil {
		t.Fatalf("CreateEvent failed: %v", err)
	}

	if event.Recurrence.IsRecurring() {
		t.Error("free user's event should be a one-off")
	}
	if event.NotifyByEmail {
		t.Error("free user's event should not have email notification")
	}
}

func TestCreateEventPremiumKeepsRecurrence(t *testing.T) {
	svc, _, userID := timetableFixture(models.PlanPremium)

	event, err := svc.CreateEvent(context.Background(), userID, models.EventRequest{
		Title:         "Physics revision",
		Date:          "2024-03-15",
		Time:          "17:00",
		Recurrence:    weeklyRule(time.Monday, time.Wednesday),
		NotifyByEmail: true,
	})
	if err != nil {
		t.Fatalf("CreateEvent failed: %v", err)
	}

	if !event.Recurrence.IsRecurring() {
		t.Error("premium user's recurrence should be kept")
	}
	if !event.NotifyByEmail {
		t.Error("premium user's notification flag should be kept")
	}
}

func TestCreateEventPremiumWithoutRecurrenceField(t *testing.T) {
	svc, _, userID := timetableFixture(models.PlanPremium)

	// Decoding a payload that omits recurrence yields the zero rule; it must
	// save as a plain one-off, not bounce off rule validation.
	event, err := svc.CreateEvent(context.Background(), userID, models.EventRequest{
		Title: "Office hours",
		Date:  "2024-03-15",
		Time:  "14:00",
	})
	if err != nil {
		t.Fatalf("CreateEvent failed: %v", err)
	}

	if event.Recurrence.Freq != recurrence.FreqNone {
		t.Errorf("expected stored rule to be none, got %q", event.Recurrence.Freq)
	}
	if event.Recurrence.IsRecurring() {
		t.Error("event without a recurrence field should be a one-off")
	}
}

func TestCreateEventPremiumWeeklyWithoutDaysRejected(t *testing.T) {
	svc, store, userID := timetableFixture(models.PlanPremium)

	_, err := svc.CreateEvent(context.Background(), userID, models.EventRequest{
		Title:      "Physics revision",
		Date:       "2024-03-15",
		Time:       "17:00",
		Recurrence: weeklyRule(),
	})

	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if _, ok := validation.Fields["recurrence"]; !ok {
		t.Errorf("expected recurrence field error, got %v", validation.Fields)
	}
	if len(store.events) != 0 {
		t.Error("nothing should be saved on validation failure")
	}
}

func TestCreateEventMissingTitle(t *testing.T) {
	svc, store, userID := timetableFixture(models.PlanFree)

	_, err := svc.CreateEvent(context.Background(), userID, models.EventRequest{
		Title: "   ",
		Date:  "2024-03-15",
		Time:  "09:00",
	})

	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if _, ok := validation.Fields["title"]; !ok {
		t.Errorf("expected title field error, got %v", validation.Fields)
	}
	if len(store.events) != 0 {
		t.Error("nothing should be saved on validation failure")
	}
}

func TestCreateEventBadDateAndTime(t *testing.T) {
	svc, _, userID := timetableFixture(models.PlanFree)

	_, err := svc.CreateEvent(context.Background(), userID, models.EventRequest{
		Title: "Quiz",
		Date:  "15/03/2024",
		Time:  "5pm",
	})

	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	for _, field := range []string{"date", "time"} {
		if _, ok := validation.Fields[field]; !ok {
			t.Errorf("expected %s field error, got %v", field, validation.Fields)
		}
	}
}

func TestGetEventOtherUsersEventIsNotFound(t *testing.T) {
	svc, store, userID := timetableFixture(models.PlanFree)

	other := &models.Event{UserID: uuid.New(), Title: "Not yours", Date: "2024-03-15"}
	store.Create(context.Background(), other)

	_, err := svc.GetEvent(context.Background(), userID, other.ID)
	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestUpdateEventReplacesAllFields(t *testing.T) {
	svc, _, userID := timetableFixture(models.PlanPremium)

	created, err := svc.CreateEvent(context.Background(), userID, models.EventRequest{
		Title:         "Draft",
		Description:   "old",
		Date:          "2024-03-15",
		Time:          "09:00",
		Recurrence:    weeklyRule(time.Monday),
		NotifyByEmail: true,
	})
	if err != nil {
		t.Fatalf("CreateEvent failed: %v", err)
	}

	updated, err := svc.UpdateEvent(context.Background(), userID, created.ID, models.EventRequest{
		Title: "Final",
		Date:  "2024-04-01",
		Time:  "10:30",
	})
	if err != nil {
		t.Fatalf("UpdateEvent failed: %v", err)
	}

	if updated.Title != "Final" || updated.Date != "2024-04-01" || updated.Time != "10:30" {
		t.Errorf("fields not replaced: %+v", updated)
	}
	if updated.Description != "" {
		t.Error("omitted description should be cleared on full replace")
	}
	if updated.Recurrence.IsRecurring() || updated.NotifyByEmail {
		t.Error("omitted recurrence and notification should be cleared")
	}
}

func TestCalendarMonthGrid(t *testing.T) {
	svc, _, userID := timetableFixture(models.PlanPremium)

	_, err := svc.CreateEvent(context.Background(), userID, models.EventRequest{
		Title:      "Standup",
		Date:       "2024-03-15",
		Time:       "09:00",
		Recurrence: weeklyRule(time.Monday, time.Wednesday),
	})
	if err != nil {
		t.Fatalf("CreateEvent failed: %v", err)
	}

	grid, err := svc.CalendarMonth(context.Background(), userID, 2024, time.March)
	if err != nil {
		t.Fatalf("CalendarMonth failed: %v", err)
	}

	if len(grid) != 31 {
		t.Fatalf("expected 31 days in March, got %d", len(grid))
	}

	occupied := make(map[string]int)
	for _, day := range grid {
		if len(day.Events) > 0 {
			occupied[day.Date] = len(day.Events)
		}
	}

	want := []string{"2024-03-18", "2024-03-20", "2024-03-25", "2024-03-27"}
	if len(occupied) != len(want) {
		t.Fatalf("expected %d occupied days, got %v", len(want), occupied)
	}
	for _, date := range want {
		if occupied[date] != 1 {
			t.Errorf("expected one event on %s, got %d", date, occupied[date])
		}
	}
}

func TestEventsOnDaySortedByTime(t *testing.T) {
	svc, _, userID := timetableFixture(models.PlanFree)

	for _, e := range []struct{ title, timeOfDay string }{
		{"Evening review", "19:00"},
		{"Morning quiz", "08:30"},
		{"Lunch seminar", "12:00"},
	} {
		if _, err := svc.CreateEvent(context.Background(), userID, models.EventRequest{
			Title: e.title,
			Date:  "2024-03-15",
			Time:  e.timeOfDay,
		}); err != nil {
			t.Fatalf("CreateEvent failed: %v", err)
		}
	}

	day := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	events, err := svc.EventsOnDay(context.Background(), userID, day)
	if err != nil {
		t.Fatalf("EventsOnDay failed: %v", err)
	}

	got := make([]string, 0, len(events))
	for _, e := range events {
		got = append(got, e.Title)
	}
	want := []string{"Morning quiz", "Lunch seminar", "Evening review"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("wrong order: got %v, want %v", got, want)
		}
	}
}

func TestExportICSCarriesRecurrence(t *testing.T) {
	svc, _, userID := timetableFixture(models.PlanPremium)

	_, err := svc.CreateEvent(context.Background(), userID, models.EventRequest{
		Title:      "Weekly tutoring",
		Date:       "2024-03-18",
		Time:       "16:00",
		Recurrence: weeklyRule(time.Monday, time.Wednesday),
	})
	if err != nil {
		t.Fatalf("CreateEvent failed: %v", err)
	}

	feed, err := svc.ExportICS(context.Background(), userID)
	if err != nil {
		t.Fatalf("ExportICS failed: %v", err)
	}

	for _, want := range []string{"BEGIN:VCALENDAR", "SUMMARY:Weekly tutoring", "RRULE:FREQ=WEEKLY;BYDAY=MO,WE"} {
		if !strings.Contains(feed, want) {
			t.Errorf("exported feed missing %q:\n%s", want, feed)
		}
	}
}
