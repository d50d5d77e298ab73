package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"charles-backend/internal/models"
	"charles-backend/internal/recurrence"
	"charles-backend/internal/repository"
)

// How far ahead a reminder fires before the occurrence, and how far forward
// nextOccurrence scans. The scan window comfortably covers any weekly rule.
const (
	reminderLeadWindow = 24 * time.Hour
	occurrenceScanDays = 8
)

// ReminderScheduler sweeps the timetable once an hour and emails premium
// users about their upcoming events. Redis keeps a per-occurrence marker so a
// restart or an overlapping sweep never sends the same reminder twice.
type ReminderScheduler struct {
	eventRepo *repository.EventRepo
	email     *EmailService
	redis     *redis.Client
	cron      *cron.Cron
}

func NewReminderScheduler(eventRepo *repository.EventRepo, email *EmailService, redisClient *redis.Client) *ReminderScheduler {
	return &ReminderScheduler{
		eventRepo: eventRepo,
		email:     email,
		redis:     redisClient,
		cron:      cron.New(),
	}
}

func (s *ReminderScheduler) Start() {
	s.cron.AddFunc("@hourly", func() {
		s.Sweep(context.Background(), time.Now().UTC())
	})
	s.cron.Start()

	// Run once on startup so a freshly booted server catches up.
	go s.Sweep(context.Background(), time.Now().UTC())

	log.Printf("Reminder scheduler started")
}

func (s *ReminderScheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// Sweep sends a reminder for every notifiable event whose next occurrence
// falls within the lead window. Failures are logged and skipped so one bad
// address cannot block the rest of the sweep.
func (s *ReminderScheduler) Sweep(ctx context.Context, now time.Time) {
	events, err := s.eventRepo.ListNotifiable(ctx)
	if err != nil {
		log.Printf("reminder sweep: failed to list events: %v", err)
		return
	}

	for _, ne := range events {
		occurrence, ok := nextOccurrence(&ne.Event, now)
		if !ok {
			continue
		}
		if !dueWithin(occurrence, now, reminderLeadWindow) {
			continue
		}

		marker := fmt.Sprintf("reminder:%s:%s", ne.Event.ID, occurrence.Format("2006-01-02"))
		set, err := s.redis.SetNX(ctx, marker, "1", 48*time.Hour).Result()
		if err != nil {
			log.Printf("reminder sweep: failed to mark event %s: %v", ne.Event.ID, err)
			continue
		}
		if !set {
			continue
		}

		err = s.email.SendEventReminderEmail(
			ne.OwnerEmail,
			ne.OwnerName,
			ne.Event.Title,
			occurrence.Format("2006-01-02"),
			ne.Event.Time,
		)
		if err != nil {
			log.Printf("reminder sweep: failed to email %s for event %s: %v", ne.OwnerEmail, ne.Event.ID, err)
		}
	}
}

// nextOccurrence finds the event's first occurrence on or after now, as a
// datetime combining the occurrence date with the event's time-of-day.
// Events without a time-of-day count as occurring at midnight.
func nextOccurrence(ev *models.Event, now time.Time) (time.Time, bool) {
	base, err := ev.BaseDate()
	if err != nil {
		return time.Time{}, false
	}

	day := recurrence.DateOnly(now)
	for i := 0; i < occurrenceScanDays; i++ {
		d := day.AddDate(0, 0, i)
		if !recurrence.OccursOn(ev.Recurrence, base, d) {
			continue
		}
		occurrence := d
		if ev.Time != "" {
			if t, err := time.Parse("15:04", ev.Time); err == nil {
				occurrence = d.Add(time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute)
			}
		}
		// Today's occurrence may already be in the past.
		if occurrence.Before(now) {
			continue
		}
		return occurrence, true
	}

	return time.Time{}, false
}

func dueWithin(occurrence, now time.Time, window time.Duration) bool {
	return !occurrence.Before(now) && occurrence.Sub(now) <= window
}
