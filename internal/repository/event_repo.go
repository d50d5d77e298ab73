package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"charles-backend/internal/models"
	"charles-backend/internal/recurrence"
)

type EventRepo struct {
	pool *pgxpool.Pool
}

// NotifiableEvent pairs an event with its owner's address for the reminder
// sweep. Only premium owners ever appear here.
type NotifiableEvent struct {
	Event      models.Event
	OwnerEmail string
	OwnerName  string
}

func NewEventRepo(pool *pgxpool.Pool) *EventRepo {
	return &EventRepo{pool: pool}
}

func (r *EventRepo) Create(ctx context.Context, e *models.Event) error {
	e.ID = uuid.New()
	ruleJSON, err := json.Marshal(e.Recurrence)
	if err != nil {
		return fmt.Errorf("failed to encode recurrence rule: %w", err)
	}

	query := `INSERT INTO events (id, user_id, title, description, event_date, event_time, recurrence_json, notify_by_email, result_text)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING created_at, updated_at`

	return r.pool.QueryRow(ctx, query,
		e.ID, e.UserID, e.Title, e.Description, e.Date, e.Time, ruleJSON, e.NotifyByEmail, e.ResultText,
	).Scan(&e.CreatedAt, &e.UpdatedAt)
}

func (r *EventRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	e := &models.Event{}
	var ruleJSON []byte
	query := `SELECT id, user_id, title, description, event_date, event_time, recurrence_json, notify_by_email, result_text, created_at, updated_at
		FROM events WHERE id = $1`

	err := r.pool.QueryRow(ctx, query, id).Scan(
		&e.ID, &e.UserID, &e.Title, &e.Description, &e.Date, &e.Time,
		&ruleJSON, &e.NotifyByEmail, &e.ResultText, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := decodeRule(ruleJSON, &e.Recurrence); err != nil {
		return nil, err
	}
	return e, nil
}

func (r *EventRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Event, error) {
	query := `SELECT id, user_id, title, description, event_date, event_time, recurrence_json, notify_by_email, result_text, created_at, updated_at
		FROM events WHERE user_id = $1 ORDER BY event_date, event_time`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*models.Event
	for rows.Next() {
		e := &models.Event{}
		var ruleJSON []byte
		err := rows.Scan(
			&e.ID, &e.UserID, &e.Title, &e.Description, &e.Date, &e.Time,
			&ruleJSON, &e.NotifyByEmail, &e.ResultText, &e.CreatedAt, &e.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		if err := decodeRule(ruleJSON, &e.Recurrence); err != nil {
			return nil, err
		}
		events = append(events, e)
	}

	return events, nil
}

// Update is a full replace of the user-editable fields, matching the
// edit-and-resave lifecycle. ID and ownership never change.
func (r *EventRepo) Update(ctx context.Context, e *models.Event) error {
	ruleJSON, err := json.Marshal(e.Recurrence)
	if err != nil {
		return fmt.Errorf("failed to encode recurrence rule: %w", err)
	}

	query := `UPDATE events SET title = $1, description = $2, event_date = $3, event_time = $4,
		recurrence_json = $5, notify_by_email = $6, result_text = $7, updated_at = $8
		WHERE id = $9`

	_, err = r.pool.Exec(ctx, query,
		e.Title, e.Description, e.Date, e.Time, ruleJSON, e.NotifyByEmail, e.ResultText, time.Now(), e.ID,
	)
	return err
}

func (r *EventRepo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, "DELETE FROM events WHERE id = $1", id)
	return err
}

// ListNotifiable returns events whose owners opted into email reminders and
// hold a premium plan. The gate lives in the query so a lapsed subscription
// silently stops reminders.
func (r *EventRepo) ListNotifiable(ctx context.Context) ([]NotifiableEvent, error) {
	query := `SELECT e.id, e.user_id, e.title, e.description, e.event_date, e.event_time,
		e.recurrence_json, e.notify_by_email, e.result_text, e.created_at, e.updated_at,
		u.email, u.full_name
		FROM events e
		JOIN users u ON u.id = e.user_id
		WHERE e.notify_by_email = TRUE AND u.plan = 'premium' AND u.is_active = TRUE`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []NotifiableEvent
	for rows.Next() {
		var n NotifiableEvent
		var ruleJSON []byte
		err := rows.Scan(
			&n.Event.ID, &n.Event.UserID, &n.Event.Title, &n.Event.Description,
			&n.Event.Date, &n.Event.Time, &ruleJSON, &n.Event.NotifyByEmail,
			&n.Event.ResultText, &n.Event.CreatedAt, &n.Event.UpdatedAt,
			&n.OwnerEmail, &n.OwnerName,
		)
		if err != nil {
			return nil, err
		}
		if err := decodeRule(ruleJSON, &n.Event.Recurrence); err != nil {
			return nil, err
		}
		out = append(out, n)
	}

	return out, nil
}

func decodeRule(raw []byte, rule *recurrence.Rule) error {
	if len(raw) == 0 {
		*rule = recurrence.None()
		return nil
	}
	if err := json.Unmarshal(raw, rule); err != nil {
		return fmt.Errorf("failed to decode recurrence rule: %w", err)
	}
	if rule.Freq == "" {
		*rule = recurrence.None()
	}
	return nil
}
