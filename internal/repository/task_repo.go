package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"charles-backend/internal/models"
)

type TaskRepo struct {
	pool *pgxpool.Pool
}

func NewTaskRepo(pool *pgxpool.Pool) *TaskRepo {
	return &TaskRepo{pool: pool}
}

func (r *TaskRepo) Create(ctx context.Context, t *models.Task) error {
	t.ID = uuid.New()
	t.Status = "pending"

	query := `INSERT INTO tasks (id, user_id, kind, subject, output_format, query, file_data_uri, file_name, source_url, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING created_at`

	return r.pool.QueryRow(ctx, query,
		t.ID, t.UserID, t.Kind, t.Subject, t.OutputFormat, t.Query, t.FileDataURI, t.FileName, t.SourceURL, t.Status,
	).Scan(&t.CreatedAt)
}

func (r *TaskRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	t := &models.Task{}
	query := `SELECT id, user_id, kind, subject, output_format, query, file_data_uri, file_name, source_url,
		result_text, status, created_at, completed_at
		FROM tasks WHERE id = $1`

	err := r.pool.QueryRow(ctx, query, id).Scan(
		&t.ID, &t.UserID, &t.Kind, &t.Subject, &t.OutputFormat, &t.Query, &t.FileDataURI, &t.FileName,
		&t.SourceURL, &t.ResultText, &t.Status, &t.CreatedAt, &t.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (r *TaskRepo) ListByUser(ctx context.Context, userID uuid.UUID, search string, limit, offset int) ([]*models.Task, int, error) {
	var args []interface{}
	argIdx := 1

	where := fmt.Sprintf("WHERE user_id = $%d", argIdx)
	args = append(args, userID)
	argIdx++

	if search != "" {
		where += fmt.Sprintf(" AND subject ILIKE $%d", argIdx)
		args = append(args, "%"+search+"%")
		argIdx++
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM tasks "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT id, user_id, kind, subject, output_format, query, file_data_uri, file_name, source_url,
		result_text, status, created_at, completed_at
		FROM tasks %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, where, argIdx, argIdx+1)

	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var tasks []*models.Task
	for rows.Next() {
		t := &models.Task{}
		err := rows.Scan(
			&t.ID, &t.UserID, &t.Kind, &t.Subject, &t.OutputFormat, &t.Query, &t.FileDataURI, &t.FileName,
			&t.SourceURL, &t.ResultText, &t.Status, &t.CreatedAt, &t.CompletedAt,
		)
		if err != nil {
			return nil, 0, err
		}
		tasks = append(tasks, t)
	}

	return tasks, total, nil
}

// SetResult records the model's raw output exactly as returned. The envelope
// never stores an interpretation of the text.
func (r *TaskRepo) SetResult(ctx context.Context, id uuid.UUID, resultText string) error {
	_, err := r.pool.Exec(ctx,
		"UPDATE tasks SET result_text = $1, status = 'completed', completed_at = $2 WHERE id = $3",
		resultText, time.Now(), id,
	)
	return err
}

func (r *TaskRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	_, err := r.pool.Exec(ctx, "UPDATE tasks SET status = $1 WHERE id = $2", status, id)
	return err
}

func (r *TaskRepo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, "DELETE FROM tasks WHERE id = $1", id)
	return err
}
