package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/relaycrm/crm-api/internal/models"
)

// TaskRepository provides database access for tasks.
type TaskRepository struct {
	db *sqlx.DB
}

// NewTaskRepository constructs the repository.
func NewTaskRepository(db *sqlx.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

const taskColumns = `id, user_id, assigned_to, name, access, category, due_at, completed_at, deleted_at, created_at, updated_at`

// ListActive returns every non-deleted, uncompleted task, oldest due first.
func (r *TaskRepository) ListActive(ctx context.Context) ([]models.Task, error) {
	query := fmt.Sprintf(`SELECT %s FROM tasks WHERE deleted_at IS NULL AND completed_at IS NULL ORDER BY due_at NULLS LAST, created_at DESC`, taskColumns)
	var items []models.Task
	if err := r.db.SelectContext(ctx, &items, query); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return items, nil
}

// GetByID fetches one task, including soft-deleted rows.
func (r *TaskRepository) GetByID(ctx context.Context, id string) (*models.Task, error) {
	query := fmt.Sprintf(`SELECT %s FROM tasks WHERE id = $1 LIMIT 1`, taskColumns)
	var item models.Task
	if err := r.db.GetContext(ctx, &item, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get task: %w", err)
	}
	return &item, nil
}

// CreateTx inserts a new task within the caller's transaction.
func (r *TaskRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, item *models.Task) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now

	const query = `INSERT INTO tasks (id, user_id, assigned_to, name, access, category, due_at, created_at, updated_at)
	VALUES (:id, :user_id, :assigned_to, :name, :access, :category, :due_at, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, query, item); err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

// UpdateTx updates mutable fields within the caller's transaction.
func (r *TaskRepository) UpdateTx(ctx context.Context, tx *sqlx.Tx, item *models.Task) error {
	item.UpdatedAt = time.Now().UTC()
	const query = `UPDATE tasks SET assigned_to = :assigned_to, name = :name, access = :access, category = :category,
	due_at = :due_at, completed_at = :completed_at, updated_at = :updated_at
	WHERE id = :id AND deleted_at IS NULL`
	result, err := tx.NamedExecContext(ctx, query, item)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check task update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Complete marks a task done without deleting it.
func (r *TaskRepository) Complete(ctx context.Context, id string, ts time.Time) error {
	const query = `UPDATE tasks SET completed_at = $2, updated_at = $2 WHERE id = $1 AND deleted_at IS NULL AND completed_at IS NULL`
	if _, err := r.db.ExecContext(ctx, query, id, ts); err != nil {
		return fmt.Errorf("complete task: %w", err)
	}
	return nil
}

// SoftDelete stamps the tombstone.
func (r *TaskRepository) SoftDelete(ctx context.Context, id string, ts time.Time) error {
	const query = `UPDATE tasks SET deleted_at = $2, updated_at = $2 WHERE id = $1 AND deleted_at IS NULL`
	if _, err := r.db.ExecContext(ctx, query, id, ts); err != nil {
		return fmt.Errorf("soft delete task: %w", err)
	}
	return nil
}
