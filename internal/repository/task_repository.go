package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/taskroster/internal/models"
)

const taskColumns = "id, description, priority, category, completed, created_at, updated_at, deleted_at"

// TaskRepository manages persistence for tasks. Deleted tasks stay in the table with
// deleted_at set until they are purged.
type TaskRepository struct {
	db *sqlx.DB
}

// NewTaskRepository constructs a TaskRepository.
func NewTaskRepository(db *sqlx.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// List returns live tasks, newest first.
func (r *TaskRepository) List(ctx context.Context) ([]models.Task, error) {
	query := r.db.Rebind(`SELECT ` + taskColumns + ` FROM tasks WHERE deleted_at IS NULL ORDER BY created_at DESC, id DESC`)
	tasks := []models.Task{}
	if err := r.db.SelectContext(ctx, &tasks, query); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// ListDeleted returns the bin, most recently deleted first.
func (r *TaskRepository) ListDeleted(ctx context.Context) ([]models.Task, error) {
	query := r.db.Rebind(`SELECT ` + taskColumns + ` FROM tasks WHERE deleted_at IS NOT NULL ORDER BY deleted_at DESC, id DESC`)
	tasks := []models.Task{}
	if err := r.db.SelectContext(ctx, &tasks, query); err != nil {
		return nil, fmt.Errorf("list deleted tasks: %w", err)
	}
	return tasks, nil
}

// FindByID fetches a live task, or a binned one when deleted is true. It returns
// sql.ErrNoRows when nothing matches.
func (r *TaskRepository) FindByID(ctx context.Context, id int64, deleted bool) (*models.Task, error) {
	cond := "deleted_at IS NULL"
	if deleted {
		cond = "deleted_at IS NOT NULL"
	}
	query := r.db.Rebind(`SELECT ` + taskColumns + ` FROM tasks WHERE id = ? AND ` + cond)
	var task models.Task
	if err := r.db.GetContext(ctx, &task, query, id); err != nil {
		return nil, err
	}
	return &task, nil
}

// Create inserts a task and fills in its id and timestamps.
func (r *TaskRepository) Create(ctx context.Context, task *models.Task) error {
	now := time.Now().UTC()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	task.UpdatedAt = now
	query := r.db.Rebind(`INSERT INTO tasks (description, priority, category, completed, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?) RETURNING id`)
	if err := r.db.QueryRowxContext(ctx, query, task.Description, task.Priority, task.Category, task.Completed, task.CreatedAt, task.UpdatedAt).Scan(&task.ID); err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

// Update writes every mutable column of a live task. It returns sql.ErrNoRows when the
// task does not exist or is in the bin.
func (r *TaskRepository) Update(ctx context.Context, task *models.Task) error {
	task.UpdatedAt = time.Now().UTC()
	query := r.db.Rebind(`UPDATE tasks SET description = ?, priority = ?, category = ?, completed = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`)
	res, err := r.db.ExecContext(ctx, query, task.Description, task.Priority, task.Category, task.Completed, task.UpdatedAt, task.ID)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return expectOne(res)
}

// SoftDelete moves a live task into the bin.
func (r *TaskRepository) SoftDelete(ctx context.Context, id int64, at time.Time) error {
	query := r.db.Rebind(`UPDATE tasks SET deleted_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`)
	res, err := r.db.ExecContext(ctx, query, at.UTC(), at.UTC(), id)
	if err != nil {
		return fmt.Errorf("soft delete task: %w", err)
	}
	return expectOne(res)
}

// Delete removes a live task permanently.
func (r *TaskRepository) Delete(ctx context.Context, id int64) error {
	query := r.db.Rebind(`DELETE FROM tasks WHERE id = ? AND deleted_at IS NULL`)
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return expectOne(res)
}

// Restore takes a task out of the bin.
func (r *TaskRepository) Restore(ctx context.Context, id int64) error {
	query := r.db.Rebind(`UPDATE tasks SET deleted_at = NULL, updated_at = ? WHERE id = ? AND deleted_at IS NOT NULL`)
	res, err := r.db.ExecContext(ctx, query, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("restore task: %w", err)
	}
	return expectOne(res)
}

// Purge permanently removes one binned task.
func (r *TaskRepository) Purge(ctx context.Context, id int64) error {
	query := r.db.Rebind(`DELETE FROM tasks WHERE id = ? AND deleted_at IS NOT NULL`)
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("purge task: %w", err)
	}
	return expectOne(res)
}

// PurgeDeletedBefore empties the bin of tasks deleted before cutoff. A zero cutoff
// empties the whole bin.
func (r *TaskRepository) PurgeDeletedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM tasks WHERE deleted_at IS NOT NULL`
	args := []interface{}{}
	if !cutoff.IsZero() {
		query += ` AND deleted_at < ?`
		args = append(args, cutoff.UTC())
	}
	res, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return 0, fmt.Errorf("purge bin: %w", err)
	}
	return res.RowsAffected()
}

// ClearCompleted removes every live completed task, into the bin when soft is true.
func (r *TaskRepository) ClearCompleted(ctx context.Context, soft bool, at time.Time) (int64, error) {
	query := `DELETE FROM tasks WHERE completed = ? AND deleted_at IS NULL`
	args := []interface{}{true}
	if soft {
		query = `UPDATE tasks SET deleted_at = ?, updated_at = ? WHERE completed = ? AND deleted_at IS NULL`
		args = []interface{}{at.UTC(), at.UTC(), true}
	}
	res, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return 0, fmt.Errorf("clear completed tasks: %w", err)
	}
	return res.RowsAffected()
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
