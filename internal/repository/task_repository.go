package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/kelas-bersih-api/internal/models"
)

// TaskRepository handles persistence of cleaning tasks.
type TaskRepository struct {
	db *sqlx.DB
}

// NewTaskRepository constructs the repository.
func NewTaskRepository(db *sqlx.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// Create persists a new task.
func (r *TaskRepository) Create(ctx context.Context, task *models.Task) error {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO tasks (id, class_id, name, area, points, description, due_date, created_at)
        VALUES (:id, :class_id, :name, :area, :points, :description, :due_date, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, task); err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

// FindByID returns a task by identifier.
func (r *TaskRepository) FindByID(ctx context.Context, id string) (*models.Task, error) {
	const query = `SELECT id, class_id, name, area, points, description, due_date, created_at FROM tasks WHERE id = $1`
	var task models.Task
	if err := r.db.GetContext(ctx, &task, query, id); err != nil {
		return nil, err
	}
	return &task, nil
}

// ListByClass returns the tasks of a class ordered by due date.
func (r *TaskRepository) ListByClass(ctx context.Context, classID string) ([]models.Task, error) {
	const query = `SELECT id, class_id, name, area, points, description, due_date, created_at
        FROM tasks WHERE class_id = $1
        ORDER BY due_date ASC NULLS LAST, created_at DESC`
	var tasks []models.Task
	if err := r.db.SelectContext(ctx, &tasks, query, classID); err != nil {
		return nil, fmt.Errorf("list tasks by class: %w", err)
	}
	return tasks, nil
}

// Update modifies an existing task.
func (r *TaskRepository) Update(ctx context.Context, task *models.Task) error {
	const query = `UPDATE tasks SET name = :name, area = :area, points = :points, description = :description, due_date = :due_date WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, task); err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return nil
}

// Delete removes a task.
func (r *TaskRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM tasks WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}
