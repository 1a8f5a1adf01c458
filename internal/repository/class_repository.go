package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/kelas-bersih-api/internal/models"
)

// ClassRepository handles persistence of classes.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository constructs the repository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// Create persists a new class.
func (r *ClassRepository) Create(ctx context.Context, class *models.Class) error {
	if class.ID == "" {
		class.ID = uuid.NewString()
	}
	if class.CreatedAt.IsZero() {
		class.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO classes (id, teacher_id, name, join_code, created_at)
        VALUES (:id, :teacher_id, :name, :join_code, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, class); err != nil {
		return fmt.Errorf("create class: %w", err)
	}
	return nil
}

// FindByID returns a class by identifier.
func (r *ClassRepository) FindByID(ctx context.Context, id string) (*models.Class, error) {
	const query = `SELECT id, teacher_id, name, join_code, created_at FROM classes WHERE id = $1`
	var class models.Class
	if err := r.db.GetContext(ctx, &class, query, id); err != nil {
		return nil, err
	}
	return &class, nil
}

// FindByJoinCode resolves a class from its join code.
func (r *ClassRepository) FindByJoinCode(ctx context.Context, code string) (*models.Class, error) {
	const query = `SELECT id, teacher_id, name, join_code, created_at FROM classes WHERE join_code = $1`
	var class models.Class
	if err := r.db.GetContext(ctx, &class, query, code); err != nil {
		return nil, err
	}
	return &class, nil
}

// JoinCodeExists checks whether a join code is already taken.
func (r *ClassRepository) JoinCodeExists(ctx context.Context, code string) (bool, error) {
	const query = `SELECT 1 FROM classes WHERE join_code = $1 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, code); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check join code: %w", err)
	}
	return true, nil
}

// ListByTeacher returns the classes owned by a teacher with aggregates.
func (r *ClassRepository) ListByTeacher(ctx context.Context, teacherID string) ([]models.ClassDetail, error) {
	const query = `SELECT c.id, c.teacher_id, c.name, c.join_code, c.created_at,
        u.full_name AS teacher_name,
        COUNT(DISTINCT g.id) AS group_count,
        COUNT(DISTINCT gm.student_id) AS student_count
        FROM classes c
        JOIN users u ON u.id = c.teacher_id
        LEFT JOIN groups g ON g.class_id = c.id
        LEFT JOIN group_members gm ON gm.group_id = g.id
        WHERE c.teacher_id = $1
        GROUP BY c.id, u.full_name
        ORDER BY c.created_at DESC`
	var classes []models.ClassDetail
	if err := r.db.SelectContext(ctx, &classes, query, teacherID); err != nil {
		return nil, fmt.Errorf("list classes by teacher: %w", err)
	}
	return classes, nil
}

// ListByStudent returns the classes a student belongs to via group membership.
func (r *ClassRepository) ListByStudent(ctx context.Context, studentID string) ([]models.ClassDetail, error) {
	const query = `SELECT c.id, c.teacher_id, c.name, c.join_code, c.created_at,
        u.full_name AS teacher_name,
        COUNT(DISTINCT g2.id) AS group_count,
        COUNT(DISTINCT gm2.student_id) AS student_count
        FROM classes c
        JOIN users u ON u.id = c.teacher_id
        JOIN groups g ON g.class_id = c.id
        JOIN group_members gm ON gm.group_id = g.id AND gm.student_id = $1
        LEFT JOIN groups g2 ON g2.class_id = c.id
        LEFT JOIN group_members gm2 ON gm2.group_id = g2.id
        GROUP BY c.id, u.full_name
        ORDER BY c.created_at DESC`
	var classes []models.ClassDetail
	if err := r.db.SelectContext(ctx, &classes, query, studentID); err != nil {
		return nil, fmt.Errorf("list classes by student: %w", err)
	}
	return classes, nil
}
