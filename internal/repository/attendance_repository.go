package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/kelas-bersih-api/internal/models"
)

// AttendanceRepository upserts and reads daily attendance records.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// Upsert records attendance for a student on a given day. Marking the same
// day twice overwrites the status, so the operation is idempotent.
func (r *AttendanceRepository) Upsert(ctx context.Context, studentID string, date time.Time, status models.AttendanceStatus) (*models.Attendance, error) {
	now := time.Now().UTC()
	const query = `INSERT INTO attendance (id, student_id, date, status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $5)
        ON CONFLICT (student_id, date)
        DO UPDATE SET status = EXCLUDED.status, updated_at = EXCLUDED.updated_at
        RETURNING id, student_id, date, status, created_at, updated_at`
	var record models.Attendance
	if err := r.db.GetContext(ctx, &record, query, uuid.NewString(), studentID, date, status, now); err != nil {
		return nil, fmt.Errorf("upsert attendance: %w", err)
	}
	return &record, nil
}

// ListByStudent returns a student's attendance within a date range.
func (r *AttendanceRepository) ListByStudent(ctx context.Context, studentID string, from, to time.Time) ([]models.Attendance, error) {
	const query = `SELECT id, student_id, date, status, created_at, updated_at
        FROM attendance
        WHERE student_id = $1 AND date >= $2 AND date <= $3
        ORDER BY date DESC`
	var records []models.Attendance
	if err := r.db.SelectContext(ctx, &records, query, studentID, from, to); err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	return records, nil
}

// ListByDate returns every record for one day.
func (r *AttendanceRepository) ListByDate(ctx context.Context, date time.Time) ([]models.Attendance, error) {
	const query = `SELECT id, student_id, date, status, created_at, updated_at
        FROM attendance WHERE date = $1 ORDER BY student_id ASC`
	var records []models.Attendance
	if err := r.db.SelectContext(ctx, &records, query, date); err != nil {
		return nil, fmt.Errorf("list attendance by date: %w", err)
	}
	return records, nil
}
