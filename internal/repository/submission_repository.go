package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/kelas-bersih-api/internal/models"
)

// Sentinel errors surfaced to the service layer for conflict mapping.
var (
	// ErrPendingExists is returned when the partial unique index on
	// (task_id, group_id) WHERE status = 'PENDING' rejects an insert.
	ErrPendingExists = errors.New("pending submission already exists")
	// ErrNotPending is returned when a decision targets a submission that
	// is no longer in the PENDING state.
	ErrNotPending = errors.New("submission is not pending")
)

const pqUniqueViolation = "23505"

// SubmissionRepository persists submissions and applies review decisions.
type SubmissionRepository struct {
	db *sqlx.DB
}

// NewSubmissionRepository constructs the repository.
func NewSubmissionRepository(db *sqlx.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

// ExistsPending checks for a pending submission on the (task, group) pair.
// This is the fast-path check; the database index is the authoritative guard.
func (r *SubmissionRepository) ExistsPending(ctx context.Context, taskID, groupID string) (bool, error) {
	const query = `SELECT 1 FROM submissions WHERE task_id = $1 AND group_id = $2 AND status = $3 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, taskID, groupID, models.SubmissionStatusPending); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check pending submission: %w", err)
	}
	return true, nil
}

// Create inserts a pending submission. A concurrent submit for the same
// (task, group) pair loses on the unique index and gets ErrPendingExists.
func (r *SubmissionRepository) Create(ctx context.Context, submission *models.Submission) error {
	if submission.ID == "" {
		submission.ID = uuid.NewString()
	}
	if submission.SubmittedAt.IsZero() {
		submission.SubmittedAt = time.Now().UTC()
	}
	if submission.Status == "" {
		submission.Status = models.SubmissionStatusPending
	}
	const query = `INSERT INTO submissions (id, task_id, group_id, student_id, image_path, notes, status, submitted_at)
        VALUES (:id, :task_id, :group_id, :student_id, :image_path, :notes, :status, :submitted_at)`
	if _, err := r.db.NamedExecContext(ctx, query, submission); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return ErrPendingExists
		}
		return fmt.Errorf("create submission: %w", err)
	}
	return nil
}

// FindByID returns a submission by identifier.
func (r *SubmissionRepository) FindByID(ctx context.Context, id string) (*models.Submission, error) {
	const query = `SELECT id, task_id, group_id, student_id, image_path, notes, status, submitted_at, approved_at FROM submissions WHERE id = $1`
	var submission models.Submission
	if err := r.db.GetContext(ctx, &submission, query, id); err != nil {
		return nil, err
	}
	return &submission, nil
}

// FindDetailByID returns a submission with task, group and student context.
func (r *SubmissionRepository) FindDetailByID(ctx context.Context, id string) (*models.SubmissionDetail, error) {
	const query = `SELECT s.id, s.task_id, s.group_id, s.student_id, s.image_path, s.notes, s.status, s.submitted_at, s.approved_at,
        t.name AS task_name, t.points AS task_points, g.name AS group_name, u.full_name AS student_name
        FROM submissions s
        JOIN tasks t ON t.id = s.task_id
        JOIN groups g ON g.id = s.group_id
        JOIN users u ON u.id = s.student_id
        WHERE s.id = $1`
	var detail models.SubmissionDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// List returns submissions matching the filter with a total count.
func (r *SubmissionRepository) List(ctx context.Context, filter models.SubmissionFilter) ([]models.SubmissionDetail, int, error) {
	base := `FROM submissions s
JOIN tasks t ON t.id = s.task_id
JOIN groups g ON g.id = s.group_id
JOIN users u ON u.id = s.student_id`
	var conditions []string
	var args []interface{}

	if filter.ClassID != "" {
		conditions = append(conditions, fmt.Sprintf("t.class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.GroupID != "" {
		conditions = append(conditions, fmt.Sprintf("s.group_id = $%d", len(args)+1))
		args = append(args, filter.GroupID)
	}
	if filter.TaskID != "" {
		conditions = append(conditions, fmt.Sprintf("s.task_id = $%d", len(args)+1))
		args = append(args, filter.TaskID)
	}
	if filter.Status != "" && filter.Status.Valid() {
		conditions = append(conditions, fmt.Sprintf("s.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"submitted_at": "s.submitted_at",
		"task_name":    "t.name",
		"group_name":   "g.name",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "s.submitted_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT s.id, s.task_id, s.group_id, s.student_id, s.image_path, s.notes, s.status, s.submitted_at, s.approved_at,
        t.name AS task_name, t.points AS task_points, g.name AS group_name, u.full_name AS student_name
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, orderBy, order, size, offset)

	var submissions []models.SubmissionDetail
	if err := r.db.SelectContext(ctx, &submissions, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list submissions: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count submissions: %w", err)
	}
	return submissions, total, nil
}

// Approve flips a pending submission to APPROVED and applies the score and
// streak update to the group's points row in the same transaction. The
// points row is locked so concurrent approvals on the same group serialize.
func (r *SubmissionRepository) Approve(ctx context.Context, id string, decidedAt time.Time) (points *models.GroupPoints, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin approve: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var decided struct {
		TaskID  string `db:"task_id"`
		GroupID string `db:"group_id"`
	}
	const approveQuery = `UPDATE submissions SET status = $2, approved_at = $3
        WHERE id = $1 AND status = $4
        RETURNING task_id, group_id`
	if err = tx.GetContext(ctx, &decided, approveQuery, id, models.SubmissionStatusApproved, decidedAt, models.SubmissionStatusPending); err != nil {
		if err == sql.ErrNoRows {
			err = ErrNotPending
		} else {
			err = fmt.Errorf("approve submission: %w", err)
		}
		return nil, err
	}

	var taskPoints int
	if err = tx.GetContext(ctx, &taskPoints, `SELECT points FROM tasks WHERE id = $1`, decided.TaskID); err != nil {
		return nil, fmt.Errorf("load task points: %w", err)
	}

	var current models.GroupPoints
	const lockQuery = `SELECT group_id, total_points, streak, last_submission_date, updated_at
        FROM group_points WHERE group_id = $1 FOR UPDATE`
	if err = tx.GetContext(ctx, &current, lockQuery, decided.GroupID); err != nil {
		return nil, fmt.Errorf("lock group points: %w", err)
	}

	today := truncateToDay(decidedAt)
	current.Streak = nextStreak(current.Streak, current.LastSubmissionDate, today)
	current.TotalPoints += taskPoints
	current.LastSubmissionDate = &today
	current.UpdatedAt = decidedAt

	const updateQuery = `UPDATE group_points
        SET total_points = $2, streak = $3, last_submission_date = $4, updated_at = $5
        WHERE group_id = $1`
	if _, err = tx.ExecContext(ctx, updateQuery, current.GroupID, current.TotalPoints, current.Streak, current.LastSubmissionDate, current.UpdatedAt); err != nil {
		return nil, fmt.Errorf("update group points: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit approve: %w", err)
	}
	return &current, nil
}

// Reject flips a pending submission to REJECTED and appends the teacher's
// feedback to the notes field. The streak reset is a separate best-effort
// step owned by the caller, so a failing reset never undoes the rejection.
func (r *SubmissionRepository) Reject(ctx context.Context, id, feedback string) (groupID string, err error) {
	const query = `UPDATE submissions
        SET status = $2,
            notes = CASE WHEN notes = '' THEN $3 ELSE notes || ' | ' || $3 END
        WHERE id = $1 AND status = $4
        RETURNING group_id`
	if err := r.db.GetContext(ctx, &groupID, query, id, models.SubmissionStatusRejected, feedback, models.SubmissionStatusPending); err != nil {
		if err == sql.ErrNoRows {
			return "", ErrNotPending
		}
		return "", fmt.Errorf("reject submission: %w", err)
	}
	return groupID, nil
}

// nextStreak applies the streak continuation rule. A gap of exactly one day
// extends the streak, a same-day repeat leaves it unchanged, anything else
// starts over at 1.
func nextStreak(current int, last *time.Time, today time.Time) int {
	if last == nil {
		return 1
	}
	lastDay := truncateToDay(*last)
	switch {
	case lastDay.Equal(today.AddDate(0, 0, -1)):
		return current + 1
	case lastDay.Equal(today):
		if current < 1 {
			return 1
		}
		return current
	default:
		return 1
	}
}

func truncateToDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
