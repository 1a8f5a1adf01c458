package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/kelas-bersih-api/internal/models"
)

func newSubmissionRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	cleanup := func() {
		_ = sqlxDB.Close()
		db.Close()
	}
	return sqlxDB, mock, cleanup
}

func TestSubmissionRepositoryExistsPending(t *testing.T) {
	db, mock, cleanup := newSubmissionRepoMock(t)
	defer cleanup()
	repo := NewSubmissionRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT 1 FROM submissions WHERE task_id = $1 AND group_id = $2 AND status = $3 LIMIT 1`)).
		WithArgs("task-1", "group-1", models.SubmissionStatusPending).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	exists, err := repo.ExistsPending(context.Background(), "task-1", "group-1")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestSubmissionRepositoryExistsPendingNone(t *testing.T) {
	db, mock, cleanup := newSubmissionRepoMock(t)
	defer cleanup()
	repo := NewSubmissionRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT 1 FROM submissions`)).
		WithArgs("task-1", "group-1", models.SubmissionStatusPending).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))

	exists, err := repo.ExistsPending(context.Background(), "task-1", "group-1")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestSubmissionRepositoryCreateRaceLost(t *testing.T) {
	db, mock, cleanup := newSubmissionRepoMock(t)
	defer cleanup()
	repo := NewSubmissionRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO submissions`)).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "uq_submissions_pending"})

	err := repo.Create(context.Background(), &models.Submission{
		TaskID:    "task-1",
		GroupID:   "group-1",
		StudentID: "student-1",
		ImagePath: "photos/sub_1.jpg",
	})
	assert.ErrorIs(t, err, ErrPendingExists)
}

func TestSubmissionRepositoryApproveCreditsAndExtendsStreak(t *testing.T) {
	db, mock, cleanup := newSubmissionRepoMock(t)
	defer cleanup()
	repo := NewSubmissionRepository(db)

	decidedAt := time.Date(2024, 5, 11, 9, 30, 0, 0, time.UTC)
	lastDay := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	today := time.Date(2024, 5, 11, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE submissions SET status = $2, approved_at = $3`)).
		WithArgs("sub-1", models.SubmissionStatusApproved, decidedAt, models.SubmissionStatusPending).
		WillReturnRows(sqlmock.NewRows([]string{"task_id", "group_id"}).AddRow("task-1", "group-1"))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT points FROM tasks WHERE id = $1`)).
		WithArgs("task-1").
		WillReturnRows(sqlmock.NewRows([]string{"points"}).AddRow(50))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT group_id, total_points, streak, last_submission_date, updated_at`)).
		WithArgs("group-1").
		WillReturnRows(sqlmock.NewRows([]string{"group_id", "total_points", "streak", "last_submission_date", "updated_at"}).
			AddRow("group-1", 120, 2, lastDay, decidedAt.Add(-24*time.Hour)))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE group_points`)).
		WithArgs("group-1", 170, 3, today, decidedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	points, err := repo.Approve(context.Background(), "sub-1", decidedAt)
	require.NoError(t, err)
	assert.Equal(t, 170, points.TotalPoints)
	assert.Equal(t, 3, points.Streak)
	require.NotNil(t, points.LastSubmissionDate)
	assert.True(t, points.LastSubmissionDate.Equal(today))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositoryApproveSameDayKeepsStreak(t *testing.T) {
	db, mock, cleanup := newSubmissionRepoMock(t)
	defer cleanup()
	repo := NewSubmissionRepository(db)

	decidedAt := time.Date(2024, 5, 11, 15, 0, 0, 0, time.UTC)
	today := time.Date(2024, 5, 11, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE submissions SET status = $2, approved_at = $3`)).
		WithArgs("sub-2", models.SubmissionStatusApproved, decidedAt, models.SubmissionStatusPending).
		WillReturnRows(sqlmock.NewRows([]string{"task_id", "group_id"}).AddRow("task-2", "group-1"))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT points FROM tasks WHERE id = $1`)).
		WithArgs("task-2").
		WillReturnRows(sqlmock.NewRows([]string{"points"}).AddRow(50))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT group_id, total_points, streak, last_submission_date, updated_at`)).
		WithArgs("group-1").
		WillReturnRows(sqlmock.NewRows([]string{"group_id", "total_points", "streak", "last_submission_date", "updated_at"}).
			AddRow("group-1", 170, 3, today, decidedAt))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE group_points`)).
		WithArgs("group-1", 220, 3, today, decidedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	points, err := repo.Approve(context.Background(), "sub-2", decidedAt)
	require.NoError(t, err)
	assert.Equal(t, 220, points.TotalPoints)
	assert.Equal(t, 3, points.Streak)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositoryApproveGapResetsStreak(t *testing.T) {
	db, mock, cleanup := newSubmissionRepoMock(t)
	defer cleanup()
	repo := NewSubmissionRepository(db)

	decidedAt := time.Date(2024, 5, 14, 8, 0, 0, 0, time.UTC)
	lastDay := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	today := time.Date(2024, 5, 14, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE submissions SET status = $2, approved_at = $3`)).
		WillReturnRows(sqlmock.NewRows([]string{"task_id", "group_id"}).AddRow("task-1", "group-1"))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT points FROM tasks WHERE id = $1`)).
		WillReturnRows(sqlmock.NewRows([]string{"points"}).AddRow(30))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT group_id, total_points, streak, last_submission_date, updated_at`)).
		WillReturnRows(sqlmock.NewRows([]string{"group_id", "total_points", "streak", "last_submission_date", "updated_at"}).
			AddRow("group-1", 200, 5, lastDay, decidedAt))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE group_points`)).
		WithArgs("group-1", 230, 1, today, decidedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	points, err := repo.Approve(context.Background(), "sub-3", decidedAt)
	require.NoError(t, err)
	assert.Equal(t, 1, points.Streak)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositoryApproveAlreadyDecided(t *testing.T) {
	db, mock, cleanup := newSubmissionRepoMock(t)
	defer cleanup()
	repo := NewSubmissionRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE submissions SET status = $2, approved_at = $3`)).
		WillReturnRows(sqlmock.NewRows([]string{"task_id", "group_id"}))
	mock.ExpectRollback()

	_, err := repo.Approve(context.Background(), "sub-1", time.Now().UTC())
	assert.ErrorIs(t, err, ErrNotPending)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositoryReject(t *testing.T) {
	db, mock, cleanup := newSubmissionRepoMock(t)
	defer cleanup()
	repo := NewSubmissionRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE submissions`)).
		WithArgs("sub-1", models.SubmissionStatusRejected, "blurry photo", models.SubmissionStatusPending).
		WillReturnRows(sqlmock.NewRows([]string{"group_id"}).AddRow("group-1"))

	groupID, err := repo.Reject(context.Background(), "sub-1", "blurry photo")
	require.NoError(t, err)
	assert.Equal(t, "group-1", groupID)
}

func TestSubmissionRepositoryRejectAlreadyDecided(t *testing.T) {
	db, mock, cleanup := newSubmissionRepoMock(t)
	defer cleanup()
	repo := NewSubmissionRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE submissions`)).
		WillReturnRows(sqlmock.NewRows([]string{"group_id"}))

	_, err := repo.Reject(context.Background(), "sub-1", "nope")
	assert.ErrorIs(t, err, ErrNotPending)
}

func TestNextStreak(t *testing.T) {
	today := time.Date(2024, 5, 11, 0, 0, 0, 0, time.UTC)
	yesterday := today.AddDate(0, 0, -1)
	lastWeek := today.AddDate(0, 0, -7)

	assert.Equal(t, 1, nextStreak(0, nil, today))
	assert.Equal(t, 3, nextStreak(2, &yesterday, today))
	assert.Equal(t, 2, nextStreak(2, &today, today))
	assert.Equal(t, 1, nextStreak(0, &today, today))
	assert.Equal(t, 1, nextStreak(5, &lastWeek, today))
}
