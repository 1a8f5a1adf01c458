package repository

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBadgeRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
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

func TestBadgeRepositoryAward(t *testing.T) {
	db, mock, cleanup := newBadgeRepoMock(t)
	defer cleanup()
	repo := NewBadgeRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO group_badges`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("award-1"))

	award, err := repo.Award(context.Background(), "group-1", "badge-1")
	require.NoError(t, err)
	assert.Equal(t, "group-1", award.GroupID)
	assert.Equal(t, "badge-1", award.BadgeID)
}

func TestBadgeRepositoryAwardIdempotent(t *testing.T) {
	db, mock, cleanup := newBadgeRepoMock(t)
	defer cleanup()
	repo := NewBadgeRepository(db)

	// ON CONFLICT DO NOTHING inserts no row, so RETURNING yields nothing.
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO group_badges`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.Award(context.Background(), "group-1", "badge-1")
	assert.ErrorIs(t, err, ErrBadgeAlreadyAwarded)
}

func TestBadgeRepositoryListByGroup(t *testing.T) {
	db, mock, cleanup := newBadgeRepoMock(t)
	defer cleanup()
	repo := NewBadgeRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT gb.id, gb.group_id, gb.badge_id, gb.awarded_at`)).
		WithArgs("group-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "group_id", "badge_id", "badge_name", "badge_icon"}).
			AddRow("award-1", "group-1", "badge-1", "Clean Sweep", "broom"))

	awards, err := repo.ListByGroup(context.Background(), "group-1")
	require.NoError(t, err)
	require.Len(t, awards, 1)
	assert.Equal(t, "Clean Sweep", awards[0].BadgeName)
}
