package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/kelas-bersih-api/internal/models"
)

func newGroupRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
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

func TestGroupRepositoryCreateSeedsPointsRow(t *testing.T) {
	db, mock, cleanup := newGroupRepoMock(t)
	defer cleanup()
	repo := NewGroupRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO groups`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO group_points`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	group := &models.Group{ClassID: "class-1", Name: "Garuda"}
	require.NoError(t, repo.Create(context.Background(), group))
	assert.NotEmpty(t, group.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGroupRepositoryTransfer(t *testing.T) {
	db, mock, cleanup := newGroupRepoMock(t)
	defer cleanup()
	repo := NewGroupRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM group_members WHERE class_id = $1 AND student_id = $2`)).
		WithArgs("class-1", "student-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO group_members`)).
		WithArgs(sqlmock.AnyArg(), "group-2", "class-1", "student-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Transfer(context.Background(), "student-1", "group-2", "class-1")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGroupRepositoryTransferRollsBackOnInsertFailure(t *testing.T) {
	db, mock, cleanup := newGroupRepoMock(t)
	defer cleanup()
	repo := NewGroupRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM group_members WHERE class_id = $1 AND student_id = $2`)).
		WithArgs("class-1", "student-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO group_members`)).
		WillReturnError(errors.New("constraint violation"))
	mock.ExpectRollback()

	err := repo.Transfer(context.Background(), "student-1", "group-2", "class-1")
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGroupRepositoryAddMember(t *testing.T) {
	db, mock, cleanup := newGroupRepoMock(t)
	defer cleanup()
	repo := NewGroupRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO group_members`)).
		WithArgs(sqlmock.AnyArg(), "group-1", "class-1", "student-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	membership := &models.GroupMembership{GroupID: "group-1", ClassID: "class-1", StudentID: "student-1"}
	require.NoError(t, repo.AddMember(context.Background(), membership))
	assert.NotEmpty(t, membership.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGroupRepositoryAddMemberLosesClassUniqueRace(t *testing.T) {
	db, mock, cleanup := newGroupRepoMock(t)
	defer cleanup()
	repo := NewGroupRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO group_members`)).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "group_members_class_id_student_id_key"})

	membership := &models.GroupMembership{GroupID: "group-2", ClassID: "class-1", StudentID: "student-1"}
	err := repo.AddMember(context.Background(), membership)
	assert.ErrorIs(t, err, ErrMembershipExists)
}

func TestGroupRepositoryFindMembershipInClass(t *testing.T) {
	db, mock, cleanup := newGroupRepoMock(t)
	defer cleanup()
	repo := NewGroupRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT g.id, g.class_id, g.name, g.created_at`)).
		WithArgs("student-1", "class-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "class_id", "name"}).AddRow("group-1", "class-1", "Garuda"))

	group, err := repo.FindMembershipInClass(context.Background(), "student-1", "class-1")
	require.NoError(t, err)
	assert.Equal(t, "group-1", group.ID)
}

func TestGroupRepositoryRemoveMemberMissing(t *testing.T) {
	db, mock, cleanup := newGroupRepoMock(t)
	defer cleanup()
	repo := NewGroupRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM group_members WHERE group_id = $1 AND student_id = $2`)).
		WithArgs("group-1", "student-9").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.RemoveMember(context.Background(), "group-1", "student-9")
	require.Error(t, err)
}
