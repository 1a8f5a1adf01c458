package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/kelas-bersih-api/internal/models"
	"github.com/noah-isme/kelas-bersih-api/internal/repository"
	appErrors "github.com/noah-isme/kelas-bersih-api/pkg/errors"
)

type stubSubmissionStore struct {
	existsPending bool
	existsErr     error
	createErr     error
	created       *models.Submission
	detail        *models.SubmissionDetail
	detailErr     error
	listCalls     int
	listFilter    models.SubmissionFilter
}

func (s *stubSubmissionStore) ExistsPending(_ context.Context, _, _ string) (bool, error) {
	return s.existsPending, s.existsErr
}

func (s *stubSubmissionStore) Create(_ context.Context, submission *models.Submission) error {
	if s.createErr != nil {
		return s.createErr
	}
	submission.ID = "sub-1"
	s.created = submission
	return nil
}

func (s *stubSubmissionStore) FindByID(_ context.Context, _ string) (*models.Submission, error) {
	return nil, sql.ErrNoRows
}

func (s *stubSubmissionStore) FindDetailByID(_ context.Context, _ string) (*models.SubmissionDetail, error) {
	return s.detail, s.detailErr
}

func (s *stubSubmissionStore) List(_ context.Context, filter models.SubmissionFilter) ([]models.SubmissionDetail, int, error) {
	s.listCalls++
	s.listFilter = filter
	return nil, 0, nil
}

type stubTaskFinder struct {
	task *models.Task
	err  error
}

func (s *stubTaskFinder) FindByID(_ context.Context, _ string) (*models.Task, error) {
	return s.task, s.err
}

type stubMembershipResolver struct {
	group *models.Group
	err   error
	byID  *models.Group
}

func (s *stubMembershipResolver) FindByID(_ context.Context, _ string) (*models.Group, error) {
	if s.byID == nil {
		return nil, sql.ErrNoRows
	}
	return s.byID, nil
}

func (s *stubMembershipResolver) FindMembershipInClass(_ context.Context, _, _ string) (*models.Group, error) {
	return s.group, s.err
}

type stubClassFinder struct {
	class *models.Class
	err   error
}

func (s *stubClassFinder) FindByID(_ context.Context, _ string) (*models.Class, error) {
	return s.class, s.err
}

type stubPhotoStorage struct {
	savedPath   string
	saveErr     error
	deletedPath string
}

func (s *stubPhotoStorage) SaveStream(filename string, _ io.Reader) (string, error) {
	if s.saveErr != nil {
		return "", s.saveErr
	}
	s.savedPath = filename
	return filename, nil
}

func (s *stubPhotoStorage) Open(_ string) (*os.File, error) {
	return nil, errors.New("not implemented")
}

func (s *stubPhotoStorage) Delete(filename string) error {
	s.deletedPath = filename
	return nil
}

type stubURLSigner struct{}

func (stubURLSigner) Generate(id, relPath string) (string, time.Time, error) {
	return "signed-token", time.Now().Add(5 * time.Minute), nil
}

func (stubURLSigner) Parse(_ string, _ bool) (string, string, time.Time, error) {
	return "sub-1", "photos/sub_1.png", time.Now().Add(5 * time.Minute), nil
}

var pngUpload = func() PhotoUpload {
	content := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 64)...)
	return PhotoUpload{Filename: "proof.png", Size: int64(len(content)), Content: bytes.NewReader(content)}
}

func newSubmissionServiceForTest(repo *stubSubmissionStore, tasks *stubTaskFinder, groups *stubMembershipResolver, storage *stubPhotoStorage) *SubmissionService {
	return NewSubmissionService(repo, tasks, groups, &stubClassFinder{}, storage, stubURLSigner{}, zap.NewNop(), SubmissionServiceConfig{})
}

func studentClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "student-1", Role: models.RoleStudent}
}

func TestSubmissionServiceSubmit(t *testing.T) {
	repo := &stubSubmissionStore{}
	tasks := &stubTaskFinder{task: &models.Task{ID: "task-1", ClassID: "class-1", Points: 50}}
	groups := &stubMembershipResolver{group: &models.Group{ID: "group-1", ClassID: "class-1"}}
	storage := &stubPhotoStorage{}
	svc := newSubmissionServiceForTest(repo, tasks, groups, storage)

	submission, err := svc.Submit(context.Background(), studentClaims(), "task-1", "done", pngUpload())
	require.NoError(t, err)
	assert.Equal(t, "sub-1", submission.ID)
	assert.Equal(t, "group-1", submission.GroupID)
	assert.Equal(t, models.SubmissionStatusPending, submission.Status)
	assert.NotEmpty(t, storage.savedPath)
	assert.Empty(t, storage.deletedPath)
}

func TestSubmissionServiceSubmitNoGroup(t *testing.T) {
	repo := &stubSubmissionStore{}
	tasks := &stubTaskFinder{task: &models.Task{ID: "task-1", ClassID: "class-1"}}
	groups := &stubMembershipResolver{err: sql.ErrNoRows}
	svc := newSubmissionServiceForTest(repo, tasks, groups, &stubPhotoStorage{})

	_, err := svc.Submit(context.Background(), studentClaims(), "task-1", "", pngUpload())
	assert.ErrorIs(t, err, appErrors.ErrNoActiveGroup)
}

func TestSubmissionServiceSubmitDuplicatePending(t *testing.T) {
	repo := &stubSubmissionStore{existsPending: true}
	tasks := &stubTaskFinder{task: &models.Task{ID: "task-1", ClassID: "class-1"}}
	groups := &stubMembershipResolver{group: &models.Group{ID: "group-1"}}
	svc := newSubmissionServiceForTest(repo, tasks, groups, &stubPhotoStorage{})

	_, err := svc.Submit(context.Background(), studentClaims(), "task-1", "", pngUpload())
	assert.ErrorIs(t, err, appErrors.ErrDuplicatePending)
}

func TestSubmissionServiceSubmitRaceLostRemovesPhoto(t *testing.T) {
	repo := &stubSubmissionStore{createErr: repository.ErrPendingExists}
	tasks := &stubTaskFinder{task: &models.Task{ID: "task-1", ClassID: "class-1"}}
	groups := &stubMembershipResolver{group: &models.Group{ID: "group-1"}}
	storage := &stubPhotoStorage{}
	svc := newSubmissionServiceForTest(repo, tasks, groups, storage)

	_, err := svc.Submit(context.Background(), studentClaims(), "task-1", "", pngUpload())
	assert.ErrorIs(t, err, appErrors.ErrRaceLost)
	assert.Equal(t, storage.savedPath, storage.deletedPath)
}

func TestSubmissionServiceSubmitImageTooLarge(t *testing.T) {
	tasks := &stubTaskFinder{task: &models.Task{ID: "task-1", ClassID: "class-1"}}
	groups := &stubMembershipResolver{group: &models.Group{ID: "group-1"}}
	svc := newSubmissionServiceForTest(&stubSubmissionStore{}, tasks, groups, &stubPhotoStorage{})

	upload := pngUpload()
	upload.Size = 6 * 1024 * 1024
	_, err := svc.Submit(context.Background(), studentClaims(), "task-1", "", upload)
	assert.ErrorIs(t, err, appErrors.ErrImageTooLarge)
}

func TestSubmissionServiceSubmitRejectsNonImage(t *testing.T) {
	tasks := &stubTaskFinder{task: &models.Task{ID: "task-1", ClassID: "class-1"}}
	groups := &stubMembershipResolver{group: &models.Group{ID: "group-1"}}
	svc := newSubmissionServiceForTest(&stubSubmissionStore{}, tasks, groups, &stubPhotoStorage{})

	content := []byte("definitely not an image, just plain text content here")
	upload := PhotoUpload{Filename: "proof.png", Size: int64(len(content)), Content: bytes.NewReader(content)}
	_, err := svc.Submit(context.Background(), studentClaims(), "task-1", "", upload)
	assert.ErrorIs(t, err, appErrors.ErrInvalidImage)
}

func TestSubmissionServiceSubmitTaskNotFound(t *testing.T) {
	tasks := &stubTaskFinder{err: sql.ErrNoRows}
	svc := newSubmissionServiceForTest(&stubSubmissionStore{}, tasks, &stubMembershipResolver{}, &stubPhotoStorage{})

	_, err := svc.Submit(context.Background(), studentClaims(), "missing", "", pngUpload())
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestSubmissionServiceListRequiresScope(t *testing.T) {
	svc := newSubmissionServiceForTest(&stubSubmissionStore{}, &stubTaskFinder{}, &stubMembershipResolver{}, &stubPhotoStorage{})

	_, _, err := svc.List(context.Background(), &models.JWTClaims{Role: models.RoleAdmin}, models.SubmissionFilter{})
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestSubmissionServiceListForeignClassForbidden(t *testing.T) {
	classes := &stubClassFinder{class: &models.Class{ID: "class-1", TeacherID: "teacher-other"}}
	svc := NewSubmissionService(&stubSubmissionStore{}, &stubTaskFinder{}, &stubMembershipResolver{}, classes, &stubPhotoStorage{}, stubURLSigner{}, zap.NewNop(), SubmissionServiceConfig{})

	claims := &models.JWTClaims{UserID: "teacher-1", Role: models.RoleTeacher}
	_, _, err := svc.List(context.Background(), claims, models.SubmissionFilter{ClassID: "class-1"})
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestSubmissionServiceListTeacherForeignGroupForbidden(t *testing.T) {
	repo := &stubSubmissionStore{}
	groups := &stubMembershipResolver{byID: &models.Group{ID: "group-9", ClassID: "class-1"}}
	classes := &stubClassFinder{class: &models.Class{ID: "class-1", TeacherID: "teacher-other"}}
	svc := NewSubmissionService(repo, &stubTaskFinder{}, groups, classes, &stubPhotoStorage{}, stubURLSigner{}, zap.NewNop(), SubmissionServiceConfig{})

	claims := &models.JWTClaims{UserID: "teacher-1", Role: models.RoleTeacher}
	_, _, err := svc.List(context.Background(), claims, models.SubmissionFilter{GroupID: "group-9"})
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
	assert.Zero(t, repo.listCalls)
}

func TestSubmissionServiceListStudentForeignGroupForbidden(t *testing.T) {
	repo := &stubSubmissionStore{}
	groups := &stubMembershipResolver{
		byID: &models.Group{ID: "foreign-group", ClassID: "class-1"},
		err:  sql.ErrNoRows,
	}
	svc := newSubmissionServiceForTest(repo, &stubTaskFinder{}, groups, &stubPhotoStorage{})

	_, _, err := svc.List(context.Background(), studentClaims(), models.SubmissionFilter{GroupID: "foreign-group"})
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
	assert.Zero(t, repo.listCalls)
}

func TestSubmissionServiceListStudentOtherGroupForbidden(t *testing.T) {
	repo := &stubSubmissionStore{}
	groups := &stubMembershipResolver{
		byID:  &models.Group{ID: "group-2", ClassID: "class-1"},
		group: &models.Group{ID: "group-1", ClassID: "class-1"},
	}
	svc := newSubmissionServiceForTest(repo, &stubTaskFinder{}, groups, &stubPhotoStorage{})

	_, _, err := svc.List(context.Background(), studentClaims(), models.SubmissionFilter{GroupID: "group-2"})
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
	assert.Zero(t, repo.listCalls)
}

func TestSubmissionServiceListStudentConfinedToOwnGroup(t *testing.T) {
	repo := &stubSubmissionStore{}
	groups := &stubMembershipResolver{group: &models.Group{ID: "group-1", ClassID: "class-1"}}
	svc := newSubmissionServiceForTest(repo, &stubTaskFinder{}, groups, &stubPhotoStorage{})

	_, _, err := svc.List(context.Background(), studentClaims(), models.SubmissionFilter{ClassID: "class-1"})
	require.NoError(t, err)
	require.Equal(t, 1, repo.listCalls)
	assert.Equal(t, "group-1", repo.listFilter.GroupID)
}
