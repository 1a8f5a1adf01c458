package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/kelas-bersih-api/internal/models"
	"github.com/noah-isme/kelas-bersih-api/internal/repository"
	appErrors "github.com/noah-isme/kelas-bersih-api/pkg/errors"
)

type stubBadgeRepo struct {
	catalog  []models.Badge
	badge    *models.Badge
	awardErr error
	award    *models.GroupBadge
	byGroup  []models.GroupBadgeDetail
}

func (s *stubBadgeRepo) ListCatalog(_ context.Context) ([]models.Badge, error) {
	return s.catalog, nil
}

func (s *stubBadgeRepo) FindByID(_ context.Context, _ string) (*models.Badge, error) {
	if s.badge == nil {
		return nil, sql.ErrNoRows
	}
	return s.badge, nil
}

func (s *stubBadgeRepo) Award(_ context.Context, groupID, badgeID string) (*models.GroupBadge, error) {
	if s.awardErr != nil {
		return nil, s.awardErr
	}
	s.award = &models.GroupBadge{ID: "award-1", GroupID: groupID, BadgeID: badgeID}
	return s.award, nil
}

func (s *stubBadgeRepo) ListByGroup(_ context.Context, _ string) ([]models.GroupBadgeDetail, error) {
	return s.byGroup, nil
}

type stubGroupFinder struct {
	group *models.Group
}

func (s *stubGroupFinder) FindByID(_ context.Context, _ string) (*models.Group, error) {
	if s.group == nil {
		return nil, sql.ErrNoRows
	}
	return s.group, nil
}

func newBadgeServiceForTest(badges *stubBadgeRepo, group *models.Group, teacherID string) *BadgeService {
	groups := &stubGroupFinder{group: group}
	classes := &stubClassFinder{class: &models.Class{ID: "class-1", TeacherID: teacherID}}
	return NewBadgeService(badges, groups, classes, nil, zap.NewNop())
}

func TestBadgeServiceAward(t *testing.T) {
	badges := &stubBadgeRepo{badge: &models.Badge{ID: "badge-1", Name: "Clean Sweep"}}
	svc := newBadgeServiceForTest(badges, &models.Group{ID: "group-1", ClassID: "class-1"}, "teacher-1")

	award, err := svc.Award(context.Background(), teacherClaims(), "group-1", AwardBadgeRequest{BadgeID: "badge-1"})
	require.NoError(t, err)
	assert.Equal(t, "group-1", award.GroupID)
	assert.Equal(t, "badge-1", award.BadgeID)
}

func TestBadgeServiceAwardDuplicate(t *testing.T) {
	badges := &stubBadgeRepo{
		badge:    &models.Badge{ID: "badge-1"},
		awardErr: repository.ErrBadgeAlreadyAwarded,
	}
	svc := newBadgeServiceForTest(badges, &models.Group{ID: "group-1", ClassID: "class-1"}, "teacher-1")

	_, err := svc.Award(context.Background(), teacherClaims(), "group-1", AwardBadgeRequest{BadgeID: "badge-1"})
	assert.ErrorIs(t, err, appErrors.ErrAlreadyAwarded)
}

func TestBadgeServiceAwardForeignClassForbidden(t *testing.T) {
	badges := &stubBadgeRepo{badge: &models.Badge{ID: "badge-1"}}
	svc := newBadgeServiceForTest(badges, &models.Group{ID: "group-1", ClassID: "class-1"}, "teacher-other")

	_, err := svc.Award(context.Background(), teacherClaims(), "group-1", AwardBadgeRequest{BadgeID: "badge-1"})
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestBadgeServiceAwardUnknownGroup(t *testing.T) {
	badges := &stubBadgeRepo{badge: &models.Badge{ID: "badge-1"}}
	svc := newBadgeServiceForTest(badges, nil, "teacher-1")

	_, err := svc.Award(context.Background(), teacherClaims(), "group-9", AwardBadgeRequest{BadgeID: "badge-1"})
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestBadgeServiceAwardUnknownBadge(t *testing.T) {
	badges := &stubBadgeRepo{}
	svc := newBadgeServiceForTest(badges, &models.Group{ID: "group-1", ClassID: "class-1"}, "teacher-1")

	_, err := svc.Award(context.Background(), teacherClaims(), "group-1", AwardBadgeRequest{BadgeID: "badge-9"})
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}
