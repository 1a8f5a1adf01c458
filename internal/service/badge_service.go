package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/kelas-bersih-api/internal/models"
	"github.com/noah-isme/kelas-bersih-api/internal/repository"
	appErrors "github.com/noah-isme/kelas-bersih-api/pkg/errors"
)

type badgeRepository interface {
	ListCatalog(ctx context.Context) ([]models.Badge, error)
	FindByID(ctx context.Context, id string) (*models.Badge, error)
	Award(ctx context.Context, groupID, badgeID string) (*models.GroupBadge, error)
	ListByGroup(ctx context.Context, groupID string) ([]models.GroupBadgeDetail, error)
}

type badgeGroupFinder interface {
	FindByID(ctx context.Context, id string) (*models.Group, error)
}

// AwardBadgeRequest grants one badge to one group.
type AwardBadgeRequest struct {
	BadgeID string `json:"badge_id" validate:"required"`
}

// BadgeService manages the badge catalog and group awards.
type BadgeService struct {
	badges    badgeRepository
	groups    badgeGroupFinder
	classes   submissionClassFinder
	validator *validator.Validate
	logger    *zap.Logger
}

// NewBadgeService constructs a BadgeService.
func NewBadgeService(badges badgeRepository, groups badgeGroupFinder, classes submissionClassFinder, validate *validator.Validate, logger *zap.Logger) *BadgeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &BadgeService{badges: badges, groups: groups, classes: classes, validator: validate, logger: logger}
}

// Catalog returns every defined badge.
func (s *BadgeService) Catalog(ctx context.Context) ([]models.Badge, error) {
	badges, err := s.badges.ListCatalog(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list badges")
	}
	return badges, nil
}

// Award grants a badge to a group. Awarding the same badge twice fails with
// a conflict; the original award is untouched.
func (s *BadgeService) Award(ctx context.Context, claims *models.JWTClaims, groupID string, req AwardBadgeRequest) (*models.GroupBadge, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid award payload")
	}

	group, err := s.groups.FindByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "group not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group")
	}

	if claims.Role == models.RoleTeacher {
		class, err := s.classes.FindByID(ctx, group.ClassID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
		}
		if class.TeacherID != claims.UserID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "group belongs to another teacher's class")
		}
	}

	if _, err := s.badges.FindByID(ctx, req.BadgeID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "badge not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load badge")
	}

	award, err := s.badges.Award(ctx, groupID, req.BadgeID)
	if err != nil {
		if errors.Is(err, repository.ErrBadgeAlreadyAwarded) {
			return nil, appErrors.ErrAlreadyAwarded
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to award badge")
	}

	s.logger.Info("badge awarded",
		zap.String("group_id", groupID),
		zap.String("badge_id", req.BadgeID))
	return award, nil
}

// ListByGroup returns the badges a group has earned.
func (s *BadgeService) ListByGroup(ctx context.Context, groupID string) ([]models.GroupBadgeDetail, error) {
	if _, err := s.groups.FindByID(ctx, groupID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "group not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group")
	}
	awards, err := s.badges.ListByGroup(ctx, groupID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list group badges")
	}
	return awards, nil
}
