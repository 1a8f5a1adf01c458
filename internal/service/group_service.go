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

type groupRepository interface {
	Create(ctx context.Context, group *models.Group) error
	FindByID(ctx context.Context, id string) (*models.Group, error)
	ListByClass(ctx context.Context, classID string) ([]models.GroupDetail, error)
	ListMembers(ctx context.Context, groupID string) ([]models.GroupMemberDetail, error)
	FindMembershipInClass(ctx context.Context, studentID, classID string) (*models.Group, error)
	AddMember(ctx context.Context, membership *models.GroupMembership) error
	RemoveMember(ctx context.Context, groupID, studentID string) error
	Transfer(ctx context.Context, studentID, targetGroupID, classID string) error
}

type groupClassRepository interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
}

type groupUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// CreateGroupRequest is the payload for creating a group inside a class.
type CreateGroupRequest struct {
	Name string `json:"name" validate:"required,min=2,max=50"`
}

// MemberRequest targets one student.
type MemberRequest struct {
	StudentID string `json:"student_id" validate:"required,uuid4"`
}

// GroupService manages groups and the one-group-per-class membership policy.
type GroupService struct {
	groups    groupRepository
	classes   groupClassRepository
	users     groupUserRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewGroupService constructs a GroupService.
func NewGroupService(groups groupRepository, classes groupClassRepository, users groupUserRepository, validate *validator.Validate, logger *zap.Logger) *GroupService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &GroupService{groups: groups, classes: classes, users: users, validator: validate, logger: logger}
}

// Create adds a group to a class owned by the calling teacher.
func (s *GroupService) Create(ctx context.Context, claims *models.JWTClaims, classID string, req CreateGroupRequest) (*models.Group, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid group payload")
	}
	if _, err := s.authorizeClass(ctx, claims, classID); err != nil {
		return nil, err
	}

	group := &models.Group{ClassID: classID, Name: req.Name}
	if err := s.groups.Create(ctx, group); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create group")
	}
	return group, nil
}

// ListByClass returns the groups of a class with score aggregates.
func (s *GroupService) ListByClass(ctx context.Context, claims *models.JWTClaims, classID string) ([]models.GroupDetail, error) {
	if _, err := s.authorizeClass(ctx, claims, classID); err != nil {
		return nil, err
	}
	groups, err := s.groups.ListByClass(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list groups")
	}
	return groups, nil
}

// ListMembers returns the members of a group.
func (s *GroupService) ListMembers(ctx context.Context, claims *models.JWTClaims, groupID string) ([]models.GroupMemberDetail, error) {
	group, err := s.findGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if _, err := s.authorizeClass(ctx, claims, group.ClassID); err != nil {
		return nil, err
	}
	members, err := s.groups.ListMembers(ctx, groupID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list members")
	}
	return members, nil
}

// AddMember places a student in a group. It fails when the student already
// belongs to any group in the same class; moving students between groups is
// the transfer operation's job.
func (s *GroupService) AddMember(ctx context.Context, claims *models.JWTClaims, groupID string, req MemberRequest) (*models.GroupMembership, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid member payload")
	}
	group, err := s.findGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if _, err := s.authorizeClass(ctx, claims, group.ClassID); err != nil {
		return nil, err
	}
	if err := s.requireStudent(ctx, req.StudentID); err != nil {
		return nil, err
	}

	// Fast-path duplicate check; the (class_id, student_id) constraint still
	// backs this up under concurrency.
	if _, err := s.groups.FindMembershipInClass(ctx, req.StudentID, group.ClassID); err == nil {
		return nil, appErrors.ErrAlreadyInGroup
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check membership")
	}

	membership := &models.GroupMembership{GroupID: groupID, ClassID: group.ClassID, StudentID: req.StudentID}
	if err := s.groups.AddMember(ctx, membership); err != nil {
		if errors.Is(err, repository.ErrMembershipExists) {
			return nil, appErrors.ErrAlreadyInGroup
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add member")
	}
	return membership, nil
}

// Transfer moves a student into the target group, atomically replacing any
// membership they hold elsewhere in the same class.
func (s *GroupService) Transfer(ctx context.Context, claims *models.JWTClaims, targetGroupID string, req MemberRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid transfer payload")
	}
	group, err := s.findGroup(ctx, targetGroupID)
	if err != nil {
		return err
	}
	if _, err := s.authorizeClass(ctx, claims, group.ClassID); err != nil {
		return err
	}
	if err := s.requireStudent(ctx, req.StudentID); err != nil {
		return err
	}

	if err := s.groups.Transfer(ctx, req.StudentID, targetGroupID, group.ClassID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to transfer member")
	}

	s.logger.Info("student transferred",
		zap.String("student_id", req.StudentID),
		zap.String("group_id", targetGroupID))
	return nil
}

// RemoveMember deletes a membership.
func (s *GroupService) RemoveMember(ctx context.Context, claims *models.JWTClaims, groupID, studentID string) error {
	group, err := s.findGroup(ctx, groupID)
	if err != nil {
		return err
	}
	if _, err := s.authorizeClass(ctx, claims, group.ClassID); err != nil {
		return err
	}
	if err := s.groups.RemoveMember(ctx, groupID, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "membership not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove member")
	}
	return nil
}

func (s *GroupService) findGroup(ctx context.Context, groupID string) (*models.Group, error) {
	group, err := s.groups.FindByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "group not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group")
	}
	return group, nil
}

// authorizeClass restricts mutating group operations to the owning teacher.
// Admins pass through.
func (s *GroupService) authorizeClass(ctx context.Context, claims *models.JWTClaims, classID string) (*models.Class, error) {
	class, err := s.classes.FindByID(ctx, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	if claims.Role == models.RoleTeacher && class.TeacherID != claims.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "class belongs to another teacher")
	}
	return class, nil
}

func (s *GroupService) requireStudent(ctx context.Context, studentID string) error {
	user, err := s.users.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if user.Role != models.RoleStudent {
		return appErrors.Clone(appErrors.ErrValidation, "target user is not a student")
	}
	return nil
}
