package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/kelas-bersih-api/internal/models"
	"github.com/noah-isme/kelas-bersih-api/internal/repository"
	appErrors "github.com/noah-isme/kelas-bersih-api/pkg/errors"
)

type classRepository interface {
	Create(ctx context.Context, class *models.Class) error
	FindByID(ctx context.Context, id string) (*models.Class, error)
	FindByJoinCode(ctx context.Context, code string) (*models.Class, error)
	JoinCodeExists(ctx context.Context, code string) (bool, error)
	ListByTeacher(ctx context.Context, teacherID string) ([]models.ClassDetail, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.ClassDetail, error)
}

type classGroupRepository interface {
	Create(ctx context.Context, group *models.Group) error
	FindByClassAndName(ctx context.Context, classID, name string) (*models.Group, error)
	FindMembershipInClass(ctx context.Context, studentID, classID string) (*models.Group, error)
	AddMember(ctx context.Context, membership *models.GroupMembership) error
}

// CreateClassRequest is the payload for creating a class.
type CreateClassRequest struct {
	Name string `json:"name" validate:"required,min=2,max=100"`
}

// JoinClassRequest enrolls a student via join code.
type JoinClassRequest struct {
	JoinCode  string `json:"join_code" validate:"required,len=6"`
	GroupName string `json:"group_name" validate:"required,min=2,max=50"`
}

// Letters that survive handwriting on a whiteboard: no 0/O, 1/I confusion.
const joinCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const joinCodeLength = 6

// ClassService manages classes and the join-by-code flow.
type ClassService struct {
	classes   classRepository
	groups    classGroupRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewClassService constructs a ClassService.
func NewClassService(classes classRepository, groups classGroupRepository, validate *validator.Validate, logger *zap.Logger) *ClassService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ClassService{classes: classes, groups: groups, validator: validate, logger: logger}
}

// Create creates a class owned by the teacher with a fresh join code.
func (s *ClassService) Create(ctx context.Context, teacherID string, req CreateClassRequest) (*models.Class, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class payload")
	}

	code, err := s.generateJoinCode(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate join code")
	}

	class := &models.Class{
		TeacherID: teacherID,
		Name:      req.Name,
		JoinCode:  code,
	}
	if err := s.classes.Create(ctx, class); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create class")
	}

	s.logger.Info("class created",
		zap.String("class_id", class.ID),
		zap.String("teacher_id", teacherID))
	return class, nil
}

// Get returns a class, restricted to its teacher or an enrolled student.
func (s *ClassService) Get(ctx context.Context, claims *models.JWTClaims, classID string) (*models.Class, error) {
	class, err := s.classes.FindByID(ctx, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}

	switch claims.Role {
	case models.RoleAdmin:
	case models.RoleTeacher:
		if class.TeacherID != claims.UserID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "class belongs to another teacher")
		}
	case models.RoleStudent:
		if _, err := s.groups.FindMembershipInClass(ctx, claims.UserID, classID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrForbidden, "student is not enrolled in this class")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
		}
	}
	return class, nil
}

// ListMine returns the caller's classes: owned for teachers, enrolled for
// students.
func (s *ClassService) ListMine(ctx context.Context, claims *models.JWTClaims) ([]models.ClassDetail, error) {
	var (
		classes []models.ClassDetail
		err     error
	)
	if claims.Role == models.RoleStudent {
		classes, err = s.classes.ListByStudent(ctx, claims.UserID)
	} else {
		classes, err = s.classes.ListByTeacher(ctx, claims.UserID)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classes")
	}
	return classes, nil
}

// Join enrolls a student into a class via its join code. The named group is
// created on first use; joining fails when the student already belongs to a
// group in that class.
func (s *ClassService) Join(ctx context.Context, studentID string, req JoinClassRequest) (*models.Group, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid join payload")
	}

	class, err := s.classes.FindByJoinCode(ctx, req.JoinCode)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no class matches this join code")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve join code")
	}

	if _, err := s.groups.FindMembershipInClass(ctx, studentID, class.ID); err == nil {
		return nil, appErrors.ErrAlreadyInGroup
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check membership")
	}

	group, err := s.groups.FindByClassAndName(ctx, class.ID, req.GroupName)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve group")
		}
		group = &models.Group{ClassID: class.ID, Name: req.GroupName}
		if err := s.groups.Create(ctx, group); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create group")
		}
	}

	membership := &models.GroupMembership{GroupID: group.ID, ClassID: class.ID, StudentID: studentID}
	if err := s.groups.AddMember(ctx, membership); err != nil {
		// A concurrent join beat us past the early check; the constraint wins.
		if errors.Is(err, repository.ErrMembershipExists) {
			return nil, appErrors.ErrAlreadyInGroup
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add member")
	}

	s.logger.Info("student joined class",
		zap.String("class_id", class.ID),
		zap.String("group_id", group.ID),
		zap.String("student_id", studentID))
	return group, nil
}

func (s *ClassService) generateJoinCode(ctx context.Context) (string, error) {
	for attempt := 0; attempt < 5; attempt++ {
		buf := make([]byte, joinCodeLength)
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for i := range buf {
			buf[i] = joinCodeAlphabet[int(buf[i])%len(joinCodeAlphabet)]
		}
		code := string(buf)

		taken, err := s.classes.JoinCodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
	}
	return "", fmt.Errorf("exhausted join code attempts")
}
