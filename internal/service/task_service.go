package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/kelas-bersih-api/internal/models"
	appErrors "github.com/noah-isme/kelas-bersih-api/pkg/errors"
)

type taskRepository interface {
	Create(ctx context.Context, task *models.Task) error
	FindByID(ctx context.Context, id string) (*models.Task, error)
	ListByClass(ctx context.Context, classID string) ([]models.Task, error)
	Update(ctx context.Context, task *models.Task) error
	Delete(ctx context.Context, id string) error
}

type taskClassRepository interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
}

// TaskRequest is the create/update payload for a cleaning task.
type TaskRequest struct {
	Name        string     `json:"name" validate:"required,min=2,max=100"`
	Area        string     `json:"area" validate:"required,min=2,max=100"`
	Points      int        `json:"points" validate:"required,gt=0,lte=1000"`
	Description *string    `json:"description,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
}

// TaskService manages the cleaning task catalog of a class.
type TaskService struct {
	tasks     taskRepository
	classes   taskClassRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTaskService constructs a TaskService.
func NewTaskService(tasks taskRepository, classes taskClassRepository, validate *validator.Validate, logger *zap.Logger) *TaskService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &TaskService{tasks: tasks, classes: classes, validator: validate, logger: logger}
}

// Create adds a task to a class owned by the calling teacher.
func (s *TaskService) Create(ctx context.Context, claims *models.JWTClaims, classID string, req TaskRequest) (*models.Task, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid task payload")
	}
	if err := s.authorizeClass(ctx, claims, classID); err != nil {
		return nil, err
	}

	task := &models.Task{
		ClassID:     classID,
		Name:        req.Name,
		Area:        req.Area,
		Points:      req.Points,
		Description: req.Description,
		DueDate:     req.DueDate,
	}
	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create task")
	}
	return task, nil
}

// Get returns one task.
func (s *TaskService) Get(ctx context.Context, id string) (*models.Task, error) {
	task, err := s.tasks.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "task not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load task")
	}
	return task, nil
}

// ListByClass returns the tasks of a class.
func (s *TaskService) ListByClass(ctx context.Context, classID string) ([]models.Task, error) {
	tasks, err := s.tasks.ListByClass(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list tasks")
	}
	return tasks, nil
}

// Update modifies a task owned by the calling teacher.
func (s *TaskService) Update(ctx context.Context, claims *models.JWTClaims, id string, req TaskRequest) (*models.Task, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid task payload")
	}
	task, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeClass(ctx, claims, task.ClassID); err != nil {
		return nil, err
	}

	task.Name = req.Name
	task.Area = req.Area
	task.Points = req.Points
	task.Description = req.Description
	task.DueDate = req.DueDate
	if err := s.tasks.Update(ctx, task); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update task")
	}
	return task, nil
}

// Delete removes a task owned by the calling teacher.
func (s *TaskService) Delete(ctx context.Context, claims *models.JWTClaims, id string) error {
	task, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorizeClass(ctx, claims, task.ClassID); err != nil {
		return err
	}
	if err := s.tasks.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete task")
	}
	s.logger.Info("task deleted", zap.String("task_id", id))
	return nil
}

func (s *TaskService) authorizeClass(ctx context.Context, claims *models.JWTClaims, classID string) error {
	class, err := s.classes.FindByID(ctx, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	if claims.Role == models.RoleTeacher && class.TeacherID != claims.UserID {
		return appErrors.Clone(appErrors.ErrForbidden, "class belongs to another teacher")
	}
	return nil
}
