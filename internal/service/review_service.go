package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/kelas-bersih-api/internal/models"
	"github.com/noah-isme/kelas-bersih-api/internal/repository"
	appErrors "github.com/noah-isme/kelas-bersih-api/pkg/errors"
)

type reviewSubmissionStore interface {
	FindDetailByID(ctx context.Context, id string) (*models.SubmissionDetail, error)
	Approve(ctx context.Context, id string, decidedAt time.Time) (*models.GroupPoints, error)
	Reject(ctx context.Context, id, feedback string) (string, error)
}

type reviewPointsStore interface {
	ResetStreak(ctx context.Context, groupID string) error
}

type leaderboardInvalidator interface {
	DeleteByPattern(ctx context.Context, pattern string) error
}

// DecisionAction enumerates review outcomes.
type DecisionAction string

const (
	DecisionApprove DecisionAction = "APPROVE"
	DecisionReject  DecisionAction = "REJECT"
)

// DecisionRequest is the review payload for one pending submission.
type DecisionRequest struct {
	Action   DecisionAction `json:"action" validate:"required,oneof=APPROVE REJECT"`
	Feedback string         `json:"feedback" validate:"required_if=Action REJECT,max=500"`
}

// DecisionResult reports the decision outcome. Points is set on approval.
// StreakReset reports whether the rejection's streak reset actually landed;
// the rejection itself stands either way.
type DecisionResult struct {
	Submission  *models.SubmissionDetail `json:"submission"`
	Points      *models.GroupPoints      `json:"points,omitempty"`
	StreakReset bool                     `json:"streak_reset"`
}

// ReviewService applies teacher decisions to pending submissions.
type ReviewService struct {
	submissions reviewSubmissionStore
	points      reviewPointsStore
	tasks       submissionTaskFinder
	classes     submissionClassFinder
	cache       leaderboardInvalidator
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewReviewService constructs a ReviewService. The cache invalidator may be
// nil when leaderboard caching is disabled.
func NewReviewService(submissions reviewSubmissionStore, points reviewPointsStore, tasks submissionTaskFinder, classes submissionClassFinder, cache leaderboardInvalidator, validate *validator.Validate, logger *zap.Logger) *ReviewService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ReviewService{
		submissions: submissions,
		points:      points,
		tasks:       tasks,
		classes:     classes,
		cache:       cache,
		validator:   validate,
		logger:      logger,
	}
}

// Decide approves or rejects a pending submission. Approval credits the
// task's points and advances the streak atomically; rejection records the
// feedback and then resets the streak best-effort.
func (s *ReviewService) Decide(ctx context.Context, claims *models.JWTClaims, submissionID string, req DecisionRequest) (*DecisionResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid decision payload")
	}

	detail, err := s.submissions.FindDetailByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}

	classID, err := s.authorizeDecision(ctx, claims, detail)
	if err != nil {
		return nil, err
	}

	result := &DecisionResult{}
	switch req.Action {
	case DecisionApprove:
		points, err := s.submissions.Approve(ctx, submissionID, time.Now().UTC())
		if err != nil {
			if errors.Is(err, repository.ErrNotPending) {
				return nil, appErrors.ErrAlreadyDecided
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to approve submission")
		}
		result.Points = points
		s.logger.Info("submission approved",
			zap.String("submission_id", submissionID),
			zap.String("group_id", points.GroupID),
			zap.Int("total_points", points.TotalPoints),
			zap.Int("streak", points.Streak))

	case DecisionReject:
		groupID, err := s.submissions.Reject(ctx, submissionID, req.Feedback)
		if err != nil {
			if errors.Is(err, repository.ErrNotPending) {
				return nil, appErrors.ErrAlreadyDecided
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reject submission")
		}
		if err := s.points.ResetStreak(ctx, groupID); err != nil {
			s.logger.Warn("streak reset failed after rejection",
				zap.String("submission_id", submissionID),
				zap.String("group_id", groupID),
				zap.Error(err))
		} else {
			result.StreakReset = true
		}
		s.logger.Info("submission rejected",
			zap.String("submission_id", submissionID),
			zap.String("group_id", groupID),
			zap.Bool("streak_reset", result.StreakReset))
	}

	s.invalidateLeaderboard(ctx, classID)

	decided, err := s.submissions.FindDetailByID(ctx, submissionID)
	if err != nil {
		s.logger.Warn("failed to reload decided submission", zap.Error(err))
		decided = detail
	}
	result.Submission = decided
	return result, nil
}

// authorizeDecision restricts decisions to the class's teacher (or admins)
// and returns the class ID for cache invalidation.
func (s *ReviewService) authorizeDecision(ctx context.Context, claims *models.JWTClaims, detail *models.SubmissionDetail) (string, error) {
	task, err := s.tasks.FindByID(ctx, detail.TaskID)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load task")
	}
	if claims.Role == models.RoleAdmin {
		return task.ClassID, nil
	}
	class, err := s.classes.FindByID(ctx, task.ClassID)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	if class.TeacherID != claims.UserID {
		return "", appErrors.Clone(appErrors.ErrForbidden, "submission belongs to another teacher's class")
	}
	return task.ClassID, nil
}

func (s *ReviewService) invalidateLeaderboard(ctx context.Context, classID string) {
	if s.cache == nil || classID == "" {
		return
	}
	pattern := fmt.Sprintf("leaderboard:%s*", classID)
	if err := s.cache.DeleteByPattern(ctx, pattern); err != nil {
		s.logger.Warn("leaderboard cache invalidation failed",
			zap.String("class_id", classID),
			zap.Error(err))
	}
}
