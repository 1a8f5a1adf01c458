package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/kelas-bersih-api/internal/models"
	"github.com/noah-isme/kelas-bersih-api/internal/repository"
	appErrors "github.com/noah-isme/kelas-bersih-api/pkg/errors"
)

type submissionStore interface {
	ExistsPending(ctx context.Context, taskID, groupID string) (bool, error)
	Create(ctx context.Context, submission *models.Submission) error
	FindByID(ctx context.Context, id string) (*models.Submission, error)
	FindDetailByID(ctx context.Context, id string) (*models.SubmissionDetail, error)
	List(ctx context.Context, filter models.SubmissionFilter) ([]models.SubmissionDetail, int, error)
}

type submissionTaskFinder interface {
	FindByID(ctx context.Context, id string) (*models.Task, error)
}

type submissionMembershipResolver interface {
	FindByID(ctx context.Context, id string) (*models.Group, error)
	FindMembershipInClass(ctx context.Context, studentID, classID string) (*models.Group, error)
}

type submissionClassFinder interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
}

type photoStorage interface {
	SaveStream(filename string, r io.Reader) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
}

type photoURLSigner interface {
	Generate(id, relPath string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (id, relPath string, expiresAt time.Time, err error)
}

// PhotoUpload carries the proof photo stream and metadata.
type PhotoUpload struct {
	Filename string
	Size     int64
	Content  io.ReadSeeker
}

// PhotoDownload bundles a stored photo for streaming to the client.
type PhotoDownload struct {
	File      *os.File
	Filename  string
	MimeType  string
	SizeBytes int64
}

// SubmissionServiceConfig holds upload validation parameters.
type SubmissionServiceConfig struct {
	MaxFileSize  int64
	AllowedMIMEs []string
	APIPrefix    string
}

// SubmissionService handles submission intake, the review queue and photo
// delivery.
type SubmissionService struct {
	repo    submissionStore
	tasks   submissionTaskFinder
	groups  submissionMembershipResolver
	classes submissionClassFinder
	storage photoStorage
	signer  photoURLSigner
	logger  *zap.Logger
	cfg     SubmissionServiceConfig
	mimeSet map[string]struct{}
}

// NewSubmissionService constructs the service with defaults.
func NewSubmissionService(repo submissionStore, tasks submissionTaskFinder, groups submissionMembershipResolver, classes submissionClassFinder, storage photoStorage, signer photoURLSigner, logger *zap.Logger, cfg SubmissionServiceConfig) *SubmissionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = 5 * 1024 * 1024
	}
	if len(cfg.AllowedMIMEs) == 0 {
		cfg.AllowedMIMEs = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api/v1"
	}
	mimeSet := make(map[string]struct{}, len(cfg.AllowedMIMEs))
	for _, mt := range cfg.AllowedMIMEs {
		mimeSet[strings.ToLower(mt)] = struct{}{}
	}
	return &SubmissionService{
		repo:    repo,
		tasks:   tasks,
		groups:  groups,
		classes: classes,
		storage: storage,
		signer:  signer,
		logger:  logger,
		cfg:     cfg,
		mimeSet: mimeSet,
	}
}

// Submit files a proof photo for a task on behalf of the student's group.
// The photo is saved before the database insert; when the insert loses a
// duplicate-pending race the file is removed again.
func (s *SubmissionService) Submit(ctx context.Context, claims *models.JWTClaims, taskID, notes string, upload PhotoUpload) (*models.Submission, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}

	task, err := s.tasks.FindByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "task not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load task")
	}

	group, err := s.groups.FindMembershipInClass(ctx, claims.UserID, task.ClassID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNoActiveGroup
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve group")
	}

	// Fast-path duplicate check; the partial unique index still backs this
	// up under concurrency.
	pending, err := s.repo.ExistsPending(ctx, task.ID, group.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check pending submission")
	}
	if pending {
		return nil, appErrors.ErrDuplicatePending
	}

	mimeType, err := s.validateUpload(upload)
	if err != nil {
		return nil, err
	}

	filename := fmt.Sprintf("photos/sub_%d_%s%s", time.Now().Unix(), randomSuffix(), imageExtension(mimeType))
	if _, err := upload.Content.Seek(0, io.SeekStart); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset upload stream")
	}
	path, err := s.storage.SaveStream(filename, upload.Content)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist photo")
	}

	submission := &models.Submission{
		TaskID:    task.ID,
		GroupID:   group.ID,
		StudentID: claims.UserID,
		ImagePath: path,
		Notes:     notes,
		Status:    models.SubmissionStatusPending,
	}
	if err := s.repo.Create(ctx, submission); err != nil {
		_ = s.storage.Delete(path)
		if errors.Is(err, repository.ErrPendingExists) {
			return nil, appErrors.ErrRaceLost
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create submission")
	}

	s.logger.Info("submission filed",
		zap.String("submission_id", submission.ID),
		zap.String("task_id", task.ID),
		zap.String("group_id", group.ID))
	return submission, nil
}

// Get returns a submission with context, enforcing class access.
func (s *SubmissionService) Get(ctx context.Context, claims *models.JWTClaims, id string) (*models.SubmissionDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}
	if err := s.authorizeSubmission(ctx, claims, detail); err != nil {
		return nil, err
	}
	return detail, nil
}

// List returns the review queue for a class or group.
func (s *SubmissionService) List(ctx context.Context, claims *models.JWTClaims, filter models.SubmissionFilter) ([]models.SubmissionDetail, *models.Pagination, error) {
	if claims == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	if filter.ClassID == "" && filter.GroupID == "" {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "class_id or group_id filter is required")
	}
	if err := s.authorizeListScope(ctx, claims, &filter); err != nil {
		return nil, nil, err
	}

	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list submissions")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return items, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// PhotoURL generates a short-lived signed link for a submission photo.
func (s *SubmissionService) PhotoURL(ctx context.Context, claims *models.JWTClaims, id string) (string, error) {
	if s.signer == nil {
		return "", appErrors.Clone(appErrors.ErrInternal, "photo signer unavailable")
	}
	detail, err := s.Get(ctx, claims, id)
	if err != nil {
		return "", err
	}
	token, _, err := s.signer.Generate(detail.ID, detail.ImagePath)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate photo token")
	}
	base := strings.TrimRight(s.cfg.APIPrefix, "/")
	return fmt.Sprintf("%s/submissions/%s/photo?token=%s", base, detail.ID, token), nil
}

// DownloadPhoto validates the signed token and opens the stored photo.
func (s *SubmissionService) DownloadPhoto(ctx context.Context, id, token string) (*PhotoDownload, error) {
	if s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "photo signer unavailable")
	}
	submissionID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired token")
	}
	if submissionID != id {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "token does not match submission")
	}

	submission, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}
	if submission.ImagePath != relPath {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "token does not match stored photo")
	}

	file, err := s.storage.Open(submission.ImagePath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open photo")
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to stat photo")
	}

	return &PhotoDownload{
		File:      file,
		Filename:  info.Name(),
		MimeType:  mimeFromExtension(submission.ImagePath),
		SizeBytes: info.Size(),
	}, nil
}

// authorizeListScope applies the same access rules to the review queue as
// single-submission reads: teachers must own the class the filter resolves
// to, students are confined to their own group, admins pass through.
func (s *SubmissionService) authorizeListScope(ctx context.Context, claims *models.JWTClaims, filter *models.SubmissionFilter) error {
	if claims.Role == models.RoleAdmin {
		return nil
	}

	classID := filter.ClassID
	if classID == "" {
		group, err := s.groups.FindByID(ctx, filter.GroupID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "group not found")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group")
		}
		classID = group.ClassID
	}

	if claims.Role == models.RoleTeacher {
		class, err := s.classes.FindByID(ctx, classID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "class not found")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
		}
		if class.TeacherID != claims.UserID {
			return appErrors.Clone(appErrors.ErrForbidden, "class belongs to another teacher")
		}
		return nil
	}

	group, err := s.groups.FindMembershipInClass(ctx, claims.UserID, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrForbidden, "student is not enrolled in this class")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve group")
	}
	if filter.GroupID != "" && filter.GroupID != group.ID {
		return appErrors.Clone(appErrors.ErrForbidden, "submissions belong to another group")
	}
	filter.GroupID = group.ID
	return nil
}

// authorizeSubmission restricts reads to the owning teacher, the admins and
// the submitting group's students.
func (s *SubmissionService) authorizeSubmission(ctx context.Context, claims *models.JWTClaims, detail *models.SubmissionDetail) error {
	if claims == nil {
		return appErrors.ErrUnauthorized
	}
	switch claims.Role {
	case models.RoleAdmin:
		return nil
	case models.RoleTeacher:
		task, err := s.tasks.FindByID(ctx, detail.TaskID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load task")
		}
		class, err := s.classes.FindByID(ctx, task.ClassID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
		}
		if class.TeacherID != claims.UserID {
			return appErrors.Clone(appErrors.ErrForbidden, "submission belongs to another class")
		}
		return nil
	default:
		task, err := s.tasks.FindByID(ctx, detail.TaskID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load task")
		}
		group, err := s.groups.FindMembershipInClass(ctx, claims.UserID, task.ClassID)
		if err != nil || group.ID != detail.GroupID {
			return appErrors.Clone(appErrors.ErrForbidden, "submission belongs to another group")
		}
		return nil
	}
}

func (s *SubmissionService) validateUpload(upload PhotoUpload) (string, error) {
	if upload.Content == nil || upload.Size <= 0 {
		return "", appErrors.Clone(appErrors.ErrValidation, "photo file is required")
	}
	if upload.Size > s.cfg.MaxFileSize {
		return "", appErrors.ErrImageTooLarge
	}

	header := make([]byte, 512)
	n, err := upload.Content.Read(header)
	if err != nil && err != io.EOF {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to inspect photo")
	}
	if _, err := upload.Content.Seek(0, io.SeekStart); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset upload stream")
	}
	if n == 0 {
		return "", appErrors.ErrInvalidImage
	}

	mimeType := strings.ToLower(http.DetectContentType(header[:n]))
	if _, allowed := s.mimeSet[mimeType]; !allowed {
		return "", appErrors.ErrInvalidImage
	}
	return mimeType, nil
}

func imageExtension(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".img"
	}
}

func mimeFromExtension(path string) string {
	switch {
	case strings.HasSuffix(path, ".jpg"), strings.HasSuffix(path, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(path, ".png"):
		return "image/png"
	case strings.HasSuffix(path, ".gif"):
		return "image/gif"
	case strings.HasSuffix(path, ".webp"):
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}

func randomSuffix() string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}
