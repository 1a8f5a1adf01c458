package handler

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/kelas-bersih-api/internal/models"
	"github.com/noah-isme/kelas-bersih-api/internal/service"
	appErrors "github.com/noah-isme/kelas-bersih-api/pkg/errors"
	"github.com/noah-isme/kelas-bersih-api/pkg/response"
)

// SubmissionHandler manages submission intake, the review queue and photo
// delivery endpoints.
type SubmissionHandler struct {
	submissions *service.SubmissionService
	reviews     *service.ReviewService
	metrics     *service.MetricsService
}

// NewSubmissionHandler constructs the handler. Metrics may be nil.
func NewSubmissionHandler(submissions *service.SubmissionService, reviews *service.ReviewService, metrics *service.MetricsService) *SubmissionHandler {
	return &SubmissionHandler{submissions: submissions, reviews: reviews, metrics: metrics}
}

// Submit godoc
// @Summary Submit proof photo
// @Description File a pending submission for a task on behalf of the student's group
// @Tags Submissions
// @Accept multipart/form-data
// @Produce json
// @Param taskId formData string true "Task ID"
// @Param notes formData string false "Notes"
// @Param photo formData file true "Proof photo"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /submissions [post]
func (h *SubmissionHandler) Submit(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	taskID := c.PostForm("taskId")
	if strings.TrimSpace(taskID) == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "taskId is required"))
		return
	}
	notes := c.PostForm("notes")

	fileHeader, err := c.FormFile("photo")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "photo file is required"))
		return
	}
	src, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open photo"))
		return
	}
	defer src.Close()

	reader, ok := src.(io.ReadSeeker)
	if !ok {
		buf, readErr := io.ReadAll(src)
		if readErr != nil {
			response.Error(c, appErrors.Wrap(readErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to buffer photo"))
			return
		}
		reader = bytes.NewReader(buf)
	}

	upload := service.PhotoUpload{
		Filename: fileHeader.Filename,
		Size:     fileHeader.Size,
		Content:  reader,
	}
	submission, err := h.submissions.Submit(c.Request.Context(), claims, taskID, notes, upload)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.metrics.RecordSubmission("filed")
	response.Created(c, submission)
}

// List godoc
// @Summary List submissions
// @Description Review queue filtered by class, group, task and status
// @Tags Submissions
// @Produce json
// @Param class_id query string false "Class ID"
// @Param group_id query string false "Group ID"
// @Param task_id query string false "Task ID"
// @Param status query string false "PENDING, APPROVED or REJECTED"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /submissions [get]
func (h *SubmissionHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	filter := models.SubmissionFilter{
		ClassID:   c.Query("class_id"),
		GroupID:   c.Query("group_id"),
		TaskID:    c.Query("task_id"),
		Status:    models.SubmissionStatus(strings.ToUpper(c.Query("status"))),
		Page:      page,
		PageSize:  pageSize,
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}

	items, pagination, err := h.submissions.List(c.Request.Context(), claims, filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get submission
// @Tags Submissions
// @Produce json
// @Param id path string true "Submission ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /submissions/{id} [get]
func (h *SubmissionHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	detail, err := h.submissions.Get(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, detail, nil)
}

// Decide godoc
// @Summary Approve or reject submission
// @Description Approval credits points and advances the streak; rejection records feedback and resets the streak
// @Tags Submissions
// @Accept json
// @Produce json
// @Param id path string true "Submission ID"
// @Param payload body service.DecisionRequest true "Decision payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /submissions/{id}/decision [post]
func (h *SubmissionHandler) Decide(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid decision payload"))
		return
	}

	result, err := h.reviews.Decide(c.Request.Context(), claims, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	switch req.Action {
	case service.DecisionApprove:
		h.metrics.RecordSubmission("approved")
	case service.DecisionReject:
		h.metrics.RecordSubmission("rejected")
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// PhotoURL godoc
// @Summary Get signed photo link
// @Tags Submissions
// @Produce json
// @Param id path string true "Submission ID"
// @Success 200 {object} response.Envelope
// @Router /submissions/{id}/photo-url [get]
func (h *SubmissionHandler) PhotoURL(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	url, err := h.submissions.PhotoURL(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, gin.H{"photo_url": url}, nil)
}

// Photo godoc
// @Summary Download proof photo via signed token
// @Tags Submissions
// @Produce octet-stream
// @Param id path string true "Submission ID"
// @Param token query string true "Signed token"
// @Success 200 {file} binary
// @Router /submissions/{id}/photo [get]
func (h *SubmissionHandler) Photo(c *gin.Context) {
	token := c.Query("token")
	if strings.TrimSpace(token) == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}

	result, err := h.submissions.DownloadPhoto(c.Request.Context(), c.Param("id"), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer result.File.Close() //nolint:errcheck

	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=\"%s\"", result.Filename))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, result.SizeBytes, result.MimeType, result.File, nil)
}
