package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/kelas-bersih-api/internal/service"
	"github.com/noah-isme/kelas-bersih-api/pkg/response"
)

// LeaderboardHandler serves class rankings and exports.
type LeaderboardHandler struct {
	service *service.LeaderboardService
}

// NewLeaderboardHandler constructs the handler.
func NewLeaderboardHandler(svc *service.LeaderboardService) *LeaderboardHandler {
	return &LeaderboardHandler{service: svc}
}

// Get godoc
// @Summary Class leaderboard
// @Description Groups ranked by total points with streaks and badge counts
// @Tags Leaderboard
// @Produce json
// @Param classId path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{classId}/leaderboard [get]
func (h *LeaderboardHandler) Get(c *gin.Context) {
	entries, err := h.service.Get(c.Request.Context(), c.Param("classId"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, entries, nil)
}

// ExportCSV godoc
// @Summary Export leaderboard as CSV
// @Tags Leaderboard
// @Produce text/csv
// @Param classId path string true "Class ID"
// @Success 200 {file} binary
// @Router /classes/{classId}/leaderboard/export/csv [get]
func (h *LeaderboardHandler) ExportCSV(c *gin.Context) {
	payload, filename, err := h.service.ExportCSV(c.Request.Context(), c.Param("classId"))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	c.Data(http.StatusOK, "text/csv", payload)
}

// ExportPDF godoc
// @Summary Export leaderboard as PDF
// @Tags Leaderboard
// @Produce application/pdf
// @Param classId path string true "Class ID"
// @Success 200 {file} binary
// @Router /classes/{classId}/leaderboard/export/pdf [get]
func (h *LeaderboardHandler) ExportPDF(c *gin.Context) {
	payload, filename, err := h.service.ExportPDF(c.Request.Context(), c.Param("classId"))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	c.Data(http.StatusOK, "application/pdf", payload)
}
