package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/kelas-bersih-api/internal/service"
	appErrors "github.com/noah-isme/kelas-bersih-api/pkg/errors"
	"github.com/noah-isme/kelas-bersih-api/pkg/response"
)

// BadgeHandler manages badge catalog and award endpoints.
type BadgeHandler struct {
	service *service.BadgeService
}

// NewBadgeHandler constructs the handler.
func NewBadgeHandler(svc *service.BadgeService) *BadgeHandler {
	return &BadgeHandler{service: svc}
}

// Catalog godoc
// @Summary List badge catalog
// @Tags Badges
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /badges [get]
func (h *BadgeHandler) Catalog(c *gin.Context) {
	badges, err := h.service.Catalog(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, badges, nil)
}

// Award godoc
// @Summary Award badge to group
// @Description Granting the same badge twice returns a conflict
// @Tags Badges
// @Accept json
// @Produce json
// @Param id path string true "Group ID"
// @Param payload body service.AwardBadgeRequest true "Award payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /groups/{id}/badges [post]
func (h *BadgeHandler) Award(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.AwardBadgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid award payload"))
		return
	}

	award, err := h.service.Award(c.Request.Context(), claims, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, award)
}

// ListByGroup godoc
// @Summary List badges earned by a group
// @Tags Badges
// @Produce json
// @Param id path string true "Group ID"
// @Success 200 {object} response.Envelope
// @Router /groups/{id}/badges [get]
func (h *BadgeHandler) ListByGroup(c *gin.Context) {
	awards, err := h.service.ListByGroup(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, awards, nil)
}
