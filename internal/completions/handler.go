package completions

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/coursebridge/backend/internal/enrolments"
	"github.com/coursebridge/backend/pkg/response"
)

// QueryRequest is the body for POST /completions/query.
type QueryRequest struct {
	EnrolmentIDs []int64 `json:"enrolment_ids" binding:"required"`
}

// Handler handles completion HTTP endpoints.
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a completions handler.
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, logger: logger}
}

// Query handles POST /completions/query.
func (h *Handler) Query(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	records, err := h.service.GetCompletions(c.Request.Context(), req.EnrolmentIDs)
	if err != nil {
		enrolments.RespondError(c, h.logger, err)
		return
	}
	response.OK(c, records)
}

// Reset handles POST /enrolments/:id/completion/reset.
func (h *Handler) Reset(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid enrolment id")
		return
	}
	result, warnings, err := h.service.ResetCompletion(c.Request.Context(), id)
	if err != nil {
		enrolments.RespondError(c, h.logger, err)
		return
	}
	response.OK(c, gin.H{"result": result, "warnings": warnings})
}
