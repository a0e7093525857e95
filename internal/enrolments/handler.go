package enrolments

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/coursebridge/backend/internal/models"
	"github.com/coursebridge/backend/pkg/response"
)

// EnrolRequest is the body for POST /enrolments. booking_id is validated by
// the lifecycle service so that an empty value reports the domain error.
type EnrolRequest struct {
	UserID              int64  `json:"user_id" binding:"required"`
	CourseID            int64  `json:"course_id" binding:"required"`
	BookingID           string `json:"booking_id"`
	TimeStart           int64  `json:"time_start"`
	TimeEnd             int64  `json:"time_end"`
	Suspend             bool   `json:"suspend"`
	RequireRecompletion bool   `json:"require_recompletion"`
}

// EditRequest is the body for PATCH /enrolments/:id. Absent fields are left
// unchanged.
type EditRequest struct {
	BookingID *string `json:"booking_id"`
	TimeStart *int64  `json:"time_start"`
	TimeEnd   *int64  `json:"time_end"`
	Suspend   *bool   `json:"suspend"`
}

// Handler handles enrolment lifecycle HTTP endpoints.
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates an enrolments handler.
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, logger: logger}
}

// Enrol handles POST /enrolments.
func (h *Handler) Enrol(c *gin.Context) {
	var req EnrolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	res, err := h.service.Create(c.Request.Context(), CreateParams{
		UserID:              req.UserID,
		CourseID:            req.CourseID,
		BookingID:           req.BookingID,
		TimeStart:           req.TimeStart,
		TimeEnd:             req.TimeEnd,
		Suspend:             req.Suspend,
		RequireRecompletion: req.RequireRecompletion,
	})
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	response.Created(c, gin.H{
		"enrolment_id": res.UserEnrolmentID,
		"user_id":      res.UserID,
		"course_id":    res.CourseID,
		"booking_id":   res.BookingID,
		"warnings":     []models.Warning{},
	})
}

// Unenrol handles DELETE /enrolments/:id.
func (h *Handler) Unenrol(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid enrolment id")
		return
	}
	if err := h.service.Unenrol(c.Request.Context(), id); err != nil {
		RespondError(c, h.logger, err)
		return
	}
	response.OK(c, gin.H{"result": true, "warnings": []models.Warning{}})
}

// Edit handles PATCH /enrolments/:id.
func (h *Handler) Edit(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid enrolment id")
		return
	}
	var req EditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	err = h.service.Edit(c.Request.Context(), EditParams{
		UserEnrolmentID: id,
		BookingID:       req.BookingID,
		TimeStart:       req.TimeStart,
		TimeEnd:         req.TimeEnd,
		Suspend:         req.Suspend,
	})
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	response.OK(c, gin.H{"result": true, "warnings": []models.Warning{}})
}

// ListByCourse handles GET /courses/:id/enrolments.
func (h *Handler) ListByCourse(c *gin.Context) {
	courseID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid course id")
		return
	}
	list, err := h.service.List(c.Request.Context(), courseID)
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	response.OK(c, list)
}

// RespondError writes a domain error with its kind and mapped HTTP status, or
// a 500 for anything unexpected.
func RespondError(c *gin.Context, logger *zap.Logger, err error) {
	var domErr *Error
	if errors.As(err, &domErr) {
		response.Fail(c, httpStatus(domErr.Kind), string(domErr.Kind), domErr.Error())
		return
	}
	logger.Error("request failed", zap.Error(err), zap.String("path", c.FullPath()))
	response.Internal(c, "internal error")
}

func httpStatus(kind ErrorKind) int {
	switch kind {
	case KindUserNotFound, KindCourseNotExist, KindEnrolNoUserInstance, KindEnrolNoInstance:
		return http.StatusNotFound
	case KindBookingIDDuplicate, KindBookingIDDuplicateMustChange:
		return http.StatusConflict
	case KindRecompletionNotExpectable, KindRecompletionNotEnabled,
		KindRecompletionNotOnDemand, KindRecompletionNotInstalled:
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}
