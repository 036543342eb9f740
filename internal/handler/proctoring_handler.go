package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exquiz-backend/internal/model"
	"github.com/stemsi/exquiz-backend/internal/response"
	"github.com/stemsi/exquiz-backend/internal/service"
	"github.com/stemsi/exquiz-backend/internal/validator"
)

// ProctoringHandler exposes the proctoring session state machine.
type ProctoringHandler struct {
	proctoringService *service.ProctoringService
	log               zerolog.Logger
}

// NewProctoringHandler creates a new ProctoringHandler.
func NewProctoringHandler(proctoringService *service.ProctoringService, log zerolog.Logger) *ProctoringHandler {
	return &ProctoringHandler{
		proctoringService: proctoringService,
		log:               log.With().Str("component", "proctoring_handler").Logger(),
	}
}

type sessionListQuery struct {
	Status       string `form:"status" binding:"omitempty,oneof=active completed terminated paused"`
	AssessmentID string `form:"assessment_id" binding:"omitempty,max=100"`
	UserEmail    string `form:"user_email" binding:"omitempty,max=255"`
	Limit        int    `form:"limit" binding:"omitempty,min=1"`
}

// StartSession godoc
// POST /api/v1/proctoring/sessions
func (h *ProctoringHandler) StartSession(c *gin.Context) {
	var req model.StartSessionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	sess, err := h.proctoringService.StartSession(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	response.Created(c, sess)
}

// GetSession godoc
// GET /api/v1/proctoring/sessions/:session_id
func (h *ProctoringHandler) GetSession(c *gin.Context) {
	sess, err := h.proctoringService.GetSession(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, sess)
}

// LogViolation godoc
// POST /api/v1/proctoring/sessions/:session_id/violations
// The response reports whether this violation terminated the session.
func (h *ProctoringHandler) LogViolation(c *gin.Context) {
	var req model.LogViolationRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	out, err := h.proctoringService.LogViolation(c.Request.Context(), c.Param("session_id"), req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	response.Created(c, out)
}

// ListViolations godoc
// GET /api/v1/proctoring/sessions/:session_id/violations
func (h *ProctoringHandler) ListViolations(c *gin.Context) {
	violations, err := h.proctoringService.ListViolations(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, violations)
}

// EndSession godoc
// POST /api/v1/proctoring/sessions/:session_id/end
// Ending an already closed session returns it unchanged.
func (h *ProctoringHandler) EndSession(c *gin.Context) {
	var req model.EndSessionRequest
	if c.Request.ContentLength > 0 {
		if fields := validator.Bind(c, &req); fields != nil {
			response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
			return
		}
	}

	sess, err := h.proctoringService.EndSession(c.Request.Context(), c.Param("session_id"), req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, sess)
}

// ListSessions godoc
// GET /api/v1/admin/proctoring/sessions?status=active&assessment_id=javascript
func (h *ProctoringHandler) ListSessions(c *gin.Context) {
	var q sessionListQuery
	if fields := validator.BindQuery(c, &q); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	sessions, err := h.proctoringService.ListSessions(c.Request.Context(), model.SessionFilter{
		Status:       model.SessionStatus(q.Status),
		AssessmentID: q.AssessmentID,
		UserEmail:    q.UserEmail,
		Limit:        q.Limit,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, sessions)
}

// GetStatistics godoc
// GET /api/v1/admin/proctoring/statistics?timeframe=24h|7d|all
func (h *ProctoringHandler) GetStatistics(c *gin.Context) {
	stats, err := h.proctoringService.GetStatistics(c.Request.Context(), c.Query("timeframe"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, stats)
}
