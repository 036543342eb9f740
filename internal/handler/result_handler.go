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

// ResultHandler records and lists quiz results.
type ResultHandler struct {
	resultService *service.ResultService
	log           zerolog.Logger
}

// NewResultHandler creates a new ResultHandler.
func NewResultHandler(resultService *service.ResultService, log zerolog.Logger) *ResultHandler {
	return &ResultHandler{
		resultService: resultService,
		log:           log.With().Str("component", "result_handler").Logger(),
	}
}

// SubmitResult godoc
// POST /api/v1/results
// Answers are graded server-side when the delivered variant is still known.
func (h *ResultHandler) SubmitResult(c *gin.Context) {
	var req model.SubmitResultRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	res, err := h.resultService.Submit(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusAccepted, res)
}

// ListResults godoc
// GET /api/v1/admin/results?quiz_id=javascript&page=1&per_page=20
func (h *ResultHandler) ListResults(c *gin.Context) {
	page, perPage := parsePagination(c)

	results, total, err := h.resultService.List(c.Request.Context(), c.Query("quiz_id"), page, perPage)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	response.Paginated(c, results, page, perPage, total)
}
