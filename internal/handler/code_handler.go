package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exquiz-backend/internal/model"
	"github.com/stemsi/exquiz-backend/internal/response"
	"github.com/stemsi/exquiz-backend/internal/sandbox"
	"github.com/stemsi/exquiz-backend/internal/validator"
)

// CodeHandler forwards code runs to the execution sandbox.
type CodeHandler struct {
	runner *sandbox.Runner
	log    zerolog.Logger
}

// NewCodeHandler creates a new CodeHandler.
func NewCodeHandler(runner *sandbox.Runner, log zerolog.Logger) *CodeHandler {
	return &CodeHandler{
		runner: runner,
		log:    log.With().Str("component", "code_handler").Logger(),
	}
}

// RunCode godoc
// POST /api/v1/admin/code/run
func (h *CodeHandler) RunCode(c *gin.Context) {
	var req model.RunCodeRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	res, err := h.runner.Run(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, res)
}
