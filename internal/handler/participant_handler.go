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

// ParticipantHandler handles participant management.
type ParticipantHandler struct {
	participantService *service.ParticipantService
	log                zerolog.Logger
}

// NewParticipantHandler creates a new ParticipantHandler.
func NewParticipantHandler(participantService *service.ParticipantService, log zerolog.Logger) *ParticipantHandler {
	return &ParticipantHandler{
		participantService: participantService,
		log:                log.With().Str("component", "participant_handler").Logger(),
	}
}

// ListParticipants godoc
// GET /api/v1/admin/participants?page=1&per_page=20&search=ana
func (h *ParticipantHandler) ListParticipants(c *gin.Context) {
	page, perPage := parsePagination(c)

	participants, total, err := h.participantService.List(c.Request.Context(), c.Query("search"), page, perPage)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	response.Paginated(c, participants, page, perPage, total)
}

// CreateParticipant godoc
// POST /api/v1/admin/participants
func (h *ParticipantHandler) CreateParticipant(c *gin.Context) {
	var req model.ParticipantRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	p, err := h.participantService.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	response.Created(c, p)
}

// UpdateParticipant godoc
// PUT /api/v1/admin/participants/:id
func (h *ParticipantHandler) UpdateParticipant(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req model.ParticipantRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	p, err := h.participantService.Update(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, p)
}

// DeleteParticipant godoc
// DELETE /api/v1/admin/participants/:id
func (h *ParticipantHandler) DeleteParticipant(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.participantService.Delete(c.Request.Context(), id); err != nil {
		respondError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}
