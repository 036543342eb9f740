package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exquiz-backend/internal/response"
	"github.com/stemsi/exquiz-backend/internal/sandbox"
	"github.com/stemsi/exquiz-backend/internal/service"
)

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

// respondError maps a service error onto the response envelope. Unknown
// errors are logged and reported as 500.
func respondError(c *gin.Context, log zerolog.Logger, err error) {
	var insufficient *service.InsufficientQuestionsError
	var verr *service.ValidationError

	switch {
	case errors.As(err, &insufficient):
		response.FailWithFields(c, http.StatusUnprocessableEntity, response.ErrInsufficientQuestions, map[string]string{
			"difficulty": string(insufficient.Difficulty),
			"requested":  strconv.Itoa(insufficient.Requested),
			"available":  strconv.Itoa(insufficient.Available),
		})
	case errors.As(err, &verr):
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, verr.Fields)
	case errors.Is(err, service.ErrQuizNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrQuizNotFound)
	case errors.Is(err, service.ErrBucketNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrBucketNotFound)
	case errors.Is(err, service.ErrQuestionNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrQuestionNotFound)
	case errors.Is(err, service.ErrSessionNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrSessionNotFound)
	case errors.Is(err, service.ErrParticipantNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrDuplicateSession):
		response.Fail(c, http.StatusConflict, response.ErrDuplicateSession)
	case errors.Is(err, service.ErrDuplicateID), errors.Is(err, service.ErrDuplicateEmail):
		response.Fail(c, http.StatusConflict, response.ErrConflict)
	case errors.Is(err, service.ErrSessionNotActive):
		response.Fail(c, http.StatusConflict, response.ErrSessionNotActive)
	case errors.Is(err, service.ErrQuizProtected):
		response.Fail(c, http.StatusForbidden, response.ErrQuizProtected)
	case errors.Is(err, service.ErrInvalidCredentials):
		response.Fail(c, http.StatusUnauthorized, response.ErrInvalidCredentials)
	case errors.Is(err, sandbox.ErrUnavailable):
		response.Fail(c, http.StatusServiceUnavailable, response.ErrSandboxUnavailable)
	default:
		log.Error().Err(err).
			Str("path", c.FullPath()).
			Str("request_id", response.RequestID(c)).
			Msg("Request failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}

// parseIDParam reads a positive integer path parameter.
func parseIDParam(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return 0, false
	}
	return id, true
}

// parsePagination reads ?page and ?per_page, clamped to sane bounds.
func parsePagination(c *gin.Context) (page, perPage int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ = strconv.Atoi(c.DefaultQuery("per_page", strconv.Itoa(defaultPerPage)))
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	return page, perPage
}
