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

// QuizHandler serves the public catalogue, quiz delivery and admin quiz
// management.
type QuizHandler struct {
	quizService     *service.QuizService
	assemblyService *service.AssemblyService
	log             zerolog.Logger
}

// NewQuizHandler creates a new QuizHandler.
func NewQuizHandler(quizService *service.QuizService, assemblyService *service.AssemblyService, log zerolog.Logger) *QuizHandler {
	return &QuizHandler{
		quizService:     quizService,
		assemblyService: assemblyService,
		log:             log.With().Str("component", "quiz_handler").Logger(),
	}
}

// deliverQuery carries the per-request randomization overrides.
type deliverQuery struct {
	RandomizeQuestions *bool  `form:"randomize_questions" json:"randomize_questions"`
	RandomizeOptions   *bool  `form:"randomize_options" json:"randomize_options"`
	QuestionLimit      *int   `form:"question_limit" json:"question_limit" binding:"omitempty,max=1000"`
	SessionID          string `form:"session_id" json:"session_id" binding:"omitempty,max=128"`
}

// ListQuizzes godoc
// GET /api/v1/quizzes
func (h *QuizHandler) ListQuizzes(c *gin.Context) {
	summaries, err := h.quizService.ListSummaries(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, summaries)
}

// DeliverQuiz godoc
// GET /api/v1/quizzes/:id
// Resolves the quiz for one participant. Answer keys are never sent.
func (h *QuizHandler) DeliverQuiz(c *gin.Context) {
	var q deliverQuery
	if fields := validator.BindQuery(c, &q); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	d, err := h.assemblyService.GetDeliverableQuiz(c.Request.Context(), c.Param("id"), model.DeliveryOverrides{
		RandomizeQuestions: q.RandomizeQuestions,
		RandomizeOptions:   q.RandomizeOptions,
		QuestionLimit:      q.QuestionLimit,
	}, q.SessionID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, d)
}

// GetQuiz godoc
// GET /api/v1/admin/quizzes/:id
// Admin view including answer keys and bucket mappings.
func (h *QuizHandler) GetQuiz(c *gin.Context) {
	detail, err := h.quizService.GetQuiz(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, detail)
}

// CreateQuiz godoc
// POST /api/v1/admin/quizzes
func (h *QuizHandler) CreateQuiz(c *gin.Context) {
	var req model.CreateQuizRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	quiz, err := h.quizService.CreateQuiz(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	response.Created(c, quiz)
}

// ComposeQuiz godoc
// POST /api/v1/admin/quizzes/compose
// Draws a new custom quiz from a question bucket.
func (h *QuizHandler) ComposeQuiz(c *gin.Context) {
	var req model.ComposeQuizRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	quiz, err := h.assemblyService.ComposeFromBucket(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	response.Created(c, quiz)
}

// UpdateQuiz godoc
// PUT /api/v1/admin/quizzes/:id
func (h *QuizHandler) UpdateQuiz(c *gin.Context) {
	var req model.UpdateQuizRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	quiz, err := h.quizService.UpdateQuiz(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, quiz)
}

// ReplaceQuestions godoc
// PUT /api/v1/admin/quizzes/:id/questions
func (h *QuizHandler) ReplaceQuestions(c *gin.Context) {
	var req model.ReplaceQuestionsRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	quiz, err := h.quizService.ReplaceQuestions(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, quiz)
}

// DeleteQuiz godoc
// DELETE /api/v1/admin/quizzes/:id
// Only custom quizzes can be deleted.
func (h *QuizHandler) DeleteQuiz(c *gin.Context) {
	if err := h.quizService.DeleteQuiz(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}
