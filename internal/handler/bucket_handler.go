package handler

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exquiz-backend/internal/model"
	"github.com/stemsi/exquiz-backend/internal/response"
	"github.com/stemsi/exquiz-backend/internal/service"
	"github.com/stemsi/exquiz-backend/internal/validator"
)

// BucketHandler handles question bucket management.
type BucketHandler struct {
	bucketService  *service.BucketService
	maxImportBytes int64
	log            zerolog.Logger
}

// NewBucketHandler creates a new BucketHandler.
func NewBucketHandler(bucketService *service.BucketService, maxImportBytes int64, log zerolog.Logger) *BucketHandler {
	return &BucketHandler{
		bucketService:  bucketService,
		maxImportBytes: maxImportBytes,
		log:            log.With().Str("component", "bucket_handler").Logger(),
	}
}

type bucketQuestionQuery struct {
	Difficulty string `form:"difficulty" binding:"omitempty,oneof=easy medium hard"`
	ActiveOnly bool   `form:"active_only"`
}

// ListBuckets godoc
// GET /api/v1/admin/buckets
func (h *BucketHandler) ListBuckets(c *gin.Context) {
	buckets, err := h.bucketService.List(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, buckets)
}

// GetBucket godoc
// GET /api/v1/admin/buckets/:id
func (h *BucketHandler) GetBucket(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	b, err := h.bucketService.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, b)
}

// CreateBucket godoc
// POST /api/v1/admin/buckets
func (h *BucketHandler) CreateBucket(c *gin.Context) {
	var req model.CreateBucketRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	b, err := h.bucketService.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	response.Created(c, b)
}

// UpdateBucket godoc
// PUT /api/v1/admin/buckets/:id
func (h *BucketHandler) UpdateBucket(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req model.UpdateBucketRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	b, err := h.bucketService.Update(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, b)
}

// DeleteBucket godoc
// DELETE /api/v1/admin/buckets/:id
func (h *BucketHandler) DeleteBucket(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.bucketService.Delete(c.Request.Context(), id); err != nil {
		respondError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// ListQuestions godoc
// GET /api/v1/admin/buckets/:id/questions
// Supports ?difficulty=easy|medium|hard and ?active_only=true.
func (h *BucketHandler) ListQuestions(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var q bucketQuestionQuery
	if fields := validator.BindQuery(c, &q); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	filter := model.BucketQuestionFilter{ActiveOnly: q.ActiveOnly}
	if q.Difficulty != "" {
		d := model.Difficulty(q.Difficulty)
		filter.Difficulty = &d
	}

	qs, err := h.bucketService.ListQuestions(c.Request.Context(), id, filter)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, qs)
}

// AddQuestion godoc
// POST /api/v1/admin/buckets/:id/questions
func (h *BucketHandler) AddQuestion(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req model.BucketQuestionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	q, b, err := h.bucketService.AddQuestion(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	response.Created(c, gin.H{"question": q, "bucket": b})
}

// UpdateQuestion godoc
// PUT /api/v1/admin/buckets/:id/questions/:question_id
func (h *BucketHandler) UpdateQuestion(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	questionID, ok := parseIDParam(c, "question_id")
	if !ok {
		return
	}

	var req model.BucketQuestionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	q, b, err := h.bucketService.UpdateQuestion(c.Request.Context(), id, questionID, req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"question": q, "bucket": b})
}

// DeactivateQuestion godoc
// DELETE /api/v1/admin/buckets/:id/questions/:question_id
// Questions are deactivated, never removed, so composed quizzes stay traceable.
func (h *BucketHandler) DeactivateQuestion(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	questionID, ok := parseIDParam(c, "question_id")
	if !ok {
		return
	}

	b, err := h.bucketService.DeactivateQuestion(c.Request.Context(), id, questionID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, b)
}

// ImportQuestions godoc
// POST /api/v1/admin/buckets/:id/import
// Multipart upload of a .csv or .xlsx file under the "file" field.
func (h *BucketHandler) ImportQuestions(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxImportBytes+1<<20)
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrFileRequired)
		return
	}
	defer file.Close()

	if header.Size > h.maxImportBytes {
		response.Fail(c, http.StatusBadRequest, response.ErrFileTooLarge)
		return
	}

	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(header.Filename)), ".")
	if format != service.ImportFormatCSV && format != service.ImportFormatXLSX {
		response.Fail(c, http.StatusBadRequest, response.ErrUnsupportedFile)
		return
	}

	report, err := h.bucketService.Import(c.Request.Context(), id, format, file)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, report)
}
