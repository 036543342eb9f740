package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/stemsi/exquiz-backend/internal/model"
	"github.com/stemsi/exquiz-backend/internal/repository"
	"github.com/stemsi/exquiz-backend/internal/validator"
	"github.com/xuri/excelize/v2"
)

// Import file formats.
const (
	ImportFormatCSV  = "csv"
	ImportFormatXLSX = "xlsx"
)

// importColumns are the required spreadsheet headers, case-insensitive.
var importColumns = []string{"question", "option_a", "option_b", "option_c", "option_d", "correct_answer", "difficulty"}

// BucketService handles question bucket management.
type BucketService struct {
	buckets BucketStore
	log     zerolog.Logger
}

// NewBucketService creates a new BucketService.
func NewBucketService(buckets BucketStore, log zerolog.Logger) *BucketService {
	return &BucketService{
		buckets: buckets,
		log:     log.With().Str("component", "bucket_service").Logger(),
	}
}

// List returns every bucket.
func (s *BucketService) List(ctx context.Context) ([]model.Bucket, error) {
	buckets, err := s.buckets.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list buckets: %w", err)
	}
	if buckets == nil {
		buckets = []model.Bucket{}
	}
	return buckets, nil
}

// Get returns one bucket.
func (s *BucketService) Get(ctx context.Context, id int) (*model.Bucket, error) {
	b, err := s.buckets.Get(ctx, id)
	if err != nil {
		return nil, mapBucketErr(err, "get bucket")
	}
	return b, nil
}

// Create adds an empty bucket.
func (s *BucketService) Create(ctx context.Context, req model.CreateBucketRequest) (*model.Bucket, error) {
	b := &model.Bucket{Name: req.Name, Subject: req.Subject, Description: req.Description}
	if err := s.buckets.Create(ctx, b); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrDuplicateID
		}
		return nil, fmt.Errorf("create bucket: %w", err)
	}
	s.log.Info().Int("bucket_id", b.ID).Str("name", b.Name).Msg("Bucket created")
	return b, nil
}

// Update changes bucket metadata.
func (s *BucketService) Update(ctx context.Context, id int, req model.UpdateBucketRequest) (*model.Bucket, error) {
	b, err := s.buckets.Get(ctx, id)
	if err != nil {
		return nil, mapBucketErr(err, "get bucket")
	}
	if req.Name != "" {
		b.Name = req.Name
	}
	if req.Subject != "" {
		b.Subject = req.Subject
	}
	if req.Description != nil {
		b.Description = *req.Description
	}
	if err := s.buckets.Update(ctx, b); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrDuplicateID
		}
		return nil, mapBucketErr(err, "update bucket")
	}
	return b, nil
}

// Delete removes a bucket with its questions. Quizzes composed from it keep
// their snapshotted questions.
func (s *BucketService) Delete(ctx context.Context, id int) error {
	if err := s.buckets.Delete(ctx, id); err != nil {
		return mapBucketErr(err, "delete bucket")
	}
	s.log.Info().Int("bucket_id", id).Msg("Bucket deleted")
	return nil
}

// ListQuestions returns a bucket's questions.
func (s *BucketService) ListQuestions(ctx context.Context, bucketID int, f model.BucketQuestionFilter) ([]model.BucketQuestion, error) {
	if f.Difficulty != nil && !f.Difficulty.Valid() {
		return nil, newValidationError("difficulty", "must be one of easy, medium, hard")
	}
	if _, err := s.buckets.Get(ctx, bucketID); err != nil {
		return nil, mapBucketErr(err, "get bucket")
	}
	qs, err := s.buckets.ListQuestions(ctx, bucketID, f)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	if qs == nil {
		qs = []model.BucketQuestion{}
	}
	return qs, nil
}

// AddQuestion adds one question and returns it with the updated bucket.
func (s *BucketService) AddQuestion(ctx context.Context, bucketID int, req model.BucketQuestionRequest) (*model.BucketQuestion, *model.Bucket, error) {
	q, err := bucketQuestionFromRequest(req)
	if err != nil {
		return nil, nil, err
	}
	qs := []model.BucketQuestion{*q}
	b, err := s.buckets.AddQuestions(ctx, bucketID, qs)
	if err != nil {
		return nil, nil, mapBucketErr(err, "add question")
	}
	return &qs[0], b, nil
}

// UpdateQuestion rewrites a bucket question.
func (s *BucketService) UpdateQuestion(ctx context.Context, bucketID, questionID int, req model.BucketQuestionRequest) (*model.BucketQuestion, *model.Bucket, error) {
	q, err := bucketQuestionFromRequest(req)
	if err != nil {
		return nil, nil, err
	}
	q.ID = questionID
	q.BucketID = bucketID

	b, err := s.buckets.UpdateQuestion(ctx, q)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Either the bucket or the question is gone.
			if _, gerr := s.buckets.Get(ctx, bucketID); gerr != nil {
				return nil, nil, mapBucketErr(gerr, "get bucket")
			}
			return nil, nil, ErrQuestionNotFound
		}
		return nil, nil, fmt.Errorf("update question: %w", err)
	}
	return q, b, nil
}

// DeactivateQuestion logically deletes a question.
func (s *BucketService) DeactivateQuestion(ctx context.Context, bucketID, questionID int) (*model.Bucket, error) {
	b, err := s.buckets.DeactivateQuestion(ctx, bucketID, questionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			if _, gerr := s.buckets.Get(ctx, bucketID); gerr != nil {
				return nil, mapBucketErr(gerr, "get bucket")
			}
			return nil, ErrQuestionNotFound
		}
		return nil, fmt.Errorf("deactivate question: %w", err)
	}
	return b, nil
}

// Import reads questions from a CSV or XLSX file into a bucket. Valid rows
// are inserted in one transaction; invalid rows are skipped and reported by
// their 1-based line number.
func (s *BucketService) Import(ctx context.Context, bucketID int, format string, r io.Reader) (*model.ImportReport, error) {
	if _, err := s.buckets.Get(ctx, bucketID); err != nil {
		return nil, mapBucketErr(err, "get bucket")
	}

	var (
		records [][]string
		err     error
	)
	switch format {
	case ImportFormatCSV:
		records, err = readCSV(r)
	case ImportFormatXLSX:
		records, err = readXLSX(r)
	default:
		return nil, newValidationError("file", "must be a .csv or .xlsx file")
	}
	if err != nil {
		return nil, newValidationError("file", err.Error())
	}

	qs, report, err := parseImportRecords(records)
	if err != nil {
		return nil, err
	}

	if len(qs) > 0 {
		b, err := s.buckets.AddQuestions(ctx, bucketID, qs)
		if err != nil {
			return nil, mapBucketErr(err, "import questions")
		}
		report.Bucket = b
	} else {
		b, err := s.buckets.Get(ctx, bucketID)
		if err != nil {
			return nil, mapBucketErr(err, "get bucket")
		}
		report.Bucket = b
	}

	s.log.Info().
		Int("bucket_id", bucketID).
		Int("imported", report.Imported).
		Int("skipped", report.Skipped).
		Msg("Bucket import finished")
	return report, nil
}

func readCSV(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1
	return cr.ReadAll()
}

func readXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, errors.New("workbook has no sheets")
	}
	return f.GetRows(sheet)
}

// parseImportRecords maps spreadsheet rows onto bucket questions. The first
// record is the header; columns may appear in any order.
func parseImportRecords(records [][]string) ([]model.BucketQuestion, *model.ImportReport, error) {
	if len(records) == 0 {
		return nil, nil, newValidationError("file", "file is empty")
	}

	idx := make(map[string]int)
	for i, h := range records[0] {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, col := range importColumns {
		if _, ok := idx[col]; !ok {
			return nil, nil, newValidationError("file", "missing column: "+col)
		}
	}

	get := func(rec []string, col string) string {
		i, ok := idx[col]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	report := &model.ImportReport{Errors: make(map[string]string)}
	var qs []model.BucketQuestion

	for n, rec := range records[1:] {
		line := strconv.Itoa(n + 2)
		if isBlank(rec) {
			continue
		}

		var options []string
		for _, col := range []string{"option_a", "option_b", "option_c", "option_d", "option_e", "option_f"} {
			if v := get(rec, col); v != "" {
				options = append(options, v)
			}
		}

		correct, err := parseAnswer(get(rec, "correct_answer"), options)
		if err != nil {
			report.Skipped++
			report.Errors[line] = err.Error()
			continue
		}

		req := model.BucketQuestionRequest{
			Text:          get(rec, "question"),
			Options:       options,
			CorrectAnswer: &correct,
			Difficulty:    strings.ToLower(get(rec, "difficulty")),
			Explanation:   get(rec, "explanation"),
		}
		if p := get(rec, "points"); p != "" {
			points, err := strconv.Atoi(p)
			if err != nil {
				report.Skipped++
				report.Errors[line] = "points must be a number"
				continue
			}
			req.Points = points
		}
		if t := get(rec, "tags"); t != "" {
			for _, tag := range strings.Split(t, ";") {
				if tag = strings.TrimSpace(tag); tag != "" {
					req.Tags = append(req.Tags, tag)
				}
			}
		}

		if fields := validator.Struct(&req); fields != nil {
			report.Skipped++
			report.Errors[line] = joinFieldErrors(fields)
			continue
		}
		q, err := bucketQuestionFromRequest(req)
		if err != nil {
			report.Skipped++
			report.Errors[line] = err.Error()
			continue
		}
		qs = append(qs, *q)
	}

	report.Imported = len(qs)
	if len(report.Errors) == 0 {
		report.Errors = nil
	}
	return qs, report, nil
}

// parseAnswer accepts a letter (A-F), a 0-based index, or the exact text of
// one of the options.
func parseAnswer(raw string, options []string) (int, error) {
	if raw == "" {
		return 0, errors.New("correct_answer is required")
	}
	if len(raw) == 1 {
		c := strings.ToUpper(raw)[0]
		if c >= 'A' && c <= 'F' {
			i := int(c - 'A')
			if i < len(options) {
				return i, nil
			}
			return 0, fmt.Errorf("correct_answer %s has no matching option", raw)
		}
	}
	if i, err := strconv.Atoi(raw); err == nil {
		if i >= 0 && i < len(options) {
			return i, nil
		}
		return 0, fmt.Errorf("correct_answer %d is out of range", i)
	}
	for i, o := range options {
		if o == raw {
			return i, nil
		}
	}
	return 0, errors.New("correct_answer does not match any option")
}

func bucketQuestionFromRequest(req model.BucketQuestionRequest) (*model.BucketQuestion, error) {
	if req.CorrectAnswer == nil || *req.CorrectAnswer < 0 || *req.CorrectAnswer >= len(req.Options) {
		return nil, newValidationError("correct_answer", "must address one of the options")
	}
	difficulty := model.Difficulty(req.Difficulty)
	if !difficulty.Valid() {
		return nil, newValidationError("difficulty", "must be one of easy, medium, hard")
	}
	return &model.BucketQuestion{
		Text:          req.Text,
		Options:       append([]string(nil), req.Options...),
		CorrectAnswer: *req.CorrectAnswer,
		Difficulty:    difficulty,
		Points:        orDefault(req.Points, DefaultPointsPerQuestion),
		Tags:          req.Tags,
		Explanation:   req.Explanation,
		IsActive:      true,
	}, nil
}

func mapBucketErr(err error, op string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrBucketNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isBlank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func joinFieldErrors(fields map[string]string) string {
	ve := &ValidationError{Fields: fields}
	return strings.TrimPrefix(ve.Error(), "validation failed: ")
}
