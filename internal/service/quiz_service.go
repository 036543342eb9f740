package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/stemsi/exquiz-backend/internal/model"
	"github.com/stemsi/exquiz-backend/internal/repository"
)

// QuizService handles quiz catalogue and admin quiz management.
type QuizService struct {
	quizzes QuizStore
	log     zerolog.Logger
}

// NewQuizService creates a new QuizService.
func NewQuizService(quizzes QuizStore, log zerolog.Logger) *QuizService {
	return &QuizService{
		quizzes: quizzes,
		log:     log.With().Str("component", "quiz_service").Logger(),
	}
}

// ListSummaries returns the public quiz catalogue.
func (s *QuizService) ListSummaries(ctx context.Context) ([]model.QuizSummary, error) {
	summaries, err := s.quizzes.ListSummaries(ctx)
	if err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	if summaries == nil {
		summaries = []model.QuizSummary{}
	}
	return summaries, nil
}

// QuizDetail is the admin view of a quiz.
type QuizDetail struct {
	model.Quiz
	BucketMappings []model.QuizBucketMapping `json:"bucket_mappings"`
	HasError       bool                      `json:"has_error"`
}

// GetQuiz returns a quiz with answer keys and its bucket mappings.
func (s *QuizService) GetQuiz(ctx context.Context, id string) (*QuizDetail, error) {
	q, err := s.quizzes.GetQuiz(ctx, id)
	degraded := false
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrNotFound):
		return nil, ErrQuizNotFound
	case errors.Is(err, repository.ErrMalformedStoredData) && q != nil:
		s.log.Warn().Err(err).Str("quiz_id", id).Msg("Stored quiz is malformed")
		degraded = true
	default:
		return nil, fmt.Errorf("get quiz: %w", err)
	}

	mappings, err := s.quizzes.ListBucketMappings(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list bucket mappings: %w", err)
	}
	if mappings == nil {
		mappings = []model.QuizBucketMapping{}
	}
	if q.Questions == nil {
		q.Questions = []model.Question{}
	}
	return &QuizDetail{Quiz: *q, BucketMappings: mappings, HasError: degraded}, nil
}

// CreateQuiz stores a hand-authored quiz.
func (s *QuizService) CreateQuiz(ctx context.Context, req model.CreateQuizRequest) (*model.Quiz, error) {
	questions, err := QuestionsFromRequest(req.Questions, req.PointsPerQuestion)
	if err != nil {
		return nil, err
	}

	q := &model.Quiz{
		ID:                req.ID,
		Name:              req.Name,
		Description:       req.Description,
		Questions:         questions,
		PointsPerQuestion: orDefault(req.PointsPerQuestion, DefaultPointsPerQuestion),
		TimeLimitMinutes:  orDefault(req.TimeLimitMinutes, DefaultTimeLimitMinutes),
		IsCustom:          true,
		Randomization:     req.Randomization,
		Proctoring:        proctoringConfig(req.Proctoring),
	}
	if err := validateLimit(q.Randomization); err != nil {
		return nil, err
	}

	if err := s.quizzes.CreateQuiz(ctx, q); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrDuplicateID
		}
		return nil, fmt.Errorf("create quiz: %w", err)
	}

	s.log.Info().Str("quiz_id", q.ID).Int("questions", len(q.Questions)).Msg("Quiz created")
	return q, nil
}

// UpdateQuiz applies a partial update.
func (s *QuizService) UpdateQuiz(ctx context.Context, id string, req model.UpdateQuizRequest) (*model.Quiz, error) {
	patch := model.QuizPatch{
		Name:              req.Name,
		Description:       req.Description,
		PointsPerQuestion: req.PointsPerQuestion,
		TimeLimitMinutes:  req.TimeLimitMinutes,
		Randomization:     req.Randomization,
		Proctoring:        proctoringConfig(req.Proctoring),
	}
	if req.Questions != nil {
		ppq := 0
		if req.PointsPerQuestion != nil {
			ppq = *req.PointsPerQuestion
		}
		questions, err := QuestionsFromRequest(req.Questions, ppq)
		if err != nil {
			return nil, err
		}
		patch.Questions = questions
	}
	if err := validateLimit(patch.Randomization); err != nil {
		return nil, err
	}

	return s.update(ctx, id, patch)
}

// ReplaceQuestions swaps a quiz's whole question list.
func (s *QuizService) ReplaceQuestions(ctx context.Context, id string, req model.ReplaceQuestionsRequest) (*model.Quiz, error) {
	questions, err := QuestionsFromRequest(req.Questions, 0)
	if err != nil {
		return nil, err
	}
	return s.update(ctx, id, model.QuizPatch{Questions: questions})
}

// DeleteQuiz removes a custom quiz. Seeded quizzes are protected.
func (s *QuizService) DeleteQuiz(ctx context.Context, id string) error {
	err := s.quizzes.DeleteQuiz(ctx, id)
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrNotFound):
		return ErrQuizNotFound
	case errors.Is(err, repository.ErrProtected):
		return ErrQuizProtected
	default:
		return fmt.Errorf("delete quiz: %w", err)
	}

	s.log.Info().Str("quiz_id", id).Msg("Quiz deleted")
	return nil
}

func (s *QuizService) update(ctx context.Context, id string, patch model.QuizPatch) (*model.Quiz, error) {
	q, err := s.quizzes.UpdateQuiz(ctx, id, patch)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrQuizNotFound
		}
		// The write went through; only an untouched column is unreadable.
		if errors.Is(err, repository.ErrMalformedStoredData) && q != nil {
			s.log.Warn().Err(err).Str("quiz_id", id).Msg("Updated quiz still holds malformed data")
			return q, nil
		}
		return nil, fmt.Errorf("update quiz: %w", err)
	}
	return q, nil
}

// QuestionsFromRequest converts inline question payloads, enforcing that
// every answer index addresses one of its options. Questions without points
// take pointsPerQuestion; zero leaves them to the quiz default at delivery.
func QuestionsFromRequest(reqs []model.QuestionRequest, pointsPerQuestion int) ([]model.Question, error) {
	out := make([]model.Question, 0, len(reqs))
	fields := make(map[string]string)

	for i, r := range reqs {
		if r.Correct == nil || *r.Correct < 0 || *r.Correct >= len(r.Options) {
			fields[fmt.Sprintf("questions[%d].correct", i)] = "must address one of the options"
			continue
		}
		difficulty := model.Difficulty(r.Difficulty)
		if difficulty == "" {
			difficulty = model.DifficultyMedium
		}
		out = append(out, model.Question{
			Text:        r.Text,
			Options:     append([]string(nil), r.Options...),
			Correct:     *r.Correct,
			Difficulty:  difficulty,
			Points:      orDefault(r.Points, pointsPerQuestion),
			Tags:        r.Tags,
			Explanation: r.Explanation,
		})
	}

	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}
	return out, nil
}

func validateLimit(cfg *model.RandomizationConfig) error {
	if cfg != nil && cfg.QuestionLimit != nil && *cfg.QuestionLimit < 0 {
		return newValidationError("randomization_settings.question_limit", "must not be negative")
	}
	return nil
}
