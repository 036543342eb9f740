package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exquiz-backend/internal/config"
	"github.com/stemsi/exquiz-backend/internal/metrics"
	"github.com/stemsi/exquiz-backend/internal/model"
	"github.com/stemsi/exquiz-backend/internal/repository"
)

// ResultQueue hands results to the write-behind worker.
type ResultQueue interface {
	Enqueue(ctx context.Context, r *model.QuizResult) error
}

// VariantSource looks up the variant delivered to an attempt.
type VariantSource interface {
	CachedVariant(ctx context.Context, quizID, sessionID string) (*CachedVariant, error)
}

// RedisResultQueue pushes results onto the persist queue list.
type RedisResultQueue struct {
	rdb *redis.Client
}

// NewRedisResultQueue creates a RedisResultQueue.
func NewRedisResultQueue(rdb *redis.Client) *RedisResultQueue {
	return &RedisResultQueue{rdb: rdb}
}

func (q *RedisResultQueue) Enqueue(ctx context.Context, r *model.QuizResult) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	return q.rdb.RPush(ctx, config.WorkerKey.PersistResultsQueue, payload).Err()
}

// ResultService records finished attempts.
type ResultService struct {
	results  ResultStore
	quizzes  QuizStore
	variants VariantSource
	queue    ResultQueue
	now      func() time.Time
	log      zerolog.Logger
}

// NewResultService creates a new ResultService. variants and queue may be
// nil; without a queue results are written synchronously.
func NewResultService(results ResultStore, quizzes QuizStore, variants VariantSource, queue ResultQueue, log zerolog.Logger) *ResultService {
	return &ResultService{
		results:  results,
		quizzes:  quizzes,
		variants: variants,
		queue:    queue,
		now:      time.Now,
		log:      log.With().Str("component", "result_service").Logger(),
	}
}

// Submit accepts a finished attempt. When the attempt's delivered variant is
// still cached the answers are graded against it and the client's score is
// ignored; otherwise the supplied score is recorded as is.
func (s *ResultService) Submit(ctx context.Context, req model.SubmitResultRequest) (*model.QuizResult, error) {
	res := &model.QuizResult{
		QuizID:           req.QuizID,
		ParticipantName:  req.ParticipantName,
		ParticipantEmail: req.ParticipantEmail,
		SessionID:        req.SessionID,
		Answers:          req.Answers,
		Score:            req.Score,
		TotalPoints:      req.TotalPoints,
		SubmittedAt:      s.now().UTC(),
	}
	if res.Answers == nil {
		res.Answers = []int{}
	}

	var variant *CachedVariant
	if s.variants != nil && req.SessionID != "" && len(req.Answers) > 0 {
		v, err := s.variants.CachedVariant(ctx, req.QuizID, req.SessionID)
		if err != nil {
			s.log.Warn().Err(err).Str("quiz_id", req.QuizID).Msg("Variant lookup failed, trusting submitted score")
		}
		variant = v
	}

	if variant != nil {
		res.Score, res.TotalPoints = Grade(variant.Questions, req.Answers, variant.PointsPerQuestion)
		res.Graded = true
	} else {
		if _, err := s.quizzes.GetQuiz(ctx, req.QuizID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, ErrQuizNotFound
			}
			if !errors.Is(err, repository.ErrMalformedStoredData) {
				return nil, fmt.Errorf("get quiz: %w", err)
			}
		}
		if res.Score > res.TotalPoints {
			return nil, newValidationError("score", "must not exceed total_points")
		}
	}

	if s.queue != nil {
		err := s.queue.Enqueue(ctx, res)
		if err == nil {
			metrics.ResultsPersisted.WithLabelValues("queued").Inc()
			return res, nil
		}
		s.log.Warn().Err(err).Msg("Result queue unavailable, writing directly")
	}

	if err := s.results.Insert(ctx, res); err != nil {
		return nil, fmt.Errorf("insert result: %w", err)
	}
	metrics.ResultsPersisted.WithLabelValues("direct").Inc()
	return res, nil
}

// List returns results newest first, optionally for one quiz.
func (s *ResultService) List(ctx context.Context, quizID string, page, perPage int) ([]model.QuizResult, int, error) {
	results, total, err := s.results.ListPaginated(ctx, quizID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, fmt.Errorf("list results: %w", err)
	}
	if results == nil {
		results = []model.QuizResult{}
	}
	return results, total, nil
}

// Grade scores answers against a delivered variant. answers[i] is the option
// index chosen for question i as delivered; missing or out-of-range answers
// score nothing. Questions without points are worth pointsPerQuestion.
func Grade(variant []model.Question, answers []int, pointsPerQuestion int) (score, total int) {
	def := orDefault(pointsPerQuestion, DefaultPointsPerQuestion)
	for i, q := range variant {
		points := q.Points
		if points < 1 {
			points = def
		}
		total += points
		if i < len(answers) && answers[i] == q.Correct && q.HasValidAnswer() {
			score += points
		}
	}
	return score, total
}
