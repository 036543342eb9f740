package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/stemsi/exquiz-backend/internal/metrics"
	"github.com/stemsi/exquiz-backend/internal/model"
	"github.com/stemsi/exquiz-backend/internal/randomizer"
	"github.com/stemsi/exquiz-backend/internal/repository"
)

// Defaults applied to quizzes that do not set them.
const (
	DefaultPointsPerQuestion = 1
	DefaultTimeLimitMinutes  = 30
)

// AssemblyService resolves quizzes into deliverable question sets and
// composes new quizzes from question buckets.
type AssemblyService struct {
	quizzes  QuizStore
	buckets  BucketStore
	variants VariantCache
	newRand  func() *rand.Rand
	log      zerolog.Logger
}

// NewAssemblyService creates a new AssemblyService. variants may be nil, in
// which case every delivery is freshly randomized.
func NewAssemblyService(quizzes QuizStore, buckets BucketStore, variants VariantCache, log zerolog.Logger) *AssemblyService {
	return &AssemblyService{
		quizzes:  quizzes,
		buckets:  buckets,
		variants: variants,
		newRand:  randomizer.NewSource,
		log:      log.With().Str("component", "assembly_service").Logger(),
	}
}

// SetRandSource replaces the generator factory. Used by tests.
func (s *AssemblyService) SetRandSource(f func() *rand.Rand) {
	s.newRand = f
}

// ResolveConfig merges per-request overrides into a stored config field by
// field. A missing stored config means no randomization and no limit. A
// non-positive limit, stored or requested, means no truncation.
func ResolveConfig(stored *model.RandomizationConfig, o model.DeliveryOverrides) model.RandomizationConfig {
	var eff model.RandomizationConfig
	if stored != nil {
		eff.RandomizeQuestions = stored.RandomizeQuestions
		eff.RandomizeOptions = stored.RandomizeOptions
		if stored.QuestionLimit != nil && *stored.QuestionLimit > 0 {
			limit := *stored.QuestionLimit
			eff.QuestionLimit = &limit
		}
	}

	if o.RandomizeQuestions != nil {
		eff.RandomizeQuestions = *o.RandomizeQuestions
	}
	if o.RandomizeOptions != nil {
		eff.RandomizeOptions = *o.RandomizeOptions
	}
	if o.QuestionLimit != nil {
		eff.QuestionLimit = nil
		if limit := *o.QuestionLimit; limit > 0 {
			eff.QuestionLimit = &limit
		}
	}
	return eff
}

// GetDeliverableQuiz resolves a quiz for one participant request.
//
// When sessionID is set and a variant cache is configured, the first variant
// delivered for (quizID, sessionID) is replayed on later calls with the same
// effective config. Unreadable stored questions yield an empty, degraded
// delivery instead of an error; unreadable settings fall back to no
// randomization.
func (s *AssemblyService) GetDeliverableQuiz(ctx context.Context, quizID string, o model.DeliveryOverrides, sessionID string) (*model.Delivery, error) {
	q, err := s.quizzes.GetQuiz(ctx, quizID)
	degraded := false
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrNotFound):
		return nil, ErrQuizNotFound
	case errors.Is(err, repository.ErrMalformedStoredData) && q != nil:
		if repository.QuestionsUnreadable(err) {
			s.log.Warn().Err(err).Str("quiz_id", quizID).Msg("Stored quiz is malformed, delivering degraded response")
			degraded = true
		} else {
			s.log.Warn().Err(err).Str("quiz_id", quizID).Msg("Stored quiz settings are malformed, delivering with defaults")
		}
	default:
		return nil, fmt.Errorf("get quiz: %w", err)
	}

	eff := ResolveConfig(q.Randomization, o)
	d := &model.Delivery{
		QuizID:           q.ID,
		Name:             q.Name,
		Description:      q.Description,
		TimeLimitMinutes: q.TimeLimitMinutes,
		EffectiveConfig:  eff,
		Proctoring:       q.Proctoring,
		Questions:        []model.QuestionForParticipant{},
		Variant:          []model.Question{},
		HasError:         degraded,
	}
	if degraded {
		metrics.QuizDeliveries.WithLabelValues("true", "false").Inc()
		return d, nil
	}

	var variant []model.Question
	if sessionID != "" && s.variants != nil {
		cached, err := s.variants.Get(ctx, quizID, sessionID)
		if err != nil {
			s.log.Warn().Err(err).Str("quiz_id", quizID).Msg("Variant cache read failed")
		} else if cached != nil && sameConfig(cached.Config, eff) {
			variant = cached.Questions
			d.Cached = true
		}
	}

	if variant == nil {
		variant = randomizer.Randomize(withQuizPoints(q.Questions, q.PointsPerQuestion), randomizer.FromConfig(eff), s.newRand())
		if sessionID != "" && s.variants != nil {
			cv := &CachedVariant{Config: eff, Questions: variant, PointsPerQuestion: q.PointsPerQuestion}
			if err := s.variants.Set(ctx, quizID, sessionID, cv); err != nil {
				s.log.Warn().Err(err).Str("quiz_id", quizID).Msg("Variant cache write failed")
			}
		}
	}

	d.Variant = variant
	d.Questions = ForParticipant(variant)
	metrics.QuizDeliveries.WithLabelValues("false", strconv.FormatBool(d.Cached)).Inc()
	return d, nil
}

// CachedVariant returns the variant pinned to (quizID, sessionID), if any.
func (s *AssemblyService) CachedVariant(ctx context.Context, quizID, sessionID string) (*CachedVariant, error) {
	if s.variants == nil || sessionID == "" {
		return nil, nil
	}
	return s.variants.Get(ctx, quizID, sessionID)
}

// withQuizPoints copies qs, giving questions without their own points the
// quiz's points_per_question.
func withQuizPoints(qs []model.Question, pointsPerQuestion int) []model.Question {
	def := orDefault(pointsPerQuestion, DefaultPointsPerQuestion)
	out := make([]model.Question, len(qs))
	for i, q := range qs {
		if q.Points < 1 {
			q.Points = def
		}
		out[i] = q
	}
	return out
}

// ForParticipant strips answer keys from a delivered question set.
func ForParticipant(qs []model.Question) []model.QuestionForParticipant {
	out := make([]model.QuestionForParticipant, len(qs))
	for i, q := range qs {
		out[i] = model.QuestionForParticipant{
			Index:      i,
			Text:       q.Text,
			Options:    q.Options,
			Difficulty: q.Difficulty,
			Points:     q.Points,
			Tags:       q.Tags,
		}
	}
	return out
}

// NormalizeBucketQuestion converts a bucket question into the inline quiz
// shape. The bucket's correct_answer becomes the quiz's correct.
func NormalizeBucketQuestion(bq model.BucketQuestion) model.Question {
	q := model.Question{
		Text:        bq.Text,
		Options:     append([]string(nil), bq.Options...),
		Correct:     bq.CorrectAnswer,
		Difficulty:  bq.Difficulty,
		Points:      bq.Points,
		Explanation: bq.Explanation,
	}
	if bq.Tags != nil {
		q.Tags = append([]string(nil), bq.Tags...)
	}
	if q.Points < 1 {
		q.Points = DefaultPointsPerQuestion
	}
	return q
}

// ComposeFromBucket builds a custom quiz by drawing the requested number of
// active questions per difficulty from a bucket. Draws are uniform without
// replacement within each tier. Tiers are checked easy, medium, then hard and
// the first one the bucket cannot satisfy is reported.
func (s *AssemblyService) ComposeFromBucket(ctx context.Context, req model.ComposeQuizRequest) (*model.Quiz, error) {
	quotas := map[model.Difficulty]int{
		model.DifficultyEasy:   req.EasyCount,
		model.DifficultyMedium: req.MediumCount,
		model.DifficultyHard:   req.HardCount,
	}

	total := 0
	for _, d := range model.Difficulties {
		if quotas[d] < 0 {
			return nil, newValidationError(string(d)+"_count", "must not be negative")
		}
		total += quotas[d]
	}
	if total == 0 {
		return nil, newValidationError("easy_count", "at least one question must be requested")
	}

	if _, err := s.buckets.Get(ctx, req.BucketID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrBucketNotFound
		}
		return nil, fmt.Errorf("get bucket: %w", err)
	}

	// Load every tier first so a deficiency is reported before any draw.
	pools := make(map[model.Difficulty][]model.BucketQuestion, len(model.Difficulties))
	for _, d := range model.Difficulties {
		if quotas[d] == 0 {
			continue
		}
		difficulty := d
		pool, err := s.buckets.ListQuestions(ctx, req.BucketID, model.BucketQuestionFilter{
			Difficulty: &difficulty,
			ActiveOnly: true,
		})
		if err != nil {
			return nil, fmt.Errorf("list %s questions: %w", d, err)
		}
		if len(pool) < quotas[d] {
			return nil, &InsufficientQuestionsError{Difficulty: d, Requested: quotas[d], Available: len(pool)}
		}
		pools[d] = pool
	}

	rng := s.newRand()
	questions := make([]model.Question, 0, total)
	for _, d := range model.Difficulties {
		pool := pools[d]
		for _, idx := range randomizer.Sample(len(pool), quotas[d], rng) {
			questions = append(questions, NormalizeBucketQuestion(pool[idx]))
		}
	}

	quiz := &model.Quiz{
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
	mapping := &model.QuizBucketMapping{
		BucketID:    req.BucketID,
		EasyCount:   req.EasyCount,
		MediumCount: req.MediumCount,
		HardCount:   req.HardCount,
	}

	if err := s.quizzes.CreateComposedQuiz(ctx, quiz, mapping); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrDuplicateID
		}
		return nil, fmt.Errorf("create quiz: %w", err)
	}

	s.log.Info().
		Str("quiz_id", quiz.ID).
		Int("bucket_id", req.BucketID).
		Int("questions", len(questions)).
		Msg("Quiz composed from bucket")
	return quiz, nil
}

func sameConfig(a, b model.RandomizationConfig) bool {
	if a.RandomizeQuestions != b.RandomizeQuestions || a.RandomizeOptions != b.RandomizeOptions {
		return false
	}
	if (a.QuestionLimit == nil) != (b.QuestionLimit == nil) {
		return false
	}
	return a.QuestionLimit == nil || *a.QuestionLimit == *b.QuestionLimit
}

func proctoringConfig(r *model.ProctoringRequest) *model.ProctoringConfig {
	if r == nil {
		return nil
	}
	return &model.ProctoringConfig{
		Enabled:    r.Enabled,
		Level:      model.ProctoringLevel(r.Level),
		StrictMode: r.StrictMode,
	}
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
