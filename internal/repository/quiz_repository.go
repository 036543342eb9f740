package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exquiz-backend/internal/model"
)

const quizColumns = `id, name, description, questions, points_per_question, time_limit_minutes,
	is_custom, randomization_settings, proctoring_settings, created_at, updated_at`

// QuizRepository handles quiz data access.
type QuizRepository struct {
	pool *pgxpool.Pool
}

// NewQuizRepository creates a new QuizRepository.
func NewQuizRepository(pool *pgxpool.Pool) *QuizRepository {
	return &QuizRepository{pool: pool}
}

// GetQuiz retrieves a quiz by ID. When a stored JSON column cannot be decoded
// the quiz is still returned (with the damaged part zeroed) together with an
// error wrapping ErrMalformedStoredData.
func (r *QuizRepository) GetQuiz(ctx context.Context, id string) (*model.Quiz, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+quizColumns+` FROM quizzes WHERE id = $1`, id)
	q, err := scanQuiz(row)
	if err != nil && q == nil {
		return nil, mapError(err)
	}
	return q, err
}

// ListQuizzes returns every quiz ordered by name. Quizzes with damaged
// question payloads are returned with an empty question list.
func (r *QuizRepository) ListQuizzes(ctx context.Context) ([]model.Quiz, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+quizColumns+` FROM quizzes ORDER BY is_custom, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var quizzes []model.Quiz
	for rows.Next() {
		q, err := scanQuiz(rows)
		if q == nil {
			return nil, err
		}
		quizzes = append(quizzes, *q)
	}
	return quizzes, rows.Err()
}

// ListSummaries returns the catalogue without decoding question payloads.
func (r *QuizRepository) ListSummaries(ctx context.Context) ([]model.QuizSummary, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, description,
		        CASE WHEN jsonb_typeof(questions) = 'array' THEN jsonb_array_length(questions) ELSE 0 END,
		        time_limit_minutes, is_custom, proctoring_settings
		 FROM quizzes
		 ORDER BY is_custom, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.QuizSummary
	for rows.Next() {
		var s model.QuizSummary
		var proctoring []byte
		if err := rows.Scan(&s.ID, &s.Name, &s.Description, &s.QuestionCount,
			&s.TimeLimitMinutes, &s.IsCustom, &proctoring); err != nil {
			return nil, err
		}
		if len(proctoring) > 0 {
			var pc model.ProctoringConfig
			if json.Unmarshal(proctoring, &pc) == nil {
				s.Proctoring = &pc
			}
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// CreateQuiz inserts a new quiz. Returns ErrDuplicate if the ID is taken.
func (r *QuizRepository) CreateQuiz(ctx context.Context, q *model.Quiz) error {
	return mapError(insertQuiz(ctx, r.pool, q))
}

// CreateComposedQuiz inserts a quiz and the bucket mapping that produced it
// in a single transaction.
func (r *QuizRepository) CreateComposedQuiz(ctx context.Context, q *model.Quiz, m *model.QuizBucketMapping) error {
	return withTxRetry(ctx, r.pool, func(tx pgx.Tx) error {
		if err := insertQuiz(ctx, tx, q); err != nil {
			return err
		}
		m.QuizID = q.ID
		return tx.QueryRow(ctx,
			`INSERT INTO quiz_bucket_mappings (quiz_id, bucket_id, easy_count, medium_count, hard_count)
			 VALUES ($1, $2, $3, $4, $5)
			 RETURNING id, created_at`,
			m.QuizID, m.BucketID, m.EasyCount, m.MediumCount, m.HardCount,
		).Scan(&m.ID, &m.CreatedAt)
	})
}

// UpdateQuiz applies a patch and returns the updated quiz.
func (r *QuizRepository) UpdateQuiz(ctx context.Context, id string, patch model.QuizPatch) (*model.Quiz, error) {
	var sets []string
	args := []any{id}

	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if patch.Name != nil {
		add("name", *patch.Name)
	}
	if patch.Description != nil {
		add("description", *patch.Description)
	}
	if patch.Questions != nil {
		raw, err := json.Marshal(patch.Questions)
		if err != nil {
			return nil, fmt.Errorf("marshal questions: %w", err)
		}
		add("questions", raw)
	}
	if patch.PointsPerQuestion != nil {
		add("points_per_question", *patch.PointsPerQuestion)
	}
	if patch.TimeLimitMinutes != nil {
		add("time_limit_minutes", *patch.TimeLimitMinutes)
	}
	if patch.Randomization != nil {
		raw, _ := json.Marshal(patch.Randomization)
		add("randomization_settings", raw)
	}
	if patch.Proctoring != nil {
		raw, _ := json.Marshal(patch.Proctoring)
		add("proctoring_settings", raw)
	}

	if len(sets) == 0 {
		return r.GetQuiz(ctx, id)
	}

	query := `UPDATE quizzes SET ` + strings.Join(sets, ", ") + `, updated_at = NOW()
	          WHERE id = $1 RETURNING ` + quizColumns
	q, err := scanQuiz(r.pool.QueryRow(ctx, query, args...))
	if err != nil && q == nil {
		return nil, mapError(err)
	}
	return q, err
}

// DeleteQuiz removes a custom quiz. Seeded quizzes yield ErrProtected.
func (r *QuizRepository) DeleteQuiz(ctx context.Context, id string) error {
	var isCustom bool
	err := r.pool.QueryRow(ctx, `SELECT is_custom FROM quizzes WHERE id = $1`, id).Scan(&isCustom)
	if err != nil {
		return mapError(err)
	}
	if !isCustom {
		return ErrProtected
	}

	tag, err := r.pool.Exec(ctx, `DELETE FROM quizzes WHERE id = $1 AND is_custom`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListBucketMappings returns the bucket mappings recorded for a quiz.
func (r *QuizRepository) ListBucketMappings(ctx context.Context, quizID string) ([]model.QuizBucketMapping, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, quiz_id, bucket_id, easy_count, medium_count, hard_count, created_at
		 FROM quiz_bucket_mappings WHERE quiz_id = $1 ORDER BY id`, quizID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.QuizBucketMapping
	for rows.Next() {
		var m model.QuizBucketMapping
		if err := rows.Scan(&m.ID, &m.QuizID, &m.BucketID, &m.EasyCount, &m.MediumCount, &m.HardCount, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

type execQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func insertQuiz(ctx context.Context, db execQuerier, q *model.Quiz) error {
	questions, err := json.Marshal(nonNilQuestions(q.Questions))
	if err != nil {
		return fmt.Errorf("marshal questions: %w", err)
	}
	randomization, err := marshalNullable(q.Randomization)
	if err != nil {
		return err
	}
	proctoring, err := marshalNullable(q.Proctoring)
	if err != nil {
		return err
	}

	return db.QueryRow(ctx,
		`INSERT INTO quizzes (id, name, description, questions, points_per_question, time_limit_minutes,
		                      is_custom, randomization_settings, proctoring_settings)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING created_at, updated_at`,
		q.ID, q.Name, q.Description, questions, q.PointsPerQuestion, q.TimeLimitMinutes,
		q.IsCustom, randomization, proctoring,
	).Scan(&q.CreatedAt, &q.UpdatedAt)
}

// scanQuiz decodes a quiz row. A nil quiz means the row itself could not be
// read; a non-nil quiz with an error means a JSON column was damaged.
func scanQuiz(row pgx.Row) (*model.Quiz, error) {
	var (
		q                                    model.Quiz
		questions, randomization, proctoring []byte
	)
	if err := row.Scan(&q.ID, &q.Name, &q.Description, &questions, &q.PointsPerQuestion,
		&q.TimeLimitMinutes, &q.IsCustom, &randomization, &proctoring, &q.CreatedAt, &q.UpdatedAt); err != nil {
		return nil, err
	}

	var damaged []string
	if err := json.Unmarshal(questions, &q.Questions); err != nil {
		q.Questions = nil
		damaged = append(damaged, "questions")
	}
	if len(randomization) > 0 {
		var rc model.RandomizationConfig
		if err := json.Unmarshal(randomization, &rc); err != nil {
			damaged = append(damaged, "randomization_settings")
		} else {
			q.Randomization = &rc
		}
	}
	if len(proctoring) > 0 {
		var pc model.ProctoringConfig
		if err := json.Unmarshal(proctoring, &pc); err != nil {
			damaged = append(damaged, "proctoring_settings")
		} else {
			q.Proctoring = &pc
		}
	}

	if len(damaged) > 0 {
		return &q, &MalformedQuizError{QuizID: q.ID, Columns: damaged}
	}
	return &q, nil
}

func marshalNullable(v any) ([]byte, error) {
	switch t := v.(type) {
	case *model.RandomizationConfig:
		if t == nil {
			return nil, nil
		}
	case *model.ProctoringConfig:
		if t == nil {
			return nil, nil
		}
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal settings: %w", err)
	}
	return raw, nil
}

func nonNilQuestions(qs []model.Question) []model.Question {
	if qs == nil {
		return []model.Question{}
	}
	return qs
}
