package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exquiz-backend/internal/model"
)

// ResultRepository handles quiz result data access.
type ResultRepository struct {
	pool *pgxpool.Pool
}

// NewResultRepository creates a new ResultRepository.
func NewResultRepository(pool *pgxpool.Pool) *ResultRepository {
	return &ResultRepository{pool: pool}
}

// Insert persists a single result.
func (r *ResultRepository) Insert(ctx context.Context, res *model.QuizResult) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO quiz_results (quiz_id, participant_name, participant_email, session_id,
		                           answers, score, total_points, graded, submitted_at)
		 VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, $9)
		 RETURNING id`,
		res.QuizID, res.ParticipantName, res.ParticipantEmail, res.SessionID,
		nonNilAnswers(res.Answers), res.Score, res.TotalPoints, res.Graded, res.SubmittedAt,
	).Scan(&res.ID)
}

// InsertBatch bulk-loads results with COPY.
func (r *ResultRepository) InsertBatch(ctx context.Context, results []*model.QuizResult) (int64, error) {
	rows := make([][]any, 0, len(results))
	for _, res := range results {
		var sessionID any
		if res.SessionID != "" {
			sessionID = res.SessionID
		}
		rows = append(rows, []any{
			res.QuizID, res.ParticipantName, res.ParticipantEmail, sessionID,
			nonNilAnswers(res.Answers), res.Score, res.TotalPoints, res.Graded, res.SubmittedAt,
		})
	}

	return r.pool.CopyFrom(
		ctx,
		pgx.Identifier{"quiz_results"},
		[]string{"quiz_id", "participant_name", "participant_email", "session_id",
			"answers", "score", "total_points", "graded", "submitted_at"},
		pgx.CopyFromRows(rows),
	)
}

// ListPaginated returns results newest first, optionally for one quiz.
func (r *ResultRepository) ListPaginated(ctx context.Context, quizID string, limit, offset int) ([]model.QuizResult, int, error) {
	// 1. Get total count
	where := ``
	var args []any
	if quizID != "" {
		where = ` WHERE quiz_id = $1`
		args = append(args, quizID)
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM quiz_results`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	// 2. Get paginated data
	query := `SELECT id, quiz_id, participant_name, participant_email, COALESCE(session_id, ''),
	                 answers, score, total_points, graded, submitted_at
	          FROM quiz_results` + where +
		` ORDER BY submitted_at DESC LIMIT $` + formatInt(len(args)+1) + ` OFFSET $` + formatInt(len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var results []model.QuizResult
	for rows.Next() {
		var res model.QuizResult
		if err := rows.Scan(&res.ID, &res.QuizID, &res.ParticipantName, &res.ParticipantEmail, &res.SessionID,
			&res.Answers, &res.Score, &res.TotalPoints, &res.Graded, &res.SubmittedAt); err != nil {
			return nil, 0, err
		}
		results = append(results, res)
	}
	return results, total, rows.Err()
}

func nonNilAnswers(a []int) []int {
	if a == nil {
		return []int{}
	}
	return a
}
