package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exquiz-backend/internal/model"
)

const bucketColumns = `id, name, subject, description, total_questions, easy_count, medium_count, hard_count, created_at, updated_at`

const bucketQuestionColumns = `id, bucket_id, question_text, options, correct_answer, difficulty, points, tags,
	explanation, is_active, created_at, updated_at`

// BucketRepository handles question bucket data access.
// Every write to a bucket's question set recomputes its counts in the same
// transaction.
type BucketRepository struct {
	pool *pgxpool.Pool
}

// NewBucketRepository creates a new BucketRepository.
func NewBucketRepository(pool *pgxpool.Pool) *BucketRepository {
	return &BucketRepository{pool: pool}
}

// List returns every bucket ordered by subject and name.
func (r *BucketRepository) List(ctx context.Context) ([]model.Bucket, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+bucketColumns+` FROM question_buckets ORDER BY subject, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var buckets []model.Bucket
	for rows.Next() {
		b, err := scanBucket(rows)
		if err != nil {
			return nil, err
		}
		buckets = append(buckets, *b)
	}
	return buckets, rows.Err()
}

// Get retrieves a bucket by ID.
func (r *BucketRepository) Get(ctx context.Context, id int) (*model.Bucket, error) {
	b, err := scanBucket(r.pool.QueryRow(ctx, `SELECT `+bucketColumns+` FROM question_buckets WHERE id = $1`, id))
	if err != nil {
		return nil, mapError(err)
	}
	return b, nil
}

// Create inserts a new empty bucket.
func (r *BucketRepository) Create(ctx context.Context, b *model.Bucket) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO question_buckets (name, subject, description)
		 VALUES ($1, $2, $3)
		 RETURNING id, total_questions, easy_count, medium_count, hard_count, created_at, updated_at`,
		b.Name, b.Subject, b.Description,
	).Scan(&b.ID, &b.TotalQuestions, &b.EasyCount, &b.MediumCount, &b.HardCount, &b.CreatedAt, &b.UpdatedAt)
	return mapError(err)
}

// Update changes bucket metadata. Counts are never written here.
func (r *BucketRepository) Update(ctx context.Context, b *model.Bucket) error {
	err := r.pool.QueryRow(ctx,
		`UPDATE question_buckets SET name = $2, subject = $3, description = $4, updated_at = NOW()
		 WHERE id = $1
		 RETURNING total_questions, easy_count, medium_count, hard_count, created_at, updated_at`,
		b.ID, b.Name, b.Subject, b.Description,
	).Scan(&b.TotalQuestions, &b.EasyCount, &b.MediumCount, &b.HardCount, &b.CreatedAt, &b.UpdatedAt)
	return mapError(err)
}

// Delete removes a bucket and, by cascade, its questions.
func (r *BucketRepository) Delete(ctx context.Context, id int) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM question_buckets WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListQuestions returns a bucket's questions, optionally filtered.
func (r *BucketRepository) ListQuestions(ctx context.Context, bucketID int, f model.BucketQuestionFilter) ([]model.BucketQuestion, error) {
	query := `SELECT ` + bucketQuestionColumns + ` FROM bucket_questions WHERE bucket_id = $1`
	args := []any{bucketID}

	if f.Difficulty != nil {
		args = append(args, string(*f.Difficulty))
		query += ` AND difficulty = $` + formatInt(len(args))
	}
	if f.ActiveOnly {
		query += ` AND is_active`
	}
	query += ` ORDER BY id`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.BucketQuestion
	for rows.Next() {
		q, err := scanBucketQuestion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *q)
	}
	return out, rows.Err()
}

// AddQuestions inserts questions into a bucket and returns the bucket with
// its recomputed counts.
func (r *BucketRepository) AddQuestions(ctx context.Context, bucketID int, qs []model.BucketQuestion) (*model.Bucket, error) {
	var bucket *model.Bucket
	err := withTxRetry(ctx, r.pool, func(tx pgx.Tx) error {
		if err := lockBucket(ctx, tx, bucketID); err != nil {
			return err
		}

		for i := range qs {
			q := &qs[i]
			q.BucketID = bucketID
			err := tx.QueryRow(ctx,
				`INSERT INTO bucket_questions (bucket_id, question_text, options, correct_answer, difficulty, points, tags, explanation)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
				 RETURNING id, is_active, created_at, updated_at`,
				bucketID, q.Text, q.Options, q.CorrectAnswer, string(q.Difficulty), q.Points, nonNilTags(q.Tags), q.Explanation,
			).Scan(&q.ID, &q.IsActive, &q.CreatedAt, &q.UpdatedAt)
			if err != nil {
				return fmt.Errorf("insert question %d: %w", i, err)
			}
		}

		var err error
		bucket, err = recomputeCounts(ctx, tx, bucketID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return bucket, nil
}

// UpdateQuestion rewrites a bucket question's content.
func (r *BucketRepository) UpdateQuestion(ctx context.Context, q *model.BucketQuestion) (*model.Bucket, error) {
	var bucket *model.Bucket
	err := withTxRetry(ctx, r.pool, func(tx pgx.Tx) error {
		if err := lockBucket(ctx, tx, q.BucketID); err != nil {
			return err
		}

		err := tx.QueryRow(ctx,
			`UPDATE bucket_questions
			 SET question_text = $3, options = $4, correct_answer = $5, difficulty = $6,
			     points = $7, tags = $8, explanation = $9, updated_at = NOW()
			 WHERE id = $1 AND bucket_id = $2
			 RETURNING is_active, created_at, updated_at`,
			q.ID, q.BucketID, q.Text, q.Options, q.CorrectAnswer, string(q.Difficulty),
			q.Points, nonNilTags(q.Tags), q.Explanation,
		).Scan(&q.IsActive, &q.CreatedAt, &q.UpdatedAt)
		if err != nil {
			return err
		}

		bucket, err = recomputeCounts(ctx, tx, q.BucketID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return bucket, nil
}

// DeactivateQuestion logically deletes a bucket question.
func (r *BucketRepository) DeactivateQuestion(ctx context.Context, bucketID, questionID int) (*model.Bucket, error) {
	var bucket *model.Bucket
	err := withTxRetry(ctx, r.pool, func(tx pgx.Tx) error {
		if err := lockBucket(ctx, tx, bucketID); err != nil {
			return err
		}

		tag, err := tx.Exec(ctx,
			`UPDATE bucket_questions SET is_active = FALSE, updated_at = NOW()
			 WHERE id = $1 AND bucket_id = $2`, questionID, bucketID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}

		bucket, err = recomputeCounts(ctx, tx, bucketID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return bucket, nil
}

// RecomputeCounts rebuilds a bucket's counts from its active questions.
func (r *BucketRepository) RecomputeCounts(ctx context.Context, bucketID int) (*model.Bucket, error) {
	var bucket *model.Bucket
	err := withTxRetry(ctx, r.pool, func(tx pgx.Tx) error {
		if err := lockBucket(ctx, tx, bucketID); err != nil {
			return err
		}
		var err error
		bucket, err = recomputeCounts(ctx, tx, bucketID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return bucket, nil
}

// lockBucket serializes concurrent writers of one bucket's question set.
func lockBucket(ctx context.Context, tx pgx.Tx, bucketID int) error {
	var id int
	return tx.QueryRow(ctx, `SELECT id FROM question_buckets WHERE id = $1 FOR UPDATE`, bucketID).Scan(&id)
}

func recomputeCounts(ctx context.Context, tx pgx.Tx, bucketID int) (*model.Bucket, error) {
	return scanBucket(tx.QueryRow(ctx,
		`WITH c AS (
		     SELECT COUNT(*) FILTER (WHERE difficulty = 'easy')   AS easy,
		            COUNT(*) FILTER (WHERE difficulty = 'medium') AS medium,
		            COUNT(*) FILTER (WHERE difficulty = 'hard')   AS hard
		     FROM bucket_questions
		     WHERE bucket_id = $1 AND is_active
		 )
		 UPDATE question_buckets b
		 SET easy_count = c.easy, medium_count = c.medium, hard_count = c.hard,
		     total_questions = c.easy + c.medium + c.hard, updated_at = NOW()
		 FROM c
		 WHERE b.id = $1
		 RETURNING `+prefixColumns("b", bucketColumns), bucketID))
}

func scanBucket(row pgx.Row) (*model.Bucket, error) {
	b := &model.Bucket{}
	err := row.Scan(&b.ID, &b.Name, &b.Subject, &b.Description, &b.TotalQuestions,
		&b.EasyCount, &b.MediumCount, &b.HardCount, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func scanBucketQuestion(row pgx.Row) (*model.BucketQuestion, error) {
	q := &model.BucketQuestion{}
	var difficulty string
	err := row.Scan(&q.ID, &q.BucketID, &q.Text, &q.Options, &q.CorrectAnswer, &difficulty,
		&q.Points, &q.Tags, &q.Explanation, &q.IsActive, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		return nil, err
	}
	q.Difficulty = model.Difficulty(difficulty)
	return q, nil
}

func prefixColumns(alias, cols string) string {
	parts := strings.Split(cols, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

func nonNilTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
