package service

import (
	"context"
	"time"

	"github.com/stemsi/exquiz-backend/internal/model"
)

// QuizStore persists quizzes and their bucket mappings.
type QuizStore interface {
	GetQuiz(ctx context.Context, id string) (*model.Quiz, error)
	ListSummaries(ctx context.Context) ([]model.QuizSummary, error)
	CreateQuiz(ctx context.Context, q *model.Quiz) error
	CreateComposedQuiz(ctx context.Context, q *model.Quiz, m *model.QuizBucketMapping) error
	UpdateQuiz(ctx context.Context, id string, patch model.QuizPatch) (*model.Quiz, error)
	DeleteQuiz(ctx context.Context, id string) error
	ListBucketMappings(ctx context.Context, quizID string) ([]model.QuizBucketMapping, error)
}

// BucketStore persists question buckets. Writes to a bucket's question set
// return the bucket with recomputed counts.
type BucketStore interface {
	List(ctx context.Context) ([]model.Bucket, error)
	Get(ctx context.Context, id int) (*model.Bucket, error)
	Create(ctx context.Context, b *model.Bucket) error
	Update(ctx context.Context, b *model.Bucket) error
	Delete(ctx context.Context, id int) error
	ListQuestions(ctx context.Context, bucketID int, f model.BucketQuestionFilter) ([]model.BucketQuestion, error)
	AddQuestions(ctx context.Context, bucketID int, qs []model.BucketQuestion) (*model.Bucket, error)
	UpdateQuestion(ctx context.Context, q *model.BucketQuestion) (*model.Bucket, error)
	DeactivateQuestion(ctx context.Context, bucketID, questionID int) (*model.Bucket, error)
}

// ProctoringStore persists sessions and violations.
//
// AppendViolation must increment the session counter atomically with the
// violation insert and terminate strict-mode sessions reaching threshold.
// CloseSession returns changed=false when the session was already terminal.
type ProctoringStore interface {
	CreateSession(ctx context.Context, s *model.ProctoringSession) error
	GetSession(ctx context.Context, sessionID string) (*model.ProctoringSession, error)
	CloseSession(ctx context.Context, sessionID string, status model.SessionStatus, reason string) (*model.ProctoringSession, bool, error)
	AppendViolation(ctx context.Context, v *model.Violation, threshold int, endReason string) (*model.ProctoringSession, error)
	ListViolations(ctx context.Context, sessionID string) ([]model.Violation, error)
	ListSessions(ctx context.Context, f model.SessionFilter) ([]model.ProctoringSession, error)
	AggregateStatistics(ctx context.Context, since *time.Time) (*model.SessionCounts, error)
}

// ResultStore persists quiz results.
type ResultStore interface {
	Insert(ctx context.Context, r *model.QuizResult) error
	ListPaginated(ctx context.Context, quizID string, limit, offset int) ([]model.QuizResult, int, error)
}

// ParticipantStore persists participants.
type ParticipantStore interface {
	ListPaginated(ctx context.Context, search string, limit, offset int) ([]model.Participant, int, error)
	Create(ctx context.Context, p *model.Participant) error
	Update(ctx context.Context, p *model.Participant) error
	Delete(ctx context.Context, id int) error
}

// AdminStore looks up administrators.
type AdminStore interface {
	GetByEmail(ctx context.Context, email string) (*model.Admin, error)
}
