package model

import "time"

// Bucket is a subject-tagged pool of reusable questions.
// The counts mirror the active questions per difficulty and are rebuilt on
// every write to the bucket's question set.
type Bucket struct {
	ID             int       `json:"id"`
	Name           string    `json:"name"`
	Subject        string    `json:"subject"`
	Description    string    `json:"description"`
	TotalQuestions int       `json:"total_questions"`
	EasyCount      int       `json:"easy_count"`
	MediumCount    int       `json:"medium_count"`
	HardCount      int       `json:"hard_count"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Available returns the active question count for a tier.
func (b *Bucket) Available(d Difficulty) int {
	switch d {
	case DifficultyEasy:
		return b.EasyCount
	case DifficultyMedium:
		return b.MediumCount
	case DifficultyHard:
		return b.HardCount
	}
	return 0
}

// CreateBucketRequest is the payload for creating a bucket.
type CreateBucketRequest struct {
	Name        string `json:"name" binding:"required,min=3,max=255"`
	Subject     string `json:"subject" binding:"required,min=1,max=100"`
	Description string `json:"description" binding:"omitempty,max=2000"`
}

// UpdateBucketRequest is the payload for updating a bucket.
type UpdateBucketRequest struct {
	Name        string  `json:"name" binding:"omitempty,min=3,max=255"`
	Subject     string  `json:"subject" binding:"omitempty,min=1,max=100"`
	Description *string `json:"description" binding:"omitempty,max=2000"`
}

// BucketQuestionFilter narrows a bucket question listing.
type BucketQuestionFilter struct {
	Difficulty *Difficulty
	ActiveOnly bool
}

// QuizBucketMapping records which bucket and quotas produced a quiz.
type QuizBucketMapping struct {
	ID          int       `json:"id"`
	QuizID      string    `json:"quiz_id"`
	BucketID    int       `json:"bucket_id"`
	EasyCount   int       `json:"easy_count"`
	MediumCount int       `json:"medium_count"`
	HardCount   int       `json:"hard_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// ImportReport summarizes a CSV import into a bucket.
type ImportReport struct {
	Imported int               `json:"imported"`
	Skipped  int               `json:"skipped"`
	Errors   map[string]string `json:"errors,omitempty"`
	Bucket   *Bucket           `json:"bucket"`
}
