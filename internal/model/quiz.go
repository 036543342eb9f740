package model

import "time"

// RandomizationConfig controls how a quiz is altered on each delivery.
type RandomizationConfig struct {
	RandomizeQuestions bool `json:"randomize_questions"`
	RandomizeOptions   bool `json:"randomize_options"`
	QuestionLimit      *int `json:"question_limit"`
}

// ProctoringLevel is the monitoring intensity requested for an attempt.
type ProctoringLevel string

const (
	ProctoringLevelBasic    ProctoringLevel = "basic"
	ProctoringLevelStandard ProctoringLevel = "standard"
	ProctoringLevelAdvanced ProctoringLevel = "advanced"
)

// ProctoringConfig is the quiz-level proctoring default.
type ProctoringConfig struct {
	Enabled    bool            `json:"enabled"`
	Level      ProctoringLevel `json:"level,omitempty"`
	StrictMode bool            `json:"strict_mode"`
}

// Quiz is a named, ordered set of inline questions.
// Seeded defaults have IsCustom=false and cannot be deleted.
type Quiz struct {
	ID                string               `json:"id"`
	Name              string               `json:"name"`
	Description       string               `json:"description"`
	Questions         []Question           `json:"questions"`
	PointsPerQuestion int                  `json:"points_per_question"`
	TimeLimitMinutes  int                  `json:"time_limit_minutes"`
	IsCustom          bool                 `json:"is_custom"`
	Randomization     *RandomizationConfig `json:"randomization_settings,omitempty"`
	Proctoring        *ProctoringConfig    `json:"proctoring_settings,omitempty"`
	CreatedAt         time.Time            `json:"created_at"`
	UpdatedAt         time.Time            `json:"updated_at"`
}

// QuizSummary is the catalogue view of a quiz.
type QuizSummary struct {
	ID               string            `json:"id"`
	Name             string            `json:"name"`
	Description      string            `json:"description"`
	QuestionCount    int               `json:"question_count"`
	TimeLimitMinutes int               `json:"time_limit_minutes"`
	IsCustom         bool              `json:"is_custom"`
	Proctoring       *ProctoringConfig `json:"proctoring_settings,omitempty"`
}

// QuizPatch carries the fields an admin update may change. Nil means unchanged.
type QuizPatch struct {
	Name              *string
	Description       *string
	Questions         []Question
	PointsPerQuestion *int
	TimeLimitMinutes  *int
	Randomization     *RandomizationConfig
	Proctoring        *ProctoringConfig
}

// CreateQuizRequest is the payload for a hand-authored quiz.
type CreateQuizRequest struct {
	ID                string               `json:"id" binding:"required,min=2,max=100,slug"`
	Name              string               `json:"name" binding:"required,min=3,max=255"`
	Description       string               `json:"description" binding:"omitempty,max=2000"`
	Questions         []QuestionRequest    `json:"questions" binding:"omitempty,dive"`
	PointsPerQuestion int                  `json:"points_per_question" binding:"omitempty,min=1,max=100"`
	TimeLimitMinutes  int                  `json:"time_limit_minutes" binding:"omitempty,min=1,max=480"`
	Randomization     *RandomizationConfig `json:"randomization_settings"`
	Proctoring        *ProctoringRequest   `json:"proctoring_settings"`
}

// UpdateQuizRequest is the payload for patching a quiz.
type UpdateQuizRequest struct {
	Name              *string              `json:"name" binding:"omitempty,min=3,max=255"`
	Description       *string              `json:"description" binding:"omitempty,max=2000"`
	Questions         []QuestionRequest    `json:"questions" binding:"omitempty,dive"`
	PointsPerQuestion *int                 `json:"points_per_question" binding:"omitempty,min=1,max=100"`
	TimeLimitMinutes  *int                 `json:"time_limit_minutes" binding:"omitempty,min=1,max=480"`
	Randomization     *RandomizationConfig `json:"randomization_settings"`
	Proctoring        *ProctoringRequest   `json:"proctoring_settings"`
}

// ReplaceQuestionsRequest is the payload for bulk replacing a quiz's questions.
type ReplaceQuestionsRequest struct {
	Questions []QuestionRequest `json:"questions" binding:"required,dive"`
}

// ProctoringRequest is the wire form of ProctoringConfig.
type ProctoringRequest struct {
	Enabled    bool   `json:"enabled"`
	Level      string `json:"level" binding:"omitempty,oneof=basic standard advanced"`
	StrictMode bool   `json:"strict_mode"`
}

// ComposeQuizRequest is the payload for composing a quiz from a bucket.
type ComposeQuizRequest struct {
	ID                string               `json:"id" binding:"required,min=2,max=100,slug"`
	Name              string               `json:"name" binding:"required,min=3,max=255"`
	Description       string               `json:"description" binding:"omitempty,max=2000"`
	BucketID          int                  `json:"bucket_id" binding:"required,min=1"`
	EasyCount         int                  `json:"easy_count" binding:"min=0,max=500"`
	MediumCount       int                  `json:"medium_count" binding:"min=0,max=500"`
	HardCount         int                  `json:"hard_count" binding:"min=0,max=500"`
	PointsPerQuestion int                  `json:"points_per_question" binding:"omitempty,min=1,max=100"`
	TimeLimitMinutes  int                  `json:"time_limit_minutes" binding:"omitempty,min=1,max=480"`
	Randomization     *RandomizationConfig `json:"randomization_settings"`
	Proctoring        *ProctoringRequest   `json:"proctoring_settings"`
}

// DeliveryOverrides are per-request randomization overrides. Nil fields fall
// back to the quiz's stored configuration.
type DeliveryOverrides struct {
	RandomizeQuestions *bool
	RandomizeOptions   *bool
	QuestionLimit      *int
}

// Delivery is a quiz resolved for one participant request.
type Delivery struct {
	QuizID           string                   `json:"quiz_id"`
	Name             string                   `json:"name"`
	Description      string                   `json:"description"`
	TimeLimitMinutes int                      `json:"time_limit_minutes"`
	Questions        []QuestionForParticipant `json:"questions"`
	EffectiveConfig  RandomizationConfig      `json:"effective_config"`
	Proctoring       *ProctoringConfig        `json:"proctoring_settings,omitempty"`
	HasError         bool                     `json:"has_error"`
	Cached           bool                     `json:"cached"`

	// Variant is the full delivered question set including answer keys.
	Variant []Question `json:"-"`
}
