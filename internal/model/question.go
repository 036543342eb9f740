package model

import "time"

// Difficulty is the tier a question is filed under.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Difficulties lists every tier in quota order.
var Difficulties = []Difficulty{DifficultyEasy, DifficultyMedium, DifficultyHard}

// Valid reports whether d is a known tier.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// Question is a multiple-choice question inlined in a quiz.
//
// OriginalOrder is only set on delivered copies whose options were shuffled;
// it holds the canonical option order so an answer index can be mapped back.
type Question struct {
	Text          string     `json:"question"`
	Options       []string   `json:"options"`
	Correct       int        `json:"correct"`
	Difficulty    Difficulty `json:"difficulty,omitempty"`
	Points        int        `json:"points,omitempty"`
	Tags          []string   `json:"tags,omitempty"`
	Explanation   string     `json:"explanation,omitempty"`
	OriginalOrder []string   `json:"original_order,omitempty"`
}

// HasValidAnswer reports whether Correct addresses one of the options.
func (q Question) HasValidAnswer() bool {
	return q.Correct >= 0 && q.Correct < len(q.Options)
}

// Clone returns a deep copy of q.
func (q Question) Clone() Question {
	c := q
	if q.Options != nil {
		c.Options = append([]string(nil), q.Options...)
	}
	if q.Tags != nil {
		c.Tags = append([]string(nil), q.Tags...)
	}
	if q.OriginalOrder != nil {
		c.OriginalOrder = append([]string(nil), q.OriginalOrder...)
	}
	return c
}

// QuestionForParticipant is a delivered question without the answer key.
type QuestionForParticipant struct {
	Index      int        `json:"index"`
	Text       string     `json:"question"`
	Options    []string   `json:"options"`
	Difficulty Difficulty `json:"difficulty,omitempty"`
	Points     int        `json:"points,omitempty"`
	Tags       []string   `json:"tags,omitempty"`
}

// BucketQuestion is a reusable question stored in a bucket.
// Its answer field is serialized as correct_answer, unlike Question.
type BucketQuestion struct {
	ID            int        `json:"id"`
	BucketID      int        `json:"bucket_id"`
	Text          string     `json:"question_text"`
	Options       []string   `json:"options"`
	CorrectAnswer int        `json:"correct_answer"`
	Difficulty    Difficulty `json:"difficulty"`
	Points        int        `json:"points"`
	Tags          []string   `json:"tags"`
	Explanation   string     `json:"explanation,omitempty"`
	IsActive      bool       `json:"is_active"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// QuestionRequest is the payload for an inline quiz question.
type QuestionRequest struct {
	Text        string   `json:"question" binding:"required,min=1,max=2000"`
	Options     []string `json:"options" binding:"required,min=2,max=10,dive,required,max=500"`
	Correct     *int     `json:"correct" binding:"required,min=0"`
	Difficulty  string   `json:"difficulty" binding:"omitempty,oneof=easy medium hard"`
	Points      int      `json:"points" binding:"omitempty,min=1,max=100"`
	Tags        []string `json:"tags" binding:"omitempty,max=20,dive,max=50"`
	Explanation string   `json:"explanation" binding:"omitempty,max=2000"`
}

// BucketQuestionRequest is the payload for creating or editing a bucket question.
// Imported spreadsheet rows are decoded into it and validated the same way.
type BucketQuestionRequest struct {
	Text          string   `json:"question_text" binding:"required,min=1,max=2000"`
	Options       []string `json:"options" binding:"required,min=2,max=10,dive,required,max=500"`
	CorrectAnswer *int     `json:"correct_answer" binding:"required,min=0"`
	Difficulty    string   `json:"difficulty" binding:"required,oneof=easy medium hard"`
	Points        int      `json:"points" binding:"omitempty,min=1,max=100"`
	Tags          []string `json:"tags" binding:"omitempty,max=20,dive,max=50"`
	Explanation   string   `json:"explanation" binding:"omitempty,max=2000"`
}
