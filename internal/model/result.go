package model

import "time"

// QuizResult is a finished attempt's score.
type QuizResult struct {
	ID               int64     `json:"id"`
	QuizID           string    `json:"quiz_id"`
	ParticipantName  string    `json:"participant_name"`
	ParticipantEmail string    `json:"participant_email"`
	SessionID        string    `json:"session_id,omitempty"`
	Answers          []int     `json:"answers"`
	Score            int       `json:"score"`
	TotalPoints      int       `json:"total_points"`
	Graded           bool      `json:"graded"`
	SubmittedAt      time.Time `json:"submitted_at"`
}

// SubmitResultRequest is the payload for recording a finished attempt.
// Answers are indexes into the options as delivered to the participant.
type SubmitResultRequest struct {
	QuizID           string `json:"quiz_id" binding:"required,max=100"`
	ParticipantName  string `json:"participant_name" binding:"required,min=1,max=255"`
	ParticipantEmail string `json:"participant_email" binding:"required,email,max=255"`
	SessionID        string `json:"session_id" binding:"omitempty,max=128"`
	Answers          []int  `json:"answers" binding:"omitempty,max=500"`
	Score            int    `json:"score" binding:"min=0"`
	TotalPoints      int    `json:"total_points" binding:"min=0"`
}

// Participant is a person who can take quizzes.
type Participant struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ParticipantRequest is the payload for creating or updating a participant.
type ParticipantRequest struct {
	Name  string `json:"name" binding:"required,min=1,max=255"`
	Email string `json:"email" binding:"required,email,max=255"`
}
