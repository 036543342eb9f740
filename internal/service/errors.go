package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/stemsi/exquiz-backend/internal/model"
)

// Domain errors returned by the services. Handlers map them to HTTP codes.
var (
	ErrQuizNotFound        = errors.New("quiz not found")
	ErrBucketNotFound      = errors.New("bucket not found")
	ErrQuestionNotFound    = errors.New("question not found")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrSessionNotFound     = errors.New("proctoring session not found")
	ErrDuplicateSession    = errors.New("proctoring session already exists")
	ErrDuplicateID         = errors.New("a record with this id already exists")
	ErrSessionNotActive    = errors.New("proctoring session is not active")
	ErrQuizProtected       = errors.New("default quizzes cannot be deleted")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrDuplicateEmail      = errors.New("email is already registered")
)

// InsufficientQuestionsError reports the first difficulty tier a bucket
// could not satisfy.
type InsufficientQuestionsError struct {
	Difficulty model.Difficulty
	Requested  int
	Available  int
}

func (e *InsufficientQuestionsError) Error() string {
	return fmt.Sprintf("insufficient %s questions: requested %d, available %d",
		e.Difficulty, e.Requested, e.Available)
}

// ValidationError carries per-field messages for a rejected input.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func newValidationError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}
