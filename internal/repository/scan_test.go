package repository

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stemsi/exquiz-backend/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRow hands fixed column values to Scan. A nil value zeroes the target.
type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.values) {
		return fmt.Errorf("scan: %d targets for %d columns", len(dest), len(r.values))
	}
	for i, d := range dest {
		target := reflect.ValueOf(d).Elem()
		if r.values[i] == nil {
			target.Set(reflect.Zero(target.Type()))
			continue
		}
		target.Set(reflect.ValueOf(r.values[i]))
	}
	return nil
}

func quizRow(questions, randomization, proctoring string) fakeRow {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	raw := func(s string) []byte {
		if s == "" {
			return nil
		}
		return []byte(s)
	}
	return fakeRow{values: []any{
		"js", "JavaScript", "", raw(questions), 2, 15, true,
		raw(randomization), raw(proctoring), now, now,
	}}
}

const oneQuestion = `[{"text":"typeof null?","options":["object","null"],"correct":0}]`

func TestScanQuiz(t *testing.T) {
	cases := []struct {
		name          string
		row           fakeRow
		questions     int
		damaged       bool
		lostQuestions bool
	}{
		{"clean", quizRow(oneQuestion, `{"randomize_questions":true}`, `{"enabled":true,"level":"basic"}`), 1, false, false},
		{"no settings", quizRow(oneQuestion, "", ""), 1, false, false},
		{"bad proctoring settings", quizRow(oneQuestion, "", `{"enabled":"yes"}`), 1, true, false},
		{"bad randomization settings", quizRow(oneQuestion, `{"question_limit":"ten"}`, ""), 1, true, false},
		{"bad questions", quizRow(`{"text":"not a list"}`, `{"randomize_options":true}`, ""), 0, true, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			q, err := scanQuiz(tc.row)
			require.NotNil(t, q)
			assert.Equal(t, "js", q.ID)
			assert.Equal(t, 2, q.PointsPerQuestion)
			assert.Len(t, q.Questions, tc.questions)

			if !tc.damaged {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrMalformedStoredData)
			assert.Equal(t, tc.lostQuestions, QuestionsUnreadable(err))
		})
	}
}

func TestScanQuiz_DamagedSettingsAreDropped(t *testing.T) {
	q, err := scanQuiz(quizRow(oneQuestion, `{"randomize_questions":true}`, `{"enabled":"yes"}`))

	var mq *MalformedQuizError
	require.ErrorAs(t, err, &mq)
	assert.Equal(t, []string{"proctoring_settings"}, mq.Columns)
	assert.Nil(t, q.Proctoring)
	require.NotNil(t, q.Randomization)
	assert.True(t, q.Randomization.RandomizeQuestions)
}

func TestScanQuiz_RowError(t *testing.T) {
	q, err := scanQuiz(fakeRow{err: pgx.ErrNoRows})
	assert.Nil(t, q)
	assert.ErrorIs(t, mapError(err), ErrNotFound)
}

func TestScanSession(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	end := start.Add(40 * time.Minute)
	reason := "violation_threshold_exceeded"

	s, err := scanSession(fakeRow{values: []any{
		"sess-0001", "ana@example.com", "Ana", "javascript", "advanced", true,
		[]byte(`{"screenshot_interval_seconds":30}`), "terminated", start, &end, &reason, 3,
	}})
	require.NoError(t, err)
	assert.Equal(t, model.ProctoringLevelAdvanced, s.Level)
	assert.Equal(t, model.SessionStatusTerminated, s.Status)
	assert.Equal(t, reason, s.EndReason)
	assert.Equal(t, 30, s.Settings.ScreenshotInterval)
	assert.Equal(t, 3, s.ViolationCount)
	require.NotNil(t, s.EndTime)
	assert.True(t, end.Equal(*s.EndTime))

	// Active sessions carry no end; unreadable settings are ignored.
	s, err = scanSession(fakeRow{values: []any{
		"sess-0002", "bo@example.com", "Bo", "python", "standard", false,
		[]byte(`not json`), "active", start, nil, nil, 0,
	}})
	require.NoError(t, err)
	assert.Equal(t, model.SessionStatusActive, s.Status)
	assert.Nil(t, s.EndTime)
	assert.Empty(t, s.EndReason)
}

func TestMapError(t *testing.T) {
	assert.NoError(t, mapError(nil))
	assert.ErrorIs(t, mapError(pgx.ErrNoRows), ErrNotFound)

	dup := mapError(&pgconn.PgError{Code: pgUniqueViolation, ConstraintName: "participants_email_key"})
	assert.ErrorIs(t, dup, ErrDuplicate)
	assert.Contains(t, dup.Error(), "participants_email_key")

	other := &pgconn.PgError{Code: "23503"}
	assert.Same(t, error(other), mapError(other))
}

func TestIsRetryable(t *testing.T) {
	for _, err := range []error{nil, pgx.ErrNoRows, ErrDuplicate, ErrNotActive, ErrProtected, context.Canceled,
		fmt.Errorf("tx: %w", context.DeadlineExceeded)} {
		assert.False(t, isRetryable(err), "%v", err)
	}
	assert.True(t, isRetryable(errors.New("connection reset by peer")))
	assert.True(t, isRetryable(&pgconn.PgError{Code: "40001"}))
}
