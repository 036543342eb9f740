package repository

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store-level errors shared by every repository.
var (
	ErrNotFound            = errors.New("record not found")
	ErrDuplicate           = errors.New("duplicate record")
	ErrProtected           = errors.New("record is protected")
	ErrNotActive           = errors.New("record is not active")
	ErrMalformedStoredData = errors.New("malformed stored data")
)

// MalformedQuizError names the JSON columns of a quiz row that could not be
// decoded. It matches ErrMalformedStoredData.
type MalformedQuizError struct {
	QuizID  string
	Columns []string
}

func (e *MalformedQuizError) Error() string {
	return fmt.Sprintf("%s: quiz %s: %s", ErrMalformedStoredData, e.QuizID, strings.Join(e.Columns, ", "))
}

func (e *MalformedQuizError) Is(target error) bool {
	return target == ErrMalformedStoredData
}

// QuestionsUnreadable reports whether err means a quiz's question payload is
// lost. Damage limited to settings columns returns false.
func QuestionsUnreadable(err error) bool {
	var mq *MalformedQuizError
	if errors.As(err, &mq) {
		return slices.Contains(mq.Columns, "questions")
	}
	return errors.Is(err, ErrMalformedStoredData)
}

const pgUniqueViolation = "23505"

// mapError converts driver errors into store-level errors.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return fmt.Errorf("%w: %s", ErrDuplicate, pgErr.ConstraintName)
	}
	return err
}

// isRetryable reports whether a failed transaction is worth a second attempt.
// Domain outcomes and cancellations are final.
func isRetryable(err error) bool {
	err = mapError(err)
	switch {
	case err == nil,
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrDuplicate),
		errors.Is(err, ErrNotActive),
		errors.Is(err, ErrProtected),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return false
	}
	return true
}

// withTxRetry runs fn in a transaction and retries it once on a
// transient failure.
func withTxRetry(ctx context.Context, pool *pgxpool.Pool, fn func(tx pgx.Tx) error) error {
	err := pgx.BeginFunc(ctx, pool, fn)
	if isRetryable(err) {
		err = pgx.BeginFunc(ctx, pool, fn)
	}
	return mapError(err)
}

func formatInt(n int) string {
	return strconv.Itoa(n)
}
