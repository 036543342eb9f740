package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exquiz-backend/internal/model"
)

const sessionColumns = `session_id, user_email, user_name, assessment_id, level, strict_mode, settings,
	status, start_time, end_time, end_reason, violation_count`

// ProctoringRepository handles proctoring session and violation data access.
type ProctoringRepository struct {
	pool *pgxpool.Pool
}

// NewProctoringRepository creates a new ProctoringRepository.
func NewProctoringRepository(pool *pgxpool.Pool) *ProctoringRepository {
	return &ProctoringRepository{pool: pool}
}

// CreateSession inserts a new active session. Returns ErrDuplicate when the
// session ID already exists.
func (r *ProctoringRepository) CreateSession(ctx context.Context, s *model.ProctoringSession) error {
	settings, err := json.Marshal(s.Settings)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	err = r.pool.QueryRow(ctx,
		`INSERT INTO proctoring_sessions (session_id, user_email, user_name, assessment_id, level, strict_mode, settings, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING start_time, violation_count`,
		s.SessionID, s.UserEmail, s.UserName, s.AssessmentID, string(s.Level), s.StrictMode, settings, string(s.Status),
	).Scan(&s.StartTime, &s.ViolationCount)
	return mapError(err)
}

// GetSession retrieves a session by ID.
func (r *ProctoringRepository) GetSession(ctx context.Context, sessionID string) (*model.ProctoringSession, error) {
	s, err := scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM proctoring_sessions WHERE session_id = $1`, sessionID))
	if err != nil {
		return nil, mapError(err)
	}
	return s, nil
}

// CloseSession moves an active session to a terminal status. When the
// session is already terminal it is returned unchanged with changed=false.
func (r *ProctoringRepository) CloseSession(ctx context.Context, sessionID string, status model.SessionStatus, reason string) (*model.ProctoringSession, bool, error) {
	s, err := scanSession(r.pool.QueryRow(ctx,
		`UPDATE proctoring_sessions
		 SET status = $2, end_time = NOW(), end_reason = $3
		 WHERE session_id = $1 AND status NOT IN ('completed', 'terminated')
		 RETURNING `+sessionColumns,
		sessionID, string(status), reason))
	if err == nil {
		return s, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, err
	}

	existing, err := r.GetSession(ctx, sessionID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// AppendViolation records a violation and bumps the session counter in one
// transaction. The counter is incremented by the UPDATE itself so concurrent
// appends never lose an increment. A strict-mode session whose counter reaches
// threshold is terminated by the same statement.
func (r *ProctoringRepository) AppendViolation(ctx context.Context, v *model.Violation, threshold int, endReason string) (*model.ProctoringSession, error) {
	evidence, err := json.Marshal(v.Evidence)
	if err != nil {
		return nil, fmt.Errorf("marshal evidence: %w", err)
	}

	var session *model.ProctoringSession
	err = withTxRetry(ctx, r.pool, func(tx pgx.Tx) error {
		s, err := scanSession(tx.QueryRow(ctx,
			`UPDATE proctoring_sessions
			 SET violation_count = violation_count + 1,
			     status     = CASE WHEN strict_mode AND violation_count + 1 >= $2 THEN 'terminated' ELSE status END,
			     end_time   = CASE WHEN strict_mode AND violation_count + 1 >= $2 THEN NOW() ELSE end_time END,
			     end_reason = CASE WHEN strict_mode AND violation_count + 1 >= $2 THEN $3 ELSE end_reason END
			 WHERE session_id = $1 AND status = 'active'
			 RETURNING `+sessionColumns,
			v.SessionID, threshold, endReason))
		if errors.Is(err, pgx.ErrNoRows) {
			var exists bool
			if err := tx.QueryRow(ctx,
				`SELECT EXISTS (SELECT 1 FROM proctoring_sessions WHERE session_id = $1)`, v.SessionID,
			).Scan(&exists); err != nil {
				return err
			}
			if exists {
				return ErrNotActive
			}
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		err = tx.QueryRow(ctx,
			`INSERT INTO proctoring_violations (session_id, type, severity, description, evidence, auto_flagged)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 RETURNING id, created_at`,
			v.SessionID, string(v.Type), string(v.Severity), v.Description, evidence, v.AutoFlagged,
		).Scan(&v.ID, &v.Timestamp)
		if err != nil {
			return err
		}

		session = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// ListViolations returns a session's violations in the order they were logged.
func (r *ProctoringRepository) ListViolations(ctx context.Context, sessionID string) ([]model.Violation, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, session_id, type, severity, description, evidence, auto_flagged, created_at
		 FROM proctoring_violations
		 WHERE session_id = $1
		 ORDER BY id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Violation
	for rows.Next() {
		var (
			v               model.Violation
			vType, severity string
			evidence        []byte
		)
		if err := rows.Scan(&v.ID, &v.SessionID, &vType, &severity, &v.Description, &evidence,
			&v.AutoFlagged, &v.Timestamp); err != nil {
			return nil, err
		}
		v.Type = model.ViolationType(vType)
		v.Severity = model.Severity(severity)
		if len(evidence) > 0 {
			// Unreadable evidence is dropped; the violation itself stands.
			_ = json.Unmarshal(evidence, &v.Evidence)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// ListSessions returns sessions matching f, newest first.
func (r *ProctoringRepository) ListSessions(ctx context.Context, f model.SessionFilter) ([]model.ProctoringSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM proctoring_sessions WHERE 1=1`
	var args []any

	if f.Status != "" {
		args = append(args, string(f.Status))
		query += ` AND status = $` + formatInt(len(args))
	}
	if f.AssessmentID != "" {
		args = append(args, f.AssessmentID)
		query += ` AND assessment_id = $` + formatInt(len(args))
	}
	if f.UserEmail != "" {
		args = append(args, f.UserEmail)
		query += ` AND user_email = $` + formatInt(len(args))
	}

	args = append(args, f.Limit)
	query += ` ORDER BY start_time DESC LIMIT $` + formatInt(len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ProctoringSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// AggregateStatistics counts sessions and violations started at or after
// since. A nil since covers all time.
func (r *ProctoringRepository) AggregateStatistics(ctx context.Context, since *time.Time) (*model.SessionCounts, error) {
	counts := &model.SessionCounts{
		ByStatus:   make(map[model.SessionStatus]int),
		ByType:     make(map[model.ViolationType]int),
		BySeverity: make(map[model.Severity]int),
	}

	// 1. Sessions by status
	rows, err := r.pool.Query(ctx,
		`SELECT status, COUNT(*) FROM proctoring_sessions
		 WHERE $1::timestamptz IS NULL OR start_time >= $1
		 GROUP BY status`, since)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			rows.Close()
			return nil, err
		}
		counts.ByStatus[model.SessionStatus(status)] = n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// 2. Violations by type and severity
	rows, err = r.pool.Query(ctx,
		`SELECT type, severity, COUNT(*), COUNT(*) FILTER (WHERE auto_flagged)
		 FROM proctoring_violations
		 WHERE $1::timestamptz IS NULL OR created_at >= $1
		 GROUP BY type, severity`, since)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var vType, severity string
		var n, flagged int
		if err := rows.Scan(&vType, &severity, &n, &flagged); err != nil {
			rows.Close()
			return nil, err
		}
		counts.ByType[model.ViolationType(vType)] += n
		counts.BySeverity[model.Severity(severity)] += n
		counts.AutoFlagged += flagged
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// 3. Participants and average violations per session
	err = r.pool.QueryRow(ctx,
		`SELECT COUNT(DISTINCT user_email), COALESCE(AVG(violation_count), 0)::float8
		 FROM proctoring_sessions
		 WHERE $1::timestamptz IS NULL OR start_time >= $1`, since,
	).Scan(&counts.UniqueUsers, &counts.AvgViolation)
	if err != nil {
		return nil, err
	}

	return counts, nil
}

func scanSession(row pgx.Row) (*model.ProctoringSession, error) {
	var (
		s             model.ProctoringSession
		level, status string
		settings      []byte
		endReason     *string
	)
	err := row.Scan(&s.SessionID, &s.UserEmail, &s.UserName, &s.AssessmentID, &level, &s.StrictMode,
		&settings, &status, &s.StartTime, &s.EndTime, &endReason, &s.ViolationCount)
	if err != nil {
		return nil, err
	}
	s.Level = model.ProctoringLevel(level)
	s.Status = model.SessionStatus(status)
	if endReason != nil {
		s.EndReason = *endReason
	}
	if len(settings) > 0 {
		_ = json.Unmarshal(settings, &s.Settings)
	}
	return &s, nil
}
