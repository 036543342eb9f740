package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exquiz-backend/internal/metrics"
	"github.com/stemsi/exquiz-backend/internal/model"
	"github.com/stemsi/exquiz-backend/internal/repository"
)

// Proctoring policy constants.
const (
	// ViolationThreshold is the violation count at which a strict-mode
	// session is terminated.
	ViolationThreshold = 3

	EndReasonThresholdExceeded = "violation_threshold_exceeded"
	EndReasonCompleted         = "completed"
	EndReasonTerminated        = "terminated_by_request"

	// ListSessionsCap bounds a session listing.
	ListSessionsCap = 100
)

// Statistics timeframes.
const (
	Timeframe24h = "24h"
	Timeframe7d  = "7d"
	TimeframeAll = "all"
)

// Monitor event types.
const (
	EventSessionStarted = "session_started"
	EventViolation      = "violation"
	EventSessionEnded   = "session_ended"
)

// defaultSeverity is used when a client reports a violation without one.
var defaultSeverity = map[model.ViolationType]model.Severity{
	model.ViolationTabSwitch:       model.SeverityMedium,
	model.ViolationWindowBlur:      model.SeverityLow,
	model.ViolationMultipleFaces:   model.SeverityHigh,
	model.ViolationNoFace:          model.SeverityHigh,
	model.ViolationSuspiciousAudio: model.SeverityMedium,
	model.ViolationRightClick:      model.SeverityLow,
	model.ViolationCopyPaste:       model.SeverityMedium,
	model.ViolationFullscreenExit:  model.SeverityMedium,
	model.ViolationBrowserDevTools: model.SeverityCritical,
	model.ViolationExternalMonitor: model.SeverityHigh,
}

// ProctoringService runs the proctoring session state machine.
//
// The store is the source of truth. The cache only serves reads and is
// refreshed after each successful store write; a cold or failing cache costs
// latency, never correctness.
type ProctoringService struct {
	store     ProctoringStore
	cache     SessionCache
	publisher MonitorPublisher
	now       func() time.Time
	log       zerolog.Logger
}

// NewProctoringService creates a new ProctoringService. cache and publisher
// may be nil.
func NewProctoringService(store ProctoringStore, cache SessionCache, publisher MonitorPublisher, log zerolog.Logger) *ProctoringService {
	return &ProctoringService{
		store:     store,
		cache:     cache,
		publisher: publisher,
		now:       time.Now,
		log:       log.With().Str("component", "proctoring_service").Logger(),
	}
}

// StartSession opens an active session with a zero violation count.
func (s *ProctoringService) StartSession(ctx context.Context, req model.StartSessionRequest) (*model.ProctoringSession, error) {
	level := model.ProctoringLevel(req.Level)
	if level == "" {
		level = model.ProctoringLevelStandard
	}

	sess := &model.ProctoringSession{
		SessionID:    req.SessionID,
		UserEmail:    req.UserEmail,
		UserName:     req.UserName,
		AssessmentID: req.AssessmentID,
		Level:        level,
		StrictMode:   req.StrictMode,
		Settings:     req.Settings,
		Status:       model.SessionStatusActive,
	}

	if err := s.store.CreateSession(ctx, sess); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrDuplicateSession
		}
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.cachePut(ctx, sess)
	s.publish(ctx, sess, EventSessionStarted, nil)
	metrics.ProctoringSessions.WithLabelValues(string(model.SessionStatusActive)).Inc()

	s.log.Info().
		Str("session_id", sess.SessionID).
		Str("assessment_id", sess.AssessmentID).
		Bool("strict_mode", sess.StrictMode).
		Msg("Proctoring session started")
	return sess, nil
}

// LogViolation appends a violation to an active session. In strict mode the
// call that brings the count to ViolationThreshold also terminates the
// session and reports it in the outcome.
func (s *ProctoringService) LogViolation(ctx context.Context, sessionID string, req model.LogViolationRequest) (*model.ViolationOutcome, error) {
	// Terminal states never change, so a cached terminal snapshot is final.
	if cached := s.cacheGet(ctx, sessionID); cached != nil && cached.Status.Terminal() {
		return nil, ErrSessionNotActive
	}

	vType := model.ViolationType(req.Type)
	severity := model.Severity(req.Severity)
	if severity == "" {
		severity = defaultSeverity[vType]
		if severity == "" {
			severity = model.SeverityMedium
		}
	}

	v := &model.Violation{
		SessionID:   sessionID,
		Type:        vType,
		Severity:    severity,
		Description: req.Description,
		Evidence:    req.Evidence,
		AutoFlagged: req.AutoFlagged,
	}

	sess, err := s.store.AppendViolation(ctx, v, ViolationThreshold, EndReasonThresholdExceeded)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil, ErrSessionNotFound
	case errors.Is(err, repository.ErrNotActive):
		s.cacheRefresh(ctx, sessionID)
		return nil, ErrSessionNotActive
	case err != nil:
		return nil, fmt.Errorf("append violation: %w", err)
	}

	terminated := sess.Status == model.SessionStatusTerminated
	s.cachePut(ctx, sess)
	s.publish(ctx, sess, EventViolation, v)
	metrics.ProctoringViolations.WithLabelValues(string(v.Type), string(v.Severity)).Inc()

	if terminated {
		s.publish(ctx, sess, EventSessionEnded, nil)
		metrics.ProctoringSessions.WithLabelValues(string(model.SessionStatusTerminated)).Inc()
		s.log.Warn().
			Str("session_id", sessionID).
			Int("violation_count", sess.ViolationCount).
			Msg("Proctoring session terminated by violation threshold")
	}

	return &model.ViolationOutcome{
		Violation:      *v,
		ViolationCount: sess.ViolationCount,
		Status:         sess.Status,
		Terminated:     terminated,
		EndReason:      sess.EndReason,
	}, nil
}

// EndSession closes a session as completed, or as terminated when requested.
// Ending a session that is already terminal succeeds and returns it as is.
func (s *ProctoringService) EndSession(ctx context.Context, sessionID string, req model.EndSessionRequest) (*model.ProctoringSession, error) {
	status := model.SessionStatusCompleted
	reason := EndReasonCompleted
	if req.Terminate {
		status = model.SessionStatusTerminated
		reason = EndReasonTerminated
	}
	if req.Reason != "" {
		reason = req.Reason
	}

	sess, changed, err := s.store.CloseSession(ctx, sessionID, status, reason)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("close session: %w", err)
	}

	s.cachePut(ctx, sess)
	if changed {
		s.publish(ctx, sess, EventSessionEnded, nil)
		metrics.ProctoringSessions.WithLabelValues(string(sess.Status)).Inc()
		s.log.Info().
			Str("session_id", sessionID).
			Str("status", string(sess.Status)).
			Str("reason", sess.EndReason).
			Msg("Proctoring session ended")
	}
	return sess, nil
}

// GetSession returns a session, from cache when possible.
func (s *ProctoringService) GetSession(ctx context.Context, sessionID string) (*model.ProctoringSession, error) {
	if cached := s.cacheGet(ctx, sessionID); cached != nil {
		return cached, nil
	}

	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	s.cachePut(ctx, sess)
	return sess, nil
}

// ListSessions returns sessions matching f, newest first, at most
// ListSessionsCap of them.
func (s *ProctoringService) ListSessions(ctx context.Context, f model.SessionFilter) ([]model.ProctoringSession, error) {
	if f.Status != "" && !slices.Contains(model.SessionStatuses, f.Status) {
		return nil, newValidationError("status", "unknown session status")
	}
	if f.Limit <= 0 || f.Limit > ListSessionsCap {
		f.Limit = ListSessionsCap
	}

	sessions, err := s.store.ListSessions(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	if sessions == nil {
		sessions = []model.ProctoringSession{}
	}
	return sessions, nil
}

// ListViolations returns a session's violations in logging order.
func (s *ProctoringService) ListViolations(ctx context.Context, sessionID string) ([]model.Violation, error) {
	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}

	violations, err := s.store.ListViolations(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list violations: %w", err)
	}
	if violations == nil {
		violations = []model.Violation{}
	}
	return violations, nil
}

// GetStatistics aggregates sessions and violations over a timeframe: "24h",
// "7d" or "all". An empty timeframe means "24h". Every known status, type
// and severity is present in the result, zero when nothing matched.
func (s *ProctoringService) GetStatistics(ctx context.Context, timeframe string) (*model.ProctoringStatistics, error) {
	var since *time.Time
	switch timeframe {
	case "", Timeframe24h:
		timeframe = Timeframe24h
		t := s.now().Add(-24 * time.Hour)
		since = &t
	case Timeframe7d:
		t := s.now().Add(-7 * 24 * time.Hour)
		since = &t
	case TimeframeAll:
	default:
		return nil, &ValidationError{Fields: map[string]string{"timeframe": "must be one of 24h, 7d, all"}}
	}

	counts, err := s.store.AggregateStatistics(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("aggregate statistics: %w", err)
	}

	stats := &model.ProctoringStatistics{
		Timeframe:            timeframe,
		Since:                since,
		SessionsByStatus:     make(map[model.SessionStatus]int, len(model.SessionStatuses)),
		ViolationsByType:     make(map[model.ViolationType]int, len(model.ViolationTypes)),
		ViolationsBySeverity: make(map[model.Severity]int, len(model.Severities)),
	}
	for _, st := range model.SessionStatuses {
		stats.SessionsByStatus[st] = 0
	}
	for _, t := range model.ViolationTypes {
		stats.ViolationsByType[t] = 0
	}
	for _, sv := range model.Severities {
		stats.ViolationsBySeverity[sv] = 0
	}
	if counts == nil {
		return stats, nil
	}

	for st, n := range counts.ByStatus {
		stats.SessionsByStatus[st] += n
		stats.TotalSessions += n
	}
	for t, n := range counts.ByType {
		stats.ViolationsByType[t] += n
		stats.TotalViolations += n
	}
	for sv, n := range counts.BySeverity {
		stats.ViolationsBySeverity[sv] += n
	}
	stats.AutoFlaggedViolations = counts.AutoFlagged
	stats.UniqueParticipants = counts.UniqueUsers
	stats.AvgViolationsPerSess = counts.AvgViolation
	return stats, nil
}

func (s *ProctoringService) cacheGet(ctx context.Context, sessionID string) *model.ProctoringSession {
	if s.cache == nil {
		return nil
	}
	sess, err := s.cache.Get(ctx, sessionID)
	if err != nil {
		s.log.Warn().Err(err).Str("session_id", sessionID).Msg("Session cache read failed")
		return nil
	}
	return sess
}

func (s *ProctoringService) cachePut(ctx context.Context, sess *model.ProctoringSession) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Put(ctx, sess); err != nil {
		s.log.Warn().Err(err).Str("session_id", sess.SessionID).Msg("Session cache write failed")
		// A stale entry is worse than none.
		_ = s.cache.Delete(ctx, sess.SessionID)
	}
}

// cacheRefresh reloads an entry from the store after the cache was found
// to be behind it.
func (s *ProctoringService) cacheRefresh(ctx context.Context, sessionID string) {
	if s.cache == nil {
		return
	}
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		_ = s.cache.Delete(ctx, sessionID)
		return
	}
	s.cachePut(ctx, sess)
}

func (s *ProctoringService) publish(ctx context.Context, sess *model.ProctoringSession, eventType string, v *model.Violation) {
	if s.publisher == nil {
		return
	}
	ev := model.MonitorEvent{
		Type:      eventType,
		SessionID: sess.SessionID,
		UserEmail: sess.UserEmail,
		Status:    sess.Status,
		Count:     sess.ViolationCount,
		Violation: v,
	}
	if eventType != EventViolation {
		ev.Session = sess
	}
	if err := s.publisher.Publish(ctx, sess.AssessmentID, ev); err != nil {
		s.log.Warn().Err(err).Str("session_id", sess.SessionID).Msg("Failed to publish monitor event")
	}
}
