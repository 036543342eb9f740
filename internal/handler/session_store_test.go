package handler

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/stemsi/exquiz-backend/internal/model"
	"github.com/stemsi/exquiz-backend/internal/repository"
)

// memSessionStore is a ProctoringStore held in memory.
type memSessionStore struct {
	mu         sync.Mutex
	sessions   map[string]*model.ProctoringSession
	violations map[string][]model.Violation
	nextID     int64
}

func newMemSessionStore() *memSessionStore {
	return &memSessionStore{
		sessions:   make(map[string]*model.ProctoringSession),
		violations: make(map[string][]model.Violation),
	}
}

func (s *memSessionStore) CreateSession(_ context.Context, sess *model.ProctoringSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sess.SessionID]; ok {
		return repository.ErrDuplicate
	}
	sess.StartTime = time.Now()
	cp := *sess
	s.sessions[sess.SessionID] = &cp
	return nil
}

func (s *memSessionStore) GetSession(_ context.Context, id string) (*model.ProctoringSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := *sess
	return &out, nil
}

func (s *memSessionStore) CloseSession(_ context.Context, id string, status model.SessionStatus, reason string) (*model.ProctoringSession, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, false, repository.ErrNotFound
	}
	if sess.Status.Terminal() {
		out := *sess
		return &out, false, nil
	}
	now := time.Now()
	sess.Status, sess.EndTime, sess.EndReason = status, &now, reason
	out := *sess
	return &out, true, nil
}

func (s *memSessionStore) AppendViolation(_ context.Context, v *model.Violation, threshold int, endReason string) (*model.ProctoringSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[v.SessionID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if sess.Status != model.SessionStatusActive {
		return nil, repository.ErrNotActive
	}
	sess.ViolationCount++
	if sess.StrictMode && sess.ViolationCount >= threshold {
		now := time.Now()
		sess.Status, sess.EndTime, sess.EndReason = model.SessionStatusTerminated, &now, endReason
	}
	s.nextID++
	v.ID = s.nextID
	v.Timestamp = time.Now()
	s.violations[v.SessionID] = append(s.violations[v.SessionID], *v)
	out := *sess
	return &out, nil
}

func (s *memSessionStore) ListViolations(_ context.Context, id string) ([]model.Violation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Violation(nil), s.violations[id]...), nil
}

func (s *memSessionStore) ListSessions(_ context.Context, f model.SessionFilter) ([]model.ProctoringSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.ProctoringSession
	for _, sess := range s.sessions {
		if f.AssessmentID != "" && sess.AssessmentID != f.AssessmentID {
			continue
		}
		out = append(out, *sess)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionID < out[j].SessionID })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *memSessionStore) AggregateStatistics(context.Context, *time.Time) (*model.SessionCounts, error) {
	return &model.SessionCounts{
		ByStatus:   map[model.SessionStatus]int{},
		ByType:     map[model.ViolationType]int{},
		BySeverity: map[model.Severity]int{},
	}, nil
}
