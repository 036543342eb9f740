package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/exquiz-backend/internal/config"
	"github.com/stemsi/exquiz-backend/internal/model"
)

// MonitorPublisher broadcasts session events to assessment monitors.
type MonitorPublisher interface {
	Publish(ctx context.Context, assessmentID string, ev model.MonitorEvent) error
}

// MonitorService fans proctoring events out over Redis Pub/Sub and builds
// the snapshot a monitor receives on attach.
type MonitorService struct {
	rdb         *redis.Client
	proctorRepo ProctoringStore
}

// NewMonitorService creates a new MonitorService.
func NewMonitorService(rdb *redis.Client, proctorRepo ProctoringStore) *MonitorService {
	return &MonitorService{rdb: rdb, proctorRepo: proctorRepo}
}

// Publish sends ev on the assessment's monitor channel.
func (s *MonitorService) Publish(ctx context.Context, assessmentID string, ev model.MonitorEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return s.rdb.Publish(ctx, config.CacheKey.AssessmentMonitorChannel(assessmentID), payload).Err()
}

// Subscribe attaches to the assessment's monitor channel. The caller closes it.
func (s *MonitorService) Subscribe(ctx context.Context, assessmentID string) *redis.PubSub {
	return s.rdb.Subscribe(ctx, config.CacheKey.AssessmentMonitorChannel(assessmentID))
}

// AssessmentSnapshot is the state of an assessment when a monitor attaches.
type AssessmentSnapshot struct {
	AssessmentID    string                      `json:"assessment_id"`
	Sessions        []model.ProctoringSession   `json:"sessions"`
	ByStatus        map[model.SessionStatus]int `json:"sessions_by_status"`
	TotalViolations int                         `json:"total_violations"`
	RecentByType    map[model.ViolationType]int `json:"violations_by_type"`
}

// GetAssessmentSnapshot loads the assessment's newest sessions and the
// violation breakdown of its active sessions concurrently.
func (s *MonitorService) GetAssessmentSnapshot(ctx context.Context, assessmentID string) (*AssessmentSnapshot, error) {
	snap := &AssessmentSnapshot{
		AssessmentID: assessmentID,
		Sessions:     []model.ProctoringSession{},
		ByStatus:     make(map[model.SessionStatus]int),
		RecentByType: make(map[model.ViolationType]int),
	}

	sessions, err := s.proctorRepo.ListSessions(ctx, model.SessionFilter{
		AssessmentID: assessmentID,
		Limit:        ListSessionsCap,
	})
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	if sessions != nil {
		snap.Sessions = sessions
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, sess := range sessions {
		snap.ByStatus[sess.Status]++
		snap.TotalViolations += sess.ViolationCount
		if sess.Status != model.SessionStatusActive || sess.ViolationCount == 0 {
			continue
		}

		wg.Add(1)
		go func(sessionID string) {
			defer wg.Done()
			// Breakdown is best-effort; counts above are authoritative.
			violations, err := s.proctorRepo.ListViolations(ctx, sessionID)
			if err != nil {
				return
			}
			mu.Lock()
			for _, v := range violations {
				snap.RecentByType[v.Type]++
			}
			mu.Unlock()
		}(sess.SessionID)
	}
	wg.Wait()

	return snap, nil
}
