package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stemsi/exquiz-backend/internal/model"
	"github.com/stemsi/exquiz-backend/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startReq(id string, strict bool) model.StartSessionRequest {
	return model.StartSessionRequest{
		SessionID:    id,
		UserEmail:    "ana@example.com",
		UserName:     "Ana",
		AssessmentID: "javascript",
		StrictMode:   strict,
	}
}

var tabSwitch = model.LogViolationRequest{Type: string(model.ViolationTabSwitch)}

func TestStartSession(t *testing.T) {
	store := newMemProctoringStore()
	pub := &memPublisher{}
	svc := service.NewProctoringService(store, service.NewMemorySessionCache(0), pub, zerolog.Nop())
	ctx := context.Background()

	sess, err := svc.StartSession(ctx, startReq("session-0001", false))
	require.NoError(t, err)
	assert.Equal(t, model.SessionStatusActive, sess.Status)
	assert.Equal(t, model.ProctoringLevelStandard, sess.Level)
	assert.Zero(t, sess.ViolationCount)
	assert.Equal(t, []string{service.EventSessionStarted}, pub.types())

	_, err = svc.StartSession(ctx, startReq("session-0001", false))
	assert.ErrorIs(t, err, service.ErrDuplicateSession)
}

func TestLogViolation_StrictModeTerminatesAtThreshold(t *testing.T) {
	store := newMemProctoringStore()
	pub := &memPublisher{}
	svc := service.NewProctoringService(store, service.NewMemorySessionCache(0), pub, zerolog.Nop())
	ctx := context.Background()

	_, err := svc.StartSession(ctx, startReq("strict-0001", true))
	require.NoError(t, err)

	for i := 1; i < service.ViolationThreshold; i++ {
		out, err := svc.LogViolation(ctx, "strict-0001", tabSwitch)
		require.NoError(t, err)
		assert.Equal(t, i, out.ViolationCount)
		assert.False(t, out.Terminated)
		assert.Equal(t, model.SeverityMedium, out.Violation.Severity)
	}

	out, err := svc.LogViolation(ctx, "strict-0001", tabSwitch)
	require.NoError(t, err)
	assert.True(t, out.Terminated)
	assert.Equal(t, model.SessionStatusTerminated, out.Status)
	assert.Equal(t, service.EndReasonThresholdExceeded, out.EndReason)
	assert.Equal(t, service.ViolationThreshold, out.ViolationCount)

	_, err = svc.LogViolation(ctx, "strict-0001", tabSwitch)
	assert.ErrorIs(t, err, service.ErrSessionNotActive)

	sess, err := svc.GetSession(ctx, "strict-0001")
	require.NoError(t, err)
	assert.Equal(t, model.SessionStatusTerminated, sess.Status)
	assert.NotNil(t, sess.EndTime)

	violations, err := svc.ListViolations(ctx, "strict-0001")
	require.NoError(t, err)
	assert.Len(t, violations, service.ViolationThreshold)
	assert.Contains(t, pub.types(), service.EventSessionEnded)
}

func TestLogViolation_NonStrictKeepsCounting(t *testing.T) {
	svc := service.NewProctoringService(newMemProctoringStore(), nil, nil, zerolog.Nop())
	ctx := context.Background()

	_, err := svc.StartSession(ctx, startReq("lenient-001", false))
	require.NoError(t, err)

	var out *model.ViolationOutcome
	for i := 0; i < 5; i++ {
		out, err = svc.LogViolation(ctx, "lenient-001", model.LogViolationRequest{
			Type:     string(model.ViolationNoFace),
			Severity: string(model.SeverityLow),
		})
		require.NoError(t, err)
	}
	assert.False(t, out.Terminated)
	assert.Equal(t, 5, out.ViolationCount)
	assert.Equal(t, model.SessionStatusActive, out.Status)
	assert.Equal(t, model.SeverityLow, out.Violation.Severity)
}

func TestLogViolation_UnknownSession(t *testing.T) {
	svc := service.NewProctoringService(newMemProctoringStore(), nil, nil, zerolog.Nop())

	_, err := svc.LogViolation(context.Background(), "nope-0000", tabSwitch)
	assert.ErrorIs(t, err, service.ErrSessionNotFound)
}

func TestLogViolation_ConcurrentCountMatchesRecords(t *testing.T) {
	store := newMemProctoringStore()
	svc := service.NewProctoringService(store, service.NewMemorySessionCache(0), nil, zerolog.Nop())
	ctx := context.Background()

	_, err := svc.StartSession(ctx, startReq("busy-000001", false))
	require.NoError(t, err)

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.LogViolation(ctx, "busy-000001", tabSwitch)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	sess, err := store.GetSession(ctx, "busy-000001")
	require.NoError(t, err)
	violations, err := store.ListViolations(ctx, "busy-000001")
	require.NoError(t, err)
	assert.Equal(t, n, sess.ViolationCount)
	assert.Len(t, violations, sess.ViolationCount)

	cached, err := svc.GetSession(ctx, "busy-000001")
	require.NoError(t, err)
	assert.Equal(t, n, cached.ViolationCount, "cache never rolls back the counter")
}

func TestLogViolation_ConcurrentStrictTerminatesOnce(t *testing.T) {
	store := newMemProctoringStore()
	svc := service.NewProctoringService(store, service.NewMemorySessionCache(0), nil, zerolog.Nop())
	ctx := context.Background()

	_, err := svc.StartSession(ctx, startReq("race-000001", true))
	require.NoError(t, err)

	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		accepted   int
		terminated int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := svc.LogViolation(ctx, "race-000001", tabSwitch)
			if err != nil {
				assert.ErrorIs(t, err, service.ErrSessionNotActive)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			accepted++
			if out.Terminated {
				terminated++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, service.ViolationThreshold, accepted)
	assert.Equal(t, 1, terminated)
}

func TestEndSession_Idempotent(t *testing.T) {
	pub := &memPublisher{}
	svc := service.NewProctoringService(newMemProctoringStore(), service.NewMemorySessionCache(0), pub, zerolog.Nop())
	ctx := context.Background()

	_, err := svc.StartSession(ctx, startReq("finish-0001", false))
	require.NoError(t, err)

	first, err := svc.EndSession(ctx, "finish-0001", model.EndSessionRequest{})
	require.NoError(t, err)
	assert.Equal(t, model.SessionStatusCompleted, first.Status)
	assert.Equal(t, service.EndReasonCompleted, first.EndReason)

	second, err := svc.EndSession(ctx, "finish-0001", model.EndSessionRequest{Terminate: true})
	require.NoError(t, err)
	assert.Equal(t, model.SessionStatusCompleted, second.Status)
	assert.Equal(t, first.EndTime, second.EndTime)

	ended := 0
	for _, typ := range pub.types() {
		if typ == service.EventSessionEnded {
			ended++
		}
	}
	assert.Equal(t, 1, ended)

	_, err = svc.LogViolation(ctx, "finish-0001", tabSwitch)
	assert.ErrorIs(t, err, service.ErrSessionNotActive)

	_, err = svc.EndSession(ctx, "missing-0001", model.EndSessionRequest{})
	assert.ErrorIs(t, err, service.ErrSessionNotFound)
}

func TestEndSession_TerminateWithReason(t *testing.T) {
	svc := service.NewProctoringService(newMemProctoringStore(), nil, nil, zerolog.Nop())
	ctx := context.Background()

	_, err := svc.StartSession(ctx, startReq("kick-000001", false))
	require.NoError(t, err)

	sess, err := svc.EndSession(ctx, "kick-000001", model.EndSessionRequest{Terminate: true, Reason: "proctor decision"})
	require.NoError(t, err)
	assert.Equal(t, model.SessionStatusTerminated, sess.Status)
	assert.Equal(t, "proctor decision", sess.EndReason)
}

func TestGetSession_ColdAndFailingCache(t *testing.T) {
	store := newMemProctoringStore()
	ctx := context.Background()

	writer := service.NewProctoringService(store, nil, nil, zerolog.Nop())
	_, err := writer.StartSession(ctx, startReq("cold-000001", false))
	require.NoError(t, err)
	_, err = writer.LogViolation(ctx, "cold-000001", tabSwitch)
	require.NoError(t, err)

	cache := service.NewMemorySessionCache(0)
	reader := service.NewProctoringService(store, cache, nil, zerolog.Nop())
	sess, err := reader.GetSession(ctx, "cold-000001")
	require.NoError(t, err)
	assert.Equal(t, 1, sess.ViolationCount)
	assert.Equal(t, 1, cache.Len())

	broken := service.NewProctoringService(store, failingCache{}, nil, zerolog.Nop())
	out, err := broken.LogViolation(ctx, "cold-000001", tabSwitch)
	require.NoError(t, err)
	assert.Equal(t, 2, out.ViolationCount)
	sess, err = broken.GetSession(ctx, "cold-000001")
	require.NoError(t, err)
	assert.Equal(t, 2, sess.ViolationCount)
}

func TestLogViolation_StoreFailureIsWrapped(t *testing.T) {
	store := newMemProctoringStore()
	svc := service.NewProctoringService(store, nil, nil, zerolog.Nop())
	ctx := context.Background()

	_, err := svc.StartSession(ctx, startReq("fail-000001", false))
	require.NoError(t, err)

	boom := errors.New("connection reset")
	store.failAppend = boom
	_, err = svc.LogViolation(ctx, "fail-000001", tabSwitch)
	assert.ErrorIs(t, err, boom)
}

func TestListSessions(t *testing.T) {
	svc := service.NewProctoringService(newMemProctoringStore(), nil, nil, zerolog.Nop())
	ctx := context.Background()

	for _, id := range []string{"list-000001", "list-000002", "list-000003"} {
		_, err := svc.StartSession(ctx, startReq(id, false))
		require.NoError(t, err)
	}
	_, err := svc.EndSession(ctx, "list-000002", model.EndSessionRequest{})
	require.NoError(t, err)

	active, err := svc.ListSessions(ctx, model.SessionFilter{Status: model.SessionStatusActive})
	require.NoError(t, err)
	assert.Len(t, active, 2)

	none, err := svc.ListSessions(ctx, model.SessionFilter{AssessmentID: "python"})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	_, err = svc.ListSessions(ctx, model.SessionFilter{Status: "sleeping"})
	var verr *service.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestGetStatistics_Empty(t *testing.T) {
	svc := service.NewProctoringService(newMemProctoringStore(), nil, nil, zerolog.Nop())

	for _, tf := range []string{"", service.Timeframe24h, service.Timeframe7d, service.TimeframeAll} {
		stats, err := svc.GetStatistics(context.Background(), tf)
		require.NoError(t, err, tf)
		assert.Zero(t, stats.TotalSessions)
		assert.Zero(t, stats.TotalViolations)
		assert.Zero(t, stats.AvgViolationsPerSess)
		assert.Len(t, stats.SessionsByStatus, len(model.SessionStatuses))
		assert.Len(t, stats.ViolationsByType, len(model.ViolationTypes))
		assert.Len(t, stats.ViolationsBySeverity, len(model.Severities))
	}
}

func TestGetStatistics(t *testing.T) {
	svc := service.NewProctoringService(newMemProctoringStore(), nil, nil, zerolog.Nop())
	ctx := context.Background()

	_, err := svc.StartSession(ctx, startReq("stats-00001", true))
	require.NoError(t, err)
	_, err = svc.StartSession(ctx, startReq("stats-00002", false))
	require.NoError(t, err)
	for i := 0; i < service.ViolationThreshold; i++ {
		_, err = svc.LogViolation(ctx, "stats-00001", tabSwitch)
		require.NoError(t, err)
	}
	_, err = svc.LogViolation(ctx, "stats-00002", model.LogViolationRequest{
		Type:        string(model.ViolationBrowserDevTools),
		AutoFlagged: true,
	})
	require.NoError(t, err)

	stats, err := svc.GetStatistics(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, service.Timeframe24h, stats.Timeframe)
	assert.Equal(t, 2, stats.TotalSessions)
	assert.Equal(t, 1, stats.SessionsByStatus[model.SessionStatusTerminated])
	assert.Equal(t, 1, stats.SessionsByStatus[model.SessionStatusActive])
	assert.Equal(t, 4, stats.TotalViolations)
	assert.Equal(t, 3, stats.ViolationsByType[model.ViolationTabSwitch])
	assert.Equal(t, 1, stats.ViolationsBySeverity[model.SeverityCritical])
	assert.Equal(t, 1, stats.AutoFlaggedViolations)
	assert.Equal(t, 1, stats.UniqueParticipants)
	assert.InDelta(t, 2.0, stats.AvgViolationsPerSess, 0.001)
}

func TestGetStatistics_InvalidTimeframe(t *testing.T) {
	svc := service.NewProctoringService(newMemProctoringStore(), nil, nil, zerolog.Nop())

	_, err := svc.GetStatistics(context.Background(), "1y")
	var verr *service.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "timeframe")
}

func TestMemorySessionCache_NeverRollsBack(t *testing.T) {
	cache := service.NewMemorySessionCache(0)
	ctx := context.Background()

	newer := &model.ProctoringSession{SessionID: "s1", Status: model.SessionStatusActive, ViolationCount: 2}
	older := &model.ProctoringSession{SessionID: "s1", Status: model.SessionStatusActive, ViolationCount: 1}
	require.NoError(t, cache.Put(ctx, newer))
	require.NoError(t, cache.Put(ctx, older))

	got, err := cache.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.ViolationCount)

	done := &model.ProctoringSession{SessionID: "s1", Status: model.SessionStatusCompleted, ViolationCount: 2}
	require.NoError(t, cache.Put(ctx, done))
	revived := &model.ProctoringSession{SessionID: "s1", Status: model.SessionStatusActive, ViolationCount: 3}
	require.NoError(t, cache.Put(ctx, revived))

	got, err = cache.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, model.SessionStatusCompleted, got.Status)

	require.NoError(t, cache.Delete(ctx, "s1"))
	got, err = cache.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, got)
}
