package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/exquiz-backend/internal/model"
	"github.com/stemsi/exquiz-backend/internal/service"
	ws "github.com/stemsi/exquiz-backend/internal/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type streamEvent struct {
	Event          ws.Event            `json:"event"`
	ViolationCount int                 `json:"violation_count"`
	Status         model.SessionStatus `json:"status"`
	EndReason      string              `json:"end_reason"`
	Error          string              `json:"error"`
}

func newStreamServer(t *testing.T) (*httptest.Server, *service.ProctoringService) {
	t.Helper()
	svc := service.NewProctoringService(newMemSessionStore(), nil, nil, zerolog.Nop())
	h := NewWSHandler(svc, zerolog.Nop(), nil)

	r := gin.New()
	r.GET("/ws/v1/proctoring/sessions/:session_id/stream", h.ProctoringStream)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, svc
}

func startSession(t *testing.T, svc *service.ProctoringService, id string, strict bool) {
	t.Helper()
	_, err := svc.StartSession(context.Background(), model.StartSessionRequest{
		SessionID:    id,
		UserEmail:    "ana@example.com",
		UserName:     "Ana",
		AssessmentID: "javascript",
		StrictMode:   strict,
	})
	require.NoError(t, err)
}

func streamURL(srv *httptest.Server, sessionID string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/v1/proctoring/sessions/" + sessionID + "/stream"
}

func dialStream(t *testing.T, srv *httptest.Server, sessionID string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(streamURL(srv, sessionID), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) streamEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var ev streamEvent
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func sendViolation(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]any{"action": "violation", "type": "tab_switch"}))
}

func TestProctoringStream_StrictSessionClosesAtThreshold(t *testing.T) {
	srv, svc := newStreamServer(t)
	startSession(t, svc, "strict-stream-1", true)
	conn := dialStream(t, srv, "strict-stream-1")

	for i := 1; i <= service.ViolationThreshold; i++ {
		sendViolation(t, conn)
		ev := readEvent(t, conn)
		assert.Equal(t, ws.EventRecorded, ev.Event)
		assert.Equal(t, i, ev.ViolationCount)
	}

	ev := readEvent(t, conn)
	assert.Equal(t, ws.EventTerminated, ev.Event)
	assert.Equal(t, model.SessionStatusTerminated, ev.Status)
	assert.Equal(t, service.EndReasonThresholdExceeded, ev.EndReason)

	// The server drops the connection after a terminal event.
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)

	sess, err := svc.GetSession(context.Background(), "strict-stream-1")
	require.NoError(t, err)
	assert.Equal(t, model.SessionStatusTerminated, sess.Status)
}

func TestProctoringStream_EndAction(t *testing.T) {
	srv, svc := newStreamServer(t)
	startSession(t, svc, "end-stream-1", false)
	conn := dialStream(t, srv, "end-stream-1")

	require.NoError(t, conn.WriteJSON(map[string]any{"action": "end"}))
	ev := readEvent(t, conn)
	assert.Equal(t, ws.EventEnded, ev.Event)
	assert.Equal(t, model.SessionStatusCompleted, ev.Status)
	assert.Equal(t, service.EndReasonCompleted, ev.EndReason)
}

func TestProctoringStream_MalformedEndKeepsSessionOpen(t *testing.T) {
	srv, svc := newStreamServer(t)
	startSession(t, svc, "end-stream-2", false)
	conn := dialStream(t, srv, "end-stream-2")

	require.NoError(t, conn.WriteJSON(map[string]any{"action": "end", "reason": 42}))
	ev := readEvent(t, conn)
	assert.Equal(t, ws.EventError, ev.Event)
	assert.Contains(t, ev.Error, "malformed end")

	sess, err := svc.GetSession(context.Background(), "end-stream-2")
	require.NoError(t, err)
	assert.Equal(t, model.SessionStatusActive, sess.Status)

	require.NoError(t, conn.WriteJSON(map[string]any{"action": "end", "reason": "finished early"}))
	ev = readEvent(t, conn)
	assert.Equal(t, ws.EventEnded, ev.Event)
	assert.Equal(t, model.SessionStatusCompleted, ev.Status)
	assert.Equal(t, "finished early", ev.EndReason)
}

func TestProctoringStream_MalformedFrameKeepsConnection(t *testing.T) {
	srv, svc := newStreamServer(t)
	startSession(t, svc, "noisy-stream-1", false)
	conn := dialStream(t, srv, "noisy-stream-1")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	ev := readEvent(t, conn)
	assert.Equal(t, ws.EventError, ev.Event)

	require.NoError(t, conn.WriteJSON(map[string]any{"action": "violation", "type": "teleport"}))
	ev = readEvent(t, conn)
	assert.Equal(t, ws.EventError, ev.Event)
	assert.Contains(t, ev.Error, "invalid violation")

	require.NoError(t, conn.WriteJSON(map[string]any{"action": "ping"}))
	ev = readEvent(t, conn)
	assert.Equal(t, ws.EventPong, ev.Event)
}

func TestProctoringStream_ReportsStoredStatusOnceEnded(t *testing.T) {
	srv, svc := newStreamServer(t)
	startSession(t, svc, "done-stream-1", false)
	conn := dialStream(t, srv, "done-stream-1")

	_, err := svc.EndSession(context.Background(), "done-stream-1", model.EndSessionRequest{})
	require.NoError(t, err)

	sendViolation(t, conn)
	ev := readEvent(t, conn)
	assert.Equal(t, ws.EventEnded, ev.Event)
	assert.Equal(t, model.SessionStatusCompleted, ev.Status)
	assert.Equal(t, service.EndReasonCompleted, ev.EndReason)
}

func TestProctoringStream_RefusesClosedSession(t *testing.T) {
	srv, svc := newStreamServer(t)
	startSession(t, svc, "closed-stream-1", false)
	_, err := svc.EndSession(context.Background(), "closed-stream-1", model.EndSessionRequest{Terminate: true})
	require.NoError(t, err)

	_, resp, err := websocket.DefaultDialer.Dial(streamURL(srv, "closed-stream-1"), nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(streamURL(srv, "missing-stream"), nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
