package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/exquiz-backend/internal/model"
	"github.com/stemsi/exquiz-backend/internal/service"
	"github.com/stemsi/exquiz-backend/internal/validator"
	ws "github.com/stemsi/exquiz-backend/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams violations from a proctored client.
type WSHandler struct {
	proctoringService *service.ProctoringService
	log               zerolog.Logger
	upgrader          websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(proctoringService *service.ProctoringService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		proctoringService: proctoringService,
		log:               log.With().Str("component", "ws_handler").Logger(),
		upgrader:          buildUpgrader(allowedOrigins),
	}
}

// ProctoringStream godoc
// WS /ws/v1/proctoring/sessions/:session_id/stream
// Accepts "violation", "ping" and "end" actions for an active session.
func (h *WSHandler) ProctoringStream(c *gin.Context) {
	sessionID := c.Param("session_id")

	sess, err := h.proctoringService.GetSession(c.Request.Context(), sessionID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	if sess.Status.Terminal() {
		respondError(c, h.log, service.ErrSessionNotActive)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().Str("session_id", sessionID).Logger()
	wsLog.Info().Msg("Proctoring client connected")

	for {
		action, raw, err := ws.ReadAction(conn)
		if err != nil {
			if errors.Is(err, ws.ErrMalformedFrame) {
				ws.WriteError(conn, "malformed message")
				continue
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		// The request context ends with the hijacked connection.
		ctx := context.Background()

		switch action {
		case ws.ActionPing:
			ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong})
		case ws.ActionViolation:
			if done := h.handleViolation(ctx, conn, wsLog, sessionID, raw); done {
				return
			}
		case ws.ActionEnd:
			if done := h.handleEnd(ctx, conn, wsLog, sessionID, raw); done {
				return
			}
		default:
			wsLog.Warn().Str("action", string(action)).Msg("Unknown action")
			ws.WriteError(conn, "unknown action: "+string(action))
		}
	}
}

// handleViolation logs one violation and reports whether the stream should
// close because the session is no longer active.
func (h *WSHandler) handleViolation(ctx context.Context, conn *websocket.Conn, wsLog zerolog.Logger, sessionID string, raw []byte) bool {
	var msg ws.ViolationRequest
	if err := json.Unmarshal(raw, &msg); err != nil {
		ws.WriteError(conn, "malformed violation")
		return false
	}

	req := model.LogViolationRequest{
		Type:        msg.Type,
		Severity:    msg.Severity,
		Description: msg.Description,
		Evidence:    msg.Evidence,
		AutoFlagged: msg.AutoFlagged,
	}
	if fields := validator.Struct(&req); fields != nil {
		ws.WriteError(conn, "invalid violation: "+firstFieldError(fields))
		return false
	}

	out, err := h.proctoringService.LogViolation(ctx, sessionID, req)
	switch {
	case errors.Is(err, service.ErrSessionNotActive), errors.Is(err, service.ErrSessionNotFound):
		ws.WriteTyped(conn, h.closedResponse(ctx, sessionID))
		return true
	case err != nil:
		wsLog.Error().Err(err).Msg("Log violation failed")
		ws.WriteError(conn, "violation not recorded")
		return false
	}

	ws.WriteTyped(conn, ws.RecordedResponse{
		Event:          ws.EventRecorded,
		ViolationID:    out.Violation.ID,
		ViolationCount: out.ViolationCount,
		Status:         out.Status,
	})
	if out.Terminated {
		ws.WriteTyped(conn, ws.SessionClosedResponse{
			Event:     ws.EventTerminated,
			Status:    out.Status,
			EndReason: out.EndReason,
		})
		return true
	}
	return false
}

// handleEnd closes the session and reports whether the stream should close.
// A malformed frame leaves the session open.
func (h *WSHandler) handleEnd(ctx context.Context, conn *websocket.Conn, wsLog zerolog.Logger, sessionID string, raw []byte) bool {
	var msg ws.EndRequest
	if err := json.Unmarshal(raw, &msg); err != nil {
		wsLog.Warn().Err(err).Msg("Malformed end frame")
		ws.WriteError(conn, "malformed end")
		return false
	}

	sess, err := h.proctoringService.EndSession(ctx, sessionID, model.EndSessionRequest{Reason: msg.Reason})
	if err != nil {
		wsLog.Error().Err(err).Msg("End session failed")
		ws.WriteError(conn, "end failed")
		return true
	}
	ws.WriteTyped(conn, ws.SessionClosedResponse{
		Event:     ws.EventEnded,
		Status:    sess.Status,
		EndReason: sess.EndReason,
	})
	return true
}

// closedResponse reports the stored state of a session that stopped
// accepting violations. Status is left empty when the session is gone.
func (h *WSHandler) closedResponse(ctx context.Context, sessionID string) ws.SessionClosedResponse {
	resp := ws.SessionClosedResponse{Event: ws.EventEnded}
	sess, err := h.proctoringService.GetSession(ctx, sessionID)
	if err != nil {
		return resp
	}
	resp.Status = sess.Status
	resp.EndReason = sess.EndReason
	if sess.Status == model.SessionStatusTerminated {
		resp.Event = ws.EventTerminated
	}
	return resp
}

func firstFieldError(fields map[string]string) string {
	for k, v := range fields {
		return k + ": " + v
	}
	return ""
}
