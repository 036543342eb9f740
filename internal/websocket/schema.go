package websocket

import "github.com/stemsi/exquiz-backend/internal/model"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionViolation Action = "violation"
	ActionPing      Action = "ping"
	ActionEnd       Action = "end"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// ViolationRequest reports one anomaly detected by the client.
type ViolationRequest struct {
	Action      Action         `json:"action"`
	Type        string         `json:"type"`
	Severity    string         `json:"severity"`
	Description string         `json:"description"`
	Evidence    model.Evidence `json:"evidence"`
	AutoFlagged bool           `json:"auto_flagged"`
}

// EndRequest closes the session from the client side.
type EndRequest struct {
	Action Action `json:"action"`
	Reason string `json:"reason"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError      Event = "error"
	EventRecorded   Event = "recorded"
	EventTerminated Event = "terminated"
	EventEnded      Event = "ended"
	EventPong       Event = "pong"
)

// RecordedResponse acknowledges a violation.
type RecordedResponse struct {
	Event          Event               `json:"event"`
	ViolationID    int64               `json:"violation_id"`
	ViolationCount int                 `json:"violation_count"`
	Status         model.SessionStatus `json:"status"`
}

// SessionClosedResponse is sent when the session reaches a terminal state.
type SessionClosedResponse struct {
	Event     Event               `json:"event"`
	Status    model.SessionStatus `json:"status,omitempty"`
	EndReason string              `json:"end_reason,omitempty"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
