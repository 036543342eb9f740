package model

import "time"

// SessionStatus enumerates proctoring session states.
// Paused is declared for compatibility with stored rows but no transition
// produces it.
type SessionStatus string

const (
	SessionStatusActive     SessionStatus = "active"
	SessionStatusCompleted  SessionStatus = "completed"
	SessionStatusTerminated SessionStatus = "terminated"
	SessionStatusPaused     SessionStatus = "paused"
)

// SessionStatuses lists every declared status.
var SessionStatuses = []SessionStatus{
	SessionStatusActive, SessionStatusCompleted, SessionStatusTerminated, SessionStatusPaused,
}

// Terminal reports whether no further transition is allowed.
func (s SessionStatus) Terminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusTerminated
}

// ViolationType is the kind of client-reported anomaly.
type ViolationType string

const (
	ViolationTabSwitch       ViolationType = "tab_switch"
	ViolationWindowBlur      ViolationType = "window_blur"
	ViolationMultipleFaces   ViolationType = "multiple_faces"
	ViolationNoFace          ViolationType = "no_face"
	ViolationSuspiciousAudio ViolationType = "suspicious_audio"
	ViolationRightClick      ViolationType = "right_click"
	ViolationCopyPaste       ViolationType = "copy_paste"
	ViolationFullscreenExit  ViolationType = "fullscreen_exit"
	ViolationBrowserDevTools ViolationType = "browser_dev_tools"
	ViolationExternalMonitor ViolationType = "external_monitor"
)

// ViolationTypes lists every known violation type.
var ViolationTypes = []ViolationType{
	ViolationTabSwitch, ViolationWindowBlur, ViolationMultipleFaces, ViolationNoFace,
	ViolationSuspiciousAudio, ViolationRightClick, ViolationCopyPaste,
	ViolationFullscreenExit, ViolationBrowserDevTools, ViolationExternalMonitor,
}

// Severity grades a violation.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Severities lists every severity.
var Severities = []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}

// SessionSettings are the client monitoring switches chosen at session start.
type SessionSettings struct {
	FaceDetection      bool `json:"face_detection"`
	TabSwitchDetection bool `json:"tab_switch_detection"`
	FullscreenRequired bool `json:"fullscreen_required"`
	AudioMonitoring    bool `json:"audio_monitoring"`
	CopyPasteBlocking  bool `json:"copy_paste_blocking"`
	ScreenshotInterval int  `json:"screenshot_interval_seconds,omitempty"`
}

// ProctoringSession is one participant's monitored attempt.
type ProctoringSession struct {
	SessionID      string          `json:"session_id"`
	UserEmail      string          `json:"user_email"`
	UserName       string          `json:"user_name"`
	AssessmentID   string          `json:"assessment_id"`
	Level          ProctoringLevel `json:"level"`
	StrictMode     bool            `json:"strict_mode"`
	Settings       SessionSettings `json:"settings"`
	Status         SessionStatus   `json:"status"`
	StartTime      time.Time       `json:"start_time"`
	EndTime        *time.Time      `json:"end_time,omitempty"`
	EndReason      string          `json:"end_reason,omitempty"`
	ViolationCount int             `json:"violation_count"`
}

// Evidence is the structured payload attached to a violation. Known detector
// fields are typed; anything else goes into Extra.
type Evidence struct {
	FaceCount   *int              `json:"face_count,omitempty"`
	Confidence  *float64          `json:"confidence,omitempty"`
	AudioLevel  *float64          `json:"audio_level,omitempty"`
	DurationMs  *int64            `json:"duration_ms,omitempty"`
	URL         string            `json:"url,omitempty"`
	Screenshot  string            `json:"screenshot,omitempty"`
	MonitorInfo string            `json:"monitor_info,omitempty"`
	Extra       map[string]string `json:"extra,omitempty"`
}

// Violation is an append-only anomaly record owned by a session.
type Violation struct {
	ID          int64         `json:"id"`
	SessionID   string        `json:"session_id"`
	Type        ViolationType `json:"type"`
	Severity    Severity      `json:"severity"`
	Description string        `json:"description"`
	Evidence    Evidence      `json:"evidence"`
	AutoFlagged bool          `json:"auto_flagged"`
	Timestamp   time.Time     `json:"timestamp"`
}

// SessionFilter narrows a session listing. Empty fields are ignored.
type SessionFilter struct {
	Status       SessionStatus
	AssessmentID string
	UserEmail    string
	Limit        int
}

// ViolationOutcome is returned to the caller after logging a violation.
type ViolationOutcome struct {
	Violation      Violation     `json:"violation"`
	ViolationCount int           `json:"violation_count"`
	Status         SessionStatus `json:"status"`
	Terminated     bool          `json:"terminated"`
	EndReason      string        `json:"end_reason,omitempty"`
}

// SessionCounts is the raw aggregate returned by the store.
type SessionCounts struct {
	ByStatus     map[SessionStatus]int
	ByType       map[ViolationType]int
	BySeverity   map[Severity]int
	AutoFlagged  int
	UniqueUsers  int
	AvgViolation float64
}

// ProctoringStatistics is the dashboard aggregate over a timeframe.
type ProctoringStatistics struct {
	Timeframe             string                `json:"timeframe"`
	Since                 *time.Time            `json:"since,omitempty"`
	TotalSessions         int                   `json:"total_sessions"`
	SessionsByStatus      map[SessionStatus]int `json:"sessions_by_status"`
	TotalViolations       int                   `json:"total_violations"`
	ViolationsByType      map[ViolationType]int `json:"violations_by_type"`
	ViolationsBySeverity  map[Severity]int      `json:"violations_by_severity"`
	AutoFlaggedViolations int                   `json:"auto_flagged_violations"`
	UniqueParticipants    int                   `json:"unique_participants"`
	AvgViolationsPerSess  float64               `json:"avg_violations_per_session"`
}

// StartSessionRequest is the payload for opening a proctoring session.
type StartSessionRequest struct {
	SessionID    string          `json:"session_id" binding:"required,min=8,max=128"`
	UserEmail    string          `json:"user_email" binding:"required,email,max=255"`
	UserName     string          `json:"user_name" binding:"required,min=1,max=255"`
	AssessmentID string          `json:"assessment_id" binding:"required,min=1,max=100"`
	Level        string          `json:"level" binding:"omitempty,oneof=basic standard advanced"`
	StrictMode   bool            `json:"strict_mode"`
	Settings     SessionSettings `json:"settings"`
}

// LogViolationRequest is the payload for reporting a violation.
type LogViolationRequest struct {
	Type        string   `json:"type" binding:"required,oneof=tab_switch window_blur multiple_faces no_face suspicious_audio right_click copy_paste fullscreen_exit browser_dev_tools external_monitor"`
	Severity    string   `json:"severity" binding:"omitempty,oneof=low medium high critical"`
	Description string   `json:"description" binding:"omitempty,max=1000"`
	Evidence    Evidence `json:"evidence"`
	AutoFlagged bool     `json:"auto_flagged"`
}

// EndSessionRequest is the payload for closing a proctoring session.
type EndSessionRequest struct {
	Reason    string `json:"reason" binding:"omitempty,max=255"`
	Terminate bool   `json:"terminate"`
}

// MonitorEvent is published on the assessment monitor channel.
type MonitorEvent struct {
	Type      string             `json:"type"`
	SessionID string             `json:"session_id"`
	UserEmail string             `json:"user_email,omitempty"`
	Status    SessionStatus      `json:"status"`
	Count     int                `json:"violation_count"`
	Violation *Violation         `json:"violation,omitempty"`
	Session   *ProctoringSession `json:"session,omitempty"`
}
