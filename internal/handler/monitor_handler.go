package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exquiz-backend/internal/metrics"
	"github.com/stemsi/exquiz-backend/internal/response"
	"github.com/stemsi/exquiz-backend/internal/service"
)

const (
	refreshInterval   = 15 * time.Second
	keepAliveInterval = 30 * time.Second
	refreshTimeout    = 5 * time.Second // prevent slow queries from blocking the SSE loop
)

type MonitorHandler struct {
	monitorService *service.MonitorService
	log            zerolog.Logger
}

func NewMonitorHandler(monitorService *service.MonitorService, log zerolog.Logger) *MonitorHandler {
	return &MonitorHandler{
		monitorService: monitorService,
		log:            log.With().Str("component", "monitor_handler").Logger(),
	}
}

// MonitorAssessmentSSE godoc
// GET /api/v1/admin/proctoring/assessments/:id/monitor
// Sends a snapshot, then forwards live session events for the assessment.
func (h *MonitorHandler) MonitorAssessmentSSE(c *gin.Context) {
	assessmentID := c.Param("id")
	if assessmentID == "" {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	reqCtx := c.Request.Context()

	// Fail before committing to the stream if the store is down.
	snapCtx, cancel := context.WithTimeout(reqCtx, refreshTimeout)
	snap, err := h.monitorService.GetAssessmentSnapshot(snapCtx, assessmentID)
	cancel()
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	c.SSEvent("message", gin.H{"type": "snapshot", "data": snap})
	c.Writer.Flush()

	pubsub := h.monitorService.Subscribe(reqCtx, assessmentID)
	defer pubsub.Close()
	ch := pubsub.Channel()

	metrics.MonitorSubscribers.Inc()
	defer metrics.MonitorSubscribers.Dec()

	keepAliveTicker := time.NewTicker(keepAliveInterval)
	defer keepAliveTicker.Stop()

	refreshTicker := time.NewTicker(refreshInterval)
	defer refreshTicker.Stop()

	// Skip refreshes until something has happened since the snapshot.
	dirty := false

	h.log.Info().Str("assessment_id", assessmentID).Msg("Admin attached to proctoring monitor SSE")

	pingPayload, _ := json.Marshal(map[string]string{"type": "ping"})

	for {
		select {
		case <-reqCtx.Done():
			h.log.Info().Str("assessment_id", assessmentID).Msg("Admin disconnected from proctoring monitor SSE")
			return

		case msg, ok := <-ch:
			if !ok {
				return
			}
			// Forward the published JSON as is.
			c.Writer.Write([]byte("data: "))
			c.Writer.Write([]byte(msg.Payload))
			c.Writer.Write([]byte("\n\n"))
			c.Writer.Flush()
			dirty = true

		case <-refreshTicker.C:
			if !dirty {
				continue
			}
			h.sendRefresh(c, reqCtx, assessmentID)
			dirty = false

		case <-keepAliveTicker.C:
			c.Writer.Write([]byte("data: "))
			c.Writer.Write(pingPayload)
			c.Writer.Write([]byte("\n\n"))
			c.Writer.Flush()
		}
	}
}

// sendRefresh re-reads the snapshot so counts stay correct if an event was
// missed while the subscriber was reconnecting.
func (h *MonitorHandler) sendRefresh(c *gin.Context, parentCtx context.Context, assessmentID string) {
	ctx, cancel := context.WithTimeout(parentCtx, refreshTimeout)
	defer cancel()

	snap, err := h.monitorService.GetAssessmentSnapshot(ctx, assessmentID)
	if err != nil {
		h.log.Warn().Err(err).Str("assessment_id", assessmentID).Msg("Failed to refresh monitor snapshot")
		return
	}

	c.SSEvent("message", gin.H{"type": "refresh", "data": snap})
	c.Writer.Flush()
}
