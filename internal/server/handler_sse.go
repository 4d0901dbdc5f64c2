package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/me/workgate/pkg/model"
)

// handleSSEConstraints streams constraint changes via Server-Sent Events.
// GET /api/v1/sse/constraints
func (s *Server) handleSSEConstraints(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	if s.broadcaster == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("stream", "constraints"))
		return
	}

	// Set headers for SSE.
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	// Subscribe before the snapshot so no change between the two is lost.
	events, cancel := s.broadcaster.Subscribe()
	defer cancel()

	// Send initial state.
	if err := sendSSEEvent(w, flusher, "init", s.constraints()); err != nil {
		s.logger.Debug("sse client disconnected", "error", err)
		return
	}

	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				sendSSEEvent(w, flusher, "close", nil)
				return
			}
			if err := sendSSEEvent(w, flusher, "delta", ev); err != nil {
				s.logger.Debug("sse client disconnected", "error", err)
				return
			}
		case <-ticker.C:
			fmt.Fprintf(w, ": heartbeat\n\n")
			flusher.Flush()
		}
	}
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData)
	if err != nil {
		return err
	}

	flusher.Flush()
	return nil
}
