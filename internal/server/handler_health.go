package server

import (
	"net/http"
	"runtime"
	"time"
)

// Version is reported by /health and the discovery endpoint.
var Version = "0.1.0"

type healthResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	GoVersion   string `json:"go_version"`
	Uptime      string `json:"uptime"`
	Scheduler   string `json:"scheduler"`
	Store       string `json:"store"`
	Subscribers int    `json:"sse_subscribers"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	resp := healthResponse{
		Status:    "healthy",
		Version:   Version,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
		Scheduler: "disabled",
		Store:     "ok",
	}
	if s.scheduler != nil {
		resp.Scheduler = "running"
	}
	if s.broadcaster != nil {
		resp.Subscribers = s.broadcaster.Subscribers()
	}
	if s.store == nil {
		resp.Store = "unavailable"
		resp.Status = "degraded"
	}
	respondOK(w, reqID, resp)
}
