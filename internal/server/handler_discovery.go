package server

import "net/http"

type endpointInfo struct {
	Path        string   `json:"path"`
	Methods     []string `json:"methods"`
	Description string   `json:"description"`
}

type discoveryResponse struct {
	Name        string         `json:"name"`
	Version     string         `json:"version"`
	Description string         `json:"description"`
	Endpoints   []endpointInfo `json:"endpoints"`
}

func (s *Server) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	endpoints := []endpointInfo{
		{"/api/v1/jobs", []string{"GET", "POST"}, "Job submission and listing. GET accepts ?state=, ?limit=, ?offset="},
		{"/api/v1/jobs/{id}", []string{"GET"}, "Single Job with eligibility and blocking conditions"},
		{"/api/v1/jobs/{id}/cancel", []string{"POST"}, "Cancel an enqueued or running Job"},
		{"/api/v1/jobs/{id}/complete", []string{"POST"}, "Report a running Job as succeeded or failed"},
		{"/api/v1/constraints", []string{"GET"}, "Constrained status of every condition kind"},
		{"/api/v1/sse/constraints", []string{"GET"}, "Server-Sent Events stream of constraint changes"},
		{"/api/v1/health", []string{"GET"}, "Server health and version"},
	}
	if s.metrics != nil {
		endpoints = append(endpoints, endpointInfo{"/api/v1/metrics", []string{"GET"}, "Prometheus metrics"})
	}
	respondOK(w, reqID, discoveryResponse{
		Name:        "workgate API",
		Version:     "v1",
		Description: "Constraint-gated background job scheduling",
		Endpoints:   endpoints,
	})
}
