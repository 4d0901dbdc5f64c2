package server

import (
	"net/http"

	"github.com/me/workgate/pkg/model"
)

func (s *Server) handleConstraints(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	respondOK(w, reqID, s.constraints())
}

// constraints returns the scheduler's view, or every kind constrained
// when no scheduler is configured.
func (s *Server) constraints() []model.ConditionStatus {
	if s.scheduler != nil {
		return s.scheduler.Constraints()
	}
	out := make([]model.ConditionStatus, 0, len(model.AllConditionKinds()))
	for _, kind := range model.AllConditionKinds() {
		out = append(out, model.ConditionStatus{Kind: kind, Source: kind.Source(), Constrained: true})
	}
	return out
}
