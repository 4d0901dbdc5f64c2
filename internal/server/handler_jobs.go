package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/me/workgate/internal/store"
	"github.com/me/workgate/pkg/model"
)

func (s *Server) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	var req model.SubmitJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, reqID, http.StatusBadRequest, &model.APIError{
			Code:    model.ErrValidation,
			Message: "Invalid JSON body: " + err.Error(),
		})
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError("invalid job", errs...))
		return
	}

	if req.Constraints.RequiredNetwork == "" {
		req.Constraints.RequiredNetwork = model.NetworkNone
	}
	now := time.Now().UTC()
	job := &model.Job{
		ID:          "job_" + uuid.New().String(),
		Name:        req.Name,
		State:       model.JobStateEnqueued,
		Constraints: req.Constraints,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateJob(r.Context(), job); err != nil {
		respondInternal(w, reqID, err)
		return
	}
	s.logger.Info("job submitted", "job_id", job.ID, "name", job.Name, "kinds", job.Constraints.Kinds())

	if s.scheduler != nil {
		s.scheduler.Notify()
	}
	respondCreated(w, reqID, s.status(job))
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	opts, apiErr := listOptions(r)
	if apiErr != nil {
		respondError(w, reqID, http.StatusBadRequest, apiErr)
		return
	}

	jobs, total, err := s.store.ListJobs(r.Context(), opts)
	if err != nil {
		respondInternal(w, reqID, err)
		return
	}
	if jobs == nil {
		jobs = []*model.Job{}
	}

	respondList(w, reqID, jobs, &model.Pagination{
		Total:   total,
		Limit:   opts.Limit,
		Offset:  opts.Offset,
		HasMore: opts.Offset+opts.Limit < total,
	})
}

// listOptions parses ?state=, ?limit= and ?offset=.
func listOptions(r *http.Request) (model.ListOptions, *model.APIError) {
	q := r.URL.Query()
	opts := model.DefaultListOptions()
	var details []model.FieldError

	if state := q.Get("state"); state != "" {
		st := model.JobState(state)
		if _, known := model.ValidJobTransitions[st]; !known && !st.IsTerminal() {
			details = append(details, model.FieldError{Field: "state", Message: "unknown job state " + state})
		}
		opts.State = state
	}
	for _, p := range []struct {
		name string
		dst  *int
	}{{"limit", &opts.Limit}, {"offset", &opts.Offset}} {
		v := q.Get(p.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			details = append(details, model.FieldError{Field: p.name, Message: "must be an integer"})
			continue
		}
		*p.dst = n
	}
	if len(details) > 0 {
		return opts, model.NewValidationError("invalid query", details...)
	}
	opts.Clamp()
	return opts, nil
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	job, err := s.store.GetJob(r.Context(), id)
	if err != nil {
		respondInternal(w, reqID, err)
		return
	}
	if job == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("job", id))
		return
	}
	respondOK(w, reqID, s.status(job))
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, model.JobStateCancelled)
}

func (s *Server) handleCompleteJob(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	var req struct {
		Success *bool `json:"success"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, reqID, http.StatusBadRequest, &model.APIError{
			Code:    model.ErrValidation,
			Message: "Invalid JSON body: " + err.Error(),
		})
		return
	}
	if req.Success == nil {
		respondError(w, reqID, http.StatusBadRequest,
			model.NewValidationError("missing required field",
				model.FieldError{Field: "success", Message: "success is required"}))
		return
	}

	next := model.JobStateSucceeded
	if !*req.Success {
		next = model.JobStateFailed
	}
	s.transition(w, r, next)
}

// transition moves job {id} to a terminal state.
func (s *Server) transition(w http.ResponseWriter, r *http.Request, next model.JobState) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	job, err := s.store.GetJob(r.Context(), id)
	if err != nil {
		respondInternal(w, reqID, err)
		return
	}
	if job == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("job", id))
		return
	}

	if !job.State.CanTransitionTo(next) {
		terr := &model.InvalidTransitionError{Entity: "job", ID: job.ID, From: string(job.State), To: string(next)}
		respondError(w, reqID, http.StatusConflict, model.NewConflictError(terr.Error()))
		return
	}

	now := time.Now().UTC()
	job.State = next
	job.CompletedAt = &now
	if err := s.store.UpdateJob(r.Context(), job); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("job", id))
			return
		}
		respondInternal(w, reqID, err)
		return
	}
	s.logger.Info("job finished", "job_id", job.ID, "state", job.State)

	if s.scheduler != nil {
		s.scheduler.Notify()
	}
	respondOK(w, reqID, s.status(job))
}

// status decorates job with its current eligibility.
func (s *Server) status(job *model.Job) model.JobStatus {
	st := model.JobStatus{Job: *job}
	if job.State.IsTerminal() {
		return st
	}
	if s.scheduler != nil {
		st.Blocking = s.scheduler.Blocking(job)
	} else {
		st.Blocking = job.Constraints.Kinds()
	}
	st.Eligible = len(st.Blocking) == 0
	return st
}
