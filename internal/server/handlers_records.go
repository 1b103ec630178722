package server

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/jonathan/shorts-autopilot/internal/db"
	"github.com/jonathan/shorts-autopilot/internal/types"
)

const maxListLimit = 200

// parseLimit reads ?limit=, defaulting to 50 and capping at maxListLimit.
func parseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 50, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		return 0, &ErrValidation{Field: "limit", Message: "must be a positive integer"}
	}
	return min(limit, maxListLimit), nil
}

func parseUUID(r *http.Request, name string) (string, error) {
	id := r.PathValue(name)
	if _, err := uuid.Parse(id); err != nil {
		return "", &ErrValidation{Field: name, Message: "must be a UUID"}
	}
	return id, nil
}

// handleListJobs lists jobs filtered by niche_id, type and status.
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		s.errorFor(w, err)
		return
	}
	q := r.URL.Query()
	filters := types.JobFilters{
		NicheID: q.Get("niche_id"),
		Type:    types.JobType(q.Get("type")),
		Status:  types.JobStatus(q.Get("status")),
		Limit:   limit,
	}
	if filters.Type != "" && !filters.Type.Valid() {
		s.errorFor(w, &ErrValidation{Field: "type", Message: "unknown job type"})
		return
	}
	if filters.Status != "" && !filters.Status.Valid() {
		s.errorFor(w, &ErrValidation{Field: "status", Message: "unknown job status"})
		return
	}

	jobs, err := s.deps.Store.ListJobs(r.Context(), filters)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Database error: "+err.Error())
		return
	}
	if jobs == nil {
		jobs = []types.WorkflowJob{}
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"jobs": jobs, "count": len(jobs)})
}

// handleGetJob returns one job.
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUID(r, "id")
	if err != nil {
		s.errorFor(w, err)
		return
	}
	job, err := s.deps.Store.GetJob(r.Context(), id)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Database error: "+err.Error())
		return
	}
	if job == nil {
		s.errorFor(w, &ErrNotFound{Resource: "job", ID: id})
		return
	}
	s.jsonResponse(w, http.StatusOK, job)
}

// handleGetVideo returns one video with its platform posts.
func (s *Server) handleGetVideo(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUID(r, "id")
	if err != nil {
		s.errorFor(w, err)
		return
	}
	video, err := s.deps.Store.GetVideo(r.Context(), id)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Database error: "+err.Error())
		return
	}
	if video == nil {
		s.errorFor(w, &ErrNotFound{Resource: "video", ID: id})
		return
	}
	s.jsonResponse(w, http.StatusOK, video)
}

// handleListNiches lists niches with credential secrets removed.
func (s *Server) handleListNiches(w http.ResponseWriter, r *http.Request) {
	niches, err := s.deps.Store.ListNiches(r.Context())
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Database error: "+err.Error())
		return
	}
	out := make([]types.ContentNiche, len(niches))
	for i, n := range niches {
		out[i] = n.Redacted()
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"niches": out, "count": len(out)})
}

// handleGetNiche returns one niche with credential secrets removed.
func (s *Server) handleGetNiche(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	niche, err := s.deps.Store.GetNiche(r.Context(), id)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Database error: "+err.Error())
		return
	}
	if niche == nil {
		s.errorFor(w, &ErrNotFound{Resource: "niche", ID: id})
		return
	}
	s.jsonResponse(w, http.StatusOK, niche.Redacted())
}

// handleListNicheVideos lists a niche's videos, newest first, optionally by status.
func (s *Server) handleListNicheVideos(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		s.errorFor(w, err)
		return
	}
	status := types.VideoStatus(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		s.errorFor(w, &ErrValidation{Field: "status", Message: "unknown video status"})
		return
	}

	videos, err := s.deps.Store.ListVideos(r.Context(), db.VideoFilters{
		NicheID: r.PathValue("id"),
		Status:  status,
		Limit:   limit,
	})
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Database error: "+err.Error())
		return
	}
	if videos == nil {
		videos = []types.VideoRecord{}
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"videos": videos, "count": len(videos)})
}
