package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/shorts-autopilot/internal/server/middleware"
	"github.com/jonathan/shorts-autopilot/internal/types"
	"github.com/jonathan/shorts-autopilot/internal/workflow"
)

// GenerateRequest is the optional body of /generate. Without a niche id every niche runs.
type GenerateRequest struct {
	NicheID string `json:"niche_id,omitempty"`
}

// TriggerResponse acknowledges a trigger whose work continues in the background.
type TriggerResponse struct {
	Status   string   `json:"status"`
	NicheIDs []string `json:"niche_ids,omitempty"`
	RetryOf  string   `json:"retry_of,omitempty"`
}

// PlatformResponse is one fan-out outcome.
type PlatformResponse struct {
	Platform types.Platform `json:"platform"`
	Status   string         `json:"status"`
	PostID   string         `json:"post_id,omitempty"`
	PostURL  string         `json:"post_url,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// RunResponse summarizes a finished run.
type RunResponse struct {
	JobID      string             `json:"job_id,omitempty"`
	VideoID    string             `json:"video_id,omitempty"`
	Status     string             `json:"status"`
	Step       string             `json:"step,omitempty"`
	Error      string             `json:"error,omitempty"`
	Topics     int                `json:"topics"`
	Prompt     string             `json:"prompt,omitempty"`
	VideoURL   string             `json:"video_url,omitempty"`
	Platforms  []PlatformResponse `json:"platforms,omitempty"`
	DurationMS int64              `json:"duration_ms"`
}

// NewRunResponse converts a run report and its error into a response body.
func NewRunResponse(report *workflow.RunReport, err error) RunResponse {
	resp := RunResponse{Status: string(types.JobStatusCompleted)}
	if report != nil {
		resp.JobID = report.JobID
		resp.VideoID = report.VideoID
		resp.Topics = len(report.Topics)
		resp.DurationMS = report.Duration.Milliseconds()
		if report.Brief != nil {
			resp.Prompt = report.Brief.Prompt
		}
		if report.Video != nil {
			resp.VideoURL = report.Video.VideoURL
		}
		for _, r := range report.Results {
			resp.Platforms = append(resp.Platforms, PlatformResponse{
				Platform: r.Platform,
				Status:   string(r.Post.Status),
				PostID:   r.Post.PostID,
				PostURL:  r.Post.PostURL,
				Error:    r.Post.Error,
			})
		}
	}
	if err != nil {
		resp.Status = string(types.JobStatusFailed)
		resp.Error = err.Error()
		var stepErr *workflow.StepError
		if errors.As(err, &stepErr) {
			resp.Step = stepErr.Step
		}
	}
	return resp
}

// decodeOptional decodes a JSON body that may be absent.
func decodeOptional(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// caller names the authenticated caller for logs.
func caller(r *http.Request) string {
	if c, err := middleware.GetCaller(r); err == nil {
		return c
	}
	return "anonymous"
}

// resolveNiches returns the requested niche, or every niche when id is empty.
func (s *Server) resolveNiches(ctx context.Context, id string) ([]types.ContentNiche, error) {
	if id != "" {
		niche, err := s.deps.Store.GetNiche(ctx, id)
		if err != nil {
			return nil, err
		}
		if niche == nil {
			return nil, &ErrNotFound{Resource: "niche", ID: id}
		}
		return []types.ContentNiche{*niche}, nil
	}
	niches, err := s.deps.Store.ListNiches(ctx)
	if err != nil {
		return nil, err
	}
	if len(niches) == 0 {
		return nil, &ErrValidation{Field: "niche_id", Message: "no niches are configured"}
	}
	return niches, nil
}

// handleGenerate starts generation for one niche or all niches and returns immediately.
// Progress is visible through /jobs.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := decodeOptional(r, &req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if err := s.acquire(&s.generating, OperationGenerate); err != nil {
		s.errorFor(w, err)
		return
	}
	niches, err := s.resolveNiches(r.Context(), req.NicheID)
	if err != nil {
		s.release(&s.generating, OperationGenerate)
		s.errorFor(w, err)
		return
	}

	ids := make([]string, len(niches))
	for i, n := range niches {
		ids[i] = n.ID
	}
	s.logger.Printf("[server] Generation for %d niche(s) triggered by %s", len(niches), caller(r))

	s.goBackground(&s.generating, OperationGenerate, func(ctx context.Context) {
		outcomes := s.deps.Batch.RunAll(ctx, niches)
		failed := 0
		for _, o := range outcomes {
			if o.Err != nil {
				failed++
			}
		}
		s.logger.Printf("[server] Generation finished: %d run, %d failed", len(outcomes), failed)
	})

	s.jsonResponse(w, http.StatusAccepted, TriggerResponse{Status: "started", NicheIDs: ids})
}

// handleGenerateStream runs one niche and streams progress via SSE.
// The run is bound to the connection: disconnecting cancels it.
func (s *Server) handleGenerateStream(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := decodeOptional(r, &req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.NicheID == "" {
		s.errorFor(w, &ErrValidation{Field: "niche_id", Message: "is required for streaming"})
		return
	}

	if err := s.acquire(&s.generating, OperationGenerate); err != nil {
		s.errorFor(w, err)
		return
	}
	defer s.release(&s.generating, OperationGenerate)

	niches, err := s.resolveNiches(r.Context(), req.NicheID)
	if err != nil {
		s.errorFor(w, err)
		return
	}

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.logger.Printf("[server] Streaming run for niche %s triggered by %s", req.NicheID, caller(r))
	ctx := workflow.WithProgress(r.Context(), func(event workflow.ProgressEvent) {
		if err := sse.WriteEvent("step", event); err != nil {
			s.logger.Printf("[server] Error writing SSE event: %v", err)
		}
	})

	report, err := s.deps.Workflow.RunWithReport(ctx, &niches[0])
	resp := NewRunResponse(report, err)
	if err != nil {
		s.logger.Printf("[server] Streaming run failed: %v", err)
		sse.WriteEvent("error", resp) //nolint:errcheck
		return
	}
	sse.WriteComplete(resp)
}

// handleRetry validates the job synchronously, then re-runs it in the background.
func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		s.errorFor(w, &ErrValidation{Field: "id", Message: "must be a UUID"})
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
	if job.Status != types.JobStatusFailed {
		s.errorFor(w, &workflow.RetryRejectedError{JobID: job.ID, Status: job.Status})
		return
	}
	if job.Type != types.JobTypeGenerate && job.Type != "" {
		s.errorFor(w, &ErrValidation{Field: "id", Message: "only generate jobs can be retried"})
		return
	}

	if err := s.acquire(&s.generating, OperationGenerate); err != nil {
		s.errorFor(w, err)
		return
	}
	s.logger.Printf("[server] Retry of job %s triggered by %s", id, caller(r))

	s.goBackground(&s.generating, OperationGenerate, func(ctx context.Context) {
		report, err := s.deps.Workflow.RetryWithReport(ctx, id)
		if err != nil {
			s.logger.Printf("[server] Retry of job %s failed: %v", id, err)
			return
		}
		s.logger.Printf("[server] Retry of job %s produced video %s (job %s)", id, report.VideoID, report.JobID)
	})

	s.jsonResponse(w, http.StatusAccepted, TriggerResponse{Status: "started", NicheIDs: []string{job.NicheID}, RetryOf: id})
}

// CollectResponse reports an analytics pass.
type CollectResponse struct {
	Niches        int   `json:"niches"`
	NicheFailures int   `json:"niche_failures"`
	Videos        int   `json:"videos"`
	Posts         int   `json:"posts"`
	Updated       int   `json:"updated"`
	Failed        int   `json:"failed"`
	Skipped       int   `json:"skipped"`
	DurationMS    int64 `json:"duration_ms"`
}

// handleCollect runs an analytics pass and returns its summary. The pass survives a client
// disconnect so partial results are still recorded.
func (s *Server) handleCollect(w http.ResponseWriter, r *http.Request) {
	if err := s.acquire(&s.collecting, OperationCollect); err != nil {
		s.errorFor(w, err)
		return
	}
	defer s.release(&s.collecting, OperationCollect)

	s.logger.Printf("[server] Analytics collection triggered by %s", caller(r))
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), 10*time.Minute)
	defer cancel()

	summary, err := s.deps.Collector.CollectAll(ctx)
	if err != nil {
		s.errorFor(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, CollectResponse{
		Niches:        summary.Niches,
		NicheFailures: summary.NicheFailures,
		Videos:        summary.Videos,
		Posts:         summary.Posts,
		Updated:       summary.Updated,
		Failed:        summary.Failed,
		Skipped:       summary.Skipped,
		DurationMS:    summary.Duration.Milliseconds(),
	})
}
