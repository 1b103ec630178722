// Package workflow runs one niche through the full content cycle: trending topics, creative
// brief, video synthesis, asset storage and concurrent cross-posting, with job bookkeeping.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/shorts-autopilot/internal/metrics"
	"github.com/jonathan/shorts-autopilot/internal/types"
)

// Step names, used in StepError, progress events and metrics.
const (
	StepCreateJob     = "create_job"
	StepFetchTopics   = "fetch_topics"
	StepRecentPrompts = "recent_prompts"
	StepGenerateBrief = "generate_brief"
	StepGenerateVideo = "generate_video"
	StepDownloadVideo = "download_video"
	StepUploadAsset   = "upload_asset"
	StepSaveVideo     = "save_video"
	StepPost          = "post"
	StepFinalize      = "finalize"
)

// Defaults for Options.
const (
	DefaultTopicLimit    = 10
	DefaultPromptHistory = 10
)

// TopicSource returns trending topics. It handles its own failures; an empty slice is valid.
type TopicSource interface {
	Fetch(ctx context.Context, keywords []string, limit int) []types.TrendingTopic
}

// BriefGenerator turns topics and history into a creative brief.
type BriefGenerator interface {
	Generate(ctx context.Context, req types.BriefRequest) (*types.CreativeBrief, error)
}

// VideoGenerator synthesizes a video and fetches the resulting file.
type VideoGenerator interface {
	Generate(ctx context.Context, req types.VideoRequest) (*types.GeneratedVideo, error)
	Download(ctx context.Context, url string) ([]byte, error)
}

// AssetStore persists the video file and returns its public location.
type AssetStore interface {
	Upload(ctx context.Context, data []byte, videoID, nicheID string) (*types.StoredAsset, error)
}

// Poster publishes to a single platform.
type Poster interface {
	Platform() types.Platform
	Post(ctx context.Context, req types.PostRequest, creds types.PlatformCredentials) (*types.PostResult, error)
}

// Store is the record store used by the orchestrator.
type Store interface {
	GetNiche(ctx context.Context, id string) (*types.ContentNiche, error)
	CreateJob(ctx context.Context, job *types.WorkflowJob) error
	UpdateJob(ctx context.Context, job *types.WorkflowJob) error
	GetJob(ctx context.Context, id string) (*types.WorkflowJob, error)
	SaveTrendingTopics(ctx context.Context, nicheID, jobID string, topics []types.TrendingTopic) error
	RecentPrompts(ctx context.Context, nicheID string, limit int) ([]string, error)
	CreateVideo(ctx context.Context, video *types.VideoRecord) error
	AppendPlatformPost(ctx context.Context, videoID string, post types.PlatformPost) error
	UpdateVideoStatus(ctx context.Context, videoID string, status types.VideoStatus) error
}

// Deps are the orchestrator's collaborators. All are required except Posters.
type Deps struct {
	Topics  TopicSource
	Briefs  BriefGenerator
	Videos  VideoGenerator
	Assets  AssetStore
	Store   Store
	Posters []Poster
}

// ProgressEvent is emitted as a run moves through its steps.
type ProgressEvent struct {
	JobID   string `json:"job_id,omitempty"`
	Step    string `json:"step"`
	Message string `json:"message"`
}

// ProgressCallback receives progress events. It must not block for long.
type ProgressCallback func(event ProgressEvent)

type progressKey struct{}

// WithProgress attaches a callback for runs started with ctx, in addition to Options.OnProgress.
func WithProgress(ctx context.Context, cb ProgressCallback) context.Context {
	return context.WithValue(ctx, progressKey{}, cb)
}

// ProgressFrom returns the callback attached with WithProgress, or nil.
func ProgressFrom(ctx context.Context) ProgressCallback {
	cb, _ := ctx.Value(progressKey{}).(ProgressCallback)
	return cb
}

// Options tunes a run.
type Options struct {
	TopicLimit    int
	PromptHistory int
	// VideoDuration is passed to the generator; zero lets the generator choose.
	VideoDuration float64
	OnProgress    ProgressCallback
	Metrics       *metrics.Recorder
	Logger        *log.Logger
	Now           func() time.Time
}

// StepError is returned when a run fails. The job has been marked failed.
type StepError struct {
	Step  string
	Cause error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("workflow step %s failed: %v", e.Step, e.Cause)
}

func (e *StepError) Unwrap() error {
	return e.Cause
}

// ErrJobNotFound is returned by Retry for an unknown job id.
var ErrJobNotFound = errors.New("job not found")

// ErrNicheNotFound is returned when a job's niche no longer exists.
var ErrNicheNotFound = errors.New("niche not found")

// ErrNilNiche is returned when a run is requested without a niche.
var ErrNilNiche = errors.New("workflow: niche is required")

// RetryRejectedError is returned by Retry when the job is not in a failed state.
type RetryRejectedError struct {
	JobID  string
	Status types.JobStatus
}

func (e *RetryRejectedError) Error() string {
	return fmt.Sprintf("job %s is %s; only failed jobs can be retried", e.JobID, e.Status)
}

// PlatformResult is the outcome of one fan-out branch.
type PlatformResult struct {
	Platform types.Platform
	Post     types.PlatformPost
	// Err is the posting error, if any.
	Err error
	// AppendErr is set when the outcome could not be recorded on the video.
	AppendErr error
}

// RunReport describes a finished or failed run.
type RunReport struct {
	JobID    string
	VideoID  string
	Topics   []types.TrendingTopic
	Brief    *types.CreativeBrief
	Video    *types.VideoRecord
	Results  []PlatformResult
	Duration time.Duration
}

// Orchestrator sequences one content run. It is safe for concurrent use, though callers
// normally run one at a time.
type Orchestrator struct {
	deps    Deps
	opts    Options
	posters map[types.Platform]Poster
	logger  *log.Logger
	now     func() time.Time
}

// New builds an orchestrator.
func New(deps Deps, opts Options) (*Orchestrator, error) {
	switch {
	case deps.Topics == nil:
		return nil, errors.New("workflow: topic source is required")
	case deps.Briefs == nil:
		return nil, errors.New("workflow: brief generator is required")
	case deps.Videos == nil:
		return nil, errors.New("workflow: video generator is required")
	case deps.Assets == nil:
		return nil, errors.New("workflow: asset store is required")
	case deps.Store == nil:
		return nil, errors.New("workflow: store is required")
	}
	if opts.TopicLimit <= 0 {
		opts.TopicLimit = DefaultTopicLimit
	}
	if opts.PromptHistory <= 0 {
		opts.PromptHistory = DefaultPromptHistory
	}

	o := &Orchestrator{
		deps:    deps,
		opts:    opts,
		posters: make(map[types.Platform]Poster, len(deps.Posters)),
		logger:  opts.Logger,
		now:     opts.Now,
	}
	if o.logger == nil {
		o.logger = log.Default()
	}
	if o.now == nil {
		o.now = time.Now
	}
	for _, p := range deps.Posters {
		if p != nil {
			o.posters[p.Platform()] = p
		}
	}
	return o, nil
}

// Run executes a full run for the niche and returns the persisted video id.
func (o *Orchestrator) Run(ctx context.Context, niche *types.ContentNiche) (string, error) {
	report, err := o.RunWithReport(ctx, niche)
	if err != nil {
		return "", err
	}
	return report.VideoID, nil
}

// RunWithReport is Run, also returning per-step details. On failure the report is
// non-nil whenever the job was created, so callers can surface its id.
func (o *Orchestrator) RunWithReport(ctx context.Context, niche *types.ContentNiche) (*RunReport, error) {
	if niche == nil {
		return nil, ErrNilNiche
	}
	return o.run(ctx, niche, types.NewJob(types.JobTypeGenerate, niche.ID))
}

// Retry re-runs a failed job from scratch as a new job linked to the old one.
func (o *Orchestrator) Retry(ctx context.Context, jobID string) (string, error) {
	report, err := o.RetryWithReport(ctx, jobID)
	if err != nil {
		return "", err
	}
	return report.VideoID, nil
}

// RetryWithReport is Retry, returning the new run's report.
func (o *Orchestrator) RetryWithReport(ctx context.Context, jobID string) (*RunReport, error) {
	old, err := o.deps.Store.GetJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to load job %s: %w", jobID, err)
	}
	if old == nil {
		return nil, ErrJobNotFound
	}
	if old.Status != types.JobStatusFailed {
		return nil, &RetryRejectedError{JobID: old.ID, Status: old.Status}
	}

	niche, err := o.deps.Store.GetNiche(ctx, old.NicheID)
	if err != nil {
		return nil, fmt.Errorf("failed to load niche %s: %w", old.NicheID, err)
	}
	if niche == nil {
		return nil, ErrNicheNotFound
	}

	job := types.NewJob(old.Type, niche.ID)
	if job.Type == "" {
		job.Type = types.JobTypeGenerate
	}
	job.RetryCount = old.RetryCount + 1
	job.RetryOf = old.ID
	o.logger.Printf("[workflow] Retrying job %s (attempt %d)", old.ID, job.RetryCount)
	return o.run(ctx, niche, job)
}

func (o *Orchestrator) run(ctx context.Context, niche *types.ContentNiche, job *types.WorkflowJob) (*RunReport, error) {
	started := o.now()
	report := &RunReport{}
	defer func() { report.Duration = o.now().Sub(started) }()

	// 1. Job bookkeeping.
	if err := o.deps.Store.CreateJob(ctx, job); err != nil {
		o.opts.Metrics.ObserveStepFailure(StepCreateJob)
		o.opts.Metrics.ObserveRun(false, o.now().Sub(started))
		return nil, &StepError{Step: StepCreateJob, Cause: err}
	}
	report.JobID = job.ID
	if err := job.Start(o.now()); err != nil {
		return report, o.fail(ctx, job, StepCreateJob, err, started)
	}
	if err := o.deps.Store.UpdateJob(ctx, job); err != nil {
		return report, o.fail(ctx, job, StepCreateJob, err, started)
	}
	o.logger.Printf("[workflow] Job %s started for niche %s", job.ID, niche.ID)
	o.emit(ctx, job.ID, StepCreateJob, fmt.Sprintf("Started job for niche %q", niche.Name))

	// 2. Trending topics never fail the run.
	topics := o.deps.Topics.Fetch(ctx, niche.Keywords, o.opts.TopicLimit)
	report.Topics = topics
	if len(topics) > 0 {
		if err := o.deps.Store.SaveTrendingTopics(ctx, niche.ID, job.ID, topics); err != nil {
			o.logger.Printf("[workflow] Warning: failed to save trending topics for job %s: %v", job.ID, err)
		}
	}
	o.emit(ctx, job.ID, StepFetchTopics, fmt.Sprintf("Found %d trending topics", len(topics)))

	// 3. Prompt history.
	previous, err := o.deps.Store.RecentPrompts(ctx, niche.ID, o.opts.PromptHistory)
	if err != nil {
		return report, o.fail(ctx, job, StepRecentPrompts, err, started)
	}

	// 4. Creative brief.
	style := InferStyle(niche.Name)
	brief, err := o.deps.Briefs.Generate(ctx, types.BriefRequest{
		NicheName:       niche.Name,
		Keywords:        niche.Keywords,
		Topics:          topics,
		PreviousPrompts: previous,
		Style:           style,
	})
	if err != nil {
		return report, o.fail(ctx, job, StepGenerateBrief, err, started)
	}
	report.Brief = brief
	o.emit(ctx, job.ID, StepGenerateBrief, fmt.Sprintf("Generated %s brief", style))

	// 5-6. Synthesis.
	videoID := uuid.NewString()
	generated, err := o.deps.Videos.Generate(ctx, types.VideoRequest{
		Prompt:   brief.Prompt,
		NicheID:  niche.ID,
		Duration: o.opts.VideoDuration,
	})
	if err != nil {
		return report, o.fail(ctx, job, StepGenerateVideo, err, started)
	}
	o.emit(ctx, job.ID, StepGenerateVideo, "Video synthesis finished")

	// 7. Durable storage.
	data, err := o.deps.Videos.Download(ctx, generated.VideoURL)
	if err != nil {
		return report, o.fail(ctx, job, StepDownloadVideo, err, started)
	}
	asset, err := o.deps.Assets.Upload(ctx, data, videoID, niche.ID)
	if err != nil {
		return report, o.fail(ctx, job, StepUploadAsset, err, started)
	}
	o.emit(ctx, job.ID, StepUploadAsset, fmt.Sprintf("Stored %d bytes at %s", len(data), asset.StoragePath))

	// 8. Video record.
	video := &types.VideoRecord{
		ID:          videoID,
		NicheID:     niche.ID,
		JobID:       job.ID,
		Prompt:      brief.Prompt,
		Description: brief.Description,
		Hashtags:    brief.SuggestedHashtags,
		VideoURL:    asset.PublicURL,
		SourceURL:   generated.VideoURL,
		StoragePath: asset.StoragePath,
		Duration:    generated.Duration,
		Status:      types.VideoStatusReady,
		Platforms:   []types.PlatformPost{},
	}
	if err := o.deps.Store.CreateVideo(ctx, video); err != nil {
		return report, o.fail(ctx, job, StepSaveVideo, err, started)
	}
	job.VideoID = video.ID
	report.VideoID = video.ID
	report.Video = video

	// 9. Fan-out.
	results := o.fanOut(ctx, niche, video, data, brief)
	report.Results = results
	// Report only what the store recorded.
	for _, r := range results {
		if r.AppendErr != nil {
			continue
		}
		video.Platforms = append(video.Platforms, r.Post)
	}
	o.emit(ctx, job.ID, StepPost, summarizeResults(results))

	// 10. Finalize.
	if err := o.deps.Store.UpdateVideoStatus(ctx, video.ID, types.VideoStatusPosted); err != nil {
		return report, o.fail(ctx, job, StepFinalize, err, started)
	}
	video.Status = types.VideoStatusPosted
	if err := job.Complete(o.now()); err != nil {
		return report, o.fail(ctx, job, StepFinalize, err, started)
	}
	if err := o.deps.Store.UpdateJob(ctx, job); err != nil {
		o.opts.Metrics.ObserveStepFailure(StepFinalize)
		o.opts.Metrics.ObserveRun(false, o.now().Sub(started))
		return report, &StepError{Step: StepFinalize, Cause: err}
	}

	o.opts.Metrics.ObserveRun(true, o.now().Sub(started))
	o.logger.Printf("[workflow] Job %s completed: video %s", job.ID, video.ID)
	o.emit(ctx, job.ID, StepFinalize, fmt.Sprintf("Completed video %s", video.ID))
	return report, nil
}

// fail marks the job failed, persists it on a context that survives cancellation,
// and returns the StepError for the caller.
func (o *Orchestrator) fail(ctx context.Context, job *types.WorkflowJob, step string, cause error, started time.Time) error {
	stepErr := &StepError{Step: step, Cause: cause}
	o.opts.Metrics.ObserveStepFailure(step)
	o.opts.Metrics.ObserveRun(false, o.now().Sub(started))
	o.logger.Printf("[workflow] Job %s failed at %s: %v", job.ID, step, cause)

	if err := job.Fail(stepErr.Error(), o.now()); err != nil {
		o.logger.Printf("[workflow] Warning: %v", err)
		return stepErr
	}
	if err := o.deps.Store.UpdateJob(context.WithoutCancel(ctx), job); err != nil {
		o.logger.Printf("[workflow] Warning: failed to persist failure of job %s: %v", job.ID, err)
	}
	o.emit(ctx, job.ID, step, stepErr.Error())
	return stepErr
}

// emit delivers a progress event to the configured callback and to any callback attached
// to ctx. A panicking callback is logged and ignored.
func (o *Orchestrator) emit(ctx context.Context, jobID, step, message string) {
	event := ProgressEvent{JobID: jobID, Step: step, Message: message}
	o.deliver(o.opts.OnProgress, event)
	o.deliver(ProgressFrom(ctx), event)
}

func (o *Orchestrator) deliver(cb ProgressCallback, event ProgressEvent) {
	if cb == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			o.logger.Printf("[workflow] Warning: progress callback panicked: %v", r)
		}
	}()
	cb(event)
}

func summarizeResults(results []PlatformResult) string {
	if len(results) == 0 {
		return "No platforms enabled"
	}
	posted := 0
	for _, r := range results {
		if r.Err == nil {
			posted++
		}
	}
	return fmt.Sprintf("Posted to %d of %d platforms", posted, len(results))
}
