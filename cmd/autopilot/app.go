package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/jonathan/shorts-autopilot/internal/analytics"
	"github.com/jonathan/shorts-autopilot/internal/brief"
	"github.com/jonathan/shorts-autopilot/internal/config"
	"github.com/jonathan/shorts-autopilot/internal/db"
	"github.com/jonathan/shorts-autopilot/internal/fetch"
	"github.com/jonathan/shorts-autopilot/internal/llm"
	"github.com/jonathan/shorts-autopilot/internal/metrics"
	"github.com/jonathan/shorts-autopilot/internal/observability"
	"github.com/jonathan/shorts-autopilot/internal/platforms"
	"github.com/jonathan/shorts-autopilot/internal/scheduler"
	"github.com/jonathan/shorts-autopilot/internal/storage"
	"github.com/jonathan/shorts-autopilot/internal/topics"
	"github.com/jonathan/shorts-autopilot/internal/videogen"
	"github.com/jonathan/shorts-autopilot/internal/workflow"
)

// defaultSubreddits feed the Reddit source when none are configured.
var defaultSubreddits = []string{"popular", "todayilearned"}

// loadConfig layers the --config file and flag overrides over the environment and built-in defaults.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	var cfg config.Config
	if configPath != "" {
		loaded, err := config.LoadConfig(configPath)
		if err != nil {
			return cfg, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = *loaded
	}

	if cmd.Flags().Changed("db-url") {
		cfg.DatabaseURL = databaseURL
	}
	if cmd.Flags().Changed("verbose") {
		cfg.Verbose = verbose
	}

	cfg = cfg.MergeWithDefaults(config.FromEnv())
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// app holds the components a command needs. Fields are filled by newApp and withWorkflow.
type app struct {
	cfg     config.Config
	logger  *log.Logger
	printer *observability.Printer

	store     *db.DB
	registry  *prometheus.Registry
	metrics   *metrics.Recorder
	posters   platforms.Registry
	collector *analytics.Collector

	llm      llm.Client
	workflow *workflow.Orchestrator
	driver   *scheduler.Driver
}

// newApp connects to the database and builds the metrics, posters and analytics collector.
func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	if err := cfg.Require("database_url"); err != nil {
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		logger:  log.Default(),
		printer: observability.NewPrinter(os.Stdout),
	}

	store, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	a.store = store

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if a.metrics, err = metrics.NewRecorder(a.registry); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	a.posters = buildPosters(cfg)
	sources := make([]analytics.Source, 0, len(a.posters))
	for _, p := range a.posters.Posters() {
		sources = append(sources, p)
	}
	a.collector = analytics.NewCollector(store, sources, analytics.Options{
		Window:  cfg.AnalyticsWindow(),
		Metrics: a.metrics,
		Logger:  a.logger,
	})
	return a, nil
}

// withWorkflow builds the generation side: topics, LLM briefs, video synthesis and storage.
func (a *app) withWorkflow(ctx context.Context) error {
	cfg := a.cfg
	if err := cfg.Require("gemini_api_key", "video_api_token", "storage_dir", "public_base_url"); err != nil {
		return err
	}

	llmConfig := llm.DefaultConfig()
	if cfg.GeminiModel != "" {
		llmConfig = llmConfig.WithModel(llm.TierStandard, cfg.GeminiModel)
	}
	client, err := llm.NewClient(ctx, llmConfig, cfg.GeminiAPIKey)
	if err != nil {
		return fmt.Errorf("failed to create LLM client: %w", err)
	}
	a.llm = client

	videos, err := videogen.NewClient(videogen.Config{
		BaseURL:     cfg.VideoAPIURL,
		Token:       cfg.VideoAPIToken,
		Model:       cfg.VideoModel,
		AspectRatio: cfg.AspectRatio,
		Duration:    cfg.VideoDuration,
	})
	if err != nil {
		return fmt.Errorf("failed to create video client: %w", err)
	}

	assets, err := storage.NewLocalStore(cfg.StorageDir, cfg.PublicBaseURL)
	if err != nil {
		return err
	}

	topicSource, err := buildTopicSource(ctx, cfg, a.logger)
	if err != nil {
		return err
	}

	posters := make([]workflow.Poster, 0, len(a.posters))
	for _, p := range a.posters.Posters() {
		posters = append(posters, p)
	}

	opts := workflow.Options{
		TopicLimit:    cfg.TopicLimit,
		PromptHistory: cfg.PromptHistory,
		VideoDuration: cfg.VideoDuration,
		Metrics:       a.metrics,
		Logger:        a.logger,
	}
	if cfg.Verbose {
		opts.OnProgress = a.printer.PrintProgress
	}

	a.workflow, err = workflow.New(workflow.Deps{
		Topics:  topicSource,
		Briefs:  brief.NewGenerator(client),
		Videos:  videos,
		Assets:  assets,
		Store:   a.store,
		Posters: posters,
	}, opts)
	if err != nil {
		return err
	}

	a.driver = scheduler.NewDriver(a.workflow, scheduler.DriverOptions{
		NichePause: config.Duration(cfg.NichePause, 0),
		Logger:     a.logger,
	})
	return nil
}

// Close releases the database pool and LLM client.
func (a *app) Close() {
	if a.llm != nil {
		if err := a.llm.Close(); err != nil {
			a.logger.Printf("[cli] Warning: failed to close LLM client: %v", err)
		}
	}
	if a.store != nil {
		a.store.Close()
	}
}

// buildPosters registers a poster per platform. Niches without credentials for a platform are
// skipped at fan-out time, so every poster is always registered.
func buildPosters(cfg config.Config) platforms.Registry {
	return platforms.NewRegistry(
		platforms.NewYouTube(platforms.YouTubeConfig{}),
		platforms.NewInstagram(platforms.InstagramConfig{}),
		platforms.NewTikTok(platforms.TikTokConfig{
			Policy: platforms.TikTokPolicy{
				PrivacyLevel: cfg.TikTokPrivacyLevel,
				Audited:      cfg.TikTokAudited,
			},
		}),
	)
}

// buildTopicSource aggregates Reddit, Google Custom Search (when keyed) and headline pages.
func buildTopicSource(ctx context.Context, cfg config.Config, logger *log.Logger) (*topics.Aggregator, error) {
	if logger == nil {
		logger = log.Default()
	}
	subreddits := cfg.Subreddits
	if len(subreddits) == 0 {
		subreddits = defaultSubreddits
	}
	sources := []topics.Source{
		topics.NewRedditSource(ctx, topics.RedditConfig{
			Subreddits:   subreddits,
			ClientID:     cfg.RedditClientID,
			ClientSecret: cfg.RedditClientSecret,
		}),
	}

	if cfg.SearchAPIKey != "" && cfg.SearchEngineID != "" {
		search, err := topics.NewSearchSource(ctx, cfg.SearchAPIKey, cfg.SearchEngineID)
		if err != nil {
			return nil, err
		}
		sources = append(sources, search)
	} else if cfg.Verbose {
		logger.Printf("[cli] Google Custom Search not configured; skipping search topics")
	}

	if len(cfg.HeadlinePages) > 0 {
		fetcherConfig := &fetch.CachedFetcherConfig{CacheTTL: 30 * time.Minute}
		if cfg.UseBrowser {
			fetcherConfig.Renderer = &fetch.Browser{Timeout: time.Minute, Verbose: cfg.Verbose}
		}
		sources = append(sources, topics.NewHeadlinesSource(fetch.NewCachedFetcher(fetcherConfig), cfg.HeadlinePages...))
	}

	return topics.NewAggregator(logger, sources...), nil
}

// signalContext returns a context canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
