package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/shorts-autopilot/internal/config"
	"github.com/jonathan/shorts-autopilot/internal/scheduler"
	"github.com/jonathan/shorts-autopilot/internal/server"
	"github.com/jonathan/shorts-autopilot/internal/server/ratelimit"
)

var (
	servePort         int
	serveWithSchedule bool
	serveNoAuth       bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP trigger and inspection API",
	Long: `Start an HTTP server exposing /generate, /analytics/collect, job retry, job/video/niche
inspection, /metrics and the stored video assets.

Trigger endpoints require a Bearer token signed with TRIGGER_SECRET (see "autopilot token").
With --schedule the posting-slot scheduler runs in the same process.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (defaults to PORT or 8080)")
	serveCmd.Flags().BoolVar(&serveWithSchedule, "schedule", false, "Also run the posting-slot scheduler")
	serveCmd.Flags().BoolVar(&serveNoAuth, "no-auth", false, "Leave trigger endpoints unauthenticated (local use only)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("port") {
		cfg.Port = servePort
	}

	var auth *config.TriggerAuthConfig
	if !serveNoAuth {
		if auth, err = config.NewTriggerAuthConfig(); err != nil {
			return fmt.Errorf("%w (or pass --no-auth)", err)
		}
	}

	ctx := context.Background()
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.withWorkflow(ctx); err != nil {
		return err
	}

	srv, err := server.New(server.Config{
		Port:      cfg.Port,
		AssetsDir: cfg.StorageDir,
		Auth:      auth,
		RateLimit: ratelimit.LoadConfig(),
		Logger:    a.logger,
	}, server.Deps{
		Store:     a.store,
		Workflow:  a.workflow,
		Batch:     a.driver,
		Collector: a.collector,
		Metrics:   a.metrics,
		Gatherer:  a.registry,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	if serveWithSchedule {
		loopCtx, cancel := context.WithCancel(ctx)
		done := make(chan error, 1)
		go func() { done <- a.newLoop().Run(loopCtx) }()
		defer func() {
			cancel()
			if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Printf("[scheduler] Loop stopped: %v", err)
			}
		}()
	}

	return srv.Start()
}

// newLoop builds the scheduler loop over the app's driver and collector.
func (a *app) newLoop() *scheduler.Loop {
	return scheduler.NewLoop(a.driver, a.store, a.collector, scheduler.LoopOptions{
		Tick:         config.Duration(a.cfg.ScheduleTick, 0),
		CollectEvery: config.Duration(a.cfg.CollectEvery, 0),
		Logger:       a.logger,
	})
}
