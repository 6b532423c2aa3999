// Package app is the composition root: it wires every component named by
// the orchestrator's design into one running application.
package app

import (
	"context"
	"fmt"
	"os"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/orchestrator/internal/aggregator"
	"github.com/ternarybob/orchestrator/internal/common"
	"github.com/ternarybob/orchestrator/internal/genexec"
	"github.com/ternarybob/orchestrator/internal/handlers"
	"github.com/ternarybob/orchestrator/internal/healthprobe"
	"github.com/ternarybob/orchestrator/internal/interfaces"
	"github.com/ternarybob/orchestrator/internal/iteration"
	"github.com/ternarybob/orchestrator/internal/models"
	"github.com/ternarybob/orchestrator/internal/preference"
	"github.com/ternarybob/orchestrator/internal/registry"
	"github.com/ternarybob/orchestrator/internal/rewriter"
	"github.com/ternarybob/orchestrator/internal/router"
	"github.com/ternarybob/orchestrator/internal/server"
	"github.com/ternarybob/orchestrator/internal/template"
	"github.com/ternarybob/orchestrator/internal/workerclient"
)

// App holds every long-lived component and the HTTP server that exposes them.
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	ctx       context.Context
	cancelCtx context.CancelFunc

	Registry         *registry.Registry
	Prober           *healthprobe.Prober
	Pool             *workerclient.Pool
	Router           *router.Router
	Templates        *template.Engine
	Aggregator       *aggregator.Aggregator
	Preference       *preference.Engine
	Rewriter         interfaces.Rewriter
	Executor         *genexec.Executor
	Controller       *iteration.Controller
	HTTP             *server.Server
	proberCancel     context.CancelFunc
	aggregatorCancel context.CancelFunc
}

// New wires every component and returns a not-yet-started App.
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())
	a := &App{
		Config:    cfg,
		Logger:    logger,
		ctx:       ctx,
		cancelCtx: cancel,
	}

	a.Registry = registry.New(logger)
	if err := a.loadNodes(); err != nil {
		return nil, err
	}

	a.Prober = healthprobe.New(a.Registry, cfg.Health.Interval, cfg.Health.ProbeTimeout, logger)

	workerCfg := workerclient.Config{
		SubmitTimeout:     cfg.Worker.SubmitTimeout,
		PollInterval:      cfg.Worker.PollInterval,
		PollTimeout:       cfg.Worker.PollTimeout,
		ArtifactTimeout:   cfg.Worker.ArtifactTimeout,
		ReconnectMinDelay: cfg.Worker.ReconnectMinDelay,
		ReconnectMaxDelay: cfg.Worker.ReconnectMaxDelay,
		KeepaliveInterval: cfg.Worker.KeepaliveInterval,
	}
	a.Pool = workerclient.NewPool(a.Registry, workerCfg, logger)

	a.Router = router.New(a.Registry, cfg.Router.OverflowQueueThreshold)

	manifest, err := template.LoadManifestDir(cfg.Template.ManifestDir)
	if err != nil {
		return nil, fmt.Errorf("load template manifest: %w", err)
	}
	a.Templates = template.New(manifest)

	a.Aggregator = aggregator.New(cfg.Aggregator.SubscriberBufferSize, cfg.Aggregator.DropWarnLogInterval, logger)

	a.Preference = preference.New(logger)
	if cfg.Preference.ExportPath != "" {
		if err := a.importPreferences(); err != nil {
			logger.Warn().Err(err).Msg("no existing preference export to import, starting empty")
		}
	}

	a.Rewriter, err = newRewriter(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("init rewriter: %w", err)
	}

	a.Executor = genexec.New(a.Registry, a.Router, a.Templates, a.Pool, a.Aggregator, a.Preference,
		genexec.Config{JobDeadline: cfg.Worker.JobDeadline}, logger)

	a.Controller = iteration.New(a.Executor, a.Preference, a.Rewriter, a.Aggregator, logger)

	a.HTTP = server.New(a.buildHandlers(logger), cfg.Server, logger)

	return a, nil
}

// buildHandlers constructs the HTTP handler bundle the server dispatches to.
func (a *App) buildHandlers(logger arbor.ILogger) *server.Handlers {
	return &server.Handlers{
		Session:    handlers.NewSessionHandler(a.Controller, logger),
		Generate:   handlers.NewGenerateHandler(a.Controller, logger),
		Iterate:    handlers.NewIterateHandler(a.Controller, logger),
		Node:       handlers.NewNodeHandler(a.Registry, logger),
		Preference: handlers.NewPreferenceHandler(a.Preference, logger),
		WebSocket:  handlers.NewWebSocketHandler(a.Aggregator, logger),
	}
}

// newRewriter selects the prompt-rewriter implementation named by cfg.
func newRewriter(ctx context.Context, cfg *common.Config, logger arbor.ILogger) (interfaces.Rewriter, error) {
	switch cfg.Rewriter.Provider {
	case "genai":
		return rewriter.NewGenAI(ctx, cfg.Rewriter.APIKey, cfg.Rewriter.Model, logger)
	case "", "noop":
		return rewriter.NewNoop(), nil
	default:
		return nil, fmt.Errorf("unknown rewriter provider %q: %w", cfg.Rewriter.Provider, models.ErrConfigError)
	}
}

// loadNodes reads the declarative node inventory and loads it into the Registry.
func (a *App) loadNodes() error {
	nodes, err := common.LoadNodes(a.Config.Nodes.ConfigFile)
	if err != nil {
		return fmt.Errorf("load node inventory: %w", err)
	}
	return a.Registry.Load(nodes)
}

// importPreferences loads a previously exported preference document from
// disk, if one exists.
func (a *App) importPreferences() error {
	data, err := os.ReadFile(a.Config.Preference.ExportPath)
	if err != nil {
		return err
	}
	return a.Preference.Import(data)
}

// exportPreferences persists the current preference state to disk.
func (a *App) exportPreferences() error {
	data, err := a.Preference.Export()
	if err != nil {
		return err
	}
	return os.WriteFile(a.Config.Preference.ExportPath, data, 0o644)
}

// ReloadNodes re-reads the declarative node inventory and atomically
// replaces the Registry's contents, for SIGHUP-triggered reloads.
func (a *App) ReloadNodes() error {
	if err := a.loadNodes(); err != nil {
		a.Logger.Error().Err(err).Msg("node inventory reload failed, previous inventory retained")
		return err
	}
	a.Logger.Info().Msg("node inventory reloaded")
	return nil
}

// Run starts the Health Prober, the Aggregator's per-node upstream event
// consumers, and the HTTP server; it blocks until the server stops.
func (a *App) Run() error {
	proberCtx, cancel := context.WithCancel(a.ctx)
	a.proberCancel = cancel
	go a.Prober.Run(proberCtx)

	aggregatorCtx, aggCancel := context.WithCancel(a.ctx)
	a.aggregatorCancel = aggCancel
	go a.Aggregator.Run(aggregatorCtx, a.Pool, a.Registry, a.Logger)

	return a.HTTP.Start()
}

// Shutdown gracefully stops the HTTP server, the Health Prober, and persists
// the current preference state.
func (a *App) Shutdown(ctx context.Context) error {
	if err := a.HTTP.Shutdown(ctx); err != nil {
		a.Logger.Warn().Err(err).Msg("HTTP server shutdown reported an error")
	}

	if a.proberCancel != nil {
		a.proberCancel()
	}
	if a.aggregatorCancel != nil {
		a.aggregatorCancel()
	}
	a.cancelCtx()

	if a.Config.Preference.ExportPath != "" {
		if err := a.exportPreferences(); err != nil {
			a.Logger.Warn().Err(err).Msg("failed to persist preference export on shutdown")
		}
	}

	common.Stop()
	return nil
}
