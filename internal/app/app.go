// Package app wires the gateway's components — pool registry, cooldown
// tracker, scheduler, forwarder, telemetry sink — into a running HTTP
// server, and owns their startup/shutdown lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/axleway/llmgate/internal/adapter/balancer"
	"github.com/axleway/llmgate/internal/adapter/cooldown"
	"github.com/axleway/llmgate/internal/adapter/forwarder"
	"github.com/axleway/llmgate/internal/adapter/registry"
	"github.com/axleway/llmgate/internal/adapter/telemetry"
	"github.com/axleway/llmgate/internal/app/httpapi"
	"github.com/axleway/llmgate/internal/app/middleware"
	"github.com/axleway/llmgate/internal/config"
	"github.com/axleway/llmgate/internal/core/constants"
	"github.com/axleway/llmgate/internal/core/domain"
	"github.com/axleway/llmgate/internal/logger"
	"github.com/axleway/llmgate/internal/router"
	"github.com/axleway/llmgate/pkg/eventbus"
)

// Application owns the wired gateway: the in-memory pool registry, the
// SWRR scheduler, the cooldown tracker, the streaming forwarder, the
// telemetry sink, and the HTTP server that fronts them.
type Application struct {
	configMu sync.RWMutex
	config   *config.Config

	server   *http.Server
	log      logger.StyledLogger
	registry *router.RouteRegistry

	poolRegistry *registry.Registry
	cooldownSvc  *cooldown.Tracker
	cooldownBus  *eventbus.EventBus[domain.CooldownEvent]
	scheduler    *balancer.Scheduler
	sink         *telemetry.Sink
	mirror       *telemetry.Mirror
	fwd          *forwarder.Forwarder

	StartTime time.Time
	errCh     chan error
}

// New builds the application, loading configuration and seeding the pool
// registry from the fleet config. log is the already-constructed styled
// logger; startTime is carried through for uptime/process-stats reporting.
func New(startTime time.Time, log logger.StyledLogger) (*Application, error) {
	a := &Application{
		log:       log,
		StartTime: startTime,
		errCh:     make(chan error, 1),
	}

	cfg, err := config.Load(a.onConfigChanged)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	a.config = cfg

	defaults := registry.PoolDefaults{
		CooldownSeconds: cfg.Pools.DefaultCooldownSeconds,
		MaxRetries:      cfg.Pools.MaxRetriesPerProvider,
	}
	a.poolRegistry = registry.SeedFromConfig(&cfg.Fleet, defaults, cfg.Pools.MaxLogsCount)
	a.cooldownSvc = cooldown.NewTracker()
	a.cooldownBus = eventbus.New[domain.CooldownEvent]()
	a.cooldownSvc.SetEventBus(a.cooldownBus)
	a.scheduler = balancer.NewScheduler(a.poolRegistry, a.cooldownSvc)

	if cfg.Redis.Enabled {
		mirror, err := telemetry.NewMirror(cfg.Redis.Addr)
		if err != nil {
			a.log.Warn("Redis stats mirror unavailable, continuing without it", "error", err)
		} else {
			a.mirror = mirror
		}
	}
	a.sink = telemetry.New(a.log, cfg.Pools.MaxLogsCount, a.mirror)

	client := &http.Client{Timeout: 0} // per-attempt timeout is applied via context, not the client
	a.fwd = forwarder.New(a.poolRegistry, a.scheduler, a.cooldownSvc, a.sink, client, a.log)

	a.registry = router.NewRouteRegistry(a.log)

	a.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return a, nil
}

// onConfigChanged fires on a debounced config-file write. The pool registry
// and scheduler read through to live config only for policy knobs (cooldown
// defaults, retry counts) already captured at seed time, so a full restart
// is the safe reload story for the fleet topology; we log the event for
// operator visibility rather than attempt a hot topology swap mid-flight.
func (a *Application) onConfigChanged() {
	a.log.Info("Configuration file changed; restart to apply fleet/topology changes")
}

// Start wires the HTTP routes and begins serving.
func (a *Application) Start(ctx context.Context) error {
	go func() {
		select {
		case err := <-a.errCh:
			a.log.Error("Server startup error", "error", err)
		case <-ctx.Done():
			return
		}
	}()

	a.watchCooldownEvents(ctx)
	a.startWebServer()

	a.log.Info("llmgate started", "bind", a.server.Addr)
	return nil
}

// watchCooldownEvents logs endpoint park/clear transitions as they happen,
// so an operator tailing logs sees fleet health change in real time instead
// of having to poll /internal/status.
func (a *Application) watchCooldownEvents(ctx context.Context) {
	events, unsubscribe := a.cooldownBus.Subscribe(ctx)
	go func() {
		defer unsubscribe()
		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return
				}
				if ev.Parked {
					a.log.InfoHealthStatus("Endpoint parked", ev.EndpointID, logger.StateParked, "reason", ev.Reason, "duration", ev.Duration)
				} else {
					a.log.InfoHealthStatus("Endpoint cleared", ev.EndpointID, logger.StateHealthy)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop gracefully shuts down the HTTP server.
func (a *Application) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, a.getConfig().Server.ShutdownTimeout)
	defer cancel()

	a.cooldownBus.Shutdown()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP server shutdown error: %w", err)
	}
	return nil
}

func (a *Application) startWebServer() {
	cfg := a.getConfig()
	a.log.Info("Starting web server...", "host", cfg.Server.Host, "port", cfg.Server.Port)

	handlers := &httpapi.Handlers{
		Forwarder:   a.fwd,
		Sink:        a.sink,
		Cooldown:    a.cooldownSvc,
		Pools:       cfg.Pools,
		MaxBodySize: cfg.Server.RequestLimits.MaxBodySize,
		Log:         a.log,
		StartedAt:   a.StartTime,
	}
	a.registerRoutes(handlers)

	mux := chi.NewRouter()
	mux.Use(middleware.EnhancedLoggingMiddleware(a.log))
	mux.Use(middleware.AccessLoggingMiddleware(a.log))
	a.registry.WireUp(mux)

	a.server.Handler = mux

	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("HTTP server error", "error", err)
			a.errCh <- err
		}
	}()

	a.log.Info("Started web server", "bind", a.server.Addr)
}

func (a *Application) registerRoutes(h *httpapi.Handlers) {
	a.registry.RegisterWithMethod(constants.RouteChatCompletions, h.ChatCompletions, "OpenAI-shaped chat completions (forwarding)", http.MethodPost)
	a.registry.RegisterWithMethod(constants.RouteMessages, h.Messages, "Anthropic-shaped messages (forwarding)", http.MethodPost)
	a.registry.RegisterWithMethod(constants.RouteModels, h.Models, "Virtual model listing", http.MethodGet)
	a.registry.RegisterWithMethod(constants.RouteHealth, h.Health, "Liveness check", http.MethodGet)
	a.registry.RegisterWithMethod(constants.RouteStatus, h.Status, "Endpoint stats, parked endpoints, recent request log", http.MethodGet)
	a.registry.RegisterWithMethod("/internal/process", a.processStatsHandler, "Process memory/GC/goroutine stats", http.MethodGet)
}
