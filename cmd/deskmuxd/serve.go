package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/deskmux/deskmux/internal/actions"
	"github.com/deskmux/deskmux/internal/broadcast"
	"github.com/deskmux/deskmux/internal/config"
	"github.com/deskmux/deskmux/internal/gateway"
	"github.com/deskmux/deskmux/internal/observability"
	"github.com/deskmux/deskmux/internal/orchestrator/agentpool"
	"github.com/deskmux/deskmux/internal/orchestrator/budget"
	"github.com/deskmux/deskmux/internal/orchestrator/contextpool"
	"github.com/deskmux/deskmux/internal/orchestrator/contexttape"
	"github.com/deskmux/deskmux/internal/orchestrator/dispatcher"
	"github.com/deskmux/deskmux/internal/orchestrator/limiter"
	"github.com/deskmux/deskmux/internal/orchestrator/mainproc"
	"github.com/deskmux/deskmux/internal/orchestrator/queue"
	"github.com/deskmux/deskmux/internal/orchestrator/timeline"
	"github.com/deskmux/deskmux/internal/orchestrator/windowproc"
	"github.com/deskmux/deskmux/internal/orchestrator/windowstate"
	"github.com/deskmux/deskmux/internal/provider"
	"github.com/deskmux/deskmux/internal/reloadcache"
	"github.com/deskmux/deskmux/internal/reloadcache/jsonfile"
	"github.com/deskmux/deskmux/internal/reloadcache/s3store"
	"github.com/deskmux/deskmux/internal/reloadcache/sqlitestore"
	"github.com/deskmux/deskmux/internal/sessionlog"
)

// runServe loads configuration, wires every orchestration collaborator, and
// serves the gateway and metrics endpoints until interrupted.
func runServe(ctx context.Context, configPath string, debug bool) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	} else if parsed, err := parseLevel(cfg.Logging.Level); err == nil {
		level = parsed
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if configPath != "" {
		watcher, err := config.Watch(configPath, cfg, logger, func(next config.Config) {
			cfg = next
		})
		if err != nil {
			logger.Warn("serve: config watch disabled", "error", err)
		} else {
			defer watcher.Close()
		}
	}

	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)
	tracerProvider := observability.NewTracerProvider()
	defer tracerProvider.Shutdown(context.Background())

	store, closeStore, err := buildReloadCacheStore(ctx, cfg.ReloadCache)
	if err != nil {
		return fmt.Errorf("serve: reload cache store: %w", err)
	}
	if closeStore != nil {
		defer closeStore()
	}
	cache, err := reloadcache.New(ctx, store, cfg.ReloadCache.ExactMatchThreshold, cfg.ReloadCache.FuzzyThreshold, cfg.ReloadCache.TopK)
	if err != nil {
		return fmt.Errorf("serve: reload cache: %w", err)
	}

	sessionLogger, err := sessionlog.New(cfg.Server.SessionLogDir, string(cfg.Provider.Transport), time.Now())
	if err != nil {
		return fmt.Errorf("serve: session log: %w", err)
	}
	defer sessionLogger.Close()

	registry := windowstate.New()
	tape := contexttape.New(cfg.Limits.MainMessageSoftCap)
	var restoredMonitors []string
	if prior, err := sessionlog.FindNewestSession(cfg.Server.SessionLogDir); err == nil {
		if result, err := sessionlog.Restore(prior); err == nil {
			for _, a := range result.AliveWindows {
				if err := registry.Apply(a); err != nil {
					logger.Warn("serve: restore window action failed", "error", err)
				}
			}
			tape.Restore(result.MainMessages)
			if len(result.AliveWindows) > 0 || len(result.MainMessages) > 0 {
				restoredMonitors = []string{defaultMonitorID}
			}
		} else {
			logger.Warn("serve: session restore failed", "session", prior, "error", err)
		}
	}

	center := broadcast.New(logger, func() { metrics.BroadcastDelivered.Inc() }, func() { metrics.BroadcastDropped.Inc() })

	validator, err := actions.NewSchemaValidator()
	if err != nil {
		return fmt.Errorf("serve: action schema: %w", err)
	}
	actionEmitter := actions.New(registry, center, sessionLogger, validator, logger)

	lim := limiter.New(cfg.Limits.AgentLimiterCapacity)
	bud := budget.New(cfg.Limits.MonitorBudget)
	tl := timeline.New(cfg.Limits.InteractionTimelineCap)

	warmPool := provider.NewWarmPool(rawDialer(cfg.Provider), cfg.Provider.WarmPoolSize)
	go func() {
		if err := warmPool.Fill(ctx); err != nil {
			logger.Warn("serve: warm pool fill failed", "error", err)
		}
	}()
	defer warmPool.Close()
	pool := agentpool.New(lim, warmPool.Lease, center, logger)

	hasWindow := func(windowID string) bool { return registry.HasWindow(windowID) }

	mp := mainproc.New(mainproc.Config{
		Pool:      pool,
		Limiter:   mainproc.LimiterWaitTimeout(time.Duration(cfg.Limits.LimiterWaitSeconds) * time.Second),
		Budget:    bud,
		Tape:      tape,
		Timeline:  tl,
		Cache:     cache,
		Actions:   actionEmitter,
		Tools:     nil,
		HasWindow: hasWindow,
		QueueCap:  cfg.Limits.MainQueueCap,
		Log:       logger,
	})

	wp := windowproc.New(windowproc.Config{
		Pool:      pool,
		Queue:     queue.NewWindowQueue(),
		Tape:      tape,
		Actions:   actionEmitter,
		Broadcast: center,
		Tools:     nil,
		Log:       logger,
	})

	disp := dispatcher.New(pool, func() string { return tape.FormatForPrompt(contexttape.FormatOptions{}) }, nil, actionEmitter)

	cp := contextpool.New(contextpool.Config{
		Limiter:    lim,
		Budget:     bud,
		Tape:       tape,
		Timeline:   tl,
		Registry:   registry,
		Pool:       pool,
		MainProc:   mp,
		WindowProc: wp,
		Dispatcher: disp,
		Broadcast:  center,
		Log:        logger,
	})
	if len(restoredMonitors) > 0 {
		if err := cp.Initialize(ctx, restoredMonitors); err != nil {
			logger.Warn("serve: restore initialize failed", "error", err)
		}
	}

	var jwtSecret []byte
	if cfg.Auth.Required {
		jwtSecret = []byte(os.Getenv(cfg.Auth.JWTSecretEnv))
		if len(jwtSecret) == 0 {
			return fmt.Errorf("serve: auth required but %s is unset", cfg.Auth.JWTSecretEnv)
		}
	}
	gwServer := gateway.NewServer(cfg.Gateway, cfg.Auth, jwtSecret, center, cp, logger)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	httpServer := &http.Server{Addr: cfg.Server.BindAddr, Handler: gwServer}
	metricsServer := &http.Server{Addr: cfg.Server.MetricsAddr, Handler: mux}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)
	go func() {
		logger.Info("serve: gateway listening", "addr", cfg.Server.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("gateway: %w", err)
		}
	}()
	go func() {
		logger.Info("serve: metrics listening", "addr", cfg.Server.MetricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("metrics: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("serve: shutdown signal received")
	case err := <-errCh:
		logger.Error("serve: server failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeoutSeconds)*time.Second)
	defer cancel()

	cp.Cleanup()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("serve: gateway shutdown", "error", err)
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("serve: metrics shutdown", "error", err)
	}
	return nil
}

func loadConfig(configPath string) (config.Config, error) {
	if configPath == "" {
		return config.Default(), nil
	}
	return config.Load(configPath)
}

func parseLevel(level string) (slog.Level, error) {
	var l slog.Level
	err := l.UnmarshalText([]byte(level))
	return l, err
}

func rawDialer(cfg config.ProviderConfig) provider.Dialer {
	return func(ctx context.Context) (provider.Provider, error) {
		switch cfg.Transport {
		case config.ProviderTransportWebsocket:
			return provider.DialWSProvider("provider", cfg.URL)
		default:
			return provider.NewStdioProvider("provider", cfg.Command, cfg.Args...)
		}
	}
}

func buildReloadCacheStore(ctx context.Context, cfg config.ReloadCacheConfig) (reloadcache.Store, func(), error) {
	switch cfg.Backend {
	case config.ReloadCacheBackendSQLite:
		s, err := sqlitestore.Open(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	case config.ReloadCacheBackendS3:
		s, err := s3store.New(ctx, cfg.S3Bucket, cfg.S3Prefix)
		if err != nil {
			return nil, nil, err
		}
		return s, nil, nil
	default:
		return jsonfile.New(cfg.Path), nil, nil
	}
}

// defaultMonitorID is the single-monitor deployment's implicit monitor id:
// this build does not track a window->monitor index (see ContextPool's
// monitorForWindow), so every restored window belongs to the one monitor.
const defaultMonitorID = ""
