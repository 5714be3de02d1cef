// Package main implements the hwagent entry point: it probes the machine,
// maintains the persisted hardware profile and serves the status API, with
// all slow work running on the background task pool.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cfab/hwagent/internal/api"
	"github.com/cfab/hwagent/internal/config"
	"github.com/cfab/hwagent/internal/events"
	"github.com/cfab/hwagent/internal/hardware"
	"github.com/cfab/hwagent/internal/i18n"
	"github.com/cfab/hwagent/internal/platform/logger"
	"github.com/cfab/hwagent/internal/resource"
	"github.com/cfab/hwagent/internal/task"
)

const version = "0.1.0"

func main() {
	if err := run(); err != nil {
		log.Fatalf("hwagent failed: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger, logQueue := logger.Setup(cfg.Logging)
	if logQueue != nil {
		defer logQueue.Stop()
	}
	appLogger.Info("hwagent starting",
		slog.String("version", version),
		slog.Int("port", cfg.Server.Port),
		slog.String("log_level", cfg.Logging.Level))

	prefs, err := config.NewPreferences("preferences.json", appLogger)
	if err != nil {
		return fmt.Errorf("failed to load preferences: %w", err)
	}

	// Task pool and its health monitor.
	emitter := events.NewInMemoryEmitter(appLogger)
	emitter.RegisterHandler(events.HandlerFunc(func(ctx context.Context, e *events.TaskEvent) error {
		appLogger.Debug("task event",
			slog.String("task_id", e.TaskID.String()),
			slog.String("task_name", e.TaskName),
			slog.String("status", e.Status))
		return nil
	}))

	runner := task.NewRunner(task.RunnerConfig{
		Workers:        cfg.Pool.Workers,
		QueueSize:      cfg.Pool.QueueSize,
		DefaultTimeout: cfg.Pool.TaskTimeout,
	}, emitter, appLogger)
	if err := runner.Start(); err != nil {
		return err
	}

	monitor := task.NewMonitor(task.MonitorConfig{
		Interval:          cfg.Pool.HealthInterval,
		OverloadThreshold: cfg.Pool.OverloadThreshold,
		LongRunningAfter:  cfg.Pool.LongRunningAfter,
		Retention:         cfg.Pool.HandleRetention,
	}, runner, appLogger)
	monitor.Start()
	defer monitor.Stop()

	// Hardware profile store with a startup refresh in the background.
	commands := hardware.NewCommandRunner(cfg.Hardware.ProbeTimeout, appLogger)
	prober := hardware.NewSystemProbe(commands, appLogger)
	store := hardware.NewStore(cfg.Hardware.ProfilePath, prober, appLogger)

	// Startup resources load through the cache on the task pool.
	cache := resource.NewCache(0, appLogger)
	cache.Register("hardware_profile", func(ctx context.Context) (any, error) {
		return store.Refresh(ctx)
	})
	cache.Register("translations", func(ctx context.Context) (any, error) {
		lang, _ := prefs.Get("ui.language", cfg.I18n.DefaultLanguage).(string)
		if lang == "" {
			lang = cfg.I18n.DefaultLanguage
		}
		return i18n.NewCatalog(cfg.I18n.Dir, lang, appLogger)
	})

	// External edits to the preferences file take effect without a restart;
	// the translations reload on next use so a changed ui.language sticks.
	if err := prefs.Watch(func() {
		cache.Invalidate("translations")
		appLogger.Info("preferences changed externally, translations invalidated")
	}); err != nil {
		appLogger.Warn("preferences watch unavailable", slog.String("error", err.Error()))
	}
	defer prefs.Unwatch()

	loader := resource.NewAsyncLoader(cache, runner)
	if _, err := loader.LoadAll([]string{"hardware_profile", "translations"}, func(res resource.Result) {
		if res.Err != nil {
			appLogger.Error("startup resource failed",
				slog.String("resource", res.Name),
				slog.String("error", res.Err.Error()))
			return
		}
		appLogger.Info("startup resource ready", slog.String("resource", res.Name))
	}); err != nil {
		return err
	}

	// Status messages resolve through the cached catalog; before it has
	// loaded (or if loading failed) the raw key is still a usable message.
	translate := api.TranslatorFunc(func(key string, args ...any) string {
		v, err := cache.Get(context.Background(), "translations")
		if err != nil {
			return key
		}
		catalog, ok := v.(*i18n.Catalog)
		if !ok {
			return key
		}
		return catalog.Translate(key, args...)
	})

	router := api.NewRouter(
		api.NewStatusHandler(monitor, logQueue, version, translate),
		api.NewProfileHandler(store, runner),
		api.NewPreferencesHandler(prefs),
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLogger.Info("status API listening", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("status API failed: %w", err)
	case sig := <-stop:
		appLogger.Info("shutting down", slog.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		appLogger.Warn("status API shutdown incomplete", slog.String("error", err.Error()))
	}
	if err := runner.Stop(ctx); err != nil {
		appLogger.Warn("task runner shutdown incomplete", slog.String("error", err.Error()))
	}
	if prefs.Dirty() {
		if err := prefs.Save(); err != nil {
			appLogger.Warn("failed to persist preferences", slog.String("error", err.Error()))
		}
	}

	appLogger.Info("hwagent stopped")
	return nil
}
