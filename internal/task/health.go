package task

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Pool health states reported by the monitor.
const (
	HealthOK         = "ok"
	HealthOverloaded = "overloaded"
)

// PoolHealth is a point-in-time view of the worker pool, shaped for the
// status endpoint.
type PoolHealth struct {
	ActiveTasks      int       `json:"active_tasks"`
	MaxWorkers       int       `json:"max_workers"`
	QueueLength      int       `json:"queue_length"`
	LoadPercent      float64   `json:"load_percent"`
	Status           string    `json:"status"`
	LongRunningTasks []Info    `json:"long_running_tasks,omitempty"`
	Metrics          Metrics   `json:"metrics"`
	CheckedAt        time.Time `json:"checked_at"`
}

// MonitorConfig holds the health check knobs.
type MonitorConfig struct {
	// Interval between periodic checks.
	Interval time.Duration

	// OverloadThreshold is the load fraction (0, 1] above which the pool
	// is reported overloaded.
	OverloadThreshold float64

	// LongRunningAfter is the runtime beyond which a task is flagged as
	// long-running.
	LongRunningAfter time.Duration

	// Retention is how long finished handles stay visible before the
	// monitor reaps them.
	Retention time.Duration
}

// Monitor periodically inspects the runner: it computes load, flags
// long-running tasks and reaps handles whose tasks finished long enough ago.
type Monitor struct {
	cfg    MonitorConfig
	runner *Runner
	logger *slog.Logger

	mu         sync.Mutex
	overloaded bool
	last       PoolHealth

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// NewMonitor creates a monitor over the given runner.
func NewMonitor(cfg MonitorConfig, runner *Runner, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.OverloadThreshold <= 0 || cfg.OverloadThreshold > 1 {
		cfg.OverloadThreshold = 0.8
	}
	return &Monitor{
		cfg:    cfg,
		runner: runner,
		logger: logger.With(slog.String("component", "pool_monitor")),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start launches the periodic check loop.
func (m *Monitor) Start() {
	go m.loop()
}

// Stop halts the check loop and waits for it to exit.
func (m *Monitor) Stop() {
	m.once.Do(func() { close(m.stop) })
	<-m.done
}

// Health runs a check immediately and returns the result.
func (m *Monitor) Health() PoolHealth {
	return m.check()
}

// LastHealth returns the most recent check result, running a first check if
// none has happened yet.
func (m *Monitor) LastHealth() PoolHealth {
	m.mu.Lock()
	last := m.last
	m.mu.Unlock()

	if last.CheckedAt.IsZero() {
		return m.check()
	}
	return last
}

func (m *Monitor) loop() {
	defer close(m.done)

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.check()
			if m.cfg.Retention > 0 {
				if reaped := m.runner.reapFinished(m.cfg.Retention); reaped > 0 {
					m.logger.Debug("reaped finished task handles",
						slog.Int("count", reaped))
				}
			}
		case <-m.stop:
			return
		}
	}
}

func (m *Monitor) check() PoolHealth {
	active := m.runner.ActiveCount()
	workers := m.runner.Workers()
	load := 0.0
	if workers > 0 {
		load = float64(active) / float64(workers)
	}

	health := PoolHealth{
		ActiveTasks: active,
		MaxWorkers:  workers,
		QueueLength: m.runner.QueueLen(),
		LoadPercent: load * 100,
		Status:      HealthOK,
		Metrics:     m.runner.Metrics(),
		CheckedAt:   time.Now(),
	}

	if m.cfg.LongRunningAfter > 0 {
		health.LongRunningTasks = m.runner.runningOlderThan(m.cfg.LongRunningAfter)
		for _, info := range health.LongRunningTasks {
			m.logger.Warn("long-running task",
				slog.String("task_id", info.ID.String()),
				slog.String("task_name", info.Name),
				slog.Duration("runtime", info.Runtime))
		}
	}

	overloaded := load >= m.cfg.OverloadThreshold
	if overloaded {
		health.Status = HealthOverloaded
	}

	m.mu.Lock()
	wasOverloaded := m.overloaded
	m.overloaded = overloaded
	m.last = health
	m.mu.Unlock()

	// Log only the transitions, not every overloaded check.
	if overloaded && !wasOverloaded {
		m.logger.Warn("worker pool overloaded",
			slog.Int("active", active),
			slog.Int("workers", workers),
			slog.Float64("load_percent", health.LoadPercent))
	} else if !overloaded && wasOverloaded {
		m.logger.Info("worker pool load back to normal",
			slog.Int("active", active),
			slog.Int("workers", workers),
			slog.Float64("load_percent", health.LoadPercent))
	}

	return health
}

// WaitIdle blocks until no task is running or queued, or ctx expires.
// Intended for tests and shutdown sequencing.
func (m *Monitor) WaitIdle(ctx context.Context) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		if m.runner.ActiveCount() == 0 && m.runner.QueueLen() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
