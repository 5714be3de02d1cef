package api

import (
	"net/http"
	"time"

	"github.com/cfab/hwagent/internal/logqueue"
	"github.com/cfab/hwagent/internal/task"
)

// Translator resolves message keys to user-facing text. Satisfied by
// i18n.Catalog.
type Translator interface {
	Translate(key string, args ...any) string
}

// TranslatorFunc adapts a plain function to the Translator interface.
type TranslatorFunc func(key string, args ...any) string

func (f TranslatorFunc) Translate(key string, args ...any) string {
	return f(key, args...)
}

// StatusHandler serves liveness and agent health endpoints.
type StatusHandler struct {
	monitor    *task.Monitor
	logQueue   *logqueue.Queue
	translator Translator
	started    time.Time
	version    string
}

// NewStatusHandler creates a status handler. logQueue may be nil when
// logging runs synchronously; translator may be nil, in which case message
// keys are returned untranslated.
func NewStatusHandler(monitor *task.Monitor, logQueue *logqueue.Queue, version string, translator Translator) *StatusHandler {
	return &StatusHandler{
		monitor:    monitor,
		logQueue:   logQueue,
		translator: translator,
		started:    time.Now(),
		version:    version,
	}
}

// StatusResponse is the full agent health payload.
type StatusResponse struct {
	Status   string             `json:"status"`
	Message  string             `json:"message"`
	Version  string             `json:"version"`
	Uptime   string             `json:"uptime"`
	Pool     task.PoolHealth    `json:"pool"`
	LogQueue *logqueue.Snapshot `json:"log_queue,omitempty"`
}

// Healthz is the liveness probe.
func (h *StatusHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	RespondWithJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

// Status reports pool health, log queue health and uptime. Degraded
// subsystems turn the overall status to "degraded" but the endpoint still
// returns 200; clients inspect the payload.
func (h *StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	pool := h.monitor.Health()

	resp := StatusResponse{
		Status:  "ok",
		Message: h.translate("status.ok"),
		Version: h.version,
		Uptime:  time.Since(h.started).Round(time.Second).String(),
		Pool:    pool,
	}
	if pool.Status != task.HealthOK {
		resp.Status = "degraded"
		resp.Message = h.translate("status.overloaded")
	}
	if h.logQueue != nil {
		snap := h.logQueue.Snapshot()
		resp.LogQueue = &snap
		if snap.Health != logqueue.Healthy {
			resp.Status = "degraded"
			resp.Message = h.translate("status.log_blocked")
		}
	}

	RespondWithJSON(w, r, http.StatusOK, resp)
}

func (h *StatusHandler) translate(key string, args ...any) string {
	if h.translator == nil {
		return key
	}
	return h.translator.Translate(key, args...)
}
