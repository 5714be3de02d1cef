package api

import (
	"context"
	"net/http"

	"github.com/cfab/hwagent/internal/hardware"
	"github.com/cfab/hwagent/internal/task"
)

// ProfileHandler serves the hardware profile and triggers refreshes.
type ProfileHandler struct {
	store  *hardware.Store
	runner *task.Runner
}

// NewProfileHandler creates a profile handler.
func NewProfileHandler(store *hardware.Store, runner *task.Runner) *ProfileHandler {
	return &ProfileHandler{store: store, runner: runner}
}

// Get returns the current hardware profile.
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	profile := h.store.Current()
	if profile == nil {
		RespondWithError(w, r, http.StatusNotFound, "No hardware profile yet, trigger a refresh", nil)
		return
	}
	RespondWithJSON(w, r, http.StatusOK, profile)
}

// RefreshResponse acknowledges a refresh submission.
type RefreshResponse struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
}

// Refresh submits a background probe-and-reconcile task and returns its id.
func (h *ProfileHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	t := task.NewFunc("hardware_refresh", func(ctx context.Context) error {
		_, err := h.store.Refresh(ctx)
		return err
	})

	handle, err := h.runner.Submit(t)
	if err != nil {
		RespondWithError(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	RespondWithJSON(w, r, http.StatusAccepted, RefreshResponse{
		TaskID: handle.ID().String(),
		Status: string(handle.Status()),
	})
}
