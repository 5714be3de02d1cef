package api

import (
	"encoding/json"
	"net/http"

	"github.com/cfab/hwagent/internal/config"
)

// PreferencesHandler reads and writes mutable agent preferences.
type PreferencesHandler struct {
	prefs *config.Preferences
}

// NewPreferencesHandler creates a preferences handler.
func NewPreferencesHandler(prefs *config.Preferences) *PreferencesHandler {
	return &PreferencesHandler{prefs: prefs}
}

// PreferenceUpdate is the PUT /preferences request body.
type PreferenceUpdate struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// Get returns the value at a dotted key, or null when unset.
func (h *PreferencesHandler) Get(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		RespondWithError(w, r, http.StatusBadRequest, "Missing key parameter", nil)
		return
	}
	RespondWithJSON(w, r, http.StatusOK, map[string]any{
		"key":   key,
		"value": h.prefs.Get(key, nil),
	})
}

// Update sets a dotted key and persists the document.
func (h *PreferencesHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req PreferenceUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondWithError(w, r, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Key == "" {
		RespondWithError(w, r, http.StatusBadRequest, "Missing key", nil)
		return
	}

	if err := h.prefs.Set(req.Key, req.Value); err != nil {
		RespondWithError(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}
	if err := h.prefs.Save(); err != nil {
		RespondWithError(w, r, http.StatusInternalServerError, "Failed to persist preferences", err)
		return
	}

	RespondWithJSON(w, r, http.StatusOK, map[string]any{
		"key":   req.Key,
		"value": h.prefs.Get(req.Key, nil),
	})
}
