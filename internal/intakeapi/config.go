package intakeapi

import (
	"errors"
	"net/http"

	"github.com/linnemanlabs/intake/internal/rules"
)

// The config handlers mirror the read-only configuration resources the
// original intake clients consume: each returns one section of the active
// snapshot.

func (a *API) handleTaxonomy(w http.ResponseWriter, r *http.Request) {
	snap := a.svc.Snapshot()
	if snap == nil {
		writeError(w, http.StatusServiceUnavailable, "no configuration snapshot loaded")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"taxonomy": snap.Taxonomy})
}

func (a *API) handleSeverity(w http.ResponseWriter, r *http.Request) {
	snap := a.svc.Snapshot()
	if snap == nil {
		writeError(w, http.StatusServiceUnavailable, "no configuration snapshot loaded")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"severity_rules": snap.Severity})
}

func (a *API) handleRouting(w http.ResponseWriter, r *http.Request) {
	snap := a.svc.Snapshot()
	if snap == nil {
		writeError(w, http.StatusServiceUnavailable, "no configuration snapshot loaded")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"default_destination": snap.DefaultDestination,
		"severity_override":   snap.Override,
		"routes":              snap.Routes,
	})
}

func (a *API) handleReload(w http.ResponseWriter, r *http.Request) {
	warnings, err := a.svc.Reload(r.Context())
	if warnings == nil {
		warnings = []string{}
	}
	if err != nil {
		a.logger.Error(r.Context(), err, "reload via admin endpoint failed")

		status := http.StatusInternalServerError
		var ce *rules.ConfigError
		if errors.As(err, &ce) {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, map[string]any{
			"ok":       false,
			"reloaded": false,
			"warnings": warnings,
			"error": map[string]any{
				"code":    status,
				"message": err.Error(),
			},
		})
		return
	}

	snap := a.svc.Snapshot()
	resp := map[string]any{
		"ok":       true,
		"reloaded": true,
		"warnings": warnings,
	}
	if snap != nil {
		resp["industry"] = snap.Industry
		resp["loaded_at"] = snap.LoadedAt
	}
	writeJSON(w, http.StatusOK, resp)
}
