// Package intakeapi exposes the intake triage HTTP surface: decision
// submission, config snapshot views, and the admin reload endpoint.
package intakeapi

import (
	"context"
	"encoding/json"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/intake/internal/authmw"
	"github.com/linnemanlabs/intake/internal/triage"
)

// TriageService defines the business operations intakeapi needs.
type TriageService interface {
	Triage(ctx context.Context, text string) (*triage.Decision, error)
	Snapshot() *triage.Snapshot
	Reload(ctx context.Context) ([]string, error)
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger     log.Logger
	svc        TriageService
	adminToken string
}

// New creates a new API handler. adminToken guards the reload endpoint.
func New(logger log.Logger, svc TriageService, adminToken string) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if svc == nil {
		panic(xerrors.New("triage service is required"))
	}
	return &API{
		logger:     logger,
		svc:        svc,
		adminToken: adminToken,
	}
}

// RegisterRoutes attaches API endpoints to the router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/intake", a.handleIntake)
		r.Get("/status", a.handleStatus)
		r.Get("/config/taxonomy", a.handleTaxonomy)
		r.Get("/config/severity", a.handleSeverity)
		r.Get("/config/routing", a.handleRouting)
		r.Group(func(r chi.Router) {
			r.Use(authmw.BearerToken(a.adminToken))
			r.Post("/admin/reload", a.handleReload)
		})
	})
}

func (a *API) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := a.svc.Snapshot()
	if snap == nil {
		writeError(w, http.StatusServiceUnavailable, "no configuration snapshot loaded")
		return
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("intake.industry", snap.Industry))

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":             true,
		"industry":       snap.Industry,
		"config_path":    snap.SourcePath,
		"loaded_at":      snap.LoadedAt,
		"taxonomy_rules": len(snap.Taxonomy),
		"severity_rules": len(snap.Severity),
		"routes":         len(snap.Routes),
	})
}

// writeJSON encodes v with the given status. Encoding errors after the
// header is written are unrecoverable and ignored, as elsewhere.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError emits the error envelope the original intake clients expect.
func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]any{
		"ok": false,
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	})
}
