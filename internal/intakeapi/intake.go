package intakeapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/intake/internal/triage"
)

// intakeRequest is the submission payload: one free-text intake message.
type intakeRequest struct {
	Text string `json:"text"`
}

func (a *API) handleIntake(w http.ResponseWriter, r *http.Request) {
	var req intakeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	// the engine is total over text, but a blank submission is a client
	// mistake rather than an intake, so reject it at the boundary
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusUnprocessableEntity, "'text' must be a non-empty string")
		return
	}

	decision, err := a.svc.Triage(r.Context(), req.Text)
	if err != nil {
		if errors.Is(err, triage.ErrNoSnapshot) {
			writeError(w, http.StatusServiceUnavailable, "no configuration snapshot loaded")
			return
		}
		a.logger.Error(r.Context(), err, "triage failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(
		attribute.String("intake.decision.id", decision.ID),
		attribute.String("intake.decision.destination", decision.Destination),
		attribute.String("intake.decision.priority", decision.Priority),
	)

	writeJSON(w, http.StatusOK, decision)
}
