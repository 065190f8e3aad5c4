package triage

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/go-core/log"
)

var tracer = otel.Tracer("github.com/linnemanlabs/intake/internal/triage")

// ErrNoSnapshot is returned when triage is attempted before any
// configuration snapshot has been published.
var ErrNoSnapshot = errors.New("triage: no configuration snapshot published")

// reviewThreshold is the keyword confidence below which a decision is
// flagged for review (and, when configured, sent to the LLM classifier).
const reviewThreshold = 0.5

// EngineHooks are optional callbacks for instrumentation. Nil fields are
// skipped. Callbacks must be safe for concurrent use.
type EngineHooks struct {
	OnDecision func(d *Decision, duration float64)
	OnPublish  func(s *Snapshot)
}

// Engine evaluates intake text against the active configuration snapshot.
// It is stateless per call: the snapshot is read once at entry through an
// atomic pointer, so triage calls are safe concurrently with Publish and
// never observe a half-swapped configuration.
type Engine struct {
	snapshot atomic.Pointer[Snapshot]
	logger   log.Logger
	hooks    EngineHooks
}

// NewEngine creates an engine with no active snapshot. Publish must be
// called before the first Triage.
func NewEngine(logger log.Logger, hooks EngineHooks) *Engine {
	if logger == nil {
		logger = log.Nop()
	}
	return &Engine{logger: logger, hooks: hooks}
}

// Publish atomically swaps in a new configuration snapshot. In-flight
// triage calls keep the snapshot they captured at entry.
func (e *Engine) Publish(s *Snapshot) {
	e.snapshot.Store(s)
	if e.hooks.OnPublish != nil {
		e.hooks.OnPublish(s)
	}
}

// Snapshot returns the active configuration snapshot, or nil if none has
// been published yet.
func (e *Engine) Snapshot() *Snapshot {
	return e.snapshot.Load()
}

// Triage classifies, scores, and routes one intake text. It never fails on
// text content: any string, including empty, produces a well-formed
// decision once a snapshot is active.
func (e *Engine) Triage(ctx context.Context, text string) (*Decision, error) {
	snap := e.snapshot.Load()
	if snap == nil {
		return nil, ErrNoSnapshot
	}
	return e.run(ctx, snap, text, ""), nil
}

// TriageAs recomputes a decision with the category fixed by an upstream
// classifier. Severity scoring and routing still run over the text; only
// the category selection is replaced.
func (e *Engine) TriageAs(ctx context.Context, text, category string) (*Decision, error) {
	snap := e.snapshot.Load()
	if snap == nil {
		return nil, ErrNoSnapshot
	}
	return e.run(ctx, snap, text, category), nil
}

func (e *Engine) run(ctx context.Context, snap *Snapshot, text, forced string) *Decision {
	start := time.Now()

	ctx, span := tracer.Start(ctx, "triage.decide", trace.WithAttributes(
		attribute.String("intake.industry", snap.Industry),
		attribute.Int("intake.text.length", len(text)),
	))
	defer span.End()

	normalized := Normalize(text)

	matches := MatchTaxonomy(normalized, snap.Taxonomy)
	severity := ScoreSeverity(normalized, snap.Severity)

	categories := make([]string, 0, len(matches))
	categoryKeywords := make(map[string][]string, len(matches))
	taxonomyHits := []string{}
	totalHits := 0
	for _, m := range matches {
		categories = append(categories, m.Category)
		categoryKeywords[m.Category] = m.Keywords
		taxonomyHits = append(taxonomyHits, m.Keywords...)
		totalHits += len(m.Keywords)
	}

	confidence := 0.0
	if totalHits > 0 {
		confidence = math.Round(float64(len(matches[0].Keywords))/float64(totalHits)*100) / 100
	}
	needsReview := totalHits == 0 || confidence < reviewThreshold

	method := MethodKeyword
	if forced != "" {
		categories = []string{forced}
		method = MethodLLM
		needsReview = false
	}

	resolution := Resolve(categories, severity.Score, snap)

	severityHits := severity.Matched
	if severityHits == nil {
		severityHits = []string{}
	}

	d := &Decision{
		Method:            method,
		MatchedCategories: categories,
		Confidence:        confidence,
		NeedsReview:       needsReview,
		SeverityScore:     severity.Score,
		SeverityBand:      severity.Band,
		Destination:       resolution.Destination,
		Priority:          resolution.Priority,
		Rule:              resolution.Rule,
		MatchedKeywords: map[string][]string{
			"taxonomy": taxonomyHits,
			"severity": severityHits,
		},
		CategoryKeywords: categoryKeywords,
		Industry:         snap.Industry,
		CreatedAt:        start,
	}

	span.SetAttributes(
		attribute.StringSlice("intake.decision.categories", categories),
		attribute.Int("intake.decision.severity_score", severity.Score),
		attribute.String("intake.decision.severity_band", severity.Band),
		attribute.String("intake.decision.destination", resolution.Destination),
		attribute.String("intake.decision.priority", resolution.Priority),
		attribute.String("intake.decision.rule", string(resolution.Rule)),
		attribute.Bool("intake.decision.needs_review", needsReview),
	)

	duration := time.Since(start).Seconds()
	if e.hooks.OnDecision != nil {
		e.hooks.OnDecision(d, duration)
	}

	e.logger.Info(ctx, "triage decision",
		"categories", categories,
		"severity_score", severity.Score,
		"severity_band", severity.Band,
		"destination", resolution.Destination,
		"priority", resolution.Priority,
		"rule", resolution.Rule,
		"needs_review", needsReview,
		"method", method,
	)

	return d
}
