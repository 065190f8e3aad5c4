package triage

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/linnemanlabs/go-core/log"
)

// Classifier picks one taxonomy category for intake text. Used only as a
// fallback when the keyword matcher is not confident; the engine itself
// never calls it.
type Classifier interface {
	Classify(ctx context.Context, text string, taxonomy []TaxonomyRule) (string, error)
}

// Notifier delivers escalation notifications for override-routed decisions.
type Notifier interface {
	Notify(ctx context.Context, d *Decision) error
}

// Loader builds a fresh configuration snapshot. Soft validation issues come
// back as warnings; a non-nil error means the load failed and the previous
// snapshot must stay active.
type Loader func(ctx context.Context) (*Snapshot, []string, error)

// Service is the business boundary for intake triage: it runs the engine,
// stamps decision IDs, applies the optional LLM category fallback, sends
// escalation notifications, and owns configuration reload.
type Service struct {
	engine     *Engine
	loader     Loader
	classifier Classifier
	notifier   Notifier
	metrics    *Metrics
	logger     log.Logger

	reloadMu sync.Mutex
}

// NewService creates a triage service. classifier, notifier, and metrics
// may be nil.
func NewService(engine *Engine, loader Loader, classifier Classifier, notifier Notifier, metrics *Metrics, logger log.Logger) *Service {
	if logger == nil {
		logger = log.Nop()
	}
	return &Service{
		engine:     engine,
		loader:     loader,
		classifier: classifier,
		notifier:   notifier,
		metrics:    metrics,
		logger:     logger,
	}
}

// Triage produces a routing decision for one intake text. When the keyword
// matcher flags the decision for review and a classifier is configured, the
// classifier picks the category and routing reruns with it; a classifier
// failure degrades to the keyword decision rather than failing the call.
func (s *Service) Triage(ctx context.Context, text string) (*Decision, error) {
	d, err := s.engine.Triage(ctx, text)
	if err != nil {
		return nil, err
	}
	d.ID = ulid.Make().String()

	if d.NeedsReview && s.classifier != nil {
		d = s.classifyFallback(ctx, text, d)
	}

	if d.Rule == RuleOverride && s.notifier != nil {
		// escalations are fire-and-forget; delivery must not delay the caller
		go s.notify(context.WithoutCancel(ctx), d)
	}

	return d, nil
}

// Snapshot exposes the active configuration snapshot for status and
// config-view endpoints.
func (s *Service) Snapshot() *Snapshot {
	return s.engine.Snapshot()
}

// Reload builds a new snapshot and publishes it atomically. On error the
// previous snapshot stays active. Concurrent reloads are serialized.
func (s *Service) Reload(ctx context.Context) ([]string, error) {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	start := time.Now()
	snap, warnings, err := s.loader(ctx)
	if err != nil {
		s.logger.Error(ctx, err, "config reload failed, keeping active snapshot")
		if s.metrics != nil {
			s.metrics.ObserveReload("error", len(warnings))
		}
		return warnings, err
	}

	s.engine.Publish(snap)

	for _, w := range warnings {
		s.logger.Warn(ctx, "config validation warning", "warning", w)
	}
	s.logger.Info(ctx, "config reloaded",
		"industry", snap.Industry,
		"path", snap.SourcePath,
		"taxonomy_rules", len(snap.Taxonomy),
		"severity_rules", len(snap.Severity),
		"routes", len(snap.Routes),
		"warnings", len(warnings),
		"duration", time.Since(start).Seconds(),
	)
	if s.metrics != nil {
		s.metrics.ObserveReload("success", len(warnings))
	}
	return warnings, nil
}

func (s *Service) classifyFallback(ctx context.Context, text string, keyword *Decision) *Decision {
	snap := s.engine.Snapshot()
	if snap == nil {
		return keyword
	}

	start := time.Now()
	category, err := s.classifier.Classify(ctx, text, snap.Taxonomy)
	duration := time.Since(start).Seconds()

	if err != nil {
		s.logger.Warn(ctx, "llm classification failed, keeping keyword decision",
			"decision_id", keyword.ID, "error", err)
		if s.metrics != nil {
			s.metrics.ObserveLLMFallback("error", duration)
		}
		return keyword
	}
	if !knownCategory(category, snap.Taxonomy) {
		s.logger.Warn(ctx, "llm returned unknown category, keeping keyword decision",
			"decision_id", keyword.ID, "category", category)
		if s.metrics != nil {
			s.metrics.ObserveLLMFallback("unknown_category", duration)
		}
		return keyword
	}

	d, err := s.engine.TriageAs(ctx, text, category)
	if err != nil {
		return keyword
	}
	d.ID = keyword.ID
	if s.metrics != nil {
		s.metrics.ObserveLLMFallback("success", duration)
	}
	s.logger.Info(ctx, "llm classification applied",
		"decision_id", d.ID, "category", category, "duration", duration)
	return d
}

func (s *Service) notify(ctx context.Context, d *Decision) {
	if err := s.notifier.Notify(ctx, d); err != nil {
		s.logger.Error(ctx, err, "escalation notification failed", "decision_id", d.ID)
		if s.metrics != nil {
			s.metrics.ObserveNotify("error")
		}
		return
	}
	if s.metrics != nil {
		s.metrics.ObserveNotify("success")
	}
}

func knownCategory(id string, taxonomy []TaxonomyRule) bool {
	for _, rule := range taxonomy {
		if rule.ID == id {
			return true
		}
	}
	return false
}
