package triage

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/linnemanlabs/go-core/log"
)

// testSnapshot mirrors the healthcare sample configuration.
func testSnapshot() *Snapshot {
	return &Snapshot{
		Industry:   "healthcare",
		SourcePath: "configs/healthcare",
		LoadedAt:   time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		Taxonomy: []TaxonomyRule{
			{ID: "emergency", Keywords: []string{"chest pain", "bleeding", "unconscious", "stroke"}},
			{ID: "billing", Keywords: []string{"billing", "refund", "insurance", "statement"}},
			{ID: "appointment", Keywords: []string{"appointment", "schedule"}},
		},
		Severity: []SeverityRule{
			{Band: "critical", Score: 10, Keywords: []string{"chest pain", "heavy bleeding", "unconscious"}},
			{Band: "high", Score: 7, Keywords: []string{"severe pain", "high fever"}},
			{Band: "low", Score: 2, Keywords: []string{"refund", "billing", "appointment"}},
		},
		Routes: []RouteEntry{
			{Category: "emergency", Threshold: 5, Destination: "Urgent_Care"},
			{Category: "billing", Threshold: 2, Destination: "Billing_Department"},
			{Category: "billing", Threshold: 7, Destination: "Billing_Escalations", Priority: "HIGH"},
			{Category: "appointment", Threshold: 0, Destination: "Scheduling_Desk"},
		},
		Override: &Override{
			MinScore:    9,
			Destination: "ER_Triage",
			Priority:    "HIGH",
		},
		DefaultDestination: "General_Queue",
	}
}

func newTestEngine() *Engine {
	e := NewEngine(log.Nop(), EngineHooks{})
	e.Publish(testSnapshot())
	return e
}

func TestTriage_NoSnapshot(t *testing.T) {
	t.Parallel()

	e := NewEngine(log.Nop(), EngineHooks{})
	_, err := e.Triage(context.Background(), "anything")
	if !errors.Is(err, ErrNoSnapshot) {
		t.Fatalf("err = %v, want ErrNoSnapshot", err)
	}
}

func TestTriage_EmergencyOverride(t *testing.T) {
	t.Parallel()

	e := newTestEngine()
	d, err := e.Triage(context.Background(), "Patient reports chest pain and heavy bleeding")
	if err != nil {
		t.Fatalf("Triage: %v", err)
	}

	if !reflect.DeepEqual(d.MatchedCategories, []string{"emergency"}) {
		t.Errorf("categories = %v, want [emergency]", d.MatchedCategories)
	}
	if d.SeverityScore != 10 {
		t.Errorf("severity_score = %d, want 10", d.SeverityScore)
	}
	if d.SeverityBand != "critical" {
		t.Errorf("severity_band = %q, want critical", d.SeverityBand)
	}
	if d.Destination != "ER_Triage" {
		t.Errorf("destination = %q, want ER_Triage", d.Destination)
	}
	if d.Priority != "HIGH" {
		t.Errorf("priority = %q, want HIGH", d.Priority)
	}
	if d.Rule != RuleOverride {
		t.Errorf("rule = %q, want %q", d.Rule, RuleOverride)
	}
	if d.NeedsReview {
		t.Error("needs_review = true, want false for a confident match")
	}
	if !reflect.DeepEqual(d.MatchedKeywords["severity"], []string{"chest pain", "heavy bleeding"}) {
		t.Errorf("severity keywords = %v", d.MatchedKeywords["severity"])
	}
}

func TestTriage_BillingRoute(t *testing.T) {
	t.Parallel()

	e := newTestEngine()
	d, err := e.Triage(context.Background(), "I need a refund on my insurance billing statement")
	if err != nil {
		t.Fatalf("Triage: %v", err)
	}

	if !reflect.DeepEqual(d.MatchedCategories, []string{"billing"}) {
		t.Errorf("categories = %v, want [billing]", d.MatchedCategories)
	}
	if d.SeverityScore != 2 {
		t.Errorf("severity_score = %d, want 2", d.SeverityScore)
	}
	if d.SeverityBand != "low" {
		t.Errorf("severity_band = %q, want low", d.SeverityBand)
	}
	if d.Destination != "Billing_Department" {
		t.Errorf("destination = %q, want Billing_Department", d.Destination)
	}
	if d.Priority != PriorityNormal {
		t.Errorf("priority = %q, want %q", d.Priority, PriorityNormal)
	}
	if d.Rule != RuleRoute {
		t.Errorf("rule = %q, want %q", d.Rule, RuleRoute)
	}
}

func TestTriage_EmptyTextDegradesToDefault(t *testing.T) {
	t.Parallel()

	e := newTestEngine()
	d, err := e.Triage(context.Background(), "")
	if err != nil {
		t.Fatalf("Triage on empty text: %v", err)
	}

	if len(d.MatchedCategories) != 0 {
		t.Errorf("categories = %v, want empty", d.MatchedCategories)
	}
	if d.SeverityScore != 0 || d.SeverityBand != BandNone {
		t.Errorf("severity = %d/%q, want 0/%q", d.SeverityScore, d.SeverityBand, BandNone)
	}
	if d.Destination != "General_Queue" {
		t.Errorf("destination = %q, want General_Queue", d.Destination)
	}
	if d.Priority != PriorityNormal {
		t.Errorf("priority = %q, want %q", d.Priority, PriorityNormal)
	}
	if !d.NeedsReview {
		t.Error("needs_review = false, want true when nothing matched")
	}
}

func TestTriage_Totality(t *testing.T) {
	t.Parallel()

	e := newTestEngine()
	inputs := []string{
		"",
		"   \t\n  ",
		strings.Repeat("no keywords here ", 10000),
		"!@#$%^&*()",
		strings.Repeat("a", 1<<16),
		"mixed CASE Billing REFUND text with (punctuation)!",
	}

	for _, in := range inputs {
		d, err := e.Triage(context.Background(), in)
		if err != nil {
			t.Fatalf("Triage(%.20q...): %v", in, err)
		}
		if d.Destination == "" {
			t.Errorf("Triage(%.20q...) produced empty destination", in)
		}
		if d.Priority == "" {
			t.Errorf("Triage(%.20q...) produced empty priority", in)
		}
	}
}

func TestTriage_Deterministic(t *testing.T) {
	t.Parallel()

	e := newTestEngine()
	text := "billing refund question about my insurance appointment"

	first, err := e.Triage(context.Background(), text)
	if err != nil {
		t.Fatalf("Triage: %v", err)
	}
	for range 10 {
		next, err := e.Triage(context.Background(), text)
		if err != nil {
			t.Fatalf("Triage: %v", err)
		}
		// timestamps differ per call by design; everything else must not
		first.CreatedAt, next.CreatedAt = time.Time{}, time.Time{}
		if !reflect.DeepEqual(first, next) {
			t.Fatalf("decisions differ:\n first = %+v\n next = %+v", first, next)
		}
	}
}

func TestTriage_MultiLabelOrder(t *testing.T) {
	t.Parallel()

	e := newTestEngine()
	d, err := e.Triage(context.Background(), "bleeding patient asking about a billing refund")
	if err != nil {
		t.Fatalf("Triage: %v", err)
	}

	if !reflect.DeepEqual(d.MatchedCategories, []string{"emergency", "billing"}) {
		t.Errorf("categories = %v, want [emergency billing]", d.MatchedCategories)
	}
	if len(d.CategoryKeywords["emergency"]) == 0 || len(d.CategoryKeywords["billing"]) == 0 {
		t.Errorf("category keywords missing: %v", d.CategoryKeywords)
	}
}

func TestTriage_LowConfidenceFlagged(t *testing.T) {
	t.Parallel()

	e := newTestEngine()
	// one emergency hit vs two billing hits: first-declared emergency is
	// routed but holds 1/3 of the hits, below the review threshold
	d, err := e.Triage(context.Background(), "stroke refund billing")
	if err != nil {
		t.Fatalf("Triage: %v", err)
	}

	if !d.NeedsReview {
		t.Errorf("needs_review = false, want true at confidence %v", d.Confidence)
	}
	if d.Confidence >= 0.5 {
		t.Errorf("confidence = %v, want < 0.5", d.Confidence)
	}
	if d.MatchedCategories[0] != "emergency" {
		t.Errorf("routed category = %q, want emergency", d.MatchedCategories[0])
	}
}

func TestTriageAs_ForcedCategory(t *testing.T) {
	t.Parallel()

	e := newTestEngine()
	d, err := e.TriageAs(context.Background(), "refund please", "appointment")
	if err != nil {
		t.Fatalf("TriageAs: %v", err)
	}

	if !reflect.DeepEqual(d.MatchedCategories, []string{"appointment"}) {
		t.Errorf("categories = %v, want [appointment]", d.MatchedCategories)
	}
	if d.Method != MethodLLM {
		t.Errorf("method = %q, want %q", d.Method, MethodLLM)
	}
	if d.NeedsReview {
		t.Error("needs_review = true, want false after forced category")
	}
	// severity still comes from the text, not the forced category
	if d.SeverityScore != 2 {
		t.Errorf("severity_score = %d, want 2", d.SeverityScore)
	}
	if d.Destination != "Scheduling_Desk" {
		t.Errorf("destination = %q, want Scheduling_Desk", d.Destination)
	}
}

func TestPublish_SwapsAtomically(t *testing.T) {
	t.Parallel()

	e := newTestEngine()

	second := testSnapshot()
	second.DefaultDestination = "Second_Queue"
	e.Publish(second)

	d, err := e.Triage(context.Background(), "unmatched text")
	if err != nil {
		t.Fatalf("Triage: %v", err)
	}
	if d.Destination != "Second_Queue" {
		t.Errorf("destination = %q, want Second_Queue after publish", d.Destination)
	}
}

func TestTriage_ConcurrentWithPublish(t *testing.T) {
	t.Parallel()

	e := newTestEngine()

	var wg sync.WaitGroup
	stop := make(chan struct{})

	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				d, err := e.Triage(context.Background(), "billing refund with chest pain")
				if err != nil {
					t.Errorf("Triage: %v", err)
					return
				}
				// every decision must come from a coherent snapshot
				if d.Destination != "ER_Triage" && d.Destination != "Alt_ER" {
					t.Errorf("destination = %q, want one of the override destinations", d.Destination)
					return
				}
			}
		}()
	}

	for range 100 {
		snap := testSnapshot()
		snap.Override.Destination = "Alt_ER"
		e.Publish(snap)
		e.Publish(testSnapshot())
	}
	close(stop)
	wg.Wait()
}

func TestTriage_HooksCalled(t *testing.T) {
	t.Parallel()

	var (
		mu        sync.Mutex
		decisions int
		publishes int
		lastDest  string
	)
	hooks := EngineHooks{
		OnDecision: func(d *Decision, duration float64) {
			mu.Lock()
			defer mu.Unlock()
			decisions++
			lastDest = d.Destination
			if duration < 0 {
				t.Errorf("duration = %v, want >= 0", duration)
			}
		},
		OnPublish: func(*Snapshot) {
			mu.Lock()
			defer mu.Unlock()
			publishes++
		},
	}

	e := NewEngine(log.Nop(), hooks)
	e.Publish(testSnapshot())

	if _, err := e.Triage(context.Background(), "billing refund"); err != nil {
		t.Fatalf("Triage: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if decisions != 1 {
		t.Errorf("decision hook calls = %d, want 1", decisions)
	}
	if publishes != 1 {
		t.Errorf("publish hook calls = %d, want 1", publishes)
	}
	if lastDest != "Billing_Department" {
		t.Errorf("hook destination = %q, want Billing_Department", lastDest)
	}
}

func TestTriage_CreatesSpans(t *testing.T) {
	// Not parallel: swaps the global OTel tracer provider.

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(prev)

	e := newTestEngine()
	if _, err := e.Triage(context.Background(), "chest pain"); err != nil {
		t.Fatalf("Triage: %v", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("spans = %d, want 1", len(spans))
	}
	span := spans[0]
	if span.Name != "triage.decide" {
		t.Errorf("span name = %q, want triage.decide", span.Name)
	}

	attrs := make(map[string]any)
	for _, a := range span.Attributes {
		attrs[string(a.Key)] = a.Value.AsInterface()
	}
	if v, ok := attrs["intake.decision.destination"]; !ok || v != "ER_Triage" {
		t.Errorf("intake.decision.destination = %v, want ER_Triage", v)
	}
	if v, ok := attrs["intake.decision.rule"]; !ok || v != string(RuleOverride) {
		t.Errorf("intake.decision.rule = %v, want override", v)
	}
	if v, ok := attrs["intake.industry"]; !ok || v != "healthcare" {
		t.Errorf("intake.industry = %v, want healthcare", v)
	}
}
