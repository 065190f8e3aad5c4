package triage

import "time"

// Method indicates how the routed category was chosen.
type Method string

const (
	// MethodKeyword means the deterministic keyword matcher decided the category.
	MethodKeyword Method = "keyword"

	// MethodLLM means the category came from the LLM fallback classifier.
	MethodLLM Method = "llm"
)

// BandNone is the reserved severity band when no severity rule matches.
const BandNone = "none"

// PriorityNormal is synthesized for routes that carry no explicit priority.
const PriorityNormal = "NORMAL"

// RouteRule identifies which branch of the resolver produced a destination.
type RouteRule string

const (
	// RuleOverride means the severity override superseded category routing.
	RuleOverride RouteRule = "override"

	// RuleRoute means a category route entry matched within threshold.
	RuleRoute RouteRule = "route"

	// RuleDefault means no route qualified and the default destination applied.
	RuleDefault RouteRule = "default"
)

// TaxonomyRule maps one category to its trigger keywords.
// Keywords are stored normalized (lower-cased, punctuation stripped).
type TaxonomyRule struct {
	ID       string   `json:"id"`
	Keywords []string `json:"keywords"`
}

// SeverityRule is a named severity band with a score and trigger keywords.
type SeverityRule struct {
	Band     string   `json:"band"`
	Score    int      `json:"score"`
	Keywords []string `json:"keywords"`
}

// RouteEntry maps (category, threshold) to a destination. Priority is
// optional; the resolver synthesizes PriorityNormal when it is empty.
type RouteEntry struct {
	Category    string `json:"category"`
	Threshold   int    `json:"threshold"`
	Destination string `json:"destination"`
	Priority    string `json:"priority,omitempty"`
}

// Override routes any request whose severity score reaches MinScore,
// regardless of category. Hard precedence, not a tie-break.
type Override struct {
	MinScore    int    `json:"min_score"`
	Destination string `json:"destination"`
	Priority    string `json:"priority"`
}

// Snapshot is one immutable, fully-loaded generation of the rule
// configuration. The engine never mutates a published snapshot; reload
// builds a new one and swaps the reference atomically.
type Snapshot struct {
	Industry           string         `json:"industry"`
	SourcePath         string         `json:"source_path"`
	LoadedAt           time.Time      `json:"loaded_at"`
	Taxonomy           []TaxonomyRule `json:"taxonomy"`
	Severity           []SeverityRule `json:"severity_rules"`
	Routes             []RouteEntry   `json:"routes"`
	Override           *Override      `json:"severity_override,omitempty"`
	DefaultDestination string         `json:"default_destination"`
}

// Decision is the outcome of one triage call. Created once per request,
// returned to the caller, never retained by the engine.
type Decision struct {
	ID                string              `json:"id"`
	Method            Method              `json:"method"`
	MatchedCategories []string            `json:"matched_categories"`
	Confidence        float64             `json:"confidence"`
	NeedsReview       bool                `json:"needs_review"`
	SeverityScore     int                 `json:"severity_score"`
	SeverityBand      string              `json:"severity_band"`
	Destination       string              `json:"destination"`
	Priority          string              `json:"priority"`
	Rule              RouteRule           `json:"rule"`
	MatchedKeywords   map[string][]string `json:"matched_keywords"`
	CategoryKeywords  map[string][]string `json:"category_keywords,omitempty"`
	Industry          string              `json:"industry,omitempty"`
	CreatedAt         time.Time           `json:"created_at"`
}
