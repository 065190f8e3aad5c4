// Package rules loads the operator-supplied rule configuration (taxonomy,
// severity, routing) from a per-industry directory into an immutable
// triage.Snapshot. Hard failures are ConfigError; soft issues are collected
// as warnings with deterministic sanitization (drop the offending rule,
// keep the rest).
package rules

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/linnemanlabs/intake/internal/triage"
)

const (
	taxonomyFile = "taxonomy.json"
	severityFile = "severity.yaml"
	routingFile  = "routing.json"

	// DefaultIndustry is the rule set loaded when neither an explicit
	// config path nor an active industry is configured.
	DefaultIndustry = "healthcare"

	minSeverityScore = 0
	maxSeverityScore = 10
)

// ConfigError is a hard configuration failure: unreadable or malformed
// input, or a missing mandatory field. A reload that returns ConfigError
// must leave the previously active snapshot in effect.
type ConfigError struct {
	File string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %v", e.File, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Dir resolves the active configuration directory: an explicit path wins,
// otherwise configs/<industry> relative to the working directory.
func Dir(explicit, industry string) string {
	if explicit != "" {
		return explicit
	}
	industry = strings.ToLower(strings.TrimSpace(industry))
	if industry == "" {
		industry = DefaultIndustry
	}
	return filepath.Join("configs", industry)
}

// Load reads taxonomy.json, severity.yaml, and routing.json from dir and
// builds a validated snapshot. taxonomy.json and severity.yaml may be
// absent (the engine degrades to default routing); routing.json is
// mandatory because it carries the default destination and the override.
func Load(dir string) (*triage.Snapshot, []string, error) {
	var warnings []string

	taxonomy, tw, err := loadTaxonomy(filepath.Join(dir, taxonomyFile))
	if err != nil {
		return nil, warnings, err
	}
	warnings = append(warnings, tw...)

	severity, sw, err := loadSeverity(filepath.Join(dir, severityFile))
	if err != nil {
		return nil, warnings, err
	}
	warnings = append(warnings, sw...)

	routing, rw, err := loadRouting(filepath.Join(dir, routingFile), taxonomy)
	if err != nil {
		return nil, warnings, err
	}
	warnings = append(warnings, rw...)

	snap := &triage.Snapshot{
		Industry:           filepath.Base(dir),
		SourcePath:         dir,
		LoadedAt:           time.Now(),
		Taxonomy:           taxonomy,
		Severity:           severity,
		Routes:             routing.routes,
		Override:           routing.override,
		DefaultDestination: routing.defaultDestination,
	}
	return snap, warnings, nil
}

func loadTaxonomy(path string) ([]triage.TaxonomyRule, []string, error) {
	var warnings []string

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		warnings = append(warnings, fmt.Sprintf("%s not found, no categories will match", filepath.Base(path)))
		return nil, warnings, nil
	}
	if err != nil {
		return nil, warnings, &ConfigError{File: taxonomyFile, Err: err}
	}

	var doc struct {
		Taxonomy []struct {
			ID       string   `json:"id"`
			Keywords []string `json:"keywords"`
		} `json:"taxonomy"`
	}
	if err := json.Unmarshal(jsonc.ToJSON(data), &doc); err != nil {
		return nil, warnings, &ConfigError{File: taxonomyFile, Err: err}
	}

	seen := make(map[string]bool, len(doc.Taxonomy))
	rules := make([]triage.TaxonomyRule, 0, len(doc.Taxonomy))
	for _, entry := range doc.Taxonomy {
		id := strings.TrimSpace(entry.ID)
		if id == "" {
			warnings = append(warnings, "taxonomy entry with empty id dropped")
			continue
		}
		if seen[id] {
			warnings = append(warnings, fmt.Sprintf("duplicate taxonomy id %q dropped, first declaration wins", id))
			continue
		}
		keywords := normalizeKeywords(entry.Keywords)
		if len(keywords) == 0 {
			warnings = append(warnings, fmt.Sprintf("taxonomy id %q has no usable keywords, dropped", id))
			continue
		}
		seen[id] = true
		rules = append(rules, triage.TaxonomyRule{ID: id, Keywords: keywords})
	}
	return rules, warnings, nil
}

// loadSeverity decodes severity.yaml through yaml.Node so band declaration
// order survives (a plain map would lose it, and ties break by order).
func loadSeverity(path string) ([]triage.SeverityRule, []string, error) {
	var warnings []string

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		warnings = append(warnings, fmt.Sprintf("%s not found, all severity scores will be 0", filepath.Base(path)))
		return nil, warnings, nil
	}
	if err != nil {
		return nil, warnings, &ConfigError{File: severityFile, Err: err}
	}

	var doc struct {
		SeverityRules yaml.Node `yaml:"severity_rules"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, warnings, &ConfigError{File: severityFile, Err: err}
	}
	if doc.SeverityRules.Kind == 0 {
		warnings = append(warnings, "severity_rules key missing, all severity scores will be 0")
		return nil, warnings, nil
	}
	if doc.SeverityRules.Kind != yaml.MappingNode {
		return nil, warnings, &ConfigError{File: severityFile, Err: errors.New("severity_rules must be a mapping of band name to rule")}
	}

	var rules []triage.SeverityRule
	seen := make(map[string]bool)
	content := doc.SeverityRules.Content
	for i := 0; i+1 < len(content); i += 2 {
		band := content[i].Value
		var body struct {
			Score    int      `yaml:"score"`
			Keywords []string `yaml:"keywords"`
		}
		if err := content[i+1].Decode(&body); err != nil {
			return nil, warnings, &ConfigError{File: severityFile, Err: fmt.Errorf("band %q: %w", band, err)}
		}
		if seen[band] {
			warnings = append(warnings, fmt.Sprintf("duplicate severity band %q dropped, first declaration wins", band))
			continue
		}
		if body.Score < minSeverityScore || body.Score > maxSeverityScore {
			warnings = append(warnings, fmt.Sprintf("severity band %q score %d out of range [%d,%d], dropped", band, body.Score, minSeverityScore, maxSeverityScore))
			continue
		}
		keywords := normalizeKeywords(body.Keywords)
		if len(keywords) == 0 {
			warnings = append(warnings, fmt.Sprintf("severity band %q has no usable keywords, dropped", band))
			continue
		}
		seen[band] = true
		rules = append(rules, triage.SeverityRule{Band: band, Score: body.Score, Keywords: keywords})
	}
	return rules, warnings, nil
}

type routingConfig struct {
	defaultDestination string
	override           *triage.Override
	routes             []triage.RouteEntry
}

func loadRouting(path string, taxonomy []triage.TaxonomyRule) (routingConfig, []string, error) {
	var warnings []string
	var out routingConfig

	data, err := os.ReadFile(path)
	if err != nil {
		return out, warnings, &ConfigError{File: routingFile, Err: err}
	}

	var doc struct {
		DefaultDestination string `json:"default_destination"`
		SeverityOverride   *struct {
			MinScore    *int   `json:"min_score"`
			Destination string `json:"destination"`
			Priority    string `json:"priority"`
		} `json:"severity_override"`
		Routes []struct {
			Category    string `json:"category"`
			Threshold   int    `json:"threshold"`
			Destination string `json:"destination"`
			Priority    string `json:"priority"`
		} `json:"routes"`
	}
	if err := json.Unmarshal(jsonc.ToJSON(data), &doc); err != nil {
		return out, warnings, &ConfigError{File: routingFile, Err: err}
	}

	out.defaultDestination = strings.TrimSpace(doc.DefaultDestination)
	if out.defaultDestination == "" {
		return out, warnings, &ConfigError{File: routingFile, Err: errors.New("default_destination is required")}
	}

	if ov := doc.SeverityOverride; ov != nil {
		switch {
		case ov.MinScore == nil:
			return out, warnings, &ConfigError{File: routingFile, Err: errors.New("severity_override.min_score is required")}
		case strings.TrimSpace(ov.Destination) == "":
			return out, warnings, &ConfigError{File: routingFile, Err: errors.New("severity_override.destination is required")}
		case strings.TrimSpace(ov.Priority) == "":
			return out, warnings, &ConfigError{File: routingFile, Err: errors.New("severity_override.priority is required")}
		}
		out.override = &triage.Override{
			MinScore:    *ov.MinScore,
			Destination: strings.TrimSpace(ov.Destination),
			Priority:    strings.TrimSpace(ov.Priority),
		}
	}

	known := make(map[string]bool, len(taxonomy))
	for _, rule := range taxonomy {
		known[rule.ID] = true
	}

	for i, r := range doc.Routes {
		category := strings.TrimSpace(r.Category)
		destination := strings.TrimSpace(r.Destination)
		if category == "" || destination == "" {
			warnings = append(warnings, fmt.Sprintf("route %d missing category or destination, dropped", i))
			continue
		}
		if !known[category] {
			// destinations are opaque, and operators may stage routes ahead
			// of taxonomy changes; keep the route but flag it
			warnings = append(warnings, fmt.Sprintf("route %d references unknown category %q", i, category))
		}
		out.routes = append(out.routes, triage.RouteEntry{
			Category:    category,
			Threshold:   r.Threshold,
			Destination: destination,
			Priority:    strings.TrimSpace(r.Priority),
		})
	}
	return out, warnings, nil
}

// normalizeKeywords lower-cases and strips keywords through the same
// normalization the matcher applies to text, dropping any that normalize
// to nothing.
func normalizeKeywords(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if n := triage.Normalize(kw); n != "" {
			out = append(out, n)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
