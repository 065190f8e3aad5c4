package rules

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const validTaxonomy = `{
  "taxonomy": [
    {"id": "emergency", "keywords": ["chest pain", "bleeding"]},
    {"id": "billing", "keywords": ["Billing", "REFUND"]}
  ]
}`

const validSeverity = `severity_rules:
  critical:
    score: 10
    keywords: ["chest pain"]
  low:
    score: 2
    keywords: ["refund"]
`

const validRouting = `{
  "default_destination": "General_Queue",
  "severity_override": {"min_score": 9, "destination": "ER_Triage", "priority": "HIGH"},
  "routes": [
    {"category": "billing", "threshold": 2, "destination": "Billing_Department"}
  ]
}`

func writeConfig(t *testing.T, taxonomy, severity, routing string) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		taxonomyFile: taxonomy,
		severityFile: severity,
		routingFile:  routing,
	}
	for name, body := range files {
		if body == "" {
			continue
		}
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

func hasWarning(warnings []string, substr string) bool {
	for _, w := range warnings {
		if strings.Contains(w, substr) {
			return true
		}
	}
	return false
}

func TestLoad_Valid(t *testing.T) {
	t.Parallel()

	dir := writeConfig(t, validTaxonomy, validSeverity, validRouting)
	snap, warnings, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("warnings = %v, want none", warnings)
	}

	if len(snap.Taxonomy) != 2 || snap.Taxonomy[0].ID != "emergency" || snap.Taxonomy[1].ID != "billing" {
		t.Errorf("taxonomy = %+v", snap.Taxonomy)
	}
	// keywords are normalized at load time
	if got := snap.Taxonomy[1].Keywords; got[0] != "billing" || got[1] != "refund" {
		t.Errorf("billing keywords = %v, want normalized lowercase", got)
	}
	if len(snap.Severity) != 2 || snap.Severity[0].Band != "critical" || snap.Severity[1].Band != "low" {
		t.Errorf("severity bands out of declaration order: %+v", snap.Severity)
	}
	if snap.DefaultDestination != "General_Queue" {
		t.Errorf("default destination = %q", snap.DefaultDestination)
	}
	if snap.Override == nil || snap.Override.MinScore != 9 || snap.Override.Destination != "ER_Triage" {
		t.Errorf("override = %+v", snap.Override)
	}
	if len(snap.Routes) != 1 || snap.Routes[0].Destination != "Billing_Department" {
		t.Errorf("routes = %+v", snap.Routes)
	}
	if snap.Industry != filepath.Base(dir) {
		t.Errorf("industry = %q, want %q", snap.Industry, filepath.Base(dir))
	}
	if snap.LoadedAt.IsZero() {
		t.Error("LoadedAt not stamped")
	}
}

func TestLoad_SeverityBandOrderPreserved(t *testing.T) {
	t.Parallel()

	severity := `severity_rules:
  zeta:
    score: 3
    keywords: ["z"]
  alpha:
    score: 3
    keywords: ["a"]
  mid:
    score: 7
    keywords: ["m"]
`
	dir := writeConfig(t, validTaxonomy, severity, validRouting)
	snap, _, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	want := []string{"zeta", "alpha", "mid"}
	for i, band := range want {
		if snap.Severity[i].Band != band {
			t.Fatalf("band[%d] = %q, want %q (declaration order must survive)", i, snap.Severity[i].Band, band)
		}
	}
}

func TestLoad_CommentsInJSONAccepted(t *testing.T) {
	t.Parallel()

	taxonomy := `{
  // operator-maintained category list
  "taxonomy": [
    {"id": "billing", "keywords": ["refund"]} /* keep in sync with routes */
  ]
}`
	dir := writeConfig(t, taxonomy, validSeverity, validRouting)
	snap, _, err := Load(dir)
	if err != nil {
		t.Fatalf("Load rejected commented JSON: %v", err)
	}
	if len(snap.Taxonomy) != 1 || snap.Taxonomy[0].ID != "billing" {
		t.Errorf("taxonomy = %+v", snap.Taxonomy)
	}
}

func TestLoad_MissingTaxonomyIsSoft(t *testing.T) {
	t.Parallel()

	dir := writeConfig(t, "", validSeverity, validRouting)
	snap, warnings, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(snap.Taxonomy) != 0 {
		t.Errorf("taxonomy = %+v, want empty", snap.Taxonomy)
	}
	if !hasWarning(warnings, "taxonomy.json not found") {
		t.Errorf("warnings = %v, want a missing-taxonomy warning", warnings)
	}
	// routes now reference a category no taxonomy declares
	if !hasWarning(warnings, `unknown category "billing"`) {
		t.Errorf("warnings = %v, want an unknown-category warning", warnings)
	}
}

func TestLoad_MissingRoutingIsHard(t *testing.T) {
	t.Parallel()

	dir := writeConfig(t, validTaxonomy, validSeverity, "")
	_, _, err := Load(dir)

	var cerr *ConfigError
	if !errors.As(err, &cerr) {
		t.Fatalf("err = %v, want *ConfigError", err)
	}
	if cerr.File != routingFile {
		t.Errorf("file = %q, want %q", cerr.File, routingFile)
	}
}

func TestLoad_MalformedTaxonomyIsHard(t *testing.T) {
	t.Parallel()

	dir := writeConfig(t, `{"taxonomy": [`, validSeverity, validRouting)
	_, _, err := Load(dir)

	var cerr *ConfigError
	if !errors.As(err, &cerr) {
		t.Fatalf("err = %v, want *ConfigError", err)
	}
	if cerr.File != taxonomyFile {
		t.Errorf("file = %q, want %q", cerr.File, taxonomyFile)
	}
}

func TestLoad_TaxonomySanitization(t *testing.T) {
	t.Parallel()

	taxonomy := `{
  "taxonomy": [
    {"id": "billing", "keywords": ["refund"]},
    {"id": "", "keywords": ["orphan"]},
    {"id": "billing", "keywords": ["duplicate"]},
    {"id": "empty", "keywords": ["  ", "!!!"]}
  ]
}`
	dir := writeConfig(t, taxonomy, validSeverity, validRouting)
	snap, warnings, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if len(snap.Taxonomy) != 1 || snap.Taxonomy[0].ID != "billing" {
		t.Errorf("taxonomy = %+v, want the first billing entry only", snap.Taxonomy)
	}
	if got := snap.Taxonomy[0].Keywords; len(got) != 1 || got[0] != "refund" {
		t.Errorf("keywords = %v, want the original declaration kept", got)
	}
	for _, want := range []string{"empty id", `duplicate taxonomy id "billing"`, "no usable keywords"} {
		if !hasWarning(warnings, want) {
			t.Errorf("warnings = %v, want one containing %q", warnings, want)
		}
	}
}

func TestLoad_SeveritySanitization(t *testing.T) {
	t.Parallel()

	severity := `severity_rules:
  critical:
    score: 10
    keywords: ["chest pain"]
  bogus:
    score: 11
    keywords: ["too high"]
  negative:
    score: -1
    keywords: ["too low"]
  critical:
    score: 5
    keywords: ["duplicate"]
  hollow:
    score: 4
    keywords: []
`
	dir := writeConfig(t, validTaxonomy, severity, validRouting)
	snap, warnings, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if len(snap.Severity) != 1 || snap.Severity[0].Band != "critical" || snap.Severity[0].Score != 10 {
		t.Errorf("severity = %+v, want only the first critical band", snap.Severity)
	}
	for _, want := range []string{"score 11 out of range", "score -1 out of range", `duplicate severity band "critical"`, `band "hollow" has no usable keywords`} {
		if !hasWarning(warnings, want) {
			t.Errorf("warnings = %v, want one containing %q", warnings, want)
		}
	}
}

func TestLoad_RoutingFieldRequirements(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		routing string
		wantErr string
	}{
		{
			name:    "missing default destination",
			routing: `{"routes": []}`,
			wantErr: "default_destination is required",
		},
		{
			name:    "override without min_score",
			routing: `{"default_destination": "Q", "severity_override": {"destination": "D", "priority": "HIGH"}}`,
			wantErr: "min_score is required",
		},
		{
			name:    "override without destination",
			routing: `{"default_destination": "Q", "severity_override": {"min_score": 9, "priority": "HIGH"}}`,
			wantErr: "destination is required",
		},
		{
			name:    "override without priority",
			routing: `{"default_destination": "Q", "severity_override": {"min_score": 9, "destination": "D"}}`,
			wantErr: "priority is required",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			dir := writeConfig(t, validTaxonomy, validSeverity, tc.routing)
			_, _, err := Load(dir)

			var cerr *ConfigError
			if !errors.As(err, &cerr) {
				t.Fatalf("err = %v, want *ConfigError", err)
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("err = %v, want substring %q", err, tc.wantErr)
			}
		})
	}
}

func TestLoad_RouteSanitization(t *testing.T) {
	t.Parallel()

	routing := `{
  "default_destination": "General_Queue",
  "routes": [
    {"category": "billing", "threshold": 2, "destination": "Billing_Department"},
    {"category": "", "threshold": 1, "destination": "Nowhere"},
    {"category": "future_category", "threshold": 3, "destination": "Staged_Queue"}
  ]
}`
	dir := writeConfig(t, validTaxonomy, validSeverity, routing)
	snap, warnings, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	// unknown categories stay routed, empty ones are dropped
	if len(snap.Routes) != 2 {
		t.Fatalf("routes = %+v, want 2", snap.Routes)
	}
	if snap.Routes[1].Category != "future_category" {
		t.Errorf("routes[1] = %+v, want the staged route kept", snap.Routes[1])
	}
	if !hasWarning(warnings, "missing category or destination") {
		t.Errorf("warnings = %v, want a dropped-route warning", warnings)
	}
	if !hasWarning(warnings, `unknown category "future_category"`) {
		t.Errorf("warnings = %v, want an unknown-category warning", warnings)
	}
	if snap.Override != nil {
		t.Errorf("override = %+v, want nil when not configured", snap.Override)
	}
}

func TestDir(t *testing.T) {
	t.Parallel()

	tests := []struct {
		explicit, industry, want string
	}{
		{"/etc/intake/rules", "finance", "/etc/intake/rules"},
		{"", "finance", filepath.Join("configs", "finance")},
		{"", "  Finance  ", filepath.Join("configs", "finance")},
		{"", "", filepath.Join("configs", "healthcare")},
	}
	for _, tc := range tests {
		if got := Dir(tc.explicit, tc.industry); got != tc.want {
			t.Errorf("Dir(%q, %q) = %q, want %q", tc.explicit, tc.industry, got, tc.want)
		}
	}
}
