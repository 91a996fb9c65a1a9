package knowledge

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestBuiltinCatalog(t *testing.T) {
	catalog, err := BuiltinCatalog()
	if err != nil {
		t.Fatalf("BuiltinCatalog() error: %v", err)
	}

	if catalog.Len() != 8 {
		t.Errorf("catalog has %d rules, want 8", catalog.Len())
	}

	seen := map[string]bool{}
	for _, rule := range catalog.Rules() {
		if seen[rule.ID] {
			t.Errorf("duplicate rule id %s", rule.ID)
		}
		seen[rule.ID] = true

		if len(rule.Keywords) == 0 {
			t.Errorf("rule %s has no keywords", rule.ID)
		}
	}
}

func TestBuiltinCatalog_GuardAttached(t *testing.T) {
	catalog, err := BuiltinCatalog()
	if err != nil {
		t.Fatalf("BuiltinCatalog() error: %v", err)
	}

	physical := catalog.Find(RulePhysicalOOM)
	if physical == nil {
		t.Fatalf("rule %s not found", RulePhysicalOOM)
	}
	if physical.Guard == nil {
		t.Fatalf("rule %s should carry the possible-reasons guard", RulePhysicalOOM)
	}

	if physical.Guard("native memory allocation failed") {
		t.Error("guard passed without the marker phrase")
	}
	if !physical.Guard("# possible reasons:\n  the system is out of physical ram") {
		t.Error("guard rejected a report containing the marker phrase")
	}

	virtual := catalog.Find(RuleWinVirtualOOM)
	if virtual == nil {
		t.Fatalf("rule %s not found", RuleWinVirtualOOM)
	}
	if virtual.Guard != nil {
		t.Errorf("rule %s should not carry a guard", RuleWinVirtualOOM)
	}
}

func TestNewCatalog_Validation(t *testing.T) {
	tests := []struct {
		name  string
		rules []Rule
	}{
		{
			name:  "empty catalog",
			rules: nil,
		},
		{
			name: "missing keywords",
			rules: []Rule{
				{ID: "A", Name: "a", Keywords: []string{"x", "y"}},
				{ID: "B", Name: "broken"},
			},
		},
		{
			name: "empty id",
			rules: []Rule{
				{Name: "anonymous", Keywords: []string{"x"}},
			},
		},
		{
			name: "duplicate id",
			rules: []Rule{
				{ID: "A", Keywords: []string{"x"}},
				{ID: "A", Keywords: []string{"y"}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewCatalog(tt.rules); err == nil {
				t.Error("NewCatalog() accepted a malformed catalog")
			}
		})
	}
}

func TestNewCatalog_PreservesOrder(t *testing.T) {
	rules := []Rule{
		{ID: "THIRD_PRIORITY_LAST", Keywords: []string{"a", "b"}},
		{ID: "SECOND", Keywords: []string{"c", "d"}},
		{ID: "FIRST_IN_FILE_NOT_ALPHABETICAL", Keywords: []string{"e", "f"}},
	}

	catalog, err := NewCatalog(rules)
	if err != nil {
		t.Fatalf("NewCatalog() error: %v", err)
	}

	for i, rule := range catalog.Rules() {
		if rule.ID != rules[i].ID {
			t.Errorf("rule %d = %s, want %s (catalog order must be preserved)", i, rule.ID, rules[i].ID)
		}
	}
}

func TestRule_Document_Deterministic(t *testing.T) {
	catalog, err := BuiltinCatalog()
	if err != nil {
		t.Fatalf("BuiltinCatalog() error: %v", err)
	}

	rule := catalog.Find("JBR_METAL_MAC")
	doc := rule.Document()

	if doc != rule.Document() {
		t.Error("Document() is not deterministic")
	}
	for _, want := range []string{rule.Name, rule.Category, rule.Keywords[0], "IllegalStateException"} {
		if !strings.Contains(doc, want) {
			t.Errorf("Document() missing %q", want)
		}
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")

	content := `rules:
  - id: PHYSICAL_OOM
    category: Out of memory
    name: Physical memory exhausted
    keywords:
      - Native memory allocation
      - Possible reasons
      - physical RAM or swap space
    description: custom catalog entry
    solution: add RAM
  - id: CUSTOM_RULE
    category: Plugin issue
    name: Broken plugin crash
    keywords:
      - some.plugin.Class
      - PluginException
    negative_keywords:
      - unrelated marker
    description: plugin crash
    solution: disable the plugin
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	catalog, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error: %v", err)
	}

	if catalog.Len() != 2 {
		t.Fatalf("catalog has %d rules, want 2", catalog.Len())
	}

	// A user catalog reusing a built-in ID keeps its registered guard.
	if catalog.Find("PHYSICAL_OOM").Guard == nil {
		t.Error("guard not attached to PHYSICAL_OOM from a YAML catalog")
	}
	if catalog.Find("CUSTOM_RULE").Guard != nil {
		t.Error("unexpected guard on CUSTOM_RULE")
	}

	custom := catalog.Find("CUSTOM_RULE")
	if len(custom.NegativeKeywords) != 1 || custom.NegativeKeywords[0] != "unrelated marker" {
		t.Errorf("negative_keywords = %v, want [unrelated marker]", custom.NegativeKeywords)
	}
}

func TestLoadFile_Malformed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")

	// Rule without keywords must fail at load time, not at match time.
	content := `rules:
  - id: NO_KEYWORDS
    category: broken
    name: broken rule
    description: x
    solution: y
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadFile(path); err == nil {
		t.Error("LoadFile() accepted a rule with no keywords")
	}
}

func TestLoad_EmptyPathUsesBuiltin(t *testing.T) {
	catalog, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error: %v", err)
	}
	if catalog.Len() != 8 {
		t.Errorf("Load(\"\") returned %d rules, want built-in 8", catalog.Len())
	}
}
