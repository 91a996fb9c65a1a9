package knowledge

import (
	"fmt"
	"strings"
)

// GuardFunc is an auxiliary predicate a rule may carry in addition to
// keyword counting. It receives the already lower-cased report text and
// returns false to disqualify the rule.
type GuardFunc func(loweredReport string) bool

// Rule is one diagnostic entry in the catalog. Keywords are literal
// substrings matched case-insensitively against report text; any
// negative keyword present in the report disqualifies the rule
// outright.
type Rule struct {
	ID               string   `yaml:"id" json:"id"`
	Category         string   `yaml:"category" json:"category"`
	Name             string   `yaml:"name" json:"name"`
	Keywords         []string `yaml:"keywords" json:"keywords"`
	NegativeKeywords []string `yaml:"negative_keywords" json:"negative_keywords,omitempty"`
	ExceptionTypes   []string `yaml:"exception_types" json:"exception_types,omitempty"`
	Platforms        []string `yaml:"platforms" json:"platforms,omitempty"`
	Description      string   `yaml:"description" json:"description"`
	Solution         string   `yaml:"solution" json:"solution"`

	// Guard is attached at load time from the guard registry, never
	// from the YAML document itself.
	Guard GuardFunc `yaml:"-" json:"-"`
}

// Document renders the deterministic description used as the rule's
// embedding input.
func (r *Rule) Document() string {
	var b strings.Builder
	b.WriteString(r.Name)
	b.WriteString("\nCategory: ")
	b.WriteString(r.Category)
	b.WriteString("\nKeywords: ")
	b.WriteString(strings.Join(r.Keywords, ", "))
	if len(r.ExceptionTypes) > 0 {
		b.WriteString("\nException types: ")
		b.WriteString(strings.Join(r.ExceptionTypes, ", "))
	}
	b.WriteString("\n")
	b.WriteString(r.Description)
	return b.String()
}

func (r *Rule) validate() error {
	if r.ID == "" {
		return fmt.Errorf("rule has empty id")
	}
	if len(r.Keywords) == 0 {
		return fmt.Errorf("rule %s has no keywords", r.ID)
	}
	return nil
}

// RequireMarker builds a guard that passes only when the given marker
// phrase occurs in the report. The marker is matched case-insensitively.
func RequireMarker(marker string) GuardFunc {
	lowered := strings.ToLower(marker)
	return func(report string) bool {
		return strings.Contains(report, lowered)
	}
}

// Catalog is the immutable, ordered rule catalog. Order is a priority
// list: earlier rules win ties in the rule engine. A Catalog is never
// mutated after construction and is safe for concurrent readers.
type Catalog struct {
	rules []Rule
}

// NewCatalog validates the rules, attaches registered guards, and
// freezes the catalog. Validation failures are fatal to the caller by
// contract: a malformed catalog must abort startup.
func NewCatalog(rules []Rule) (*Catalog, error) {
	if len(rules) == 0 {
		return nil, fmt.Errorf("catalog has no rules")
	}

	seen := make(map[string]struct{}, len(rules))
	frozen := make([]Rule, len(rules))
	copy(frozen, rules)

	for i := range frozen {
		if err := frozen[i].validate(); err != nil {
			return nil, fmt.Errorf("invalid rule at index %d: %w", i, err)
		}
		if _, dup := seen[frozen[i].ID]; dup {
			return nil, fmt.Errorf("duplicate rule id %s", frozen[i].ID)
		}
		seen[frozen[i].ID] = struct{}{}

		if guard, ok := guardRegistry[frozen[i].ID]; ok {
			frozen[i].Guard = guard
		}
	}

	return &Catalog{rules: frozen}, nil
}

// Rules returns the rules in priority order. Callers must treat the
// slice as read-only.
func (c *Catalog) Rules() []Rule {
	return c.rules
}

func (c *Catalog) Len() int {
	return len(c.rules)
}

// Find returns the rule with the given ID, or nil.
func (c *Catalog) Find(id string) *Rule {
	for i := range c.rules {
		if c.rules[i].ID == id {
			return &c.rules[i]
		}
	}
	return nil
}
