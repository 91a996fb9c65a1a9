// Package rules implements the keyword pre-classifier. It is pure and
// synchronous: no I/O, no shared state, deterministic for a given
// report and catalog.
package rules

import (
	"strings"

	"github.com/crashlens/crashlens/internal/knowledge"
)

// Confidence is the ordinal confidence of a classification. The rule
// path only ever produces High or Medium; absence of a match is a nil
// MatchResult, not a low-confidence one.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// MatchResult is the engine's verdict candidate for one report.
type MatchResult struct {
	Rule            *knowledge.Rule
	MatchedKeywords []string
	MatchedCount    int
	TotalKeywords   int
	Confidence      Confidence
}

// highRatio is the fraction of a rule's keywords that must match for
// high confidence.
const highRatio = 0.7

// Classify walks the catalog in priority order and returns the first
// qualifying rule, or nil when none qualifies.
//
// Per rule: negative keywords exclude before anything else, then the
// optional guard gates, then matched keywords are counted against
// threshold = max(2, len(keywords)/2). The max(2, ...) floor is
// deliberate: a rule with two keywords needs both, so a single stray
// substring can never qualify a rule.
func Classify(report string, catalog *knowledge.Catalog) *MatchResult {
	lowered := strings.ToLower(report)

	for i := range catalog.Rules() {
		rule := &catalog.Rules()[i]

		if excludedBy(lowered, rule.NegativeKeywords) {
			continue
		}

		if rule.Guard != nil && !rule.Guard(lowered) {
			continue
		}

		matched := matchedKeywords(lowered, rule.Keywords)

		threshold := len(rule.Keywords) / 2
		if threshold < 2 {
			threshold = 2
		}

		if len(matched) < threshold {
			continue
		}

		confidence := ConfidenceMedium
		if float64(len(matched)) >= highRatio*float64(len(rule.Keywords)) {
			confidence = ConfidenceHigh
		}

		return &MatchResult{
			Rule:            rule,
			MatchedKeywords: matched,
			MatchedCount:    len(matched),
			TotalKeywords:   len(rule.Keywords),
			Confidence:      confidence,
		}
	}

	return nil
}

func excludedBy(lowered string, negatives []string) bool {
	for _, neg := range negatives {
		if strings.Contains(lowered, strings.ToLower(neg)) {
			return true
		}
	}
	return false
}

func matchedKeywords(lowered string, keywords []string) []string {
	var matched []string
	for _, kw := range keywords {
		if strings.Contains(lowered, strings.ToLower(kw)) {
			matched = append(matched, kw)
		}
	}
	return matched
}
