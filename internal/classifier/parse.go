package classifier

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/crashlens/crashlens/internal/rules"
)

// ParseVerdict extracts a verdict from raw model output. Models wrap
// JSON in fences or lead with prose often enough that strict parsing
// would throw away good answers, so this trims to the outermost JSON
// object first. A response that still does not parse becomes an
// undetermined verdict; parse failure is never an error to the caller.
func ParseVerdict(raw string) Verdict {
	payload := extractJSON(raw)
	if payload == "" {
		return parseFailure(raw, "response contains no JSON object")
	}

	var v Verdict
	if err := json.Unmarshal([]byte(payload), &v); err != nil {
		return parseFailure(raw, fmt.Sprintf("response is not valid JSON: %v", err))
	}

	v.Confidence = normalizeConfidence(v.Confidence)
	if v.RootCause == "" {
		v.RootCause = RootCauseUndetermined
		if v.UnknownReason == "" {
			v.UnknownReason = "model response omitted root_cause"
		}
	}
	if v.KeyInfo == nil {
		v.KeyInfo = []string{}
	}
	if len(v.KeyInfo) > maxKeyInfo {
		v.KeyInfo = v.KeyInfo[:maxKeyInfo]
	}
	return v
}

func parseFailure(raw, reason string) Verdict {
	excerpt := strings.TrimSpace(raw)
	if len(excerpt) > 120 {
		excerpt = excerpt[:120] + "..."
	}
	return Verdict{
		RootCause:     RootCauseUndetermined,
		KeyInfo:       []string{},
		Confidence:    rules.ConfidenceLow,
		UnknownReason: fmt.Sprintf("%s (got: %q)", reason, excerpt),
	}
}

// extractJSON returns the outermost {...} span of s, or "".
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}

func normalizeConfidence(c rules.Confidence) rules.Confidence {
	switch rules.Confidence(strings.ToLower(strings.TrimSpace(string(c)))) {
	case rules.ConfidenceHigh:
		return rules.ConfidenceHigh
	case rules.ConfidenceMedium:
		return rules.ConfidenceMedium
	default:
		return rules.ConfidenceLow
	}
}
