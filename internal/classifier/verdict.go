package classifier

import (
	"github.com/crashlens/crashlens/internal/rules"
)

// RootCauseUndetermined is the root_cause label for reports no strategy
// could attribute.
const RootCauseUndetermined = "undetermined"

// maxKeyInfo caps the evidentiary excerpts carried in a verdict.
const maxKeyInfo = 5

// Verdict is the normalized output shape every strategy produces.
type Verdict struct {
	RootCause     string           `json:"root_cause"`
	KeyInfo       []string         `json:"key_info"`
	Confidence    rules.Confidence `json:"confidence"`
	UnknownReason string           `json:"unknown_reason"`
}

// VerdictFromMatch maps a rule-engine result into the verdict shape.
// A nil match becomes an undetermined verdict, not an error.
func VerdictFromMatch(m *rules.MatchResult) Verdict {
	if m == nil {
		return Verdict{
			RootCause:     RootCauseUndetermined,
			KeyInfo:       []string{},
			Confidence:    rules.ConfidenceLow,
			UnknownReason: "no rule reached its keyword threshold for this report",
		}
	}

	keyInfo := m.MatchedKeywords
	if len(keyInfo) > maxKeyInfo {
		keyInfo = keyInfo[:maxKeyInfo]
	}

	return Verdict{
		RootCause:  m.Rule.Category,
		KeyInfo:    keyInfo,
		Confidence: m.Confidence,
	}
}
