package classifier

import (
	"fmt"
	"strings"

	"github.com/crashlens/crashlens/internal/knowledge"
	"github.com/crashlens/crashlens/internal/retrieval"
)

const outputContract = `## Output format (important)

Output pure JSON only. No prose, no explanations, no markdown fences.

Fields:
1. root_cause: the conclusion label matched from the rules above, or "undetermined"
2. key_info: 1-5 log excerpts supporting the conclusion, as a JSON array of strings
3. confidence: one of "high", "medium", "low"
4. unknown_reason: why the cause could not be determined (empty string when it was)

Example:
{
    "root_cause": "Out of memory",
    "key_info": [
        "Native memory allocation (mmap) failed to map 2097152 bytes for committing reserved memory.",
        "Failed to commit virtual memory."
    ],
    "confidence": "high",
    "unknown_reason": ""
}

If the log matches no rule, set root_cause to "undetermined" and explain in unknown_reason.`

// SystemKnowledgeText serializes the whole catalog into the fixed
// system context used by the direct-injection strategy. The rendering
// is deterministic: same catalog, same text.
func SystemKnowledgeText(catalog *knowledge.Catalog) string {
	var b strings.Builder

	b.WriteString("You are an expert at diagnosing IDE and JVM crash logs.\n\n")
	b.WriteString("## Diagnostic rules\n")

	for i, rule := range catalog.Rules() {
		fmt.Fprintf(&b, "\n### Rule %d: %s\n", i+1, rule.Name)
		fmt.Fprintf(&b, "- Trigger keywords: %s\n", joinQuoted(rule.Keywords))
		if len(rule.NegativeKeywords) > 0 {
			fmt.Fprintf(&b, "- Must NOT contain: %s\n", joinQuoted(rule.NegativeKeywords))
		}
		fmt.Fprintf(&b, "- Root cause: %s\n", rule.Description)
		fmt.Fprintf(&b, "- Conclusion label: %s\n", rule.Category)
	}

	b.WriteString("\n")
	b.WriteString(outputContract)
	return b.String()
}

// retrievalContext renders only the retrieved candidates, with their
// similarity scores and remediation steps, as the system context for
// the retrieval-augmented strategy.
func retrievalContext(candidates []retrieval.Candidate) string {
	var b strings.Builder

	b.WriteString("You are an expert at diagnosing IDE and JVM crash logs.\n\n")
	b.WriteString("## Candidate rules (ranked by similarity to the log)\n")

	for i, c := range candidates {
		fmt.Fprintf(&b, "\n### Candidate %d: %s (similarity %.4f)\n", i+1, c.Rule.Name, c.Score)
		fmt.Fprintf(&b, "- Trigger keywords: %s\n", joinQuoted(c.Rule.Keywords))
		fmt.Fprintf(&b, "- Root cause: %s\n", c.Rule.Description)
		fmt.Fprintf(&b, "- Conclusion label: %s\n", c.Rule.Category)
		fmt.Fprintf(&b, "- Remediation: %s\n", strings.ReplaceAll(c.Rule.Solution, "\n", "; "))
	}

	b.WriteString("\n")
	b.WriteString(outputContract)
	return b.String()
}

func userPrompt(report string) string {
	return fmt.Sprintf(
		"The log to analyze is as follows, output the crash fingerprint in JSON format:\n\n```\n%s\n```",
		strings.TrimSpace(report),
	)
}

func joinQuoted(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = "`" + s + "`"
	}
	return strings.Join(quoted, " + ")
}
