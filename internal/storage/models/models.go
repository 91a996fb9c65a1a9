package models

import "time"

// ClassificationRecord is one persisted classification outcome.
type ClassificationRecord struct {
	ID            string    `json:"id"`
	ReportExcerpt string    `json:"report_excerpt"`
	ReportHash    string    `json:"report_hash"`
	Strategy      string    `json:"strategy"`
	Escalated     bool      `json:"escalated"`
	RootCause     string    `json:"root_cause"`
	Confidence    string    `json:"confidence"`
	UnknownReason string    `json:"unknown_reason"`
	KeyInfo       []string  `json:"key_info"`
	MatchedRuleID string    `json:"matched_rule_id,omitempty"`
	LatencyMS     int64     `json:"latency_ms"`
	CreatedAt     time.Time `json:"created_at"`
}
