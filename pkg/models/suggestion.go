package models

import "strings"

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Severities is ordered from most to least severe.
var Severities = []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow}

// Rank returns 0 for critical up to 3 for low. Unknown severities rank last.
func (s Severity) Rank() int {
	switch s.Normalize() {
	case SeverityCritical:
		return 0
	case SeverityHigh:
		return 1
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 3
	}
	return 4
}

// Normalize lowercases the severity and maps unknown values to low.
func (s Severity) Normalize() Severity {
	switch v := Severity(strings.ToLower(strings.TrimSpace(string(s)))); v {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow:
		return v
	}
	return SeverityLow
}

type PriorityStatus string

const (
	PrioritySent                 PriorityStatus = "sent"
	PriorityDiscardedByQuantity  PriorityStatus = "discarded_by_quantity"
	PriorityDiscardedBySafeguard PriorityStatus = "discarded_by_safeguard"
	PriorityDiscardedBySeverity  PriorityStatus = "discarded_by_severity"
	PriorityReprioritized        PriorityStatus = "reprioritized"
)

type ClusteringInformation struct {
	Type        string   `json:"type"` // "parent" or "related"
	ParentID    string   `json:"parent_id,omitempty"`
	RelatedIDs  []string `json:"related_ids,omitempty"`
	ProblemDesc string   `json:"problem_description,omitempty"`
}

type CodeSuggestion struct {
	ID                    string                 `json:"id"`
	RelevantFile          string                 `json:"relevant_file"`
	Language              string                 `json:"language,omitempty"`
	RelevantLinesStart    int                    `json:"relevant_lines_start"`
	RelevantLinesEnd      int                    `json:"relevant_lines_end"`
	SuggestionContent     string                 `json:"suggestion_content"`
	ExistingCode          string                 `json:"existing_code,omitempty"`
	ImprovedCode          string                 `json:"improved_code,omitempty"`
	OneSentenceSummary    string                 `json:"one_sentence_summary,omitempty"`
	Severity              Severity               `json:"severity"`
	Label                 string                 `json:"label"`
	PriorityStatus        PriorityStatus         `json:"priority_status,omitempty"`
	ClusteringInformation *ClusteringInformation `json:"clustering_information,omitempty"`
}

// FallbackEligible reports whether the suggestion was discarded only for
// quantity reasons and may substitute for a suggestion that failed delivery.
func (s CodeSuggestion) FallbackEligible() bool {
	return s.PriorityStatus == PriorityDiscardedByQuantity
}
