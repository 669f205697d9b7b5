package model

import "time"

// FailureReason classifies why a field produced no value.
type FailureReason string

const (
	FailureMissingPattern     FailureReason = "missing pattern"
	FailureValidationRejected FailureReason = "validation rejected"
	FailureZoneOutOfRange     FailureReason = "zone out of page range"
	FailureKeywordNotFound    FailureReason = "keyword not found"
)

// FieldValue is one successfully extracted field value with its diagnostics.
type FieldValue struct {
	Field string `json:"field"`
	Value string `json:"value"`

	// Values holds every hit for multi-value fields; Value is the first.
	Values []string `json:"values,omitempty"`

	// Confidence is 1.0 for zone extraction, decayed for ambiguous
	// regex/keyword matches, and 0.5 for applied default values.
	Confidence float64 `json:"confidence"`

	// SourcePage is the 1-based page the value came from; zero when the
	// value was found in the unrestricted full text or set by default.
	SourcePage int `json:"source_page,omitempty"`

	// Rule describes which rule produced the value.
	Rule string `json:"rule,omitempty"`
}

// FieldFailure records a field that produced no value and why.
type FieldFailure struct {
	Field    string        `json:"field"`
	Reason   FailureReason `json:"reason"`
	Required bool          `json:"required"`
	Detail   string        `json:"detail,omitempty"`
}

// ExtractionResult is the best-effort outcome of applying a resolved
// template to one document. Unresolved required fields are warnings in the
// manifest, never a hard failure of the whole extraction.
type ExtractionResult struct {
	TemplateID   string `json:"template_id"`
	TemplateName string `json:"template_name"`

	// Fields maps field name to its extracted value.
	Fields map[string]FieldValue `json:"fields"`

	// Failures is the manifest of fields that produced no value.
	Failures []FieldFailure `json:"failures,omitempty"`

	Warnings []string `json:"warnings,omitempty"`

	// OverallConfidence is the mean of per-field confidences over required
	// fields; absent required fields count as zero, absent optional fields
	// do not penalize.
	OverallConfidence float64 `json:"overall_confidence"`

	Duration time.Duration `json:"duration"`
}

// BatchMatchResult aggregates per-document matching outcomes. Results are
// keyed by document identity (path), never by position, since the batch
// provides no ordering guarantee.
type BatchMatchResult struct {
	// Results maps document path to its best match, for documents where a
	// template cleared the minimum confidence.
	Results map[string]*TemplateMatchResult `json:"results"`

	// Unmatched lists documents no template matched.
	Unmatched []string `json:"unmatched,omitempty"`

	// Errors maps document path to the error that prevented matching it.
	// One document's failure never aborts the batch.
	Errors map[string]string `json:"errors,omitempty"`

	// SuccessRate is matched documents over total documents, in [0, 1].
	SuccessRate float64 `json:"success_rate"`

	Duration time.Duration `json:"duration"`
}
