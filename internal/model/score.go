package model

import "time"

// MatchingCriteria carries the weight vector combining the six similarity
// sub-scores into one confidence value. Weights should sum to at most 1.0 by
// convention; callers are expected to normalize, the scorer does not enforce
// it.
type MatchingCriteria struct {
	FormatWeight    float64 `json:"format_weight"`
	KeywordWeight   float64 `json:"keyword_weight"`
	PatternWeight   float64 `json:"pattern_weight"`
	StructureWeight float64 `json:"structure_weight"`
	MetadataWeight  float64 `json:"metadata_weight"`
	FilenameWeight  float64 `json:"filename_weight"`

	// AutoApplicationThreshold is the overall score at or above which a
	// match may be applied without user confirmation.
	AutoApplicationThreshold float64 `json:"auto_application_threshold"`

	// UseMachineLearning is accepted for compatibility with stored
	// configurations and ignored; the deterministic weighted path is the
	// only scorer implemented. An adaptive scorer is a future strategy.
	UseMachineLearning bool `json:"use_machine_learning,omitempty"`
}

// DefaultMatchingCriteria returns the standard weight vector.
func DefaultMatchingCriteria() MatchingCriteria {
	return MatchingCriteria{
		FormatWeight:             0.20,
		KeywordWeight:            0.30,
		PatternWeight:            0.20,
		StructureWeight:          0.15,
		MetadataWeight:           0.10,
		FilenameWeight:           0.05,
		AutoApplicationThreshold: 0.75,
	}
}

// MatchingSettings tunes matcher behavior outside of the weight vector.
type MatchingSettings struct {
	// FuzzyMatching enables approximate token matching for the filename
	// sub-score.
	FuzzyMatching bool `json:"fuzzy_matching"`

	// FuzzyThreshold is the minimum normalized similarity for a fuzzy token
	// match, in (0, 1].
	FuzzyThreshold float64 `json:"fuzzy_threshold"`

	// MinimumConfidence filters ranked candidates below this overall score.
	MinimumConfidence float64 `json:"minimum_confidence"`

	// CacheTTL bounds how long fingerprint and score cache entries live.
	CacheTTL time.Duration `json:"cache_ttl"`

	// MaxConcurrentOperations bounds batch worker concurrency.
	MaxConcurrentOperations int `json:"max_concurrent_operations"`
}

// DefaultMatchingSettings returns the standard matcher settings.
func DefaultMatchingSettings() MatchingSettings {
	return MatchingSettings{
		FuzzyMatching:           true,
		FuzzyThreshold:          0.8,
		MinimumConfidence:       0.3,
		CacheTTL:                24 * time.Hour,
		MaxConcurrentOperations: 4,
	}
}

// ConfidenceScore holds the six similarity sub-scores, each in [0, 1], and
// the weighted overall score. The overall value is always recomputable from
// the sub-scores and weights; there is no hidden state.
type ConfidenceScore struct {
	Format    float64 `json:"format"`
	Keyword   float64 `json:"keyword"`
	Pattern   float64 `json:"pattern"`
	Structure float64 `json:"structure"`
	Metadata  float64 `json:"metadata"`
	Filename  float64 `json:"filename"`

	Overall float64 `json:"overall"`

	// RequiredKeywordMissing is set when the hard gate forced Overall to
	// zero. Sub-scores are still reported for diagnostics.
	RequiredKeywordMissing bool `json:"required_keyword_missing,omitempty"`
}

// Weighted recomputes the overall score from the sub-scores and the given
// weights, without the required-keyword gate.
func (s ConfidenceScore) Weighted(c MatchingCriteria) float64 {
	return c.FormatWeight*s.Format +
		c.KeywordWeight*s.Keyword +
		c.PatternWeight*s.Pattern +
		c.StructureWeight*s.Structure +
		c.MetadataWeight*s.Metadata +
		c.FilenameWeight*s.Filename
}

// TemplateMatchResult reports how well one template matched one document.
type TemplateMatchResult struct {
	TemplateID      string `json:"template_id"`
	TemplateName    string `json:"template_name"`
	TemplateVersion int    `json:"template_version"`

	Score ConfidenceScore `json:"score"`

	// AutoApply is true when the overall score meets the criteria's
	// auto-application threshold.
	AutoApply bool `json:"auto_apply"`

	// Reasons explain which dimensions contributed to the match; Warnings
	// note diagnostics such as a tripped required-keyword gate. Both are
	// meant to be shown to the user, not logged and dropped.
	Reasons  []string `json:"reasons,omitempty"`
	Warnings []string `json:"warnings,omitempty"`

	Duration time.Duration `json:"duration"`
}
