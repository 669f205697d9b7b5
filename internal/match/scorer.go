// Package match scores document fingerprints against template fingerprints
// and ranks candidate templates for an incoming document.
package match

import (
	"fmt"
	"strings"

	"github.com/tivault/docmatch/internal/model"
)

// Scorer computes multi-factor confidence scores. It is a pure value type:
// scoring the same fingerprints with the same criteria twice returns
// bit-identical results, and a Scorer is safe to share across goroutines.
//
// The scorer is the deterministic weighted path only. Adaptive weight
// learning is a future strategy that would replace the Scorer behind the
// Matcher; it is intentionally not implemented here.
type Scorer struct {
	settings model.MatchingSettings
}

// NewScorer creates a scorer with the given settings.
func NewScorer(settings model.MatchingSettings) *Scorer {
	return &Scorer{settings: settings}
}

// Score computes the six similarity sub-scores and the weighted overall
// score between a document and a template fingerprint.
//
// Edge cases degrade to well-defined values, never to division by zero: an
// empty expectation list is trivially satisfied (sub-score 1.0). The
// asymmetry on the keyword score is deliberate — templates with no keyword
// expectations must not be starved against keyword-rich ones.
func (s *Scorer) Score(doc *model.DocumentFingerprint, tpl *model.TemplateFingerprint, criteria model.MatchingCriteria) model.ConfidenceScore {
	score := model.ConfidenceScore{
		Format:    s.formatScore(doc, tpl),
		Keyword:   s.keywordScore(doc, tpl),
		Pattern:   s.patternScore(doc, tpl),
		Structure: s.structureScore(doc, tpl),
		Metadata:  s.metadataScore(doc, tpl),
		Filename:  s.filenameScore(doc, tpl),
	}
	score.Overall = score.Weighted(criteria)

	// Required-keyword hard gate: the overall score is forced to zero while
	// sub-scores stay reported for diagnostics.
	if missing := s.missingRequiredKeyword(doc, tpl); missing {
		score.Overall = 0
		score.RequiredKeywordMissing = true
	}
	return score
}

// formatScore is binary: the document format either is supported or not.
func (s *Scorer) formatScore(doc *model.DocumentFingerprint, tpl *model.TemplateFingerprint) float64 {
	format := strings.ToLower(doc.Format)
	for _, supported := range tpl.SupportedFormats {
		if strings.ToLower(supported) == format {
			return 1.0
		}
	}
	return 0.0
}

func (s *Scorer) missingRequiredKeyword(doc *model.DocumentFingerprint, tpl *model.TemplateFingerprint) bool {
	for _, required := range tpl.RequiredKeywords {
		if !containsKeyword(doc.ContentKeywords, required) {
			return true
		}
	}
	return false
}

// keywordScore is the overlap between the template's expected keywords and
// the document's content keywords, over the expected set. An empty
// expectation is trivially satisfied.
func (s *Scorer) keywordScore(doc *model.DocumentFingerprint, tpl *model.TemplateFingerprint) float64 {
	if len(tpl.ExpectedKeywords) == 0 {
		return 1.0
	}
	hits := 0
	for _, expected := range tpl.ExpectedKeywords {
		if containsKeyword(doc.ContentKeywords, expected) {
			hits++
		}
	}
	return float64(hits) / float64(len(tpl.ExpectedKeywords))
}

// patternScore is the fraction of expected pattern tags present in the
// document's detected patterns.
func (s *Scorer) patternScore(doc *model.DocumentFingerprint, tpl *model.TemplateFingerprint) float64 {
	if len(tpl.ExpectedPatterns) == 0 {
		return 1.0
	}
	hits := 0
	for _, expected := range tpl.ExpectedPatterns {
		for _, got := range doc.TextPatterns {
			if strings.EqualFold(expected, got) || strings.Contains(strings.ToLower(got), strings.ToLower(expected)) {
				hits++
				break
			}
		}
	}
	return float64(hits) / float64(len(tpl.ExpectedPatterns))
}

// structureScore averages agreement over the dimensions the template
// declares; undeclared dimensions do not participate. Page count agreement
// uses a tolerance band.
func (s *Scorer) structureScore(doc *model.DocumentFingerprint, tpl *model.TemplateFingerprint) float64 {
	expected := tpl.ExpectedStructure
	if expected == nil {
		return 1.0
	}

	dims := 0
	agreed := 0

	if expected.PageCount > 0 {
		dims++
		tolerance := expected.PageCountTolerance
		if tolerance == 0 {
			tolerance = 1
		}
		delta := doc.Structure.PageCount - expected.PageCount
		if delta < 0 {
			delta = -delta
		}
		if delta <= tolerance {
			agreed++
		}
	}
	if expected.HasTables != nil {
		dims++
		if *expected.HasTables == doc.Structure.HasTables {
			agreed++
		}
	}
	if expected.HasImages != nil {
		dims++
		if *expected.HasImages == doc.Structure.HasImages {
			agreed++
		}
	}
	if expected.IsScanned != nil {
		dims++
		if *expected.IsScanned == doc.Structure.IsScanned {
			agreed++
		}
	}
	if expected.Layout != "" {
		dims++
		if strings.EqualFold(expected.Layout, string(doc.Structure.Layout)) {
			agreed++
		}
	}

	if dims == 0 {
		return 1.0
	}
	return float64(agreed) / float64(dims)
}

// metadataScore is the fraction of template-declared metadata keys whose
// value matches the document's metadata, case-insensitively.
func (s *Scorer) metadataScore(doc *model.DocumentFingerprint, tpl *model.TemplateFingerprint) float64 {
	if len(tpl.ExpectedMetadata) == 0 {
		return 1.0
	}
	hits := 0
	for key, expected := range tpl.ExpectedMetadata {
		for k, v := range doc.Metadata {
			if strings.EqualFold(k, key) && strings.EqualFold(v, expected) {
				hits++
				break
			}
		}
	}
	return float64(hits) / float64(len(tpl.ExpectedMetadata))
}

// filenameScore measures containment of template name tokens in the
// document's filename stem. With fuzzy matching enabled, near-miss tokens
// count when their normalized similarity clears the threshold.
func (s *Scorer) filenameScore(doc *model.DocumentFingerprint, tpl *model.TemplateFingerprint) float64 {
	stem := strings.ToLower(doc.FileName)
	if stem == "" {
		return 0.0
	}
	tokens := nameTokens(tpl.TemplateName)
	if len(tokens) == 0 {
		return 0.0
	}

	stemTokens := nameTokens(stem)
	hits := 0
	for _, token := range tokens {
		if strings.Contains(stem, token) {
			hits++
			continue
		}
		if s.settings.FuzzyMatching && fuzzyContains(stemTokens, token, s.settings.FuzzyThreshold) {
			hits++
		}
	}
	return float64(hits) / float64(len(tokens))
}

// Explain produces human-readable reasons for the main contributing
// dimensions of a score, for the per-template diagnostics callers must show.
func Explain(score model.ConfidenceScore, tpl *model.TemplateFingerprint) []string {
	var reasons []string
	if score.Format == 1.0 {
		reasons = append(reasons, "document format is supported")
	}
	if len(tpl.ExpectedKeywords) > 0 && score.Keyword > 0 {
		reasons = append(reasons, fmt.Sprintf("keyword overlap %.0f%% of %d expected", score.Keyword*100, len(tpl.ExpectedKeywords)))
	}
	if len(tpl.ExpectedPatterns) > 0 && score.Pattern > 0 {
		reasons = append(reasons, fmt.Sprintf("pattern agreement %.0f%%", score.Pattern*100))
	}
	if tpl.ExpectedStructure != nil {
		reasons = append(reasons, fmt.Sprintf("structure agreement %.0f%%", score.Structure*100))
	}
	if score.Filename > 0 {
		reasons = append(reasons, "template name appears in the file name")
	}
	if score.RequiredKeywordMissing {
		reasons = append(reasons, "required keyword missing; overall score forced to zero")
	}
	return reasons
}

func containsKeyword(keywords []string, kw string) bool {
	kw = strings.ToLower(kw)
	for _, k := range keywords {
		if strings.ToLower(k) == kw {
			return true
		}
	}
	return false
}

// nameTokens splits a template name or filename stem into lowercase tokens.
func nameTokens(name string) []string {
	return strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return r == ' ' || r == '-' || r == '_' || r == '.' || r == '/'
	})
}
