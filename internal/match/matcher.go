package match

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/tivault/docmatch/internal/fingerprint"
	"github.com/tivault/docmatch/internal/model"
)

// Matcher ranks candidate templates for a document. It owns the only shared
// mutable state in the matching path — the fingerprint and score caches —
// both safe for concurrent use, so one Matcher serves all goroutines.
type Matcher struct {
	scorer   *Scorer
	settings model.MatchingSettings

	scores       *scoreCache
	fingerprints *fingerprintCache

	logger *zap.Logger
}

// NewMatcher creates a matcher with the given settings. A nil logger is
// replaced with a no-op logger.
func NewMatcher(settings model.MatchingSettings, logger *zap.Logger) *Matcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl := settings.CacheTTL
	if ttl <= 0 {
		ttl = model.DefaultMatchingSettings().CacheTTL
	}
	return &Matcher{
		scorer:       NewScorer(settings),
		settings:     settings,
		scores:       newScoreCache(ttl),
		fingerprints: newFingerprintCache(ttl),
		logger:       logger,
	}
}

// FingerprintDocument builds (or retrieves from cache) the fingerprint for
// already-extracted document content.
func (m *Matcher) FingerprintDocument(text, fileName, format string, metadata map[string]string, structure model.DocumentStructure) model.DocumentFingerprint {
	hash := fingerprint.HashContent(text)
	if fp, ok := m.fingerprints.get(hash); ok {
		// The cache is keyed by content alone; the filename belongs to the
		// caller's document, not to whichever same-content document filled
		// the entry first.
		fp.FileName = fingerprint.FileNameStem(fileName)
		return fp
	}
	fp := fingerprint.BuildDocument(text, fileName, format, metadata, structure)
	m.fingerprints.put(fp)
	return fp
}

// Score computes (or retrieves from cache) the confidence score between a
// document and a template fingerprint.
func (m *Matcher) Score(doc *model.DocumentFingerprint, tpl *model.TemplateFingerprint, criteria model.MatchingCriteria) model.ConfidenceScore {
	key := scoreKey{
		contentHash:     doc.ContentHash,
		templateID:      tpl.TemplateID,
		templateVersion: tpl.TemplateVersion,
	}
	if score, ok := m.scores.get(key); ok {
		return score
	}
	score := m.scorer.Score(doc, tpl, criteria)
	m.scores.put(key, score)
	return score
}

// AllMatches scores every candidate template, filters below the configured
// minimum confidence, and sorts descending by overall score. Ties prefer the
// higher complexity score — more specific templates beat generic ones — and
// then the lexicographically smaller template name, so ranking is
// deterministic.
func (m *Matcher) AllMatches(doc *model.DocumentFingerprint, candidates []model.TemplateFingerprint, criteria model.MatchingCriteria) []model.TemplateMatchResult {
	results := make([]model.TemplateMatchResult, 0, len(candidates))

	for i := range candidates {
		tpl := &candidates[i]
		start := time.Now()
		score := m.Score(doc, tpl, criteria)

		if score.Overall < m.settings.MinimumConfidence {
			continue
		}

		result := model.TemplateMatchResult{
			TemplateID:      tpl.TemplateID,
			TemplateName:    tpl.TemplateName,
			TemplateVersion: tpl.TemplateVersion,
			Score:           score,
			AutoApply:       score.Overall >= criteria.AutoApplicationThreshold,
			Reasons:         Explain(score, tpl),
			Duration:        time.Since(start),
		}
		if score.RequiredKeywordMissing {
			result.Warnings = append(result.Warnings, "required keyword missing")
		}
		results = append(results, result)
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score.Overall != results[j].Score.Overall {
			return results[i].Score.Overall > results[j].Score.Overall
		}
		ci := complexityOf(candidates, results[i].TemplateID)
		cj := complexityOf(candidates, results[j].TemplateID)
		if ci != cj {
			return ci > cj
		}
		return results[i].TemplateName < results[j].TemplateName
	})

	m.logger.Debug("ranked template candidates",
		zap.String("content_hash", doc.ContentHash),
		zap.Int("candidates", len(candidates)),
		zap.Int("above_threshold", len(results)),
	)
	return results
}

// BestMatch returns the top-ranked candidate, or nil when nothing clears the
// minimum confidence.
func (m *Matcher) BestMatch(doc *model.DocumentFingerprint, candidates []model.TemplateFingerprint, criteria model.MatchingCriteria) *model.TemplateMatchResult {
	ranked := m.AllMatches(doc, candidates, criteria)
	if len(ranked) == 0 {
		return nil
	}
	return &ranked[0]
}

func complexityOf(candidates []model.TemplateFingerprint, templateID string) float64 {
	for i := range candidates {
		if candidates[i].TemplateID == templateID {
			return candidates[i].ComplexityScore
		}
	}
	return 0
}
