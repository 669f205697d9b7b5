package match

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tivault/docmatch/internal/model"
)

func testCriteria() model.MatchingCriteria {
	return model.MatchingCriteria{
		FormatWeight:             0.2,
		KeywordWeight:            0.3,
		PatternWeight:            0.2,
		StructureWeight:          0.15,
		MetadataWeight:           0.1,
		FilenameWeight:           0.05,
		AutoApplicationThreshold: 0.75,
	}
}

func TestScoreEndToEndScenario(t *testing.T) {
	// Invoice scenario: keyword 2/2 and format supported; every other
	// template expectation is empty.
	doc := &model.DocumentFingerprint{
		Format:          "pdf",
		ContentKeywords: []string{"invoice", "total", "due"},
	}
	tpl := &model.TemplateFingerprint{
		TemplateID:       "t1",
		SupportedFormats: []string{"pdf"},
		ExpectedKeywords: []string{"invoice", "total"},
	}

	criteria := testCriteria()
	// Zero out the weights of dimensions with empty expectations so the
	// remaining contributions are exactly format and keyword.
	criteria.PatternWeight = 0
	criteria.StructureWeight = 0
	criteria.MetadataWeight = 0
	criteria.FilenameWeight = 0

	score := NewScorer(model.DefaultMatchingSettings()).Score(doc, tpl, criteria)

	assert.Equal(t, 1.0, score.Format)
	assert.Equal(t, 1.0, score.Keyword)
	assert.InDelta(t, 0.5, score.Overall, 1e-9)
}

func TestScoreDeterminism(t *testing.T) {
	doc := &model.DocumentFingerprint{
		Format:          "pdf",
		FileName:        "incident-report-march",
		ContentKeywords: []string{"incident", "malware", "host"},
		TextPatterns:    []string{"ipv4", "date"},
		Metadata:        map[string]string{"Author": "SOC"},
		Structure:       model.DocumentStructure{PageCount: 3, HasTables: true, Layout: model.LayoutText},
	}
	yes := true
	tpl := &model.TemplateFingerprint{
		TemplateID:       "t1",
		TemplateName:     "incident report",
		SupportedFormats: []string{"pdf"},
		ExpectedKeywords: []string{"incident", "phishing"},
		ExpectedPatterns: []string{"ipv4"},
		ExpectedMetadata: map[string]string{"author": "soc"},
		ExpectedStructure: &model.StructureExpectation{
			PageCount: 3,
			HasTables: &yes,
			Layout:    "text",
		},
	}

	s := NewScorer(model.DefaultMatchingSettings())
	a := s.Score(doc, tpl, testCriteria())
	b := s.Score(doc, tpl, testCriteria())
	assert.Equal(t, a, b, "identical inputs must produce bit-identical scores")
	assert.Equal(t, a.Overall, a.Weighted(testCriteria()))
}

func TestRequiredKeywordGate(t *testing.T) {
	doc := &model.DocumentFingerprint{
		Format:          "pdf",
		ContentKeywords: []string{"invoice", "total"},
	}
	tpl := &model.TemplateFingerprint{
		SupportedFormats: []string{"pdf"},
		ExpectedKeywords: []string{"invoice"},
		RequiredKeywords: []string{"confidential"},
	}

	score := NewScorer(model.DefaultMatchingSettings()).Score(doc, tpl, testCriteria())

	assert.Equal(t, 0.0, score.Overall, "missing required keyword forces overall to zero")
	assert.True(t, score.RequiredKeywordMissing)
	assert.Equal(t, 1.0, score.Format, "sub-scores still reported for diagnostics")
	assert.Equal(t, 1.0, score.Keyword)
}

func TestEmptyExpectationAsymmetry(t *testing.T) {
	s := NewScorer(model.DefaultMatchingSettings())
	tpl := &model.TemplateFingerprint{SupportedFormats: []string{"pdf"}}

	for _, doc := range []*model.DocumentFingerprint{
		{Format: "pdf"},
		{Format: "pdf", ContentKeywords: []string{"anything", "at", "all"}},
	} {
		score := s.Score(doc, tpl, testCriteria())
		assert.Equal(t, 1.0, score.Keyword, "empty expectation is trivially satisfied")
	}
}

func TestFormatScoreCaseInsensitive(t *testing.T) {
	s := NewScorer(model.DefaultMatchingSettings())
	doc := &model.DocumentFingerprint{Format: "PDF"}
	tpl := &model.TemplateFingerprint{SupportedFormats: []string{"pdf"}}
	assert.Equal(t, 1.0, s.Score(doc, tpl, testCriteria()).Format)

	tpl = &model.TemplateFingerprint{SupportedFormats: []string{"docx"}}
	assert.Equal(t, 0.0, s.Score(doc, tpl, testCriteria()).Format)
}

func TestStructureScorePartialAgreement(t *testing.T) {
	yes := true
	doc := &model.DocumentFingerprint{
		Structure: model.DocumentStructure{PageCount: 5, HasTables: true, IsScanned: false, Layout: model.LayoutMixed},
	}
	tpl := &model.TemplateFingerprint{
		ExpectedStructure: &model.StructureExpectation{
			PageCount:          4, // within default tolerance of 1
			HasTables:          &yes,
			IsScanned:          &yes, // disagrees
			Layout:             "mixed",
			PageCountTolerance: 0,
		},
	}

	score := NewScorer(model.DefaultMatchingSettings()).Score(doc, tpl, testCriteria())
	assert.InDelta(t, 3.0/4.0, score.Structure, 1e-9)
}

func TestMetadataScoreCaseInsensitive(t *testing.T) {
	doc := &model.DocumentFingerprint{
		Metadata: map[string]string{"Author": "SOC Team", "Producer": "scanner"},
	}
	tpl := &model.TemplateFingerprint{
		ExpectedMetadata: map[string]string{"author": "soc team", "subject": "weekly"},
	}

	score := NewScorer(model.DefaultMatchingSettings()).Score(doc, tpl, testCriteria())
	assert.InDelta(t, 0.5, score.Metadata, 1e-9)
}

func TestFilenameScoreFuzzy(t *testing.T) {
	doc := &model.DocumentFingerprint{FileName: "incidnet-report-2024"}
	tpl := &model.TemplateFingerprint{TemplateName: "incident report"}

	exact := NewScorer(model.MatchingSettings{FuzzyMatching: false})
	score := exact.Score(doc, tpl, testCriteria())
	assert.InDelta(t, 0.5, score.Filename, 1e-9, "only 'report' matches exactly")

	fuzzy := NewScorer(model.MatchingSettings{FuzzyMatching: true, FuzzyThreshold: 0.7})
	score = fuzzy.Score(doc, tpl, testCriteria())
	assert.InDelta(t, 1.0, score.Filename, 1e-9, "transposed token matches fuzzily")
}

func TestScoreZeroLengthDocument(t *testing.T) {
	doc := &model.DocumentFingerprint{Format: "pdf"}
	tpl := &model.TemplateFingerprint{
		SupportedFormats: []string{"pdf"},
		ExpectedKeywords: []string{"invoice"},
		ExpectedPatterns: []string{"date"},
	}

	score := NewScorer(model.DefaultMatchingSettings()).Score(doc, tpl, testCriteria())
	assert.Equal(t, 0.0, score.Keyword)
	assert.Equal(t, 0.0, score.Pattern)
	assert.False(t, score.Overall < 0 || score.Overall > 1)
}
