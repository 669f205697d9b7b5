package model

// LayoutType classifies the dominant layout of a document.
type LayoutType string

const (
	LayoutText    LayoutType = "text"
	LayoutMixed   LayoutType = "mixed"
	LayoutScanned LayoutType = "scanned"
	LayoutEmpty   LayoutType = "empty"
)

// DocumentStructure is a per-document structural summary supplied by the
// content provider. The core never derives it from raw bytes; format
// decoding happens outside.
type DocumentStructure struct {
	PageCount int        `json:"page_count"`
	WordCount int        `json:"word_count"`
	HasTables bool       `json:"has_tables"`
	HasImages bool       `json:"has_images"`
	IsScanned bool       `json:"is_scanned"`
	Layout    LayoutType `json:"layout"`
}

// DocumentFingerprint is a compact, comparable summary of a document used
// for template matching. Immutable once built; rebuilt whenever the
// underlying content changes (the content hash changes with it).
type DocumentFingerprint struct {
	// Format is the document format, e.g. "pdf".
	Format string `json:"format"`

	// FileName is the document's file name stem, used only by the filename
	// sub-score. Declared separately from content.
	FileName string `json:"file_name,omitempty"`

	// Metadata holds document metadata key/values as reported upstream.
	Metadata map[string]string `json:"metadata,omitempty"`

	// ContentKeywords is the top-N keyword list by frequency, lowercased,
	// stop-words removed.
	ContentKeywords []string `json:"content_keywords"`

	// TextPatterns lists the generic pattern detectors that fired on the
	// content (e.g. "date", "email", "ticket"). Independent of any template.
	TextPatterns []string `json:"text_patterns"`

	Structure DocumentStructure `json:"structure"`

	// Language is a best-effort language tag ("en" or "und").
	Language string `json:"language"`

	// ContentHash is a stable SHA-256 hex digest over normalized text, used
	// as a cache key and for cheap equality checks.
	ContentHash string `json:"content_hash"`
}

// HasKeyword reports whether the fingerprint's keyword list contains kw.
func (d *DocumentFingerprint) HasKeyword(kw string) bool {
	for _, k := range d.ContentKeywords {
		if k == kw {
			return true
		}
	}
	return false
}

// TemplateFingerprint is the template-side counterpart of a document
// fingerprint, derived purely from static template declarations.
type TemplateFingerprint struct {
	TemplateID      string `json:"template_id"`
	TemplateName    string `json:"template_name"`
	TemplateVersion int    `json:"template_version"`

	SupportedFormats []string `json:"supported_formats"`

	// ExpectedKeywords come from every keyword-bearing rule; a document
	// matching more of them scores higher.
	ExpectedKeywords []string `json:"expected_keywords"`

	// RequiredKeywords come from rules flagged as required. A document
	// missing any of them cannot match the template (hard gate).
	RequiredKeywords []string `json:"required_keywords"`

	// ExpectedPatterns are generic pattern tags derived from field types.
	ExpectedPatterns []string `json:"expected_patterns"`

	// ExpectedStructure mirrors the template's declared structural summary.
	ExpectedStructure *StructureExpectation `json:"expected_structure,omitempty"`

	// ExpectedMetadata mirrors the template's declared metadata expectations.
	ExpectedMetadata map[string]string `json:"expected_metadata,omitempty"`

	// ComplexityScore grows with field and rule count. More specific
	// templates win ranking ties over generic ones.
	ComplexityScore float64 `json:"complexity_score"`
}
