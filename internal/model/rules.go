package model

// RuleKind discriminates extraction rule behavior. Closed enum; the
// extraction engine handles every kind exhaustively.
type RuleKind string

const (
	// RuleKindRegex applies the rule's pattern as a case-insensitive,
	// multiline regular expression against the document text.
	RuleKindRegex RuleKind = "regex_pattern"

	// RuleKindKeyword locates the pattern as a literal keyword and extracts
	// the windowed text following it.
	RuleKindKeyword RuleKind = "keyword_search"
)

// IsValid checks if the rule kind is known.
func (k RuleKind) IsValid() bool {
	return k == RuleKindRegex || k == RuleKindKeyword
}

// ExtractionRule is one attempt at locating a field value. Rules are tried in
// ascending Priority order; ties keep declaration order.
type ExtractionRule struct {
	Kind     RuleKind `json:"kind"`
	Pattern  string   `json:"pattern"`
	Priority int      `json:"priority"`

	// CaptureGroup selects a regex capture group; zero takes the whole match.
	CaptureGroup int `json:"capture_group,omitempty"`

	// Required marks a keyword rule whose keyword must appear in a document
	// for the template to match at all. Required keywords feed the template
	// fingerprint's RequiredKeywords list.
	Required bool `json:"required,omitempty"`

	// ZoneFilter marks a regex rule as a post-filter applied to zone text
	// instead of a standalone rule against page text.
	ZoneFilter bool `json:"zone_filter,omitempty"`
}

// Rect is an axis-aligned rectangle in document coordinate space.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Contains reports whether the point (x, y) lies inside the rectangle.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.X && x <= r.X+r.Width && y >= r.Y && y <= r.Y+r.Height
}

// Valid reports whether the rectangle has non-negative dimensions.
func (r Rect) Valid() bool {
	return r.Width >= 0 && r.Height >= 0
}

// ExtractionZone is a page-relative rectangular region used for
// coordinate-based extraction. A zone referencing a page beyond the
// document's page count is skipped with a warning, never an error.
type ExtractionZone struct {
	// Page is 1-based.
	Page int  `json:"page"`
	Rect Rect `json:"rect"`

	// OCRHint optionally tells the upstream OCR layer how to treat the
	// region (e.g. "numeric", "single_line"). The core passes it through.
	OCRHint string `json:"ocr_hint,omitempty"`
}

// ConditionKind discriminates conditional rule predicates.
type ConditionKind string

const (
	// ConditionContains holds when the document text contains the token,
	// case-insensitively.
	ConditionContains ConditionKind = "contains"

	// ConditionRegex holds when the document text matches the pattern.
	ConditionRegex ConditionKind = "regex"
)

// ActionKind discriminates conditional rule actions.
type ActionKind string

const (
	// ActionExtractField redirects extraction to another named field's rules.
	ActionExtractField ActionKind = "extract_field"

	// ActionSetDefault short-circuits the field with a fixed value.
	ActionSetDefault ActionKind = "set_default"
)

// ConditionalExtractionRule gates a field's normal rule evaluation. The
// condition is evaluated against document content only and never mutates
// document state; its effect is confined to the field it is declared on.
type ConditionalExtractionRule struct {
	Condition        ConditionKind `json:"condition"`
	ConditionPattern string        `json:"condition_pattern"`

	Action ActionKind `json:"action"`

	// TargetField names the field whose rules are run for ActionExtractField.
	TargetField string `json:"target_field,omitempty"`

	// DefaultValue is the value assigned for ActionSetDefault.
	DefaultValue string `json:"default_value,omitempty"`
}
