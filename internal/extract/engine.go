// Package extract applies a resolved template's field rules to document
// content, producing per-field values with confidence and diagnostics.
package extract

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tivault/docmatch/internal/content"
	"github.com/tivault/docmatch/internal/model"
)

// keywordWindow is the fixed windowing policy for keyword-search rules: the
// value is the text following the keyword, up to the first line break or
// this many characters, whichever comes first.
const keywordWindow = 80

// minHitConfidence floors the ambiguity decay for regex/keyword matches.
const minHitConfidence = 0.25

// Engine extracts field values from document content. It never mutates the
// template or the document; a single Engine is safe for concurrent use.
type Engine struct {
	logger *zap.Logger
}

// NewEngine creates an extraction engine. A nil logger is replaced with a
// no-op logger.
func NewEngine(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{logger: logger}
}

// compiledField holds a field's pre-compiled patterns. Compiling everything
// up front turns malformed template patterns into one fatal, named error
// instead of a scatter of silent per-rule misses.
type compiledField struct {
	field      model.TemplateField
	rules      []compiledRule
	zoneFilter *regexp.Regexp
	validation *regexp.Regexp
	condRes    []*regexp.Regexp
}

type compiledRule struct {
	rule model.ExtractionRule
	re   *regexp.Regexp // nil for keyword rules
}

// Extract applies the effective template to the document and returns a
// best-effort result. Individual field misses surface in the result's
// failure manifest; only structural problems (malformed template patterns,
// unreadable document content, cancellation) return an error.
func (e *Engine) Extract(ctx context.Context, eff *model.EffectiveTemplate, doc content.Provider) (*model.ExtractionResult, error) {
	start := time.Now()

	compiled, err := compileFields(eff.Fields)
	if err != nil {
		return nil, err
	}

	fullText, err := doc.FullText()
	if err != nil {
		return nil, fmt.Errorf("reading document text: %w", err)
	}
	stats, err := doc.StructuralStats()
	if err != nil {
		return nil, fmt.Errorf("reading document structure: %w", err)
	}

	result := &model.ExtractionResult{
		TemplateID:   eff.Template.ID,
		TemplateName: eff.Template.Name,
		Fields:       make(map[string]model.FieldValue, len(eff.Fields)),
	}

	byName := make(map[string]*compiledField, len(compiled))
	for i := range compiled {
		byName[compiled[i].field.Name] = &compiled[i]
	}

	for i := range compiled {
		// Cancellation checkpoint: stop cleanly between fields so partial
		// results stay discardable.
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		cf := &compiled[i]
		value, failure := e.extractField(cf, byName, doc, fullText, stats, result)
		if value != nil {
			result.Fields[cf.field.Name] = *value
			continue
		}
		if cf.field.DefaultValue != "" {
			result.Fields[cf.field.Name] = model.FieldValue{
				Field:      cf.field.Name,
				Value:      cf.field.DefaultValue,
				Confidence: 0.5,
				Rule:       "default value",
			}
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("field %q: no rule matched, default value applied", cf.field.Name))
			continue
		}
		if failure != nil {
			result.Failures = append(result.Failures, *failure)
			if cf.field.Required {
				result.Warnings = append(result.Warnings,
					fmt.Sprintf("required field %q unresolved: %s", cf.field.Name, failure.Reason))
			}
		}
	}

	result.OverallConfidence = overallConfidence(eff.Fields, result.Fields)
	result.Duration = time.Since(start)

	e.logger.Debug("extraction finished",
		zap.String("template", eff.Template.Name),
		zap.Int("fields_extracted", len(result.Fields)),
		zap.Int("fields_failed", len(result.Failures)),
	)
	return result, nil
}

// extractField runs the conditional gate, then the field's own rules and
// zones, returning the extracted value or a failure record.
func (e *Engine) extractField(cf *compiledField, byName map[string]*compiledField, doc content.Provider, fullText string, stats model.DocumentStructure, result *model.ExtractionResult) (*model.FieldValue, *model.FieldFailure) {
	// Conditional rules gate normal evaluation.
	for i, cond := range cf.field.Conditionals {
		if !e.conditionHolds(cond, cf.condRes[i], fullText) {
			continue
		}
		switch cond.Action {
		case model.ActionSetDefault:
			return &model.FieldValue{
				Field:      cf.field.Name,
				Value:      cond.DefaultValue,
				Confidence: 1.0,
				Rule:       "conditional default",
			}, nil
		case model.ActionExtractField:
			target, ok := byName[cond.TargetField]
			if !ok {
				result.Warnings = append(result.Warnings,
					fmt.Sprintf("field %q: conditional targets unknown field %q", cf.field.Name, cond.TargetField))
				continue
			}
			// Redirect uses the target's rules but never its conditionals,
			// so conditional chains cannot loop.
			if value, _ := e.evalRulesAndZones(target, doc, fullText, stats, result); value != nil {
				redirected := *value
				redirected.Field = cf.field.Name
				redirected.Rule = fmt.Sprintf("conditional redirect to %q", cond.TargetField)
				return &redirected, nil
			}
		}
	}

	return e.evalRulesAndZones(cf, doc, fullText, stats, result)
}

// evalRulesAndZones attempts the field's rules in priority order, then its
// zones in declaration order. First success wins unless the field is
// multi-value.
func (e *Engine) evalRulesAndZones(cf *compiledField, doc content.Provider, fullText string, stats model.DocumentStructure, result *model.ExtractionResult) (*model.FieldValue, *model.FieldFailure) {
	var (
		values              []model.FieldValue
		sawValidationReject bool
		sawKeywordMiss      bool
		zonesOutOfRange     int
	)

	pages := e.pagesFor(cf.field, doc, fullText, stats, result)

	for _, cr := range cf.rules {
		hits, reject := e.evalRule(cf, cr, pages)
		if reject {
			sawValidationReject = true
		}
		if len(hits) == 0 {
			if cr.rule.Kind == model.RuleKindKeyword {
				sawKeywordMiss = true
			}
			continue
		}
		if cf.field.MultiValue {
			values = append(values, hits...)
			continue
		}
		values = append(values, hits[0])
		break
	}

	if len(values) == 0 || cf.field.MultiValue {
		for _, zone := range cf.field.Zones {
			if zone.Page < 1 || zone.Page > stats.PageCount {
				zonesOutOfRange++
				result.Warnings = append(result.Warnings,
					fmt.Sprintf("field %q: zone references page %d but document has %d pages", cf.field.Name, zone.Page, stats.PageCount))
				continue
			}
			value := e.evalZone(cf, zone, doc, result)
			if value == nil {
				continue
			}
			values = append(values, *value)
			if !cf.field.MultiValue {
				break
			}
		}
	}

	if len(values) > 0 {
		merged := values[0]
		if cf.field.MultiValue {
			for _, v := range values {
				merged.Values = append(merged.Values, v.Value)
			}
		}
		return &merged, nil
	}

	reason := model.FailureMissingPattern
	switch {
	case sawValidationReject:
		reason = model.FailureValidationRejected
	case len(cf.field.Zones) > 0 && zonesOutOfRange == len(cf.field.Zones):
		// Every declared zone missed the document entirely; that is the
		// actionable diagnosis even when rules were also declared.
		reason = model.FailureZoneOutOfRange
	case sawKeywordMiss && allKeywordRules(cf.rules):
		reason = model.FailureKeywordNotFound
	}
	return nil, &model.FieldFailure{
		Field:    cf.field.Name,
		Reason:   reason,
		Required: cf.field.Required,
	}
}

// pageText pairs a page number with its text; page zero means the
// unrestricted full text.
type pageText struct {
	page int
	text string
}

// pagesFor returns the text slices a field's rules run against, honoring
// the field's declared page range.
func (e *Engine) pagesFor(field model.TemplateField, doc content.Provider, fullText string, stats model.DocumentStructure, result *model.ExtractionResult) []pageText {
	if field.PageStart == 0 && field.PageEnd == 0 {
		return []pageText{{page: 0, text: fullText}}
	}

	start := field.PageStart
	if start < 1 {
		start = 1
	}
	end := field.PageEnd
	if end == 0 || end > stats.PageCount {
		end = stats.PageCount
	}

	var pages []pageText
	for p := start; p <= end; p++ {
		text, err := doc.PageText(p)
		if err != nil {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("field %q: cannot read page %d: %v", field.Name, p, err))
			continue
		}
		pages = append(pages, pageText{page: p, text: text})
	}
	if len(pages) == 0 {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("field %q: page range %d-%d is outside the document", field.Name, field.PageStart, field.PageEnd))
	}
	return pages
}

// evalRule attempts one rule over the candidate pages, returning the values
// from the first page where it succeeds. Single-value callers take the
// first hit; multi-value callers take them all. The second return is true
// when a match was discarded by the validation pattern.
func (e *Engine) evalRule(cf *compiledField, cr compiledRule, pages []pageText) ([]model.FieldValue, bool) {
	rejected := false
	for _, pt := range pages {
		var raws []string
		switch cr.rule.Kind {
		case model.RuleKindRegex:
			raws = evalRegex(cr.re, cr.rule.CaptureGroup, pt.text)
		case model.RuleKindKeyword:
			raws = evalKeyword(cr.rule.Pattern, pt.text)
		}
		if len(raws) == 0 {
			continue
		}

		total := len(raws)
		var kept []string
		for _, raw := range raws {
			if cf.validation != nil && !cf.validation.MatchString(raw) {
				rejected = true
				continue
			}
			kept = append(kept, raw)
		}
		if len(kept) == 0 {
			continue
		}

		values := make([]model.FieldValue, 0, len(kept))
		for _, raw := range kept {
			values = append(values, model.FieldValue{
				Field:      cf.field.Name,
				Value:      raw,
				Confidence: hitConfidence(total),
				SourcePage: pt.page,
				Rule:       fmt.Sprintf("%s priority %d", cr.rule.Kind, cr.rule.Priority),
			})
		}
		return values, rejected
	}
	return nil, rejected
}

// evalZone reads a zone's text verbatim, applying the field's zone
// post-filter when one is declared. Zone extraction is deterministic, so
// its confidence is always 1.0.
func (e *Engine) evalZone(cf *compiledField, zone model.ExtractionZone, doc content.Provider, result *model.ExtractionResult) *model.FieldValue {
	text, err := doc.ZoneText(zone.Page, zone.Rect)
	if err != nil {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("field %q: zone read failed on page %d: %v", cf.field.Name, zone.Page, err))
		return nil
	}
	value := strings.TrimSpace(text)
	if value == "" {
		return nil
	}
	if cf.zoneFilter != nil {
		groups := cf.zoneFilter.FindStringSubmatch(value)
		if groups == nil {
			return nil
		}
		value = strings.TrimSpace(groups[0])
		if len(groups) > 1 && groups[1] != "" {
			value = strings.TrimSpace(groups[1])
		}
	}
	if cf.validation != nil && !cf.validation.MatchString(value) {
		return nil
	}
	return &model.FieldValue{
		Field:      cf.field.Name,
		Value:      value,
		Confidence: 1.0,
		SourcePage: zone.Page,
		Rule:       "zone",
	}
}

func (e *Engine) conditionHolds(cond model.ConditionalExtractionRule, re *regexp.Regexp, fullText string) bool {
	switch cond.Condition {
	case model.ConditionContains:
		return strings.Contains(strings.ToLower(fullText), strings.ToLower(cond.ConditionPattern))
	case model.ConditionRegex:
		return re != nil && re.MatchString(fullText)
	default:
		return false
	}
}

// evalRegex returns the designated capture group of every match, in
// document order.
func evalRegex(re *regexp.Regexp, group int, text string) []string {
	matches := re.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	raws := make([]string, 0, len(matches))
	for _, m := range matches {
		idx := group
		if idx <= 0 || idx >= len(m) {
			idx = 0
		}
		if v := strings.TrimSpace(m[idx]); v != "" {
			raws = append(raws, v)
		}
	}
	return raws
}

// evalKeyword locates each case-insensitive occurrence of the keyword and
// extracts the text following it: separators are skipped, then everything
// up to the first line break or the fixed character window is taken.
func evalKeyword(keyword, text string) []string {
	lowerText := strings.ToLower(text)
	lowerKw := strings.ToLower(keyword)
	if lowerKw == "" {
		return nil
	}

	var raws []string
	offset := 0
	for {
		idx := strings.Index(lowerText[offset:], lowerKw)
		if idx < 0 {
			break
		}
		pos := offset + idx + len(lowerKw)
		offset = pos

		rest := text[pos:]
		rest = strings.TrimLeft(rest, " \t:=-–—")
		end := len(rest)
		if nl := strings.IndexAny(rest, "\r\n"); nl >= 0 && nl < end {
			end = nl
		}
		if end > keywordWindow {
			end = keywordWindow
		}
		if v := strings.TrimSpace(rest[:end]); v != "" {
			raws = append(raws, v)
		}
	}
	return raws
}

// hitConfidence is 1.0 for a unique match, decayed to 1/n for ambiguous
// matches with a floor.
func hitConfidence(hits int) float64 {
	if hits <= 1 {
		return 1.0
	}
	c := 1.0 / float64(hits)
	if c < minHitConfidence {
		c = minHitConfidence
	}
	return c
}

func allKeywordRules(rules []compiledRule) bool {
	if len(rules) == 0 {
		return false
	}
	for _, cr := range rules {
		if cr.rule.Kind != model.RuleKindKeyword {
			return false
		}
	}
	return true
}

// overallConfidence is the mean of per-field confidences for required
// fields; a missing required field contributes zero. Optional fields never
// penalize the score. With no required fields at all, the mean over
// extracted fields is used.
func overallConfidence(fields []model.TemplateField, extracted map[string]model.FieldValue) float64 {
	requiredTotal := 0
	sum := 0.0
	for _, f := range fields {
		if !f.Required {
			continue
		}
		requiredTotal++
		if v, ok := extracted[f.Name]; ok {
			sum += v.Confidence
		}
	}
	if requiredTotal > 0 {
		return sum / float64(requiredTotal)
	}
	if len(extracted) == 0 {
		return 0.0
	}
	for _, v := range extracted {
		sum += v.Confidence
	}
	return sum / float64(len(extracted))
}

// compileFields pre-compiles every pattern a template declares. The first
// malformed pattern aborts with an InvalidPatternError naming the field.
func compileFields(fields []model.TemplateField) ([]compiledField, error) {
	compiled := make([]compiledField, 0, len(fields))
	for _, field := range fields {
		cf := compiledField{field: field}

		// Rules sorted by priority; ties keep declaration order.
		ordered := make([]model.ExtractionRule, len(field.Rules))
		copy(ordered, field.Rules)
		stableSortByPriority(ordered)

		for _, rule := range ordered {
			if rule.Kind == model.RuleKindRegex {
				re, err := regexp.Compile("(?im)" + rule.Pattern)
				if err != nil {
					return nil, &InvalidPatternError{Field: field.Name, Pattern: rule.Pattern, Err: err}
				}
				if rule.ZoneFilter {
					cf.zoneFilter = re
					continue
				}
				cf.rules = append(cf.rules, compiledRule{rule: rule, re: re})
				continue
			}
			cf.rules = append(cf.rules, compiledRule{rule: rule})
		}

		if field.ValidationPattern != "" {
			re, err := regexp.Compile("(?i)" + field.ValidationPattern)
			if err != nil {
				return nil, &InvalidPatternError{Field: field.Name, Pattern: field.ValidationPattern, Err: err}
			}
			cf.validation = re
		}

		cf.condRes = make([]*regexp.Regexp, len(field.Conditionals))
		for i, cond := range field.Conditionals {
			if cond.Condition != model.ConditionRegex {
				continue
			}
			re, err := regexp.Compile("(?is)" + cond.ConditionPattern)
			if err != nil {
				return nil, &InvalidPatternError{Field: field.Name, Pattern: cond.ConditionPattern, Err: err}
			}
			cf.condRes[i] = re
		}

		compiled = append(compiled, cf)
	}
	return compiled, nil
}

func stableSortByPriority(rules []model.ExtractionRule) {
	// Insertion sort keeps the declaration order of equal priorities.
	for i := 1; i < len(rules); i++ {
		for j := i; j > 0 && rules[j].Priority < rules[j-1].Priority; j-- {
			rules[j], rules[j-1] = rules[j-1], rules[j]
		}
	}
}
