package fingerprint

import (
	"sort"
	"strings"

	"github.com/tivault/docmatch/internal/model"
)

// BuildTemplate constructs a template fingerprint from static template
// declarations. It should be rebuilt whenever the template's fields or
// patterns change; the template version participates in cache keys for that
// reason.
func BuildTemplate(tpl *model.ImportTemplate, fields []model.TemplateField) model.TemplateFingerprint {
	expected := map[string]struct{}{}
	required := map[string]struct{}{}
	patterns := map[string]struct{}{}

	ruleCount := 0
	for _, field := range fields {
		if tag := fieldPatternTag(field.Type); tag != "" {
			patterns[tag] = struct{}{}
		}
		ruleCount += len(field.Rules) + len(field.Zones) + len(field.Conditionals)

		for _, rule := range field.Rules {
			if rule.Kind != model.RuleKindKeyword {
				continue
			}
			kw := strings.ToLower(strings.TrimSpace(rule.Pattern))
			if kw == "" {
				continue
			}
			expected[kw] = struct{}{}
			if rule.Required {
				required[kw] = struct{}{}
			}
		}
	}

	formats := make([]string, 0, len(tpl.SupportedFormats))
	for _, f := range tpl.SupportedFormats {
		formats = append(formats, strings.ToLower(f))
	}

	var meta map[string]string
	if len(tpl.Metadata) > 0 {
		meta = make(map[string]string, len(tpl.Metadata))
		for k, v := range tpl.Metadata {
			meta[k] = v
		}
	}

	return model.TemplateFingerprint{
		TemplateID:        tpl.ID,
		TemplateName:      tpl.Name,
		TemplateVersion:   tpl.Version,
		SupportedFormats:  formats,
		ExpectedKeywords:  sortedKeys(expected),
		RequiredKeywords:  sortedKeys(required),
		ExpectedPatterns:  sortedKeys(patterns),
		ExpectedStructure: tpl.Structure,
		ExpectedMetadata:  meta,
		ComplexityScore:   float64(len(fields) * ruleCount),
	}
}

// fieldPatternTag maps a field type to the generic pattern tag a matching
// document is expected to exhibit.
func fieldPatternTag(ft model.FieldType) string {
	switch ft {
	case model.FieldTypeDate:
		return PatternDate
	case model.FieldTypeEmail:
		return PatternEmail
	case model.FieldTypeTicket:
		return PatternTicket
	default:
		return ""
	}
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
