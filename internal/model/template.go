package model

import (
	"fmt"
	"strings"
)

// FieldType identifies what kind of value a template field extracts.
type FieldType string

const (
	FieldTypeUsername FieldType = "username"
	FieldTypeTicket   FieldType = "ticket_number"
	FieldTypeDate     FieldType = "date"
	FieldTypeEmail    FieldType = "email"
	FieldTypeText     FieldType = "text"
	FieldTypeCustom   FieldType = "custom"
)

// IsValid checks if the field type is one of the known types.
func (ft FieldType) IsValid() bool {
	switch ft {
	case FieldTypeUsername, FieldTypeTicket, FieldTypeDate, FieldTypeEmail,
		FieldTypeText, FieldTypeCustom:
		return true
	default:
		return false
	}
}

// ImportTemplate describes how documents of one kind are recognized and which
// fields are extracted from them. Templates form a forest through ParentID;
// the effective field set of a template is computed by the inheritance
// resolver, never stored.
type ImportTemplate struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Category    string `json:"category,omitempty"`
	Description string `json:"description,omitempty"`

	Fields []TemplateField `json:"fields"`

	// SupportedFormats lists the document formats this template applies to,
	// e.g. "pdf", "docx". Matching is case-insensitive.
	SupportedFormats []string `json:"supported_formats"`

	// ParentID references the template this one inherits from. Empty for
	// root templates.
	ParentID string `json:"parent_id,omitempty"`

	Version int  `json:"version"`
	Active  bool `json:"active"`

	// Metadata holds expected document metadata key/values, compared
	// case-insensitively by the metadata sub-score.
	Metadata map[string]string `json:"metadata,omitempty"`

	// Structure holds the expected structural summary, if the template
	// declares one. Nil means no structural expectation.
	Structure *StructureExpectation `json:"structure,omitempty"`
}

// FieldNames returns the names of the template's own fields in declaration order.
func (t *ImportTemplate) FieldNames() []string {
	names := make([]string, 0, len(t.Fields))
	for _, f := range t.Fields {
		names = append(names, f.Name)
	}
	return names
}

// Validate checks the template's own invariants: non-empty name and
// field names unique within the template's own field list.
func (t *ImportTemplate) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("template %s: name cannot be empty", t.ID)
	}
	seen := make(map[string]struct{}, len(t.Fields))
	for _, f := range t.Fields {
		if f.Name == "" {
			return fmt.Errorf("template %s: field with empty name", t.ID)
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("template %s: duplicate field name %q", t.ID, f.Name)
		}
		seen[f.Name] = struct{}{}
	}
	return nil
}

// TemplateField describes a single extractable field and the ordered rules
// used to locate its value in a document.
type TemplateField struct {
	Name        string    `json:"name"`
	DisplayName string    `json:"display_name,omitempty"`
	Type        FieldType `json:"type"`

	// Category groups fields for inheritance purposes; edge configs can mark
	// categories as append-only instead of override.
	Category string `json:"category,omitempty"`

	Required bool `json:"required"`

	// MultiValue fields collect every rule hit instead of stopping at the
	// first successful rule.
	MultiValue bool `json:"multi_value,omitempty"`

	Rules        []ExtractionRule           `json:"rules,omitempty"`
	Zones        []ExtractionZone           `json:"zones,omitempty"`
	Conditionals []ConditionalExtractionRule `json:"conditionals,omitempty"`

	// PageStart and PageEnd restrict rule evaluation to a 1-based inclusive
	// page range. Zero values mean no restriction.
	PageStart int `json:"page_start,omitempty"`
	PageEnd   int `json:"page_end,omitempty"`

	DefaultValue string `json:"default_value,omitempty"`

	// ValidationPattern is a regex an extracted value must match; values
	// failing validation are discarded and the next rule is attempted.
	ValidationPattern string `json:"validation_pattern,omitempty"`
}

// StructureExpectation is the template-declared counterpart of a document's
// structural summary. Nil pointer members are "don't care" dimensions.
type StructureExpectation struct {
	PageCount          int    `json:"page_count,omitempty"`
	PageCountTolerance int    `json:"page_count_tolerance,omitempty"`
	HasTables          *bool  `json:"has_tables,omitempty"`
	HasImages          *bool  `json:"has_images,omitempty"`
	IsScanned          *bool  `json:"is_scanned,omitempty"`
	Layout             string `json:"layout,omitempty"`
}

// EffectiveTemplate is the flattened result of walking a template's ancestor
// chain and merging field definitions. It is a newly constructed value; the
// resolver never mutates store state.
type EffectiveTemplate struct {
	// Template is the target template the resolution started from.
	Template ImportTemplate `json:"template"`

	// Fields is the flattened, fully inherited field list.
	Fields []TemplateField `json:"fields"`

	// OwnFields preserves the target template's own field list so change
	// tracking can diff own vs inherited definitions.
	OwnFields []TemplateField `json:"own_fields"`

	// AncestorChain lists template ids root to target, for auditability.
	AncestorChain []string `json:"ancestor_chain"`
}

// Field looks up a field by name in the flattened field list.
func (e *EffectiveTemplate) Field(name string) (TemplateField, bool) {
	for _, f := range e.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return TemplateField{}, false
}

// OverridePolicy controls how a child field with the same name as an
// inherited field is merged.
type OverridePolicy string

const (
	// OverrideReplace replaces the inherited field entirely with the child's
	// definition. This is the default policy.
	OverrideReplace OverridePolicy = "replace"

	// OverrideAppendOnly keeps both definitions; the child's field is
	// renamed on conflict.
	OverrideAppendOnly OverridePolicy = "append_only"
)

// InheritanceConfig describes how one parent→child edge merges fields.
type InheritanceConfig struct {
	Policy OverridePolicy `json:"policy,omitempty"`

	// InheritedCategories limits which field categories are inherited at
	// all. Empty means every category is inherited.
	InheritedCategories []string `json:"inherited_categories,omitempty"`

	// AppendOnlyCategories lists categories merged append-only even when
	// Policy is OverrideReplace.
	AppendOnlyCategories []string `json:"append_only_categories,omitempty"`
}

// InheritanceRelationship is a directed edge in the template inheritance
// graph. The graph is owned by the template store; the resolver only reads it
// and re-validates acyclicity before any new edge is accepted.
type InheritanceRelationship struct {
	ChildID  string            `json:"child_id"`
	ParentID string            `json:"parent_id"`
	Config   InheritanceConfig `json:"config"`
}
