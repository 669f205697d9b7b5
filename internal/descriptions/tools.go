package descriptions

// Comprehensive tool descriptions with practical examples and use cases

const (
	TemplateListDescription = `List every import template in the catalog with its fields and inheritance.

**When to use:** Starting a matching session, auditing the catalog, or picking a template id for resolution and extraction.

**Why it's useful:** Shows the whole catalog at a glance, including which templates inherit from which and which are active.

**Examples:**
• Session startup: "List templates to see what document kinds are recognized"
• Catalog audit: "Check which templates are inactive before a cleanup"
• Id lookup: "Find the id of the incident report template for extraction"

**Common workflows:**
1. Discovery: List templates → Pick candidates → Match or extract
2. Catalog Maintenance: List templates → Review inheritance → Adjust definitions

**Best practices:** Run at the start of sessions; pair with template_resolve to inspect the effective field set of a specific template.`

	TemplateResolveDescription = `Resolve a template's inheritance chain into its flattened effective field set.

**When to use:** Need to see exactly which fields (own and inherited) a template will extract, or to debug inheritance overrides.

**Why it's useful:** Inheritance merges happen at resolution time; this shows the final field set, the ancestor chain, and how overrides and append-only renames played out.

**Examples:**
• Override debugging: "Resolve the incident template to see whether it overrides the base Reporter field"
• Chain inspection: "Show the ancestor chain of the escalation report template"

**Common workflows:**
1. Template Authoring: Edit template → Resolve → Verify the effective fields
2. Extraction Planning: Resolve → Review rules → Run template_extract_fields

**Best practices:** Resolution fails loudly on inheritance cycles and dangling parents — use it to validate catalog edits.`

	TemplateMatchDocumentDescription = `Rank every active template against one document by content similarity.

**When to use:** Have a document of unknown kind and need to know which template (if any) fits it.

**Why it's useful:** Scores formats, keywords, text patterns, structure, metadata and filename into one confidence value per template, with per-dimension reasons and an auto-apply recommendation.

**Examples:**
• Triage: "Match unknown-scan.pdf to see if it is an incident report or an invoice"
• Confidence check: "See how strongly report-778.pdf matches the invoice template before extracting"

**Common workflows:**
1. Import Pipeline: Match document → Auto-apply above threshold → Extract fields
2. Review Queue: Match document → Below threshold → Queue for human pick

**Best practices:** Check the reasons and warnings on each result; a required-keyword warning means the template's mandatory marker text is missing.`

	TemplateExtractFieldsDescription = `Apply a template's extraction rules to a document and return field values.

**When to use:** The document's template is known (or was just matched) and you need the structured field values.

**Why it's useful:** Runs the full rule machinery — priority-ordered regex and keyword rules, coordinate zones, conditionals, validation patterns — and reports per-field confidence plus a failure manifest for anything unresolved.

**Examples:**
• Data capture: "Extract TicketNumber and Reporter from incident-4401.pdf using the incident template"
• Partial documents: "Extract what's available from a truncated scan; failures land in the manifest, not as errors"

**Common workflows:**
1. Import Pipeline: Match → Extract → Validate required fields → Store
2. Spot Check: Extract → Review low-confidence values → Correct template rules

**Best practices:** Extraction is best-effort — inspect the failure manifest and warnings instead of expecting an error for missing fields.`

	TemplateMatchDirectoryDescription = `Match every supported document in a directory against the template catalog.

**When to use:** Bulk-triaging a folder of documents, estimating how well the catalog covers a corpus, or feeding an import pipeline.

**Why it's useful:** Processes documents concurrently with per-document failure isolation; one unreadable file never aborts the batch. Reports matched, unmatched and errored documents plus an aggregate success rate.

**Examples:**
• Bulk import: "Match everything in /intake/ and auto-apply confident matches"
• Coverage check: "See what fraction of /archive/ the current catalog recognizes"

**Common workflows:**
1. Batch Import: Match directory → Extract matched documents → Review the rest
2. Catalog Tuning: Match directory → Study unmatched files → Add or adjust templates

**Best practices:** Success rate below expectations usually means missing templates, not broken documents — check the unmatched list first.`
)

// ToolDescriptions maps tool names to their comprehensive descriptions
var ToolDescriptions = map[string]string{
	"template_list":            TemplateListDescription,
	"template_resolve":         TemplateResolveDescription,
	"template_match_document":  TemplateMatchDocumentDescription,
	"template_extract_fields":  TemplateExtractFieldsDescription,
	"template_match_directory": TemplateMatchDirectoryDescription,
}

// GetToolDescription returns the comprehensive description for a tool
func GetToolDescription(toolName string) string {
	if desc, exists := ToolDescriptions[toolName]; exists {
		return desc
	}
	return "Tool description not available"
}

// GetAllToolNames returns a list of all available tool names
func GetAllToolNames() []string {
	var names []string
	for name := range ToolDescriptions {
		names = append(names, name)
	}
	return names
}
