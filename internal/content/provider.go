// Package content defines the document content contract the core consumes.
// Providers hand the core already-extracted text, coordinates and structural
// stats; the core itself performs no OCR and no format decoding.
package content

import (
	"fmt"
	"strings"

	"github.com/tivault/docmatch/internal/model"
)

// Provider exposes one document's materialized content. Implementations are
// expected to be already in memory or to fail fast; no method should block
// indefinitely.
type Provider interface {
	// FullText returns the document's entire extracted text.
	FullText() (string, error)

	// PageText returns the text of a single 1-based page.
	PageText(page int) (string, error)

	// ZoneText returns the text inside a rectangular region of a page.
	ZoneText(page int, zone model.Rect) (string, error)

	// StructuralStats returns the document's structural summary.
	StructuralStats() (model.DocumentStructure, error)

	// Metadata returns document metadata key/values.
	Metadata() (map[string]string, error)

	// FileName returns the document's file name (may be empty).
	FileName() string

	// Format returns the lowercase document format, e.g. "pdf".
	Format() string
}

// MemoryProvider is an in-memory Provider for callers that already hold
// extracted content, and for tests.
type MemoryProvider struct {
	Name       string
	DocFormat  string
	Pages      []string
	ZoneValues map[ZoneKey]string
	Meta       map[string]string
	Stats      model.DocumentStructure
}

// ZoneKey addresses a zone value in a MemoryProvider.
type ZoneKey struct {
	Page int
	Rect model.Rect
}

// NewMemoryProvider creates a provider over per-page text. Structural stats
// default to the page/word counts derivable from the text.
func NewMemoryProvider(name, format string, pages []string) *MemoryProvider {
	wordCount := 0
	for _, p := range pages {
		wordCount += len(strings.Fields(p))
	}
	return &MemoryProvider{
		Name:       name,
		DocFormat:  strings.ToLower(format),
		Pages:      pages,
		ZoneValues: map[ZoneKey]string{},
		Meta:       map[string]string{},
		Stats: model.DocumentStructure{
			PageCount: len(pages),
			WordCount: wordCount,
			Layout:    model.LayoutText,
		},
	}
}

// SetZone assigns the text a zone lookup will return.
func (p *MemoryProvider) SetZone(page int, rect model.Rect, text string) {
	p.ZoneValues[ZoneKey{Page: page, Rect: rect}] = text
}

func (p *MemoryProvider) FullText() (string, error) {
	return strings.Join(p.Pages, "\n"), nil
}

func (p *MemoryProvider) PageText(page int) (string, error) {
	if page < 1 || page > len(p.Pages) {
		return "", fmt.Errorf("page %d out of range (document has %d pages)", page, len(p.Pages))
	}
	return p.Pages[page-1], nil
}

func (p *MemoryProvider) ZoneText(page int, zone model.Rect) (string, error) {
	if page < 1 || page > len(p.Pages) {
		return "", fmt.Errorf("page %d out of range (document has %d pages)", page, len(p.Pages))
	}
	return p.ZoneValues[ZoneKey{Page: page, Rect: zone}], nil
}

func (p *MemoryProvider) StructuralStats() (model.DocumentStructure, error) {
	return p.Stats, nil
}

func (p *MemoryProvider) Metadata() (map[string]string, error) {
	return p.Meta, nil
}

func (p *MemoryProvider) FileName() string { return p.Name }

func (p *MemoryProvider) Format() string { return p.DocFormat }
