// Package service is the application facade behind the MCP surface. It wires
// the template catalog, the inheritance resolver, the matcher and the
// extraction engine into the operations the tools expose.
package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/tivault/docmatch/internal/batch"
	"github.com/tivault/docmatch/internal/content"
	"github.com/tivault/docmatch/internal/extract"
	"github.com/tivault/docmatch/internal/fingerprint"
	"github.com/tivault/docmatch/internal/inherit"
	"github.com/tivault/docmatch/internal/match"
	"github.com/tivault/docmatch/internal/model"
	"github.com/tivault/docmatch/internal/store"
)

// Service executes template catalog and document matching operations.
type Service struct {
	store    store.Store
	matcher  *match.Matcher
	engine   *extract.Engine
	coord    *batch.Coordinator
	open     batch.DocumentOpener
	criteria model.MatchingCriteria
	logger   *zap.Logger
}

// New creates a service. A nil opener defaults to the PDF provider bounded
// by maxFileSize; a nil logger is replaced with a no-op logger.
func New(st store.Store, settings model.MatchingSettings, criteria model.MatchingCriteria, maxFileSize int64, open batch.DocumentOpener, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if open == nil {
		open = func(path string) (content.Provider, error) {
			return content.OpenPDF(path, maxFileSize)
		}
	}
	matcher := match.NewMatcher(settings, logger)
	return &Service{
		store:    st,
		matcher:  matcher,
		engine:   extract.NewEngine(logger),
		coord:    batch.NewCoordinator(matcher, open, settings, logger),
		open:     open,
		criteria: criteria,
		logger:   logger,
	}
}

// Store exposes the underlying catalog for embedders that manage templates
// programmatically.
func (s *Service) Store() store.Store { return s.store }

// ListTemplates returns the whole catalog sorted by name.
func (s *Service) ListTemplates(ctx context.Context) ([]model.ImportTemplate, error) {
	return s.store.ListTemplates(ctx)
}

// ResolveTemplate flattens a template's inheritance chain.
func (s *Service) ResolveTemplate(ctx context.Context, templateID string) (*model.EffectiveTemplate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return inherit.Resolve(s.store, templateID)
}

// CandidateFingerprints builds the template fingerprints matching runs
// against: every active template, resolved through its chain. A template
// whose chain fails to resolve is skipped with a warning rather than
// poisoning the whole candidate set.
func (s *Service) CandidateFingerprints(ctx context.Context) ([]model.TemplateFingerprint, error) {
	templates, err := s.store.ListTemplates(ctx)
	if err != nil {
		return nil, err
	}

	candidates := make([]model.TemplateFingerprint, 0, len(templates))
	for i := range templates {
		tpl := &templates[i]
		if !tpl.Active {
			continue
		}
		eff, err := inherit.Resolve(s.store, tpl.ID)
		if err != nil {
			s.logger.Warn("skipping unresolvable template",
				zap.String("template_id", tpl.ID),
				zap.String("template", tpl.Name),
				zap.Error(err),
			)
			continue
		}
		candidates = append(candidates, fingerprint.BuildTemplate(tpl, eff.Fields))
	}
	return candidates, nil
}

// MatchDocument ranks every active template against one document.
func (s *Service) MatchDocument(ctx context.Context, path string) ([]model.TemplateMatchResult, error) {
	candidates, err := s.CandidateFingerprints(ctx)
	if err != nil {
		return nil, err
	}

	doc, err := s.open(path)
	if err != nil {
		return nil, fmt.Errorf("opening document: %w", err)
	}
	fp, err := s.fingerprintOf(doc)
	if err != nil {
		return nil, err
	}
	return s.matcher.AllMatches(fp, candidates, s.criteria), nil
}

// ExtractFields applies a template's resolved rules to one document.
func (s *Service) ExtractFields(ctx context.Context, path, templateID string) (*model.ExtractionResult, error) {
	eff, err := s.ResolveTemplate(ctx, templateID)
	if err != nil {
		return nil, err
	}
	doc, err := s.open(path)
	if err != nil {
		return nil, fmt.Errorf("opening document: %w", err)
	}
	return s.engine.Extract(ctx, eff, doc)
}

// MatchDirectory matches every supported document under dir.
func (s *Service) MatchDirectory(ctx context.Context, dir string) (*model.BatchMatchResult, error) {
	candidates, err := s.CandidateFingerprints(ctx)
	if err != nil {
		return nil, err
	}
	return s.coord.MatchDirectory(ctx, dir, candidates, s.criteria)
}

func (s *Service) fingerprintOf(doc content.Provider) (*model.DocumentFingerprint, error) {
	text, err := doc.FullText()
	if err != nil {
		return nil, fmt.Errorf("reading document text: %w", err)
	}
	stats, err := doc.StructuralStats()
	if err != nil {
		return nil, fmt.Errorf("reading document structure: %w", err)
	}
	meta, err := doc.Metadata()
	if err != nil {
		return nil, fmt.Errorf("reading document metadata: %w", err)
	}
	fp := s.matcher.FingerprintDocument(text, doc.FileName(), doc.Format(), meta, stats)
	return &fp, nil
}
