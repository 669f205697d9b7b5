// Package batch matches many documents against the template catalog with
// bounded concurrency. One document's failure never aborts the batch.
package batch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tivault/docmatch/internal/content"
	"github.com/tivault/docmatch/internal/match"
	"github.com/tivault/docmatch/internal/model"
)

// DocumentOpener materializes one document's content by path. The default
// opener reads PDFs; tests and embedders substitute their own.
type DocumentOpener func(path string) (content.Provider, error)

// Coordinator fans document matching out over a bounded worker pool sized by
// MaxConcurrentOperations.
type Coordinator struct {
	matcher  *match.Matcher
	open     DocumentOpener
	settings model.MatchingSettings
	logger   *zap.Logger
}

// NewCoordinator creates a batch coordinator. A nil opener defaults to the
// PDF provider with no file size limit; a nil logger is replaced with a
// no-op logger.
func NewCoordinator(matcher *match.Matcher, open DocumentOpener, settings model.MatchingSettings, logger *zap.Logger) *Coordinator {
	if open == nil {
		open = func(path string) (content.Provider, error) {
			return content.OpenPDF(path, 0)
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		matcher:  matcher,
		open:     open,
		settings: settings,
		logger:   logger,
	}
}

// MatchDirectory discovers supported documents under dir and matches each
// against the candidate templates.
func (c *Coordinator) MatchDirectory(ctx context.Context, dir string, candidates []model.TemplateFingerprint, criteria model.MatchingCriteria) (*model.BatchMatchResult, error) {
	if dir == "" {
		return nil, fmt.Errorf("directory cannot be empty")
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, fmt.Errorf("directory does not exist: %s", dir)
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve directory path: %w", err)
	}

	var paths []string
	err = filepath.WalkDir(absDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			// Continue walking even if a specific entry errors.
			return nil //nolint:nilerr
		}
		if d.IsDir() {
			return nil
		}
		if strings.EqualFold(filepath.Ext(path), ".pdf") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error walking directory: %w", err)
	}

	return c.MatchDocuments(ctx, paths, candidates, criteria)
}

// MatchDocuments matches each path against the candidates, collecting
// per-document outcomes keyed by path. Results carry no ordering guarantee.
func (c *Coordinator) MatchDocuments(ctx context.Context, paths []string, candidates []model.TemplateFingerprint, criteria model.MatchingCriteria) (*model.BatchMatchResult, error) {
	start := time.Now()

	result := &model.BatchMatchResult{
		Results: make(map[string]*model.TemplateMatchResult, len(paths)),
		Errors:  map[string]string{},
	}
	if len(paths) == 0 {
		result.Duration = time.Since(start)
		return result, nil
	}

	workers := c.settings.MaxConcurrentOperations
	if workers < 1 {
		workers = 1
	}
	if workers > len(paths) {
		workers = len(paths)
	}

	jobs := make(chan string)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range jobs {
				best, err := c.matchOne(path, candidates, criteria)
				mu.Lock()
				switch {
				case err != nil:
					result.Errors[path] = err.Error()
				case best == nil:
					result.Unmatched = append(result.Unmatched, path)
				default:
					result.Results[path] = best
				}
				mu.Unlock()
			}
		}()
	}

	feedErr := func() error {
		defer close(jobs)
		for _, path := range paths {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case jobs <- path:
			}
		}
		return nil
	}()
	wg.Wait()

	if feedErr != nil {
		return nil, feedErr
	}

	result.SuccessRate = float64(len(result.Results)) / float64(len(paths))
	result.Duration = time.Since(start)

	c.logger.Info("batch match finished",
		zap.Int("documents", len(paths)),
		zap.Int("matched", len(result.Results)),
		zap.Int("unmatched", len(result.Unmatched)),
		zap.Int("errors", len(result.Errors)),
		zap.Duration("duration", result.Duration),
	)
	return result, nil
}

func (c *Coordinator) matchOne(path string, candidates []model.TemplateFingerprint, criteria model.MatchingCriteria) (*model.TemplateMatchResult, error) {
	doc, err := c.open(path)
	if err != nil {
		return nil, fmt.Errorf("opening document: %w", err)
	}

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

	fp := c.matcher.FingerprintDocument(text, doc.FileName(), doc.Format(), meta, stats)
	return c.matcher.BestMatch(&fp, candidates, criteria), nil
}
