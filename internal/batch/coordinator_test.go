package batch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tivault/docmatch/internal/content"
	"github.com/tivault/docmatch/internal/match"
	"github.com/tivault/docmatch/internal/model"
)

func invoiceCandidates() []model.TemplateFingerprint {
	return []model.TemplateFingerprint{
		{
			TemplateID:       "tpl-invoice",
			TemplateName:     "invoice",
			TemplateVersion:  1,
			SupportedFormats: []string{"pdf"},
			ExpectedKeywords: []string{"invoice", "total"},
			RequiredKeywords: []string{"invoice"},
			ComplexityScore:  4,
		},
	}
}

func fakeOpener(docs map[string]*content.MemoryProvider) DocumentOpener {
	return func(path string) (content.Provider, error) {
		doc, ok := docs[filepath.Base(path)]
		if !ok {
			return nil, fmt.Errorf("unreadable document: %s", path)
		}
		return doc, nil
	}
}

func TestMatchDocumentsIsolatesFailures(t *testing.T) {
	settings := model.DefaultMatchingSettings()
	matcher := match.NewMatcher(settings, nil)

	docs := map[string]*content.MemoryProvider{
		"good.pdf": content.NewMemoryProvider("good.pdf", "pdf", []string{
			"Invoice number 778\nTotal amount due: 42.00\ninvoice reference attached",
		}),
		"other.pdf": content.NewMemoryProvider("other.pdf", "pdf", []string{
			"completely unrelated ramble about weather patterns",
		}),
	}
	c := NewCoordinator(matcher, fakeOpener(docs), settings, nil)

	paths := []string{"/in/good.pdf", "/in/other.pdf", "/in/broken.pdf"}
	result, err := c.MatchDocuments(context.Background(), paths, invoiceCandidates(), model.DefaultMatchingCriteria())
	require.NoError(t, err)

	require.Contains(t, result.Results, "/in/good.pdf")
	assert.Equal(t, "tpl-invoice", result.Results["/in/good.pdf"].TemplateID)

	assert.Equal(t, []string{"/in/other.pdf"}, result.Unmatched)
	assert.Contains(t, result.Errors, "/in/broken.pdf")
	assert.InDelta(t, 1.0/3.0, result.SuccessRate, 1e-9)
}

func TestMatchDocumentsEmptyInput(t *testing.T) {
	settings := model.DefaultMatchingSettings()
	c := NewCoordinator(match.NewMatcher(settings, nil), fakeOpener(nil), settings, nil)

	result, err := c.MatchDocuments(context.Background(), nil, invoiceCandidates(), model.DefaultMatchingCriteria())
	require.NoError(t, err)
	assert.Empty(t, result.Results)
	assert.Empty(t, result.Unmatched)
	assert.Empty(t, result.Errors)
	assert.Zero(t, result.SuccessRate)
}

func TestMatchDocumentsHonorsCancellation(t *testing.T) {
	settings := model.DefaultMatchingSettings()
	c := NewCoordinator(match.NewMatcher(settings, nil), fakeOpener(nil), settings, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.MatchDocuments(ctx, []string{"/in/a.pdf", "/in/b.pdf"}, invoiceCandidates(), model.DefaultMatchingCriteria())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMatchDirectoryDiscoversPDFs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "good.pdf"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "other.pdf"), []byte("x"), 0o644))

	settings := model.DefaultMatchingSettings()
	matcher := match.NewMatcher(settings, nil)
	docs := map[string]*content.MemoryProvider{
		"good.pdf": content.NewMemoryProvider("good.pdf", "pdf", []string{
			"Invoice number 778\nTotal amount due: 42.00\ninvoice reference attached",
		}),
		"other.pdf": content.NewMemoryProvider("other.pdf", "pdf", []string{
			"completely unrelated ramble about weather patterns",
		}),
	}
	c := NewCoordinator(matcher, fakeOpener(docs), settings, nil)

	result, err := c.MatchDirectory(context.Background(), dir, invoiceCandidates(), model.DefaultMatchingCriteria())
	require.NoError(t, err)

	// Two PDFs processed, the .txt file ignored.
	assert.Equal(t, 1, len(result.Results))
	assert.Equal(t, 1, len(result.Unmatched))
	assert.Empty(t, result.Errors)
}

func TestMatchDirectoryRejectsMissingDirectory(t *testing.T) {
	settings := model.DefaultMatchingSettings()
	c := NewCoordinator(match.NewMatcher(settings, nil), fakeOpener(nil), settings, nil)

	_, err := c.MatchDirectory(context.Background(), "/does/not/exist", invoiceCandidates(), model.DefaultMatchingCriteria())
	assert.Error(t, err)

	_, err = c.MatchDirectory(context.Background(), "", invoiceCandidates(), model.DefaultMatchingCriteria())
	assert.Error(t, err)
}

func TestMatchDocumentsBoundsConcurrency(t *testing.T) {
	settings := model.DefaultMatchingSettings()
	settings.MaxConcurrentOperations = 2
	matcher := match.NewMatcher(settings, nil)

	var mu sync.Mutex
	inFlight, peak := 0, 0
	open := func(path string) (content.Provider, error) {
		mu.Lock()
		inFlight++
		if inFlight > peak {
			peak = inFlight
		}
		mu.Unlock()

		doc := content.NewMemoryProvider(filepath.Base(path), "pdf", []string{"invoice total invoice"})

		mu.Lock()
		inFlight--
		mu.Unlock()
		return doc, nil
	}
	c := NewCoordinator(matcher, open, settings, nil)

	var paths []string
	for i := 0; i < 16; i++ {
		paths = append(paths, fmt.Sprintf("/in/doc-%d.pdf", i))
	}
	_, err := c.MatchDocuments(context.Background(), paths, invoiceCandidates(), model.DefaultMatchingCriteria())
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.LessOrEqual(t, peak, 2)
}
