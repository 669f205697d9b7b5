package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tivault/docmatch/internal/content"
	"github.com/tivault/docmatch/internal/model"
	"github.com/tivault/docmatch/internal/store"
)

const incidentText = "Incident summary\nReporter: jdoe\nTicket INC-9001 opened today\nincident severity high"

func seedCatalog(t *testing.T) (*store.Memory, string) {
	t.Helper()
	ctx := context.Background()
	st := store.NewMemory()

	base := &model.ImportTemplate{
		Name:   "document base",
		Active: true,
		Fields: []model.TemplateField{
			{
				Name: "Reporter",
				Type: model.FieldTypeUsername,
				Rules: []model.ExtractionRule{
					{Kind: model.RuleKindKeyword, Pattern: "Reporter", Priority: 1},
				},
			},
		},
	}
	require.NoError(t, st.SaveTemplate(ctx, base))

	incident := &model.ImportTemplate{
		Name:             "incident report",
		Category:         "security",
		ParentID:         base.ID,
		Active:           true,
		SupportedFormats: []string{"pdf"},
		Fields: []model.TemplateField{
			{
				Name:     "TicketNumber",
				Type:     model.FieldTypeTicket,
				Required: true,
				Rules: []model.ExtractionRule{
					{Kind: model.RuleKindRegex, Pattern: `INC-\d+`, Priority: 1},
					{Kind: model.RuleKindKeyword, Pattern: "incident", Priority: 2, Required: true},
				},
			},
		},
	}
	require.NoError(t, st.SaveTemplate(ctx, incident))

	retired := &model.ImportTemplate{Name: "retired layout", Active: false}
	require.NoError(t, st.SaveTemplate(ctx, retired))

	return st, incident.ID
}

func memoryOpener(pages []string) func(path string) (content.Provider, error) {
	return func(path string) (content.Provider, error) {
		if filepath.Ext(path) != ".pdf" {
			return nil, fmt.Errorf("unsupported document: %s", path)
		}
		return content.NewMemoryProvider(filepath.Base(path), "pdf", pages), nil
	}
}

func newTestService(t *testing.T) (*Service, string) {
	st, incidentID := seedCatalog(t)
	svc := New(st, model.DefaultMatchingSettings(), model.DefaultMatchingCriteria(), 0,
		memoryOpener([]string{incidentText}), nil)
	return svc, incidentID
}

func TestListTemplates(t *testing.T) {
	svc, _ := newTestService(t)

	templates, err := svc.ListTemplates(context.Background())
	require.NoError(t, err)
	require.Len(t, templates, 3)
	assert.Equal(t, "document base", templates[0].Name)
}

func TestResolveTemplateFlattensChain(t *testing.T) {
	svc, incidentID := newTestService(t)

	eff, err := svc.ResolveTemplate(context.Background(), incidentID)
	require.NoError(t, err)
	require.Len(t, eff.AncestorChain, 2)

	_, hasInherited := eff.Field("Reporter")
	_, hasOwn := eff.Field("TicketNumber")
	assert.True(t, hasInherited)
	assert.True(t, hasOwn)
}

func TestCandidateFingerprintsSkipInactive(t *testing.T) {
	svc, _ := newTestService(t)

	candidates, err := svc.CandidateFingerprints(context.Background())
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	for _, c := range candidates {
		assert.NotEqual(t, "retired layout", c.TemplateName)
	}
}

func TestCandidateFingerprintsUseEffectiveFields(t *testing.T) {
	svc, incidentID := newTestService(t)

	candidates, err := svc.CandidateFingerprints(context.Background())
	require.NoError(t, err)

	var incident *model.TemplateFingerprint
	for i := range candidates {
		if candidates[i].TemplateID == incidentID {
			incident = &candidates[i]
		}
	}
	require.NotNil(t, incident)

	// Keywords come from the flattened field set, so the inherited Reporter
	// keyword rule contributes alongside the template's own.
	assert.Contains(t, incident.ExpectedKeywords, "incident")
	assert.Contains(t, incident.ExpectedKeywords, "reporter")
	assert.Equal(t, []string{"incident"}, incident.RequiredKeywords)
}

func TestMatchDocumentRanksIncidentFirst(t *testing.T) {
	svc, incidentID := newTestService(t)

	ranked, err := svc.MatchDocument(context.Background(), "/in/report.pdf")
	require.NoError(t, err)
	require.NotEmpty(t, ranked)
	assert.Equal(t, incidentID, ranked[0].TemplateID)
	assert.NotEmpty(t, ranked[0].Reasons)
}

func TestMatchDocumentOpenError(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.MatchDocument(context.Background(), "/in/report.txt")
	assert.Error(t, err)
}

func TestExtractFieldsEndToEnd(t *testing.T) {
	svc, incidentID := newTestService(t)

	result, err := svc.ExtractFields(context.Background(), "/in/report.pdf", incidentID)
	require.NoError(t, err)

	assert.Equal(t, "INC-9001", result.Fields["TicketNumber"].Value)
	assert.Equal(t, "jdoe", result.Fields["Reporter"].Value)
	assert.Equal(t, 1.0, result.OverallConfidence)
}

func TestExtractFieldsUnknownTemplate(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.ExtractFields(context.Background(), "/in/report.pdf", "ghost")
	assert.Error(t, err)
}

func TestMatchDirectory(t *testing.T) {
	svc, _ := newTestService(t)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "report.pdf"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.md"), []byte("x"), 0o644))

	result, err := svc.MatchDirectory(context.Background(), dir)
	require.NoError(t, err)
	assert.Len(t, result.Results, 1)
	assert.Empty(t, result.Errors)
	assert.InDelta(t, 1.0, result.SuccessRate, 1e-9)
}
