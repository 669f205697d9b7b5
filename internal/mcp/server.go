package mcp

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/tivault/docmatch/internal/config"
	"github.com/tivault/docmatch/internal/descriptions"
	"github.com/tivault/docmatch/internal/model"
	"github.com/tivault/docmatch/internal/service"
)

// Server represents the MCP server instance
type Server struct {
	config    *config.Config
	svc       *service.Service
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP server instance
func NewServer(cfg *config.Config, svc *service.Service) (*Server, error) {
	if svc == nil {
		return nil, fmt.Errorf("service cannot be nil")
	}

	mcpServer := server.NewMCPServer(
		cfg.ServerName,
		cfg.Version,
		server.WithToolCapabilities(false), // We don't support dynamic tool capabilities
	)

	s := &Server{
		config:    cfg,
		svc:       svc,
		mcpServer: mcpServer,
	}

	s.registerTools()

	return s, nil
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	templateListTool := mcp.NewTool(
		"template_list",
		mcp.WithDescription(descriptions.GetToolDescription("template_list")),
	)
	s.mcpServer.AddTool(templateListTool, s.handleTemplateList)

	templateResolveTool := mcp.NewTool(
		"template_resolve",
		mcp.WithDescription(descriptions.GetToolDescription("template_resolve")),
		mcp.WithString("template_id",
			mcp.Required(),
			mcp.Description("Id of the template to resolve"),
		),
	)
	s.mcpServer.AddTool(templateResolveTool, s.handleTemplateResolve)

	templateMatchDocumentTool := mcp.NewTool(
		"template_match_document",
		mcp.WithDescription(descriptions.GetToolDescription("template_match_document")),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Full path to the document file"),
		),
	)
	s.mcpServer.AddTool(templateMatchDocumentTool, s.handleTemplateMatchDocument)

	templateExtractFieldsTool := mcp.NewTool(
		"template_extract_fields",
		mcp.WithDescription(descriptions.GetToolDescription("template_extract_fields")),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Full path to the document file"),
		),
		mcp.WithString("template_id",
			mcp.Required(),
			mcp.Description("Id of the template whose rules to apply"),
		),
	)
	s.mcpServer.AddTool(templateExtractFieldsTool, s.handleTemplateExtractFields)

	templateMatchDirectoryTool := mcp.NewTool(
		"template_match_directory",
		mcp.WithDescription(descriptions.GetToolDescription("template_match_directory")),
		mcp.WithString("directory",
			mcp.Description("Directory path to match (uses default if empty)"),
		),
	)
	s.mcpServer.AddTool(templateMatchDirectoryTool, s.handleTemplateMatchDirectory)
}

// Handler functions
func (s *Server) handleTemplateList(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	templates, err := s.svc.ListTemplates(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(s.formatTemplateList(templates)), nil
}

func (s *Server) handleTemplateResolve(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	templateID, err := request.RequireString("template_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	eff, err := s.svc.ResolveTemplate(ctx, templateID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(s.formatEffectiveTemplate(eff)), nil
}

func (s *Server) handleTemplateMatchDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	ranked, err := s.svc.MatchDocument(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(s.formatMatchResults(path, ranked)), nil
}

func (s *Server) handleTemplateExtractFields(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	templateID, err := request.RequireString("template_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.svc.ExtractFields(ctx, path, templateID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(s.formatExtractionResult(path, result)), nil
}

func (s *Server) handleTemplateMatchDirectory(ctx context.Context, request mcp.CallToolRequest) (
	*mcp.CallToolResult, error,
) {
	args := request.GetArguments()

	directory := s.config.DocumentDirectory // default
	if dir, ok := args["directory"].(string); ok && dir != "" {
		directory = dir
	}

	result, err := s.svc.MatchDirectory(ctx, directory)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(s.formatBatchResult(directory, result)), nil
}

// Formatting methods
func (s *Server) formatTemplateList(templates []model.ImportTemplate) string {
	if len(templates) == 0 {
		return "Template catalog is empty"
	}

	text := fmt.Sprintf("Found %d template(s):\n", len(templates))
	for i, tpl := range templates {
		text += fmt.Sprintf("\n%d. %s (id: %s, version %d)\n", i+1, tpl.Name, tpl.ID, tpl.Version)
		if tpl.Category != "" {
			text += fmt.Sprintf("   Category: %s\n", tpl.Category)
		}
		if tpl.ParentID != "" {
			text += fmt.Sprintf("   Inherits from: %s\n", tpl.ParentID)
		}
		if len(tpl.SupportedFormats) > 0 {
			text += fmt.Sprintf("   Formats: %s\n", strings.Join(tpl.SupportedFormats, ", "))
		}
		text += fmt.Sprintf("   Fields: %d, Active: %t\n", len(tpl.Fields), tpl.Active)
	}
	return text
}

func (s *Server) formatEffectiveTemplate(eff *model.EffectiveTemplate) string {
	text := fmt.Sprintf("Effective template: %s (id: %s, version %d)\n", eff.Template.Name, eff.Template.ID, eff.Template.Version)
	text += fmt.Sprintf("Ancestor chain: %s\n", strings.Join(eff.AncestorChain, " -> "))
	text += fmt.Sprintf("Effective fields (%d):\n", len(eff.Fields))

	own := make(map[string]bool, len(eff.OwnFields))
	for _, f := range eff.OwnFields {
		own[f.Name] = true
	}
	for i, f := range eff.Fields {
		origin := "inherited"
		if own[f.Name] {
			origin = "own"
		}
		text += fmt.Sprintf("%d. %s (%s, %s)", i+1, f.Name, f.Type, origin)
		if f.Required {
			text += " [required]"
		}
		text += fmt.Sprintf(" - %d rule(s), %d zone(s), %d conditional(s)\n",
			len(f.Rules), len(f.Zones), len(f.Conditionals))
	}
	return text
}

func (s *Server) formatMatchResults(path string, ranked []model.TemplateMatchResult) string {
	if len(ranked) == 0 {
		return fmt.Sprintf("No template matched document: %s", path)
	}

	text := fmt.Sprintf("Ranked %d template(s) for document: %s\n", len(ranked), path)
	for i, r := range ranked {
		text += fmt.Sprintf("\n%d. %s (id: %s) - confidence %.2f", i+1, r.TemplateName, r.TemplateID, r.Score.Overall)
		if r.AutoApply {
			text += " [auto-apply]"
		}
		text += "\n"
		text += fmt.Sprintf("   Sub-scores: format %.2f, keyword %.2f, pattern %.2f, structure %.2f, metadata %.2f, filename %.2f\n",
			r.Score.Format, r.Score.Keyword, r.Score.Pattern, r.Score.Structure, r.Score.Metadata, r.Score.Filename)
		for _, reason := range r.Reasons {
			text += fmt.Sprintf("   - %s\n", reason)
		}
		for _, warning := range r.Warnings {
			text += fmt.Sprintf("   ! %s\n", warning)
		}
	}
	return text
}

func (s *Server) formatExtractionResult(path string, result *model.ExtractionResult) string {
	text := fmt.Sprintf("Extraction for document: %s\n", path)
	text += fmt.Sprintf("Template: %s (id: %s)\n", result.TemplateName, result.TemplateID)
	text += fmt.Sprintf("Overall confidence: %.2f\n", result.OverallConfidence)

	if len(result.Fields) > 0 {
		names := make([]string, 0, len(result.Fields))
		for name := range result.Fields {
			names = append(names, name)
		}
		sort.Strings(names)

		text += fmt.Sprintf("\nExtracted fields (%d):\n", len(result.Fields))
		for _, name := range names {
			v := result.Fields[name]
			text += fmt.Sprintf("  %s = %q (confidence %.2f", name, v.Value, v.Confidence)
			if v.SourcePage > 0 {
				text += fmt.Sprintf(", page %d", v.SourcePage)
			}
			text += ")\n"
			if len(v.Values) > 1 {
				text += fmt.Sprintf("    all values: %s\n", strings.Join(v.Values, ", "))
			}
		}
	}

	if len(result.Failures) > 0 {
		text += fmt.Sprintf("\nUnresolved fields (%d):\n", len(result.Failures))
		for _, f := range result.Failures {
			text += fmt.Sprintf("  %s: %s", f.Field, f.Reason)
			if f.Required {
				text += " [required]"
			}
			text += "\n"
		}
	}

	for _, w := range result.Warnings {
		text += fmt.Sprintf("! %s\n", w)
	}
	return text
}

func (s *Server) formatBatchResult(directory string, result *model.BatchMatchResult) string {
	total := len(result.Results) + len(result.Unmatched) + len(result.Errors)
	text := fmt.Sprintf("Matched directory: %s\n", directory)
	text += fmt.Sprintf("Documents: %d, matched: %d, unmatched: %d, errors: %d\n",
		total, len(result.Results), len(result.Unmatched), len(result.Errors))
	text += fmt.Sprintf("Success rate: %.0f%%\n", result.SuccessRate*100)

	if len(result.Results) > 0 {
		paths := make([]string, 0, len(result.Results))
		for path := range result.Results {
			paths = append(paths, path)
		}
		sort.Strings(paths)

		text += "\nMatches:\n"
		for _, path := range paths {
			r := result.Results[path]
			text += fmt.Sprintf("  %s -> %s (confidence %.2f", path, r.TemplateName, r.Score.Overall)
			if r.AutoApply {
				text += ", auto-apply"
			}
			text += ")\n"
		}
	}
	if len(result.Unmatched) > 0 {
		text += "\nUnmatched:\n"
		for _, path := range result.Unmatched {
			text += fmt.Sprintf("  %s\n", path)
		}
	}
	if len(result.Errors) > 0 {
		paths := make([]string, 0, len(result.Errors))
		for path := range result.Errors {
			paths = append(paths, path)
		}
		sort.Strings(paths)

		text += "\nErrors:\n"
		for _, path := range paths {
			text += fmt.Sprintf("  %s: %s\n", path, result.Errors[path])
		}
	}
	return text
}

// Run starts the MCP server in the configured mode
func (s *Server) Run(ctx context.Context) error {
	if s.config.IsServerMode() {
		return s.runServerMode(ctx)
	}
	return s.runStdioMode(ctx)
}

// runStdioMode runs the server in stdio mode
func (s *Server) runStdioMode(_ context.Context) error {
	if s.config.IsDebug() {
		log.Printf("Starting docmatch MCP server in stdio mode")
		log.Printf("Document directory: %s", s.config.DocumentDirectory)
	}

	if err := server.ServeStdio(s.mcpServer); err != nil {
		return fmt.Errorf("failed to serve stdio: %w", err)
	}
	return nil
}

// runServerMode runs the server in HTTP server mode
func (s *Server) runServerMode(ctx context.Context) error {
	// The mark3labs library handles the transport differently; stdio remains
	// the supported transport for now.
	log.Printf("Server mode not yet implemented with mark3labs/mcp-go")
	log.Printf("Falling back to stdio mode")
	return s.runStdioMode(ctx)
}
