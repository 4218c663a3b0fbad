package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/fieldscope/fieldscope/internal/config"
	"github.com/fieldscope/fieldscope/internal/descriptions"
	"github.com/fieldscope/fieldscope/internal/overlay"
)

// Server represents the MCP server instance
type Server struct {
	config    *config.Config
	service   *Service
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP server instance
func NewServer(cfg *config.Config, service *Service) (*Server, error) {
	if service == nil {
		return nil, fmt.Errorf("service cannot be nil")
	}

	mcpServer := server.NewMCPServer(
		cfg.ServerName,
		cfg.Version,
		server.WithToolCapabilities(false), // We don't support dynamic tool capabilities
	)

	s := &Server{
		config:    cfg,
		service:   service,
		mcpServer: mcpServer,
	}

	// Register tools
	s.registerTools()

	return s, nil
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	detectFieldsTool := mcp.NewTool(
		"pdf_detect_fields",
		mcp.WithDescription(descriptions.GetToolDescription("pdf_detect_fields")),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Full path to the PDF file"),
		),
		mcp.WithString("values",
			mcp.Description("Optional JSON object mapping field keys to display values"),
		),
	)
	s.mcpServer.AddTool(detectFieldsTool, s.handleDetectFields)

	widgetFieldsTool := mcp.NewTool(
		"pdf_widget_fields",
		mcp.WithDescription(descriptions.GetToolDescription("pdf_widget_fields")),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Full path to the PDF file"),
		),
	)
	s.mcpServer.AddTool(widgetFieldsTool, s.handleWidgetFields)

	overlayInfoTool := mcp.NewTool(
		"pdf_overlay_info",
		mcp.WithDescription(descriptions.GetToolDescription("pdf_overlay_info")),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Full path to the PDF file"),
		),
	)
	s.mcpServer.AddTool(overlayInfoTool, s.handleOverlayInfo)
}

// Handler functions
func (s *Server) handleDetectFields(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	req := DetectFieldsRequest{Path: path}

	args := request.GetArguments()
	if raw, ok := args["values"].(string); ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &req.Values); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid values JSON: %v", err)), nil
		}
	}

	result, err := s.service.DetectFields(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(s.formatDetectFieldsResult(result)), nil
}

func (s *Server) handleWidgetFields(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.service.WidgetFields(ctx, WidgetFieldsRequest{Path: path})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(s.formatWidgetFieldsResult(result)), nil
}

func (s *Server) handleOverlayInfo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.service.OverlayInfo(OverlayInfoRequest{Path: path})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(s.formatOverlayInfoResult(result)), nil
}

// Formatting methods
func (s *Server) formatDetectFieldsResult(result *DetectFieldsResult) string {
	text := fmt.Sprintf("Detection pass for: %s\n", result.Path)
	text += fmt.Sprintf("Pages: %d\n", result.Pages)
	text += fmt.Sprintf("Status: %s\n", result.Status)
	text += fmt.Sprintf("Boxes added: %d (total now %d)\n", result.Added, result.TotalBoxes)
	text += fmt.Sprintf("Overlay: %s\n", result.OverlayPath)

	for _, w := range result.Warnings {
		text += fmt.Sprintf("Warning: %s\n", w)
	}
	for _, pe := range result.PageErrors {
		text += fmt.Sprintf("Page error: %s\n", pe)
	}

	if len(result.Boxes) > 0 {
		text += "\nNew boxes:\n"
		for i, b := range result.Boxes {
			text += fmt.Sprintf("%d. page %d at (%.1f, %.1f) %gx%g", i+1, b.Page, b.X, b.Y, b.W, b.H)
			if label := boxBinding(b); label != "" {
				text += " " + label
			}
			text += "\n"
		}
	}

	return text
}

func (s *Server) formatWidgetFieldsResult(result *WidgetFieldsResult) string {
	if len(result.Fields) == 0 {
		return fmt.Sprintf("No AcroForm widget fields found in %s (%d pages)", result.Path, result.Pages)
	}

	text := fmt.Sprintf("Found %d widget field(s) in %s\n\n", len(result.Fields), result.Path)
	for i, f := range result.Fields {
		text += fmt.Sprintf("%d. %s\n", i+1, f.Name)
		text += fmt.Sprintf("   Page: %d\n", f.Page)
		text += fmt.Sprintf("   Rect: (%.1f, %.1f) %gx%g\n", f.X, f.Y, f.W, f.H)
		if f.Value != "" {
			text += fmt.Sprintf("   Value: %s\n", f.Value)
		}
	}
	return text
}

func (s *Server) formatOverlayInfoResult(result *OverlayInfoResult) string {
	if !result.Exists {
		return fmt.Sprintf("No overlay found at %s", result.OverlayPath)
	}

	text := "Overlay Summary\n"
	text += fmt.Sprintf("File: %s\n", result.OverlayPath)
	text += fmt.Sprintf("Version: %d\n", result.Version)
	text += fmt.Sprintf("Total boxes: %d\n", result.TotalBoxes)
	text += fmt.Sprintf("Key-bound: %d, value-bound: %d, erase: %d\n",
		result.KeyBound, result.ValueBound, result.EraseBoxes)

	if len(result.PerPage) > 0 {
		text += "\nBoxes per page:\n"
		for _, page := range sortedPages(result.PerPage) {
			text += fmt.Sprintf("  page %d: %d\n", page, result.PerPage[page])
		}
	}
	return text
}

func boxBinding(b overlay.Box) string {
	if b.Key != nil {
		return fmt.Sprintf("key=%s", *b.Key)
	}
	if b.Value != nil && *b.Value != "" {
		return fmt.Sprintf("value=%q", *b.Value)
	}
	return ""
}

// Run starts the MCP server in the configured mode
func (s *Server) Run(ctx context.Context) error {
	return s.runStdioMode(ctx)
}

// runStdioMode runs the server in stdio mode
func (s *Server) runStdioMode(_ context.Context) error {
	if s.config.IsDebug() {
		log.Printf("Starting fieldscope MCP server in stdio mode")
		log.Printf("PDF directory: %s", s.config.PDFDirectory)
	}

	// Use the mark3labs/mcp-go server.ServeStdio function
	if err := server.ServeStdio(s.mcpServer); err != nil {
		return fmt.Errorf("failed to serve stdio: %w", err)
	}
	return nil
}
