package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/mentorlab/mentorbot/internal/feedback"
	"github.com/mentorlab/mentorbot/internal/knowledge"
	"github.com/mentorlab/mentorbot/internal/storage"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Store    *storage.Store
	Cache    *knowledge.Cache
	Feedback *feedback.Service
}

// NewMCPServer creates an MCP server exposing the knowledge base to
// agent clients: lookup, insertion, and score voting.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"mentorbot",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("mentorbot — curated learning suggestions with a feedback score loop."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("lookup_suggestion",
			mcp.WithDescription("Find the best suggestion for a question by keyword match."),
			mcp.WithString("query", mcp.Description("The question or topic to look up"), mcp.Required()),
		),
		mcpLookupSuggestion(deps),
	)

	s.AddTool(
		mcp.NewTool("add_suggestion",
			mcp.WithDescription("Add a suggestion to the knowledge base. Duplicate links are skipped."),
			mcp.WithString("keyword", mcp.Description("Keyword the suggestion matches on"), mcp.Required()),
			mcp.WithString("text", mcp.Description("Suggestion text shown to users"), mcp.Required()),
			mcp.WithString("link", mcp.Description("Link to the learning resource"), mcp.Required()),
		),
		mcpAddSuggestion(deps),
	)

	s.AddTool(
		mcp.NewTool("rate_suggestion",
			mcp.WithDescription("Vote a suggestion up or down, adjusting its ranking score."),
			mcp.WithString("id", mcp.Description("Suggestion id"), mcp.Required()),
			mcp.WithString("rating", mcp.Description("Either good or bad"), mcp.Required()),
		),
		mcpRateSuggestion(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"kb://stats",
			"Knowledge Base Stats",
			mcp.WithResourceDescription("Suggestion count and retry queue length as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceStats(deps),
	)

	return s
}

func mcpLookupSuggestion(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}

		rec, ok := deps.Cache.Match(query)
		if !ok {
			return mcpText("no matching suggestion"), nil
		}

		b, err := json.Marshal(rec)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpAddSuggestion(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		keyword, err := req.RequireString("keyword")
		if err != nil {
			return mcpError("keyword is required"), nil
		}
		text, err := req.RequireString("text")
		if err != nil {
			return mcpError("text is required"), nil
		}
		link, err := req.RequireString("link")
		if err != nil {
			return mcpError("link is required"), nil
		}

		id := uuid.New().String()
		added, err := deps.Store.ImportSuggestions([]storage.Suggestion{{
			ID:      id,
			Keyword: keyword,
			Text:    text,
			Link:    link,
		}})
		if err != nil {
			return mcpError(fmt.Sprintf("failed to save: %v", err)), nil
		}
		if added == 0 {
			return mcpText("skipped: a suggestion with this link already exists"), nil
		}
		if err := deps.Cache.Reload(); err != nil {
			return mcpError(fmt.Sprintf("saved but failed to reload cache: %v", err)), nil
		}

		return mcpText(fmt.Sprintf("Stored suggestion %s", id)), nil
	}
}

func mcpRateSuggestion(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("id")
		if err != nil {
			return mcpError("id is required"), nil
		}
		rating, err := req.RequireString("rating")
		if err != nil {
			return mcpError("rating is required"), nil
		}

		if err := deps.Feedback.Apply(id, rating); err != nil {
			return mcpError(fmt.Sprintf("failed to apply rating: %v", err)), nil
		}

		return mcpText(fmt.Sprintf("Applied %s rating to %s", rating, id)), nil
	}
}

func mcpResourceStats(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		suggestions, err := deps.Store.CountSuggestions()
		if err != nil {
			return nil, fmt.Errorf("counting suggestions: %w", err)
		}
		pending, err := deps.Store.RetryQueueLength()
		if err != nil {
			return nil, fmt.Errorf("reading retry queue: %w", err)
		}

		b, err := json.Marshal(map[string]int{
			"suggestions": suggestions,
			"retry_queue": pending,
		})
		if err != nil {
			return nil, fmt.Errorf("marshaling stats: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
