package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/adm-tools/profreap/internal/config"
	"github.com/adm-tools/profreap/internal/reap"
)

// NewMCPServer exposes the inventory and verdict previews as MCP
// tools, so an admin assistant can inspect staleness without shell
// access. Deletion is deliberately not exposed.
func NewMCPServer(deps Deps) *server.MCPServer {
	s := server.NewMCPServer(
		"profreap",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("profreap — stale roaming profile inventory and reap previews for this workstation."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("list_profiles",
			mcp.WithDescription("List all known user profiles with their roaming/special flags and last-use attributes."),
		),
		mcpListProfiles(deps),
	)

	s.AddTool(
		mcp.NewTool("preview_reap",
			mcp.WithDescription("Compute reap verdicts for every profile without deleting anything."),
			mcp.WithNumber("age", mcp.Description("Minimum age in days (positive integer)"), mcp.Required()),
			mcp.WithBoolean("force", mcp.Description("Enable force mode (domain-mismatch admission)")),
			mcp.WithString("fallback", mcp.Description("Fallback policy for profiles with no usable timestamp: skip or epoch")),
		),
		mcpPreviewReap(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"profreap://inventory",
			"Profile Inventory",
			mcp.WithResourceDescription("Current profile inventory as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceInventory(deps),
	)

	return s
}

func mcpListProfiles(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		profiles, err := deps.Source.List()
		if err != nil {
			return mcpError(fmt.Sprintf("listing profiles: %v", err)), nil
		}
		b, err := json.Marshal(profiles)
		if err != nil {
			return mcpError(fmt.Sprintf("marshalling profiles: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpPreviewReap(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		age, err := req.RequireInt("age")
		if err != nil {
			return mcpError("age is required"), nil
		}
		force := req.GetBool("force", false)

		fallback := deps.DefaultFallback
		if f := req.GetString("fallback", ""); f != "" {
			if fallback, err = config.ParseFallback(f); err != nil {
				return mcpError(err.Error()), nil
			}
		}

		pol, err := config.NewPolicy(config.PolicySpec{
			MinAgeDays: age,
			Force:      force,
			DryRun:     true,
			Fallback:   fallback,
		})
		if err != nil {
			return mcpError(err.Error()), nil
		}

		profiles, err := deps.Source.List()
		if err != nil {
			return mcpError(fmt.Sprintf("listing profiles: %v", err)), nil
		}

		decisions := reap.Plan(ctx, profiles, pol, deps.now(), deps.Engine)
		b, err := json.Marshal(verdictRecords(decisions))
		if err != nil {
			return mcpError(fmt.Sprintf("marshalling verdicts: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceInventory(deps Deps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		profiles, err := deps.Source.List()
		if err != nil {
			return nil, fmt.Errorf("listing profiles: %w", err)
		}
		b, err := json.Marshal(profiles)
		if err != nil {
			return nil, fmt.Errorf("marshalling profiles: %w", err)
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
