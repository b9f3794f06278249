package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/forgefit/brain/internal/composer"
	"github.com/forgefit/brain/internal/knowledge"
	"github.com/forgefit/brain/internal/session"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Brain   Brain
	Gaps    GapAnalyzer
	Prompts PromptBuilder
}

// NewMCPServer creates an MCP server exposing the brain to the assistant
// runtime: the snapshot, forge refresh, gap suggestions, and the rendered
// system prompt.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"brain",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions("brain: aggregated fitness/nutrition knowledge and coach prompt context per user."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("get_user_knowledge",
			mcp.WithDescription("Load the merged knowledge snapshot for a user (training, nutrition, fasting, body, energy, schedule)."),
			mcp.WithString("user_id", mcp.Description("User identifier"), mcp.Required()),
		),
		mcpGetKnowledge(deps),
	)

	s.AddTool(
		mcp.NewTool("refresh_forge",
			mcp.WithDescription("Re-collect one knowledge forge for a user after its data changed."),
			mcp.WithString("user_id", mcp.Description("User identifier"), mcp.Required()),
			mcp.WithString("forge", mcp.Description("Forge name, e.g. training, nutrition, fasting"), mcp.Required()),
		),
		mcpRefreshForge(deps),
	)

	s.AddTool(
		mcp.NewTool("get_suggestions",
			mcp.WithDescription("List proactive data-gap suggestions for a user, ranked by priority."),
			mcp.WithString("user_id", mcp.Description("User identifier"), mcp.Required()),
		),
		mcpGetSuggestions(deps),
	)

	s.AddTool(
		mcp.NewTool("build_coach_prompt",
			mcp.WithDescription("Render the personalized coach system prompt for a user, honoring live session state."),
			mcp.WithString("user_id", mcp.Description("User identifier"), mcp.Required()),
			mcp.WithString("base_prompt", mcp.Description("Base coach instructions to enrich")),
			mcp.WithBoolean("session_active", mcp.Description("Whether a live workout is running")),
			mcp.WithBoolean("is_resting", mcp.Description("Whether the user is between sets")),
		),
		mcpBuildPrompt(deps),
	)

	return s
}

func mcpGetKnowledge(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		userID, err := req.RequireString("user_id")
		if err != nil {
			return mcpError("user_id is required"), nil
		}
		snap, err := deps.Brain.LoadUserKnowledge(ctx, userID)
		if err != nil {
			return mcpError(fmt.Sprintf("loading knowledge: %v", err)), nil
		}
		return mcpJSON(snap)
	}
}

func mcpRefreshForge(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		userID, err := req.RequireString("user_id")
		if err != nil {
			return mcpError("user_id is required"), nil
		}
		forgeName, err := req.RequireString("forge")
		if err != nil {
			return mcpError("forge is required"), nil
		}
		forge := knowledge.Forge(forgeName)
		if !knowledge.Valid(forge) {
			return mcpError(fmt.Sprintf("unknown forge %q", forgeName)), nil
		}
		if err := deps.Brain.RefreshForge(ctx, userID, forge); err != nil {
			return mcpError(fmt.Sprintf("refreshing %s: %v", forge, err)), nil
		}
		return mcpText(fmt.Sprintf("Refreshed %s for %s", forge, userID)), nil
	}
}

func mcpGetSuggestions(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		userID, err := req.RequireString("user_id")
		if err != nil {
			return mcpError("user_id is required"), nil
		}
		snap, err := deps.Brain.LoadUserKnowledge(ctx, userID)
		if err != nil {
			return mcpError(fmt.Sprintf("loading knowledge: %v", err)), nil
		}
		return mcpJSON(deps.Gaps.Analyze(snap))
	}
}

func mcpBuildPrompt(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		userID, err := req.RequireString("user_id")
		if err != nil {
			return mcpError("user_id is required"), nil
		}
		basePrompt := req.GetString("base_prompt", "")
		state := session.State{IsActive: req.GetBool("session_active", false)}
		if state.IsActive {
			state.Training = &session.LiveSet{IsResting: req.GetBool("is_resting", false)}
		}

		snap, err := deps.Brain.LoadUserKnowledge(ctx, userID)
		if err != nil {
			return mcpError(fmt.Sprintf("loading knowledge: %v", err)), nil
		}
		report := deps.Gaps.Analyze(snap)
		prompt := deps.Prompts.BuildSystemPrompt(composer.BrainContext{
			Knowledge: snap,
			Session:   state,
			Gaps:      &report,
		}, basePrompt)
		return mcpText(prompt), nil
	}
}

func mcpJSON(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcpError(fmt.Sprintf("encoding result: %v", err)), nil
	}
	return mcpText(string(b)), nil
}

func mcpText(s string) *mcp.CallToolResult {
	return mcp.NewToolResultText(s)
}

func mcpError(msg string) *mcp.CallToolResult {
	return mcp.NewToolResultError(msg)
}
