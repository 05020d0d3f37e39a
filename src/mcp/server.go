// Package mcp exposes Unity Cloud Build operations as MCP tools, so an
// assistant can trigger builds, check status, and mint share links over stdio.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"ucb-agent/src/unitycloud"
)

// Server is the MCP server for the build orchestrator.
type Server struct {
	mcpServer *server.MCPServer
	client    *unitycloud.Client
}

// NewServer creates a new MCP server backed by the given API client.
func NewServer(client *unitycloud.Client) *Server {
	s := server.NewMCPServer(
		"ucb-agent",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	srv := &Server{
		mcpServer: s,
		client:    client,
	}
	srv.registerTools()

	return srv
}

// registerTools registers all available tools.
func (s *Server) registerTools() {
	triggerTool := mcp.NewTool("trigger_build",
		mcp.WithDescription("Trigger a Unity Cloud Build on an existing build target. Returns the new build number; poll with get_build_status."),
		mcp.WithString("project_id",
			mcp.Required(),
			mcp.Description("Unity Cloud Build project id"),
		),
		mcp.WithString("target_id",
			mcp.Required(),
			mcp.Description("Build target id (e.g. ios, android-main)"),
		),
		mcp.WithString("commit",
			mcp.Description("Optional commit SHA to build instead of the branch head"),
		),
		mcp.WithBoolean("clean",
			mcp.Description("Force a clean build (default: false)"),
		),
	)

	statusTool := mcp.NewTool("get_build_status",
		mcp.WithDescription("Get the current status of a Unity Cloud Build, including timing once the build is running."),
		mcp.WithString("project_id",
			mcp.Required(),
			mcp.Description("Unity Cloud Build project id"),
		),
		mcp.WithString("target_id",
			mcp.Required(),
			mcp.Description("Build target id"),
		),
		mcp.WithNumber("build_number",
			mcp.Required(),
			mcp.Description("Build number from trigger_build"),
		),
	)

	shareTool := mcp.NewTool("create_share_link",
		mcp.WithDescription("Create a public share link for a finished build's artifact."),
		mcp.WithString("project_id",
			mcp.Required(),
			mcp.Description("Unity Cloud Build project id"),
		),
		mcp.WithString("target_id",
			mcp.Required(),
			mcp.Description("Build target id"),
		),
		mcp.WithNumber("build_number",
			mcp.Required(),
			mcp.Description("Build number of a successful build"),
		),
	)

	targetsTool := mcp.NewTool("list_build_targets",
		mcp.WithDescription("List the build targets configured for a project."),
		mcp.WithString("project_id",
			mcp.Required(),
			mcp.Description("Unity Cloud Build project id"),
		),
	)

	s.mcpServer.AddTool(triggerTool, s.handleTriggerBuild)
	s.mcpServer.AddTool(statusTool, s.handleGetBuildStatus)
	s.mcpServer.AddTool(shareTool, s.handleCreateShareLink)
	s.mcpServer.AddTool(targetsTool, s.handleListBuildTargets)
}

// Run starts the MCP server on stdio.
func (s *Server) Run() error {
	return server.ServeStdio(s.mcpServer)
}

// buildStatusResult is the JSON payload returned by trigger_build and
// get_build_status.
type buildStatusResult struct {
	ProjectID          string  `json:"project_id"`
	TargetID           string  `json:"target_id"`
	BuildNumber        int     `json:"build_number"`
	Status             string  `json:"status"`
	Terminal           bool    `json:"terminal"`
	TotalTimeInSeconds float64 `json:"total_time_in_seconds,omitempty"`
	DownloadURL        string  `json:"download_url,omitempty"`
	Error              string  `json:"error,omitempty"`
}

func (s *Server) handleTriggerBuild(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectID := request.GetString("project_id", "")
	if projectID == "" {
		return mcp.NewToolResultError("project_id parameter is required"), nil
	}
	targetID := request.GetString("target_id", "")
	if targetID == "" {
		return mcp.NewToolResultError("target_id parameter is required"), nil
	}

	build, err := s.client.StartBuild(ctx, projectID, targetID, unitycloud.StartBuildOptions{
		Commit: request.GetString("commit", ""),
		Clean:  request.GetBool("clean", false),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("trigger failed: %v", err)), nil
	}

	return marshalResult(buildResult(projectID, targetID, build))
}

func (s *Server) handleGetBuildStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectID := request.GetString("project_id", "")
	if projectID == "" {
		return mcp.NewToolResultError("project_id parameter is required"), nil
	}
	targetID := request.GetString("target_id", "")
	if targetID == "" {
		return mcp.NewToolResultError("target_id parameter is required"), nil
	}
	buildNumber := request.GetInt("build_number", -1)
	if buildNumber < 0 {
		return mcp.NewToolResultError("build_number parameter is required"), nil
	}

	build, err := s.client.GetBuild(ctx, projectID, targetID, buildNumber)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("status fetch failed: %v", err)), nil
	}

	return marshalResult(buildResult(projectID, targetID, build))
}

func (s *Server) handleCreateShareLink(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectID := request.GetString("project_id", "")
	if projectID == "" {
		return mcp.NewToolResultError("project_id parameter is required"), nil
	}
	targetID := request.GetString("target_id", "")
	if targetID == "" {
		return mcp.NewToolResultError("target_id parameter is required"), nil
	}
	buildNumber := request.GetInt("build_number", -1)
	if buildNumber < 0 {
		return mcp.NewToolResultError("build_number parameter is required"), nil
	}

	shareURL, err := s.client.CreateShare(ctx, projectID, targetID, buildNumber)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("share creation failed: %v", err)), nil
	}

	return marshalResult(map[string]string{"share_url": shareURL})
}

func (s *Server) handleListBuildTargets(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectID := request.GetString("project_id", "")
	if projectID == "" {
		return mcp.NewToolResultError("project_id parameter is required"), nil
	}

	targets, err := s.client.ListBuildTargets(ctx, projectID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("target listing failed: %v", err)), nil
	}

	type targetItem struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Platform string `json:"platform"`
		Enabled  bool   `json:"enabled"`
	}
	items := make([]targetItem, len(targets))
	for i, t := range targets {
		items[i] = targetItem{ID: t.ID, Name: t.Name, Platform: t.Platform, Enabled: t.Enabled}
	}

	return marshalResult(items)
}

func buildResult(projectID, targetID string, build *unitycloud.Build) buildStatusResult {
	result := buildStatusResult{
		ProjectID:          projectID,
		TargetID:           targetID,
		BuildNumber:        build.Number,
		Status:             build.Status,
		Terminal:           unitycloud.IsTerminalStatus(build.Status),
		TotalTimeInSeconds: build.TotalTimeInSeconds,
		Error:              build.Error,
	}
	if build.Links.DownloadPrimary != nil {
		result.DownloadURL = build.Links.DownloadPrimary.Href
	}
	return result
}

func marshalResult(v interface{}) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal response: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}
