package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/toyamagu-2021/gitops-sync-controller/internal/controller"
	"github.com/toyamagu-2021/gitops-sync-controller/internal/gitops"
)

// RegisterAppTool defines the register_application tool schema
var RegisterAppTool = mcp.NewTool("register_application",
	mcp.WithDescription("Registers an application and starts its reconciliation loop."),
	mcp.WithString("name",
		mcp.Required(),
		mcp.Description("Unique name for the application."),
	),
	mcp.WithString("repo_url",
		mcp.Required(),
		mcp.Description("Git repository URL holding the manifests."),
	),
	mcp.WithString("repo_path",
		mcp.Description("Path within the repository to read manifests from (default: repository root)."),
	),
	mcp.WithString("revision",
		mcp.Description("Branch, tag, or commit to track (default: main)."),
	),
	mcp.WithString("target_namespace",
		mcp.Description("Namespace applied to namespaced manifests that omit one."),
	),
	mcp.WithString("sync_policy",
		mcp.Description("Either 'automatic' (reconcile on a schedule) or 'manual' (reconcile only on sync_application). Default: automatic."),
	),
	mcp.WithNumber("poll_interval_seconds",
		mcp.Description("Seconds between automatic polls (default: 180)."),
	),
	mcp.WithNumber("retry_bound",
		mcp.Description("Attempts per patch before the pass aborts (default: 3)."),
	),
	mcp.WithNumber("history_depth",
		mcp.Description("Number of sync results retained per application (default: 20)."),
	),
)

// NewRegisterApplicationHandler returns the register_application handler
// bound to the controller.
func NewRegisterApplicationHandler(ctrl controller.Interface) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		cfg := gitops.ApplicationConfig{
			Name:                request.GetString("name", ""),
			RepoURL:             request.GetString("repo_url", ""),
			RepoPath:            request.GetString("repo_path", ""),
			Revision:            request.GetString("revision", ""),
			TargetNamespace:     request.GetString("target_namespace", ""),
			SyncPolicy:          gitops.SyncPolicy(request.GetString("sync_policy", "")),
			PollIntervalSeconds: request.GetInt("poll_interval_seconds", 0),
			RetryBound:          request.GetInt("retry_bound", 0),
			HistoryDepth:        request.GetInt("history_depth", 0),
		}
		return registerApplicationHandler(ctx, ctrl, cfg)
	}
}

// registerApplicationHandler handles the core logic for registering an
// application. Separated out to enable testing with mocked controllers.
func registerApplicationHandler(
	ctx context.Context,
	ctrl controller.Interface,
	cfg gitops.ApplicationConfig,
) (*mcp.CallToolResult, error) {
	if cfg.Name == "" {
		return mcp.NewToolResultError("Application name is required"), nil
	}
	if cfg.RepoURL == "" {
		return mcp.NewToolResultError("Repository URL is required"), nil
	}

	app, err := ctrl.Register(ctx, cfg)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to register application: %v", err)), nil
	}

	jsonData, err := json.MarshalIndent(app, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to format response: %v", err)), nil
	}

	return mcp.NewToolResultText(string(jsonData)), nil
}
