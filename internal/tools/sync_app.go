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

// SyncAppTool defines the sync_application tool schema
var SyncAppTool = mcp.NewTool("sync_application",
	mcp.WithDescription("Triggers an immediate reconciliation pass for an application. Triggers arriving while a pass is already running are coalesced."),
	mcp.WithString("name",
		mcp.Required(),
		mcp.Description("The name of the application to sync."),
	),
)

// syncResponse is the sync_application tool response body.
type syncResponse struct {
	Application *gitops.Application `json:"application"`
	Coalesced   bool                `json:"coalesced"`
}

// NewSyncApplicationHandler returns the sync_application handler bound to
// the controller.
func NewSyncApplicationHandler(ctrl controller.Interface) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return syncApplicationHandler(ctx, ctrl, request.GetString("name", ""))
	}
}

// syncApplicationHandler handles the core logic for triggering a sync.
// Separated out to enable testing with mocked controllers.
func syncApplicationHandler(
	ctx context.Context,
	ctrl controller.Interface,
	appName string,
) (*mcp.CallToolResult, error) {
	if appName == "" {
		return mcp.NewToolResultError("Application name is required"), nil
	}

	app, coalesced, err := ctrl.TriggerSync(ctx, appName)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to sync application: %v", err)), nil
	}

	jsonData, err := json.MarshalIndent(syncResponse{Application: app, Coalesced: coalesced}, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to format response: %v", err)), nil
	}

	return mcp.NewToolResultText(string(jsonData)), nil
}
