package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/toyamagu-2021/gitops-sync-controller/internal/controller"
)

// GetSyncHistoryTool defines the get_sync_history tool schema
var GetSyncHistoryTool = mcp.NewTool("get_sync_history",
	mcp.WithDescription("Retrieves recent reconciliation results for an application, newest first."),
	mcp.WithString("name",
		mcp.Required(),
		mcp.Description("The name of the application."),
	),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of results to return (default: all retained results)."),
	),
)

// NewGetSyncHistoryHandler returns the get_sync_history handler bound to the
// controller.
func NewGetSyncHistoryHandler(ctrl controller.Interface) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return getSyncHistoryHandler(ctx, ctrl, request.GetString("name", ""), request.GetInt("limit", 0))
	}
}

// getSyncHistoryHandler handles the core logic for retrieving sync history.
// Separated out to enable testing with mocked controllers.
func getSyncHistoryHandler(
	ctx context.Context,
	ctrl controller.Interface,
	appName string,
	limit int,
) (*mcp.CallToolResult, error) {
	if appName == "" {
		return mcp.NewToolResultError("Application name is required"), nil
	}

	history, err := ctrl.History(ctx, appName, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get sync history: %v", err)), nil
	}

	jsonData, err := json.MarshalIndent(history, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to format response: %v", err)), nil
	}

	return mcp.NewToolResultText(string(jsonData)), nil
}
