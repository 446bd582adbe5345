package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/toyamagu-2021/gitops-sync-controller/internal/controller"
)

// ListAppsTool defines the list_application tool schema
var ListAppsTool = mcp.NewTool("list_application",
	mcp.WithDescription("Lists all registered applications with their current sync status."),
)

// NewListApplicationsHandler returns the list_application handler bound to
// the controller.
func NewListApplicationsHandler(ctrl controller.Interface) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return listApplicationsHandler(ctx, ctrl)
	}
}

// listApplicationsHandler handles the core logic for listing applications.
// Separated out to enable testing with mocked controllers.
func listApplicationsHandler(ctx context.Context, ctrl controller.Interface) (*mcp.CallToolResult, error) {
	apps, err := ctrl.List(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list applications: %v", err)), nil
	}

	jsonData, err := json.MarshalIndent(apps, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to format response: %v", err)), nil
	}

	return mcp.NewToolResultText(string(jsonData)), nil
}
