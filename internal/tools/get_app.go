package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/toyamagu-2021/gitops-sync-controller/internal/controller"
)

// GetAppTool defines the get_application tool schema
var GetAppTool = mcp.NewTool("get_application",
	mcp.WithDescription("Retrieves one registered application: configuration, sync status, last seen revision, and last successful sync time."),
	mcp.WithString("name",
		mcp.Required(),
		mcp.Description("The name of the application to retrieve."),
	),
)

// NewGetApplicationHandler returns the get_application handler bound to the
// controller.
func NewGetApplicationHandler(ctrl controller.Interface) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return getApplicationHandler(ctx, ctrl, request.GetString("name", ""))
	}
}

// getApplicationHandler handles the core logic for retrieving an application.
// Separated out to enable testing with mocked controllers.
func getApplicationHandler(
	ctx context.Context,
	ctrl controller.Interface,
	appName string,
) (*mcp.CallToolResult, error) {
	if appName == "" {
		return mcp.NewToolResultError("Application name is required"), nil
	}

	app, err := ctrl.Get(ctx, appName)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get application: %v", err)), nil
	}

	jsonData, err := json.MarshalIndent(app, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to format response: %v", err)), nil
	}

	return mcp.NewToolResultText(string(jsonData)), nil
}
