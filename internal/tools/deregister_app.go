package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/toyamagu-2021/gitops-sync-controller/internal/controller"
)

// DeregisterAppTool defines the deregister_application tool schema
var DeregisterAppTool = mcp.NewTool("deregister_application",
	mcp.WithDescription("Stops an application's reconciliation loop and removes its state. Cluster resources are left untouched."),
	mcp.WithString("name",
		mcp.Required(),
		mcp.Description("The name of the application to deregister."),
	),
)

// NewDeregisterApplicationHandler returns the deregister_application handler
// bound to the controller.
func NewDeregisterApplicationHandler(ctrl controller.Interface) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return deregisterApplicationHandler(ctx, ctrl, request.GetString("name", ""))
	}
}

// deregisterApplicationHandler handles the core logic for deregistering an
// application. Separated out to enable testing with mocked controllers.
func deregisterApplicationHandler(
	ctx context.Context,
	ctrl controller.Interface,
	appName string,
) (*mcp.CallToolResult, error) {
	if appName == "" {
		return mcp.NewToolResultError("Application name is required"), nil
	}

	if err := ctrl.Deregister(ctx, appName); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to deregister application: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Application '%s' deregistered successfully", appName)), nil
}
