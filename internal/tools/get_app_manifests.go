package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"sigs.k8s.io/yaml"

	"github.com/toyamagu-2021/gitops-sync-controller/internal/controller"
)

// GetAppManifestsTool defines the get_application_manifests tool schema
var GetAppManifestsTool = mcp.NewTool("get_application_manifests",
	mcp.WithDescription("Fetches the manifests at the latest revision of an application's repository, without applying them."),
	mcp.WithString("name",
		mcp.Required(),
		mcp.Description("The name of the application."),
	),
)

// NewGetApplicationManifestsHandler returns the get_application_manifests
// handler bound to the controller.
func NewGetApplicationManifestsHandler(ctrl controller.Interface) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return getApplicationManifestsHandler(ctx, ctrl, request.GetString("name", ""))
	}
}

// getApplicationManifestsHandler handles the core logic for fetching
// manifests. Separated out to enable testing with mocked controllers.
func getApplicationManifestsHandler(
	ctx context.Context,
	ctrl controller.Interface,
	appName string,
) (*mcp.CallToolResult, error) {
	if appName == "" {
		return mcp.NewToolResultError("Application name is required"), nil
	}

	desired, err := ctrl.DesiredManifests(ctx, appName)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get manifests: %v", err)), nil
	}

	docs := make([]string, 0, len(desired.Resources)+1)
	docs = append(docs, fmt.Sprintf("# revision: %s", desired.Revision))
	for _, obj := range desired.Resources {
		data, err := yaml.Marshal(obj.Object)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to format manifest: %v", err)), nil
		}
		docs = append(docs, string(data))
	}

	return mcp.NewToolResultText(strings.Join(docs, "\n---\n")), nil
}
