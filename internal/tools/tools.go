package tools

import (
	"github.com/mark3labs/mcp-go/server"
	"github.com/toyamagu-2021/gitops-sync-controller/internal/controller"
)

// RegisterAll registers all defined tools with the MCP server
func RegisterAll(s *server.MCPServer, ctrl controller.Interface) {
	// Register register_application tool
	s.AddTool(RegisterAppTool, NewRegisterApplicationHandler(ctrl))

	// Register deregister_application tool
	s.AddTool(DeregisterAppTool, NewDeregisterApplicationHandler(ctrl))

	// Register get_application tool
	s.AddTool(GetAppTool, NewGetApplicationHandler(ctrl))

	// Register list_application tool
	s.AddTool(ListAppsTool, NewListApplicationsHandler(ctrl))

	// Register sync_application tool
	s.AddTool(SyncAppTool, NewSyncApplicationHandler(ctrl))

	// Register get_sync_history tool
	s.AddTool(GetSyncHistoryTool, NewGetSyncHistoryHandler(ctrl))

	// Register get_application_manifests tool
	s.AddTool(GetAppManifestsTool, NewGetApplicationManifestsHandler(ctrl))
}
