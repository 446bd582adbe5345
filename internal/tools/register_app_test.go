package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/toyamagu-2021/gitops-sync-controller/internal/controller/mock"
	apperrors "github.com/toyamagu-2021/gitops-sync-controller/internal/errors"
	"github.com/toyamagu-2021/gitops-sync-controller/internal/gitops"
)

func TestRegisterAppTool_Schema(t *testing.T) {
	// Verify tool is properly defined
	if RegisterAppTool.Name != "register_application" {
		t.Errorf("Expected tool name 'register_application', got %s", RegisterAppTool.Name)
	}

	// Verify tool has description
	if RegisterAppTool.Description == "" {
		t.Error("Tool description should not be empty")
	}

	// Check input schema exists
	if RegisterAppTool.InputSchema.Type != "object" {
		t.Errorf("Expected schema type 'object', got %s", RegisterAppTool.InputSchema.Type)
	}

	// Check that we have properties defined
	if RegisterAppTool.InputSchema.Properties == nil || len(RegisterAppTool.InputSchema.Properties) == 0 {
		t.Error("Tool should have properties defined")
	}

	// Check that we have required fields defined
	if RegisterAppTool.InputSchema.Required == nil || len(RegisterAppTool.InputSchema.Required) == 0 {
		t.Error("Tool should have required fields defined (name and repo_url)")
	}
}

func TestRegisterApplicationHandler(t *testing.T) {
	tests := []struct {
		name        string
		cfg         gitops.ApplicationConfig
		setupMock   func(*mock.MockInterface)
		wantMessage string
		checkApp    func(*testing.T, *gitops.Application)
	}{
		{
			name: "successful registration",
			cfg: gitops.ApplicationConfig{
				Name:       "guestbook",
				RepoURL:    "https://example.com/manifests.git",
				SyncPolicy: gitops.SyncPolicyAutomatic,
			},
			setupMock: func(m *mock.MockInterface) {
				cfg := gitops.ApplicationConfig{
					Name:       "guestbook",
					RepoURL:    "https://example.com/manifests.git",
					SyncPolicy: gitops.SyncPolicyAutomatic,
				}
				registered := cfg
				registered.ApplyDefaults()
				m.EXPECT().Register(gomock.Any(), cfg).Return(&gitops.Application{
					Config: registered,
					Status: gitops.SyncStatusUnknown,
				}, nil)
			},
			checkApp: func(t *testing.T, app *gitops.Application) {
				assert.Equal(t, "guestbook", app.Name())
				assert.Equal(t, gitops.DefaultRevision, app.Config.Revision)
				assert.Equal(t, gitops.SyncStatusUnknown, app.Status)
			},
		},
		{
			name:        "missing application name",
			cfg:         gitops.ApplicationConfig{RepoURL: "https://example.com/r.git"},
			setupMock:   func(m *mock.MockInterface) {},
			wantMessage: "Application name is required",
		},
		{
			name:        "missing repository URL",
			cfg:         gitops.ApplicationConfig{Name: "guestbook"},
			setupMock:   func(m *mock.MockInterface) {},
			wantMessage: "Repository URL is required",
		},
		{
			name: "duplicate registration",
			cfg: gitops.ApplicationConfig{
				Name:    "guestbook",
				RepoURL: "https://example.com/manifests.git",
			},
			setupMock: func(m *mock.MockInterface) {
				m.EXPECT().Register(gomock.Any(), gomock.Any()).Return(nil,
					apperrors.NewValidationError("application already registered", nil))
			},
			wantMessage: "Failed to register application",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			mockCtrl := mock.NewMockInterface(ctrl)
			tt.setupMock(mockCtrl)

			result, err := registerApplicationHandler(context.Background(), mockCtrl, tt.cfg)
			require.NoError(t, err)
			require.NotNil(t, result)

			require.Len(t, result.Content, 1)
			textContent, ok := mcp.AsTextContent(result.Content[0])
			require.True(t, ok)

			if tt.wantMessage != "" {
				assert.True(t, result.IsError)
				assert.Contains(t, textContent.Text, tt.wantMessage)
				return
			}

			var app gitops.Application
			require.NoError(t, json.Unmarshal([]byte(textContent.Text), &app))
			tt.checkApp(t, &app)
		})
	}
}
