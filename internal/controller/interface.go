package controller

import (
	"context"

	"github.com/toyamagu-2021/gitops-sync-controller/internal/gitops"
)

//go:generate mockgen -source=interface.go -destination=mock/mock_controller.go -package=mock

// Interface defines the operator-facing contract of the sync controller.
type Interface interface {
	// Register adds an application and starts its reconciliation loop.
	Register(ctx context.Context, cfg gitops.ApplicationConfig) (*gitops.Application, error)
	// Deregister stops the application's loop and removes its state.
	Deregister(ctx context.Context, name string) error
	// Get returns a snapshot of one application.
	Get(ctx context.Context, name string) (*gitops.Application, error)
	// List returns snapshots of all registered applications.
	List(ctx context.Context) ([]*gitops.Application, error)
	// TriggerSync requests an out-of-band reconciliation pass. The second
	// return value reports whether the trigger was coalesced into an
	// already-running pass.
	TriggerSync(ctx context.Context, name string) (*gitops.Application, bool, error)
	// History returns the most recent sync results, newest first.
	History(ctx context.Context, name string, limit int) ([]gitops.SyncResult, error)
	// DesiredManifests fetches the manifest set at the latest revision,
	// regardless of the last-seen revision.
	DesiredManifests(ctx context.Context, name string) (*gitops.DesiredState, error)
}

// Ensure Controller implements Interface
var _ Interface = (*Controller)(nil)
