package main

import (
	"context"
	"os"
	"time"

	mcp_server "github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"

	"github.com/toyamagu-2021/gitops-sync-controller/internal/cluster"
	"github.com/toyamagu-2021/gitops-sync-controller/internal/controller"
	"github.com/toyamagu-2021/gitops-sync-controller/internal/executor"
	"github.com/toyamagu-2021/gitops-sync-controller/internal/logging"
	"github.com/toyamagu-2021/gitops-sync-controller/internal/metrics"
	"github.com/toyamagu-2021/gitops-sync-controller/internal/server"
	"github.com/toyamagu-2021/gitops-sync-controller/internal/store"
	"github.com/toyamagu-2021/gitops-sync-controller/internal/tools"
	"github.com/toyamagu-2021/gitops-sync-controller/internal/watcher"
)

func main() {
	log := logging.GetLogger()

	// Log startup
	log.WithFields(logrus.Fields{
		"version": "1.0.0",
		"pid":     os.Getpid(),
	}).Info("Starting GitOps Sync Controller")

	// 1. State store: Postgres when DATABASE_URL is set, in-memory otherwise
	var st store.StateStore
	if connStr := os.Getenv("DATABASE_URL"); connStr != "" {
		pg, err := store.NewPostgresStore(connStr)
		if err != nil {
			log.WithError(err).Fatal("Failed to connect to database")
		}
		st = pg
		log.Info("Using Postgres state store")
	} else {
		st = store.NewMemoryStore()
		log.Info("DATABASE_URL not set, using in-memory state store")
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.WithError(err).Warn("Failed to close state store")
		}
	}()

	// 2. Cluster client from kubeconfig
	kubeconfig := os.Getenv("GITOPS_KUBECONFIG")
	if kubeconfig == "" {
		kubeconfig = os.Getenv("KUBECONFIG")
	}
	client, err := cluster.New(kubeconfig)
	if err != nil {
		log.WithError(err).Fatal("Failed to build Kubernetes client")
	}

	// 3. Reconciliation stages
	poller := watcher.New(watcher.NewGitSource())
	reader := cluster.NewReader(client)
	applier := executor.New(client)

	ctrl := controller.New(poller, reader, applier, st, controller.Options{
		FetchTimeout: envDuration(log, "GITOPS_FETCH_TIMEOUT"),
		ReadTimeout:  envDuration(log, "GITOPS_READ_TIMEOUT"),
		ApplyTimeout: envDuration(log, "GITOPS_APPLY_TIMEOUT"),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := ctrl.Start(ctx); err != nil {
		log.WithError(err).Fatal("Failed to start controller")
	}

	// 4. Metrics endpoint
	if addr := os.Getenv("METRICS_ADDR"); addr != "" {
		go func() {
			log.WithField("addr", addr).Info("Serving metrics")
			if err := metrics.Serve(addr); err != nil {
				log.WithError(err).Error("Metrics server stopped")
			}
		}()
	}

	// 5. MCP server over stdio
	log.Debug("Creating MCP server instance")
	s := server.New()

	log.Debug("Registering tools")
	tools.RegisterAll(s, ctrl)
	log.Info("All tools registered successfully")

	log.Info("GitOps Sync Controller started. Waiting for requests on stdin...")
	if err := mcp_server.ServeStdio(s); err != nil {
		log.WithError(err).Fatal("Server error")
	}

	cancel()
	ctrl.Wait()
}

// envDuration reads a duration env var, tolerating absence. A malformed
// value falls back to the default rather than aborting startup.
func envDuration(log *logrus.Logger, key string) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return 0
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		log.WithField("key", key).WithField("value", raw).Warn("Invalid duration, using default")
		return 0
	}
	return d
}
