package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/toyamagu-2021/gitops-sync-controller/internal/gitops"
)

// PostgresStore persists controller state in postgres. The schema is created
// on startup if missing.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(connStr string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	store := &PostgresStore{db: db}

	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *PostgresStore) initSchema() error {
	schema := `
	-- Registered applications, including controller-maintained state
	CREATE TABLE IF NOT EXISTS applications (
		name TEXT PRIMARY KEY,
		body JSONB NOT NULL,
		updated_at TIMESTAMP DEFAULT NOW()
	);

	-- Sync history: append-only, pruned to each application's history depth
	CREATE TABLE IF NOT EXISTS sync_results (
		id SERIAL PRIMARY KEY,
		app_name TEXT NOT NULL,
		revision TEXT NOT NULL,
		phase TEXT NOT NULL,
		body JSONB NOT NULL,
		finished_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sync_results_app ON sync_results(app_name, id DESC);

	-- Prior-applied resource set per application
	CREATE TABLE IF NOT EXISTS applied_sets (
		app_name TEXT PRIMARY KEY,
		refs JSONB NOT NULL,
		updated_at TIMESTAMP DEFAULT NOW()
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *PostgresStore) SaveApplication(app *gitops.Application) error {
	body, err := json.Marshal(app)
	if err != nil {
		return fmt.Errorf("failed to marshal application: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO applications (name, body)
		VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET
			body = EXCLUDED.body,
			updated_at = NOW()
	`, app.Name(), body)
	if err != nil {
		return fmt.Errorf("failed to upsert application: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteApplication(name string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, q := range []string{
		`DELETE FROM applications WHERE name = $1`,
		`DELETE FROM sync_results WHERE app_name = $1`,
		`DELETE FROM applied_sets WHERE app_name = $1`,
	} {
		if _, err := tx.Exec(q, name); err != nil {
			return fmt.Errorf("failed to delete application state: %w", err)
		}
	}

	return tx.Commit()
}

func (s *PostgresStore) ListApplications() ([]*gitops.Application, error) {
	rows, err := s.db.Query(`SELECT body FROM applications ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var apps []*gitops.Application
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		var app gitops.Application
		if err := json.Unmarshal(body, &app); err != nil {
			return nil, fmt.Errorf("failed to unmarshal application: %w", err)
		}
		apps = append(apps, &app)
	}
	return apps, rows.Err()
}

func (s *PostgresStore) RecordResult(appName string, result gitops.SyncResult, historyDepth int) error {
	body, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal sync result: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO sync_results (app_name, revision, phase, body, finished_at)
		VALUES ($1, $2, $3, $4, $5)
	`, appName, result.Revision, string(result.Phase), body, result.FinishedAt)
	if err != nil {
		return fmt.Errorf("failed to insert sync result: %w", err)
	}

	if historyDepth > 0 {
		_, err = tx.Exec(`
			DELETE FROM sync_results
			WHERE app_name = $1 AND id NOT IN (
				SELECT id FROM sync_results
				WHERE app_name = $1
				ORDER BY id DESC
				LIMIT $2
			)
		`, appName, historyDepth)
		if err != nil {
			return fmt.Errorf("failed to prune sync history: %w", err)
		}
	}

	return tx.Commit()
}

func (s *PostgresStore) History(appName string, limit int) ([]gitops.SyncResult, error) {
	if limit <= 0 {
		limit = gitops.DefaultHistoryDepth
	}
	rows, err := s.db.Query(`
		SELECT body FROM sync_results
		WHERE app_name = $1
		ORDER BY id DESC
		LIMIT $2
	`, appName, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []gitops.SyncResult
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		var result gitops.SyncResult
		if err := json.Unmarshal(body, &result); err != nil {
			return nil, fmt.Errorf("failed to unmarshal sync result: %w", err)
		}
		results = append(results, result)
	}
	return results, rows.Err()
}

func (s *PostgresStore) SaveAppliedSet(appName string, refs []gitops.ResourceRef) error {
	body, err := json.Marshal(refs)
	if err != nil {
		return fmt.Errorf("failed to marshal applied set: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO applied_sets (app_name, refs)
		VALUES ($1, $2)
		ON CONFLICT (app_name) DO UPDATE SET
			refs = EXCLUDED.refs,
			updated_at = NOW()
	`, appName, body)
	if err != nil {
		return fmt.Errorf("failed to upsert applied set: %w", err)
	}
	return nil
}

func (s *PostgresStore) AppliedSet(appName string) ([]gitops.ResourceRef, error) {
	var body []byte
	err := s.db.QueryRow(`SELECT refs FROM applied_sets WHERE app_name = $1`, appName).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var refs []gitops.ResourceRef
	if err := json.Unmarshal(body, &refs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal applied set: %w", err)
	}
	return refs, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Ping checks the database connection
func (s *PostgresStore) Ping() error {
	return s.db.Ping()
}

var _ StateStore = (*PostgresStore)(nil)
var _ StateStore = (*MemoryStore)(nil)
