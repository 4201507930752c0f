// Package store provides the SQLite-backed project and event stores used by
// the standalone binary. The pipeline itself depends only on the interfaces
// in pkg/pipeline, so deployments can substitute their own persistence.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/armorclaw/catcher/pkg/event"
)

// Store persists projects and error events in one SQLite database.
type Store struct {
	db   *sql.DB
	path string
}

// Config configures the store.
type Config struct {
	Path string // Path to the SQLite database file
}

// Open opens (creating if needed) the database and runs migrations.
func Open(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, errors.New("store path is required")
	}

	dir := filepath.Dir(cfg.Path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	db, err := sql.Open("sqlite", cfg.Path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db, path: cfg.Path}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS projects (
			id     TEXT PRIMARY KEY,
			token  TEXT NOT NULL UNIQUE,
			name   TEXT NOT NULL DEFAULT ''
		);

		CREATE TABLE IF NOT EXISTS events (
			id          TEXT PRIMARY KEY,
			project_id  TEXT NOT NULL,
			type        TEXT NOT NULL,
			tag         TEXT NOT NULL,
			message     TEXT NOT NULL,
			group_hash  TEXT NOT NULL,
			time        INTEGER NOT NULL,
			event_json  TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_events_project ON events(project_id);
		CREATE INDEX IF NOT EXISTS idx_events_group ON events(project_id, group_hash);
		CREATE INDEX IF NOT EXISTS idx_events_time ON events(time);
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// AddProject registers a project. Token collisions are rejected by the
// unique index.
func (s *Store) AddProject(ctx context.Context, project *event.Project) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO projects (id, token, name) VALUES (?, ?, ?)`,
		project.ID, project.Token, project.Name)
	if err != nil {
		return fmt.Errorf("failed to insert project: %w", err)
	}
	return nil
}

// GetByToken resolves a project token. Returns (nil, nil) when the token is
// unknown, which the pipeline maps to an access denial.
func (s *Store) GetByToken(ctx context.Context, token string) (*event.Project, error) {
	var p event.Project
	err := s.db.QueryRowContext(ctx,
		`SELECT id, token, name FROM projects WHERE token = ?`, token).
		Scan(&p.ID, &p.Token, &p.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query project: %w", err)
	}
	return &p, nil
}

// Add persists one composed event. The full record is stored as JSON next
// to the columns dashboards group and filter by.
func (s *Store) Add(ctx context.Context, projectID string, ev *event.ErrorEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to serialize event: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO events (id, project_id, type, tag, message, group_hash, time, event_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, projectID, string(ev.Type), ev.Tag, ev.Message, ev.GroupHash, ev.Time, string(body))
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

// Recent returns up to limit events for a project, newest first.
func (s *Store) Recent(ctx context.Context, projectID string, limit int) ([]*event.ErrorEvent, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT event_json FROM events WHERE project_id = ? ORDER BY time DESC, id LIMIT ?`,
		projectID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var out []*event.ErrorEvent
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}

		var ev event.ErrorEvent
		if err := json.Unmarshal([]byte(body), &ev); err != nil {
			return nil, fmt.Errorf("failed to decode event: %w", err)
		}
		out = append(out, &ev)
	}
	return out, rows.Err()
}

// GroupCount returns how many occurrences a group has for a project.
func (s *Store) GroupCount(ctx context.Context, projectID, groupHash string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM events WHERE project_id = ? AND group_hash = ?`,
		projectID, groupHash).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count group: %w", err)
	}
	return n, nil
}
