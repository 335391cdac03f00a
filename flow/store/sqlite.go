package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/sagaflow/flow"
	_ "modernc.org/sqlite"
)

// SQLiteStore is a durable FlowStore backed by a single SQLite file, using
// the pure-Go modernc.org/sqlite driver (no cgo). Designed for single-
// process deployments and local development persistence.
//
// Schema: one flow_checkpoints table keyed by flow_id, storing the
// checkpoint's cursor and compensation stack as JSON and its state as
// serializer output.
type SQLiteStore[S any] struct {
	db         *sql.DB
	mu         sync.Mutex
	serializer flow.Serializer
}

// NewSQLiteStore opens (creating if necessary) a SQLite-backed FlowStore at
// path. path may be ":memory:" for an ephemeral database.
func NewSQLiteStore[S any](path string, serializer flow.Serializer) (*SQLiteStore[S], error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite connection: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx := context.Background()
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	if serializer == nil {
		serializer = flow.JSONSerializer{}
	}
	s := &SQLiteStore[S]{db: db, serializer: serializer}
	if err := s.createTable(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore[S]) createTable(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS flow_checkpoints (
			flow_id TEXT PRIMARY KEY,
			cursor TEXT NOT NULL,
			comp_stack TEXT NOT NULL,
			state TEXT NOT NULL,
			schema_version INTEGER NOT NULL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func (s *SQLiteStore[S]) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore[S]) Save(ctx context.Context, flowID string, checkpoint flow.Checkpoint[S]) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cursorJSON, err := json.Marshal(checkpoint.Cursor)
	if err != nil {
		return fmt.Errorf("failed to marshal cursor: %w", err)
	}
	compJSON, err := json.Marshal(checkpoint.CompensationStack)
	if err != nil {
		return fmt.Errorf("failed to marshal compensation stack: %w", err)
	}
	stateBytes, err := s.serializer.Serialize(checkpoint.State)
	if err != nil {
		return fmt.Errorf("failed to serialize state: %w", err)
	}

	const upsert = `
		INSERT INTO flow_checkpoints (flow_id, cursor, comp_stack, state, schema_version, updated_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(flow_id) DO UPDATE SET
			cursor = excluded.cursor,
			comp_stack = excluded.comp_stack,
			state = excluded.state,
			schema_version = excluded.schema_version,
			updated_at = CURRENT_TIMESTAMP
	`
	_, err = s.db.ExecContext(ctx, upsert, flowID, string(cursorJSON), string(compJSON), stateBytes, checkpoint.SchemaVersion)
	return err
}

func (s *SQLiteStore[S]) Load(ctx context.Context, flowID string) (flow.Checkpoint[S], error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	const q = `SELECT cursor, comp_stack, state, schema_version FROM flow_checkpoints WHERE flow_id = ?`
	row := s.db.QueryRowContext(ctx, q, flowID)

	var cursorJSON, compJSON string
	var stateBytes []byte
	var schemaVersion int
	if err := row.Scan(&cursorJSON, &compJSON, &stateBytes, &schemaVersion); err != nil {
		if err == sql.ErrNoRows {
			return flow.Checkpoint[S]{}, flow.ErrCheckpointNotFound
		}
		return flow.Checkpoint[S]{}, err
	}

	var cp flow.Checkpoint[S]
	if err := json.Unmarshal([]byte(cursorJSON), &cp.Cursor); err != nil {
		return flow.Checkpoint[S]{}, fmt.Errorf("failed to unmarshal cursor: %w", err)
	}
	if err := json.Unmarshal([]byte(compJSON), &cp.CompensationStack); err != nil {
		return flow.Checkpoint[S]{}, fmt.Errorf("failed to unmarshal compensation stack: %w", err)
	}
	if err := s.serializer.Deserialize(stateBytes, &cp.State); err != nil {
		return flow.Checkpoint[S]{}, fmt.Errorf("failed to deserialize state: %w", err)
	}
	cp.FlowID = flowID
	cp.SchemaVersion = schemaVersion
	return cp, nil
}

func (s *SQLiteStore[S]) Delete(ctx context.Context, flowID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `DELETE FROM flow_checkpoints WHERE flow_id = ?`, flowID)
	return err
}

func (s *SQLiteStore[S]) List(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.QueryContext(ctx, `SELECT flow_id FROM flow_checkpoints`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
