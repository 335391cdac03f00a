package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/sagaflow/flow"
	_ "github.com/go-sql-driver/mysql"
)

// MySQLStore is a MySQL/MariaDB-backed FlowStore, for production deployments
// with multiple workers and long-running flows that must survive process
// restarts. Connection pooling and upserts keep Save idempotent across
// retries.
//
// Schema: one flow_checkpoints table keyed by flow_id.
type MySQLStore[S any] struct {
	db         *sql.DB
	mu         sync.RWMutex
	closed     bool
	serializer flow.Serializer
}

// NewMySQLStore opens a MySQL-backed FlowStore using dsn, in the
// go-sql-driver/mysql DSN format:
//
//	user:password@tcp(host:3306)/dbname?parseTime=true
func NewMySQLStore[S any](dsn string, serializer flow.Serializer) (*MySQLStore[S], error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL connection: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	if serializer == nil {
		serializer = flow.JSONSerializer{}
	}
	store := &MySQLStore[S]{db: db, serializer: serializer}
	if err := store.createTable(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return store, nil
}

func (m *MySQLStore[S]) createTable(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS flow_checkpoints (
			flow_id VARCHAR(255) NOT NULL PRIMARY KEY,
			cursor JSON NOT NULL,
			comp_stack JSON NOT NULL,
			state JSON NOT NULL,
			schema_version INT NOT NULL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci
	`
	_, err := m.db.ExecContext(ctx, schema)
	return err
}

// Close closes the underlying connection pool. Safe to call more than once.
func (m *MySQLStore[S]) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	return m.db.Close()
}

func (m *MySQLStore[S]) Save(ctx context.Context, flowID string, checkpoint flow.Checkpoint[S]) error {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return fmt.Errorf("store is closed")
	}
	m.mu.RUnlock()

	cursorJSON, err := json.Marshal(checkpoint.Cursor)
	if err != nil {
		return fmt.Errorf("failed to marshal cursor: %w", err)
	}
	compJSON, err := json.Marshal(checkpoint.CompensationStack)
	if err != nil {
		return fmt.Errorf("failed to marshal compensation stack: %w", err)
	}
	stateBytes, err := m.serializer.Serialize(checkpoint.State)
	if err != nil {
		return fmt.Errorf("failed to serialize state: %w", err)
	}

	const upsert = `
		INSERT INTO flow_checkpoints (flow_id, cursor, comp_stack, state, schema_version)
		VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			cursor = VALUES(cursor),
			comp_stack = VALUES(comp_stack),
			state = VALUES(state),
			schema_version = VALUES(schema_version)
	`
	_, err = m.db.ExecContext(ctx, upsert, flowID, cursorJSON, compJSON, stateBytes, checkpoint.SchemaVersion)
	if err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

func (m *MySQLStore[S]) Load(ctx context.Context, flowID string) (flow.Checkpoint[S], error) {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return flow.Checkpoint[S]{}, fmt.Errorf("store is closed")
	}
	m.mu.RUnlock()

	const q = `SELECT cursor, comp_stack, state, schema_version FROM flow_checkpoints WHERE flow_id = ?`
	row := m.db.QueryRowContext(ctx, q, flowID)

	var cursorJSON, compJSON, stateJSON []byte
	var schemaVersion int
	if err := row.Scan(&cursorJSON, &compJSON, &stateJSON, &schemaVersion); err != nil {
		if err == sql.ErrNoRows {
			return flow.Checkpoint[S]{}, flow.ErrCheckpointNotFound
		}
		return flow.Checkpoint[S]{}, fmt.Errorf("failed to load checkpoint: %w", err)
	}

	var cp flow.Checkpoint[S]
	if err := json.Unmarshal(cursorJSON, &cp.Cursor); err != nil {
		return flow.Checkpoint[S]{}, fmt.Errorf("failed to unmarshal cursor: %w", err)
	}
	if err := json.Unmarshal(compJSON, &cp.CompensationStack); err != nil {
		return flow.Checkpoint[S]{}, fmt.Errorf("failed to unmarshal compensation stack: %w", err)
	}
	if err := m.serializer.Deserialize(stateJSON, &cp.State); err != nil {
		return flow.Checkpoint[S]{}, fmt.Errorf("failed to deserialize state: %w", err)
	}
	cp.FlowID = flowID
	cp.SchemaVersion = schemaVersion
	return cp, nil
}

func (m *MySQLStore[S]) Delete(ctx context.Context, flowID string) error {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return fmt.Errorf("store is closed")
	}
	m.mu.RUnlock()

	_, err := m.db.ExecContext(ctx, `DELETE FROM flow_checkpoints WHERE flow_id = ?`, flowID)
	if err != nil {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	return nil
}

func (m *MySQLStore[S]) List(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return nil, fmt.Errorf("store is closed")
	}
	m.mu.RUnlock()

	rows, err := m.db.QueryContext(ctx, `SELECT flow_id FROM flow_checkpoints`)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan flow_id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
