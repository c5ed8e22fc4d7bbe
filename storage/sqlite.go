package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"agentcore/model"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps agent records in a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) agents.db in dataDir.
func NewSQLiteStore(dataDir string) (*SQLiteStore, error) {
	return OpenSQLite(filepath.Join(dataDir, "agents.db"))
}

// OpenSQLite opens the database at dsn.
func OpenSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db}

	if err := store.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS agents (
		id TEXT PRIMARY KEY,
		version INTEGER NOT NULL,
		state TEXT NOT NULL,
		updated_at DATETIME NOT NULL
	);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	if err := s.migrateSchema(); err != nil {
		return fmt.Errorf("schema migration failed: %w", err)
	}

	return nil
}

// migrateSchema adds columns introduced after the first schema.
func (s *SQLiteStore) migrateSchema() error {
	hasStatus, err := s.columnExists("agents", "status")
	if err != nil {
		return fmt.Errorf("failed to check for status column: %w", err)
	}

	if !hasStatus {
		if _, err := s.db.Exec(`ALTER TABLE agents ADD COLUMN status TEXT DEFAULT ''`); err != nil {
			return fmt.Errorf("failed to add status column: %w", err)
		}
	}

	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_agents_status ON agents(status)`)
	return err
}

// columnExists checks if a column exists in a table using PRAGMA table_info
func (s *SQLiteStore) columnExists(tableName, columnName string) (bool, error) {
	rows, err := s.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", tableName))
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid          int
			name         string
			dataType     string
			notNull      int
			defaultValue any
			pk           int
		)
		if err := rows.Scan(&cid, &name, &dataType, &notNull, &defaultValue, &pk); err != nil {
			return false, err
		}
		if name == columnName {
			return true, nil
		}
	}

	return false, rows.Err()
}

func (s *SQLiteStore) Put(ctx context.Context, st model.AgentState) error {
	data, err := encodeState(st)
	if err != nil {
		return err
	}

	query := `
	INSERT OR REPLACE INTO agents (id, version, status, state, updated_at)
	VALUES (?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query,
		st.Definition.ID,
		st.Version,
		string(st.Definition.Meta.Status),
		string(data),
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save agent %s: %w", st.Definition.ID, err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (model.AgentState, bool, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT state FROM agents WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return model.AgentState{}, false, nil
	}
	if err != nil {
		return model.AgentState{}, false, fmt.Errorf("failed to load agent %s: %w", id, err)
	}

	st, err := decodeState([]byte(data))
	if err != nil {
		return model.AgentState{}, false, err
	}
	return st, true, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM agents ORDER BY id`)
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

// ListByStatus returns the ids of records with the given lifecycle status.
func (s *SQLiteStore) ListByStatus(ctx context.Context, status model.Status) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM agents WHERE status = ? ORDER BY id`, string(status))
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

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM agents WHERE id = ?`, id)
	return err
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
