package graph

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Store persists graphs to SQLite. Rows are keyed by the graph's natural
// IDs and written with upserts, so saving an unchanged graph leaves row
// counts unchanged.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database at dbPath with WAL mode enabled.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates the node and edge tables. Idempotent.
func (s *Store) Migrate() error {
	_, err := s.db.Exec(schemaDDL)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS nodes (
  id         TEXT PRIMARY KEY,
  type       TEXT NOT NULL,
  attrs      TEXT NOT NULL DEFAULT '{}',
  updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS edges (
  id         TEXT PRIMARY KEY,
  type       TEXT NOT NULL,
  source_id  TEXT NOT NULL REFERENCES nodes(id),
  target_id  TEXT NOT NULL,
  updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_nodes_type ON nodes(type);
CREATE INDEX IF NOT EXISTS idx_edges_source ON edges(source_id);
CREATE INDEX IF NOT EXISTS idx_edges_target ON edges(target_id);
`

// Save upserts every node and edge of the graph in one transaction.
func (s *Store) Save(g *Graph) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	nodeStmt, err := tx.Prepare(`
		INSERT INTO nodes (id, type, attrs, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
		  type = excluded.type,
		  attrs = excluded.attrs,
		  updated_at = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("prepare node upsert: %w", err)
	}
	defer nodeStmt.Close()

	for _, n := range g.Nodes() {
		if _, err := nodeStmt.Exec(n.ID, string(n.Type), encodeAttrs(n.Attrs)); err != nil {
			return fmt.Errorf("upsert node %s: %w", n.ID, err)
		}
	}

	edgeStmt, err := tx.Prepare(`
		INSERT INTO edges (id, type, source_id, target_id, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
		  type = excluded.type,
		  source_id = excluded.source_id,
		  target_id = excluded.target_id,
		  updated_at = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("prepare edge upsert: %w", err)
	}
	defer edgeStmt.Close()

	for _, e := range g.Edges() {
		if _, err := edgeStmt.Exec(e.ID, string(e.Type), e.SourceID, e.TargetID); err != nil {
			return fmt.Errorf("upsert edge %s: %w", e.ID, err)
		}
	}

	return tx.Commit()
}

// encodeAttrs serializes node attributes. json.Marshal sorts map keys, so
// equal attribute sets always encode identically.
func encodeAttrs(attrs map[string]string) string {
	if len(attrs) == 0 {
		return "{}"
	}
	data, err := json.Marshal(attrs)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// Counts returns the persisted node and edge row counts.
func (s *Store) Counts() (nodes, edges int, err error) {
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM nodes`).Scan(&nodes); err != nil {
		return 0, 0, fmt.Errorf("count nodes: %w", err)
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM edges`).Scan(&edges); err != nil {
		return 0, 0, fmt.Errorf("count edges: %w", err)
	}
	return nodes, edges, nil
}
