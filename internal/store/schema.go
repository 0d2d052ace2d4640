package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// entitySep joins/splits the ordered entity sequence within the single
// `entities` TEXT column that both the chunks table and its FTS5 mirror
// share. U+001F (unit separator) never appears in indexed markdown text.
const entitySep = "\x1f"

func encodeEntities(entities []string) string {
	out := ""
	for i, e := range entities {
		if i > 0 {
			out += entitySep
		}
		out += e
	}
	return out
}

func decodeEntities(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == entitySep[0] {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}

const schemaVersionTable = `
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TEXT NOT NULL
);
`

// migrations is an ordered list of schema migrations. Never modify an
// existing entry — only append.
var migrations = []func(*sql.Tx) error{
	migrateV0,
}

func migrateV0(tx *sql.Tx) error {
	schema := `
CREATE TABLE IF NOT EXISTS chunks (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    file_path TEXT NOT NULL,
    heading TEXT DEFAULT '',
    content TEXT NOT NULL,
    line_start INTEGER NOT NULL,
    line_end INTEGER NOT NULL,
    entities TEXT DEFAULT '',
    chunk_type TEXT NOT NULL DEFAULT 'raw',
    confidence REAL NOT NULL DEFAULT 1.0,
    created_at TEXT NOT NULL,
    indexed_at TEXT NOT NULL,
    file_weight REAL NOT NULL DEFAULT 1.0,
    access_count INTEGER NOT NULL DEFAULT 0,
    last_accessed TEXT,
    stale INTEGER NOT NULL DEFAULT 0,
    embedding BLOB
);
CREATE INDEX IF NOT EXISTS idx_chunks_file_path ON chunks(file_path);
CREATE INDEX IF NOT EXISTS idx_chunks_created_at ON chunks(created_at);
CREATE INDEX IF NOT EXISTS idx_chunks_stale ON chunks(stale);
CREATE INDEX IF NOT EXISTS idx_chunks_chunk_type ON chunks(chunk_type);

CREATE TABLE IF NOT EXISTS files (
    file_path TEXT PRIMARY KEY,
    mtime_ms INTEGER NOT NULL,
    chunk_count INTEGER NOT NULL DEFAULT 0,
    indexed_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS contradictions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    chunk_id_old INTEGER NOT NULL,
    chunk_id_new INTEGER NOT NULL,
    reason TEXT NOT NULL,
    resolved INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL,
    UNIQUE(chunk_id_old, chunk_id_new)
);

CREATE TABLE IF NOT EXISTS archived_chunks (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    orig_chunk_id INTEGER NOT NULL,
    file_path TEXT NOT NULL,
    heading TEXT DEFAULT '',
    content TEXT NOT NULL,
    line_start INTEGER NOT NULL,
    line_end INTEGER NOT NULL,
    entities TEXT DEFAULT '',
    chunk_type TEXT NOT NULL,
    confidence REAL NOT NULL,
    created_at TEXT NOT NULL,
    indexed_at TEXT NOT NULL,
    file_weight REAL NOT NULL,
    access_count INTEGER NOT NULL,
    last_accessed TEXT,
    archived_at TEXT NOT NULL,
    archive_reason TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS entity_index (
    entity TEXT PRIMARY KEY,
    chunk_ids TEXT NOT NULL DEFAULT '',
    co_entities TEXT NOT NULL DEFAULT '{}',
    mention_count INTEGER NOT NULL DEFAULT 0,
    last_seen TEXT
);

-- FTS5 mirror of (content, heading, entities), keyed to chunks.id. The
-- tokenizer keeps '@' and '#' attached to the following word so @entity
-- tokens and bold-span entities remain matchable as whole terms.
CREATE VIRTUAL TABLE IF NOT EXISTS chunks_fts USING fts5(
    content, heading, entities,
    content='chunks', content_rowid='id',
    tokenize="unicode61 tokenchars '@#_'"
);

CREATE TRIGGER IF NOT EXISTS chunks_ai AFTER INSERT ON chunks BEGIN
    INSERT INTO chunks_fts(rowid, content, heading, entities)
    VALUES (new.id, new.content, new.heading, new.entities);
END;

CREATE TRIGGER IF NOT EXISTS chunks_ad AFTER DELETE ON chunks BEGIN
    INSERT INTO chunks_fts(chunks_fts, rowid, content, heading, entities)
    VALUES('delete', old.id, old.content, old.heading, old.entities);
END;

-- Only fires on UPDATEs that actually touch content/heading/entities, so
-- Reflect's confidence/access_count/last_accessed/stale writes never churn
-- the FTS index (§4.1, §8 property 2).
CREATE TRIGGER IF NOT EXISTS chunks_au AFTER UPDATE OF content, heading, entities ON chunks BEGIN
    INSERT INTO chunks_fts(chunks_fts, rowid, content, heading, entities)
    VALUES('delete', old.id, old.content, old.heading, old.entities);
    INSERT INTO chunks_fts(rowid, content, heading, entities)
    VALUES (new.id, new.content, new.heading, new.entities);
END;
`
	_, err := tx.ExecContext(context.Background(), schema)
	return err
}

func (s *Store) ensureSchema() error {
	if _, err := s.db.ExecContext(context.Background(), schemaVersionTable); err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRowContext(context.Background(), "SELECT COALESCE(MAX(version), -1) FROM schema_version")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("get schema version: %w", err)
	}

	for i := currentVersion + 1; i < len(migrations); i++ {
		if err := s.runMigration(i); err != nil {
			return fmt.Errorf("run migration %d: %w", i, err)
		}
	}
	return nil
}

func (s *Store) runMigration(version int) error {
	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := migrations[version](tx); err != nil {
		return fmt.Errorf("execute migration: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := tx.ExecContext(context.Background(), "INSERT INTO schema_version (version, applied_at) VALUES (?, ?)", version, now); err != nil {
		return fmt.Errorf("record migration: %w", err)
	}
	return tx.Commit()
}
