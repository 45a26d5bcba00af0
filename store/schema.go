package store

import "fmt"

// schemaSQL returns the DDL for all tables. embeddingDim controls the
// vec0 virtual table dimension.
func schemaSQL(embeddingDim int) string {
	return fmt.Sprintf(`
-- Corpus records. fields holds the record as imported; it is validated
-- again on every load.
CREATE TABLE IF NOT EXISTS documents (
    id INTEGER PRIMARY KEY,
    doc_id TEXT NOT NULL UNIQUE,
    source TEXT NOT NULL DEFAULT '',
    content_hash TEXT NOT NULL,
    fields JSON NOT NULL,
    title TEXT NOT NULL DEFAULT '',
    body TEXT NOT NULL DEFAULT '',
    year_from INTEGER,
    year_to INTEGER,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Record embeddings via sqlite-vec
CREATE VIRTUAL TABLE IF NOT EXISTS vec_documents USING vec0(
    document_id INTEGER PRIMARY KEY,
    embedding float[%d] distance_metric=cosine
);

-- Full-text search via FTS5. Diacritics are folded so unaccented queries
-- match accented records.
CREATE VIRTUAL TABLE IF NOT EXISTS documents_fts USING fts5(
    title,
    body,
    content='documents',
    content_rowid='id',
    tokenize='unicode61 remove_diacritics 2'
);

-- FTS triggers to keep index in sync
CREATE TRIGGER IF NOT EXISTS documents_ai AFTER INSERT ON documents BEGIN
    INSERT INTO documents_fts(rowid, title, body) VALUES (new.id, new.title, new.body);
END;
CREATE TRIGGER IF NOT EXISTS documents_ad AFTER DELETE ON documents BEGIN
    INSERT INTO documents_fts(documents_fts, rowid, title, body) VALUES ('delete', old.id, old.title, old.body);
END;
CREATE TRIGGER IF NOT EXISTS documents_au AFTER UPDATE ON documents BEGIN
    INSERT INTO documents_fts(documents_fts, rowid, title, body) VALUES ('delete', old.id, old.title, old.body);
    INSERT INTO documents_fts(rowid, title, body) VALUES (new.id, new.title, new.body);
END;

-- Query audit log
CREATE TABLE IF NOT EXISTS query_log (
    id INTEGER PRIMARY KEY,
    request_id TEXT,
    query TEXT NOT NULL,
    rewritten TEXT,
    answer TEXT,
    intent TEXT,
    outcome TEXT,
    severity TEXT,
    confidence REAL,
    strategy TEXT,
    sources JSON,
    latency_ms INTEGER DEFAULT 0,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Indexes
CREATE INDEX IF NOT EXISTS idx_documents_year ON documents(year_from, year_to);
CREATE INDEX IF NOT EXISTS idx_documents_hash ON documents(content_hash);
`, embeddingDim)
}
