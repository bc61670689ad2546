package store

const schemaSQL = `
CREATE TABLE IF NOT EXISTS reports (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    format TEXT NOT NULL,
    created_at TEXT NOT NULL
);

-- Embeddings are little-endian float32 blobs compared with vec_distance_cosine.
CREATE TABLE IF NOT EXISTS chunks (
    id INTEGER PRIMARY KEY,
    report_id TEXT NOT NULL REFERENCES reports(id) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    page_number INTEGER,
    heading TEXT,
    content TEXT NOT NULL,
    token_count INTEGER,
    embedding BLOB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_chunks_report ON chunks(report_id);
`
