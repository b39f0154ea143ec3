package storage

const schema = `
CREATE TABLE IF NOT EXISTS operations (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    build_id TEXT UNIQUE NOT NULL,
    operation TEXT NOT NULL,
    platform TEXT DEFAULT '',
    project_name TEXT DEFAULT '',
    submitted_at DATETIME NOT NULL,
    state TEXT NOT NULL DEFAULT 'PENDING',
    result_url TEXT DEFAULT '',
    logs_url TEXT DEFAULT '',
    artifacts TEXT DEFAULT '',
    error TEXT DEFAULT '',
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_operations_submitted_at ON operations(submitted_at DESC);
CREATE INDEX IF NOT EXISTS idx_operations_build_id ON operations(build_id);
`
