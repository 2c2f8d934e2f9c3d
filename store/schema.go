package store

// schemaSQL is the DDL for all tables.
const schemaSQL = `
-- Manual registry. Rows are soft-deleted by flipping active to 0 so
-- historical section/image references stay resolvable.
CREATE TABLE IF NOT EXISTS manuals (
    id INTEGER PRIMARY KEY,
    year INTEGER NOT NULL,
    make TEXT NOT NULL,
    model TEXT NOT NULL,
    uplifted INTEGER NOT NULL DEFAULT 0,
    active INTEGER NOT NULL DEFAULT 1,
    content_path TEXT NOT NULL DEFAULT '',
    owner_id TEXT NOT NULL DEFAULT '',
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Section records produced by the boundary builder at ingestion.
CREATE TABLE IF NOT EXISTS sections (
    id INTEGER PRIMARY KEY,
    manual_id INTEGER NOT NULL REFERENCES manuals(id) ON DELETE CASCADE,
    name TEXT NOT NULL,
    first_page INTEGER NOT NULL,
    length INTEGER NOT NULL,
    level INTEGER NOT NULL DEFAULT 1
);

-- Diagram regions as percentage bounding boxes.
CREATE TABLE IF NOT EXISTS images (
    id INTEGER PRIMARY KEY,
    manual_id INTEGER NOT NULL REFERENCES manuals(id) ON DELETE CASCADE,
    page INTEGER NOT NULL,
    x INTEGER NOT NULL,
    y INTEGER NOT NULL,
    w INTEGER NOT NULL,
    h INTEGER NOT NULL
);

-- Indexes
CREATE INDEX IF NOT EXISTS idx_sections_manual ON sections(manual_id, first_page);
CREATE INDEX IF NOT EXISTS idx_images_manual_page ON images(manual_id, page);
CREATE INDEX IF NOT EXISTS idx_manuals_identity ON manuals(make, model, year);
`
