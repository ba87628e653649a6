package store

// schema creates all tables and indexes. Statements are idempotent so the
// schema can run on every open.
const schema = `
CREATE TABLE IF NOT EXISTS settings (
	id                   INTEGER PRIMARY KEY CHECK (id = 1),
	connected            INTEGER NOT NULL DEFAULT 0,
	sync_tasks           INTEGER NOT NULL DEFAULT 1,
	sync_birthdays       INTEGER NOT NULL DEFAULT 1,
	sync_important_dates INTEGER NOT NULL DEFAULT 1,
	sync_follow_ups      INTEGER NOT NULL DEFAULT 1,
	last_sync_at         INTEGER
);

CREATE TABLE IF NOT EXISTS mappings (
	id                    TEXT PRIMARY KEY,
	source_type           TEXT NOT NULL,
	source_id             TEXT NOT NULL,
	important_date_sub_id TEXT NOT NULL DEFAULT '',
	external_event_id     TEXT NOT NULL,
	created_at            INTEGER NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_mappings_source
	ON mappings (source_type, source_id, important_date_sub_id);

CREATE INDEX IF NOT EXISTS idx_mappings_root
	ON mappings (source_id);

CREATE TABLE IF NOT EXISTS oauth_token (
	id            INTEGER PRIMARY KEY CHECK (id = 1),
	access_token  TEXT NOT NULL,
	refresh_token TEXT NOT NULL,
	expiry_ms     INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS oauth_states (
	nonce      TEXT PRIMARY KEY,
	created_at INTEGER NOT NULL
);
`
