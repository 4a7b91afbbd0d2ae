package database

// schemas maps database names to their DDL. Applied by Migrate.
var schemas = map[string]string{
	"tips": `
CREATE TABLE IF NOT EXISTS tips (
    id         TEXT PRIMARY KEY,
    amount     TEXT NOT NULL,
    date       TEXT NOT NULL,
    note       TEXT NOT NULL DEFAULT '',
    synced     INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tips_date ON tips(date);
CREATE INDEX IF NOT EXISTS idx_tips_synced ON tips(synced);
`,

	"cache": `
CREATE TABLE IF NOT EXISTS period_cache (
    key        TEXT PRIMARY KEY,
    payload    BLOB NOT NULL,
    created_at INTEGER NOT NULL,
    expires_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_period_cache_expires ON period_cache(expires_at);
`,
}
