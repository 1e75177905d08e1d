package db

import "fmt"

const schema = `
PRAGMA journal_mode=WAL;

CREATE TABLE IF NOT EXISTS orders (
    id TEXT PRIMARY KEY,
    symbol TEXT NOT NULL,
    side TEXT NOT NULL,
    volume REAL NOT NULL,
    price REAL NOT NULL,
    sl REAL DEFAULT 0,
    tp REAL DEFAULT 0,
    order_ticket INTEGER DEFAULT 0,
    deal INTEGER DEFAULT 0,
    retcode INTEGER DEFAULT 0,
    status TEXT NOT NULL,
    comment TEXT,
    magic INTEGER DEFAULT 0,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS closes (
    id TEXT PRIMARY KEY,
    position_ticket INTEGER NOT NULL,
    symbol TEXT NOT NULL,
    position_side TEXT NOT NULL,
    volume REAL NOT NULL,
    price REAL NOT NULL,
    profit REAL DEFAULT 0,
    deal INTEGER DEFAULT 0,
    retcode INTEGER DEFAULT 0,
    status TEXT NOT NULL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS session_events (
    id TEXT PRIMARY KEY,
    kind TEXT NOT NULL,
    account INTEGER DEFAULT 0,
    server TEXT,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_orders_created ON orders(created_at);
CREATE INDEX IF NOT EXISTS idx_closes_created ON closes(created_at);
`

// ApplyMigrations creates the journal tables.
func ApplyMigrations(d *Database) error {
	if _, err := d.DB.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
