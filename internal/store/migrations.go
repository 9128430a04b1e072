package store

import "database/sql"

func runMigrations(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id SERIAL PRIMARY KEY,
		username VARCHAR(20) UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		role VARCHAR(10) NOT NULL DEFAULT 'user',
		last_seen TIMESTAMP,
		created_at TIMESTAMP NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS messages (
		id UUID PRIMARY KEY,
		room VARCHAR(24) NOT NULL,
		author VARCHAR(20) NOT NULL,
		text VARCHAR(500) NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_messages_room_created ON messages (room, created_at);

	CREATE TABLE IF NOT EXISTS ranking (
		nick VARCHAR(20) PRIMARY KEY,
		points INTEGER NOT NULL DEFAULT 0
	);`
	_, err := db.Exec(schema)
	return err
}
