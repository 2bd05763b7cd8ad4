package repository

// PostgresSchema creates every table used by the Postgres store. Safe to run
// repeatedly.
var PostgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS polls (
		id BIGSERIAL PRIMARY KEY,
		token TEXT NOT NULL UNIQUE,
		title TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		date_start DATE NOT NULL,
		date_end DATE NOT NULL,
		timezone TEXT NOT NULL DEFAULT '',
		is_open BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CHECK (date_start <= date_end)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_polls_created_at ON polls(created_at)`,
	`CREATE TABLE IF NOT EXISTS poll_users (
		id BIGSERIAL PRIMARY KEY,
		poll_id BIGINT NOT NULL REFERENCES polls(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		pass TEXT NOT NULL,
		host BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_poll_users_poll_id ON poll_users(poll_id)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_poll_users_one_host ON poll_users(poll_id) WHERE host`,
	`CREATE TABLE IF NOT EXISTS attendance (
		user_id BIGINT NOT NULL REFERENCES poll_users(id) ON DELETE CASCADE,
		date DATE NOT NULL,
		time_slot SMALLINT NOT NULL CHECK (time_slot >= 0 AND time_slot < 48),
		val BOOLEAN NOT NULL,
		PRIMARY KEY (user_id, date, time_slot)
	)`,
	`CREATE TABLE IF NOT EXISTS aux_info (
		id BIGSERIAL PRIMARY KEY,
		poll_id BIGINT NOT NULL REFERENCES polls(id) ON DELETE CASCADE,
		code TEXT NOT NULL,
		type TEXT NOT NULL CHECK (type IN ('TEXT', 'NUMBER', 'BOOLEAN')),
		title TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		UNIQUE (poll_id, code)
	)`,
	`CREATE TABLE IF NOT EXISTS user_info (
		user_id BIGINT NOT NULL REFERENCES poll_users(id) ON DELETE CASCADE,
		info_id BIGINT NOT NULL REFERENCES aux_info(id) ON DELETE CASCADE,
		val TEXT NOT NULL,
		PRIMARY KEY (user_id, info_id)
	)`,
}

// PostgresDropSchema removes every table of the Postgres store
var PostgresDropSchema = []string{
	`DROP TABLE IF EXISTS user_info CASCADE`,
	`DROP TABLE IF EXISTS aux_info CASCADE`,
	`DROP TABLE IF EXISTS attendance CASCADE`,
	`DROP TABLE IF EXISTS poll_users CASCADE`,
	`DROP TABLE IF EXISTS polls CASCADE`,
}

// SQLiteSchema mirrors PostgresSchema for the embedded store. Dates are ISO
// text and timestamps are unix seconds.
var SQLiteSchema = []string{
	`CREATE TABLE IF NOT EXISTS polls (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		token TEXT NOT NULL UNIQUE,
		title TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		date_start TEXT NOT NULL,
		date_end TEXT NOT NULL,
		timezone TEXT NOT NULL DEFAULT '',
		is_open INTEGER NOT NULL DEFAULT 1,
		created_at INTEGER NOT NULL,
		CHECK (date_start <= date_end)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_polls_created_at ON polls(created_at)`,
	`CREATE TABLE IF NOT EXISTS poll_users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		poll_id INTEGER NOT NULL REFERENCES polls(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		pass TEXT NOT NULL,
		host INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_poll_users_poll_id ON poll_users(poll_id)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_poll_users_one_host ON poll_users(poll_id) WHERE host = 1`,
	`CREATE TABLE IF NOT EXISTS attendance (
		user_id INTEGER NOT NULL REFERENCES poll_users(id) ON DELETE CASCADE,
		date TEXT NOT NULL,
		time_slot INTEGER NOT NULL CHECK (time_slot >= 0 AND time_slot < 48),
		val INTEGER NOT NULL,
		PRIMARY KEY (user_id, date, time_slot)
	)`,
	`CREATE TABLE IF NOT EXISTS aux_info (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		poll_id INTEGER NOT NULL REFERENCES polls(id) ON DELETE CASCADE,
		code TEXT NOT NULL,
		type TEXT NOT NULL CHECK (type IN ('TEXT', 'NUMBER', 'BOOLEAN')),
		title TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		UNIQUE (poll_id, code)
	)`,
	`CREATE TABLE IF NOT EXISTS user_info (
		user_id INTEGER NOT NULL REFERENCES poll_users(id) ON DELETE CASCADE,
		info_id INTEGER NOT NULL REFERENCES aux_info(id) ON DELETE CASCADE,
		val TEXT NOT NULL,
		PRIMARY KEY (user_id, info_id)
	)`,
}
