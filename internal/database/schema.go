package database

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
    user_id BIGINT PRIMARY KEY,
    lang TEXT NOT NULL DEFAULT 'en',
    balance INT NOT NULL DEFAULT 0,
    demo_used INT NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`,
	`CREATE TABLE IF NOT EXISTS purchases (
    session_id TEXT PRIMARY KEY,
    user_id BIGINT NOT NULL REFERENCES users(user_id),
    pack TEXT NOT NULL,
    credits INT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`,
	`CREATE INDEX IF NOT EXISTS purchases_user_id_idx ON purchases (user_id)`,
}

// MySQL creates the secondary index implicitly for the foreign key.
var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
    user_id BIGINT PRIMARY KEY,
    lang VARCHAR(16) NOT NULL DEFAULT 'en',
    balance INT NOT NULL DEFAULT 0,
    demo_used INT NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`,
	`CREATE TABLE IF NOT EXISTS purchases (
    session_id VARCHAR(255) PRIMARY KEY,
    user_id BIGINT NOT NULL,
    pack VARCHAR(64) NOT NULL,
    credits INT NOT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (user_id) REFERENCES users(user_id)
)`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
    user_id INTEGER PRIMARY KEY,
    lang TEXT NOT NULL DEFAULT 'en',
    balance INTEGER NOT NULL DEFAULT 0,
    demo_used INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`,
	`CREATE TABLE IF NOT EXISTS purchases (
    session_id TEXT PRIMARY KEY,
    user_id INTEGER NOT NULL REFERENCES users(user_id),
    pack TEXT NOT NULL,
    credits INTEGER NOT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`,
	`CREATE INDEX IF NOT EXISTS purchases_user_id_idx ON purchases (user_id)`,
}
