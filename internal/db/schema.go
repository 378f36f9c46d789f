package db

// Schema contains all SQL statements for the application database.
// One shared database holds users, sessions, and notes: the slug uniqueness
// constraint spans every author, so it must live behind a single unique index.
const Schema = `
-- Users table: local accounts with argon2id password hashes
CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    username TEXT UNIQUE NOT NULL,
    password_hash TEXT NOT NULL,
    created_at INTEGER NOT NULL
);

-- Sessions table: stores active user sessions
CREATE TABLE IF NOT EXISTS sessions (
    session_id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    expires_at INTEGER NOT NULL,
    created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_user_id ON sessions(user_id);
CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at);

-- Notes table: slug is the public identifier and must be unique system-wide.
-- The unique index is the authoritative check; racing writers on the same
-- slug produce exactly one winner at the constraint, not in application code.
CREATE TABLE IF NOT EXISTS notes (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    text TEXT NOT NULL,
    slug TEXT NOT NULL UNIQUE,
    author_id TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_notes_author_id ON notes(author_id);
`
