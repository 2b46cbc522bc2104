// internal/db/migrations.go
package db

import "fmt"

const userSchema = `
CREATE TABLE IF NOT EXISTS users (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    username       TEXT UNIQUE NOT NULL,
    password_hash  TEXT NOT NULL,
    created_at     TEXT DEFAULT (datetime('now')),
    last_seen_at   TEXT
);

CREATE INDEX IF NOT EXISTS idx_users_username ON users(username);
`

const contactSchema = `
CREATE TABLE IF NOT EXISTS contacts (
    id               INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id          INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    contact_user_id  INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    status           INTEGER NOT NULL DEFAULT 0, -- 0 pending, 1 accepted, 2 blocked
    message          TEXT,
    created_at       TEXT DEFAULT (datetime('now')),
    accepted_at      TEXT,
    UNIQUE(user_id, contact_user_id)
);

CREATE INDEX IF NOT EXISTS idx_contacts_user_id ON contacts(user_id);
CREATE INDEX IF NOT EXISTS idx_contacts_contact_user_id ON contacts(contact_user_id);
`

const groupSchema = `
CREATE TABLE IF NOT EXISTS groups (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    name         TEXT NOT NULL,
    description  TEXT,
    owner_id     INTEGER NOT NULL REFERENCES users(id),
    created_at   TEXT DEFAULT (datetime('now')),
    is_active    INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS group_members (
    group_id   INTEGER NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
    user_id    INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    joined_at  TEXT DEFAULT (datetime('now')),
    is_active  INTEGER NOT NULL DEFAULT 1,
    PRIMARY KEY (group_id, user_id)
);

CREATE INDEX IF NOT EXISTS idx_group_members_user_id ON group_members(user_id);
`

const messageSchema = `
CREATE TABLE IF NOT EXISTS messages (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    sender_id       INTEGER NOT NULL REFERENCES users(id),
    recipient_id    INTEGER REFERENCES users(id),
    group_id        INTEGER REFERENCES groups(id),
    content         TEXT NOT NULL,
    type            INTEGER NOT NULL DEFAULT 0, -- 0 text, 1 image, 2 file
    attachment_url  TEXT,
    sent_at         TEXT DEFAULT (datetime('now')),
    is_deleted      INTEGER NOT NULL DEFAULT 0,
    -- exactly one of recipient_id / group_id is set
    CHECK ((recipient_id IS NULL) != (group_id IS NULL))
);

CREATE INDEX IF NOT EXISTS idx_messages_direct ON messages(sender_id, recipient_id, sent_at DESC);
CREATE INDEX IF NOT EXISTS idx_messages_group ON messages(group_id, sent_at DESC);
`

// RunMigrations creates the chat schema. All statements are idempotent so
// running against an existing database is safe.
func (db *DB) RunMigrations() error {
	schemas := []struct {
		name string
		sql  string
	}{
		{"users", userSchema},
		{"contacts", contactSchema},
		{"groups", groupSchema},
		{"messages", messageSchema},
	}

	for _, s := range schemas {
		if _, err := db.Exec(s.sql); err != nil {
			return fmt.Errorf("failed to run %s migration: %w", s.name, err)
		}
	}

	return nil
}
