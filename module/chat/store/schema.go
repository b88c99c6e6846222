package store

import "context"

// schemaDDL is idempotent; EnsureSchema runs it on startup. last_message_id
// carries no FK to avoid the circular constraint with messages.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS users (
	id          BIGSERIAL PRIMARY KEY,
	name        TEXT NOT NULL,
	email       TEXT NOT NULL UNIQUE,
	avatar      TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS conversations (
	id               BIGSERIAL PRIMARY KEY,
	kind             TEXT NOT NULL DEFAULT 'direct' CHECK (kind IN ('direct', 'group')),
	direct_key       TEXT UNIQUE,
	name             TEXT,
	last_message_id  BIGINT,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_conversations_updated_at ON conversations (updated_at);

CREATE TABLE IF NOT EXISTS conversation_participants (
	conversation_id  BIGINT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
	user_id          BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	role             TEXT NOT NULL DEFAULT 'member' CHECK (role IN ('member', 'admin')),
	last_read_at     TIMESTAMPTZ,
	joined_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (conversation_id, user_id)
);
CREATE INDEX IF NOT EXISTS idx_participants_user ON conversation_participants (user_id);

CREATE TABLE IF NOT EXISTS messages (
	id               BIGSERIAL PRIMARY KEY,
	conversation_id  BIGINT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
	author_id        BIGINT NOT NULL REFERENCES users(id),
	body             TEXT,
	has_attachments  BOOLEAN NOT NULL DEFAULT FALSE,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	edited_at        TIMESTAMPTZ,
	deleted_at       TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages (conversation_id, id);

CREATE TABLE IF NOT EXISTS message_attachments (
	id               BIGSERIAL PRIMARY KEY,
	message_id       BIGINT NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
	storage_locator  TEXT NOT NULL,
	original_name    TEXT NOT NULL,
	mime_type        TEXT NOT NULL DEFAULT '',
	size_bytes       BIGINT NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_attachments_message ON message_attachments (message_id);

CREATE TABLE IF NOT EXISTS message_receipts (
	message_id  BIGINT NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
	user_id     BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	status      TEXT NOT NULL DEFAULT 'delivered' CHECK (status IN ('delivered', 'read')),
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (message_id, user_id)
);
CREATE INDEX IF NOT EXISTS idx_receipts_user_status ON message_receipts (user_id, status);

CREATE TABLE IF NOT EXISTS contacts (
	owner_user_id    BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	contact_user_id  BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (owner_user_id, contact_user_id)
);
CREATE INDEX IF NOT EXISTS idx_contacts_reverse ON contacts (contact_user_id);
`

func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schemaDDL)
	return wrap(err, "ensure schema")
}
