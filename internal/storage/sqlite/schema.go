// Package sqlite implements the cache half of tix's dual-representation
// storage engine (spec.md 4.3-4.5, 4.9): a single embedded SQL database
// file, deterministically derived from the JSONL event log.
package sqlite

const schemaSQL = `
CREATE TABLE IF NOT EXISTS tickets (
	id                 TEXT PRIMARY KEY,
	type               INTEGER NOT NULL DEFAULT 0,
	status             INTEGER NOT NULL DEFAULT 0,
	priority           INTEGER NOT NULL DEFAULT 0,
	name               TEXT NOT NULL DEFAULT '',
	spec               TEXT NOT NULL DEFAULT '',
	notes              TEXT NOT NULL DEFAULT '',
	accept             TEXT NOT NULL DEFAULT '',
	done_at            TEXT NOT NULL DEFAULT '',
	branch             TEXT NOT NULL DEFAULT '',
	parent             TEXT NOT NULL DEFAULT '',
	created_from       TEXT NOT NULL DEFAULT '',
	supersedes         TEXT NOT NULL DEFAULT '',
	kill_reason        TEXT NOT NULL DEFAULT '',
	created_from_name  TEXT NOT NULL DEFAULT '',
	supersedes_name    TEXT NOT NULL DEFAULT '',
	supersedes_reason  TEXT NOT NULL DEFAULT '',
	created_at         INTEGER NOT NULL DEFAULT 0,
	updated_at         INTEGER NOT NULL DEFAULT 0,
	resolved_at        INTEGER NOT NULL DEFAULT 0,
	compacted_at       INTEGER NOT NULL DEFAULT 0,
	author             TEXT NOT NULL DEFAULT '',
	completed_at       TEXT NOT NULL DEFAULT '',
	cost               REAL NOT NULL DEFAULT 0,
	tokens_in          INTEGER NOT NULL DEFAULT 0,
	tokens_out         INTEGER NOT NULL DEFAULT 0,
	iterations         INTEGER NOT NULL DEFAULT 0,
	model              TEXT NOT NULL DEFAULT '',
	retries            INTEGER NOT NULL DEFAULT 0,
	kill_count         INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_tickets_type_status ON tickets(type, status);
CREATE INDEX IF NOT EXISTS idx_tickets_parent ON tickets(parent);
CREATE INDEX IF NOT EXISTS idx_tickets_created_from ON tickets(created_from);
CREATE INDEX IF NOT EXISTS idx_tickets_supersedes ON tickets(supersedes);
CREATE INDEX IF NOT EXISTS idx_tickets_resolved_at ON tickets(resolved_at);
CREATE INDEX IF NOT EXISTS idx_tickets_author ON tickets(author);
CREATE INDEX IF NOT EXISTS idx_tickets_model ON tickets(model);

CREATE TABLE IF NOT EXISTS ticket_deps (
	ticket_id TEXT NOT NULL,
	dep_id    TEXT NOT NULL,
	UNIQUE(ticket_id, dep_id)
);
CREATE INDEX IF NOT EXISTS idx_ticket_deps_ticket ON ticket_deps(ticket_id);
CREATE INDEX IF NOT EXISTS idx_ticket_deps_dep ON ticket_deps(dep_id);

CREATE TABLE IF NOT EXISTS ticket_labels (
	ticket_id TEXT NOT NULL,
	label     TEXT NOT NULL,
	UNIQUE(ticket_id, label)
);
CREATE INDEX IF NOT EXISTS idx_ticket_labels_label ON ticket_labels(label);
CREATE INDEX IF NOT EXISTS idx_ticket_labels_ticket ON ticket_labels(ticket_id);

CREATE TABLE IF NOT EXISTS ticket_meta (
	ticket_id  TEXT NOT NULL,
	key        TEXT NOT NULL,
	value_text TEXT,
	value_num  REAL,
	UNIQUE(ticket_id, key)
);
CREATE INDEX IF NOT EXISTS idx_ticket_meta_key ON ticket_meta(key);
CREATE INDEX IF NOT EXISTS idx_ticket_meta_ticket ON ticket_meta(ticket_id);

CREATE TABLE IF NOT EXISTS tombstones (
	id        TEXT PRIMARY KEY,
	done_at   TEXT NOT NULL DEFAULT '',
	reason    TEXT NOT NULL DEFAULT '',
	name      TEXT NOT NULL DEFAULT '',
	is_accept INTEGER NOT NULL DEFAULT 0,
	timestamp INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS keywords (
	ticket_id TEXT NOT NULL,
	keyword   TEXT NOT NULL,
	weight    REAL NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_keywords_keyword ON keywords(keyword);
CREATE INDEX IF NOT EXISTS idx_keywords_ticket ON keywords(ticket_id);

CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL DEFAULT ''
);
`

// InitSchema creates every table and index if absent. Schema init is
// idempotent (Design Notes 9, "scoped acquisition of the cache"): it
// is safe to call on every process start.
func (s *Store) InitSchema() error {
	_, err := s.db.Exec(schemaSQL)
	return wrapErr("sqlite.InitSchema", err)
}
