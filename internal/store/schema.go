package store

// schemaVersionV1 stored each project as one JSON document.
const schemaVersionV1 = 1

// schemaVersionV2 moves script versions and interviews to append-only tables.
const schemaVersionV2 = 2

// schemaV1 is the single-document schema DDL (kept for migration tests).
var schemaV1 = `
CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL);
CREATE TABLE IF NOT EXISTS projects (
	id                TEXT PRIMARY KEY,
	research_question TEXT NOT NULL,
	status            TEXT NOT NULL,
	language          TEXT NOT NULL,
	payload           BLOB NOT NULL,
	created_at        TEXT NOT NULL,
	updated_at        TEXT NOT NULL
);
`

// schemaV2 is the fresh-install DDL.
// projects.payload holds the mutable knowledge store; script versions and
// interviews are written once and never updated.
var schemaV2 = `
CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL);

CREATE TABLE IF NOT EXISTS projects (
	id                TEXT PRIMARY KEY,
	research_question TEXT NOT NULL,
	status            TEXT NOT NULL,
	language          TEXT NOT NULL,
	payload           BLOB NOT NULL,
	created_at        TEXT NOT NULL,
	updated_at        TEXT NOT NULL
);
` + appendOnlyTables

const appendOnlyTables = `
CREATE TABLE IF NOT EXISTS script_versions (
	project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	version    INTEGER NOT NULL,
	payload    BLOB NOT NULL,
	created_at TEXT NOT NULL,
	PRIMARY KEY (project_id, version)
);

CREATE TABLE IF NOT EXISTS interviews (
	project_id      TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	seq             INTEGER NOT NULL,
	interview_id    TEXT NOT NULL,
	conversation_id TEXT NOT NULL,
	payload         BLOB NOT NULL,
	created_at      TEXT NOT NULL,
	PRIMARY KEY (project_id, seq),
	UNIQUE (project_id, interview_id)
);

CREATE INDEX IF NOT EXISTS idx_interviews_conversation ON interviews(project_id, conversation_id);
`
