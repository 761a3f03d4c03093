package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"interviewlab/internal/knowledge"
	"interviewlab/internal/logging"

	_ "modernc.org/sqlite"
)

// nowUTC returns the current UTC time as an ISO 8601 string.
func nowUTC() string { return time.Now().UTC().Format(time.RFC3339Nano) }

// currentSchemaVersion is the target schema version for this build.
const currentSchemaVersion = schemaVersionV2

// SqlStore implements Store with SQLite.
type SqlStore struct {
	db *sql.DB
}

// Open opens or creates a SQLite DB at path and runs migrations.
// Creates the parent directory (e.g. .interviewlab) if it does not exist.
func Open(path string) (*SqlStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer at a time; SQLite would otherwise answer SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	s := &SqlStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SqlStore) migrate() error {
	var tableCount int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableCount)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableCount == 0 {
		return s.freshInstall()
	}

	var v int
	err = s.db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&v)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("read schema version: %w", err)
	}
	if errors.Is(err, sql.ErrNoRows) {
		// schema_version exists but is empty: treat as v1.
		v = schemaVersionV1
		if _, err := s.db.Exec("INSERT INTO schema_version(version) VALUES(?)", v); err != nil {
			return fmt.Errorf("set schema version: %w", err)
		}
	}

	switch v {
	case currentSchemaVersion:
		return nil
	case schemaVersionV1:
		return s.migrateV1ToV2()
	default:
		return fmt.Errorf("unknown schema version %d", v)
	}
}

func (s *SqlStore) freshInstall() error {
	if _, err := s.db.Exec(schemaV2); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := s.db.Exec("INSERT INTO schema_version(version) VALUES(?)", currentSchemaVersion); err != nil {
		return fmt.Errorf("set schema version: %w", err)
	}
	return nil
}

// migrateV1ToV2 splits every single-document project into the payload row
// plus its script versions and interviews. Runs inside one transaction.
func (s *SqlStore) migrateV1ToV2() error {
	ctx := context.Background()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(appendOnlyTables); err != nil {
		return fmt.Errorf("v1→v2 tables: %w", err)
	}
	rows, err := tx.Query("SELECT id, payload FROM projects")
	if err != nil {
		return fmt.Errorf("read v1 projects: %w", err)
	}
	var docs []*knowledge.ProjectState
	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			rows.Close()
			return fmt.Errorf("scan v1 project: %w", err)
		}
		var p knowledge.ProjectState
		if err := json.Unmarshal(raw, &p); err != nil {
			rows.Close()
			return fmt.Errorf("decode v1 project %s: %w", id, err)
		}
		docs = append(docs, &p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("read v1 projects: %w", err)
	}

	for _, p := range docs {
		if err := writeState(ctx, tx, p, nowUTC()); err != nil {
			return fmt.Errorf("migrate project %s: %w", p.ID, err)
		}
	}
	if _, err := tx.Exec("UPDATE schema_version SET version = ?", schemaVersionV2); err != nil {
		return fmt.Errorf("set schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration tx: %w", err)
	}
	logging.New("store").Info("migrated schema", "from", schemaVersionV1, "to", schemaVersionV2, "projects", len(docs))
	return nil
}

// Close closes the database connection.
func (s *SqlStore) Close() error {
	return s.db.Close()
}

// Create implements Store.
func (s *SqlStore) Create(ctx context.Context, p *knowledge.ProjectState) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := nowUTC()
	doc, err := encodeDocument(p)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO projects(id, research_question, status, language, payload, created_at, updated_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		p.ID, p.ResearchQuestion, string(p.Status), p.Language, doc, p.CreatedAt.UTC().Format(time.RFC3339Nano), now,
	)
	if err != nil {
		return fmt.Errorf("insert project %s: %w", p.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrExists, p.ID)
	}
	if err := appendHistory(ctx, tx, p, now); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create tx: %w", err)
	}
	return nil
}

// Save implements Store. The project row, new script versions and new
// interviews are written in one transaction.
func (s *SqlStore) Save(ctx context.Context, p *knowledge.ProjectState) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	err = tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM projects WHERE id = ?", p.ID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("lookup project %s: %w", p.ID, err)
	}
	if exists == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, p.ID)
	}
	if err := writeState(ctx, tx, p, nowUTC()); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save tx: %w", err)
	}
	return nil
}

// writeState updates the project row and appends unseen history rows.
func writeState(ctx context.Context, tx *sql.Tx, p *knowledge.ProjectState, now string) error {
	doc, err := encodeDocument(p)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE projects SET research_question = ?, status = ?, language = ?, payload = ?, updated_at = ?
		 WHERE id = ?`,
		p.ResearchQuestion, string(p.Status), p.Language, doc, now, p.ID,
	)
	if err != nil {
		return fmt.Errorf("update project %s: %w", p.ID, err)
	}
	return appendHistory(ctx, tx, p, now)
}

// appendHistory inserts script versions and interviews that are not stored
// yet. Existing rows are never rewritten.
func appendHistory(ctx context.Context, tx *sql.Tx, p *knowledge.ProjectState, now string) error {
	for _, sv := range p.Scripts {
		raw, err := json.Marshal(sv)
		if err != nil {
			return fmt.Errorf("encode script v%d: %w", sv.Version, err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO script_versions(project_id, version, payload, created_at) VALUES(?, ?, ?, ?)
			 ON CONFLICT(project_id, version) DO NOTHING`,
			p.ID, sv.Version, raw, now,
		)
		if err != nil {
			return fmt.Errorf("insert script v%d: %w", sv.Version, err)
		}
	}
	for i, iv := range p.Interviews {
		raw, err := json.Marshal(iv)
		if err != nil {
			return fmt.Errorf("encode interview %s: %w", iv.ID, err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO interviews(project_id, seq, interview_id, conversation_id, payload, created_at)
			 VALUES(?, ?, ?, ?, ?, ?)
			 ON CONFLICT DO NOTHING`,
			p.ID, i+1, iv.ID, iv.ConversationID, raw, now,
		)
		if err != nil {
			return fmt.Errorf("insert interview %s: %w", iv.ID, err)
		}
	}
	return nil
}

// encodeDocument serialises the mutable part of p.
func encodeDocument(p *knowledge.ProjectState) ([]byte, error) {
	doc := *p
	doc.Scripts = nil
	doc.Interviews = nil
	raw, err := json.Marshal(&doc)
	if err != nil {
		return nil, fmt.Errorf("encode project %s: %w", p.ID, err)
	}
	return raw, nil
}

// Load implements Store.
func (s *SqlStore) Load(ctx context.Context, id string) (*knowledge.ProjectState, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx, "SELECT payload FROM projects WHERE id = ?", id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load project %s: %w", id, err)
	}
	var p knowledge.ProjectState
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode project %s: %w", id, err)
	}

	p.Scripts, err = loadRows[knowledge.InterviewScript](ctx, s.db,
		"SELECT payload FROM script_versions WHERE project_id = ? ORDER BY version", id)
	if err != nil {
		return nil, fmt.Errorf("load scripts of %s: %w", id, err)
	}
	p.Interviews, err = loadRows[knowledge.Interview](ctx, s.db,
		"SELECT payload FROM interviews WHERE project_id = ? ORDER BY seq", id)
	if err != nil {
		return nil, fmt.Errorf("load interviews of %s: %w", id, err)
	}
	return &p, nil
}

func loadRows[T any](ctx context.Context, db *sql.DB, query, id string) ([]T, error) {
	rows, err := db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []T
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// List implements Store. Projects are ordered by id.
func (s *SqlStore) List(ctx context.Context) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.research_question, p.status, p.language, p.updated_at,
		       (SELECT COUNT(*) FROM interviews i WHERE i.project_id = p.id),
		       (SELECT COALESCE(MAX(version), 0) FROM script_versions v WHERE v.project_id = p.id)
		FROM projects p ORDER BY p.id`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()
	var out []Summary
	for rows.Next() {
		var sm Summary
		var status, updated string
		if err := rows.Scan(&sm.ID, &sm.ResearchQuestion, &status, &sm.Language, &updated, &sm.Interviews, &sm.ScriptVersion); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		sm.Status = knowledge.ProjectStatus(status)
		sm.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
		out = append(out, sm)
	}
	return out, rows.Err()
}

// Delete implements Store.
func (s *SqlStore) Delete(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	for _, q := range []string{
		"DELETE FROM script_versions WHERE project_id = ?",
		"DELETE FROM interviews WHERE project_id = ?",
	} {
		if _, err := tx.ExecContext(ctx, q, id); err != nil {
			return fmt.Errorf("delete project %s: %w", id, err)
		}
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM projects WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete project %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return tx.Commit()
}
