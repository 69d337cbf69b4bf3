package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/wordparty/phraseforge/pkg/phraseforge/store"
)

// sqliteStore implements store.Store using SQLite.
type sqliteStore struct {
	db *sql.DB
}

// Open opens a SQLite database with WAL mode enabled and initializes
// the schema.
func Open(ctx context.Context, path string) (store.Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// WAL for better concurrency between workers
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, err
	}

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &sqliteStore{db: db}, nil
}

// Close closes the database connection
func (s *sqliteStore) Close() error {
	return s.db.Close()
}

func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS phrases (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	text TEXT NOT NULL,
	canonical TEXT NOT NULL,
	category TEXT NOT NULL,
	source TEXT NOT NULL,
	provider_id TEXT,
	model_id TEXT,
	total REAL NOT NULL,
	decision TEXT NOT NULL,
	score_json TEXT,
	created_at TEXT NOT NULL,
	UNIQUE(category, canonical)
);

CREATE INDEX IF NOT EXISTS idx_phrases_category ON phrases(category);

CREATE TABLE IF NOT EXISTS reviews (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	text TEXT NOT NULL,
	canonical TEXT NOT NULL,
	category TEXT NOT NULL,
	source TEXT NOT NULL,
	provider_id TEXT,
	model_id TEXT,
	total REAL NOT NULL,
	score_json TEXT,
	created_at TEXT NOT NULL,
	resolution TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	status TEXT NOT NULL,
	created_at TEXT NOT NULL,
	payload TEXT NOT NULL
);
`
	_, err := db.ExecContext(ctx, schema)
	return err
}

// InsertPhrase inserts an accepted phrase; returns false on a
// canonical-form conflict within the category.
func (s *sqliteStore) InsertPhrase(ctx context.Context, p store.Phrase) (bool, error) {
	scoreJSON, err := json.Marshal(p.Breakdown)
	if err != nil {
		return false, fmt.Errorf("marshal breakdown: %w", err)
	}

	created := p.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO phrases
			(text, canonical, category, source, provider_id, model_id, total, decision, score_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Text, p.Canonical, p.Category, p.Source, p.ProviderID, p.ModelID,
		p.Total, p.Decision, string(scoreJSON), created.Format(time.RFC3339Nano))
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// CountByCategory returns the number of stored phrases in a category.
func (s *sqliteStore) CountByCategory(ctx context.Context, category string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM phrases WHERE category = ?`, category).Scan(&count)
	return count, err
}

// CommonPhrases returns the category's highest-scoring phrases, used
// for the prompt "do not reuse" list.
func (s *sqliteStore) CommonPhrases(ctx context.Context, category string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 30
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT text FROM phrases WHERE category = ? ORDER BY total DESC, id ASC LIMIT ?`,
		category, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return nil, err
		}
		out = append(out, text)
	}
	return out, rows.Err()
}

// PhrasesByCategory returns all stored phrases for a category, used
// for Bloom filter rebuilds and rescoring passes.
func (s *sqliteStore) PhrasesByCategory(ctx context.Context, category string) ([]store.Phrase, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, text, canonical, category, source, provider_id, model_id, total, decision, score_json, created_at
		FROM phrases WHERE category = ? ORDER BY id ASC`, category)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPhrases(rows, true)
}

// AppendReview adds a borderline phrase to the review queue.
func (s *sqliteStore) AppendReview(ctx context.Context, p store.Phrase) error {
	scoreJSON, err := json.Marshal(p.Breakdown)
	if err != nil {
		return fmt.Errorf("marshal breakdown: %w", err)
	}
	created := p.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO reviews (text, canonical, category, source, provider_id, model_id, total, score_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Text, p.Canonical, p.Category, p.Source, p.ProviderID, p.ModelID,
		p.Total, string(scoreJSON), created.Format(time.RFC3339Nano))
	return err
}

// PendingReviews returns unresolved review-queue entries. A
// non-positive limit returns the whole backlog.
func (s *sqliteStore) PendingReviews(ctx context.Context, limit int) ([]store.Phrase, error) {
	if limit <= 0 {
		// SQLite treats a negative LIMIT as no limit.
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, text, canonical, category, source, provider_id, model_id, total, score_json, created_at
		FROM reviews WHERE resolution = '' ORDER BY id ASC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPhrases(rows, false)
}

// ResolveReview marks a review-queue entry resolved.
func (s *sqliteStore) ResolveReview(ctx context.Context, id int64, resolution string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE reviews SET resolution = ? WHERE id = ?`, resolution, id)
	return err
}

func scanPhrases(rows *sql.Rows, withDecision bool) ([]store.Phrase, error) {
	var out []store.Phrase
	for rows.Next() {
		var (
			p         store.Phrase
			scoreJSON string
			createdAt string
		)
		var err error
		if withDecision {
			err = rows.Scan(&p.ID, &p.Text, &p.Canonical, &p.Category, &p.Source,
				&p.ProviderID, &p.ModelID, &p.Total, &p.Decision, &scoreJSON, &createdAt)
		} else {
			err = rows.Scan(&p.ID, &p.Text, &p.Canonical, &p.Category, &p.Source,
				&p.ProviderID, &p.ModelID, &p.Total, &scoreJSON, &createdAt)
		}
		if err != nil {
			return nil, err
		}
		if scoreJSON != "" {
			if err := json.Unmarshal([]byte(scoreJSON), &p.Breakdown); err != nil {
				return nil, fmt.Errorf("parse breakdown: %w", err)
			}
		}
		if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			p.CreatedAt = t
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// SaveSession persists a session checkpoint. The full session record is
// stored as JSON so the schema can grow without migrations.
func (s *sqliteStore) SaveSession(ctx context.Context, sess store.Session) error {
	payload, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, status, created_at, payload) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET status = excluded.status, payload = excluded.payload`,
		sess.ID, sess.Status, sess.StartedAt.Format(time.RFC3339Nano), string(payload))
	return err
}

// LoadSession reads one session checkpoint.
func (s *sqliteStore) LoadSession(ctx context.Context, id string) (store.Session, bool, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM sessions WHERE id = ?`, id).Scan(&payload)
	if err == sql.ErrNoRows {
		return store.Session{}, false, nil
	}
	if err != nil {
		return store.Session{}, false, err
	}

	var sess store.Session
	if err := json.Unmarshal([]byte(payload), &sess); err != nil {
		return store.Session{}, false, fmt.Errorf("parse session: %w", err)
	}
	return sess, true, nil
}

// LatestIncompleteSession returns the most recent session left
// running or interrupted, if any.
func (s *sqliteStore) LatestIncompleteSession(ctx context.Context) (store.Session, bool, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `
		SELECT payload FROM sessions
		WHERE status IN (?, ?)
		ORDER BY created_at DESC LIMIT 1`,
		store.SessionRunning, store.SessionInterrupted).Scan(&payload)
	if err == sql.ErrNoRows {
		return store.Session{}, false, nil
	}
	if err != nil {
		return store.Session{}, false, err
	}

	var sess store.Session
	if err := json.Unmarshal([]byte(payload), &sess); err != nil {
		return store.Session{}, false, fmt.Errorf("parse session: %w", err)
	}
	return sess, true, nil
}

// ArchiveSession removes a cleanly completed session record.
func (s *sqliteStore) ArchiveSession(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	return err
}
