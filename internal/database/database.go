package database

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/svchittilla/gamemycourse/internal/models"
	_ "modernc.org/sqlite" // CGO-free SQLite
)

const (
	StatusActive = "active"
	StatusEnded  = "ended"

	kindSnapshot = "snapshot"
	kindFinal    = "final"
)

type Database struct {
	db                *sql.DB
	validContentTypes map[models.ContentType]bool
}

// Session is the collector's record of one tracked session.
type Session struct {
	SessionID           string             `json:"session_id"`
	URL                 string             `json:"url"`
	ContentType         models.ContentType `json:"content_type"`
	Status              string             `json:"status"`
	PredictedEngagement *float64           `json:"predicted_engagement"`
	FirstSeenAt         time.Time          `json:"first_seen_at"`
	LastSeenAt          time.Time          `json:"last_seen_at"`
	EndedAt             *time.Time         `json:"ended_at,omitempty"`
	Snapshots           int                `json:"snapshots"`
}

func NewDatabase(databasePath string) (*Database, error) {
	// WAL + busy timeout to avoid "database is locked"
	db, err := sql.Open("sqlite", databasePath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows one writer; serialize through a single connection.
	db.SetMaxOpenConns(1)

	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Database{
		db: db,
		validContentTypes: map[models.ContentType]bool{
			models.ContentVideo:   true,
			models.ContentArticle: true,
			models.ContentWebpage: true,
		},
	}, nil
}

func createTables(db *sql.DB) error {
	_, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS sessions(
	  session_id           TEXT    PRIMARY KEY,
	  url                  TEXT    NOT NULL,
	  content_type         TEXT    NOT NULL CHECK (content_type IN ('video','article','webpage')),
	  status               TEXT    NOT NULL CHECK (status IN ('active','ended')),
	  predicted_engagement REAL,
	  first_seen_at        INTEGER NOT NULL,
	  last_seen_at         INTEGER NOT NULL,
	  ended_at             INTEGER
	);
	CREATE TABLE IF NOT EXISTS events(
	  id           INTEGER PRIMARY KEY,
	  session_id   TEXT    NOT NULL REFERENCES sessions(session_id),
	  kind         TEXT    NOT NULL CHECK (kind IN ('snapshot','final')),
	  ts_utc       INTEGER NOT NULL,
	  payload_json TEXT    NOT NULL CHECK (json_valid(payload_json))
	);
	CREATE INDEX IF NOT EXISTS idx_events_session ON events(session_id);
	CREATE INDEX IF NOT EXISTS idx_events_ts      ON events(ts_utc);
	CREATE INDEX IF NOT EXISTS idx_sessions_url   ON sessions(url);
	`)
	if err != nil {
		return fmt.Errorf("failed to create database tables: %w", err)
	}
	return nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

func (d *Database) ValidateSnapshot(snapshot models.Snapshot) error {
	if snapshot.SessionID == "" {
		return fmt.Errorf("session_id cannot be empty")
	}
	if snapshot.URL == "" {
		return fmt.Errorf("URL cannot be empty")
	}
	if !d.validContentTypes[snapshot.ContentType] {
		return fmt.Errorf("invalid content type: %s", snapshot.ContentType)
	}
	if snapshot.Timestamp.IsZero() {
		return fmt.Errorf("timestamp cannot be empty")
	}
	return nil
}

// RecordSnapshot stores an interim snapshot. An ended session keeps its
// status and score.
func (d *Database) RecordSnapshot(snapshot models.Snapshot) error {
	if err := d.ValidateSnapshot(snapshot); err != nil {
		return fmt.Errorf("invalid snapshot: %w", err)
	}
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	at := snapshot.Timestamp.UnixMilli()

	transaction, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if _, err := transaction.Exec(`
	INSERT INTO sessions(session_id, url, content_type, status, first_seen_at, last_seen_at)
	VALUES(?,?,?,?,?,?)
	ON CONFLICT(session_id) DO UPDATE SET
	  url          = excluded.url,
	  content_type = excluded.content_type,
	  last_seen_at = MAX(sessions.last_seen_at, excluded.last_seen_at)`,
		snapshot.SessionID, snapshot.URL, string(snapshot.ContentType), StatusActive, at, at); err != nil {
		_ = transaction.Rollback()
		return fmt.Errorf("failed to upsert session: %w", err)
	}
	if err := insertEvent(transaction, snapshot.SessionID, kindSnapshot, at, payload); err != nil {
		_ = transaction.Rollback()
		return err
	}
	if err := transaction.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// EndSession stores a final snapshot and its score. When the session was
// already ended nothing is written and the stored record is returned with
// created false.
func (d *Database) EndSession(snapshot models.Snapshot, score float64) (Session, bool, error) {
	if err := d.ValidateSnapshot(snapshot); err != nil {
		return Session{}, false, fmt.Errorf("invalid snapshot: %w", err)
	}
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return Session{}, false, fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	at := snapshot.Timestamp.UnixMilli()

	transaction, err := d.db.Begin()
	if err != nil {
		return Session{}, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	result, err := transaction.Exec(`
	INSERT INTO sessions(session_id, url, content_type, status, predicted_engagement, first_seen_at, last_seen_at, ended_at)
	VALUES(?,?,?,?,?,?,?,?)
	ON CONFLICT(session_id) DO UPDATE SET
	  url                  = excluded.url,
	  content_type         = excluded.content_type,
	  status               = excluded.status,
	  predicted_engagement = excluded.predicted_engagement,
	  last_seen_at         = MAX(sessions.last_seen_at, excluded.last_seen_at),
	  ended_at             = excluded.ended_at
	WHERE sessions.status != 'ended'`,
		snapshot.SessionID, snapshot.URL, string(snapshot.ContentType), StatusEnded, score, at, at, at)
	if err != nil {
		_ = transaction.Rollback()
		return Session{}, false, fmt.Errorf("failed to upsert session: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		_ = transaction.Rollback()
		return Session{}, false, fmt.Errorf("failed to read affected rows: %w", err)
	}

	created := affected > 0
	if created {
		if err := insertEvent(transaction, snapshot.SessionID, kindFinal, at, payload); err != nil {
			_ = transaction.Rollback()
			return Session{}, false, err
		}
	}
	session, err := findSession(transaction, snapshot.SessionID)
	if err != nil {
		_ = transaction.Rollback()
		return Session{}, false, err
	}
	if err := transaction.Commit(); err != nil {
		return Session{}, false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return session, created, nil
}

// FindSession returns the stored session, or found false.
func (d *Database) FindSession(sessionID string) (session Session, found bool, err error) {
	session, err = findSession(d.db, sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, false, nil
	}
	if err != nil {
		return Session{}, false, err
	}
	return session, true, nil
}

type queryer interface {
	QueryRow(query string, args ...any) *sql.Row
}

func findSession(q queryer, sessionID string) (Session, error) {
	var (
		session     Session
		contentType string
		score       sql.NullFloat64
		firstSeen   int64
		lastSeen    int64
		ended       sql.NullInt64
	)
	err := q.QueryRow(`
	SELECT s.session_id, s.url, s.content_type, s.status, s.predicted_engagement,
	       s.first_seen_at, s.last_seen_at, s.ended_at,
	       (SELECT COUNT(*) FROM events e WHERE e.session_id = s.session_id)
	FROM sessions s WHERE s.session_id = ?`, sessionID).Scan(
		&session.SessionID, &session.URL, &contentType, &session.Status, &score,
		&firstSeen, &lastSeen, &ended, &session.Snapshots)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, err
	}
	if err != nil {
		return Session{}, fmt.Errorf("failed to query session: %w", err)
	}

	session.ContentType = models.ContentType(contentType)
	if score.Valid {
		session.PredictedEngagement = &score.Float64
	}
	session.FirstSeenAt = time.UnixMilli(firstSeen).UTC()
	session.LastSeenAt = time.UnixMilli(lastSeen).UTC()
	if ended.Valid {
		endedAt := time.UnixMilli(ended.Int64).UTC()
		session.EndedAt = &endedAt
	}
	return session, nil
}

func insertEvent(transaction *sql.Tx, sessionID, kind string, at int64, payload []byte) error {
	statement, err := transaction.Prepare(`INSERT INTO events(session_id, kind, ts_utc, payload_json) VALUES(?,?,?,json(?))`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer statement.Close()

	if _, err := statement.Exec(sessionID, kind, at, string(payload)); err != nil {
		return fmt.Errorf("failed to execute statement: %w", err)
	}
	return nil
}
