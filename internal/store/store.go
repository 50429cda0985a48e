// Package store persists finished-mission records to a local SQLite file so
// field engineers can audit what the robot did after the fact.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Tbala-06/GIQ-2025/internal/mission"
	"github.com/Tbala-06/GIQ-2025/internal/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS mission_history (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	mission_id  TEXT    NOT NULL,
	job_id      INTEGER NOT NULL,
	target_lat  REAL    NOT NULL,
	target_lon  REAL    NOT NULL,
	success     INTEGER NOT NULL,
	message     TEXT    NOT NULL,
	started_at  TIMESTAMP NOT NULL,
	finished_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_mission_history_job ON mission_history(job_id);
`

// Store is the SQLite-backed mission history. It implements
// mission.HistoryRecorder.
type Store struct {
	conn *sql.DB
	path string
}

// Open opens (creating if needed) the history database at path. WAL mode
// keeps the control loop's single writer from blocking readers.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", path)

	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping history database: %w", err)
	}
	if _, err := conn.ExecContext(ctx, schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create history schema: %w", err)
	}

	return &Store{conn: conn, path: path}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Record implements mission.HistoryRecorder.
func (s *Store) Record(ctx context.Context, entry mission.HistoryEntry) error {
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO mission_history
			(mission_id, job_id, target_lat, target_lon, success, message, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.MissionID.String(),
		entry.JobID,
		entry.TargetLat,
		entry.TargetLon,
		entry.Success,
		entry.Message,
		entry.StartedAt.UTC(),
		entry.FinishedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record mission: %w", err)
	}
	return nil
}

// Recent returns up to limit finished missions, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]mission.HistoryEntry, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT mission_id, job_id, target_lat, target_lon, success, message, started_at, finished_at
		FROM mission_history
		ORDER BY finished_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query mission history: %w", err)
	}
	defer rows.Close()

	var entries []mission.HistoryEntry
	for rows.Next() {
		var (
			entry mission.HistoryEntry
			rawID string
		)
		if err := rows.Scan(
			&rawID,
			&entry.JobID,
			&entry.TargetLat,
			&entry.TargetLon,
			&entry.Success,
			&entry.Message,
			&entry.StartedAt,
			&entry.FinishedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan mission row: %w", err)
		}
		id, err := types.ParseID(rawID)
		if err != nil {
			return nil, fmt.Errorf("invalid mission id %q in history: %w", rawID, err)
		}
		entry.MissionID = id
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
