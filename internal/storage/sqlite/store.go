// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/relabs-tech/flight_companion/internal/storage"
	"github.com/relabs-tech/flight_companion/internal/telemetry"
)

//go:embed schema.sql
var schema string

// Store provides SQLite-backed flight log persistence.
type Store struct {
	sqlDB *sql.DB
}

// Open opens the flight log database and creates its tables.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close releases the SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return nil
}

// StartSegment opens a segment. Starting an existing id fails.
func (s *Store) StartSegment(ctx context.Context, id string, at time.Time) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("segment id is required")
	}
	if at.IsZero() {
		at = time.Now()
	}

	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO segments (id, started_at) VALUES (?, ?)`,
		id, at.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("start segment %s: %w", id, err)
	}
	return nil
}

// AppendFix stores fix in the segment named by fix.SessionID.
func (s *Store) AppendFix(ctx context.Context, fix telemetry.LogFix) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(fix.SessionID) == "" {
		return fmt.Errorf("segment id is required")
	}
	if fix.Time.IsZero() {
		fix.Time = time.Now()
	}

	res, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO fixes (segment_id, recorded_at, latitude, longitude)
SELECT id, ?, ?, ? FROM segments WHERE id = ? AND ended_at IS NULL
`,
		fix.Time.UTC().UnixMilli(),
		fix.Latitude,
		fix.Longitude,
		fix.SessionID,
	)
	if err != nil {
		return fmt.Errorf("append fix: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("append fix: segment %s is not open", fix.SessionID)
	}
	return nil
}

// CloseSegment marks a segment finished. Closing twice keeps the first end.
func (s *Store) CloseSegment(ctx context.Context, id string, at time.Time) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if at.IsZero() {
		at = time.Now()
	}

	res, err := s.sqlDB.ExecContext(ctx,
		`UPDATE segments SET ended_at = ? WHERE id = ? AND ended_at IS NULL`,
		at.UTC().UnixMilli(), id,
	)
	if err != nil {
		return fmt.Errorf("close segment %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("close segment %s: not open", id)
	}
	return nil
}

// Clear removes every segment and fix.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("clear: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM fixes`); err != nil {
		return fmt.Errorf("clear fixes: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM segments`); err != nil {
		return fmt.Errorf("clear segments: %w", err)
	}
	return tx.Commit()
}

// ListSegments lists segments newest first with their fix counts.
func (s *Store) ListSegments(ctx context.Context) ([]storage.Segment, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT
	s.id,
	s.started_at,
	s.ended_at,
	COUNT(f.id)
FROM segments s
LEFT JOIN fixes f ON f.segment_id = s.id
GROUP BY s.id
ORDER BY s.started_at DESC, s.id DESC
`)
	if err != nil {
		return nil, fmt.Errorf("list segments: %w", err)
	}
	defer rows.Close()

	segments := make([]storage.Segment, 0)
	for rows.Next() {
		var seg storage.Segment
		var startedAt int64
		var endedAt sql.NullInt64
		if err := rows.Scan(&seg.ID, &startedAt, &endedAt, &seg.Fixes); err != nil {
			return nil, fmt.Errorf("scan segment: %w", err)
		}
		seg.StartedAt = time.UnixMilli(startedAt).UTC()
		if endedAt.Valid {
			seg.EndedAt = time.UnixMilli(endedAt.Int64).UTC()
		}
		segments = append(segments, seg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate segments: %w", err)
	}
	return segments, nil
}

// SegmentFixes returns the fixes of one segment in logging order.
func (s *Store) SegmentFixes(ctx context.Context, id string) ([]telemetry.LogFix, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT recorded_at, latitude, longitude
FROM fixes
WHERE segment_id = ?
ORDER BY id
`, id)
	if err != nil {
		return nil, fmt.Errorf("segment fixes: %w", err)
	}
	defer rows.Close()

	fixes := make([]telemetry.LogFix, 0)
	for rows.Next() {
		fix := telemetry.LogFix{SessionID: id}
		var recordedAt int64
		if err := rows.Scan(&recordedAt, &fix.Latitude, &fix.Longitude); err != nil {
			return nil, fmt.Errorf("scan fix: %w", err)
		}
		fix.Time = time.UnixMilli(recordedAt).UTC()
		fixes = append(fixes, fix)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fixes: %w", err)
	}
	return fixes, nil
}

var (
	_ storage.LogStore  = (*Store)(nil)
	_ storage.LogReader = (*Store)(nil)
)
