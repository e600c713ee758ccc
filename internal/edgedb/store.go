// Package edgedb persists edge tracking sessions in SQLite: one row per
// session, one summary row per cycle and a snapshot of the tracked edges
// after every cycle.
package edgedb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/spatial/r2"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/edgetrack/internal/edge"
)

// ErrSessionNotFound is returned when a session ID has no row.
var ErrSessionNotFound = errors.New("session not found")

// Store wraps the tracking database.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// Session describes one tracking run.
type Session struct {
	ID        string
	FrameName string
	Config    edge.TrackerConfig
	Notes     string
	StartedAt time.Time
}

// CycleSummary is the persisted form of one cycle's Result.
type CycleSummary struct {
	Pose       edge.Pose
	Result     edge.Result
	RecordedAt time.Time
}

// Open opens (creating if needed) the database at path and migrates it to
// the latest schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// PRAGMAs are per connection.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	s := &Store{db: db, path: path, now: time.Now}
	if err := s.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// StartSession records a new session for a tracker configured with cfg and
// returns its ID.
func (s *Store) StartSession(ctx context.Context, cfg edge.TrackerConfig, notes string) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO edge_sessions (session_id, frame_name, min_length, max_length, min_height, max_height, notes, started_unix_nanos)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, cfg.FrameName, cfg.MinLength, cfg.MaxLength, cfg.MinHeight, cfg.MaxHeight, notes, s.now().UnixNano())
	if err != nil {
		return "", fmt.Errorf("failed to insert session: %w", err)
	}
	return id, nil
}

// Session returns one session by ID.
func (s *Store) Session(ctx context.Context, id string) (Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT session_id, frame_name, min_length, max_length, min_height, max_height, notes, started_unix_nanos
		FROM edge_sessions WHERE session_id = ?`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return sess, err
}

// ListSessions returns all sessions, oldest first.
func (s *Store) ListSessions(ctx context.Context) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, frame_name, min_length, max_length, min_height, max_height, notes, started_unix_nanos
		FROM edge_sessions ORDER BY started_unix_nanos, session_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(r rowScanner) (Session, error) {
	var sess Session
	var started int64
	err := r.Scan(&sess.ID, &sess.FrameName,
		&sess.Config.MinLength, &sess.Config.MaxLength, &sess.Config.MinHeight, &sess.Config.MaxHeight,
		&sess.Notes, &started)
	if err != nil {
		return Session{}, err
	}
	sess.Config.FrameName = sess.FrameName
	sess.StartedAt = time.Unix(0, started)
	return sess, nil
}

// RecordCycle stores the cycle summary and the tracked edges of snap in one
// transaction.
func (s *Store) RecordCycle(ctx context.Context, sessionID string, snap edge.CycleSnapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res := snap.Result
	_, err = tx.ExecContext(ctx, `
		INSERT INTO edge_cycles (
			session_id, cycle, pose_x, pose_y, pose_yaw,
			kept, dropped, candidates, rejected_length, rejected_height, merged, redundant, added,
			edge_count, nearest_index, direction_x, direction_y, nearest_height, nearest_distance,
			recorded_unix_nanos)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, int64(res.Cycle), snap.Pose.X, snap.Pose.Y, snap.Pose.Yaw,
		res.Kept, res.Dropped, res.Candidates, res.RejectedLength, res.RejectedHeight,
		res.Merged, res.Redundant, res.Added,
		res.EdgeCount, res.NearestIndex, res.Direction.X, res.Direction.Y,
		res.NearestHeight, res.NearestDistance, s.now().UnixNano())
	if err != nil {
		return fmt.Errorf("failed to insert cycle %d: %w", res.Cycle, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO edge_snapshots (
			session_id, cycle, edge_index, x1, y1, x2, y2, length, yaw, coeff_sin, coeff_cos, height, z)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare edge insert: %w", err)
	}
	defer stmt.Close()

	for i, e := range snap.Edges {
		if _, err := stmt.ExecContext(ctx, sessionID, int64(res.Cycle), i,
			e.Point1.X, e.Point1.Y, e.Point2.X, e.Point2.Y,
			e.Length, e.Yaw, e.LineCoeffs.X, e.LineCoeffs.Y, e.Height, e.Z); err != nil {
			return fmt.Errorf("failed to insert edge %d of cycle %d: %w", i, res.Cycle, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cycle %d: %w", res.Cycle, err)
	}
	return nil
}

// CycleSummaries returns every recorded cycle of a session in cycle order.
func (s *Store) CycleSummaries(ctx context.Context, sessionID string) ([]CycleSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT cycle, pose_x, pose_y, pose_yaw,
			kept, dropped, candidates, rejected_length, rejected_height, merged, redundant, added,
			edge_count, nearest_index, direction_x, direction_y, nearest_height, nearest_distance,
			recorded_unix_nanos
		FROM edge_cycles WHERE session_id = ? ORDER BY cycle`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cycles: %w", err)
	}
	defer rows.Close()

	var out []CycleSummary
	for rows.Next() {
		var c CycleSummary
		var cycle, recorded int64
		r := &c.Result
		if err := rows.Scan(&cycle, &c.Pose.X, &c.Pose.Y, &c.Pose.Yaw,
			&r.Kept, &r.Dropped, &r.Candidates, &r.RejectedLength, &r.RejectedHeight,
			&r.Merged, &r.Redundant, &r.Added,
			&r.EdgeCount, &r.NearestIndex, &r.Direction.X, &r.Direction.Y,
			&r.NearestHeight, &r.NearestDistance, &recorded); err != nil {
			return nil, fmt.Errorf("failed to scan cycle: %w", err)
		}
		r.Cycle = uint64(cycle)
		c.RecordedAt = time.Unix(0, recorded)
		out = append(out, c)
	}
	return out, rows.Err()
}

// CycleEdges returns the tracked edges recorded after one cycle, in tracker
// order.
func (s *Store) CycleEdges(ctx context.Context, sessionID string, cycle uint64) ([]edge.Edge, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT x1, y1, x2, y2, length, yaw, coeff_sin, coeff_cos, height, z
		FROM edge_snapshots WHERE session_id = ? AND cycle = ? ORDER BY edge_index`,
		sessionID, int64(cycle))
	if err != nil {
		return nil, fmt.Errorf("failed to query edges: %w", err)
	}
	defer rows.Close()

	var out []edge.Edge
	for rows.Next() {
		var e edge.Edge
		var p1, p2, coeffs r2.Vec
		if err := rows.Scan(&p1.X, &p1.Y, &p2.X, &p2.Y, &e.Length, &e.Yaw,
			&coeffs.X, &coeffs.Y, &e.Height, &e.Z); err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		e.Point1, e.Point2, e.LineCoeffs = p1, p2, coeffs
		out = append(out, e)
	}
	return out, rows.Err()
}

// DeleteSession removes a session and, by cascade, its cycles and edges.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM edge_sessions WHERE session_id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return nil
}
