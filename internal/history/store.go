package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/momentumsubash/ytd/internal/config"
	"github.com/momentumsubash/ytd/internal/progress"
)

// Store manages the run journal backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the journal database and applies migrations.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.StateDir, "history.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the location of the journal database file.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// StartRun inserts a run row stamped with the current time.
func (s *Store) StartRun(ctx context.Context, id string, playlists int) (*Run, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errors.New("run id is required")
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO runs (id, started_at, playlists) VALUES (?, ?, ?)`,
		id,
		time.Now().UTC().Format(time.RFC3339Nano),
		playlists,
	)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return s.GetRun(ctx, id)
}

// FinishRun stamps the run finished and stores its aggregate totals.
func (s *Store) FinishRun(ctx context.Context, id string, totals Totals) error {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE runs SET finished_at = ?, completed = ?, skipped = ?, failed = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano),
		totals.Completed,
		totals.Skipped,
		totals.Failed,
		id,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("run %q not found", id)
	}
	return nil
}

// RecordOutcome appends one unit outcome to the journal.
func (s *Store) RecordOutcome(ctx context.Context, rec Record) error {
	if strings.TrimSpace(rec.RunID) == "" {
		return errors.New("run id is required")
	}
	if strings.TrimSpace(rec.Stem) == "" {
		return errors.New("stem is required")
	}
	created := rec.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO unit_outcomes (
            run_id, playlist, stage, stem, status, detail,
            bytes, duration_seconds, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID,
		nullableString(rec.Playlist),
		string(rec.Stage),
		rec.Stem,
		string(rec.Status),
		nullableString(rec.Detail),
		rec.Bytes,
		rec.Duration.Seconds(),
		created.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert outcome: %w", err)
	}
	return nil
}

// GetRun fetches a run by identifier. A missing run returns nil without error.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// RecentRuns returns the newest runs first, up to limit.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// RunOutcomes returns the unit outcomes for a run in insertion order.
func (s *Store) RunOutcomes(ctx context.Context, runID string) ([]Record, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+outcomeColumns+` FROM unit_outcomes WHERE run_id = ? ORDER BY id`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query run outcomes: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

const runColumns = "id, started_at, finished_at, playlists, completed, skipped, failed"

const outcomeColumns = "id, run_id, playlist, stage, stem, status, detail, bytes, duration_seconds, created_at"

func scanRun(scanner interface{ Scan(dest ...any) error }) (*Run, error) {
	var (
		id          string
		startedRaw  string
		finishedRaw sql.NullString
		playlists   int
		completed   int
		skipped     int
		failed      int
	)
	if err := scanner.Scan(&id, &startedRaw, &finishedRaw, &playlists, &completed, &skipped, &failed); err != nil {
		return nil, err
	}

	run := &Run{
		ID:        id,
		Playlists: playlists,
		Completed: completed,
		Skipped:   skipped,
		Failed:    failed,
	}
	if started, err := parseTimeString(startedRaw); err == nil {
		run.StartedAt = started
	}
	if finishedRaw.Valid {
		if finished, err := parseTimeString(finishedRaw.String); err == nil {
			run.FinishedAt = &finished
		}
	}
	return run, nil
}

func scanRecord(scanner interface{ Scan(dest ...any) error }) (Record, error) {
	var (
		id         int64
		runID      string
		playlist   sql.NullString
		stage      string
		stem       string
		status     string
		detail     sql.NullString
		bytes      int64
		durationS  float64
		createdRaw string
	)
	if err := scanner.Scan(&id, &runID, &playlist, &stage, &stem, &status, &detail, &bytes, &durationS, &createdRaw); err != nil {
		return Record{}, err
	}

	rec := Record{
		ID:       id,
		RunID:    runID,
		Playlist: playlist.String,
		Stage:    progress.Stage(stage),
		Stem:     stem,
		Status:   progress.Status(status),
		Detail:   detail.String,
		Bytes:    bytes,
		Duration: time.Duration(durationS * float64(time.Second)),
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		rec.CreatedAt = created
	}
	return rec, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}
