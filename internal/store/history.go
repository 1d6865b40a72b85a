package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/glebarez/go-sqlite"
)

// ErrNotFound is returned when a run or job does not exist.
var ErrNotFound = errors.New("not found")

// RunStore persists run history and scheduled jobs in sqlite. Times are
// stored as unix milliseconds.
type RunStore struct {
	DB  *sql.DB
	now func() time.Time
}

func NewRunStore(dbPath string) (*RunStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// sqlite allows a single writer.
	db.SetMaxOpenConns(1)

	queries := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			instruction TEXT NOT NULL DEFAULT '',
			title TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			error TEXT NOT NULL DEFAULT '',
			plan TEXT,
			report TEXT,
			created_at INTEGER NOT NULL,
			finished_at INTEGER
		);`,
		`CREATE TABLE IF NOT EXISTS run_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			at INTEGER NOT NULL,
			category TEXT NOT NULL,
			message TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_run_logs_run ON run_logs(run_id, id);`,
		`CREATE TABLE IF NOT EXISTS jobs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			platform TEXT NOT NULL,
			chat_id TEXT NOT NULL,
			instruction TEXT NOT NULL,
			interval_seconds INTEGER NOT NULL DEFAULT 0,
			next_run INTEGER NOT NULL,
			last_run INTEGER
		);`,
	}
	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to initialise store: %w", err)
		}
	}

	return &RunStore{DB: db, now: time.Now}, nil
}

func (s *RunStore) Close() error {
	return s.DB.Close()
}

func millis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func nullableTime(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromMillis(v.Int64)
	return &t
}

func encode(v any) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// CreateRun records a new run in the running state.
func (s *RunStore) CreateRun(ctx context.Context, id, instruction string) error {
	query := `INSERT INTO runs (id, instruction, status, created_at) VALUES (?, ?, ?, ?)`
	_, err := s.DB.ExecContext(ctx, query, id, instruction, RunRunning, millis(s.now()))
	return err
}

// SetPlan stores the plan a run executes.
func (s *RunStore) SetPlan(ctx context.Context, id, title string, plan any) error {
	data, err := encode(plan)
	if err != nil {
		return fmt.Errorf("failed to encode plan: %w", err)
	}
	res, err := s.DB.ExecContext(ctx, `UPDATE runs SET title = ?, plan = ? WHERE id = ?`, title, data, id)
	if err != nil {
		return err
	}
	return expectRow(res)
}

// FinishRun records the final status, error and report of a run.
func (s *RunStore) FinishRun(ctx context.Context, id string, status RunStatus, runErr error, report any) error {
	data, err := encode(report)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	msg := ""
	if runErr != nil {
		msg = runErr.Error()
	}
	query := `UPDATE runs SET status = ?, error = ?, report = ?, finished_at = ? WHERE id = ?`
	res, err := s.DB.ExecContext(ctx, query, status, msg, data, millis(s.now()), id)
	if err != nil {
		return err
	}
	return expectRow(res)
}

// AppendLogs adds sink entries to a run, preserving their order.
func (s *RunStore) AppendLogs(ctx context.Context, runID string, entries []LogEntry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO run_logs (run_id, at, category, message) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, runID, millis(e.Time), e.Category, e.Message); err != nil {
			return err
		}
	}
	return tx.Commit()
}

const runColumns = `id, instruction, title, status, error, plan, report, created_at, finished_at`

func scanRun(row interface{ Scan(...any) error }) (*Run, error) {
	var r Run
	var plan, report sql.NullString
	var created int64
	var finished sql.NullInt64
	if err := row.Scan(&r.ID, &r.Instruction, &r.Title, &r.Status, &r.Error, &plan, &report, &created, &finished); err != nil {
		return nil, err
	}
	if plan.Valid {
		r.Plan = json.RawMessage(plan.String)
	}
	if report.Valid {
		r.Report = json.RawMessage(report.String)
	}
	r.CreatedAt = fromMillis(created)
	r.FinishedAt = nullableTime(finished)
	return &r, nil
}

// GetRun returns a run with its log entries.
func (s *RunStore) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx, `SELECT at, category, message FROM run_logs WHERE run_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var at int64
		var e LogEntry
		if err := rows.Scan(&at, &e.Category, &e.Message); err != nil {
			return nil, err
		}
		e.Time = fromMillis(at)
		r.Logs = append(r.Logs, e)
	}
	return r, rows.Err()
}

// ListRuns returns the most recent runs first, without logs.
func (s *RunStore) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.DB.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func expectRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
