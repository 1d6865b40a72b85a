package store

import (
	"context"
	"database/sql"
	"time"
)

// AddJob schedules instruction to first run after delay. An interval of zero
// makes the job one-shot.
func (s *RunStore) AddJob(ctx context.Context, platform, chatID, instruction string, interval, delay time.Duration) (int64, error) {
	query := `INSERT INTO jobs (platform, chat_id, instruction, interval_seconds, next_run) VALUES (?, ?, ?, ?, ?)`
	res, err := s.DB.ExecContext(ctx, query, platform, chatID, instruction, int(interval/time.Second), millis(s.now().Add(delay)))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

const jobColumns = `id, platform, chat_id, instruction, interval_seconds, next_run, last_run`

func (s *RunStore) queryJobs(ctx context.Context, query string, args ...any) ([]Job, error) {
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		var j Job
		var next int64
		var last sql.NullInt64
		if err := rows.Scan(&j.ID, &j.Platform, &j.ChatID, &j.Instruction, &j.IntervalSeconds, &next, &last); err != nil {
			return nil, err
		}
		j.NextRun = fromMillis(next)
		j.LastRun = nullableTime(last)
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// DuePendingJobs returns the jobs whose next run time has passed, oldest
// first.
func (s *RunStore) DuePendingJobs(ctx context.Context) ([]Job, error) {
	return s.queryJobs(ctx, `SELECT `+jobColumns+` FROM jobs WHERE next_run <= ? ORDER BY next_run, id`, millis(s.now()))
}

// ListJobs returns a chat's jobs in creation order.
func (s *RunStore) ListJobs(ctx context.Context, platform, chatID string) ([]Job, error) {
	return s.queryJobs(ctx, `SELECT `+jobColumns+` FROM jobs WHERE platform = ? AND chat_id = ? ORDER BY id`, platform, chatID)
}

// MarkJobRun records a run and pushes the next run out by the interval.
func (s *RunStore) MarkJobRun(ctx context.Context, j Job) error {
	now := s.now()
	next := now.Add(time.Duration(j.IntervalSeconds) * time.Second)
	res, err := s.DB.ExecContext(ctx, `UPDATE jobs SET last_run = ?, next_run = ? WHERE id = ?`, millis(now), millis(next), j.ID)
	if err != nil {
		return err
	}
	return expectRow(res)
}

func (s *RunStore) DeleteJob(ctx context.Context, id int64) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return expectRow(res)
}

// ClearJobs removes every job of a chat and returns how many were removed.
func (s *RunStore) ClearJobs(ctx context.Context, platform, chatID string) (int64, error) {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM jobs WHERE platform = ? AND chat_id = ?`, platform, chatID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
