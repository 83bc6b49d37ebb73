package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/qosqo/leadscout/internal/lead"
)

const jobColumns = `id, source_type, target_url, status, progress, found, qualified,
	logs_json, errors_json, config_json, created_at, started_at, completed_at`

// InsertJob persists a new scrape run record.
func (s *Store) InsertJob(ctx context.Context, j *lead.Job) error {
	if j.CreatedAt.IsZero() {
		j.CreatedAt = time.Now().UTC()
	}
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO scraping_jobs (`+jobColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		j.ID, j.SourceType, j.TargetURL, string(j.Status), j.Progress, j.Found, j.Qualified,
		mustJSON(j.Logs), mustJSON(j.Errors), mustJSON(j.Config),
		j.CreatedAt.UnixMilli(), optMilli(j.StartedAt), optMilli(j.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("store: insert job: %w", err)
	}
	return nil
}

// UpdateJob rewrites a job's run state. The runner calls this on every
// progress change, so it must stay cheap.
func (s *Store) UpdateJob(ctx context.Context, j *lead.Job) error {
	res, err := s.DB.ExecContext(ctx,
		`UPDATE scraping_jobs SET status=?, progress=?, found=?, qualified=?,
		logs_json=?, errors_json=?, started_at=?, completed_at=?
		WHERE id=?`,
		string(j.Status), j.Progress, j.Found, j.Qualified,
		mustJSON(j.Logs), mustJSON(j.Errors),
		optMilli(j.StartedAt), optMilli(j.CompletedAt), j.ID,
	)
	if err != nil {
		return fmt.Errorf("store: update job: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// GetJob retrieves one job. Returns sql.ErrNoRows when absent.
func (s *Store) GetJob(ctx context.Context, id string) (*lead.Job, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM scraping_jobs WHERE id = ?`, id)
	return scanJob(row)
}

// ListJobs returns jobs newest first, optionally filtered by status.
func (s *Store) ListJobs(ctx context.Context, status lead.JobStatus, limit int) ([]*lead.Job, error) {
	if limit <= 0 {
		limit = 20
	}

	q := `SELECT ` + jobColumns + ` FROM scraping_jobs`
	var args []any
	if status != "" {
		q += ` WHERE status = ?`
		args = append(args, string(status))
	}
	q += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*lead.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func scanJob(row scanner) (*lead.Job, error) {
	var j lead.Job
	var status, logsJSON, errorsJSON, configJSON string
	var createdAt int64
	var startedAt, completedAt sql.NullInt64

	err := row.Scan(
		&j.ID, &j.SourceType, &j.TargetURL, &status, &j.Progress, &j.Found, &j.Qualified,
		&logsJSON, &errorsJSON, &configJSON, &createdAt, &startedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}

	j.Status = lead.JobStatus(status)
	j.CreatedAt = time.UnixMilli(createdAt)
	if startedAt.Valid {
		t := time.UnixMilli(startedAt.Int64)
		j.StartedAt = &t
	}
	if completedAt.Valid {
		t := time.UnixMilli(completedAt.Int64)
		j.CompletedAt = &t
	}

	for _, p := range []struct {
		src string
		dst any
	}{
		{logsJSON, &j.Logs},
		{errorsJSON, &j.Errors},
		{configJSON, &j.Config},
	} {
		if err := json.Unmarshal([]byte(p.src), p.dst); err != nil {
			return nil, fmt.Errorf("store: decode job %s: %w", j.ID, err)
		}
	}
	return &j, nil
}
