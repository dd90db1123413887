package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

type RunRecorder interface {
	Record(ctx context.Context, run Run) error
}

type RunLister interface {
	List(ctx context.Context, filter ListFilter) ([]Run, error)
}

type RunPruner interface {
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type RunStore interface {
	RunRecorder
	RunLister
	RunPruner
}

// ListFilter bounds are inclusive; zero times are unbounded.
type ListFilter struct {
	Job   string
	Since time.Time
	Until time.Time
	Limit int
}

// DBTX is the subset of pgxpool.Pool the store needs.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type PgRunStore struct {
	db DBTX
}

func NewPgRunStore(db DBTX) *PgRunStore {
	return &PgRunStore{db: db}
}

const cronRunsSchema = `
	create table if not exists cron_runs (
		id uuid primary key,
		job text not null,
		trigger text not null,
		status text not null,
		started_at timestamptz not null,
		ended_at timestamptz not null,
		report jsonb not null default '{}'::jsonb,
		error text
	);
	create index if not exists cron_runs_job_started_idx on cron_runs (job, started_at desc);
`

func (s *PgRunStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, cronRunsSchema); err != nil {
		return fmt.Errorf("ensure cron_runs schema: %w", err)
	}
	return nil
}

func (s *PgRunStore) Record(ctx context.Context, run Run) error {
	report, err := json.Marshal(run.Report)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	var runErr *string
	if run.Error != "" {
		runErr = &run.Error
	}

	_, err = s.db.Exec(ctx, `
		insert into cron_runs (id, job, trigger, status, started_at, ended_at, report, error)
		values ($1::uuid, $2, $3, $4, $5, $6, $7, $8)
	`, run.ID, run.Job, run.Trigger, run.Status, run.StartedAt, run.EndedAt, report, runErr)
	if err != nil {
		return fmt.Errorf("insert cron run: %w", err)
	}
	return nil
}

func (s *PgRunStore) List(ctx context.Context, filter ListFilter) ([]Run, error) {
	query, args := buildListQuery(filter)
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list cron runs: %w", err)
	}
	defer rows.Close()

	out := make([]Run, 0)
	for rows.Next() {
		var (
			run    Run
			report []byte
			runErr *string
		)
		if err := rows.Scan(&run.ID, &run.Job, &run.Trigger, &run.Status, &run.StartedAt, &run.EndedAt, &report, &runErr); err != nil {
			return nil, fmt.Errorf("scan cron run: %w", err)
		}
		if len(report) > 0 {
			if err := json.Unmarshal(report, &run.Report); err != nil {
				return nil, fmt.Errorf("decode report for run %s: %w", run.ID, err)
			}
		}
		if runErr != nil {
			run.Error = *runErr
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

func (s *PgRunStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `delete from cron_runs where started_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete cron runs: %w", err)
	}
	return tag.RowsAffected(), nil
}

func normalizeLimit(limit int) int {
	if limit < 1 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

func buildListQuery(filter ListFilter) (string, []any) {
	var (
		where []string
		args  []any
	)
	if job := strings.TrimSpace(filter.Job); job != "" {
		args = append(args, job)
		where = append(where, fmt.Sprintf("job = $%d", len(args)))
	}
	if !filter.Since.IsZero() {
		args = append(args, filter.Since)
		where = append(where, fmt.Sprintf("started_at >= $%d", len(args)))
	}
	if !filter.Until.IsZero() {
		args = append(args, filter.Until)
		where = append(where, fmt.Sprintf("started_at <= $%d", len(args)))
	}

	var b strings.Builder
	b.WriteString("select id::text, job, trigger, status, started_at, ended_at, report, error from cron_runs")
	if len(where) > 0 {
		b.WriteString(" where ")
		b.WriteString(strings.Join(where, " and "))
	}
	args = append(args, normalizeLimit(filter.Limit))
	fmt.Fprintf(&b, " order by started_at desc limit $%d", len(args))
	return b.String(), args
}
