package runlog

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/juanocv/magalu-cd-location/internal/db"
)

// PostgresStore keeps run records in Postgres, for teams that want the
// QC counters queryable next to their warehouse tables.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig tunes the connection pool.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres connects a pool to connString and pings it.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "runlog: parse postgres config")
	}

	maxConns := int32(4)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "runlog: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "runlog: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	command     TEXT NOT NULL,
	data_ref    TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL DEFAULT 'running',
	rows_in     BIGINT NOT NULL DEFAULT 0,
	rows_out    BIGINT NOT NULL DEFAULT 0,
	error       TEXT,
	started_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	finished_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS run_counters (
	run_id TEXT NOT NULL REFERENCES runs(id),
	name   TEXT NOT NULL,
	value  BIGINT NOT NULL,
	PRIMARY KEY (run_id, name)
);

CREATE INDEX IF NOT EXISTS idx_runs_command ON runs(command);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "runlog: migrate postgres")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) StartRun(ctx context.Context, command, dataRef string) (*Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, command, data_ref, status, started_at) VALUES ($1, $2, $3, $4, $5)`,
		id, command, dataRef, string(StatusRunning), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "runlog: insert run")
	}

	return &Run{
		ID:        id,
		Command:   command,
		DataRef:   dataRef,
		Status:    StatusRunning,
		StartedAt: now,
	}, nil
}

// CompleteRun closes the run and fans its QC counters out into
// run_counters, one row per counter, over the COPY protocol.
func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, rowsIn, rowsOut int64, counters map[string]int64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, rows_in = $2, rows_out = $3, finished_at = $4 WHERE id = $5`,
		string(StatusCompleted), rowsIn, rowsOut, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "runlog: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("runlog: run not found: %s", runID)
	}

	if len(counters) == 0 {
		return nil
	}
	rows := make([][]any, 0, len(counters))
	for _, name := range sortedCounterNames(counters) {
		rows = append(rows, []any{runID, name, counters[name]})
	}
	if _, err := db.CopyFrom(ctx, s.pool, "run_counters", []string{"run_id", "name", "value"}, rows); err != nil {
		return eris.Wrapf(err, "runlog: counters for run %s", runID)
	}
	return nil
}

func (s *PostgresStore) FailRun(ctx context.Context, runID, message string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, error = $2, finished_at = $3 WHERE id = $4`,
		string(StatusFailed), message, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "runlog: fail run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("runlog: run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter Filter) ([]Run, error) {
	query := `SELECT id, command, data_ref, status, rows_in, rows_out, error, started_at, finished_at
	          FROM runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Command != "" {
		query += fmt.Sprintf(` AND command = $%d`, argIdx)
		args = append(args, filter.Command)
		argIdx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += fmt.Sprintf(` ORDER BY started_at DESC LIMIT $%d`, argIdx)
	args = append(args, listLimit(filter.Limit))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "runlog: list runs")
	}
	defer rows.Close()

	var (
		runs []Run
		ids  []string
	)
	for rows.Next() {
		var (
			r          Run
			errText    *string
			finishedAt *time.Time
		)
		err := rows.Scan(&r.ID, &r.Command, &r.DataRef, &r.Status, &r.RowsIn, &r.RowsOut,
			&errText, &r.StartedAt, &finishedAt)
		if err != nil {
			return nil, eris.Wrap(err, "runlog: scan run")
		}
		if errText != nil {
			r.Error = *errText
		}
		r.FinishedAt = finishedAt
		runs = append(runs, r)
		ids = append(ids, r.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "runlog: list runs iterate")
	}

	if err := s.attachCounters(ctx, runs, ids); err != nil {
		return nil, err
	}
	return runs, nil
}

func (s *PostgresStore) attachCounters(ctx context.Context, runs []Run, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT run_id, name, value FROM run_counters WHERE run_id = ANY($1)`, ids)
	if err != nil {
		return eris.Wrap(err, "runlog: list counters")
	}
	defer rows.Close()

	byRun := make(map[string]map[string]int64)
	for rows.Next() {
		var (
			runID, name string
			value       int64
		)
		if err := rows.Scan(&runID, &name, &value); err != nil {
			return eris.Wrap(err, "runlog: scan counter")
		}
		if byRun[runID] == nil {
			byRun[runID] = make(map[string]int64)
		}
		byRun[runID][name] = value
	}
	if err := rows.Err(); err != nil {
		return eris.Wrap(err, "runlog: list counters iterate")
	}

	for i := range runs {
		runs[i].Counters = byRun[runs[i].ID]
	}
	return nil
}

func sortedCounterNames(counters map[string]int64) []string {
	names := make([]string, 0, len(counters))
	for name := range counters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
