// Package runlog records pipeline runs so row counts, QC counters and
// failures stay inspectable after the fact. Writes are best effort: a
// broken run log must never take a pipeline stage down with it.
package runlog

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Status of a recorded run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Run is one recorded invocation of a pipeline stage.
type Run struct {
	ID         string
	Command    string
	DataRef    string
	Status     Status
	RowsIn     int64
	RowsOut    int64
	Counters   map[string]int64
	Error      string
	StartedAt  time.Time
	FinishedAt *time.Time
}

// Duration is the wall time of the run, zero while it is still running.
func (r Run) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Filter narrows ListRuns.
type Filter struct {
	Command string
	Status  Status
	Limit   int
}

// Store persists run records.
type Store interface {
	StartRun(ctx context.Context, command, dataRef string) (*Run, error)
	CompleteRun(ctx context.Context, runID string, rowsIn, rowsOut int64, counters map[string]int64) error
	FailRun(ctx context.Context, runID, message string) error
	ListRuns(ctx context.Context, filter Filter) ([]Run, error)
	Migrate(ctx context.Context) error
	Close() error
}

// Config selects and tunes the backing store.
type Config struct {
	Driver string // "sqlite" (default) or "postgres"
	DSN    string
	Pool   *PoolConfig
}

// Open creates the configured Store backend and runs its migration.
func Open(ctx context.Context, cfg Config) (Store, error) {
	var (
		st  Store
		err error
	)
	switch strings.ToLower(cfg.Driver) {
	case "", "sqlite":
		st, err = NewSQLite(cfg.DSN)
	case "postgres":
		st, err = NewPostgres(ctx, cfg.DSN, cfg.Pool)
	default:
		return nil, eris.Errorf("runlog: unknown driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

func listLimit(n int) int {
	if n <= 0 {
		return 50
	}
	return n
}
