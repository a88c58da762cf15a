package main

import (
	"context"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/juanocv/magalu-cd-location/internal/runlog"
)

func runlogConfig() runlog.Config {
	return runlog.Config{
		Driver: cfg.RunLog.Driver,
		DSN:    cfg.RunLogDSN(),
		Pool: &runlog.PoolConfig{
			MaxConns: cfg.RunLog.MaxConns,
			MinConns: cfg.RunLog.MinConns,
		},
	}
}

// openRunLog opens the configured run-log store.
func openRunLog(ctx context.Context) (runlog.Store, error) {
	rc := runlogConfig()
	if rc.Driver == "" || rc.Driver == "sqlite" {
		// The SQLite file lives under the data lake, which may not
		// exist yet on a clean checkout.
		if err := os.MkdirAll(filepath.Dir(rc.DSN), 0o755); err != nil {
			return nil, err
		}
	}
	return runlog.Open(ctx, rc)
}

// openRecorder wraps the run-log store for a pipeline stage. The run log
// must never take a stage down, so an unavailable store degrades to a
// disabled recorder.
func openRecorder(ctx context.Context) (*runlog.Recorder, func()) {
	st, err := openRunLog(ctx)
	if err != nil {
		zap.L().Warn("run log unavailable", zap.Error(err))
		return runlog.NewRecorder(nil), func() {}
	}
	return runlog.NewRecorder(st), func() { _ = st.Close() }
}
