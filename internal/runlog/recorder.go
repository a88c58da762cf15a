package runlog

import (
	"context"

	"go.uber.org/zap"
)

// Recorder ties one command invocation to its run record. A nil Recorder
// or a nil Store records nothing, and store failures are logged and
// swallowed.
type Recorder struct {
	store Store
	runID string
}

// NewRecorder wraps store, which may be nil to disable recording.
func NewRecorder(store Store) *Recorder {
	return &Recorder{store: store}
}

// Start opens the run record.
func (r *Recorder) Start(ctx context.Context, command, dataRef string) {
	if r == nil || r.store == nil {
		return
	}
	run, err := r.store.StartRun(ctx, command, dataRef)
	if err != nil {
		zap.L().Warn("run log: start not recorded",
			zap.String("command", command), zap.Error(err))
		return
	}
	r.runID = run.ID
}

// Complete closes the run record with row counts and QC counters.
func (r *Recorder) Complete(ctx context.Context, rowsIn, rowsOut int64, counters map[string]int64) {
	if r == nil || r.store == nil || r.runID == "" {
		return
	}
	if err := r.store.CompleteRun(ctx, r.runID, rowsIn, rowsOut, counters); err != nil {
		zap.L().Warn("run log: completion not recorded",
			zap.String("run_id", r.runID), zap.Error(err))
	}
}

// Fail closes the run record with the failure text.
func (r *Recorder) Fail(ctx context.Context, runErr error) {
	if r == nil || r.store == nil || r.runID == "" {
		return
	}
	message := ""
	if runErr != nil {
		message = runErr.Error()
	}
	if err := r.store.FailRun(ctx, r.runID, message); err != nil {
		zap.L().Warn("run log: failure not recorded",
			zap.String("run_id", r.runID), zap.Error(err))
	}
}
