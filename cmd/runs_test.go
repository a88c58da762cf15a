package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/juanocv/magalu-cd-location/internal/runlog"
)

func TestFormatRuns(t *testing.T) {
	started := time.Date(2025, 7, 20, 10, 30, 0, 0, time.UTC)
	finished := started.Add(2 * time.Minute)
	runs := []runlog.Run{
		{
			ID:         "abc12345-6789-0000-0000-000000000000",
			Command:    "snv prepare",
			DataRef:    "2025-07",
			Status:     runlog.StatusCompleted,
			RowsIn:     9027,
			RowsOut:    2143,
			StartedAt:  started,
			FinishedAt: &finished,
		},
		{
			ID:        "def12345-6789-0000-0000-000000000000",
			Command:   "od sla",
			DataRef:   "2025-07",
			Status:    runlog.StatusRunning,
			StartedAt: started.Add(5 * time.Minute),
		},
	}

	var buf bytes.Buffer
	formatRuns(&buf, runs)

	output := buf.String()
	assert.Contains(t, output, "ID")
	assert.Contains(t, output, "COMMAND")
	assert.Contains(t, output, "STATUS")
	assert.Contains(t, output, "abc12345")
	assert.Contains(t, output, "snv prepare")
	assert.Contains(t, output, "completed")
	assert.Contains(t, output, "9027")
	assert.Contains(t, output, "2143")
	assert.Contains(t, output, "2025-07-20 10:30")
	assert.Contains(t, output, "2m0s")
	assert.Contains(t, output, "od sla")
	assert.Contains(t, output, "running")
}

func TestShortID(t *testing.T) {
	assert.Equal(t, "abc12345", shortID("abc12345-6789-0000-0000-000000000000"))
	assert.Equal(t, "short", shortID("short"))
}
