package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/f13-cli/internal/store"
)

func TestFormatRunsList(t *testing.T) {
	start := time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)
	finish := start.Add(2 * time.Minute)
	msg := "pipeline: filer directory is empty and nothing else could be processed"

	runs := []store.RunEntry{
		{
			ID:         "abc12345-6789-0000-0000-000000000000",
			State:      "done",
			StartedAt:  start,
			FinishedAt: &finish,
			Filers:     6,
			Filings:    14,
			Holdings:   2310,
		},
		{
			ID:        "def12345-6789-0000-0000-000000000000",
			State:     "failed",
			StartedAt: start.Add(-time.Hour),
			Error:     &msg,
		},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)

	out := buf.String()
	assert.Contains(t, out, "STATE")
	assert.Contains(t, out, "abc12345")
	assert.NotContains(t, out, "abc12345-")
	assert.Contains(t, out, "2m0s")
	assert.Contains(t, out, "2310")
	assert.Contains(t, out, "2025-06-15 10:30")
	assert.Contains(t, out, "failed")
	assert.Contains(t, out, "...")
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "abc12345", truncateID("abc12345-6789"))
	assert.Equal(t, "short", truncateID("short"))
}
