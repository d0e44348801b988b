package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/f13-cli/internal/model"
	"github.com/sells-group/f13-cli/internal/store"
)

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Origin", "https://dash.example.com")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestRouter_Health(t *testing.T) {
	h := buildRouter(newTestStore(t))

	rr := get(t, h, "/health")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestRouter_HealthStoreDown(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.Close())

	rr := get(t, buildRouter(st), "/health")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestRouter_Runs(t *testing.T) {
	st := newTestStore(t)
	h := buildRouter(st)

	rr := get(t, h, "/runs")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, "[]", rr.Body.String())

	ctx := context.Background()
	require.NoError(t, st.StartRun(ctx, "run-a", time.Now().Add(-time.Minute)))
	require.NoError(t, st.FinishRun(ctx, "run-a", model.RunStateDone, store.RunCounts{Filers: 2, Filings: 3, Holdings: 40}, ""))
	require.NoError(t, st.StartRun(ctx, "run-b", time.Now()))

	rr = get(t, h, "/runs?limit=10")
	require.Equal(t, http.StatusOK, rr.Code)
	var runs []store.RunEntry
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &runs))
	require.Len(t, runs, 2)
	assert.Equal(t, "run-b", runs[0].ID)
	assert.Equal(t, "init", runs[0].State)

	rr = get(t, h, "/runs/run-a")
	require.Equal(t, http.StatusOK, rr.Code)
	var run store.RunEntry
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &run))
	assert.Equal(t, "done", run.State)
	assert.Equal(t, int64(40), run.Holdings)
	assert.NotNil(t, run.FinishedAt)
}

func TestRouter_RunNotFound(t *testing.T) {
	rr := get(t, buildRouter(newTestStore(t)), "/runs/missing")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "run not found")
}

func TestRouter_BadLimit(t *testing.T) {
	h := buildRouter(newTestStore(t))
	for _, q := range []string{"abc", "0", "-1"} {
		rr := get(t, h, "/runs?limit="+q)
		assert.Equal(t, http.StatusBadRequest, rr.Code, q)
	}
}
