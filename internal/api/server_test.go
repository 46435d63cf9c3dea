package api_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/flowgraph/graph"
	"github.com/dshills/flowgraph/graph/model"
	"github.com/dshills/flowgraph/graph/store"
	"github.com/dshills/flowgraph/internal/api"
	"github.com/dshills/flowgraph/internal/app"
	"github.com/dshills/flowgraph/internal/config"
)

const pipeline = `{
	"nodes": [
		{"id": "in", "type": "text-input", "config": {"text": "widgets"}},
		{"id": "gen", "type": "text-generate", "config": {"provider": "openai", "model": "gpt-4o", "prompt": "Describe {{input}}"}},
		{"id": "out", "type": "output"}
	],
	"edges": [
		{"id": "e1", "source": "in", "target": "gen"},
		{"id": "e2", "source": "gen", "target": "out"}
	]
}`

type testServer struct {
	t      *testing.T
	server *api.Server
	store  store.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	t.Chdir(t.TempDir())

	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Store.Driver = config.DriverMemory

	echoModel := &model.MockTextModel{Respond: func(req model.TextRequest) (model.TextResponse, error) {
		return model.TextResponse{Text: "echo: " + req.Prompt, Model: req.Model, InputTokens: 10, OutputTokens: 10}, nil
	}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a, err := app.New(context.Background(), cfg, logger, app.Options{
		Collaborators: &graph.Collaborators{TextModels: map[string]model.TextModel{"openai": echoModel}},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })

	srv := api.NewServer(api.Deps{Runner: a, Store: a.Store, Logger: logger, Gatherer: a.Registry})
	return &testServer{t: t, server: srv, store: a.Store}
}

func (ts *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	ts.t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestExecute(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/api/v1/execute", pipeline)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode(t, rec)
	assert.Equal(t, "completed", body["status"])
	assert.Equal(t, "echo: Describe widgets", body["finalOutput"])
	assert.NotEmpty(t, body["runId"])
	assert.Len(t, body["results"], 3)

	runs, err := ts.store.ListRuns(context.Background(), "", 0)
	require.NoError(t, err)
	assert.Empty(t, runs, "inline runs without a workflow id are not recorded")
}

func TestExecute_RecordsRunWithWorkflowID(t *testing.T) {
	ts := newTestServer(t)

	withID := strings.Replace(pipeline, `"nodes"`, `"workflowId": "wf-7", "nodes"`, 1)
	rec := ts.do(http.MethodPost, "/api/v1/execute", withID)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	runID := decode(t, rec)["runId"].(string)

	rec = ts.do(http.MethodGet, "/api/v1/runs/"+runID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	run := decode(t, rec)
	assert.Equal(t, "wf-7", run["workflowId"])
	assert.Equal(t, "echo: Describe widgets", run["finalOutput"])
}

func TestExecute_Errors(t *testing.T) {
	ts := newTestServer(t)

	t.Run("invalid graph", func(t *testing.T) {
		rec := ts.do(http.MethodPost, "/api/v1/execute", `{
			"nodes": [
				{"id": "a", "type": "merge"},
				{"id": "b", "type": "merge"}
			],
			"edges": [
				{"id": "e1", "source": "a", "target": "b"},
				{"id": "e2", "source": "b", "target": "a"}
			]
		}`)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Contains(t, decode(t, rec)["error"], "cycle detected")
	})

	t.Run("failed run", func(t *testing.T) {
		rec := ts.do(http.MethodPost, "/api/v1/execute", strings.Replace(pipeline, `"openai"`, `"nope"`, 1))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		body := decode(t, rec)
		assert.NotEmpty(t, body["runId"])
		assert.NotEmpty(t, body["error"])
		assert.Len(t, body["results"], 3)
	})

	t.Run("malformed body", func(t *testing.T) {
		rec := ts.do(http.MethodPost, "/api/v1/execute", `{"nodes": [`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, decode(t, rec)["error"], "invalid request body")
	})

	t.Run("bad node config", func(t *testing.T) {
		rec := ts.do(http.MethodPost, "/api/v1/execute", `{"nodes": [{"id": "a", "type": "text-input", "config": {"text": 5}}]}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestValidate(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/api/v1/validate", pipeline)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, true, body["valid"])
	assert.Equal(t, []any{[]any{"in"}, []any{"gen"}, []any{"out"}}, body["waves"])

	rec = ts.do(http.MethodPost, "/api/v1/validate", `{
		"nodes": [{"id": "a", "type": "text-input"}],
		"edges": [{"id": "e1", "source": "a", "target": "ghost"}]
	}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "edge e1 references missing node ghost", decode(t, rec)["error"])
}

func TestWorkflows(t *testing.T) {
	ts := newTestServer(t)

	create := strings.Replace(pipeline, `"nodes"`, `"name": "describe", "nodes"`, 1)
	rec := ts.do(http.MethodPost, "/api/v1/workflows", create)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode(t, rec)
	id, _ := created["id"].(string)
	require.NotEmpty(t, id)
	assert.Equal(t, "describe", created["name"])

	rec = ts.do(http.MethodGet, "/api/v1/workflows/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["nodes"], 3)

	rec = ts.do(http.MethodPut, "/api/v1/workflows/"+id, strings.Replace(create, `"describe"`, `"describe-v2"`, 1))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "describe-v2", decode(t, rec)["name"])

	rec = ts.do(http.MethodGet, "/api/v1/workflows", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "describe-v2", list[0]["name"])

	for i := 0; i < 2; i++ {
		rec = ts.do(http.MethodPost, "/api/v1/workflows/"+id+"/run", "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, id, decode(t, rec)["workflowId"])
	}

	rec = ts.do(http.MethodGet, "/api/v1/runs?workflowId="+id+"&limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var runs []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	assert.Len(t, runs, 1)

	rec = ts.do(http.MethodGet, "/api/v1/runs?workflowId="+id, "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	assert.Len(t, runs, 2)
}

func TestWorkflows_Errors(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{"get unknown", http.MethodGet, "/api/v1/workflows/missing", "", http.StatusNotFound},
		{"update unknown", http.MethodPut, "/api/v1/workflows/missing", `{"name": "x", "nodes": []}`, http.StatusNotFound},
		{"run unknown", http.MethodPost, "/api/v1/workflows/missing/run", "", http.StatusNotFound},
		{"missing name", http.MethodPost, "/api/v1/workflows", pipeline, http.StatusBadRequest},
		{"invalid graph", http.MethodPost, "/api/v1/workflows", `{"name": "x", "nodes": [{"id": "a", "type": "teleport"}]}`, http.StatusUnprocessableEntity},
		{"unknown run", http.MethodGet, "/api/v1/runs/missing", "", http.StatusNotFound},
		{"bad limit", http.MethodGet, "/api/v1/runs?limit=many", "", http.StatusBadRequest},
		{"unknown route", http.MethodGet, "/api/v1/nothing", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.NotEmpty(t, decode(t, rec)["error"])
		})
	}
}

func TestHealthAndMetrics(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])

	require.Equal(t, http.StatusOK, ts.do(http.MethodPost, "/api/v1/execute", pipeline).Code)
	rec = ts.do(http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `flowgraph_runs_total{status="completed"} 1`)

	require.NoError(t, ts.store.Close())
	rec = ts.do(http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
