package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/leapstack-labs/scriptbox/internal/registry"
	"github.com/leapstack-labs/scriptbox/internal/sandbox"
	"github.com/leapstack-labs/scriptbox/internal/session"
	"github.com/leapstack-labs/scriptbox/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	reg := registry.NewStatic()
	reg.Register("echo", "echoes its first argument", func(_ context.Context, args ...any) (any, error) {
		return args[0], nil
	})

	logger := testutil.NewTestLogger(t)
	engine := sandbox.New(sandbox.Config{
		Invoker:  reg,
		Sessions: session.NewMemoryStore(),
		Logger:   logger,
	})
	return New(Config{Engine: engine, Invoker: reg, Logger: logger})
}

func TestHandleHealth(t *testing.T) {
	srv := httptest.NewServer(newTestServer(t).Routes())
	defer srv.Close()

	res, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer res.Body.Close()

	assert.Equal(t, http.StatusOK, res.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestHandleExecute_Success(t *testing.T) {
	srv := httptest.NewServer(newTestServer(t).Routes())
	defer srv.Close()

	payload := `{"script": "r = echo(\"hi\")\nreturn r", "session_id": "s1"}`
	res, err := http.Post(srv.URL+"/v1/execute", "application/json", strings.NewReader(payload))
	require.NoError(t, err)
	defer res.Body.Close()

	require.Equal(t, http.StatusOK, res.StatusCode)

	var resp sandbox.Response
	require.NoError(t, json.NewDecoder(res.Body).Decode(&resp))
	assert.Equal(t, sandbox.StatusSuccess, resp.Status)
	assert.Equal(t, map[string]any{"r": "hi"}, resp.Result)
	assert.NotEmpty(t, resp.ExecutionTime)
	assert.NotEmpty(t, resp.TotalTime)
}

func TestHandleExecute_ScriptFailureIsStillOK(t *testing.T) {
	srv := httptest.NewServer(newTestServer(t).Routes())
	defer srv.Close()

	payload := `{"script": "result = nope()"}`
	res, err := http.Post(srv.URL+"/v1/execute", "application/json", strings.NewReader(payload))
	require.NoError(t, err)
	defer res.Body.Close()

	require.Equal(t, http.StatusOK, res.StatusCode)

	var resp sandbox.Response
	require.NoError(t, json.NewDecoder(res.Body).Decode(&resp))
	assert.Equal(t, sandbox.StatusError, resp.Status)
	assert.Equal(t, "UnknownSymbolError", resp.ErrorKind)
}

func TestHandleExecute_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(newTestServer(t).Routes())
	defer srv.Close()

	res, err := http.Post(srv.URL+"/v1/execute", "application/json", strings.NewReader("{not json"))
	require.NoError(t, err)
	defer res.Body.Close()

	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestHandleTools(t *testing.T) {
	srv := httptest.NewServer(newTestServer(t).Routes())
	defer srv.Close()

	res, err := http.Get(srv.URL + "/v1/tools")
	require.NoError(t, err)
	defer res.Body.Close()

	require.Equal(t, http.StatusOK, res.StatusCode)

	var body struct {
		Tools []struct {
			Name        string `json:"name"`
			Description string `json:"description"`
		} `json:"tools"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	require.Len(t, body.Tools, 1)
	assert.Equal(t, "echo", body.Tools[0].Name)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := httptest.NewServer(newTestServer(t).Routes())
	defer srv.Close()

	res, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer res.Body.Close()

	assert.Equal(t, http.StatusOK, res.StatusCode)
}
