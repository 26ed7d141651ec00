package trace

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordedRequest struct {
	Method string
	Path   string
	APIKey string
	Body   map[string]any
}

func recordingServer(t *testing.T) (*httptest.Server, func() []recordedRequest) {
	t.Helper()
	var mu sync.Mutex
	var requests []recordedRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		mu.Lock()
		requests = append(requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			APIKey: r.Header.Get("x-api-key"),
			Body:   body,
		})
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	return server, func() []recordedRequest {
		mu.Lock()
		defer mu.Unlock()
		return requests
	}
}

func TestRunLifecycle(t *testing.T) {
	server, recorded := recordingServer(t)
	defer server.Close()

	c := NewClient("ls-test", "my-project", testLogger())
	c.BaseURL = server.URL
	ctx := context.Background()

	run, err := c.StartRun(ctx, "finagent", map[string]any{"question": "q"})
	require.NoError(t, err)
	require.NotNil(t, run)

	require.NoError(t, c.EndRun(ctx, run, map[string]any{"answer": "a"}, nil))
	require.NoError(t, c.AddFeedback(ctx, run, "correctness", 0.8, "mostly right"))

	reqs := recorded()
	require.Len(t, reqs, 3)

	assert.Equal(t, http.MethodPost, reqs[0].Method)
	assert.Equal(t, "/runs", reqs[0].Path)
	assert.Equal(t, "ls-test", reqs[0].APIKey)
	assert.Equal(t, "my-project", reqs[0].Body["session_name"])
	assert.Equal(t, "chain", reqs[0].Body["run_type"])
	assert.NotEmpty(t, reqs[0].Body["start_time"])

	assert.Equal(t, http.MethodPatch, reqs[1].Method)
	assert.Equal(t, "/runs/"+run.ID.String(), reqs[1].Path)
	assert.NotEmpty(t, reqs[1].Body["end_time"])

	assert.Equal(t, "/feedback", reqs[2].Path)
	assert.Equal(t, run.ID.String(), reqs[2].Body["run_id"])
	assert.Equal(t, 0.8, reqs[2].Body["score"])
}

func TestEndRunRecordsError(t *testing.T) {
	server, recorded := recordingServer(t)
	defer server.Close()

	c := NewClient("ls-test", "my-project", testLogger())
	c.BaseURL = server.URL
	ctx := context.Background()

	run, err := c.StartRun(ctx, "finagent", nil)
	require.NoError(t, err)
	require.NoError(t, c.EndRun(ctx, run, nil, assert.AnError))

	reqs := recorded()
	require.Len(t, reqs, 2)
	assert.Equal(t, assert.AnError.Error(), reqs[1].Body["error"])
	assert.NotContains(t, reqs[1].Body, "outputs",
		"a failed run must not record outputs alongside the error")
}

func TestDisabledClientIsNoop(t *testing.T) {
	server, recorded := recordingServer(t)
	defer server.Close()

	c := NewClient("", "my-project", testLogger())
	c.BaseURL = server.URL
	ctx := context.Background()

	run, err := c.StartRun(ctx, "finagent", nil)
	require.NoError(t, err)
	assert.Nil(t, run)

	require.NoError(t, c.EndRun(ctx, run, nil, nil))
	require.NoError(t, c.AddFeedback(ctx, run, "correctness", 1, ""))
	assert.Empty(t, recorded())

	var nilClient *Client
	assert.False(t, nilClient.Enabled())
	_, err = nilClient.StartRun(ctx, "x", nil)
	require.NoError(t, err)
}

func TestStartRunSurfacesServerErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	c := NewClient("ls-test", "my-project", testLogger())
	c.BaseURL = server.URL

	_, err := c.StartRun(context.Background(), "finagent", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 403")
}
