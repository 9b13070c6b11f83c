package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sammcj/actorglue/config"
	"github.com/sammcj/actorglue/logging"
)

type fakeAgent struct {
	queries []string
	resets  int
}

func (a *fakeAgent) Run(_ context.Context, query string) string {
	a.queries = append(a.queries, query)
	return "answer to " + query
}

func (a *fakeAgent) Reset() { a.resets++ }

func newTestServer(t *testing.T) (*httptest.Server, *fakeAgent) {
	t.Helper()
	agent := &fakeAgent{}
	s := New(config.DefaultConfig(), agent, logging.Discard())
	ts := httptest.NewServer(s.HTTPServer().Handler)
	t.Cleanup(ts.Close)
	return ts, agent
}

func TestChat(t *testing.T) {
	ts, agent := newTestServer(t)

	resp, err := http.Post(ts.URL+"/api/chat", "application/json", strings.NewReader(`{"message":"list my actors"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body MessageResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "answer to list my actors", body.Response)
	assert.Equal(t, []string{"list my actors"}, agent.queries)
}

func TestChatRejectsBadRequests(t *testing.T) {
	ts, agent := newTestServer(t)

	resp, err := http.Post(ts.URL+"/api/chat", "application/json", strings.NewReader(`{`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Post(ts.URL+"/api/chat", "application/json", strings.NewReader(`{"message":""}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/api/chat")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	assert.Empty(t, agent.queries)
}

func TestResetAndHealth(t *testing.T) {
	ts, agent := newTestServer(t)

	resp, err := http.Post(ts.URL+"/api/reset", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, agent.resets)

	resp, err = http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func TestShutdownClosesResourcesOnce(t *testing.T) {
	var order []string
	sm := NewShutdownManager(&http.Server{}, logging.Discard())
	sm.Register("bridge", closerFunc(func() error { order = append(order, "bridge"); return nil }))
	sm.Register("dataset", closerFunc(func() error { order = append(order, "dataset"); return errors.New("locked") }))

	assert.False(t, sm.IsShuttingDown())
	err := sm.Shutdown()
	assert.ErrorContains(t, err, "dataset close error: locked")
	assert.True(t, sm.IsShuttingDown())
	assert.Equal(t, []string{"bridge", "dataset"}, order)

	assert.NoError(t, sm.Shutdown())
	sm.WaitForShutdown()
	assert.Len(t, order, 2)
}
