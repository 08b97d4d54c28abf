package status

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mcdev12/liveconsole/go/internal/console/session"
	"github.com/mcdev12/liveconsole/go/internal/console/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeState struct{ view session.View }

func (f fakeState) Snapshot() session.View { return f.view }

type fakeConn struct{ stats transport.Stats }

func (f fakeConn) Stats() transport.Stats { return f.stats }

func newTestServer(t *testing.T, view session.View, state transport.State) *httptest.Server {
	t.Helper()
	handler := NewHandler(
		fakeState{view: view},
		fakeConn{stats: transport.Stats{State: state.String(), ClientID: "c-1", Attempts: 2}},
		nil,
	)
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, url string, out interface{}) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	return resp
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, session.View{Status: session.StatusRunning}, transport.StateConnected)

	var body healthResponse
	resp := getJSON(t, srv.URL+"/health", &body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body.Status)
	assert.True(t, body.Connected)
	assert.Equal(t, "running", body.Session)
}

func TestHealthDegradedWhenDisconnected(t *testing.T) {
	srv := newTestServer(t, session.View{Status: session.StatusUnselected}, transport.StateDisconnected)

	var body healthResponse
	resp := getJSON(t, srv.URL+"/health", &body)

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "degraded", body.Status)
}

func TestState(t *testing.T) {
	view := session.View{ActivityID: "42", Status: session.StatusRunning, Remaining: 6, TotalDuration: 12, PlayerCount: 3}
	srv := newTestServer(t, view, transport.StateConnected)

	var body map[string]interface{}
	resp := getJSON(t, srv.URL+"/api/state", &body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "42", body["activityId"])
	assert.EqualValues(t, 1, body["status"])
	assert.EqualValues(t, 6, body["remaining"])
	assert.EqualValues(t, 0.5, body["progress"])
	assert.Equal(t, "no-store", resp.Header.Get("Cache-Control"))
}

func TestConnection(t *testing.T) {
	srv := newTestServer(t, session.View{}, transport.StateConnecting)

	var body transport.Stats
	getJSON(t, srv.URL+"/api/connection", &body)

	assert.Equal(t, "connecting", body.State)
	assert.Equal(t, "c-1", body.ClientID)
	assert.Equal(t, 2, body.Attempts)
}

func TestCORSAndMethods(t *testing.T) {
	srv := newTestServer(t, session.View{}, transport.StateConnected)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/state", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://overlay.local")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	resp, err = http.Post(srv.URL+"/api/state", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
