package transport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mcdev12/liveconsole/go/internal/console/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebsocketRoundTrip(t *testing.T) {
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	received := make(chan events.Envelope, 1)
	query := make(chan string, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query <- r.URL.RawQuery
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"game_start","data":{"endTime":1700000012000,"duration":12}}`))

		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var env events.Envelope
		if json.Unmarshal(msg, &env) == nil {
			received <- env
		}
		// Hold the connection until the client goes away.
		_, _, _ = conn.ReadMessage()
	}))
	defer srv.Close()

	tr := New(nil, nil, Config{HeartbeatInterval: time.Hour})
	defer tr.Close()

	starts := make(chan events.GameStartPayload, 1)
	tr.On(events.GameStart, func(ev Event) {
		var p events.GameStartPayload
		if ev.Decode(&p) == nil {
			starts <- p
		}
	})

	opts := ConnectOptions{Role: RoleScreen, ActivityID: "42"}
	target, params, err := opts.Target("ws" + strings.TrimPrefix(srv.URL, "http"))
	require.NoError(t, err)
	require.NoError(t, tr.Connect(target, params))

	select {
	case q := <-query:
		assert.Contains(t, q, "activityId=42")
		assert.Contains(t, q, "type=console")
	case <-time.After(waitFor):
		t.Fatal("server never saw the handshake")
	}

	select {
	case p := <-starts:
		assert.EqualValues(t, 1700000012000, p.EndTime)
		require.NotNil(t, p.Duration)
		assert.Equal(t, 12, *p.Duration)
	case <-time.After(waitFor):
		t.Fatal("game_start not delivered")
	}

	require.NoError(t, tr.Send("screen_ready", map[string]string{"screen": "main"}))
	select {
	case env := <-received:
		assert.Equal(t, "screen_ready", env.Event)
		assert.JSONEq(t, `{"screen":"main"}`, string(env.Data))
	case <-time.After(waitFor):
		t.Fatal("server did not receive the client event")
	}
}

func TestConnectOptionsTarget(t *testing.T) {
	tests := []struct {
		name       string
		opts       ConnectOptions
		wantURL    string
		wantParams map[string]string
		wantErr    bool
	}{
		{
			name:       "screen defaults type",
			opts:       ConnectOptions{ActivityID: "7"},
			wantURL:    "wss://ev.test/ws/screen",
			wantParams: map[string]string{"activityId": "7", "type": "console"},
		},
		{
			name:       "screen with type",
			opts:       ConnectOptions{Role: RoleScreen, ActivityID: "7", ScreenType: "wall"},
			wantURL:    "wss://ev.test/ws/screen",
			wantParams: map[string]string{"activityId": "7", "type": "wall"},
		},
		{
			name:       "participant",
			opts:       ConnectOptions{Role: RoleH5, ActivityID: "7", Token: "abc"},
			wantURL:    "wss://ev.test/ws/h5",
			wantParams: map[string]string{"activityId": "7", "token": "abc"},
		},
		{name: "missing activity", opts: ConnectOptions{Role: RoleH5}, wantErr: true},
		{name: "unknown role", opts: ConnectOptions{Role: "tv", ActivityID: "7"}, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			gotURL, params, err := tc.opts.Target("wss://ev.test/ws/")
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantURL, gotURL)
			for k, v := range tc.wantParams {
				assert.Equal(t, v, params.Get(k), k)
			}
		})
	}
}
