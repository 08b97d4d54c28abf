package transport

import (
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/liveconsole/go/internal/console/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

func testConfig() Config {
	return Config{
		MaxReconnects:     3,
		ReconnectInterval: 3 * time.Second,
		HeartbeatInterval: time.Hour,
		WriteTimeout:      time.Second,
		HandshakeTimeout:  time.Second,
	}
}

func newTestTransport(t *testing.T, cfg Config) (*Transport, *fakeDialer, *clockwork.FakeClock, *counter) {
	t.Helper()
	dialer := &fakeDialer{}
	fc := clockwork.NewFakeClock()
	tr := New(dialer, fc, cfg)
	t.Cleanup(tr.Close)

	c := &counter{}
	for _, name := range []string{events.Open, events.Close, events.Error, events.ReconnectFailed} {
		tr.On(name, c.handler(name))
	}
	return tr, dialer, fc, c
}

func connect(t *testing.T, tr *Transport) {
	t.Helper()
	require.NoError(t, tr.Connect("ws://events.test/screen", url.Values{"activityId": {"42"}}))
}

// advanceUntil keeps moving the fake clock until cond holds, so the test does
// not depend on when a timer goroutine registered with the clock.
func advanceUntil(t *testing.T, fc *clockwork.FakeClock, step time.Duration, cond func() bool) {
	t.Helper()
	require.Eventually(t, func() bool {
		if cond() {
			return true
		}
		fc.Advance(step)
		return cond()
	}, waitFor, tick)
}

func TestConnect_OpensAndSendsParams(t *testing.T) {
	tr, dialer, _, c := newTestTransport(t, testConfig())

	connect(t, tr)

	require.Eventually(t, tr.IsConnected, waitFor, tick)
	assert.Equal(t, 1, c.get(events.Open))

	target, err := url.Parse(dialer.lastTarget())
	require.NoError(t, err)
	assert.Equal(t, "/screen", target.Path)
	assert.Equal(t, "42", target.Query().Get("activityId"))
	assert.Equal(t, tr.ClientID(), target.Query().Get("clientId"))
	assert.NotEmpty(t, tr.Stats().ConnectionID)
}

func TestConnect_TearsDownExistingConnection(t *testing.T) {
	tr, dialer, _, _ := newTestTransport(t, testConfig())
	connect(t, tr)
	require.Eventually(t, tr.IsConnected, waitFor, tick)
	first := dialer.last()

	connect(t, tr)

	require.Eventually(t, func() bool { return dialer.dials.Load() == 2 && tr.IsConnected() }, waitFor, tick)
	assert.True(t, first.isClosed())
	assert.NotSame(t, first, dialer.last())
	assert.Zero(t, tr.Attempts(), "teardown by Connect is not a reconnect")
}

func TestInboundEventsDispatchInRegistrationOrder(t *testing.T) {
	tr, dialer, _, _ := newTestTransport(t, testConfig())

	var mu sync.Mutex
	var order []string
	record := func(tag string) Handler {
		return func(ev Event) {
			var p events.GameStartPayload
			require.NoError(t, ev.Decode(&p))
			mu.Lock()
			order = append(order, tag)
			mu.Unlock()
		}
	}
	tr.On(events.GameStart, record("first"))
	tr.On(events.GameStart, record("second"))
	tr.On(events.GameStart, record("third"))

	messages := &counter{}
	tr.On(events.Message, messages.handler(events.Message))

	connect(t, tr)
	require.Eventually(t, tr.IsConnected, waitFor, tick)
	dialer.last().push(events.GameStart, `{"endTime":1700000000000}`)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 3
	}, waitFor, tick)
	assert.Equal(t, []string{"first", "second", "third"}, order)
	assert.Equal(t, 1, messages.get(events.Message))
}

func TestMalformedFramesAreDropped(t *testing.T) {
	tr, dialer, _, c := newTestTransport(t, testConfig())
	got := make(chan Event, 1)
	tr.On(events.RankingUpdate, func(ev Event) { got <- ev })

	connect(t, tr)
	require.Eventually(t, tr.IsConnected, waitFor, tick)
	conn := dialer.last()
	conn.in <- []byte("not json")
	conn.push(events.RankingUpdate, `{"playerCount":3}`)

	select {
	case ev := <-got:
		var p events.RankingUpdatePayload
		require.NoError(t, ev.Decode(&p))
		assert.Nil(t, p.Ranking)
		require.NotNil(t, p.PlayerCount)
		assert.Equal(t, 3, *p.PlayerCount)
	case <-time.After(waitFor):
		t.Fatal("ranking_update not delivered")
	}
	assert.True(t, tr.IsConnected())
	assert.Zero(t, c.get(events.Error))
}

func TestPanickingHandlerIsIsolated(t *testing.T) {
	tr, dialer, _, _ := newTestTransport(t, testConfig())
	tr.On(events.GameStop, func(Event) { panic("boom") })
	delivered := make(chan struct{}, 1)
	tr.On(events.GameStop, func(Event) { delivered <- struct{}{} })

	connect(t, tr)
	require.Eventually(t, tr.IsConnected, waitFor, tick)
	dialer.last().push(events.GameStop, `{}`)

	select {
	case <-delivered:
	case <-time.After(waitFor):
		t.Fatal("handler after the panicking one did not run")
	}
	assert.True(t, tr.IsConnected())
}

func TestReconnectAfterDrop(t *testing.T) {
	tr, dialer, fc, c := newTestTransport(t, testConfig())
	connect(t, tr)
	require.Eventually(t, tr.IsConnected, waitFor, tick)

	dialer.last().Close()

	require.Eventually(t, func() bool { return c.get(events.Close) == 1 }, waitFor, tick)
	assert.Equal(t, StateDisconnected, tr.State())
	assert.Equal(t, 1, tr.Attempts())
	assert.Error(t, tr.LastError())

	advanceUntil(t, fc, time.Second, func() bool { return c.get(events.Open) == 2 })
	assert.True(t, tr.IsConnected())
	assert.Zero(t, tr.Attempts(), "attempts reset on open")
	assert.NoError(t, tr.LastError())

	target, err := url.Parse(dialer.lastTarget())
	require.NoError(t, err)
	assert.Equal(t, "42", target.Query().Get("activityId"), "redial reuses params")
}

func TestReconnectSucceedsBeforeBound(t *testing.T) {
	tr, dialer, fc, c := newTestTransport(t, testConfig())
	dialer.failFirst = 3 // initial dial plus two redials

	connect(t, tr)

	advanceUntil(t, fc, time.Second, tr.IsConnected)
	assert.EqualValues(t, 4, dialer.dials.Load())
	assert.Zero(t, c.get(events.ReconnectFailed))
	assert.Equal(t, 3, c.get(events.Error))
}

func TestReconnectFailedEmittedExactlyOnce(t *testing.T) {
	cfg := testConfig()
	tr, dialer, fc, c := newTestTransport(t, cfg)
	dialer.failAll.Store(true)

	connect(t, tr)

	advanceUntil(t, fc, time.Second, func() bool { return c.get(events.ReconnectFailed) == 1 })

	// Keep time moving: nothing else may be dialled or emitted.
	assert.Never(t, func() bool {
		fc.Advance(cfg.ReconnectInterval)
		return c.get(events.ReconnectFailed) > 1 || dialer.dials.Load() > int32(cfg.MaxReconnects+1)
	}, 200*time.Millisecond, tick)

	assert.EqualValues(t, cfg.MaxReconnects+1, dialer.dials.Load())
	assert.Equal(t, StateDisconnected, tr.State())
	assert.Equal(t, cfg.MaxReconnects+1, c.get(events.Error))
}

func TestReconnectAfterExhaustionRequiresConnect(t *testing.T) {
	cfg := testConfig()
	cfg.MaxReconnects = 0
	tr, dialer, fc, c := newTestTransport(t, cfg)
	dialer.failAll.Store(true)

	connect(t, tr)
	require.Eventually(t, func() bool { return c.get(events.ReconnectFailed) == 1 }, waitFor, tick)

	dialer.failAll.Store(false)
	fc.Advance(time.Minute)
	assert.False(t, tr.IsConnected())

	connect(t, tr)
	require.Eventually(t, tr.IsConnected, waitFor, tick)
}

func TestCloseSuppressesReconnect(t *testing.T) {
	tr, dialer, fc, c := newTestTransport(t, testConfig())
	connect(t, tr)
	require.Eventually(t, tr.IsConnected, waitFor, tick)
	conn := dialer.last()

	tr.Close()

	assert.True(t, conn.isClosed())
	assert.Equal(t, 1, c.get(events.Close))
	assert.Never(t, func() bool {
		fc.Advance(time.Second)
		return dialer.dials.Load() > 1
	}, 200*time.Millisecond, tick)
	assert.Zero(t, c.get(events.Error), "manual close is not a failure")
	assert.ErrorIs(t, tr.Send(events.Heartbeat, nil), ErrNotConnected)

	// Close is idempotent.
	tr.Close()
	assert.Equal(t, 1, c.get(events.Close))
}

func TestCloseCancelsPendingRedial(t *testing.T) {
	tr, dialer, fc, _ := newTestTransport(t, testConfig())
	dialer.failAll.Store(true)
	connect(t, tr)
	require.Eventually(t, func() bool { return tr.Attempts() == 1 }, waitFor, tick)

	tr.Close()
	fc.Advance(time.Minute)

	assert.Never(t, func() bool { return dialer.dials.Load() > 1 }, 100*time.Millisecond, tick)
}

func TestSend(t *testing.T) {
	tr, dialer, _, _ := newTestTransport(t, testConfig())

	assert.ErrorIs(t, tr.Send("hello", map[string]int{"n": 1}), ErrNotConnected)

	connect(t, tr)
	require.Eventually(t, tr.IsConnected, waitFor, tick)
	require.NoError(t, tr.Send("hello", map[string]int{"n": 1}))

	conn := dialer.last()
	assert.Equal(t, []string{"hello"}, conn.writtenEvents())
	assert.JSONEq(t, `{"event":"hello","data":{"n":1}}`, string(conn.written[0]))
}

func TestSendFailureFeedsReconnect(t *testing.T) {
	tr, dialer, _, c := newTestTransport(t, testConfig())
	connect(t, tr)
	require.Eventually(t, tr.IsConnected, waitFor, tick)
	dialer.last().failWrites(errors.New("broken pipe"))

	assert.Error(t, tr.Send("hello", nil))

	require.Eventually(t, func() bool { return c.get(events.Error) == 1 }, waitFor, tick)
	assert.Equal(t, 1, tr.Attempts())
}

func TestHeartbeat(t *testing.T) {
	cfg := testConfig()
	cfg.HeartbeatInterval = 30 * time.Second
	tr, dialer, fc, _ := newTestTransport(t, cfg)
	connect(t, tr)
	require.Eventually(t, tr.IsConnected, waitFor, tick)
	conn := dialer.last()

	advanceUntil(t, fc, cfg.HeartbeatInterval, func() bool {
		return len(conn.writtenEvents()) > 0
	})
	assert.Equal(t, events.Heartbeat, conn.writtenEvents()[0])
}

func TestHeartbeatFailureFeedsReconnect(t *testing.T) {
	cfg := testConfig()
	cfg.HeartbeatInterval = 30 * time.Second
	tr, dialer, fc, c := newTestTransport(t, cfg)
	connect(t, tr)
	require.Eventually(t, tr.IsConnected, waitFor, tick)
	dialer.last().failWrites(errors.New("write timeout"))

	advanceUntil(t, fc, cfg.HeartbeatInterval, func() bool { return c.get(events.Error) == 1 })

	advanceUntil(t, fc, time.Second, func() bool { return c.get(events.Open) == 2 })
	assert.True(t, tr.IsConnected())
}

func TestSubscriptionCancel(t *testing.T) {
	tr, dialer, _, _ := newTestTransport(t, testConfig())
	calls := &counter{}
	sub := tr.On(events.GameStop, calls.handler("stop"))
	done := make(chan struct{}, 4)
	tr.On(events.GameStop, func(Event) { done <- struct{}{} })

	sub.Cancel()
	sub.Cancel()
	assert.False(t, sub.Active())

	connect(t, tr)
	require.Eventually(t, tr.IsConnected, waitFor, tick)
	dialer.last().push(events.GameStop, `{}`)
	<-done

	assert.Zero(t, calls.get("stop"))
}

func TestOffClearsAndCancelAfterOffIsSafe(t *testing.T) {
	tr, dialer, _, _ := newTestTransport(t, testConfig())
	calls := &counter{}
	sub := tr.On(events.RankingUpdate, calls.handler("ranking"))

	tr.Off(events.SessionEvents...)
	assert.False(t, sub.Active())
	sub.Cancel()

	fresh := make(chan struct{}, 1)
	tr.On(events.RankingUpdate, func(Event) { fresh <- struct{}{} })

	connect(t, tr)
	require.Eventually(t, tr.IsConnected, waitFor, tick)
	dialer.last().push(events.RankingUpdate, `{}`)
	<-fresh

	assert.Zero(t, calls.get("ranking"))
}

func TestCancelDuringDispatchSkipsLaterHandler(t *testing.T) {
	tr, dialer, _, _ := newTestTransport(t, testConfig())
	calls := &counter{}
	var second *Subscription
	tr.On(events.GameStart, func(Event) { second.Cancel() })
	second = tr.On(events.GameStart, calls.handler("second"))
	done := make(chan struct{}, 1)
	tr.On(events.GameStart, func(Event) { done <- struct{}{} })

	connect(t, tr)
	require.Eventually(t, tr.IsConnected, waitFor, tick)
	dialer.last().push(events.GameStart, `{"endTime":1}`)
	<-done

	assert.Zero(t, calls.get("second"))
}

func TestResubscribeOnOpen(t *testing.T) {
	tr, dialer, fc, _ := newTestTransport(t, testConfig())
	calls := &counter{}
	tr.On(events.Open, func(Event) {
		tr.Off(events.RankingUpdate)
		tr.On(events.RankingUpdate, calls.handler("ranking"))
	})

	connect(t, tr)
	require.Eventually(t, tr.IsConnected, waitFor, tick)
	dialer.last().Close()
	advanceUntil(t, fc, time.Second, func() bool { return dialer.dials.Load() == 2 && tr.IsConnected() })

	done := make(chan struct{}, 1)
	tr.On(events.RankingUpdate, func(Event) { done <- struct{}{} })
	dialer.last().push(events.RankingUpdate, `{}`)
	<-done

	assert.Equal(t, 1, calls.get("ranking"), "no duplicate delivery after reconnect")
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "disconnected", StateDisconnected.String())
	assert.Equal(t, "connecting", StateConnecting.String())
	assert.Equal(t, "connected", StateConnected.String())
	assert.Equal(t, "State(7)", State(7).String())
}
