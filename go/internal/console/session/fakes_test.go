package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mcdev12/liveconsole/go/internal/console/transport"
	"github.com/mcdev12/liveconsole/go/internal/models"
)

type fakeAPI struct {
	mu       sync.Mutex
	rounds   []models.Round
	current  func() *models.CurrentRound
	start    func() (*models.StartResult, error)
	stop     func() (*models.StopResult, error)
	winners  []models.Winner
	stopGate chan struct{}

	listCalls    atomic.Int32
	currentCalls atomic.Int32
	startCalls   atomic.Int32
	stopCalls    atomic.Int32
	winnerCalls  atomic.Int32
	lastPassword atomic.Value
}

func (a *fakeAPI) ListRounds(context.Context, string) ([]models.Round, error) {
	a.listCalls.Add(1)
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]models.Round(nil), a.rounds...), nil
}

func (a *fakeAPI) CurrentRound(context.Context, string) (*models.CurrentRound, error) {
	a.currentCalls.Add(1)
	a.mu.Lock()
	current := a.current
	a.mu.Unlock()
	if current == nil {
		return &models.CurrentRound{Status: models.RoundStatusUnselected}, nil
	}
	return current(), nil
}

func (a *fakeAPI) StartRound(_ context.Context, _ models.ID, credential string) (*models.StartResult, error) {
	a.startCalls.Add(1)
	a.lastPassword.Store(credential)
	a.mu.Lock()
	start := a.start
	a.mu.Unlock()
	return start()
}

func (a *fakeAPI) StopRound(ctx context.Context, _ models.ID) (*models.StopResult, error) {
	a.stopCalls.Add(1)
	if a.stopGate != nil {
		select {
		case <-a.stopGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	a.mu.Lock()
	stop := a.stop
	a.mu.Unlock()
	if stop == nil {
		return &models.StopResult{}, nil
	}
	return stop()
}

func (a *fakeAPI) Winners(context.Context, models.ID) ([]models.Winner, error) {
	a.winnerCalls.Add(1)
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]models.Winner(nil), a.winners...), nil
}

func (a *fakeAPI) setStop(fn func() (*models.StopResult, error)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stop = fn
}

func (a *fakeAPI) setCurrent(fn func() *models.CurrentRound) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.current = fn
}

type recordingObserver struct {
	mu           sync.Mutex
	views        int
	celebrations [][]models.Winner
	errs         []error
	lost         []error
}

func (o *recordingObserver) OnStateChange(View) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.views++
}

func (o *recordingObserver) OnCelebrate(winners []models.Winner) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.celebrations = append(o.celebrations, winners)
}

func (o *recordingObserver) OnError(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.errs = append(o.errs, err)
}

func (o *recordingObserver) OnConnectionLost(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.lost = append(o.lost, err)
}

func (o *recordingObserver) celebrationCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.celebrations)
}

func (o *recordingObserver) errors() []error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]error(nil), o.errs...)
}

func (o *recordingObserver) lostCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.lost)
}

// Transport fakes: a dialer handing out in-memory connections the test can
// push server frames into.

type memConn struct {
	in        chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

func newMemConn() *memConn {
	return &memConn{in: make(chan []byte, 16), closed: make(chan struct{})}
}

func (c *memConn) ReadMessage() (int, []byte, error) {
	select {
	case msg := <-c.in:
		return 1, msg, nil
	case <-c.closed:
		return 0, nil, errors.New("closed")
	}
}

func (c *memConn) WriteMessage(int, []byte) error { return nil }
func (c *memConn) SetWriteDeadline(time.Time) error { return nil }

func (c *memConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *memConn) push(event string, data interface{}) {
	body, _ := json.Marshal(data)
	frame, _ := json.Marshal(map[string]interface{}{"event": event, "data": json.RawMessage(body)})
	c.in <- frame
}

type memDialer struct {
	mu    sync.Mutex
	conns []*memConn
}

func (d *memDialer) Dial(context.Context, string) (transport.Conn, error) {
	c := newMemConn()
	d.mu.Lock()
	d.conns = append(d.conns, c)
	d.mu.Unlock()
	return c, nil
}

func (d *memDialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.conns)
}

func (d *memDialer) last() *memConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conns[len(d.conns)-1]
}
