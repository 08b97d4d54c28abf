package session

import "github.com/mcdev12/liveconsole/go/internal/models"

// Observer is notified of session changes. Methods run on the event loop and
// must not block.
type Observer interface {
	OnStateChange(v View)
	OnCelebrate(winners []models.Winner)
	OnError(err error)
	OnConnectionLost(err error)
}

// NoOpObserver ignores every notification.
type NoOpObserver struct{}

func (NoOpObserver) OnStateChange(View) {}
func (NoOpObserver) OnCelebrate([]models.Winner) {}
func (NoOpObserver) OnError(error) {}
func (NoOpObserver) OnConnectionLost(error) {}

// MultiObserver fans notifications out in order.
type MultiObserver []Observer

func (m MultiObserver) OnStateChange(v View) {
	for _, o := range m {
		o.OnStateChange(v)
	}
}

func (m MultiObserver) OnCelebrate(winners []models.Winner) {
	for _, o := range m {
		o.OnCelebrate(winners)
	}
}

func (m MultiObserver) OnError(err error) {
	for _, o := range m {
		o.OnError(err)
	}
}

func (m MultiObserver) OnConnectionLost(err error) {
	for _, o := range m {
		o.OnConnectionLost(err)
	}
}
