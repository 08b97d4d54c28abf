package repl

import (
	"fmt"
	"io"

	"github.com/mcdev12/liveconsole/go/internal/console/session"
	"github.com/mcdev12/liveconsole/go/internal/models"
)

// Printer is a session.Observer that reports status transitions,
// celebrations and errors as text lines.
type Printer struct {
	out        io.Writer
	lastStatus *session.Status
	lastPrep   bool
}

var _ session.Observer = (*Printer)(nil)

// NewPrinter writes to out, which must be safe for concurrent use.
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

func (p *Printer) OnStateChange(v session.View) {
	changed := p.lastStatus == nil || *p.lastStatus != v.Status || p.lastPrep != v.Preparing
	status := v.Status
	p.lastStatus = &status
	p.lastPrep = v.Preparing
	if changed {
		fmt.Fprintf(p.out, "%s\n", FormatView(v))
	}
}

func (p *Printer) OnCelebrate(winners []models.Winner) {
	fmt.Fprintf(p.out, "winners:\n")
	for _, w := range winners {
		prize := w.PrizeName
		if prize == "" {
			prize = models.PrizeLevelName(w.PrizeLevel)
		}
		name := w.Nickname
		if name == "" {
			name = w.UserID.String()
		}
		fmt.Fprintf(p.out, "  %-20s %s\n", name, prize)
	}
}

func (p *Printer) OnError(err error) {
	fmt.Fprintf(p.out, "error: %v\n", err)
}

func (p *Printer) OnConnectionLost(err error) {
	fmt.Fprintf(p.out, "connection lost: %v (type 'reconnect' to retry)\n", err)
}
