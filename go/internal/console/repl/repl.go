// Package repl is the presenter's line-oriented command interface.
package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/mcdev12/liveconsole/go/internal/console/session"
	"github.com/mcdev12/liveconsole/go/internal/models"
)

// Controller is the session surface the REPL drives.
type Controller interface {
	Snapshot() session.View
	Rounds() []models.Round
	SelectRound(ctx context.Context, roundID models.ID) error
	Start(ctx context.Context, credential string) error
	Stop(ctx context.Context) error
	NextRound(ctx context.Context) error
	Resume()
	DismissCelebration()
}

var (
	errUsage       = errors.New("usage")
	errNoReconnect = errors.New("reconnect is not available")
)

const helpText = `commands:
  rounds            list selectable rounds
  select <roundId>  select a round
  start <password>  start the selected round after the countdown
  stop              stop the running round
  next              clear the finished round
  status            show the session
  resume            recompute countdowns
  reconnect         reconnect to the event server
  dismiss           hide the winner celebration
  help              show this help
  quit              exit`

// REPL reads commands from in and writes results to out.
type REPL struct {
	ctrl      Controller
	in        io.Reader
	out       *SyncWriter
	reconnect func() error
}

// New creates a REPL. Output is wrapped in a SyncWriter unless it already is
// one.
func New(ctrl Controller, in io.Reader, out io.Writer) *REPL {
	sw, ok := out.(*SyncWriter)
	if !ok {
		sw = NewSyncWriter(out)
	}
	return &REPL{ctrl: ctrl, in: in, out: sw}
}

// SetReconnect installs the action behind the reconnect command.
func (r *REPL) SetReconnect(fn func() error) {
	r.reconnect = fn
}

// Writer returns the REPL's output, safe for concurrent use, so
// notifications do not interleave with command output.
func (r *REPL) Writer() io.Writer {
	return r.out
}

// Run processes lines until EOF, quit, or ctx cancellation.
func (r *REPL) Run(ctx context.Context) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(r.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	r.out.printf("type 'help' for commands\n")
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			return err
		case line := <-lines:
			quit, err := r.Execute(ctx, line)
			if err != nil {
				r.out.printf("error: %v\n", err)
			}
			if quit {
				return nil
			}
		}
	}
}

// Execute runs one command line. It reports whether the REPL should exit.
func (r *REPL) Execute(ctx context.Context, line string) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	switch cmd {
	case "help", "?":
		r.out.printf("%s\n", helpText)
	case "rounds":
		r.printRounds()
	case "select":
		if len(args) != 1 {
			return false, fmt.Errorf("%w: select <roundId>", errUsage)
		}
		if err := r.ctrl.SelectRound(ctx, models.ID(args[0])); err != nil {
			return false, err
		}
		r.printStatus()
	case "start":
		if len(args) != 1 {
			return false, fmt.Errorf("%w: start <password>", errUsage)
		}
		if err := r.ctrl.Start(ctx, args[0]); err != nil {
			return false, err
		}
		r.out.printf("starting in %ds\n", r.ctrl.Snapshot().PrepareRemaining)
	case "stop":
		if err := r.ctrl.Stop(ctx); err != nil {
			return false, err
		}
		r.out.printf("stop requested\n")
	case "next":
		if err := r.ctrl.NextRound(ctx); err != nil {
			return false, err
		}
		r.printStatus()
	case "status":
		r.printStatus()
	case "resume":
		r.ctrl.Resume()
	case "reconnect":
		if r.reconnect == nil {
			return false, errNoReconnect
		}
		if err := r.reconnect(); err != nil {
			return false, fmt.Errorf("reconnect: %w", err)
		}
		r.out.printf("reconnecting\n")
	case "dismiss":
		r.ctrl.DismissCelebration()
	case "quit", "exit":
		return true, nil
	default:
		return false, fmt.Errorf("unknown command %q, type 'help'", cmd)
	}
	return false, nil
}

func (r *REPL) printRounds() {
	rounds := r.ctrl.Rounds()
	if len(rounds) == 0 {
		r.out.printf("no selectable rounds\n")
		return
	}
	for _, round := range rounds {
		r.out.printf("  %-6s %-24s %3ds  %s\n",
			round.ID, round.Name, int(round.DurationOr(models.DefaultRoundDuration).Seconds()), roundStatus(round.Status))
	}
}

func (r *REPL) printStatus() {
	r.out.printf("%s\n", FormatView(r.ctrl.Snapshot()))
}

// FormatView renders a one-line summary of v.
func FormatView(v session.View) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s]", v.Status)
	if v.Round != nil {
		fmt.Fprintf(&b, " round %s", v.Round.ID)
		if v.Round.Name != "" {
			fmt.Fprintf(&b, " (%s)", v.Round.Name)
		}
	}
	switch {
	case v.Preparing:
		fmt.Fprintf(&b, " starting in %ds", v.PrepareRemaining)
	case v.Status == session.StatusRunning:
		fmt.Fprintf(&b, " %ds/%ds left", v.Remaining, v.TotalDuration)
	}
	fmt.Fprintf(&b, " players=%d", v.PlayerCount)
	if len(v.Winners) > 0 {
		fmt.Fprintf(&b, " winners=%d", len(v.Winners))
	}
	if !v.Connected {
		b.WriteString(" (offline)")
	}
	return b.String()
}

func roundStatus(s models.RoundStatus) string {
	switch s {
	case models.RoundStatusReady:
		return "ready"
	case models.RoundStatusRunning:
		return "running"
	case models.RoundStatusFinished:
		return "finished"
	default:
		return "-"
	}
}

// SyncWriter serializes writes from the REPL and session notifications.
type SyncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func NewSyncWriter(w io.Writer) *SyncWriter {
	return &SyncWriter{w: w}
}

func (s *SyncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

func (s *SyncWriter) printf(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(s, format, args...)
}
