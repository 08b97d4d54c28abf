package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mcdev12/liveconsole/go/internal/console/config"
	"github.com/mcdev12/liveconsole/go/internal/console/eventloop"
	"github.com/mcdev12/liveconsole/go/internal/console/relay"
	"github.com/mcdev12/liveconsole/go/internal/console/repl"
	"github.com/mcdev12/liveconsole/go/internal/console/session"
	"github.com/mcdev12/liveconsole/go/internal/console/status"
	"github.com/mcdev12/liveconsole/go/internal/console/transport"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

// runConsole drives one activity until ctx is cancelled or the presenter
// quits. A nil in runs without the prompt.
func runConsole(ctx context.Context, cfg *config.Config, activityFlag string, in io.Reader, out io.Writer) error {
	svc, err := setupServices(cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	act, err := svc.Resolver.Resolve(ctx, activityFlag)
	if err != nil {
		return fmt.Errorf("resolve activity: %w", err)
	}
	activityID := act.ID.String()

	log.Info().
		Str("activity_id", activityID).
		Str("activity", act.Name).
		Str("events_url", cfg.EventsURL).
		Msg("starting console")

	clock := svc.Clock
	loop := eventloop.New(clock)
	tr := transport.New(nil, clock, cfg.TransportConfig())

	stdout := repl.NewSyncWriter(out)
	observers := session.MultiObserver{repl.NewPrinter(stdout)}

	if cfg.Relay.Enabled {
		nc, err := relay.Connect(cfg.RelayConfig())
		if err != nil {
			return err
		}
		defer nc.Close()
		observers = append(observers, relay.New(nc, cfg.Relay.SubjectPrefix, activityID, clock))
	}

	sess := session.New(loop, svc.API, cfg.SessionConfig(activityID), observers)

	// The loop outlives ctx so the session can be closed on it.
	loopCtx, stopLoop := context.WithCancel(context.Background())
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		_ = loop.Run(loopCtx)
	}()
	defer func() {
		stopLoop()
		<-loopDone
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := sess.Init(ctx); err != nil {
		// The transport's open handler resynchronizes once the server is reachable.
		log.Warn().Err(err).Msg("initial session load failed")
	}

	sess.Attach(tr)
	target, params, err := cfg.ConnectOptions(activityID).Target(cfg.EventsURL)
	if err != nil {
		return err
	}
	connect := func() error {
		return tr.Connect(target, params)
	}
	if err := connect(); err != nil {
		return fmt.Errorf("connect events: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	if srv := setupServer(cfg, sess, tr); srv != nil {
		g.Go(func() error {
			return status.Run(gctx, srv)
		})
	}

	g.Go(func() error {
		watchResume(gctx, sess)
		return nil
	})

	if in != nil {
		prompt := repl.New(sess, in, stdout)
		prompt.SetReconnect(connect)
		g.Go(func() error {
			defer cancel()
			return prompt.Run(gctx)
		})
	}

	err = g.Wait()

	tr.Close()
	closeCtx, closeCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer closeCancel()
	if cerr := sess.Close(closeCtx); cerr != nil {
		log.Warn().Err(cerr).Msg("session close failed")
	}

	log.Info().Msg("console stopped")
	return err
}

// watchResume recomputes countdowns when the process is continued after a
// suspension, since wall time passed without ticks.
func watchResume(ctx context.Context, sess *session.Session) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGCONT)
	defer signal.Stop(ch)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ch:
			log.Debug().Msg("resumed, recomputing countdowns")
			sess.Resume()
		}
	}
}
