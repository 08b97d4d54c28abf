// Package status serves a small read-only HTTP surface for browser overlays
// on the shared display: health, the current session view and the event
// connection.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/mcdev12/liveconsole/go/internal/console/session"
	"github.com/mcdev12/liveconsole/go/internal/console/transport"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// StateSource provides the published session view.
type StateSource interface {
	Snapshot() session.View
}

// ConnectionSource provides event connection diagnostics.
type ConnectionSource interface {
	Stats() transport.Stats
}

type stateResponse struct {
	session.View
	Progress float64 `json:"progress"`
}

type healthResponse struct {
	Status    string `json:"status"`
	Connected bool   `json:"connected"`
	Session   string `json:"session"`
}

// NewHandler builds the routes wrapped in CORS. An empty origin list allows
// every origin.
func NewHandler(state StateSource, conn ConnectionSource, allowedOrigins []string) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		stats := conn.Stats()
		resp := healthResponse{
			Status:    "ok",
			Connected: stats.State == transport.StateConnected.String(),
			Session:   state.Snapshot().Status.String(),
		}
		code := http.StatusOK
		if !resp.Connected {
			resp.Status = "degraded"
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, resp)
	})

	mux.HandleFunc("/api/state", func(w http.ResponseWriter, r *http.Request) {
		v := state.Snapshot()
		writeJSON(w, http.StatusOK, stateResponse{View: v, Progress: v.Progress()})
	})

	mux.HandleFunc("/api/connection", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, conn.Stats())
	})

	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
		},
		AllowedOrigins: allowedOrigins,
		AllowedHeaders: []string{"*"},
	})
	return c.Handler(readOnly(mux))
}

// NewServer wraps handler for HTTP/1.1 and cleartext HTTP/2.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h2c.NewHandler(handler, &http2.Server{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("status server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info().Msg("status server stopped")
	return nil
}

func readOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to write status response")
	}
}
