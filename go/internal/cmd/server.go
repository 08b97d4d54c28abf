package main

import (
	"net/http"

	"github.com/mcdev12/liveconsole/go/internal/console/config"
	"github.com/mcdev12/liveconsole/go/internal/console/status"
)

// setupServer returns nil when the status surface is disabled with an
// address of "off".
func setupServer(cfg *config.Config, state status.StateSource, conn status.ConnectionSource) *http.Server {
	if cfg.StatusAddr == "" || cfg.StatusAddr == "off" {
		return nil
	}
	handler := status.NewHandler(state, conn, cfg.AllowedOrigins)
	return status.NewServer(cfg.StatusAddr, handler)
}
