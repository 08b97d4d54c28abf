package main

import (
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/liveconsole/go/clients/console_api_client"
	"github.com/mcdev12/liveconsole/go/internal/console/activity"
	"github.com/mcdev12/liveconsole/go/internal/console/config"
	"github.com/mcdev12/liveconsole/go/internal/console/store"
	"github.com/rs/zerolog/log"
)

// Services are the long-lived collaborators every command needs.
type Services struct {
	Clock    clockwork.Clock
	Store    *store.Store
	API      *console_api_client.ConsoleApiClient
	Resolver *activity.Resolver
}

func setupServices(cfg *config.Config) (*Services, error) {
	// Clock → store → API client → activity resolver
	clock := clockwork.NewRealClock()
	st, err := store.Open(cfg.StorePath, clock)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	api := console_api_client.NewConsoleApiClient(cfg.APIURL, cfg.Token)
	api.SetTimeout(cfg.Session.CommandTimeout)

	log.Debug().
		Str("store", cfg.StorePath).
		Str("api_url", api.BaseURL()).
		Msg("services ready")

	return &Services{
		Clock:    clock,
		Store:    st,
		API:      api,
		Resolver: activity.NewResolver(st, api),
	}, nil
}

func (s *Services) Close() {
	if err := s.Store.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close store")
	}
}
