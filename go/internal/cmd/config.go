package main

import (
	"os"

	"github.com/mcdev12/liveconsole/go/internal/console/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func loadConfig(opts *rootOptions) (*config.Config, error) {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load(opts.envFile, opts.configFile)
	if err != nil {
		return nil, err
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	lvl, err := cfg.Level()
	if err != nil {
		return nil, err
	}
	zerolog.SetGlobalLevel(lvl)
	return cfg, nil
}
