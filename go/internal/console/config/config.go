// Package config loads console settings from a .env file, the process
// environment and an optional YAML file, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/mcdev12/liveconsole/go/internal/console/relay"
	"github.com/mcdev12/liveconsole/go/internal/console/session"
	"github.com/mcdev12/liveconsole/go/internal/console/transport"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Config is the console configuration.
type Config struct {
	APIURL         string   `env:"CONSOLE_API_URL" envDefault:"http://localhost:8080" yaml:"api_url"`
	Token          string   `env:"CONSOLE_TOKEN" yaml:"token"`
	EventsURL      string   `env:"CONSOLE_EVENTS_URL" envDefault:"ws://localhost:8080/ws" yaml:"events_url"`
	ActivityID     string   `env:"CONSOLE_ACTIVITY_ID" yaml:"activity_id"`
	ScreenType     string   `env:"CONSOLE_SCREEN_TYPE" envDefault:"console" yaml:"screen_type"`
	StorePath      string   `env:"CONSOLE_STORE_PATH" envDefault:"console.db" yaml:"store_path"`
	StatusAddr     string   `env:"CONSOLE_STATUS_ADDR" envDefault:":8090" yaml:"status_addr"`
	AllowedOrigins []string `env:"CONSOLE_ALLOWED_ORIGINS" envSeparator:"," yaml:"allowed_origins"`
	LogLevel       string   `env:"LOG_LEVEL" envDefault:"info" yaml:"log_level"`

	Transport TransportConfig `envPrefix:"CONSOLE_WS_" yaml:"transport"`
	Session   SessionConfig   `envPrefix:"CONSOLE_SESSION_" yaml:"session"`
	Relay     RelayConfig     `envPrefix:"CONSOLE_NATS_" yaml:"relay"`
}

type TransportConfig struct {
	MaxReconnects     int           `env:"MAX_RECONNECTS" envDefault:"10" yaml:"max_reconnects"`
	ReconnectInterval time.Duration `env:"RECONNECT_INTERVAL" envDefault:"3s" yaml:"reconnect_interval"`
	HeartbeatInterval time.Duration `env:"HEARTBEAT_INTERVAL" envDefault:"30s" yaml:"heartbeat_interval"`
	WriteTimeout      time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s" yaml:"write_timeout"`
	HandshakeTimeout  time.Duration `env:"HANDSHAKE_TIMEOUT" envDefault:"10s" yaml:"handshake_timeout"`
	MaxMessageSize    int64         `env:"MAX_MESSAGE_SIZE" envDefault:"1048576" yaml:"max_message_size"`
}

type SessionConfig struct {
	PrepareDuration time.Duration `env:"PREPARE_DURATION" envDefault:"5s" yaml:"prepare_duration"`
	HighlightWindow time.Duration `env:"HIGHLIGHT_WINDOW" envDefault:"500ms" yaml:"highlight_window"`
	CommandTimeout  time.Duration `env:"COMMAND_TIMEOUT" envDefault:"10s" yaml:"command_timeout"`
	AutoStop        bool          `env:"AUTO_STOP" envDefault:"true" yaml:"auto_stop"`
}

type RelayConfig struct {
	Enabled       bool          `env:"ENABLED" envDefault:"false" yaml:"enabled"`
	URL           string        `env:"URL" envDefault:"nats://127.0.0.1:4222" yaml:"url"`
	SubjectPrefix string        `env:"SUBJECT_PREFIX" envDefault:"console" yaml:"subject_prefix"`
	MaxReconnects int           `env:"MAX_RECONNECTS" envDefault:"-1" yaml:"max_reconnects"`
	ReconnectWait time.Duration `env:"RECONNECT_WAIT" envDefault:"2s" yaml:"reconnect_wait"`
}

// Load reads envFile (".env" when empty; a missing file is ignored), parses
// the environment, then overlays configFile when it is set.
func Load(envFile, configFile string) (*Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if configFile != "" {
		data, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.APIURL) == "" {
		return errors.New("api url is required")
	}
	if strings.TrimSpace(c.EventsURL) == "" {
		return errors.New("events url is required")
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	if c.Transport.MaxReconnects < 0 {
		return errors.New("transport max reconnects must not be negative")
	}
	if c.Transport.ReconnectInterval <= 0 {
		return errors.New("transport reconnect interval must be positive")
	}
	if c.Session.PrepareDuration < 0 {
		return errors.New("session prepare duration must not be negative")
	}
	return nil
}

// Level parses LogLevel.
func (c *Config) Level() (zerolog.Level, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("log level %q: %w", c.LogLevel, err)
	}
	return lvl, nil
}

func (c *Config) TransportConfig() transport.Config {
	return transport.Config{
		MaxReconnects:     c.Transport.MaxReconnects,
		ReconnectInterval: c.Transport.ReconnectInterval,
		HeartbeatInterval: c.Transport.HeartbeatInterval,
		WriteTimeout:      c.Transport.WriteTimeout,
		HandshakeTimeout:  c.Transport.HandshakeTimeout,
		MaxMessageSize:    c.Transport.MaxMessageSize,
	}
}

// SessionConfig returns the session settings for activityID.
func (c *Config) SessionConfig(activityID string) session.Config {
	cfg := session.DefaultConfig()
	cfg.ActivityID = activityID
	cfg.PrepareDuration = c.Session.PrepareDuration
	cfg.HighlightWindow = c.Session.HighlightWindow
	cfg.CommandTimeout = c.Session.CommandTimeout
	cfg.AutoStop = c.Session.AutoStop
	return cfg
}

func (c *Config) RelayConfig() relay.Config {
	return relay.Config{
		URL:           c.Relay.URL,
		SubjectPrefix: c.Relay.SubjectPrefix,
		MaxReconnects: c.Relay.MaxReconnects,
		ReconnectWait: c.Relay.ReconnectWait,
	}
}

// ConnectOptions describes the presenter's event connection.
func (c *Config) ConnectOptions(activityID string) transport.ConnectOptions {
	return transport.ConnectOptions{
		Role:       transport.RoleScreen,
		ActivityID: activityID,
		ScreenType: c.ScreenType,
		Token:      c.Token,
	}
}
