package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Hub      HubConfig      `yaml:"hub"`
	Terminal TerminalConfig `yaml:"terminal"`
}

type ServerConfig struct {
	Port           int      `yaml:"port"`
	Host           string   `yaml:"host"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type HubConfig struct {
	PingInterval   time.Duration `yaml:"ping_interval"`
	PongTimeout    time.Duration `yaml:"pong_timeout"` // 0 keeps unresponsive peers connected
	StatusInterval time.Duration `yaml:"status_interval"`
	SendBuffer     int           `yaml:"send_buffer"`
	MaxMessageSize int64         `yaml:"max_message_size"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	MaxConnections int           `yaml:"max_connections"` // 0 = unlimited
}

type TerminalConfig struct {
	LogInterval time.Duration `yaml:"log_interval"`
	LogWindow   time.Duration `yaml:"log_window"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 3000,
			Host: "0.0.0.0",
		},
		Hub: HubConfig{
			PingInterval:   30 * time.Second,
			StatusInterval: 60 * time.Second,
			SendBuffer:     64,
			MaxMessageSize: 1 << 20,
			WriteTimeout:   10 * time.Second,
		},
		Terminal: TerminalConfig{
			LogInterval: 3 * time.Second,
			LogWindow:   15 * time.Second,
		},
	}
}

// Default returns the built-in configuration.
func Default() *Config {
	return defaultConfig()
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault behaves like Load but returns the defaults when the file
// does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return defaultConfig(), nil
	}
	return cfg, err
}

func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Hub.PingInterval <= 0 {
		return errors.New("hub.ping_interval must be positive")
	}
	if c.Hub.PongTimeout < 0 {
		return errors.New("hub.pong_timeout must not be negative")
	}
	if c.Hub.PongTimeout > 0 && c.Hub.PongTimeout <= c.Hub.PingInterval {
		return errors.New("hub.pong_timeout must exceed hub.ping_interval")
	}
	if c.Hub.StatusInterval <= 0 {
		return errors.New("hub.status_interval must be positive")
	}
	if c.Hub.MaxConnections < 0 {
		return errors.New("hub.max_connections must not be negative")
	}
	if c.Hub.WriteTimeout <= 0 {
		return errors.New("hub.write_timeout must be positive")
	}
	if c.Hub.SendBuffer <= 0 {
		return errors.New("hub.send_buffer must be positive")
	}
	if c.Terminal.LogInterval <= 0 {
		return errors.New("terminal.log_interval must be positive")
	}
	if c.Terminal.LogWindow < c.Terminal.LogInterval {
		return errors.New("terminal.log_window must be at least terminal.log_interval")
	}
	return nil
}

// Addr returns the host:port the server listens on.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
