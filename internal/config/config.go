// Package config loads the client configuration from a YAML file.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
)

type ServerConfig struct {
	BaseURL   string `yaml:"baseUrl"`
	SocketURL string `yaml:"socketUrl"`
}

type RealtimeConfig struct {
	HeartbeatSeconds     int `yaml:"heartbeatSeconds"`
	ReconnectBaseSeconds int `yaml:"reconnectBaseSeconds"`
	MaxReconnectAttempts int `yaml:"maxReconnectAttempts"`
}

type PrefetchConfig struct {
	DataUsage   string `yaml:"dataUsage"` // conservative | normal | aggressive
	IdleSeconds int    `yaml:"idleSeconds"`
}

type DevServerConfig struct {
	Listen string `yaml:"listen"`
	// PushIntervalSeconds is how often the simulator emits a sample
	// notification. Zero disables the feed.
	PushIntervalSeconds int `yaml:"pushIntervalSeconds"`
}

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Realtime  RealtimeConfig  `yaml:"realtime"`
	Prefetch  PrefetchConfig  `yaml:"prefetch"`
	DevServer DevServerConfig `yaml:"devServer"`
	Debug     bool            `yaml:"debug"`
}

// Default is the configuration for a local dev loop against the simulator.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			BaseURL:   "http://localhost:8080",
			SocketURL: "ws://localhost:8080/ws",
		},
		Prefetch:  PrefetchConfig{DataUsage: "normal", IdleSeconds: 30},
		DevServer: DevServerConfig{Listen: ":8080", PushIntervalSeconds: 15},
	}
}

// Load reads filename into a Config on top of the defaults.
func Load(filename string) (*Config, error) {
	buf, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	c := Default()
	if err := yaml.Unmarshal(buf, c); err != nil {
		return nil, fmt.Errorf("parsing yaml: %w", err)
	}
	return c, nil
}

func (c *RealtimeConfig) Heartbeat() time.Duration {
	return time.Duration(c.HeartbeatSeconds) * time.Second
}

func (c *RealtimeConfig) ReconnectBase() time.Duration {
	return time.Duration(c.ReconnectBaseSeconds) * time.Second
}

func (c *PrefetchConfig) IdleWindow() time.Duration {
	return time.Duration(c.IdleSeconds) * time.Second
}
