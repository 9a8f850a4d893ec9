// Package config provides the configuration schema, loader, and file watcher
// for the Rias bot.
package config

import (
	"time"

	"github.com/MrWong99/rias/pkg/rias"
)

// LogLevel controls log verbosity for the bot.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for the Rias bot.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Discord  DiscordConfig  `yaml:"discord"`
	Server   ServerConfig   `yaml:"server"`
	Lavalink LavalinkConfig `yaml:"lavalink"`
}

// DiscordConfig holds the chat-platform credentials.
type DiscordConfig struct {
	// Token is the bot token used to authenticate the gateway session.
	Token string `yaml:"token"`
}

// ServerConfig holds network and logging settings for the bot's HTTP
// sidecar (health and metrics endpoints).
type ServerConfig struct {
	// ListenAddr is the TCP address the sidecar listens on (e.g., ":8080").
	// Empty disables the sidecar.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// LavalinkConfig holds the audio node cluster settings.
type LavalinkConfig struct {
	// UserAgent is the Client-Name announced to nodes. Default "Rias".
	UserAgent string `yaml:"user_agent"`

	// DefaultSearchSource prefixes bare search queries (e.g. "ytsearch").
	DefaultSearchSource string `yaml:"default_search_source"`

	// NodeSelectionStrategy picks which node hosts a new player. One of
	// load-balanced (default), regional, least-players, least-load, priority.
	NodeSelectionStrategy string `yaml:"node_selection_strategy"`

	// Debug enables verbose frame logging.
	Debug bool `yaml:"debug"`

	// Nodes lists the audio nodes. Order is the selection tie-break order.
	Nodes []NodeConfig `yaml:"nodes"`
}

// NodeConfig describes one audio node.
type NodeConfig struct {
	// ID is the unique node name within the cluster.
	ID string `yaml:"id"`

	// Host and Port address the node's event stream and REST surface.
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// Password authenticates every request.
	Password string `yaml:"password"`

	// Secure selects wss/https transports.
	Secure bool `yaml:"secure"`

	// Region is an optional voice-region affinity hint (e.g. "us", "eu").
	Region string `yaml:"region"`

	// Priority orders nodes under the priority strategy. Lower wins.
	Priority int `yaml:"priority"`

	// ResumeKey arms session resumption when set.
	ResumeKey string `yaml:"resume_key"`

	// ResumeTimeoutSeconds is how long the node keeps a resumable session
	// alive. Default 60.
	ResumeTimeoutSeconds int `yaml:"resume_timeout_seconds"`

	// MaxReconnectAttempts caps automatic reconnection. Default 5.
	MaxReconnectAttempts int `yaml:"max_reconnect_attempts"`

	// ReconnectDelayMs is the backoff base in milliseconds. Default 3000.
	ReconnectDelayMs int `yaml:"reconnect_delay_ms"`
}

// NodeConfigs converts the YAML node list into cluster node configs.
func (c LavalinkConfig) NodeConfigs() []rias.NodeConfig {
	out := make([]rias.NodeConfig, 0, len(c.Nodes))
	for _, n := range c.Nodes {
		out = append(out, rias.NodeConfig{
			ID:                   n.ID,
			Host:                 n.Host,
			Port:                 n.Port,
			Password:             n.Password,
			Secure:               n.Secure,
			Region:               n.Region,
			Priority:             n.Priority,
			ResumeKey:            n.ResumeKey,
			ResumeTimeout:        time.Duration(n.ResumeTimeoutSeconds) * time.Second,
			MaxReconnectAttempts: n.MaxReconnectAttempts,
			ReconnectDelay:       time.Duration(n.ReconnectDelayMs) * time.Millisecond,
		})
	}
	return out
}
