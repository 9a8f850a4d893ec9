package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidStrategies lists the recognised node selection strategy names.
// Used by [Validate] to reject typos early.
var ValidStrategies = []string{
	"load-balanced", "regional", "least-players", "least-load", "priority",
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Discord
	if cfg.Discord.Token == "" {
		slog.Warn("discord.token is empty; the bot cannot authenticate without DISCORD_TOKEN set")
	}

	// Strategy
	if s := cfg.Lavalink.NodeSelectionStrategy; s != "" && !slices.Contains(ValidStrategies, s) {
		errs = append(errs, fmt.Errorf("lavalink.node_selection_strategy %q is invalid; valid values: %v", s, ValidStrategies))
	}

	// Nodes
	if len(cfg.Lavalink.Nodes) == 0 {
		errs = append(errs, errors.New("lavalink.nodes must list at least one node"))
	}
	idsSeen := make(map[string]int, len(cfg.Lavalink.Nodes))
	for i, n := range cfg.Lavalink.Nodes {
		prefix := fmt.Sprintf("lavalink.nodes[%d]", i)
		if n.ID == "" {
			errs = append(errs, fmt.Errorf("%s.id is required", prefix))
		} else {
			if prev, ok := idsSeen[n.ID]; ok {
				errs = append(errs, fmt.Errorf("%s.id %q is a duplicate of lavalink.nodes[%d]", prefix, n.ID, prev))
			}
			idsSeen[n.ID] = i
		}
		if n.Host == "" {
			errs = append(errs, fmt.Errorf("%s.host is required", prefix))
		}
		if n.Port <= 0 || n.Port > 65535 {
			errs = append(errs, fmt.Errorf("%s.port %d is out of range [1, 65535]", prefix, n.Port))
		}
		if n.Password == "" {
			errs = append(errs, fmt.Errorf("%s.password is required", prefix))
		}
		if n.ResumeTimeoutSeconds < 0 {
			errs = append(errs, fmt.Errorf("%s.resume_timeout_seconds must not be negative", prefix))
		}
		if n.MaxReconnectAttempts < 0 {
			errs = append(errs, fmt.Errorf("%s.max_reconnect_attempts must not be negative", prefix))
		}
		if n.ReconnectDelayMs < 0 {
			errs = append(errs, fmt.Errorf("%s.reconnect_delay_ms must not be negative", prefix))
		}
		if n.ResumeTimeoutSeconds > 0 && n.ResumeKey == "" {
			slog.Warn("resume timeout configured without a resume key; sessions will not resume",
				"node", n.ID)
		}
	}

	// Regional strategy without regions is legal but pointless.
	if cfg.Lavalink.NodeSelectionStrategy == "regional" {
		found := false
		for _, n := range cfg.Lavalink.Nodes {
			if n.Region != "" {
				found = true
				break
			}
		}
		if !found {
			slog.Warn("node_selection_strategy is regional but no node declares a region; selection degrades to load-balanced")
		}
	}

	return errors.Join(errs...)
}
