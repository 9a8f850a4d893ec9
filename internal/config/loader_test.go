package config_test

import (
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/rias/internal/config"
)

const validYAML = `
discord:
  token: "abc"
server:
  listen_addr: ":8080"
  log_level: info
lavalink:
  user_agent: "Rias"
  default_search_source: ytsearch
  node_selection_strategy: load-balanced
  nodes:
    - id: main
      host: localhost
      port: 2333
      password: youshallnotpass
      region: eu
      resume_key: rias-main
      resume_timeout_seconds: 45
      max_reconnect_attempts: 3
      reconnect_delay_ms: 1500
`

func TestLoadFromReader_Valid(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Discord.Token != "abc" || cfg.Server.LogLevel != config.LogInfo {
		t.Fatalf("config = %+v", cfg)
	}
	if len(cfg.Lavalink.Nodes) != 1 || cfg.Lavalink.Nodes[0].ID != "main" {
		t.Fatalf("nodes = %+v", cfg.Lavalink.Nodes)
	}
}

func TestLoadFromReader_RejectsUnknownFields(t *testing.T) {
	t.Parallel()
	yaml := strings.Replace(validYAML, "user_agent:", "user_agnet:", 1)
	if _, err := config.LoadFromReader(strings.NewReader(yaml)); err == nil {
		t.Fatal("typoed field accepted")
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{
		Server: config.ServerConfig{LogLevel: "verbose"},
		Lavalink: config.LavalinkConfig{
			NodeSelectionStrategy: "round-robin",
			Nodes: []config.NodeConfig{
				{ID: "", Host: "", Port: 0, Password: ""},
			},
		},
	}
	err := config.Validate(cfg)
	if err == nil {
		t.Fatal("invalid config accepted")
	}
	for _, want := range []string{
		"server.log_level",
		"node_selection_strategy",
		".id is required",
		".host is required",
		".port",
		".password is required",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
}

func TestValidate_DuplicateNodeIDs(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{
		Lavalink: config.LavalinkConfig{
			Nodes: []config.NodeConfig{
				{ID: "main", Host: "a", Port: 2333, Password: "x"},
				{ID: "main", Host: "b", Port: 2333, Password: "x"},
			},
		},
	}
	err := config.Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Fatalf("got %v, want duplicate id error", err)
	}
}

func TestValidate_RequiresNodes(t *testing.T) {
	t.Parallel()
	err := config.Validate(&config.Config{})
	if err == nil || !strings.Contains(err.Error(), "at least one node") {
		t.Fatalf("got %v, want missing-nodes error", err)
	}
}

func TestValidate_NegativeKnobs(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{
		Lavalink: config.LavalinkConfig{
			Nodes: []config.NodeConfig{{
				ID: "main", Host: "a", Port: 2333, Password: "x",
				ResumeTimeoutSeconds: -1, MaxReconnectAttempts: -1, ReconnectDelayMs: -1,
			}},
		},
	}
	err := config.Validate(cfg)
	if err == nil {
		t.Fatal("negative knobs accepted")
	}
	for _, want := range []string{"resume_timeout_seconds", "max_reconnect_attempts", "reconnect_delay_ms"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
}

func TestNodeConfigs_DurationConversion(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	nodes := cfg.Lavalink.NodeConfigs()
	if len(nodes) != 1 {
		t.Fatalf("nodes = %v", nodes)
	}
	n := nodes[0]
	if n.ResumeTimeout != 45*time.Second {
		t.Fatalf("resume timeout = %v", n.ResumeTimeout)
	}
	if n.ReconnectDelay != 1500*time.Millisecond {
		t.Fatalf("reconnect delay = %v", n.ReconnectDelay)
	}
	if n.MaxReconnectAttempts != 3 || n.Region != "eu" || n.ResumeKey != "rias-main" {
		t.Fatalf("node = %+v", n)
	}
}

func TestLogLevel_IsValid(t *testing.T) {
	t.Parallel()
	for _, l := range []config.LogLevel{config.LogDebug, config.LogInfo, config.LogWarn, config.LogError} {
		if !l.IsValid() {
			t.Errorf("%s should be valid", l)
		}
	}
	if config.LogLevel("trace").IsValid() {
		t.Error("trace should be invalid")
	}
}
