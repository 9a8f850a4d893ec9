package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked.
type ConfigDiff struct {
	NodesChanged    bool       // true if any node was added, removed, or edited
	NodeChanges     []NodeDiff // per-node diffs
	LogLevelChanged bool
	NewLogLevel     LogLevel
	StrategyChanged bool // strategy is fixed at cluster construction; requires restart
}

// NodeDiff describes what changed for a single node between two configs.
type NodeDiff struct {
	ID              string
	EndpointChanged bool // host, port, secure, or password
	TuningChanged   bool // region, priority, resume, or reconnect knobs
	Added           bool
	Removed         bool
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Lavalink.NodeSelectionStrategy != new.Lavalink.NodeSelectionStrategy {
		d.StrategyChanged = true
	}

	oldNodes := make(map[string]*NodeConfig, len(old.Lavalink.Nodes))
	for i := range old.Lavalink.Nodes {
		oldNodes[old.Lavalink.Nodes[i].ID] = &old.Lavalink.Nodes[i]
	}
	newNodes := make(map[string]*NodeConfig, len(new.Lavalink.Nodes))
	for i := range new.Lavalink.Nodes {
		newNodes[new.Lavalink.Nodes[i].ID] = &new.Lavalink.Nodes[i]
	}

	for id, o := range oldNodes {
		n, ok := newNodes[id]
		if !ok {
			d.NodeChanges = append(d.NodeChanges, NodeDiff{ID: id, Removed: true})
			continue
		}
		nd := NodeDiff{ID: id}
		if o.Host != n.Host || o.Port != n.Port || o.Secure != n.Secure || o.Password != n.Password {
			nd.EndpointChanged = true
		}
		if o.Region != n.Region || o.Priority != n.Priority ||
			o.ResumeKey != n.ResumeKey || o.ResumeTimeoutSeconds != n.ResumeTimeoutSeconds ||
			o.MaxReconnectAttempts != n.MaxReconnectAttempts || o.ReconnectDelayMs != n.ReconnectDelayMs {
			nd.TuningChanged = true
		}
		if nd.EndpointChanged || nd.TuningChanged {
			d.NodeChanges = append(d.NodeChanges, nd)
		}
	}
	for id := range newNodes {
		if _, ok := oldNodes[id]; !ok {
			d.NodeChanges = append(d.NodeChanges, NodeDiff{ID: id, Added: true})
		}
	}

	d.NodesChanged = len(d.NodeChanges) > 0
	return d
}
