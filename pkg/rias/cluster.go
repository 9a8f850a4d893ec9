package rias

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/rias/internal/observe"
	"github.com/MrWong99/rias/pkg/lavalink"
)

// shutdownTimeout bounds how long Shutdown waits for player teardown.
const shutdownTimeout = 30 * time.Second

// defaultSearchSource is used when no search source is configured.
const defaultSearchSource = "ytsearch"

// SendFunc delivers a gateway payload for one guild to the chat platform.
// With discordgo this is a thin wrapper over the session's gateway writer;
// see the discord subpackage.
type SendFunc func(guildID string, payload any) error

// VoiceJoin is gateway opcode 4: move the bot in or out of a voice channel.
// It is the payload type handed to the cluster's [SendFunc].
type VoiceJoin struct {
	Op int           `json:"op"`
	D  VoiceJoinData `json:"d"`
}

// VoiceJoinData is the opcode 4 body. ChannelID nil means leave.
type VoiceJoinData struct {
	GuildID   string  `json:"guild_id"`
	ChannelID *string `json:"channel_id"`
	SelfMute  bool    `json:"self_mute"`
	SelfDeaf  bool    `json:"self_deaf"`
}

// Rias is the cluster anchor: it owns the node registry and the per-guild
// player registry, mediates node→player event delivery, and translates
// player voice intents into gateway opcodes.
type Rias struct {
	clientID     string
	send         SendFunc
	strategy     Strategy
	userAgent    string
	searchSource string
	httpClient   *http.Client
	metrics      *observe.Metrics

	mu        sync.RWMutex
	nodeOrder []string
	nodes     map[string]*Node
	players   map[string]*Player
	closed    bool

	shutdownOnce sync.Once
}

// ClusterOption customises a [Rias] cluster.
type ClusterOption func(*Rias)

// WithStrategy sets the node selection strategy. Default load-balanced.
func WithStrategy(s Strategy) ClusterOption {
	return func(r *Rias) { r.strategy = s }
}

// WithSearchSource sets the default search prefix for bare queries.
func WithSearchSource(source string) ClusterOption {
	return func(r *Rias) {
		if source != "" {
			r.searchSource = source
		}
	}
}

// WithClusterUserAgent sets the Client-Name/User-Agent used toward nodes.
func WithClusterUserAgent(ua string) ClusterOption {
	return func(r *Rias) {
		if ua != "" {
			r.userAgent = ua
		}
	}
}

// WithClusterHTTPClient sets the HTTP client shared by all nodes.
func WithClusterHTTPClient(c *http.Client) ClusterOption {
	return func(r *Rias) {
		if c != nil {
			r.httpClient = c
		}
	}
}

// WithClusterMetrics attaches observability instruments to the cluster and
// every node it creates.
func WithClusterMetrics(m *observe.Metrics) ClusterOption {
	return func(r *Rias) { r.metrics = m }
}

// New builds a cluster for the bot identified by clientID. send delivers
// outbound gateway payloads (voice joins); nodeConfigs describes the audio
// nodes. Nodes are registered immediately but not connected until [Rias.Start].
func New(clientID string, send SendFunc, nodeConfigs []NodeConfig, opts ...ClusterOption) *Rias {
	r := &Rias{
		clientID:     clientID,
		send:         send,
		strategy:     StrategyLoadBalanced,
		userAgent:    defaultUserAgent,
		searchSource: defaultSearchSource,
		httpClient:   http.DefaultClient,
		nodes:        make(map[string]*Node),
		players:      make(map[string]*Player),
	}
	for _, o := range opts {
		o(r)
	}
	for _, cfg := range nodeConfigs {
		r.AddNode(cfg)
	}
	return r
}

// AddNode registers one node. Registration order is the tie-break order for
// node selection. A node with a duplicate id replaces the previous entry but
// keeps its registry position. Returns nil on a shut-down cluster.
func (r *Rias) AddNode(cfg NodeConfig) *Node {
	r.mu.RLock()
	closed := r.closed
	r.mu.RUnlock()
	if closed {
		return nil
	}
	node := NewNode(cfg,
		WithUserAgent(r.userAgent),
		WithHTTPClient(r.httpClient),
		WithMetrics(r.metrics),
	)
	node.OnEvent(func(ev lavalink.EventMessage) {
		if p := r.Get(ev.GuildID); p != nil {
			p.handleEvent(ev)
		}
	})
	node.OnPlayerUpdate(func(pu lavalink.PlayerUpdateMessage) {
		if p := r.Get(pu.GuildID); p != nil {
			p.handlePlayerUpdate(pu.State)
		}
	})
	node.OnError(func(err error) {
		slog.Warn("rias: node error", "node", cfg.ID, "error", err)
	})

	r.mu.Lock()
	if _, exists := r.nodes[cfg.ID]; !exists {
		r.nodeOrder = append(r.nodeOrder, cfg.ID)
	}
	r.nodes[cfg.ID] = node
	r.mu.Unlock()
	return node
}

// Node returns the node with the given id, or nil.
func (r *Rias) Node(id string) *Node {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.nodes[id]
}

// Nodes returns all registered nodes in registry order.
func (r *Rias) Nodes() []*Node {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Node, 0, len(r.nodeOrder))
	for _, id := range r.nodeOrder {
		out = append(out, r.nodes[id])
	}
	return out
}

// readyNodes returns the eligible selection set in registry order.
func (r *Rias) readyNodes() []*Node {
	var out []*Node
	for _, n := range r.Nodes() {
		if n.IsReady() {
			out = append(out, n)
		}
	}
	return out
}

// Start opens the event stream of every registered node. Individual dial
// failures are logged; each failed node keeps retrying on its own backoff.
// Start succeeds as long as the cluster itself is usable.
func (r *Rias) Start(ctx context.Context) error {
	r.mu.RLock()
	closed := r.closed
	r.mu.RUnlock()
	if closed {
		return ErrClusterClosed
	}
	for _, n := range r.Nodes() {
		if err := n.Connect(ctx, r.clientID); err != nil {
			slog.Warn("rias: initial node connect failed", "node", n.ID(), "error", err)
		}
	}
	return nil
}

// BestNode selects a node for ad-hoc work (track loading, decode) using the
// cluster strategy. region is an optional affinity hint.
func (r *Rias) BestNode(region string) (*Node, error) {
	return selectNode(r.strategy, r.readyNodes(), region)
}

// Create returns the player for guildID, constructing one on a
// strategy-selected node if none exists. region is an optional hint for the
// regional strategy.
func (r *Rias) Create(guildID, region string) (*Player, error) {
	if err := validateGuildID(guildID); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrClusterClosed
	}
	if p, ok := r.players[guildID]; ok {
		return p, nil
	}

	var eligible []*Node
	for _, id := range r.nodeOrder {
		if n := r.nodes[id]; n.IsReady() {
			eligible = append(eligible, n)
		}
	}
	node, err := selectNode(r.strategy, eligible, region)
	if err != nil {
		return nil, err
	}

	p := newPlayer(guildID, node, r.metrics)
	p.OnVoiceUpdate(func(intent VoiceUpdateIntent) {
		payload := VoiceJoin{
			Op: 4,
			D: VoiceJoinData{
				GuildID:   intent.GuildID,
				ChannelID: intent.ChannelID,
				SelfMute:  intent.SelfMute,
				SelfDeaf:  intent.SelfDeaf,
			},
		}
		if err := r.send(intent.GuildID, payload); err != nil {
			slog.Error("rias: voice join send failed", "guild", intent.GuildID, "error", err)
		}
	})
	r.players[guildID] = p
	if r.metrics != nil {
		r.metrics.ActivePlayers.Add(context.Background(), 1)
	}
	slog.Info("rias: player created", "guild", guildID, "node", node.ID())
	return p, nil
}

// Get returns the player for guildID, or nil.
func (r *Rias) Get(guildID string) *Player {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.players[guildID]
}

// Destroy tears down and forgets the player for guildID. A missing player
// is a no-op.
func (r *Rias) Destroy(ctx context.Context, guildID string) {
	r.mu.Lock()
	p, ok := r.players[guildID]
	delete(r.players, guildID)
	r.mu.Unlock()
	if !ok {
		return
	}
	p.Destroy(ctx)
	if r.metrics != nil {
		r.metrics.ActivePlayers.Add(context.Background(), -1)
	}
}

// DestroyAll tears down every player.
func (r *Rias) DestroyAll(ctx context.Context) {
	r.mu.Lock()
	players := make([]*Player, 0, len(r.players))
	for _, p := range r.players {
		players = append(players, p)
	}
	r.players = make(map[string]*Player)
	r.mu.Unlock()

	for _, p := range players {
		p.Destroy(ctx)
		if r.metrics != nil {
			r.metrics.ActivePlayers.Add(context.Background(), -1)
		}
	}
}

// ─── Gateway packet demux ───

// HandleVoiceServerUpdate routes a VOICE_SERVER_UPDATE packet to its guild's
// player. Packets for guilds without a player are dropped.
func (r *Rias) HandleVoiceServerUpdate(guildID, token string, endpoint *string) {
	if p := r.Get(guildID); p != nil {
		p.handleVoiceServerUpdate(token, endpoint)
	}
}

// HandleVoiceStateUpdate routes a VOICE_STATE_UPDATE packet. Only the bot's
// own voice state is accepted; other users' updates are dropped.
func (r *Rias) HandleVoiceStateUpdate(guildID, userID, sessionID string, channelID *string) {
	if userID != r.clientID {
		return
	}
	if p := r.Get(guildID); p != nil {
		p.handleVoiceStateUpdate(sessionID, channelID)
	}
}

// ─── Track loading ───

// LoadTracks resolves an identifier on a strategy-selected node.
func (r *Rias) LoadTracks(ctx context.Context, identifier string) (*lavalink.LoadResult, error) {
	node, err := r.BestNode("")
	if err != nil {
		return nil, err
	}
	return node.LoadTracks(ctx, identifier)
}

// LoadSearch resolves a free-form query using the cluster's default search
// source.
func (r *Rias) LoadSearch(ctx context.Context, query string) (*lavalink.LoadResult, error) {
	node, err := r.BestNode("")
	if err != nil {
		return nil, err
	}
	return node.LoadSearch(ctx, query, r.searchSource)
}

// ─── Plugin fan-out ───

// GetInfo fetches node info from every ready node concurrently. Failures
// are logged and the node is omitted from the result; force bypasses the
// per-node cache.
func (r *Rias) GetInfo(ctx context.Context, force bool) map[string]*lavalink.Info {
	nodes := r.readyNodes()
	out := make(map[string]*lavalink.Info, len(nodes))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for _, n := range nodes {
		g.Go(func() error {
			var (
				info *lavalink.Info
				err  error
			)
			if force {
				info, err = n.refreshInfo(gctx)
			} else {
				info, err = n.Info(gctx)
			}
			if err != nil {
				slog.Warn("rias: node info fetch failed", "node", n.ID(), "error", err)
				return nil
			}
			mu.Lock()
			out[n.ID()] = info
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// GetAllPlugins returns each ready node's plugin set, keyed by node id.
func (r *Rias) GetAllPlugins(ctx context.Context, force bool) map[string][]lavalink.Plugin {
	infos := r.GetInfo(ctx, force)
	out := make(map[string][]lavalink.Plugin, len(infos))
	for id, info := range infos {
		out[id] = info.Plugins
	}
	return out
}

// GetUniquePlugins deduplicates plugins across the cluster by name; the
// first node (registry order) to report a plugin wins.
func (r *Rias) GetUniquePlugins(ctx context.Context, force bool) []lavalink.Plugin {
	byNode := r.GetAllPlugins(ctx, force)
	seen := make(map[string]bool)
	var out []lavalink.Plugin
	for _, n := range r.Nodes() {
		for _, p := range byNode[n.ID()] {
			if !seen[p.Name] {
				seen[p.Name] = true
				out = append(out, p)
			}
		}
	}
	return out
}

// HasPlugin reports whether any ready node carries the named plugin.
func (r *Rias) HasPlugin(name string) bool {
	for _, n := range r.readyNodes() {
		if n.HasPlugin(name) {
			return true
		}
	}
	return false
}

// GetNodesWithPlugin lists the ready nodes carrying the named plugin, in
// registry order.
func (r *Rias) GetNodesWithPlugin(name string) []*Node {
	var out []*Node
	for _, n := range r.readyNodes() {
		if n.HasPlugin(name) {
			out = append(out, n)
		}
	}
	return out
}

// PluginRequest performs a plugin route request, load-balancing across the
// nodes that carry the plugin.
func (r *Rias) PluginRequest(ctx context.Context, plugin, method, path string, reqBody, out any) error {
	carriers := r.GetNodesWithPlugin(plugin)
	if len(carriers) == 0 {
		return ErrPluginNotFound
	}
	node := minByKey(carriers, loadBalancedKey)
	return node.PluginRequest(ctx, plugin, method, path, reqBody, out)
}

// ─── Shutdown ───

// Shutdown destroys every player (bounded by a 30s budget) and closes every
// node socket. Idempotent; subsequent calls return immediately.
func (r *Rias) Shutdown() {
	r.shutdownOnce.Do(func() {
		r.mu.Lock()
		r.closed = true
		r.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		done := make(chan struct{})
		go func() {
			r.DestroyAll(ctx)
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			slog.Warn("rias: shutdown timed out waiting for player teardown")
		}

		for _, n := range r.Nodes() {
			if err := n.Disconnect(); err != nil {
				slog.Debug("rias: node disconnect during shutdown", "node", n.ID(), "error", err)
			}
		}
		slog.Info("rias: cluster shut down")
	})
}
