package rias

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/MrWong99/rias/internal/observe"
	"github.com/MrWong99/rias/pkg/lavalink"
)

// Defaults for the node connection lifecycle.
const (
	defaultReconnectDelay = 3 * time.Second
	defaultMaxReconnects  = 5
	defaultResumeTimeout  = 60 * time.Second
	maxReconnectDelay     = 30 * time.Second
	reconnectJitterMax    = time.Second

	defaultUserAgent = "Rias"

	// infoCacheTTL bounds how long a cached /v4/info response is served.
	infoCacheTTL = 300 * time.Second
)

// NodeState is the connection lifecycle state of a [Node].
type NodeState int

const (
	NodeDisconnected NodeState = iota
	NodeConnecting
	NodeConnected
	NodeReconnecting
)

// String implements fmt.Stringer.
func (s NodeState) String() string {
	switch s {
	case NodeDisconnected:
		return "disconnected"
	case NodeConnecting:
		return "connecting"
	case NodeConnected:
		return "connected"
	case NodeReconnecting:
		return "reconnecting"
	}
	return fmt.Sprintf("NodeState(%d)", int(s))
}

// NodeConfig identifies one audio node and tunes its session behaviour.
type NodeConfig struct {
	// ID is the unique name of this node within the cluster.
	ID string

	// Host and Port address both the event stream and the REST surface.
	Host string
	Port int

	// Password authenticates every request to the node.
	Password string

	// Secure selects wss/https transports.
	Secure bool

	// Region is an optional voice-region affinity hint (e.g. "us", "eu").
	Region string

	// Priority orders nodes under the priority selection strategy.
	// Lower wins. Defaults to 0.
	Priority int

	// ResumeKey, when set, arms session resumption: a reconnected socket
	// reclaims the previous session if it returns within ResumeTimeout.
	ResumeKey string

	// ResumeTimeout is how long the node keeps a resumable session alive.
	// Defaults to 60s.
	ResumeTimeout time.Duration

	// MaxReconnectAttempts caps automatic reconnection. Defaults to 5.
	MaxReconnectAttempts int

	// ReconnectDelay is the backoff base. Defaults to 3s.
	ReconnectDelay time.Duration
}

// withDefaults fills the zero-value knobs.
func (c NodeConfig) withDefaults() NodeConfig {
	if c.ResumeTimeout <= 0 {
		c.ResumeTimeout = defaultResumeTimeout
	}
	if c.MaxReconnectAttempts <= 0 {
		c.MaxReconnectAttempts = defaultMaxReconnects
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = defaultReconnectDelay
	}
	return c
}

// NodeReadyEvent is emitted when the node issues a session id.
type NodeReadyEvent struct {
	NodeID    string
	SessionID string
	Resumed   bool
}

// NodeDisconnectEvent is emitted when the event stream closes.
type NodeDisconnectEvent struct {
	NodeID string
	Code   int
	Reason string
}

// Node is one session to one audio node: a persistent event stream for
// inbound frames plus a REST client for commands. All mutable fields are
// guarded by a single mutex; the read loop and REST callers both go through
// it.
type Node struct {
	cfg        NodeConfig
	userAgent  string
	httpClient *http.Client
	metrics    *observe.Metrics

	// dial is swappable for tests.
	dial func(ctx context.Context, url string, opts *websocket.DialOptions) (*websocket.Conn, *http.Response, error)

	mu        sync.Mutex
	state     NodeState
	sessionID string
	attempts  int
	clientID  string
	conn      *websocket.Conn
	cancel    context.CancelFunc
	timer     *time.Timer
	closed    bool

	stats       *lavalink.Stats
	info        *lavalink.Info
	infoFetched time.Time
	plugins     map[string]lavalink.Plugin

	connectE      emitter[string]
	readyE        emitter[NodeReadyEvent]
	disconnectE   emitter[NodeDisconnectEvent]
	statsE        emitter[lavalink.Stats]
	eventE        emitter[lavalink.EventMessage]
	playerUpdateE emitter[lavalink.PlayerUpdateMessage]
	rawE          emitter[lavalink.Message]
	infoE         emitter[lavalink.Info]
	pluginE       emitter[lavalink.Plugin]
	errorE        emitter[error]
}

// NodeOption customises a [Node] beyond its [NodeConfig].
type NodeOption func(*Node)

// WithUserAgent overrides the Client-Name header sent to the node.
func WithUserAgent(ua string) NodeOption {
	return func(n *Node) {
		if ua != "" {
			n.userAgent = ua
		}
	}
}

// WithHTTPClient sets the shared HTTP client used for REST calls.
func WithHTTPClient(c *http.Client) NodeOption {
	return func(n *Node) {
		if c != nil {
			n.httpClient = c
		}
	}
}

// WithMetrics attaches observability instruments.
func WithMetrics(m *observe.Metrics) NodeOption {
	return func(n *Node) { n.metrics = m }
}

// NewNode creates a node session record. The socket is not opened until
// [Node.Connect].
func NewNode(cfg NodeConfig, opts ...NodeOption) *Node {
	n := &Node{
		cfg:        cfg.withDefaults(),
		userAgent:  defaultUserAgent,
		httpClient: http.DefaultClient,
		dial:       websocket.Dial,
		state:      NodeDisconnected,
		plugins:    make(map[string]lavalink.Plugin),
	}
	for _, o := range opts {
		o(n)
	}
	return n
}

// ID returns the node's configured identifier.
func (n *Node) ID() string { return n.cfg.ID }

// Config returns the node's configuration.
func (n *Node) Config() NodeConfig { return n.cfg }

// State returns the current lifecycle state.
func (n *Node) State() NodeState {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// SessionID returns the session id issued by the node, or "" before ready.
func (n *Node) SessionID() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sessionID
}

// IsReady reports whether the node can accept player commands: the socket
// is up and a session id has been issued.
func (n *Node) IsReady() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state == NodeConnected && n.sessionID != ""
}

// Stats returns the last stats frame received, or nil.
func (n *Node) Stats() *lavalink.Stats {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.stats
}

// Event registration. Handlers run synchronously on the node's read loop
// and must not block.

func (n *Node) OnConnect(fn func(nodeID string)) (remove func())            { return n.connectE.on(fn) }
func (n *Node) OnReady(fn func(NodeReadyEvent)) (remove func())             { return n.readyE.on(fn) }
func (n *Node) OnDisconnect(fn func(NodeDisconnectEvent)) (remove func())   { return n.disconnectE.on(fn) }
func (n *Node) OnStats(fn func(lavalink.Stats)) (remove func())             { return n.statsE.on(fn) }
func (n *Node) OnEvent(fn func(lavalink.EventMessage)) (remove func())      { return n.eventE.on(fn) }
func (n *Node) OnPlayerUpdate(fn func(lavalink.PlayerUpdateMessage)) (remove func()) {
	return n.playerUpdateE.on(fn)
}
func (n *Node) OnRaw(fn func(lavalink.Message)) (remove func())    { return n.rawE.on(fn) }
func (n *Node) OnInfoUpdate(fn func(lavalink.Info)) (remove func()) { return n.infoE.on(fn) }
func (n *Node) OnPluginLoaded(fn func(lavalink.Plugin)) (remove func()) {
	return n.pluginE.on(fn)
}
func (n *Node) OnError(fn func(error)) (remove func()) { return n.errorE.on(fn) }

// wsURL is the event stream endpoint.
func (n *Node) wsURL() string {
	scheme := "ws"
	if n.cfg.Secure {
		scheme = "wss"
	}
	return fmt.Sprintf("%s://%s:%d/v4/websocket", scheme, n.cfg.Host, n.cfg.Port)
}

// restURL joins a path onto the REST base.
func (n *Node) restURL(path string) string {
	scheme := "http"
	if n.cfg.Secure {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s:%d/v4%s", scheme, n.cfg.Host, n.cfg.Port, path)
}

// Connect opens the event stream, identifying as clientID (the bot's user
// id). It returns once the socket is open; callers that need the session id
// subscribe to [Node.OnReady]. Reconnection after unexpected closes is
// automatic.
func (n *Node) Connect(ctx context.Context, clientID string) error {
	n.mu.Lock()
	if n.state != NodeDisconnected {
		state := n.state
		n.mu.Unlock()
		return fmt.Errorf("node %q: connect called in state %s", n.cfg.ID, state)
	}
	n.state = NodeConnecting
	n.clientID = clientID
	n.closed = false
	n.mu.Unlock()

	return n.open(ctx)
}

// open dials the event stream and, on success, transitions to Connected and
// starts the read loop.
func (n *Node) open(ctx context.Context) error {
	n.mu.Lock()
	header := http.Header{}
	header.Set("Authorization", n.cfg.Password)
	header.Set("User-Id", n.clientID)
	header.Set("Client-Name", n.userAgent)
	if n.cfg.ResumeKey != "" && n.sessionID != "" {
		header.Set("Session-Id", n.sessionID)
	}
	url := n.wsURL()
	n.mu.Unlock()

	connID := uuid.NewString()
	slog.Debug("rias: opening node event stream", "node", n.cfg.ID, "url", url, "conn_id", connID)

	conn, resp, err := n.dial(ctx, url, &websocket.DialOptions{
		HTTPHeader: header,
		HTTPClient: n.httpClient,
	})
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		dialErr := fmt.Errorf("node %q: dial %s: %w", n.cfg.ID, url, err)
		n.errorE.emit(&NodeError{NodeID: n.cfg.ID, Err: dialErr})
		n.scheduleReconnect()
		return dialErr
	}

	readCtx, cancel := context.WithCancel(context.Background())

	n.mu.Lock()
	if n.closed {
		// Disconnect landed while the dial was in flight; drop the fresh
		// socket instead of resurrecting the session.
		n.mu.Unlock()
		cancel()
		_ = conn.Close(websocket.StatusNormalClosure, "client disconnect")
		return fmt.Errorf("node %q: disconnected while dialing", n.cfg.ID)
	}
	n.conn = conn
	n.cancel = cancel
	n.state = NodeConnected
	n.attempts = 0
	resuming := n.cfg.ResumeKey != ""
	n.mu.Unlock()

	if n.metrics != nil {
		n.metrics.NodeConnects.Add(readCtx, 1, observe.NodeAttr(n.cfg.ID))
	}

	if resuming {
		frame := lavalink.NewConfigureResuming(n.cfg.ResumeKey, int(n.cfg.ResumeTimeout.Seconds()))
		if err := wsWriteJSON(readCtx, conn, frame); err != nil {
			n.errorE.emit(&NodeError{NodeID: n.cfg.ID, Err: fmt.Errorf("configure resuming: %w", err)})
		}
	}

	// Plugin discovery is refreshed on every open; a failure here is
	// reported but does not tear the session down.
	go func() {
		if _, err := n.refreshInfo(readCtx); err != nil {
			n.errorE.emit(&NodeError{NodeID: n.cfg.ID, Err: fmt.Errorf("plugin discovery: %w", err)})
		}
	}()

	go n.readLoop(readCtx, conn, connID)

	slog.Info("rias: node event stream open", "node", n.cfg.ID, "conn_id", connID)
	n.connectE.emit(n.cfg.ID)
	return nil
}

// readLoop drains inbound frames until the socket closes, then drives the
// reconnect state machine.
func (n *Node) readLoop(ctx context.Context, conn *websocket.Conn, connID string) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			code := int(websocket.CloseStatus(err))
			reason := ""
			n.handleClose(code, reason, err, connID)
			return
		}
		n.handleFrame(ctx, data)
	}
}

// handleFrame dispatches one inbound frame by op.
func (n *Node) handleFrame(ctx context.Context, data []byte) {
	msg, err := lavalink.ParseMessage(data)
	if err != nil {
		n.errorE.emit(&NodeError{NodeID: n.cfg.ID, Err: err})
		return
	}
	if n.metrics != nil {
		n.metrics.NodeFrames.Add(ctx, 1, observe.NodeAttr(n.cfg.ID), observe.OpAttr(string(msg.Op)))
	}

	switch msg.Op {
	case lavalink.OpReady:
		var ready lavalink.ReadyMessage
		if err := jsonUnmarshal(msg.Raw, &ready); err != nil {
			n.errorE.emit(&NodeError{NodeID: n.cfg.ID, Err: err})
			return
		}
		n.mu.Lock()
		n.sessionID = ready.SessionID
		n.mu.Unlock()
		slog.Info("rias: node ready", "node", n.cfg.ID, "session", ready.SessionID, "resumed", ready.Resumed)
		n.readyE.emit(NodeReadyEvent{NodeID: n.cfg.ID, SessionID: ready.SessionID, Resumed: ready.Resumed})

	case lavalink.OpStats:
		var stats lavalink.Stats
		if err := jsonUnmarshal(msg.Raw, &stats); err != nil {
			n.errorE.emit(&NodeError{NodeID: n.cfg.ID, Err: err})
			return
		}
		n.mu.Lock()
		n.stats = &stats
		n.mu.Unlock()
		n.statsE.emit(stats)

	case lavalink.OpEvent:
		var ev lavalink.EventMessage
		if err := jsonUnmarshal(msg.Raw, &ev); err != nil {
			n.errorE.emit(&NodeError{NodeID: n.cfg.ID, Err: err})
			return
		}
		ev.Raw = msg.Raw
		n.eventE.emit(ev)

	case lavalink.OpPlayerUpdate:
		var pu lavalink.PlayerUpdateMessage
		if err := jsonUnmarshal(msg.Raw, &pu); err != nil {
			n.errorE.emit(&NodeError{NodeID: n.cfg.ID, Err: err})
			return
		}
		n.playerUpdateE.emit(pu)

	default:
		n.rawE.emit(msg)
	}
}

// handleClose runs the close transitions of the state machine. Code 1000 is
// an orderly close; anything else schedules a reconnect.
func (n *Node) handleClose(code int, reason string, cause error, connID string) {
	n.mu.Lock()
	if n.closed {
		// disconnect() already ran the teardown.
		n.mu.Unlock()
		return
	}
	n.conn = nil
	if n.cancel != nil {
		n.cancel()
		n.cancel = nil
	}

	orderly := code == int(websocket.StatusNormalClosure)
	if orderly {
		n.state = NodeDisconnected
		if n.cfg.ResumeKey == "" {
			n.sessionID = ""
		}
	}
	n.mu.Unlock()

	slog.Warn("rias: node event stream closed",
		"node", n.cfg.ID, "conn_id", connID, "code", code, "cause", cause)
	n.disconnectE.emit(NodeDisconnectEvent{NodeID: n.cfg.ID, Code: code, Reason: reason})

	if !orderly {
		n.scheduleReconnect()
	}
}

// scheduleReconnect arms the backoff timer for the next attempt, or latches
// into Disconnected once the attempt budget is spent.
func (n *Node) scheduleReconnect() {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.attempts++
	attempt := n.attempts
	if attempt > n.cfg.MaxReconnectAttempts {
		n.state = NodeDisconnected
		n.mu.Unlock()
		slog.Error("rias: node reconnect budget exhausted", "node", n.cfg.ID, "attempts", attempt-1)
		n.errorE.emit(&NodeError{NodeID: n.cfg.ID, Err: ErrMaxReconnects})
		return
	}
	n.state = NodeReconnecting
	delay := reconnectDelay(n.cfg.ReconnectDelay, attempt)
	n.timer = time.AfterFunc(delay, func() {
		n.mu.Lock()
		if n.closed || n.state != NodeReconnecting {
			n.mu.Unlock()
			return
		}
		n.state = NodeConnecting
		n.mu.Unlock()
		_ = n.open(context.Background())
	})
	n.mu.Unlock()

	if n.metrics != nil {
		n.metrics.NodeReconnects.Add(context.Background(), 1, observe.NodeAttr(n.cfg.ID))
	}
	slog.Info("rias: node reconnect scheduled",
		"node", n.cfg.ID, "attempt", attempt, "max", n.cfg.MaxReconnectAttempts, "delay", delay)
}

// reconnectDelay computes the exponential backoff with up to 1s of jitter,
// clamped at 30s: min(base·2^(attempt−1) + U(0,1s), 30s).
func reconnectDelay(base time.Duration, attempt int) time.Duration {
	d := base << (attempt - 1)
	if d <= 0 || d > maxReconnectDelay {
		return maxReconnectDelay
	}
	d += time.Duration(rand.Int64N(int64(reconnectJitterMax)))
	if d > maxReconnectDelay {
		d = maxReconnectDelay
	}
	return d
}

// Disconnect closes the event stream intentionally (code 1000), cancels any
// pending reconnect, and retains the session id only when a resume key is
// configured. Safe to call in any state.
func (n *Node) Disconnect() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	n.state = NodeDisconnected
	conn := n.conn
	n.conn = nil
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
	if n.cancel != nil {
		n.cancel()
		n.cancel = nil
	}
	if n.cfg.ResumeKey == "" {
		n.sessionID = ""
	}
	n.mu.Unlock()

	var err error
	if conn != nil {
		err = conn.Close(websocket.StatusNormalClosure, "client disconnect")
	}
	slog.Info("rias: node disconnected", "node", n.cfg.ID)
	n.disconnectE.emit(NodeDisconnectEvent{NodeID: n.cfg.ID, Code: int(websocket.StatusNormalClosure), Reason: "client disconnect"})
	return err
}

// wsWriteJSON marshals v and writes it as one text frame.
func wsWriteJSON(ctx context.Context, conn *websocket.Conn, v any) error {
	data, err := jsonMarshal(v)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}
