package rias

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/MrWong99/rias/pkg/lavalink"
)

// ── Fake node ─────────────────────────────────────────────────────────────────

// restCall records one REST request the fake node served.
type restCall struct {
	Method string
	Path   string
	Query  url.Values
	Body   string
}

// fakeNode is an in-process audio node: it serves /v4/websocket upgrades and
// records every REST call. Handlers for specific REST paths can be overridden
// per test.
type fakeNode struct {
	t   *testing.T
	srv *httptest.Server

	mu        sync.Mutex
	restCalls []restCall
	wsHeaders []http.Header
	conns     chan *websocket.Conn

	sessionID string
	password  string

	// overrides maps "METHOD /path" to a custom handler.
	overrides map[string]http.HandlerFunc

	// infoBody is served for GET /v4/info.
	infoBody string
}

func newFakeNode(t *testing.T) *fakeNode {
	t.Helper()
	f := &fakeNode{
		t:         t,
		conns:     make(chan *websocket.Conn, 4),
		sessionID: "sess-1",
		password:  "hunter2",
		overrides: make(map[string]http.HandlerFunc),
		infoBody:  `{"version":{"semver":"4.0.0","major":4,"minor":0,"patch":0},"buildTime":0,"jvm":"21","lavaplayer":"2.0","sourceManagers":["youtube"],"filters":["volume"],"plugins":[]}`,
	}
	f.srv = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeNode) handle(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/v4/websocket" {
		if r.Header.Get("Authorization") != f.password {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		f.mu.Lock()
		f.wsHeaders = append(f.wsHeaders, r.Header.Clone())
		f.mu.Unlock()
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
		if err != nil {
			return
		}
		ready, _ := json.Marshal(map[string]any{
			"op":        "ready",
			"resumed":   r.Header.Get("Session-Id") == f.sessionID && f.sessionID != "",
			"sessionId": f.sessionID,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		_ = conn.Write(ctx, websocket.MessageText, ready)
		cancel()
		f.conns <- conn
		return
	}

	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.restCalls = append(f.restCalls, restCall{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.Query(),
		Body:   string(body),
	})
	f.mu.Unlock()

	if h, ok := f.overrides[r.Method+" "+r.URL.Path]; ok {
		h(w, r)
		return
	}
	switch {
	case r.URL.Path == "/v4/info":
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(f.infoBody))
	case r.Method == http.MethodDelete:
		w.WriteHeader(http.StatusNoContent)
	default:
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}
}

// calls returns a snapshot of the REST calls that hit paths under /v4,
// excluding /v4/info (plugin discovery fires in the background).
func (f *fakeNode) calls() []restCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []restCall
	for _, c := range f.restCalls {
		if c.Path == "/v4/info" {
			continue
		}
		out = append(out, c)
	}
	return out
}

// lastWSHeader returns the headers of the most recent websocket upgrade.
func (f *fakeNode) lastWSHeader() http.Header {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.wsHeaders) == 0 {
		return nil
	}
	return f.wsHeaders[len(f.wsHeaders)-1]
}

// infoCalls counts how many times GET /v4/info was served.
func (f *fakeNode) infoCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.restCalls {
		if c.Path == "/v4/info" {
			n++
		}
	}
	return n
}

// nodeConfig builds a NodeConfig pointing at the fake node.
func (f *fakeNode) nodeConfig(id string) NodeConfig {
	f.t.Helper()
	u, err := url.Parse(f.srv.URL)
	if err != nil {
		f.t.Fatalf("parse fake node url: %v", err)
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		f.t.Fatalf("parse fake node port: %v", err)
	}
	return NodeConfig{
		ID:             id,
		Host:           u.Hostname(),
		Port:           port,
		Password:       f.password,
		ReconnectDelay: 20 * time.Millisecond,
	}
}

// readyNode returns a Node wired to the fake server that believes it is
// connected and ready, without opening a socket. REST calls work against the
// fake server directly.
func (f *fakeNode) readyNode(id string) *Node {
	n := NewNode(f.nodeConfig(id))
	n.mu.Lock()
	n.state = NodeConnected
	n.sessionID = f.sessionID
	n.mu.Unlock()
	return n
}

// waitFor polls cond until it returns true or the deadline passes.
func waitFor(t *testing.T, d time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

// track builds a test track.
func track(id, title, author string) *lavalink.Track {
	return &lavalink.Track{
		Encoded: "enc-" + id,
		Info: lavalink.TrackInfo{
			Identifier: id,
			Title:      title,
			Author:     author,
			Length:     180_000,
			IsSeekable: true,
			SourceName: "youtube",
		},
	}
}
