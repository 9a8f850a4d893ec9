package rias

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/rias/internal/observe"
	"github.com/MrWong99/rias/pkg/lavalink"
)

// REST call deadlines. Track resolution and plugin round-trips may hit
// upstream sources, so they get a longer budget.
const (
	restTimeout     = 5 * time.Second
	restLongTimeout = 10 * time.Second
)

func jsonMarshal(v any) ([]byte, error)      { return json.Marshal(v) }
func jsonUnmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// PlayerUpdateOpt sets one field of a player update request. Only the fields
// explicitly set are serialised; the node leaves every absent field
// untouched, so an empty option list is a no-op update.
type PlayerUpdateOpt func(body map[string]any)

// WithEncodedTrack starts playback of the given encoded track.
func WithEncodedTrack(encoded string) PlayerUpdateOpt {
	return func(body map[string]any) { body["encodedTrack"] = encoded }
}

// WithNullTrack stops the current track. Serialised as an explicit JSON
// null, which is distinct from omitting the field.
func WithNullTrack() PlayerUpdateOpt {
	return func(body map[string]any) { body["encodedTrack"] = nil }
}

// WithIdentifier asks the node to resolve and play an identifier directly.
func WithIdentifier(identifier string) PlayerUpdateOpt {
	return func(body map[string]any) { body["identifier"] = identifier }
}

// WithPosition seeks to the given position in milliseconds.
func WithPosition(ms int64) PlayerUpdateOpt {
	return func(body map[string]any) { body["position"] = ms }
}

// WithEndTime stops playback at the given track position in milliseconds.
func WithEndTime(ms int64) PlayerUpdateOpt {
	return func(body map[string]any) { body["endTime"] = ms }
}

// WithVolume sets the playback volume, 0-1000.
func WithVolume(volume int) PlayerUpdateOpt {
	return func(body map[string]any) { body["volume"] = volume }
}

// WithPaused pauses or resumes playback.
func WithPaused(paused bool) PlayerUpdateOpt {
	return func(body map[string]any) { body["paused"] = paused }
}

// WithFilters replaces the player's filter chain.
func WithFilters(f lavalink.Filters) PlayerUpdateOpt {
	return func(body map[string]any) { body["filters"] = f }
}

// WithVoice submits Discord voice credentials for the player's connection.
func WithVoice(v lavalink.VoiceState) PlayerUpdateOpt {
	return func(body map[string]any) { body["voice"] = v }
}

// requireReady gates player-facing REST calls on a live session.
func (n *Node) requireReady() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.state != NodeConnected {
		return fmt.Errorf("node %q: %w", n.cfg.ID, ErrNodeNotConnected)
	}
	if n.sessionID == "" {
		return fmt.Errorf("node %q: %w", n.cfg.ID, ErrNodeNotReady)
	}
	return nil
}

// doJSON performs one REST round-trip: span, timeout, auth header, error
// body decoding, and optional JSON decoding of the response into out.
func (n *Node) doJSON(ctx context.Context, op, method, rawURL string, reqBody any, timeout time.Duration, out any) error {
	ctx, span := observe.StartSpan(ctx, "rias.rest."+op, trace.WithAttributes(
		attribute.String("node", n.cfg.ID),
		attribute.String("http.method", method),
	))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader
	if reqBody != nil {
		data, err := jsonMarshal(reqBody)
		if err != nil {
			return fmt.Errorf("marshal %s request: %w", op, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return fmt.Errorf("build %s request: %w", op, err)
	}
	req.Header.Set("Authorization", n.cfg.Password)
	req.Header.Set("User-Agent", n.userAgent)
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := n.httpClient.Do(req)
	if err != nil {
		n.recordRest(ctx, op, "error", start)
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("node %q: %s: %w", n.cfg.ID, op, ErrTimeout)
		}
		return fmt.Errorf("node %q: %s: %w", n.cfg.ID, op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		n.recordRest(ctx, op, strconv.Itoa(resp.StatusCode), start)
		return n.restError(resp)
	}
	n.recordRest(ctx, op, "ok", start)

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", op, err)
	}
	return nil
}

func (n *Node) recordRest(ctx context.Context, op, status string, start time.Time) {
	if n.metrics == nil {
		return
	}
	n.metrics.RecordRestCall(ctx, n.cfg.ID, op, status, time.Since(start).Seconds())
}

// restError converts a non-2xx response into a *RestError, preferring the
// node's JSON error message over the status text.
func (n *Node) restError(resp *http.Response) error {
	msg := http.StatusText(resp.StatusCode)
	data, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err == nil && len(data) > 0 {
		var body struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(data, &body) == nil && body.Message != "" {
			msg = body.Message
		}
	}
	return &RestError{Status: resp.StatusCode, Message: msg}
}

// UpdatePlayer applies a partial player update for guildID. With noReplace
// set, a track submitted while another is playing is ignored by the node
// instead of replacing it.
func (n *Node) UpdatePlayer(ctx context.Context, guildID string, noReplace bool, opts ...PlayerUpdateOpt) error {
	if err := n.requireReady(); err != nil {
		return err
	}
	body := make(map[string]any)
	for _, o := range opts {
		o(body)
	}
	u := n.restURL("/sessions/" + n.SessionID() + "/players/" + guildID)
	if noReplace {
		u += "?noReplace=true"
	}
	return n.doJSON(ctx, "updatePlayer", http.MethodPatch, u, body, restTimeout, nil)
}

// DestroyPlayer removes the node-side player for guildID. A 404 means the
// player is already gone and counts as success.
func (n *Node) DestroyPlayer(ctx context.Context, guildID string) error {
	if err := n.requireReady(); err != nil {
		return err
	}
	u := n.restURL("/sessions/" + n.SessionID() + "/players/" + guildID)
	err := n.doJSON(ctx, "destroyPlayer", http.MethodDelete, u, nil, restTimeout, nil)
	var re *RestError
	if errors.As(err, &re) && re.Status == http.StatusNotFound {
		return nil
	}
	return err
}

// LoadTracks resolves an identifier (URL or prefixed search query) into a
// load result. The identifier is passed through verbatim; see [Node.LoadSearch]
// for query normalisation.
func (n *Node) LoadTracks(ctx context.Context, identifier string) (*lavalink.LoadResult, error) {
	if err := n.requireReady(); err != nil {
		return nil, err
	}
	u := n.restURL("/loadtracks?identifier=" + url.QueryEscape(identifier))
	var result lavalink.LoadResult
	if err := n.doJSON(ctx, "loadTracks", http.MethodGet, u, nil, restLongTimeout, &result); err != nil {
		return nil, err
	}
	if n.metrics != nil {
		n.metrics.TracksLoaded.Add(ctx, 1, observe.OpAttr(string(result.LoadType)))
	}
	if result.LoadType == lavalink.LoadTypeError {
		if exc, ok := result.Data.(lavalink.Exception); ok {
			return &result, fmt.Errorf("%w: %w", ErrTrackLoadFailed, exc)
		}
		return &result, ErrTrackLoadFailed
	}
	return &result, nil
}

// LoadSearch resolves a free-form query: URLs pass through untouched, bare
// text gets the given search source prefix (e.g. "ytsearch"). An empty
// source falls back to "ytsearch".
func (n *Node) LoadSearch(ctx context.Context, query, source string) (*lavalink.LoadResult, error) {
	if source == "" {
		source = "ytsearch"
	}
	return n.LoadTracks(ctx, normalizeQuery(query, source))
}

// DecodeTrack expands one encoded track string into its full track record.
func (n *Node) DecodeTrack(ctx context.Context, encoded string) (*lavalink.Track, error) {
	if err := n.requireReady(); err != nil {
		return nil, err
	}
	u := n.restURL("/decodetrack?encodedTrack=" + url.QueryEscape(encoded))
	var track lavalink.Track
	if err := n.doJSON(ctx, "decodeTrack", http.MethodGet, u, nil, restTimeout, &track); err != nil {
		return nil, err
	}
	return &track, nil
}

// DecodeTracks expands a batch of encoded track strings.
func (n *Node) DecodeTracks(ctx context.Context, encoded []string) ([]lavalink.Track, error) {
	if err := n.requireReady(); err != nil {
		return nil, err
	}
	var tracks []lavalink.Track
	u := n.restURL("/decodetracks")
	if err := n.doJSON(ctx, "decodeTracks", http.MethodPost, u, encoded, restLongTimeout, &tracks); err != nil {
		return nil, err
	}
	return tracks, nil
}

// Info returns the node's version and plugin information, served from a
// cache refreshed at most every 300s. The first call after a (re)connect is
// warmed by the connection handshake.
func (n *Node) Info(ctx context.Context) (*lavalink.Info, error) {
	if err := n.requireReady(); err != nil {
		return nil, err
	}
	n.mu.Lock()
	if n.info != nil && time.Since(n.infoFetched) < infoCacheTTL {
		info := n.info
		n.mu.Unlock()
		return info, nil
	}
	n.mu.Unlock()
	return n.refreshInfo(ctx)
}

// refreshInfo fetches /v4/info unconditionally, rebuilds the plugin index,
// and notifies listeners. Newly observed plugins are announced individually.
// Not gated on readiness: the connection handshake calls it before the ready
// frame arrives.
func (n *Node) refreshInfo(ctx context.Context) (*lavalink.Info, error) {
	var info lavalink.Info
	if err := n.doJSON(ctx, "info", http.MethodGet, n.restURL("/info"), nil, restTimeout, &info); err != nil {
		return nil, err
	}

	n.mu.Lock()
	known := n.plugins
	plugins := make(map[string]lavalink.Plugin, len(info.Plugins))
	var loaded []lavalink.Plugin
	for _, p := range info.Plugins {
		plugins[p.Name] = p
		if _, ok := known[p.Name]; !ok {
			loaded = append(loaded, p)
		}
	}
	n.plugins = plugins
	n.info = &info
	n.infoFetched = time.Now()
	n.mu.Unlock()

	n.infoE.emit(info)
	for _, p := range loaded {
		n.pluginE.emit(p)
	}
	return &info, nil
}

// Plugins returns the node's discovered plugin set.
func (n *Node) Plugins() []lavalink.Plugin {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]lavalink.Plugin, 0, len(n.plugins))
	for _, p := range n.plugins {
		out = append(out, p)
	}
	return out
}

// HasPlugin reports whether the node carries the named plugin.
func (n *Node) HasPlugin(name string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	_, ok := n.plugins[name]
	return ok
}

// ensurePlugin verifies the named plugin against the discovered plugin set.
// An empty set is refreshed from /v4/info first, since background discovery
// is best-effort and may not have run yet.
func (n *Node) ensurePlugin(ctx context.Context, name string) error {
	n.mu.Lock()
	empty := len(n.plugins) == 0
	n.mu.Unlock()
	if empty {
		if _, err := n.refreshInfo(ctx); err != nil {
			return fmt.Errorf("node %q: plugin %q: %w", n.cfg.ID, name, err)
		}
	}
	if !n.HasPlugin(name) {
		return fmt.Errorf("node %q: plugin %q: %w", n.cfg.ID, name, ErrPluginNotFound)
	}
	return nil
}

// PluginRequest performs an arbitrary request against a plugin-provided
// route on this node. The plugin must be present in the node's plugin set,
// which is fetched on demand when discovery has not filled it yet. Responses
// with a JSON content type are decoded into out when out is non-nil; other
// content types leave out untouched.
func (n *Node) PluginRequest(ctx context.Context, plugin, method, path string, reqBody, out any) error {
	if err := n.requireReady(); err != nil {
		return err
	}
	if err := n.ensurePlugin(ctx, plugin); err != nil {
		return err
	}

	ctx, span := observe.StartSpan(ctx, "rias.rest.pluginRequest", trace.WithAttributes(
		attribute.String("node", n.cfg.ID),
		attribute.String("plugin", plugin),
	))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, restLongTimeout)
	defer cancel()

	var body io.Reader
	if reqBody != nil {
		data, err := jsonMarshal(reqBody)
		if err != nil {
			return fmt.Errorf("marshal plugin request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	scheme := "http"
	if n.cfg.Secure {
		scheme = "https"
	}
	u := fmt.Sprintf("%s://%s:%d%s", scheme, n.cfg.Host, n.cfg.Port, path)

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("build plugin request: %w", err)
	}
	req.Header.Set("Authorization", n.cfg.Password)
	req.Header.Set("User-Agent", n.userAgent)
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := n.httpClient.Do(req)
	if err != nil {
		n.recordRest(ctx, "pluginRequest", "error", start)
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("node %q: plugin %q: %w", n.cfg.ID, plugin, ErrTimeout)
		}
		return fmt.Errorf("node %q: plugin %q: %w", n.cfg.ID, plugin, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		n.recordRest(ctx, "pluginRequest", strconv.Itoa(resp.StatusCode), start)
		return n.restError(resp)
	}
	n.recordRest(ctx, "pluginRequest", "ok", start)

	if out == nil {
		return nil
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !isJSONContentType(ct) {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode plugin response: %w", err)
	}
	return nil
}

func isJSONContentType(ct string) bool {
	for i := 0; i < len(ct); i++ {
		if ct[i] == ';' {
			ct = ct[:i]
			break
		}
	}
	return ct == "application/json" || ct == "text/json"
}
