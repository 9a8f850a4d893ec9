package rias

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/MrWong99/rias/internal/observe"
	"github.com/MrWong99/rias/pkg/lavalink"
)

// VoiceUpdateIntent asks the chat-platform gateway to move the bot in or out
// of a voice channel. ChannelID nil means leave.
type VoiceUpdateIntent struct {
	GuildID   string
	ChannelID *string
	SelfMute  bool
	SelfDeaf  bool
}

// QueueChange describes one mutation of a player's queue for listeners.
type QueueChange struct {
	GuildID string
	Tracks  []*lavalink.Track
}

// voiceServer is the pending half of the handshake pushed by
// VOICE_SERVER_UPDATE. Endpoint stays nil during region migration.
type voiceServer struct {
	token    string
	endpoint *string
}

// Player is the per-guild playback controller. It is pinned to the node it
// was created on and never migrates; if that node drops, operations fail
// until the node is ready again (a resumed session keeps addressing the same
// node-side player).
type Player struct {
	guildID string
	node    *Node
	metrics *observe.Metrics

	queue *Queue

	mu           sync.Mutex
	destroyed    bool
	autoplay     bool
	track        *lavalink.Track
	playing      bool
	paused       bool
	connected    bool
	volume       int
	position     int64
	ping         int64
	voiceChannel string
	filters      *lavalink.Filters

	pendingServer  *voiceServer
	pendingSession string // voice_state_update session id
	selfMute       bool
	selfDeaf       bool

	trackStartE     emitter[lavalink.TrackStartEvent]
	trackEndE       emitter[lavalink.TrackEndEvent]
	trackExceptionE emitter[lavalink.TrackExceptionEvent]
	trackStuckE     emitter[lavalink.TrackStuckEvent]
	wsClosedE       emitter[lavalink.WebSocketClosedEvent]
	playerUpdateE   emitter[lavalink.PlayerState]
	queueEndE       emitter[string]
	queueAddE       emitter[QueueChange]
	queueRemoveE    emitter[QueueChange]
	queueClearE     emitter[string]
	queueShuffleE   emitter[string]
	voiceUpdateE    emitter[VoiceUpdateIntent]
	destroyE        emitter[string]
	errorE          emitter[error]
}

// newPlayer constructs a player pinned to node. Autoplay defaults on.
func newPlayer(guildID string, node *Node, metrics *observe.Metrics) *Player {
	return &Player{
		guildID:  guildID,
		node:     node,
		metrics:  metrics,
		queue:    NewQueue(),
		autoplay: true,
		volume:   100,
		selfDeaf: true,
	}
}

// GuildID returns the guild this player serves.
func (p *Player) GuildID() string { return p.guildID }

// Node returns the node this player is pinned to.
func (p *Player) Node() *Node { return p.node }

// Queue returns the player's queue.
func (p *Player) Queue() *Queue { return p.queue }

// Track returns the currently loaded track, or nil.
func (p *Player) Track() *lavalink.Track {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.track
}

// Playing reports whether the node is pushing audio for this guild.
func (p *Player) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing && !p.paused
}

// Paused reports the local pause flag.
func (p *Player) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

// Connected reports whether the node's voice link for this guild is up.
func (p *Player) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

// Volume returns the local volume, 0-1000.
func (p *Player) Volume() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

// Position returns the last reported playback position in milliseconds.
func (p *Player) Position() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.position
}

// Ping returns the node↔voice-gateway round trip in ms, or -1.
func (p *Player) Ping() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ping
}

// VoiceChannel returns the requested voice channel id, or "".
func (p *Player) VoiceChannel() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.voiceChannel
}

// Filters returns the last filter chain submitted, or nil.
func (p *Player) Filters() *lavalink.Filters {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.filters
}

// SetAutoplay toggles automatic queue advance on track end.
func (p *Player) SetAutoplay(on bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.autoplay = on
}

// Event registration.

func (p *Player) OnTrackStart(fn func(lavalink.TrackStartEvent)) (remove func()) {
	return p.trackStartE.on(fn)
}
func (p *Player) OnTrackEnd(fn func(lavalink.TrackEndEvent)) (remove func()) {
	return p.trackEndE.on(fn)
}
func (p *Player) OnTrackException(fn func(lavalink.TrackExceptionEvent)) (remove func()) {
	return p.trackExceptionE.on(fn)
}
func (p *Player) OnTrackStuck(fn func(lavalink.TrackStuckEvent)) (remove func()) {
	return p.trackStuckE.on(fn)
}
func (p *Player) OnWebSocketClosed(fn func(lavalink.WebSocketClosedEvent)) (remove func()) {
	return p.wsClosedE.on(fn)
}
func (p *Player) OnPlayerUpdate(fn func(lavalink.PlayerState)) (remove func()) {
	return p.playerUpdateE.on(fn)
}
func (p *Player) OnQueueEnd(fn func(guildID string)) (remove func())   { return p.queueEndE.on(fn) }
func (p *Player) OnQueueAdd(fn func(QueueChange)) (remove func())      { return p.queueAddE.on(fn) }
func (p *Player) OnQueueRemove(fn func(QueueChange)) (remove func())   { return p.queueRemoveE.on(fn) }
func (p *Player) OnQueueClear(fn func(guildID string)) (remove func()) { return p.queueClearE.on(fn) }
func (p *Player) OnQueueShuffle(fn func(guildID string)) (remove func()) {
	return p.queueShuffleE.on(fn)
}
func (p *Player) OnVoiceUpdate(fn func(VoiceUpdateIntent)) (remove func()) {
	return p.voiceUpdateE.on(fn)
}
func (p *Player) OnDestroy(fn func(guildID string)) (remove func()) { return p.destroyE.on(fn) }
func (p *Player) OnError(fn func(error)) (remove func())            { return p.errorE.on(fn) }

func (p *Player) checkAlive() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.destroyed {
		return ErrPlayerDestroyed
	}
	return nil
}

// ─── Voice handshake ───

// ConnectOption tunes the outbound voice-join request.
type ConnectOption func(*VoiceUpdateIntent)

// WithSelfMute joins muted.
func WithSelfMute(mute bool) ConnectOption {
	return func(v *VoiceUpdateIntent) { v.SelfMute = mute }
}

// WithSelfDeaf controls deafening; joining deafened is the default.
func WithSelfDeaf(deaf bool) ConnectOption {
	return func(v *VoiceUpdateIntent) { v.SelfDeaf = deaf }
}

// Connect asks the chat platform to join the given voice channel. It does
// not block on the handshake: the node reports readiness through the voice
// credentials relayed by the cluster.
func (p *Player) Connect(channelID string, opts ...ConnectOption) error {
	if err := p.checkAlive(); err != nil {
		return err
	}
	if err := validateChannelID(channelID); err != nil {
		return err
	}

	intent := VoiceUpdateIntent{
		GuildID:   p.guildID,
		ChannelID: &channelID,
		SelfDeaf:  true,
	}
	for _, o := range opts {
		o(&intent)
	}

	p.mu.Lock()
	p.voiceChannel = channelID
	p.selfMute = intent.SelfMute
	p.selfDeaf = intent.SelfDeaf
	p.mu.Unlock()

	p.voiceUpdateE.emit(intent)
	return nil
}

// DisconnectVoice asks the chat platform to leave voice. Local voice state
// clears when the resulting null-channel voice_state_update arrives.
func (p *Player) DisconnectVoice() error {
	if err := p.checkAlive(); err != nil {
		return err
	}
	p.mu.Lock()
	mute, deaf := p.selfMute, p.selfDeaf
	p.mu.Unlock()
	p.voiceUpdateE.emit(VoiceUpdateIntent{GuildID: p.guildID, SelfMute: mute, SelfDeaf: deaf})
	return nil
}

// handleVoiceServerUpdate stores the server half of the handshake. Endpoint
// may be nil during a region migration; the REST submission waits for a
// non-nil endpoint.
func (p *Player) handleVoiceServerUpdate(token string, endpoint *string) {
	p.mu.Lock()
	p.pendingServer = &voiceServer{token: token, endpoint: endpoint}
	p.mu.Unlock()
	p.maybeSubmitVoice()
}

// handleVoiceStateUpdate stores the state half. A nil channel id means the
// bot left voice: local state clears without any REST traffic.
func (p *Player) handleVoiceStateUpdate(sessionID string, channelID *string) {
	p.mu.Lock()
	if channelID == nil {
		p.voiceChannel = ""
		p.connected = false
		p.pendingServer = nil
		p.pendingSession = ""
		p.mu.Unlock()
		return
	}
	p.voiceChannel = *channelID
	p.pendingSession = sessionID
	p.mu.Unlock()
	p.maybeSubmitVoice()
}

// maybeSubmitVoice forwards the credential triple to the node once both
// handshake halves are present and the endpoint is known.
func (p *Player) maybeSubmitVoice() {
	p.mu.Lock()
	if p.destroyed || p.pendingServer == nil || p.pendingSession == "" || p.pendingServer.endpoint == nil {
		p.mu.Unlock()
		return
	}
	voice := lavalink.VoiceState{
		Token:     p.pendingServer.token,
		Endpoint:  *p.pendingServer.endpoint,
		SessionID: p.pendingSession,
	}
	p.mu.Unlock()

	if err := p.node.UpdatePlayer(context.Background(), p.guildID, false, WithVoice(voice)); err != nil {
		slog.Error("rias: voice credential submission failed", "guild", p.guildID, "node", p.node.ID(), "error", err)
		p.errorE.emit(fmt.Errorf("guild %s: submit voice: %w", p.guildID, err))
		return
	}
	p.mu.Lock()
	p.connected = true
	p.mu.Unlock()
	slog.Debug("rias: voice handshake complete", "guild", p.guildID, "node", p.node.ID())
}

// ─── Playback ───

// playRequest collects the optional fields of a play call.
type playRequest struct {
	position  *int64
	endTime   *int64
	volume    *int
	paused    *bool
	noReplace bool
}

// PlayOpt tunes one play call.
type PlayOpt func(*playRequest)

// PlayAt starts playback at the given position in milliseconds.
func PlayAt(ms int64) PlayOpt {
	return func(r *playRequest) { r.position = &ms }
}

// PlayEndTime stops the track at the given position in milliseconds.
func PlayEndTime(ms int64) PlayOpt {
	return func(r *playRequest) { r.endTime = &ms }
}

// PlayVolume sets the volume together with the track, 0-1000.
func PlayVolume(v int) PlayOpt {
	return func(r *playRequest) { r.volume = &v }
}

// PlayPaused loads the track paused.
func PlayPaused(paused bool) PlayOpt {
	return func(r *playRequest) { r.paused = &paused }
}

// PlayNoReplace makes the call a no-op if a track is already playing.
func PlayNoReplace() PlayOpt {
	return func(r *playRequest) { r.noReplace = true }
}

// Play starts the given track on the node.
func (p *Player) Play(ctx context.Context, track *lavalink.Track, opts ...PlayOpt) error {
	if track == nil {
		return ErrNoTrackPlaying
	}
	return p.play(ctx, track.Encoded, track, opts...)
}

// PlayEncoded starts playback from an encoded track string.
func (p *Player) PlayEncoded(ctx context.Context, encoded string, opts ...PlayOpt) error {
	return p.play(ctx, encoded, nil, opts...)
}

func (p *Player) play(ctx context.Context, encoded string, track *lavalink.Track, opts ...PlayOpt) error {
	if err := p.checkAlive(); err != nil {
		return err
	}
	var req playRequest
	for _, o := range opts {
		o(&req)
	}
	if req.volume != nil {
		if err := validateVolume(*req.volume); err != nil {
			return err
		}
	}
	if req.position != nil {
		if err := validatePosition(*req.position); err != nil {
			return err
		}
	}
	if req.endTime != nil {
		if err := validatePosition(*req.endTime); err != nil {
			return err
		}
	}

	updates := []PlayerUpdateOpt{WithEncodedTrack(encoded)}
	if req.position != nil {
		updates = append(updates, WithPosition(*req.position))
	}
	if req.endTime != nil {
		updates = append(updates, WithEndTime(*req.endTime))
	}
	if req.volume != nil {
		updates = append(updates, WithVolume(*req.volume))
	}
	if req.paused != nil {
		updates = append(updates, WithPaused(*req.paused))
	}

	if err := p.node.UpdatePlayer(ctx, p.guildID, req.noReplace, updates...); err != nil {
		p.errorE.emit(fmt.Errorf("guild %s: play: %w", p.guildID, err))
		return err
	}

	p.mu.Lock()
	if track != nil {
		p.track = track
	}
	p.playing = true
	if req.volume != nil {
		p.volume = *req.volume
	}
	if req.paused != nil {
		p.paused = *req.paused
	} else {
		p.paused = false
	}
	p.mu.Unlock()
	return nil
}

// Stop clears the node-side track without touching the queue.
func (p *Player) Stop(ctx context.Context) error {
	if err := p.checkAlive(); err != nil {
		return err
	}
	if err := p.node.UpdatePlayer(ctx, p.guildID, false, WithNullTrack()); err != nil {
		p.errorE.emit(fmt.Errorf("guild %s: stop: %w", p.guildID, err))
		return err
	}
	p.mu.Lock()
	p.track = nil
	p.playing = false
	p.mu.Unlock()
	return nil
}

// Pause sets the pause state.
func (p *Player) Pause(ctx context.Context, paused bool) error {
	if err := p.checkAlive(); err != nil {
		return err
	}
	if err := p.node.UpdatePlayer(ctx, p.guildID, false, WithPaused(paused)); err != nil {
		p.errorE.emit(fmt.Errorf("guild %s: pause: %w", p.guildID, err))
		return err
	}
	p.mu.Lock()
	p.paused = paused
	p.mu.Unlock()
	return nil
}

// Resume is Pause(false).
func (p *Player) Resume(ctx context.Context) error {
	return p.Pause(ctx, false)
}

// Seek moves the playback position. The current track must be seekable.
func (p *Player) Seek(ctx context.Context, positionMs int64) error {
	if err := p.checkAlive(); err != nil {
		return err
	}
	if err := validatePosition(positionMs); err != nil {
		return err
	}
	p.mu.Lock()
	track := p.track
	p.mu.Unlock()
	if track == nil {
		return ErrNoTrackPlaying
	}
	if !track.Info.IsSeekable {
		return ErrNotSeekable
	}
	if err := p.node.UpdatePlayer(ctx, p.guildID, false, WithPosition(positionMs)); err != nil {
		p.errorE.emit(fmt.Errorf("guild %s: seek: %w", p.guildID, err))
		return err
	}
	p.mu.Lock()
	p.position = positionMs
	p.mu.Unlock()
	return nil
}

// SetVolume sets the playback volume, 0-1000.
func (p *Player) SetVolume(ctx context.Context, volume int) error {
	if err := p.checkAlive(); err != nil {
		return err
	}
	if err := validateVolume(volume); err != nil {
		return err
	}
	if err := p.node.UpdatePlayer(ctx, p.guildID, false, WithVolume(volume)); err != nil {
		p.errorE.emit(fmt.Errorf("guild %s: set volume: %w", p.guildID, err))
		return err
	}
	p.mu.Lock()
	p.volume = volume
	p.mu.Unlock()
	return nil
}

// SetFilters replaces the player's filter chain. Out-of-range equalizer or
// timescale values are rejected before any request is made.
func (p *Player) SetFilters(ctx context.Context, f lavalink.Filters) error {
	if err := p.checkAlive(); err != nil {
		return err
	}
	if err := validateFilters(f); err != nil {
		return err
	}
	if err := p.node.UpdatePlayer(ctx, p.guildID, false, WithFilters(f)); err != nil {
		p.errorE.emit(fmt.Errorf("guild %s: set filters: %w", p.guildID, err))
		return err
	}
	p.mu.Lock()
	p.filters = &f
	p.mu.Unlock()
	return nil
}

// ClearFilters resets the filter chain to the empty record.
func (p *Player) ClearFilters(ctx context.Context) error {
	return p.SetFilters(ctx, lavalink.Filters{})
}

// ─── Queue delegation ───

// AddTrack appends one track and announces the change.
func (p *Player) AddTrack(track *lavalink.Track) {
	p.queue.Add(track)
	p.queueAddE.emit(QueueChange{GuildID: p.guildID, Tracks: []*lavalink.Track{track}})
}

// AddTracks appends several tracks and announces the change once.
func (p *Player) AddTracks(tracks ...*lavalink.Track) {
	p.queue.AddMany(tracks)
	p.queueAddE.emit(QueueChange{GuildID: p.guildID, Tracks: tracks})
}

// RemoveTrack removes the track at index i, announcing it when present.
func (p *Player) RemoveTrack(i int) (*lavalink.Track, error) {
	t, err := p.queue.Remove(i)
	if err != nil {
		return nil, err
	}
	p.queueRemoveE.emit(QueueChange{GuildID: p.guildID, Tracks: []*lavalink.Track{t}})
	return t, nil
}

// ClearQueue drops all queued tracks.
func (p *Player) ClearQueue() {
	p.queue.Clear()
	p.queueClearE.emit(p.guildID)
}

// ShuffleQueue randomises queue order.
func (p *Player) ShuffleQueue() {
	p.queue.Shuffle()
	p.queueShuffleE.emit(p.guildID)
}

// SmartShuffleQueue randomises queue order while spreading out same-author
// runs.
func (p *Player) SmartShuffleQueue() {
	p.queue.SmartShuffle()
	p.queueShuffleE.emit(p.guildID)
}

// SetLoop sets the queue loop mode.
func (p *Player) SetLoop(mode LoopMode) {
	p.queue.SetLoopMode(mode)
}

// Skip advances to the next queued track. With an empty queue it stops
// playback, announces queue end, and returns false.
func (p *Player) Skip(ctx context.Context) (bool, error) {
	if err := p.checkAlive(); err != nil {
		return false, err
	}
	next := p.queue.Poll()
	if next == nil {
		err := p.Stop(ctx)
		p.queueEndE.emit(p.guildID)
		return false, err
	}
	return true, p.Play(ctx, next)
}

// Destroy tears the player down: the node-side player is deleted (errors
// swallowed), every listener is dropped, and all further operations fail
// with [ErrPlayerDestroyed]. Idempotent.
func (p *Player) Destroy(ctx context.Context) {
	p.mu.Lock()
	if p.destroyed {
		p.mu.Unlock()
		return
	}
	p.destroyed = true
	p.track = nil
	p.playing = false
	p.paused = false
	p.connected = false
	p.voiceChannel = ""
	p.pendingServer = nil
	p.pendingSession = ""
	p.mu.Unlock()

	if err := p.node.DestroyPlayer(ctx, p.guildID); err != nil {
		slog.Debug("rias: node-side player delete failed", "guild", p.guildID, "error", err)
	}
	p.queue.Reset()
	p.destroyE.emit(p.guildID)
	p.clearListeners()
}

func (p *Player) clearListeners() {
	p.trackStartE.clear()
	p.trackEndE.clear()
	p.trackExceptionE.clear()
	p.trackStuckE.clear()
	p.wsClosedE.clear()
	p.playerUpdateE.clear()
	p.queueEndE.clear()
	p.queueAddE.clear()
	p.queueRemoveE.clear()
	p.queueClearE.clear()
	p.queueShuffleE.clear()
	p.voiceUpdateE.clear()
	p.destroyE.clear()
	p.errorE.clear()
}

// ─── Server event reconciliation ───

// handleEvent reconciles one node-pushed event for this guild.
func (p *Player) handleEvent(ev lavalink.EventMessage) {
	if p.metrics != nil {
		p.metrics.RecordTrackEvent(context.Background(), p.node.ID(), string(ev.Type))
	}

	switch ev.Type {
	case lavalink.EventTrackStart:
		var e lavalink.TrackStartEvent
		if err := jsonUnmarshal(ev.Raw, &e); err != nil {
			p.errorE.emit(err)
			return
		}
		p.mu.Lock()
		p.track = &e.Track
		p.playing = true
		p.mu.Unlock()
		p.trackStartE.emit(e)

	case lavalink.EventTrackEnd:
		var e lavalink.TrackEndEvent
		if err := jsonUnmarshal(ev.Raw, &e); err != nil {
			p.errorE.emit(err)
			return
		}
		p.mu.Lock()
		p.playing = false
		autoplay := p.autoplay
		p.mu.Unlock()
		p.trackEndE.emit(e)

		if autoplay && e.Reason.MayStartNext() {
			next := p.queue.Poll()
			if next == nil {
				p.queueEndE.emit(p.guildID)
				return
			}
			if err := p.Play(context.Background(), next); err != nil {
				p.errorE.emit(fmt.Errorf("guild %s: autoplay: %w", p.guildID, err))
			}
		}

	case lavalink.EventTrackException:
		var e lavalink.TrackExceptionEvent
		if err := jsonUnmarshal(ev.Raw, &e); err != nil {
			p.errorE.emit(err)
			return
		}
		p.trackExceptionE.emit(e)

	case lavalink.EventTrackStuck:
		var e lavalink.TrackStuckEvent
		if err := jsonUnmarshal(ev.Raw, &e); err != nil {
			p.errorE.emit(err)
			return
		}
		p.trackStuckE.emit(e)

	case lavalink.EventWebSocketClosed:
		var e lavalink.WebSocketClosedEvent
		if err := jsonUnmarshal(ev.Raw, &e); err != nil {
			p.errorE.emit(err)
			return
		}
		p.mu.Lock()
		p.connected = false
		p.mu.Unlock()
		p.wsClosedE.emit(e)
	}
}

// handlePlayerUpdate applies a node position report.
func (p *Player) handlePlayerUpdate(state lavalink.PlayerState) {
	p.mu.Lock()
	p.position = state.Position
	p.connected = state.Connected
	p.ping = state.Ping
	p.mu.Unlock()
	p.playerUpdateE.emit(state)
}
