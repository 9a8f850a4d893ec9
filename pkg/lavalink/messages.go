package lavalink

import (
	"encoding/json"
	"fmt"
)

// Op identifies an inbound frame on the node event stream.
type Op string

const (
	OpReady        Op = "ready"
	OpStats        Op = "stats"
	OpPlayerUpdate Op = "playerUpdate"
	OpEvent        Op = "event"
)

// Message is the envelope every event-stream frame shares. Raw retains the
// full frame so op-specific payloads can be decoded after dispatch.
type Message struct {
	Op      Op     `json:"op"`
	GuildID string `json:"guildId,omitempty"`

	Raw json.RawMessage `json:"-"`
}

// ParseMessage decodes the envelope of a raw frame and stores the original
// bytes in Raw.
func ParseMessage(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("lavalink: parse message envelope: %w", err)
	}
	m.Raw = append(json.RawMessage(nil), data...)
	return m, nil
}

// ReadyMessage is pushed once per socket after the handshake completes.
type ReadyMessage struct {
	// Resumed reports whether the node resumed a previous session.
	Resumed bool `json:"resumed"`

	// SessionID addresses all subsequent REST player commands.
	SessionID string `json:"sessionId"`
}

// PlayerUpdateMessage is a periodic per-guild position report.
type PlayerUpdateMessage struct {
	GuildID string      `json:"guildId"`
	State   PlayerState `json:"state"`
}

// PlayerState is the node-side view of a guild player.
type PlayerState struct {
	// Time is the unix timestamp (ms) the state was sampled at.
	Time int64 `json:"time"`

	// Position is the playback position in milliseconds.
	Position int64 `json:"position"`

	// Connected reports whether the node's voice gateway link is up.
	Connected bool `json:"connected"`

	// Ping is the node↔voice-gateway round trip in ms, or -1 when unknown.
	Ping int64 `json:"ping"`
}

// Stats is the periodic node load report.
type Stats struct {
	// Players is the number of players the node hosts.
	Players int `json:"players"`

	// PlayingPlayers is the number of players currently playing.
	PlayingPlayers int `json:"playingPlayers"`

	// Uptime is the node uptime in milliseconds.
	Uptime int64 `json:"uptime"`

	Memory Memory `json:"memory"`
	CPU    CPU    `json:"cpu"`

	// FrameStats is only present on stats frames, never on /v4/stats.
	FrameStats *FrameStats `json:"frameStats,omitempty"`
}

// Memory reports JVM memory usage of the node.
type Memory struct {
	Free       int64 `json:"free"`
	Used       int64 `json:"used"`
	Allocated  int64 `json:"allocated"`
	Reservable int64 `json:"reservable"`
}

// CPU reports host and node process load.
type CPU struct {
	Cores        int     `json:"cores"`
	SystemLoad   float64 `json:"systemLoad"`
	LavalinkLoad float64 `json:"lavalinkLoad"`
}

// FrameStats reports audio frame delivery over the last minute.
type FrameStats struct {
	Sent    int `json:"sent"`
	Nulled  int `json:"nulled"`
	Deficit int `json:"deficit"`
}

// EventType discriminates the payload of an `op=event` frame.
type EventType string

const (
	EventTrackStart      EventType = "TrackStartEvent"
	EventTrackEnd        EventType = "TrackEndEvent"
	EventTrackException  EventType = "TrackExceptionEvent"
	EventTrackStuck      EventType = "TrackStuckEvent"
	EventWebSocketClosed EventType = "WebSocketClosedEvent"
)

// EventMessage is the envelope of an `op=event` frame. The op-specific
// fields are decoded from Raw by the owning player.
type EventMessage struct {
	Type    EventType `json:"type"`
	GuildID string    `json:"guildId"`

	Raw json.RawMessage `json:"-"`
}

// TrackStartEvent signals the node began pushing audio for a track.
type TrackStartEvent struct {
	GuildID string `json:"guildId"`
	Track   Track  `json:"track"`
}

// TrackEndReason explains why a track stopped.
type TrackEndReason string

const (
	// TrackEndFinished means the track played to completion.
	TrackEndFinished TrackEndReason = "finished"

	// TrackEndLoadFailed means the track threw before producing audio.
	TrackEndLoadFailed TrackEndReason = "loadFailed"

	// TrackEndStopped means the player was stopped explicitly.
	TrackEndStopped TrackEndReason = "stopped"

	// TrackEndReplaced means a new track superseded this one.
	TrackEndReplaced TrackEndReason = "replaced"

	// TrackEndCleanup means the node reclaimed an idle player.
	TrackEndCleanup TrackEndReason = "cleanup"
)

// MayStartNext reports whether the reason permits automatic queue advance.
func (r TrackEndReason) MayStartNext() bool {
	return r == TrackEndFinished || r == TrackEndLoadFailed
}

// TrackEndEvent signals a track stopped playing.
type TrackEndEvent struct {
	GuildID string         `json:"guildId"`
	Track   Track          `json:"track"`
	Reason  TrackEndReason `json:"reason"`
}

// TrackExceptionEvent signals a track raised an exception mid-play.
type TrackExceptionEvent struct {
	GuildID   string    `json:"guildId"`
	Track     Track     `json:"track"`
	Exception Exception `json:"exception"`
}

// TrackStuckEvent signals the node produced no frames past a threshold.
type TrackStuckEvent struct {
	GuildID     string `json:"guildId"`
	Track       Track  `json:"track"`
	ThresholdMs int64  `json:"thresholdMs"`
}

// WebSocketClosedEvent signals the node's voice gateway link to Discord
// closed for this guild.
type WebSocketClosedEvent struct {
	GuildID  string `json:"guildId"`
	Code     int    `json:"code"`
	Reason   string `json:"reason"`
	ByRemote bool   `json:"byRemote"`
}

// Severity classifies an [Exception].
type Severity string

const (
	// SeverityCommon indicates a user-correctable cause (bad input).
	SeverityCommon Severity = "common"

	// SeveritySuspicious indicates an unexpected but external cause.
	SeveritySuspicious Severity = "suspicious"

	// SeverityFault indicates a bug in the node or a source manager.
	SeverityFault Severity = "fault"
)

// Exception is the node's structured error record.
type Exception struct {
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
	Cause    string   `json:"cause"`
}

// Error implements the error interface.
func (e Exception) Error() string {
	return fmt.Sprintf("lavalink exception (%s): %s", e.Severity, e.Message)
}

// ConfigureResuming is the only client→node frame on the event stream. It
// arms session resumption for the given key and timeout (seconds).
type ConfigureResuming struct {
	Op      string `json:"op"`
	Key     string `json:"key"`
	Timeout int    `json:"timeout"`
}

// NewConfigureResuming builds a configureResuming frame.
func NewConfigureResuming(key string, timeoutSeconds int) ConfigureResuming {
	return ConfigureResuming{Op: "configureResuming", Key: key, Timeout: timeoutSeconds}
}

// VoiceState is the voice credential triple forwarded to the node so it can
// connect to Discord's voice gateway on the bot's behalf.
type VoiceState struct {
	Token     string `json:"token"`
	Endpoint  string `json:"endpoint"`
	SessionID string `json:"sessionId"`
}
