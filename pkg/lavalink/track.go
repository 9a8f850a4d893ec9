// Package lavalink defines the value types of the Lavalink v4 wire protocol:
// tracks, server-pushed frames, the loadtracks result union, node info and
// plugin descriptors, and the composable audio filter record.
//
// The types here are plain data carriers with JSON tags matching the v4
// protocol. They hold no connection state; see pkg/rias for the client.
package lavalink

import "time"

// Track is an immutable descriptor of a playable track. The Encoded blob is
// the only field the node needs to play it; everything else is metadata the
// node attached when the track was resolved.
type Track struct {
	// Encoded is the node's opaque base64 representation of the track.
	Encoded string `json:"encoded"`

	// Info holds the decoded metadata.
	Info TrackInfo `json:"info"`

	// PluginInfo carries source-plugin specific extras. May be empty.
	PluginInfo map[string]any `json:"pluginInfo,omitempty"`
}

// TrackInfo is the metadata block of a [Track].
type TrackInfo struct {
	// Identifier is the source-specific id (e.g. a YouTube video id).
	// Track equality for deduplication is defined over this field.
	Identifier string `json:"identifier"`

	// Title is the track title.
	Title string `json:"title"`

	// Author is the artist or uploader name.
	Author string `json:"author"`

	// Length is the track length in milliseconds.
	Length int64 `json:"length"`

	// IsStream reports whether the track is a live stream (unbounded length).
	IsStream bool `json:"isStream"`

	// IsSeekable reports whether the node can seek within the track.
	IsSeekable bool `json:"isSeekable"`

	// Position is the current playback position in milliseconds.
	Position int64 `json:"position"`

	// SourceName identifies the source manager ("youtube", "soundcloud", …).
	SourceName string `json:"sourceName"`

	// URI is the canonical URL of the track, when known.
	URI *string `json:"uri,omitempty"`

	// ArtworkURL is the cover image URL, when known.
	ArtworkURL *string `json:"artworkUrl,omitempty"`

	// ISRC is the International Standard Recording Code, when known.
	ISRC *string `json:"isrc,omitempty"`
}

// Duration returns the track length as a [time.Duration].
func (i TrackInfo) Duration() time.Duration {
	return time.Duration(i.Length) * time.Millisecond
}

// SameIdentity reports whether t and other resolve to the same underlying
// track, comparing by identifier.
func (t Track) SameIdentity(other Track) bool {
	return t.Info.Identifier == other.Info.Identifier
}
