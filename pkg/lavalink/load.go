package lavalink

import (
	"encoding/json"
	"fmt"
)

// LoadType tags a /v4/loadtracks response.
type LoadType string

const (
	LoadTypeTrack    LoadType = "track"
	LoadTypePlaylist LoadType = "playlist"
	LoadTypeSearch   LoadType = "search"
	LoadTypeEmpty    LoadType = "empty"
	LoadTypeError    LoadType = "error"
)

// LoadResult is the tagged union returned by /v4/loadtracks. Data holds one
// of [Track], [Playlist], [Search], [Empty] or [Exception] depending on
// LoadType; use a type switch to consume it.
type LoadResult struct {
	LoadType LoadType
	Data     LoadResultData
}

// LoadResultData is implemented by every LoadResult payload variant.
type LoadResultData interface {
	loadResultData()
}

func (Track) loadResultData()     {}
func (Playlist) loadResultData()  {}
func (Search) loadResultData()    {}
func (Empty) loadResultData()     {}
func (Exception) loadResultData() {}

// Playlist is the payload for LoadTypePlaylist.
type Playlist struct {
	Info       PlaylistInfo   `json:"info"`
	PluginInfo map[string]any `json:"pluginInfo,omitempty"`
	Tracks     []Track        `json:"tracks"`
}

// PlaylistInfo describes the playlist itself.
type PlaylistInfo struct {
	Name string `json:"name"`

	// SelectedTrack is the index the link pointed at, or -1 when none.
	SelectedTrack int `json:"selectedTrack"`
}

// Search is the payload for LoadTypeSearch: a ranked list of matches.
type Search []Track

// Empty is the payload for LoadTypeEmpty.
type Empty struct{}

// UnmarshalJSON decodes the union by its loadType discriminator.
func (r *LoadResult) UnmarshalJSON(data []byte) error {
	var envelope struct {
		LoadType LoadType        `json:"loadType"`
		Data     json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return fmt.Errorf("lavalink: decode load result: %w", err)
	}

	r.LoadType = envelope.LoadType
	switch envelope.LoadType {
	case LoadTypeTrack:
		var t Track
		if err := json.Unmarshal(envelope.Data, &t); err != nil {
			return fmt.Errorf("lavalink: decode track result: %w", err)
		}
		r.Data = t
	case LoadTypePlaylist:
		var p Playlist
		if err := json.Unmarshal(envelope.Data, &p); err != nil {
			return fmt.Errorf("lavalink: decode playlist result: %w", err)
		}
		r.Data = p
	case LoadTypeSearch:
		var s Search
		if err := json.Unmarshal(envelope.Data, &s); err != nil {
			return fmt.Errorf("lavalink: decode search result: %w", err)
		}
		r.Data = s
	case LoadTypeEmpty:
		r.Data = Empty{}
	case LoadTypeError:
		var e Exception
		if err := json.Unmarshal(envelope.Data, &e); err != nil {
			return fmt.Errorf("lavalink: decode error result: %w", err)
		}
		r.Data = e
	default:
		return fmt.Errorf("lavalink: unknown loadType %q", envelope.LoadType)
	}
	return nil
}

// Tracks flattens the union into the list of tracks it carries: one for a
// track result, all entries for playlists and searches, none otherwise.
func (r LoadResult) Tracks() []Track {
	switch data := r.Data.(type) {
	case Track:
		return []Track{data}
	case Playlist:
		return data.Tracks
	case Search:
		return data
	default:
		return nil
	}
}
