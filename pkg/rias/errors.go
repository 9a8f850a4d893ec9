// Package rias is a Lavalink v4 client cluster: it maintains one session per
// audio node (persistent event stream plus REST), multiplexes per-guild
// players across the nodes, and keeps client state reconciled with
// node-pushed events.
//
// The entry point is [New], which builds a [Rias] cluster from node configs.
// Players are created per guild via [Rias.Create] and stay pinned to the
// node selected at creation.
package rias

import (
	"errors"
	"fmt"
)

// Sentinel errors for the failure modes callers are expected to branch on.
// All of them are returned wrapped; test with [errors.Is].
var (
	// ErrNodeNotConnected is returned when an operation needs a live socket.
	ErrNodeNotConnected = errors.New("node is not connected")

	// ErrNodeNotReady is returned when the node has no session id yet.
	// No network I/O happens for the failed call.
	ErrNodeNotReady = errors.New("node is not ready")

	// ErrNoAvailableNodes is returned when the eligible node set is empty.
	ErrNoAvailableNodes = errors.New("no available nodes")

	// ErrPlayerNotFound is returned for operations on a destroyed or
	// never-created player.
	ErrPlayerNotFound = errors.New("player not found")

	// ErrNoTrackPlaying is returned when an operation needs a current track.
	ErrNoTrackPlaying = errors.New("no track playing")

	// ErrNotSeekable is returned when seeking a non-seekable track.
	ErrNotSeekable = errors.New("current track is not seekable")

	// ErrInvalidVolume is returned for volumes outside [0, 1000].
	ErrInvalidVolume = errors.New("volume must be an integer between 0 and 1000")

	// ErrInvalidPosition is returned for negative positions.
	ErrInvalidPosition = errors.New("position must be a non-negative integer")

	// ErrInvalidChannel is returned for malformed channel snowflakes.
	ErrInvalidChannel = errors.New("invalid channel id")

	// ErrInvalidGuild is returned for malformed guild snowflakes.
	ErrInvalidGuild = errors.New("invalid guild id")

	// ErrTrackLoadFailed is returned when the node reports a load error.
	ErrTrackLoadFailed = errors.New("track load failed")

	// ErrMaxReconnects is emitted when a node exhausts its reconnect budget
	// and latches into the disconnected state.
	ErrMaxReconnects = errors.New("maximum reconnect attempts reached")

	// ErrPluginNotFound is returned when a plugin request names a plugin no
	// queried node carries.
	ErrPluginNotFound = errors.New("plugin not installed on node")

	// ErrTimeout is returned when a REST call exceeds its deadline.
	ErrTimeout = errors.New("request timed out")

	// ErrClusterClosed is returned for operations on a cluster after
	// [Rias.Shutdown].
	ErrClusterClosed = errors.New("cluster is shut down")

	// ErrPlayerDestroyed is returned for operations on a destroyed player.
	ErrPlayerDestroyed = fmt.Errorf("%w: player destroyed", ErrPlayerNotFound)
)

// RestError is a non-2xx response from a node's REST surface. The message is
// taken from the JSON error body when the node supplied one.
type RestError struct {
	// Status is the HTTP status code.
	Status int

	// Message is the node's error message, or the HTTP status text.
	Message string
}

// Error implements the error interface.
func (e *RestError) Error() string {
	return fmt.Sprintf("node rest error: status %d: %s", e.Status, e.Message)
}

// NodeError wraps a background failure of one node so listeners can tell
// which node it came from.
type NodeError struct {
	NodeID string
	Err    error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("node %q: %v", e.NodeID, e.Err)
}

func (e *NodeError) Unwrap() error { return e.Err }
