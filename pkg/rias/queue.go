package rias

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/emirpasic/gods/v2/lists/arraylist"

	"github.com/MrWong99/rias/pkg/lavalink"
)

// LoopMode controls what Poll does when the current track ends.
type LoopMode string

const (
	// LoopNone plays the queue front to back once.
	LoopNone LoopMode = "none"

	// LoopTrack repeats the current track until the mode changes.
	LoopTrack LoopMode = "track"

	// LoopQueue re-appends each finished track to the tail.
	LoopQueue LoopMode = "queue"
)

// ParseLoopMode maps a user-supplied string to a LoopMode.
func ParseLoopMode(s string) (LoopMode, error) {
	switch LoopMode(strings.ToLower(strings.TrimSpace(s))) {
	case LoopNone:
		return LoopNone, nil
	case LoopTrack:
		return LoopTrack, nil
	case LoopQueue:
		return LoopQueue, nil
	}
	return LoopNone, fmt.Errorf("unknown loop mode %q", s)
}

// Queue is an ordered track list with loop semantics. The current and
// previous tracks live outside the list itself: Poll moves the head into
// current and the old current into previous.
//
// Queue is safe for concurrent use.
type Queue struct {
	mu       sync.RWMutex
	tracks   *arraylist.List[*lavalink.Track]
	current  *lavalink.Track
	previous *lavalink.Track
	loopMode LoopMode
}

// NewQueue returns an empty queue with LoopNone.
func NewQueue() *Queue {
	return &Queue{
		tracks:   arraylist.New[*lavalink.Track](),
		loopMode: LoopNone,
	}
}

// Add appends a track to the tail.
func (q *Queue) Add(t *lavalink.Track) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tracks.Add(t)
}

// AddMany appends tracks in order.
func (q *Queue) AddMany(tracks []*lavalink.Track) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tracks.Add(tracks...)
}

// Insert places t at index i, shifting successors right. Valid indices are
// 0 through Size inclusive.
func (q *Queue) Insert(i int, t *lavalink.Track) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if i < 0 || i > q.tracks.Size() {
		return fmt.Errorf("insert index %d out of range [0, %d]", i, q.tracks.Size())
	}
	q.tracks.Insert(i, t)
	return nil
}

// Remove deletes the track at index i, shifting successors left, and
// returns it.
func (q *Queue) Remove(i int) (*lavalink.Track, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	t, ok := q.tracks.Get(i)
	if !ok {
		return nil, fmt.Errorf("remove index %d out of range [0, %d)", i, q.tracks.Size())
	}
	q.tracks.Remove(i)
	return t, nil
}

// Poll advances the queue and returns the new current track, or nil when
// the queue is exhausted.
//
// Under LoopTrack the current track is returned unchanged and the list is
// not touched. Under LoopQueue the outgoing current track is re-appended to
// the tail once a successor exists.
func (q *Queue) Poll() *lavalink.Track {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.loopMode == LoopTrack && q.current != nil {
		return q.current
	}

	q.previous = q.current
	head, ok := q.tracks.Get(0)
	if !ok {
		q.current = nil
		return nil
	}
	q.tracks.Remove(0)
	q.current = head

	if q.loopMode == LoopQueue && q.previous != nil {
		q.tracks.Add(q.previous)
	}
	return q.current
}

// Peek returns the head of the list without advancing, or nil when empty.
func (q *Queue) Peek() *lavalink.Track {
	q.mu.RLock()
	defer q.mu.RUnlock()
	t, _ := q.tracks.Get(0)
	return t
}

// At returns the track at index i, or nil when out of range.
func (q *Queue) At(i int) *lavalink.Track {
	q.mu.RLock()
	defer q.mu.RUnlock()
	t, _ := q.tracks.Get(i)
	return t
}

// Current returns the track Poll produced last, if any.
func (q *Queue) Current() *lavalink.Track {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.current
}

// Previous returns the track that played before the current one, if any.
func (q *Queue) Previous() *lavalink.Track {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.previous
}

// SetCurrent overrides the current track. Used by the player when the node
// reports a track it started that the queue did not produce.
func (q *Queue) SetCurrent(t *lavalink.Track) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.current = t
}

// Clear drops all queued tracks. Current and previous are kept.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tracks.Clear()
}

// Reset drops everything including current, previous, and the loop mode.
func (q *Queue) Reset() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tracks.Clear()
	q.current = nil
	q.previous = nil
	q.loopMode = LoopNone
}

// Size returns the number of queued tracks (current excluded).
func (q *Queue) Size() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.tracks.Size()
}

// IsEmpty reports whether no tracks are queued.
func (q *Queue) IsEmpty() bool {
	return q.Size() == 0
}

// Tracks returns a copy of the queued track list.
func (q *Queue) Tracks() []*lavalink.Track {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.tracks.Values()
}

// SkipTo drops indices [0, i) and polls, making the track formerly at i the
// current one.
func (q *Queue) SkipTo(i int) (*lavalink.Track, error) {
	q.mu.Lock()
	if i < 0 || i >= q.tracks.Size() {
		size := q.tracks.Size()
		q.mu.Unlock()
		return nil, fmt.Errorf("skip index %d out of range [0, %d)", i, size)
	}
	for range i {
		q.tracks.Remove(0)
	}
	q.mu.Unlock()
	return q.Poll(), nil
}

// Move relocates the track at from to index to, shifting the tracks in
// between.
func (q *Queue) Move(from, to int) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	size := q.tracks.Size()
	if from < 0 || from >= size || to < 0 || to >= size {
		return fmt.Errorf("move %d→%d out of range [0, %d)", from, to, size)
	}
	if from == to {
		return nil
	}
	t, _ := q.tracks.Get(from)
	q.tracks.Remove(from)
	q.tracks.Insert(to, t)
	return nil
}

// Swap exchanges the tracks at a and b.
func (q *Queue) Swap(a, b int) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	size := q.tracks.Size()
	if a < 0 || a >= size || b < 0 || b >= size {
		return fmt.Errorf("swap %d↔%d out of range [0, %d)", a, b, size)
	}
	q.tracks.Swap(a, b)
	return nil
}

// Reverse flips the order of the queued tracks.
func (q *Queue) Reverse() {
	q.mu.Lock()
	defer q.mu.Unlock()
	values := q.tracks.Values()
	q.tracks.Clear()
	for i := len(values) - 1; i >= 0; i-- {
		q.tracks.Add(values[i])
	}
}

// Slice returns a copy of the queued tracks in [start, end). A negative end
// means "to the tail". Out-of-range bounds are clamped.
func (q *Queue) Slice(start, end int) []*lavalink.Track {
	q.mu.RLock()
	defer q.mu.RUnlock()
	size := q.tracks.Size()
	if end < 0 || end > size {
		end = size
	}
	if start < 0 {
		start = 0
	}
	if start >= end {
		return nil
	}
	values := q.tracks.Values()
	out := make([]*lavalink.Track, end-start)
	copy(out, values[start:end])
	return out
}

// Find returns the first queued track satisfying pred, or nil.
func (q *Queue) Find(pred func(*lavalink.Track) bool) *lavalink.Track {
	q.mu.RLock()
	defer q.mu.RUnlock()
	for _, t := range q.tracks.Values() {
		if pred(t) {
			return t
		}
	}
	return nil
}

// FindIndex returns the index of the first queued track satisfying pred,
// or -1.
func (q *Queue) FindIndex(pred func(*lavalink.Track) bool) int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	for i, t := range q.tracks.Values() {
		if pred(t) {
			return i
		}
	}
	return -1
}

// Filter returns all queued tracks satisfying pred, in order.
func (q *Queue) Filter(pred func(*lavalink.Track) bool) []*lavalink.Track {
	q.mu.RLock()
	defer q.mu.RUnlock()
	var out []*lavalink.Track
	for _, t := range q.tracks.Values() {
		if pred(t) {
			out = append(out, t)
		}
	}
	return out
}

// FilterByAuthor returns queued tracks whose author contains the given
// substring, case-insensitively.
func (q *Queue) FilterByAuthor(author string) []*lavalink.Track {
	needle := strings.ToLower(author)
	return q.Filter(func(t *lavalink.Track) bool {
		return strings.Contains(strings.ToLower(t.Info.Author), needle)
	})
}

// FilterByDuration returns queued tracks whose length falls within
// [min, max].
func (q *Queue) FilterByDuration(min, max time.Duration) []*lavalink.Track {
	return q.Filter(func(t *lavalink.Track) bool {
		d := t.Info.Duration()
		return d >= min && d <= max
	})
}

// FilterBySource returns queued tracks from the given source manager.
func (q *Queue) FilterBySource(source string) []*lavalink.Track {
	return q.Filter(func(t *lavalink.Track) bool {
		return strings.EqualFold(t.Info.SourceName, source)
	})
}

// RemoveByAuthor deletes every queued track whose author contains the given
// substring, case-insensitively. Returns the number removed.
func (q *Queue) RemoveByAuthor(author string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	needle := strings.ToLower(author)
	removed := 0
	for i := q.tracks.Size() - 1; i >= 0; i-- {
		t, _ := q.tracks.Get(i)
		if strings.Contains(strings.ToLower(t.Info.Author), needle) {
			q.tracks.Remove(i)
			removed++
		}
	}
	return removed
}

// RemoveDuplicates drops every queued track whose identifier was already
// seen earlier in the list, keeping the first occurrence. Returns the
// number removed.
func (q *Queue) RemoveDuplicates() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	seen := make(map[string]struct{}, q.tracks.Size())
	removed := 0
	for i := 0; i < q.tracks.Size(); {
		t, _ := q.tracks.Get(i)
		if _, dup := seen[t.Info.Identifier]; dup {
			q.tracks.Remove(i)
			removed++
			continue
		}
		seen[t.Info.Identifier] = struct{}{}
		i++
	}
	return removed
}

// Shuffle permutes the queued tracks uniformly (Fisher–Yates).
func (q *Queue) Shuffle() {
	q.mu.Lock()
	defer q.mu.Unlock()
	size := q.tracks.Size()
	for i := size - 1; i > 0; i-- {
		j := rand.IntN(i + 1)
		q.tracks.Swap(i, j)
	}
}

// SmartShuffle permutes the queued tracks while avoiding two consecutive
// tracks from the same author whenever the author distribution allows it.
func (q *Queue) SmartShuffle() {
	q.mu.Lock()
	defer q.mu.Unlock()
	values := q.tracks.Values()
	if len(values) < 2 {
		return
	}
	shuffled := smartShuffle(values)
	q.tracks.Clear()
	q.tracks.Add(shuffled...)
}

// LoopMode returns the active loop mode.
func (q *Queue) LoopMode() LoopMode {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.loopMode
}

// SetLoopMode switches the loop mode.
func (q *Queue) SetLoopMode(mode LoopMode) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.loopMode = mode
}

// ToggleLoop flips between LoopNone and LoopQueue. LoopTrack toggles back
// to LoopNone.
func (q *Queue) ToggleLoop() LoopMode {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.loopMode == LoopNone {
		q.loopMode = LoopQueue
	} else {
		q.loopMode = LoopNone
	}
	return q.loopMode
}

// Duration sums the length of all queued tracks, current excluded.
func (q *Queue) Duration() time.Duration {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.queuedDurationLocked()
}

// TotalDuration is Duration plus the current track's length, unless the
// current track is a live stream.
func (q *Queue) TotalDuration() time.Duration {
	q.mu.RLock()
	defer q.mu.RUnlock()
	total := q.queuedDurationLocked()
	if q.current != nil && !q.current.Info.IsStream {
		total += q.current.Info.Duration()
	}
	return total
}

func (q *Queue) queuedDurationLocked() time.Duration {
	var total time.Duration
	for _, t := range q.tracks.Values() {
		total += t.Info.Duration()
	}
	return total
}

// Summary is a point-in-time snapshot of the queue's shape.
type Summary struct {
	Size          int
	Duration      time.Duration
	TotalDuration time.Duration
	IsEmpty       bool
	Current       *lavalink.Track
	Previous      *lavalink.Track
	LoopMode      LoopMode
	UniqueAuthors []string
	UniqueSources []string
}

// String renders the summary for logs and status replies.
func (s Summary) String() string {
	return fmt.Sprintf("%d queued (%s, %s total), loop=%s, %d authors, %d sources",
		s.Size, s.Duration, s.TotalDuration, s.LoopMode, len(s.UniqueAuthors), len(s.UniqueSources))
}

// Summary returns a snapshot of the queue.
func (q *Queue) Summary() Summary {
	q.mu.RLock()
	defer q.mu.RUnlock()

	authorSeen := make(map[string]struct{})
	sourceSeen := make(map[string]struct{})
	var authors, sources []string
	for _, t := range q.tracks.Values() {
		a := strings.TrimSpace(t.Info.Author)
		if _, ok := authorSeen[strings.ToLower(a)]; !ok && a != "" {
			authorSeen[strings.ToLower(a)] = struct{}{}
			authors = append(authors, a)
		}
		if _, ok := sourceSeen[t.Info.SourceName]; !ok && t.Info.SourceName != "" {
			sourceSeen[t.Info.SourceName] = struct{}{}
			sources = append(sources, t.Info.SourceName)
		}
	}

	queued := q.queuedDurationLocked()
	total := queued
	if q.current != nil && !q.current.Info.IsStream {
		total += q.current.Info.Duration()
	}

	return Summary{
		Size:          q.tracks.Size(),
		Duration:      queued,
		TotalDuration: total,
		IsEmpty:       q.tracks.Empty(),
		Current:       q.current,
		Previous:      q.previous,
		LoopMode:      q.loopMode,
		UniqueAuthors: authors,
		UniqueSources: sources,
	}
}

// Clone returns an independent queue with the same tracks, current,
// previous, and loop mode. Track pointers are shared; tracks are immutable.
func (q *Queue) Clone() *Queue {
	q.mu.RLock()
	defer q.mu.RUnlock()
	clone := NewQueue()
	clone.tracks.Add(q.tracks.Values()...)
	clone.current = q.current
	clone.previous = q.previous
	clone.loopMode = q.loopMode
	return clone
}
