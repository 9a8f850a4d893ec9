package rias

import (
	"container/heap"
	"math/rand/v2"
	"strings"

	"github.com/MrWong99/rias/pkg/lavalink"
)

// bucket groups the not-yet-emitted tracks of one author. The seq field
// keeps heap ordering deterministic between buckets of equal size.
type bucket struct {
	key    string
	tracks []*lavalink.Track
	seq    int
}

// bucketHeap implements [container/heap.Interface] as a max-heap ordered by
// remaining bucket size, with insertion order as the tie-break.
type bucketHeap []*bucket

func (h bucketHeap) Len() int { return len(h) }

func (h bucketHeap) Less(i, j int) bool {
	if len(h[i].tracks) != len(h[j].tracks) {
		return len(h[i].tracks) > len(h[j].tracks)
	}
	return h[i].seq < h[j].seq
}

func (h bucketHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

// Push appends x. Called by [container/heap.Push]; callers must not invoke
// this directly.
func (h *bucketHeap) Push(x any) {
	*h = append(*h, x.(*bucket))
}

// Pop removes and returns the last element. Called by [container/heap.Pop];
// callers must not invoke this directly.
func (h *bucketHeap) Pop() any {
	old := *h
	n := len(old)
	b := old[n-1]
	*h = old[:n-1]
	return b
}

// authorKey normalises an author name for bucketing: surrounding whitespace
// trimmed, case folded.
func authorKey(author string) string {
	return strings.ToLower(strings.TrimSpace(author))
}

// smartShuffle permutes tracks so that, whenever the author distribution
// allows, no two consecutive tracks share an author. It always emits the
// author with the most remaining tracks first, stepping to the next-largest
// bucket when the largest matches the previously emitted author.
func smartShuffle(tracks []*lavalink.Track) []*lavalink.Track {
	if len(tracks) < 2 {
		return tracks
	}

	grouped := make(map[string][]*lavalink.Track)
	var order []string
	for _, t := range tracks {
		key := authorKey(t.Info.Author)
		if _, ok := grouped[key]; !ok {
			order = append(order, key)
		}
		grouped[key] = append(grouped[key], t)
	}

	h := make(bucketHeap, 0, len(order))
	for i, key := range order {
		group := grouped[key]
		// Shuffle within the bucket so repeated runs vary.
		for j := len(group) - 1; j > 0; j-- {
			k := rand.IntN(j + 1)
			group[j], group[k] = group[k], group[j]
		}
		h = append(h, &bucket{key: key, tracks: group, seq: i})
	}
	heap.Init(&h)

	out := make([]*lavalink.Track, 0, len(tracks))
	lastKey := ""
	first := true

	for h.Len() > 0 {
		b := heap.Pop(&h).(*bucket)
		if !first && b.key == lastKey && h.Len() > 0 {
			// Largest bucket would repeat the last author; take the runner-up
			// and put the largest back.
			next := heap.Pop(&h).(*bucket)
			heap.Push(&h, b)
			b = next
		}

		out = append(out, b.tracks[0])
		b.tracks = b.tracks[1:]
		lastKey = b.key
		first = false

		if len(b.tracks) > 0 {
			heap.Push(&h, b)
		}
	}
	return out
}
