package rias

import (
	"testing"

	"github.com/MrWong99/rias/pkg/lavalink"
)

func countByAuthor(tracks []*lavalink.Track) map[string]int {
	counts := make(map[string]int)
	for _, t := range tracks {
		counts[authorKey(t.Info.Author)]++
	}
	return counts
}

func adjacencies(tracks []*lavalink.Track) int {
	n := 0
	for i := 1; i < len(tracks); i++ {
		if authorKey(tracks[i].Info.Author) == authorKey(tracks[i-1].Info.Author) {
			n++
		}
	}
	return n
}

func TestSmartShuffle_PermutationAndNoAdjacency(t *testing.T) {
	t.Parallel()
	in := []*lavalink.Track{
		track("1", "One", "A"),
		track("2", "Two", "A"),
		track("3", "Three", "A"),
		track("4", "Four", "B"),
		track("5", "Five", "C"),
	}
	want := countByAuthor(in)

	// The distribution {A:3, B:1, C:1} over five slots admits an
	// adjacency-free arrangement (A _ A _ A); it must be found every run.
	for run := 0; run < 50; run++ {
		out := smartShuffle(append([]*lavalink.Track(nil), in...))
		if len(out) != len(in) {
			t.Fatalf("run %d: length %d, want %d", run, len(out), len(in))
		}
		if got := countByAuthor(out); len(got) != len(want) || got["a"] != 3 || got["b"] != 1 || got["c"] != 1 {
			t.Fatalf("run %d: not a permutation: %v", run, got)
		}
		if n := adjacencies(out); n != 0 {
			t.Fatalf("run %d: %d same-author adjacencies in %v", run, n, titles(out))
		}
	}
}

func TestSmartShuffle_DominantAuthorMinimalAdjacency(t *testing.T) {
	t.Parallel()
	// Four of five tracks share an author, so two same-author adjacencies
	// are unavoidable; the shuffle must not produce more than that.
	in := []*lavalink.Track{
		track("1", "One", "A"),
		track("2", "Two", "A"),
		track("3", "Three", "A"),
		track("4", "Four", "A"),
		track("5", "Five", "B"),
	}
	out := smartShuffle(in)
	if len(out) != 5 {
		t.Fatalf("length %d, want 5", len(out))
	}
	if n := adjacencies(out); n > 2 {
		t.Fatalf("%d adjacencies, want at most 2 in %v", n, titles(out))
	}
}

func TestSmartShuffle_SingleAuthor(t *testing.T) {
	t.Parallel()
	in := []*lavalink.Track{
		track("1", "One", "A"),
		track("2", "Two", "A"),
		track("3", "Three", "A"),
	}
	out := smartShuffle(in)
	if got := countByAuthor(out); got["a"] != 3 {
		t.Fatalf("not a permutation: %v", got)
	}
}

func TestSmartShuffle_DegenerateInputs(t *testing.T) {
	t.Parallel()
	if out := smartShuffle(nil); len(out) != 0 {
		t.Fatalf("nil input produced %d tracks", len(out))
	}
	one := []*lavalink.Track{track("1", "One", "A")}
	if out := smartShuffle(one); len(out) != 1 || out[0] != one[0] {
		t.Fatal("single-track input changed")
	}
}

func TestSmartShuffle_CaseInsensitiveAuthors(t *testing.T) {
	t.Parallel()
	in := []*lavalink.Track{
		track("1", "One", "Mili"),
		track("2", "Two", "MILI"),
		track("3", "Three", " mili "),
		track("4", "Four", "Aimer"),
	}
	// All three Mili spellings bucket together, so at least one adjacency
	// is forced; the point is they are treated as one author.
	out := smartShuffle(in)
	if got := countByAuthor(out); got["mili"] != 3 || got["aimer"] != 1 {
		t.Fatalf("author folding wrong: %v", got)
	}
}

func TestQueue_SmartShuffleInPlace(t *testing.T) {
	t.Parallel()
	q := NewQueue()
	q.AddMany([]*lavalink.Track{
		track("1", "One", "A"),
		track("2", "Two", "A"),
		track("3", "Three", "B"),
	})
	q.SmartShuffle()
	if q.Size() != 3 {
		t.Fatalf("size after shuffle = %d, want 3", q.Size())
	}
	if n := adjacencies(q.Tracks()); n != 0 {
		t.Fatalf("%d adjacencies after queue smart shuffle", n)
	}
}

func TestQueue_ShufflePreservesMultiset(t *testing.T) {
	t.Parallel()
	q := NewQueue()
	in := []*lavalink.Track{
		track("1", "One", "A"),
		track("2", "Two", "B"),
		track("3", "Three", "C"),
		track("4", "Four", "D"),
	}
	q.AddMany(in)
	q.Shuffle()

	seen := make(map[*lavalink.Track]bool)
	for _, tr := range q.Tracks() {
		seen[tr] = true
	}
	if len(seen) != len(in) {
		t.Fatalf("shuffle changed the track set: %d unique, want %d", len(seen), len(in))
	}
	for _, tr := range in {
		if !seen[tr] {
			t.Fatalf("track %s missing after shuffle", tr.Info.Title)
		}
	}
}

func titles(tracks []*lavalink.Track) []string {
	out := make([]string, len(tracks))
	for i, t := range tracks {
		out[i] = t.Info.Title
	}
	return out
}
