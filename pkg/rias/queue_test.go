package rias

import (
	"testing"
	"time"

	"github.com/MrWong99/rias/pkg/lavalink"
)

// ── Poll and loop modes ───────────────────────────────────────────────────────

func TestQueue_PollInsertionOrder(t *testing.T) {
	t.Parallel()
	q := NewQueue()
	a, b, c := track("a", "Alpha", "X"), track("b", "Beta", "Y"), track("c", "Gamma", "Z")
	q.Add(a)
	q.AddMany([]*lavalink.Track{b, c})

	for i, want := range []*lavalink.Track{a, b, c} {
		if got := q.Poll(); got != want {
			t.Fatalf("poll %d: got %v want %v", i, got, want)
		}
	}
	if got := q.Poll(); got != nil {
		t.Fatalf("exhausted queue polled %v, want nil", got)
	}
	if q.Current() != nil {
		t.Fatal("current should be nil after exhaustion")
	}
	if q.Previous() != c {
		t.Fatalf("previous = %v, want %v", q.Previous(), c)
	}
}

func TestQueue_LoopTrackRepeatsWithoutMutation(t *testing.T) {
	t.Parallel()
	q := NewQueue()
	a, b := track("a", "Alpha", "X"), track("b", "Beta", "Y")
	q.AddMany([]*lavalink.Track{a, b})

	if got := q.Poll(); got != a {
		t.Fatalf("first poll = %v, want %v", got, a)
	}
	q.SetLoopMode(LoopTrack)

	for i := 0; i < 3; i++ {
		if got := q.Poll(); got != a {
			t.Fatalf("loop-track poll %d = %v, want %v", i, got, a)
		}
	}
	if q.Size() != 1 {
		t.Fatalf("loop-track poll mutated the list, size = %d", q.Size())
	}
	if q.Peek() != b {
		t.Fatal("head changed under loop-track")
	}
}

func TestQueue_LoopQueueKeepsMultiset(t *testing.T) {
	t.Parallel()
	q := NewQueue()
	a, b := track("a", "Alpha", "X"), track("b", "Beta", "Y")
	q.AddMany([]*lavalink.Track{a, b})
	q.SetLoopMode(LoopQueue)

	want := []*lavalink.Track{a, b, a, b, a, b}
	for i, w := range want {
		if got := q.Poll(); got != w {
			t.Fatalf("poll %d = %v, want %v", i, got, w)
		}
		// Current plus queued is always the original pair.
		if q.Size() != 1 {
			t.Fatalf("poll %d: size = %d, want 1", i, q.Size())
		}
	}
}

func TestQueue_ToggleLoop(t *testing.T) {
	t.Parallel()
	q := NewQueue()
	if got := q.ToggleLoop(); got != LoopQueue {
		t.Fatalf("toggle from none = %v, want queue", got)
	}
	if got := q.ToggleLoop(); got != LoopNone {
		t.Fatalf("toggle from queue = %v, want none", got)
	}
	q.SetLoopMode(LoopTrack)
	if got := q.ToggleLoop(); got != LoopNone {
		t.Fatalf("toggle from track = %v, want none", got)
	}
}

func TestParseLoopMode(t *testing.T) {
	t.Parallel()
	for in, want := range map[string]LoopMode{
		"none": LoopNone, "Track": LoopTrack, " QUEUE ": LoopQueue,
	} {
		got, err := ParseLoopMode(in)
		if err != nil || got != want {
			t.Fatalf("ParseLoopMode(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseLoopMode("bananas"); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

// ── Structural operations ─────────────────────────────────────────────────────

func TestQueue_InsertRemove(t *testing.T) {
	t.Parallel()
	q := NewQueue()
	a, b, c := track("a", "Alpha", "X"), track("b", "Beta", "Y"), track("c", "Gamma", "Z")
	q.AddMany([]*lavalink.Track{a, c})

	if err := q.Insert(1, b); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := q.Insert(99, b); err == nil {
		t.Fatal("expected error for out-of-range insert")
	}

	got, err := q.Remove(1)
	if err != nil || got != b {
		t.Fatalf("remove(1) = %v, %v; want %v", got, err, b)
	}
	if _, err := q.Remove(5); err == nil {
		t.Fatal("expected error for out-of-range remove")
	}
	if q.Size() != 2 || q.At(0) != a || q.At(1) != c {
		t.Fatal("remaining order wrong after insert/remove")
	}
}

func TestQueue_SkipTo(t *testing.T) {
	t.Parallel()
	q := NewQueue()
	a, b, c := track("a", "Alpha", "X"), track("b", "Beta", "Y"), track("c", "Gamma", "Z")
	q.AddMany([]*lavalink.Track{a, b, c})

	got, err := q.SkipTo(2)
	if err != nil || got != c {
		t.Fatalf("SkipTo(2) = %v, %v; want %v", got, err, c)
	}
	if q.Size() != 0 {
		t.Fatalf("size after skip = %d, want 0", q.Size())
	}
	if _, err := q.SkipTo(0); err == nil {
		t.Fatal("expected error skipping in an empty queue")
	}
}

func TestQueue_MoveSwapReverse(t *testing.T) {
	t.Parallel()
	q := NewQueue()
	a, b, c := track("a", "Alpha", "X"), track("b", "Beta", "Y"), track("c", "Gamma", "Z")
	q.AddMany([]*lavalink.Track{a, b, c})

	if err := q.Move(0, 2); err != nil {
		t.Fatalf("move: %v", err)
	}
	if q.At(2) != a || q.At(0) != b {
		t.Fatal("move did not relocate the track")
	}
	if err := q.Swap(0, 1); err != nil {
		t.Fatalf("swap: %v", err)
	}
	if q.At(0) != c || q.At(1) != b {
		t.Fatal("swap did not exchange the tracks")
	}
	q.Reverse()
	if q.At(0) != a || q.At(2) != c {
		t.Fatal("reverse did not flip the order")
	}
	if err := q.Move(0, 9); err == nil {
		t.Fatal("expected error for out-of-range move")
	}
}

func TestQueue_Slice(t *testing.T) {
	t.Parallel()
	q := NewQueue()
	tracks := []*lavalink.Track{
		track("a", "Alpha", "X"), track("b", "Beta", "Y"), track("c", "Gamma", "Z"),
	}
	q.AddMany(tracks)

	if got := q.Slice(0, -1); len(got) != 3 {
		t.Fatalf("Slice(0, -1) len = %d, want 3", len(got))
	}
	if got := q.Slice(1, 2); len(got) != 1 || got[0] != tracks[1] {
		t.Fatalf("Slice(1, 2) = %v", got)
	}
	if got := q.Slice(-5, 99); len(got) != 3 {
		t.Fatalf("clamped slice len = %d, want 3", len(got))
	}
	if got := q.Slice(2, 1); got != nil {
		t.Fatalf("inverted slice = %v, want nil", got)
	}
}

// ── Filters and dedup ─────────────────────────────────────────────────────────

func TestQueue_Filters(t *testing.T) {
	t.Parallel()
	q := NewQueue()
	short := track("s", "Short", "Mili")
	short.Info.Length = 60_000
	long := track("l", "Long", "MILI")
	long.Info.Length = 600_000
	other := track("o", "Other", "Kenshi Yonezu")
	other.Info.SourceName = "soundcloud"
	q.AddMany([]*lavalink.Track{short, long, other})

	if got := q.FilterByAuthor("mili"); len(got) != 2 {
		t.Fatalf("FilterByAuthor = %d tracks, want 2", len(got))
	}
	if got := q.FilterByDuration(0, 2*time.Minute); len(got) != 1 || got[0] != short {
		t.Fatalf("FilterByDuration = %v", got)
	}
	if got := q.FilterBySource("SoundCloud"); len(got) != 1 || got[0] != other {
		t.Fatalf("FilterBySource = %v", got)
	}
	if got := q.FindIndex(func(tr *lavalink.Track) bool { return tr.Info.Title == "Long" }); got != 1 {
		t.Fatalf("FindIndex = %d, want 1", got)
	}
	if got := q.Find(func(tr *lavalink.Track) bool { return false }); got != nil {
		t.Fatalf("Find with false predicate = %v, want nil", got)
	}
}

func TestQueue_RemoveByAuthorAndDuplicates(t *testing.T) {
	t.Parallel()
	q := NewQueue()
	q.AddMany([]*lavalink.Track{
		track("a", "One", "Mili"),
		track("b", "Two", "Aimer"),
		track("a", "One again", "Mili"),
		track("c", "Three", "mili"),
	})

	if got := q.RemoveDuplicates(); got != 1 {
		t.Fatalf("RemoveDuplicates removed %d, want 1", got)
	}
	if got := q.RemoveByAuthor("mili"); got != 2 {
		t.Fatalf("RemoveByAuthor removed %d, want 2", got)
	}
	if q.Size() != 1 || q.At(0).Info.Author != "Aimer" {
		t.Fatal("unexpected survivors")
	}
}

// ── Durations, summary, clone ─────────────────────────────────────────────────

func TestQueue_Durations(t *testing.T) {
	t.Parallel()
	q := NewQueue()
	a := track("a", "Alpha", "X")
	a.Info.Length = 60_000
	b := track("b", "Beta", "Y")
	b.Info.Length = 120_000
	q.AddMany([]*lavalink.Track{a, b})

	if got := q.Duration(); got != 3*time.Minute {
		t.Fatalf("Duration = %v, want 3m", got)
	}

	q.Poll() // a becomes current
	if got := q.Duration(); got != 2*time.Minute {
		t.Fatalf("Duration after poll = %v, want 2m", got)
	}
	if got := q.TotalDuration(); got != 3*time.Minute {
		t.Fatalf("TotalDuration = %v, want 3m", got)
	}

	stream := track("s", "Radio", "Z")
	stream.Info.IsStream = true
	q.SetCurrent(stream)
	if got := q.TotalDuration(); got != 2*time.Minute {
		t.Fatalf("TotalDuration with live current = %v, want 2m", got)
	}
}

func TestQueue_Summary(t *testing.T) {
	t.Parallel()
	q := NewQueue()
	q.AddMany([]*lavalink.Track{
		track("a", "One", "Mili"),
		track("b", "Two", "mili"),
		track("c", "Three", "Aimer"),
	})
	q.SetLoopMode(LoopQueue)

	s := q.Summary()
	if s.Size != 3 || s.IsEmpty || s.LoopMode != LoopQueue {
		t.Fatalf("summary shape wrong: %+v", s)
	}
	if len(s.UniqueAuthors) != 2 {
		t.Fatalf("UniqueAuthors = %v, want 2 entries", s.UniqueAuthors)
	}
	if len(s.UniqueSources) != 1 || s.UniqueSources[0] != "youtube" {
		t.Fatalf("UniqueSources = %v", s.UniqueSources)
	}
	if s.String() == "" {
		t.Fatal("summary string empty")
	}
}

func TestQueue_CloneIsIndependent(t *testing.T) {
	t.Parallel()
	q := NewQueue()
	a, b := track("a", "Alpha", "X"), track("b", "Beta", "Y")
	q.AddMany([]*lavalink.Track{a, b})
	q.Poll()
	q.SetLoopMode(LoopTrack)

	c := q.Clone()
	if c.Size() != q.Size() || c.Current() != q.Current() || c.LoopMode() != LoopTrack {
		t.Fatal("clone does not match source")
	}
	c.Clear()
	if q.Size() != 1 {
		t.Fatal("clearing the clone affected the source")
	}
}

func TestQueue_ClearAndReset(t *testing.T) {
	t.Parallel()
	q := NewQueue()
	q.Add(track("a", "Alpha", "X"))
	q.Poll()
	q.Add(track("b", "Beta", "Y"))
	q.SetLoopMode(LoopQueue)

	q.Clear()
	if !q.IsEmpty() || q.Current() == nil {
		t.Fatal("Clear should keep current")
	}

	q.Reset()
	if q.Current() != nil || q.Previous() != nil || q.LoopMode() != LoopNone {
		t.Fatal("Reset should drop everything")
	}
}
