package rias

import "testing"

func TestEmitter_RegistrationOrder(t *testing.T) {
	t.Parallel()
	var e emitter[int]
	var got []string
	e.on(func(int) { got = append(got, "first") })
	e.on(func(int) { got = append(got, "second") })
	e.on(func(int) { got = append(got, "third") })

	e.emit(1)
	want := []string{"first", "second", "third"}
	if len(got) != len(want) {
		t.Fatalf("handlers called %d times, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("call order %v, want %v", got, want)
		}
	}
}

func TestEmitter_Remove(t *testing.T) {
	t.Parallel()
	var e emitter[string]
	calls := 0
	remove := e.on(func(string) { calls++ })

	e.emit("a")
	remove()
	e.emit("b")
	remove() // removing twice is harmless

	if calls != 1 {
		t.Fatalf("handler called %d times, want 1", calls)
	}
}

func TestEmitter_HandlerMayRegisterDuringEmit(t *testing.T) {
	t.Parallel()
	var e emitter[int]
	lateCalls := 0
	e.on(func(int) {
		e.on(func(int) { lateCalls++ })
	})

	e.emit(1)
	if lateCalls != 0 {
		t.Fatal("handler registered mid-emit must not see the current event")
	}
	e.emit(2)
	if lateCalls != 1 {
		t.Fatalf("late handler called %d times after second emit, want 1", lateCalls)
	}
}

func TestEmitter_HandlerMayRemoveSelfDuringEmit(t *testing.T) {
	t.Parallel()
	var e emitter[int]
	calls := 0
	var remove func()
	remove = e.on(func(int) {
		calls++
		remove()
	})

	e.emit(1)
	e.emit(2)
	if calls != 1 {
		t.Fatalf("self-removing handler called %d times, want 1", calls)
	}
}

func TestEmitter_Clear(t *testing.T) {
	t.Parallel()
	var e emitter[int]
	calls := 0
	e.on(func(int) { calls++ })
	e.on(func(int) { calls++ })

	e.clear()
	e.emit(1)
	if calls != 0 {
		t.Fatalf("handlers called %d times after clear, want 0", calls)
	}

	// The emitter stays usable after a clear.
	e.on(func(int) { calls++ })
	e.emit(2)
	if calls != 1 {
		t.Fatalf("handler registered after clear called %d times, want 1", calls)
	}
}

func TestEmitter_ZeroValueEmitIsSafe(t *testing.T) {
	t.Parallel()
	var e emitter[int]
	e.emit(1) // no handlers registered
}
