package rias

import "sync"

// emitter is a minimal typed event dispatcher. Handlers are invoked
// synchronously in registration order on the goroutine that emits, which for
// node frames is the node's read loop, so handlers must not block.
type emitter[T any] struct {
	mu   sync.Mutex
	next int
	ids  []int
	fns  map[int]func(T)
}

// on registers fn and returns a function that removes it again.
func (e *emitter[T]) on(fn func(T)) (remove func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.fns == nil {
		e.fns = make(map[int]func(T))
	}
	id := e.next
	e.next++
	e.ids = append(e.ids, id)
	e.fns[id] = fn

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.fns, id)
		for i, v := range e.ids {
			if v == id {
				e.ids = append(e.ids[:i], e.ids[i+1:]...)
				break
			}
		}
	}
}

// emit delivers ev to every registered handler. The handler snapshot is
// taken under the lock; the calls happen outside it so handlers may
// register or remove listeners.
func (e *emitter[T]) emit(ev T) {
	e.mu.Lock()
	snapshot := make([]func(T), 0, len(e.ids))
	for _, id := range e.ids {
		if fn, ok := e.fns[id]; ok {
			snapshot = append(snapshot, fn)
		}
	}
	e.mu.Unlock()

	for _, fn := range snapshot {
		fn(ev)
	}
}

// clear drops all handlers.
func (e *emitter[T]) clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fns = nil
	e.ids = nil
}
