// Package optimistic holds speculative client state that is confirmed
// asynchronously against the backend.
//
// A Value carries a generation counter. Reset bumps it, and every write
// that started under an older generation is dropped, so a response that
// lands after the owning session went away can never resurrect state.
package optimistic

import (
	"context"
	"sync"
)

// Value is a mutex-guarded piece of state plus its generation.
type Value[T any] struct {
	mu      sync.Mutex
	current T
	gen     uint64
	clone   func(T) T
}

// NewValue builds a Value. clone must return a copy that shares no
// mutable memory with its input.
func NewValue[T any](initial T, clone func(T) T) *Value[T] {
	return &Value[T]{current: initial, clone: clone}
}

// Get returns a copy of the current state.
func (v *Value[T]) Get() T {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.clone(v.current)
}

// Generation returns the current generation.
func (v *Value[T]) Generation() uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.gen
}

// Reset replaces the state and invalidates every in-flight write.
func (v *Value[T]) Reset(state T) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.current = state
	v.gen++
}

// Store replaces the state if no reset happened since gen was read.
func (v *Value[T]) Store(gen uint64, state T) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.gen != gen {
		return false
	}
	v.current = state
	return true
}

// Command is one speculative mutation: the snapshot taken before it, the
// state it installed, and the generation it belongs to.
type Command[T any] struct {
	value       *Value[T]
	gen         uint64
	Previous    T
	Speculative T
}

// Begin applies mutate to a copy of the current state and installs the
// result immediately.
func (v *Value[T]) Begin(mutate func(T) T) *Command[T] {
	v.mu.Lock()
	defer v.mu.Unlock()
	prev := v.clone(v.current)
	next := mutate(v.clone(v.current))
	v.current = next
	return &Command[T]{
		value:       v,
		gen:         v.gen,
		Previous:    prev,
		Speculative: v.clone(next),
	}
}

// Settle folds the confirmed result into the live state, for example to
// attach a server-assigned id. A nil settle is a no-op.
func (c *Command[T]) Settle(settle func(T) T) bool {
	if settle == nil {
		return true
	}
	c.value.mu.Lock()
	defer c.value.mu.Unlock()
	if c.value.gen != c.gen {
		return false
	}
	c.value.current = settle(c.value.current)
	return true
}

// Rollback restores the snapshot captured by Begin.
func (c *Command[T]) Rollback() bool {
	return c.value.Store(c.gen, c.value.clone(c.Previous))
}

// Replace installs authoritative state fetched after a rejection.
func (c *Command[T]) Replace(state T) bool {
	return c.value.Store(c.gen, state)
}

// Stale reports whether the value was reset after the command began.
func (c *Command[T]) Stale() bool {
	return c.value.Generation() != c.gen
}

// Recovery selects how a rejected command is undone.
type Recovery int

const (
	// RecoverRollback restores the pre-command snapshot.
	RecoverRollback Recovery = iota
	// RecoverReload replaces local state with a fresh authoritative fetch,
	// falling back to the snapshot when that fetch fails too.
	RecoverReload
)

// Op describes a full optimistic round trip for Run.
type Op[T any] struct {
	Mutate   func(T) T
	Confirm  func(ctx context.Context) error
	Settle   func(T) T
	Recovery Recovery
	Reload   func(ctx context.Context) (T, error)
}

// Run begins the command, awaits confirmation and recovers on rejection.
// The confirmation error is returned unchanged.
func Run[T any](ctx context.Context, v *Value[T], op Op[T]) error {
	cmd := v.Begin(op.Mutate)
	err := op.Confirm(ctx)
	if err == nil {
		cmd.Settle(op.Settle)
		return nil
	}
	if op.Recovery == RecoverReload && op.Reload != nil {
		if state, reloadErr := op.Reload(ctx); reloadErr == nil {
			cmd.Replace(state)
			return err
		}
	}
	cmd.Rollback()
	return err
}
