package identity

import (
	"slices"
	"sync"
)

// Rotation is a lazy, infinite, restartable sequence that returns the same
// group of values for interval consecutive calls before drawing a new
// group.
//
// Keeping an identity for a few requests looks less like abuse to the
// remote service than switching on every request.
//
// Example:
//
//	r := pool.After(4, 1)
//	for _, id := range ids {
//	    group, err := r.Next() // same identity for 4 calls in a row
//	    ...
//	}
type Rotation[T any] struct {
	mu       sync.Mutex
	interval int
	groups   int
	draw     func() (T, error)
	current  []T
	calls    int
}

// NewRotation creates a rotation drawing groups values from draw every
// interval calls. Values below 1 are treated as 1.
func NewRotation[T any](interval, groups int, draw func() (T, error)) *Rotation[T] {
	return &Rotation[T]{
		interval: max(interval, 1),
		groups:   max(groups, 1),
		draw:     draw,
	}
}

// Next returns the current group, drawing a new one when the interval is
// used up. A failed draw leaves the rotation unchanged, so the next call
// tries again.
func (r *Rotation[T]) Next() ([]T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current == nil || r.calls%r.interval == 0 {
		group := make([]T, 0, r.groups)
		for range r.groups {
			v, err := r.draw()
			if err != nil {
				return nil, err
			}
			group = append(group, v)
		}
		r.current = group
		r.calls = 0
	}
	r.calls++
	return slices.Clone(r.current), nil
}

// Reset drops the current group; the next call draws a fresh one.
func (r *Rotation[T]) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = nil
	r.calls = 0
}
