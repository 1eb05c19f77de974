// Package lzctest provides test doubles for exercising clients
// without a real storage backend: a list runtime that counts
// outstanding containers and injects allocation failures, and an
// in-memory driver that mimics backend status codes and error
// lists.
package lzctest

import (
	"errors"
	"sync"

	"github.com/mikoim/lzc/nvpair"
)

// ErrAllocLimit is returned by a CountingRuntime allocation beyond
// its configured limit.
var ErrAllocLimit = errors.New("lzctest: allocation limit reached")

// A CountingRuntime is an nvpair.Runtime that tracks every container
// it hands out. Tests use it to verify that operations release all
// containers on every path, including failure paths.
type CountingRuntime struct {
	// FailAfter, when positive, makes every allocation past the
	// first FailAfter successful ones fail with ErrAllocLimit.
	FailAfter int

	mu         sync.Mutex
	allocs     int
	frees      int
	extraFrees int
	live       map[*nvpair.List]struct{}
}

func (r *CountingRuntime) Alloc() (*nvpair.List, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailAfter > 0 && r.allocs >= r.FailAfter {
		return nil, ErrAllocLimit
	}
	l := nvpair.NewList(r)
	r.allocs++
	if r.live == nil {
		r.live = make(map[*nvpair.List]struct{})
	}
	r.live[l] = struct{}{}
	return l, nil
}

func (r *CountingRuntime) Free(l *nvpair.List) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.live[l]; !ok {
		r.extraFrees++
		return
	}
	delete(r.live, l)
	r.frees++
}

// Allocs returns the number of successful allocations so far.
func (r *CountingRuntime) Allocs() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.allocs
}

// Frees returns the number of releases of tracked containers.
func (r *CountingRuntime) Frees() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frees
}

// ExtraFrees returns the number of releases of containers this
// runtime never handed out.
func (r *CountingRuntime) ExtraFrees() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.extraFrees
}

// Live returns the number of containers allocated but not yet
// released.
func (r *CountingRuntime) Live() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.live)
}
