// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"errors"
	"sync"
)

// ErrAlreadyRunning reports a duplicate submission for a paper whose run has
// not finished.
var ErrAlreadyRunning = errors.New("paper is already being processed")

// Registry provides single-flight execution per paper id within one process.
type Registry struct {
	mu     sync.Mutex
	active map[string]bool
}

func NewRegistry() *Registry {
	return &Registry{active: make(map[string]bool)}
}

// Acquire claims paperID for processing. Exactly one concurrent caller wins;
// the rest get ErrAlreadyRunning.
func (r *Registry) Acquire(paperID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active[paperID] {
		return ErrAlreadyRunning
	}
	r.active[paperID] = true
	return nil
}

// Release frees paperID after a run ends, regardless of outcome.
func (r *Registry) Release(paperID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, paperID)
}

// Running reports whether paperID currently holds the claim.
func (r *Registry) Running(paperID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active[paperID]
}
