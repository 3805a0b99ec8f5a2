package codetrack

import (
	"sort"
	"sync"
)

// registry maps document identities to their FileState. Lifecycle is
// one-to-one with document open/close; there is no process-wide
// ambient state.
type registry struct {
	mu    sync.RWMutex
	files map[string]*FileState
}

func newRegistry() *registry {
	return &registry{files: make(map[string]*FileState)}
}

// getOrCreate returns the state for uri, creating it on first use.
func (r *registry) getOrCreate(uri string) *FileState {
	r.mu.RLock()
	fs, ok := r.files[uri]
	r.mu.RUnlock()
	if ok {
		return fs
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if fs, ok := r.files[uri]; ok {
		return fs
	}
	fs = newFileState(uri)
	r.files[uri] = fs
	return fs
}

// get returns the state for uri if it is tracked.
func (r *registry) get(uri string) (*FileState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fs, ok := r.files[uri]
	return fs, ok
}

// remove forgets a document entirely. Used on document close.
func (r *registry) remove(uri string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.files, uri)
}

// all returns every tracked FileState, ordered by uri for stable output.
func (r *registry) all() []*FileState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*FileState, 0, len(r.files))
	for _, fs := range r.files {
		out = append(out, fs)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].uri < out[j].uri })
	return out
}

func (r *registry) size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.files)
}
