package ws

import (
	"sync"

	"github.com/google/uuid"
)

// Registry tracks the agent resumption identifier for each live channel.
// Entries are keyed by a generated connection id rather than the socket
// itself, and are removed the moment the channel closes. An empty value
// means the channel has not completed a turn yet.
type Registry struct {
	mu     sync.Mutex
	resume map[string]string
}

func NewRegistry() *Registry {
	return &Registry{resume: make(map[string]string)}
}

// Add registers a new channel and returns its connection id.
func (r *Registry) Add() string {
	id := uuid.NewString()
	r.mu.Lock()
	r.resume[id] = ""
	r.mu.Unlock()
	return id
}

// Resume returns the identifier captured from the channel's previous turn,
// or "" when there is none (or the channel is already gone).
func (r *Registry) Resume(id string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resume[id]
}

// SetResume overwrites the channel's identifier with the one from the
// current turn. A channel that has already been removed stays removed.
func (r *Registry) SetResume(id string, resume string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.resume[id]; !ok {
		return
	}
	r.resume[id] = resume
}

// Remove drops the channel's entry.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.resume, id)
}

// Len reports the number of live channels.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.resume)
}
