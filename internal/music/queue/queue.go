// Package queue keeps the per-guild pending track lists. State is created
// lazily on the first enqueue and reclaimed by a background job once a guild
// has been idle past a grace period, so the map does not grow for the lifetime
// of the process.
package queue

import (
	"slices"
	"sync"
	"time"
)

type guildState struct {
	pending    []string
	loop       bool
	lastActive time.Time
}

// Store holds queue state for every guild. Safe for concurrent use; handlers
// for different guilds interleave arbitrarily.
type Store struct {
	mu     sync.Mutex
	guilds map[string]*guildState
	now    func() time.Time
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		guilds: make(map[string]*guildState),
		now:    time.Now,
	}
}

func (s *Store) state(guildID string) *guildState {
	g, ok := s.guilds[guildID]
	if !ok {
		g = &guildState{}
		s.guilds[guildID] = g
	}
	g.lastActive = s.now()
	return g
}

// Enqueue appends a track reference to the guild's pending list.
func (s *Store) Enqueue(guildID, url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g := s.state(guildID)
	g.pending = append(g.pending, url)
}

// DequeueNext pops the front of the pending list. The second return is false
// when the queue is empty.
func (s *Store) DequeueNext(guildID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g := s.state(guildID)
	if len(g.pending) == 0 {
		return "", false
	}
	url := g.pending[0]
	g.pending = g.pending[1:]
	return url, true
}

// Clear empties the pending list and disables loop. Stop implies loop reset.
func (s *Store) Clear(guildID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g := s.state(guildID)
	g.pending = nil
	g.loop = false
}

// SetLoop sets the loop flag.
func (s *Store) SetLoop(guildID string, enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state(guildID).loop = enabled
}

// ToggleLoop flips the loop flag and returns the new value.
func (s *Store) ToggleLoop(guildID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	g := s.state(guildID)
	g.loop = !g.loop
	return g.loop
}

// LoopEnabled reports the loop flag.
func (s *Store) LoopEnabled(guildID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state(guildID).loop
}

// RequeueIfLooping re-inserts a finished track at the front of the pending
// list when loop is enabled, so a single looping track repeats instead of
// cycling through the rest of the queue. Returns whether it requeued.
func (s *Store) RequeueIfLooping(guildID, finished string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	g := s.state(guildID)
	if !g.loop {
		return false
	}
	g.pending = append([]string{finished}, g.pending...)
	return true
}

// Len returns the number of pending tracks.
func (s *Store) Len(guildID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.state(guildID).pending)
}

// Pending returns a copy of the guild's pending list.
func (s *Store) Pending(guildID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.state(guildID).pending)
}

// Reclaim drops guild entries that are empty, not looping, idle for longer
// than grace, and not reported in use. Returns how many entries were dropped.
func (s *Store) Reclaim(grace time.Duration, inUse func(guildID string) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-grace)
	dropped := 0
	for id, g := range s.guilds {
		if len(g.pending) > 0 || g.loop || g.lastActive.After(cutoff) {
			continue
		}
		if inUse != nil && inUse(id) {
			continue
		}
		delete(s.guilds, id)
		dropped++
	}
	return dropped
}
