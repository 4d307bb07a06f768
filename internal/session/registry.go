package session

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// Key identifies the session of one user in one channel.
func Key(channelID, userID string) string {
	return channelID + ":" + userID
}

type entry struct {
	mu sync.Mutex
	s  *Session
	// evicted is set under mu once the entry has left the map.
	evicted bool
}

// Registry holds live sessions. Every operation on a session runs under that
// session's lock, so a session never sees interleaved mutations.
type Registry struct {
	mu       sync.Mutex
	opts     Options
	sessions map[string]*entry
}

func NewRegistry(opts Options) *Registry {
	return &Registry{opts: opts, sessions: make(map[string]*entry)}
}

func (r *Registry) entry(key string, create bool) *entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[key]
	if !ok && create {
		e = &entry{s: New(key, r.opts)}
		r.sessions[key] = e
	}
	return e
}

// acquire returns the locked, still registered entry for key. An entry evicted
// between the map lookup and the lock is skipped and looked up again.
func (r *Registry) acquire(key string, create bool) *entry {
	for {
		e := r.entry(key, create)
		if e == nil {
			return nil
		}
		e.mu.Lock()
		if !e.evicted {
			return e
		}
		e.mu.Unlock()
	}
}

// Do runs fn with exclusive access to the session for key, creating it first
// if needed.
func (r *Registry) Do(key string, fn func(*Session) error) error {
	e := r.acquire(key, true)
	defer e.mu.Unlock()
	return fn(e.s)
}

// Lookup runs fn only when a session for key already exists. It reports
// whether fn ran.
func (r *Registry) Lookup(key string, fn func(*Session) error) (bool, error) {
	e := r.acquire(key, false)
	if e == nil {
		return false, nil
	}
	defer e.mu.Unlock()
	return true, fn(e.s)
}

// Keys returns the keys of all live sessions, sorted.
func (r *Registry) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]string, 0, len(r.sessions))
	for k := range r.sessions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Each visits every session in key order, one at a time.
func (r *Registry) Each(fn func(*Session) error) error {
	for _, key := range r.Keys() {
		if _, err := r.Lookup(key, fn); err != nil {
			return err
		}
	}
	return nil
}

// Evict drops sessions idle since before cutoff. It returns how many were removed.
func (r *Registry) Evict(cutoff time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for key, e := range r.sessions {
		if !e.mu.TryLock() {
			continue
		}
		if e.s.LastActive().Before(cutoff) {
			e.evicted = true
			delete(r.sessions, key)
			removed++
		}
		e.mu.Unlock()
	}
	return removed
}

// SplitKey reverses Key.
func SplitKey(key string) (channelID, userID string) {
	channelID, userID, _ = strings.Cut(key, ":")
	return channelID, userID
}
