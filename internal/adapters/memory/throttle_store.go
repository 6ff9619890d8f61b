package memory

import (
	"context"
	"sync"
	"time"

	"github.com/chattyhq/export-service/internal/ports"
)

type throttleEntry struct {
	state       ports.ThrottleState
	windowStart time.Time
	window      time.Duration
}

// ThrottleStore is a process-local fixed-window throttle for dev and tests.
type ThrottleStore struct {
	mu      sync.Mutex
	entries map[string]throttleEntry
}

func NewThrottleStore() *ThrottleStore {
	return &ThrottleStore{entries: make(map[string]throttleEntry)}
}

func (s *ThrottleStore) Get(_ context.Context, key string) (ports.ThrottleState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	if !ok {
		return ports.ThrottleState{}, nil
	}
	return entry.state, nil
}

func (s *ThrottleStore) RecordAttempt(_ context.Context, key string, now time.Time, threshold int, window time.Duration) (ports.ThrottleState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok || now.Sub(entry.windowStart) > entry.window {
		entry = throttleEntry{windowStart: now, window: window}
	}
	entry.state.AttemptCount++
	if entry.state.AttemptCount >= threshold {
		blockedUntil := now.Add(window).UTC()
		entry.state.BlockedUntil = &blockedUntil
	}
	s.entries[key] = entry
	return entry.state, nil
}

func (s *ThrottleStore) Clear(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}
