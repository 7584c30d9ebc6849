// Package memory holds the vector-memory collaborator. Memory entries are
// free-form objects, opaque to the engine: they are handed to the generate
// call as context, grown from the entries each generate call returns, and
// deleted only after explicit user confirmation.
package memory

import (
	"context"
	"sync"
)

// Store is the vector-memory collaborator injected into the engine.
type Store interface {
	// Context returns the memory entries for the conversation, forwarded
	// verbatim to the generate call.
	Context(ctx context.Context, conversationID string) ([]map[string]any, error)
	// Absorb records the entries a generate call returned.
	Absorb(ctx context.Context, conversationID string, entries []map[string]any) error
	// Delete removes the given memory ids.
	Delete(ctx context.Context, conversationID string, ids []string) error
}

// LocalStore accumulates the memory entries returned by generate calls and
// plays them back as context. It is the store used with backends that keep
// vector memory server-side only between turns.
type LocalStore struct {
	mu      sync.Mutex
	entries map[string][]map[string]any
}

// NewLocalStore returns an empty accumulator.
func NewLocalStore() *LocalStore {
	return &LocalStore{entries: make(map[string][]map[string]any)}
}

func (s *LocalStore) Context(ctx context.Context, conversationID string) ([]map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]map[string]any(nil), s.entries[conversationID]...), nil
}

func (s *LocalStore) Absorb(ctx context.Context, conversationID string, entries []map[string]any) error {
	if len(entries) == 0 {
		return nil
	}
	s.mu.Lock()
	s.entries[conversationID] = append(s.entries[conversationID], entries...)
	s.mu.Unlock()
	return nil
}

func (s *LocalStore) Delete(ctx context.Context, conversationID string, ids []string) error {
	doomed := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		doomed[id] = struct{}{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.entries[conversationID][:0]
	for _, e := range s.entries[conversationID] {
		if id, ok := e["id"].(string); ok {
			if _, gone := doomed[id]; gone {
				continue
			}
		}
		kept = append(kept, e)
	}
	s.entries[conversationID] = kept
	return nil
}
