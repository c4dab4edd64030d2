// Package ristretto implements the artifact store port on an in-process
// ristretto cache. Artifacts are session-scoped working data, so bounded
// memory with TTL eviction fits better than durable storage.
package ristretto

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/agentmesh/agentmesh/internal/config"
	"github.com/agentmesh/agentmesh/internal/port/artifactstore"
)

// Store holds file artifacts keyed by their declared name.
type Store struct {
	cache *ristretto.Cache[string, artifactstore.Artifact]
	ttl   time.Duration
}

// NewStore creates a store bounded by cfg.MaxBytes with per-entry TTL.
func NewStore(cfg config.Cache) (*Store, error) {
	cache, err := ristretto.NewCache(&ristretto.Config[string, artifactstore.Artifact]{
		NumCounters: 1e5,
		MaxCost:     cfg.MaxBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create artifact cache: %w", err)
	}
	return &Store{cache: cache, ttl: cfg.ArtifactTTL}, nil
}

// Save persists the artifact under its name, replacing any previous entry.
func (s *Store) Save(_ context.Context, a artifactstore.Artifact) error {
	if a.Name == "" {
		return fmt.Errorf("artifact without a name")
	}
	cost := int64(len(a.Data))
	if cost == 0 {
		cost = 1
	}
	s.cache.SetWithTTL(a.Name, a, cost, s.ttl)
	// Make the write visible to an immediate Load in the same request.
	s.cache.Wait()
	return nil
}

// Load retrieves an artifact by name.
func (s *Store) Load(_ context.Context, name string) (artifactstore.Artifact, bool, error) {
	a, ok := s.cache.Get(name)
	if !ok {
		return artifactstore.Artifact{}, false, nil
	}
	return a, true, nil
}

// Close releases the cache's background resources.
func (s *Store) Close() {
	s.cache.Close()
}
