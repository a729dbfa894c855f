// Package memory provides an in-memory implementation of the persistence
// ports, used by tests and by single-node deployments that do not need
// durable storage. One Store holds the committed state; every unit of work
// stages its writes privately and applies them atomically on commit.
package memory

import (
	"sync"

	"github.com/google/uuid"

	"github.com/edgefleet/armada/internal/domain"
)

type Store struct {
	mu      sync.RWMutex
	devices map[uuid.UUID]*domain.DeviceEntity
	serials map[string]uuid.UUID
	groups  map[uuid.UUID]*domain.DeviceGroup
	events  map[uuid.UUID][]domain.DomainEvent
	log     []domain.StoredEvent
	seq     int64
}

func NewStore() *Store {
	return &Store{
		devices: make(map[uuid.UUID]*domain.DeviceEntity),
		serials: make(map[string]uuid.UUID),
		groups:  make(map[uuid.UUID]*domain.DeviceGroup),
		events:  make(map[uuid.UUID][]domain.DomainEvent),
	}
}

// eventCountLocked returns the committed event count for an aggregate.
// Callers must hold s.mu.
func (s *Store) eventCountLocked(aggregateID uuid.UUID) int {
	return len(s.events[aggregateID])
}
