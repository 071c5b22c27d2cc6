// Package custodyfakes provides in-memory fakes for service tests.
package custodyfakes

import (
	"context"
	"sync"

	custody "github.com/louisbranch/custody.space/internal/custody/domain"
	"github.com/louisbranch/custody.space/internal/state/event"
	"github.com/louisbranch/custody.space/internal/storage"
	vault "github.com/louisbranch/custody.space/internal/vault/domain"
)

// Store is an in-memory implementation of the storage interfaces.
type Store struct {
	mu       sync.Mutex
	items    map[custody.ItemID]custody.Item
	vaults   map[string]vault.Vault
	scheds   map[string]vault.FeeSchedule
	triggers map[string]vault.TriggerParams
	members  map[custody.ItemID]storage.PoolMember
	events   []event.Event
	nextID   int64
}

// NewStore returns an empty in-memory store.
func NewStore() *Store {
	return &Store{
		items:    make(map[custody.ItemID]custody.Item),
		vaults:   make(map[string]vault.Vault),
		scheds:   make(map[string]vault.FeeSchedule),
		triggers: make(map[string]vault.TriggerParams),
		members:  make(map[custody.ItemID]storage.PoolMember),
	}
}

// PutItem stores an item record.
func (s *Store) PutItem(_ context.Context, item custody.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[item.ID] = item
	return nil
}

// GetItem loads an item record.
func (s *Store) GetItem(_ context.Context, id custody.ItemID) (custody.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return custody.Item{}, storage.ErrNotFound
	}
	return item, nil
}

// PutVault stores a vault record.
func (s *Store) PutVault(_ context.Context, v vault.Vault) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vaults[v.Target.String()] = v
	return nil
}

// GetVault loads a vault record.
func (s *Store) GetVault(_ context.Context, target vault.Target) (vault.Vault, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vaults[target.String()]
	if !ok {
		return vault.Vault{}, storage.ErrNotFound
	}
	return v, nil
}

// ListActiveVaults returns every vault with a nonzero item count.
func (s *Store) ListActiveVaults(_ context.Context) ([]vault.Vault, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var active []vault.Vault
	for _, v := range s.vaults {
		if v.Active() {
			active = append(active, v)
		}
	}
	return active, nil
}

// PutSchedule stores a fee schedule.
func (s *Store) PutSchedule(_ context.Context, sched vault.FeeSchedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scheds[sched.Collection] = sched
	return nil
}

// GetSchedule loads a fee schedule.
func (s *Store) GetSchedule(_ context.Context, collection string) (vault.FeeSchedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sched, ok := s.scheds[collection]
	if !ok {
		return vault.FeeSchedule{}, storage.ErrNotFound
	}
	return sched, nil
}

// PutTriggerParams stores auction trigger parameters.
func (s *Store) PutTriggerParams(_ context.Context, params vault.TriggerParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.triggers[params.Collection] = params
	return nil
}

// GetTriggerParams loads auction trigger parameters.
func (s *Store) GetTriggerParams(_ context.Context, collection string) (vault.TriggerParams, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	params, ok := s.triggers[collection]
	if !ok {
		return vault.TriggerParams{}, storage.ErrNotFound
	}
	return params, nil
}

// PutPoolMember stores a pool membership.
func (s *Store) PutPoolMember(_ context.Context, member storage.PoolMember) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[member.ItemID] = member
	return nil
}

// GetPoolMember loads a pool membership.
func (s *Store) GetPoolMember(_ context.Context, id custody.ItemID) (storage.PoolMember, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	member, ok := s.members[id]
	if !ok {
		return storage.PoolMember{}, storage.ErrNotFound
	}
	return member, nil
}

// DeletePoolMember removes a pool membership.
func (s *Store) DeletePoolMember(_ context.Context, id custody.ItemID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.members, id)
	return nil
}

// AppendEvent appends a journal event.
func (s *Store) AppendEvent(_ context.Context, evt event.Event) (event.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	evt.ID = s.nextID
	s.events = append(s.events, evt)
	return evt, nil
}

// ListEvents returns up to limit journaled events for a collection.
func (s *Store) ListEvents(_ context.Context, collection string, limit int) ([]event.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 {
		limit = 100
	}
	var events []event.Event
	for _, evt := range s.events {
		if evt.Collection != collection {
			continue
		}
		events = append(events, evt)
		if len(events) == limit {
			break
		}
	}
	return events, nil
}

// Events returns every journaled event regardless of collection.
func (s *Store) Events() []event.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]event.Event(nil), s.events...)
}

// EventTypes returns the journaled event types in append order.
func (s *Store) EventTypes() []event.Type {
	s.mu.Lock()
	defer s.mu.Unlock()
	types := make([]event.Type, 0, len(s.events))
	for _, evt := range s.events {
		types = append(types, evt.Type)
	}
	return types
}
