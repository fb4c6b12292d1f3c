package keychain

import (
	"bytes"
	"sort"
	"sync"

	"github.com/benaskins/securestore/internal/securestore"
)

type identity struct {
	service string
	key     string
}

type memoryItem struct {
	data   []byte
	access *securestore.AccessPolicy
}

// MemoryStore is an in-memory ItemStore for tests and ephemeral use.
// It enforces access policies through its Guard like the persistent stores.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[identity]*memoryItem
	guard Guard
}

// NewMemoryStore creates an empty store. guard may be nil, in which case
// protected items cannot be read.
func NewMemoryStore(guard Guard) *MemoryStore {
	return &MemoryStore{
		items: make(map[identity]*memoryItem),
		guard: guard,
	}
}

func (s *MemoryStore) Add(item securestore.Item) securestore.Status {
	if item.Service == "" || item.Key == "" {
		return securestore.StatusParam
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := identity{item.Service, item.Key}
	if _, ok := s.items[id]; ok {
		return securestore.StatusDuplicateItem
	}
	var access *securestore.AccessPolicy
	if item.Access != nil {
		cp := *item.Access
		access = &cp
	}
	s.items[id] = &memoryItem{data: bytes.Clone(item.Data), access: access}
	return securestore.StatusSuccess
}

func (s *MemoryStore) Update(p securestore.Predicate, data []byte) securestore.Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := false
	for id, it := range s.items {
		if p.Matches(id.service, id.key) {
			it.data = bytes.Clone(data)
			matched = true
		}
	}
	if !matched {
		return securestore.StatusItemNotFound
	}
	return securestore.StatusSuccess
}

func (s *MemoryStore) CopyMatching(p securestore.Predicate) ([]securestore.Result, securestore.Status) {
	// The guard may block on a prompt, so matches are copied out first.
	s.mu.RLock()
	var ids []identity
	for id := range s.items {
		if p.Matches(id.service, id.key) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].key < ids[j].key })
	if p.Limit == securestore.MatchLimitOne && len(ids) > 1 {
		ids = ids[:1]
	}
	snapshot := make([]memoryItem, len(ids))
	for i, id := range ids {
		snapshot[i] = *s.items[id]
	}
	s.mu.RUnlock()

	if len(ids) == 0 {
		return nil, securestore.StatusItemNotFound
	}

	results := make([]securestore.Result, 0, len(ids))
	for i, id := range ids {
		r := securestore.Result{Service: id.service}
		if p.ReturnAttributes {
			r.Key = id.key
			r.Access = snapshot[i].access
		}
		if p.ReturnData && !withholdData(p, snapshot[i].access) {
			if status := requirePresence(s.guard, id.service, id.key, snapshot[i].access); !status.OK() {
				return nil, status
			}
			r.Data = bytes.Clone(snapshot[i].data)
		}
		results = append(results, r)
	}
	return results, securestore.StatusSuccess
}

func (s *MemoryStore) Delete(p securestore.Predicate) securestore.Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id := range s.items {
		if p.Matches(id.service, id.key) {
			delete(s.items, id)
			removed++
		}
	}
	if removed == 0 {
		return securestore.StatusItemNotFound
	}
	return securestore.StatusSuccess
}

// Len returns the number of stored items across all services.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
