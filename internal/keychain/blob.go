package keychain

import (
	"errors"
	"log/slog"
	"sort"
	"sync"

	"github.com/benaskins/securestore/internal/securestore"
)

var errBlobNotFound = errors.New("item not found")

// blobBackend holds one opaque blob per (service, key). Implementations
// return errBlobNotFound for missing entries.
type blobBackend interface {
	get(service, key string) ([]byte, error)
	set(service, key string, blob []byte) error
	remove(service, key string) error
	keys(service string) ([]string, error)
}

// blobStore implements securestore.ItemStore over a blobBackend by storing
// each item as an envelope. Writes are serialized so duplicate detection
// on Add is atomic within the process.
type blobStore struct {
	mu      sync.Mutex
	backend blobBackend
	guard   Guard
	logger  *slog.Logger
}

func newBlobStore(backend blobBackend, guard Guard, logger *slog.Logger) *blobStore {
	return &blobStore{backend: backend, guard: guard, logger: logger}
}

func (s *blobStore) Add(item securestore.Item) securestore.Status {
	if item.Service == "" || item.Key == "" {
		return securestore.StatusParam
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.backend.get(item.Service, item.Key)
	switch {
	case err == nil:
		return securestore.StatusDuplicateItem
	case !errors.Is(err, errBlobNotFound):
		return s.status("add", err)
	}

	blob, err := encodeEnvelope(envelope{Data: item.Data, Access: newAccessRecord(item.Access)})
	if err != nil {
		return s.status("add", err)
	}
	if err := s.backend.set(item.Service, item.Key, blob); err != nil {
		return s.status("add", err)
	}
	return securestore.StatusSuccess
}

func (s *blobStore) Update(p securestore.Predicate, data []byte) securestore.Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys, status := s.matching(p)
	if !status.OK() {
		return status
	}
	for _, key := range keys {
		raw, err := s.backend.get(p.Service, key)
		if err != nil {
			return s.status("update", err)
		}
		env, err := decodeEnvelope(raw)
		if err != nil {
			return s.status("update", err)
		}
		env.Data = data
		blob, err := encodeEnvelope(env)
		if err != nil {
			return s.status("update", err)
		}
		if err := s.backend.set(p.Service, key, blob); err != nil {
			return s.status("update", err)
		}
	}
	return securestore.StatusSuccess
}

func (s *blobStore) CopyMatching(p securestore.Predicate) ([]securestore.Result, securestore.Status) {
	keys, status := s.matching(p)
	if !status.OK() {
		return nil, status
	}
	if p.Limit == securestore.MatchLimitOne && len(keys) > 1 {
		keys = keys[:1]
	}

	results := make([]securestore.Result, 0, len(keys))
	for _, key := range keys {
		raw, err := s.backend.get(p.Service, key)
		if err != nil {
			if p.Limit == securestore.MatchLimitAll {
				continue
			}
			return nil, s.status("copy", err)
		}
		env, err := decodeEnvelope(raw)
		if err != nil {
			if p.Limit == securestore.MatchLimitAll {
				s.logger.Debug("skipping undecodable item", "service", p.Service, "key", key)
				continue
			}
			return nil, s.status("copy", err)
		}

		access := env.Access.policy()
		r := securestore.Result{Service: p.Service}
		if p.ReturnAttributes {
			r.Key = key
			r.Access = access
		}
		if p.ReturnData && !withholdData(p, access) {
			if status := requirePresence(s.guard, p.Service, key, access); !status.OK() {
				return nil, status
			}
			r.Data = env.Data
		}
		results = append(results, r)
	}
	if len(results) == 0 {
		return nil, securestore.StatusItemNotFound
	}
	return results, securestore.StatusSuccess
}

func (s *blobStore) Delete(p securestore.Predicate) securestore.Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys, status := s.matching(p)
	if !status.OK() {
		return status
	}
	for _, key := range keys {
		if err := s.backend.remove(p.Service, key); err != nil {
			return s.status("delete", err)
		}
	}
	return securestore.StatusSuccess
}

// matching resolves p to the keys it names, in sorted order.
func (s *blobStore) matching(p securestore.Predicate) ([]string, securestore.Status) {
	if p.Service == "" {
		return nil, securestore.StatusParam
	}
	if p.Key != "" {
		if _, err := s.backend.get(p.Service, p.Key); err != nil {
			return nil, s.status("lookup", err)
		}
		return []string{p.Key}, securestore.StatusSuccess
	}

	keys, err := s.backend.keys(p.Service)
	if err != nil {
		return nil, s.status("list", err)
	}
	if len(keys) == 0 {
		return nil, securestore.StatusItemNotFound
	}
	sort.Strings(keys)
	return keys, securestore.StatusSuccess
}

func (s *blobStore) status(op string, err error) securestore.Status {
	switch {
	case errors.Is(err, errBlobNotFound):
		return securestore.StatusItemNotFound
	case errors.Is(err, errReservedService):
		return securestore.StatusParam
	case errors.Is(err, errBadEnvelope):
		s.logger.Warn("undecodable item", "op", op, "error", err)
		return securestore.StatusDecode
	default:
		s.logger.Error("backend error", "op", op, "error", err)
		return securestore.StatusIO
	}
}

// withholdData reports whether a multi-item lookup should skip the secret
// of a protected item rather than prompt once per item.
func withholdData(p securestore.Predicate, access *securestore.AccessPolicy) bool {
	return p.Limit == securestore.MatchLimitAll && access != nil && access.UserPresence
}
