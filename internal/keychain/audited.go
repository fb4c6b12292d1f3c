package keychain

import (
	"log/slog"

	"github.com/benaskins/securestore/internal/audit"
	"github.com/benaskins/securestore/internal/securestore"
)

// AuditedStore wraps an ItemStore and records every call in the audit log.
type AuditedStore struct {
	inner securestore.ItemStore
	audit *audit.Logger
	actor string // "cli" or "daemon"
}

// NewAuditedStore wraps an existing store with audit logging.
func NewAuditedStore(inner securestore.ItemStore, auditLog *audit.Logger, actor string) *AuditedStore {
	return &AuditedStore{
		inner: inner,
		audit: auditLog,
		actor: actor,
	}
}

func (s *AuditedStore) Add(item securestore.Item) securestore.Status {
	status := s.inner.Add(item)
	s.log(audit.Entry{
		Action:    audit.ActionItemAdd,
		Service:   item.Service,
		Key:       item.Key,
		Status:    int32(status),
		Protected: item.Access != nil && item.Access.UserPresence,
	})
	return status
}

func (s *AuditedStore) Update(p securestore.Predicate, data []byte) securestore.Status {
	status := s.inner.Update(p, data)
	s.log(audit.Entry{
		Action:  audit.ActionItemUpdate,
		Service: p.Service,
		Key:     p.Key,
		Status:  int32(status),
	})
	return status
}

func (s *AuditedStore) CopyMatching(p securestore.Predicate) ([]securestore.Result, securestore.Status) {
	results, status := s.inner.CopyMatching(p)
	action := audit.ActionItemRead
	if p.Key == "" {
		action = audit.ActionItemList
	}
	entry := audit.Entry{
		Action:  action,
		Service: p.Service,
		Key:     p.Key,
		Status:  int32(status),
	}
	if len(results) == 1 && results[0].Access != nil {
		entry.Protected = results[0].Access.UserPresence
	}
	s.log(entry)
	return results, status
}

func (s *AuditedStore) Delete(p securestore.Predicate) securestore.Status {
	status := s.inner.Delete(p)
	action := audit.ActionItemDelete
	if p.Key == "" {
		action = audit.ActionItemClear
	}
	s.log(audit.Entry{
		Action:  action,
		Service: p.Service,
		Key:     p.Key,
		Status:  int32(status),
	})
	return status
}

// StatusMessage forwards to the wrapped store when it can describe statuses.
func (s *AuditedStore) StatusMessage(status securestore.Status) (string, bool) {
	if r, ok := s.inner.(securestore.MessageResolver); ok {
		return r.StatusMessage(status)
	}
	return "", false
}

func (s *AuditedStore) log(entry audit.Entry) {
	entry.Actor = s.actor
	// Audit logging is best-effort; a failure to log should not block the operation.
	if err := s.audit.Log(entry); err != nil {
		slog.Warn("audit log write failed", "error", err)
	}
}

var _ securestore.MessageResolver = (*AuditedStore)(nil)
