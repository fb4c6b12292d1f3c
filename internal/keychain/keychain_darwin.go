//go:build darwin

package keychain

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	gokeychain "github.com/keybase/go-keychain"

	"github.com/benaskins/securestore/internal/securestore"
)

// Protected items carry their access record in the item description.
const presenceDescription = "securestore:presence;reuse="

// SystemStore keeps items in the macOS Keychain as generic passwords.
type SystemStore struct {
	guard  Guard
	logger *slog.Logger
}

// NewSystemStore creates a Keychain-backed item store.
func NewSystemStore(guard Guard) (securestore.ItemStore, error) {
	return &SystemStore{
		guard:  guard,
		logger: slog.With("component", "keychain", "backend", "system"),
	}, nil
}

func (s *SystemStore) Add(item securestore.Item) securestore.Status {
	kc := gokeychain.NewItem()
	kc.SetSecClass(gokeychain.SecClassGenericPassword)
	kc.SetService(item.Service)
	kc.SetAccount(item.Key)
	kc.SetLabel(fmt.Sprintf("%s: %s", item.Service, item.Key))
	kc.SetData(item.Data)
	kc.SetSynchronizable(gokeychain.SynchronizableNo)
	if item.Access != nil {
		kc.SetAccessible(gokeychain.AccessibleWhenPasscodeSetThisDeviceOnly)
		kc.SetDescription(encodeDescription(item.Access))
	} else {
		kc.SetAccessible(gokeychain.AccessibleWhenUnlockedThisDeviceOnly)
	}
	return s.status("add", gokeychain.AddItem(kc))
}

func (s *SystemStore) Update(p securestore.Predicate, data []byte) securestore.Status {
	update := gokeychain.NewItem()
	update.SetData(data)
	return s.status("update", gokeychain.UpdateItem(query(p), update))
}

func (s *SystemStore) CopyMatching(p securestore.Predicate) ([]securestore.Result, securestore.Status) {
	// Attributes first, so a presence check happens before any secret is read.
	q := query(p)
	q.SetReturnAttributes(true)
	q.SetReturnData(false)
	if p.Limit == securestore.MatchLimitAll {
		q.SetMatchLimit(gokeychain.MatchLimitAll)
	} else {
		q.SetMatchLimit(gokeychain.MatchLimitOne)
	}
	found, err := gokeychain.QueryItem(q)
	if status := s.status("copy", err); !status.OK() {
		return nil, status
	}
	if len(found) == 0 {
		return nil, securestore.StatusItemNotFound
	}

	results := make([]securestore.Result, 0, len(found))
	for _, f := range found {
		access := decodeDescription(f.Description)
		r := securestore.Result{Service: f.Service}
		if p.ReturnAttributes {
			r.Key = f.Account
			r.Access = access
		}
		if p.ReturnData && !withholdData(p, access) {
			if status := requirePresence(s.guard, f.Service, f.Account, access); !status.OK() {
				return nil, status
			}
			data, status := s.readData(f.Service, f.Account)
			if !status.OK() {
				return nil, status
			}
			r.Data = data
		}
		results = append(results, r)
	}
	return results, securestore.StatusSuccess
}

func (s *SystemStore) readData(service, account string) ([]byte, securestore.Status) {
	q := query(securestore.ForLookup(service, account))
	q.SetMatchLimit(gokeychain.MatchLimitOne)
	q.SetReturnData(true)
	found, err := gokeychain.QueryItem(q)
	if status := s.status("read", err); !status.OK() {
		return nil, status
	}
	if len(found) == 0 {
		return nil, securestore.StatusItemNotFound
	}
	if found[0].Data == nil {
		return []byte{}, securestore.StatusSuccess
	}
	return found[0].Data, securestore.StatusSuccess
}

func (s *SystemStore) Delete(p securestore.Predicate) securestore.Status {
	if p.Key != "" {
		return s.status("delete", gokeychain.DeleteItem(query(p)))
	}

	// Delete account by account; a bare service query may only remove the
	// first match on macOS.
	accounts, err := gokeychain.GetGenericPasswordAccounts(p.Service)
	if status := s.status("delete", err); !status.OK() {
		return status
	}
	if len(accounts) == 0 {
		return securestore.StatusItemNotFound
	}
	for _, account := range accounts {
		if status := s.status("delete", gokeychain.DeleteGenericPasswordItem(p.Service, account)); !status.OK() {
			return status
		}
	}
	return securestore.StatusSuccess
}

// StatusMessage describes status the way the Security framework does.
func (s *SystemStore) StatusMessage(status securestore.Status) (string, bool) {
	return gokeychain.Error(status).Error(), true
}

func (s *SystemStore) status(op string, err error) securestore.Status {
	if err == nil {
		return securestore.StatusSuccess
	}
	var kcErr gokeychain.Error
	if errors.As(err, &kcErr) {
		return securestore.Status(kcErr)
	}
	s.logger.Error("keychain error", "op", op, "error", err)
	return securestore.StatusIO
}

func query(p securestore.Predicate) gokeychain.Item {
	q := gokeychain.NewItem()
	q.SetSecClass(gokeychain.SecClassGenericPassword)
	q.SetService(p.Service)
	if p.Key != "" {
		q.SetAccount(p.Key)
	}
	return q
}

func encodeDescription(p *securestore.AccessPolicy) string {
	return presenceDescription + strconv.FormatInt(int64(p.ReuseDuration/time.Second), 10)
}

func decodeDescription(desc string) *securestore.AccessPolicy {
	rest, ok := strings.CutPrefix(desc, presenceDescription)
	if !ok {
		return nil
	}
	secs, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || secs < 0 {
		secs = 0
	}
	return &securestore.AccessPolicy{
		Accessibility: securestore.AccessibleWhenPasscodeSetThisDeviceOnly,
		UserPresence:  true,
		ReuseDuration: time.Duration(secs) * time.Second,
	}
}
