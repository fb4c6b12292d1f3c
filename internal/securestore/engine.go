// Package securestore is the storage and query engine of the credential
// store. It maps put/get/list/delete onto an ItemStore, falls back from
// insert to update when an identity already exists, attaches access
// policies to new items and translates store statuses into errors.
//
// The engine is synchronous and keeps no state between calls. Every store
// call is attempted exactly once.
package securestore

import (
	"unicode/utf8"
)

// Engine runs credential operations against an ItemStore.
type Engine struct {
	store      ItemStore
	policies   *PolicyBuilder
	translator *Translator
}

// NewEngine returns an engine over store. capability is consulted when an
// item requests user presence and may be nil. If store implements
// MessageResolver its descriptions are preferred over the built-in table.
func NewEngine(store ItemStore, capability PresenceCapability) *Engine {
	resolver, _ := store.(MessageResolver)
	return &Engine{
		store:      store,
		policies:   NewPolicyBuilder(capability),
		translator: NewTranslator(resolver),
	}
}

// Put stores req.Value at (req.Service, req.Key) and returns the key.
// An existing item keeps its original access policy; only its data changes.
func (e *Engine) Put(req *QueryRequest) (string, error) {
	if req == nil || req.Value == nil {
		return "", validationf("could not parse query: a value is required")
	}

	access, auth, err := e.policies.Build(req.Config)
	if err != nil {
		return "", err
	}

	switch status := e.attemptInsert(req, access, auth); status {
	case StatusSuccess:
		return req.Key, nil
	case StatusDuplicateItem:
		return e.updateExisting(req)
	default:
		return "", e.translator.Translate("store item", status)
	}
}

func (e *Engine) attemptInsert(req *QueryRequest, access *AccessPolicy, auth *AuthContext) Status {
	return e.store.Add(Item{
		Class:   ClassGenericPassword,
		Service: req.Service,
		Key:     req.Key,
		Data:    []byte(*req.Value),
		Access:  access,
		Auth:    auth,
	})
}

// updateExisting is reached only through a duplicate signal, so it checks
// the value again rather than trusting Put's guard.
func (e *Engine) updateExisting(req *QueryRequest) (string, error) {
	if req.Value == nil {
		return "", validationf("could not update existing item with empty value")
	}
	status := e.store.Update(ForDeletion(req.Service, req.Key), []byte(*req.Value))
	if !status.OK() {
		return "", e.translator.Translate("update existing item", status)
	}
	return req.Key, nil
}

// Get returns the secret at (req.Service, req.Key). Presence checks, if the
// item carries a policy, happen inside the store.
func (e *Engine) Get(req *QueryRequest) (string, error) {
	if req == nil {
		return "", validationf("could not parse query")
	}

	results, status := e.store.CopyMatching(ForLookup(req.Service, req.Key))
	if !status.OK() {
		return "", e.translator.Translate("fetch item", status)
	}
	if len(results) == 0 {
		return "", &DecodingError{Service: req.Service, Key: req.Key, Message: "no data returned"}
	}
	data := results[0].Data
	if !utf8.Valid(data) {
		return "", &DecodingError{Service: req.Service, Key: req.Key, Message: "data is not valid UTF-8"}
	}
	return string(data), nil
}

// ListKeys returns the keys stored under service in store order. Matches
// without a key are skipped.
func (e *Engine) ListKeys(service string) ([]string, error) {
	if service == "" {
		return nil, validationf("could not parse service")
	}

	results, status := e.store.CopyMatching(ForLookupAll(service))
	if !status.OK() {
		return nil, e.translator.Translate("fetch item", status)
	}

	keys := make([]string, 0, len(results))
	for _, r := range results {
		if r.Key == "" {
			continue
		}
		keys = append(keys, r.Key)
	}
	return keys, nil
}

// RemoveOne deletes (req.Service, req.Key). A missing item is an error.
func (e *Engine) RemoveOne(req *QueryRequest) error {
	if req == nil {
		return validationf("could not parse query")
	}
	if status := e.store.Delete(ForDeletion(req.Service, req.Key)); !status.OK() {
		return e.translator.Translate("delete keys", status)
	}
	return nil
}

// RemoveAll deletes every item under service.
func (e *Engine) RemoveAll(service string) error {
	if service == "" {
		return validationf("could not parse service")
	}
	if status := e.store.Delete(ForDeletionAll(service)); !status.OK() {
		return e.translator.Translate("delete keys", status)
	}
	return nil
}
