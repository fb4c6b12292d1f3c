package securestore_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benaskins/securestore/internal/keychain"
	"github.com/benaskins/securestore/internal/presence"
	"github.com/benaskins/securestore/internal/securestore"
)

type fakeAuth struct {
	enrolled error
	result   error
	calls    int
}

func (a *fakeAuth) Enrolled() error { return a.enrolled }

func (a *fakeAuth) Authenticate(string) error {
	a.calls++
	return a.result
}

// scriptedStore returns fixed statuses and counts calls.
type scriptedStore struct {
	add, update, del Status
	results          []securestore.Result
	copyStatus       Status
	adds, updates    int
	messages         map[Status]string
}

type Status = securestore.Status

func (s *scriptedStore) Add(securestore.Item) Status {
	s.adds++
	return s.add
}

func (s *scriptedStore) Update(securestore.Predicate, []byte) Status {
	s.updates++
	return s.update
}

func (s *scriptedStore) CopyMatching(securestore.Predicate) ([]securestore.Result, Status) {
	return s.results, s.copyStatus
}

func (s *scriptedStore) Delete(securestore.Predicate) Status { return s.del }

func (s *scriptedStore) StatusMessage(st Status) (string, bool) {
	msg, ok := s.messages[st]
	return msg, ok
}

func newEngine(t *testing.T) (*securestore.Engine, *keychain.MemoryStore, *fakeAuth) {
	t.Helper()
	auth := &fakeAuth{}
	gate := presence.NewGate(auth)
	store := keychain.NewMemoryStore(gate)
	return securestore.NewEngine(store, gate), store, auth
}

func request(t *testing.T, service, key string, value any, config any) *securestore.QueryRequest {
	t.Helper()
	req, err := securestore.NewQueryRequest(service, key, value, config)
	require.NoError(t, err)
	return req
}

func TestPutGetRoundTrip(t *testing.T) {
	engine, _, _ := newEngine(t)

	key, err := engine.Put(request(t, "app", "token", "hello", nil))
	require.NoError(t, err)
	assert.Equal(t, "token", key)

	value, err := engine.Get(request(t, "app", "token", nil, nil))
	require.NoError(t, err)
	assert.Equal(t, "hello", value)
}

func TestPutEmptyString(t *testing.T) {
	engine, _, _ := newEngine(t)

	_, err := engine.Put(request(t, "app", "blank", "", nil))
	require.NoError(t, err)

	value, err := engine.Get(request(t, "app", "blank", nil, nil))
	require.NoError(t, err)
	assert.Equal(t, "", value)
}

func TestPutExistingUpdatesValueAndKeepsPolicy(t *testing.T) {
	engine, store, auth := newEngine(t)

	_, err := engine.Put(request(t, "app", "token", "first", map[string]any{
		"requiresUserPresence":                 true,
		"allowableAuthenticationReuseDuration": float64(30),
	}))
	require.NoError(t, err)

	_, err = engine.Put(request(t, "app", "token", "second", nil))
	require.NoError(t, err)
	assert.Equal(t, 1, store.Len())

	value, err := engine.Get(request(t, "app", "token", nil, nil))
	require.NoError(t, err)
	assert.Equal(t, "second", value)
	assert.Equal(t, 1, auth.calls, "updated item should still require presence")

	results, status := store.CopyMatching(securestore.ForLookupAll("app"))
	require.Equal(t, securestore.StatusSuccess, status)
	require.NotNil(t, results[0].Access)
	assert.Equal(t, 30*time.Second, results[0].Access.ReuseDuration)
}

func TestPutDuplicateAttemptsInsertOnce(t *testing.T) {
	store := &scriptedStore{add: securestore.StatusDuplicateItem, update: securestore.StatusSuccess}
	engine := securestore.NewEngine(store, nil)

	_, err := engine.Put(request(t, "app", "token", "v", nil))
	require.NoError(t, err)
	assert.Equal(t, 1, store.adds)
	assert.Equal(t, 1, store.updates)
}

func TestPutUpdateFailure(t *testing.T) {
	store := &scriptedStore{add: securestore.StatusDuplicateItem, update: securestore.StatusAuthFailed}
	engine := securestore.NewEngine(store, nil)

	_, err := engine.Put(request(t, "app", "token", "v", nil))
	var storeErr *securestore.StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "update existing item", storeErr.Op)
	assert.Equal(t, securestore.StatusAuthFailed, storeErr.Status)
}

func TestPutInsertFailureIsNotRetried(t *testing.T) {
	store := &scriptedStore{add: securestore.StatusIO}
	engine := securestore.NewEngine(store, nil)

	_, err := engine.Put(request(t, "app", "token", "v", nil))
	require.ErrorIs(t, err, securestore.ErrStore)
	assert.EqualError(t, err, "could not store item: I/O error.")
	assert.Equal(t, 1, store.adds)
	assert.Zero(t, store.updates)
}

func TestPutRequiresValue(t *testing.T) {
	engine, store, _ := newEngine(t)

	_, err := engine.Put(request(t, "app", "token", nil, nil))
	require.ErrorIs(t, err, securestore.ErrValidation)

	_, err = engine.Put(request(t, "app", "token", 42, nil))
	require.ErrorIs(t, err, securestore.ErrValidation)
	assert.Zero(t, store.Len())
}

func TestPutPresenceUnavailable(t *testing.T) {
	cfg := map[string]any{"requiresUserPresence": true}

	t.Run("no capability", func(t *testing.T) {
		store := keychain.NewMemoryStore(nil)
		engine := securestore.NewEngine(store, nil)

		_, err := engine.Put(request(t, "app", "token", "v", cfg))
		require.ErrorIs(t, err, securestore.ErrPolicyConstruction)
		assert.Zero(t, store.Len(), "no unprotected fallback item may be written")
	})

	t.Run("not enrolled", func(t *testing.T) {
		gate := presence.NewGate(&fakeAuth{enrolled: presence.ErrNotEnrolled})
		store := keychain.NewMemoryStore(gate)
		engine := securestore.NewEngine(store, gate)

		_, err := engine.Put(request(t, "app", "token", "v", cfg))
		require.ErrorIs(t, err, securestore.ErrPolicyConstruction)
		require.ErrorIs(t, err, presence.ErrNotEnrolled)
		assert.Contains(t, err.Error(), "could not create access control flag due to:")
		assert.Zero(t, store.Len())
	})
}

func TestPutWithoutPresenceNeedsNoCapability(t *testing.T) {
	store := keychain.NewMemoryStore(nil)
	engine := securestore.NewEngine(store, nil)

	_, err := engine.Put(request(t, "app", "token", "v", map[string]any{"requiresUserPresence": false}))
	require.NoError(t, err)
}

func TestGetProtectedItemFailsWithoutPresence(t *testing.T) {
	engine, _, auth := newEngine(t)

	_, err := engine.Put(request(t, "app", "token", "v", `{"requiresUserPresence":true}`))
	require.NoError(t, err)

	auth.result = presence.ErrAuthFailed
	_, err = engine.Get(request(t, "app", "token", nil, nil))
	var storeErr *securestore.StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, securestore.StatusAuthFailed, storeErr.Status)
	assert.Equal(t, "fetch item", storeErr.Op)
}

func TestGetMissing(t *testing.T) {
	engine, _, _ := newEngine(t)

	_, err := engine.Get(request(t, "app", "nope", nil, nil))
	require.ErrorIs(t, err, securestore.ErrStore)
	assert.EqualError(t, err, "could not fetch item: The specified item could not be found in the keychain.")
}

func TestGetNonUTF8(t *testing.T) {
	engine, store, _ := newEngine(t)
	store.Add(securestore.Item{
		Class:   securestore.ClassGenericPassword,
		Service: "app",
		Key:     "binary",
		Data:    []byte{0xff, 0xfe, 0xfd},
	})

	_, err := engine.Get(request(t, "app", "binary", nil, nil))
	var decErr *securestore.DecodingError
	require.ErrorAs(t, err, &decErr)
	assert.Equal(t, "binary", decErr.Key)
}

func TestGetEmptyResult(t *testing.T) {
	engine := securestore.NewEngine(&scriptedStore{}, nil)

	_, err := engine.Get(request(t, "app", "token", nil, nil))
	require.ErrorIs(t, err, securestore.ErrDecoding)
}

func TestListKeysIsolatesServices(t *testing.T) {
	engine, _, _ := newEngine(t)
	for _, kv := range [][2]string{{"app", "a"}, {"app", "b"}, {"other", "c"}} {
		_, err := engine.Put(request(t, kv[0], kv[1], "v", nil))
		require.NoError(t, err)
	}

	keys, err := engine.ListKeys("app")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, keys)
}

func TestListKeysIncludesProtectedWithoutPrompt(t *testing.T) {
	engine, _, auth := newEngine(t)
	_, err := engine.Put(request(t, "app", "locked", "v", map[string]any{"requiresUserPresence": true}))
	require.NoError(t, err)

	keys, err := engine.ListKeys("app")
	require.NoError(t, err)
	assert.Equal(t, []string{"locked"}, keys)
	assert.Zero(t, auth.calls)
}

func TestListKeysEmptyService(t *testing.T) {
	engine, _, _ := newEngine(t)

	_, err := engine.ListKeys("empty")
	var storeErr *securestore.StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, securestore.StatusItemNotFound, storeErr.Status)

	_, err = engine.ListKeys("")
	require.ErrorIs(t, err, securestore.ErrValidation)
}

func TestListKeysSkipsKeylessResults(t *testing.T) {
	store := &scriptedStore{results: []securestore.Result{{Service: "app", Key: "a"}, {Service: "app"}}}
	engine := securestore.NewEngine(store, nil)

	keys, err := engine.ListKeys("app")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, keys)
}

func TestRemoveOne(t *testing.T) {
	engine, _, _ := newEngine(t)
	_, err := engine.Put(request(t, "app", "token", "v", nil))
	require.NoError(t, err)

	require.NoError(t, engine.RemoveOne(request(t, "app", "token", nil, nil)))

	_, err = engine.Get(request(t, "app", "token", nil, nil))
	require.ErrorIs(t, err, securestore.ErrStore)

	err = engine.RemoveOne(request(t, "app", "token", nil, nil))
	var storeErr *securestore.StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "delete keys", storeErr.Op)
}

func TestRemoveAllIsolatesServices(t *testing.T) {
	engine, store, _ := newEngine(t)
	for _, kv := range [][2]string{{"app", "a"}, {"app", "b"}, {"other", "c"}} {
		_, err := engine.Put(request(t, kv[0], kv[1], "v", nil))
		require.NoError(t, err)
	}

	require.NoError(t, engine.RemoveAll("app"))
	assert.Equal(t, 1, store.Len())

	keys, err := engine.ListKeys("other")
	require.NoError(t, err)
	assert.Len(t, keys, 1)

	require.ErrorIs(t, engine.RemoveAll("app"), securestore.ErrStore)
}

func TestReuseDurationIsClamped(t *testing.T) {
	engine, store, _ := newEngine(t)
	_, err := engine.Put(request(t, "app", "token", "v", map[string]any{
		"requiresUserPresence":                 true,
		"allowableAuthenticationReuseDuration": 3600,
	}))
	require.NoError(t, err)

	results, _ := store.CopyMatching(securestore.ForLookupAll("app"))
	require.NotNil(t, results[0].Access)
	assert.Equal(t, securestore.MaxReuseDuration, results[0].Access.ReuseDuration)
}

func TestTranslatorPrefersResolver(t *testing.T) {
	store := &scriptedStore{
		add:      securestore.StatusIO,
		messages: map[Status]string{securestore.StatusIO: "disk on fire"},
	}
	engine := securestore.NewEngine(store, nil)

	_, err := engine.Put(request(t, "app", "token", "v", nil))
	assert.EqualError(t, err, "could not store item: disk on fire")
}

func TestTranslatorFallbacks(t *testing.T) {
	tests := []struct {
		name     string
		resolver securestore.MessageResolver
		status   Status
		want     string
	}{
		{"table", nil, securestore.StatusDuplicateItem, "The specified item already exists in the keychain."},
		{"unknown", nil, Status(-1), "Unknown error: -1"},
		{"empty resolver message", &scriptedStore{messages: map[Status]string{securestore.StatusParam: ""}}, securestore.StatusParam,
			"One or more parameters passed to a function were not valid."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := securestore.NewTranslator(tt.resolver).Translate("op", tt.status)
			assert.Equal(t, tt.want, err.Message)
			assert.Equal(t, tt.status, err.Status)
			assert.True(t, errors.Is(err, securestore.ErrStore))
		})
	}
}
