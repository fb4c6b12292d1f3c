package keychain

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/99designs/keyring"

	"github.com/benaskins/securestore/internal/securestore"
)

// KeyringOptions configures a KeyringStore.
type KeyringOptions struct {
	// Backends restricts which keyring backends may be used, by name
	// ("file", "secret-service", "kwallet", "pass", "wincred", "keychain",
	// "keyctl"). Empty means the library default order.
	Backends []string
	// FileDir is the parent directory for the file backend. Each service
	// gets its own subdirectory, named by ringDir.
	FileDir string
	// PasswordEnv names an environment variable holding the file backend
	// password. When unset the password is prompted on the terminal.
	PasswordEnv string
}

// RingOpener opens the keyring for one service.
type RingOpener func(service string) (keyring.Keyring, error)

// KeyringStore is an ItemStore backed by 99designs/keyring. Each service
// maps to its own keyring.
type KeyringStore struct {
	*blobStore
	rings *ringCache
}

// NewKeyringStore opens keyrings lazily according to opts.
func NewKeyringStore(opts KeyringOptions, guard Guard) *KeyringStore {
	return NewKeyringStoreWithOpener(opts.opener(), guard)
}

// NewKeyringStoreWithOpener is like NewKeyringStore but lets the caller
// supply the keyrings, e.g. keyring.NewArrayKeyring in tests.
func NewKeyringStoreWithOpener(open RingOpener, guard Guard) *KeyringStore {
	rings := &ringCache{open: open, rings: make(map[string]keyring.Keyring)}
	logger := slog.With("component", "keychain", "backend", "keyring")
	return &KeyringStore{
		blobStore: newBlobStore(rings, guard, logger),
		rings:     rings,
	}
}

func (o KeyringOptions) opener() RingOpener {
	return func(service string) (keyring.Keyring, error) {
		cfg := keyring.Config{
			ServiceName:                    service,
			KeychainTrustApplication:       true,
			KeychainSynchronizable:         false,
			KeychainAccessibleWhenUnlocked: true,
		}
		for _, b := range o.Backends {
			cfg.AllowedBackends = append(cfg.AllowedBackends, keyring.BackendType(b))
		}
		if o.FileDir != "" {
			cfg.FileDir = filepath.Join(o.FileDir, ringDir(service))
		}
		if o.PasswordEnv != "" {
			if pw, ok := os.LookupEnv(o.PasswordEnv); ok {
				cfg.FilePasswordFunc = keyring.FixedStringPrompt(pw)
			}
		}
		if cfg.FilePasswordFunc == nil {
			cfg.FilePasswordFunc = keyring.TerminalPrompt
		}
		return keyring.Open(cfg)
	}
}

// ringDir maps a service to a single path segment. The encoding is
// injective and never contains a separator or a dot segment, so distinct
// services never share a directory or escape FileDir.
func ringDir(service string) string {
	return hex.EncodeToString([]byte(service))
}

// ringCache opens one keyring per service and adapts it to blobBackend.
type ringCache struct {
	mu    sync.Mutex
	open  RingOpener
	rings map[string]keyring.Keyring
}

func (c *ringCache) ring(service string) (keyring.Keyring, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if r, ok := c.rings[service]; ok {
		return r, nil
	}
	r, err := c.open(service)
	if err != nil {
		return nil, fmt.Errorf("opening keyring for %q: %w", service, err)
	}
	c.rings[service] = r
	return r, nil
}

func (c *ringCache) get(service, key string) ([]byte, error) {
	r, err := c.ring(service)
	if err != nil {
		return nil, err
	}
	item, err := r.Get(key)
	if err != nil {
		return nil, keyringErr(err)
	}
	return item.Data, nil
}

func (c *ringCache) set(service, key string, blob []byte) error {
	r, err := c.ring(service)
	if err != nil {
		return err
	}
	return r.Set(keyring.Item{
		Key:                         key,
		Data:                        blob,
		Label:                       fmt.Sprintf("%s: %s", service, key),
		KeychainNotSynchronizable:   true,
		KeychainNotTrustApplication: false,
	})
}

func (c *ringCache) remove(service, key string) error {
	r, err := c.ring(service)
	if err != nil {
		return err
	}
	return keyringErr(r.Remove(key))
}

func (c *ringCache) keys(service string) ([]string, error) {
	r, err := c.ring(service)
	if err != nil {
		return nil, err
	}
	keys, err := r.Keys()
	if err != nil {
		return nil, keyringErr(err)
	}
	return keys, nil
}

func keyringErr(err error) error {
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return errBlobNotFound
	}
	return err
}

var _ securestore.ItemStore = (*KeyringStore)(nil)
