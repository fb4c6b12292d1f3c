package keychain

import (
	"fmt"

	"github.com/benaskins/securestore/internal/securestore"
)

// Backend names accepted by Open.
const (
	BackendSystem    = "system"
	BackendKeyring   = "keyring"
	BackendOSKeyring = "oskeyring"
	BackendMemory    = "memory"
)

// Options selects and configures a backend.
type Options struct {
	Backend string
	Keyring KeyringOptions
}

// Open returns the item store named by opts.Backend. An empty name means
// BackendSystem.
func Open(opts Options, guard Guard) (securestore.ItemStore, error) {
	switch opts.Backend {
	case "", BackendSystem:
		return NewSystemStore(guard)
	case BackendKeyring:
		return NewKeyringStore(opts.Keyring, guard), nil
	case BackendOSKeyring:
		return NewOSKeyringStore(guard), nil
	case BackendMemory:
		return NewMemoryStore(guard), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", opts.Backend)
	}
}
