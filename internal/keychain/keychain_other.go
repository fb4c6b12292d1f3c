//go:build !darwin

package keychain

import "github.com/benaskins/securestore/internal/securestore"

// NewSystemStore returns the platform keyring (Secret Service on Linux,
// Credential Manager on Windows) outside of macOS.
func NewSystemStore(guard Guard) (securestore.ItemStore, error) {
	return NewOSKeyringStore(guard), nil
}
