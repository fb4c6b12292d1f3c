// Package keychain provides the item stores behind the credential engine.
//
// Every store keeps one generic-password item per (service, key):
//   - SystemStore: the macOS Keychain (darwin only)
//   - KeyringStore: 99designs/keyring (file, Secret Service, KWallet, pass, wincred)
//   - OSKeyringStore: zalando/go-keyring with a per-service key index
//   - MemoryStore: process memory, for tests and ephemeral use
//
// Protected items are created WhenPasscodeSetThisDeviceOnly and never
// synchronized. Reading one asks the Guard for user presence first.
package keychain

import (
	"errors"
	"fmt"
	"time"

	"github.com/benaskins/securestore/internal/presence"
	"github.com/benaskins/securestore/internal/securestore"
)

// Guard establishes user presence before a protected item is released.
// *presence.Gate implements it.
type Guard interface {
	Require(reason string, reuse time.Duration) error
}

// requirePresence returns StatusSuccess when the item may be read.
func requirePresence(g Guard, service, key string, access *securestore.AccessPolicy) securestore.Status {
	if access == nil || !access.UserPresence {
		return securestore.StatusSuccess
	}
	if g == nil {
		return securestore.StatusNotAvailable
	}
	reason := fmt.Sprintf("Authenticate to read %q from %q", key, service)
	return presenceStatus(g.Require(reason, access.ReuseDuration))
}

func presenceStatus(err error) securestore.Status {
	switch {
	case err == nil:
		return securestore.StatusSuccess
	case errors.Is(err, presence.ErrUserCanceled):
		return securestore.StatusUserCanceled
	case errors.Is(err, presence.ErrAuthFailed):
		return securestore.StatusAuthFailed
	case errors.Is(err, presence.ErrInteractionNotAllowed):
		return securestore.StatusInteractionNotAllowed
	case errors.Is(err, presence.ErrNotEnrolled):
		return securestore.StatusNotAvailable
	default:
		return securestore.StatusAuthFailed
	}
}
