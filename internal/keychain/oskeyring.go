package keychain

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	zkeyring "github.com/zalando/go-keyring"

	"github.com/benaskins/securestore/internal/securestore"
)

const (
	indexPrefix  = "securestore-index:"
	indexAccount = "keys"
)

// errReservedService rejects services that would alias an index item.
var errReservedService = errors.New("service name uses the reserved index prefix")

// OSKeyringStore is an ItemStore over zalando/go-keyring: the macOS
// Keychain via security(1), the Secret Service on Linux and the Windows
// Credential Manager. That API cannot enumerate accounts, so each service
// keeps an index item listing its keys. Services starting with the index
// prefix are refused with StatusParam.
type OSKeyringStore struct {
	*blobStore
}

// NewOSKeyringStore returns a store using the platform keyring.
func NewOSKeyringStore(guard Guard) *OSKeyringStore {
	logger := slog.With("component", "keychain", "backend", "oskeyring")
	return &OSKeyringStore{blobStore: newBlobStore(osKeyring{}, guard, logger)}
}

type osKeyring struct{}

func indexService(service string) string {
	return indexPrefix + service
}

func checkService(service string) error {
	if strings.HasPrefix(service, indexPrefix) {
		return errReservedService
	}
	return nil
}

func (osKeyring) get(service, key string) ([]byte, error) {
	if err := checkService(service); err != nil {
		return nil, err
	}
	v, err := zkeyring.Get(service, key)
	if err != nil {
		return nil, zkeyringErr(err)
	}
	return []byte(v), nil
}

func (k osKeyring) set(service, key string, blob []byte) error {
	if err := checkService(service); err != nil {
		return err
	}
	if err := zkeyring.Set(service, key, string(blob)); err != nil {
		return fmt.Errorf("keyring set %q: %w", key, err)
	}
	keys, err := k.keys(service)
	if err != nil {
		return err
	}
	if slices.Contains(keys, key) {
		return nil
	}
	return k.writeIndex(service, append(keys, key))
}

func (k osKeyring) remove(service, key string) error {
	if err := checkService(service); err != nil {
		return err
	}
	if err := zkeyring.Delete(service, key); err != nil {
		return zkeyringErr(err)
	}
	keys, err := k.keys(service)
	if err != nil {
		return err
	}
	keys = slices.DeleteFunc(keys, func(s string) bool { return s == key })
	if len(keys) == 0 {
		if err := zkeyring.Delete(indexService(service), indexAccount); err != nil && !errors.Is(err, zkeyring.ErrNotFound) {
			return fmt.Errorf("keyring delete index: %w", err)
		}
		return nil
	}
	return k.writeIndex(service, keys)
}

func (osKeyring) keys(service string) ([]string, error) {
	if err := checkService(service); err != nil {
		return nil, err
	}
	v, err := zkeyring.Get(indexService(service), indexAccount)
	if err != nil {
		if errors.Is(err, zkeyring.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("keyring read index: %w", err)
	}
	var keys []string
	if err := json.Unmarshal([]byte(v), &keys); err != nil {
		return nil, fmt.Errorf("keyring parse index: %w", err)
	}
	return keys, nil
}

func (osKeyring) writeIndex(service string, keys []string) error {
	data, err := json.Marshal(keys)
	if err != nil {
		return err
	}
	if err := zkeyring.Set(indexService(service), indexAccount, string(data)); err != nil {
		return fmt.Errorf("keyring write index: %w", err)
	}
	return nil
}

func zkeyringErr(err error) error {
	if errors.Is(err, zkeyring.ErrNotFound) {
		return errBlobNotFound
	}
	return err
}

var _ securestore.ItemStore = (*OSKeyringStore)(nil)
