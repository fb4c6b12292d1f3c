package main

import (
	"fmt"

	"github.com/benaskins/securestore/internal/audit"
	"github.com/benaskins/securestore/internal/config"
	"github.com/benaskins/securestore/internal/dispatch"
	"github.com/benaskins/securestore/internal/keychain"
	"github.com/benaskins/securestore/internal/metrics"
	"github.com/benaskins/securestore/internal/presence"
	"github.com/benaskins/securestore/internal/securestore"
)

// caller runs one operation, locally or through the daemon.
type caller interface {
	Dispatch(call dispatch.Call) dispatch.Result
}

// localStack is the store, presence gate and audit log wired together for
// one process.
type localStack struct {
	dispatcher *dispatch.Dispatcher
	engine     *securestore.Engine
	gate       *presence.Gate
	audit      *audit.Logger
}

func openLocal(c *config.Config, actor string, rec *metrics.Recorder) (*localStack, error) {
	gate := presence.NewGate(passcodeAuthenticator(c),
		presence.WithAttemptsPerMinute(c.Attempts()),
		presence.WithObserver(rec.ObservePresence),
	)

	store, err := keychain.Open(keychainOptions(c), gate)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	auditPath := c.AuditPath()
	if err := ensureParent(auditPath); err != nil {
		return nil, fmt.Errorf("creating audit dir: %w", err)
	}
	auditLog, err := audit.NewLogger(auditPath)
	if err != nil {
		return nil, err
	}

	engine := securestore.NewEngine(keychain.NewAuditedStore(store, auditLog, actor), gate)
	return &localStack{
		dispatcher: dispatch.New(engine, dispatch.WithMetrics(rec)),
		engine:     engine,
		gate:       gate,
		audit:      auditLog,
	}, nil
}

func (s *localStack) Close() error {
	return s.audit.Close()
}

// passcodeAuthenticator returns nil when no passcode is configured so the
// gate reports ErrNotEnrolled.
func passcodeAuthenticator(c *config.Config) presence.Authenticator {
	if c.Presence.PasscodeHash == "" {
		return nil
	}
	return presence.NewPasscodeAuthenticator(c.Presence.PasscodeHash, nil)
}

func keychainOptions(c *config.Config) keychain.Options {
	return keychain.Options{
		Backend: c.Backend,
		Keyring: keychain.KeyringOptions{
			Backends:    c.Keyring.Backends,
			FileDir:     c.Keyring.Dir,
			PasswordEnv: c.Keyring.PasswordEnv,
		},
	}
}

// withCaller runs fn against the daemon when --remote is set, otherwise
// against a store opened in this process.
func withCaller(fn func(caller) error) error {
	if remote {
		return fn(newRemoteCaller(cfg.Socket()))
	}
	stack, err := openLocal(cfg, "cli", nil)
	if err != nil {
		return err
	}
	defer stack.Close()
	return fn(stack.dispatcher)
}
