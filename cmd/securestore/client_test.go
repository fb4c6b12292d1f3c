package main

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/benaskins/securestore/internal/api"
	"github.com/benaskins/securestore/internal/dispatch"
	"github.com/benaskins/securestore/internal/keychain"
	"github.com/benaskins/securestore/internal/securestore"
)

func startTestDaemon(t *testing.T) string {
	t.Helper()
	d := dispatch.New(securestore.NewEngine(keychain.NewMemoryStore(nil), nil))
	srv := api.NewServer(d, nil)

	sockPath := filepath.Join(t.TempDir(), "test.sock")
	go srv.ListenUnix(sockPath)
	t.Cleanup(func() { srv.Shutdown(context.Background()) })

	for i := 0; i < 50; i++ {
		if conn, err := net.Dial("unix", sockPath); err == nil {
			conn.Close()
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	return sockPath
}

func TestRemoteCallerRoundTrip(t *testing.T) {
	c := newRemoteCaller(startTestDaemon(t))

	res := c.Dispatch(dispatch.Call{Action: dispatch.ActionSet, Arguments: []any{"app", "token", "abc123"}})
	if !res.OK() || res.Message != "token" {
		t.Fatalf("set: %+v", res)
	}

	res = c.Dispatch(dispatch.Call{Action: dispatch.ActionGet, Arguments: []any{"app", "token"}})
	if !res.OK() || res.Message != "abc123" {
		t.Fatalf("get: %+v", res)
	}

	res = c.Dispatch(dispatch.Call{Action: dispatch.ActionGet, Arguments: []any{"app", "missing"}})
	if res.Outcome != dispatch.OutcomeError {
		t.Errorf("expected error outcome, got %+v", res)
	}
	if err := resultErr(res); err == nil {
		t.Error("expected resultErr to report the failure")
	}
}

func TestRemoteCallerNoDaemon(t *testing.T) {
	c := newRemoteCaller(filepath.Join(t.TempDir(), "absent.sock"))

	res := c.Dispatch(dispatch.Call{Action: dispatch.ActionInit, CallbackID: "cb"})
	if res.Outcome != dispatch.OutcomeError {
		t.Fatalf("expected error outcome, got %+v", res)
	}
	if res.CallbackID != "cb" {
		t.Errorf("expected callback id to be kept, got %q", res.CallbackID)
	}
}

func TestSetCallAttachesPresenceConfig(t *testing.T) {
	t.Cleanup(func() { requirePresence, reuseSeconds = false, 0 })

	call := setCall("app", "token", "v")
	if len(call.Arguments) != 3 {
		t.Fatalf("expected 3 arguments without presence, got %d", len(call.Arguments))
	}

	requirePresence, reuseSeconds = true, 45
	call = setCall("app", "token", "v")
	if len(call.Arguments) != 4 {
		t.Fatalf("expected 4 arguments with presence, got %d", len(call.Arguments))
	}
	cfg := securestore.ParseAccessConfig(call.Arguments[3])
	if !cfg.PresenceRequired() || cfg.ReuseDuration() != 45*time.Second {
		t.Errorf("unexpected access config %+v", cfg)
	}
}
