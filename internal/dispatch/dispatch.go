// Package dispatch is the host-facing boundary of the credential store.
// A host delivers each operation as a named Call with positional, loosely
// typed arguments; the Dispatcher parses them, runs exactly one engine
// operation and reports exactly one Result.
package dispatch

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/benaskins/securestore/internal/metrics"
	"github.com/benaskins/securestore/internal/securestore"
)

// Action names an operation.
type Action string

const (
	ActionInit   Action = "init"
	ActionSet    Action = "set"
	ActionGet    Action = "get"
	ActionRemove Action = "remove"
	ActionKeys   Action = "keys"
	ActionClear  Action = "clear"
)

// Actions lists every action the dispatcher understands.
var Actions = []Action{ActionInit, ActionSet, ActionGet, ActionRemove, ActionKeys, ActionClear}

// Outcome classifies a Result.
type Outcome string

const (
	OutcomeOK      Outcome = "ok"
	OutcomeInvalid Outcome = "invalid"
	OutcomeError   Outcome = "error"
)

// ReadyMessage is the payload of a successful init call.
const ReadyMessage = "ready"

// Call is one host invocation.
//
// Argument positions: set [service, key, value, config?], get and remove
// [service, key], keys and clear [service], init none.
type Call struct {
	Action     Action `json:"action"`
	CallbackID string `json:"callbackId,omitempty"`
	Arguments  []any  `json:"arguments,omitempty"`
}

// Result is the single response to a Call. Message holds the key, value,
// confirmation or error description; Keys is set only by the keys action.
type Result struct {
	CallbackID string   `json:"callbackId"`
	Outcome    Outcome  `json:"outcome"`
	Message    string   `json:"message,omitempty"`
	Keys       []string `json:"keys,omitempty"`
	Status     int32    `json:"status,omitempty"`
}

// OK reports whether the call succeeded.
func (r Result) OK() bool { return r.Outcome == OutcomeOK }

// Engine is the credential engine as seen by the dispatcher.
// *securestore.Engine implements it.
type Engine interface {
	Put(req *securestore.QueryRequest) (string, error)
	Get(req *securestore.QueryRequest) (string, error)
	ListKeys(service string) ([]string, error)
	RemoveOne(req *securestore.QueryRequest) error
	RemoveAll(service string) error
}

// Dispatcher routes calls to an Engine.
type Dispatcher struct {
	engine  Engine
	metrics *metrics.Recorder
	newID   func() string
	logger  *slog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithMetrics records every call on r.
func WithMetrics(r *metrics.Recorder) Option {
	return func(d *Dispatcher) { d.metrics = r }
}

// WithIDGenerator overrides how callback IDs are minted for calls that
// arrive without one.
func WithIDGenerator(fn func() string) Option {
	return func(d *Dispatcher) { d.newID = fn }
}

// New returns a Dispatcher over engine.
func New(engine Engine, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		engine: engine,
		newID:  uuid.NewString,
		logger: slog.With("component", "dispatch"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch runs call and returns its Result. It never panics on malformed
// arguments and never returns without an outcome.
func (d *Dispatcher) Dispatch(call Call) Result {
	start := time.Now()
	id := call.CallbackID
	if id == "" {
		id = d.newID()
	}

	res := d.run(call)
	res.CallbackID = id

	elapsed := time.Since(start)
	d.metrics.ObserveOperation(string(call.Action), string(res.Outcome), elapsed)
	if res.OK() {
		d.logger.Debug("call completed", "action", call.Action, "callback_id", id, "duration", elapsed)
	} else {
		d.logger.Warn("call failed", "action", call.Action, "callback_id", id, "outcome", res.Outcome, "error", res.Message)
	}
	return res
}

func (d *Dispatcher) run(call Call) Result {
	args := call.Arguments
	switch call.Action {
	case ActionInit:
		return Result{Outcome: OutcomeOK, Message: ReadyMessage}

	case ActionSet:
		req, err := securestore.NewQueryRequest(arg(args, 0), arg(args, 1), arg(args, 2), arg(args, 3))
		if err != nil {
			return failure(err)
		}
		key, err := d.engine.Put(req)
		if err != nil {
			return failure(err)
		}
		return Result{Outcome: OutcomeOK, Message: key}

	case ActionGet:
		req, err := securestore.NewQueryRequest(arg(args, 0), arg(args, 1), nil, nil)
		if err != nil {
			return failure(err)
		}
		value, err := d.engine.Get(req)
		if err != nil {
			return failure(err)
		}
		return Result{Outcome: OutcomeOK, Message: value}

	case ActionRemove:
		req, err := securestore.NewQueryRequest(arg(args, 0), arg(args, 1), nil, nil)
		if err != nil {
			return failure(err)
		}
		if err := d.engine.RemoveOne(req); err != nil {
			return failure(err)
		}
		return Result{Outcome: OutcomeOK, Message: req.Key}

	case ActionKeys:
		service, err := serviceArg(args)
		if err != nil {
			return failure(err)
		}
		keys, err := d.engine.ListKeys(service)
		if err != nil {
			return failure(err)
		}
		if keys == nil {
			keys = []string{}
		}
		return Result{Outcome: OutcomeOK, Keys: keys}

	case ActionClear:
		service, err := serviceArg(args)
		if err != nil {
			return failure(err)
		}
		if err := d.engine.RemoveAll(service); err != nil {
			return failure(err)
		}
		return Result{Outcome: OutcomeOK, Message: ClearedMessage(service)}

	default:
		return Result{Outcome: OutcomeInvalid, Message: fmt.Sprintf("unknown action %q", call.Action)}
	}
}

// ClearedMessage is the confirmation returned by a successful clear.
func ClearedMessage(service string) string {
	return "Keychain successfully cleared for service: " + service
}

func arg(args []any, i int) any {
	if i < len(args) {
		return args[i]
	}
	return nil
}

func serviceArg(args []any) (string, error) {
	service, ok := arg(args, 0).(string)
	if !ok || service == "" {
		return "", &securestore.ValidationError{Message: "could not parse service"}
	}
	return service, nil
}

func failure(err error) Result {
	res := Result{Outcome: OutcomeError, Message: err.Error()}
	if errors.Is(err, securestore.ErrValidation) {
		res.Outcome = OutcomeInvalid
	}
	var storeErr *securestore.StoreError
	if errors.As(err, &storeErr) {
		res.Status = int32(storeErr.Status)
	}
	return res
}
