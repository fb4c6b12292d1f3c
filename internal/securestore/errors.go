package securestore

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is checks against the typed errors below.
var (
	ErrValidation         = errors.New("validation failed")
	ErrPolicyConstruction = errors.New("access policy construction failed")
	ErrStore              = errors.New("store rejected operation")
	ErrDecoding           = errors.New("stored value is not text")
)

// ValidationError reports malformed or missing input. It is a caller bug
// and is never retried.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func validationf(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// PolicyConstructionError means the requested access policy could not be
// materialized. The caller has to relax the requested policy.
type PolicyConstructionError struct {
	Err error
}

func (e *PolicyConstructionError) Error() string {
	return fmt.Sprintf("could not create access control flag due to: %v", e.Err)
}

func (e *PolicyConstructionError) Unwrap() error { return e.Err }

func (e *PolicyConstructionError) Is(target error) bool { return target == ErrPolicyConstruction }

// StoreError carries a status returned by the item store together with its
// resolved description.
type StoreError struct {
	Op      string
	Status  Status
	Message string
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("could not %s: %s", e.Op, e.Message)
}

func (e *StoreError) Is(target error) bool { return target == ErrStore }

// DecodingError means a successful lookup returned data that is not UTF-8
// text, or no data at all.
type DecodingError struct {
	Service string
	Key     string
	Message string
}

func (e *DecodingError) Error() string {
	return fmt.Sprintf("could not parse returning item %s/%s: %s", e.Service, e.Key, e.Message)
}

func (e *DecodingError) Is(target error) bool { return target == ErrDecoding }

// MessageResolver is implemented by stores that can describe their own
// status codes, typically by asking the platform.
type MessageResolver interface {
	StatusMessage(Status) (string, bool)
}

// Translator turns store statuses into StoreErrors.
type Translator struct {
	resolver MessageResolver
}

// NewTranslator returns a Translator that consults r first. r may be nil.
func NewTranslator(r MessageResolver) *Translator {
	return &Translator{resolver: r}
}

// Translate always produces a renderable error.
func (t *Translator) Translate(op string, status Status) *StoreError {
	return &StoreError{Op: op, Status: status, Message: t.message(status)}
}

func (t *Translator) message(status Status) string {
	if t != nil && t.resolver != nil {
		if msg, ok := t.resolver.StatusMessage(status); ok && msg != "" {
			return msg
		}
	}
	if msg, ok := statusMessages[status]; ok {
		return msg
	}
	return fmt.Sprintf("Unknown error: %d", int32(status))
}
