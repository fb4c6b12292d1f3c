package securestore

import (
	"errors"
	"time"
)

// MaxReuseDuration is the longest authentication reuse window a policy
// may carry. Longer requests are clamped.
const MaxReuseDuration = 5 * time.Minute

// Accessibility says when an item's secret may be released at all.
type Accessibility string

const (
	// AccessibleWhenPasscodeSetThisDeviceOnly keeps the item on this device
	// and makes it unreadable once the device passcode is removed.
	AccessibleWhenPasscodeSetThisDeviceOnly Accessibility = "when-passcode-set-this-device-only"
)

// AccessPolicy is attached to an item when it is created and never changed
// afterwards.
type AccessPolicy struct {
	Accessibility Accessibility
	UserPresence  bool
	ReuseDuration time.Duration
}

// AuthContext lets one successful authentication satisfy further reads for
// ReuseDuration.
type AuthContext struct {
	ReuseDuration time.Duration
}

// PresenceCapability is the platform authentication subsystem as seen from
// policy construction.
type PresenceCapability interface {
	// CanEvaluatePresence returns an error if user presence cannot be
	// established on this device, e.g. no passcode is enrolled.
	CanEvaluatePresence() error
}

var errNoCapability = errors.New("no user presence capability configured")

// PolicyBuilder produces access policies for new items.
type PolicyBuilder struct {
	capability PresenceCapability
}

// NewPolicyBuilder returns a builder backed by capability, which may be nil.
// A nil capability makes every presence request fail.
func NewPolicyBuilder(capability PresenceCapability) *PolicyBuilder {
	return &PolicyBuilder{capability: capability}
}

// Build returns (nil, nil, nil) when cfg does not require presence.
// A presence request that cannot be honoured fails with
// *PolicyConstructionError instead of yielding an unprotected item.
func (b *PolicyBuilder) Build(cfg AccessConfig) (*AccessPolicy, *AuthContext, error) {
	if !cfg.PresenceRequired() {
		return nil, nil, nil
	}
	if b == nil || b.capability == nil {
		return nil, nil, &PolicyConstructionError{Err: errNoCapability}
	}
	if err := b.capability.CanEvaluatePresence(); err != nil {
		return nil, nil, &PolicyConstructionError{Err: err}
	}

	reuse := min(cfg.ReuseDuration(), MaxReuseDuration)
	policy := &AccessPolicy{
		Accessibility: AccessibleWhenPasscodeSetThisDeviceOnly,
		UserPresence:  true,
		ReuseDuration: reuse,
	}
	return policy, &AuthContext{ReuseDuration: reuse}, nil
}
