package securestore

import (
	"encoding/json"
	"math"
	"time"
)

// AccessConfig is the optional protection requested for a new item.
// Nil fields take their defaults: no presence gate and no reuse window.
type AccessConfig struct {
	RequiresUserPresence                 *bool `json:"requiresUserPresence,omitempty"`
	AllowableAuthenticationReuseDuration *int  `json:"allowableAuthenticationReuseDuration,omitempty"`
}

// PresenceRequired reports whether reads must be gated on user presence.
func (c AccessConfig) PresenceRequired() bool {
	return c.RequiresUserPresence != nil && *c.RequiresUserPresence
}

// ReuseDuration is the authentication reuse window. It is zero unless
// presence is required.
func (c AccessConfig) ReuseDuration() time.Duration {
	if !c.PresenceRequired() || c.AllowableAuthenticationReuseDuration == nil {
		return 0
	}
	secs := *c.AllowableAuthenticationReuseDuration
	if secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// QueryRequest is the typed form of one operation's arguments.
type QueryRequest struct {
	Service string
	Key     string
	Value   *string
	Config  AccessConfig
}

// NewQueryRequest validates boundary input. service and key must be
// non-empty strings. A value that is not a string is treated as absent.
// rawConfig is parsed leniently and never causes a failure.
func NewQueryRequest(service, key, value, rawConfig any) (*QueryRequest, error) {
	svc, ok := service.(string)
	if !ok || svc == "" {
		return nil, validationf("could not parse query: service must be a non-empty string")
	}
	k, ok := key.(string)
	if !ok || k == "" {
		return nil, validationf("could not parse query: key must be a non-empty string")
	}

	req := &QueryRequest{
		Service: svc,
		Key:     k,
		Config:  ParseAccessConfig(rawConfig),
	}
	if v, ok := value.(string); ok {
		req.Value = &v
	}
	return req, nil
}

// ParseAccessConfig accepts a decoded JSON object, raw JSON bytes or a JSON
// string. Unknown keys are ignored, fields of the wrong type keep their
// defaults, and anything undecodable yields the zero AccessConfig.
func ParseAccessConfig(raw any) AccessConfig {
	var fields map[string]any
	switch v := raw.(type) {
	case nil:
		return AccessConfig{}
	case map[string]any:
		fields = v
	case AccessConfig:
		return v
	case *AccessConfig:
		if v == nil {
			return AccessConfig{}
		}
		return *v
	case json.RawMessage:
		if json.Unmarshal(v, &fields) != nil {
			return AccessConfig{}
		}
	case []byte:
		if json.Unmarshal(v, &fields) != nil {
			return AccessConfig{}
		}
	case string:
		if json.Unmarshal([]byte(v), &fields) != nil {
			return AccessConfig{}
		}
	default:
		return AccessConfig{}
	}

	var cfg AccessConfig
	if b, ok := fields["requiresUserPresence"].(bool); ok {
		cfg.RequiresUserPresence = &b
	}
	if n, ok := wholeSeconds(fields["allowableAuthenticationReuseDuration"]); ok {
		cfg.AllowableAuthenticationReuseDuration = &n
	}
	return cfg
}

func wholeSeconds(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		if n > math.MaxInt32 || n < math.MinInt32 {
			return 0, false
		}
		return int(n), true
	case float64:
		if n != math.Trunc(n) || n > math.MaxInt32 || n < math.MinInt32 {
			return 0, false
		}
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return wholeSeconds(i)
	}
	return 0, false
}
