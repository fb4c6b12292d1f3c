package keychain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/benaskins/securestore/internal/securestore"
)

const envelopeVersion = 1

var errBadEnvelope = errors.New("malformed item envelope")

// envelope is the persisted form of an item in stores that only hold a
// blob per key. The access record is written once at creation.
type envelope struct {
	Version int           `json:"v"`
	Data    []byte        `json:"data"`
	Access  *accessRecord `json:"access,omitempty"`
}

type accessRecord struct {
	Accessibility string `json:"accessibility"`
	UserPresence  bool   `json:"user_presence"`
	ReuseSeconds  int64  `json:"reuse_seconds,omitempty"`
}

func newAccessRecord(p *securestore.AccessPolicy) *accessRecord {
	if p == nil {
		return nil
	}
	return &accessRecord{
		Accessibility: string(p.Accessibility),
		UserPresence:  p.UserPresence,
		ReuseSeconds:  int64(p.ReuseDuration / time.Second),
	}
}

func (r *accessRecord) policy() *securestore.AccessPolicy {
	if r == nil {
		return nil
	}
	return &securestore.AccessPolicy{
		Accessibility: securestore.Accessibility(r.Accessibility),
		UserPresence:  r.UserPresence,
		ReuseDuration: time.Duration(r.ReuseSeconds) * time.Second,
	}
}

func encodeEnvelope(e envelope) ([]byte, error) {
	e.Version = envelopeVersion
	return json.Marshal(e)
}

func decodeEnvelope(raw []byte) (envelope, error) {
	var e envelope
	if err := json.Unmarshal(raw, &e); err != nil {
		return envelope{}, fmt.Errorf("%w: %v", errBadEnvelope, err)
	}
	if e.Version != envelopeVersion {
		return envelope{}, fmt.Errorf("%w: version %d", errBadEnvelope, e.Version)
	}
	if e.Data == nil {
		e.Data = []byte{}
	}
	return e, nil
}
