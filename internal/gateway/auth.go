package gateway

import (
	"crypto/subtle"
	"errors"
)

// ErrUnauthorized is returned when a write carries a missing or wrong secret.
var ErrUnauthorized = errors.New("Invalid secret")

// Gate modes.
const (
	GateOpen    = "open"
	GateGuarded = "guarded"
)

// Gate decides whether a write request may proceed. It is fixed at startup.
type Gate struct {
	secret string
}

// NewGate returns an open gate for an empty secret and a guarded gate otherwise.
func NewGate(secret string) Gate {
	return Gate{secret: secret}
}

// Mode reports "open" or "guarded".
func (g Gate) Mode() string {
	if g.secret == "" {
		return GateOpen
	}
	return GateGuarded
}

// Check returns nil when the submitted secret may write.
// An open gate accepts anything, including no secret at all.
func (g Gate) Check(submitted *string) error {
	if g.secret == "" {
		return nil
	}
	if submitted == nil || !safeEqual(*submitted, g.secret) {
		return ErrUnauthorized
	}
	return nil
}

// safeEqual performs a constant-time string comparison.
// Length mismatches are folded in without an early return.
func safeEqual(a, b string) bool {
	lenMatch := subtle.ConstantTimeEq(int32(len(a)), int32(len(b)))
	cmp := subtle.ConstantTimeCompare([]byte(a), []byte(b))
	return subtle.ConstantTimeSelect(lenMatch, cmp, 0) == 1
}
