package pool

import (
	"errors"
	"fmt"

	"fightarena/server/internal/authority"
)

var (
	// ErrExhausted means no idle slot exists and the kind cannot grow.
	ErrExhausted = errors.New("pool exhausted")
	// ErrNotPooled means a release named an unknown or already idle handle.
	ErrNotPooled = errors.New("handle not pooled")
	// ErrUnknownKind means the kind was never configured.
	ErrUnknownKind = errors.New("unknown entity kind")
	// ErrAuthorityViolation is returned to non-authoritative callers.
	ErrAuthorityViolation = authority.ErrViolation
)

// ConfigError reports an invalid or repeated Configure call.
type ConfigError struct {
	Kind   EntityKind
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("pool: configure %s: %s", e.Kind, e.Reason)
}

// AcquireError wraps the reason an acquire produced no handle.
type AcquireError struct {
	Kind EntityKind
	Err  error
}

func (e *AcquireError) Error() string {
	return fmt.Sprintf("pool: acquire %s: %v", e.Kind, e.Err)
}

func (e *AcquireError) Unwrap() error {
	return e.Err
}
