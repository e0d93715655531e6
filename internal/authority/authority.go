// Package authority separates the authoritative process from observers and
// reports rejected server-only mutations.
package authority

import (
	"context"
	"errors"
	"fmt"

	"fightarena/server/logging"
)

// ErrViolation is returned when a non-authoritative caller attempts a
// server-only mutation.
var ErrViolation = errors.New("authority violation")

// Role tells a component whether it runs on the authoritative process.
type Role uint8

const (
	RoleServer Role = iota
	RoleObserver
)

func (r Role) String() string {
	switch r {
	case RoleServer:
		return "server"
	case RoleObserver:
		return "observer"
	default:
		return "unknown"
	}
}

// EventViolation is published at error severity for every rejected call.
const EventViolation logging.EventType = "authority.violation"

// ViolationPayload describes the rejected operation.
type ViolationPayload struct {
	Operation string `json:"operation"`
	Role      string `json:"role"`
	Reason    string `json:"reason,omitempty"`
}

// Gate checks calls against the role it was built with. The zero value is an
// authoritative gate that does not publish.
type Gate struct {
	Role      Role
	Publisher logging.Publisher
	Tick      func() uint64
}

// NewGate constructs a gate for the given role.
func NewGate(role Role, pub logging.Publisher, tick func() uint64) *Gate {
	return &Gate{Role: role, Publisher: pub, Tick: tick}
}

// Authoritative reports whether the gate belongs to the authoritative process.
func (g *Gate) Authoritative() bool {
	return g == nil || g.Role == RoleServer
}

// Check returns nil when the gate is authoritative. Otherwise it logs the
// attempt and returns ErrViolation.
func (g *Gate) Check(op string) error {
	if g.Authoritative() {
		return nil
	}
	g.Reject(op, logging.EntityRef{Kind: logging.EntityKindWorld}, "observer attempted server-only mutation")
	return fmt.Errorf("%s: %w", op, ErrViolation)
}

// CheckSender rejects requests whose sender is not the owner of the target.
// The owning client's session is the only caller allowed on the request
// surface of a player.
func (g *Gate) CheckSender(op string, sender, owner string) error {
	if err := g.Check(op); err != nil {
		return err
	}
	if sender == owner {
		return nil
	}
	g.Reject(op, logging.EntityRef{ID: sender, Kind: logging.EntityKindPlayer}, "sender does not own "+owner)
	return fmt.Errorf("%s: %w", op, ErrViolation)
}

// Reject publishes a violation event without performing a role check.
func (g *Gate) Reject(op string, actor logging.EntityRef, reason string) {
	if g == nil || g.Publisher == nil {
		return
	}
	var tick uint64
	if g.Tick != nil {
		tick = g.Tick()
	}
	g.Publisher.Publish(context.Background(), logging.Event{
		Type:     EventViolation,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityError,
		Category: logging.CategorySystem,
		Payload:  ViolationPayload{Operation: op, Role: g.Role.String(), Reason: reason},
	})
}
