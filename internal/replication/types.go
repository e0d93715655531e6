// Package replication carries authoritative state to observers: versioned
// fields that only the authority writes, one-shot notifications, and the
// read-only mirror observers apply them to.
package replication

import "fightarena/server/internal/vmath"

// NotificationType names a one-shot authority-to-observer message.
type NotificationType string

const (
	NotifySpawn       NotificationType = "spawn"
	NotifyDespawn     NotificationType = "despawn"
	NotifyImpact      NotificationType = "impact"
	NotifyPullImpulse NotificationType = "pull_impulse"
	NotifyDefeat      NotificationType = "defeat"
)

// Patch is a field change. Observers keep the highest version per field.
type Patch struct {
	Entity  string `json:"entity" msgpack:"entity"`
	Field   string `json:"field" msgpack:"field"`
	Value   any    `json:"value" msgpack:"value"`
	Version uint64 `json:"version" msgpack:"version"`
}

// Notification is fire-and-forget. Delivery is best effort.
type Notification struct {
	Type    NotificationType `json:"type" msgpack:"type"`
	Entity  string           `json:"entity,omitempty" msgpack:"entity,omitempty"`
	Payload any              `json:"payload,omitempty" msgpack:"payload,omitempty"`
}

// Batch is everything one tick produced. A Full batch is a snapshot: it
// replaces the observer's state as of Tick instead of adding to it.
type Batch struct {
	Tick          uint64         `json:"tick" msgpack:"tick"`
	Full          bool           `json:"full,omitempty" msgpack:"full,omitempty"`
	Patches       []Patch        `json:"patches,omitempty" msgpack:"patches,omitempty"`
	Notifications []Notification `json:"notifications,omitempty" msgpack:"notifications,omitempty"`
}

// Empty reports whether the batch carries nothing.
func (b Batch) Empty() bool {
	return len(b.Patches) == 0 && len(b.Notifications) == 0
}

// SpawnPayload accompanies NotifySpawn.
type SpawnPayload struct {
	Kind     string     `json:"kind" msgpack:"kind"`
	Position vmath.Vec3 `json:"position" msgpack:"position"`
	Rotation vmath.Quat `json:"rotation" msgpack:"rotation"`
}

// ImpactPayload accompanies NotifyImpact.
type ImpactPayload struct {
	Point  vmath.Vec3 `json:"point" msgpack:"point"`
	Normal vmath.Vec3 `json:"normal" msgpack:"normal"`
}

// PullImpulsePayload accompanies NotifyPullImpulse.
type PullImpulsePayload struct {
	Target  string     `json:"target" msgpack:"target"`
	Impulse vmath.Vec3 `json:"impulse" msgpack:"impulse"`
}
