package replication

import (
	"sort"
	"sync"
)

type mirrored struct {
	value   any
	version uint64
}

// maxBacklog bounds the batches an unsynced mirror keeps for replay.
const maxBacklog = 256

// Mirror is an observer's read-only projection of authoritative state. It
// never writes back.
type Mirror struct {
	mu       sync.RWMutex
	entities map[string]map[string]mirrored
	visible  map[string]string
	onNotify func(Notification)

	// synced is set by the first Full batch. Until then incremental batches
	// are applied and kept so a snapshot older than them can be rebased.
	synced  bool
	tick    uint64
	backlog []Batch
}

// NewMirror constructs an empty mirror. onNotify receives every one-shot
// notification after the batch's patches are applied; it may be nil.
func NewMirror(onNotify func(Notification)) *Mirror {
	return &Mirror{
		entities: make(map[string]map[string]mirrored),
		visible:  make(map[string]string),
		onNotify: onNotify,
	}
}

// Apply folds a batch into the mirror and returns how many patches took
// effect.
//
// A Full batch resets the mirror to the snapshot, then replays any newer
// incremental batch that arrived before it. Once synced, batches whose tick
// is not newer than the mirror's are already reflected and are skipped, as
// is a snapshot older than the mirror.
func (m *Mirror) Apply(batch Batch) int {
	m.mu.Lock()
	var applied int
	switch {
	case batch.Full:
		if m.synced && batch.Tick < m.tick {
			m.mu.Unlock()
			return 0
		}
		clear(m.entities)
		clear(m.visible)
		applied = m.applyLocked(batch)
		m.synced = true
		m.tick = batch.Tick
		for _, pending := range m.backlog {
			if pending.Tick > m.tick {
				applied += m.applyLocked(pending)
				m.tick = pending.Tick
			}
		}
		m.backlog = nil
	case m.synced:
		if batch.Tick <= m.tick {
			m.mu.Unlock()
			return 0
		}
		applied = m.applyLocked(batch)
		m.tick = batch.Tick
	default:
		applied = m.applyLocked(batch)
		if len(m.backlog) == maxBacklog {
			m.backlog = append(m.backlog[:0], m.backlog[1:]...)
		}
		m.backlog = append(m.backlog, batch)
	}
	onNotify := m.onNotify
	m.mu.Unlock()

	if onNotify != nil {
		for _, n := range batch.Notifications {
			onNotify(n)
		}
	}
	return applied
}

// applyLocked applies spawns and despawns first so a recycled entity starts
// from empty fields, then patches last-value-wins by version.
func (m *Mirror) applyLocked(batch Batch) int {
	for _, n := range batch.Notifications {
		switch n.Type {
		case NotifySpawn:
			m.visible[n.Entity] = spawnKind(n.Payload)
		case NotifyDespawn:
			delete(m.visible, n.Entity)
			delete(m.entities, n.Entity)
		}
	}
	applied := 0
	for _, p := range batch.Patches {
		fields := m.entities[p.Entity]
		if fields == nil {
			fields = make(map[string]mirrored)
			m.entities[p.Entity] = fields
		}
		if current, ok := fields[p.Field]; ok && current.version >= p.Version {
			continue
		}
		fields[p.Field] = mirrored{value: p.Value, version: p.Version}
		applied++
	}
	return applied
}

// Tick reports the tick the mirror is synced to, and whether it has
// received a snapshot yet.
func (m *Mirror) Tick() (uint64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tick, m.synced
}

func spawnKind(payload any) string {
	switch typed := payload.(type) {
	case SpawnPayload:
		return typed.Kind
	case map[string]any:
		if kind, ok := typed["kind"].(string); ok {
			return kind
		}
	}
	return ""
}

// Get returns the mirrored value and version of a field.
func (m *Mirror) Get(entity, field string) (any, uint64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.entities[entity][field]
	if !ok {
		return nil, 0, false
	}
	return entry.value, entry.version, true
}

// Visible reports whether entity is currently spawned and its kind.
func (m *Mirror) Visible(entity string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	kind, ok := m.visible[entity]
	return kind, ok
}

// VisibleEntities lists spawned entities in order.
func (m *Mirror) VisibleEntities() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.visible))
	for entity := range m.visible {
		out = append(out, entity)
	}
	sort.Strings(out)
	return out
}
