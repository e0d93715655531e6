package replication

import (
	"sort"
	"sync"

	"fightarena/server/internal/pool"
)

type fieldKey struct {
	entity string
	field  string
}

// Journal accumulates one tick's patches and notifications and keeps the
// latest value of every live field so late joiners can be brought up to
// date. It implements pool.Replicator.
type Journal struct {
	mu            sync.Mutex
	patches       []Patch
	patchIndex    map[fieldKey]int
	notifications []Notification

	live    map[string]map[string]Patch
	spawned map[string]SpawnPayload
}

// NewJournal constructs an empty journal.
func NewJournal() *Journal {
	return &Journal{
		patchIndex: make(map[fieldKey]int),
		live:       make(map[string]map[string]Patch),
		spawned:    make(map[string]SpawnPayload),
	}
}

// RecordPatch satisfies PatchSink. Several writes to one field within a tick
// collapse to the newest.
func (j *Journal) RecordPatch(p Patch) {
	j.mu.Lock()
	defer j.mu.Unlock()
	k := fieldKey{entity: p.Entity, field: p.Field}
	if idx, ok := j.patchIndex[k]; ok {
		if p.Version >= j.patches[idx].Version {
			j.patches[idx] = p
		}
	} else {
		j.patchIndex[k] = len(j.patches)
		j.patches = append(j.patches, p)
	}
	fields := j.live[p.Entity]
	if fields == nil {
		fields = make(map[string]Patch)
		j.live[p.Entity] = fields
	}
	if current, ok := fields[p.Field]; !ok || p.Version >= current.Version {
		fields[p.Field] = p
	}
}

// Notify queues a one-shot notification.
func (j *Journal) Notify(n Notification) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.notifications = append(j.notifications, n)
}

// Spawned satisfies pool.Replicator.
func (j *Journal) Spawned(kind pool.EntityKind, handle pool.Handle, transform pool.Transform) {
	j.SpawnEntity(handle.String(), SpawnPayload{Kind: kind.String(), Position: transform.Position, Rotation: transform.Rotation})
}

// Despawned satisfies pool.Replicator.
func (j *Journal) Despawned(kind pool.EntityKind, handle pool.Handle) {
	j.DespawnEntity(handle.String(), kind.String())
}

// SpawnEntity makes a non-pooled entity, such as a player, visible.
func (j *Journal) SpawnEntity(entity string, payload SpawnPayload) {
	j.mu.Lock()
	j.spawned[entity] = payload
	j.mu.Unlock()
	j.Notify(Notification{Type: NotifySpawn, Entity: entity, Payload: payload})
}

// DespawnEntity hides entity. Its pending patches are dropped with it.
func (j *Journal) DespawnEntity(entity, kind string) {
	j.Forget(entity)
	j.Notify(Notification{Type: NotifyDespawn, Entity: entity, Payload: SpawnPayload{Kind: kind}})
}

// Forget drops every live and pending field of entity.
func (j *Journal) Forget(entity string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	delete(j.live, entity)
	delete(j.spawned, entity)
	if len(j.patches) == 0 {
		return
	}
	kept := j.patches[:0]
	for _, p := range j.patches {
		if p.Entity != entity {
			kept = append(kept, p)
		}
	}
	for i := len(kept); i < len(j.patches); i++ {
		j.patches[i] = Patch{}
	}
	j.patches = kept
	j.reindexLocked()
}

func (j *Journal) reindexLocked() {
	clear(j.patchIndex)
	for i, p := range j.patches {
		j.patchIndex[fieldKey{entity: p.Entity, field: p.Field}] = i
	}
}

// Drain returns and clears what the current tick produced.
func (j *Journal) Drain(tick uint64) Batch {
	j.mu.Lock()
	defer j.mu.Unlock()
	batch := Batch{Tick: tick, Patches: j.patches, Notifications: j.notifications}
	j.patches = nil
	j.notifications = nil
	clear(j.patchIndex)
	return batch
}

// Snapshot returns spawn notifications for every visible entity followed by
// the latest value of every live field, in a stable order. The batch is
// marked Full and reflects every change carried by batches up to tick.
func (j *Journal) Snapshot(tick uint64) Batch {
	j.mu.Lock()
	defer j.mu.Unlock()
	entities := make([]string, 0, len(j.live)+len(j.spawned))
	seen := make(map[string]struct{}, len(j.live)+len(j.spawned))
	for entity := range j.spawned {
		entities = append(entities, entity)
		seen[entity] = struct{}{}
	}
	for entity := range j.live {
		if _, ok := seen[entity]; !ok {
			entities = append(entities, entity)
		}
	}
	sort.Strings(entities)

	batch := Batch{Tick: tick, Full: true}
	for _, entity := range entities {
		if spawn, ok := j.spawned[entity]; ok {
			batch.Notifications = append(batch.Notifications, Notification{Type: NotifySpawn, Entity: entity, Payload: spawn})
		}
		fields := j.live[entity]
		names := make([]string, 0, len(fields))
		for name := range fields {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			batch.Patches = append(batch.Patches, fields[name])
		}
	}
	return batch
}
