package replication

import "fightarena/server/internal/authority"

// PatchSink receives field changes for transport.
type PatchSink interface {
	RecordPatch(Patch)
}

// Field is a replicated value with a version that grows on every change.
// The authoritative process is its only writer.
type Field[T comparable] struct {
	entity  string
	name    string
	value   T
	version uint64
	sink    PatchSink
	gate    *authority.Gate
	subs    map[int]func(value T, version uint64)
	nextSub int
}

// NewField constructs a field owned by entity. sink and gate may be nil.
func NewField[T comparable](entity, name string, initial T, sink PatchSink, gate *authority.Gate) *Field[T] {
	return &Field[T]{entity: entity, name: name, value: initial, sink: sink, gate: gate}
}

// Get returns the current value.
func (f *Field[T]) Get() T {
	return f.value
}

// Version returns the current version. Zero means never written.
func (f *Field[T]) Version() uint64 {
	return f.version
}

// Name returns the field's name on the wire.
func (f *Field[T]) Name() string {
	return f.name
}

// Set writes value. Writing the current value is a no-op.
func (f *Field[T]) Set(value T) error {
	if err := f.gate.Check("field.set:" + f.name); err != nil {
		return err
	}
	if value == f.value {
		return nil
	}
	f.value = value
	f.version++
	f.publish()
	return nil
}

// Reset writes value and publishes it even when unchanged. Pooled entities
// call it on acquire so observers of the new life receive every field.
func (f *Field[T]) Reset(value T) error {
	if err := f.gate.Check("field.reset:" + f.name); err != nil {
		return err
	}
	f.value = value
	f.version++
	f.publish()
	return nil
}

func (f *Field[T]) publish() {
	if f.sink != nil {
		f.sink.RecordPatch(Patch{Entity: f.entity, Field: f.name, Value: f.value, Version: f.version})
	}
	for _, fn := range f.subs {
		fn(f.value, f.version)
	}
}

// Subscribe registers fn for every change and returns a function that
// removes it.
func (f *Field[T]) Subscribe(fn func(value T, version uint64)) func() {
	if fn == nil {
		return func() {}
	}
	if f.subs == nil {
		f.subs = make(map[int]func(T, uint64))
	}
	id := f.nextSub
	f.nextSub++
	f.subs[id] = fn
	return func() { delete(f.subs, id) }
}
