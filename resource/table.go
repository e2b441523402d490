package resource

import "sync"

// Table holds a decoder module's files and staging buffers behind handles
// and reports every create and drop to its observers.
type Table struct {
	store     slots
	obsMu     sync.RWMutex
	observers []Observer
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{}
}

// Insert adds value and returns its handle, or 0 once the table is closed.
func (t *Table) Insert(typeID TypeID, value any) Handle {
	h := t.store.put(typeID, value)
	if h == 0 {
		return 0
	}
	t.notify(Event{Type: EventCreated, Handle: h, TypeID: typeID, Value: value})
	return h
}

// Get returns the value behind handle.
func (t *Table) Get(handle Handle) (any, bool) {
	e, ok := t.store.at(handle)
	return e.value, ok
}

// Lookup returns the value behind handle if it was inserted as typeID and
// holds a T.
func Lookup[T any](t *Table, handle Handle, typeID TypeID) (T, bool) {
	var zero T
	e, ok := t.store.at(handle)
	if !ok || e.typeID != typeID {
		return zero, false
	}
	v, ok := e.value.(T)
	return v, ok
}

// Remove drops handle, calling Drop on values that implement Dropper.
// Removing a handle twice is a no-op the second time.
func (t *Table) Remove(handle Handle) (any, bool) {
	e, ok := t.store.take(handle)
	if !ok {
		return nil, false
	}
	if d, ok := e.value.(Dropper); ok {
		d.Drop()
	}
	t.notify(Event{Type: EventDropped, Handle: handle, TypeID: e.typeID, Value: e.value})
	return e.value, true
}

// Subscribe adds an observer for lifecycle events.
func (t *Table) Subscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	t.observers = append(t.observers, o)
}

// Len returns the number of live resources.
func (t *Table) Len() int {
	return t.store.len()
}

// CountType returns the number of live resources of one type.
func (t *Table) CountType(typeID TypeID) int {
	return t.store.count(typeID)
}

// Close drops everything still live, notifying observers, and rejects later
// inserts. Later calls are no-ops.
func (t *Table) Close() error {
	for _, h := range t.store.seal() {
		t.Remove(h)
	}
	return nil
}

func (t *Table) notify(e Event) {
	t.obsMu.RLock()
	defer t.obsMu.RUnlock()
	for _, o := range t.observers {
		o.OnResourceEvent(e)
	}
}
