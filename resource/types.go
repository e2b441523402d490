package resource

// Handle is an opaque reference to a resource in a table.
// Handle 0 is reserved and always invalid.
type Handle uint32

// TypeID tags every resource with the kind of value it holds.
type TypeID uint32

const (
	// TypeMemoryFile is an input file bound into a decoder's memory filesystem.
	TypeMemoryFile TypeID = iota + 1
	// TypeStagingBuffer is decoder-owned sample memory awaiting release.
	TypeStagingBuffer
)

func (t TypeID) String() string {
	switch t {
	case TypeMemoryFile:
		return "memory-file"
	case TypeStagingBuffer:
		return "staging-buffer"
	default:
		return "unknown"
	}
}

// Event types for resource lifecycle notifications.
type EventType uint8

const (
	EventCreated EventType = iota
	EventDropped
)

// Event represents a resource lifecycle event.
type Event struct {
	Value  any
	Handle Handle
	TypeID TypeID
	Type   EventType
}

// Observer receives notifications about resource lifecycle events.
type Observer interface {
	OnResourceEvent(Event)
}

// Dropper is optionally implemented by resource values that need cleanup.
type Dropper interface {
	Drop()
}
