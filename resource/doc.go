// Package resource provides handle tables for decoder-owned resources.
//
// A decoder module holds two kinds of resources on behalf of a session: the
// input file bound into its memory filesystem, and the staging buffers that
// carry decoded samples until the caller has copied them out. Both live in a
// Table so that every acquisition has a matching, observable release.
//
// # Handle Table
//
// The Table maps integer handles to Go values:
//
//	table := resource.NewTable()
//
//	handle := table.Insert(resource.TypeStagingBuffer, buf)
//	buf, ok := resource.Lookup[*Buffer](table, handle, resource.TypeStagingBuffer)
//	_, ok = table.Remove(handle) // second Remove returns !ok
//
// Handle 0 is never issued. Freed handles are reused, so holders that may
// release more than once must guard their own Remove.
//
// # Observers
//
// Observers see every create and drop. Counter is the observer decoder
// modules use to report outstanding staging buffers:
//
//	counter := resource.NewCounter()
//	table.Subscribe(counter)
//	...
//	if counter.Live(resource.TypeStagingBuffer) != 0 { /* leak */ }
//
// # Cleanup
//
// Values implementing Dropper have Drop called when removed. Close drops
// everything still live, notifying observers, and rejects later inserts.
package resource
