package resource

import "sync"

// Counter is an Observer that tracks live resources per type. Decoder
// modules subscribe one to report outstanding staging buffers.
type Counter struct {
	mu    sync.Mutex
	live  map[TypeID]int
	total map[TypeID]int
}

// NewCounter creates an empty counter.
func NewCounter() *Counter {
	return &Counter{
		live:  make(map[TypeID]int),
		total: make(map[TypeID]int),
	}
}

// OnResourceEvent implements Observer.
func (c *Counter) OnResourceEvent(e Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch e.Type {
	case EventCreated:
		c.live[e.TypeID]++
		c.total[e.TypeID]++
	case EventDropped:
		c.live[e.TypeID]--
	}
}

// Live returns the number of resources of typeID created and not yet dropped.
func (c *Counter) Live(typeID TypeID) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.live[typeID]
}

// Total returns the number of resources of typeID ever created.
func (c *Counter) Total(typeID TypeID) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total[typeID]
}
