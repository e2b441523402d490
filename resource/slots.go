package resource

import "sync"

type slot struct {
	value  any
	typeID TypeID
	live   bool
}

// slots is the storage behind a Table. Handle h lives at items[h-1]; freed
// handles are reused most recent first.
type slots struct {
	mu     sync.RWMutex
	items  []slot
	free   []Handle
	live   int
	sealed bool
}

// put stores value and returns its handle, or 0 once sealed.
func (s *slots) put(typeID TypeID, value any) Handle {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sealed {
		return 0
	}
	s.live++
	e := slot{value: value, typeID: typeID, live: true}
	if n := len(s.free); n > 0 {
		h := s.free[n-1]
		s.free = s.free[:n-1]
		s.items[h-1] = e
		return h
	}
	s.items = append(s.items, e)
	return Handle(len(s.items))
}

func (s *slots) at(h Handle) (slot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if h == 0 || int(h) > len(s.items) || !s.items[h-1].live {
		return slot{}, false
	}
	return s.items[h-1], true
}

// take frees h and returns what it held. It works after seal so that
// sealed tables can still be drained.
func (s *slots) take(h Handle) (slot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if h == 0 || int(h) > len(s.items) || !s.items[h-1].live {
		return slot{}, false
	}
	e := s.items[h-1]
	s.items[h-1] = slot{}
	s.free = append(s.free, h)
	s.live--
	return e, true
}

// seal rejects later puts and returns the handles still live. The second
// call returns nil.
func (s *slots) seal() []Handle {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sealed {
		return nil
	}
	s.sealed = true
	var hs []Handle
	for i, e := range s.items {
		if e.live {
			hs = append(hs, Handle(i+1))
		}
	}
	return hs
}

func (s *slots) count(typeID TypeID) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, e := range s.items {
		if e.live && e.typeID == typeID {
			n++
		}
	}
	return n
}

func (s *slots) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.live
}
