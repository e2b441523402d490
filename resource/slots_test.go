package resource

import (
	"sync"
	"testing"
)

type dropCounter struct {
	count int
}

func (d *dropCounter) Drop() {
	d.count++
}

func TestSlots_HandleReuse(t *testing.T) {
	var s slots

	h1 := s.put(TypeStagingBuffer, 1)
	h2 := s.put(TypeStagingBuffer, 2)
	h3 := s.put(TypeStagingBuffer, 3)

	s.take(h2)
	s.take(h1)

	h4 := s.put(TypeStagingBuffer, 4)
	h5 := s.put(TypeStagingBuffer, 5)
	if h4 != h1 || h5 != h2 {
		t.Fatalf("expected freed handles reused LIFO, got %d, %d", h4, h5)
	}

	for h, want := range map[Handle]int{h3: 3, h4: 4, h5: 5} {
		e, ok := s.at(h)
		if !ok || e.value != want {
			t.Fatalf("handle %d = %v, %v; want %d", h, e.value, ok, want)
		}
	}
	if s.len() != 3 {
		t.Fatalf("len = %d", s.len())
	}
}

func TestSlots_InvalidHandle(t *testing.T) {
	var s slots
	h := s.put(TypeMemoryFile, "a")
	s.take(h)

	for _, h := range []Handle{0, h, 999} {
		if _, ok := s.at(h); ok {
			t.Fatalf("at(%d) should fail", h)
		}
		if _, ok := s.take(h); ok {
			t.Fatalf("take(%d) should fail", h)
		}
	}
}

func TestSlots_Seal(t *testing.T) {
	var s slots
	a := s.put(TypeMemoryFile, "a")
	b := s.put(TypeStagingBuffer, "b")
	s.take(a)

	live := s.seal()
	if len(live) != 1 || live[0] != b {
		t.Fatalf("seal = %v, want [%d]", live, b)
	}
	if h := s.put(TypeStagingBuffer, "c"); h != 0 {
		t.Fatal("put after seal should return 0")
	}
	if _, ok := s.take(b); !ok {
		t.Fatal("take after seal should still drain")
	}
	if s.seal() != nil {
		t.Fatal("second seal should return nil")
	}
}

func TestSlots_Concurrent(t *testing.T) {
	var s slots
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			h := s.put(TypeStagingBuffer, i)
			s.at(h)
			s.take(h)
		}()
	}

	wg.Wait()
	if s.len() != 0 {
		t.Fatalf("len = %d after concurrent put/take", s.len())
	}
}
