package ringbuffer

import "testing"

func TestNewRingBuffer(t *testing.T) {
	rb := New[int](10)
	if rb.Capacity() != 10 {
		t.Errorf("expected capacity 10, got %d", rb.Capacity())
	}
	if rb.Len() != 0 {
		t.Errorf("expected len 0, got %d", rb.Len())
	}
	if !rb.IsEmpty() {
		t.Error("new buffer should be empty")
	}
}

func TestPushWithinCapacity(t *testing.T) {
	rb := New[int](3)
	rb.Push(1)
	rb.Push(2)

	if got := rb.Items(); len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Errorf("expected [1 2], got %v", got)
	}
	if rb.Len() != 2 {
		t.Errorf("expected len 2, got %d", rb.Len())
	}
}

func TestPushOverwritesOldestWhenFull(t *testing.T) {
	rb := New[int](3)
	rb.Push(1)
	rb.Push(2)
	rb.Push(3)
	rb.Push(4) // overwrites 1

	got := rb.Items()
	want := []int{4, 2, 3}
	for i, v := range want {
		if got[i] != v {
			t.Errorf("index %d: got %d, want %d", i, got[i], v)
		}
	}
}

func TestPushWrapsAround(t *testing.T) {
	rb := New[int](2)
	rb.Push(10)
	rb.Push(20)
	rb.Push(30) // overwrites 10
	rb.Push(40) // overwrites 20

	got := rb.Items()
	want := []int{30, 40}
	for i, v := range want {
		if got[i] != v {
			t.Errorf("index %d: got %d, want %d", i, got[i], v)
		}
	}
}

func TestPushCapacityOne(t *testing.T) {
	rb := New[int](1)
	rb.Push(5)
	rb.Push(6)

	got := rb.Items()
	if len(got) != 1 || got[0] != 6 {
		t.Errorf("expected only [6], got %v", got)
	}
}

func TestLenMatchesItems(t *testing.T) {
	rb := New[int](3)
	if rb.Len() != len(rb.Items()) {
		t.Fatal("len mismatch on empty buffer")
	}
	rb.Push(1)
	rb.Push(2)
	if rb.Len() != len(rb.Items()) {
		t.Fatal("len mismatch after partial fill")
	}
	rb.Push(3)
	rb.Push(4)
	if rb.Len() != len(rb.Items()) {
		t.Fatal("len mismatch after overwrite")
	}
}

func TestIsFull(t *testing.T) {
	rb := New[int](3)
	rb.Push(1)
	rb.Push(2)
	rb.Push(3)
	if !rb.IsFull() {
		t.Error("buffer should be full")
	}
}

func TestDrainResetsBuffer(t *testing.T) {
	rb := New[int](3)
	rb.Push(1)
	rb.Push(2)
	rb.Push(3)

	drained := rb.Drain()
	if len(drained) != 3 {
		t.Fatalf("expected 3 drained items, got %d", len(drained))
	}
	if rb.Len() != 0 || !rb.IsEmpty() {
		t.Error("buffer should be empty after drain")
	}

	rb.Push(100)
	if got := rb.Items(); len(got) != 1 || got[0] != 100 {
		t.Errorf("expected [100] after drain+push, got %v", got)
	}
}

func TestMinLenEqualsCountOrCapacity(t *testing.T) {
	rb := New[int](4)
	for i := 0; i < 10; i++ {
		rb.Push(i)
		expected := i + 1
		if expected > rb.Capacity() {
			expected = rb.Capacity()
		}
		if rb.Len() != expected {
			t.Fatalf("after %d pushes: expected len %d, got %d", i+1, expected, rb.Len())
		}
		if rb.IsFull() != (rb.Len() == rb.Capacity()) {
			t.Fatalf("IsFull inconsistent with len/capacity at push %d", i+1)
		}
	}
}
