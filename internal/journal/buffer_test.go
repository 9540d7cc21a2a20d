package journal

import (
	"testing"
)

func TestBufferSendReceive(t *testing.T) {
	b := newGrowableBuffer[int](4)

	for i := 0; i < 3; i++ {
		if !b.send(i) {
			t.Fatalf("send(%d) returned false", i)
		}
	}

	for i := 0; i < 3; i++ {
		v, ok := b.tryReceive()
		if !ok || v != i {
			t.Fatalf("tryReceive() = (%d, %v), want (%d, true)", v, ok, i)
		}
	}

	if _, ok := b.tryReceive(); ok {
		t.Error("tryReceive() on empty buffer returned true")
	}
}

func TestBufferGrows(t *testing.T) {
	b := newGrowableBuffer[int](2)

	for i := 0; i < 100; i++ {
		if !b.send(i) {
			t.Fatalf("send(%d) returned false", i)
		}
	}
	if b.len() != 100 {
		t.Fatalf("len() = %d, want 100", b.len())
	}

	// FIFO order survives growth
	for i := 0; i < 100; i++ {
		v, ok := b.tryReceive()
		if !ok || v != i {
			t.Fatalf("tryReceive() = (%d, %v), want (%d, true)", v, ok, i)
		}
	}
}

func TestBufferGrowWrapped(t *testing.T) {
	b := newGrowableBuffer[int](8)

	// Advance head so the ring wraps before growing.
	for i := 0; i < 4; i++ {
		b.send(i)
	}
	for i := 0; i < 4; i++ {
		b.tryReceive()
	}
	for i := 10; i < 30; i++ {
		b.send(i)
	}

	for i := 10; i < 30; i++ {
		v, ok := b.tryReceive()
		if !ok || v != i {
			t.Fatalf("tryReceive() = (%d, %v), want (%d, true)", v, ok, i)
		}
	}
}

func TestBufferClosedRejectsSend(t *testing.T) {
	b := newGrowableBuffer[int](4)
	b.send(1)
	b.close()

	if b.send(2) {
		t.Error("send() after close returned true")
	}

	// items queued before close still drain
	got := b.drainTo(0)
	if len(got) != 1 || got[0] != 1 {
		t.Errorf("drainTo(0) = %v, want [1]", got)
	}
}

func TestBufferDrainToMax(t *testing.T) {
	b := newGrowableBuffer[int](16)
	for i := 0; i < 10; i++ {
		b.send(i)
	}

	first := b.drainTo(4)
	if len(first) != 4 || first[0] != 0 || first[3] != 3 {
		t.Fatalf("drainTo(4) = %v", first)
	}
	if b.len() != 6 {
		t.Errorf("len() = %d, want 6", b.len())
	}
}
