package mqtt

import "testing"

func TestRingBufferPushDrain(t *testing.T) {
	r := newRingBuffer(4)

	r.push(bufferedMsg{topic: "a", payload: []byte("1")})
	r.push(bufferedMsg{topic: "b", payload: []byte("2")})

	if r.len() != 2 {
		t.Fatalf("len: got %d, want 2", r.len())
	}

	msgs := r.drainAll()
	if len(msgs) != 2 {
		t.Fatalf("drainAll: got %d messages, want 2", len(msgs))
	}
	if msgs[0].topic != "a" || msgs[1].topic != "b" {
		t.Errorf("FIFO order violated: %q, %q", msgs[0].topic, msgs[1].topic)
	}
	if r.len() != 0 {
		t.Errorf("len after drain: got %d, want 0", r.len())
	}
}

func TestRingBufferDrainEmpty(t *testing.T) {
	r := newRingBuffer(4)
	if msgs := r.drainAll(); msgs != nil {
		t.Errorf("drainAll on empty buffer: got %v, want nil", msgs)
	}
}

func TestRingBufferOverflowDropsOldest(t *testing.T) {
	r := newRingBuffer(3)

	r.push(bufferedMsg{topic: "1"})
	r.push(bufferedMsg{topic: "2"})
	r.push(bufferedMsg{topic: "3"})
	r.push(bufferedMsg{topic: "4"})
	r.push(bufferedMsg{topic: "5"})

	if r.len() != 3 {
		t.Fatalf("len: got %d, want 3", r.len())
	}

	msgs := r.drainAll()
	want := []string{"3", "4", "5"}
	for i, w := range want {
		if msgs[i].topic != w {
			t.Errorf("msg %d: got %q, want %q", i, msgs[i].topic, w)
		}
	}
}

func TestRingBufferReuseAfterDrain(t *testing.T) {
	r := newRingBuffer(2)

	r.push(bufferedMsg{topic: "a"})
	r.push(bufferedMsg{topic: "b"})
	r.push(bufferedMsg{topic: "c"}) // drops "a"
	r.drainAll()

	r.push(bufferedMsg{topic: "d"})
	msgs := r.drainAll()
	if len(msgs) != 1 || msgs[0].topic != "d" {
		t.Errorf("after drain: got %+v, want single %q", msgs, "d")
	}
}
