package chunk

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestQueueFIFOOrder(t *testing.T) {
	q := NewQueue[int](4)
	for i := 0; i < 4; i++ {
		require.True(t, q.Enqueue(i))
	}
	for i := 0; i < 4; i++ {
		v, ok := q.Dequeue()
		require.True(t, ok)
		assert.Equal(t, i, v)
	}
}

func TestQueueEnqueueBlocksWhileFull(t *testing.T) {
	q := NewQueue[int](1)
	require.True(t, q.Enqueue(1))

	done := make(chan struct{})
	go func() {
		q.Enqueue(2)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("enqueue on a full queue should have blocked")
	case <-time.After(50 * time.Millisecond):
	}

	v, ok := q.Dequeue()
	require.True(t, ok)
	assert.Equal(t, 1, v)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("enqueue should have unblocked after a slot freed")
	}
}

func TestQueueTryDequeueNonBlocking(t *testing.T) {
	q := NewQueue[int](2)
	_, ok := q.TryDequeue()
	assert.False(t, ok)

	q.Enqueue(7)
	v, ok := q.TryDequeue()
	require.True(t, ok)
	assert.Equal(t, 7, v)
}

func TestQueueShutdownDrainsThenEndsStream(t *testing.T) {
	q := NewQueue[int](4)
	require.True(t, q.Enqueue(1))
	require.True(t, q.Enqueue(2))

	q.Shutdown()

	assert.False(t, q.Enqueue(3), "enqueue after shutdown must fail")

	v, ok := q.Dequeue()
	require.True(t, ok)
	assert.Equal(t, 1, v)

	v, ok = q.Dequeue()
	require.True(t, ok)
	assert.Equal(t, 2, v)

	_, ok = q.Dequeue()
	assert.False(t, ok, "dequeue must report end-of-stream once drained")
}

func TestQueueShutdownWakesBlockedDequeue(t *testing.T) {
	q := NewQueue[int](1)
	done := make(chan bool, 1)
	go func() {
		_, ok := q.Dequeue()
		done <- ok
	}()

	time.Sleep(20 * time.Millisecond)
	q.Shutdown()

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("shutdown should have woken the blocked dequeue")
	}
}

// TestQueuePropertyFIFOUnderConcurrency exercises spec.md §8 invariant 2
// (order preservation) by interleaving concurrent producer/consumer
// operations against a rapid-driven sequence of queue sizes.
func TestQueuePropertyFIFOUnderConcurrency(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		capacity := rapid.IntRange(1, 8).Draw(rt, "capacity")
		n := rapid.IntRange(1, 64).Draw(rt, "n")

		q := NewQueue[int](capacity)
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < n; i++ {
				q.Enqueue(i)
			}
			q.Shutdown()
		}()

		got := make([]int, 0, n)
		for {
			v, ok := q.Dequeue()
			if !ok {
				break
			}
			got = append(got, v)
		}
		wg.Wait()

		if len(got) != n {
			rt.Fatalf("expected %d items, got %d", n, len(got))
		}
		for i, v := range got {
			if v != i {
				rt.Fatalf("order violated at index %d: got %d want %d", i, v, i)
			}
		}
	})
}
