package fetchqueue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitTimeout = 2 * time.Second

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for value")
	}
	var zero T
	return zero
}

func TestQueue_SettlesWithOperationOutcome(t *testing.T) {
	q := New[string](DefaultMaxConcurrent)

	ok := q.Add(func() (string, error) { return "https://x/a.png", nil })
	bad := q.Add(func() (string, error) { return "", errors.New("boom") })

	v, err := ok.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://x/a.png", v)

	_, err = bad.Wait(context.Background())
	assert.EqualError(t, err, "boom")
}

func TestQueue_NeverExceedsMaxConcurrent(t *testing.T) {
	const k = 3
	q := New[int](k)

	var current, peak atomic.Int32
	futures := make([]*Future[int], 0, 20)
	for i := 0; i < 20; i++ {
		i := i
		futures = append(futures, q.Add(func() (int, error) {
			n := current.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			current.Add(-1)
			return i, nil
		}))
		assert.LessOrEqual(t, q.Running(), k)
	}

	for i, f := range futures {
		v, err := f.Wait(context.Background())
		require.NoError(t, err)
		assert.Equal(t, i, v)
	}

	assert.LessOrEqual(t, int(peak.Load()), k)
	assert.Equal(t, int32(k), peak.Load(), "all slots should have been used")
	assert.Equal(t, 0, q.Running())
	assert.Equal(t, 0, q.Pending())
}

func TestQueue_AdmissionIsFIFO(t *testing.T) {
	q := New[int](1)

	var mu sync.Mutex
	var order []int
	gate := make(chan struct{})

	futures := make([]*Future[int], 0, 10)
	for i := 0; i < 10; i++ {
		i := i
		futures = append(futures, q.Add(func() (int, error) {
			if i == 0 {
				<-gate
			}
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return i, nil
		}))
	}
	assert.Equal(t, 9, q.Pending())
	close(gate)

	for _, f := range futures {
		_, err := f.Wait(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, order)
}

// Five operations with latencies 50, 10, 30, 5 and 5ms on three slots. The
// releases below follow those latencies: 2 finishes first, freeing a slot for
// 4; 4 finishes next, freeing a slot for 5. The fourth admitted item starts
// first regardless of its own latency.
func TestQueue_LatencyScenario(t *testing.T) {
	q := New[int](3)

	started := make(chan int, 5)
	gates := map[int]chan struct{}{}
	for id := 1; id <= 5; id++ {
		gates[id] = make(chan struct{})
	}

	futures := map[int]*Future[int]{}
	for id := 1; id <= 5; id++ {
		id := id
		futures[id] = q.Add(func() (int, error) {
			started <- id
			<-gates[id]
			return id, nil
		})
	}

	// t=0: exactly 1-3 are running
	assert.Equal(t, 3, q.Running())
	assert.Equal(t, 2, q.Pending())
	first := map[int]bool{}
	for i := 0; i < 3; i++ {
		first[receive(t, started)] = true
	}
	assert.Equal(t, map[int]bool{1: true, 2: true, 3: true}, first)

	// t=10ms: 2 completes, 4 is admitted, 5 still waits
	close(gates[2])
	assert.Equal(t, 4, receive(t, started))
	_, err := futures[2].Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, q.Pending())
	assert.Equal(t, 3, q.Running())

	// t=15ms: 4 completes, 5 is admitted
	close(gates[4])
	assert.Equal(t, 5, receive(t, started))
	assert.Equal(t, 0, q.Pending())

	close(gates[5])
	close(gates[3])
	close(gates[1])
	for id, f := range futures {
		v, err := f.Wait(context.Background())
		require.NoError(t, err)
		assert.Equal(t, id, v)
	}
}

func TestQueue_FailureDoesNotBlockOthers(t *testing.T) {
	q := New[string](1)

	failed := q.Add(func() (string, error) { return "", errors.New("network down") })
	next := q.Add(func() (string, error) { return "ok", nil })

	_, err := failed.Wait(context.Background())
	assert.Error(t, err)

	v, err := next.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestQueue_PanicReleasesSlot(t *testing.T) {
	q := New[int](1)

	crashed := q.Add(func() (int, error) { panic("kaboom") })
	next := q.Add(func() (int, error) { return 7, nil })

	_, err := crashed.Wait(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaboom")

	v, err := next.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestFuture_WaitHonoursContext(t *testing.T) {
	q := New[int](1)
	gate := make(chan struct{})
	f := q.Add(func() (int, error) {
		<-gate
		return 1, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := f.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// the operation is not cancelled and still settles
	close(gate)
	v, err := f.Result()
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestNew_ClampsMaxConcurrent(t *testing.T) {
	assert.Equal(t, 1, New[int](0).MaxConcurrent())
	assert.Equal(t, 1, New[int](-4).MaxConcurrent())
	assert.Equal(t, 3, New[int](3).MaxConcurrent())
}
