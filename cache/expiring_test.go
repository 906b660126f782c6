package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// brokenStore fails every call, like a full or disabled storage area
type brokenStore struct{}

func (brokenStore) Load(context.Context) ([]byte, error) { return nil, errors.New("storage disabled") }
func (brokenStore) Save(context.Context, []byte) error   { return errors.New("quota exceeded") }

// flakyStore fails the next Load after failNext is set
type flakyStore struct {
	*MemoryStore
	mu       sync.Mutex
	failNext bool
}

func (f *flakyStore) Load(ctx context.Context) ([]byte, error) {
	f.mu.Lock()
	fail := f.failNext
	f.failNext = false
	f.mu.Unlock()
	if fail {
		return nil, errors.New("connection reset by peer")
	}
	return f.MemoryStore.Load(ctx)
}

// gatedStore blocks Save until release is closed
type gatedStore struct {
	*MemoryStore
	saving  chan struct{}
	release chan struct{}
}

func (g *gatedStore) Save(ctx context.Context, data []byte) error {
	close(g.saving)
	<-g.release
	return g.MemoryStore.Save(ctx, data)
}

func decodeBlob(t *testing.T, s Store) Blob {
	t.Helper()
	data, err := s.Load(context.Background())
	require.NoError(t, err)
	var blob Blob
	require.NoError(t, json.Unmarshal(data, &blob))
	return blob
}

func TestExpiring_PutThenGet(t *testing.T) {
	ctx := context.Background()
	c := NewExpiring(NewMemoryStore(), WithClock(newFakeClock().Now))

	c.Put(ctx, "sucuk", "https://cdn.example.com/sucuk.png")

	got, ok := c.Get(ctx, "sucuk")
	require.True(t, ok)
	assert.Equal(t, "https://cdn.example.com/sucuk.png", got)

	_, ok = c.Get(ctx, "missing")
	assert.False(t, ok)
}

func TestExpiring_LastWriteWins(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	clock := newFakeClock()
	c := NewExpiring(store, WithClock(clock.Now))

	c.Put(ctx, "a", "https://x/1.png")
	clock.Advance(time.Minute)
	c.Put(ctx, "a", "https://x/2.png")

	got, ok := c.Get(ctx, "a")
	require.True(t, ok)
	assert.Equal(t, "https://x/2.png", got)

	blob := decodeBlob(t, store)
	require.Len(t, blob, 1)
	assert.Equal(t, clock.Now().UnixMilli(), blob["a"].Timestamp)
}

func TestExpiring_ExpiresAtReadTime(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	clock := newFakeClock()
	c := NewExpiring(store, WithClock(clock.Now))

	c.Put(ctx, "old", "https://x/old.png")

	clock.Advance(DefaultTTL - time.Millisecond)
	_, ok := c.Get(ctx, "old")
	assert.True(t, ok, "entry should still be fresh just before the TTL")

	clock.Advance(time.Millisecond)
	_, ok = c.Get(ctx, "old")
	assert.False(t, ok, "entry exactly TTL old is stale")

	// the stale entry is still persisted until the next write
	assert.Contains(t, decodeBlob(t, store), "old")

	c.Put(ctx, "new", "https://x/new.png")
	blob := decodeBlob(t, store)
	assert.NotContains(t, blob, "old")
	assert.Contains(t, blob, "new")
}

func TestExpiring_WireFormat(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	clock := newFakeClock()
	c := NewExpiring(store, WithClock(clock.Now))

	c.Put(ctx, "user", "https://x/u.png")

	data, err := store.Load(ctx)
	require.NoError(t, err)

	var raw map[string]map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "https://x/u.png", raw["user"]["url"])
	assert.EqualValues(t, clock.Now().UnixMilli(), raw["user"]["timestamp"])
}

func TestExpiring_CorruptBlob(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Save(ctx, []byte("{not json")))

	c := NewExpiring(store, WithClock(newFakeClock().Now))

	_, ok := c.Get(ctx, "anyone")
	assert.False(t, ok)
	assert.Empty(t, c.Snapshot(ctx))

	// a write replaces the corrupt blob
	c.Put(ctx, "anyone", "https://x/a.png")
	got, ok := c.Get(ctx, "anyone")
	require.True(t, ok)
	assert.Equal(t, "https://x/a.png", got)
}

func TestExpiring_UnavailableStore(t *testing.T) {
	ctx := context.Background()
	c := NewExpiring(brokenStore{})

	assert.NotPanics(t, func() { c.Put(ctx, "k", "https://x/k.png") })
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestExpiring_PutKeepsEntriesWhenLoadFails(t *testing.T) {
	ctx := context.Background()
	store := &flakyStore{MemoryStore: NewMemoryStore()}
	c := NewExpiring(store, WithClock(newFakeClock().Now))

	c.Put(ctx, "a", "https://x/a.png")
	c.Put(ctx, "b", "https://x/b.png")

	store.mu.Lock()
	store.failNext = true
	store.mu.Unlock()
	c.Put(ctx, "c", "https://x/c.png")

	assert.Equal(t, map[string]string{
		"a": "https://x/a.png",
		"b": "https://x/b.png",
	}, c.Snapshot(ctx))
}

func TestExpiring_GetDoesNotWaitForSlowSave(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStore()
	seed := NewExpiring(mem)
	seed.Put(ctx, "cached", "https://x/cached.png")

	store := &gatedStore{MemoryStore: mem, saving: make(chan struct{}), release: make(chan struct{})}
	c := NewExpiring(store)

	putDone := make(chan struct{})
	go func() {
		defer close(putDone)
		c.Put(ctx, "slow", "https://x/slow.png")
	}()
	<-store.saving

	got := make(chan string, 1)
	go func() {
		u, _ := c.Get(ctx, "cached")
		got <- u
	}()

	select {
	case u := <-got:
		assert.Equal(t, "https://x/cached.png", u)
	case <-time.After(2 * time.Second):
		t.Fatal("Get blocked behind an in-flight Save")
	}

	close(store.release)
	<-putDone
	u, ok := c.Get(ctx, "slow")
	require.True(t, ok)
	assert.Equal(t, "https://x/slow.png", u)
}

func TestExpiring_IgnoresEntriesWithoutTimestamp(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Save(ctx, []byte(`{"ghost":{"url":"https://x/g.png"}}`)))

	c := NewExpiring(store, WithClock(newFakeClock().Now))
	_, ok := c.Get(ctx, "ghost")
	assert.False(t, ok)
}

func TestExpiring_Snapshot(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	c := NewExpiring(NewMemoryStore(), WithClock(clock.Now))

	c.Put(ctx, "a", "https://x/a.png")
	clock.Advance(23 * time.Hour)
	c.Put(ctx, "b", "https://x/b.png")
	clock.Advance(2 * time.Hour)

	assert.Equal(t, map[string]string{"b": "https://x/b.png"}, c.Snapshot(ctx))
}

func TestExpiring_ConcurrentPuts(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	c := NewExpiring(store)

	var wg sync.WaitGroup
	keys := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	for _, k := range keys {
		wg.Add(1)
		go func(k string) {
			defer wg.Done()
			c.Put(ctx, k, "https://x/"+k+".png")
		}(k)
	}
	wg.Wait()

	assert.Len(t, decodeBlob(t, store), len(keys), "no write may be lost")
}

func TestWithTTL(t *testing.T) {
	c := NewExpiring(NewMemoryStore(), WithTTL(time.Hour))
	assert.Equal(t, time.Hour, c.TTL())

	c = NewExpiring(NewMemoryStore(), WithTTL(0))
	assert.Equal(t, DefaultTTL, c.TTL())
}
