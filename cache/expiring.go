package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Expiring is a key -> URL cache whose entries are valid for a fixed TTL.
// Expiry is evaluated when reading; stale entries stay in the persisted
// blob until the next Put rewrites it.
type Expiring struct {
	store Store
	ttl   time.Duration
	now   func() time.Time
	log   zerolog.Logger

	// serializes Put's read-modify-write; reads go straight to the store
	mu sync.Mutex
}

type Option func(*Expiring)

// WithTTL overrides DefaultTTL
func WithTTL(ttl time.Duration) Option {
	return func(e *Expiring) {
		if ttl > 0 {
			e.ttl = ttl
		}
	}
}

// WithClock replaces time.Now, mostly for tests
func WithClock(now func() time.Time) Option {
	return func(e *Expiring) { e.now = now }
}

func WithLogger(l zerolog.Logger) Option {
	return func(e *Expiring) { e.log = l }
}

// NewExpiring creates a cache over the given store
func NewExpiring(store Store, opts ...Option) *Expiring {
	e := &Expiring{
		store: store,
		ttl:   DefaultTTL,
		now:   time.Now,
		log:   zerolog.Nop(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// TTL reports the configured time-to-live
func (e *Expiring) TTL() time.Duration {
	return e.ttl
}

// Get returns the stored value for key if it was written less than TTL ago.
// Store faults and corrupt blobs are reported as a miss.
func (e *Expiring) Get(ctx context.Context, key string) (string, bool) {
	blob, err := e.load(ctx)
	if err != nil {
		return "", false
	}
	entry, ok := blob[key]
	if !ok || !e.fresh(entry, e.now()) {
		return "", false
	}
	return entry.URL, true
}

// Put stores value under key stamped with the current time. The whole blob
// is reloaded, expired entries are dropped, and the result is written back.
// If the store cannot be read nothing is written; a corrupt blob is replaced.
// Persistence faults are swallowed.
func (e *Expiring) Put(ctx context.Context, key, value string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	data, err := e.store.Load(ctx)
	if err != nil {
		// persistence unavailable: keep whatever is stored
		e.log.Debug().Err(err).Str("key", key).Msg("load avatar cache")
		return
	}
	blob, err := e.decode(data)
	if err != nil {
		// corrupt: start over with an empty blob
		blob = Blob{}
	}

	now := e.now()

	next := make(Blob, len(blob)+1)
	for k, entry := range blob {
		if e.fresh(entry, now) {
			next[k] = entry
		}
	}
	next[key] = Entry{URL: value, Timestamp: now.UnixMilli()}

	data, err = json.Marshal(next)
	if err != nil {
		e.log.Debug().Err(err).Str("key", key).Msg("encode avatar cache")
		return
	}
	if err := e.store.Save(ctx, data); err != nil {
		e.log.Debug().Err(err).Str("key", key).Msg("save avatar cache")
	}
}

// Snapshot returns every entry that is still fresh
func (e *Expiring) Snapshot(ctx context.Context) map[string]string {
	out := map[string]string{}
	blob, err := e.load(ctx)
	if err != nil {
		return out
	}
	now := e.now()
	for k, entry := range blob {
		if e.fresh(entry, now) {
			out[k] = entry.URL
		}
	}
	return out
}

func (e *Expiring) fresh(entry Entry, now time.Time) bool {
	if entry.Timestamp == 0 {
		return false
	}
	return now.Sub(entry.StoredAt()) < e.ttl
}

func (e *Expiring) load(ctx context.Context) (Blob, error) {
	data, err := e.store.Load(ctx)
	if err != nil {
		e.log.Debug().Err(err).Msg("load avatar cache")
		return nil, err
	}
	return e.decode(data)
}

func (e *Expiring) decode(data []byte) (Blob, error) {
	if len(data) == 0 {
		return Blob{}, nil
	}
	var blob Blob
	if err := json.Unmarshal(data, &blob); err != nil {
		e.log.Debug().Err(err).Msg("decode avatar cache")
		return nil, err
	}
	if blob == nil {
		blob = Blob{}
	}
	return blob, nil
}
