package avatar

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/briangreenhill/campavatars/cache"
	"github.com/briangreenhill/campavatars/fetchqueue"
)

// Result is the outcome published for one identity. Found is false when no
// avatar could be resolved and the card keeps its fallback.
type Result struct {
	Identity string `json:"identity"`
	URL      string `json:"url,omitempty"`
	Found    bool   `json:"found"`
	Cached   bool   `json:"cached"`
}

// Card is one consumer of an identity's avatar
type Card struct {
	Identity   string
	OnResolved func(Result)
}

// Loader serves avatars from the cache when fresh and otherwise fetches them
// through a bounded queue. Each identity is handled at most once per Loader.
type Loader struct {
	cache    cache.ReadWriter
	queue    *fetchqueue.Queue[Result]
	resolver Resolver
	log      zerolog.Logger

	mu      sync.Mutex
	handled map[string]bool // resolved or in flight
	results map[string]Result
	pending int             // armed identities not yet published
	idle    []chan struct{} // closed when pending drops to zero
}

type LoaderOption func(*Loader)

func WithLoaderLogger(l zerolog.Logger) LoaderOption {
	return func(ld *Loader) { ld.log = l }
}

// NewLoader wires a cache, a queue and a resolver together. A nil queue
// gets one with DefaultMaxConcurrent slots.
func NewLoader(c cache.ReadWriter, q *fetchqueue.Queue[Result], r Resolver, opts ...LoaderOption) *Loader {
	if q == nil {
		q = fetchqueue.New[Result](fetchqueue.DefaultMaxConcurrent)
	}
	l := &Loader{
		cache:    c,
		queue:    q,
		resolver: r,
		log:      zerolog.Nop(),
		handled:  make(map[string]bool),
		results:  make(map[string]Result),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Arm starts loading avatars for cards. Cache hits are published before Arm
// returns; misses are queued. Identities this Loader has already resolved or
// is still fetching are skipped, so arming twice never fetches twice.
// Arm returns how many identities it started.
func (l *Loader) Arm(ctx context.Context, cards []Card) int {
	var order []string
	groups := make(map[string][]Card)

	l.mu.Lock()
	for _, c := range cards {
		id := strings.TrimSpace(c.Identity)
		if id == "" || l.handled[id] {
			continue
		}
		if _, seen := groups[id]; !seen {
			order = append(order, id)
		}
		groups[id] = append(groups[id], c)
	}
	for _, id := range order {
		l.handled[id] = true
	}
	l.pending += len(order)
	l.mu.Unlock()

	if len(order) == 0 {
		return 0
	}

	log := l.log.With().Str("batch", uuid.NewString()).Logger()
	log.Debug().Int("identities", len(order)).Msg("arming avatar loader")

	for _, id := range order {
		if u, ok := l.cache.Get(ctx, id); ok {
			log.Debug().Str("identity", id).Msg("avatar cache hit")
			l.publish(Result{Identity: id, URL: u, Found: true, Cached: true}, groups[id])
			continue
		}

		f := l.queue.Add(l.fetch(ctx, id, log))
		go func(id string, cards []Card) {
			res, err := f.Result()
			if err != nil {
				log.Warn().Err(err).Str("identity", id).Msg("avatar fetch aborted")
				res = Result{Identity: id}
			}
			l.publish(res, cards)
		}(id, groups[id])
	}

	return len(order)
}

// fetch builds the queued operation for id. It never returns an error:
// every fault becomes a not-found Result.
func (l *Loader) fetch(ctx context.Context, id string, log zerolog.Logger) fetchqueue.Operation[Result] {
	return func() (Result, error) {
		u, err := l.resolver.Resolve(ctx, id)
		if err == nil {
			u, err = validURL(u)
		}
		if err != nil {
			log.Warn().Err(err).Str("identity", id).Msg("failed to fetch avatar")
			return Result{Identity: id}, nil
		}
		l.cache.Put(ctx, id, u)
		return Result{Identity: id, URL: u, Found: true}, nil
	}
}

func (l *Loader) publish(res Result, cards []Card) {
	l.mu.Lock()
	l.results[res.Identity] = res
	l.mu.Unlock()

	for _, c := range cards {
		if c.OnResolved != nil {
			c.OnResolved(res)
		}
	}

	l.mu.Lock()
	l.pending--
	if l.pending == 0 {
		for _, ch := range l.idle {
			close(ch)
		}
		l.idle = nil
	}
	l.mu.Unlock()
}

// Wait blocks until every armed identity has been published or ctx is done
func (l *Loader) Wait(ctx context.Context) error {
	l.mu.Lock()
	if l.pending == 0 {
		l.mu.Unlock()
		return nil
	}
	done := make(chan struct{})
	l.idle = append(l.idle, done)
	l.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Result returns the published outcome for identity, if any
func (l *Loader) Result(identity string) (Result, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	res, ok := l.results[strings.TrimSpace(identity)]
	return res, ok
}

// Results returns a copy of every outcome published so far
func (l *Loader) Results() map[string]Result {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]Result, len(l.results))
	for k, v := range l.results {
		out[k] = v
	}
	return out
}
