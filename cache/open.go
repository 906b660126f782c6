package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/redis/go-redis/v9"
)

// Backend names accepted by Open
const (
	BackendFile     = "file"
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

var ErrUnknownBackend = errors.New("unknown cache backend")

// StoreOptions selects and configures a Store backend
type StoreOptions struct {
	Backend     string
	Namespace   string
	Dir         string // file backend; empty means ~/.camp_cache
	SQLitePath  string // sqlite backend; empty means <Dir>/avatars.db
	RedisAddr   string
	DatabaseURL string
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Open builds the Store named by opts.Backend. The returned Closer releases
// any connection the backend holds.
func Open(ctx context.Context, opts StoreOptions) (Store, io.Closer, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Backend)) {
	case "", BackendFile:
		fs, err := NewFileStore(opts.Dir, opts.Namespace)
		if err != nil {
			return nil, nil, fmt.Errorf("file store: %w", err)
		}
		return fs, nopCloser{}, nil
	case BackendMemory:
		return NewMemoryStore(), nopCloser{}, nil
	case BackendSQLite:
		path := opts.SQLitePath
		if path == "" {
			fs, err := NewFileStore(opts.Dir, opts.Namespace)
			if err != nil {
				return nil, nil, fmt.Errorf("sqlite store: %w", err)
			}
			path = filepath.Join(fs.dir, "avatars.db")
		}
		s, err := OpenSQLite(path, opts.Namespace)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case BackendRedis:
		if opts.RedisAddr == "" {
			return nil, nil, fmt.Errorf("redis store: address is required")
		}
		rs := NewRedisStore(redis.NewClient(&redis.Options{Addr: opts.RedisAddr}), opts.Namespace)
		return rs, rs, nil
	case BackendPostgres:
		if opts.DatabaseURL == "" {
			return nil, nil, fmt.Errorf("postgres store: database url is required")
		}
		ps, err := OpenPostgres(ctx, opts.DatabaseURL, opts.Namespace)
		if err != nil {
			return nil, nil, err
		}
		return ps, ps, nil
	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownBackend, opts.Backend)
	}
}
