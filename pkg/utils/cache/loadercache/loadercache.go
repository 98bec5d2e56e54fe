package loadercache

import (
	"context"
	"sync"
	"time"

	"github.com/mpapenbr/pitwall-go/log"
	"github.com/mpapenbr/pitwall-go/pkg/utils/cache"
)

// based on github.com/kittpat1413/go-common/framework/cache/localcache/localcache.go

type (
	Option[K comparable, V any] func(*config[K, V])
	item[T any]                 struct {
		data    T
		expires time.Time
	}
	LoaderFunc[K comparable, V any] func(ctx context.Context, key K) (*V, error)
	config[K comparable, V any]     struct {
		expiration time.Duration
		loader     LoaderFunc[K, V]
		now        func() time.Time
		l          *log.Logger
	}
	loaderCache[K comparable, V any] struct {
		mutex  sync.Mutex
		items  map[K]item[*V]
		config *config[K, V]
	}
)

func WithExpiration[K comparable, V any](expiration time.Duration) Option[K, V] {
	return func(c *config[K, V]) {
		c.expiration = expiration
	}
}

func WithLoader[K comparable, V any](lf LoaderFunc[K, V]) Option[K, V] {
	return func(c *config[K, V]) {
		c.loader = lf
	}
}

func WithLogger[K comparable, V any](arg *log.Logger) Option[K, V] {
	return func(c *config[K, V]) {
		c.l = arg
	}
}

// WithClock replaces time.Now for expiry checks
func WithClock[K comparable, V any](now func() time.Time) Option[K, V] {
	return func(c *config[K, V]) {
		c.now = now
	}
}

func New[K comparable, V any](opts ...Option[K, V]) cache.Cache[K, V] {
	c := &config[K, V]{
		expiration: 5 * time.Minute,
		now:        time.Now,
		l:          log.Default().Named("cache"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return &loaderCache[K, V]{
		items:  make(map[K]item[*V]),
		config: c,
	}
}

func (c *loaderCache[K, V]) Get(ctx context.Context, key K) (*V, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if cacheItem, ok := c.items[key]; ok {
		if cacheItem.expires.After(c.config.now()) {
			return cacheItem.data, nil
		}
		delete(c.items, key)
	}
	return c.load(ctx, key)
}

// load is called with the mutex held. Failed loads are not cached.
func (c *loaderCache[K, V]) load(ctx context.Context, key K) (*V, error) {
	if c.config.loader == nil {
		return nil, cache.ErrCacheMiss
	}
	v, err := c.config.loader(ctx, key)
	c.config.l.Debug("loaderCache.load", log.Any("key", key))
	if err != nil {
		c.config.l.Warn("error loading entry", log.Any("key", key), log.ErrorField(err))
		return nil, err
	}
	c.items[key] = item[*V]{data: v, expires: c.config.now().Add(c.config.expiration)}
	return v, nil
}

func (c *loaderCache[K, V]) Invalidate(_ context.Context, key K) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	delete(c.items, key)
	c.config.l.Debug("Invalidate", log.Any("key", key), log.Int("remain items", len(c.items)))
}
