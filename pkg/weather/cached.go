package weather

import (
	"context"
	"time"

	"github.com/mpapenbr/pitwall-go/log"
	"github.com/mpapenbr/pitwall-go/pkg/model"
	"github.com/mpapenbr/pitwall-go/pkg/utils/cache"
	"github.com/mpapenbr/pitwall-go/pkg/utils/cache/loadercache"
)

const DefaultCacheExpiry = 15 * time.Minute

type (
	cacheKey struct {
		circuit model.Circuit
		hour    int64 // unix hour of the requested time
	}
	// Cached remembers oracle answers per circuit and hour
	Cached struct {
		c cache.Cache[cacheKey, Conditions]
	}
)

func NewCached(oracle Oracle, expiry time.Duration) *Cached {
	return &Cached{
		c: loadercache.New(
			loadercache.WithLoader(func(ctx context.Context, k cacheKey) (*Conditions, error) {
				c, err := oracle.Conditions(ctx, k.circuit, time.Unix(k.hour*3600, 0))
				if err != nil {
					return nil, err
				}
				return &c, nil
			}),
			loadercache.WithExpiration[cacheKey, Conditions](expiry),
			loadercache.WithLogger[cacheKey, Conditions](log.Default().Named("weather.cache")),
		),
	}
}

//nolint:whitespace // by design
func (c *Cached) Conditions(
	ctx context.Context,
	circuit model.Circuit,
	at time.Time,
) (Conditions, error) {
	v, err := c.c.Get(ctx, cacheKey{circuit: circuit, hour: at.Unix() / 3600})
	if err != nil {
		return Conditions{}, err
	}
	return *v, nil
}
