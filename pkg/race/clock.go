package race

import (
	"context"
	"time"

	"github.com/mpapenbr/pitwall-go/log"
)

type (
	Ticker interface {
		Tick(ctx context.Context) (*TickResult, error)
	}
	// Clock drives a race by calling Tick once per interval
	Clock struct {
		interval time.Duration
		onTick   func(ctx context.Context, res *TickResult)
		log      *log.Logger
	}
	ClockOption func(*Clock)
)

// WithOnTick registers a callback invoked after each successful tick
func WithOnTick(cb func(ctx context.Context, res *TickResult)) ClockOption {
	return func(c *Clock) {
		c.onTick = cb
	}
}

func WithClockLogger(l *log.Logger) ClockOption {
	return func(c *Clock) {
		c.log = l
	}
}

func NewClock(interval time.Duration, opts ...ClockOption) *Clock {
	ret := &Clock{
		interval: interval,
		log:      log.Default().Named("clock"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

// Run ticks until the race is finished or halted, an error occurs or ctx is done.
// An interval <= 0 ticks without pause.
func (c *Clock) Run(ctx context.Context, t Ticker) error {
	var tick <-chan time.Time
	if c.interval > 0 {
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		tick = ticker.C
	}
	for {
		if tick != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-tick:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}
		res, err := t.Tick(ctx)
		if err != nil {
			c.log.Warn("tick failed", log.ErrorField(err))
			return err
		}
		if c.onTick != nil {
			c.onTick(ctx, res)
		}
		if res.Finished || res.Halted {
			c.log.Info("clock stopped",
				log.Int("lap", res.State.CurrentLap),
				log.Bool("finished", res.Finished),
				log.Bool("halted", res.Halted))
			return nil
		}
	}
}
