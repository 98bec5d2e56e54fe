// Package broadcast fans out values of a source channel to any number of
// subscribers. Slow subscribers are skipped instead of blocking the source.
package broadcast

import (
	"context"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/mpapenbr/pitwall-go/log"
)

const DefaultSendTimeout = 50 * time.Millisecond

type Server[T any] interface {
	Subscribe() <-chan T
	CancelSubscription(<-chan T)
	Close()
}

type server[T any] struct {
	name           string
	source         <-chan T
	listeners      []chan T
	addListener    chan chan T
	removeListener chan (<-chan T)
	ctx            context.Context
	cancel         context.CancelFunc
	sendTimeout    time.Duration
	bufSize        int
	log            *log.Logger
	numRcv         atomic.Int64
	numSnd         atomic.Int64
	numSkip        atomic.Int64
	numListener    atomic.Int64
}

type Option[T any] func(*server[T])

// WithSendTimeout sets how long a single subscriber may block a value
func WithSendTimeout[T any](d time.Duration) Option[T] {
	return func(b *server[T]) {
		b.sendTimeout = d
	}
}

// WithBuffer creates subscriber channels with a buffer of size n
func WithBuffer[T any](n int) Option[T] {
	return func(b *server[T]) {
		b.bufSize = n
	}
}

func WithLogger[T any](l *log.Logger) Option[T] {
	return func(b *server[T]) {
		b.log = l
	}
}

// NewServer starts serving source until Close is called or source is closed.
// All subscriber channels are closed when the server stops.
func NewServer[T any](name string, source <-chan T, opts ...Option[T]) Server[T] {
	ctx, cancel := context.WithCancel(context.Background())
	b := &server[T]{
		name:           name,
		source:         source,
		addListener:    make(chan chan T),
		removeListener: make(chan (<-chan T)),
		ctx:            ctx,
		cancel:         cancel,
		sendTimeout:    DefaultSendTimeout,
		log:            log.Default().Named("broadcast"),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.log = b.log.With(log.String("name", name))
	b.setupMetrics()
	go b.serve()
	return b
}

// Subscribe returns a channel receiving all values from now on.
// On a stopped server the returned channel is already closed.
func (b *server[T]) Subscribe() <-chan T {
	ch := make(chan T, b.bufSize)
	select {
	case b.addListener <- ch:
	case <-b.ctx.Done():
		close(ch)
	}
	return ch
}

func (b *server[T]) CancelSubscription(ch <-chan T) {
	select {
	case b.removeListener <- ch:
	case <-b.ctx.Done():
	}
}

func (b *server[T]) Close() {
	b.log.Info("closing broadcast server",
		log.Int64("rcv", b.numRcv.Load()),
		log.Int64("snd", b.numSnd.Load()),
		log.Int64("skip", b.numSkip.Load()))
	b.cancel()
}

func (b *server[T]) setupMetrics() {
	meter := otel.GetMeterProvider().Meter(fmt.Sprintf("pitwall.broadcast.%s", b.name))
	register := func(metricName, desc string, value *atomic.Int64) {
		if _, err := meter.Int64ObservableGauge(
			metricName,
			metric.WithDescription(desc),
			metric.WithUnit("{count}"),
			metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
				o.Observe(value.Load(),
					metric.WithAttributes(attribute.String("name", b.name)))
				return nil
			})); err != nil {
			b.log.Error("failed to register metric",
				log.String("metric", metricName),
				log.ErrorField(err))
		}
	}
	register("pitwall.broadcast.rcv", "Number of received messages", &b.numRcv)
	register("pitwall.broadcast.snd", "Number of sent messages", &b.numSnd)
	register("pitwall.broadcast.skip", "Number of skipped messages", &b.numSkip)
	register("pitwall.broadcast.listener", "Number of listeners", &b.numListener)
}

func (b *server[T]) serve() {
	defer func() {
		b.cancel()
		for _, listener := range b.listeners {
			close(listener)
		}
		b.listeners = nil
		b.numListener.Store(0)
	}()
	for {
		select {
		case <-b.ctx.Done():
			b.log.Debug("broadcast server stopped")
			return
		case ch := <-b.addListener:
			b.listeners = append(b.listeners, ch)
			b.numListener.Store(int64(len(b.listeners)))
		case ch := <-b.removeListener:
			idx := slices.IndexFunc(b.listeners, func(l chan T) bool { return l == ch })
			if idx >= 0 {
				close(b.listeners[idx])
				b.listeners = slices.Delete(b.listeners, idx, idx+1)
				b.numListener.Store(int64(len(b.listeners)))
			}
		case msg, ok := <-b.source:
			if !ok {
				b.log.Debug("source closed")
				return
			}
			b.numRcv.Add(1)
			b.send(msg)
		}
	}
}

func (b *server[T]) send(msg T) {
	for _, listener := range b.listeners {
		select {
		case listener <- msg:
			b.numSnd.Add(1)
		case <-time.After(b.sendTimeout):
			b.numSkip.Add(1)
		}
	}
}
