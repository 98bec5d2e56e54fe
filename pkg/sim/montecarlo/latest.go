package montecarlo

import (
	"context"
	"errors"
	"sync"

	"github.com/mpapenbr/pitwall-go/pkg/model"
)

var ErrSuperseded = errors.New("projection superseded by a newer one")

// Latest makes sure only the most recent projection delivers a result.
// Starting a new projection cancels the one in flight which then
// returns ErrSuperseded.
type Latest struct {
	p      *Projector
	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc

	afterRun func() // test hook, called before the result is checked for staleness
}

func NewLatest(p *Projector) *Latest {
	return &Latest{p: p}
}

//nolint:whitespace // by design
func (l *Latest) Run(
	ctx context.Context,
	state *model.RaceState,
	cfg *model.RaceConfig,
	heroID string,
	iterations int,
) (*Projection, error) {
	l.mu.Lock()
	if l.cancel != nil {
		l.cancel()
	}
	l.gen++
	gen := l.gen
	runCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.mu.Unlock()
	defer cancel()

	res, err := l.p.Run(runCtx, state, cfg, heroID, iterations)
	if l.afterRun != nil {
		l.afterRun()
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if gen != l.gen {
		return nil, ErrSuperseded
	}
	l.cancel = nil
	return res, err
}
