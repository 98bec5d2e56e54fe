// Package publish sends race data as JSON to NATS subjects below pitwall.race
package publish

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mpapenbr/pitwall-go/log"
	"github.com/mpapenbr/pitwall-go/pkg/model"
	"github.com/mpapenbr/pitwall-go/pkg/race"
)

const DefaultPrefix = "pitwall.race"

// Conn is satisfied by *nats.Conn
type Conn interface {
	Publish(subj string, data []byte) error
}

type (
	Publisher struct {
		conn   Conn
		prefix string
		l      *log.Logger
	}
	Option func(*Publisher)

	// Started is sent when a race session is created
	Started struct {
		RaceID string           `json:"raceId"`
		HeroID string           `json:"heroId"`
		Config model.RaceConfig `json:"config"`
	}
)

func WithPrefix(prefix string) Option {
	return func(p *Publisher) {
		p.prefix = prefix
	}
}

func WithLogger(l *log.Logger) Option {
	return func(p *Publisher) {
		p.l = l
	}
}

func NewPublisher(conn Conn, opts ...Option) *Publisher {
	ret := &Publisher{
		conn:   conn,
		prefix: DefaultPrefix,
		l:      log.Default().Named("publish"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

// Subject returns the subject for kind of race raceID
func (p *Publisher) Subject(raceID, kind string) string {
	return fmt.Sprintf("%s.%s.%s", p.prefix, raceID, kind)
}

func (p *Publisher) Started(snap *race.Snapshot) error {
	return p.send(fmt.Sprintf("%s.started", p.prefix), &Started{
		RaceID: snap.ID,
		HeroID: snap.HeroID,
		Config: snap.Config,
	})
}

func (p *Publisher) State(raceID string, state *model.RaceState) error {
	return p.send(p.Subject(raceID, "state"), state)
}

func (p *Publisher) Report(raceID string, rep *model.StrategyReport) error {
	return p.send(p.Subject(raceID, "report"), rep)
}

func (p *Publisher) Results(raceID string, results []race.Classification) error {
	return p.send(p.Subject(raceID, "results"), results)
}

// Forward publishes every state received on ch until ch is closed or ctx is done.
// Publish failures are logged and don't stop forwarding.
//
//nolint:whitespace // by design
func (p *Publisher) Forward(
	ctx context.Context,
	raceID string,
	ch <-chan *model.RaceState,
) error {
	l := p.l.With(log.String("race", raceID))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case state, ok := <-ch:
			if !ok {
				l.Debug("state channel closed")
				return nil
			}
			if err := p.State(raceID, state); err != nil {
				l.Warn("could not publish state",
					log.Int("lap", state.CurrentLap),
					log.ErrorField(err))
			}
		}
	}
}

func (p *Publisher) send(subj string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", subj, err)
	}
	if err := p.conn.Publish(subj, data); err != nil {
		return fmt.Errorf("publish %s: %w", subj, err)
	}
	p.l.Debug("published", log.String("subject", subj), log.Int("size", len(data)))
	return nil
}
