package narration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"

	"github.com/mpapenbr/pitwall-go/log"
)

const DefaultSubject = "pitwall.narration.strategy"

var ErrEmptyNarration = errors.New("narration service returned empty text")

// Requester is satisfied by *nats.Conn
type Requester interface {
	RequestWithContext(ctx context.Context, subj string, data []byte) (*nats.Msg, error)
}

type (
	NatsNarrator struct {
		conn    Requester
		subject string
		l       *log.Logger
	}
	NatsOption func(*NatsNarrator)

	reply struct {
		Text  string `json:"text"`
		Error string `json:"error,omitempty"`
	}
)

func WithSubject(subject string) NatsOption {
	return func(n *NatsNarrator) {
		n.subject = subject
	}
}

func WithLogger(l *log.Logger) NatsOption {
	return func(n *NatsNarrator) {
		n.l = l
	}
}

func NewNatsNarrator(conn Requester, opts ...NatsOption) *NatsNarrator {
	ret := &NatsNarrator{
		conn:    conn,
		subject: DefaultSubject,
		l:       log.Default().Named("narration"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

// Explain sends the brief as JSON and expects {"text": "..."} as reply
func (n *NatsNarrator) Explain(ctx context.Context, brief *Brief) (string, error) {
	data, err := json.Marshal(brief)
	if err != nil {
		return "", err
	}
	msg, err := n.conn.RequestWithContext(ctx, n.subject, data)
	if err != nil {
		n.l.Warn("narration request failed", log.String("subject", n.subject), log.ErrorField(err))
		return "", fmt.Errorf("narration request: %w", err)
	}
	var r reply
	if err := json.Unmarshal(msg.Data, &r); err != nil {
		return "", fmt.Errorf("narration reply: %w", err)
	}
	if r.Error != "" {
		return "", fmt.Errorf("narration service: %s", r.Error)
	}
	if strings.TrimSpace(r.Text) == "" {
		return "", ErrEmptyNarration
	}
	return r.Text, nil
}
