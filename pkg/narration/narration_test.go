package narration

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/pitwall-go/pkg/model"
)

func sampleBrief() *Brief {
	return &Brief{
		DriverName:      "Max Verstappen",
		Lap:             12,
		TotalLaps:       57,
		SimulationCount: 200,
		WinProbability:  43.5,
		Strategies: []model.StrategyOption{
			{ID: "strat_A", Name: "Aggressive Undercut", PitLap: 20, TargetCompound: model.C4},
		},
	}
}

func TestFallbackText(t *testing.T) {
	text, err := Fallback{}.Explain(context.Background(), sampleBrief())
	require.NoError(t, err)
	assert.Contains(t, text, "Aggressive Undercut")
	assert.Contains(t, text, "43.5% win probability")
	assert.Contains(t, text, "lap 20 for C4")
	assert.Contains(t, text, "200 simulated races")
}

func TestFallbackTextNoStrategies(t *testing.T) {
	text := FallbackText(&Brief{Lap: 3})
	assert.Contains(t, text, "No strategy options for lap 3")
}

type fakeConn struct {
	subject string
	brief   Brief
	reply   []byte
	err     error
}

func (f *fakeConn) RequestWithContext(_ context.Context, subj string, data []byte) (*nats.Msg, error) {
	f.subject = subj
	if err := json.Unmarshal(data, &f.brief); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	return &nats.Msg{Subject: subj, Data: f.reply}, nil
}

func TestNatsNarrator(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		err     error
		want    string
		wantErr bool
	}{
		{name: "ok", reply: `{"text":"Box, box."}`, want: "Box, box."},
		{name: "empty", reply: `{"text":"  "}`, wantErr: true},
		{name: "service error", reply: `{"error":"quota"}`, wantErr: true},
		{name: "garbage", reply: `nope`, wantErr: true},
		{name: "no responders", err: nats.ErrNoResponders, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := &fakeConn{reply: []byte(tt.reply), err: tt.err}
			n := NewNatsNarrator(conn)
			got, err := n.Explain(context.Background(), sampleBrief())
			assert.Equal(t, DefaultSubject, conn.subject)
			assert.Equal(t, "Max Verstappen", conn.brief.DriverName)
			if tt.wantErr {
				assert.Error(t, err)
				if tt.err != nil {
					assert.True(t, errors.Is(err, tt.err))
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
