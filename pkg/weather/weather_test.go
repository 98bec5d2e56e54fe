//nolint:funlen // ok for tests
package weather

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/pitwall-go/pkg/model"
)

func monza(t *testing.T) model.Circuit {
	t.Helper()
	c, err := model.LookupCircuit("monza")
	require.NoError(t, err)
	return c
}

func TestTrackTemp(t *testing.T) {
	tests := []struct {
		rain float64
		want float64
	}{
		{0, 32}, {0.19, 32}, {0.2, 26}, {0.49, 26}, {0.5, 21}, {1, 21},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TrackTemp(20, tt.rain), "rain %v", tt.rain)
	}
}

type failing struct{ calls int }

func (f *failing) Conditions(context.Context, model.Circuit, time.Time) (Conditions, error) {
	f.calls++
	return Conditions{}, errors.New("quota exceeded")
}

func TestResolve(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2025, 9, 7, 13, 0, 0, 0, time.UTC)

	assert.Equal(t, Fallback, Resolve(ctx, nil, monza(t), at, Fallback))
	assert.Equal(t, Fallback, Resolve(ctx, &failing{}, monza(t), at, Fallback))

	got := Resolve(ctx, Static{AirTemp: 30, TrackTemp: 45, RainProbability: 1.4}, monza(t), at, Fallback)
	assert.Equal(t, Conditions{AirTemp: 30, TrackTemp: 45, RainProbability: 1}, got)
}

type fakeConn struct {
	subject string
	req     request
	reply   string
	err     error
}

func (f *fakeConn) RequestWithContext(_ context.Context, subj string, data []byte) (*nats.Msg, error) {
	f.subject = subj
	if err := json.Unmarshal(data, &f.req); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	return &nats.Msg{Data: []byte(f.reply)}, nil
}

func TestNatsOracle(t *testing.T) {
	at := time.Date(2025, 9, 7, 13, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		reply   string
		err     error
		want    Conditions
		wantErr bool
	}{
		{
			name:  "full reply",
			reply: `{"airTemp":25,"trackTemp":40,"rainProb":0.05}`,
			want:  Conditions{AirTemp: 25, TrackTemp: 40, RainProbability: 0.05},
		},
		{
			name:  "track temp estimated",
			reply: `{"airTemp":18,"rainProb":0.6}`,
			want:  Conditions{AirTemp: 18, TrackTemp: 19, RainProbability: 0.6},
		},
		{
			name:  "air temp missing",
			reply: `{"rainProb":0.3}`,
			want:  Conditions{AirTemp: 22, TrackTemp: 28, RainProbability: 0.3},
		},
		{name: "bad json", reply: `{`, wantErr: true},
		{name: "timeout", err: nats.ErrTimeout, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := &fakeConn{reply: tt.reply, err: tt.err}
			got, err := NewNatsOracle(conn).Conditions(context.Background(), monza(t), at)
			assert.Equal(t, "pitwall.weather.monza", conn.subject)
			assert.Equal(t, "2025-09-07T15:00:00+02:00", conn.req.LocalTime)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

type counting struct{ calls int }

func (c *counting) Conditions(context.Context, model.Circuit, time.Time) (Conditions, error) {
	c.calls++
	return Conditions{AirTemp: float64(c.calls)}, nil
}

func TestCached(t *testing.T) {
	src := &counting{}
	c := NewCached(src, time.Hour)
	ctx := context.Background()
	at := time.Date(2025, 9, 7, 13, 5, 0, 0, time.UTC)

	a, err := c.Conditions(ctx, monza(t), at)
	require.NoError(t, err)
	b, err := c.Conditions(ctx, monza(t), at.Add(30*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, 1, src.calls)

	_, err = c.Conditions(ctx, monza(t), at.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)

	f := &failing{}
	_, err = NewCached(f, time.Hour).Conditions(ctx, monza(t), at)
	assert.Error(t, err)
}

func TestLocalTimeUnknownZone(t *testing.T) {
	at := time.Date(2025, 9, 7, 13, 0, 0, 0, time.UTC)
	assert.Equal(t, at, LocalTime(model.Circuit{Timezone: "Nowhere/Special"}, at))
}
