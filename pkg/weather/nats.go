package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
	_ "time/tzdata" // circuits use IANA zones, don't depend on the host database

	"github.com/nats-io/nats.go"

	"github.com/mpapenbr/pitwall-go/pkg/model"
)

const SubjectPrefix = "pitwall.weather"

// Requester is satisfied by *nats.Conn
type Requester interface {
	RequestWithContext(ctx context.Context, subj string, data []byte) (*nats.Msg, error)
}

type (
	NatsOracle struct {
		conn   Requester
		prefix string
	}
	request struct {
		CircuitID string `json:"circuitId"`
		Name      string `json:"name"`
		Location  string `json:"location"`
		Country   string `json:"country"`
		LocalTime string `json:"localTime"` // RFC3339 in circuit timezone
	}
	// only air temp and rain are mandatory, track temp is estimated if missing
	reply struct {
		AirTemp   *float64 `json:"airTemp"`
		TrackTemp *float64 `json:"trackTemp"`
		RainProb  *float64 `json:"rainProb"`
	}
)

func NewNatsOracle(conn Requester) *NatsOracle {
	return &NatsOracle{conn: conn, prefix: SubjectPrefix}
}

func Subject(prefix, circuitID string) string {
	return fmt.Sprintf("%s.%s", prefix, circuitID)
}

//nolint:whitespace // by design
func (o *NatsOracle) Conditions(
	ctx context.Context,
	circuit model.Circuit,
	at time.Time,
) (Conditions, error) {
	data, err := json.Marshal(request{
		CircuitID: circuit.ID,
		Name:      circuit.Name,
		Location:  circuit.Location,
		Country:   circuit.Country,
		LocalTime: LocalTime(circuit, at).Format(time.RFC3339),
	})
	if err != nil {
		return Conditions{}, err
	}
	msg, err := o.conn.RequestWithContext(ctx, Subject(o.prefix, circuit.ID), data)
	if err != nil {
		return Conditions{}, fmt.Errorf("weather request: %w", err)
	}
	var r reply
	if err := json.Unmarshal(msg.Data, &r); err != nil {
		return Conditions{}, fmt.Errorf("weather reply: %w", err)
	}
	ret := Fallback
	if r.AirTemp != nil {
		ret.AirTemp = *r.AirTemp
	}
	if r.RainProb != nil {
		ret.RainProbability = *r.RainProb
	}
	if r.TrackTemp != nil {
		ret.TrackTemp = *r.TrackTemp
	} else {
		ret.TrackTemp = TrackTemp(ret.AirTemp, ret.RainProbability)
	}
	return ret, nil
}

// LocalTime converts at into the timezone of the circuit. Unknown zones keep UTC.
func LocalTime(circuit model.Circuit, at time.Time) time.Time {
	loc, err := time.LoadLocation(circuit.Timezone)
	if err != nil {
		return at.UTC()
	}
	return at.In(loc)
}
