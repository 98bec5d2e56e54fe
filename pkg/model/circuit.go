package model

import (
	"errors"
	"fmt"
	"slices"
)

var ErrUnknownCircuit = errors.New("unknown circuit")

type Circuit struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Location    string  `json:"location"`
	Country     string  `json:"country"`
	LengthKm    float64 `json:"lengthKm"`
	Timezone    string  `json:"timezone"` // IANA name
	BaseLapTime float64 `json:"baseLapTime"`
}

//nolint:lll // readability
var circuits = []Circuit{
	{ID: "bahrain", Name: "Bahrain International Circuit", Location: "Sakhir", Country: "Bahrain", LengthKm: 5.412, Timezone: "Asia/Bahrain", BaseLapTime: 91.0},
	{ID: "silverstone", Name: "Silverstone Circuit", Location: "Silverstone", Country: "UK", LengthKm: 5.891, Timezone: "Europe/London", BaseLapTime: 87.0},
	{ID: "monaco", Name: "Circuit de Monaco", Location: "Monte Carlo", Country: "Monaco", LengthKm: 3.337, Timezone: "Europe/Paris", BaseLapTime: 71.0},
	{ID: "spa", Name: "Circuit de Spa-Francorchamps", Location: "Stavelot", Country: "Belgium", LengthKm: 7.004, Timezone: "Europe/Brussels", BaseLapTime: 104.0},
	{ID: "monza", Name: "Autodromo Nazionale Monza", Location: "Monza", Country: "Italy", LengthKm: 5.793, Timezone: "Europe/Rome", BaseLapTime: 81.0},
	{ID: "suzuka", Name: "Suzuka International Racing Course", Location: "Suzuka", Country: "Japan", LengthKm: 5.807, Timezone: "Asia/Tokyo", BaseLapTime: 89.0},
	{ID: "cota", Name: "Circuit of the Americas", Location: "Austin, TX", Country: "USA", LengthKm: 5.513, Timezone: "America/Chicago", BaseLapTime: 94.0},
	{ID: "interlagos", Name: "Autódromo José Carlos Pace", Location: "São Paulo", Country: "Brazil", LengthKm: 4.309, Timezone: "America/Sao_Paulo", BaseLapTime: 70.0},
	{ID: "yas_marina", Name: "Yas Marina Circuit", Location: "Abu Dhabi", Country: "UAE", LengthKm: 5.281, Timezone: "Asia/Dubai", BaseLapTime: 84.0},
	{ID: "vegas", Name: "Las Vegas Strip Circuit", Location: "Las Vegas, NV", Country: "USA", LengthKm: 6.201, Timezone: "America/Los_Angeles", BaseLapTime: 93.0},
}

func Circuits() []Circuit {
	return slices.Clone(circuits)
}

func LookupCircuit(id string) (Circuit, error) {
	idx := slices.IndexFunc(circuits, func(c Circuit) bool { return c.ID == id })
	if idx < 0 {
		return Circuit{}, fmt.Errorf("%w: %q", ErrUnknownCircuit, id)
	}
	return circuits[idx], nil
}
