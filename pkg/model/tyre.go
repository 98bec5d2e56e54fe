package model

import (
	"errors"
	"fmt"
)

type (
	CompoundID       string
	CompoundCategory string
)

const (
	C0    CompoundID = "C0"
	C1    CompoundID = "C1"
	C2    CompoundID = "C2"
	C3    CompoundID = "C3"
	C4    CompoundID = "C4"
	C5    CompoundID = "C5"
	Inter CompoundID = "INTER"
	Wet   CompoundID = "WET"
)

const (
	CategoryHard   CompoundCategory = "Hard"
	CategoryMedium CompoundCategory = "Medium"
	CategorySoft   CompoundCategory = "Soft"
	CategoryInter  CompoundCategory = "Inter"
	CategoryWet    CompoundCategory = "Wet"
)

var ErrUnknownCompound = errors.New("unknown compound")

// TyreCompound describes the static characteristics of a tyre specification.
// BasePaceDelta is relative to the hardest compound (C0).
type TyreCompound struct {
	ID            CompoundID       `json:"id"`
	Name          string           `json:"name"`
	Category      CompoundCategory `json:"category"`
	BasePaceDelta float64          `json:"basePaceDelta"` // seconds
	DegPerLap     float64          `json:"degPerLap"`     // seconds lost per lap of age
	MaxLife       int              `json:"maxLife"`       // laps before the cliff
	Color         string           `json:"color"`
}

// ordered from hardest to wettest
var compoundOrder = []CompoundID{C0, C1, C2, C3, C4, C5, Inter, Wet}

var tyreTable = map[CompoundID]TyreCompound{
	C0: {
		ID: C0, Name: "C0-Hard", Category: CategoryHard,
		BasePaceDelta: 1.2, DegPerLap: 0.03, MaxLife: 50, Color: "#f0f0f0",
	},
	C1: {
		ID: C1, Name: "C1-Hard", Category: CategoryHard,
		BasePaceDelta: 1.0, DegPerLap: 0.05, MaxLife: 42, Color: "#f0f0f0",
	},
	C2: {
		ID: C2, Name: "C2-Medium", Category: CategoryMedium,
		BasePaceDelta: 0.7, DegPerLap: 0.07, MaxLife: 35, Color: "#eab308",
	},
	C3: {
		ID: C3, Name: "C3-Medium", Category: CategoryMedium,
		BasePaceDelta: 0.4, DegPerLap: 0.09, MaxLife: 28, Color: "#eab308",
	},
	C4: {
		ID: C4, Name: "C4-Soft", Category: CategorySoft,
		BasePaceDelta: 0.2, DegPerLap: 0.12, MaxLife: 22, Color: "#ef4444",
	},
	C5: {
		ID: C5, Name: "C5-Soft", Category: CategorySoft,
		BasePaceDelta: 0.0, DegPerLap: 0.16, MaxLife: 15, Color: "#ef4444",
	},
	Inter: {
		ID: Inter, Name: "Intermediate", Category: CategoryInter,
		BasePaceDelta: 5.0, DegPerLap: 0.10, MaxLife: 30, Color: "#22c55e",
	},
	Wet: {
		ID: Wet, Name: "Wet", Category: CategoryWet,
		BasePaceDelta: 10.0, DegPerLap: 0.10, MaxLife: 25, Color: "#3b82f6",
	},
}

// LookupTyre returns the table entry for id
func LookupTyre(id CompoundID) (TyreCompound, error) {
	if t, ok := tyreTable[id]; ok {
		return t, nil
	}
	return TyreCompound{}, fmt.Errorf("%w: %q", ErrUnknownCompound, id)
}

// MustTyre is like LookupTyre but panics on unknown ids.
// Use only with compile time constants.
func MustTyre(id CompoundID) TyreCompound {
	t, err := LookupTyre(id)
	if err != nil {
		panic(err)
	}
	return t
}

// Tyres returns all compounds ordered from hardest to wettest
func Tyres() []TyreCompound {
	ret := make([]TyreCompound, 0, len(compoundOrder))
	for _, id := range compoundOrder {
		ret = append(ret, tyreTable[id])
	}
	return ret
}

func (c CompoundID) Valid() bool {
	_, ok := tyreTable[c]
	return ok
}
