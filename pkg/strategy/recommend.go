package strategy

import "github.com/mpapenbr/pitwall-go/pkg/model"

const (
	wetThreshold   = 0.80
	interThreshold = 0.25
)

// RecommendCompound picks the compound for the fastest single lap.
// Stint length is not considered. airTemp is currently unused.
func RecommendCompound(rainProb, _ float64) model.CompoundID {
	switch {
	case rainProb >= wetThreshold:
		return model.Wet
	case rainProb >= interThreshold:
		return model.Inter
	default:
		return model.C5
	}
}
