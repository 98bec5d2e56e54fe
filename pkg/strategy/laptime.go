package strategy

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

const noLapTime = "--:--.---"

var sixty = decimal.NewFromInt(60)

// TheoreticalLapTime is the qualifying pace: low fuel, fresh tyres, no variance
func TheoreticalLapTime(circuitBase, driverBase, compoundDelta float64) float64 {
	return circuitBase + driverBase + compoundDelta
}

// FormatLapTime renders seconds as m:ss.sss
func FormatLapTime(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return noLapTime
	}
	total := decimal.NewFromFloat(seconds).Round(3)
	minutes := total.Div(sixty).Floor()
	rest := total.Sub(minutes.Mul(sixty))
	secs := rest.StringFixed(3)
	if rest.LessThan(decimal.NewFromInt(10)) {
		secs = "0" + secs
	}
	return fmt.Sprintf("%s:%s", minutes.String(), secs)
}
