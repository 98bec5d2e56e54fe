package race

import (
	"cmp"
	"math"
	"slices"

	"github.com/samber/lo"

	"github.com/mpapenbr/pitwall-go/pkg/model"
)

var points = []int{25, 18, 15, 12, 10, 8, 6, 4, 2, 1}

// Classification is one line of the race result
type Classification struct {
	Position    int                `json:"position"`
	DriverID    string             `json:"driverId"`
	Name        string             `json:"name"`
	Team        string             `json:"team"`
	Number      int                `json:"number"`
	Status      model.DriverStatus `json:"status"`
	Laps        int                `json:"laps"`
	TotalTime   float64            `json:"totalTime"`   // seconds
	GapToWinner float64            `json:"gapToWinner"` // seconds
	BestLap     float64            `json:"bestLap"`     // 0 if no lap completed
	FastestLap  bool               `json:"fastestLap"`
	PitStops    int                `json:"pitStops"`
	Points      int                `json:"points"`
}

// Classify builds the result from state ordered by position.
// The fastest lap scores an extra point when set by a driver in the top ten.
func Classify(state *model.RaceState) []Classification {
	drivers := slices.Clone(state.Drivers)
	slices.SortStableFunc(drivers, func(a, b model.Driver) int { return cmp.Compare(a.Position, b.Position) })

	ret := lo.Map(drivers, func(d model.Driver, _ int) Classification {
		c := Classification{
			DriverID:  d.ID,
			Name:      d.Name,
			Team:      d.Team,
			Number:    d.Number,
			Status:    d.Status,
			Laps:      len(d.LapTimes),
			TotalTime: lo.Sum(d.LapTimes),
			PitStops:  d.PitStops,
		}
		if len(d.LapTimes) > 0 {
			c.BestLap = lo.Min(d.LapTimes)
		}
		return c
	})
	if len(ret) == 0 {
		return ret
	}

	fastest := math.Inf(1)
	for _, c := range ret {
		if c.BestLap > 0 && c.BestLap < fastest {
			fastest = c.BestLap
		}
	}
	winner := ret[0].TotalTime
	for i := range ret {
		ret[i].Position = i + 1
		ret[i].GapToWinner = ret[i].TotalTime - winner
		ret[i].FastestLap = ret[i].BestLap > 0 && ret[i].BestLap == fastest
		if i < len(points) && ret[i].Status != model.StatusDNF {
			ret[i].Points = points[i]
			if ret[i].FastestLap {
				ret[i].Points++
			}
		}
	}
	return ret
}
