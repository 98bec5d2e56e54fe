package cmdutil

import (
	"cmp"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/samber/lo"

	"github.com/mpapenbr/pitwall-go/pkg/model"
	"github.com/mpapenbr/pitwall-go/pkg/race"
	"github.com/mpapenbr/pitwall-go/pkg/sim/montecarlo"
	"github.com/mpapenbr/pitwall-go/pkg/strategy"
)

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	return t
}

func rightAligned(numbers ...int) []table.ColumnConfig {
	return lo.Map(numbers, func(n, _ int) table.ColumnConfig {
		return table.ColumnConfig{Number: n, Align: text.AlignRight}
	})
}

// ClassificationTable renders the race result
func ClassificationTable(w io.Writer, results []race.Classification) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Pos", "Driver", "Team", "Laps", "Time", "Gap", "Best", "Stops", "Pts"})
	for _, c := range results {
		best := strategy.FormatLapTime(c.BestLap)
		if c.FastestLap {
			best += " *"
		}
		gap := fmt.Sprintf("+%.3f", c.GapToWinner)
		if c.Position == 1 {
			gap = ""
		}
		if c.Status == model.StatusDNF {
			gap = "DNF"
		}
		t.AppendRow(table.Row{
			c.Position, fmt.Sprintf("#%d %s", c.Number, c.Name), c.Team, c.Laps,
			strategy.FormatLapTime(c.TotalTime), gap, best, c.PitStops, c.Points,
		})
	}
	t.SetColumnConfigs(rightAligned(1, 4, 5, 6, 7, 8, 9))
	t.Render()
}

// StrategyTable renders the strategy options, marking the recommended one
func StrategyTable(w io.Writer, options []model.StrategyOption, recommended string) {
	t := newTable(w)
	t.AppendHeader(table.Row{"", "Strategy", "Pit lap", "Tyre", "Stops", "Risk", "Est. time", "Plan"})
	for _, o := range options {
		mark := ""
		if o.ID == recommended {
			mark = ">"
		}
		t.AppendRow(table.Row{
			mark, o.Name, o.PitLap, model.MustTyre(o.TargetCompound).Name, o.Stops, o.Risk,
			strategy.FormatLapTime(o.EstimatedRaceTime), o.Description,
		})
	}
	t.SetColumnConfigs(rightAligned(3, 5, 7))
	t.Render()
}

// PlanTable renders the stints and pit stops of plan
func PlanTable(w io.Writer, plan *strategy.Plan) {
	t := newTable(w)
	t.SetTitle(plan.StrategyID)
	t.AppendHeader(table.Row{"Part", "Laps", "Tyre", "Time"})
	for _, p := range plan.Parts {
		switch part := p.(type) {
		case strategy.StintPart:
			t.AppendRow(table.Row{
				"Stint", fmt.Sprintf("%d-%d", part.LapStart(), part.LapEnd()),
				model.MustTyre(part.Compound()).Name,
				strategy.FormatLapTime(part.StintTime().Seconds()),
			})
		case strategy.PitPart:
			t.AppendRow(table.Row{
				"Pit", part.Lap(), "", strategy.FormatLapTime(part.PitTime().Seconds()),
			})
		}
	}
	t.AppendFooter(table.Row{"", "", "Total", strategy.FormatLapTime(plan.Total.Seconds())})
	t.SetColumnConfigs(rightAligned(4))
	t.Render()
}

// ProjectionTable renders the finishing position distribution of every driver
func ProjectionTable(w io.Writer, proj *montecarlo.Projection, drivers []model.Driver, heroID string) {
	type row struct {
		d      model.Driver
		wins   int
		podium int
		avg    float64
	}
	n := len(proj.Results)
	rows := lo.Map(drivers, func(d model.Driver, _ int) row {
		r := row{d: d}
		for _, res := range proj.Results {
			pos := res.FinalPositions[d.ID]
			if pos == 1 {
				r.wins++
			}
			if pos >= 1 && pos <= 3 {
				r.podium++
			}
			r.avg += float64(pos)
		}
		if n > 0 {
			r.avg /= float64(n)
		}
		return r
	})
	slices.SortStableFunc(rows, func(a, b row) int { return cmp.Compare(a.avg, b.avg) })

	t := newTable(w)
	t.SetTitle(fmt.Sprintf("%d simulated races from lap %d", proj.Iterations, proj.SourceLap))
	t.AppendHeader(table.Row{"Driver", "Win %", "Podium %", "Avg finish"})
	pct := func(v int) string {
		if n == 0 {
			return "-"
		}
		return fmt.Sprintf("%.1f", float64(v)*100/float64(n))
	}
	for _, r := range rows {
		name := r.d.Name
		if r.d.ID == heroID {
			name = strings.ToUpper(name)
		}
		t.AppendRow(table.Row{name, pct(r.wins), pct(r.podium), fmt.Sprintf("%.2f", r.avg)})
	}
	t.SetColumnConfigs(rightAligned(2, 3, 4))
	t.Render()
}
