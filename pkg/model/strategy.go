package model

type RiskLevel string

const (
	RiskLow    RiskLevel = "Low"
	RiskMedium RiskLevel = "Medium"
	RiskHigh   RiskLevel = "High"
)

type StrategyOption struct {
	ID                string     `json:"id"`
	Name              string     `json:"name"`
	Stops             int        `json:"stops"`
	PitLap            int        `json:"pitLap"`
	TargetCompound    CompoundID `json:"targetCompound"`
	EstimatedRaceTime float64    `json:"estimatedRaceTime"` // seconds, 0 if not computed
	Risk              RiskLevel  `json:"riskLevel"`
	Description       string     `json:"description"`
}

// SimulationResult is the outcome of a single Monte Carlo iteration
type SimulationResult struct {
	WinnerID       string         `json:"winnerId"`
	Podium         []string       `json:"podium"`
	FinalPositions map[string]int `json:"finalPositions"`
}

type StrategyReport struct {
	RecommendedStrategyID string           `json:"recommendedStrategyId"`
	Strategies            []StrategyOption `json:"strategies"`
	SimulationCount       int              `json:"simulationCount"`
	WinProbability        float64          `json:"winProbability"`    // percent
	PodiumProbability     float64          `json:"podiumProbability"` // percent
	AverageFinish         float64          `json:"averageFinish"`
	Explanation           string           `json:"explanation"`
	LastUpdatedLap        int              `json:"lastUpdatedLap"`
}
