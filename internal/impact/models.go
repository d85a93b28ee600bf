// Package impact translates an environmental reading into operational
// verdicts for the automated subsystems of a solar site.
package impact

// Status is the operational verdict for one subsystem.
type Status string

const (
	StatusOptimal  Status = "OPTIMAL"
	StatusWarning  Status = "WARNING"
	StatusPaused   Status = "PAUSED"
	StatusCritical Status = "CRITICAL"
)

// Severity orders statuses: OPTIMAL < WARNING < PAUSED < CRITICAL.
func (s Status) Severity() int {
	switch s {
	case StatusOptimal:
		return 0
	case StatusWarning:
		return 1
	case StatusPaused:
		return 2
	case StatusCritical:
		return 3
	default:
		return -1
	}
}

// Level collapses a status to the dashboard traffic light.
func (s Status) Level() Level {
	switch s {
	case StatusCritical:
		return LevelRed
	case StatusWarning, StatusPaused:
		return LevelYellow
	default:
		return LevelGreen
	}
}

// Level is the tri-state indicator shown to operators.
type Level string

const (
	LevelGreen  Level = "GREEN"
	LevelYellow Level = "YELLOW"
	LevelRed    Level = "RED"
)

// Subsystem names an automated system affected by the weather.
type Subsystem string

const (
	SubsystemFlight   Subsystem = "flight_operations"
	SubsystemRobotics Subsystem = "ground_robotics"
	SubsystemDispatch Subsystem = "grid_dispatch"
)

// Subsystems lists every subsystem in evaluation order.
var Subsystems = []Subsystem{SubsystemFlight, SubsystemRobotics, SubsystemDispatch}

// Limiting factors reported when a rule fires.
const (
	FactorHighWind           = "High Wind"
	FactorPrecipitation      = "Precipitation"
	FactorLowVisibility      = "Low Visibility"
	FactorHighTemperature    = "High Temperature"
	FactorFreezingRisk       = "Freezing Risk"
	FactorHighHumidity       = "High Humidity"
	FactorCloudCover         = "Cloud Cover"
	FactorHeavyPrecipitation = "Heavy Precipitation"
)

// Fixed scores for non-optimal statuses. OPTIMAL scores between
// OptimalMinScore and OptimalMaxScore.
const (
	ScoreCritical   = 0
	ScorePaused     = 25
	ScoreWarning    = 55
	OptimalMinScore = 80
	OptimalMaxScore = 100
)

// SubsystemImpact is the verdict for one subsystem.
type SubsystemImpact struct {
	Subsystem Subsystem
	Status    Status

	// Score is 0-100, higher is better.
	Score int

	// Reason is a human-readable explanation naming the measured value.
	Reason string

	// LimitingFactor is empty when Status is OPTIMAL.
	LimitingFactor string
}

// Assessment is the full classification of one reading.
type Assessment struct {
	// Impacts holds one entry per subsystem in Subsystems order.
	Impacts []SubsystemImpact

	// Aggregate is the most severe subsystem status.
	Aggregate Status
	Level     Level
}

// For returns the impact for a subsystem.
func (a Assessment) For(s Subsystem) (SubsystemImpact, bool) {
	for _, i := range a.Impacts {
		if i.Subsystem == s {
			return i, true
		}
	}
	return SubsystemImpact{}, false
}
