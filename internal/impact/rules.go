package impact

import (
	"errors"
	"fmt"
)

// ErrInvalidRuleSet is returned by RuleSet.Validate.
var ErrInvalidRuleSet = errors.New("invalid rule set")

// FlightRules gate drone inspection flights.
type FlightRules struct {
	MaxWindMS           float64 `json:"maxWindMs"`
	MaxPrecipitationMMH float64 `json:"maxPrecipitationMmH"`
	MinVisibilityM      float64 `json:"minVisibilityM"`
}

// RoboticsRules gate panel-cleaning robot dispatch.
type RoboticsRules struct {
	MaxWindMS           float64 `json:"maxWindMs"`
	MaxTemperatureC     float64 `json:"maxTemperatureC"`
	MinTemperatureC     float64 `json:"minTemperatureC"`
	MaxPrecipitationMMH float64 `json:"maxPrecipitationMmH"`
	MaxHumidityPct      float64 `json:"maxHumidityPct"`
}

// DispatchRules flag grid dispatch planning risk.
type DispatchRules struct {
	MaxCloudCoverPct    float64 `json:"maxCloudCoverPct"`
	MaxPrecipitationMMH float64 `json:"maxPrecipitationMmH"`
}

// RuleSet holds the thresholds for every subsystem. It is built once at
// startup and shared read-only.
type RuleSet struct {
	Flight   FlightRules   `json:"flightOperations"`
	Robotics RoboticsRules `json:"groundRobotics"`
	Dispatch DispatchRules `json:"gridDispatch"`
}

// DefaultRuleSet returns the stock thresholds.
func DefaultRuleSet() RuleSet {
	return RuleSet{
		Flight: FlightRules{
			MaxWindMS:           12,
			MaxPrecipitationMMH: 0.5,
			MinVisibilityM:      3000,
		},
		Robotics: RoboticsRules{
			MaxWindMS:           18,
			MaxTemperatureC:     30,
			MinTemperatureC:     2,
			MaxPrecipitationMMH: 1.0,
			MaxHumidityPct:      90,
		},
		Dispatch: DispatchRules{
			MaxCloudCoverPct:    80,
			MaxPrecipitationMMH: 7.5,
		},
	}
}

// Validate checks that the thresholds are internally consistent.
func (r RuleSet) Validate() error {
	switch {
	case r.Flight.MaxWindMS <= 0:
		return fmt.Errorf("%w: flight max wind must be positive", ErrInvalidRuleSet)
	case r.Robotics.MaxWindMS <= 0:
		return fmt.Errorf("%w: robot max wind must be positive", ErrInvalidRuleSet)
	case r.Robotics.MinTemperatureC >= r.Robotics.MaxTemperatureC:
		return fmt.Errorf("%w: robot min temperature %g must be below max %g",
			ErrInvalidRuleSet, r.Robotics.MinTemperatureC, r.Robotics.MaxTemperatureC)
	case r.Dispatch.MaxCloudCoverPct <= 0 || r.Dispatch.MaxCloudCoverPct > 100:
		return fmt.Errorf("%w: grid max cloud cover must be in (0, 100]", ErrInvalidRuleSet)
	}
	return nil
}
