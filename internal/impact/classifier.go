package impact

import (
	"fmt"
	"math"

	"github.com/heliowatch/heliowatch/internal/environment"
)

// rule is one threshold check. Rules of a subsystem are evaluated in order and
// the first that fires decides the verdict.
type rule struct {
	fires  func(r environment.Reading) bool
	status Status
	factor string
	reason func(r environment.Reading) string
}

// Classify evaluates every subsystem against the reading. It is pure: the same
// reading and rules always produce the same assessment.
func Classify(reading environment.Reading, rules RuleSet) Assessment {
	impacts := []SubsystemImpact{
		evaluate(SubsystemFlight, reading, flightRules(rules.Flight),
			headroom(reading.WindSpeedMS, rules.Flight.MaxWindMS),
			"conditions within flight envelope"),
		evaluate(SubsystemRobotics, reading, roboticsRules(rules.Robotics),
			headroom(reading.WindSpeedMS, rules.Robotics.MaxWindMS),
			"conditions suitable for panel cleaning"),
		evaluate(SubsystemDispatch, reading, dispatchRules(rules.Dispatch),
			headroom(reading.CloudCoverPct, rules.Dispatch.MaxCloudCoverPct),
			"stable irradiance expected"),
	}

	aggregate := StatusOptimal
	for _, i := range impacts {
		if i.Status.Severity() > aggregate.Severity() {
			aggregate = i.Status
		}
	}

	return Assessment{
		Impacts:   impacts,
		Aggregate: aggregate,
		Level:     aggregate.Level(),
	}
}

func evaluate(s Subsystem, reading environment.Reading, rules []rule, room float64, optimalReason string) SubsystemImpact {
	for _, rl := range rules {
		if rl.fires(reading) {
			return SubsystemImpact{
				Subsystem:      s,
				Status:         rl.status,
				Score:          fixedScore(rl.status),
				Reason:         rl.reason(reading),
				LimitingFactor: rl.factor,
			}
		}
	}

	return SubsystemImpact{
		Subsystem: s,
		Status:    StatusOptimal,
		Score:     OptimalMinScore + int(math.Round(room*(OptimalMaxScore-OptimalMinScore))),
		Reason:    optimalReason,
	}
}

func flightRules(f FlightRules) []rule {
	return []rule{
		{
			fires:  func(r environment.Reading) bool { return r.WindSpeedMS > f.MaxWindMS },
			status: StatusCritical,
			factor: FactorHighWind,
			reason: func(r environment.Reading) string {
				return fmt.Sprintf("wind %.1f m/s exceeds flight limit of %.1f m/s; grounding drones", r.WindSpeedMS, f.MaxWindMS)
			},
		},
		{
			fires:  func(r environment.Reading) bool { return r.PrecipitationMMH > f.MaxPrecipitationMMH },
			status: StatusPaused,
			factor: FactorPrecipitation,
			reason: func(r environment.Reading) string {
				return fmt.Sprintf("precipitation %.1f mm/h exceeds flight limit of %.1f mm/h", r.PrecipitationMMH, f.MaxPrecipitationMMH)
			},
		},
		{
			fires:  func(r environment.Reading) bool { return r.VisibilityM < f.MinVisibilityM },
			status: StatusWarning,
			factor: FactorLowVisibility,
			reason: func(r environment.Reading) string {
				return fmt.Sprintf("visibility %.0f m is below %.0f m; keep line of sight", r.VisibilityM, f.MinVisibilityM)
			},
		},
	}
}

func roboticsRules(rb RoboticsRules) []rule {
	return []rule{
		{
			fires:  func(r environment.Reading) bool { return r.WindSpeedMS > rb.MaxWindMS },
			status: StatusCritical,
			factor: FactorHighWind,
			reason: func(r environment.Reading) string {
				return fmt.Sprintf("wind %.1f m/s exceeds robot limit of %.1f m/s; robots must dock", r.WindSpeedMS, rb.MaxWindMS)
			},
		},
		{
			fires:  func(r environment.Reading) bool { return r.TemperatureC > rb.MaxTemperatureC },
			status: StatusPaused,
			factor: FactorHighTemperature,
			reason: func(r environment.Reading) string {
				return fmt.Sprintf("temperature %.1f C exceeds %.1f C; hot panels risk thermal shock during cleaning", r.TemperatureC, rb.MaxTemperatureC)
			},
		},
		{
			fires:  func(r environment.Reading) bool { return r.TemperatureC < rb.MinTemperatureC },
			status: StatusPaused,
			factor: FactorFreezingRisk,
			reason: func(r environment.Reading) string {
				return fmt.Sprintf("temperature %.1f C is below %.1f C; cleaning water may freeze", r.TemperatureC, rb.MinTemperatureC)
			},
		},
		{
			fires:  func(r environment.Reading) bool { return r.PrecipitationMMH > rb.MaxPrecipitationMMH },
			status: StatusPaused,
			factor: FactorPrecipitation,
			reason: func(r environment.Reading) string {
				return fmt.Sprintf("precipitation %.1f mm/h exceeds robot limit of %.1f mm/h", r.PrecipitationMMH, rb.MaxPrecipitationMMH)
			},
		},
		{
			fires:  func(r environment.Reading) bool { return r.HumidityPct > rb.MaxHumidityPct },
			status: StatusWarning,
			factor: FactorHighHumidity,
			reason: func(r environment.Reading) string {
				return fmt.Sprintf("humidity %.0f%% exceeds %.0f%%; expect residue after cleaning", r.HumidityPct, rb.MaxHumidityPct)
			},
		},
	}
}

func dispatchRules(d DispatchRules) []rule {
	return []rule{
		{
			fires:  func(r environment.Reading) bool { return r.CloudCoverPct > d.MaxCloudCoverPct },
			status: StatusWarning,
			factor: FactorCloudCover,
			reason: func(r environment.Reading) string {
				return fmt.Sprintf("cloud cover %.0f%% exceeds %.0f%%; expect solar output intermittency", r.CloudCoverPct, d.MaxCloudCoverPct)
			},
		},
		{
			fires:  func(r environment.Reading) bool { return r.PrecipitationMMH > d.MaxPrecipitationMMH },
			status: StatusWarning,
			factor: FactorHeavyPrecipitation,
			reason: func(r environment.Reading) string {
				return fmt.Sprintf("precipitation %.1f mm/h exceeds %.1f mm/h; reduce committed output", r.PrecipitationMMH, d.MaxPrecipitationMMH)
			},
		},
	}
}

func fixedScore(s Status) int {
	switch s {
	case StatusCritical:
		return ScoreCritical
	case StatusPaused:
		return ScorePaused
	case StatusWarning:
		return ScoreWarning
	default:
		return OptimalMaxScore
	}
}

// headroom is the remaining fraction of limit, clamped to [0, 1].
func headroom(value, limit float64) float64 {
	if limit <= 0 {
		return 0
	}
	h := (limit - value) / limit
	return math.Max(0, math.Min(1, h))
}
