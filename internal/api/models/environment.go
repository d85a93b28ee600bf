package models

import (
	"github.com/heliowatch/heliowatch/internal/environment"
	"github.com/heliowatch/heliowatch/internal/impact"
	"github.com/heliowatch/heliowatch/internal/report"
)

// ReportQuery is the parsed query string of GET /v1/environment/report.
// Pointers distinguish a missing parameter from the equator or prime meridian.
type ReportQuery struct {
	Lat *float64 `validate:"required,gte=-90,lte=90"`
	Lon *float64 `validate:"required,gte=-180,lte=180"`
}

// Coordinates returns the query as domain coordinates. Call after validation.
func (q ReportQuery) Coordinates() environment.Coordinates {
	return environment.Coordinates{Lat: *q.Lat, Lon: *q.Lon}
}

// Point represents a geographic coordinate.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// EnvironmentReport is the unified report served to dashboard widgets.
type EnvironmentReport struct {
	Coordinates Point             `json:"coordinates"`
	Provenance  Provenance        `json:"provenance"`
	Reading     Reading           `json:"reading"`
	Freshness   Freshness         `json:"freshness"`
	Aggregate   AggregateImpact   `json:"aggregate"`
	Impacts     []SubsystemImpact `json:"impacts"`
	Forecast    []ForecastEntry   `json:"forecast"`
}

// Provenance says which source answered and how.
type Provenance struct {
	Source      string    `json:"source"`
	Provider    string    `json:"provider"`
	Synthetic   bool      `json:"synthetic"`
	CacheHit    bool      `json:"cacheHit"`
	AssembledAt Timestamp `json:"assembledAt"`
	LatencyMs   int64     `json:"latencyMs"`
	Attempts    []Attempt `json:"attempts,omitempty"`
}

// Attempt is one step of the source fallback chain.
type Attempt struct {
	State      string `json:"state"`
	Provider   string `json:"provider,omitempty"`
	Outcome    string `json:"outcome"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"durationMs"`
}

// Reading is the canonical environmental snapshot. CapturedAt is Unix seconds.
type Reading struct {
	TemperatureC     float64 `json:"temperatureC"`
	HumidityPct      float64 `json:"humidityPct"`
	PressureHPa      float64 `json:"pressureHpa"`
	WindSpeedMS      float64 `json:"windSpeedMs"`
	WindDirectionDeg float64 `json:"windDirectionDeg"`
	PrecipitationMMH float64 `json:"precipitationMmH"`
	UVIndex          float64 `json:"uvIndex"`
	VisibilityM      float64 `json:"visibilityM"`
	CloudCoverPct    float64 `json:"cloudCoverPct"`
	CapturedAt       int64   `json:"capturedAt"`
	Condition        string  `json:"condition"`
	Icon             string  `json:"icon,omitempty"`
}

// Freshness is the staleness verdict.
type Freshness struct {
	AgeSeconds int64  `json:"ageSeconds"`
	Stale      bool   `json:"stale"`
	Warning    string `json:"warning,omitempty"`
}

// AggregateImpact is the worst subsystem verdict.
type AggregateImpact struct {
	Status string `json:"status"`
	Level  string `json:"level"`
}

// SubsystemImpact is the verdict for one subsystem.
type SubsystemImpact struct {
	Subsystem      string `json:"subsystem"`
	Status         string `json:"status"`
	Level          string `json:"level"`
	Score          int    `json:"score"`
	Reason         string `json:"reason"`
	LimitingFactor string `json:"limitingFactor,omitempty"`
}

// ForecastEntry is one hour of the illustrative outlook.
type ForecastEntry struct {
	HourOffset   int       `json:"hourOffset"`
	At           Timestamp `json:"at"`
	TemperatureC float64   `json:"temperatureC"`
	Status       string    `json:"status"`
	Risk         string    `json:"risk"`
}

// RulesResponse is the body of GET /v1/environment/rules.
type RulesResponse struct {
	Subsystems []string       `json:"subsystems"`
	Rules      impact.RuleSet `json:"rules"`
}

// NewRulesResponse wraps the active rule set.
func NewRulesResponse(rules impact.RuleSet) RulesResponse {
	subsystems := make([]string, len(impact.Subsystems))
	for i, s := range impact.Subsystems {
		subsystems[i] = string(s)
	}
	return RulesResponse{Subsystems: subsystems, Rules: rules}
}

// FromReport converts a domain report to its wire form.
func FromReport(r *report.UnifiedReport) EnvironmentReport {
	out := EnvironmentReport{
		Coordinates: Point{Lat: r.Coordinates.Lat, Lon: r.Coordinates.Lon},
		Provenance: Provenance{
			Source:      string(r.Provenance.Source),
			Provider:    r.Provenance.Provider,
			Synthetic:   r.Provenance.Synthetic,
			CacheHit:    r.Provenance.CacheHit,
			AssembledAt: Timestamp(r.Provenance.AssembledAt),
			LatencyMs:   r.Provenance.Latency.Milliseconds(),
		},
		Reading: fromReading(r.Reading),
		Freshness: Freshness{
			AgeSeconds: r.Freshness.AgeSeconds,
			Stale:      r.Freshness.Stale,
			Warning:    r.Freshness.Warning,
		},
		Aggregate: AggregateImpact{
			Status: string(r.Assessment.Aggregate),
			Level:  string(r.Assessment.Level),
		},
		Impacts:  make([]SubsystemImpact, 0, len(r.Assessment.Impacts)),
		Forecast: make([]ForecastEntry, 0, len(r.Forecast)),
	}

	for _, a := range r.Provenance.Attempts {
		out.Provenance.Attempts = append(out.Provenance.Attempts, Attempt{
			State:      a.State.String(),
			Provider:   a.Provider,
			Outcome:    string(a.Outcome),
			Error:      a.Error,
			DurationMs: a.Duration.Milliseconds(),
		})
	}

	for _, i := range r.Assessment.Impacts {
		out.Impacts = append(out.Impacts, SubsystemImpact{
			Subsystem:      string(i.Subsystem),
			Status:         string(i.Status),
			Level:          string(i.Status.Level()),
			Score:          i.Score,
			Reason:         i.Reason,
			LimitingFactor: i.LimitingFactor,
		})
	}

	for _, f := range r.Forecast {
		out.Forecast = append(out.Forecast, ForecastEntry{
			HourOffset:   f.HourOffset,
			At:           Timestamp(f.At),
			TemperatureC: f.TemperatureC,
			Status:       string(f.Status),
			Risk:         string(f.Risk),
		})
	}

	return out
}

func fromReading(r environment.Reading) Reading {
	return Reading{
		TemperatureC:     r.TemperatureC,
		HumidityPct:      r.HumidityPct,
		PressureHPa:      r.PressureHPa,
		WindSpeedMS:      r.WindSpeedMS,
		WindDirectionDeg: r.WindDirectionDeg,
		PrecipitationMMH: r.PrecipitationMMH,
		UVIndex:          r.UVIndex,
		VisibilityM:      r.VisibilityM,
		CloudCoverPct:    r.CloudCoverPct,
		CapturedAt:       r.CapturedAt.Unix(),
		Condition:        r.Condition,
		Icon:             r.Icon,
	}
}
