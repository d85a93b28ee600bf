package environment

import (
	"fmt"
	"math"
)

// Bound is an inclusive plausibility range for one reading field.
type Bound struct {
	Field string
	Min   float64
	Max   float64
	value func(Reading) float64
}

// PlausibilityBounds is the provider-agnostic sanity table, checked in order.
// Temperature, wind speed and pressure come first because upstream sentinels
// such as -9999 usually show up there.
var PlausibilityBounds = []Bound{
	{Field: "temperature", Min: -40, Max: 60, value: func(r Reading) float64 { return r.TemperatureC }},
	{Field: "wind_speed", Min: 0, Max: 150, value: func(r Reading) float64 { return r.WindSpeedMS }},
	{Field: "pressure", Min: 800, Max: 1100, value: func(r Reading) float64 { return r.PressureHPa }},
	{Field: "humidity", Min: 0, Max: 100, value: func(r Reading) float64 { return r.HumidityPct }},
	{Field: "cloud_cover", Min: 0, Max: 100, value: func(r Reading) float64 { return r.CloudCoverPct }},
	{Field: "wind_direction", Min: 0, Max: 360, value: func(r Reading) float64 { return r.WindDirectionDeg }},
	{Field: "precipitation", Min: 0, Max: 500, value: func(r Reading) float64 { return r.PrecipitationMMH }},
	{Field: "uv_index", Min: 0, Max: 20, value: func(r Reading) float64 { return r.UVIndex }},
	{Field: "visibility", Min: 0, Max: 100000, value: func(r Reading) float64 { return r.VisibilityM }},
}

// AnomalyError names the first field of a reading that fell outside its bound.
type AnomalyError struct {
	Field string
	Value float64
	Min   float64
	Max   float64
}

func (e *AnomalyError) Error() string {
	return fmt.Sprintf("anomalous %s: %g outside [%g, %g]", e.Field, e.Value, e.Min, e.Max)
}

// Unwrap lets callers match any anomaly with errors.Is(err, ErrAnomaly).
func (e *AnomalyError) Unwrap() error {
	return ErrAnomaly
}

// Validate checks every numeric field of the reading against PlausibilityBounds.
// It returns an *AnomalyError for the first violation, or nil.
func Validate(r Reading) error {
	for _, b := range PlausibilityBounds {
		v := b.value(r)
		if math.IsNaN(v) || math.IsInf(v, 0) || v < b.Min || v > b.Max {
			return &AnomalyError{Field: b.Field, Value: v, Min: b.Min, Max: b.Max}
		}
	}
	return nil
}
