// Package environment acquires, validates and normalizes environmental readings
// for a solar site through an ordered chain of upstream sources.
package environment

import (
	"errors"
	"math"
	"time"
)

// Environment errors.
var (
	// ErrInvalidCoordinates is the only error that escapes the fallback chain.
	ErrInvalidCoordinates = errors.New("invalid coordinates")

	// ErrTransport is returned by adapters when the provider could not be reached.
	ErrTransport = errors.New("provider transport failure")

	// ErrUpstreamStatus is returned by adapters on a non-2xx response.
	ErrUpstreamStatus = errors.New("provider returned non-success status")

	// ErrMalformedPayload is returned by adapters when the response cannot be decoded.
	ErrMalformedPayload = errors.New("provider returned malformed payload")

	// ErrProviderNotConfigured is returned when an adapter has no credentials.
	ErrProviderNotConfigured = errors.New("provider not configured")

	// ErrAnomaly marks a reading that failed plausibility validation.
	ErrAnomaly = errors.New("reading failed plausibility check")
)

// Coordinates is a WGS84 point.
type Coordinates struct {
	Lat float64
	Lon float64
}

// Validate checks that the coordinates describe a point on the globe.
func (c Coordinates) Validate() error {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lon) {
		return ErrInvalidCoordinates
	}
	if c.Lat < -90 || c.Lat > 90 || c.Lon < -180 || c.Lon > 180 {
		return ErrInvalidCoordinates
	}
	return nil
}

// Reading is one normalized snapshot of conditions at a location and time.
// Readings are values: adapters build them once and nothing mutates them afterwards.
type Reading struct {
	// Temperature in Celsius
	TemperatureC float64

	// Relative humidity percentage (0-100)
	HumidityPct float64

	// Barometric pressure in hPa
	PressureHPa float64

	// Wind
	WindSpeedMS      float64 // m/s
	WindDirectionDeg float64 // degrees, 0=N

	// Precipitation rate in mm/hour
	PrecipitationMMH float64

	// UV index, 0 when the provider does not report it
	UVIndex float64

	// Visibility in meters
	VisibilityM float64

	// Cloud cover percentage (0-100)
	CloudCoverPct float64

	// CapturedAt is when the provider observed the conditions.
	CapturedAt time.Time

	// Condition is human-readable text, Icon the provider's icon code.
	Condition string
	Icon      string
}

// Source identifies which stage of the fallback chain produced a reading.
type Source string

const (
	SourcePrimary   Source = "primary"
	SourceSecondary Source = "secondary"
	SourceSynthetic Source = "synthetic"
)
