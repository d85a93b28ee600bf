package environment

import (
	"context"
	"math"
	"time"
)

// ClimatologyProviderName identifies the synthetic fallback source.
const ClimatologyProviderName = "climatology"

// Climatology synthesizes a plausible reading from fixed climatological
// defaults. It never makes a network call and never fails, which is what lets
// the fallback chain always terminate with a usable reading.
type Climatology struct {
	now func() time.Time
}

// NewClimatology creates the synthetic fallback source.
func NewClimatology() *Climatology {
	return &Climatology{now: time.Now}
}

// Name returns the provider name.
func (c *Climatology) Name() string {
	return ClimatologyProviderName
}

// CurrentConditions returns a synthetic reading for the coordinates.
// Temperature is the only field adjusted for location: it drops by 0.35 C per
// degree of latitude from a 26 C equatorial baseline. Every value stays inside
// PlausibilityBounds.
func (c *Climatology) CurrentConditions(_ context.Context, coords Coordinates) (Reading, error) {
	temp := 26 - 0.35*math.Abs(coords.Lat)

	return Reading{
		TemperatureC:     math.Round(temp*10) / 10,
		HumidityPct:      55,
		PressureHPa:      1013.25,
		WindSpeedMS:      3.5,
		WindDirectionDeg: 225,
		PrecipitationMMH: 0,
		UVIndex:          5,
		VisibilityM:      10000,
		CloudCoverPct:    30,
		CapturedAt:       c.now().UTC(),
		Condition:        "estimated conditions (climatology)",
		Icon:             "02d",
	}, nil
}
