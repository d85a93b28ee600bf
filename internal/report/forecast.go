package report

import (
	"math"
	"time"

	"github.com/heliowatch/heliowatch/internal/environment"
	"github.com/heliowatch/heliowatch/internal/impact"
)

const (
	// DefaultForecastHours is the number of hourly entries in the outlook.
	DefaultForecastHours = 6

	diurnalAmplitudeC = 4.0
	diurnalPeakHour   = 15.0
)

// ForecastEntry is one hour of the projected outlook.
type ForecastEntry struct {
	HourOffset   int
	At           time.Time
	TemperatureC float64
	Status       impact.Status
	Risk         impact.Level
}

// ForecastStub projects the current reading over the next hours by applying a
// fixed diurnal temperature curve and reclassifying. It has no predictive
// skill; every other field of the reading is carried forward unchanged.
func ForecastStub(reading environment.Reading, coords environment.Coordinates, rules impact.RuleSet, from time.Time, hours int) []ForecastEntry {
	if hours <= 0 {
		hours = DefaultForecastHours
	}

	base := diurnalOffset(from, coords.Lon)
	entries := make([]ForecastEntry, 0, hours)

	for h := 1; h <= hours; h++ {
		at := from.Add(time.Duration(h) * time.Hour)

		projected := reading
		projected.TemperatureC = round1(reading.TemperatureC + diurnalOffset(at, coords.Lon) - base)
		projected.CapturedAt = at

		a := impact.Classify(projected, rules)
		entries = append(entries, ForecastEntry{
			HourOffset:   h,
			At:           at.UTC(),
			TemperatureC: projected.TemperatureC,
			Status:       a.Aggregate,
			Risk:         a.Level,
		})
	}

	return entries
}

// diurnalOffset is the deviation from the daily mean temperature at t, peaking
// at 15:00 local solar time.
func diurnalOffset(t time.Time, lon float64) float64 {
	u := t.UTC()
	hour := float64(u.Hour()) + float64(u.Minute())/60 + lon/15
	return diurnalAmplitudeC * math.Cos(2*math.Pi*(hour-diurnalPeakHour)/24)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
