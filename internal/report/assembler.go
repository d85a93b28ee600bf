// Package report assembles the unified environment report consumed by the
// dashboard: provenance, reading, freshness, operational impact and outlook.
package report

import (
	"time"

	"github.com/heliowatch/heliowatch/internal/environment"
	"github.com/heliowatch/heliowatch/internal/impact"
)

// Provenance records where a reading came from and how the pipeline got it.
type Provenance struct {
	Source      environment.Source
	Provider    string
	Synthetic   bool
	CacheHit    bool
	AssembledAt time.Time
	Latency     time.Duration
	Attempts    []environment.Attempt
}

// UnifiedReport is the single record handed to consumers.
type UnifiedReport struct {
	Coordinates environment.Coordinates
	Provenance  Provenance
	Reading     environment.Reading
	Freshness   environment.Freshness
	Assessment  impact.Assessment
	Forecast    []ForecastEntry
}

// AssembleInput carries the outputs of the pipeline stages.
type AssembleInput struct {
	Coordinates environment.Coordinates
	Selection   environment.Selection
	CacheHit    bool
	Freshness   environment.Freshness
	Assessment  impact.Assessment
	Forecast    []ForecastEntry
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Assemble composes the stage outputs into a report. Latency is measured from
// pipeline entry to FinishedAt.
func Assemble(in AssembleInput) *UnifiedReport {
	latency := in.FinishedAt.Sub(in.StartedAt)
	if latency < 0 {
		latency = 0
	}

	attempts := in.Selection.Attempts
	if in.CacheHit {
		attempts = nil
	}

	return &UnifiedReport{
		Coordinates: in.Coordinates,
		Provenance: Provenance{
			Source:      in.Selection.Source,
			Provider:    in.Selection.Provider,
			Synthetic:   in.Selection.Synthetic,
			CacheHit:    in.CacheHit,
			AssembledAt: in.FinishedAt.UTC(),
			Latency:     latency,
			Attempts:    attempts,
		},
		Reading:    in.Selection.Reading,
		Freshness:  in.Freshness,
		Assessment: in.Assessment,
		Forecast:   in.Forecast,
	}
}
