// Package worker runs the scheduled site monitor. Each sweep assembles a
// unified report for every configured solar site and publishes a compact
// status event per site.
package worker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/heliowatch/heliowatch/internal/config"
	"github.com/heliowatch/heliowatch/internal/report"
)

// SiteStatusEvent summarizes one site's report for downstream consumers.
type SiteStatusEvent struct {
	ID          string            `json:"id"`
	Site        string            `json:"site"`
	Lat         float64           `json:"lat"`
	Lon         float64           `json:"lon"`
	Source      string            `json:"source"`
	Provider    string            `json:"provider"`
	Synthetic   bool              `json:"synthetic"`
	Stale       bool              `json:"stale"`
	Aggregate   string            `json:"aggregate"`
	Level       string            `json:"level"`
	Subsystems  map[string]string `json:"subsystems"`
	GeneratedAt time.Time         `json:"generatedAt"`
}

// NewSiteStatusEvent builds the event for a site from its report.
func NewSiteStatusEvent(site config.Site, rep *report.UnifiedReport) SiteStatusEvent {
	subsystems := make(map[string]string, len(rep.Assessment.Impacts))
	for _, i := range rep.Assessment.Impacts {
		subsystems[string(i.Subsystem)] = string(i.Status)
	}

	return SiteStatusEvent{
		ID:          uuid.NewString(),
		Site:        site.Name,
		Lat:         site.Coordinates.Lat,
		Lon:         site.Coordinates.Lon,
		Source:      string(rep.Provenance.Source),
		Provider:    rep.Provenance.Provider,
		Synthetic:   rep.Provenance.Synthetic,
		Stale:       rep.Freshness.Stale,
		Aggregate:   string(rep.Assessment.Aggregate),
		Level:       string(rep.Assessment.Level),
		Subsystems:  subsystems,
		GeneratedAt: rep.Provenance.AssembledAt,
	}
}

// Publisher delivers site status events.
type Publisher interface {
	Publish(ctx context.Context, event SiteStatusEvent) error
	Close() error
}

// LogPublisher writes events to the log. Used when no Pub/Sub topic is
// configured.
type LogPublisher struct {
	Logger zerolog.Logger
}

// Publish logs the event.
func (p LogPublisher) Publish(_ context.Context, event SiteStatusEvent) error {
	p.Logger.Info().
		Str("event_id", event.ID).
		Str("site", event.Site).
		Str("source", event.Source).
		Str("aggregate", event.Aggregate).
		Str("level", event.Level).
		Bool("stale", event.Stale).
		Msg("site status")
	return nil
}

// Close is a no-op.
func (LogPublisher) Close() error { return nil }
