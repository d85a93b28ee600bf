package worker

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/heliowatch/heliowatch/internal/config"
	"github.com/heliowatch/heliowatch/internal/environment"
	"github.com/heliowatch/heliowatch/internal/report"
)

const (
	defaultInterval    = 15 * time.Minute
	defaultConcurrency = 3
	defaultSiteTimeout = 30 * time.Second
)

// ReportService produces unified reports.
type ReportService interface {
	GetUnifiedReport(ctx context.Context, coords environment.Coordinates) (*report.UnifiedReport, error)
}

// MonitorConfig holds configuration for creating a Monitor.
type MonitorConfig struct {
	Sites       []config.Site
	Interval    time.Duration
	Concurrency int

	// SiteTimeout bounds report assembly plus publishing for one site.
	// Default: 30 seconds
	SiteTimeout time.Duration

	Reports   ReportService
	Publisher Publisher
	Logger    zerolog.Logger
}

// Monitor periodically checks every configured site.
type Monitor struct {
	sites       []config.Site
	interval    time.Duration
	concurrency int
	siteTimeout time.Duration

	reports   ReportService
	publisher Publisher
	logger    zerolog.Logger

	sweepMu   sync.Mutex
	scheduler *gocron.Scheduler

	statsMu sync.RWMutex
	stats   MonitorStats
}

// MonitorStats tracks sweep statistics.
type MonitorStats struct {
	TotalSweeps       int64     `json:"totalSweeps"`
	SitesChecked      int64     `json:"sitesChecked"`
	SiteFailures      int64     `json:"siteFailures"`
	LastSweepAt       time.Time `json:"lastSweepAt"`
	LastSweepDuration string    `json:"lastSweepDuration"`
}

// SweepResult contains the outcome of one sweep.
type SweepResult struct {
	StartTime  time.Time
	EndTime    time.Time
	Duration   time.Duration
	TotalSites int
	Successful int
	Failed     int
	Events     []SiteStatusEvent
	Errors     []SiteError
}

// SiteError records a site that could not be checked.
type SiteError struct {
	Site  string
	Stage string // "report" or "publish"
	Error string
}

// NewMonitor creates a site monitor. A nil Publisher logs events instead.
func NewMonitor(cfg MonitorConfig) *Monitor {
	m := &Monitor{
		sites:       cfg.Sites,
		interval:    cfg.Interval,
		concurrency: cfg.Concurrency,
		siteTimeout: cfg.SiteTimeout,
		reports:     cfg.Reports,
		publisher:   cfg.Publisher,
		logger:      cfg.Logger,
	}
	if m.interval <= 0 {
		m.interval = defaultInterval
	}
	if m.concurrency <= 0 {
		m.concurrency = defaultConcurrency
	}
	if m.siteTimeout <= 0 {
		m.siteTimeout = defaultSiteTimeout
	}
	if m.publisher == nil {
		m.publisher = LogPublisher{Logger: cfg.Logger}
	}
	return m
}

// Start schedules a sweep every interval, the first one immediately.
// Overlapping runs are skipped. ctx bounds the sweeps, not the scheduler.
func (m *Monitor) Start(ctx context.Context) error {
	s := gocron.NewScheduler(time.UTC)
	_, err := s.Every(m.interval).SingletonMode().Do(func() {
		m.Sweep(ctx)
	})
	if err != nil {
		return fmt.Errorf("scheduling site sweep: %w", err)
	}

	m.scheduler = s
	s.StartAsync()

	m.logger.Info().
		Int("sites", len(m.sites)).
		Dur("interval", m.interval).
		Int("concurrency", m.concurrency).
		Msg("site monitor started")
	return nil
}

// Stop halts the scheduler. A sweep already running is not interrupted.
func (m *Monitor) Stop() {
	if m.scheduler != nil {
		m.scheduler.Stop()
	}
}

// Sweep checks every configured site once.
func (m *Monitor) Sweep(ctx context.Context) *SweepResult {
	return m.sweep(ctx, m.sites)
}

// SweepSites checks the named sites only. Unknown names are skipped.
func (m *Monitor) SweepSites(ctx context.Context, names []string) *SweepResult {
	if len(names) == 0 {
		return m.Sweep(ctx)
	}

	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}

	var sites []config.Site
	for _, s := range m.sites {
		if wanted[s.Name] {
			sites = append(sites, s)
			delete(wanted, s.Name)
		}
	}
	for n := range wanted {
		m.logger.Warn().Str("site", n).Msg("sweep requested for unknown site")
	}

	return m.sweep(ctx, sites)
}

func (m *Monitor) sweep(ctx context.Context, sites []config.Site) *SweepResult {
	m.sweepMu.Lock()
	defer m.sweepMu.Unlock()

	result := &SweepResult{
		StartTime:  time.Now(),
		TotalSites: len(sites),
	}

	m.logger.Debug().Int("sites", len(sites)).Msg("starting site sweep")

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)

	for _, site := range sites {
		g.Go(func() error {
			event, siteErr := m.checkSite(gctx, site)

			mu.Lock()
			defer mu.Unlock()
			if siteErr != nil {
				result.Failed++
				result.Errors = append(result.Errors, *siteErr)
				return nil
			}
			result.Successful++
			result.Events = append(result.Events, event)
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(result.Events, func(i, j int) bool { return result.Events[i].Site < result.Events[j].Site })
	sort.Slice(result.Errors, func(i, j int) bool { return result.Errors[i].Site < result.Errors[j].Site })

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)
	m.updateStats(result)

	m.logger.Info().
		Dur("duration", result.Duration).
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Msg("site sweep completed")

	return result
}

func (m *Monitor) checkSite(ctx context.Context, site config.Site) (SiteStatusEvent, *SiteError) {
	ctx, cancel := context.WithTimeout(ctx, m.siteTimeout)
	defer cancel()

	logger := m.logger.With().Str("site", site.Name).Logger()

	rep, err := m.reports.GetUnifiedReport(ctx, site.Coordinates)
	if err != nil {
		logger.Error().Err(err).Msg("site report failed")
		return SiteStatusEvent{}, &SiteError{Site: site.Name, Stage: "report", Error: err.Error()}
	}

	event := NewSiteStatusEvent(site, rep)
	if err := m.publisher.Publish(ctx, event); err != nil {
		logger.Error().Err(err).Str("event_id", event.ID).Msg("publishing site status failed")
		return SiteStatusEvent{}, &SiteError{Site: site.Name, Stage: "publish", Error: err.Error()}
	}

	return event, nil
}

func (m *Monitor) updateStats(result *SweepResult) {
	m.statsMu.Lock()
	defer m.statsMu.Unlock()

	m.stats.TotalSweeps++
	m.stats.SitesChecked += int64(result.Successful)
	m.stats.SiteFailures += int64(result.Failed)
	m.stats.LastSweepAt = result.EndTime.UTC()
	m.stats.LastSweepDuration = result.Duration.String()
}

// Stats returns a copy of the current statistics.
func (m *Monitor) Stats() MonitorStats {
	m.statsMu.RLock()
	defer m.statsMu.RUnlock()
	return m.stats
}
