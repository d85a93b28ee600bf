package report

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/heliowatch/heliowatch/internal/environment"
	"github.com/heliowatch/heliowatch/internal/impact"
)

// DefaultDeadline bounds one pipeline run when the caller supplies none.
const DefaultDeadline = 8 * time.Second

// Selector picks a reading through the fallback chain.
type Selector interface {
	Select(ctx context.Context, coords environment.Coordinates) (environment.Selection, error)
}

// Recorder receives report-level measurements.
type Recorder interface {
	RecordStale(ctx context.Context, source string)
	RecordReport(ctx context.Context, cacheHit bool, latency time.Duration)
}

// ServiceConfig holds configuration for the report service.
type ServiceConfig struct {
	// Selector runs the fallback chain (required).
	Selector Selector

	// Cache holds recent live selections. If nil, caching is disabled.
	Cache Cache

	// Rules are the classification thresholds (default: impact.DefaultRuleSet).
	Rules *impact.RuleSet

	// StalenessThreshold (default: environment.DefaultStalenessThreshold).
	StalenessThreshold time.Duration

	// Deadline applied when the caller's context has none (default: 8s).
	Deadline time.Duration

	// ForecastHours is the outlook length (default: 6).
	ForecastHours int

	// GridSize is the cache cell size in degrees (default: 0.01).
	GridSize float64

	// Recorder receives metrics. Optional.
	Recorder Recorder

	Logger zerolog.Logger
}

// Service runs the full pipeline and produces unified reports.
type Service struct {
	selector      Selector
	cache         Cache
	rules         impact.RuleSet
	staleness     time.Duration
	deadline      time.Duration
	forecastHours int
	gridSize      float64
	recorder      Recorder
	logger        zerolog.Logger
	now           func() time.Time

	flight singleflight.Group
}

// NewService creates a new report service.
func NewService(cfg ServiceConfig) *Service {
	rules := impact.DefaultRuleSet()
	if cfg.Rules != nil {
		rules = *cfg.Rules
	}

	cache := cfg.Cache
	if cache == nil {
		cache = NoopCache{}
	}

	staleness := cfg.StalenessThreshold
	if staleness == 0 {
		staleness = environment.DefaultStalenessThreshold
	}

	deadline := cfg.Deadline
	if deadline == 0 {
		deadline = DefaultDeadline
	}

	hours := cfg.ForecastHours
	if hours == 0 {
		hours = DefaultForecastHours
	}

	gridSize := cfg.GridSize
	if gridSize == 0 {
		gridSize = DefaultGridSize
	}

	return &Service{
		selector:      cfg.Selector,
		cache:         cache,
		rules:         rules,
		staleness:     staleness,
		deadline:      deadline,
		forecastHours: hours,
		gridSize:      gridSize,
		recorder:      cfg.Recorder,
		logger:        cfg.Logger,
		now:           time.Now,
	}
}

// Rules returns the active rule set.
func (s *Service) Rules() impact.RuleSet {
	return s.rules
}

// GetUnifiedReport acquires, validates, classifies and assembles a report for
// the coordinates. It only fails with environment.ErrInvalidCoordinates.
func (s *Service) GetUnifiedReport(ctx context.Context, coords environment.Coordinates) (*UnifiedReport, error) {
	started := s.now()

	if err := coords.Validate(); err != nil {
		return nil, err
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.deadline)
		defer cancel()
	}

	sel, cacheHit, err := s.selection(ctx, coords)
	if err != nil {
		return nil, err
	}

	now := s.now()
	freshness := environment.CheckFreshness(sel.Reading.CapturedAt, now, s.staleness)
	if freshness.Stale {
		s.logger.Warn().
			Float64("lat", coords.Lat).
			Float64("lon", coords.Lon).
			Str("provider", sel.Provider).
			Int64("age_seconds", freshness.AgeSeconds).
			Msg("serving stale reading")
		if s.recorder != nil {
			s.recorder.RecordStale(ctx, string(sel.Source))
		}
	}

	assessment := impact.Classify(sel.Reading, s.rules)
	forecast := ForecastStub(sel.Reading, coords, s.rules, now, s.forecastHours)

	finished := s.now()
	report := Assemble(AssembleInput{
		Coordinates: coords,
		Selection:   sel,
		CacheHit:    cacheHit,
		Freshness:   freshness,
		Assessment:  assessment,
		Forecast:    forecast,
		StartedAt:   started,
		FinishedAt:  finished,
	})

	if s.recorder != nil {
		s.recorder.RecordReport(ctx, cacheHit, report.Provenance.Latency)
	}

	s.logger.Debug().
		Str("source", string(sel.Source)).
		Bool("cache_hit", cacheHit).
		Str("aggregate", string(assessment.Aggregate)).
		Dur("latency", report.Provenance.Latency).
		Msg("assembled environment report")

	return report, nil
}

// selection returns a cached live selection or runs the fallback chain.
// Concurrent misses for one grid cell share a single chain run. The shared
// run is detached from every caller and bounded by the pipeline deadline;
// a caller whose own context ends first runs the chain alone under it.
func (s *Service) selection(ctx context.Context, coords environment.Coordinates) (environment.Selection, bool, error) {
	key := GridKey(coords, s.gridSize)

	entry, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("report cache read failed")
	}
	if ok {
		return environment.Selection{
			Reading:  entry.Reading,
			Source:   entry.Source,
			Provider: entry.Provider,
		}, true, nil
	}

	shared := s.flight.DoChan(key, func() (interface{}, error) {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.deadline)
		defer cancel()

		sel, err := s.selector.Select(runCtx, coords)
		if err != nil {
			return environment.Selection{}, err
		}
		if cacheable(sel) {
			s.store(runCtx, key, sel)
		}
		return sel, nil
	})

	select {
	case res := <-shared:
		if res.Err != nil {
			return environment.Selection{}, false, res.Err
		}
		return res.Val.(environment.Selection), false, nil
	case <-ctx.Done():
		sel, err := s.selector.Select(ctx, coords)
		return sel, false, err
	}
}

// cacheable reports whether sel may be served to later callers. Synthetic
// readings and secondary readings that failed validation are per-request.
func cacheable(sel environment.Selection) bool {
	if sel.Synthetic {
		return false
	}
	for _, att := range sel.Attempts {
		if att.Outcome == environment.OutcomeAcceptedWithAnomaly {
			return false
		}
	}
	return true
}

func (s *Service) store(ctx context.Context, key string, sel environment.Selection) {
	err := s.cache.Set(ctx, key, Entry{
		Reading:  sel.Reading,
		Source:   sel.Source,
		Provider: sel.Provider,
		CachedAt: s.now(),
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("report cache write failed")
	}
}
