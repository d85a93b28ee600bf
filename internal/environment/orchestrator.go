package environment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/heliowatch/heliowatch/internal/environment"

// ErrProviderPanic wraps a panic recovered from inside an adapter.
var ErrProviderPanic = errors.New("provider panicked")

// Provider is one upstream source normalized to the canonical Reading.
type Provider interface {
	// CurrentConditions fetches the current reading for a location.
	CurrentConditions(ctx context.Context, coords Coordinates) (Reading, error)

	// Name returns the provider name for logging and provenance.
	Name() string
}

// Recorder receives per-attempt and per-selection measurements.
type Recorder interface {
	RecordAttempt(ctx context.Context, provider, outcome string, duration time.Duration)
	RecordSelection(ctx context.Context, source string, latency time.Duration)
}

// State is a step of the source selection state machine.
type State int

const (
	StateTryPrimary State = iota
	StateTrySecondary
	StateUseSyntheticFallback
	StateDone
)

func (s State) String() string {
	switch s {
	case StateTryPrimary:
		return "try_primary"
	case StateTrySecondary:
		return "try_secondary"
	case StateUseSyntheticFallback:
		return "use_synthetic_fallback"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Outcome describes how one attempt ended.
type Outcome string

const (
	OutcomeAccepted            Outcome = "accepted"
	OutcomeAcceptedWithAnomaly Outcome = "accepted_with_anomaly"
	OutcomeRejected            Outcome = "rejected"
	OutcomeFailed              Outcome = "failed"
	OutcomeSkipped             Outcome = "skipped"
)

// Attempt records one state of the fallback chain and why it was left.
type Attempt struct {
	State    State
	Provider string
	Outcome  Outcome
	Error    string
	Duration time.Duration
}

// Selection is the terminal output of the state machine.
type Selection struct {
	Reading   Reading
	Source    Source
	Provider  string
	Synthetic bool
	Latency   time.Duration
	Attempts  []Attempt
}

// OrchestratorConfig holds the sources tried by the orchestrator.
type OrchestratorConfig struct {
	// Primary is tried first and must pass Validate. Optional.
	Primary Provider

	// Secondary is tried when the primary fails. Its readings are accepted even
	// when they fail Validate. Optional.
	Secondary Provider

	// Fallback synthesizes a reading without network access.
	// If nil, uses NewClimatology().
	Fallback Provider

	// Recorder receives metrics. Optional.
	Recorder Recorder

	// Logger for orchestrator operations.
	Logger zerolog.Logger
}

// Orchestrator walks TryPrimary -> TrySecondary -> UseSyntheticFallback -> Done.
type Orchestrator struct {
	primary   Provider
	secondary Provider
	fallback  Provider
	builtin   *Climatology
	recorder  Recorder
	logger    zerolog.Logger
	tracer    trace.Tracer
}

// NewOrchestrator creates a new source selector.
func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	builtin := NewClimatology()

	fallback := cfg.Fallback
	if fallback == nil {
		fallback = builtin
	}

	return &Orchestrator{
		primary:   cfg.Primary,
		secondary: cfg.Secondary,
		fallback:  fallback,
		builtin:   builtin,
		recorder:  cfg.Recorder,
		logger:    cfg.Logger,
		tracer:    otel.Tracer(tracerName),
	}
}

// Select runs the fallback chain for the coordinates. It only fails with
// ErrInvalidCoordinates; every source failure advances the state machine and
// the synthetic fallback always answers. Once ctx is done no further network
// state is entered.
func (o *Orchestrator) Select(ctx context.Context, coords Coordinates) (Selection, error) {
	if err := coords.Validate(); err != nil {
		return Selection{}, err
	}

	start := time.Now()
	ctx, span := o.tracer.Start(ctx, "environment.select",
		trace.WithAttributes(
			attribute.Float64("geo.lat", coords.Lat),
			attribute.Float64("geo.lon", coords.Lon),
		),
	)
	defer span.End()

	var sel Selection
	state := StateTryPrimary

	for state != StateDone {
		if state != StateUseSyntheticFallback && ctx.Err() != nil {
			sel.Attempts = append(sel.Attempts, Attempt{
				State:    state,
				Provider: providerName(o.providerFor(state)),
				Outcome:  OutcomeSkipped,
				Error:    ctx.Err().Error(),
			})
			o.logger.Warn().
				Str("state", state.String()).
				Err(ctx.Err()).
				Msg("deadline reached, short-circuiting to synthetic fallback")
			state = StateUseSyntheticFallback
			continue
		}

		switch state {
		case StateTryPrimary:
			state = o.tryPrimary(ctx, coords, &sel)
		case StateTrySecondary:
			state = o.trySecondary(ctx, coords, &sel)
		case StateUseSyntheticFallback:
			state = o.useSynthetic(ctx, coords, &sel)
		default:
			state = StateUseSyntheticFallback
		}
	}

	sel.Latency = time.Since(start)

	span.SetAttributes(
		attribute.String("environment.source", string(sel.Source)),
		attribute.String("environment.provider", sel.Provider),
		attribute.Int("environment.attempts", len(sel.Attempts)),
	)
	if o.recorder != nil {
		o.recorder.RecordSelection(ctx, string(sel.Source), sel.Latency)
	}

	return sel, nil
}

func (o *Orchestrator) tryPrimary(ctx context.Context, coords Coordinates, sel *Selection) State {
	reading, att, err := o.attempt(ctx, StateTryPrimary, o.primary, coords)
	if err == nil {
		if verr := Validate(reading); verr != nil {
			att.Outcome = OutcomeRejected
			att.Error = verr.Error()
			err = verr
		}
	}
	o.record(ctx, sel, att)

	if err != nil {
		o.logger.Warn().
			Str("provider", att.Provider).
			Str("outcome", string(att.Outcome)).
			Err(err).
			Msg("primary source unusable, trying secondary")
		return StateTrySecondary
	}

	o.accept(sel, reading, SourcePrimary, att.Provider)
	return StateDone
}

func (o *Orchestrator) trySecondary(ctx context.Context, coords Coordinates, sel *Selection) State {
	reading, att, err := o.attempt(ctx, StateTrySecondary, o.secondary, coords)
	if err == nil {
		if verr := Validate(reading); verr != nil {
			att.Outcome = OutcomeAcceptedWithAnomaly
			att.Error = verr.Error()
			o.logger.Warn().
				Str("provider", att.Provider).
				Err(verr).
				Msg("accepting degraded secondary reading despite anomaly")
		}
	}
	o.record(ctx, sel, att)

	if err != nil {
		o.logger.Warn().
			Str("provider", att.Provider).
			Str("outcome", string(att.Outcome)).
			Err(err).
			Msg("secondary source unusable, using synthetic fallback")
		return StateUseSyntheticFallback
	}

	o.accept(sel, reading, SourceSecondary, att.Provider)
	return StateDone
}

func (o *Orchestrator) useSynthetic(ctx context.Context, coords Coordinates, sel *Selection) State {
	// The fallback never touches the network, so a cancelled ctx is irrelevant here.
	reading, att, err := o.attempt(context.WithoutCancel(ctx), StateUseSyntheticFallback, o.fallback, coords)
	if err == nil {
		if verr := Validate(reading); verr != nil {
			att.Outcome = OutcomeRejected
			att.Error = verr.Error()
			err = verr
		}
	}
	o.record(ctx, sel, att)

	if err != nil {
		// A broken custom fallback is a programming error; the built-in one cannot fail.
		o.logger.Error().
			Str("provider", att.Provider).
			Err(err).
			Msg("synthetic fallback failed, using built-in climatology")
		reading, _ = o.builtin.CurrentConditions(ctx, coords)
		att = Attempt{State: StateUseSyntheticFallback, Provider: o.builtin.Name(), Outcome: OutcomeAccepted}
		o.record(ctx, sel, att)
	}

	o.logger.Error().
		Float64("lat", coords.Lat).
		Float64("lon", coords.Lon).
		Str("provider", att.Provider).
		Msg("all live sources failed, serving synthetic reading")

	o.accept(sel, reading, SourceSynthetic, att.Provider)
	sel.Synthetic = true
	return StateDone
}

// attempt invokes one provider, converting panics into errors.
func (o *Orchestrator) attempt(ctx context.Context, state State, p Provider, coords Coordinates) (reading Reading, att Attempt, err error) {
	att = Attempt{State: state, Provider: providerName(p)}
	if p == nil {
		att.Outcome = OutcomeSkipped
		att.Error = ErrProviderNotConfigured.Error()
		return Reading{}, att, ErrProviderNotConfigured
	}

	ctx, span := o.tracer.Start(ctx, "environment.attempt",
		trace.WithAttributes(
			attribute.String("environment.provider", att.Provider),
			attribute.String("environment.state", state.String()),
		),
	)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			reading = Reading{}
			err = fmt.Errorf("%w: %v", ErrProviderPanic, r)
		}
		att.Duration = time.Since(start)
		if err != nil {
			att.Outcome = OutcomeFailed
			att.Error = err.Error()
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			att.Outcome = OutcomeAccepted
		}
		span.End()
	}()

	reading, err = p.CurrentConditions(ctx, coords)
	return reading, att, err
}

func (o *Orchestrator) record(ctx context.Context, sel *Selection, att Attempt) {
	sel.Attempts = append(sel.Attempts, att)
	if o.recorder != nil {
		o.recorder.RecordAttempt(ctx, att.Provider, string(att.Outcome), att.Duration)
	}
}

func (o *Orchestrator) accept(sel *Selection, reading Reading, source Source, provider string) {
	sel.Reading = reading
	sel.Source = source
	sel.Provider = provider
}

func (o *Orchestrator) providerFor(state State) Provider {
	switch state {
	case StateTryPrimary:
		return o.primary
	case StateTrySecondary:
		return o.secondary
	default:
		return o.fallback
	}
}

func providerName(p Provider) string {
	if p == nil {
		return ""
	}
	return p.Name()
}
