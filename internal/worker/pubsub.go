package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
)

// PubSubPublisher publishes site status events to a Pub/Sub topic.
type PubSubPublisher struct {
	client    *pubsub.Client
	publisher *pubsub.Publisher
	topic     string
	logger    zerolog.Logger
}

// PubSubPublisherConfig holds configuration for the Pub/Sub publisher.
type PubSubPublisherConfig struct {
	ProjectID string
	Topic     string
	Logger    zerolog.Logger
}

// NewPubSubPublisher creates a publisher for the configured topic.
func NewPubSubPublisher(ctx context.Context, cfg PubSubPublisherConfig) (*PubSubPublisher, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	return &PubSubPublisher{
		client:    client,
		publisher: client.Publisher(cfg.Topic),
		topic:     cfg.Topic,
		logger:    cfg.Logger,
	}, nil
}

// Publish sends the event and waits for the server to acknowledge it.
func (p *PubSubPublisher) Publish(ctx context.Context, event SiteStatusEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding site status: %w", err)
	}

	res := p.publisher.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"site":  event.Site,
			"level": event.Level,
		},
	})

	id, err := res.Get(ctx)
	if err != nil {
		return fmt.Errorf("publishing to %s: %w", p.topic, err)
	}

	p.logger.Debug().
		Str("message_id", id).
		Str("event_id", event.ID).
		Str("site", event.Site).
		Msg("site status published")
	return nil
}

// Close flushes pending messages and closes the client.
func (p *PubSubPublisher) Close() error {
	p.publisher.Stop()
	return p.client.Close()
}

// Trigger job types.
const (
	JobTypeSiteSweep   = "site_sweep"
	JobTypeHealthCheck = "health_check"
)

var (
	// ErrUnknownJobType is returned for trigger messages with an unrecognized job type.
	ErrUnknownJobType = errors.New("unknown job type")
	// ErrMalformedTrigger is returned when a trigger message cannot be decoded.
	ErrMalformedTrigger = errors.New("malformed trigger message")
)

// TriggerMessage requests work outside the regular schedule.
type TriggerMessage struct {
	JobType string   `json:"job_type"`
	Sites   []string `json:"sites,omitempty"`
}

// HandleTrigger runs the job a trigger message asks for. A sweep fails only
// when every requested site failed.
func (m *Monitor) HandleTrigger(ctx context.Context, data []byte) error {
	var msg TriggerMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedTrigger, err)
	}

	switch msg.JobType {
	case JobTypeSiteSweep:
		result := m.SweepSites(ctx, msg.Sites)
		if result.TotalSites > 0 && result.Successful == 0 {
			return fmt.Errorf("site sweep failed: %d/%d sites", result.Failed, result.TotalSites)
		}
		return nil

	case JobTypeHealthCheck:
		if len(m.sites) == 0 {
			return nil
		}
		result := m.sweep(ctx, m.sites[:1])
		if result.Failed > 0 {
			return fmt.Errorf("health check failed: %s", result.Errors[0].Error)
		}
		return nil

	default:
		return fmt.Errorf("%w: %q", ErrUnknownJobType, msg.JobType)
	}
}

// TriggerSubscriber feeds Pub/Sub trigger messages to a Monitor.
type TriggerSubscriber struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	monitor          *Monitor
	logger           zerolog.Logger
}

// TriggerSubscriberConfig holds configuration for the trigger subscriber.
type TriggerSubscriberConfig struct {
	ProjectID        string
	SubscriptionName string
	Monitor          *Monitor
	Logger           zerolog.Logger
}

// NewTriggerSubscriber creates a subscriber for on-demand sweep requests.
func NewTriggerSubscriber(ctx context.Context, cfg TriggerSubscriberConfig) (*TriggerSubscriber, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)

	// A sweep is heavy; take one request at a time.
	subscriber.ReceiveSettings.MaxOutstandingMessages = 1
	subscriber.ReceiveSettings.MaxExtension = 10 * time.Minute

	return &TriggerSubscriber{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		monitor:          cfg.Monitor,
		logger:           cfg.Logger,
	}, nil
}

// Start blocks receiving messages until ctx is cancelled.
func (s *TriggerSubscriber) Start(ctx context.Context) error {
	s.logger.Info().
		Str("subscription", s.subscriptionName).
		Msg("starting trigger subscriber")

	return s.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		s.handleMessage(ctx, msg)
	})
}

// Close closes the Pub/Sub client.
func (s *TriggerSubscriber) Close() error {
	return s.client.Close()
}

func (s *TriggerSubscriber) handleMessage(ctx context.Context, msg *pubsub.Message) {
	startTime := time.Now()

	logger := s.logger.With().
		Str("message_id", msg.ID).
		Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
		Logger()

	err := s.monitor.HandleTrigger(ctx, msg.Data)
	switch {
	case err == nil:
		logger.Info().Dur("duration", time.Since(startTime)).Msg("trigger handled")
		msg.Ack()
	case errors.Is(err, ErrUnknownJobType), errors.Is(err, ErrMalformedTrigger):
		// Redelivery cannot fix these.
		logger.Warn().Err(err).Msg("dropping trigger message")
		msg.Ack()
	default:
		logger.Error().Err(err).Msg("trigger failed")
		msg.Nack()
	}
}
