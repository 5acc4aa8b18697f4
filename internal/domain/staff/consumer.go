package staff

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// Event actions published by the auth service.
const (
	actionCreate = "create"
	actionUpdate = "update"
	actionDelete = "delete"
)

// userEvent is the envelope the auth service publishes for user changes.
type userEvent struct {
	Action string `json:"action"`
	Source struct {
		Service string `json:"service"`
	} `json:"source"`
	Payload struct {
		Model string          `json:"model"`
		Data  json.RawMessage `json:"data"`
	} `json:"payload"`
}

// deletePayload is the data carried by delete events.
type deletePayload struct {
	ID uuid.UUID `json:"id"`
}

// ConsumerConfig configures the user events consumer.
type ConsumerConfig struct {
	Brokers string
	GroupID string
	Topic   string
}

// Consumer keeps the doctor mirror in sync with the auth service by reading
// user change events from Kafka.
type Consumer struct {
	reader *kafka.Reader
	svc    *Service
	logger zerolog.Logger
}

func NewConsumer(cfg ConsumerConfig, svc *Service, logger zerolog.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  splitBrokers(cfg.Brokers),
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return &Consumer{reader: reader, svc: svc, logger: logger}
}

func splitBrokers(brokers string) []string {
	parts := strings.Split(brokers, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Run consumes events until ctx is cancelled. Malformed or irrelevant
// messages are logged and skipped so one bad event cannot stall the mirror.
func (c *Consumer) Run(ctx context.Context) {
	defer c.reader.Close()

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error().Err(err).Msg("kafka read error")
			time.Sleep(1 * time.Second)
			continue
		}

		if err := c.handle(ctx, msg); err != nil {
			c.logger.Error().Err(err).
				Str("topic", msg.Topic).
				Int64("offset", msg.Offset).
				Msg("user event handling failed")
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) error {
	var evt userEvent
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		return fmt.Errorf("decode event: %w", err)
	}
	if evt.Payload.Model != "users" {
		return nil
	}

	switch evt.Action {
	case actionCreate, actionUpdate:
		var d Doctor
		if err := json.Unmarshal(evt.Payload.Data, &d); err != nil {
			return fmt.Errorf("decode user payload: %w", err)
		}
		if err := c.svc.Apply(ctx, &d); err != nil {
			return fmt.Errorf("apply user %s: %w", d.ID, err)
		}
		c.logger.Info().Str("doctor_id", d.ID.String()).Str("action", evt.Action).Msg("doctor mirror updated")
	case actionDelete:
		var p deletePayload
		if err := json.Unmarshal(evt.Payload.Data, &p); err != nil {
			return fmt.Errorf("decode delete payload: %w", err)
		}
		if err := c.svc.Remove(ctx, p.ID); err != nil {
			return fmt.Errorf("remove user %s: %w", p.ID, err)
		}
		c.logger.Info().Str("doctor_id", p.ID.String()).Msg("doctor mirror entry removed")
	default:
		c.logger.Warn().Str("action", evt.Action).Msg("unknown user event action")
	}
	return nil
}
