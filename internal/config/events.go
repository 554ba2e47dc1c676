package config

import (
	"log/slog"
	"strings"

	"github.com/SAP-F-2025/exam-engine/internal/events"
)

// EventConfig selects where exam events go.
type EventConfig struct {
	Enabled      bool
	Publisher    string // kafka or mock
	KafkaBrokers string
	Topic        string
}

func (c *EventConfig) Brokers() []string {
	var out []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// CreateEventPublisher builds the configured publisher. Disabled or unknown
// settings fall back to the in-memory publisher.
func (c *EventConfig) CreateEventPublisher(logger *slog.Logger) (events.EventPublisher, error) {
	if !c.Enabled {
		logger.Info("Event publishing disabled, using in-memory publisher")
		return events.NewMockEventPublisher(logger), nil
	}

	switch c.Publisher {
	case "kafka":
		logger.Info("Creating Kafka event publisher", "brokers", c.KafkaBrokers, "topic", c.Topic)
		return events.NewKafkaEventPublisher(events.PublisherConfig{
			KafkaBrokers: c.Brokers(),
			TopicName:    c.Topic,
			Logger:       logger,
		})
	case "mock":
		return events.NewMockEventPublisher(logger), nil
	default:
		logger.Warn("Unknown event publisher, falling back to in-memory", "publisher", c.Publisher)
		return events.NewMockEventPublisher(logger), nil
	}
}
