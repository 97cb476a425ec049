package queue

import (
	"fmt"

	"go.uber.org/zap"
)

// Subjects published by the core.
const (
	SubjectChannelStateChanged = "channel.state_changed"
	SubjectSessionExpired      = "session.expired"
	SubjectReportCompleted     = "report.completed"
)

// MessageQueue defines the interface for a message queue adapter
type MessageQueue interface {
	Publish(subject string, data []byte) error
	Subscribe(subject string, handler func(data []byte) error) error
	Close() error
}

// New selects a queue driver by name. "nats" is the default.
func New(driver, url string, log *zap.Logger) (MessageQueue, error) {
	switch driver {
	case "", "nats":
		return NewNATSQueue(url, log)
	case "rabbitmq":
		return NewRabbitMQQueue(url, log)
	default:
		return nil, fmt.Errorf("unknown queue driver %q", driver)
	}
}
