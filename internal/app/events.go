package app

import (
	"github.com/sirupsen/logrus"

	"taximeter/internal/config"
	"taximeter/internal/rabbitmq"
	"taximeter/internal/service"
)

// NewPublishers returns the notification publishers for cfg. The log
// publisher is always present. When a broker URL is set the events are also
// sent to RabbitMQ; a broker that cannot be reached is logged and skipped.
// The returned close function releases the broker connection.
func NewPublishers(cfg config.AMQPConfig) ([]service.Publisher, func()) {
	publishers := []service.Publisher{service.LogPublisher{}}
	if cfg.URL == "" {
		return publishers, func() {}
	}

	eventPublisher, err := rabbitmq.Dial(cfg.URL, cfg.Exchange)
	if err != nil {
		logrus.WithError(err).Warn("meter events will not be sent to the broker")
		return publishers, func() {}
	}
	logrus.Infof("Publishing meter events to exchange %s", cfg.Exchange)

	publishers = append(publishers, service.NewBrokerPublisher(eventPublisher))
	return publishers, func() {
		if err := eventPublisher.Close(); err != nil {
			logrus.WithError(err).Error("failed to close broker connection")
		}
	}
}
