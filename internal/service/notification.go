package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"taximeter/internal/domain"
)

// NotificationType represents the type of notification.
type NotificationType string

const (
	NotificationTripStarted  NotificationType = "TRIP_STARTED"
	NotificationTripMoving   NotificationType = "TRIP_MOVING"
	NotificationTripStopped  NotificationType = "TRIP_STOPPED"
	NotificationTripFinished NotificationType = "TRIP_FINISHED"
	NotificationReceiptReady NotificationType = "RECEIPT_READY"
	NotificationNoActiveTrip NotificationType = "NO_ACTIVE_TRIP"
)

// Notification represents a meter event to be delivered.
type Notification struct {
	ID        string                 `json:"id"`
	Type      NotificationType       `json:"type"`
	TripID    string                 `json:"trip_id,omitempty"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Warning   bool                   `json:"warning,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// Publisher delivers notifications somewhere.
type Publisher interface {
	Publish(ctx context.Context, notification Notification) error
}

// EventSink is a message broker that accepts raw payloads by routing key.
type EventSink interface {
	PublishEvent(ctx context.Context, routingKey string, body []byte, contentType string) error
}

// LogPublisher writes notifications to the structured log.
type LogPublisher struct{}

// Publish logs the notification. Warnings are logged at warn level.
func (LogPublisher) Publish(ctx context.Context, n Notification) error {
	entry := log.WithFields(log.Fields{
		"notification_id": n.ID,
		"type":            n.Type,
		"trip_id":         n.TripID,
	})
	if n.Warning {
		entry.Warn(n.Message)
		return nil
	}
	entry.Info(n.Message)
	return nil
}

// BrokerPublisher encodes notifications as JSON and hands them to an EventSink
// under the routing key "meter.<type>".
type BrokerPublisher struct {
	sink EventSink
}

// NewBrokerPublisher creates a BrokerPublisher.
func NewBrokerPublisher(sink EventSink) *BrokerPublisher {
	return &BrokerPublisher{sink: sink}
}

// Publish encodes and forwards the notification.
func (p *BrokerPublisher) Publish(ctx context.Context, n Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification %s: %w", n.ID, err)
	}
	return p.sink.PublishEvent(ctx, RoutingKey(n.Type), body, "application/json")
}

// RoutingKey returns the broker routing key for a notification type.
func RoutingKey(t NotificationType) string {
	return "meter." + strings.ToLower(string(t))
}

// NotificationService handles notification delivery.
type NotificationService struct {
	publishers []Publisher
	now        func() time.Time
}

// NewNotificationService creates a new NotificationService. With no
// publishers it falls back to the log.
func NewNotificationService(publishers ...Publisher) *NotificationService {
	if len(publishers) == 0 {
		publishers = []Publisher{LogPublisher{}}
	}
	return &NotificationService{publishers: publishers, now: time.Now}
}

// NotifyTripStarted announces a new trip.
func (s *NotificationService) NotifyTripStarted(ctx context.Context, trip *domain.Trip) error {
	return s.send(ctx, Notification{
		Type:    NotificationTripStarted,
		TripID:  trip.ID,
		Title:   "Trip Started",
		Message: "Trip started, meter running in stopped state",
		Data: map[string]interface{}{
			"started_at": trip.StartedAt,
		},
	})
}

// NotifyStateChanged announces a switch between stopped and moving.
func (s *NotificationService) NotifyStateChanged(ctx context.Context, tripID string, state domain.MeterState) error {
	n := Notification{
		TripID: tripID,
		Data: map[string]interface{}{
			"state": state,
		},
	}
	if state == domain.MeterStateMoving {
		n.Type = NotificationTripMoving
		n.Title = "Moving"
		n.Message = "Meter switched to moving rate"
	} else {
		n.Type = NotificationTripStopped
		n.Title = "Stopped"
		n.Message = "Meter switched to stopped rate"
	}
	return s.send(ctx, n)
}

// NotifyTripFinished announces the final fare.
func (s *NotificationService) NotifyTripFinished(ctx context.Context, trip *domain.Trip, message string) error {
	return s.send(ctx, Notification{
		Type:    NotificationTripFinished,
		TripID:  trip.ID,
		Title:   "Trip Finished",
		Message: message,
		Data: map[string]interface{}{
			"fare":     trip.Fare,
			"ended_at": trip.EndedAt,
		},
	})
}

// NotifyReceiptReady announces that the receipt of the last trip is available.
func (s *NotificationService) NotifyReceiptReady(ctx context.Context, receipt *domain.Receipt) error {
	return s.send(ctx, Notification{
		Type:    NotificationReceiptReady,
		TripID:  receipt.TripID,
		Title:   "Receipt Ready",
		Message: fmt.Sprintf("Receipt for %s%.2f is ready", receipt.CurrencySymbol, receipt.TotalFare),
		Data: map[string]interface{}{
			"receipt_id": receipt.ID,
			"total_fare": receipt.TotalFare,
		},
	})
}

// NotifyNoActiveTrip reports a finish request without a running trip.
func (s *NotificationService) NotifyNoActiveTrip(ctx context.Context) error {
	return s.send(ctx, Notification{
		Type:    NotificationNoActiveTrip,
		Title:   "No Active Trip",
		Message: NoActiveTripMessage,
		Warning: true,
	})
}

// send stamps the notification and hands it to every publisher. Delivery
// failures are logged and do not propagate past the first error returned.
func (s *NotificationService) send(ctx context.Context, n Notification) error {
	n.ID = uuid.New().String()
	n.CreatedAt = s.now()

	var firstErr error
	for _, p := range s.publishers {
		if err := p.Publish(ctx, n); err != nil {
			log.WithFields(log.Fields{
				"notification_id": n.ID,
				"type":            n.Type,
			}).WithError(err).Error("failed to publish notification")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
