package tests

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"taximeter/internal/domain"
	"taximeter/internal/meter"
	"taximeter/internal/redis"
	"taximeter/internal/service"
)

// ──────────────────────────────────────────────
// FAKE CLOCK
// ──────────────────────────────────────────────

// FakeClock is a manually advanced clock safe for use from handlers.
type FakeClock struct {
	mu sync.Mutex
	t  time.Time
}

// NewFakeClock creates a clock frozen at a fixed instant.
func NewFakeClock() *FakeClock {
	return &FakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

// Advance moves the clock forward (or backward for a negative d).
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// ──────────────────────────────────────────────
// MOCK IDEMPOTENCY STORE
// ──────────────────────────────────────────────

// MockIdempotencyStore is an in-memory implementation of IdempotencyStoreInterface.
type MockIdempotencyStore struct {
	mu      sync.RWMutex
	entries map[string]*redis.CachedResponse

	// Counters for verification
	GetCallCount int32
	SetCallCount int32

	// Error injection
	GetError error
	SetError error
}

// NewMockIdempotencyStore creates a new mock idempotency store.
func NewMockIdempotencyStore() *MockIdempotencyStore {
	return &MockIdempotencyStore{
		entries: make(map[string]*redis.CachedResponse),
	}
}

func (m *MockIdempotencyStore) Get(ctx context.Context, key string) (*redis.CachedResponse, error) {
	atomic.AddInt32(&m.GetCallCount, 1)
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	cached, ok := m.entries[key]
	if !ok {
		return nil, nil
	}
	copy := *cached
	return &copy, nil
}

func (m *MockIdempotencyStore) Set(ctx context.Context, key string, response *redis.CachedResponse) error {
	atomic.AddInt32(&m.SetCallCount, 1)
	if m.SetError != nil {
		return m.SetError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = response
	return nil
}

// Keys returns the stored keys.
func (m *MockIdempotencyStore) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	return keys
}

var _ redis.IdempotencyStoreInterface = (*MockIdempotencyStore)(nil)

// ──────────────────────────────────────────────
// RECORDING PUBLISHER
// ──────────────────────────────────────────────

// ErrPublishFailed is returned by a RecordingPublisher with Fail set.
var ErrPublishFailed = errors.New("publish failed")

// RecordingPublisher keeps every notification it receives.
type RecordingPublisher struct {
	mu            sync.Mutex
	notifications []service.Notification

	Fail bool
}

func (p *RecordingPublisher) Publish(ctx context.Context, n service.Notification) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notifications = append(p.notifications, n)
	if p.Fail {
		return ErrPublishFailed
	}
	return nil
}

// Notifications returns a copy of the received notifications.
func (p *RecordingPublisher) Notifications() []service.Notification {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]service.Notification, len(p.notifications))
	copy(out, p.notifications)
	return out
}

// Types returns the received notification types in order.
func (p *RecordingPublisher) Types() []service.NotificationType {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]service.NotificationType, 0, len(p.notifications))
	for _, n := range p.notifications {
		types = append(types, n.Type)
	}
	return types
}

// ──────────────────────────────────────────────
// RECORDING EVENT SINK
// ──────────────────────────────────────────────

// PublishedEvent is one payload handed to a RecordingSink.
type PublishedEvent struct {
	RoutingKey  string
	Body        []byte
	ContentType string
}

// RecordingSink is an in-memory service.EventSink.
type RecordingSink struct {
	mu     sync.Mutex
	events []PublishedEvent
}

func (s *RecordingSink) PublishEvent(ctx context.Context, routingKey string, body []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, PublishedEvent{RoutingKey: routingKey, Body: body, ContentType: contentType})
	return nil
}

// Events returns a copy of the published events.
func (s *RecordingSink) Events() []PublishedEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]PublishedEvent, len(s.events))
	copy(out, s.events)
	return out
}

// ──────────────────────────────────────────────
// SERVICE FIXTURE
// ──────────────────────────────────────────────

// MeterFixture bundles a MeterService wired to a fake clock and a recording publisher.
type MeterFixture struct {
	Service   *service.MeterService
	Meter     *meter.TripMeter
	Clock     *FakeClock
	Publisher *RecordingPublisher
}

// NewMeterFixture builds a MeterService with default rates and "€" as currency.
func NewMeterFixture() (*MeterFixture, error) {
	clock := NewFakeClock()
	tripMeter, err := meter.New(domain.DefaultRates(), meter.WithClock(clock.Now))
	if err != nil {
		return nil, err
	}

	publisher := &RecordingPublisher{}
	notificationService := service.NewNotificationService(publisher)
	receiptService := service.NewReceiptService(tripMeter.Fares(), notificationService, "€")

	return &MeterFixture{
		Service:   service.NewMeterService(tripMeter, receiptService, notificationService, "€"),
		Meter:     tripMeter,
		Clock:     clock,
		Publisher: publisher,
	}, nil
}
