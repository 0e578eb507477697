/*-------------------------------------------------------------------------
 *
 * broker.go
 *    Plan notification broker
 *
 * Fans plan lifecycle events out to the configured backends (websocket
 * hub, NATS) and to local subscribers. Delivery is best effort: failures
 * are logged and counted, never returned to the engine.
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronBoard/internal/events/broker.go
 *
 *-------------------------------------------------------------------------
 */

package events

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/neurondb/NeuronBoard/internal/metrics"
)

/* EventType names a notification */
type EventType string

const (
	EventTypePlanCreated     EventType = "plan.created"
	EventTypePlanTransition  EventType = "plan.transition"
	EventTypePlanCheckpoint  EventType = "plan.checkpoint"
	EventTypePlanCompleted   EventType = "plan.completed"
	EventTypePlanFailed      EventType = "plan.failed"
	EventTypePlanLog         EventType = "plan.log"
	EventTypeToolCall        EventType = "tool.call"
	EventTypeToolServerState EventType = "toolserver.status"
)

/* Event is one notification */
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Source    string                 `json:"source"`
	ProjectID string                 `json:"project_id"`
	PlanID    string                 `json:"plan_id,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

/* Sink receives notifications; implementations must not block for long */
type Sink interface {
	Notify(ctx context.Context, event Event)
}

/* NopSink drops every event */
type NopSink struct{}

/* Notify implements Sink */
func (NopSink) Notify(ctx context.Context, event Event) {}

/* EventBackend delivers events to one transport */
type EventBackend interface {
	Name() string
	Publish(ctx context.Context, topic string, event Event) error
	Close() error
}

/* EventSubscriber is a local callback for events */
type EventSubscriber func(ctx context.Context, event Event) error

/* Broker fans events out to backends and local subscribers */
type Broker struct {
	prefix      string
	mu          sync.RWMutex
	backends    []EventBackend
	subscribers map[EventType][]EventSubscriber
}

/* NewBroker creates a broker; prefix roots every topic */
func NewBroker(prefix string) *Broker {
	if prefix == "" {
		prefix = "neuronboard"
	}
	return &Broker{
		prefix:      prefix,
		subscribers: make(map[EventType][]EventSubscriber),
	}
}

/* AddBackend registers a backend */
func (b *Broker) AddBackend(backend EventBackend) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.backends = append(b.backends, backend)
}

/* Subscribe registers a local subscriber for one event type */
func (b *Broker) Subscribe(eventType EventType, subscriber EventSubscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], subscriber)
}

/* Topic returns the topic an event is published on */
func (b *Broker) Topic(event Event) string {
	return Topic(b.prefix, event.ProjectID, event.Type)
}

/* Topic builds <prefix>.<project>.<event type> with the project made subject safe */
func Topic(prefix, projectID string, eventType EventType) string {
	project := strings.NewReplacer(".", "_", " ", "_", "*", "_", ">", "_").Replace(projectID)
	if project == "" {
		project = "_"
	}
	return prefix + "." + project + "." + string(eventType)
}

/* Notify implements Sink */
func (b *Broker) Notify(ctx context.Context, event Event) {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.Source == "" {
		event.Source = "workflow"
	}

	b.mu.RLock()
	backends := b.backends
	subscribers := b.subscribers[event.Type]
	b.mu.RUnlock()

	topic := b.Topic(event)
	for _, backend := range backends {
		if err := backend.Publish(ctx, topic, event); err != nil {
			metrics.RecordEventPublished(backend.Name(), "error")
			metrics.WarnWithContext(ctx, "Failed to publish event", map[string]interface{}{
				"backend":    backend.Name(),
				"event_type": event.Type,
				"error":      err.Error(),
			})
			continue
		}
		metrics.RecordEventPublished(backend.Name(), "success")
	}

	for _, subscriber := range subscribers {
		if err := subscriber(ctx, event); err != nil {
			metrics.WarnWithContext(ctx, "Subscriber error", map[string]interface{}{
				"event_type": event.Type,
				"error":      err.Error(),
			})
		}
	}
}

/* Close closes every backend */
func (b *Broker) Close() {
	b.mu.Lock()
	backends := b.backends
	b.backends = nil
	b.mu.Unlock()

	for _, backend := range backends {
		if err := backend.Close(); err != nil {
			metrics.WarnWithContext(context.Background(), "Event backend close failed", map[string]interface{}{
				"backend": backend.Name(),
				"error":   err.Error(),
			})
		}
	}
}
