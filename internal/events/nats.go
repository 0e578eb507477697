/*-------------------------------------------------------------------------
 *
 * nats.go
 *    NATS event backend
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronBoard/internal/events/nats.go
 *
 *-------------------------------------------------------------------------
 */

package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/neurondb/NeuronBoard/internal/metrics"
)

/* NATSBackend publishes events as JSON on NATS subjects */
type NATSBackend struct {
	conn *nats.Conn

	mu   sync.Mutex
	subs []*nats.Subscription
}

/* NewNATSBackend connects to a NATS server */
func NewNATSBackend(url, clientName string) (*NATSBackend, error) {
	conn, err := nats.Connect(url,
		nats.Name(clientName),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				metrics.WarnWithContext(context.Background(), "NATS disconnected", map[string]interface{}{
					"error": err.Error(),
				})
			}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect failed: url='%s', error=%w", url, err)
	}
	return &NATSBackend{conn: conn}, nil
}

/* Name implements EventBackend */
func (n *NATSBackend) Name() string { return "nats" }

/* Publish implements EventBackend */
func (n *NATSBackend) Publish(ctx context.Context, topic string, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("nats publish failed: json_marshal_error=true, error=%w", err)
	}
	if err := n.conn.Publish(topic, payload); err != nil {
		return fmt.Errorf("nats publish failed: subject='%s', error=%w", topic, err)
	}
	return nil
}

/* Subscribe delivers events matching a subject pattern to handler */
func (n *NATSBackend) Subscribe(ctx context.Context, subject string, handler EventSubscriber) error {
	sub, err := n.conn.Subscribe(subject, func(msg *nats.Msg) {
		var event Event
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			metrics.WarnWithContext(ctx, "Failed to parse event from NATS", map[string]interface{}{
				"subject": msg.Subject,
				"error":   err.Error(),
			})
			return
		}
		if err := handler(ctx, event); err != nil {
			metrics.WarnWithContext(ctx, "Event handler error", map[string]interface{}{
				"subject":    msg.Subject,
				"event_type": event.Type,
				"error":      err.Error(),
			})
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe failed: subject='%s', error=%w", subject, err)
	}
	n.mu.Lock()
	n.subs = append(n.subs, sub)
	n.mu.Unlock()
	return nil
}

/* Close drains subscriptions and the connection */
func (n *NATSBackend) Close() error {
	n.mu.Lock()
	n.subs = nil
	n.mu.Unlock()
	return n.conn.Drain()
}
