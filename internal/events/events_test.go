/*-------------------------------------------------------------------------
 *
 * events_test.go
 *    Tests for the notification broker and websocket hub
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronBoard/internal/events/events_test.go
 *
 *-------------------------------------------------------------------------
 */

package events

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingBackend struct {
	topics []string
	fail   bool
}

func (r *recordingBackend) Name() string { return "recording" }

func (r *recordingBackend) Publish(ctx context.Context, topic string, event Event) error {
	r.topics = append(r.topics, topic)
	if r.fail {
		return errors.New("unreachable")
	}
	return nil
}

func (r *recordingBackend) Close() error { return nil }

func TestBrokerIsBestEffort(t *testing.T) {
	b := NewBroker("nb")
	failing := &recordingBackend{fail: true}
	ok := &recordingBackend{}
	b.AddBackend(failing)
	b.AddBackend(ok)

	var seen []Event
	b.Subscribe(EventTypePlanFailed, func(ctx context.Context, e Event) error {
		seen = append(seen, e)
		return errors.New("subscriber broke")
	})

	b.Notify(context.Background(), Event{Type: EventTypePlanFailed, ProjectID: "acme.web", PlanID: "p1"})

	assert.Equal(t, []string{"nb.acme_web.plan.failed"}, failing.topics)
	assert.Equal(t, []string{"nb.acme_web.plan.failed"}, ok.topics)
	require.Len(t, seen, 1)
	assert.NotEmpty(t, seen[0].ID)
	assert.False(t, seen[0].Timestamp.IsZero())
}

func TestHubDeliversToProjectSubscribers(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?project_id=p1"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	b := NewBroker("")
	b.AddBackend(hub)
	b.Notify(context.Background(), Event{Type: EventTypePlanCompleted, ProjectID: "other"})
	b.Notify(context.Background(), Event{Type: EventTypePlanCompleted, ProjectID: "p1", PlanID: "plan-7"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got Event
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, "plan-7", got.PlanID)
	assert.Equal(t, EventTypePlanCompleted, got.Type)
}

func TestHubRequiresProject(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()

	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 400, resp.StatusCode)
}
