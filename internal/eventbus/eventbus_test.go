package eventbus_test

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/sigwatch/internal/eventbus"
	"github.com/couchcryptid/sigwatch/internal/model"
	"github.com/couchcryptid/sigwatch/internal/observability"
)

func newTestBus() *eventbus.Bus {
	return eventbus.New(slog.New(slog.NewTextHandler(io.Discard, nil)), observability.NewMetricsForTesting())
}

func TestSubscribe_ReceivesPublishedEvent(t *testing.T) {
	b := newTestBus()
	sub := b.Subscribe("api")
	defer b.Unsubscribe(sub)

	b.Publish(model.Event{Type: model.EventIncidentCreated, Data: map[string]any{"incident_id": "i1"}})

	select {
	case evt := <-sub.Events():
		assert.Equal(t, model.EventIncidentCreated, evt.Type)
		assert.Equal(t, "i1", evt.Data["incident_id"])
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestPublish_FansOutToAllSubscribers(t *testing.T) {
	b := newTestBus()
	sub1 := b.Subscribe("sse-1")
	sub2 := b.Subscribe("sse-2")
	defer b.Unsubscribe(sub1)
	defer b.Unsubscribe(sub2)

	b.Publish(model.Event{Type: model.EventSourceHealth})

	for _, sub := range []*eventbus.Subscription{sub1, sub2} {
		select {
		case evt := <-sub.Events():
			assert.Equal(t, model.EventSourceHealth, evt.Type)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	}
}

func TestPublish_DropsOldestWhenQueueFull(t *testing.T) {
	b := newTestBus()
	sub := b.Subscribe("slow")
	defer b.Unsubscribe(sub)

	for i := 0; i < eventbus.QueueCapacity+10; i++ {
		b.Publish(model.Event{Type: model.EventIncidentUpdated, Data: map[string]any{"n": i}})
	}

	require.Len(t, sub.Events(), eventbus.QueueCapacity)
	evt := <-sub.Events()
	assert.Equal(t, 10, evt.Data["n"])
}

func TestUnsubscribe_ClosesChannel(t *testing.T) {
	b := newTestBus()
	sub := b.Subscribe("temp")
	b.Unsubscribe(sub)

	_, ok := <-sub.Events()
	assert.False(t, ok)
}
