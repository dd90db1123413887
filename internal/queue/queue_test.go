package queue

import (
	"encoding/json"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

func TestEnsureEventsTopologyRequiresClient(t *testing.T) {
	if err := EnsureEventsTopology(nil); err == nil {
		t.Fatalf("expected error for nil client")
	}
}

func TestNewJSONPublishing(t *testing.T) {
	now := time.Date(2026, 3, 19, 6, 0, 0, 0, time.UTC)
	msg, err := newJSONPublishing(map[string]string{"type": StandingsRefreshRequestedRK, "source": "cron"}, now)
	if err != nil {
		t.Fatalf("build publishing: %v", err)
	}
	if msg.ContentType != "application/json" {
		t.Fatalf("unexpected content type %q", msg.ContentType)
	}
	if msg.DeliveryMode != amqp.Persistent {
		t.Fatalf("expected persistent delivery, got %d", msg.DeliveryMode)
	}
	if !msg.Timestamp.Equal(now) {
		t.Fatalf("unexpected timestamp %s", msg.Timestamp)
	}

	var body map[string]string
	if err := json.Unmarshal(msg.Body, &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["type"] != "standings.refresh.requested" || body["source"] != "cron" {
		t.Fatalf("unexpected body %s", msg.Body)
	}
}

func TestNewJSONPublishingRejectsUnencodablePayload(t *testing.T) {
	if _, err := newJSONPublishing(make(chan int), time.Now()); err == nil {
		t.Fatalf("expected encode error")
	}
}
