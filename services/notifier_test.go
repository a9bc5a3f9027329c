package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/streadway/amqp"
)

type fakeAMQPChannel struct {
	publishFn func(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

func (f *fakeAMQPChannel) Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	return f.publishFn(exchange, key, mandatory, immediate, msg)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAMQPNotifierPublish(t *testing.T) {
	var (
		gotExchange, gotKey string
		gotMsg              amqp.Publishing
	)
	ch := &fakeAMQPChannel{publishFn: func(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
		gotExchange, gotKey, gotMsg = exchange, key, msg
		return nil
	}}
	n := newAMQPNotifier(ch, "darts.events", 4, discardLogger())

	event := Event{Name: EventMatchFinished, TournamentID: "t-1", MatchID: "m-1", OccurredAt: testNow}
	n.Publish(context.Background(), event)
	if err := n.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if gotExchange != "darts.events" || gotKey != EventMatchFinished {
		t.Errorf("published to %s/%s, want darts.events/%s", gotExchange, gotKey, EventMatchFinished)
	}
	if gotMsg.DeliveryMode != amqp.Persistent || gotMsg.ContentType != "application/json" || gotMsg.MessageId == "" {
		t.Errorf("message = %+v, want persistent json with id", gotMsg)
	}
	if !gotMsg.Timestamp.Equal(testNow) {
		t.Errorf("timestamp = %v, want %v", gotMsg.Timestamp, testNow)
	}
	var decoded Event
	if err := json.Unmarshal(gotMsg.Body, &decoded); err != nil {
		t.Fatalf("body is not json: %v", err)
	}
	if decoded.TournamentID != "t-1" || decoded.MatchID != "m-1" {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestAMQPNotifierSwallowsPublishErrors(t *testing.T) {
	calls := 0
	ch := &fakeAMQPChannel{publishFn: func(string, string, bool, bool, amqp.Publishing) error {
		calls++
		return errors.New("channel closed")
	}}
	n := newAMQPNotifier(ch, "darts.events", 4, discardLogger())

	n.Publish(context.Background(), Event{Name: EventTournamentFinished, OccurredAt: time.Now()})
	n.Publish(context.Background(), Event{Name: EventPointsApplied, OccurredAt: time.Now()})
	if err := n.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if calls != 2 {
		t.Errorf("publish calls = %d, want 2", calls)
	}
}

func TestAMQPNotifierDoesNotWaitForBroker(t *testing.T) {
	release := make(chan struct{})
	var keys []string
	ch := &fakeAMQPChannel{publishFn: func(_, key string, _, _ bool, _ amqp.Publishing) error {
		<-release
		keys = append(keys, key)
		return nil
	}}
	n := newAMQPNotifier(ch, "darts.events", 1, discardLogger())

	published := make(chan struct{})
	go func() {
		defer close(published)
		for _, name := range []string{EventLegFinished, EventMatchFinished, EventRoundGenerated, EventTournamentFinished} {
			n.Publish(context.Background(), Event{Name: name})
		}
	}()
	select {
	case <-published:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a stalled broker")
	}

	close(release)
	if err := n.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if len(keys) < 1 || len(keys) > 2 || keys[0] != EventLegFinished {
		t.Errorf("published %v, want the first event and at most one queued behind it", keys)
	}

	n.Publish(context.Background(), Event{Name: EventLegUndone})
	if len(keys) > 2 {
		t.Errorf("event published after Close: %v", keys)
	}
}

func TestMultiNotifierFansOut(t *testing.T) {
	a, b := &recordingNotifier{}, &recordingNotifier{}
	MultiNotifier{a, NopNotifier{}, b}.Publish(context.Background(), Event{Name: EventLegFinished})
	if len(a.names()) != 1 || len(b.names()) != 1 {
		t.Errorf("fan out reached %d and %d notifiers, want 1 and 1", len(a.names()), len(b.names()))
	}
}
