package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/goleak"

	"github.com/deepesh-sr/Trustplay/internal/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestNoopPublisher_Publish(t *testing.T) {
	pub := &NoopPublisher{}
	if err := pub.Publish(context.Background(), TopicRoomCreated, RoomCreated{}); err != nil {
		t.Fatalf("NoopPublisher.Publish returned unexpected error: %v", err)
	}
	if err := pub.Close(); err != nil {
		t.Fatalf("NoopPublisher.Close returned unexpected error: %v", err)
	}
}

func TestPublishersImplementInterface(t *testing.T) {
	var _ Publisher = (*NoopPublisher)(nil)
	var _ Publisher = (*NATSPublisher)(nil)
	var _ Publisher = MultiPublisher(nil)
}

type recordingPublisher struct {
	topics []string
	err    error
	closed bool
}

func (r *recordingPublisher) Publish(_ context.Context, topic string, _ any) error {
	r.topics = append(r.topics, topic)
	return r.err
}

func (r *recordingPublisher) Close() error {
	r.closed = true
	return r.err
}

func TestMultiPublisher_TriesEveryPublisher(t *testing.T) {
	failing := &recordingPublisher{err: errors.New("down")}
	ok := &recordingPublisher{}
	multi := MultiPublisher{failing, ok}

	err := multi.Publish(context.Background(), TopicClaimVoted, ClaimVoted{})
	if err == nil || err.Error() != "down" {
		t.Fatalf("expected joined error, got %v", err)
	}
	if len(ok.topics) != 1 || ok.topics[0] != TopicClaimVoted {
		t.Errorf("second publisher got %v", ok.topics)
	}

	_ = multi.Close()
	if !failing.closed || !ok.closed {
		t.Error("Close should reach every publisher")
	}
}

func TestNATSPublisher_Publish(t *testing.T) {
	url := startTestNATS(t)

	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	defer pub.Close()

	nc, err := nats.Connect(url)
	if err != nil {
		t.Fatalf("connecting subscriber: %v", err)
	}
	defer nc.Close()

	ch := make(chan *nats.Msg, 1)
	sub, err := nc.ChanSubscribe(TopicClaimResolved, ch)
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}
	defer sub.Unsubscribe() //nolint:errcheck
	nc.Flush()

	event := ClaimResolved{Claim: &model.Claim{Address: "c1", Accepted: true, Payout: 1000}}
	if err := pub.Publish(context.Background(), TopicClaimResolved, event); err != nil {
		t.Fatalf("Publish error: %v", err)
	}
	pub.conn.Flush()

	select {
	case msg := <-ch:
		var got ClaimResolved
		if err := json.Unmarshal(msg.Data, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if got.Claim.Address != "c1" || got.Claim.Payout != 1000 {
			t.Errorf("got claim %+v", got.Claim)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for published message")
	}
}

func TestNATSPublisher_CancelledContext(t *testing.T) {
	url := startTestNATS(t)

	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	defer pub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := pub.Publish(ctx, TopicRoomJoined, RoomJoined{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestNATSPublisher_Close(t *testing.T) {
	url := startTestNATS(t)

	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	if err := pub.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	if err := pub.Close(); err != nil {
		t.Fatalf("second Close error: %v", err)
	}
	if err := pub.Publish(context.Background(), TopicRoomCreated, RoomCreated{}); err == nil {
		t.Error("expected error publishing after close")
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		topic string
		data  string
		check func(t *testing.T, v any)
	}{
		{
			topic: TopicClaimVoted,
			data:  `{"claim":{"address":"c1","votes_for":2},"vote":{"voter":"v1","accept":true}}`,
			check: func(t *testing.T, v any) {
				ev, ok := v.(*ClaimVoted)
				if !ok || ev.Claim.VotesFor != 2 || !ev.Vote.Accept {
					t.Errorf("got %#v", v)
				}
			},
		},
		{
			topic: TopicRoomCancelled,
			data:  `{"room":{"status":"cancelled"},"by":"org"}`,
			check: func(t *testing.T, v any) {
				ev, ok := v.(*RoomStatusChanged)
				if !ok || ev.Room.Status != model.RoomCancelled || ev.By != "org" {
					t.Errorf("got %#v", v)
				}
			},
		},
		{
			topic: "trustplay.unknown",
			data:  `{"x":1}`,
			check: func(t *testing.T, v any) {
				if _, ok := v.(map[string]any); !ok {
					t.Errorf("got %T, want map", v)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			v, err := Decode(tt.topic, []byte(tt.data))
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			tt.check(t, v)
		})
	}

	if _, err := Decode(TopicClaimSubmitted, []byte("{")); err == nil {
		t.Error("expected error for malformed payload")
	}
}
