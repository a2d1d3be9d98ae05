package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/arvind-99/commune/internal/chat"
	"golang.org/x/time/rate"
)

type fakeChat struct {
	calls []sendPayload
	err   error
}

func (f *fakeChat) SendPrivate(ctx context.Context, senderID int64, senderUsername, toUsername, content string) error {
	f.calls = append(f.calls, sendPayload{To: toUsername, Message: content})
	return f.err
}

func event(t *testing.T, typ string, data any) []byte {
	t.Helper()
	raw, err := json.Marshal(map[string]any{"type": typ, "data": data})
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return raw
}

func TestUnauthenticatedEventsAreNoops(t *testing.T) {
	h := newTestHub()
	svc := &fakeChat{}
	c := newTestClient(h, "") // no identity
	c.chat = svc

	c.handleEvent(event(t, EventJoin, channelPayload{Channel: "alice"}))
	c.handleEvent(event(t, chat.EventPrivateMessage, sendPayload{To: "bob", Message: "hi"}))
	c.handleEvent(event(t, EventLeave, channelPayload{Channel: "alice"}))

	if got := h.subscriberCount("alice"); got != 0 {
		t.Fatalf("unauthenticated join mutated the hub: %d subscribers", got)
	}
	if len(svc.calls) != 0 {
		t.Fatalf("unauthenticated send reached the chat service: %d calls", len(svc.calls))
	}
	if len(c.send) != 0 {
		t.Fatalf("unauthenticated event produced %d replies, want 0", len(c.send))
	}
}

func TestJoinRestrictedToOwnChannel(t *testing.T) {
	h := newTestHub()
	c := newTestClient(h, "alice")
	c.chat = &fakeChat{}

	c.handleEvent(event(t, EventJoin, channelPayload{Channel: "bob"}))
	if got := h.subscriberCount("bob"); got != 0 {
		t.Fatalf("join to foreign channel succeeded: %d subscribers", got)
	}

	c.handleEvent(event(t, EventJoin, channelPayload{Channel: "alice"}))
	if got := h.subscriberCount("alice"); got != 1 {
		t.Fatalf("join to own channel failed: %d subscribers, want 1", got)
	}
}

func TestLeaveEvent(t *testing.T) {
	h := newTestHub()
	c := newTestClient(h, "alice")
	c.chat = &fakeChat{}

	c.handleEvent(event(t, EventJoin, channelPayload{Channel: "alice"}))
	c.handleEvent(event(t, EventLeave, channelPayload{Channel: "alice"}))

	if got := h.subscriberCount("alice"); got != 0 {
		t.Fatalf("leave left %d subscribers", got)
	}

	// Leaving a channel never joined is harmless.
	c.handleEvent(event(t, EventLeave, channelPayload{Channel: "elsewhere"}))
}

func TestSendForwardsToChatService(t *testing.T) {
	h := newTestHub()
	svc := &fakeChat{}
	c := newTestClient(h, "alice")
	c.chat = svc

	c.handleEvent(event(t, chat.EventPrivateMessage, sendPayload{To: "bob", Message: "hello"}))

	if len(svc.calls) != 1 {
		t.Fatalf("chat service called %d times, want 1", len(svc.calls))
	}
	if svc.calls[0].To != "bob" || svc.calls[0].Message != "hello" {
		t.Fatalf("chat service got %+v", svc.calls[0])
	}
	if len(c.send) != 0 {
		t.Fatal("successful send produced an unexpected reply")
	}
}

func TestSendFailureAcksSender(t *testing.T) {
	h := newTestHub()
	svc := &fakeChat{err: fmt.Errorf("%w: db down", chat.ErrPersistence)}
	c := newTestClient(h, "alice")
	c.chat = svc

	c.handleEvent(event(t, chat.EventPrivateMessage, sendPayload{To: "bob", Message: "hello"}))

	select {
	case data := <-c.send:
		var env struct {
			Type string         `json:"type"`
			Data failurePayload `json:"data"`
		}
		if err := json.Unmarshal(data, &env); err != nil {
			t.Fatalf("unmarshal ack: %v", err)
		}
		if env.Type != EventMessageFailed {
			t.Fatalf("ack type = %q, want %q", env.Type, EventMessageFailed)
		}
		if env.Data.To != "bob" {
			t.Fatalf("ack to = %q, want bob", env.Data.To)
		}
	default:
		t.Fatal("persistence failure produced no message_failed ack")
	}
}

func TestSilentDropsProduceNoAck(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"unknown receiver", chat.ErrUnknownReceiver},
		{"empty message", chat.ErrEmptyMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHub()
			c := newTestClient(h, "alice")
			c.chat = &fakeChat{err: tt.err}

			c.handleEvent(event(t, chat.EventPrivateMessage, sendPayload{To: "ghost", Message: "hi"}))

			if len(c.send) != 0 {
				t.Fatalf("silent drop produced %d replies, want 0", len(c.send))
			}
		})
	}
}

func TestSendRateLimit(t *testing.T) {
	h := newTestHub()
	svc := &fakeChat{}
	c := newTestClient(h, "alice")
	c.chat = svc
	// Two tokens, no refill within the test.
	c.limiter = rate.NewLimiter(rate.Every(time.Hour), 2)

	for i := 0; i < 5; i++ {
		c.handleEvent(event(t, chat.EventPrivateMessage, sendPayload{To: "bob", Message: "spam"}))
	}

	if len(svc.calls) != 2 {
		t.Fatalf("chat service called %d times, want 2 (rest rate limited)", len(svc.calls))
	}
}

func TestMalformedEventsAreDropped(t *testing.T) {
	h := newTestHub()
	svc := &fakeChat{}
	c := newTestClient(h, "alice")
	c.chat = svc

	c.handleEvent([]byte("not json"))
	c.handleEvent(event(t, "unknown_type", map[string]string{}))
	c.handleEvent([]byte(`{"type":"private_message","data":"not an object"}`))

	if len(svc.calls) != 0 || len(c.send) != 0 {
		t.Fatal("malformed events caused side effects")
	}
}
