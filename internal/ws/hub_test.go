package ws

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/arvind-99/commune/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

func newTestHub() *Hub {
	return NewHub(metrics.NewCollector(prometheus.NewRegistry()), zap.NewNop())
}

func newTestClient(h *Hub, username string) *Client {
	var identity *Identity
	if username != "" {
		identity = &Identity{UserID: 1, Username: username}
	}
	return newClient(h, nil, identity, nil, nil, h.metrics, zap.NewNop())
}

// receivedMessages drains the client's send buffer and returns the
// decoded "message" field of each frame.
func receivedMessages(t *testing.T, c *Client) []string {
	t.Helper()
	var out []string
	for {
		select {
		case data := <-c.send:
			var env struct {
				Type string `json:"type"`
				Data struct {
					Message string `json:"message"`
				} `json:"data"`
			}
			if err := json.Unmarshal(data, &env); err != nil {
				t.Fatalf("unmarshal frame: %v", err)
			}
			out = append(out, env.Data.Message)
		default:
			return out
		}
	}
}

func TestJoinIsIdempotent(t *testing.T) {
	h := newTestHub()
	c := newTestClient(h, "alice")

	h.Join(c, "alice")
	h.Join(c, "alice")

	if got := h.subscriberCount("alice"); got != 1 {
		t.Fatalf("subscriber count = %d, want 1", got)
	}

	h.Dispatch("private_message", map[string]string{"message": "hi"}, "alice")
	if got := len(receivedMessages(t, c)); got != 1 {
		t.Fatalf("received %d copies, want 1", got)
	}
}

func TestLeaveStopsDelivery(t *testing.T) {
	h := newTestHub()
	c := newTestClient(h, "alice")

	h.Join(c, "alice")
	h.Leave(c, "alice")

	h.Dispatch("private_message", map[string]string{"message": "hi"}, "alice")
	if got := len(receivedMessages(t, c)); got != 0 {
		t.Fatalf("received %d frames after leave, want 0", got)
	}

	// The emptied channel entry is gone, not a zero-length record.
	h.mu.RLock()
	_, exists := h.channels["alice"]
	h.mu.RUnlock()
	if exists {
		t.Fatal("empty channel entry not removed")
	}

	// Leaving again is a no-op.
	h.Leave(c, "alice")
}

func TestDisconnectRemovesFromAllChannels(t *testing.T) {
	h := newTestHub()
	c := newTestClient(h, "alice")

	channels := []string{"a", "b", "c", "d", "e"}
	for _, name := range channels {
		h.Join(c, name)
	}

	h.Disconnect(c)

	for _, name := range channels {
		if got := h.subscriberCount(name); got != 0 {
			t.Fatalf("channel %q still has %d subscribers after disconnect", name, got)
		}
	}
	if len(c.channels) != 0 {
		t.Fatalf("client still tracks %d channels", len(c.channels))
	}

	// Idempotent if called twice.
	h.Disconnect(c)
}

func TestDispatchDualDelivery(t *testing.T) {
	h := newTestHub()
	aliceTab1 := newTestClient(h, "alice")
	aliceTab2 := newTestClient(h, "alice")
	bob := newTestClient(h, "bob")
	carol := newTestClient(h, "carol")

	h.Join(aliceTab1, "alice")
	h.Join(aliceTab2, "alice")
	h.Join(bob, "bob")
	h.Join(carol, "carol")

	// alice → bob: delivered to bob's channel and echoed to alice's.
	h.Dispatch("private_message", map[string]string{"message": "hi"}, "bob", "alice")

	for name, c := range map[string]*Client{"aliceTab1": aliceTab1, "aliceTab2": aliceTab2, "bob": bob} {
		if got := len(receivedMessages(t, c)); got != 1 {
			t.Errorf("%s received %d copies, want 1", name, got)
		}
	}
	if got := len(receivedMessages(t, carol)); got != 0 {
		t.Errorf("carol received %d frames, want 0", got)
	}
}

func TestDispatchDedupesAcrossChannels(t *testing.T) {
	h := newTestHub()
	c := newTestClient(h, "alice")

	h.Join(c, "alice")
	h.Join(c, "bob")

	// Self-message: both target channels contain the same connection.
	h.Dispatch("private_message", map[string]string{"message": "note"}, "bob", "alice")

	if got := len(receivedMessages(t, c)); got != 1 {
		t.Fatalf("received %d copies, want exactly 1", got)
	}
}

func TestDispatchPreservesOrder(t *testing.T) {
	h := newTestHub()
	bob := newTestClient(h, "bob")
	h.Join(bob, "bob")

	want := []string{"m1", "m2", "m3"}
	for _, m := range want {
		h.Dispatch("private_message", map[string]string{"message": m}, "bob", "alice")
	}

	got := receivedMessages(t, bob)
	if len(got) != len(want) {
		t.Fatalf("received %d messages, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("message %d = %q, want %q (order violated)", i, got[i], want[i])
		}
	}
}

func TestDispatchToUnknownChannelIsNoop(t *testing.T) {
	h := newTestHub()
	c := newTestClient(h, "alice")
	h.Join(c, "alice")

	h.Dispatch("private_message", map[string]string{"message": "hi"}, "nobody")

	if got := len(receivedMessages(t, c)); got != 0 {
		t.Fatalf("received %d frames, want 0", got)
	}
}

func TestDispatchDropsForFullBuffer(t *testing.T) {
	h := newTestHub()
	c := newTestClient(h, "alice")
	h.Join(c, "alice")

	// Fill the buffer, then one more: Dispatch must not block and the
	// overflow frame is dropped.
	for i := 0; i < sendBufferSize+1; i++ {
		h.Dispatch("private_message", map[string]string{"message": fmt.Sprintf("m%d", i)}, "alice")
	}

	if got := len(receivedMessages(t, c)); got != sendBufferSize {
		t.Fatalf("buffered %d frames, want %d", got, sendBufferSize)
	}
}
