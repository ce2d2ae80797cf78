package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"testing"
	"time"
)

// mockClient creates a Client with a send channel but no real connection.
func mockClient(hub *Hub, userID int64) *Client {
	return &Client{
		hub:    hub,
		conn:   nil,
		userID: userID,
		send:   make(chan []byte, sendBufferSize),
	}
}

func recv(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case data := <-c.send:
		var got Message
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		return got
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for message")
		return Message{}
	}
}

func TestRegisterUnregister(t *testing.T) {
	hub := NewHub(slog.Default())

	c1 := mockClient(hub, 1)
	c2 := mockClient(hub, 2)

	hub.Register(c1)
	hub.Register(c2)

	if got := hub.ClientCount(); got != 2 {
		t.Fatalf("expected 2 clients, got %d", got)
	}

	hub.Unregister(c1)

	if got := hub.ClientCount(); got != 1 {
		t.Fatalf("expected 1 client after unregister, got %d", got)
	}

	hub.Unregister(c2)

	if got := hub.ClientCount(); got != 0 {
		t.Fatalf("expected 0 clients, got %d", got)
	}
}

func TestDoubleUnregister(t *testing.T) {
	hub := NewHub(slog.Default())
	c := mockClient(hub, 1)
	hub.Register(c)
	hub.Unregister(c)
	// Should not panic
	hub.Unregister(c)

	if got := hub.ClientCount(); got != 0 {
		t.Fatalf("expected 0 clients, got %d", got)
	}
}

func TestSendToUserRouting(t *testing.T) {
	hub := NewHub(slog.Default())

	// User 1 has two devices; user 2 one.
	a1 := mockClient(hub, 1)
	a2 := mockClient(hub, 1)
	b := mockClient(hub, 2)
	hub.Register(a1)
	hub.Register(a2)
	hub.Register(b)

	hub.Toast(1, "success", "Checked in! Current streak: 4 days")

	for _, c := range []*Client{a1, a2} {
		got := recv(t, c)
		if got.Type != "toast" {
			t.Errorf("type = %q, want toast", got.Type)
		}
		if got.Level != "success" {
			t.Errorf("level = %q, want success", got.Level)
		}
		if got.Text != "Checked in! Current streak: 4 days" {
			t.Errorf("text = %q", got.Text)
		}
	}

	// The other user's connection stays quiet.
	select {
	case data := <-b.send:
		t.Fatalf("user 2 received user 1's toast: %s", data)
	default:
	}

	hub.Unregister(a1)
	hub.Unregister(a2)
	hub.Unregister(b)
}

func TestSendToUserNoConnections(t *testing.T) {
	hub := NewHub(slog.Default())
	// Should not panic
	hub.Toast(99, "info", "You've already checked in today!")
}

func TestBroadcast(t *testing.T) {
	hub := NewHub(slog.Default())

	c1 := mockClient(hub, 1)
	c2 := mockClient(hub, 2)
	hub.Register(c1)
	hub.Register(c2)

	hub.Broadcast(EventMessage("streak_updated", map[string]any{"current": float64(3)}))

	for _, c := range []*Client{c1, c2} {
		got := recv(t, c)
		if got.Type != "streak_updated" {
			t.Errorf("type = %q, want streak_updated", got.Type)
		}
		if got.Data["current"] != float64(3) {
			t.Errorf("data = %v", got.Data)
		}
	}

	hub.Unregister(c1)
	hub.Unregister(c2)
}

func TestSendFullBuffer(t *testing.T) {
	hub := NewHub(slog.Default())

	c := mockClient(hub, 1)
	hub.Register(c)

	// Fill the send buffer
	for i := 0; i < sendBufferSize; i++ {
		hub.Toast(1, "info", "fill")
	}

	// This should drop the message, not panic or block
	hub.Toast(1, "info", "dropped")

	// Drain to verify buffer was full
	count := 0
	for {
		select {
		case <-c.send:
			count++
		default:
			goto done
		}
	}
done:
	if count != sendBufferSize {
		t.Errorf("expected %d messages, got %d", sendBufferSize, count)
	}

	hub.Unregister(c)
}

func TestConcurrentAccess(t *testing.T) {
	hub := NewHub(slog.Default())
	var wg sync.WaitGroup

	// Register, send, and unregister concurrently
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			c := mockClient(hub, userID)
			hub.Register(c)
			hub.Toast(userID, "info", "concurrent")
			for {
				select {
				case <-c.send:
				default:
					hub.Unregister(c)
					return
				}
			}
		}(int64(i))
	}

	wg.Wait()

	if got := hub.ClientCount(); got != 0 {
		t.Errorf("expected 0 clients after concurrent test, got %d", got)
	}
}
